package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	snap := reminder.Snapshot{
		-100123: {Subscribed: true, Hour: 6, Minute: 30, LastSentDate: "2026-08-30"},
		-100456: {Subscribed: false, Hour: 21, Minute: 0},
	}
	if err := st.Save(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	got, err := st.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d chats, want 2", len(got))
	}
	if got[-100123] != snap[-100123] || got[-100456] != snap[-100456] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "missing.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	snap, err := st.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 0 {
		t.Fatalf("expected empty snapshot, got %d entries", len(snap))
	}
}

func TestFileStoreSkipsMalformedKeys(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	raw := `{"-100123": {"subscribed": true, "hour": 9, "minute": 15}, "oops": {"subscribed": true, "hour": 1, "minute": 2}}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	snap, err := st.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 {
		t.Fatalf("loaded %d chats, want 1", len(snap))
	}
	if sub := snap[-100123]; sub.Hour != 9 || sub.Minute != 15 {
		t.Fatalf("unexpected record: %+v", sub)
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", "NONE"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q) error: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) must return nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
