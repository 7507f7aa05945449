package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "remind.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
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

func TestSQLiteSaveReplaces(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "remind.db")
	st, err := Open(Config{Driver: "sqlite3", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Save(ctx, reminder.Snapshot{1: {Subscribed: true, Hour: 9}}); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(ctx, reminder.Snapshot{2: {Subscribed: true, Hour: 10}}); err != nil {
		t.Fatal(err)
	}

	got, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("loaded %d chats, want 1", len(got))
	}
	if _, ok := got[2]; !ok {
		t.Fatalf("expected chat 2 only, got %+v", got)
	}
}
