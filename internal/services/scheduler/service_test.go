package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"remindbot/internal/reminder"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type sentMsg struct {
	chatID int64
	text   string
	opt    *transport.SendOptions
}

type fakeGateway struct {
	mu         sync.Mutex
	sent       []sentMsg
	sendErr    map[int64]error  // per chat
	mentions   map[int64]string // per user
	mentionErr map[int64]error  // per user
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sendErr:    map[int64]error{},
		mentions:   map[int64]string{},
		mentionErr: map[int64]error{},
	}
}

func (f *fakeGateway) Start(context.Context, chan<- transport.Update) error { return nil }
func (f *fakeGateway) Stop(context.Context) error                           { return nil }

func (f *fakeGateway) SendText(_ context.Context, chatID int64, text string, opt *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: text, opt: opt})
	return nil
}

func (f *fakeGateway) MemberRole(context.Context, int64, int64) (transport.Role, error) {
	return transport.RoleMember, nil
}

func (f *fakeGateway) ResolveMention(_ context.Context, _ int64, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mentionErr[userID]; err != nil {
		return "", err
	}
	if m, ok := f.mentions[userID]; ok {
		return m, nil
	}
	return fmt.Sprintf("@user%d", userID), nil
}

func (f *fakeGateway) sentTo(chatID int64) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, m := range f.sent {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func newTestService(t *testing.T, gw transport.Gateway, reg *reminder.Registry, at time.Time) *Service {
	t.Helper()
	s, err := New(Config{Enabled: true, Timezone: "UTC"}, gw, reg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return at }
	return s
}

func TestPassSendsOncePerDay(t *testing.T) {
	t.Parallel()
	gw := newFakeGateway()
	reg := reminder.NewRegistry()
	reg.Subscribe(1)

	at := time.Date(2026, 8, 30, reminder.DefaultHour, reminder.DefaultMinute, 0, 0, time.UTC)
	s := newTestService(t, gw, reg, at)

	s.pass(context.Background())
	s.pass(context.Background())

	if got := len(gw.sentTo(1)); got != 1 {
		t.Fatalf("sent %d messages, want 1", got)
	}
	sub, _ := reg.Get(1)
	if sub.LastSentDate != "2026-08-30" {
		t.Fatalf("LastSentDate = %q, want 2026-08-30", sub.LastSentDate)
	}
}

func TestPassFiresAgainNextDay(t *testing.T) {
	t.Parallel()
	gw := newFakeGateway()
	reg := reminder.NewRegistry()
	reg.Subscribe(1)
	reg.MarkSent(1, "2026-08-29")

	at := time.Date(2026, 8, 30, reminder.DefaultHour, reminder.DefaultMinute, 0, 0, time.UTC)
	s := newTestService(t, gw, reg, at)
	s.pass(context.Background())

	if got := len(gw.sentTo(1)); got != 1 {
		t.Fatalf("sent %d messages, want 1", got)
	}
}

func TestPassSkipsNotDue(t *testing.T) {
	t.Parallel()
	gw := newFakeGateway()
	reg := reminder.NewRegistry()

	reg.Subscribe(1) // wrong minute
	reg.Subscribe(2)
	if err := reg.Unsubscribe(2); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 8, 30, reminder.DefaultHour, 30, 0, 0, time.UTC)
	s := newTestService(t, gw, reg, at)
	s.pass(context.Background())

	if len(gw.sent) != 0 {
		t.Fatalf("sent %d messages, want 0", len(gw.sent))
	}
}

func TestPassEvictsGoneChat(t *testing.T) {
	t.Parallel()
	gw := newFakeGateway()
	gw.sendErr[1] = fmt.Errorf("%w: kicked", transport.ErrChatGone)
	reg := reminder.NewRegistry()
	reg.Subscribe(1)

	at := time.Date(2026, 8, 30, reminder.DefaultHour, 0, 0, 0, time.UTC)
	s := newTestService(t, gw, reg, at)
	s.pass(context.Background())

	if _, ok := reg.Get(1); ok {
		t.Fatal("gone chat must be evicted")
	}
}

func TestPassKeepsChatOnTransientError(t *testing.T) {
	t.Parallel()
	gw := newFakeGateway()
	gw.sendErr[1] = errors.New("telegram: 502")
	reg := reminder.NewRegistry()
	reg.Subscribe(1)

	at := time.Date(2026, 8, 30, reminder.DefaultHour, 0, 0, 0, time.UTC)
	s := newTestService(t, gw, reg, at)
	s.pass(context.Background())

	sub, ok := reg.Get(1)
	if !ok {
		t.Fatal("chat must survive a transient failure")
	}
	if sub.LastSentDate != "" {
		t.Fatalf("failed send must not stamp, got %q", sub.LastSentDate)
	}
}

func TestPassIndependentChats(t *testing.T) {
	t.Parallel()
	gw := newFakeGateway()
	gw.sendErr[1] = errors.New("boom")
	reg := reminder.NewRegistry()
	reg.Subscribe(1)
	reg.Subscribe(2)

	at := time.Date(2026, 8, 30, reminder.DefaultHour, 0, 0, 0, time.UTC)
	s := newTestService(t, gw, reg, at)
	s.pass(context.Background())

	if got := len(gw.sentTo(2)); got != 1 {
		t.Fatalf("healthy chat got %d messages, want 1", got)
	}
	sub, _ := reg.Get(2)
	if sub.LastSentDate != "2026-08-30" {
		t.Fatalf("healthy chat not stamped: %+v", sub)
	}
}

func TestPassMentions(t *testing.T) {
	t.Parallel()
	gw := newFakeGateway()
	gw.mentions[10] = "@alice"
	gw.mentionErr[11] = errors.New("user left")
	reg := reminder.NewRegistry()
	reg.Subscribe(1)
	if err := reg.AddMember(1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.AddMember(1, 11); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 8, 30, reminder.DefaultHour, 0, 0, 0, time.UTC)
	s := newTestService(t, gw, reg, at)
	s.pass(context.Background())

	sent := gw.sentTo(1)
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if !strings.HasPrefix(sent[0].text, "@alice\n\n") {
		t.Fatalf("mention line missing or wrong: %q", sent[0].text)
	}
	if strings.Contains(sent[0].text, "user11") {
		t.Fatal("unresolvable member must be skipped")
	}
	if sent[0].opt == nil || sent[0].opt.ParseMode != "HTML" {
		t.Fatal("reminder must be sent in HTML mode")
	}
}

func TestPassNoMentionLineWithoutMembers(t *testing.T) {
	t.Parallel()
	gw := newFakeGateway()
	reg := reminder.NewRegistry()
	reg.Subscribe(1)

	at := time.Date(2026, 8, 30, reminder.DefaultHour, 0, 0, 0, time.UTC)
	s := newTestService(t, gw, reg, at)
	s.pass(context.Background())

	sent := gw.sentTo(1)
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].text != reminderBody {
		t.Fatalf("unexpected body: %q", sent[0].text)
	}
}

func TestApplyRejectsBadTimezone(t *testing.T) {
	t.Parallel()
	gw := newFakeGateway()
	reg := reminder.NewRegistry()
	s := newTestService(t, gw, reg, time.Now())

	if err := s.Apply(context.Background(), Config{Enabled: true, Timezone: "Not/AZone"}); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
