package telegram

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

func TestClassifySendError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		gone bool
	}{
		{name: "nil", err: nil},
		{name: "kicked from group", err: tele.ErrKickedFromGroup, gone: true},
		{name: "kicked from supergroup", err: tele.ErrKickedFromSuperGroup, gone: true},
		{name: "chat not found", err: tele.ErrChatNotFound, gone: true},
		{name: "blocked", err: tele.ErrBlockedByUser, gone: true},
		{name: "kicked by message", err: errors.New("telegram: bot was kicked from the group chat"), gone: true},
		{name: "transient", err: errors.New("telegram: 502 bad gateway")},
		{name: "rate limited", err: errors.New("telegram: retry after 5")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := classifySendError(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("classifySendError(nil) = %v", got)
				}
				return
			}
			if gone := errors.Is(got, transport.ErrChatGone); gone != tt.gone {
				t.Fatalf("ErrChatGone = %v, want %v (err %v)", gone, tt.gone, got)
			}
			if !errors.Is(got, tt.err) {
				t.Fatal("original error must stay in the chain")
			}
		})
	}
}

func TestFullName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		user tele.User
		want string
	}{
		{name: "first and last", user: tele.User{FirstName: "Aijan", LastName: "B"}, want: "Aijan B"},
		{name: "first only", user: tele.User{FirstName: "Aijan"}, want: "Aijan"},
		{name: "username fallback", user: tele.User{Username: "aijan"}, want: "aijan"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := fullName(&tt.user); got != tt.want {
				t.Fatalf("fullName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
