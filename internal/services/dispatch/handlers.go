package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

// parseCommand extracts a leading bot command from text: "/time@SomeBot
// args" -> "/time". Returns "" for non-command text.
func parseCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}

func (s *Service) route(ctx context.Context, req *Request) error {
	switch req.Command {
	case "/start":
		return s.handleStart(ctx, req)
	case "/stop":
		return s.handleStop(ctx, req)
	case "/join":
		return s.handleJoin(ctx, req)
	case "/time":
		return s.handleTime(ctx, req)
	case "/status":
		return s.handleStatus(ctx, req)
	case "/help":
		return s.handleHelp(ctx, req)
	case "":
		return s.handleFreeText(ctx, req)
	default:
		// Unknown commands are somebody else's business in a group chat.
		return nil
	}
}

func (s *Service) reply(ctx context.Context, chatID int64, text string) error {
	return s.gw.SendText(ctx, chatID, text, nil)
}

// isAdmin resolves the sender's chat role. A failed lookup counts as
// not-admin; gated commands must fail closed.
func (s *Service) isAdmin(ctx context.Context, req *Request) bool {
	role, err := s.gw.MemberRole(ctx, req.Msg.ChatID, req.Msg.FromID)
	if err != nil {
		req.Log.Warn("member role lookup failed", logx.Err(err))
		return false
	}
	return role.IsAdmin()
}

func (s *Service) handleStart(ctx context.Context, req *Request) error {
	if !req.Msg.IsGroup {
		return s.reply(ctx, req.Msg.ChatID, textPrivateChat)
	}
	if !s.isAdmin(ctx, req) {
		return s.reply(ctx, req.Msg.ChatID, textAdminOnlySubscribe)
	}

	s.reg.Subscribe(req.Msg.ChatID)
	req.Log.Info("chat subscribed")
	return s.reply(ctx, req.Msg.ChatID, textWelcome)
}

func (s *Service) handleStop(ctx context.Context, req *Request) error {
	if !s.isAdmin(ctx, req) {
		return s.reply(ctx, req.Msg.ChatID, textAdminOnlyUnsubscribe)
	}
	if err := s.reg.Unsubscribe(req.Msg.ChatID); err != nil {
		if errors.Is(err, reminder.ErrNotSubscribed) {
			return s.reply(ctx, req.Msg.ChatID, textNeedStart)
		}
		return err
	}
	req.Log.Info("chat unsubscribed")
	return s.reply(ctx, req.Msg.ChatID, textUnsubscribed)
}

func (s *Service) handleJoin(ctx context.Context, req *Request) error {
	if err := s.reg.AddMember(req.Msg.ChatID, req.Msg.FromID); err != nil {
		if errors.Is(err, reminder.ErrNotSubscribed) {
			return s.reply(ctx, req.Msg.ChatID, textJoinNeedStart)
		}
		return err
	}
	req.Log.Info("member opted into mentions",
		logx.String("username", req.Msg.FromUsername))

	if req.Msg.FromUsername == "" {
		return s.reply(ctx, req.Msg.ChatID, textNoUsername)
	}
	return s.reply(ctx, req.Msg.ChatID, textJoined(req.Msg.FromName, req.Msg.FromUsername))
}

func (s *Service) handleTime(ctx context.Context, req *Request) error {
	sub, ok := s.reg.Get(req.Msg.ChatID)
	if !ok {
		return s.reply(ctx, req.Msg.ChatID, textNeedStart)
	}
	if !s.isAdmin(ctx, req) {
		return s.reply(ctx, req.Msg.ChatID, textAdminOnlyTime)
	}

	s.reg.SetPending(req.Msg.ChatID)
	now := s.clock.Now()
	return s.reply(ctx, req.Msg.ChatID,
		textTimePrompt(sub.Hour, sub.Minute, now.Format("15:04")))
}

func (s *Service) handleStatus(ctx context.Context, req *Request) error {
	now := s.clock.Now()
	msg := textStatus(s.reg.CountSubscribed(), now.Format("15:04:05"))
	if sub, ok := s.reg.Get(req.Msg.ChatID); ok {
		msg += textStatusChat(sub.Hour, sub.Minute, s.reg.MemberCount(req.Msg.ChatID))
	}
	return s.reply(ctx, req.Msg.ChatID, msg)
}

func (s *Service) handleHelp(ctx context.Context, req *Request) error {
	return s.reply(ctx, req.Msg.ChatID, textHelp)
}

// handleFreeText consumes an HH:MM value when the chat is in the pending
// time-entry state. All other free text is ignored.
func (s *Service) handleFreeText(ctx context.Context, req *Request) error {
	text := strings.TrimSpace(req.Msg.Text)
	if strings.HasPrefix(text, "/") {
		return nil
	}
	if !s.reg.IsPending(req.Msg.ChatID) {
		return nil
	}
	// Non-admin chatter must not consume or disturb the pending state.
	if !s.isAdmin(ctx, req) {
		return nil
	}

	hour, minute, err := reminder.ParseHHMM(text)
	if err != nil {
		// Stay pending; the admin gets another try.
		return s.reply(ctx, req.Msg.ChatID, textBadTime)
	}

	if err := s.reg.CommitTime(req.Msg.ChatID, hour, minute); err != nil {
		if errors.Is(err, reminder.ErrNotSubscribed) {
			return s.reply(ctx, req.Msg.ChatID, textNeedStart)
		}
		return err
	}
	req.Log.Info("reminder time set",
		logx.String("time", fmt.Sprintf("%02d:%02d", hour, minute)))

	now := s.clock.Now()
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.Add(24 * time.Hour)
	}
	left := target.Sub(now)
	return s.reply(ctx, req.Msg.ChatID,
		textTimeSet(hour, minute, int(left.Hours()), int(left.Minutes())%60))
}
