package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"
	"golang.org/x/time/rate"

	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// SendRatePerSec limits outbound sendMessage calls across all chats.
	// Telegram throttles bots around 30 msg/s globally.
	SendRatePerSec int
}

// Gateway adapts telebot long polling to the transport.Gateway contract.
type Gateway struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	limiter *rate.Limiter

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the poll loop. Logged periodically to avoid per-update spam.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 25
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Gateway{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (g *Gateway) Start(ctx context.Context, out chan<- transport.Update) error {
	g.runMu.Lock()
	if g.running {
		g.runMu.Unlock()
		return nil
	}
	g.running = true
	rctx, cancel := context.WithCancel(ctx)
	g.runCancel = cancel
	g.runWG.Add(2)
	g.runMu.Unlock()

	// Periodic summary for dropped updates.
	go func() {
		defer g.runWG.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				if n := atomic.SwapUint64(&g.droppedUpdates, 0); n > 0 {
					g.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&g.droppedUpdates, 0); n > 0 {
					g.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n))
				}
			}
		}
	}()

	g.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil || m.Chat == nil {
			return nil
		}
		up := transport.Update{
			Message: &transport.Message{
				ID:           m.ID,
				ChatID:       m.Chat.ID,
				FromID:       m.Sender.ID,
				FromUsername: m.Sender.Username,
				FromName:     fullName(m.Sender),
				Text:         m.Text,
				IsGroup:      m.Chat.Type == tele.ChatGroup || m.Chat.Type == tele.ChatSuperGroup,
			},
		}
		select {
		case out <- up:
		default:
			atomic.AddUint64(&g.droppedUpdates, 1)
		}
		return nil
	})

	go func() {
		defer g.runWG.Done()
		go func() {
			<-rctx.Done()
			g.bot.Stop()
		}()
		g.log.Info("polling started")
		g.bot.Start() // blocks until Stop() called
	}()

	return nil
}

func (g *Gateway) Stop(ctx context.Context) error {
	g.runMu.Lock()
	cancel := g.runCancel
	g.runCancel = nil
	wasRunning := g.running
	g.running = false
	g.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	go g.bot.Stop()

	done := make(chan struct{})
	go func() {
		g.runWG.Wait()
		close(done)
	}()

	// Grace window: keep shutdown snappy even if the long-poll is still waiting.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		g.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		g.log.Warn("telegram stop cancelled", logx.Err(ctx.Err()))
		return ctx.Err()
	case <-t.C:
		g.log.Warn("telegram stop grace elapsed; continuing shutdown")
		return nil
	}
}

func (g *Gateway) SendText(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) error {
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	sendOpt := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	}
	_, err := g.bot.Send(&tele.Chat{ID: chatID}, text, sendOpt)
	if err != nil {
		return classifySendError(err)
	}
	return nil
}

func (g *Gateway) MemberRole(ctx context.Context, chatID, userID int64) (transport.Role, error) {
	member, err := g.bot.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return transport.RoleUnknown, err
	}
	switch member.Role {
	case tele.Creator:
		return transport.RoleCreator, nil
	case tele.Administrator:
		return transport.RoleAdministrator, nil
	case tele.Member:
		return transport.RoleMember, nil
	case tele.Restricted:
		return transport.RoleRestricted, nil
	case tele.Left:
		return transport.RoleLeft, nil
	case tele.Kicked:
		return transport.RoleKicked, nil
	default:
		return transport.RoleUnknown, nil
	}
}

// ResolveMention prefers @username; falls back to an HTML user link so
// members without a username still get notified.
func (g *Gateway) ResolveMention(ctx context.Context, chatID, userID int64) (string, error) {
	member, err := g.bot.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return "", err
	}
	u := member.User
	if u == nil {
		return "", fmt.Errorf("member %d has no user info", userID)
	}
	if u.Username != "" {
		return "@" + u.Username, nil
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, u.ID, html.EscapeString(fullName(u))), nil
}

func fullName(u *tele.User) string {
	name := strings.TrimSpace(u.FirstName)
	if u.LastName != "" {
		name = strings.TrimSpace(name + " " + u.LastName)
	}
	if name == "" {
		name = u.Username
	}
	return name
}

// classifySendError wraps permanent "the bot lost this chat" failures with
// transport.ErrChatGone so the scheduler can evict the subscription.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	for _, perm := range []error{
		tele.ErrChatNotFound,
		tele.ErrBlockedByUser,
		tele.ErrKickedFromGroup,
		tele.ErrKickedFromSuperGroup,
		tele.ErrKickedFromChannel,
		tele.ErrNotStartedByUser,
	} {
		if errors.Is(err, perm) {
			return fmt.Errorf("%w: %w", transport.ErrChatGone, err)
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "kicked") || strings.Contains(msg, "chat not found") {
		return fmt.Errorf("%w: %w", transport.ErrChatGone, err)
	}
	return err
}
