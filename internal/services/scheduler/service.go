// Package scheduler fires the daily reminder pass.
//
// A cron job ticks once per minute in the configured timezone and sends
// the reminder to every subscribed chat whose HH:MM matches the current
// minute and that has not been sent to today. Sends happen outside the
// registry lock, one goroutine per due chat.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/reminder"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// DefaultTimezone is where the bot's audience lives.
const DefaultTimezone = "Asia/Bishkek"

const defaultSendTimeout = 30 * time.Second

// reminderBody is the daily message. Mentions, when any, are prepended.
const reminderBody = "Всем здравствуйте! 🌟\n" +
	"Напоминаю, что нужно:\n" +
	"✅ отправить свои результаты по Duolingo и Polyglot\n" +
	"✅ прикрепить конспекты, если они были.\n" +
	"Спасибо за вашу ответственность! Жду ваши отчёты. 😊"

type Config struct {
	Enabled     bool
	Timezone    string
	SendTimeout time.Duration
}

type Service struct {
	log logx.Logger
	gw  transport.Gateway
	reg *reminder.Registry

	mu      sync.Mutex
	cfg     Config
	loc     *time.Location
	cron    *cron.Cron
	started bool

	// now is a test seam; production uses time.Now.
	now func() time.Time
}

func New(cfg Config, gw transport.Gateway, reg *reminder.Registry, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	return &Service{log: log, gw: gw, reg: reg, cfg: cfg, loc: loc, now: time.Now}, nil
}

func loadLocation(tz string) (*time.Location, error) {
	if strings.TrimSpace(tz) == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Now returns the current time in the scheduler's timezone. The command
// dispatcher uses it so replies quote the same clock the scheduler runs on.
func (s *Service) Now() time.Time {
	s.mu.Lock()
	loc := s.loc
	s.mu.Unlock()
	return s.now().In(loc)
}

func (s *Service) Start(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.started {
		return nil
	}
	s.startLocked()
	return nil
}

func (s *Service) startLocked() {
	c := cron.New(cron.WithLocation(s.loc))
	// Every minute; the pass itself decides which chats are due.
	_, _ = c.AddFunc("* * * * *", func() { s.pass(context.Background()) })
	c.Start()
	s.cron = c
	s.started = true
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()))
}

func (s *Service) stopLocked(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out waiting for running pass")
	}
	s.cron = nil
	s.started = false
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
	s.log.Info("scheduler stopped")
	return nil
}

// Apply picks up config changes at runtime. A timezone change restarts
// the cron loop in the new location.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tzChanged := loc.String() != s.loc.String()
	enabledChanged := cfg.Enabled != s.cfg.Enabled
	s.cfg = cfg
	s.loc = loc

	if !tzChanged && !enabledChanged {
		return nil
	}
	s.stopLocked(ctx)
	if cfg.Enabled {
		s.startLocked()
	}
	return nil
}

// pass runs one minute tick: find due chats, send to each concurrently,
// stamp successes.
func (s *Service) pass(ctx context.Context) {
	now := s.Now()
	today := now.Format(reminder.DateLayout)

	s.mu.Lock()
	sendTimeout := s.cfg.SendTimeout
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range s.reg.ListSubscribed() {
		if !e.Sub.DueAt(now) {
			continue
		}
		wg.Add(1)
		go func(e reminder.Entry) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, sendTimeout)
			defer cancel()
			s.sendReminder(sctx, e.ChatID, today)
		}(e)
	}
	wg.Wait()
}

func (s *Service) sendReminder(ctx context.Context, chatID int64, today string) {
	log := s.log.With(logx.Int64("chat_id", chatID))

	body := reminderBody
	if mentions := s.buildMentions(ctx, chatID, log); mentions != "" {
		body = mentions + "\n\n" + body
	}

	err := s.gw.SendText(ctx, chatID, body, &transport.SendOptions{ParseMode: "HTML"})
	if err != nil {
		if errors.Is(err, transport.ErrChatGone) {
			log.Warn("chat gone, evicting", logx.Err(err))
			s.reg.Remove(chatID)
			return
		}
		// Transient failure: no stamp, the next matching minute retries
		// (in practice tomorrow, unless the admin moves the time).
		log.Warn("reminder send failed", logx.Err(err))
		return
	}

	s.reg.MarkSent(chatID, today)
	log.Info("reminder sent", logx.String("date", today))
}

// buildMentions resolves every opted-in member into a mention token.
// Members that fail to resolve are skipped; the reminder still goes out.
func (s *Service) buildMentions(ctx context.Context, chatID int64, log logx.Logger) string {
	ids := s.reg.MemberIDs(chatID)
	if len(ids) == 0 {
		return ""
	}
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		m, err := s.gw.ResolveMention(ctx, chatID, id)
		if err != nil {
			log.Warn("mention resolve failed", logx.Int64("user_id", id), logx.Err(err))
			continue
		}
		tokens = append(tokens, m)
	}
	return strings.Join(tokens, " ")
}
