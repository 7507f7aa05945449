// Package dispatch routes inbound chat messages to command handlers.
//
// It owns the whole command surface of the bot: subscription management,
// mention opt-in, the pending time-entry flow, and status/help. All chat
// state lives in the shared reminder.Registry; dispatch never talks to
// the scheduler directly, they only meet at the registry.
package dispatch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"remindbot/internal/reminder"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Clock supplies the bot's notion of local time. The scheduler implements
// it with its configured timezone so replies and fire times agree.
type Clock interface {
	Now() time.Time
}

type Config struct {
	Workers       int           // 0 means NumCPU, min 2
	HandleTimeout time.Duration // per-update budget, 0 disables
}

type Service struct {
	cfg   Config
	log   logx.Logger
	gw    transport.Gateway
	reg   *reminder.Registry
	clock Clock

	handler HandlerFunc
}

func New(cfg Config, gw transport.Gateway, reg *reminder.Registry, clock Clock, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{cfg: cfg, log: log, gw: gw, reg: reg, clock: clock}
	s.handler = Chain(s.route,
		mwRecover(log),
		mwRequestLog(),
		mwTimeout(cfg.HandleTimeout),
	)
	return s
}

// Run consumes updates until ctx is canceled or the channel closes.
// Updates are handled on a bounded worker pool so one slow Telegram call
// cannot stall the whole inbound stream.
func (s *Service) Run(ctx context.Context, updates <-chan transport.Update) error {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 2 {
		workers = 2
	}

	jobs := make(chan transport.Update, workers*4)
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for up := range jobs {
				s.handle(ctx, up)
			}
		}()
	}

	s.log.Info("dispatcher started", logx.Int("workers", workers))
	defer func() {
		close(jobs)
		wg.Wait()
		s.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				s.log.Info("updates channel closed")
				return nil
			}
			if up.Message == nil {
				continue
			}
			select {
			case jobs <- up:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (s *Service) handle(ctx context.Context, up transport.Update) {
	msg := *up.Message
	req := &Request{
		Msg:     msg,
		Command: parseCommand(msg.Text),
		Log: s.log.With(
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
		),
	}
	_ = s.handler(ctx, req)
}
