// Package health serves the liveness endpoint and the keepalive self-ping.
//
// Free-tier hosts idle the process out unless something pings it; the bot
// pings its own public URL on an interval to stay resident.
package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	logx "remindbot/pkg/logx"
)

const defaultKeepaliveInterval = 14 * time.Minute

type Config struct {
	Enabled           bool
	Addr              string
	KeepaliveURL      string
	KeepaliveInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":10000"
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = defaultKeepaliveInterval
	}
	return c
}

// Service manages lifecycle for the health HTTP listener.
type Service struct {
	mu   sync.Mutex
	log  logx.Logger
	srv  *http.Server
	ln   net.Listener
	addr string // configured addr, for change detection
	cfg  Config
}

// Addr returns the bound listener address, or "" when stopped.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log}
}

// Apply starts or stops the listener according to cfg.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg

	if !cfg.Enabled {
		s.stopLocked(ctx)
		return
	}
	if s.srv != nil && s.addr == cfg.Addr {
		return
	}
	s.stopLocked(ctx)
	s.startLocked(cfg)
}

func (s *Service) startLocked(cfg Config) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.log.Warn("health listen failed", logx.String("addr", cfg.Addr), logx.Err(err))
		return
	}

	s.srv = srv
	s.ln = ln
	s.addr = cfg.Addr

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("health server error", logx.String("addr", cfg.Addr), logx.Err(err))
		}
	}()
	s.log.Info("health endpoint enabled", logx.String("addr", cfg.Addr))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Service) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv := s.srv
	s.srv = nil
	s.ln = nil
	s.addr = ""

	shutdownCtx := ctx
	if shutdownCtx == nil {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("health shutdown error", logx.Err(err))
	} else {
		s.log.Info("health endpoint stopped")
	}
}

// KeepAlive pings the configured public URL on an interval until ctx is
// canceled. No-op if no URL is configured.
func (s *Service) KeepAlive(ctx context.Context) {
	s.mu.Lock()
	url := s.cfg.KeepaliveURL
	interval := s.cfg.KeepaliveInterval
	s.mu.Unlock()

	if url == "" {
		return
	}
	if interval <= 0 {
		interval = defaultKeepaliveInterval
	}

	client := &http.Client{Timeout: 30 * time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("keepalive started",
		logx.String("url", url), logx.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				s.log.Warn("keepalive request build failed", logx.Err(err))
				continue
			}
			resp, err := client.Do(req)
			if err != nil {
				s.log.Warn("keepalive ping failed", logx.Err(err))
				continue
			}
			_ = resp.Body.Close()
			s.log.Debug("keepalive ping sent", logx.Int("status", resp.StatusCode))
		}
	}
}
