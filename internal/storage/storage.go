// Package storage persists the subscription snapshot across restarts.
//
// The snapshot is intentionally flat: chat id -> {subscribed, hour,
// minute, last_sent_date}. Mention sets and pending-time state are not
// persisted; they are cheap for users to re-establish.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

// Config configures storage.
//
// Driver values:
//   - "file": single JSON snapshot file, written atomically
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the snapshot persistence API used by the app.
type Store interface {
	Load(ctx context.Context) (reminder.Snapshot, error)
	Save(ctx context.Context, snap reminder.Snapshot) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
