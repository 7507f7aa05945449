package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (reminder.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, subscribed, hour, minute, last_sent_date FROM chats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := reminder.Snapshot{}
	for rows.Next() {
		var (
			id         int64
			subscribed int
			sub        reminder.ChatSubscription
		)
		if err := rows.Scan(&id, &subscribed, &sub.Hour, &sub.Minute, &sub.LastSentDate); err != nil {
			return nil, err
		}
		sub.Subscribed = subscribed != 0
		snap[id] = sub
	}
	return snap, rows.Err()
}

// Save replaces the whole table in one transaction; the snapshot is tiny
// (one row per known chat) so a full rewrite is simpler than diffing.
func (s *sqliteStore) Save(ctx context.Context, snap reminder.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
		return err
	}
	for id, sub := range snap {
		subscribed := 0
		if sub.Subscribed {
			subscribed = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chats(chat_id, subscribed, hour, minute, last_sent_date)
			 VALUES(?,?,?,?,?)`,
			id, subscribed, sub.Hour, sub.Minute, sub.LastSentDate,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
