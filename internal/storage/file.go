package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

// fileStore keeps the whole snapshot in one JSON file. Writes go through
// a temp file + rename so a crash mid-save never corrupts the snapshot.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(ctx context.Context) (reminder.Snapshot, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return reminder.Snapshot{}, nil
		}
		return nil, err
	}

	// JSON object keys are strings; chat ids are decoded back to int64.
	var raw map[string]reminder.ChatSubscription
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	snap := make(reminder.Snapshot, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			s.log.Warn("skipping malformed chat id in snapshot", logx.String("key", k))
			continue
		}
		snap[id] = v
	}
	return snap, nil
}

func (s *fileStore) Save(ctx context.Context, snap reminder.Snapshot) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make(map[string]reminder.ChatSubscription, len(snap))
	for id, sub := range snap {
		raw[strconv.FormatInt(id, 10)] = sub
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
