package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "wheeld/pkg/logx"
)

// defaultMaxBytes caps the runs file before it rotates to <path>.1.
// One rotated generation is kept.
const defaultMaxBytes = 10 << 20

// fileStore is a dependency-free persistence backend: one append-only
// JSON Lines file of run records (<prefix>.runs.jsonl), rotated once it
// exceeds maxBytes.
type fileStore struct {
	log logx.Logger

	mu       sync.Mutex
	path     string
	f        *os.File
	maxBytes int64
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	runsPath := filepath.Join(dir, base) + ".runs.jsonl"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{log: log, path: runsPath, f: f, maxBytes: defaultMaxBytes}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendRun(ctx context.Context, r RunRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("runs file closed")
	}
	if err := s.rotateLocked(); err != nil {
		// Keep writing to the oversized file rather than losing records.
		s.log.Debug("history rotate failed", logx.Err(err))
	}
	return json.NewEncoder(s.f).Encode(r)
}

func (s *fileStore) rotateLocked() error {
	st, err := s.f.Stat()
	if err != nil || st.Size() < s.maxBytes {
		return err
	}
	// Rename first, then swap in a fresh file. The old handle stays
	// valid throughout, so a failure at any step leaves a writable file.
	if err := os.Rename(s.path, s.path+".1"); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	_ = s.f.Close()
	s.f = f
	return nil
}

// RecentRuns scans the whole file and keeps the newest limit records.
// The file is operator-scale (history, not a task log), so a linear scan
// is acceptable.
func (s *fileStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	_ = ctx
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []RunRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var r RunRecord
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			// Tolerate a torn trailing line from a crashed process.
			s.log.Debug("skipping malformed history line", logx.Err(err))
			continue
		}
		out = append(out, r)
		if len(out) > limit {
			out = out[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	return out, nil
}
