package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "jautolock/pkg/logx"
)

// fileStore appends runs to a JSON Lines file. Once the file holds twice the
// keep limit it is compacted down to the newest runs.
type fileStore struct {
	log  logx.Logger
	path string
	keep int

	mu     sync.Mutex
	f      *os.File
	lines  int
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, keep: cfg.keep()}
	runs, err := readRuns(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	s.lines = len(runs)
	if s.lines > s.keep {
		if err := s.rewrite(runs[len(runs)-s.keep:]); err != nil {
			s.log.Warn("run history compaction failed", logx.String("path", path), logx.Err(err))
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.f = f
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

func (s *fileStore) AppendRun(_ context.Context, r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := json.NewEncoder(s.f).Encode(r); err != nil {
		return err
	}
	s.lines++
	if s.lines >= 2*s.keep {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("run history compaction failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentRuns(_ context.Context, n int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	runs, err := readRuns(s.path)
	if err != nil {
		return nil, err
	}
	return newestFirst(runs, n), nil
}

func (s *fileStore) compactLocked() error {
	runs, err := readRuns(s.path)
	if err != nil {
		return err
	}
	if len(runs) > s.keep {
		runs = runs[len(runs)-s.keep:]
	}
	if err := s.f.Close(); err != nil {
		return err
	}
	rerr := s.rewrite(runs)
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.closed = true
		return err
	}
	s.f = f
	return rerr
}

// rewrite replaces the file with runs via a temp file and rename.
func (s *fileStore) rewrite(runs []Run) error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range runs {
		if err := enc.Encode(r); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.lines = len(runs)
	return nil
}

// readRuns returns the runs in file order, skipping corrupt lines.
func readRuns(path string) ([]Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var runs []Run
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var r Run
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.ID == "" {
			continue
		}
		runs = append(runs, r)
	}
	return runs, sc.Err()
}

func newestFirst(runs []Run, n int) []Run {
	if n <= 0 || n > len(runs) {
		n = len(runs)
	}
	out := make([]Run, 0, n)
	for i := len(runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, runs[i])
	}
	return out
}
