package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/servermonitor/internal/domain"
	"github.com/hamed0406/servermonitor/internal/repo"
)

const DefaultFileName = "servers.json"

var (
	_ repo.TargetStore = (*Store)(nil)
	_ repo.Quarantiner = (*Store)(nil)
)

// Store keeps the target list as a pretty-printed JSON array in one file.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path}
}

// DefaultPath is servers.json next to the running executable, falling back
// to the working directory.
func DefaultPath() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), DefaultFileName)
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, DefaultFileName)
	}
	return DefaultFileName
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) ([]domain.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Target{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var out []domain.Target
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if out == nil {
		out = []domain.Target{}
	}
	return out, nil
}

// Quarantine renames the current file to <path>.bad, or to
// <path>.bad.<unix time> when that name is taken.
func (s *Store) Quarantine(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.path + ".bad"
	if _, err := os.Stat(dst); err == nil {
		dst = fmt.Sprintf("%s.bad.%d", s.path, time.Now().UnixNano())
	}
	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", s.path, err)
	}
	return dst, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target so readers never see a half-written list.
func (s *Store) Save(ctx context.Context, ts []domain.Target) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ts == nil {
		ts = []domain.Target{}
	}
	b, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode targets: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(tmp.Name()))
		}
	}()

	_, werr := tmp.Write(append(b, '\n'))
	werr = multierr.Combine(werr, tmp.Sync(), tmp.Close())
	if werr != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), werr)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename to %s: %w", s.path, err)
	}
	return nil
}
