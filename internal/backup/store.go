package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/riaaa16/ai-consultant/internal/pathguard"
	"github.com/riaaa16/ai-consultant/pkg/logger"
	"github.com/riaaa16/ai-consultant/pkg/metrics"
)

// DirName is the backup directory, relative to the content root.
const DirName = ".backups"

// StampLayout is fixed-width so lexical order equals chronological order.
const StampLayout = "20060102T150405Z"

// mintAttempts bounds how many seconds Create waits for a free name.
const mintAttempts = 3

// Mirror receives a copy of every backup after it is durable on local disk.
type Mirror interface {
	Put(ctx context.Context, name string, data []byte) error
}

// Store manages timestamped snapshots of content files. Backups are never
// modified or removed once written.
type Store struct {
	dir    string
	now    func() time.Time
	sleep  func(time.Duration)
	mirror Mirror
}

type Option func(*Store)

// WithClock overrides the time source and the wait used when a name for the
// current second is already taken.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(s *Store) {
		s.now = now
		s.sleep = sleep
	}
}

// WithMirror attaches an off-host copy target.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

func NewStore(contentRoot string, opts ...Option) *Store {
	s := &Store{
		dir:   filepath.Join(contentRoot, DirName),
		now:   time.Now,
		sleep: time.Sleep,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Dir() string { return s.dir }

// Name builds the backup file name for file at t.
func Name(file string, t time.Time) string {
	return fmt.Sprintf("%s.%s.bak", file, t.UTC().Format(StampLayout))
}

// List returns backup names for file, newest first. A missing backup
// directory yields an empty list.
func (s *Store) List(file string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list backups: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, file+".") || !strings.HasSuffix(n, ".bak") {
			continue
		}
		out = append(out, n)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// Path resolves a backup name to its absolute location under the backup
// directory.
func (s *Store) Path(name string) (string, error) {
	return pathguard.Resolve(s.dir, name)
}

// Create snapshots the current bytes of path and returns the absolute path
// of the new backup. The snapshot is synced to disk before Create returns.
func (s *Store) Create(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s for backup: %w", path, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	f, target, err := s.mint(filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("sync backup: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("close backup: %w", err)
	}
	if err := syncDir(s.dir); err != nil {
		logger.Warnf("backup: sync dir %s: %v", s.dir, err)
	}
	metrics.BackupsCreated.Inc()
	logger.Debugf("backup: wrote %s (%d bytes)", target, len(data))

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, filepath.Base(target), data); err != nil {
			logger.Warnf("backup: mirror %s: %v", filepath.Base(target), err)
		}
	}
	return target, nil
}

// mint exclusively creates a fresh backup file. Two backups taken within
// the same second wait for the next second rather than share a name.
func (s *Store) mint(base string) (*os.File, string, error) {
	for attempt := 0; attempt < mintAttempts; attempt++ {
		now := s.now()
		target, err := s.Path(Name(base, now))
		if err != nil {
			return nil, "", err
		}
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, target, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create backup: %w", err)
		}
		s.sleep(now.Truncate(time.Second).Add(time.Second).Sub(now))
	}
	return nil, "", fmt.Errorf("create backup: no free name for %s after %d attempts", base, mintAttempts)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
