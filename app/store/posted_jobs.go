package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("posted jobs store is locked by another run")

// PostedJobs is an append-only set of job ids backed by a text file with one
// id per line. A sibling ".lock" file keeps a single writer per store.
type PostedJobs struct {
	path string
	lock *flock.Flock
}

// Open acquires the store lock without blocking. It returns ErrLocked if
// another process holds it.
func Open(path string) (*PostedJobs, error) {
	if path == "" {
		return nil, fmt.Errorf("posted jobs path is required")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	return &PostedJobs{path: path, lock: lock}, nil
}

func (s *PostedJobs) Path() string {
	return s.path
}

// Load reads every recorded id. A missing file is an empty store.
func (s *PostedJobs) Load() (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return ids, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open posted jobs: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read posted jobs: %w", err)
	}

	return ids, nil
}

// Record appends id and syncs the file before returning.
func (s *PostedJobs) Record(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("job id is empty")
	}
	if strings.ContainsAny(id, "\r\n") {
		return fmt.Errorf("job id contains a line break: %q", id)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open posted jobs: %w", err)
	}

	if _, err := f.WriteString(id + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append job id: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync posted jobs: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close posted jobs: %w", err)
	}

	return nil
}

func (s *PostedJobs) Close() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}
