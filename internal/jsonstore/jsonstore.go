// Package jsonstore keeps small JSON state files under data/persistent consistent
// between the manager's job workers. Every read-modify-write happens while holding
// an exclusive flock on a sidecar .lock file.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"viralshorts/manager-go/internal/utils"
)

const lockRetryDelay = 50 * time.Millisecond

type File struct {
	path string
	// mu serializes goroutines sharing this handle; flock only excludes other handles.
	mu   sync.Mutex
	lock *flock.Flock
}

func Open(path string) *File {
	return &File{path: path, lock: flock.New(path + ".lock")}
}

func (f *File) Path() string { return f.path }

// Load decodes the file into v. It reports false when the file does not exist yet.
func (f *File) Load(ctx context.Context, v any) (bool, error) {
	if err := f.acquire(ctx, false); err != nil {
		return false, err
	}
	defer f.release()
	return f.read(v)
}

// Update loads the file into v (leaving v untouched when the file is missing), calls fn
// and writes v back when fn succeeds.
func (f *File) Update(ctx context.Context, v any, fn func(exists bool) error) error {
	if err := f.acquire(ctx, true); err != nil {
		return err
	}
	defer f.release()

	exists, err := f.read(v)
	if err != nil {
		return err
	}
	if err := fn(exists); err != nil {
		return err
	}
	return f.write(v)
}

func (f *File) acquire(ctx context.Context, exclusive bool) error {
	if err := utils.EnsureDir(filepath.Dir(f.path)); err != nil {
		return err
	}
	f.mu.Lock()
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = f.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = f.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("lock %s: not acquired", f.path)
	}
	return nil
}

func (f *File) release() {
	if err := f.lock.Unlock(); err != nil {
		utils.Warn("jsonstore unlock failed", "path", f.path, "err", err)
	}
	f.mu.Unlock()
}

func (f *File) read(v any) (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		// A corrupt state file must not stall the pipeline; start fresh like a first run.
		utils.Warn("jsonstore decode failed; starting from defaults", "path", f.path, "err", err)
		return false, nil
	}
	return true, nil
}

func (f *File) write(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	return utils.WriteFileAtomic(f.path, data, 0o644)
}
