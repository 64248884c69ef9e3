//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/node-bin-gen/internal/logger"
)

const (
	// LockFilename marks an output directory that a generator is writing into.
	LockFilename = ".node-bin-gen.lock"

	// lockFileMode is used for the marker file.
	lockFileMode os.FileMode = 0o644
)

// ErrLocked is returned when another live generator holds the lock.
var ErrLocked = errors.New("output directory is locked by another generator")

// Lock is an acquired run lock. Release it when the run finishes.
type Lock struct {
	path string
}

// AcquireLock creates the marker file in dir holding the current PID.
// A marker left by a process that is no longer running is reclaimed.
func AcquireLock(ctx context.Context, dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	path := filepath.Join(dir, LockFilename)

	// Two attempts: the second one follows removal of a stale marker.
	for range 2 {
		err := createMarker(path)
		if err == nil {
			logger.DebugKV(ctx, "Acquired run lock", "path", path)

			return &Lock{path: path}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock %s: %w", path, err)
		}

		pid, alive := holder(path)
		if alive {
			return nil, fmt.Errorf("%w: %s held by pid %d", ErrLocked, path, pid)
		}

		logger.WarnKV(ctx, "Reclaiming stale run lock", "path", path, "pid", pid)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock %s: %w", path, err)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrLocked, path)
}

// Release removes the marker file. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}

	path := l.path
	l.path = ""

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock %s: %w", path, err)
	}

	return nil
}

func createMarker(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFileMode)
	if err != nil {
		return err
	}

	if _, err = f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = f.Close()
		_ = os.Remove(path)

		return err
	}

	return f.Close()
}

// holder reads the PID stored in the marker and reports whether it still runs.
// Unreadable markers count as stale.
func holder(path string) (int, bool) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return pid, false
	}

	return pid, true
}
