//go:build unix

package instance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"github.com/iamnilay3/Shimmer/internal/errors"
	"github.com/iamnilay3/Shimmer/internal/fsutil"
	"github.com/iamnilay3/Shimmer/internal/logging"
)

// lockFilePerm lets every local user open the same lock file.
const lockFilePerm = 0o666

// lockPath returns the lock file for name inside dir. The Windows namespace
// prefix has no meaning here and is dropped.
func lockPath(dir, name string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, strings.TrimPrefix(name, `Global\`)+".lock")
}

type flockLock struct {
	file   *os.File
	logger *logging.Logger
}

func acquirePlatform(ctx context.Context, name string, timeout time.Duration, o *options) (platformLock, bool, error) {
	path := lockPath(o.lockDir, name)
	if _, err := fsutil.NewOS().CreateRecursive(filepath.Dir(path)); err != nil {
		return nil, false, fmt.Errorf("create lock directory: %w", err)
	}

	// The lock directory is usually shared and world-writable: never follow
	// a symlink planted at the lock path.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|unix.O_NOFOLLOW, lockFilePerm)
	if err != nil {
		return nil, false, fmt.Errorf("open lock file: %w", errors.Classify(err, "open", path))
	}
	if info, err := file.Stat(); err != nil || !info.Mode().IsRegular() {
		_ = file.Close()
		if err == nil {
			err = errors.NewValidationError("lock path is not a regular file").WithField("path").WithValue(path)
		}
		return nil, false, fmt.Errorf("open lock file: %w", err)
	}
	// The umask usually strips the group and other write bits. Files created
	// by another user cannot be changed, which is fine.
	_ = file.Chmod(lockFilePerm)

	ok, err := waitForLock(ctx, file, path, timeout, o)
	if err != nil || !ok {
		_ = file.Close()
		if err == nil {
			err = timeoutError(timeout)
		}
		return nil, false, err
	}

	recovered, err := claimOwnership(file, o.logger)
	if err != nil {
		_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
		_ = file.Close()
		return nil, false, err
	}

	return &flockLock{file: file, logger: o.logger}, recovered, nil
}

// tryFlock attempts a non-blocking exclusive lock.
func tryFlock(file *os.File) (bool, error) {
	err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	switch {
	case err == nil:
		return true, nil
	case err == unix.EWOULDBLOCK:
		return false, nil
	case err == unix.EINTR:
		return false, nil
	default:
		return false, fmt.Errorf("flock: %w", err)
	}
}

// waitForLock polls the lock until it is acquired, the timeout passes or ctx
// is done. A holder's release truncates the file, and the resulting fsnotify
// event triggers an immediate retry.
func waitForLock(ctx context.Context, file *os.File, path string, timeout time.Duration, o *options) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if ok, err := tryFlock(file); ok || err != nil || timeout == 0 {
		return ok, err
	}

	var events chan fsnotify.Event
	var watchErrs chan error
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if addErr := watcher.Add(filepath.Dir(path)); addErr == nil {
			events, watchErrs = watcher.Events, watcher.Errors
		} else {
			o.logger.Debug("lock directory not watched, polling only", "error", addErr.Error())
		}
	} else {
		o.logger.Debug("fsnotify unavailable, polling only", "error", err.Error())
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline:
			// One last attempt so a release racing the deadline is not lost.
			return tryFlock(file)
		case <-ticker.C:
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) || !event.Has(fsnotify.Write) {
				continue
			}
		case werr, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			o.logger.Debug("lock directory watch error", "error", werr.Error())
			continue
		}

		if ok, err := tryFlock(file); ok || err != nil {
			return ok, err
		}
	}
}

// claimOwnership inspects the record left by the previous holder and writes
// our own. It reports whether the previous holder abandoned the lock.
func claimOwnership(file *os.File, logger *logging.Logger) (bool, error) {
	data, err := io.ReadAll(io.NewSectionReader(file, 0, 1<<16))
	if err != nil {
		return false, fmt.Errorf("read owner record: %w", err)
	}

	recovered := false
	prev, parseErr := parseOwnerRecord(data)
	switch {
	case parseErr != nil:
		recovered = true
		logger.Warn("unreadable owner record left behind", "error", parseErr.Error())
	case prev != nil:
		recovered = true
		logger.Warn("owner record left behind",
			"previous_pid", prev.PID,
			"previous_host", prev.Hostname,
			"previous_alive", isProcessAlive(prev.PID),
		)
	}

	rec, err := json.Marshal(currentOwner())
	if err != nil {
		return false, fmt.Errorf("failed to marshal owner record: %w", err)
	}
	if err := file.Truncate(0); err != nil {
		return false, fmt.Errorf("write owner record: %w", err)
	}
	if _, err := file.WriteAt(rec, 0); err != nil {
		return false, fmt.Errorf("write owner record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return false, fmt.Errorf("write owner record: %w", err)
	}
	return recovered, nil
}

// release clears the owner record, which also wakes waiters, then unlocks.
func (l *flockLock) release() error {
	truncErr := l.file.Truncate(0)
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	return errors.Join(truncErr, unlockErr, closeErr)
}

// HolderPID returns the PID recorded by the holder of the guard for key and
// whether that process is still alive. It returns 0 and false when the guard
// was released cleanly or never taken.
func HolderPID(key string, opts ...Option) (int, bool, error) {
	o := buildOptions(opts)
	file, err := os.OpenFile(lockPath(o.lockDir, Name(key)), os.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return 0, false, err
	}

	rec, err := parseOwnerRecord(data)
	if err != nil || rec == nil {
		return 0, false, err
	}
	return rec.PID, isProcessAlive(rec.PID), nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// On Unix, sending signal 0 checks if process exists without affecting it
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
