package fsutil

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/iamnilay3/Shimmer/internal/errors"
	"github.com/iamnilay3/Shimmer/internal/retry"
)

// DeleteDirectoryRecursive removes path and everything below it.
//
// Read-only and similar attributes are cleared before each entry is removed,
// and every removal is retried with the FS delete policy to ride out
// short-lived locks held by other processes (indexers, virus scanners).
// Subdirectories are removed depth-first before their parent.
//
// The operation is not transactional. When retries for an entry are
// exhausted the error is returned and whatever was already removed stays
// removed; calling DeleteDirectoryRecursive again continues from there.
// A path that does not exist yields a NotFoundError.
func (f *FS) DeleteDirectoryRecursive(path string) error {
	info, err := f.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.NewNotFoundError("directory", path).WithCause(err)
		}
		return fmt.Errorf("delete %s: %w", path, errors.Classify(err, "stat", path))
	}
	if !info.IsDir() {
		return notADirectory(path)
	}

	logger := f.logger.WithOperation("delete").WithPath(path)
	if err := f.deleteTree(path); err != nil {
		logger.Warn("directory partially removed", "error", err.Error())
		return err
	}
	logger.Debug("directory removed")
	return nil
}

func (f *FS) deleteTree(dir string) error {
	// Unlinking an entry needs write permission on its parent on Unix.
	if err := f.clearAttributes(dir, true); err != nil {
		return err
	}

	entries, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, errors.Classify(err, "list", dir))
	}

	var subdirs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}
		if err := f.clearAttributes(path, false); err != nil {
			return err
		}
		if err := f.remove(path); err != nil {
			return err
		}
	}

	for _, sub := range subdirs {
		if err := f.deleteTree(sub); err != nil {
			return err
		}
	}

	if err := f.clearAttributes(dir, true); err != nil {
		return err
	}
	return f.remove(dir)
}

// remove deletes a single file or empty directory under the delete policy.
// An entry that disappeared in the meantime counts as removed.
func (f *FS) remove(path string) error {
	err := retry.Do(func() error {
		err := f.fs.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}, f.deletePolicy,
		retry.WithRetryIf(removalRetryable),
		retry.WithLogger(f.logger.WithOperation("delete").WithPath(path)),
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, errors.Classify(err, "delete", path))
	}
	return nil
}

// removalRetryable reports whether a failed removal may succeed later.
// Permission and lock failures are retried, as are failures the error
// taxonomy does not know (sharing violations, EBUSY). Failures it classifies
// as permanent, such as an invalid path, are not.
func removalRetryable(err error) bool {
	classified := errors.Classify(err, "delete", "")
	if errors.IsRetryable(classified) {
		return true
	}
	var known errors.ShimmerError
	return !errors.As(classified, &known)
}

// clearAttributes makes path writable (and, for directories, listable) so it
// can be removed. Windows attributes are reset to FILE_ATTRIBUTE_NORMAL when
// operating on the OS filesystem.
func (f *FS) clearAttributes(path string, dir bool) error {
	if f.native && nativeAttributes {
		if err := clearNativeAttributes(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear attributes %s: %w", path, errors.Classify(err, "clear attributes", path))
		}
	}

	info, err := f.lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("clear attributes %s: %w", path, errors.Classify(err, "stat", path))
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil
	}

	want := info.Mode().Perm() | 0o200
	if dir {
		want |= 0o700
	}
	if want == info.Mode().Perm() {
		return nil
	}
	if err := f.fs.Chmod(path, want); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear attributes %s: %w", path, errors.Classify(err, "chmod", path))
	}
	return nil
}
