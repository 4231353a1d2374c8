package fsutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/iamnilay3/Shimmer/internal/errors"
)

const dirPerm = 0o755

// CreateRecursive ensures that path and every one of its ancestors exist as
// directories and returns the cleaned path.
//
// A directory that already exists is left alone, including one created by a
// concurrent caller between the existence check and the create. The call
// fails only when a component cannot be created for another reason, such as
// missing permission or an existing file in the way.
func (f *FS) CreateRecursive(path string) (string, error) {
	if path == "" {
		return "", errors.NewValidationError("path must not be empty").WithField("path")
	}

	clean := filepath.Clean(path)
	for _, dir := range prefixes(clean) {
		if err := f.ensureDir(dir); err != nil {
			return "", err
		}
	}
	return clean, nil
}

// prefixes returns every ancestor of path from the root down, path included.
// A volume name is returned with its trailing separator ("C:" becomes "C:\")
// so it is never tested as a bare drive designator.
func prefixes(path string) []string {
	sep := string(filepath.Separator)
	vol := filepath.VolumeName(path)
	rest := path[len(vol):]

	var out []string
	current := ""
	if vol != "" || strings.HasPrefix(rest, sep) {
		current = vol + sep
		out = append(out, current)
	}

	for _, part := range strings.Split(rest, sep) {
		if part == "" {
			continue
		}
		if current == "" {
			current = part
		} else {
			current = filepath.Join(current, part)
		}
		out = append(out, current)
	}
	return out
}

func (f *FS) ensureDir(dir string) error {
	info, err := f.fs.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return notADirectory(dir)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("create directory %s: %w", dir, errors.Classify(err, "stat", dir))
	}

	if err := f.fs.Mkdir(dir, dirPerm); err != nil {
		// Lost a race with another creator.
		if errors.Is(err, fs.ErrExist) {
			if info, statErr := f.fs.Stat(dir); statErr == nil && info.IsDir() {
				return nil
			}
			return notADirectory(dir)
		}
		return fmt.Errorf("create directory %s: %w", dir, errors.Classify(err, "mkdir", dir))
	}

	f.logger.Debug("directory created", "path", dir)
	return nil
}

func notADirectory(path string) error {
	return errors.NewValidationError("path exists and is not a directory").
		WithField("path").
		WithValue(path)
}
