package fsutil

import (
	"fmt"
	"iter"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"github.com/iamnilay3/Shimmer/internal/errors"
)

// ListAllFilesRecursively returns a lazy sequence of every file below root.
//
// Each subdirectory is expanded completely before the files that sit
// directly in its parent are yielded, so the root's own files come last.
// Directories are read only as the sequence is consumed, and ranging over
// the sequence again walks the tree again.
//
// If root or any directory below it cannot be listed, the sequence yields a
// single classified error (NotFound or AccessDenied where applicable) and
// stops. Unreadable subdirectories are never skipped. Symbolic links are
// reported as files and not followed.
func (f *FS) ListAllFilesRecursively(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.walk(root, yield)
	}
}

// walk reports whether the caller should keep going.
func (f *FS) walk(dir string, yield func(string, error) bool) bool {
	entries, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		yield("", fmt.Errorf("list %s: %w", dir, errors.Classify(err, "list", dir)))
		return false
	}

	var files []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if !f.walk(path, yield) {
				return false
			}
			continue
		}
		files = append(files, path)
	}

	for _, path := range files {
		if !yield(path, nil) {
			return false
		}
	}
	return true
}

// ListFilesMatching is ListAllFilesRecursively filtered by a glob pattern.
// The pattern is matched against the slash-separated path relative to root,
// with '/' as the separator, so "*.log" only matches files directly in root
// and "**.log" matches at any depth.
func (f *FS) ListFilesMatching(root, pattern string) (iter.Seq2[string, error], error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.NewValidationError(err.Error()).WithField("pattern").WithValue(pattern)
	}

	return func(yield func(string, error) bool) {
		for path, err := range f.ListAllFilesRecursively(root) {
			if err != nil {
				yield("", err)
				return
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				yield("", relErr)
				return
			}
			if !g.Match(filepath.ToSlash(rel)) {
				continue
			}
			if !yield(path, nil) {
				return
			}
		}
	}, nil
}
