// Package tempdir allocates uniquely named scratch directories under a
// configured root and guarantees their removal.
//
// Every [Dir] is released at most once. [Allocator.With] scopes a directory
// to a function call so it is released on return, on error and on panic.
//
//	alloc := tempdir.NewAllocator(fsys, tempdir.ConfigLookup(cfg))
//	err := alloc.With(func(dir string) error {
//	    return extractArchive(src, dir)
//	})
package tempdir

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/iamnilay3/Shimmer/internal/config"
	"github.com/iamnilay3/Shimmer/internal/errors"
	"github.com/iamnilay3/Shimmer/internal/fsutil"
	"github.com/iamnilay3/Shimmer/internal/logging"
)

// RootKey is the configuration key naming the temp root.
const RootKey = "paths.temp_root"

// RootLookup resolves the directory under which scratch directories are
// created. An empty result means the root is not configured.
type RootLookup func() (string, error)

// ConfigLookup resolves the temp root from cfg.
func ConfigLookup(cfg *config.Config) RootLookup {
	return func() (string, error) {
		return cfg.Paths.ResolveTempRoot(), nil
	}
}

// StaticRoot always resolves to root.
func StaticRoot(root string) RootLookup {
	return func() (string, error) {
		return root, nil
	}
}

// Allocator creates scratch directories.
type Allocator struct {
	fs     *fsutil.FS
	lookup RootLookup
	logger *logging.Logger
	newID  func() string
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the logger for allocation and release events.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Allocator) {
		a.logger = logger
	}
}

// NewAllocator returns an Allocator creating directories on fsys under the
// root returned by lookup. The root is resolved on every Acquire.
func NewAllocator(fsys *fsutil.FS, lookup RootLookup, opts ...Option) *Allocator {
	a := &Allocator{
		fs:     fsys,
		lookup: lookup,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.OrNop(a.logger).WithComponent("tempdir")
	return a
}

// Acquire creates a new, uniquely named directory under the temp root.
//
// It fails with a ConfigurationError when the root is unset or does not
// exist; the root itself is never created.
func (a *Allocator) Acquire() (*Dir, error) {
	root, err := a.lookup()
	if err != nil {
		return nil, errors.NewConfigurationError(RootKey, "cannot resolve temp root").WithCause(err)
	}
	if root == "" {
		return nil, errors.NewConfigurationError(RootKey, "temp root is not set")
	}

	exists, err := a.fs.DirExists(root)
	if err != nil {
		return nil, errors.NewConfigurationError(RootKey, fmt.Sprintf("cannot access temp root %s", root)).WithCause(err)
	}
	if !exists {
		return nil, errors.NewConfigurationError(RootKey, fmt.Sprintf("temp root %s does not exist", root))
	}

	path, err := a.fs.CreateRecursive(filepath.Join(root, a.newID()))
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	a.logger.Debug("temp directory acquired", "path", path)
	return &Dir{Path: path, fs: a.fs, logger: a.logger}, nil
}

// With acquires a directory, passes its path to fn and releases it when fn
// returns or panics. Errors from fn and from the release are joined.
func (a *Allocator) With(fn func(path string) error) (err error) {
	dir, err := a.Acquire()
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := dir.Release(); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
	}()

	return fn(dir.Path)
}

// Dir is a scratch directory owned by the caller until Release.
type Dir struct {
	Path string

	fs     *fsutil.FS
	logger *logging.Logger

	once sync.Once
	err  error
}

// Release removes the directory and everything in it. Only the first call
// does any work; later calls return the first call's result. A failed
// removal is not retried by later calls.
func (d *Dir) Release() error {
	d.once.Do(func() {
		d.err = d.fs.DeleteDirectoryRecursive(d.Path)
		if d.err != nil {
			d.logger.Warn("temp directory release failed", "path", d.Path, "error", d.err.Error())
			return
		}
		d.logger.Debug("temp directory released", "path", d.Path)
	})
	return d.err
}
