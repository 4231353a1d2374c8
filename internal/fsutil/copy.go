package fsutil

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/iamnilay3/Shimmer/internal/errors"
)

// WriteStream writes everything read from r to dst, creating missing parent
// directories and replacing any existing file.
func (f *FS) WriteStream(r io.Reader, dst string) error {
	if _, err := f.CreateRecursive(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := afero.WriteReader(f.fs, dst, r); err != nil {
		return fmt.Errorf("write %s: %w", dst, errors.Classify(err, "write", dst))
	}
	return nil
}

// CopyFile copies the contents and permission bits of src to dst.
func (f *FS) CopyFile(src, dst string) error {
	in, err := f.fs.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, errors.Classify(err, "open", src))
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if info.IsDir() {
		return errors.NewValidationError("cannot copy a directory").WithField("src").WithValue(src)
	}

	if err := f.WriteStream(in, dst); err != nil {
		return err
	}
	if err := f.fs.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("copy %s: %w", dst, errors.Classify(err, "chmod", dst))
	}
	return nil
}
