package fsutil

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/iamnilay3/Shimmer/internal/errors"
)

// Supported hash algorithms.
const (
	AlgoSHA1   = "sha1"
	AlgoSHA256 = "sha256"
)

// ValidAlgorithms returns the hash algorithm names accepted by HashFile.
func ValidAlgorithms() []string {
	return []string{AlgoSHA1, AlgoSHA256}
}

func newHash(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case AlgoSHA1:
		return sha1.New(), nil
	case AlgoSHA256, "":
		return sha256.New(), nil
	default:
		return nil, errors.NewValidationError("unsupported hash algorithm").
			WithField("algo").
			WithValue(algo)
	}
}

// HashReader returns the hex digest of everything read from r.
// An empty algo selects SHA-256.
func HashReader(r io.Reader, algo string) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the hex digest of the file at path.
func (f *FS) HashFile(path, algo string) (string, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, errors.Classify(err, "open", path))
	}
	defer file.Close()

	sum, err := HashReader(file, algo)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}
