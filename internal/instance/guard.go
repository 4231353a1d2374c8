// Package instance provides a cross-process "only one running" guard built on
// a named, machine-wide mutual-exclusion primitive.
//
// Processes that call [Acquire] with the same key exclude each other. The key
// is hashed into a fixed global name, so any string is a valid key.
//
// # Timeouts
//
//   - timeout < 0 waits until the guard is free or ctx is done
//   - timeout == 0 tries exactly once
//   - timeout > 0 waits up to that long
//
// When the wait ends without the guard, Acquire returns a
// [errors.TimeoutError] and nothing is held.
//
// # Abandoned Guards
//
// If the previous holder exited without releasing the guard (crashed or was
// killed), the primitive is handed to the next waiter. Acquire treats this as
// success and reports it through [Guard.RecoveredFromAbandoned] so callers can
// check for state the previous holder left half-finished.
//
// # Platform Notes
//
// On Windows the guard is a named mutex in the Global namespace whose ACL
// grants full access to Everyone, so processes in other sessions and under
// other accounts see the same mutex. On Unix systems it is an flock(2) lock
// on a world-writable file in the lock directory, which also carries a small
// owner record used to detect abandonment.
package instance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/iamnilay3/Shimmer/internal/errors"
	"github.com/iamnilay3/Shimmer/internal/logging"
)

// Namespace prefixes every guard name.
const Namespace = `Global\shimmer-`

// DefaultPollInterval is how often a waiting Acquire re-checks the primitive.
const DefaultPollInterval = 50 * time.Millisecond

// ErrAlreadyReleased is returned by a second call to Guard.Release.
var ErrAlreadyReleased = errors.New("instance guard already released")

// Name returns the global primitive name for key.
func Name(key string) string {
	sum := sha256.Sum256([]byte(key))
	return Namespace + hex.EncodeToString(sum[:])[:32]
}

// Option configures Acquire.
type Option func(*options)

type options struct {
	lockDir      string
	logger       *logging.Logger
	pollInterval time.Duration
}

// WithLockDir sets the directory holding lock files. Ignored on Windows.
// Empty means os.TempDir().
func WithLockDir(dir string) Option {
	return func(o *options) {
		o.lockDir = dir
	}
}

// WithLogger sets the logger for acquisition and release events.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrNop(o.logger).WithComponent("instance")
	return o
}

// platformLock is a held primitive.
type platformLock interface {
	release() error
}

type guardState int

const (
	stateUnacquired guardState = iota
	stateAcquired
	stateReleased
)

// Guard is a held single-instance guard. The zero value is an unacquired
// guard whose Release is a no-op.
type Guard struct {
	name      string
	timeout   time.Duration
	recovered bool
	logger    *logging.Logger

	mu    sync.Mutex
	state guardState
	lock  platformLock
}

// Acquire obtains the guard for key, waiting according to timeout.
func Acquire(ctx context.Context, key string, timeout time.Duration, opts ...Option) (*Guard, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.NewValidationError("instance key must not be empty").WithField("key")
	}

	o := buildOptions(opts)
	name := Name(key)
	logger := o.logger.WithOperation("acquire").With("name", name)

	lock, recovered, err := acquirePlatform(ctx, name, timeout, &o)
	if err != nil {
		logger.Debug("guard not acquired", "timeout_ms", timeout.Milliseconds(), "error", err.Error())
		return nil, err
	}

	if recovered {
		logger.Warn("previous holder abandoned the guard")
	} else {
		logger.Debug("guard acquired")
	}

	return &Guard{
		name:      name,
		timeout:   timeout,
		recovered: recovered,
		logger:    o.logger.With("name", name),
		state:     stateAcquired,
		lock:      lock,
	}, nil
}

// timeoutError reports a wait that ended without the guard.
func timeoutError(timeout time.Duration) error {
	return errors.NewTimeoutError("acquire instance guard", max(timeout, 0))
}

// Name returns the global primitive name.
func (g *Guard) Name() string {
	return g.name
}

// Acquired reports whether the guard is currently held.
func (g *Guard) Acquired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == stateAcquired
}

// RecoveredFromAbandoned reports whether the previous holder exited without
// releasing the guard.
func (g *Guard) RecoveredFromAbandoned() bool {
	return g.recovered
}

// Release gives up the guard. It does nothing for a guard that was never
// acquired and returns ErrAlreadyReleased on every call after the first.
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case stateUnacquired:
		return nil
	case stateReleased:
		return ErrAlreadyReleased
	}

	g.state = stateReleased
	if err := g.lock.release(); err != nil {
		return errors.Wrap(err, "release instance guard")
	}
	g.lock = nil
	if g.logger != nil {
		g.logger.Debug("guard released")
	}
	return nil
}
