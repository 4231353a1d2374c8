//go:build unix

package instance

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	shimerrors "github.com/iamnilay3/Shimmer/internal/errors"
)

// deadPID is above the Linux and macOS PID ceilings.
const deadPID = 1<<22 + 4242

func acquireIn(t *testing.T, dir, key string, timeout time.Duration) (*Guard, error) {
	t.Helper()
	return Acquire(context.Background(), key, timeout,
		WithLockDir(dir),
		WithPollInterval(10*time.Millisecond),
	)
}

func mustAcquire(t *testing.T, dir, key string) *Guard {
	t.Helper()
	g, err := acquireIn(t, dir, key, 0)
	if err != nil {
		t.Fatalf("Acquire(%q) error = %v", key, err)
	}
	t.Cleanup(func() { _ = g.Release() })
	return g
}

func TestAcquire_ExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()
	first := mustAcquire(t, dir, "installer")

	if !first.Acquired() {
		t.Fatal("first guard should be acquired")
	}
	if first.RecoveredFromAbandoned() {
		t.Error("fresh guard should not report abandonment")
	}

	second, err := acquireIn(t, dir, "installer", 0)
	if second != nil {
		t.Error("second Acquire should not return a guard")
	}
	var timeoutErr *shimerrors.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("second Acquire error = %v, want *TimeoutError", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if first.Acquired() {
		t.Error("guard should not be acquired after Release")
	}

	third := mustAcquire(t, dir, "installer")
	if third.RecoveredFromAbandoned() {
		t.Error("clean release must not look abandoned")
	}
}

func TestAcquire_DifferentKeysDoNotConflict(t *testing.T) {
	dir := t.TempDir()
	mustAcquire(t, dir, "installer")
	mustAcquire(t, dir, "updater")
}

func TestAcquire_BoundedTimeout(t *testing.T) {
	dir := t.TempDir()
	mustAcquire(t, dir, "installer")

	timeout := 100 * time.Millisecond
	start := time.Now()
	_, err := acquireIn(t, dir, "installer", timeout)
	elapsed := time.Since(start)

	var timeoutErr *shimerrors.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("error = %v, want *TimeoutError", err)
	}
	if timeoutErr.Duration != timeout {
		t.Errorf("Duration = %v, want %v", timeoutErr.Duration, timeout)
	}
	if elapsed < timeout {
		t.Errorf("returned after %v, want at least %v", elapsed, timeout)
	}
}

func TestAcquire_WaiterGetsGuardAfterRelease(t *testing.T) {
	dir := t.TempDir()
	holder, err := acquireIn(t, dir, "installer", 0)
	if err != nil {
		t.Fatal(err)
	}

	type result struct {
		g   *Guard
		err error
	}
	done := make(chan result, 1)
	go func() {
		g, err := acquireIn(t, dir, "installer", -1)
		done <- result{g, err}
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case r := <-done:
		t.Fatalf("waiter returned while guard was held: %+v", r)
	default:
	}

	if err := holder.Release(); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("waiter error = %v", r.err)
		}
		if !r.g.Acquired() {
			t.Error("waiter should hold the guard")
		}
		_ = r.g.Release()
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not acquire the guard after release")
	}
}

func TestAcquire_ContextCancelsIndefiniteWait(t *testing.T) {
	dir := t.TempDir()
	mustAcquire(t, dir, "installer")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Acquire(ctx, "installer", -1, WithLockDir(dir), WithPollInterval(10*time.Millisecond))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestAcquire_RecoversFromAbandonedHolder(t *testing.T) {
	dir := t.TempDir()
	path := lockPath(dir, Name("installer"))

	// A holder that died leaves its owner record behind.
	rec, err := json.Marshal(ownerRecord{PID: deadPID, Hostname: "crashed", AcquiredAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, rec, 0o666); err != nil {
		t.Fatal(err)
	}

	pid, alive, err := HolderPID("installer", WithLockDir(dir))
	if err != nil {
		t.Fatal(err)
	}
	if pid != deadPID || alive {
		t.Errorf("HolderPID() = %d, %v; want %d, false", pid, alive, deadPID)
	}

	g := mustAcquire(t, dir, "installer")
	if !g.Acquired() {
		t.Fatal("abandoned guard should be acquired")
	}
	if !g.RecoveredFromAbandoned() {
		t.Error("RecoveredFromAbandoned() = false, want true")
	}
}

func TestRelease_Idempotence(t *testing.T) {
	dir := t.TempDir()
	g, err := acquireIn(t, dir, "installer", 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Release(); err != nil {
		t.Fatalf("first Release() error = %v", err)
	}
	if err := g.Release(); !errors.Is(err, ErrAlreadyReleased) {
		t.Errorf("second Release() error = %v, want ErrAlreadyReleased", err)
	}

	// The primitive is untouched by the second call: someone else can take it.
	other := mustAcquire(t, dir, "installer")
	if err := g.Release(); !errors.Is(err, ErrAlreadyReleased) {
		t.Errorf("third Release() error = %v, want ErrAlreadyReleased", err)
	}
	if !other.Acquired() {
		t.Error("a stale Release must not affect the new holder")
	}
	if _, err := acquireIn(t, dir, "installer", 0); err == nil {
		t.Error("new holder should still exclude others")
	}
}

func TestLockFile(t *testing.T) {
	dir := t.TempDir()
	g := mustAcquire(t, dir, "installer")
	path := lockPath(dir, g.Name())

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != lockFilePerm {
		t.Errorf("lock file mode = %v, want %v", perm, os.FileMode(lockFilePerm))
	}

	pid, alive, err := HolderPID("installer", WithLockDir(dir))
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() || !alive {
		t.Errorf("HolderPID() = %d, %v; want %d, true", pid, alive, os.Getpid())
	}

	if err := g.Release(); err != nil {
		t.Fatal(err)
	}
	pid, _, err = HolderPID("installer", WithLockDir(dir))
	if err != nil || pid != 0 {
		t.Errorf("HolderPID() after release = %d, %v; want 0, nil", pid, err)
	}
}

func TestAcquire_RefusesSymlinkedLockFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "victim.txt")
	if err := os.WriteFile(target, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, lockPath(dir, Name("installer"))); err != nil {
		t.Fatal(err)
	}

	g, err := acquireIn(t, dir, "installer", 0)
	if err == nil {
		_ = g.Release()
		t.Fatal("Acquire() should refuse a symlinked lock file")
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "keep me" {
		t.Errorf("symlink target was modified: %q", data)
	}

	if _, _, err := HolderPID("installer", WithLockDir(dir)); err == nil {
		t.Error("HolderPID() should refuse a symlinked lock file")
	}
}

func TestAcquire_CreatesLockDir(t *testing.T) {
	dir := t.TempDir() + "/nested/locks"
	mustAcquire(t, dir, "installer")

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("lock directory should be created: %v", err)
	}
}
