//go:build windows

package instance

import (
	"context"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// everyoneFullAccess grants GENERIC_ALL to the Everyone group.
const everyoneFullAccess = "D:(A;;GA;;;WD)"

// mutexLock owns a named mutex. Mutex ownership is tied to the thread that
// waited on it, so a dedicated goroutine locked to its OS thread performs
// both the wait and the ReleaseMutex.
type mutexLock struct {
	releaseCh chan struct{}
	done      chan error
}

type waitResult struct {
	recovered bool
	err       error
}

func acquirePlatform(ctx context.Context, name string, timeout time.Duration, o *options) (platformLock, bool, error) {
	sd, err := windows.SecurityDescriptorFromString(everyoneFullAccess)
	if err != nil {
		return nil, false, fmt.Errorf("build security descriptor: %w", err)
	}
	sa := &windows.SecurityAttributes{
		Length:             uint32(unsafe.Sizeof(windows.SecurityAttributes{})),
		SecurityDescriptor: sd,
	}
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, false, fmt.Errorf("encode mutex name: %w", err)
	}

	l := &mutexLock{
		releaseCh: make(chan struct{}),
		done:      make(chan error, 1),
	}
	acquired := make(chan waitResult, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		// ERROR_ALREADY_EXISTS comes with a usable handle.
		h, err := windows.CreateMutex(sa, false, namePtr)
		if h == 0 {
			acquired <- waitResult{err: fmt.Errorf("create mutex: %w", err)}
			return
		}
		defer windows.CloseHandle(h)

		recovered, err := waitForMutex(ctx, h, timeout, o.pollInterval)
		acquired <- waitResult{recovered: recovered, err: err}
		if err != nil {
			return
		}

		<-l.releaseCh
		l.done <- windows.ReleaseMutex(h)
	}()

	res := <-acquired
	if res.err != nil {
		return nil, false, res.err
	}
	return l, res.recovered, nil
}

// waitForMutex waits in slices of poll so ctx is honoured.
func waitForMutex(ctx context.Context, h windows.Handle, timeout, poll time.Duration) (bool, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		slice := poll
		switch {
		case timeout == 0:
			slice = 0
		case timeout > 0:
			slice = min(slice, max(time.Until(deadline), 0))
		}

		event, err := windows.WaitForSingleObject(h, uint32(slice.Milliseconds()))
		switch event {
		case windows.WAIT_OBJECT_0:
			return false, nil
		case windows.WAIT_ABANDONED:
			return true, nil
		case uint32(windows.WAIT_TIMEOUT):
			if timeout == 0 || (timeout > 0 && !time.Now().Before(deadline)) {
				return false, timeoutError(timeout)
			}
		default:
			return false, fmt.Errorf("wait for mutex: %w", err)
		}
	}
}

func (l *mutexLock) release() error {
	close(l.releaseCh)
	return <-l.done
}

// HolderPID is not tracked for named mutexes; it always reports a free guard.
func HolderPID(key string, opts ...Option) (int, bool, error) {
	return 0, false, nil
}
