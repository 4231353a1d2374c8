//go:build !windows

package fsutil

const nativeAttributes = false

// clearNativeAttributes is a no-op; permission bits are handled by Chmod.
func clearNativeAttributes(string) error { return nil }
