//go:build windows

package fsutil

import "golang.org/x/sys/windows"

const nativeAttributes = true

// clearNativeAttributes resets the attribute set to FILE_ATTRIBUTE_NORMAL.
func clearNativeAttributes(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	return windows.SetFileAttributes(p, windows.FILE_ATTRIBUTE_NORMAL)
}
