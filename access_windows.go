//go:build windows

package organizer

import (
	"golang.org/x/sys/windows"
)

func isWritableDir(path string) bool {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false
	}
	return attrs&windows.FILE_ATTRIBUTE_READONLY == 0
}
