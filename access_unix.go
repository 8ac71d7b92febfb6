//go:build unix

package organizer

import "golang.org/x/sys/unix"

func isWritableDir(path string) bool {
	return unix.Access(path, unix.W_OK|unix.X_OK) == nil
}
