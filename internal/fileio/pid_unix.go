//go:build !windows

package fileio

import "syscall"

// pidAlive reports whether pid identifies a live process, using the
// signal-0 idiom: sending signal 0 performs error checking without
// actually delivering a signal.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	// ESRCH: no such process. EPERM: process exists but we lack permission
	// to signal it -- still alive from our perspective.
	return err == syscall.EPERM
}
