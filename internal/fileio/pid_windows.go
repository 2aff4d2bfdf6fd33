//go:build windows

package fileio

import "os"

// pidAlive on Windows falls back to a best-effort FindProcess check, which
// always succeeds on this platform; staleness there relies on StaleAfter.
func pidAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
