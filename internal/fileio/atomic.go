// Package fileio implements atomic file primitives: a cross-process
// advisory lock with PID-liveness staleness detection, a mtime+size
// stability wait, atomic temp-write-fsync-rename, and the guard token
// comparison that aborts a rewrite if the file moved under it.
//
// The write path follows a write-to-temp-then-rename pattern, with an
// explicit fsync between the write and the rename so a rewrite survives a
// crash between the two steps.
package fileio

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eversession/core/internal/evscore"
)

// AtomicWrite writes data to path by writing to a same-directory temp file,
// fsyncing it, then renaming over the target. On any failure the temp file
// is removed and an *evscore.IOError is returned.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := tempName(dir, filepath.Base(path))
	if err != nil {
		return evscore.NewIOError(path, err)
	}

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return evscore.NewIOError(path, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return evscore.NewIOError(path, err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return evscore.NewIOError(path, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return evscore.NewIOError(path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return evscore.NewIOError(path, err)
	}

	return nil
}

func tempName(dir, base string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%s.tmp-%s", base, hex.EncodeToString(buf[:]))), nil
}

// StatToken is the (mtime_ms, size) pair used for stability detection and
// guard-token comparison.
type StatToken struct {
	MtimeMS int64
	Size    int64
}

// Stat reads the current StatToken for path.
func Stat(path string) (StatToken, error) {
	info, err := os.Stat(path)
	if err != nil {
		return StatToken{}, evscore.NewIOError(path, err)
	}
	return StatToken{
		MtimeMS: info.ModTime().UnixMilli(),
		Size:    info.Size(),
	}, nil
}

// CheckGuard compares the current on-disk state of path against token,
// returning evscore.ErrAbortedGuard on any mismatch (including the file
// having disappeared or a stat error, both of which also indicate the
// precondition no longer holds).
func CheckGuard(path string, token StatToken) error {
	current, err := Stat(path)
	if err != nil {
		return evscore.ErrAbortedGuard
	}
	if current != token {
		return evscore.ErrAbortedGuard
	}
	return nil
}
