package fileio

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eversession/core/internal/evscore"
)

// LockOptions configures Acquire/AcquireWithWait.
type LockOptions struct {
	// StaleAfter marks a lock file as abandoned once it's older than this,
	// regardless of PID liveness (covers PID reuse on long-lived hosts).
	StaleAfter time.Duration
	PollInterval time.Duration
	Sleep        func(time.Duration)
	Clock        evscore.Clock
}

func (o LockOptions) withDefaults() LockOptions {
	if o.StaleAfter <= 0 {
		o.StaleAfter = 10 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Millisecond
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Clock == nil {
		o.Clock = evscore.SystemClock{}
	}
	return o
}

// LockPath returns the lock-file path for a transcript path
// (`<transcript>.evs.lock`).
func LockPath(transcriptPath string) string {
	return transcriptPath + ".evs.lock"
}

// Guard represents a held lock; Release must be called exactly once.
type Guard struct {
	path     string
	released bool
}

// Release unlinks the lock file, dropping the lock. Safe to call once;
// subsequent calls are no-ops.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		return evscore.NewIOError(g.path, err)
	}
	return nil
}

// Acquire makes one attempt to exclusively create path's lock file,
// containing the current PID and a timestamp. Returns (guard, true, nil)
// on success, (nil, false, nil) if another live holder exists, or an error
// for unexpected I/O failures.
func Acquire(path string, opts LockOptions) (*Guard, bool, error) {
	opts = opts.withDefaults()

	content := fmt.Sprintf("%d\n%d\n", os.Getpid(), opts.Clock.Now().UnixMilli())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		if _, werr := f.WriteString(content); werr != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return nil, false, evscore.NewIOError(path, werr)
		}
		_ = f.Close()
		return &Guard{path: path}, true, nil
	}
	if !os.IsExist(err) {
		return nil, false, evscore.NewIOError(path, err)
	}

	// Lock file exists: check for staleness.
	if isStale(path, opts) {
		_ = os.Remove(path)
		return Acquire(path, opts)
	}

	return nil, false, nil
}

// isStale reports whether the lock file at path was left behind by a dead
// process or has outlived StaleAfter.
func isStale(path string, opts LockOptions) bool {
	info, err := os.Stat(path)
	if err != nil {
		// Already gone; treat as not stale (caller will just retry Acquire).
		return false
	}

	if opts.Clock.Now().Sub(info.ModTime()) > opts.StaleAfter {
		return true
	}

	raw, err := os.ReadFile(path) //nolint:gosec // lock file path is derived internally, not user input
	if err != nil {
		return false
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) == 0 {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return false
	}

	return !pidAlive(pid)
}

// AcquireWithWait polls Acquire at PollInterval until it succeeds or
// timeout elapses, returning evscore.ErrLockTimeout on deadline.
func AcquireWithWait(path string, timeout time.Duration, opts LockOptions) (*Guard, error) {
	opts = opts.withDefaults()
	deadline := opts.Clock.Now().Add(timeout)

	for {
		guard, ok, err := Acquire(path, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			return guard, nil
		}
		if opts.Clock.Now().After(deadline) {
			return nil, evscore.ErrLockTimeout
		}
		opts.Sleep(opts.PollInterval)
	}
}
