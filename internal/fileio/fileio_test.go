package fileio

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/eversession/core/internal/evscore"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteCreatesFileAndCleansTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")

	require.NoError(t, AtomicWrite(path, []byte("hello\n"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not survive a successful write")
}

func TestAtomicWriteOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.jsonl")
	require.NoError(t, AtomicWrite(path, []byte("v1"), 0o644))
	require.NoError(t, AtomicWrite(path, []byte("v2"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))
}

func TestGuardTokenDetectsMutation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.jsonl")
	require.NoError(t, AtomicWrite(path, []byte("v1"), 0o644))

	token, err := Stat(path)
	require.NoError(t, err)

	require.NoError(t, CheckGuard(path, token))

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("mutated-longer"), 0o644))

	err = CheckGuard(path, token)
	require.ErrorIs(t, err, evscore.ErrAbortedGuard)
}

func TestWaitStableReturnsOnceSizeStopsChanging(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	clock := evscore.NewFrozenClock(time.Unix(0, 0))
	var sleeps int
	sleep := func(d time.Duration) {
		sleeps++
		clock.Advance(d)
		if sleeps == 2 {
			_ = os.WriteFile(path, []byte("ab"), 0o644)
		}
	}

	token, err := WaitStable(path, StableOptions{
		PollInterval: 10 * time.Millisecond,
		StableFor:    20 * time.Millisecond,
		Timeout:      time.Second,
		Sleep:        sleep,
		Clock:        clock,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, token.Size)
}

func TestWaitStableTimesOutWhenFileKeepsChanging(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	clock := evscore.NewFrozenClock(time.Unix(0, 0))
	n := 0
	sleep := func(d time.Duration) {
		n++
		clock.Advance(d)
		_ = os.WriteFile(path, []byte(string(rune('a'+n%20))+string(make([]byte, n))), 0o644)
	}

	_, err := WaitStable(path, StableOptions{
		PollInterval: 10 * time.Millisecond,
		StableFor:    20 * time.Millisecond,
		Timeout:      50 * time.Millisecond,
		Sleep:        sleep,
		Clock:        clock,
	})
	require.ErrorIs(t, err, evscore.ErrBusyTimeout)
}

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "t.jsonl.evs.lock")

	guard, ok, err := Acquire(lockPath, LockOptions{})
	require.NoError(t, err)
	require.True(t, ok)

	_, ok2, err := Acquire(lockPath, LockOptions{})
	require.NoError(t, err)
	require.False(t, ok2, "second acquire must fail while held")

	require.NoError(t, guard.Release())

	_, ok3, err := Acquire(lockPath, LockOptions{})
	require.NoError(t, err)
	require.True(t, ok3, "acquire must succeed after release")
}

func TestAcquireRemovesStaleLockFromDeadPID(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "t.jsonl.evs.lock")

	// A PID that is essentially guaranteed not to exist.
	deadPID := 1 << 30
	require.NoError(t, os.WriteFile(lockPath, []byte("999999999\n1\n"), 0o644))
	_ = deadPID

	guard, ok, err := Acquire(lockPath, LockOptions{})
	require.NoError(t, err)
	require.True(t, ok, "stale lock from dead pid must be reclaimed")
	require.NoError(t, guard.Release())
}

func TestAcquireWithWaitTimesOut(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "t.jsonl.evs.lock")

	// Hold the lock with our own (live) pid so it is never considered stale.
	guard, ok, err := Acquire(lockPath, LockOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	defer guard.Release()

	clock := evscore.NewFrozenClock(time.Unix(0, 0))
	_, err = AcquireWithWait(lockPath, 30*time.Millisecond, LockOptions{
		PollInterval: 5 * time.Millisecond,
		Clock:        clock,
		Sleep:        func(d time.Duration) { clock.Advance(d) },
	})
	require.ErrorIs(t, err, evscore.ErrLockTimeout)
}

func TestPidAliveForSelf(t *testing.T) {
	require.True(t, pidAlive(syscall.Getpid()))
}
