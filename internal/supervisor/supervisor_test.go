package supervisor

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/control"
	"github.com/eversession/core/internal/evscore"
	"github.com/stretchr/testify/require"
)

// sleepyChild is a shell script that runs until it receives SIGTERM, at
// which point it exits 0. Standing in for a real agent binary under a pty
// rather than a live CLI agent.
const sleepyChildScript = `trap 'exit 0' TERM; while true; do sleep 0.05; done`

func testCtx(t *testing.T) *evscore.Context {
	t.Helper()
	return &evscore.Context{
		GlobalRoot: t.TempDir(),
		Clock:      evscore.SystemClock{},
	}
}

func baseOptions(t *testing.T, controlDir, transcriptPath string) Options {
	return Options{
		Ctx:              testCtx(t),
		ControlDir:       controlDir,
		SessionID:        "sess-1",
		Kind:             agent.KindA,
		TranscriptPath:   transcriptPath,
		RemovalMode:      agent.RemovalTombstone,
		PollInterval:     10 * time.Millisecond,
		HandshakeTimeout: 500 * time.Millisecond,
		RestartTimeout:   200 * time.Millisecond,
		NewCommand: func(_, _ string) *exec.Cmd {
			return exec.Command("sh", "-c", sleepyChildScript)
		},
		ResumeArg: func(h control.Handshake) string { return h.SessionID },
	}
}

func TestRunSpawnsChildAndStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	opts := baseOptions(t, dir, filepath.Join(dir, "session.jsonl"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- Run(ctx, opts) }()

	// Give the child a moment to actually start before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case code := <-done:
		require.Equal(t, 0, code)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunReloadsOnMatchingHandshake(t *testing.T) {
	dir := t.TempDir()
	transcriptPath := filepath.Join(dir, "session.jsonl")
	opts := baseOptions(t, dir, transcriptPath)

	var observedRunIDs []string
	opts.NewCommand = func(runID, _ string) *exec.Cmd {
		observedRunIDs = append(observedRunIDs, runID)
		return exec.Command("sh", "-c", sleepyChildScript)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan int, 1)
	go func() { done <- Run(ctx, opts) }()

	// Wait for the first generation to register, then emulate the agent
	// hook writing a handshake for it.
	require.Eventually(t, func() bool { return len(observedRunIDs) >= 1 }, time.Second, 5*time.Millisecond)
	firstRunID := observedRunIDs[0]
	require.NoError(t, control.WriteHandshake(dir, control.Handshake{
		RunID:     firstRunID,
		SessionID: "resumed-session-id",
		TS:        "t0",
	}))

	require.NoError(t, control.AppendCommand(dir, control.Command{TS: "t1", Cmd: control.CmdReload}))

	require.Eventually(t, func() bool { return len(observedRunIDs) >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunPropagatesExitCodeWhenChildDiesUnprompted(t *testing.T) {
	dir := t.TempDir()
	opts := baseOptions(t, dir, filepath.Join(dir, "session.jsonl"))
	opts.NewCommand = func(_, _ string) *exec.Cmd {
		return exec.Command("sh", "-c", "exit 7")
	}

	code := Run(context.Background(), opts)
	require.Equal(t, 7, code)
}
