package supervisor

import (
	"time"

	"github.com/eversession/core/internal/autocompact"
	"github.com/eversession/core/internal/control"
	"github.com/google/uuid"
)

// waitForHandshake polls handshake.json until one with a matching run_id
// appears or opts.HandshakeTimeout elapses.
func waitForHandshake(opts Options, runID string) (*control.Handshake, bool) {
	deadline := opts.Ctx.Now().Add(opts.HandshakeTimeout)
	for {
		hs, err := control.ReadHandshake(opts.ControlDir)
		if err == nil && hs != nil && hs.RunID == runID {
			return hs, true
		}
		if opts.Ctx.Now().After(deadline) {
			return nil, false
		}
		opts.Sleep(opts.PollInterval)
	}
}

// stopChild polite-terminates, force-kills if still alive after
// RestartTimeout, and waits for exit either way. Timing here rides real
// wall-clock rather than the injected Clock: this governs an actual OS
// process's shutdown, not something a frozen clock can stand in for.
func stopChild(opts Options, c *Child, exitCh <-chan int) int {
	_ = c.Stop(true)
	select {
	case code := <-exitCh:
		return code
	case <-time.After(opts.RestartTimeout):
		_ = c.Stop(false)
		return <-exitCh
	}
}

// performReload stops the child once a matching handshake has been
// observed, applies any pending compact, runs the last-chance fixer, then
// spawns the next generation with a resume argument derived from the
// handshake. It returns the new child, its exit channel, and the new
// generation's run id (state.activeToken going forward).
func performReload(opts Options, child *Child, exitCh <-chan int, hs control.Handshake) (*Child, <-chan int, string) {
	exitCode := stopChild(opts, child, exitCh)
	logEvent(opts, "reload_stopped", map[string]any{"exit_code": exitCode})

	applyResult := autocompact.ApplyPending(opts.applyOptions())
	logEvent(opts, "reload_apply_pending", map[string]any{"outcome": string(applyResult.Outcome)})
	trackOutcome(opts, applyResult.Outcome, applyResult.TokensBefore, applyResult.TokensAfter)
	// Apply failures are logged, never fatal to the restart.

	if err := lastChanceFix(opts); err != nil {
		logEvent(opts, "reload_last_chance_fix_failed", map[string]any{"error": err.Error()})
	}

	newRunID := uuid.NewString()
	resumeArg := opts.ResumeArg(hs)
	newChild, err := spawnGeneration(opts, newRunID, resumeArg)
	if err != nil {
		logEvent(opts, "reload_respawn_failed", map[string]any{"error": err.Error()})
		failedCh := make(chan int, 1)
		failedCh <- 1
		return nil, failedCh, newRunID
	}

	attachChildIO(newChild)
	registerGeneration(opts, newRunID, newChild.PID())
	logEvent(opts, "reload_respawned", map[string]any{"run_id": newRunID, "resume_arg": resumeArg})
	return newChild, watchExit(newChild), newRunID
}
