// Package supervisor implements the long-running process that owns a child
// agent: it tails control.log for reload requests, waits for a matching
// handshake, stops the child, applies any pending compact and runs a
// last-chance fixer against the now-idle transcript, then respawns the
// child with a resume argument.
//
// The process handle reuses a start-under-pty/wait-with-timeout shape for
// production child management rather than test-only interaction; the poll
// loop takes a single-threaded, pure-transition view of session state,
// generalized from a one-shot phase transition to a live loop.
package supervisor

import (
	"context"
	"log/slog"
	"os/exec"
	"time"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/autocompact"
	"github.com/eversession/core/internal/compaction"
	"github.com/eversession/core/internal/control"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/evslog"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/sessionstore"
	"github.com/eversession/core/internal/telemetry"
	"github.com/google/uuid"
)

// Options configure one supervisor instance. A supervisor owns exactly one
// session's child generations; running two agent kinds means running two
// supervisors.
type Options struct {
	Ctx        *evscore.Context
	ControlDir string
	SessionID  string
	Kind       agent.Kind

	// TranscriptPath is the live transcript this supervisor's child writes
	// to; used for the apply-pending step and the last-chance fixer.
	TranscriptPath string

	// NewCommand builds the exec.Cmd for a fresh child generation. runID is
	// the generation's identifier (the caller is responsible for passing it
	// to the child, e.g. as an environment variable the installed hook
	// reads back into its handshake writes); resumeArg is "" for the very
	// first spawn and the handshake-derived resume value on every restart.
	NewCommand func(runID, resumeArg string) *exec.Cmd

	// ResumeArg derives the next child's resume argument from the
	// handshake observed before stopping the current one: session_id for
	// Agent A, thread_id for Agent B.
	ResumeArg func(h control.Handshake) string

	// RemovalMode, Amount and Model feed both the apply-pending step
	// (recomputing the plan to check its fingerprint, per
	// internal/autocompact.ApplyPending) and the last-chance fixer's
	// removal mode.
	RemovalMode agent.RemovalMode
	Amount      compaction.Amount
	Model       string

	LockTimeout   time.Duration
	LockOptions   fileio.LockOptions
	StableOptions fileio.StableOptions

	Telemetry telemetry.Client

	PollInterval     time.Duration
	HandshakeTimeout time.Duration
	RestartTimeout   time.Duration
	Sleep            func(time.Duration)
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 200 * time.Millisecond
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 5 * time.Second
	}
	if o.RestartTimeout <= 0 {
		o.RestartTimeout = 5 * time.Second
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Telemetry == nil {
		o.Telemetry = telemetry.NoOpClient{}
	}
	return o
}

func (o Options) applyOptions() autocompact.ApplyOptions {
	return autocompact.ApplyOptions{
		Ctx:           o.Ctx,
		Path:          o.TranscriptPath,
		Kind:          o.Kind,
		SessionID:     o.SessionID,
		Amount:        o.Amount,
		Model:         o.Model,
		RemovalMode:   o.RemovalMode,
		LockTimeout:   o.LockTimeout,
		LockOptions:   o.LockOptions,
		StableOptions: o.StableOptions,
	}
}

// state is the supervisor's own in-memory state machine.
type state struct {
	activeToken   string
	controlCursor int
	pendingReload bool
	restarting    bool
}

// Run drives the supervisor loop until ctx is canceled or the child exits
// on its own outside a restart, returning the exit code to propagate.
func Run(ctx context.Context, opts Options) int {
	opts = opts.withDefaults()

	restoreTerm := attachTerminal()
	defer restoreTerm()

	st := &state{activeToken: uuid.NewString()}
	child, err := spawnGeneration(opts, st.activeToken, "")
	if err != nil {
		return 1
	}
	attachChildIO(child)
	exitCh := watchExit(child)
	registerGeneration(opts, st.activeToken, child.PID())

	for {
		select {
		case <-ctx.Done():
			_ = stopChild(opts, child, exitCh)
			_ = control.DeregisterRun(opts.Ctx.GlobalRoot, st.activeToken)
			return 0
		case code := <-exitCh:
			_ = control.DeregisterRun(opts.Ctx.GlobalRoot, st.activeToken)
			return code
		default:
		}

		cmds, cursor, _ := control.ReadCommandsSince(opts.ControlDir, st.controlCursor)
		st.controlCursor = cursor
		for _, c := range cmds {
			if c.Cmd == control.CmdReload {
				st.pendingReload = true
			}
		}

		if st.pendingReload && !st.restarting {
			st.pendingReload = false
			st.restarting = true

			hs, ok := waitForHandshake(opts, st.activeToken)
			if !ok {
				st.restarting = false
			} else {
				newChild, newExitCh, newToken := performReload(opts, child, exitCh, *hs)
				child, exitCh, st.activeToken = newChild, newExitCh, newToken
				st.restarting = false
			}
		}

		opts.Sleep(opts.PollInterval)
	}
}

func registerGeneration(opts Options, runID string, pid int) {
	_ = control.RegisterRun(opts.Ctx.GlobalRoot, control.RunEntry{
		AgentKind:  opts.Kind,
		RunID:      runID,
		PID:        pid,
		StartedAt:  opts.Ctx.Now().Format(time.RFC3339),
		ReloadMode: evscore.ReloadAuto,
		ControlDir: opts.ControlDir,
	})
}

func spawnGeneration(opts Options, runID, resumeArg string) (*Child, error) {
	return StartChild(opts.NewCommand(runID, resumeArg))
}

func watchExit(c *Child) <-chan int {
	ch := make(chan int, 1)
	go func() {
		code, _ := c.Wait()
		ch <- code
	}()
	return ch
}

// logEvent records event in the session's durable log.jsonl and, alongside
// it, emits the same decision through evslog so it also reaches whatever
// ambient log sink the process is configured with.
func logEvent(opts Options, event string, payload map[string]any) {
	dir := sessionstore.Dir(opts.Ctx.GlobalRoot, opts.SessionID)
	_ = sessionstore.AppendLog(dir, sessionstore.LogEntry{
		TS:      opts.Ctx.Now().Format(time.RFC3339),
		Event:   event,
		Payload: payload,
	})

	ctx := evslog.WithAgent(context.Background(), string(opts.Kind))
	ctx = evslog.WithSessionID(ctx, opts.SessionID)
	attrs := make([]any, 0, len(payload)+1)
	attrs = append(attrs, slog.String("event", event))
	for k, v := range payload {
		attrs = append(attrs, slog.Any(k, v))
	}
	evslog.FromContext(ctx).Info(ctx, "supervisor event", attrs...)
}

func trackOutcome(opts Options, outcome autocompact.Outcome, tokensBefore, tokensAfter int) {
	opts.Telemetry.TrackOutcome(telemetry.Event{
		Outcome:      string(outcome),
		AgentKind:    string(opts.Kind),
		Supervised:   true,
		TokensBefore: tokensBefore,
		TokensAfter:  tokensAfter,
	})

	ctx := evslog.WithAgent(context.Background(), string(opts.Kind))
	ctx = evslog.WithSessionID(ctx, opts.SessionID)
	evslog.FromContext(ctx).Info(ctx, "supervisor outcome",
		slog.String("outcome", string(outcome)),
		slog.Int("tokens_before", tokensBefore),
		slog.Int("tokens_after", tokensAfter),
	)
}
