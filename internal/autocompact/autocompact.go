// Package autocompact implements the auto-compact pipeline: lock the
// transcript, wait for it to go quiet, validate and fix it, decide whether
// its estimated token count crosses the configured threshold, plan and
// summarize a removal, and either rewrite the file in place or — when a
// supervisor owns apply boundaries — stash the plan as a pending-compact
// record for the supervisor to apply later.
//
// The lock-then-stabilize-then-rewrite sequence and the Agent A/Agent B
// split follow the same shape every other layer in this module uses; the
// pending-record branch exists because a supervised run can't always
// rewrite its own transcript in place and sometimes has to defer the write
// until the supervisor reaches a safe boundary.
package autocompact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/compaction"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/evslog"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/jsonl"
	"github.com/eversession/core/internal/pending"
	"github.com/eversession/core/internal/sessionstore"
)

// Outcome is the auto-compact pipeline's terminal result.
type Outcome string

const (
	NoSession         Outcome = "no_session"
	LockTimeout       Outcome = "lock_timeout"
	BusyTimeout       Outcome = "busy_timeout"
	NotTriggered      Outcome = "not_triggered"
	PendingReady      Outcome = "pending_ready"
	Success           Outcome = "success"
	AbortedGuard      Outcome = "aborted_guard"
	AbortedValidation Outcome = "aborted_validation"
	Failed            Outcome = "failed"

	// SelectionMismatch and InvalidPending are ApplyPending-only outcomes;
	// Run never returns them.
	SelectionMismatch Outcome = "selection_mismatch"
	InvalidPending    Outcome = "invalid_pending"
)

// Summarizer is the interface the pipeline needs from the summarizer
// adapter; *summarize.Generator satisfies it structurally.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (summary, tier string, err error)
}

// Options are one auto-compact invocation's inputs. Path, Kind and
// SessionID are the output of session discovery (see internal/discovery);
// this package doesn't resolve them itself, so it stays testable without a
// filesystem layout to discover against.
type Options struct {
	Ctx        *evscore.Context
	Path       string
	Kind       agent.Kind
	SessionID  string

	ThresholdTokens int
	Amount          compaction.Amount
	AmountRaw       string // the raw --amount string, recorded verbatim in a pending record
	Model           string
	RemovalMode     agent.RemovalMode

	Supervised bool
	Summarizer Summarizer

	LockTimeout   time.Duration
	LockOptions   fileio.LockOptions
	StableOptions fileio.StableOptions
}

func (o Options) withDefaults() Options {
	if o.LockTimeout <= 0 {
		o.LockTimeout = 30 * time.Second
	}
	return o
}

// Result is Run's return value: the outcome plus whatever detail is useful
// to a caller logging or surfacing it (an error for Failed, token counts
// for Success).
type Result struct {
	Outcome      Outcome
	Err          error
	TokensBefore int
	TokensAfter  int
}

// Run executes the pipeline against opts.Path, dispatching to the Agent A
// or Agent B pipeline by opts.Kind.
func Run(opts Options) Result {
	opts = opts.withDefaults()
	if opts.Path == "" {
		result := Result{Outcome: NoSession}
		logOutcome(opts, "run", result)
		return result
	}
	if _, err := os.Stat(opts.Path); err != nil {
		result := Result{Outcome: NoSession}
		logOutcome(opts, "run", result)
		return result
	}

	var result Result
	switch opts.Kind {
	case agent.KindA:
		result = runA(opts)
	case agent.KindB:
		result = runB(opts)
	default:
		result = Result{Outcome: Failed, Err: fmt.Errorf("autocompact: unknown agent kind %q", opts.Kind)}
	}
	logOutcome(opts, "run", result)
	return result
}

// logOutcome reports a pipeline result through evslog at a severity matching
// how alarming the outcome is: Failed and the Aborted*/timeout/mismatch
// outcomes surface as warnings or errors since they mean the pipeline gave
// up partway through; the rest are routine decisions logged at info.
func logOutcome(opts Options, phase string, result Result) {
	ctx := evslog.WithAgent(context.Background(), string(opts.Kind))
	ctx = evslog.WithSessionID(ctx, opts.SessionID)
	logger := evslog.FromContext(ctx)

	attrs := []any{
		slog.String("phase", phase),
		slog.String("outcome", string(result.Outcome)),
		slog.String("path", opts.Path),
	}
	if result.TokensBefore > 0 {
		attrs = append(attrs, slog.Int("tokens_before", result.TokensBefore))
	}
	if result.TokensAfter > 0 {
		attrs = append(attrs, slog.Int("tokens_after", result.TokensAfter))
	}

	switch result.Outcome {
	case Failed:
		logger.Error(ctx, "autocompact outcome", append(attrs, slog.Any("error", result.Err))...)
	case AbortedGuard, AbortedValidation, SelectionMismatch, InvalidPending, LockTimeout, BusyTimeout:
		logger.Warn(ctx, "autocompact outcome", attrs...)
	default:
		logger.Info(ctx, "autocompact outcome", attrs...)
	}
}

// acquireAndWait takes the transcript lock, then waits for the file to stop
// changing, returning the guard to release and the stat token to
// guard-check against before any write.
func acquireAndWait(opts Options) (*fileio.Guard, fileio.StatToken, *Result) {
	lockOpts := opts.LockOptions
	if opts.Ctx != nil {
		lockOpts.Clock = opts.Ctx.Clock
	}
	guard, err := fileio.AcquireWithWait(fileio.LockPath(opts.Path), opts.LockTimeout, lockOpts)
	if err != nil {
		if errors.Is(err, evscore.ErrLockTimeout) {
			return nil, fileio.StatToken{}, &Result{Outcome: LockTimeout, Err: err}
		}
		return nil, fileio.StatToken{}, &Result{Outcome: Failed, Err: err}
	}

	stableOpts := opts.StableOptions
	if opts.Ctx != nil {
		stableOpts.Clock = opts.Ctx.Clock
	}
	token, err := fileio.WaitStable(opts.Path, stableOpts)
	if err != nil {
		_ = guard.Release()
		if errors.Is(err, evscore.ErrBusyTimeout) {
			return nil, fileio.StatToken{}, &Result{Outcome: BusyTimeout, Err: err}
		}
		return nil, fileio.StatToken{}, &Result{Outcome: Failed, Err: err}
	}
	return guard, token, nil
}

func countErrors(issues []agent.Issue) int {
	n := 0
	for _, iss := range issues {
		if iss.Severity == agent.SeverityError {
			n++
		}
	}
	return n
}

// savePendingRecord persists the supervised branch's pending-compact
// record.
func savePendingRecord(opts Options, tokens int, fp compaction.Fingerprint, summary string, token fileio.StatToken) Result {
	now := opts.Ctx.Now()
	dir := sessionstore.Dir(opts.Ctx.GlobalRoot, opts.SessionID)
	rec := &pending.Record{
		SchemaVersion:   pending.SchemaVersion,
		SessionID:       opts.SessionID,
		Status:          pending.StatusReady,
		CreatedAt:       now.Format(time.RFC3339),
		ReadyAt:         now.Format(time.RFC3339),
		ThresholdTokens: opts.ThresholdTokens,
		TokensAtTrigger: tokens,
		AmountMode:      opts.Amount.Mode,
		AmountRaw:       opts.AmountRaw,
		Model:           opts.Model,
		Summary:         summary,
		Selection:       fp,
		Source:          pending.Source{MtimeMS: token.MtimeMS, Size: token.Size},
	}
	if err := pending.Save(dir, rec); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	return Result{Outcome: PendingReady, TokensBefore: tokens}
}

// writeAndLog runs the unsupervised tail: snapshot the pre-rewrite bytes to
// backups/, atomically write the rewritten bytes, then record the
// compaction in state.json and log.jsonl.
func writeAndLog(opts Options, before []byte, after []byte, tokensBefore, tokensAfter int) error {
	dir := sessionstore.Dir(opts.Ctx.GlobalRoot, opts.SessionID)
	if _, err := sessionstore.Backup(dir, opts.Ctx.Now(), before); err != nil {
		return err
	}
	if err := fileio.AtomicWrite(opts.Path, after, 0o600); err != nil {
		return err
	}

	state, err := sessionstore.LoadState(dir)
	if err != nil {
		return err
	}
	now := opts.Ctx.Now()
	state.LastCompact = &sessionstore.LastCompact{
		TS:           now.Format(time.RFC3339),
		TokensBefore: tokensBefore,
		TokensAfter:  tokensAfter,
		Model:        opts.Model,
	}
	if err := sessionstore.SaveState(dir, state); err != nil {
		return err
	}
	return sessionstore.AppendLog(dir, sessionstore.LogEntry{
		TS:    now.Format(time.RFC3339),
		Event: "compact_success",
		Payload: map[string]any{
			"tokens_before": tokensBefore,
			"tokens_after":  tokensAfter,
		},
	})
}

// reparse re-serializes records (a pointer slice, as held by a transcript's
// Records field) and re-parses the result, so a post-mutation validation
// pass sees the same value-slice shape Parse originally produced rather
// than one that has drifted out of sync with insertions/deletions.
func reparse(records []*jsonl.Record) ([]jsonl.Record, []byte, error) {
	data, err := jsonl.StringifyPtr(records)
	if err != nil {
		return nil, nil, err
	}
	return jsonl.Parse(data), data, nil
}
