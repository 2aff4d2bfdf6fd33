package autocompact

import (
	"fmt"
	"os"
	"time"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/compaction"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/fix"
	"github.com/eversession/core/internal/jsonl"
	"github.com/eversession/core/internal/pending"
	"github.com/eversession/core/internal/sessionstore"
	"github.com/eversession/core/internal/tokencount"
	"github.com/eversession/core/internal/validate"
)

// ApplyOptions are the supervisor's inputs to ApplyPending: it already
// knows which transcript and which amount/model produced the pending
// record (the same Options it ran through Run with Supervised=true), and
// re-supplies them here so the fingerprint re-plan in step 4 below uses an
// identical Amount to the one that produced the stored selection.
type ApplyOptions struct {
	Ctx       *evscore.Context
	Path      string
	Kind      agent.Kind
	SessionID string

	Amount      compaction.Amount
	Model       string
	RemovalMode agent.RemovalMode

	LockTimeout   time.Duration
	LockOptions   fileio.LockOptions
	StableOptions fileio.StableOptions
}

func (o ApplyOptions) toOptions() Options {
	return Options{
		Ctx:           o.Ctx,
		Path:          o.Path,
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

// ApplyPending implements the supervisor's apply pipeline, the supervised
// counterpart to Run's unsupervised tail: read the pending record, re-lock
// and re-stabilize the transcript, recompute the plan fresh against the
// live file, and only if its fingerprint still matches
// the one stashed at plan time does it rewrite the transcript with the
// stored summary. A fingerprint mismatch means the transcript moved under
// the pending record (e.g. the agent appended more turns first) — the
// record is marked stale rather than applied, and the caller should run
// Run again to produce a fresh one.
func ApplyPending(opts ApplyOptions) Result {
	full := opts.toOptions().withDefaults()
	dir := sessionstore.Dir(opts.Ctx.GlobalRoot, opts.SessionID)

	rec, err := pending.Load(dir)
	if err != nil {
		result := Result{Outcome: InvalidPending, Err: err}
		logOutcome(full, "apply_pending", result)
		return result
	}
	if rec == nil || rec.Status != pending.StatusReady {
		result := Result{Outcome: NoSession}
		logOutcome(full, "apply_pending", result)
		return result
	}

	guard, token, failed := acquireAndWait(full)
	if failed != nil {
		logOutcome(full, "apply_pending", *failed)
		return *failed
	}
	defer guard.Release()

	before, err := os.ReadFile(full.Path) //nolint:gosec // full.Path comes from session discovery, not user input
	if err != nil {
		result := Result{Outcome: Failed, Err: evscore.NewIOError(full.Path, err)}
		logOutcome(full, "apply_pending", result)
		return result
	}

	var result Result
	switch full.Kind {
	case agent.KindA:
		result = applyPendingA(full, dir, rec, before, token)
	case agent.KindB:
		result = applyPendingB(full, dir, rec, before, token)
	default:
		result = Result{Outcome: Failed, Err: fmt.Errorf("autocompact: unknown agent kind %q", full.Kind)}
	}
	logOutcome(full, "apply_pending", result)
	return result
}

func markStale(dir string, rec *pending.Record) {
	rec.Status = pending.Transition(rec.Status, pending.EventFingerprintMismatch)
	rec.Error = "selection fingerprint mismatch: transcript changed since the plan was made"
	_ = pending.Save(dir, rec)
}

func applyPendingA(opts Options, dir string, rec *pending.Record, before []byte, token fileio.StatToken) Result {
	rawRecords := jsonl.Parse(before)
	tr := agenta.Parse(rawRecords)
	preErrors := countErrors(validate.A(rawRecords, tr))

	fix.A(tr, fix.Options{RemovalMode: opts.RemovalMode, InsertAbortedOutputs: true})
	fixedRecords, _, err := reparse(tr.Records)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	tr = agenta.Parse(fixedRecords)
	if countErrors(validate.A(fixedRecords, tr)) > preErrors {
		return Result{Outcome: AbortedValidation, Err: fmt.Errorf("%w: fix pass left the transcript worse than it found it", evscore.ErrAbortedValidation)}
	}

	sel, err := compaction.PlanA(tr, compaction.Options{Amount: opts.Amount, Model: opts.Model})
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	if sel.Fingerprint != rec.Selection {
		markStale(dir, rec)
		return Result{Outcome: SelectionMismatch, Err: evscore.ErrSelectionMismatch}
	}

	tokensBefore := rec.TokensAtTrigger
	compaction.ApplyA(tr, sel, rec.Summary)
	appliedRecords, appliedData, err := reparse(tr.Records)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	tr = agenta.Parse(appliedRecords)
	if countErrors(validate.A(appliedRecords, tr)) > preErrors {
		fix.A(tr, fix.Options{RemovalMode: opts.RemovalMode, InsertAbortedOutputs: true})
		refixedRecords, refixedData, err := reparse(tr.Records)
		if err != nil {
			return Result{Outcome: Failed, Err: err}
		}
		tr = agenta.Parse(refixedRecords)
		if countErrors(validate.A(refixedRecords, tr)) > preErrors {
			return Result{Outcome: AbortedValidation, Err: fmt.Errorf("%w: compaction rewrite left the transcript worse than it found it", evscore.ErrAbortedValidation)}
		}
		appliedData = refixedData
	}

	if err := fileio.CheckGuard(opts.Path, token); err != nil {
		return Result{Outcome: AbortedGuard, Err: err}
	}

	tokensAfter := tokencount.A(tr.ActiveChain())
	if err := writeAndLog(opts, before, appliedData, tokensBefore, tokensAfter); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	if err := pending.Delete(dir); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	return Result{Outcome: Success, TokensBefore: tokensBefore, TokensAfter: tokensAfter}
}

func applyPendingB(opts Options, dir string, rec *pending.Record, before []byte, token fileio.StatToken) Result {
	rawRecords := jsonl.Parse(before)
	tr := agentb.Parse(rawRecords)
	preErrors := countErrors(validate.B(rawRecords, tr))

	fix.B(tr, fix.Options{RemovalMode: opts.RemovalMode, InsertAbortedOutputs: true})
	fixedRecords, _, err := reparse(tr.Records)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	tr = agentb.Parse(fixedRecords)
	if countErrors(validate.B(fixedRecords, tr)) > preErrors {
		return Result{Outcome: AbortedValidation, Err: fmt.Errorf("%w: fix pass left the transcript worse than it found it", evscore.ErrAbortedValidation)}
	}

	sel, err := compaction.PlanB(tr, compaction.Options{Amount: opts.Amount, Model: opts.Model})
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	if sel.Fingerprint != rec.Selection {
		markStale(dir, rec)
		return Result{Outcome: SelectionMismatch, Err: evscore.ErrSelectionMismatch}
	}

	tokensBefore := rec.TokensAtTrigger
	compaction.ApplyB(tr, sel, rec.Summary)
	appliedRecords, appliedData, err := reparse(tr.Records)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	tr = agentb.Parse(appliedRecords)
	if countErrors(validate.B(appliedRecords, tr)) > preErrors {
		fix.B(tr, fix.Options{RemovalMode: opts.RemovalMode, InsertAbortedOutputs: true})
		refixedRecords, refixedData, err := reparse(tr.Records)
		if err != nil {
			return Result{Outcome: Failed, Err: err}
		}
		tr = agentb.Parse(refixedRecords)
		if countErrors(validate.B(refixedRecords, tr)) > preErrors {
			return Result{Outcome: AbortedValidation, Err: fmt.Errorf("%w: compaction rewrite left the transcript worse than it found it", evscore.ErrAbortedValidation)}
		}
		appliedData = refixedData
	}

	if err := fileio.CheckGuard(opts.Path, token); err != nil {
		return Result{Outcome: AbortedGuard, Err: err}
	}

	tokensAfter := tokencount.B(tr)
	if err := writeAndLog(opts, before, appliedData, tokensBefore, tokensAfter); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	if err := pending.Delete(dir); err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	return Result{Outcome: Success, TokensBefore: tokensBefore, TokensAfter: tokensAfter}
}
