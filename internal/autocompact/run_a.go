package autocompact

import (
	"context"
	"fmt"
	"os"

	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/compaction"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/fix"
	"github.com/eversession/core/internal/jsonl"
	"github.com/eversession/core/internal/summarize"
	"github.com/eversession/core/internal/tokencount"
	"github.com/eversession/core/internal/validate"
)

func runA(opts Options) Result {
	guard, token, failed := acquireAndWait(opts)
	if failed != nil {
		return *failed
	}
	defer guard.Release()

	before, err := os.ReadFile(opts.Path) //nolint:gosec // opts.Path comes from session discovery, not user input
	if err != nil {
		return Result{Outcome: Failed, Err: evscore.NewIOError(opts.Path, err)}
	}

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

	tokensBefore := tokencount.A(tr.ActiveChain())
	if !compaction.ShouldTrigger(tokensBefore, opts.ThresholdTokens) {
		return Result{Outcome: NotTriggered, TokensBefore: tokensBefore}
	}

	sel, err := compaction.PlanA(tr, compaction.Options{Amount: opts.Amount, Model: opts.Model})
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	if sel.Empty() {
		return Result{Outcome: NotTriggered, TokensBefore: tokensBefore}
	}

	promptEntries := compaction.PromptEntriesA(tr.ActiveChain(), sel.RemovedUUIDsA())
	prompt := summarize.FormatPrompt(promptEntries)
	summaryText, _, err := opts.Summarizer.Summarize(context.Background(), prompt)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}

	if opts.Supervised {
		return savePendingRecord(opts, tokensBefore, sel.Fingerprint, summaryText, token)
	}

	compaction.ApplyA(tr, sel, summaryText)
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
	return Result{Outcome: Success, TokensBefore: tokensBefore, TokensAfter: tokensAfter}
}
