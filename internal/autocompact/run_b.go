package autocompact

import (
	"context"
	"fmt"
	"os"

	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/compaction"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/fix"
	"github.com/eversession/core/internal/jsonl"
	"github.com/eversession/core/internal/summarize"
	"github.com/eversession/core/internal/tokencount"
	"github.com/eversession/core/internal/validate"
)

func runB(opts Options) Result {
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

	tokensBefore := tokencount.B(tr)
	if !compaction.ShouldTrigger(tokensBefore, opts.ThresholdTokens) {
		return Result{Outcome: NotTriggered, TokensBefore: tokensBefore}
	}

	sel, err := compaction.PlanB(tr, compaction.Options{Amount: opts.Amount, Model: opts.Model})
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	if sel.Empty() {
		return Result{Outcome: NotTriggered, TokensBefore: tokensBefore}
	}

	promptEntries := compaction.PromptEntriesB(tr, sel.RemovedLinesB())
	prompt := summarize.FormatPrompt(promptEntries)
	summaryText, _, err := opts.Summarizer.Summarize(context.Background(), prompt)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}

	if opts.Supervised {
		return savePendingRecord(opts, tokensBefore, sel.Fingerprint, summaryText, token)
	}

	compaction.ApplyB(tr, sel, summaryText)
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
	return Result{Outcome: Success, TokensBefore: tokensBefore, TokensAfter: tokensAfter}
}
