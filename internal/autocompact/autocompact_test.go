package autocompact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/compaction"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/pending"
	"github.com/eversession/core/internal/sessionstore"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(context.Context, string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.summary, "haiku", nil
}

func chainA(n int) string {
	data := `{"type":"user","uuid":"root","parentUuid":null,"timestamp":"t0","message":{"content":"root message"}}
`
	parent := "root"
	for i := 0; i < n; i++ {
		uuid := "e" + string(rune('a'+i))
		data += `{"type":"assistant","uuid":"` + uuid + `","parentUuid":"` + parent + `","timestamp":"t` + string(rune('1'+i)) + `","message":{"content":[{"type":"text","text":"reply number ` + string(rune('0'+i)) + `"}]}}
`
		parent = uuid
	}
	return data
}

func testCtx(t *testing.T) *evscore.Context {
	t.Helper()
	return &evscore.Context{
		GlobalRoot: t.TempDir(),
		Clock:      evscore.NewFrozenClock(time.Unix(1_700_000_000, 0)),
	}
}

// fastStableOptions advances the context's own frozen clock on every
// "sleep" instead of actually waiting, so WaitStable's two-identical-
// samples rule is satisfied in microseconds rather than real wall time.
func fastStableOptions(ctx *evscore.Context) fileio.StableOptions {
	clock := ctx.Clock.(*evscore.FrozenClock)
	return fileio.StableOptions{
		PollInterval: 10 * time.Millisecond,
		StableFor:    20 * time.Millisecond,
		Timeout:      time.Second,
		Sleep:        func(d time.Duration) { clock.Advance(d) },
	}
}

func writeTranscript(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func baseOptions(t *testing.T, path string) Options {
	ctx := testCtx(t)
	return Options{
		Ctx:             ctx,
		Path:            path,
		Kind:            agent.KindA,
		SessionID:       "sess-1",
		ThresholdTokens: 1,
		Amount:          compaction.Amount{Mode: agent.AmountMessages, Messages: agent.CountOrPercent{Count: 3}},
		Model:           "sonnet",
		RemovalMode:     agent.RemovalTombstone,
		Summarizer:      &fakeSummarizer{summary: "a summary of older turns"},
		StableOptions:   fastStableOptions(ctx),
	}
}

func TestRunNoSessionWhenPathMissing(t *testing.T) {
	opts := baseOptions(t, filepath.Join(t.TempDir(), "missing.jsonl"))
	result := Run(opts)
	require.Equal(t, NoSession, result.Outcome)
}

func TestRunNotTriggeredBelowThreshold(t *testing.T) {
	path := writeTranscript(t, chainA(6))
	opts := baseOptions(t, path)
	opts.ThresholdTokens = 1_000_000
	result := Run(opts)
	require.Equal(t, NotTriggered, result.Outcome)
}

func TestRunUnsupervisedSuccessRewritesAndLogs(t *testing.T) {
	path := writeTranscript(t, chainA(6))
	opts := baseOptions(t, path)

	result := Run(opts)
	require.Equal(t, Success, result.Outcome)
	require.Greater(t, result.TokensBefore, 0)

	rewritten, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(rewritten), "a summary of older turns")

	dir := sessionstore.Dir(opts.Ctx.GlobalRoot, opts.SessionID)
	state, err := sessionstore.LoadState(dir)
	require.NoError(t, err)
	require.NotNil(t, state.LastCompact)

	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunSupervisedPersistsPendingRecordAndLeavesFileUntouched(t *testing.T) {
	path := writeTranscript(t, chainA(6))
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	opts := baseOptions(t, path)
	opts.Supervised = true

	result := Run(opts)
	require.Equal(t, PendingReady, result.Outcome)

	untouched, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, original, untouched)

	dir := sessionstore.Dir(opts.Ctx.GlobalRoot, opts.SessionID)
	rec, err := pending.Load(dir)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, pending.StatusReady, rec.Status)
	require.Equal(t, "a summary of older turns", rec.Summary)
}

func TestRunSummarizerFailureReturnsFailed(t *testing.T) {
	path := writeTranscript(t, chainA(6))
	opts := baseOptions(t, path)
	opts.Summarizer = &fakeSummarizer{err: errSummarizerBoom}

	result := Run(opts)
	require.Equal(t, Failed, result.Outcome)
	require.Error(t, result.Err)
}

func TestApplyPendingAppliesStoredSummaryWhenFingerprintMatches(t *testing.T) {
	path := writeTranscript(t, chainA(6))
	opts := baseOptions(t, path)
	opts.Supervised = true
	require.Equal(t, PendingReady, Run(opts).Outcome)

	applyResult := ApplyPending(ApplyOptions{
		Ctx:           opts.Ctx,
		Path:          opts.Path,
		Kind:          opts.Kind,
		SessionID:     opts.SessionID,
		Amount:        opts.Amount,
		Model:         opts.Model,
		StableOptions: fastStableOptions(opts.Ctx),
	})
	require.Equal(t, Success, applyResult.Outcome)

	rewritten, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(rewritten), "a summary of older turns")

	dir := sessionstore.Dir(opts.Ctx.GlobalRoot, opts.SessionID)
	rec, err := pending.Load(dir)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestApplyPendingMarksStaleOnFingerprintMismatch(t *testing.T) {
	// Simulates the transcript having moved under the pending record: the
	// supervisor's apply pipeline recomputes the plan against whatever the
	// live file now contains, and a different amount (standing in for "more
	// turns landed before the original boundary") selects a different set.
	path := writeTranscript(t, chainA(6))
	opts := baseOptions(t, path)
	opts.Supervised = true
	require.Equal(t, PendingReady, Run(opts).Outcome)

	mismatchedAmount := compaction.Amount{Mode: agent.AmountMessages, Messages: agent.CountOrPercent{Count: 2}}
	applyResult := ApplyPending(ApplyOptions{
		Ctx:           opts.Ctx,
		Path:          opts.Path,
		Kind:          opts.Kind,
		SessionID:     opts.SessionID,
		Amount:        mismatchedAmount,
		Model:         opts.Model,
		StableOptions: fastStableOptions(opts.Ctx),
	})
	require.Equal(t, SelectionMismatch, applyResult.Outcome)

	dir := sessionstore.Dir(opts.Ctx.GlobalRoot, opts.SessionID)
	rec, err := pending.Load(dir)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, pending.StatusStale, rec.Status)
}

func TestApplyPendingNoSessionWhenNothingPending(t *testing.T) {
	path := writeTranscript(t, chainA(6))
	opts := baseOptions(t, path)

	applyResult := ApplyPending(ApplyOptions{
		Ctx:           opts.Ctx,
		Path:          opts.Path,
		Kind:          opts.Kind,
		SessionID:     opts.SessionID,
		Amount:        opts.Amount,
		Model:         opts.Model,
		StableOptions: fastStableOptions(opts.Ctx),
	})
	require.Equal(t, NoSession, applyResult.Outcome)
}

var errSummarizerBoom = &evscore.SummarizerFailedError{Tier: "opus", Cause: context.DeadlineExceeded}
