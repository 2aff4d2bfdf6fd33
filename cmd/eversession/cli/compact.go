package cli

import (
	"encoding/json"
	"fmt"

	"github.com/eversession/core/internal/autocompact"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/evslog"
	"github.com/eversession/core/internal/summarize"
	"github.com/spf13/cobra"
)

type compactFlags struct {
	path        string
	sessionID   string
	agentFlag   string
	cwd         string
	threshold   int
	amount      string
	model       string
	removalMode string
	supervised  bool
	claudePath  string
}

func newCompactCmd() *cobra.Command {
	var f compactFlags

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Run the auto-compact pipeline against a transcript",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompact(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.path, "path", "", "transcript file path (skips discovery)")
	cmd.Flags().StringVar(&f.sessionID, "session-id", "", "explicit session id to discover/compact")
	cmd.Flags().StringVar(&f.agentFlag, "agent", "", "agent kind: a (chat-style) or b (rollout-style)")
	cmd.Flags().StringVar(&f.cwd, "cwd", "", "working directory to discover a session for (defaults to the current directory)")
	cmd.Flags().IntVar(&f.threshold, "threshold-tokens", 0, "estimated token count that must be crossed to trigger a compaction")
	cmd.Flags().StringVar(&f.amount, "amount", "30%", `how much to remove: "40%", a bare count, "last:N", or "tokens:N"`)
	cmd.Flags().StringVar(&f.model, "model", "", "model identifier recorded alongside the compaction")
	cmd.Flags().StringVar(&f.removalMode, "removal-mode", "delete", "delete or tombstone")
	cmd.Flags().BoolVar(&f.supervised, "supervised", false, "stash a pending-compact record instead of rewriting in place")
	cmd.Flags().StringVar(&f.claudePath, "claude-path", "", "path to the summarizer CLI (defaults to \"claude\" on PATH)")

	return cmd
}

func runCompact(cmd *cobra.Command, f compactFlags) error {
	evsCtx := evscore.FromEnvironment()
	logger := evslog.NewFromEnv()
	ctx := cmd.Context()

	path, kind, sessionID, err := resolveTarget(evsCtx, f.path, f.sessionID, f.agentFlag, f.cwd)
	if err != nil {
		return NewSilentError(printJSONError(cmd, err))
	}

	amount, err := parseAmount(f.amount)
	if err != nil {
		return NewSilentError(printJSONError(cmd, err))
	}
	removalMode, err := parseRemovalMode(f.removalMode)
	if err != nil {
		return NewSilentError(printJSONError(cmd, err))
	}

	result := autocompact.Run(autocompact.Options{
		Ctx:             evsCtx,
		Path:            path,
		Kind:            kind,
		SessionID:       sessionID,
		ThresholdTokens: f.threshold,
		Amount:          amount,
		AmountRaw:       f.amount,
		Model:           f.model,
		RemovalMode:     removalMode,
		Supervised:      f.supervised,
		Summarizer:      &summarize.Generator{ClaudePath: f.claudePath},
	})

	logger.Info(ctx, "compact finished", "outcome", string(result.Outcome), "session_id", sessionID)

	return printResult(cmd, result)
}

type resultJSON struct {
	Outcome      string `json:"outcome"`
	TokensBefore int    `json:"tokens_before,omitempty"`
	TokensAfter  int    `json:"tokens_after,omitempty"`
	Error        string `json:"error,omitempty"`
}

// printResult renders an autocompact.Result as JSON to stdout and maps a
// non-success outcome to a non-zero exit via SilentError, so a caller
// scripting against this binary can branch on exit status alone.
func printResult(cmd *cobra.Command, result autocompact.Result) error {
	out := resultJSON{
		Outcome:      string(result.Outcome),
		TokensBefore: result.TokensBefore,
		TokensAfter:  result.TokensAfter,
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	data, _ := json.Marshal(out)
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	switch result.Outcome {
	case autocompact.Success, autocompact.NotTriggered, autocompact.PendingReady:
		return nil
	case autocompact.AbortedGuard, autocompact.AbortedValidation, autocompact.SelectionMismatch, autocompact.InvalidPending, autocompact.NoSession:
		return NewSilentError(fmt.Errorf("compact: %s", result.Outcome))
	default:
		return NewSilentError(fmt.Errorf("compact: %s", result.Outcome))
	}
}

// printJSONError renders a pre-pipeline error (flag parsing, discovery
// failure) in the same JSON shape printResult uses, so callers scraping
// stdout see one consistent envelope regardless of which stage failed.
func printJSONError(cmd *cobra.Command, err error) error {
	data, _ := json.Marshal(resultJSON{Outcome: "error", Error: err.Error()})
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
