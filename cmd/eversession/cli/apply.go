package cli

import (
	"github.com/eversession/core/internal/autocompact"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/evslog"
	"github.com/spf13/cobra"
)

type applyFlags struct {
	path        string
	sessionID   string
	agentFlag   string
	cwd         string
	amount      string
	model       string
	removalMode string
}

func newApplyCmd() *cobra.Command {
	var f applyFlags

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a previously stashed pending-compact record",
		Long: "apply re-locks the transcript, recomputes the selection fresh " +
			"against the live file, and rewrites it only if the recomputed " +
			"selection still matches the one stashed when the pending record " +
			"was created. --amount and --model must match the compact " +
			"invocation that produced the pending record.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApply(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.path, "path", "", "transcript file path (skips discovery)")
	cmd.Flags().StringVar(&f.sessionID, "session-id", "", "explicit session id")
	cmd.Flags().StringVar(&f.agentFlag, "agent", "", "agent kind: a (chat-style) or b (rollout-style)")
	cmd.Flags().StringVar(&f.cwd, "cwd", "", "working directory to discover a session for (defaults to the current directory)")
	cmd.Flags().StringVar(&f.amount, "amount", "30%", "the --amount the pending compact was planned with")
	cmd.Flags().StringVar(&f.model, "model", "", "the --model the pending compact was planned with")
	cmd.Flags().StringVar(&f.removalMode, "removal-mode", "delete", "delete or tombstone")

	return cmd
}

func runApply(cmd *cobra.Command, f applyFlags) error {
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

	result := autocompact.ApplyPending(autocompact.ApplyOptions{
		Ctx:         evsCtx,
		Path:        path,
		Kind:        kind,
		SessionID:   sessionID,
		Amount:      amount,
		Model:       f.model,
		RemovalMode: removalMode,
	})

	logger.Info(ctx, "apply finished", "outcome", string(result.Outcome), "session_id", sessionID)

	return printResult(cmd, result)
}
