package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/jsonl"
	"github.com/eversession/core/internal/pending"
	"github.com/eversession/core/internal/sessionstore"
	"github.com/eversession/core/internal/tokencount"
	"github.com/spf13/cobra"
)

type statusFlags struct {
	path      string
	sessionID string
	agentFlag string
	cwd       string
}

func newStatusCmd() *cobra.Command {
	var f statusFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a session's estimated token count, pending compact and last compaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.path, "path", "", "transcript file path (skips discovery)")
	cmd.Flags().StringVar(&f.sessionID, "session-id", "", "explicit session id")
	cmd.Flags().StringVar(&f.agentFlag, "agent", "", "agent kind: a (chat-style) or b (rollout-style)")
	cmd.Flags().StringVar(&f.cwd, "cwd", "", "working directory to discover a session for (defaults to the current directory)")

	return cmd
}

type statusJSON struct {
	SessionID     string                    `json:"session_id"`
	Path          string                    `json:"path"`
	Agent         string                    `json:"agent"`
	EstimatedTokens int                     `json:"estimated_tokens"`
	PendingCompact *pending.Record          `json:"pending_compact,omitempty"`
	LastCompact   *sessionstore.LastCompact `json:"last_compact,omitempty"`
	Error         string                    `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, f statusFlags) error {
	evsCtx := evscore.FromEnvironment()

	path, kind, sessionID, err := resolveTarget(evsCtx, f.path, f.sessionID, f.agentFlag, f.cwd)
	if err != nil {
		return NewSilentError(printStatusError(cmd, err))
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from session discovery or an explicit flag, not unchecked user input
	if err != nil {
		return NewSilentError(printStatusError(cmd, err))
	}
	records := jsonl.Parse(data)

	var estimated int
	switch kind {
	case agent.KindA:
		tr := agenta.Parse(records)
		estimated = tokencount.A(tr.ActiveChain())
	default:
		tr := agentb.Parse(records)
		estimated = tokencount.B(tr)
	}

	out := statusJSON{
		SessionID:       sessionID,
		Path:            path,
		Agent:           string(kind),
		EstimatedTokens: estimated,
	}

	if sessionID != "" {
		dir := sessionstore.Dir(evsCtx.GlobalRoot, sessionID)
		if state, err := sessionstore.LoadState(dir); err == nil {
			out.LastCompact = state.LastCompact
		}
		if rec, err := pending.Load(dir); err == nil {
			out.PendingCompact = rec
		}
	}

	payload, _ := json.Marshal(out)
	fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return nil
}

func printStatusError(cmd *cobra.Command, err error) error {
	data, _ := json.Marshal(statusJSON{Error: err.Error()})
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
