package cli

import (
	"encoding/json"
	"fmt"

	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/fork"
	"github.com/spf13/cobra"
)

type forkFlags struct {
	path      string
	sessionID string
	agentFlag string
	cwd       string
}

func newForkCmd() *cobra.Command {
	var f forkFlags

	cmd := &cobra.Command{
		Use:   "fork",
		Short: "Copy a transcript under a freshly generated session id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFork(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.path, "path", "", "transcript file path (skips discovery)")
	cmd.Flags().StringVar(&f.sessionID, "session-id", "", "explicit session id to discover and fork")
	cmd.Flags().StringVar(&f.agentFlag, "agent", "", "agent kind: a (chat-style) or b (rollout-style)")
	cmd.Flags().StringVar(&f.cwd, "cwd", "", "working directory to discover a session for (defaults to the current directory)")

	return cmd
}

type forkResultJSON struct {
	NewID   string `json:"new_id,omitempty"`
	NewPath string `json:"new_path,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runFork(cmd *cobra.Command, f forkFlags) error {
	evsCtx := evscore.FromEnvironment()

	path, kind, _, err := resolveTarget(evsCtx, f.path, f.sessionID, f.agentFlag, f.cwd)
	if err != nil {
		return NewSilentError(printForkError(cmd, err))
	}

	result, err := fork.Fork(path, kind)
	if err != nil {
		return NewSilentError(printForkError(cmd, err))
	}

	data, _ := json.Marshal(forkResultJSON{NewID: result.NewID, NewPath: result.NewPath})
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func printForkError(cmd *cobra.Command, err error) error {
	data, _ := json.Marshal(forkResultJSON{Error: err.Error()})
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
