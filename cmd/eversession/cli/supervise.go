package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/control"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/evslog"
	"github.com/eversession/core/internal/supervisor"
	"github.com/eversession/core/internal/telemetry"
	"github.com/spf13/cobra"
)

type superviseFlags struct {
	agentFlag      string
	sessionID      string
	transcriptPath string
	controlDir     string
	amount         string
	model          string
	removalMode    string
	telemetryOn    bool
}

func newSuperviseCmd() *cobra.Command {
	var f superviseFlags

	cmd := &cobra.Command{
		Use:   "supervise -- <command> [args...]",
		Short: "Own a child agent's lifecycle: spawn it, watch for reload requests, apply pending compacts, restart",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervise(cmd, f, args)
		},
	}

	cmd.Flags().StringVar(&f.agentFlag, "agent", "", "agent kind: a (chat-style) or b (rollout-style)")
	cmd.Flags().StringVar(&f.sessionID, "session-id", "", "session id this supervisor owns")
	cmd.Flags().StringVar(&f.transcriptPath, "transcript-path", "", "the live transcript this session's child writes to")
	cmd.Flags().StringVar(&f.controlDir, "control-dir", "", "directory for handshake.json/control.log/active-runs.json")
	cmd.Flags().StringVar(&f.amount, "amount", "30%", `how much to remove when applying a pending compact`)
	cmd.Flags().StringVar(&f.model, "model", "", "model identifier recorded alongside an applied compaction")
	cmd.Flags().StringVar(&f.removalMode, "removal-mode", "delete", "delete or tombstone")
	cmd.Flags().BoolVar(&f.telemetryOn, "telemetry", false, "opt in to best-effort outcome telemetry")

	return cmd
}

func runSupervise(cmd *cobra.Command, f superviseFlags, args []string) error {
	evsCtx := evscore.FromEnvironment()
	logger := evslog.NewFromEnv()

	if f.transcriptPath == "" || f.sessionID == "" {
		return NewSilentError(fmt.Errorf("supervise: --transcript-path and --session-id are required"))
	}
	kind, err := parseAgentKind(f.agentFlag)
	if err != nil {
		return err
	}
	amount, err := parseAmount(f.amount)
	if err != nil {
		return err
	}
	removalMode, err := parseRemovalMode(f.removalMode)
	if err != nil {
		return err
	}

	controlDir := f.controlDir
	if controlDir == "" {
		if kind == agent.KindA {
			controlDir = evsCtx.ClaudeControlDir
		} else {
			controlDir = evsCtx.CodexControlDir
		}
	}
	if controlDir == "" {
		return NewSilentError(fmt.Errorf("supervise: --control-dir is required when the corresponding control-dir environment variable is unset"))
	}

	enabled := f.telemetryOn
	telemetryClient := telemetry.NewClient(Version, &enabled)
	defer telemetryClient.Close()

	commandName, commandArgs := args[0], args[1:]
	opts := supervisor.Options{
		Ctx:            evsCtx,
		ControlDir:     controlDir,
		SessionID:      f.sessionID,
		Kind:           kind,
		TranscriptPath: f.transcriptPath,
		NewCommand: func(runID, resumeArg string) *exec.Cmd {
			fullArgs := append([]string{}, commandArgs...)
			if resumeArg != "" {
				fullArgs = append(fullArgs, "--resume", resumeArg)
			}
			c := exec.Command(commandName, fullArgs...) //nolint:gosec // commandName/args come from the operator's own invocation, not untrusted input
			c.Env = append(os.Environ(), supervisorRunEnv(kind, controlDir, runID)...)
			return c
		},
		ResumeArg: func(h control.Handshake) string {
			if kind == agent.KindA {
				return h.SessionID
			}
			return h.ThreadID
		},
		RemovalMode: removalMode,
		Amount:      amount,
		Model:       f.model,
		Telemetry:   telemetryClient,
	}

	logger.Info(cmd.Context(), "supervisor starting", "session_id", f.sessionID, "agent", string(kind))
	code := supervisor.Run(cmd.Context(), opts)
	if code != 0 {
		return NewSilentError(fmt.Errorf("supervise: child exited %d", code))
	}
	return nil
}

// supervisorRunEnv sets the environment variables an installed agent-side
// hook reads back to identify which supervisor generation it's reporting a
// handshake to.
func supervisorRunEnv(kind agent.Kind, controlDir, runID string) []string {
	if kind == agent.KindA {
		return []string{
			"EVS_CLAUDE_CONTROL_DIR=" + controlDir,
			"EVS_CLAUDE_RUN_ID=" + runID,
		}
	}
	return []string{
		"EVS_CODEX_CONTROL_DIR=" + controlDir,
		"EVS_CODEX_RUN_ID=" + runID,
	}
}
