package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/discovery"
	"github.com/eversession/core/internal/evscore"
	"github.com/spf13/cobra"
)

type discoverFlags struct {
	cwd        string
	sessionID  string
	agentFlag  string
	match      string
}

func newDiscoverCmd() *cobra.Command {
	var f discoverFlags

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find the live transcript for a working directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.cwd, "cwd", "", "working directory to discover a session for (defaults to the current directory)")
	cmd.Flags().StringVar(&f.sessionID, "session-id", "", "explicit session id")
	cmd.Flags().StringVar(&f.agentFlag, "agent", "", "agent kind: a (chat-style) or b (rollout-style); tries both when omitted")
	cmd.Flags().StringVar(&f.match, "match", "", "content substring the session's tail must contain")

	return cmd
}

type discoverResultJSON struct {
	Path       string `json:"path,omitempty"`
	Agent      string `json:"agent,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	Error      string `json:"error,omitempty"`
}

func runDiscover(cmd *cobra.Command, f discoverFlags) error {
	evsCtx := evscore.FromEnvironment()

	cwd := f.cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return NewSilentError(printDiscoverError(cmd, err))
		}
		cwd = wd
	}

	opts := discovery.Options{Cwd: cwd, ExplicitID: f.sessionID, Match: f.match}

	var result *discovery.Result
	if f.agentFlag != "" {
		kind, err := parseAgentKind(f.agentFlag)
		if err != nil {
			return NewSilentError(printDiscoverError(cmd, err))
		}
		if kind == agent.KindA {
			result = discovery.DiscoverA(claudeHome(), opts)
		} else {
			result = discovery.DiscoverB(evsCtx.CodexHome, opts)
		}
	} else {
		result = discovery.Discover(claudeHome(), evsCtx.CodexHome, opts)
	}

	if result == nil || result.Principal == nil {
		return NewSilentError(printDiscoverError(cmd, fmt.Errorf("no session discovered for cwd %q", cwd)))
	}

	data, _ := json.Marshal(discoverResultJSON{
		Path:       result.Principal.Path,
		Agent:      string(result.Principal.Kind),
		SessionID:  result.Principal.SessionID,
		Method:     string(result.Principal.Method),
		Confidence: string(result.Confidence),
	})
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func printDiscoverError(cmd *cobra.Command, err error) error {
	data, _ := json.Marshal(discoverResultJSON{Error: err.Error()})
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
