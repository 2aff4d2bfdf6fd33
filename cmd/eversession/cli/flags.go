package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/compaction"
	"github.com/eversession/core/internal/discovery"
	"github.com/eversession/core/internal/evscore"
)

// parseAgentKind maps the --agent flag's raw value onto agent.Kind. No
// string-parsing helper exists in internal/agent itself, since the enum is
// a pure vocabulary type — this mapping is CLI-boundary glue, not domain
// logic, so it lives here rather than growing internal/agent a public API
// surface the core never needs.
func parseAgentKind(s string) (agent.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "agenta", "claude":
		return agent.KindA, nil
	case "b", "agentb", "codex":
		return agent.KindB, nil
	default:
		return "", fmt.Errorf("unrecognized --agent %q (want \"a\" or \"b\")", s)
	}
}

// parseRemovalMode maps the --removal-mode flag onto agent.RemovalMode.
func parseRemovalMode(s string) (agent.RemovalMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "delete":
		return agent.RemovalDelete, nil
	case "tombstone":
		return agent.RemovalTombstone, nil
	default:
		return "", fmt.Errorf("unrecognized --removal-mode %q (want \"delete\" or \"tombstone\")", s)
	}
}

// parseAmount maps the --amount flag onto a compaction.Amount. Accepted
// forms: "40%" (percent of visible messages), "25" (a bare message count),
// "last:N" (keep the last N, remove the rest), or "tokens:N" (a token
// budget walked oldest-first).
func parseAmount(s string) (compaction.Amount, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "%"):
		n, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
		if err != nil {
			return compaction.Amount{}, fmt.Errorf("invalid --amount %q: %w", s, err)
		}
		return compaction.Amount{
			Mode:     agent.AmountMessages,
			Messages: agent.CountOrPercent{Percent: n},
		}, nil
	case strings.HasPrefix(s, "tokens:"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "tokens:"))
		if err != nil {
			return compaction.Amount{}, fmt.Errorf("invalid --amount %q: %w", s, err)
		}
		return compaction.Amount{
			Mode:   agent.AmountTokens,
			Tokens: agent.TokenBudget{Budget: n},
		}, nil
	case strings.HasPrefix(s, "last:"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "last:"))
		if err != nil {
			return compaction.Amount{}, fmt.Errorf("invalid --amount %q: %w", s, err)
		}
		return compaction.Amount{
			Mode:     agent.AmountMessages,
			Messages: agent.CountOrPercent{Count: n, KeepLast: true},
		}, nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return compaction.Amount{}, fmt.Errorf("invalid --amount %q: want a percent (\"40%%\"), a count, \"last:N\" or \"tokens:N\"", s)
		}
		return compaction.Amount{
			Mode:     agent.AmountMessages,
			Messages: agent.CountOrPercent{Count: n},
		}, nil
	}
}

// claudeHome returns the Agent A transcript root: ~/.claude, overridable by
// EVS_CLAUDE_HOME for environments where the home directory convention
// doesn't apply (e.g. a test sandbox).
func claudeHome() string {
	if v := os.Getenv("EVS_CLAUDE_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// resolveTarget turns the --path/--session-id/--agent/--cwd flags into a
// concrete (transcript path, agent kind, session id), running session
// discovery (internal/discovery) when an explicit path isn't given.
func resolveTarget(evsCtx *evscore.Context, path, sessionID, agentFlag, cwd string) (string, agent.Kind, string, error) {
	if path != "" {
		kind, err := parseAgentKind(agentFlag)
		if err != nil {
			return "", "", "", err
		}
		return path, kind, sessionID, nil
	}

	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", "", "", fmt.Errorf("resolving working directory: %w", err)
		}
		cwd = wd
	}

	opts := discovery.Options{Cwd: cwd, ExplicitID: sessionID}

	var result *discovery.Result
	if agentFlag != "" {
		kind, err := parseAgentKind(agentFlag)
		if err != nil {
			return "", "", "", err
		}
		switch kind {
		case agent.KindA:
			result = discovery.DiscoverA(claudeHome(), opts)
		case agent.KindB:
			result = discovery.DiscoverB(evsCtx.CodexHome, opts)
		}
	} else {
		result = discovery.Discover(claudeHome(), evsCtx.CodexHome, opts)
	}

	if result == nil || result.Principal == nil {
		return "", "", "", fmt.Errorf("no session discovered for cwd %q", cwd)
	}
	return result.Principal.Path, result.Principal.Kind, result.Principal.SessionID, nil
}
