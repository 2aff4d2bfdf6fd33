// Package summarize implements the summarizer adapter: a thin shell-out to
// an LLM CLI with a tiered fallback ladder. The adapter knows nothing about
// transcript grammars — callers format a prompt from whatever visible
// messages they selected (see PromptEntry/FormatPrompt) and hand it a plain
// string.
//
// The shell-out uses --print --output-format json, a stdin-piped prompt,
// and a markdown-fence-stripped result field, returning a plain
// string-or-error rather than a structured summary object, wrapped in a
// haiku→sonnet→opus fallback ladder.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/eversession/core/internal/evscore"
)

// Ladder is the ordered model-tier fallback sequence.
var Ladder = []string{"haiku", "sonnet", "opus"}

// Generator shells out to the Claude CLI to produce a summary string.
// CommandRunner is injectable so tests don't spawn a real subprocess.
type Generator struct {
	ClaudePath    string
	CommandRunner func(ctx context.Context, name string, args ...string) *exec.Cmd
}

type cliResponse struct {
	Result string `json:"result"`
}

// Summarize runs prompt through the fallback ladder, returning the first
// tier's non-empty output. A failure at tier k (including an empty or
// whitespace-only result) moves to tier k+1; the ladder is exhausted after
// opus fails.
func (g *Generator) Summarize(ctx context.Context, prompt string) (summary string, tier string, err error) {
	var lastErr error
	var lastTier string
	for _, t := range Ladder {
		out, callErr := g.callOnce(ctx, t, prompt)
		if callErr == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out), t, nil
		}
		lastTier = t
		if callErr != nil {
			lastErr = callErr
		} else {
			lastErr = errors.New("empty summary output")
		}
	}
	return "", "", &evscore.SummarizerFailedError{Tier: lastTier, Cause: lastErr}
}

func (g *Generator) callOnce(ctx context.Context, model, prompt string) (string, error) {
	runner := g.CommandRunner
	if runner == nil {
		runner = exec.CommandContext
	}
	claudePath := g.ClaudePath
	if claudePath == "" {
		claudePath = "claude"
	}

	cmd := runner(ctx, claudePath, "--print", "--output-format", "json", "--model", model, "--setting-sources", "user")
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", fmt.Errorf("claude CLI not found: %w", err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("claude CLI failed (exit %d): %s", exitErr.ExitCode(), stderr.String())
		}
		return "", fmt.Errorf("failed to run claude CLI: %w", err)
	}

	var resp cliResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("failed to parse claude CLI response: %w", err)
	}
	return extractJSONFromMarkdown(resp.Result), nil
}

// extractJSONFromMarkdown strips a ```-fenced block around s, if present.
// The summary here is a plain string, but models still sometimes wrap prose
// in a fence, so it's unwrapped the same way a structured JSON result would
// be.
func extractJSONFromMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		return strings.TrimSpace(s)
	}
	return s
}

// PromptEntry is one visible message, in the shape the compact
// role-prefixed text format needs. Callers (the compaction planner) build
// these from whichever transcript grammar they hold; this package has no
// dependency on agenta/agentb.
type PromptEntry struct {
	Role string
	Text string
}

// FormatPrompt renders entries as a compact role-prefixed text block, one
// message per line, for the summarization prompt's <transcript> body.
func FormatPrompt(entries []PromptEntry) string {
	var b strings.Builder
	for _, e := range entries {
		if e.Text == "" {
			continue
		}
		b.WriteString(e.Role)
		b.WriteString(": ")
		b.WriteString(e.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
