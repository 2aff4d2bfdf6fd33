package summarize

import (
	"context"
	"os/exec"
	"testing"

	"github.com/eversession/core/internal/evscore"
	"github.com/stretchr/testify/require"
)

// fakeRunner builds a CommandRunner that replays canned stdout per model
// tier via a "sh -c" echo, so no real claude binary is ever invoked.
func fakeRunner(t *testing.T, byModel map[string]string, byModelExit map[string]int) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		model := ""
		for i, a := range args {
			if a == "--model" && i+1 < len(args) {
				model = args[i+1]
			}
		}
		if code, failing := byModelExit[model]; failing {
			return exec.CommandContext(ctx, "sh", "-c", "exit "+itoa(code))
		}
		out := byModel[model]
		return exec.CommandContext(ctx, "sh", "-c", "cat <<'EOF'\n"+out+"\nEOF")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestSummarizeReturnsHaikuOnFirstSuccess(t *testing.T) {
	g := &Generator{
		CommandRunner: fakeRunner(t, map[string]string{
			"haiku": `{"result":"a short summary"}`,
		}, nil),
	}
	summary, tier, err := g.Summarize(context.Background(), "prompt text")
	require.NoError(t, err)
	require.Equal(t, "a short summary", summary)
	require.Equal(t, "haiku", tier)
}

func TestSummarizeFallsBackOnEmptyResult(t *testing.T) {
	g := &Generator{
		CommandRunner: fakeRunner(t, map[string]string{
			"haiku":  `{"result":"   "}`,
			"sonnet": `{"result":"sonnet wrote this"}`,
		}, nil),
	}
	summary, tier, err := g.Summarize(context.Background(), "prompt text")
	require.NoError(t, err)
	require.Equal(t, "sonnet wrote this", summary)
	require.Equal(t, "sonnet", tier)
}

func TestSummarizeFallsBackOnNonzeroExit(t *testing.T) {
	g := &Generator{
		CommandRunner: fakeRunner(t, map[string]string{
			"opus": `{"result":"opus recovered"}`,
		}, map[string]int{
			"haiku":  1,
			"sonnet": 1,
		}),
	}
	summary, tier, err := g.Summarize(context.Background(), "prompt text")
	require.NoError(t, err)
	require.Equal(t, "opus recovered", summary)
	require.Equal(t, "opus", tier)
}

func TestSummarizeExhaustsLadderReturnsSummarizerFailedError(t *testing.T) {
	g := &Generator{
		CommandRunner: fakeRunner(t, nil, map[string]int{
			"haiku":  1,
			"sonnet": 1,
			"opus":   1,
		}),
	}
	_, _, err := g.Summarize(context.Background(), "prompt text")
	require.Error(t, err)
	var sfe *evscore.SummarizerFailedError
	require.ErrorAs(t, err, &sfe)
	require.Equal(t, "opus", sfe.Tier)
}

func TestSummarizeStripsMarkdownFence(t *testing.T) {
	g := &Generator{
		CommandRunner: fakeRunner(t, map[string]string{
			"haiku": `{"result":"` + "```json\\nfenced summary\\n```" + `"}`,
		}, nil),
	}
	summary, _, err := g.Summarize(context.Background(), "prompt text")
	require.NoError(t, err)
	require.Equal(t, "fenced summary", summary)
}

func TestFormatPromptSkipsEmptyEntries(t *testing.T) {
	out := FormatPrompt([]PromptEntry{
		{Role: "user", Text: "hello"},
		{Role: "assistant", Text: ""},
		{Role: "assistant", Text: "hi there"},
	})
	require.Equal(t, "user: hello\nassistant: hi there\n", out)
}
