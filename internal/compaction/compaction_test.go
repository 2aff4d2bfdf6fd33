package compaction

import (
	"testing"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/jsonl"
	"github.com/stretchr/testify/require"
)

func parseA(data string) *agenta.Transcript {
	return agenta.Parse(jsonl.Parse([]byte(data)))
}

func parseB(data string) *agentb.Transcript {
	return agentb.Parse(jsonl.Parse([]byte(data)))
}

func TestShouldTrigger(t *testing.T) {
	require.True(t, ShouldTrigger(1000, 500))
	require.False(t, ShouldTrigger(100, 500))
	require.False(t, ShouldTrigger(1000, 0))
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

func TestPlanARemovesOldestKeepingRoot(t *testing.T) {
	tr := parseA(chainA(6))
	sel, err := PlanA(tr, Options{Amount: Amount{Mode: agent.AmountMessages, Messages: agent.CountOrPercent{Count: 3}}})
	require.NoError(t, err)
	require.False(t, sel.Empty())
	require.Equal(t, 3, sel.RemoveCount)
	require.NotContains(t, sel.aUUIDs, "root")
}

func TestPlanAKeepLastRejectsPercent(t *testing.T) {
	tr := parseA(chainA(4))
	_, err := PlanA(tr, Options{Amount: Amount{Mode: agent.AmountMessages, Messages: agent.CountOrPercent{KeepLast: true, Percent: 50}}})
	require.Error(t, err)
}

func TestApplyARewritesRootInPlace(t *testing.T) {
	tr := parseA(chainA(4))
	sel, err := PlanA(tr, Options{Amount: Amount{Mode: agent.AmountMessages, Messages: agent.CountOrPercent{Count: 2}}})
	require.NoError(t, err)
	require.False(t, sel.Empty())

	changes := ApplyA(tr, sel, "summary of older turns")
	require.NotEmpty(t, changes)

	root, ok := tr.ByUUID("root")
	require.True(t, ok)
	require.Equal(t, "summary of older turns", root.ContentText)
}

func TestPlanBSelectsFromVisibleResponseItems(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"response_item","payload":{"type":"message","role":"user","text":"hello there"}}
{"timestamp":"t2","type":"response_item","payload":{"type":"message","role":"assistant","text":"hi, how can I help you today"}}
{"timestamp":"t3","type":"response_item","payload":{"type":"message","role":"assistant","text":"another turn of conversation"}}
`
	tr := parseB(data)
	sel, err := PlanB(tr, Options{Amount: Amount{Mode: agent.AmountMessages, Messages: agent.CountOrPercent{Count: 1}}})
	require.NoError(t, err)
	require.Equal(t, 1, sel.RemoveCount)
}

func TestApplyBInsertsCompactedLine(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"response_item","payload":{"type":"message","role":"user","text":"hello there"}}
{"timestamp":"t2","type":"response_item","payload":{"type":"message","role":"assistant","text":"hi, how can I help you today"}}
{"timestamp":"t3","type":"response_item","payload":{"type":"message","role":"assistant","text":"another turn of conversation"}}
`
	tr := parseB(data)
	sel, err := PlanB(tr, Options{Amount: Amount{Mode: agent.AmountMessages, Messages: agent.CountOrPercent{Count: 2}}})
	require.NoError(t, err)
	require.False(t, sel.Empty())

	changes := ApplyB(tr, sel, "summary text")
	require.NotEmpty(t, changes)

	_, ok := tr.LastCompacted()
	require.True(t, ok)
}

func TestFingerprintStableAcrossReparse(t *testing.T) {
	tr1 := parseA(chainA(5))
	sel1, err := PlanA(tr1, Options{Amount: Amount{Mode: agent.AmountMessages, Messages: agent.CountOrPercent{Count: 2}}})
	require.NoError(t, err)

	tr2 := parseA(chainA(5))
	sel2, err := PlanA(tr2, Options{Amount: Amount{Mode: agent.AmountMessages, Messages: agent.CountOrPercent{Count: 2}}})
	require.NoError(t, err)

	require.Equal(t, sel1.Fingerprint, sel2.Fingerprint)
}

func TestPromptEntriesAExtractsRoleAndText(t *testing.T) {
	tr := parseA(chainA(3))
	chain := tr.ActiveChain()
	entries := PromptEntriesA(chain, []string{chain[1].UUID, chain[2].UUID})
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, "assistant", e.Role)
		require.NotEmpty(t, e.Text)
	}
}

func TestPinnedContextLinesMatchesFixedMarkersOnly(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"response_item","payload":{"type":"message","role":"system","text":"you are a coding agent"}}
{"timestamp":"t2","type":"response_item","payload":{"type":"message","role":"user","text":"<environment_context>\n  <cwd>/repo</cwd>\n</environment_context>"}}
{"timestamp":"t3","type":"response_item","payload":{"type":"message","role":"user","text":"please fix the failing test"}}
{"timestamp":"t4","type":"response_item","payload":{"type":"message","role":"assistant","text":"looking into it"}}
`
	tr := parseB(data)
	pinned := pinnedContextLines(tr)

	require.Contains(t, pinned, 2) // system role, pinned regardless of text
	require.Contains(t, pinned, 3) // user role, carries <environment_context> marker
	require.NotContains(t, pinned, 4) // plain user turn with no marker substring
}

func TestHasPinnedContextMarker(t *testing.T) {
	require.True(t, hasPinnedContextMarker("<environment_context>\ncwd=/repo\n</environment_context>"))
	require.True(t, hasPinnedContextMarker("see AGENTS.md for project conventions"))
	require.True(t, hasPinnedContextMarker("<INSTRUCTIONS>be concise</INSTRUCTIONS>"))
	require.True(t, hasPinnedContextMarker("available tools: <tools>shell, apply_patch</tools>"))
	require.False(t, hasPinnedContextMarker("please fix the failing test"))
}

func TestPromptEntriesBExtractsRoleAndText(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"response_item","payload":{"type":"message","role":"user","text":"hello there"}}
{"timestamp":"t2","type":"response_item","payload":{"type":"message","role":"assistant","text":"hi, how can I help you today"}}
`
	tr := parseB(data)
	var lines []int
	for _, l := range tr.Lines {
		if l.Type == agentb.LineResponse {
			lines = append(lines, l.LineNumber)
		}
	}
	entries := PromptEntriesB(tr, lines)
	require.NotEmpty(t, entries)
	require.Equal(t, "user", entries[0].Role)
	require.Equal(t, "hello there", entries[0].Text)
}
