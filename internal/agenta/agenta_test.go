package agenta

import (
	"testing"

	"github.com/eversession/core/internal/jsonl"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, data string) *Transcript {
	t.Helper()
	records := jsonl.Parse([]byte(data))
	return Parse(records)
}

func TestParseBuildsEntriesWithParentChain(t *testing.T) {
	data := `{"type":"user","uuid":"u1","parentUuid":null,"timestamp":"2024-01-01T00:00:00Z","message":{"content":"hello"}}
{"type":"assistant","uuid":"a1","parentUuid":"u1","timestamp":"2024-01-01T00:00:01Z","message":{"id":"m1","content":[{"type":"text","text":"hi"}]}}
`
	tr := mustParse(t, data)
	require.Len(t, tr.Entries, 2)

	root, ok := tr.ByUUID("u1")
	require.True(t, ok)
	require.Equal(t, EntryUser, root.Type)
	require.Equal(t, "", root.ParentUUID)
	require.False(t, root.ContentIsBlocks)
	require.Equal(t, "hello", root.ContentText)

	asst, ok := tr.ByUUID("a1")
	require.True(t, ok)
	require.Equal(t, "u1", asst.ParentUUID)
	require.True(t, asst.ContentIsBlocks)
	require.Len(t, asst.Content, 1)
	require.Equal(t, BlockText, asst.Content[0].Type)
}

func TestActiveChainPicksLatestTimestampLeaf(t *testing.T) {
	data := `{"type":"user","uuid":"root","parentUuid":null,"timestamp":"2024-01-01T00:00:00Z","message":{"content":"start"}}
{"type":"assistant","uuid":"branch1","parentUuid":"root","timestamp":"2024-01-01T00:01:00Z","message":{"content":"b1"}}
{"type":"assistant","uuid":"branch2","parentUuid":"root","timestamp":"2024-01-01T00:02:00Z","message":{"content":"b2"}}
`
	tr := mustParse(t, data)
	tr.BuildTree()
	chain := tr.ActiveChain()
	require.Len(t, chain, 2)
	require.Equal(t, "root", chain[0].UUID)
	require.Equal(t, "branch2", chain[1].UUID, "later timestamp must win")
}

func TestActiveChainBreaksTiesByFileOrder(t *testing.T) {
	data := `{"type":"user","uuid":"root","parentUuid":null,"timestamp":"t0","message":{"content":"start"}}
{"type":"assistant","uuid":"branch1","parentUuid":"root","timestamp":"t1","message":{"content":"b1"}}
{"type":"assistant","uuid":"branch2","parentUuid":"root","timestamp":"t1","message":{"content":"b2"}}
`
	tr := mustParse(t, data)
	tr.BuildTree()
	chain := tr.ActiveChain()
	require.Equal(t, "branch2", chain[len(chain)-1].UUID, "later line wins a timestamp tie")
}

func TestWalkToRootStopsOnCycle(t *testing.T) {
	// a1 -> a2 -> a1 forms a cycle; the walk must terminate, not hang.
	data := `{"type":"assistant","uuid":"a1","parentUuid":"a2","timestamp":"t0","message":{"content":"x"}}
{"type":"assistant","uuid":"a2","parentUuid":"a1","timestamp":"t0","message":{"content":"y"}}
`
	tr := mustParse(t, data)
	leaf, _ := tr.ByUUID("a1")
	chain := tr.walkToRoot(leaf)
	require.LessOrEqual(t, len(chain), 2)
}

func TestMergeStreamingTurnsGroupsByMessageID(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":null,"timestamp":"t0","message":{"id":"m1","content":[{"type":"text","text":"frag1"}]}}
{"type":"assistant","uuid":"a2","parentUuid":"a1","timestamp":"t1","message":{"id":"m1","content":[{"type":"text","text":"frag2"}]}}
{"type":"assistant","uuid":"a3","parentUuid":"a2","timestamp":"t2","message":{"id":"m2","content":[{"type":"text","text":"other turn"}]}}
`
	tr := mustParse(t, data)
	turns := MergeStreamingTurns(tr.Entries)
	require.Len(t, turns, 2)
	require.Len(t, turns[0].Fragments, 2)
	require.Len(t, turns[0].MergedContent(), 2)
	require.Len(t, turns[1].Fragments, 1)
}

func TestHasThinkingFirst(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":null,"timestamp":"t0","message":{"content":[{"type":"thinking","text":"reasoning"},{"type":"text","text":"answer"}]}}
{"type":"assistant","uuid":"a2","parentUuid":"a1","timestamp":"t1","message":{"content":[{"type":"text","text":"answer only"}]}}
`
	tr := mustParse(t, data)
	e1, _ := tr.ByUUID("a1")
	e2, _ := tr.ByUUID("a2")
	require.True(t, e1.HasThinkingFirst())
	require.False(t, e2.HasThinkingFirst())
}

func TestToolUseAndResultPairing(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":null,"timestamp":"t0","message":{"content":[{"type":"tool_use","id":"tu1","name":"Write","input":{}}]}}
{"type":"user","uuid":"u1","parentUuid":"a1","timestamp":"t1","message":{"content":[{"type":"tool_result","tool_use_id":"tu1"}]}}
`
	tr := mustParse(t, data)
	a1, _ := tr.ByUUID("a1")
	u1, _ := tr.ByUUID("u1")
	require.Equal(t, []string{"tu1"}, a1.ToolUseIDs())
	require.Equal(t, []string{"tu1"}, u1.ToolResultIDs())
}

func TestSetParentUUIDRewritesRecord(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":"root","timestamp":"t0","message":{"content":"x"}}
`
	tr := mustParse(t, data)
	a1, _ := tr.ByUUID("a1")
	a1.SetParentUUID("newparent")

	out, err := jsonl.Stringify(recordsOf(tr))
	require.NoError(t, err)
	require.Contains(t, string(out), `"parentUuid":"newparent"`)
}

func TestTombstonePreservesUUID(t *testing.T) {
	data := `{"type":"user","uuid":"u1","parentUuid":null,"timestamp":"t0","message":{"content":"secret"}}
`
	tr := mustParse(t, data)
	u1, _ := tr.ByUUID("u1")
	u1.Tombstone()

	out, err := jsonl.Stringify(recordsOf(tr))
	require.NoError(t, err)
	require.Contains(t, string(out), `"uuid":"u1"`)
	require.NotContains(t, string(out), "secret")
}

func recordsOf(t *Transcript) []jsonl.Record {
	out := make([]jsonl.Record, len(t.Records))
	for i, r := range t.Records {
		out[i] = *r
	}
	return out
}
