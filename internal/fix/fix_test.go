package fix

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

func TestMergeStreamingFragmentsMovesThinkingFirst(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":null,"timestamp":"t0","message":{"id":"m1","content":[{"type":"text","text":"frag1"}]}}
{"type":"assistant","uuid":"a2","parentUuid":"a1","timestamp":"t1","message":{"id":"m1","content":[{"type":"thinking","text":"reasoning"},{"type":"text","text":"frag2"}]}}
`
	tr := parseA(data)
	changes := A(tr, Options{RemovalMode: agent.RemovalDelete})
	require.NotEmpty(t, changes)

	require.Len(t, tr.Entries, 1, "fragments must collapse to one surviving entry")
	survivor := tr.Entries[0]
	require.Equal(t, agenta.BlockThinking, survivor.Content[0].Type, "thinking block must be first after merge")
}

func TestMergeIsIdempotent(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":null,"timestamp":"t0","message":{"id":"m1","content":[{"type":"thinking","text":"r"},{"type":"text","text":"done"}]}}
`
	tr := parseA(data)
	first := A(tr, Options{RemovalMode: agent.RemovalDelete})
	require.Empty(t, first)
	second := A(tr, Options{RemovalMode: agent.RemovalDelete})
	require.Empty(t, second)
}

func TestThinkingRestartBreaksIntoNewHead(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":null,"timestamp":"t0","message":{"id":"m1","content":[{"type":"text","text":"frag1"}]}}
{"type":"assistant","uuid":"a2","parentUuid":"a1","timestamp":"t1","message":{"id":"m1","content":[{"type":"thinking","text":"restart"},{"type":"text","text":"frag2"}]}}
`
	tr := parseA(data)
	A(tr, Options{RemovalMode: agent.RemovalDelete})

	require.Len(t, tr.Entries, 1)
	require.Equal(t, "a2", tr.Entries[0].UUID, "the fragment that restarts with thinking becomes the sole survivor")
}

func TestRemoveOrphanToolResultA(t *testing.T) {
	data := `{"type":"user","uuid":"u1","parentUuid":null,"timestamp":"t0","message":{"content":[{"type":"tool_result","tool_use_id":"ghost"}]}}
`
	tr := parseA(data)
	changes := A(tr, Options{RemovalMode: agent.RemovalDelete})
	require.NotEmpty(t, changes)

	u1, _ := tr.ByUUID("u1")
	require.Empty(t, u1.Content)
}

func TestTombstonePreservesReferenceability(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":null,"timestamp":"t0","message":{"id":"m1","content":[{"type":"text","text":"frag1"}]}}
{"type":"assistant","uuid":"a2","parentUuid":"a1","timestamp":"t1","message":{"id":"m1","content":[{"type":"text","text":"frag2"}]}}
{"type":"user","uuid":"u1","parentUuid":"a1","timestamp":"t2","message":{"content":"child of a1"}}
`
	tr := parseA(data)
	A(tr, Options{RemovalMode: agent.RemovalTombstone})

	_, ok := tr.ByUUID("a1")
	require.True(t, ok, "tombstoned entry must still be addressable by uuid")
	u1, _ := tr.ByUUID("u1")
	require.Equal(t, "a1", u1.ParentUUID, "children of a tombstoned entry keep their parent pointer")
}

func TestNormalizeSandboxPolicyB(t *testing.T) {
	data := `{"timestamp":"t0","type":"turn_context","payload":{"sandbox_policy":{"mode":"read-only"}}}
`
	tr := parseB(data)
	changes := B(tr, Options{})
	require.NotEmpty(t, changes)

	value, legacy, present := tr.Lines[0].SandboxPolicyMode()
	require.True(t, present)
	require.False(t, legacy)
	require.Equal(t, "read-only", value)
}

func TestFixBIsIdempotent(t *testing.T) {
	data := `{"timestamp":"t0","type":"turn_context","payload":{"sandbox_policy":{"type":"read-only"}}}
`
	tr := parseB(data)
	changes := B(tr, Options{})
	require.Empty(t, changes)
}

func TestRemoveOrphanOutputB(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"response_item","payload":{"type":"function_call_output","call_id":"ghost"}}
`
	tr := parseB(data)
	changes := B(tr, Options{})
	require.NotEmpty(t, changes)
	require.Len(t, tr.Lines, 1, "orphan output line must be removed")
}

func TestInsertAbortedOutputA(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":null,"timestamp":"t0","message":{"content":[{"type":"tool_use","id":"tu1","name":"Write","input":{}}]}}
`
	tr := parseA(data)
	changes := A(tr, Options{RemovalMode: agent.RemovalDelete, InsertAbortedOutputs: true})
	require.NotEmpty(t, changes)
	require.Len(t, tr.Entries, 2)

	out, err := jsonl.Stringify(toRecords(tr))
	require.NoError(t, err)
	require.Contains(t, string(out), "tool_result")
}

func TestInsertAbortedOutputB(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"response_item","payload":{"type":"function_call","call_id":"c1"}}
`
	tr := parseB(data)
	changes := B(tr, Options{InsertAbortedOutputs: true})
	require.NotEmpty(t, changes)
	require.Len(t, tr.Lines, 3)
	require.Equal(t, agentb.RespFunctionCallOutput, tr.Lines[2].ItemType)
}

func toRecords(t *agenta.Transcript) []jsonl.Record {
	out := make([]jsonl.Record, len(t.Records))
	for i, r := range t.Records {
		out[i] = *r
	}
	return out
}
