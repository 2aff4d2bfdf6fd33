package validate

import (
	"testing"

	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/jsonl"
	"github.com/stretchr/testify/require"
)

func TestValidateADuplicateUUID(t *testing.T) {
	data := `{"type":"user","uuid":"dup","parentUuid":null,"timestamp":"t0","message":{"content":"a"}}
{"type":"assistant","uuid":"dup","parentUuid":"dup","timestamp":"t1","message":{"content":"b"}}
`
	records := jsonl.Parse([]byte(data))
	tr := agenta.Parse(records)
	issues := A(records, tr)

	found := false
	for _, iss := range issues {
		if iss.Code == "duplicate_uuid" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateABrokenParentChain(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":"missing","timestamp":"t0","message":{"content":"x"}}
`
	records := jsonl.Parse([]byte(data))
	tr := agenta.Parse(records)
	issues := A(records, tr)
	require.Len(t, issues, 1)
	require.Equal(t, "broken_parent_chain", issues[0].Code)
}

func TestValidateAOrphanToolResult(t *testing.T) {
	data := `{"type":"user","uuid":"u1","parentUuid":null,"timestamp":"t0","message":{"content":[{"type":"tool_result","tool_use_id":"never-called"}]}}
`
	records := jsonl.Parse([]byte(data))
	tr := agenta.Parse(records)
	issues := A(records, tr)

	found := false
	for _, iss := range issues {
		if iss.Code == "orphan_tool_result" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateAThinkingNotFirst(t *testing.T) {
	data := `{"type":"assistant","uuid":"a1","parentUuid":null,"timestamp":"t0","message":{"content":[{"type":"text","text":"answer"},{"type":"thinking","text":"late reasoning"}]}}
`
	records := jsonl.Parse([]byte(data))
	tr := agenta.Parse(records)
	issues := A(records, tr)

	found := false
	for _, iss := range issues {
		if iss.Code == "thinking_block_order" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateAInvalidJSONLine(t *testing.T) {
	data := "{not json}\n"
	records := jsonl.Parse([]byte(data))
	tr := agenta.Parse(records)
	issues := A(records, tr)
	require.Len(t, issues, 1)
	require.Equal(t, "invalid_json_line", issues[0].Code)
}

func TestValidateBMissingSessionMeta(t *testing.T) {
	data := `{"timestamp":"t0","type":"turn_context","payload":{}}
`
	records := jsonl.Parse([]byte(data))
	tr := agentb.Parse(records)
	issues := B(records, tr)

	found := false
	for _, iss := range issues {
		if iss.Code == "missing_session_meta" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateBOrphanOutput(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"response_item","payload":{"type":"function_call_output","call_id":"ghost"}}
`
	records := jsonl.Parse([]byte(data))
	tr := agentb.Parse(records)
	issues := B(records, tr)

	found := false
	for _, iss := range issues {
		if iss.Code == "orphan_output" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateBOutputBeforeCall(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"response_item","payload":{"type":"function_call_output","call_id":"c1"}}
{"timestamp":"t2","type":"response_item","payload":{"type":"function_call","call_id":"c1"}}
`
	records := jsonl.Parse([]byte(data))
	tr := agentb.Parse(records)
	issues := B(records, tr)

	found := false
	for _, iss := range issues {
		if iss.Code == "output_before_call" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateBMissingOutput(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"response_item","payload":{"type":"function_call","call_id":"c1"}}
`
	records := jsonl.Parse([]byte(data))
	tr := agentb.Parse(records)
	issues := B(records, tr)

	found := false
	for _, iss := range issues {
		if iss.Code == "missing_output" {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateBSandboxPolicyMissing(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"turn_context","payload":{"sandbox_policy":{}}}
`
	records := jsonl.Parse([]byte(data))
	tr := agentb.Parse(records)
	issues := B(records, tr)

	found := false
	for _, iss := range issues {
		if iss.Code == "sandbox_policy_missing_mode_or_type" {
			found = true
		}
	}
	require.True(t, found)
}
