package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHookInputSessionStart(t *testing.T) {
	input := ParseHookInput([]byte(`{"session_id":"abc123","transcript_path":"/tmp/t.jsonl","hook_event_name":"SessionStart"}`))
	require.NotNil(t, input)
	assert.Equal(t, "abc123", input.SessionID)
	assert.Equal(t, "/tmp/t.jsonl", input.TranscriptPath)
	assert.Equal(t, "SessionStart", input.HookEventName)
}

func TestParseHookInputWithCwd(t *testing.T) {
	input := ParseHookInput([]byte(`{"session_id":"abc123","cwd":"/repo"}`))
	require.NotNil(t, input)
	assert.Equal(t, "/repo", input.Cwd)
}

func TestParseHookInputInvalidJSON(t *testing.T) {
	assert.Nil(t, ParseHookInput([]byte(`not json`)))
}

func TestParseHookInputEmptyObject(t *testing.T) {
	assert.Nil(t, ParseHookInput([]byte(`{}`)))
}

func TestParseHookInputUnrelatedFields(t *testing.T) {
	assert.Nil(t, ParseHookInput([]byte(`{"some_other_field":"value"}`)))
}

func TestParseNotifyEventAgentTurnComplete(t *testing.T) {
	event := ParseNotifyEvent([]byte(`{"type":"agent-turn-complete","thread_id":"t-1","cwd":"/repo","turn_id":"turn-9"}`))
	require.NotNil(t, event)
	assert.Equal(t, NotifyAgentTurnComplete, event.Type)
	assert.Equal(t, "t-1", event.ThreadID)
	assert.Equal(t, "/repo", event.Cwd)
	assert.Equal(t, "turn-9", event.TurnID)
}

func TestParseNotifyEventUnknownType(t *testing.T) {
	assert.Nil(t, ParseNotifyEvent([]byte(`{"type":"something-else","thread_id":"t-1"}`)))
}

func TestParseNotifyEventInvalidJSON(t *testing.T) {
	assert.Nil(t, ParseNotifyEvent([]byte(`{not json`)))
}

func TestParseNotifyEventMissingType(t *testing.T) {
	assert.Nil(t, ParseNotifyEvent([]byte(`{"thread_id":"t-1"}`)))
}
