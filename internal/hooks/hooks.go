// Package hooks implements two pure parsers for the payloads an installed
// agent-side hook feeds the core: the handshake input a hook writes on
// session start/turn, and the notify event an agent's notify entrypoint
// emits on turn completion. Neither function touches disk or a process;
// installing the hook files themselves is out of scope.
//
// Grounded on claudecode/claude.go's ParseHookInput: read the full body,
// unmarshal into an unexported raw struct keyed to the hook's actual JSON
// shape, and map onto a small result type. Unlike ParseHookInput, both
// functions here return (nil, error) instead of a typed HookInput, since
// the results here are optional and never throw on unrecognized payloads —
// any unmarshal or shape failure is a nil result, not an error.
package hooks

import "encoding/json"

// HookInput is what an agent-side hook reports when it fires: which session
// it belongs to, where the live transcript lives, and the working directory
// and hook name it observed. Any field may be empty if the hook's payload
// didn't carry it.
type HookInput struct {
	SessionID      string
	TranscriptPath string
	Cwd            string
	HookEventName  string
}

// hookInputRaw mirrors the union of fields Claude Code's SessionStart/Stop
// hooks and a rollout-style agent's session-start hook can send on stdin.
type hookInputRaw struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`
}

// ParseHookInput parses a hook's stdin payload. It returns nil, nil for
// input that doesn't parse as JSON or carries none of the recognized
// fields — a hook misconfigured for a different agent shouldn't crash the
// caller.
func ParseHookInput(stdinJSON []byte) *HookInput {
	var raw hookInputRaw
	if err := json.Unmarshal(stdinJSON, &raw); err != nil {
		return nil
	}
	if raw.SessionID == "" && raw.TranscriptPath == "" && raw.Cwd == "" && raw.HookEventName == "" {
		return nil
	}
	return &HookInput{
		SessionID:      raw.SessionID,
		TranscriptPath: raw.TranscriptPath,
		Cwd:            raw.Cwd,
		HookEventName:  raw.HookEventName,
	}
}

// Notify event types a rollout-style agent's notify entrypoint can report.
const (
	NotifyAgentTurnComplete = "agent-turn-complete"
)

// NotifyEvent is a turn-completion report from an agent's notify hook,
// used by the supervisor to confirm a reload's handshake is for a live,
// finished turn rather than a stale generation.
type NotifyEvent struct {
	Type     string
	ThreadID string
	Cwd      string
	TurnID   string
}

type notifyEventRaw struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
	Cwd      string `json:"cwd"`
	TurnID   string `json:"turn_id"`
}

// ParseNotifyEvent parses a notify entrypoint's JSON argument. Returns nil
// for anything that isn't a recognized event type.
func ParseNotifyEvent(data []byte) *NotifyEvent {
	var raw notifyEventRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	switch raw.Type {
	case NotifyAgentTurnComplete:
		return &NotifyEvent{
			Type:     raw.Type,
			ThreadID: raw.ThreadID,
			Cwd:      raw.Cwd,
			TurnID:   raw.TurnID,
		}
	default:
		return nil
	}
}
