package agentb

import "github.com/eversession/core/internal/jsonl"

// NormalizeSandboxPolicy rewrites a turn_context line's sandbox_policy.mode
// to sandbox_policy.type in place, since "mode" is a stale field name from
// an earlier wire version. No-op if the line isn't a turn_context, already
// uses "type", or has neither field.
func (l *Line) NormalizeSandboxPolicy() bool {
	value, legacy, present := l.SandboxPolicyMode()
	if !present || !legacy {
		return false
	}
	sp := l.Payload.Get("sandbox_policy")
	sp.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: value})
	for i, kv := range sp.Obj {
		if kv.Key == "mode" {
			sp.Obj = append(sp.Obj[:i], sp.Obj[i+1:]...)
			break
		}
	}
	return true
}

// RewriteSessionID rewrites a session_meta line's payload.id in place
// (used by the fork command).
func (l *Line) RewriteSessionID(newID string) {
	if l.Type != LineSessionMeta || !l.Payload.IsObject() {
		return
	}
	l.Payload.Set("id", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: newID})
}

// SetPayload replaces the line's payload with v, keeping type/timestamp.
func (l *Line) SetPayload(v *jsonl.OrderedValue) {
	l.Payload = v
	l.Record.Value.Set("payload", v)
}
