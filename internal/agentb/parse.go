package agentb

import "github.com/eversession/core/internal/jsonl"

// DetectFormat inspects the first valid record to decide whether a file is
// wrapped ({timestamp,type,payload} per line) or legacy (flat records).
func DetectFormat(records []jsonl.Record) Format {
	for _, r := range records {
		if !r.Valid || !r.Value.IsObject() {
			continue
		}
		if r.Value.Get("payload") != nil && r.Value.Get("type") != nil {
			return FormatWrapped
		}
		return FormatLegacy
	}
	return FormatWrapped
}

// Parse builds a Transcript from parsed JSONL records, auto-detecting
// wrapped vs legacy. Legacy records are migrated to wrapped shape in memory
// (the in-place record sequence is rewritten); callers that need to know
// whether a migration happened can inspect Transcript.Format.
func Parse(records []jsonl.Record) *Transcript {
	format := DetectFormat(records)
	if format == FormatLegacy {
		records = MigrateLegacyToWrapped(records)
	}

	t := &Transcript{Format: format}
	t.Records = make([]*jsonl.Record, len(records))
	for i := range records {
		t.Records[i] = &records[i]
	}

	for _, rec := range t.Records {
		if !rec.Valid {
			continue
		}
		if !rec.Value.IsObject() {
			t.Unknown = append(t.Unknown, rec)
			continue
		}
		line, ok := decodeLine(rec)
		if !ok {
			t.Unknown = append(t.Unknown, rec)
			continue
		}
		t.Lines = append(t.Lines, line)
	}

	return t
}

// MigrateLegacyToWrapped wraps each valid flat legacy record into
// {timestamp, type, payload}, pulling "type" and "timestamp" out of the flat
// object and leaving the rest as payload. Invalid records pass through
// unchanged; the core only rewrites wrapped form, so this migration exists
// to let the rest of the pipeline treat both shapes uniformly.
func MigrateLegacyToWrapped(records []jsonl.Record) []jsonl.Record {
	out := make([]jsonl.Record, len(records))
	for i, r := range records {
		if !r.Valid || !r.Value.IsObject() {
			out[i] = r
			continue
		}
		typeVal := r.Value.Get("type")
		if typeVal == nil {
			out[i] = r
			continue
		}
		typeStr, _ := typeVal.AsString()

		ts := ""
		if tv := r.Value.Get("timestamp"); tv != nil {
			ts, _ = tv.AsString()
		}

		payload := &jsonl.OrderedValue{Kind: jsonl.KindObject}
		for _, kv := range r.Value.Obj {
			if kv.Key == "type" || kv.Key == "timestamp" {
				continue
			}
			payload.Set(kv.Key, kv.Value)
		}

		wrapped := &jsonl.OrderedValue{Kind: jsonl.KindObject}
		wrapped.Set("timestamp", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: ts})
		wrapped.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: typeStr})
		wrapped.Set("payload", payload)

		out[i] = jsonl.Record{LineNumber: r.LineNumber, Valid: true, Value: wrapped}
	}
	return out
}

func decodeLine(rec *jsonl.Record) (*Line, bool) {
	v := rec.Value
	typeVal := v.Get("type")
	if typeVal == nil {
		return nil, false
	}
	typeStr, _ := typeVal.AsString()
	payload := v.Get("payload")
	if payload == nil {
		payload = &jsonl.OrderedValue{Kind: jsonl.KindObject}
	}

	l := &Line{
		LineNumber: rec.LineNumber,
		Record:     rec,
		Type:       LineType(typeStr),
		Payload:    payload,
	}
	if tv := v.Get("timestamp"); tv != nil {
		l.Timestamp, _ = tv.AsString()
	}

	if l.Type == LineResponse && payload.IsObject() {
		if itv := payload.Get("type"); itv != nil {
			s, _ := itv.AsString()
			l.ItemType = ResponseItemType(s)
		}
		if cidv := payload.Get("call_id"); cidv != nil {
			l.CallID, _ = cidv.AsString()
		}
	}

	return l, true
}

// SessionMetaID returns payload.id for a session_meta line.
func (l *Line) SessionMetaID() (string, bool) {
	if l.Type != LineSessionMeta || !l.Payload.IsObject() {
		return "", false
	}
	idv := l.Payload.Get("id")
	if idv == nil {
		return "", false
	}
	return idv.AsString()
}

// SandboxPolicyMode returns the raw sandbox_policy.mode/type string from a
// turn_context line, and whether the legacy "mode" spelling was used.
func (l *Line) SandboxPolicyMode() (value string, usesLegacyMode bool, present bool) {
	if l.Type != LineTurnContext || !l.Payload.IsObject() {
		return "", false, false
	}
	sp := l.Payload.Get("sandbox_policy")
	if sp == nil || !sp.IsObject() {
		return "", false, false
	}
	if tv := sp.Get("type"); tv != nil {
		s, _ := tv.AsString()
		return s, false, true
	}
	if mv := sp.Get("mode"); mv != nil {
		s, _ := mv.AsString()
		return s, true, true
	}
	return "", false, false
}

// TotalTokenUsage returns an event_msg line's token_count total, if present.
func (l *Line) TotalTokenUsage() (int, bool) {
	if l.Type != LineEventMsg || !l.Payload.IsObject() {
		return 0, false
	}
	tc := l.Payload.Get("token_count")
	if tc == nil || !tc.IsObject() {
		return 0, false
	}
	total := tc.Get("total_token_usage")
	if total == nil || !total.IsObject() {
		return 0, false
	}
	tt := total.Get("total_tokens")
	if tt == nil || tt.Kind != jsonl.KindNumber {
		return 0, false
	}
	n, err := tt.Num.Int64()
	if err != nil {
		return 0, false
	}
	return int(n), true
}
