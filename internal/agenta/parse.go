package agenta

import (
	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/jsonl"
)

// Parse builds a Transcript from parsed JSONL records. Records that are
// invalid-json or don't look like an Agent A envelope are left out of
// Entries (invalid ones stay reachable via Transcript.Records for
// round-tripping; envelope violations are collected into Unknown).
func Parse(records []jsonl.Record) *Transcript {
	t := &Transcript{
		byUUID: make(map[string]*Entry),
	}
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
		entry, ok := decodeEntry(rec)
		if !ok {
			t.Unknown = append(t.Unknown, rec)
			continue
		}
		t.Entries = append(t.Entries, entry)
		if entry.UUID != "" {
			t.byUUID[entry.UUID] = entry
		}
	}

	return t
}

func decodeEntry(rec *jsonl.Record) (*Entry, bool) {
	v := rec.Value
	typeVal := v.Get("type")
	if typeVal == nil {
		return nil, false
	}
	typeStr, _ := typeVal.AsString()

	e := &Entry{
		LineNumber: rec.LineNumber,
		Record:     rec,
		Type:       EntryType(typeStr),
	}

	if uv := v.Get("uuid"); uv != nil {
		e.UUID, _ = uv.AsString()
	}
	if pv := v.Get("parentUuid"); pv != nil && !pv.IsNull() {
		e.ParentUUID, _ = pv.AsString()
	} else if pv := v.Get("parent_uuid"); pv != nil && !pv.IsNull() {
		e.ParentUUID, _ = pv.AsString()
	}
	if sv := v.Get("sessionId"); sv != nil {
		e.SessionID, _ = sv.AsString()
	}
	if tv := v.Get("timestamp"); tv != nil {
		e.Timestamp, _ = tv.AsString()
	}
	if subv := v.Get("subtype"); subv != nil {
		e.Subtype, _ = subv.AsString()
	}

	switch e.Type {
	case EntryUser, EntryAssistant:
		msgVal := v.Get("message")
		if msgVal == nil || !msgVal.IsObject() {
			// Entries of these types are still chain participants even
			// without a message body (rare, but don't reject the line).
			return e, true
		}
		decodeMessage(e, msgVal)
	}

	return e, true
}

func decodeMessage(e *Entry, msgVal *jsonl.OrderedValue) {
	if idv := msgVal.Get("id"); idv != nil {
		e.MessageID, _ = idv.AsString()
	}

	contentVal := msgVal.Get("content")
	if contentVal == nil {
		return
	}

	switch contentVal.Kind {
	case jsonl.KindString:
		e.ContentIsBlocks = false
		e.ContentText = contentVal.Str
	case jsonl.KindArray:
		e.ContentIsBlocks = true
		for _, item := range contentVal.Arr {
			e.Content = append(e.Content, decodeBlock(item))
		}
	}

	if e.Type == EntryAssistant {
		e.Usage = decodeUsage(msgVal)
	}
}

func decodeBlock(item *jsonl.OrderedValue) ContentBlock {
	b := ContentBlock{Raw: item}
	if !item.IsObject() {
		return b
	}
	if tv := item.Get("type"); tv != nil {
		s, _ := tv.AsString()
		b.Type = BlockType(s)
	}
	switch b.Type {
	case BlockText, BlockThinking:
		if tv := item.Get("text"); tv != nil {
			b.Text, _ = tv.AsString()
		}
	case BlockToolUse:
		if idv := item.Get("id"); idv != nil {
			b.ToolUseID, _ = idv.AsString()
		}
		if nv := item.Get("name"); nv != nil {
			b.ToolName, _ = nv.AsString()
		}
		if inv := item.Get("input"); inv != nil {
			b.ToolInput = inv
		}
	case BlockToolResult:
		if idv := item.Get("tool_use_id"); idv != nil {
			b.ToolResult, _ = idv.AsString()
		}
	}
	return b
}

func decodeUsage(msgVal *jsonl.OrderedValue) agent.TokenUsage {
	var u agent.TokenUsage
	usageVal := msgVal.Get("usage")
	if usageVal == nil || !usageVal.IsObject() {
		return u
	}
	if iv := usageVal.Get("input_tokens"); iv != nil {
		u.InputTokens = intOf(iv)
	}
	if ov := usageVal.Get("output_tokens"); ov != nil {
		u.OutputTokens = intOf(ov)
	}
	if cv := usageVal.Get("cache_read_input_tokens"); cv != nil {
		u.CacheReadTokens = intOf(cv)
	}
	if cv := usageVal.Get("cache_creation_input_tokens"); cv != nil {
		u.CacheReadTokens += intOf(cv)
	}
	return u
}

func intOf(v *jsonl.OrderedValue) int {
	if v.Kind != jsonl.KindNumber {
		return 0
	}
	n, err := v.Num.Int64()
	if err != nil {
		f, ferr := v.Num.Float64()
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return int(n)
}
