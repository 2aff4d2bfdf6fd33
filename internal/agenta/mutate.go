package agenta

import "github.com/eversession/core/internal/jsonl"

// SetParentUUID rewrites the entry's parentUuid field in place (relinking
// across a removed ancestor). Passing "" sets a JSON null parent (a new
// root).
func (e *Entry) SetParentUUID(parentUUID string) {
	e.ParentUUID = parentUUID
	if parentUUID == "" {
		e.Record.Value.Set("parentUuid", &jsonl.OrderedValue{Kind: jsonl.KindNull})
		return
	}
	e.Record.Value.Set("parentUuid", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: parentUUID})
}

// SetContentString rewrites message.content to a plain string (the
// partial-rewrite compaction shape, where the kept root user message's
// content becomes the summary text).
func (e *Entry) SetContentString(text string) {
	e.ContentIsBlocks = false
	e.Content = nil
	e.ContentText = text
	msgVal := e.Record.Value.Get("message")
	if msgVal == nil || !msgVal.IsObject() {
		return
	}
	msgVal.Set("content", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: text})
}

// SetContentBlocks rewrites message.content to blocks, in the given order,
// using each block's original Raw value. Used by the fixer to reorder
// content after a thinking-first merge/split.
func (e *Entry) SetContentBlocks(blocks []ContentBlock) {
	e.Content = blocks
	e.ContentIsBlocks = true
	msgVal := e.Record.Value.Get("message")
	if msgVal == nil || !msgVal.IsObject() {
		return
	}
	arr := &jsonl.OrderedValue{Kind: jsonl.KindArray}
	for _, b := range blocks {
		if b.Raw != nil {
			arr.Arr = append(arr.Arr, b.Raw)
		}
	}
	msgVal.Set("content", arr)
}

// RewriteSessionID rewrites the entry's sessionId field in place (used by
// the fork command to stamp every entry with the newly generated id).
func (e *Entry) RewriteSessionID(newID string) {
	e.SessionID = newID
	if !e.Record.Value.IsObject() {
		return
	}
	if sv := e.Record.Value.Get("sessionId"); sv == nil {
		return
	}
	e.Record.Value.Set("sessionId", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: newID})
}

// Tombstone replaces the entry's envelope with a minimal sentinel that
// preserves uuid and parentUuid (so later entries can still reference it)
// but drops the message body — the tombstone removal mode.
func (e *Entry) Tombstone() {
	obj := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	obj.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: "system"})
	obj.Set("subtype", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: "tombstone"})
	obj.Set("uuid", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: e.UUID})
	if e.ParentUUID == "" {
		obj.Set("parentUuid", &jsonl.OrderedValue{Kind: jsonl.KindNull})
	} else {
		obj.Set("parentUuid", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: e.ParentUUID})
	}
	e.Record.Value = obj
	e.Type = EntrySystem
	e.Subtype = "tombstone"
	e.Content = nil
	e.ContentIsBlocks = false
	e.ContentText = ""
}
