package agenta

import "github.com/eversession/core/internal/jsonl"

// NewAbortedToolResultEntry builds a synthetic user entry carrying a single
// aborted tool_result block for toolUseID, parented at parentUUID. Used by
// the fixer's insert_aborted_outputs option to give a
// tool_use that never received a real response a terminating entry the
// agent can resume from.
func NewAbortedToolResultEntry(newUUID, parentUUID, toolUseID string) *Entry {
	resultBlock := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	resultBlock.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: "tool_result"})
	resultBlock.Set("tool_use_id", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: toolUseID})
	resultBlock.Set("is_error", &jsonl.OrderedValue{Kind: jsonl.KindBool, Bool: true})
	resultBlock.Set("content", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: "aborted: no output was recorded for this tool call"})

	content := &jsonl.OrderedValue{Kind: jsonl.KindArray, Arr: []*jsonl.OrderedValue{resultBlock}}
	message := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	message.Set("content", content)

	obj := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	obj.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: "user"})
	obj.Set("uuid", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: newUUID})
	obj.Set("parentUuid", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: parentUUID})
	obj.Set("message", message)

	rec := &jsonl.Record{Valid: true, Value: obj}

	return &Entry{
		Record:          rec,
		Type:            EntryUser,
		UUID:            newUUID,
		ParentUUID:      parentUUID,
		ContentIsBlocks: true,
		Content: []ContentBlock{
			{Type: BlockToolResult, ToolResult: toolUseID, Raw: resultBlock},
		},
	}
}

// NewSummaryEntry builds a synthetic user entry whose content is a plain
// string, parented at parentUUID. Used by the compaction rewriter to insert
// a summary after a compact_boundary.
func NewSummaryEntry(newUUID, parentUUID, text string) *Entry {
	message := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	message.Set("content", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: text})

	obj := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	obj.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: "user"})
	obj.Set("uuid", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: newUUID})
	obj.Set("parentUuid", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: parentUUID})
	obj.Set("message", message)

	rec := &jsonl.Record{Valid: true, Value: obj}

	return &Entry{
		Record:      rec,
		Type:        EntryUser,
		UUID:        newUUID,
		ParentUUID:  parentUUID,
		ContentText: text,
	}
}
