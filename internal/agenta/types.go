// Package agenta implements the chat-style, parent-chain transcript grammar
// (Agent A): parse-time structuring of JSONL lines into a parent_uuid tree,
// active-chain resolution, and the typed content-block shapes the rest of
// the pipeline (validate, fix, compaction) operates on.
//
// Entry/contentBlock shapes follow a streaming dedup-by-message-id idiom
// for token accounting and a tool-pairing scan for checkpoint-uuid lookup.
// Unlike a flat line list, this package builds the parent_uuid tree and
// resolves the active chain, since more than one chain can coexist in a
// single transcript file.
package agenta

import (
	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/jsonl"
)

// EntryType is the top-level "type" discriminator of an Agent A line.
type EntryType string

const (
	EntryUser      EntryType = "user"
	EntryAssistant EntryType = "assistant"
	EntrySystem    EntryType = "system"
	EntrySnapshot  EntryType = "file-history-snapshot"
	EntryOther     EntryType = "" // recognized-but-unclassified; kept verbatim
)

// BlockType is a content block's "type" field.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of an ordered message.content array.
type ContentBlock struct {
	Type        BlockType
	Text        string
	ToolUseID   string // set on tool_use blocks: the block's own id
	ToolName    string // set on tool_use blocks
	ToolInput   *jsonl.OrderedValue
	ToolResult  string // set on tool_result blocks: tool_use_id being answered
	MessageID   string // assistant message.id, used for streaming-merge grouping
	Raw         *jsonl.OrderedValue
}

// Entry is one parsed Agent A transcript line.
type Entry struct {
	LineNumber int
	Record     *jsonl.Record // underlying record; Value is the mutation target

	Type       EntryType
	Subtype    string // e.g. "compact_boundary" on a system entry
	UUID       string
	ParentUUID string // "" means root (null parent)
	SessionID  string
	Timestamp  string

	MessageID      string // message.id, present on assistant entries (streaming)
	ContentIsBlocks bool
	ContentText    string // used when content is a plain string
	Content        []ContentBlock

	// Usage carries the raw per-entry usage numbers for token accounting;
	// populated only for assistant entries whose message.usage is present.
	Usage agent.TokenUsage

	// Children is populated by BuildTree; not set by Parse alone.
	Children []*Entry
}

// IsChainEligible reports whether an entry participates in the parent_uuid
// tree (user/assistant/system entries do; file-history-snapshot does not).
func (e *Entry) IsChainEligible() bool {
	return e.Type == EntryUser || e.Type == EntryAssistant || e.Type == EntrySystem || e.Type == EntryOther
}

// HasThinkingFirst reports whether the entry's content begins with a
// thinking block. Used by the thinking-first invariant check.
func (e *Entry) HasThinkingFirst() bool {
	if len(e.Content) == 0 {
		return false
	}
	return e.Content[0].Type == BlockThinking
}

// ToolUseIDs returns the ids of all tool_use blocks in this entry, in order.
func (e *Entry) ToolUseIDs() []string {
	var ids []string
	for _, b := range e.Content {
		if b.Type == BlockToolUse && b.ToolUseID != "" {
			ids = append(ids, b.ToolUseID)
		}
	}
	return ids
}

// ToolResultIDs returns the tool_use_id referenced by each tool_result block
// in this entry, in order.
func (e *Entry) ToolResultIDs() []string {
	var ids []string
	for _, b := range e.Content {
		if b.Type == BlockToolResult && b.ToolResult != "" {
			ids = append(ids, b.ToolResult)
		}
	}
	return ids
}

// Transcript is the parsed Agent A grammar view over a record sequence.
type Transcript struct {
	Records []*jsonl.Record // all original records, in file order, mutable
	Entries []*Entry        // grammar-recognized entries, a subset of Records, in file order
	Unknown []*jsonl.Record // syntactically JSON but violating the envelope

	byUUID map[string]*Entry
}

// ByUUID looks up an entry by its uuid.
func (t *Transcript) ByUUID(uuid string) (*Entry, bool) {
	e, ok := t.byUUID[uuid]
	return e, ok
}
