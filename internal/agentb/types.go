// Package agentb implements the rollout-style, wrapped-envelope transcript
// grammar (Agent B): every line is `{ timestamp, type, payload }`, and the
// conversation proper lives in `response_item` payloads paired by call_id.
//
// Follows a typed-structs-plus-Extract*-helper surface, the same shape
// internal/agenta exposes for its own grammar, applied here to a
// wrapped-envelope JSONL wire format rather than a parent-chain one.
package agentb

import "github.com/eversession/core/internal/jsonl"

// LineType is a wrapped envelope's "type" discriminator.
type LineType string

const (
	LineSessionMeta LineType = "session_meta"
	LineTurnContext LineType = "turn_context"
	LineEventMsg    LineType = "event_msg"
	LineResponse    LineType = "response_item"
	LineCompacted   LineType = "compacted"
	LineOther       LineType = "" // recognized envelope, unclassified payload
)

// ResponseItemType is a response_item payload's own "type" field.
type ResponseItemType string

const (
	RespMessage             ResponseItemType = "message"
	RespReasoning            ResponseItemType = "reasoning"
	RespFunctionCall         ResponseItemType = "function_call"
	RespCustomToolCall       ResponseItemType = "custom_tool_call"
	RespLocalShellCall       ResponseItemType = "local_shell_call"
	RespFunctionCallOutput   ResponseItemType = "function_call_output"
	RespCustomToolCallOutput ResponseItemType = "custom_tool_call_output"
)

// isCall reports whether t is a call-shaped response item (has a call_id
// and expects an output).
func (t ResponseItemType) isCall() bool {
	return t == RespFunctionCall || t == RespCustomToolCall || t == RespLocalShellCall
}

// isOutput reports whether t is an output-shaped response item.
func (t ResponseItemType) isOutput() bool {
	return t == RespFunctionCallOutput || t == RespCustomToolCallOutput
}

// MatchingOutputKind returns the output ResponseItemType that must pair with
// a call of kind t.
func (t ResponseItemType) MatchingOutputKind() (ResponseItemType, bool) {
	return t.matchingOutputKind()
}

// matchingOutputKind returns the output ResponseItemType that must pair with
// a call of kind t.
func (t ResponseItemType) matchingOutputKind() (ResponseItemType, bool) {
	switch t {
	case RespFunctionCall, RespLocalShellCall:
		return RespFunctionCallOutput, true
	case RespCustomToolCall:
		return RespCustomToolCallOutput, true
	default:
		return "", false
	}
}

// Line is one parsed wrapped-envelope entry.
type Line struct {
	LineNumber int
	Record     *jsonl.Record // underlying record; Value is the mutation target

	Timestamp string
	Type      LineType
	Payload   *jsonl.OrderedValue // the raw payload object, always present

	// Populated when Type == LineResponse.
	ItemType ResponseItemType
	CallID   string // present on call and output response items
}

// IsCall reports whether this line is a call-shaped response item.
func (l *Line) IsCall() bool { return l.Type == LineResponse && l.ItemType.isCall() }

// IsOutput reports whether this line is an output-shaped response item.
func (l *Line) IsOutput() bool { return l.Type == LineResponse && l.ItemType.isOutput() }

// Transcript is the parsed Agent B grammar view over a record sequence.
type Transcript struct {
	Records []*jsonl.Record // all original records, in file order, mutable
	Lines   []*Line         // grammar-recognized lines, a subset of Records, in file order
	Unknown []*jsonl.Record // syntactically JSON but violating the envelope

	Format Format
}

// Format distinguishes the two on-disk shapes the spec allows.
type Format int

const (
	FormatWrapped Format = iota
	FormatLegacy
)
