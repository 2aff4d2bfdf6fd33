// Package agent holds the small set of types shared between the Agent A
// (internal/agenta) and Agent B (internal/agentb) transcript grammars, so
// that higher layers (compaction, pipeline) can treat either
// polymorphically wherever shared handling applies.
//
// This follows a capability-interface pattern: rather than one
// do-everything interface, the shared surface here is just the vocabulary
// every transcript-grammar implementation needs (kinds, token accounting,
// issue severities, removal/amount modes), with each package free to add
// its own grammar-specific capabilities on top.
package agent

// Kind identifies which agent grammar a transcript belongs to.
type Kind string

const (
	KindA Kind = "a" // chat-style, parent-chain JSONL
	KindB Kind = "b" // rollout-style, wrapped-envelope JSONL
)

// TokenUsage aggregates token accounting for a transcript or a slice of it,
// a shape both transcript grammars populate.
type TokenUsage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
	APICallCount    int
}

// Total returns the sum of input, output, and cache-read tokens.
func (t TokenUsage) Total() int {
	return t.InputTokens + t.OutputTokens + t.CacheReadTokens
}

// Severity is an issue's severity level.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Location pins an issue to a place in the transcript: a line number, or a
// call/tool-use pairing identified by its shared id.
type Location struct {
	Line   int    // 1-indexed JSONL line number; 0 if not line-scoped
	CallID string // call_id / tool_use_id for pair-scoped issues
}

// Issue is one validator finding: severity, stable code, location, message.
type Issue struct {
	Severity Severity
	Code     string
	Location Location
	Message  string
}

// RemovalMode controls how the fixer / compactor drops a record.
type RemovalMode string

const (
	RemovalDelete    RemovalMode = "delete"
	RemovalTombstone RemovalMode = "tombstone"
)

// AmountMode distinguishes a message-count-or-percent selection from a
// token-budget selection, used by both the pending-compact record and the
// compaction planner.
type AmountMode string

const (
	AmountMessages AmountMode = "messages"
	AmountTokens   AmountMode = "tokens"
)

// CountOrPercent selects a removal amount either as an absolute message
// count or as a percentage of visible messages.
type CountOrPercent struct {
	Count     int  // used when Percent == 0 and Count > 0
	Percent   int  // 1-100; used when > 0
	KeepLast  bool // remove_count = max(0, len-count); rejects Percent
}

// TokenBudget selects a removal amount by walking visible messages oldest
// first until the running token sum would exceed the budget.
type TokenBudget struct {
	Budget int
}
