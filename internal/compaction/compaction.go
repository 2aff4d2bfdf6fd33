// Package compaction implements the selection planner and rewrite
// application: deciding which visible messages to drop, expanding that raw
// selection to respect turn/pairing boundaries, and rewriting the
// transcript in place once a summary is available.
//
// Grounded on the corpus's shared "keep the last N%, never split a call/
// result pair" idiom — most directly `roelfdiedericks-goclaw`'s
// internal/session/compaction.go (`findFirstKeptID`'s boundary walk-back) —
// generalized here to both transcript grammars and to token-budget as well
// as count/percent selection.
package compaction

import (
	"fmt"

	"github.com/eversession/core/internal/agent"
)

// Amount is the union of the two ways a caller can size a removal: a
// message count/percent, or a token budget.
type Amount struct {
	Mode     agent.AmountMode
	Messages agent.CountOrPercent
	Tokens   agent.TokenBudget
}

// Options are the compaction planner's inputs.
type Options struct {
	Amount Amount
	Model  string
}

// ShouldTrigger reports whether an estimated token count crosses a
// threshold. A non-positive threshold never triggers (threshold_tokens is
// optional).
func ShouldTrigger(estimatedTokens, thresholdTokens int) bool {
	return thresholdTokens > 0 && estimatedTokens >= thresholdTokens
}

// selectRemoveCount applies the selection rule over n visible items, given
// their oldest-first per-item token costs (len(costs) may be
// shorter than n if a caller hasn't priced every item; missing costs count
// as zero).
func selectRemoveCount(amount Amount, n int, costs []int) (int, error) {
	switch amount.Mode {
	case agent.AmountTokens:
		budget := amount.Tokens.Budget
		sum := 0
		count := 0
		for i := 0; i < n; i++ {
			cost := 0
			if i < len(costs) {
				cost = costs[i]
			}
			if sum+cost > budget {
				break
			}
			sum += cost
			count++
		}
		return count, nil
	case agent.AmountMessages:
		m := amount.Messages
		if m.KeepLast {
			if m.Percent > 0 {
				return 0, fmt.Errorf("compaction: keep_last rejects a percent amount")
			}
			remove := n - m.Count
			if remove < 0 {
				remove = 0
			}
			return remove, nil
		}
		if m.Percent > 0 {
			return n * m.Percent / 100, nil
		}
		if m.Count > n {
			return n, nil
		}
		return m.Count, nil
	default:
		return 0, fmt.Errorf("compaction: unknown amount mode %q", amount.Mode)
	}
}

// Fingerprint is the selection-identity tuple: a pending compact is
// revalidated at apply time by recomputing this and comparing for
// equality, not by hashing the whole selection.
type Fingerprint struct {
	RemoveCount int `json:"remove_count"`

	// Agent A fields.
	FirstRemovedUUID string `json:"first_removed_uuid,omitempty"`
	LastRemovedUUID  string `json:"last_removed_uuid,omitempty"`
	AnchorUUID       string `json:"anchor_uuid,omitempty"` // uuid of the first kept non-root message

	// Agent B fields.
	AnchorLine       int `json:"anchor_line,omitempty"` // line number of the first kept response item
	FirstRemovedLine int `json:"first_removed_line,omitempty"`
	LastRemovedLine  int `json:"last_removed_line,omitempty"`
}

// Selection is a planned removal set, ready to hand to ApplyA/ApplyB once a
// summary string has been produced.
type Selection struct {
	RemoveCount int
	Fingerprint Fingerprint

	aUUIDs        []string // Agent A: uuids selected for removal, oldest first
	aBoundaryUUID string   // Agent A: parent for the inserted summary, when a compact_boundary was used
	aUsesBoundary bool     // Agent A: true when a compact_boundary confines the rewrite; false means rewrite the root in place
	aAnchorUUID   string   // Agent A: uuid the summary's children relink to / first kept uuid

	bLines       []int // Agent B: line numbers selected for removal, oldest first
	bPinnedLines []int // Agent B: line numbers folded into replacement_history instead of discarded
}

// Empty reports whether the selection removes nothing, e.g. because the
// visible range was too small to select from.
func (s *Selection) Empty() bool {
	return s == nil || s.RemoveCount == 0
}

// RemovedUUIDsA returns the Agent A uuids this selection removes, oldest
// first, for callers (the summarizer prompt builder) outside this package.
func (s *Selection) RemovedUUIDsA() []string {
	if s == nil {
		return nil
	}
	return s.aUUIDs
}

// RemovedLinesB returns the Agent B line numbers this selection removes,
// oldest first.
func (s *Selection) RemovedLinesB() []int {
	if s == nil {
		return nil
	}
	return s.bLines
}

// Change is one rewrite-application log entry, the compaction analog of the
// fixer's changelog.
type Change struct {
	Code    string
	Line    int
	Message string
}
