package compaction

import (
	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/tokencount"
)

// compactBoundarySubtype marks a system entry as a prior compaction's
// insertion point.
const compactBoundarySubtype = "compact_boundary"

// PlanA selects a removal set from an Agent A transcript's active chain.
// The root user message (or, if a compact_boundary exists, everything up
// through it) is never a removal candidate: compaction only ever touches
// the visible tail.
func PlanA(tr *agenta.Transcript, opts Options) (*Selection, error) {
	chain := tr.ActiveChain()
	if len(chain) < 2 {
		return &Selection{}, nil
	}

	boundaryIdx := lastCompactBoundaryIndex(chain)
	visibleStart := boundaryIdx + 1
	if boundaryIdx < 0 {
		visibleStart = 1 // skip the root user message itself
	}
	visible := chain[visibleStart:]
	if len(visible) == 0 {
		return &Selection{}, nil
	}

	costs := make([]int, len(visible))
	for i, e := range visible {
		costs[i] = tokencount.A([]*agenta.Entry{e})
	}

	removeCount, err := selectRemoveCount(opts.Amount, len(visible), costs)
	if err != nil {
		return nil, err
	}
	removeCount = expandAssistantTurnsA(visible, removeCount)
	removeCount = expandToolPairsA(visible, removeCount)
	if removeCount <= 0 {
		return &Selection{}, nil
	}
	if removeCount > len(visible) {
		removeCount = len(visible)
	}

	sel := &Selection{RemoveCount: removeCount}
	sel.aUUIDs = make([]string, removeCount)
	for i := 0; i < removeCount; i++ {
		sel.aUUIDs[i] = visible[i].UUID
	}
	sel.Fingerprint.RemoveCount = removeCount
	sel.Fingerprint.FirstRemovedUUID = visible[0].UUID
	sel.Fingerprint.LastRemovedUUID = visible[removeCount-1].UUID

	if boundaryIdx >= 0 {
		sel.aBoundaryUUID = chain[boundaryIdx].UUID
		sel.aUsesBoundary = true
	} else {
		sel.aBoundaryUUID = chain[0].UUID // the root user message
	}
	if removeCount < len(visible) {
		sel.aAnchorUUID = visible[removeCount].UUID
		sel.Fingerprint.AnchorUUID = sel.aAnchorUUID
	}

	return sel, nil
}

// lastCompactBoundaryIndex returns the chain index of the last system entry
// whose subtype is compact_boundary, or -1 if none exists.
func lastCompactBoundaryIndex(chain []*agenta.Entry) int {
	idx := -1
	for i, e := range chain {
		if e.Type == agenta.EntrySystem && e.Subtype == compactBoundarySubtype {
			idx = i
		}
	}
	return idx
}

// expandAssistantTurnsA grows removeCount so a streamed assistant turn is
// never split across the removed/kept boundary: if the entry just past the
// boundary shares a message id with the entry just before it, the turn
// continues and the boundary must move past it.
func expandAssistantTurnsA(visible []*agenta.Entry, removeCount int) int {
	for removeCount > 0 && removeCount < len(visible) {
		prev := visible[removeCount-1]
		next := visible[removeCount]
		if prev.MessageID == "" || next.MessageID != prev.MessageID {
			break
		}
		removeCount++
	}
	return removeCount
}

// expandToolPairsA grows removeCount so a removed tool_use's tool_result is
// never left behind in the kept range. Fixed point: expanding to absorb one
// pair can itself introduce a fresh tool_use whose result is further out.
func expandToolPairsA(visible []*agenta.Entry, removeCount int) int {
	for {
		if removeCount >= len(visible) {
			return removeCount
		}
		pending := make(map[string]bool)
		for _, e := range visible[:removeCount] {
			for _, id := range e.ToolUseIDs() {
				pending[id] = true
			}
		}
		if len(pending) == 0 {
			return removeCount
		}
		grew := false
		for removeCount < len(visible) {
			e := visible[removeCount]
			answers := false
			for _, id := range e.ToolResultIDs() {
				if pending[id] {
					answers = true
					break
				}
			}
			if !answers {
				break
			}
			removeCount++
			grew = true
		}
		if !grew {
			return removeCount
		}
	}
}
