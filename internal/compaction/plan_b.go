package compaction

import (
	"strings"

	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/tokencount"
)

// pinnedContextLimit bounds how many leading lines are scanned for pinned
// initial context, so a pathological transcript can't make this an O(n)
// scan of the whole file on every plan.
const pinnedContextLimit = 64

// pinnedContextMarkers are the fixed substrings that mark an early user
// message as initial context (environment setup, project instructions,
// available tools) rather than ordinary conversation. This is a
// compatibility heuristic over rendered text, not a grammar rule — tests
// pin these exact substrings.
var pinnedContextMarkers = []string{
	"<environment_context>",
	"AGENTS.md",
	"<INSTRUCTIONS>",
	"<tools>",
}

// hasPinnedContextMarker reports whether text carries one of
// pinnedContextMarkers.
func hasPinnedContextMarker(text string) bool {
	for _, marker := range pinnedContextMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// PlanB selects a removal set from an Agent B transcript's visible response
// items (those after the last compacted line, or all of them), per spec
// §4.6.
func PlanB(tr *agentb.Transcript, opts Options) (*Selection, error) {
	visible := tr.VisibleResponseItems()
	if len(visible) == 0 {
		return &Selection{}, nil
	}

	costs := make([]int, len(visible))
	for i, l := range visible {
		costs[i] = tokencount.Count(tokencount.LineText(l))
	}

	removeCount, err := selectRemoveCount(opts.Amount, len(visible), costs)
	if err != nil {
		return nil, err
	}
	removeCount = expandOrphanPairsB(tr, visible, removeCount)
	if removeCount <= 0 {
		return &Selection{}, nil
	}
	if removeCount > len(visible) {
		removeCount = len(visible)
	}

	sel := &Selection{RemoveCount: removeCount}
	sel.bLines = make([]int, removeCount)
	for i := 0; i < removeCount; i++ {
		sel.bLines[i] = visible[i].LineNumber
	}
	sel.bPinnedLines = pinnedContextLines(tr)

	sel.Fingerprint.RemoveCount = removeCount
	sel.Fingerprint.FirstRemovedLine = visible[0].LineNumber
	sel.Fingerprint.LastRemovedLine = visible[removeCount-1].LineNumber
	if removeCount < len(visible) {
		sel.Fingerprint.AnchorLine = visible[removeCount].LineNumber
	}

	return sel, nil
}

// expandOrphanPairsB grows removeCount so a call and its output are never
// split across the removed/kept boundary: any orphaned output or call that
// would result gets dropped too.
func expandOrphanPairsB(tr *agentb.Transcript, visible []*agentb.Line, removeCount int) int {
	pairs := tr.Calls()
	partnerOf := make(map[int]int) // line number -> partner line number
	for _, p := range pairs {
		if p.Call != nil && p.Output != nil {
			partnerOf[p.Call.LineNumber] = p.Output.LineNumber
			partnerOf[p.Output.LineNumber] = p.Call.LineNumber
		}
	}

	for {
		if removeCount >= len(visible) {
			return removeCount
		}
		removedLines := make(map[int]bool, removeCount)
		for _, l := range visible[:removeCount] {
			removedLines[l.LineNumber] = true
		}
		grew := false
		for i := 0; i < removeCount; i++ {
			partner, ok := partnerOf[visible[i].LineNumber]
			if !ok || removedLines[partner] {
				continue
			}
			// partner is kept but this call/output is removed: push the
			// boundary out to include it too.
			for removeCount < len(visible) && visible[removeCount-1].LineNumber != partner {
				removeCount++
				grew = true
			}
		}
		if !grew {
			return removeCount
		}
	}
}

// pinnedContextLines finds the leading system/developer response items (and
// any early user message carrying a pinnedContextMarkers substring) that
// must be carried forward into replacement_history instead of discarded,
// even when they fall inside the removed range. System/developer role is
// read directly off payload.role since ResponseItemType alone doesn't
// distinguish it from a regular user message; a user message, lacking that
// unambiguous signal, is only pinned when its rendered text matches the
// fixed marker substrings.
func pinnedContextLines(tr *agentb.Transcript) []int {
	var pinned []int
	scanned := 0
	for _, l := range tr.Lines {
		if l.Type != agentb.LineResponse || l.ItemType != agentb.RespMessage {
			continue
		}
		scanned++
		if scanned > pinnedContextLimit {
			break
		}
		role, _ := l.Payload.Get("role").AsString()
		switch role {
		case "system", "developer":
			pinned = append(pinned, l.LineNumber)
		case "user":
			if hasPinnedContextMarker(tokencount.LineText(l)) {
				pinned = append(pinned, l.LineNumber)
			}
		}
	}
	return pinned
}
