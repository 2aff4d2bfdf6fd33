package fix

import (
	"strconv"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/agenta"
	"github.com/google/uuid"
)

// A runs the Agent A fixer rules over tr in place, returning a changelog.
// Re-running A on its own output is a no-op (returns no changes), per spec
// §4.5's idempotence requirement: each rule only fires while its
// precondition still holds.
func A(tr *agenta.Transcript, opts Options) []Change {
	var changes []Change
	changes = append(changes, mergeStreamingFragmentsA(tr, opts)...)
	changes = append(changes, removeOrphanToolResultsA(tr)...)
	if opts.InsertAbortedOutputs {
		changes = append(changes, insertAbortedOutputsA(tr)...)
	}
	return changes
}

// mergeStreamingFragmentsA merges fragments of one streaming assistant turn
// (consecutive entries sharing a message id) into a single surviving entry
// with any thinking block moved to the front; if a later fragment itself
// starts with thinking, it becomes a new
// head instead of being folded in, and removed fragments are
// dropped or tombstoned per opts.RemovalMode, relinking children when
// deleting.
func mergeStreamingFragmentsA(tr *agenta.Transcript, opts Options) []Change {
	var changes []Change
	turns := agenta.MergeStreamingTurns(tr.Entries)
	removed := make(map[string]bool)

	for _, turn := range turns {
		if len(turn.Fragments) < 2 {
			continue
		}

		groups := splitOnThinkingRestart(turn.Fragments)
		// Every group before the last was superseded by a later thinking
		// restart: all of its fragments are dropped, even a
		// singleton one.
		for _, group := range groups[:len(groups)-1] {
			for _, frag := range group {
				removed[frag.UUID] = true
			}
		}

		last := groups[len(groups)-1]
		if len(last) > 1 {
			survivor := last[len(last)-1]
			merged := mergedThinkingFirst(last)
			survivor.SetContentBlocks(merged)
			changes = append(changes, Change{
				Code:    "merged_streaming_fragment",
				Line:    survivor.LineNumber,
				Message: "merged " + strconv.Itoa(len(last)) + " streaming fragments sharing message id " + turn.MessageID,
			})
			for _, frag := range last[:len(last)-1] {
				removed[frag.UUID] = true
			}
		} else if len(groups) > 1 {
			changes = append(changes, Change{
				Code:    "dropped_superseded_fragments",
				Line:    last[0].LineNumber,
				Message: "earlier streaming fragments superseded by a thinking restart for message id " + turn.MessageID,
			})
		}
	}

	if len(removed) == 0 {
		return changes
	}

	if opts.RemovalMode == agent.RemovalTombstone {
		for _, e := range tr.Entries {
			if e.UUID != "" && removed[e.UUID] {
				e.Tombstone()
				changes = append(changes, Change{Code: "tombstoned_entry", Line: e.LineNumber, Message: "tombstoned merged-away fragment"})
			}
		}
		return changes
	}

	parentOf := tr.ParentOf()
	for _, e := range tr.Entries {
		if e.ParentUUID == "" || !removed[e.ParentUUID] {
			continue
		}
		ancestor := nearestSurvivor(e.ParentUUID, parentOf, removed)
		e.SetParentUUID(ancestor)
		changes = append(changes, Change{Code: "relinked_parent", Line: e.LineNumber, Message: "relinked parent to " + ancestor})
	}
	tr.DeleteEntries(removed)
	return changes
}

// splitOnThinkingRestart groups fragments to merge together: a run ends
// (and a new one begins) whenever a fragment after the first one in the
// turn itself opens with a thinking block.
func splitOnThinkingRestart(fragments []*agenta.Entry) [][]*agenta.Entry {
	var groups [][]*agenta.Entry
	start := 0
	for i := 1; i < len(fragments); i++ {
		if fragments[i].HasThinkingFirst() {
			groups = append(groups, fragments[start:i])
			start = i
		}
	}
	groups = append(groups, fragments[start:])
	return groups
}

// mergedThinkingFirst concatenates a fragment group's content blocks and
// moves any thinking block to the front.
func mergedThinkingFirst(group []*agenta.Entry) []agenta.ContentBlock {
	var blocks []agenta.ContentBlock
	for _, f := range group {
		blocks = append(blocks, f.Content...)
	}
	var thinking, rest []agenta.ContentBlock
	for _, b := range blocks {
		if b.Type == agenta.BlockThinking {
			thinking = append(thinking, b)
		} else {
			rest = append(rest, b)
		}
	}
	return append(thinking, rest...)
}

// nearestSurvivor walks a pre-deletion parent snapshot until it reaches a
// uuid that isn't in removed (or the root).
func nearestSurvivor(start string, parentOf map[string]string, removed map[string]bool) string {
	cur := start
	for i := 0; i < 50000 && cur != "" && removed[cur]; i++ {
		cur = parentOf[cur]
	}
	return cur
}

// removeOrphanToolResultsA drops tool_result blocks whose tool_use_id has no preceding tool_use in the
// active chain.
func removeOrphanToolResultsA(tr *agenta.Transcript) []Change {
	var changes []Change
	chain := tr.ActiveChain()
	seenToolUse := make(map[string]bool)
	for _, e := range chain {
		for _, id := range e.ToolUseIDs() {
			seenToolUse[id] = true
		}
		if !e.ContentIsBlocks {
			continue
		}
		var kept []agenta.ContentBlock
		removedAny := false
		for _, b := range e.Content {
			if b.Type == agenta.BlockToolResult && !seenToolUse[b.ToolResult] {
				removedAny = true
				continue
			}
			kept = append(kept, b)
		}
		if removedAny {
			e.SetContentBlocks(kept)
			changes = append(changes, Change{Code: "removed_orphan_tool_result", Line: e.LineNumber, Message: "removed tool_result block with no preceding tool_use"})
		}
	}
	return changes
}

// insertAbortedOutputsA inserts a synthesized aborted-output stub
// immediately after every tool_use in the active chain with no matching
// tool_result.
func insertAbortedOutputsA(tr *agenta.Transcript) []Change {
	var changes []Change
	chain := tr.ActiveChain()
	answered := make(map[string]bool)
	for _, e := range chain {
		for _, id := range e.ToolResultIDs() {
			answered[id] = true
		}
	}

	for _, e := range chain {
		for _, b := range e.Content {
			if b.Type != agenta.BlockToolUse || b.ToolUseID == "" || answered[b.ToolUseID] {
				continue
			}
			stub := newAbortedOutputStub(e.UUID, b.ToolUseID)
			if tr.InsertEntryAfter(e.UUID, stub) {
				changes = append(changes, Change{
					Code:    "inserted_aborted_output",
					Line:    stub.LineNumber,
					Message: "inserted aborted-output stub for tool_use " + b.ToolUseID,
				})
				answered[b.ToolUseID] = true
			}
		}
	}
	return changes
}

func newAbortedOutputStub(parentUUID, toolUseID string) *agenta.Entry {
	return agenta.NewAbortedToolResultEntry(uuid.NewString(), parentUUID, toolUseID)
}
