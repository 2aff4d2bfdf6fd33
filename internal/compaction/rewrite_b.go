package compaction

import (
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/jsonl"
)

// ApplyB rewrites tr's Agent B rewrite shape: the selected response items
// are removed and a single compacted line is inserted at the
// first kept position, carrying the summary and a replacement_history built
// from the pinned initial context plus a synthesized user turn holding the
// summary text. Any earlier compacted checkpoint is folded into the new
// one's replacement_history and then dropped, since it now strictly
// precedes the new insertion point.
func ApplyB(tr *agentb.Transcript, sel *Selection, summary string) []Change {
	if sel.Empty() {
		return nil
	}

	byLine := make(map[int]*agentb.Line, len(tr.Lines))
	for _, l := range tr.Lines {
		byLine[l.LineNumber] = l
	}

	removedLines := make(map[int]bool, len(sel.bLines))
	var lastRemoved *agentb.Line
	for _, ln := range sel.bLines {
		removedLines[ln] = true
		if l, ok := byLine[ln]; ok {
			lastRemoved = l
		}
	}
	if lastRemoved == nil {
		return nil
	}

	var changes []Change

	replacementHistory := &jsonl.OrderedValue{Kind: jsonl.KindArray}
	if old, ok := tr.LastCompacted(); ok {
		if rh := old.Payload.Get("replacement_history"); rh != nil && rh.Kind == jsonl.KindArray {
			replacementHistory.Arr = append(replacementHistory.Arr, rh.Arr...)
		}
		removedLines[old.LineNumber] = true
		changes = append(changes, Change{Code: "folded_prior_compaction", Line: old.LineNumber, Message: "folded prior compacted checkpoint into new replacement_history"})
	}
	for _, ln := range sel.bPinnedLines {
		if l, ok := byLine[ln]; ok && l.Payload != nil {
			replacementHistory.Arr = append(replacementHistory.Arr, l.Payload)
		}
	}
	replacementHistory.Arr = append(replacementHistory.Arr, summaryHistoryItem(summary))

	compacted := agentb.NewCompactedLine(summary, replacementHistory)
	if !tr.InsertLineAfter(lastRemoved, compacted) {
		return nil
	}
	changes = append(changes, Change{Code: "inserted_compacted_checkpoint", Line: compacted.LineNumber, Message: "inserted compacted checkpoint"})

	var kept []*agentb.Line
	for _, l := range tr.Lines {
		if l == compacted || !removedLines[l.LineNumber] {
			kept = append(kept, l)
		}
	}
	tr.ReplaceLines(kept)
	changes = append(changes, Change{Code: "removed_compacted_response_items", Message: "removed selected response items"})

	return changes
}

// summaryHistoryItem builds the synthesized user turn appended to
// replacement_history.
func summaryHistoryItem(summary string) *jsonl.OrderedValue {
	textBlock := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	textBlock.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: "input_text"})
	textBlock.Set("text", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: summary})

	item := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	item.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: "message"})
	item.Set("role", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: "user"})
	item.Set("content", &jsonl.OrderedValue{Kind: jsonl.KindArray, Arr: []*jsonl.OrderedValue{textBlock}})
	return item
}
