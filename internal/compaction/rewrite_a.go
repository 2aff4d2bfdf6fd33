package compaction

import (
	"strconv"

	"github.com/eversession/core/internal/agenta"
	"github.com/google/uuid"
)

// maxRelinkWalk bounds the parent-relink walk, mirroring the fixer's
// cycle-bounded walk over a pre-deletion parent snapshot.
const maxRelinkWalk = 50000

// ApplyA rewrites tr's rewrite shape once a summary is available: in
// partial (root-rewrite) mode the root user message's content
// becomes the summary in place; when a compact_boundary confines the
// selection, a new summary entry is inserted after the boundary instead.
// Either way, every surviving entry whose parent was removed is relinked to
// the summary entry, and the removed entries are then deleted.
func ApplyA(tr *agenta.Transcript, sel *Selection, summary string) []Change {
	if sel.Empty() {
		return nil
	}

	removed := make(map[string]bool, len(sel.aUUIDs))
	for _, id := range sel.aUUIDs {
		removed[id] = true
	}

	var changes []Change
	var summaryUUID string

	if sel.aUsesBoundary {
		boundary, ok := tr.ByUUID(sel.aBoundaryUUID)
		if !ok {
			return nil
		}
		stub := agenta.NewSummaryEntry(uuid.NewString(), boundary.UUID, summary)
		if !tr.InsertEntryAfter(boundary.UUID, stub) {
			return nil
		}
		summaryUUID = stub.UUID
		changes = append(changes, Change{Code: "inserted_compaction_summary", Line: stub.LineNumber, Message: "inserted summary entry after compact boundary"})
	} else {
		root, ok := tr.ByUUID(sel.aBoundaryUUID)
		if !ok {
			return nil
		}
		root.SetContentString(summary)
		summaryUUID = root.UUID
		changes = append(changes, Change{Code: "rewrote_root_summary", Line: root.LineNumber, Message: "rewrote root message content to compaction summary"})
	}

	parentOf := tr.ParentOf()
	for _, e := range tr.Entries {
		if e.UUID == summaryUUID || e.ParentUUID == "" || !removed[e.ParentUUID] {
			continue
		}
		ancestor := nearestSurvivorA(e.ParentUUID, parentOf, removed, summaryUUID)
		e.SetParentUUID(ancestor)
		changes = append(changes, Change{Code: "relinked_parent", Line: e.LineNumber, Message: "relinked parent to " + ancestor})
	}

	tr.DeleteEntries(removed)
	changes = append(changes, Change{Code: "removed_compacted_entries", Message: "removed " + strconv.Itoa(sel.RemoveCount) + " entries from active chain"})
	return changes
}

// nearestSurvivorA walks a pre-deletion parent snapshot until it reaches a
// uuid that isn't in removed, substituting summaryUUID once the walk runs
// off the map entirely (meaning it reached a removed uuid with no recorded
// parent, i.e. the old root).
func nearestSurvivorA(start string, parentOf map[string]string, removed map[string]bool, summaryUUID string) string {
	cur := start
	for i := 0; i < maxRelinkWalk; i++ {
		if cur == "" {
			return summaryUUID
		}
		if !removed[cur] {
			return cur
		}
		next, ok := parentOf[cur]
		if !ok {
			return summaryUUID
		}
		cur = next
	}
	return summaryUUID
}
