package agenta

import "github.com/eversession/core/internal/jsonl"

// maxParentWalk bounds any single walk up or down the parent_uuid tree, per
// the cyclic-parent-chain design note: a transcript with a cycle must not
// hang the pipeline.
const maxParentWalk = 50000

// BuildTree links each entry to its children via ParentUUID, and returns the
// root entries (ParentUUID == "" or pointing at a uuid not present in the
// transcript). Does not detect cycles; ActiveChain does, via its bounded
// walk.
func (t *Transcript) BuildTree() []*Entry {
	var roots []*Entry

	for _, e := range t.Entries {
		if !e.IsChainEligible() {
			continue
		}
		if e.ParentUUID == "" {
			roots = append(roots, e)
			continue
		}
		parent, ok := t.byUUID[e.ParentUUID]
		if !ok || !parent.IsChainEligible() {
			roots = append(roots, e)
			continue
		}
		parent.Children = append(parent.Children, e)
	}

	return roots
}

// Leaves returns every chain-eligible entry that is not referenced as
// anyone's ParentUUID (a candidate leaf of the active chain).
func (t *Transcript) Leaves() []*Entry {
	referenced := make(map[string]bool, len(t.Entries))
	for _, e := range t.Entries {
		if e.IsChainEligible() && e.ParentUUID != "" {
			referenced[e.ParentUUID] = true
		}
	}
	var leaves []*Entry
	for _, e := range t.Entries {
		if !e.IsChainEligible() {
			continue
		}
		if !referenced[e.UUID] {
			leaves = append(leaves, e)
		}
	}
	return leaves
}

// ParentOf returns a snapshot of every entry's current ParentUUID, keyed by
// uuid. Callers that need to relink across entries about to be deleted take
// this snapshot first, since DeleteEntries removes the deleted entries'
// ParentUUID along with them.
func (t *Transcript) ParentOf() map[string]string {
	m := make(map[string]string, len(t.Entries))
	for _, e := range t.Entries {
		if e.UUID != "" {
			m[e.UUID] = e.ParentUUID
		}
	}
	return m
}

// DeleteEntries removes the entries whose uuid is in removed from both
// Records and Entries, and drops them from the uuid index. Callers must
// relink any surviving entry's ParentUUID away from a removed uuid first
// (see ParentOf) — this is the "delete" removal mode's second half: the
// surviving tree must never be left with a dangling parent_uuid.
func (t *Transcript) DeleteEntries(removed map[string]bool) {
	if len(removed) == 0 {
		return
	}

	keptEntries := t.Entries[:0]
	deletedRecords := make(map[*jsonl.Record]bool, len(removed))
	for _, e := range t.Entries {
		if e.UUID != "" && removed[e.UUID] {
			deletedRecords[e.Record] = true
			delete(t.byUUID, e.UUID)
			continue
		}
		keptEntries = append(keptEntries, e)
	}
	t.Entries = keptEntries

	keptRecords := t.Records[:0]
	for _, r := range t.Records {
		if !deletedRecords[r] {
			keptRecords = append(keptRecords, r)
		}
	}
	t.Records = keptRecords
}

// ActiveChain resolves the unique root-to-leaf path: among candidate leaves (entries never referenced as a parent), the one
// with the latest timestamp wins, ties broken by file order (later line
// wins). The walk from that leaf back to the root is bounded at
// maxParentWalk hops to guard against a cyclic parent_uuid chain.
func (t *Transcript) ActiveChain() []*Entry {
	leaves := t.Leaves()
	if len(leaves) == 0 {
		return nil
	}

	best := leaves[0]
	for _, l := range leaves[1:] {
		if leafWins(l, best) {
			best = l
		}
	}

	return t.walkToRoot(best)
}

// leafWins reports whether candidate should replace current as the active
// leaf: a strictly later timestamp wins; equal (or unparseable) timestamps
// fall back to file order, where the later line wins.
func leafWins(candidate, current *Entry) bool {
	if candidate.Timestamp != current.Timestamp {
		return candidate.Timestamp > current.Timestamp
	}
	return candidate.LineNumber > current.LineNumber
}

// walkToRoot returns the path from the tree root to leaf, inclusive, oldest
// first. The walk is capped at maxParentWalk hops; a transcript whose
// parent_uuid chain cycles back on itself before reaching a root yields a
// truncated chain rather than looping forever.
func (t *Transcript) walkToRoot(leaf *Entry) []*Entry {
	var reversed []*Entry
	seen := make(map[string]bool)
	cur := leaf
	for i := 0; i < maxParentWalk && cur != nil; i++ {
		if cur.UUID != "" && seen[cur.UUID] {
			break // cycle detected; stop rather than loop
		}
		if cur.UUID != "" {
			seen[cur.UUID] = true
		}
		reversed = append(reversed, cur)
		if cur.ParentUUID == "" {
			break
		}
		parent, ok := t.byUUID[cur.ParentUUID]
		if !ok {
			break
		}
		cur = parent
	}

	chain := make([]*Entry, len(reversed))
	for i, e := range reversed {
		chain[len(reversed)-1-i] = e
	}
	return chain
}
