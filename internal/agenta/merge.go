package agenta

// MergedTurn groups the streaming fragments (consecutive-in-chain assistant
// entries sharing a MessageID) that the agent treats as one logical turn.
// Entries remain separate lines on disk; this is a read-only view used to
// judge the thinking-first invariant across the merge, used only for
// validating that ordering, never for any mutation.
type MergedTurn struct {
	MessageID string
	Fragments []*Entry // in chain order
}

// MergedContent concatenates the fragments' content blocks in fragment
// order, the shape the thinking-first check and the fixer's reordering both
// operate on.
func (m *MergedTurn) MergedContent() []ContentBlock {
	var blocks []ContentBlock
	for _, f := range m.Fragments {
		blocks = append(blocks, f.Content...)
	}
	return blocks
}

// MergeStreamingTurns walks chain (a root-to-leaf active chain, or any
// ordered entry slice) and groups consecutive assistant entries that share
// a non-empty MessageID into MergedTurns. Non-assistant entries, and
// assistant entries without a MessageID, each become their own
// single-fragment MergedTurn so callers can treat the chain uniformly.
func MergeStreamingTurns(chain []*Entry) []*MergedTurn {
	var turns []*MergedTurn
	for _, e := range chain {
		if e.Type == EntryAssistant && e.MessageID != "" {
			if n := len(turns); n > 0 {
				last := turns[n-1]
				if len(last.Fragments) > 0 &&
					last.Fragments[0].Type == EntryAssistant &&
					last.MessageID == e.MessageID {
					last.Fragments = append(last.Fragments, e)
					continue
				}
			}
			turns = append(turns, &MergedTurn{MessageID: e.MessageID, Fragments: []*Entry{e}})
			continue
		}
		turns = append(turns, &MergedTurn{Fragments: []*Entry{e}})
	}
	return turns
}
