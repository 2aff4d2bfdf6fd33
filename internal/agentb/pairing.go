package agentb

// CallPair links a call response item to its (possibly absent) output.
type CallPair struct {
	CallID string
	Call   *Line
	Output *Line // nil if no output line exists yet
}

// Calls groups response_item lines into CallPairs keyed by call_id, in the
// order calls first appear. A call_id with more than one call line or more
// than one output line is still represented (by its first call / first
// output); the validator is responsible for flagging the duplicates.
func (t *Transcript) Calls() []*CallPair {
	var pairs []*CallPair
	index := make(map[string]*CallPair)

	for _, l := range t.Lines {
		if l.Type != LineResponse || l.CallID == "" {
			continue
		}
		p, ok := index[l.CallID]
		if !ok {
			p = &CallPair{CallID: l.CallID}
			index[l.CallID] = p
			pairs = append(pairs, p)
		}
		switch {
		case l.ItemType.isCall() && p.Call == nil:
			p.Call = l
		case l.ItemType.isOutput() && p.Output == nil:
			p.Output = l
		}
	}

	return pairs
}

// LastCompacted returns the last compacted line in file order, if any.
func (t *Transcript) LastCompacted() (*Line, bool) {
	var last *Line
	for _, l := range t.Lines {
		if l.Type == LineCompacted {
			last = l
		}
	}
	return last, last != nil
}

// VisibleResponseItems returns the response_item lines after the last
// compacted line (or all of them, if there is none) — the "visible"
// history the compaction planner selects from.
func (t *Transcript) VisibleResponseItems() []*Line {
	last, ok := t.LastCompacted()
	var out []*Line
	for _, l := range t.Lines {
		if l.Type != LineResponse {
			continue
		}
		if ok && l.LineNumber <= last.LineNumber {
			continue
		}
		out = append(out, l)
	}
	return out
}

// SessionMeta returns the first session_meta line, if any.
func (t *Transcript) SessionMeta() (*Line, bool) {
	for _, l := range t.Lines {
		if l.Type == LineSessionMeta {
			return l, true
		}
	}
	return nil, false
}
