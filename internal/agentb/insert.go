package agentb

import "github.com/eversession/core/internal/jsonl"

// ReplaceLines replaces Transcript.Lines with kept (a filtered subset of
// the current Lines) and drops the corresponding records from Records.
// Used by the fixer when removing orphan outputs.
func (t *Transcript) ReplaceLines(kept []*Line) {
	keptRecords := make(map[*jsonl.Record]bool, len(kept))
	for _, l := range kept {
		keptRecords[l.Record] = true
	}
	removedRecords := make(map[*jsonl.Record]bool)
	for _, l := range t.Lines {
		if !keptRecords[l.Record] {
			removedRecords[l.Record] = true
		}
	}

	var records []*jsonl.Record
	for _, r := range t.Records {
		if !removedRecords[r] {
			records = append(records, r)
		}
	}
	t.Records = records
	t.Lines = kept
}

// InsertLineAfter splices a freshly constructed line into the record
// sequence immediately after after, renumbering every later record's
// LineNumber. Used by the fixer to insert aborted-output stubs.
func (t *Transcript) InsertLineAfter(after *Line, l *Line) bool {
	afterIdx := -1
	for i, r := range t.Records {
		if r == after.Record {
			afterIdx = i
			break
		}
	}
	if afterIdx == -1 {
		return false
	}

	records := make([]*jsonl.Record, 0, len(t.Records)+1)
	records = append(records, t.Records[:afterIdx+1]...)
	records = append(records, l.Record)
	records = append(records, t.Records[afterIdx+1:]...)
	for i, r := range records {
		r.LineNumber = i + 1
	}
	t.Records = records
	l.LineNumber = afterIdx + 2

	lineIdx := -1
	for i, ln := range t.Lines {
		if ln == after {
			lineIdx = i
			break
		}
	}
	lines := make([]*Line, 0, len(t.Lines)+1)
	if lineIdx == -1 {
		lines = append(lines, t.Lines...)
		lines = append(lines, l)
	} else {
		lines = append(lines, t.Lines[:lineIdx+1]...)
		lines = append(lines, l)
		lines = append(lines, t.Lines[lineIdx+1:]...)
	}
	t.Lines = lines
	return true
}

// NewAbortedOutputLine builds a synthesized output response_item for callID
// of kind outputKind, marked aborted. Used by the fixer's
// insert_aborted_outputs option.
func NewAbortedOutputLine(callID string, outputKind ResponseItemType) *Line {
	payload := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	payload.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: string(outputKind)})
	payload.Set("call_id", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: callID})
	payload.Set("output", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: "aborted: no output was recorded for this call"})
	payload.Set("aborted", &jsonl.OrderedValue{Kind: jsonl.KindBool, Bool: true})

	obj := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	obj.Set("timestamp", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: ""})
	obj.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: string(LineResponse)})
	obj.Set("payload", payload)

	return &Line{
		Record:   &jsonl.Record{Valid: true, Value: obj},
		Type:     LineResponse,
		Payload:  payload,
		ItemType: outputKind,
		CallID:   callID,
	}
}

// NewCompactedLine builds a compacted checkpoint line carrying message and
// replacementHistory.
func NewCompactedLine(message string, replacementHistory *jsonl.OrderedValue) *Line {
	payload := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	payload.Set("message", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: message})
	payload.Set("replacement_history", replacementHistory)

	obj := &jsonl.OrderedValue{Kind: jsonl.KindObject}
	obj.Set("timestamp", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: ""})
	obj.Set("type", &jsonl.OrderedValue{Kind: jsonl.KindString, Str: string(LineCompacted)})
	obj.Set("payload", payload)

	return &Line{
		Record:  &jsonl.Record{Valid: true, Value: obj},
		Type:    LineCompacted,
		Payload: payload,
	}
}
