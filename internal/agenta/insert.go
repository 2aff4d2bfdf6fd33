package agenta

import "github.com/eversession/core/internal/jsonl"

// InsertEntryAfter splices a freshly constructed entry into the record
// sequence immediately after the entry identified by afterUUID, renumbering
// every later record's LineNumber so Location reporting stays accurate.
// Used by the fixer to insert aborted-output stubs for orphaned tool calls.
func (t *Transcript) InsertEntryAfter(afterUUID string, e *Entry) bool {
	afterIdx := -1
	for i, r := range t.Records {
		if r == nil || !r.Valid || !r.Value.IsObject() {
			continue
		}
		if uv := r.Value.Get("uuid"); uv != nil {
			s, _ := uv.AsString()
			if s == afterUUID {
				afterIdx = i
				break
			}
		}
	}
	if afterIdx == -1 {
		return false
	}

	records := make([]*jsonl.Record, 0, len(t.Records)+1)
	records = append(records, t.Records[:afterIdx+1]...)
	records = append(records, e.Record)
	records = append(records, t.Records[afterIdx+1:]...)
	for i, r := range records {
		r.LineNumber = i + 1
	}
	t.Records = records
	e.LineNumber = afterIdx + 2

	entryIdx := -1
	for i, en := range t.Entries {
		if en.UUID == afterUUID {
			entryIdx = i
			break
		}
	}
	entries := make([]*Entry, 0, len(t.Entries)+1)
	if entryIdx == -1 {
		entries = append(entries, t.Entries...)
		entries = append(entries, e)
	} else {
		entries = append(entries, t.Entries[:entryIdx+1]...)
		entries = append(entries, e)
		entries = append(entries, t.Entries[entryIdx+1:]...)
	}
	t.Entries = entries

	if e.UUID != "" {
		t.byUUID[e.UUID] = e
	}
	return true
}
