// Package jsonl implements a line-delimited JSON codec: a byte stream
// becomes a sequence of records, each either valid-json (parsed value,
// original line number) or invalid-json (raw bytes, decode error) —
// preserved through most operations, dropped only by an explicit rewrite
// that records the drop as a change.
//
// Malformed lines are tagged rather than silently skipped, so the grammar
// and fixer layers can decide what to do with them instead of losing the
// line without a trace.
package jsonl

import (
	"bytes"
	"encoding/json"
)

// Record is one line of a JSONL file.
type Record struct {
	LineNumber int // 1-indexed, matching the transcript's own line_number field

	// Valid is true when the line parsed as JSON.
	Valid bool

	// Value holds the decoded document when Valid is true. It is an
	// ordered representation (json.RawMessage re-decoded lazily by grammar
	// layers) rather than a map, so key order survives round-trips; see
	// OrderedValue.
	Value *OrderedValue

	// Raw holds the original bytes (without trailing newline) when Valid
	// is false, or when a caller wants to re-emit a line byte-for-byte.
	Raw []byte

	// ParseError is the decode error for an invalid-json record.
	ParseError error
}

// Parse splits data into records. A trailing empty segment (the common
// case of a file ending in a newline) is not emitted as a record.
func Parse(data []byte) []Record {
	lines := splitLines(data)
	records := make([]Record, 0, len(lines))
	for i, line := range lines {
		records = append(records, parseLine(i+1, line))
	}
	return records
}

// splitLines splits on \n, dropping a single trailing empty segment.
func splitLines(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	parts := bytes.Split(data, []byte("\n"))
	if len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func parseLine(lineNumber int, line []byte) Record {
	trimmed := bytes.TrimRight(line, "\r")
	ov, err := ParseOrderedValue(trimmed)
	if err != nil {
		return Record{
			LineNumber: lineNumber,
			Valid:      false,
			Raw:        append([]byte(nil), line...),
			ParseError: err,
		}
	}
	return Record{
		LineNumber: lineNumber,
		Valid:      true,
		Value:      ov,
		Raw:        append([]byte(nil), line...),
	}
}

// Stringify re-emits records: invalid-json records as their raw bytes,
// valid-json records as a canonical one-line encoding of the (possibly
// mutated) value. Every record is newline-terminated; the whole output
// carries exactly one trailing newline.
func Stringify(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range records {
		if !r.Valid {
			buf.Write(r.Raw)
			buf.WriteByte('\n')
			continue
		}
		encoded, err := r.Value.Marshal()
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// StringifyPtr is Stringify for the []*Record shape agenta/agentb keep their
// mutable record sequence in, so callers don't need to build a throwaway
// value-slice copy just to serialize.
func StringifyPtr(records []*Record) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range records {
		if !r.Valid {
			buf.Write(r.Raw)
			buf.WriteByte('\n')
			continue
		}
		encoded, err := r.Value.Marshal()
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// MarshalCompact encodes v (any JSON-marshalable Go value) as a single
// line with no indentation, matching the canonical one-line encoding
// required by Stringify for freshly-constructed records (e.g. a new
// `compacted` line the fixer inserts).
func MarshalCompact(v any) ([]byte, error) {
	return json.Marshal(v)
}
