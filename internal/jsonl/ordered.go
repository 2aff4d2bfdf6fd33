package jsonl

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OrderedValue is a JSON value that preserves object key insertion order,
// so a parse-then-stringify round trip is byte-identical for files that
// were not mutated. encoding/json's map-based
// decoding would re-sort or reorder nothing itself, but callers that read
// a value into map[string]any and re-marshal it lose the original key
// order; OrderedValue avoids that by keeping objects as ordered pairs.
type OrderedValue struct {
	Kind  Kind
	Str   string
	Num   json.Number
	Bool  bool
	Arr   []*OrderedValue
	Obj   []KV // ordered key/value pairs
	isNil bool
}

type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

type KV struct {
	Key   string
	Value *OrderedValue
}

// ParseOrderedValue decodes a single JSON document, preserving object key
// order and rejecting trailing garbage after the value.
func ParseOrderedValue(data []byte) (*OrderedValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	// Ensure no trailing non-whitespace tokens.
	if _, err := dec.Token(); err == nil {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (*OrderedValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeTokenValue(dec, tok)
}

func decodeTokenValue(dec *json.Decoder, tok json.Token) (*OrderedValue, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case string:
		return &OrderedValue{Kind: KindString, Str: t}, nil
	case json.Number:
		return &OrderedValue{Kind: KindNumber, Num: t}, nil
	case bool:
		return &OrderedValue{Kind: KindBool, Bool: t}, nil
	case nil:
		return &OrderedValue{Kind: KindNull, isNil: true}, nil
	default:
		return nil, fmt.Errorf("unsupported token type %T", tok)
	}
}

func decodeObject(dec *json.Decoder) (*OrderedValue, error) {
	ov := &OrderedValue{Kind: KindObject}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string object key, got %T", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		ov.Obj = append(ov.Obj, KV{Key: key, Value: val})
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return ov, nil
}

func decodeArray(dec *json.Decoder) (*OrderedValue, error) {
	ov := &OrderedValue{Kind: KindArray}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		ov.Arr = append(ov.Arr, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return ov, nil
}

// Marshal encodes the value as compact JSON, preserving object key order.
func (v *OrderedValue) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *OrderedValue) write(buf *bytes.Buffer) error {
	if v == nil || v.isNil {
		buf.WriteString("null")
		return nil
	}
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		enc, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		buf.Write(enc)
	case KindNumber:
		buf.WriteString(string(v.Num))
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.Arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, kv := range v.Obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyEnc, err := json.Marshal(kv.Key)
			if err != nil {
				return err
			}
			buf.Write(keyEnc)
			buf.WriteByte(':')
			if err := kv.Value.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// Get returns the value for key in an object, or nil if absent or v is not
// an object.
func (v *OrderedValue) Get(key string) *OrderedValue {
	if v == nil || v.Kind != KindObject {
		return nil
	}
	for _, kv := range v.Obj {
		if kv.Key == key {
			return kv.Value
		}
	}
	return nil
}

// Set replaces the value for key, appending it if absent, preserving the
// position of an existing key.
func (v *OrderedValue) Set(key string, val *OrderedValue) {
	for i, kv := range v.Obj {
		if kv.Key == key {
			v.Obj[i].Value = val
			return
		}
	}
	v.Obj = append(v.Obj, KV{Key: key, Value: val})
}

// IsObject reports whether v decodes to a JSON object.
func (v *OrderedValue) IsObject() bool { return v != nil && v.Kind == KindObject }

// IsNull reports whether v is JSON null or a nil pointer (treated the same
// by callers checking for an absent/null field).
func (v *OrderedValue) IsNull() bool { return v == nil || v.Kind == KindNull }

// AsString returns the value as a string and whether it was a JSON string.
func (v *OrderedValue) AsString() (string, bool) {
	if v == nil || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// StringValue decodes v (a JSON value) into a native Go value via
// encoding/json, for callers that want typed access instead of the
// order-preserving tree (e.g. grammar layers decoding into structs).
func (v *OrderedValue) Decode(out any) error {
	enc, err := v.Marshal()
	if err != nil {
		return err
	}
	return json.Unmarshal(enc, out)
}

// FromAny builds an OrderedValue from a native Go value (used when the
// fixer synthesizes a brand-new record, e.g. a compacted line, where key
// order doesn't need to match an original file).
func FromAny(v any) (*OrderedValue, error) {
	enc, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return ParseOrderedValue(enc)
}

// String returns v.Str for a KindString and "" otherwise. Convenience for
// grammar code that has already validated the kind.
func (v *OrderedValue) String() string {
	if v == nil {
		return ""
	}
	return v.Str
}
