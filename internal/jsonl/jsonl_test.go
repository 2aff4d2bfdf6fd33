package jsonl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValidAndInvalidLines(t *testing.T) {
	data := []byte("{\"a\":1}\nnot json\n{\"b\":[1,2,3]}\n")
	records := Parse(data)
	require.Len(t, records, 3)

	require.True(t, records[0].Valid)
	require.Equal(t, 1, records[0].LineNumber)

	require.False(t, records[1].Valid)
	require.Equal(t, 2, records[1].LineNumber)
	require.Equal(t, "not json", string(records[1].Raw))
	require.Error(t, records[1].ParseError)

	require.True(t, records[2].Valid)
	require.Equal(t, 3, records[2].LineNumber)
}

func TestParseNoTrailingEmptyRecord(t *testing.T) {
	data := []byte("{\"a\":1}\n")
	records := Parse(data)
	require.Len(t, records, 1)
}

func TestRoundTripByteEquality(t *testing.T) {
	data := []byte("{\"b\":1,\"a\":2}\nmalformed {{{\n{\"z\":[3,2,1]}\n")
	records := Parse(data)
	out, err := Stringify(records)
	require.NoError(t, err)
	require.Equal(t, string(data), string(out))
}

func TestOrderedValuePreservesKeyOrder(t *testing.T) {
	ov, err := ParseOrderedValue([]byte(`{"zeta":1,"alpha":2,"middle":{"y":1,"x":2}}`))
	require.NoError(t, err)
	out, err := ov.Marshal()
	require.NoError(t, err)
	require.Equal(t, `{"zeta":1,"alpha":2,"middle":{"y":1,"x":2}}`, string(out))
}

func TestOrderedValueGetSet(t *testing.T) {
	ov, err := ParseOrderedValue([]byte(`{"a":1,"b":2}`))
	require.NoError(t, err)

	require.NotNil(t, ov.Get("a"))
	require.Nil(t, ov.Get("missing"))

	repl, err := FromAny("replaced")
	require.NoError(t, err)
	ov.Set("a", repl)

	out, err := ov.Marshal()
	require.NoError(t, err)
	require.Equal(t, `{"a":"replaced","b":2}`, string(out))

	// Set on a new key appends at the end.
	repl2, _ := FromAny(3)
	ov.Set("c", repl2)
	out2, _ := ov.Marshal()
	require.Equal(t, `{"a":"replaced","b":2,"c":3}`, string(out2))
}

func TestParseOrderedValueRejectsTrailingGarbage(t *testing.T) {
	_, err := ParseOrderedValue([]byte(`{"a":1} garbage`))
	require.Error(t, err)
}
