package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
		text  string
	}{
		{"", KindNull, ""},
		{"   ", KindNull, ""},
		{"42", KindNumber, "42"},
		{"-1.5", KindNumber, "-1.5"},
		{"true", KindBool, "true"},
		{"FALSE", KindBool, "false"},
		{"2024-03-01", KindDate, "2024-03-01"},
		{"1,234", KindText, "1,234"},
		{"Jana", KindText, "Jana"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := ParseValue(tt.input)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.text, v.String())
		})
	}
}

func TestValueConversions(t *testing.T) {
	f, ok := Text("€ 1 234,50").AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 1234.5, f)

	_, ok = Null().AsNumber()
	assert.False(t, ok)

	f, ok = Bool(true).AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)

	b, ok := Text("áno").AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	b, ok = Number(0).AsBool()
	assert.True(t, ok)
	assert.False(t, b)

	d, ok := Text("15.1.2024").AsDate()
	assert.True(t, ok)
	assert.Equal(t, "2024-01-15", d.Format("2006-01-02"))

	_, ok = Number(3).AsDate()
	assert.False(t, ok)
}

func TestValueBlankAndEqual(t *testing.T) {
	assert.True(t, Null().IsBlank())
	assert.True(t, Text(" \t").IsBlank())
	assert.False(t, Number(0).IsBlank())
	assert.False(t, Bool(false).IsBlank())

	assert.True(t, Null().Equal(Null()))
	assert.True(t, Text("a").Equal(Text("a")))
	assert.False(t, Text("1").Equal(Number(1)), "different kinds are never equal")
	assert.False(t, Null().Equal(Text("")))

	day := time.Date(2024, 3, 1, 15, 4, 5, 0, time.FixedZone("CET", 3600))
	assert.True(t, Date(day).Equal(Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))))
}

func TestValueJSON(t *testing.T) {
	in := map[string]Value{
		"null":   Null(),
		"number": Number(2.5),
		"bool":   Bool(true),
		"text":   Text("Jana"),
		"date":   Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"null":null,"number":2.5,"bool":true,"text":"Jana","date":"2024-03-01"}`, string(data))

	var out map[string]Value
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out["null"].IsNull())
	assert.Equal(t, KindNumber, out["number"].Kind())
	assert.Equal(t, KindBool, out["bool"].Kind())
	// Strings stay text on decode; callers convert with AsDate.
	assert.Equal(t, KindText, out["date"].Kind())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "null", KindNull.String())
	assert.Equal(t, "number", KindNumber.String())
	assert.Equal(t, "date", KindDate.String())
}
