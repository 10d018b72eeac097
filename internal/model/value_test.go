package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalValue(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"integer number", Number(70), "70"},
		{"fractional number", Number(70.5), "70.5"},
		{"text", Text("felt <fine>"), `"felt <fine>"`},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalValue_Rejects(t *testing.T) {
	_, err := MarshalValue(nil)
	assert.Error(t, err)

	_, err = MarshalValue(Number(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalValue(Number(math.Inf(1)))
	assert.Error(t, err)
}

func TestUnmarshalValue(t *testing.T) {
	v, err := UnmarshalValue([]byte("70"))
	require.NoError(t, err)
	assert.Equal(t, Number(70), v)

	v, err = UnmarshalValue([]byte(`"ok"`))
	require.NoError(t, err)
	assert.Equal(t, Text("ok"), v)

	v, err = UnmarshalValue([]byte("true"))
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)
}

func TestUnmarshalValue_Malformed(t *testing.T) {
	for _, in := range []string{"", "{bad", "null", "[1,2]", `{"a":1}`} {
		t.Run(in, func(t *testing.T) {
			_, err := UnmarshalValue([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(TypeNumber, "120.5")
	require.NoError(t, err)
	assert.Equal(t, Number(120.5), v)

	_, err = ParseValue(TypeNumber, "heavy")
	assert.Error(t, err)

	v, err = ParseValue(TypeBoolean, "yes")
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)

	v, err = ParseValue(TypeBoolean, "false")
	require.NoError(t, err)
	assert.Equal(t, Bool(false), v)

	v, err = ParseValue(TypeString, "tired")
	require.NoError(t, err)
	assert.Equal(t, Text("tired"), v)

	_, err = ParseValue("color", "red")
	assert.Error(t, err)
}

func TestValueType(t *testing.T) {
	assert.Equal(t, TypeNumber, Number(1).Type())
	assert.Equal(t, TypeString, Text("a").Type())
	assert.Equal(t, TypeBoolean, Bool(true).Type())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "70", FormatValue(Number(70)))
	assert.Equal(t, "70.25", FormatValue(Number(70.25)))
	assert.Equal(t, "true", FormatValue(Bool(true)))
	assert.Equal(t, "ok", FormatValue(Text("ok")))
	assert.Equal(t, "", FormatValue(nil))
}
