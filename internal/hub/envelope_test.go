package hub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload, err := Encode("chat", map[string]any{"text": "hello", "n": 1})
	require.NoError(t, err)

	env, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "chat", env.Type)
	// JSON numbers decode as float64
	assert.Equal(t, map[string]any{"text": "hello", "n": float64(1)}, env.Data)
}

func TestEncodeAcceptsStructs(t *testing.T) {
	type greeting struct {
		ID string `json:"id"`
	}
	payload, err := Encode("welcome", greeting{ID: "abc"})
	require.NoError(t, err)

	env, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "abc"}, env.Data)

	// pointer to struct works too
	_, err = Encode("welcome", &greeting{ID: "abc"})
	assert.NoError(t, err)
}

func TestEncodeInvalidArguments(t *testing.T) {
	cases := []struct {
		name    string
		msgType string
		data    any
	}{
		{"empty type", "", map[string]any{}},
		{"nil data", "x", nil},
		{"string data", "x", "not-an-object"},
		{"number data", "x", 42},
		{"slice data", "x", []int{1, 2}},
		{"nil pointer", "x", (*struct{})(nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(tc.msgType, tc.data)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{"not json", "{", "", `{"type":"x","data":{`} {
		_, err := Decode([]byte(raw))
		require.Error(t, err, "input %q", raw)
		var pe *ParseError
		require.True(t, errors.As(err, &pe), "input %q", raw)
		assert.Equal(t, ParseMalformed, pe.Kind, "input %q", raw)
	}
}

func TestDecodeWrongShape(t *testing.T) {
	cases := []string{
		`[1,2]`,                       // top level not an object
		`"hello"`,                     // top level string
		`5`,                           // top level number
		`{"data":{}}`,                 // missing type
		`{"type":123,"data":{}}`,      // type not a string
		`{"type":"","data":{}}`,       // empty type
		`{"type":"x"}`,                // missing data
		`{"type":"x","data":null}`,    // null data is absence, not an object
		`{"type":"x","data":[1]}`,     // array data
		`{"type":"x","data":"text"}`,  // primitive data
		`{"type":"x","data":3.14}`,    // numeric data
	}
	for _, raw := range cases {
		_, err := Decode([]byte(raw))
		require.Error(t, err, "input %q", raw)
		var pe *ParseError
		require.True(t, errors.As(err, &pe), "input %q", raw)
		assert.Equal(t, ParseWrongShape, pe.Kind, "input %q", raw)
	}
}

func TestDecodeValid(t *testing.T) {
	env, err := Decode([]byte(`{"type":"ping","data":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "ping", env.Type)
	assert.Equal(t, map[string]any{}, env.Data)
}

func TestErrorEnvelopeDecodes(t *testing.T) {
	env, err := Decode(errorEnvelope("parse_error", "bad input"))
	require.NoError(t, err)
	assert.Equal(t, "error", env.Type)
	assert.Equal(t, "parse_error", env.Data["code"])
	assert.Equal(t, "bad input", env.Data["message"])
}
