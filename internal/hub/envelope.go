package hub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Envelope is the wire unit exchanged over a connection: a single JSON
// document with exactly two top-level fields. No version field, no length
// prefix; message framing belongs to the transport.
type Envelope struct {
	Type string         `json:"type"` // routing key, never empty
	Data map[string]any `json:"data"` // structured payload, always a JSON object
}

// Encode serializes a typed message into envelope bytes.
//
// msgType must be non-empty and data must be object-shaped: a map with
// string keys or a struct (pointer to struct is fine). nil, primitives,
// slices and arrays are rejected with ErrInvalidArgument; an envelope's
// data field is always a JSON object, never null or an array.
func Encode(msgType string, data any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("%w: message type must be a non-empty string", ErrInvalidArgument)
	}
	if !objectShaped(data) {
		return nil, fmt.Errorf("%w: data must be object-shaped, got %T", ErrInvalidArgument, data)
	}
	payload, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: msgType, Data: data})
	if err != nil {
		// unmarshalable object values (channels, cycles) are still a
		// caller mistake, not a transport fault
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return payload, nil
}

// Decode parses envelope bytes. On failure it returns a *ParseError whose
// Kind tells malformed syntax apart from a wrong-shape document. Pure data
// transform, no side effects.
func Decode(raw []byte) (*Envelope, error) {
	var probe struct {
		Type json.RawMessage `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// valid JSON, just not an object at the top level
			return nil, &ParseError{Kind: ParseWrongShape, Err: err}
		}
		return nil, &ParseError{Kind: ParseMalformed, Err: err}
	}

	var msgType string
	if probe.Type == nil {
		return nil, &ParseError{Kind: ParseWrongShape, Err: errors.New("missing type field")}
	}
	if err := json.Unmarshal(probe.Type, &msgType); err != nil {
		return nil, &ParseError{Kind: ParseWrongShape, Err: errors.New("type field is not a string")}
	}
	if msgType == "" {
		return nil, &ParseError{Kind: ParseWrongShape, Err: errors.New("type field is empty")}
	}

	if probe.Data == nil {
		return nil, &ParseError{Kind: ParseWrongShape, Err: errors.New("missing data field")}
	}
	trimmed := bytes.TrimSpace(probe.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		// null, arrays and primitives are all wrong-shape; data is an object
		return nil, &ParseError{Kind: ParseWrongShape, Err: errors.New("data field is not an object")}
	}
	var data map[string]any
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return nil, &ParseError{Kind: ParseWrongShape, Err: err}
	}

	return &Envelope{Type: msgType, Data: data}, nil
}

// objectShaped reports whether v serializes to a JSON object.
func objectShaped(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		return rv.Type().Key().Kind() == reflect.String
	case reflect.Struct:
		return true
	default:
		return false
	}
}

// errorEnvelope builds the best-effort "error" reply sent to a peer whose
// message failed to decode. Encoding here cannot fail: the type and data
// are both fixed shapes.
func errorEnvelope(code, message string) []byte {
	payload, _ := Encode("error", map[string]any{
		"code":    code,
		"message": message,
	})
	return payload
}
