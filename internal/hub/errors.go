package hub

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the hub package.
// Callers should match them with errors.Is.
var (
	// ErrInvalidArgument means the caller passed a bad message type or a
	// payload that is not object-shaped to Encode/SendType.
	ErrInvalidArgument = errors.New("hub: invalid argument")

	// ErrConnClosed means a send was attempted on a connection that is not
	// in the open state. Sends outside open always fail loudly, they are
	// never silently dropped.
	ErrConnClosed = errors.New("hub: connection is not open")

	// ErrSlowConsumer means a connection's outbound buffer was full; the
	// connection is closed when this is returned.
	ErrSlowConsumer = errors.New("hub: send buffer full")

	// ErrBind means the server listener could not be started.
	ErrBind = errors.New("hub: bind failed")
)

// ParseKind discriminates the two ways an inbound envelope can fail to
// decode.
type ParseKind int

const (
	// ParseMalformed = the bytes are not syntactically valid JSON.
	ParseMalformed ParseKind = iota
	// ParseWrongShape = valid JSON but not an envelope: top level is not an
	// object, "type" is not a non-empty string, or "data" is not an object.
	ParseWrongShape
)

func (k ParseKind) String() string {
	switch k {
	case ParseMalformed:
		return "malformed"
	case ParseWrongShape:
		return "wrong_shape"
	default:
		return "unknown"
	}
}

// ParseError is the decode failure result. It is never fatal to a
// connection: the dispatch loop converts it to an error event or a raw
// passthrough message depending on the connection's passthrough flag.
type ParseError struct {
	Kind ParseKind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hub: %s envelope: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
