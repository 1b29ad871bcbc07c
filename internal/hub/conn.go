package hub

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const ( // ping pong (2-way heartbeat) to keep the connection alive
	writeWait  = 10 * time.Second    // max time to write a message to the peer
	pongWait   = 60 * time.Second    // no pong within this window = dead connection
	pingPeriod = (pongWait * 9) / 10 // ping before the pong window expires

	// DefaultMaxPayload caps inbound message size when the caller does not
	// pick one. Enforcement is delegated to the transport read limit.
	DefaultMaxPayload = 1024 * 1024 // 1MB

	sendBufferSize = 256
)

// State is the lifecycle of a single connection. Transitions are monotonic:
// CONNECTING -> OPEN -> CLOSING -> CLOSED, never backwards and never reopened.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseInfo is the payload of a connection's close event.
type CloseInfo struct {
	Code   int
	Reason string
}

// ConnOptions configures a single Conn at construction. The passthrough
// flag is immutable for the life of the connection.
type ConnOptions struct {
	Passthrough bool
	MaxPayload  int64
	RateLimit   float64 // inbound messages per second, 0 = unlimited
	RateBurst   int
	Logger      *slog.Logger
}

// Conn wraps one raw websocket session and owns the typed layer on top of
// it: envelope dispatch, error routing and the lifecycle state machine.
// The raw transport is held by composition and never exposed.
//
// One read pump and one write pump goroutine serve the connection, so all
// inbound dispatch for a single connection is sequential, in transport
// delivery order. Outbound writes happen in enqueue order.
type Conn struct {
	ID       string // assigned by the accepting server; local-only for dialed conns
	UserID   string // from upgrade auth claims, empty when auth is off
	Username string

	ws          *websocket.Conn
	passthrough bool
	maxPayload  int64
	limiter     *rate.Limiter
	logger      *slog.Logger
	events      emitter

	sendCh chan []byte
	done   chan struct{}

	mu          sync.Mutex
	state       State
	started     bool
	closeCode   int
	closeReason string

	// registry hooks, set by the owning server before start
	onDispatch func(*Conn, *Envelope)
	onClosed   func(*Conn)
}

func newConn(id string, ws *websocket.Conn, opts ConnOptions) *Conn {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPayload := opts.MaxPayload
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Conn{
		ID:          id,
		ws:          ws,
		passthrough: opts.Passthrough,
		maxPayload:  maxPayload,
		limiter:     limiter,
		logger:      logger.With("client_id", id),
		sendCh:      make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
		state:       StateConnecting,
	}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Passthrough reports whether decode failures degrade to raw message
// events instead of errors on this connection.
func (c *Conn) Passthrough() bool {
	return c.passthrough
}

// Event subscriptions. Each returns an unsubscribe func. All listeners are
// released automatically when the connection closes.

// OnType registers a handler for inbound envelopes of the given type. The
// handler receives the decoded data object.
func (c *Conn) OnType(name string, fn func(data map[string]any)) func() {
	return c.events.on("type:"+name, func(payload any) {
		fn(payload.(map[string]any))
	})
}

// OnMessage registers a handler for raw payloads. It only ever fires on a
// passthrough connection, with the undecodable bytes verbatim.
func (c *Conn) OnMessage(fn func(raw []byte)) func() {
	return c.events.on("message", func(payload any) {
		fn(payload.([]byte))
	})
}

// OnError registers a handler for parse and transport errors. Parse
// failures never close the connection; transport errors do.
func (c *Conn) OnError(fn func(err error)) func() {
	return c.events.on("error", func(payload any) {
		fn(payload.(error))
	})
}

// OnOpen registers a handler for entry into the open state.
func (c *Conn) OnOpen(fn func()) func() {
	return c.events.on("open", func(any) { fn() })
}

// OnClose registers a handler for entry into the closed state.
func (c *Conn) OnClose(fn func(code int, reason string)) func() {
	return c.events.on("close", func(payload any) {
		info := payload.(CloseInfo)
		fn(info.Code, info.Reason)
	})
}

// SendType encodes a typed message and queues it for the peer. It fails
// with ErrInvalidArgument under the same rules as Encode and with
// ErrConnClosed when the connection is not open; it never silently drops.
func (c *Conn) SendType(msgType string, data any) error {
	payload, err := Encode(msgType, data)
	if err != nil {
		return err
	}
	return c.send(payload)
}

// send queues already-encoded envelope bytes. Broadcast uses this path so
// the envelope is serialized once per call, not once per connection.
func (c *Conn) send(payload []byte) error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrConnClosed, c.state)
	}
	c.mu.Unlock()

	select {
	case c.sendCh <- payload:
		return nil
	default:
		// the peer is not draining its socket; closing it beats blocking
		// every other connection behind it
		c.logger.Warn("send_buffer_full")
		c.Close(websocket.ClosePolicyViolation, "slow consumer")
		return ErrSlowConsumer
	}
}

// Start moves the connection to open and launches the read and write
// pumps. Called exactly once: by the server accept path, or by the caller
// of Dial once its handlers are registered. Sends before Start fail with
// ErrConnClosed. Starting a connection that was already closed is a no-op:
// the state machine never moves backwards.
func (c *Conn) Start() {
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateOpen
	c.started = true
	c.mu.Unlock()
	c.events.emit("open", nil)
	go c.writePump()
	go c.readPump()
}

// Close requests the transition to closing. Idempotent: the second and
// later calls are no-ops, so a connection tears down exactly once. Closing
// a connection that was never started tears it down inline, since there
// are no pumps to do it.
func (c *Conn) Close(code int, reason string) {
	c.mu.Lock()
	if c.state >= StateClosing {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.closeCode = code
	c.closeReason = reason
	started := c.started
	c.mu.Unlock()
	close(c.done) // wakes the write pump to flush, send the close frame and drop the socket

	if !started {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason))
		c.finish()
	}
}

// readPump owns all reads from the transport. It runs until the socket
// dies or closes, then finalizes the connection.
func (c *Conn) readPump() {
	defer c.finish()

	c.ws.SetReadLimit(c.maxPayload)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				// keep the peer's code and reason for the close event
				c.Close(ce.Code, ce.Text)
			}
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				// transport fault: report on this connection only, the
				// registry and sibling connections are unaffected
				c.events.emit("error", fmt.Errorf("transport: %w", err))
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if c.limiter != nil && !c.limiter.Allow() {
			c.logger.Warn("rate_limit_exceeded")
			_ = c.send(errorEnvelope("rate_limited", "rate limit exceeded"))
			continue
		}

		c.dispatch(raw)
	}
}

// dispatch runs the error/passthrough policy for one inbound frame.
// Malformed input never disappears silently and never crashes the
// connection: it becomes either a local error event plus a best-effort
// error envelope to the peer, or, under passthrough, a raw message event.
func (c *Conn) dispatch(raw []byte) {
	env, err := Decode(raw)
	if err != nil {
		if c.passthrough {
			c.events.emit("message", raw)
			return
		}
		var kind string
		if pe, ok := err.(*ParseError); ok {
			kind = pe.Kind.String()
		}
		// reply failure is swallowed on purpose: erroring about a failed
		// error reply would loop
		_ = c.send(errorEnvelope("parse_error", err.Error()))
		c.logger.Warn("invalid_envelope_received", "kind", kind, "error", err.Error())
		c.events.emit("error", err)
		return
	}

	c.events.emit("type:"+env.Type, env.Data)
	if c.onDispatch != nil {
		c.onDispatch(c, env)
	}
}

// writePump owns all writes to the transport: queued envelopes, keepalive
// pings and the final close frame.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.sendCh:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				c.ws.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				c.ws.Close()
				return
			}
		case <-c.done:
			c.drainAndClose()
			return
		}
	}
}

// drainAndClose flushes writes queued before Close was called, then sends
// the close frame and drops the socket, which unblocks the read pump.
func (c *Conn) drainAndClose() {
	for {
		select {
		case payload := <-c.sendCh:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.ws.Close()
				return
			}
		default:
			c.mu.Lock()
			code, reason := c.closeCode, c.closeReason
			c.mu.Unlock()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason))
			c.ws.Close()
			return
		}
	}
}

// finish completes the CLOSING -> CLOSED transition: emit the close event,
// detach every listener and notify the owning registry. It runs exactly
// once, on read pump exit or, for a connection closed before start, from
// Close itself.
func (c *Conn) finish() {
	c.Close(websocket.CloseNormalClosure, "") // no-op if already closing
	c.mu.Lock()
	c.state = StateClosed
	code, reason := c.closeCode, c.closeReason
	c.mu.Unlock()
	c.ws.Close()

	c.logger.Info("connection_closed", "code", code, "reason", reason)
	c.events.emit("close", CloseInfo{Code: code, Reason: reason})
	c.events.removeAll()
	if c.onClosed != nil {
		c.onClosed(c)
	}
}
