package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// historyWriteTimeout bounds each asynchronous history write.
const historyWriteTimeout = 5 * time.Second

// TypedMessage is a decoded inbound envelope as re-emitted at server scope,
// enriched with the origin connection and a receipt timestamp so one
// listener can multiplex every connection.
type TypedMessage struct {
	MessageID string         `json:"message_id"`
	ClientID  string         `json:"client_id"`
	Time      time.Time      `json:"time"`
	Data      map[string]any `json:"data"`
}

// Registry is the set of live connections accepted by a server, keyed by
// connection ID. It owns identifier assignment and set membership and
// nothing else; parsing stays with each connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn

	logger  *slog.Logger
	events  emitter
	history HistoryRepository
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:  make(map[string]*Conn),
		logger: logger,
	}
}

func (r *Registry) add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
	r.logger.Info("client_added", "client_id", c.ID)
}

// remove is the close hook registered on every accepted connection; no
// other component mutates the set.
func (r *Registry) remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.ID)
	r.logger.Info("client_removed", "client_id", c.ID)
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Get looks up a live connection by ID.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// Broadcast encodes the message once and writes the same bytes to every
// connection open at call time. Connections that close during the call are
// skipped; cross-connection delivery order is not guaranteed.
func (r *Registry) Broadcast(msgType string, data any) error {
	payload, err := Encode(msgType, data)
	if err != nil {
		return err
	}
	for _, c := range r.snapshot() {
		if err := c.send(payload); err != nil {
			if errors.Is(err, ErrConnClosed) || errors.Is(err, ErrSlowConsumer) {
				continue
			}
			r.logger.Warn("broadcast_send_failed", "client_id", c.ID, "error", err.Error())
		}
	}
	return nil
}

// CloseAll force-closes every live connection, for server shutdown.
func (r *Registry) CloseAll(code int, reason string) {
	for _, c := range r.snapshot() {
		c.Close(code, reason)
	}
}

// OnType registers a registry-wide handler for decoded envelopes of the
// given type, from any connection.
func (r *Registry) OnType(name string, fn func(msg TypedMessage)) func() {
	return r.events.on("type:"+name, func(payload any) {
		fn(payload.(TypedMessage))
	})
}

// dispatch is the per-connection hook that re-emits a decoded envelope at
// registry scope and records it when history is wired.
func (r *Registry) dispatch(c *Conn, env *Envelope) {
	msg := TypedMessage{
		MessageID: uuid.NewString(),
		ClientID:  c.ID,
		Time:      time.Now().UTC(),
		Data:      env.Data,
	}
	r.events.emit("type:"+env.Type, msg)

	if r.history != nil {
		payload, err := json.Marshal(env.Data)
		if err != nil {
			r.logger.Error("history_marshal_failed", "client_id", c.ID, "type", env.Type, "error", err.Error())
			return
		}
		rec := &MessageRecord{
			MessageID: msg.MessageID,
			ClientID:  c.ID,
			UserID:    c.UserID,
			Type:      env.Type,
			Payload:   payload,
			CreatedAt: msg.Time,
		}
		// best effort, off the read pump: a slow or faulty store must never
		// stall this connection's inbound dispatch or surface to the peer
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
			defer cancel()
			if err := r.history.Record(ctx, rec); err != nil {
				r.logger.Error("history_record_failed", "client_id", rec.ClientID, "error", err.Error())
			}
		}()
	}
}
