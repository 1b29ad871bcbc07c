package hub

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DialOptions configures the client side of a connection.
type DialOptions struct {
	Header      http.Header // extra handshake headers, e.g. Authorization
	Passthrough bool
	MaxPayload  int64
	Logger      *slog.Logger
}

// Dial connects to a typed-message server and returns a connection owned
// by the caller. The connection is still in the connecting state: register
// handlers, then call Start so the first inbound envelope (the server's
// greeting, when enabled) cannot slip past an unregistered listener. The
// ID is local only; the server-assigned identity arrives in the greeting.
func Dial(urlStr string, opts DialOptions) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.Dial(urlStr, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", urlStr, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", urlStr, err)
	}

	return newConn(uuid.NewString(), ws, ConnOptions{
		Passthrough: opts.Passthrough,
		MaxPayload:  opts.MaxPayload,
		Logger:      opts.Logger,
	}), nil
}
