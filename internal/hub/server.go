package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// GreetingType is the envelope type of the identity greeting sent to a
// newly accepted connection.
const GreetingType = "welcome"

// HeaderEvent is the payload of the server's headers event, fired once per
// upgrade. Handlers may inspect the request headers and add response
// headers before the handshake response is written.
type HeaderEvent struct {
	Request  http.Header
	Response http.Header
}

// Options configures a Server at construction.
type Options struct {
	Port        int     // listen port; 0 picks a free one
	Greeting    bool    // send the identity greeting on accept
	Passthrough bool    // parse failures degrade to raw message events
	MaxPayload  int64   // max inbound message size, delegated to the transport
	RateLimit   float64 // inbound messages/sec per connection, 0 = unlimited
	RateBurst   int

	Auth    *TokenValidator   // nil = upgrades are not authenticated
	History HistoryRepository // nil = messages are not persisted
	Bridge  *Bridge           // nil = broadcasts stay on this instance
	Logger  *slog.Logger

	// NewID produces connection identifiers. Defaults to random uuids;
	// injectable so tests can pin identity.
	NewID func() string
}

// Server accepts raw websocket connections, assigns identity, maintains
// the live set and re-emits every connection's typed events from one place.
type Server struct {
	opts     Options
	logger   *slog.Logger
	registry *Registry
	engine   *gin.Engine
	upgrader websocket.Upgrader
	events   emitter

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
}

// NewServer builds a server; Start binds it.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = DefaultMaxPayload
	}
	if opts.NewID == nil {
		// random 128-bit identifiers: collision-free and, unlike a
		// sequence, do not leak the connection count
		opts.NewID = uuid.NewString
	}

	s := &Server{
		opts:     opts,
		logger:   logger,
		registry: NewRegistry(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// allow all origins; restrict at the proxy if needed
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.registry.history = opts.History

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.registry.Len()})
	})
	engine.GET("/ws", s.handleUpgrade)
	s.engine = engine
	return s
}

// Registry exposes the live-connection set.
func (s *Server) Registry() *Registry {
	return s.registry
}

// OnListening fires once when the listener is bound, with the bound address.
func (s *Server) OnListening(fn func(addr string)) func() {
	return s.events.on("listening", func(payload any) {
		fn(payload.(string))
	})
}

// OnHeaders fires for every upgrade request before the handshake response.
func (s *Server) OnHeaders(fn func(ev HeaderEvent)) func() {
	return s.events.on("headers", func(payload any) {
		fn(payload.(HeaderEvent))
	})
}

// OnError fires for listener-level failures. These never affect
// connections that are already open.
func (s *Server) OnError(fn func(err error)) func() {
	return s.events.on("error", func(payload any) {
		fn(payload.(error))
	})
}

// OnConnection fires when a connection has been accepted and registered,
// before any of its messages are dispatched.
func (s *Server) OnConnection(fn func(c *Conn)) func() {
	return s.events.on("connection", func(payload any) {
		fn(payload.(*Conn))
	})
}

// OnType registers a server-wide handler for decoded envelopes of the
// given type from any connection, enriched with identity and receipt time.
func (s *Server) OnType(name string, fn func(msg TypedMessage)) func() {
	return s.registry.OnType(name, fn)
}

// Start binds the listener and begins serving upgrades. A bind failure is
// returned immediately wrapped in ErrBind and leaves the registry empty.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.opts.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %v", ErrBind, addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.httpSrv = &http.Server{Handler: s.engine}
	srv := s.httpSrv
	s.mu.Unlock()

	s.logger.Info("server_listening", "addr", ln.Addr().String())
	s.events.emit("listening", ln.Addr().String())

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.events.emit("error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Broadcast sends the same typed message to every open connection, and to
// sibling instances when a bridge is wired.
func (s *Server) Broadcast(msgType string, data any) error {
	if err := s.registry.Broadcast(msgType, data); err != nil {
		return err
	}
	if s.opts.Bridge != nil {
		if err := s.opts.Bridge.Publish(context.Background(), msgType, data); err != nil {
			s.logger.Warn("bridge_publish_failed", "error", err.Error())
		}
	}
	return nil
}

// Stop shuts the listener down and closes every live connection.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()

	s.registry.CloseAll(websocket.CloseGoingAway, "server shutting down")
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// handleUpgrade is the accept path: authenticate, let header hooks run,
// upgrade, assign identity, register, greet, start the pumps.
func (s *Server) handleUpgrade(c *gin.Context) {
	var claims *Claims
	if s.opts.Auth != nil {
		token := bearerToken(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		var err error
		claims, err = s.opts.Auth.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
	}

	respHeader := http.Header{}
	s.events.emit("headers", HeaderEvent{Request: c.Request.Header, Response: respHeader})

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		// Upgrade already wrote the handshake error response
		s.events.emit("error", err)
		return
	}

	id := s.opts.NewID()
	conn := newConn(id, ws, ConnOptions{
		Passthrough: s.opts.Passthrough,
		MaxPayload:  s.opts.MaxPayload,
		RateLimit:   s.opts.RateLimit,
		RateBurst:   s.opts.RateBurst,
		Logger:      s.logger,
	})
	if claims != nil {
		conn.UserID = claims.UserID
		conn.Username = claims.Username
	}
	conn.onDispatch = s.registry.dispatch
	conn.onClosed = s.registry.remove

	s.registry.add(conn)
	s.events.emit("connection", conn)
	conn.Start()
	if s.opts.Greeting {
		if err := conn.SendType(GreetingType, map[string]any{"id": id}); err != nil {
			s.logger.Warn("greeting_failed", "client_id", id, "error", err.Error())
		}
	}
}
