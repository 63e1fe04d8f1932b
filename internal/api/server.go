package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/edgelink-core/internal/audit"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/config"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// commandTimeout bounds the collaborator calls made for one inbound frame.
const commandTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Edge       config.EdgeConfig
	Logger     *logging.Logger
	Auth       Authenticator
	Components ComponentStore
	Edges      EdgeLookup
	Timedata   Timedata        // optional: measurements are dropped without it
	Power      PowerController // optional: manualPQ fails without it
	Audit      audit.Recorder  // optional
	Hub        *Hub            // optional: created by New when nil
	Version    string
}

// Server is the HTTP and WebSocket server for EdgeLink Core.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	deviceID string
	logger   *logging.Logger
	version  string

	hub        *Hub
	components ComponentStore
	gate       *authGate
	router     *notificationRouter
	dispatcher *commandDispatcher

	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if deps.Components == nil {
		return nil, fmt.Errorf("component registry is required")
	}
	if deps.Edges == nil {
		return nil, fmt.Errorf("edge registry is required")
	}
	if deps.Edge.DefaultDeviceID == "" {
		return nil, fmt.Errorf("default device id is required")
	}
	if deps.WS.SubscriptionPeriod() <= 0 {
		return nil, fmt.Errorf("subscription interval must be positive")
	}

	logger := deps.Logger.Component("api")
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(logger)
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		deviceID:   deps.Edge.DefaultDeviceID,
		logger:     logger,
		version:    deps.Version,
		hub:        hub,
		components: deps.Components,
		router: &notificationRouter{
			edges:    deps.Edges,
			timedata: deps.Timedata,
			logger:   logger,
		},
		dispatcher: &commandDispatcher{
			components: deps.Components,
			power:      deps.Power,
			audit:      deps.Audit,
			logger:     logger,
		},
	}
	s.gate = &authGate{
		auth:            deps.Auth,
		snapshot:        deps.Components,
		deviceID:        s.deviceID,
		logger:          logger,
		onAuthenticated: s.startSubscriptionWorker,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// Hub returns the connection hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start begins listening for HTTP connections.
//
// It starts the hub and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", ln.Addr().String(), "cert", s.cfg.TLS.CertFile)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server and disconnects every client.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// handleWebSocket upgrades the request and starts the connection pumps.
// Authentication happens in-band with the first message.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newConn(s.hub, ws, s.wsCfg.SendBuffer, s.logger)
	s.hub.Register(c)
	s.logger.Info("incoming connection", "conn_id", c.id, "remote", r.RemoteAddr)

	go c.writePump(s.wsCfg)
	go c.readPump(s.wsCfg, s.handleFrame)
}

// handleFrame processes one inbound frame. It returns false when the
// connection must be closed.
func (s *Server) handleFrame(c *Conn, messageType int, data []byte) bool {
	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	defer cancel()

	doc, enc, err := decodeFrame(messageType, data)
	if err != nil {
		return s.rejectMalformed(ctx, c, err)
	}
	c.setEncoding(enc)

	msg, parseErr := parseInbound(doc, s.deviceID)

	if msg.authenticate != nil {
		s.gate.authenticate(ctx, c, *msg.authenticate)
		if msg.onlyAuthenticate() && parseErr == nil {
			return true
		}
	}

	if err := s.gate.assertAuthenticated(ctx, c); err != nil {
		s.logger.Warn("rejecting message without valid session", "user", c.Username(), "error", err)
		return false
	}

	if parseErr != nil {
		s.logger.Warn("malformed message", "user", c.Username(), "error", parseErr)
		c.notify(SeverityError, parseErr.Error())
		return true
	}

	if msg.notification != nil {
		if err := s.router.route(ctx, c, msg.notification); err != nil {
			s.logger.Warn("notification rejected", "user", c.Username(), "method", msg.notification.method(), "error", err)
			c.notify(SeverityError, err.Error())
		}
		return true
	}

	if msg.device != nil {
		s.dispatcher.dispatch(ctx, c, msg.device)
	}
	return true
}

// rejectMalformed answers an undecodable frame. Without a valid session
// it closes the connection like any other non-authenticate message.
func (s *Server) rejectMalformed(ctx context.Context, c *Conn, err error) bool {
	if authErr := s.gate.assertAuthenticated(ctx, c); authErr != nil {
		s.logger.Warn("rejecting undecodable message without valid session", "user", c.Username(), "error", err)
		return false
	}
	s.logger.Warn("undecodable message", "user", c.Username(), "error", err)
	c.notify(SeverityError, err.Error())
	return true
}

// startSubscriptionWorker starts the connection's worker on its first
// successful authentication.
func (s *Server) startSubscriptionWorker(c *Conn) {
	w := newSubscriptionWorker(c, s.hub, s.components, s.gate.assertAuthenticated, s.wsCfg.SubscriptionPeriod(), s.logger)
	if c.startWorker(w.run) {
		s.logger.Debug("subscription worker started", "conn_id", c.id, "user", c.Username())
	}
}
