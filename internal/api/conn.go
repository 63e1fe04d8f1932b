package api

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/edgelink-core/internal/auth"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/config"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/logging"
)

// notConnectedUser is logged for connections without a session.
const notConnectedUser = "NOT_CONNECTED"

// Severity classifies a notification sent to a client.
type Severity string

// Notification severities.
const (
	SeveritySuccess Severity = "SUCCESS"
	SeverityInfo    Severity = "INFO"
	SeverityError   Severity = "ERROR"
)

type notificationReply struct {
	Notification notice `json:"notification"`
}

type notice struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// outFrame is an encoded frame waiting in the send buffer.
type outFrame struct {
	messageType int
	data        []byte
}

// Conn is the server side of one WebSocket connection. It owns at most one
// session, the subscription set and the subscription worker. Writes are
// serialised through the send buffer drained by writePump.
type Conn struct {
	id     string
	hub    *Hub
	ws     *websocket.Conn
	out    chan outFrame
	logger *logging.Logger

	// encoding of the most recent inbound frame; replies mirror it.
	encoding atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.RWMutex
	session       *auth.Session
	subscriptions map[string]struct{}
	workerDone    chan struct{}
	closed        bool
	closeOnce     sync.Once
}

func newConn(hub *Hub, ws *websocket.Conn, bufferSize int, logger *logging.Logger) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Conn{
		id:            id,
		hub:           hub,
		ws:            ws,
		out:           make(chan outFrame, bufferSize),
		logger:        logger.With("conn_id", id),
		ctx:           ctx,
		cancel:        cancel,
		subscriptions: make(map[string]struct{}),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Session returns the current session, or nil before authentication.
func (c *Conn) Session() *auth.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Conn) setSession(s *auth.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// Username returns the session's username, or NOT_CONNECTED.
func (c *Conn) Username() string {
	if s := c.Session(); s != nil {
		return s.Username
	}
	return notConnectedUser
}

// Subscribe adds tags to the subscription set. Adding a tag twice has no
// further effect.
func (c *Conn) Subscribe(tags ...string) {
	c.mu.Lock()
	for _, t := range tags {
		c.subscriptions[t] = struct{}{}
	}
	c.mu.Unlock()
}

// Subscriptions returns a sorted snapshot of the subscription set.
func (c *Conn) Subscriptions() []string {
	c.mu.RLock()
	tags := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		tags = append(tags, t)
	}
	c.mu.RUnlock()
	slices.Sort(tags)
	return tags
}

func (c *Conn) setEncoding(e encoding) { c.encoding.Store(int32(e)) }

func (c *Conn) currentEncoding() encoding { return encoding(c.encoding.Load()) }

// sendMessage encodes v in the connection's current encoding and queues it.
func (c *Conn) sendMessage(v any) bool {
	enc := c.currentEncoding()
	data, err := enc.marshal(v)
	if err != nil {
		c.logger.Error("failed to encode outbound message", "encoding", enc, "error", err)
		return false
	}
	return c.trySend(outFrame{messageType: enc.messageType(), data: data})
}

// notify sends a severity/message notification.
func (c *Conn) notify(severity Severity, message string) bool {
	return c.sendMessage(notificationReply{Notification: notice{Severity: severity, Message: message}})
}

// trySend queues a frame without blocking. It reports false when the
// buffer is full or the connection has been torn down. The closed flag is
// read under c.mu, which teardown holds while setting it, so no send can
// reach the buffer after it is closed.
func (c *Conn) trySend(f outFrame) bool {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false
	}
	var sent bool
	select {
	case c.out <- f:
		sent = true
	default:
	}
	c.mu.RUnlock()

	if !sent {
		c.logger.Warn("send buffer full, dropping frame", "user", c.Username())
	}
	return sent
}

// startWorker runs fn on its own goroutine until the connection is torn
// down. Only the first call starts anything.
func (c *Conn) startWorker(fn func(ctx context.Context)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.workerDone != nil || c.closed {
		return false
	}
	done := make(chan struct{})
	c.workerDone = done
	go func() {
		defer close(done)
		fn(c.ctx)
	}()
	return true
}

// teardown cancels the connection context, joins the worker and closes
// the send buffer, exactly once.
func (c *Conn) teardown() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		c.closed = true
		done := c.workerDone
		c.mu.Unlock()
		if done != nil {
			<-done
		}
		close(c.out)
	})
}

// readPump reads frames and hands them to handle one at a time. It
// returns when the peer goes away or handle asks to close.
func (c *Conn) readPump(cfg config.WebSocketConfig, handle func(c *Conn, messageType int, data []byte) bool) {
	defer func() {
		c.hub.Unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.ws.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket error on connection", "user", c.Username(), "error", err)
			} else {
				c.logger.Info("websocket connection closed", "user", c.Username(), "reason", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.ws.SetReadDeadline(time.Now().Add(pingInterval + pongWait))

		if !handle(c, messageType, data) {
			c.logger.Info("closing connection", "user", c.Username())
			return
		}
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (c *Conn) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case f, ok := <-c.out:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(f.messageType, f.data); err != nil {
				c.logger.Debug("websocket write failed", "user", c.Username(), "error", err)
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
