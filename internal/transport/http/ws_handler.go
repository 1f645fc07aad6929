package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	stdhttp "net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/utils"
)

var errShuttingDown = errors.New("server shutting down")

// wsConn adapts a websocket connection to core.Conn.
type wsConn struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration
	open         atomic.Bool
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	c := &wsConn{
		id:           utils.NewID(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
	c.open.Store(true)
	return c
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) IsOpen() bool { return c.open.Load() }

// Send writes one text frame. A failed write leaves the websocket unusable,
// so the connection is marked closed.
func (c *wsConn) Send(ctx context.Context, payload []byte) error {
	if !c.open.Load() {
		return net.ErrClosed
	}
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	if err := c.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		c.open.Store(false)
		return err
	}
	return nil
}

func (c *wsConn) markClosed() { c.open.Store(false) }

// WSHandler upgrades HTTP connections and bridges them to the core hub.
type WSHandler struct {
	hub *core.Hub
	cfg *config.Config
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, cfg: cfg, log: logger}
}

// Handle is the gin entry point.
func (h *WSHandler) Handle(c *gin.Context) {
	h.ServeHTTP(c.Writer, c.Request)
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	client := newWSConn(conn, h.cfg.WriteTimeout)
	h.hub.Connect(client)
	defer h.hub.Disconnect(context.Background(), client)

	// The request context only ends on server shutdown for hijacked
	// connections. Reads get their own context so shutdown can close the
	// socket with a proper status first.
	shutdown := r.Context()
	ctx, cancel := context.WithCancel(context.WithoutCancel(shutdown))
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, client)
	}()
	go func() {
		errCh <- h.keepAlive(ctx, shutdown, client)
	}()

	err = <-errCh
	client.markClosed()

	status, reason := h.closeStatus(err, client)
	_ = conn.Close(status, reason)
	cancel() // stop the other goroutine
	<-errCh
}

func (h *WSHandler) acceptOptions() *websocket.AcceptOptions {
	if len(h.cfg.AllowedOrigins) == 0 {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: h.cfg.AllowedOrigins}
}

func (h *WSHandler) readLoop(ctx context.Context, client *wsConn) error {
	limiter := newRateLimiter(h.cfg.MessagesPerMinute)
	for {
		_, data, err := client.conn.Read(ctx)
		if err != nil {
			return err
		}
		if !limiter.allow() {
			h.log.Debug().Str("conn_id", client.ID()).Msg("inbound rate limit exceeded")
			h.hub.Error(ctx, client, proto.TextRateLimited)
			continue
		}
		h.hub.HandleFrame(ctx, client, data)
	}
}

// keepAlive pings the peer every PingInterval and fails once a pong does
// not arrive within PingTimeout.
func (h *WSHandler) keepAlive(ctx, shutdown context.Context, client *wsConn) error {
	var tick <-chan time.Time
	if h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-shutdown.Done():
			return errShuttingDown
		case <-tick:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.PingTimeout)
			err := client.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("keep-alive ping: %w", err)
			}
		}
	}
}

func (h *WSHandler) closeStatus(err error, client *wsConn) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errShuttingDown):
		return websocket.StatusGoingAway, "server shutting down"
	}

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		h.log.Debug().Str("conn_id", client.ID()).Msg("ws connection closed by peer")
		return websocket.StatusNormalClosure, "closing"
	}

	h.log.Warn().Err(err).Str("conn_id", client.ID()).Msg("ws connection closed with error")
	return websocket.StatusInternalError, "internal error"
}
