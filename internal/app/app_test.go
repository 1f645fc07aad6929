package app

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func TestServeShutsDownConnections(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.ShutdownTimeout = 2 * time.Second

	logger := zerolog.Nop()
	application := New(&cfg, &logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx, ln) }()

	dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, "ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, wsjson.Write(dialCtx, conn, proto.Inbound{Type: proto.InboundTypeRegister, Username: "alice"}))
	var welcome proto.Welcome
	require.NoError(t, wsjson.Read(dialCtx, conn, &welcome))
	assert.Equal(t, proto.OutboundTypeWelcome, welcome.Type)
	assert.Equal(t, 1, application.Hub().Registry().UserCount())

	stop()

	_, _, err = conn.Read(dialCtx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	require.Eventually(t, func() bool {
		return application.Hub().Registry().ConnCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunReportsListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = busy.Addr().(*net.TCPAddr).Port

	logger := zerolog.Nop()
	err = New(&cfg, &logger).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen "+cfg.Addr())
}
