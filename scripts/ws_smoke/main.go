package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// event holds the union of outbound fields the smoke test looks at.
type event struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Content    string `json:"content"`
	Room       string `json:"room"`
	Timestamp  string `json:"timestamp"`
	TotalUsers int    `json:"total_users"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8765/ws", "WebSocket address")
	user := flag.String("user", "tester", "username to register with")
	room := flag.String("room", "", "room to switch to before chatting (default room if empty)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(in proto.Inbound) error {
		if err := wsjson.Write(ctx, conn, in); err != nil {
			return fmt.Errorf("send %s: %w", in.Type, err)
		}
		return nil
	}

	if err := mustSend(proto.Inbound{Type: proto.InboundTypeRegister, Username: *user}); err != nil {
		return err
	}
	if *room != "" {
		if err := mustSend(proto.Inbound{Type: proto.InboundTypeJoinRoom, Room: *room}); err != nil {
			return err
		}
	}
	if err := mustSend(proto.Inbound{Type: proto.InboundTypeChat, Content: *text}); err != nil {
		return err
	}

	for {
		var evt event
		if err := wsjson.Read(ctx, conn, &evt); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s\n", evt.Type)

		switch evt.Type {
		case proto.OutboundTypeWelcome:
			fmt.Printf("Welcome: id=%s user=%s\n", evt.UserID, evt.Username)
		case proto.OutboundTypeRoomChanged:
			fmt.Printf("Room changed: room=%s\n", evt.Room)
		case proto.OutboundTypeError:
			return fmt.Errorf("server error: %s", evt.Message)
		case proto.OutboundTypeMessage:
			fmt.Printf("Message: room=%s user=%s text=%q ts=%s\n", evt.Room, evt.Username, evt.Content, evt.Timestamp)
			return nil
		}
	}
}
