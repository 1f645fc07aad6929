package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

type userInfo struct {
	Username string `json:"username"`
	JoinedAt string `json:"joined_at"`
}

// event holds the union of outbound fields the client renders.
type event struct {
	Type       string     `json:"type"`
	Message    string     `json:"message"`
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	Content    string     `json:"content"`
	Room       string     `json:"room"`
	Rooms      []string   `json:"rooms"`
	Users      []userInfo `json:"users"`
	Timestamp  string     `json:"timestamp"`
	TotalUsers int        `json:"total_users"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8765/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "username")
	room := flag.String("room", "", "room to join after registering")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(in proto.Inbound) {
		if writeErr := wsjson.Write(ctx, conn, in); writeErr != nil {
			cancel()
			log.Printf("send: %v", writeErr)
		}
	}

	send(proto.Inbound{Type: proto.InboundTypeRegister, Username: *user})
	if *room != "" {
		send(proto.Inbound{Type: proto.InboundTypeJoinRoom, Room: *room})
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Type messages and press Enter to send. Commands: /join <room>, /users, /ping. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, send)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var evt event
		if err := wsjson.Read(ctx, conn, &evt); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch evt.Type {
		case proto.OutboundTypeWelcome:
			fmt.Printf("%s (id %s, rooms: %s)\n", evt.Message, evt.UserID, strings.Join(evt.Rooms, ", "))
		case proto.OutboundTypeMessage:
			fmt.Printf("[%s] %s: %s\n", evt.Room, evt.Username, evt.Content)
		case proto.OutboundTypeUserJoined:
			fmt.Printf("* %s joined (%d online)\n", evt.Username, evt.TotalUsers)
		case proto.OutboundTypeUserLeft:
			fmt.Printf("* %s left %s (%d online)\n", evt.Username, evt.Room, evt.TotalUsers)
		case proto.OutboundTypeUserJoinedRoom:
			fmt.Printf("[room %s] %s joined\n", evt.Room, evt.Username)
		case proto.OutboundTypeRoomChanged:
			fmt.Printf("* %s\n", evt.Message)
		case proto.OutboundTypeUsersList:
			names := make([]string, 0, len(evt.Users))
			for _, u := range evt.Users {
				names = append(names, u.Username)
			}
			fmt.Printf("[room %s] users: %s\n", evt.Room, strings.Join(names, ", "))
		case proto.OutboundTypePong:
			fmt.Printf("pong %s\n", evt.Timestamp)
		case proto.OutboundTypeError:
			fmt.Printf("error: %s\n", evt.Message)
		default:
			fmt.Printf("event=%s\n", evt.Type)
		}
	}
}

// parseLine turns one line of input into an inbound record.
func parseLine(line string) (proto.Inbound, bool) {
	text := strings.TrimSpace(line)
	if text == "" {
		return proto.Inbound{}, false
	}

	switch {
	case strings.HasPrefix(text, "/join "):
		return proto.Inbound{Type: proto.InboundTypeJoinRoom, Room: strings.TrimSpace(strings.TrimPrefix(text, "/join "))}, true
	case text == "/users":
		return proto.Inbound{Type: proto.InboundTypeGetUsers}, true
	case text == "/ping":
		return proto.Inbound{Type: proto.InboundTypePing}, true
	default:
		return proto.Inbound{Type: proto.InboundTypeChat, Content: text}, true
	}
}

func writeLoop(ctx context.Context, send func(proto.Inbound)) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if in, ok := parseLine(line); ok {
				send(in)
			}
		}
	}
}
