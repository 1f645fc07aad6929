package proto

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	InboundTypeRegister = "register"
	InboundTypeChat     = "chat"
	InboundTypeJoinRoom = "join_room"
	InboundTypeGetUsers = "get_users"
	InboundTypePing     = "ping"

	OutboundTypeWelcome        = "welcome"
	OutboundTypeUserJoined     = "user_joined"
	OutboundTypeUserLeft       = "user_left"
	OutboundTypeMessage        = "message"
	OutboundTypeRoomChanged    = "room_changed"
	OutboundTypeUserJoinedRoom = "user_joined_room"
	OutboundTypeUsersList      = "users_list"
	OutboundTypePong           = "pong"
	OutboundTypeError          = "error"
)

// Inbound is a record coming from the client. Only the fields relevant to
// Type are populated.
type Inbound struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Content  string `json:"content,omitempty"`
	Room     string `json:"room,omitempty"`
}

// DecodeInbound parses a raw frame. Any structural error means the frame is
// malformed; an unknown Type is not an error.
func DecodeInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, err
	}
	return in, nil
}

// Welcome is sent to a connection after it registers.
type Welcome struct {
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	UserID    string   `json:"user_id"`
	Username  string   `json:"username"`
	Rooms     []string `json:"rooms"`
	Timestamp string   `json:"timestamp"`
}

// UserJoined announces a new registration to the rest of the room.
type UserJoined struct {
	Type       string `json:"type"`
	Username   string `json:"username"`
	Timestamp  string `json:"timestamp"`
	TotalUsers int    `json:"total_users"`
}

// UserLeft announces a closed connection to its former room.
type UserLeft struct {
	Type       string `json:"type"`
	Username   string `json:"username"`
	Room       string `json:"room"`
	Timestamp  string `json:"timestamp"`
	TotalUsers int    `json:"total_users"`
}

// ChatMessage is a chat line relayed to a room.
type ChatMessage struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
}

// RoomChanged acknowledges a join_room to its sender.
type RoomChanged struct {
	Type      string `json:"type"`
	Room      string `json:"room"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// UserJoinedRoom tells the members of a room that somebody moved in.
type UserJoinedRoom struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
}

// UserInfo is one entry of a users_list.
type UserInfo struct {
	Username string `json:"username"`
	JoinedAt string `json:"joined_at"`
}

// UsersList answers get_users.
type UsersList struct {
	Type      string     `json:"type"`
	Room      string     `json:"room"`
	Users     []UserInfo `json:"users"`
	Timestamp string     `json:"timestamp"`
}

// Pong answers ping.
type Pong struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Error describes a protocol-level error response.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Encode serializes an outbound record. HTML escaping is disabled so text in
// any script is written as-is.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Timestamp formats t the way every outbound record carries it.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
