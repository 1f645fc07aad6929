package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// Options toggles protocol variants.
type Options struct {
	// SingleRoom keeps everybody in the default room: join_room and
	// get_users are treated as unknown event types.
	SingleRoom bool
	// AnnounceDepartures broadcasts user_left when a registered connection closes.
	AnnounceDepartures bool
}

// Hub reacts to inbound records from connections, mutating the registry and
// emitting outbound records.
type Hub struct {
	registry *Registry
	bcast    *Broadcaster
	opts     Options
	log      *zerolog.Logger
}

// NewHub creates a hub over registry.
func NewHub(registry *Registry, logger *zerolog.Logger, opts Options) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		registry: registry,
		bcast:    NewBroadcaster(registry, logger),
		opts:     opts,
		log:      logger,
	}
}

// Registry exposes the hub's registry for read-only surfaces.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect records a freshly opened connection.
func (h *Hub) Connect(c Conn) {
	total := h.registry.Connect(c)
	h.log.Info().Str("conn_id", c.ID()).Int("connections", total).Msg("connection opened")
}

// Disconnect removes every trace of c. Calling it again is a no-op.
func (h *Hub) Disconnect(ctx context.Context, c Conn) {
	user, ok := h.registry.Unregister(c)
	if !ok {
		h.log.Debug().Str("conn_id", c.ID()).Msg("unregistered connection closed")
		return
	}
	h.log.Info().
		Str("conn_id", c.ID()).
		Str("user_id", user.ID).
		Str("room", user.Room).
		Int("users", h.registry.UserCount()).
		Msg("user left")

	if h.opts.AnnounceDepartures {
		h.bcast.ToRoom(ctx, user.Room, proto.UserLeft{
			Type:       proto.OutboundTypeUserLeft,
			Username:   user.Username,
			Room:       user.Room,
			Timestamp:  h.timestamp(),
			TotalUsers: h.registry.UserCount(),
		}, c)
	}
}

// HandleFrame processes one raw inbound frame from c. It returns once every
// resulting send has completed or failed.
func (h *Hub) HandleFrame(ctx context.Context, c Conn, raw []byte) {
	in, err := proto.DecodeInbound(raw)
	if err != nil {
		h.log.Debug().Err(err).Str("conn_id", c.ID()).Msg("malformed inbound")
		h.reply(ctx, c, proto.Error{Type: proto.OutboundTypeError, Message: proto.TextInvalidFormat})
		return
	}

	switch in.Type {
	case proto.InboundTypeRegister:
		h.handleRegister(ctx, c, in)
	case proto.InboundTypePing:
		h.reply(ctx, c, proto.Pong{Type: proto.OutboundTypePong, Timestamp: h.timestamp()})
	case proto.InboundTypeChat:
		h.handleChat(ctx, c, in)
	case proto.InboundTypeJoinRoom:
		if h.opts.SingleRoom {
			return
		}
		h.handleJoinRoom(ctx, c, in)
	case proto.InboundTypeGetUsers:
		if h.opts.SingleRoom {
			return
		}
		h.handleGetUsers(ctx, c)
	default:
		h.log.Debug().Str("conn_id", c.ID()).Str("type", in.Type).Msg("ignoring unknown inbound type")
	}
}

// Error sends a protocol error record to c.
func (h *Hub) Error(ctx context.Context, c Conn, message string) {
	h.reply(ctx, c, proto.Error{Type: proto.OutboundTypeError, Message: message})
}

func (h *Hub) handleRegister(ctx context.Context, c Conn, in proto.Inbound) {
	user, created := h.registry.Register(c, in.Username, in.UserID)
	h.log.Info().
		Str("conn_id", c.ID()).
		Str("user_id", user.ID).
		Str("username", user.Username).
		Bool("created", created).
		Msg("user registered")

	h.reply(ctx, c, proto.Welcome{
		Type:      proto.OutboundTypeWelcome,
		Message:   proto.WelcomeText(user.Username),
		UserID:    user.ID,
		Username:  user.Username,
		Rooms:     h.registry.RoomNames(),
		Timestamp: h.timestamp(),
	})
	if !created {
		return
	}
	h.bcast.ToRoom(ctx, user.Room, proto.UserJoined{
		Type:       proto.OutboundTypeUserJoined,
		Username:   user.Username,
		Timestamp:  h.timestamp(),
		TotalUsers: h.registry.UserCount(),
	}, c)
}

func (h *Hub) handleChat(ctx context.Context, c Conn, in proto.Inbound) {
	user, ok := h.registry.Lookup(c)
	if !ok {
		return
	}
	h.bcast.ToRoom(ctx, user.Room, proto.ChatMessage{
		Type:      proto.OutboundTypeMessage,
		Username:  user.Username,
		Content:   in.Content,
		Room:      user.Room,
		Timestamp: h.timestamp(),
	}, nil)
}

func (h *Hub) handleJoinRoom(ctx context.Context, c Conn, in proto.Inbound) {
	user, from, err := h.registry.MoveRoom(c, in.Room)
	if errors.Is(err, ErrRoomNameLong) {
		h.log.Debug().Str("conn_id", c.ID()).Int("len", len(in.Room)).Msg("room name too long")
		h.Error(ctx, c, proto.TextRoomNameTooLong)
		return
	}
	if err != nil {
		// Unregistered senders and empty room names are ignored.
		return
	}
	h.log.Info().Str("conn_id", c.ID()).Str("user_id", user.ID).Str("from", from).Str("room", user.Room).Msg("room changed")

	h.reply(ctx, c, proto.RoomChanged{
		Type:      proto.OutboundTypeRoomChanged,
		Room:      user.Room,
		Message:   proto.RoomChangedText(user.Room),
		Timestamp: h.timestamp(),
	})
	h.bcast.ToRoom(ctx, user.Room, proto.UserJoinedRoom{
		Type:      proto.OutboundTypeUserJoinedRoom,
		Username:  user.Username,
		Room:      user.Room,
		Timestamp: h.timestamp(),
	}, c)
}

func (h *Hub) handleGetUsers(ctx context.Context, c Conn) {
	user, ok := h.registry.Lookup(c)
	if !ok {
		return
	}
	users, err := h.registry.UsersInRoom(user.Room)
	if err != nil {
		h.log.Warn().Err(err).Str("room", user.Room).Msg("list users")
		return
	}
	h.reply(ctx, c, UsersList(user.Room, users, h.registry.Now()))
}

func (h *Hub) reply(ctx context.Context, c Conn, msg any) {
	if err := h.bcast.ToConn(ctx, c, msg); err != nil {
		h.log.Debug().Err(err).Str("conn_id", c.ID()).Msg("reply failed")
	}
}

func (h *Hub) timestamp() string {
	return proto.Timestamp(h.registry.Now())
}

// UsersList renders users as a users_list record.
func UsersList(room string, users []User, now time.Time) proto.UsersList {
	out := proto.UsersList{
		Type:      proto.OutboundTypeUsersList,
		Room:      room,
		Users:     make([]proto.UserInfo, 0, len(users)),
		Timestamp: proto.Timestamp(now),
	}
	for _, u := range users {
		out.Users = append(out.Users, proto.UserInfo{
			Username: u.Username,
			JoinedAt: proto.Timestamp(u.JoinedAt),
		})
	}
	return out
}
