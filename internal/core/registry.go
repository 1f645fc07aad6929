package core

import (
	"sort"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultRoom is where every user lands after registering unless configured otherwise.
const DefaultRoom = "general"

// MaxRoomNameLen caps room names, in characters.
const MaxRoomNameLen = 64

// RegistryConfig tunes a Registry.
type RegistryConfig struct {
	// DefaultRoom receives newly registered users.
	DefaultRoom string
	// Rooms are created up front and never reaped.
	Rooms []string
	// ReapEmptyRooms drops non-pinned rooms once their last member leaves.
	ReapEmptyRooms bool
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// RoomInfo summarizes one room.
type RoomInfo struct {
	Name  string
	Users int
}

// Registry owns who is online and where. The user directory and the room
// index share one lock, so a member snapshot never contains a connection
// whose user is gone, and a user's Room always names the room holding it.
type Registry struct {
	mu          sync.RWMutex
	conns       map[Conn]struct{}
	users       *directory
	rooms       *roomIndex
	defaultRoom string
	now         func() time.Time
}

// NewRegistry builds an empty registry with the configured rooms in place.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		conns:       make(map[Conn]struct{}),
		users:       newDirectory(),
		rooms:       newRoomIndex(cfg.ReapEmptyRooms),
		defaultRoom: cfg.DefaultRoom,
		now:         cfg.Now,
	}
	if r.defaultRoom == "" {
		r.defaultRoom = DefaultRoom
	}
	if r.now == nil {
		r.now = time.Now
	}

	r.rooms.ensure(r.defaultRoom).pinned = true
	for _, name := range cfg.Rooms {
		if name != "" {
			r.rooms.ensure(name).pinned = true
		}
	}
	return r
}

// Now returns the registry clock's current time.
func (r *Registry) Now() time.Time {
	return r.now()
}

// DefaultRoom returns the room new users are placed in.
func (r *Registry) DefaultRoom() string {
	return r.defaultRoom
}

// Connect records a raw, not yet registered connection.
func (r *Registry) Connect(c Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
	return len(r.conns)
}

// Register binds an identity to c and puts it in the default room. A
// connection that is already registered keeps its room and join time and
// only has its identity updated; created is false in that case.
func (r *Registry) Register(c Conn, username, userID string) (user User, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c] = struct{}{}
	u, created := r.users.register(c, username, userID, r.defaultRoom, r.now())
	if created {
		r.rooms.add(u.Room, c)
	}
	return *u, created
}

// Lookup returns the user registered on c.
func (r *Registry) Lookup(c Conn) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users.lookup(c)
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Unregister forgets c entirely. It reports the user that was removed, and
// false when c had already been removed or never registered.
func (r *Registry) Unregister(c Conn) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, c)
	u, ok := r.users.unregister(c)
	if !ok {
		return User{}, false
	}
	r.rooms.remove(u.Room, c)
	return *u, true
}

// MoveRoom switches c into room, creating the room if needed. Moving into
// the current room changes nothing. It returns the updated user and the
// room it came from.
func (r *Registry) MoveRoom(c Conn, room string) (User, string, error) {
	if room == "" {
		return User{}, "", ErrEmptyRoomName
	}
	if utf8.RuneCountInString(room) > MaxRoomNameLen {
		return User{}, "", ErrRoomNameLong
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users.lookup(c)
	if !ok {
		return User{}, "", ErrNotRegistered
	}
	from := u.Room
	if from != room {
		r.rooms.remove(from, c)
		r.rooms.add(room, c)
		r.users.setRoom(c, room)
	}
	return *u, from, nil
}

// Members returns a snapshot of the connections in room, without exclude.
func (r *Registry) Members(room string, exclude Conn) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms.get(room)
	if !ok {
		return nil
	}
	return rm.snapshot(exclude)
}

// UsersInRoom lists the registered users in room, oldest first.
func (r *Registry) UsersInRoom(room string) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms.get(room)
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := make([]User, 0, rm.Len())
	for c := range rm.clients {
		if u, ok := r.users.lookup(c); ok {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

// RoomNames lists every known room, sorted.
func (r *Registry) RoomNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms.names()
}

// Rooms lists every known room with its population, sorted by name.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.rooms.names()
	out := make([]RoomInfo, 0, len(names))
	for _, name := range names {
		rm, _ := r.rooms.get(name)
		out = append(out, RoomInfo{Name: name, Users: rm.Len()})
	}
	return out
}

// UserCount returns the number of registered users.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users.len()
}

// ConnCount returns the number of live connections, registered or not.
func (r *Registry) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
