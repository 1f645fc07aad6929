package core

import "sort"

// Room groups the connections currently chatting under one name.
type Room struct {
	Name    string
	clients map[Conn]struct{}
	// pinned rooms come from configuration and are never reaped.
	pinned bool
}

// NewRoom constructs a room with no clients.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[Conn]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c Conn) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c Conn) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Len returns the number of clients in the room.
func (r *Room) Len() int {
	return len(r.clients)
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

func (r *Room) snapshot(exclude Conn) []Conn {
	out := make([]Conn, 0, len(r.clients))
	for c := range r.clients {
		if c == exclude {
			continue
		}
		out = append(out, c)
	}
	return out
}

// roomIndex maps room names to rooms. Guarded by Registry.
type roomIndex struct {
	rooms map[string]*Room
	reap  bool
}

func newRoomIndex(reap bool) *roomIndex {
	return &roomIndex{
		rooms: make(map[string]*Room),
		reap:  reap,
	}
}

func (ri *roomIndex) ensure(name string) *Room {
	r, ok := ri.rooms[name]
	if !ok {
		r = NewRoom(name)
		ri.rooms[name] = r
	}
	return r
}

func (ri *roomIndex) get(name string) (*Room, bool) {
	r, ok := ri.rooms[name]
	return r, ok
}

func (ri *roomIndex) add(name string, c Conn) {
	ri.ensure(name).AddClient(c)
}

func (ri *roomIndex) remove(name string, c Conn) {
	r, ok := ri.rooms[name]
	if !ok {
		return
	}
	r.RemoveClient(c)
	if ri.reap && !r.pinned && r.Empty() {
		delete(ri.rooms, name)
	}
}

func (ri *roomIndex) names() []string {
	out := make([]string, 0, len(ri.rooms))
	for name := range ri.rooms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
