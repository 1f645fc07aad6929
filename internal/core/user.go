package core

import (
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/utils"
)

// User is a registered identity bound to exactly one connection.
type User struct {
	ID       string
	Username string
	JoinedAt time.Time
	Room     string
}

// directory maps live connections to their registered users.
// It is not safe for concurrent use; Registry guards it.
type directory struct {
	byConn map[Conn]*User
	byID   map[string]Conn
}

func newDirectory() *directory {
	return &directory{
		byConn: make(map[Conn]*User),
		byID:   make(map[string]Conn),
	}
}

func (d *directory) lookup(c Conn) (*User, bool) {
	u, ok := d.byConn[c]
	return u, ok
}

func (d *directory) len() int {
	return len(d.byConn)
}

// register creates a user for c, or updates the one c already has. An
// empty username keeps the current name on update.
// The returned bool is true only when a new user was created.
func (d *directory) register(c Conn, username, userID, room string, now time.Time) (*User, bool) {
	if u, ok := d.byConn[c]; ok {
		if username != "" {
			u.Username = username
		}
		if userID != "" && userID != u.ID && d.idFree(userID) {
			delete(d.byID, u.ID)
			u.ID = userID
			d.byID[u.ID] = c
		}
		return u, false
	}

	if username == "" {
		username = proto.DefaultUsername
	}
	if userID == "" || !d.idFree(userID) {
		userID = d.nextID()
	}
	u := &User{
		ID:       userID,
		Username: username,
		JoinedAt: now,
		Room:     room,
	}
	d.byConn[c] = u
	d.byID[u.ID] = c
	return u, true
}

func (d *directory) unregister(c Conn) (*User, bool) {
	u, ok := d.byConn[c]
	if !ok {
		return nil, false
	}
	delete(d.byConn, c)
	delete(d.byID, u.ID)
	return u, true
}

func (d *directory) setRoom(c Conn, room string) {
	if u, ok := d.byConn[c]; ok {
		u.Room = room
	}
}

func (d *directory) idFree(id string) bool {
	_, taken := d.byID[id]
	return !taken
}

// nextID starts at user_<count+1> and probes upward past ids still held by
// users who registered before somebody else left.
func (d *directory) nextID() string {
	for n := len(d.byConn) + 1; ; n++ {
		id := utils.SequentialUserID(n)
		if d.idFree(id) {
			return id
		}
	}
}
