package core

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry(RegistryConfig{Now: fixedClock()})
	c := newFakeConn("c1")

	u, created := r.Register(c, "", "")
	require.True(t, created)
	assert.Equal(t, "user_1", u.ID)
	assert.Equal(t, proto.DefaultUsername, u.Username)
	assert.Equal(t, DefaultRoom, u.Room)
	assert.False(t, u.JoinedAt.IsZero())

	got, ok := r.Lookup(c)
	require.True(t, ok)
	assert.Equal(t, u, got)
	assert.Equal(t, []Conn{c}, r.Members(DefaultRoom, nil))
	assertConsistent(t, r)
}

func TestRegisterFallbackIDsStayUnique(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")

	ua, _ := r.Register(a, "alice", "")
	ub, _ := r.Register(b, "bob", "")
	assert.Equal(t, "user_1", ua.ID)
	assert.Equal(t, "user_2", ub.ID)

	// With alice gone the count is 1 again, but user_2 is still held by bob.
	r.Unregister(a)
	uc, _ := r.Register(c, "carol", "")
	assert.Equal(t, "user_3", uc.ID)
	assertConsistent(t, r)
}

func TestRegisterRequestedIDTakenFallsBack(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	a, b := newFakeConn("a"), newFakeConn("b")

	ua, _ := r.Register(a, "alice", "u-42")
	ub, _ := r.Register(b, "bob", "u-42")
	assert.Equal(t, "u-42", ua.ID)
	assert.Equal(t, "user_2", ub.ID)
}

func TestReRegisterUpdatesIdentity(t *testing.T) {
	r := NewRegistry(RegistryConfig{Now: fixedClock()})
	c := newFakeConn("c")

	first, created := r.Register(c, "alice", "")
	require.True(t, created)
	_, _, err := r.MoveRoom(c, "random")
	require.NoError(t, err)

	second, created := r.Register(c, "alicia", "a-1")
	assert.False(t, created)
	assert.Equal(t, "a-1", second.ID)
	assert.Equal(t, "alicia", second.Username)
	assert.Equal(t, "random", second.Room)
	assert.Equal(t, first.JoinedAt, second.JoinedAt)
	assert.Equal(t, 1, r.UserCount())
	assert.Empty(t, r.Members(DefaultRoom, nil))
	assertConsistent(t, r)
}

func TestReRegisterWithoutUsernameKeepsName(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	c := newFakeConn("c")
	r.Register(c, "alice", "")

	u, created := r.Register(c, "", "")
	assert.False(t, created)
	assert.Equal(t, "alice", u.Username)
}

func TestMoveRoomIsIdempotent(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	c := newFakeConn("c")
	r.Register(c, "alice", "")

	for range 3 {
		u, from, err := r.MoveRoom(c, "random")
		require.NoError(t, err)
		assert.Equal(t, "random", u.Room)
		assert.Contains(t, []string{DefaultRoom, "random"}, from)
	}
	assert.Len(t, r.Members("random", nil), 1)
	assert.Empty(t, r.Members(DefaultRoom, nil))
	assertConsistent(t, r)
}

func TestMoveRoomErrors(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	c := newFakeConn("c")

	_, _, err := r.MoveRoom(c, "random")
	assert.ErrorIs(t, err, ErrNotRegistered)

	r.Register(c, "alice", "")
	_, _, err = r.MoveRoom(c, "")
	assert.ErrorIs(t, err, ErrEmptyRoomName)

	_, _, err = r.MoveRoom(c, strings.Repeat("x", MaxRoomNameLen+1))
	assert.ErrorIs(t, err, ErrRoomNameLong)
	assert.Len(t, r.RoomNames(), 1)
}

func TestUnregisterOnce(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	c := newFakeConn("c")
	r.Connect(c)
	r.Register(c, "alice", "")
	_, _, _ = r.MoveRoom(c, "tech")

	u, ok := r.Unregister(c)
	require.True(t, ok)
	assert.Equal(t, "tech", u.Room)

	_, ok = r.Unregister(c)
	assert.False(t, ok)
	assert.Empty(t, r.Members("tech", nil))
	assert.Zero(t, r.UserCount())
	assert.Zero(t, r.ConnCount())
}

func TestUnregisterUnregisteredConnection(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	c := newFakeConn("c")
	assert.Equal(t, 1, r.Connect(c))

	_, ok := r.Unregister(c)
	assert.False(t, ok)
	assert.Zero(t, r.ConnCount())
}

func TestRoomsPersistByDefault(t *testing.T) {
	r := NewRegistry(RegistryConfig{Rooms: []string{"random", "tech"}})
	c := newFakeConn("c")
	r.Register(c, "alice", "")
	_, _, _ = r.MoveRoom(c, "زبان")
	r.Unregister(c)

	assert.Equal(t, []string{"general", "random", "tech", "زبان"}, r.RoomNames())
}

func TestReapEmptyRooms(t *testing.T) {
	r := NewRegistry(RegistryConfig{Rooms: []string{"random"}, ReapEmptyRooms: true})
	c := newFakeConn("c")
	r.Register(c, "alice", "")

	_, _, _ = r.MoveRoom(c, "scratch")
	assert.Contains(t, r.RoomNames(), "scratch")

	_, _, _ = r.MoveRoom(c, "random")
	assert.NotContains(t, r.RoomNames(), "scratch")

	r.Unregister(c)
	assert.Equal(t, []string{"general", "random"}, r.RoomNames())

	_, err := r.UsersInRoom("scratch")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestUsersInRoomOrderedByJoinTime(t *testing.T) {
	r := NewRegistry(RegistryConfig{Now: fixedClock()})
	names := []string{"alice", "bob", "carol"}
	for i, name := range names {
		r.Register(newFakeConn(fmt.Sprint(i)), name, "")
	}

	users, err := r.UsersInRoom(DefaultRoom)
	require.NoError(t, err)
	require.Len(t, users, 3)
	for i, u := range users {
		assert.Equal(t, names[i], u.Username)
	}

	info := r.Rooms()
	require.Len(t, info, 1)
	assert.Equal(t, RoomInfo{Name: DefaultRoom, Users: 3}, info[0])
}

func TestMembersExcludes(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	a, b := newFakeConn("a"), newFakeConn("b")
	r.Register(a, "alice", "")
	r.Register(b, "bob", "")

	assert.Equal(t, []Conn{b}, r.Members(DefaultRoom, a))
	assert.Nil(t, r.Members("nowhere", nil))
}

func TestRegistryConcurrentMutation(t *testing.T) {
	r := NewRegistry(RegistryConfig{Rooms: []string{"random", "tech"}})
	rooms := []string{"general", "random", "tech", "music"}

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(fmt.Sprintf("c%d", i))
			r.Connect(c)
			r.Register(c, fmt.Sprintf("u%d", i), "")
			for j := range 50 {
				_, _, _ = r.MoveRoom(c, rooms[(i+j)%len(rooms)])
				for _, m := range r.Members(rooms[j%len(rooms)], nil) {
					_ = m.ID()
				}
			}
			if i%2 == 0 {
				r.Unregister(c)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, r.UserCount())
	assertConsistent(t, r)
}
