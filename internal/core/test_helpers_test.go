package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeConn records every frame sent to it.
type fakeConn struct {
	id     string
	closed atomic.Bool

	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	panicOn bool
	delay   time.Duration
	// discard drops frames instead of recording them.
	discard bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) IsOpen() bool { return !f.closed.Load() }

func (f *fakeConn) Send(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	delay, sendErr, panicOn := f.delay, f.sendErr, f.panicOn
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if panicOn {
		panic("transport exploded")
	}
	if sendErr != nil {
		return sendErr
	}
	if f.closed.Load() {
		return errBrokenPipe
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.discard {
		f.frames = append(f.frames, append([]byte(nil), payload...))
	}
	return nil
}

func (f *fakeConn) close() { f.closed.Store(true) }

func (f *fakeConn) failWith(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

// messages decodes every frame received so far.
func (f *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]any, 0, len(f.frames))
	for _, frame := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(frame, &m), "frame %s", frame)
		out = append(out, m)
	}
	return out
}

// ofType returns the received messages whose type matches.
func (f *fakeConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, m := range f.messages(t) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// last returns the most recent message and fails if there is none.
func (f *fakeConn) last(t *testing.T) map[string]any {
	t.Helper()

	msgs := f.messages(t)
	require.NotEmpty(t, msgs, "no frames received by %s", f.id)
	return msgs[len(msgs)-1]
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestHub(opts Options) *Hub {
	reg := NewRegistry(RegistryConfig{Now: fixedClock()})
	return NewHub(reg, nil, opts)
}

func send(h *Hub, c Conn, frame string) {
	h.HandleFrame(context.Background(), c, []byte(frame))
}

// assertConsistent checks the exactly-one-room invariant from inside the lock.
func assertConsistent(t *testing.T, r *Registry) {
	t.Helper()

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Conn]string)
	for name, room := range r.rooms.rooms {
		for c := range room.clients {
			prev, dup := seen[c]
			require.False(t, dup, "conn %s in both %q and %q", c.ID(), prev, name)
			seen[c] = name
		}
	}
	for c, u := range r.users.byConn {
		require.Equal(t, u.Room, seen[c], "user %s room mismatch", u.ID)
		require.Equal(t, c, r.users.byID[u.ID])
	}
	require.Len(t, seen, len(r.users.byConn))
	require.Len(t, r.users.byID, len(r.users.byConn))
}
