package core

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

var errConnNotOpen = errors.New("connection not open")

// Delivery summarizes one fan-out.
type Delivery struct {
	Targets int
	Failed  int
}

// Broadcaster fans records out to room members.
type Broadcaster struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewBroadcaster builds a broadcaster over registry.
func NewBroadcaster(registry *Registry, logger *zerolog.Logger) *Broadcaster {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broadcaster{registry: registry, log: logger}
}

// ToRoom delivers msg to every open member of room except exclude. Each
// send runs on its own goroutine and ToRoom returns once all of them have
// finished. Per-recipient failures are logged and counted, never returned.
func (b *Broadcaster) ToRoom(ctx context.Context, room string, msg any, exclude Conn) Delivery {
	payload, err := proto.Encode(msg)
	if err != nil {
		b.log.Error().Err(err).Str("room", room).Msg("encode broadcast")
		return Delivery{}
	}

	// The sender going away must not cut delivery to everybody else short.
	ctx = context.WithoutCancel(ctx)

	members := b.registry.Members(room, exclude)
	var failed atomic.Int64
	var wg conc.WaitGroup
	for _, c := range members {
		wg.Go(func() {
			if err := b.send(ctx, c, payload); err != nil {
				failed.Add(1)
				b.log.Debug().Err(err).Str("conn_id", c.ID()).Str("room", room).Msg("broadcast send failed")
			}
		})
	}
	wg.Wait()

	d := Delivery{Targets: len(members), Failed: int(failed.Load())}
	b.log.Debug().Str("room", room).Int("targets", d.Targets).Int("failed", d.Failed).Msg("broadcast")
	return d
}

// ToConn delivers msg to a single connection.
func (b *Broadcaster) ToConn(ctx context.Context, c Conn, msg any) error {
	payload, err := proto.Encode(msg)
	if err != nil {
		return err
	}
	return b.send(ctx, c, payload)
}

// send isolates a recipient: a closed channel or a panicking transport
// turns into an error for that recipient only.
func (b *Broadcaster) send(ctx context.Context, c Conn, payload []byte) error {
	if !c.IsOpen() {
		return errConnNotOpen
	}
	var err error
	var catcher panics.Catcher
	catcher.Try(func() {
		err = c.Send(ctx, payload)
	})
	if r := catcher.Recovered(); r != nil {
		b.log.Warn().Str("conn_id", c.ID()).Str("panic", r.String()).Msg("recovered panic in send")
		return r.AsError()
	}
	return err
}
