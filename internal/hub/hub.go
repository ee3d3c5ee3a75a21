// Package hub keeps room membership for live chat connections and fans
// events out to them, either in-process or through a cross-instance relay.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"ainet/internal/metrics"
)

var ErrHubClosed = errors.New("hub closed")

// ErrRelayUnavailable is wrapped by Relay.Publish errors that guarantee the
// event never left this process. Only those fall back to local delivery.
var ErrRelayUnavailable = errors.New("relay unavailable")

// Subscriber is one live connection registered in a room.
// Deliver must not block; it reports false when the event was dropped.
type Subscriber interface {
	ID() string
	Deliver(payload []byte) bool
	Close()
}

// Relay carries room events between server instances
type Relay interface {
	Publish(ctx context.Context, room string, payload []byte) error
	Subscribe(ctx context.Context, handler func(room string, payload []byte)) error
	Close() error
}

// Hub maps room ids to their current subscribers.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Subscriber
	closed bool

	relay  Relay
	logger zerolog.Logger
}

type Option func(*Hub)

// WithRelay routes broadcasts through r. Run must be started so that
// relayed events reach local subscribers.
func WithRelay(r Relay) Option {
	return func(h *Hub) { h.relay = r }
}

func New(logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		rooms:  make(map[string]map[string]Subscriber),
		logger: logger.With().Str("component", "hub").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join adds sub to room. Joining twice is a no-op.
func (h *Hub) Join(room string, sub Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		h.rooms[room] = members
	}
	members[sub.ID()] = sub
	return nil
}

// Leave removes sub from room and prunes the room when it empties.
// Once Leave returns, sub receives no further events.
func (h *Hub) Leave(room string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, sub.ID())
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast sends payload to every subscriber of room. It returns the
// number of local subscribers that accepted the event; with a relay the
// delivery happens asynchronously from Run and the count is zero.
func (h *Hub) Broadcast(ctx context.Context, room string, payload []byte) (int, error) {
	if h.relay != nil {
		err := h.relay.Publish(ctx, room, payload)
		if err == nil {
			return 0, nil
		}
		metrics.RelayErrors.WithLabelValues("publish").Inc()
		if !errors.Is(err, ErrRelayUnavailable) {
			// 送信済みの可能性があるため再配信しない
			return 0, fmt.Errorf("relay publish to %s: %w", room, err)
		}
		// 他インスタンスには届かないが、ローカルの購読者には配信する
		h.logger.Error().Err(err).Str("room", room).Msg("relay publish failed, delivering locally")
	}
	return h.deliver(room, payload), nil
}

// deliver runs under the read lock so that Leave waits for in-flight fan-out.
func (h *Hub) deliver(room string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}

	delivered := 0
	for id, sub := range h.rooms[room] {
		if sub.Deliver(payload) {
			delivered++
			metrics.Deliveries.Inc()
			continue
		}
		metrics.DeliveriesDropped.Inc()
		h.logger.Warn().Str("room", room).Str("subscriber", id).Msg("subscriber stalled, event dropped")
	}
	return delivered
}

// Run consumes relayed events until ctx is done. Without a relay it only
// waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	if h.relay == nil {
		<-ctx.Done()
		return nil
	}

	err := h.relay.Subscribe(ctx, func(room string, payload []byte) {
		h.deliver(room, payload)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close disconnects every subscriber and rejects later joins.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var subs []Subscriber
	for room, members := range h.rooms {
		for _, sub := range members {
			subs = append(subs, sub)
		}
		delete(h.rooms, room)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	if h.relay != nil {
		if err := h.relay.Close(); err != nil {
			h.logger.Warn().Err(err).Msg("relay close failed")
		}
	}
}

// Members returns the number of subscribers currently in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Rooms returns the number of non-empty rooms.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
