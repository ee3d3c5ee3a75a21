// Package chat implements the real-time direct messaging path: the
// connection gate, per-connection sessions and the persist-then-broadcast
// fan-out.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ainet/internal/hub"
	"ainet/internal/metrics"
	"ainet/internal/model"
)

// MessageStore is the write side used by the real-time path
type MessageStore interface {
	Persist(ctx context.Context, sender, receiver model.Identity, t model.MessageType, data string) (model.Message, error)
}

// Resolver renders an identity for display
type Resolver interface {
	Resolve(ctx context.Context, ref model.Identity) (model.Profile, error)
}

// Registry is the room membership the service joins sessions into
type Registry interface {
	Join(room string, sub hub.Subscriber) error
	Leave(room string, sub hub.Subscriber)
	Broadcast(ctx context.Context, room string, payload []byte) (int, error)
}

// Options tunes per-connection behaviour
type Options struct {
	SendBuffer      int
	MaxMessageBytes int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 10 << 20
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	return o
}

// Service persists inbound messages and fans them out to the room.
type Service struct {
	store    MessageStore
	names    Resolver
	registry Registry
	opts     Options
	logger   zerolog.Logger
}

func NewService(store MessageStore, names Resolver, registry Registry, logger zerolog.Logger, opts Options) *Service {
	return &Service{
		store:    store,
		names:    names,
		registry: registry,
		opts:     opts.withDefaults(),
		logger:   logger.With().Str("component", "chat").Logger(),
	}
}

// Send validates and persists frame from sender to peer, then broadcasts
// the stored message to room. Nothing is broadcast unless the write succeeded.
func (s *Service) Send(ctx context.Context, sender, peer model.User, room string, frame model.InboundFrame) (model.ChatEvent, error) {
	msgType, err := model.ParseMessageType(frame.Type)
	if err != nil {
		metrics.FramesRejected.WithLabelValues("validation").Inc()
		return model.ChatEvent{}, err
	}

	msg, err := s.store.Persist(ctx, sender.Ref(), peer.Ref(), msgType, frame.Data)
	if err != nil {
		if model.IsValidation(err) {
			metrics.FramesRejected.WithLabelValues("validation").Inc()
			return model.ChatEvent{}, err
		}
		metrics.FramesRejected.WithLabelValues("persistence").Inc()
		var pe *model.PersistenceError
		if !errors.As(err, &pe) {
			err = &model.PersistenceError{Op: "persist message", Err: err}
		}
		return model.ChatEvent{}, err
	}
	metrics.MessagesPersisted.WithLabelValues(string(msgType)).Inc()

	event := model.NewChatEvent(msg, s.displayName(ctx, sender.Ref(), sender.Username))
	if err := s.publish(ctx, room, event); err != nil {
		// already durable; the peer will see it in history
		s.logger.Error().Err(err).Int64("message_id", msg.ID).Str("room", room).Msg("broadcast failed")
	}
	return event, nil
}

// displayName resolves ref, falling back to the account name when the
// directory cannot answer.
func (s *Service) displayName(ctx context.Context, ref model.Identity, fallback string) string {
	p, err := s.names.Resolve(ctx, ref)
	if err != nil || p.DisplayName == "" {
		s.logger.Warn().Err(err).Str("identity", ref.String()).Msg("display name unavailable")
		return fallback
	}
	return p.DisplayName
}

func (s *Service) publish(ctx context.Context, room string, event model.ChatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	n, err := s.registry.Broadcast(ctx, room, payload)
	if err != nil {
		return err
	}
	s.logger.Debug().Str("room", room).Int64("message_id", event.ID).Int("delivered", n).Msg("message broadcast")
	return nil
}
