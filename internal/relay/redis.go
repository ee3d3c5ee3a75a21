package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ainet/internal/hub"
	"ainet/internal/metrics"
)

// Redis relays room events over pub/sub channels ainet:chat:<room>.
type Redis struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedis connects to the Redis server at redisURL
func NewRedis(ctx context.Context, redisURL string, logger zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{
		client: client,
		prefix: redisChannelPrefix,
		logger: logger.With().Str("component", "relay").Str("backend", "redis").Logger(),
	}, nil
}

// Publish sends payload to every instance subscribed to room events.
// A timeout after the command was written is ambiguous and is not marked
// as ErrRelayUnavailable.
func (r *Redis) Publish(ctx context.Context, room string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", hub.ErrRelayUnavailable, err)
	}
	err := r.client.Publish(ctx, r.prefix+room, payload).Err()
	if err != nil && redisNotSent(err) {
		return fmt.Errorf("%w: %w", hub.ErrRelayUnavailable, err)
	}
	return err
}

// redisNotSent reports errors raised before a connection carried the command.
func redisNotSent(err error) bool {
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// Subscribe calls handler for every room event until ctx is done
func (r *Redis) Subscribe(ctx context.Context, handler func(room string, payload []byte)) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer pubsub.Close()

	// 購読確立を待つ
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	r.logger.Info().Str("pattern", r.prefix+"*").Msg("relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			room := strings.TrimPrefix(msg.Channel, r.prefix)
			if room == msg.Channel || room == "" {
				metrics.RelayErrors.WithLabelValues("redis").Inc()
				continue
			}
			handler(room, []byte(msg.Payload))
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
