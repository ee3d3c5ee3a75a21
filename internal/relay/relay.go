// Package relay carries room events between server instances so that two
// participants connected to different instances still share a room.
package relay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"ainet/internal/config"
	"ainet/internal/hub"
)

const (
	natsSubjectPrefix  = "ainet.chat"
	redisChannelPrefix = "ainet:chat:"
)

// Open returns the relay selected by cfg.Relay, or nil for "none".
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (hub.Relay, error) {
	switch cfg.Relay {
	case "", "none":
		return nil, nil
	case "nats":
		r, err := NewNATS(cfg.NatsURL, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "redis":
		r, err := NewRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("unsupported relay %q", cfg.Relay)
}
