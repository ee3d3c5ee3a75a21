package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"ainet/internal/hub"
	"ainet/internal/metrics"
)

// NATS relays room events over core NATS subjects ainet.chat.<room>.
// Delivery is fire-and-forget; history lives in the message store.
type NATS struct {
	nc     *nats.Conn
	prefix string
	logger zerolog.Logger
}

// NewNATS connects to the NATS server at url
func NewNATS(url string, logger zerolog.Logger) (*NATS, error) {
	logger = logger.With().Str("component", "relay").Str("backend", "nats").Logger()

	nc, err := nats.Connect(url,
		nats.Name("ainet-chat"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATS{nc: nc, prefix: natsSubjectPrefix, logger: logger}, nil
}

func (n *NATS) subject(room string) string {
	return n.prefix + "." + room
}

// Publish sends payload to every instance subscribed to room events
func (n *NATS) Publish(ctx context.Context, room string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", hub.ErrRelayUnavailable, err)
	}
	if err := n.nc.Publish(n.subject(room), payload); err != nil {
		if natsNotSent(err) {
			err = fmt.Errorf("%w: %w", hub.ErrRelayUnavailable, err)
		}
		return fmt.Errorf("failed to publish to subject '%s': %w", n.subject(room), err)
	}
	return nil
}

// natsNotSent reports errors returned before the message reached the
// connection's outbound buffer.
func natsNotSent(err error) bool {
	for _, target := range []error{
		nats.ErrInvalidConnection,
		nats.ErrConnectionClosed,
		nats.ErrConnectionDraining,
		nats.ErrBadSubject,
		nats.ErrMaxPayload,
		nats.ErrReconnectBufExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Subscribe calls handler for every room event until ctx is done
func (n *NATS) Subscribe(ctx context.Context, handler func(room string, payload []byte)) error {
	wildcard := n.prefix + ".*"
	sub, err := n.nc.Subscribe(wildcard, func(msg *nats.Msg) {
		room := strings.TrimPrefix(msg.Subject, n.prefix+".")
		if room == msg.Subject || room == "" {
			metrics.RelayErrors.WithLabelValues("nats").Inc()
			n.logger.Warn().Str("subject", msg.Subject).Msg("unexpected subject")
			return
		}
		handler(room, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", wildcard, err)
	}
	n.logger.Info().Str("subject", wildcard).Msg("relay subscribed")

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && n.nc.IsConnected() {
		n.logger.Warn().Err(err).Msg("unsubscribe failed")
	}
	return ctx.Err()
}

// Close NATS connection
func (n *NATS) Close() error {
	if n.nc != nil {
		n.nc.Close()
	}
	return nil
}
