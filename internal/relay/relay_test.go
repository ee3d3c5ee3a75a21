package relay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ainet/internal/config"
	"ainet/internal/hub"
)

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")
	os.Exit(m.Run())
}

func TestOpen_None(t *testing.T) {
	r, err := Open(context.Background(), config.Config{Relay: "none"}, zerolog.Nop())
	if err != nil || r != nil {
		t.Errorf("Open(none) = %v, %v; want nil, nil", r, err)
	}
	if _, err := Open(context.Background(), config.Config{Relay: "kafka"}, zerolog.Nop()); err == nil {
		t.Error("Expected error for unknown relay")
	}
}

func TestNATSNotSent(t *testing.T) {
	for _, err := range []error{nats.ErrConnectionClosed, nats.ErrReconnectBufExceeded, fmt.Errorf("publish: %w", nats.ErrMaxPayload)} {
		if !natsNotSent(err) {
			t.Errorf("Expected %v to mean not sent", err)
		}
	}
	if natsNotSent(errors.New("write: broken pipe")) {
		t.Error("Write failures are ambiguous and must not fall back")
	}
}

func TestRedisPublish_UnreachableIsUnavailable(t *testing.T) {
	// 誰も待ち受けていないポート
	r := &Redis{
		client: redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: time.Second}),
		prefix: redisChannelPrefix,
		logger: zerolog.Nop(),
	}

	err := r.Publish(context.Background(), "chat_1_2", []byte("x"))
	if !errors.Is(err, hub.ErrRelayUnavailable) {
		t.Errorf("Expected ErrRelayUnavailable for refused dial, got %v", err)
	}

	r.Close()
	err = r.Publish(context.Background(), "chat_1_2", []byte("x"))
	if !errors.Is(err, hub.ErrRelayUnavailable) {
		t.Errorf("Expected ErrRelayUnavailable for closed client, got %v", err)
	}
}

// roundTrip subscribes, publishes one event and waits for it to come back.
func roundTrip(t *testing.T, r hub.Relay) {
	t.Helper()
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type event struct {
		room    string
		payload string
	}
	got := make(chan event, 1)
	go r.Subscribe(ctx, func(room string, payload []byte) {
		got <- event{room, string(payload)}
	})

	// 購読が確立するまでリトライ
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := r.Publish(ctx, "chat_5_9", []byte(`{"type":"chat_message"}`)); err != nil {
			t.Fatalf("Publish() error: %v", err)
		}
		select {
		case ev := <-got:
			if ev.room != "chat_5_9" || ev.payload != `{"type":"chat_message"}` {
				t.Errorf("Unexpected event %+v", ev)
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("Relayed event not received")
		}
	}
}

func TestNATSRelay_RoundTrip(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("Skipping: NATS_URL not set")
	}
	r, err := NewNATS(url, zerolog.Nop())
	if err != nil {
		t.Skipf("Skipping: could not connect to NATS: %v", err)
	}
	roundTrip(t, r)
}

func TestRedisRelay_RoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping: REDIS_URL not set")
	}
	r, err := NewRedis(context.Background(), url, zerolog.Nop())
	if err != nil {
		t.Skipf("Skipping: could not connect to Redis: %v", err)
	}
	roundTrip(t, r)
}
