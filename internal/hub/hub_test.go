package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSub struct {
	id     string
	ch     chan []byte
	mu     sync.Mutex
	closed bool
}

func newFakeSub(id string, buffer int) *fakeSub {
	return &fakeSub{id: id, ch: make(chan []byte, buffer)}
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Deliver(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.ch <- payload:
		return true
	default:
		return false
	}
}

func (f *fakeSub) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSub) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestRoomID_Symmetric(t *testing.T) {
	pairs := [][2]int64{{5, 9}, {9, 5}, {1, 1000}, {42, 42}, {0, 7}}
	for _, p := range pairs {
		if RoomID(p[0], p[1]) != RoomID(p[1], p[0]) {
			t.Errorf("RoomID(%d,%d) != RoomID(%d,%d)", p[0], p[1], p[1], p[0])
		}
	}
	if got := RoomID(9, 5); got != "chat_5_9" {
		t.Errorf("RoomID(9,5) = %s, want chat_5_9", got)
	}
}

func TestJoin_Idempotent(t *testing.T) {
	h := New(zerolog.Nop())
	sub := newFakeSub("a", 4)

	h.Join("chat_1_2", sub)
	h.Join("chat_1_2", sub)

	if n := h.Members("chat_1_2"); n != 1 {
		t.Fatalf("Expected 1 member after double join, got %d", n)
	}

	n, err := h.Broadcast(context.Background(), "chat_1_2", []byte("x"))
	if err != nil || n != 1 {
		t.Fatalf("Broadcast() = %d, %v", n, err)
	}
	if len(sub.ch) != 1 {
		t.Errorf("Expected exactly one delivery, got %d", len(sub.ch))
	}
}

func TestLeave_PrunesRoomAndStopsDelivery(t *testing.T) {
	h := New(zerolog.Nop())
	a, b := newFakeSub("a", 4), newFakeSub("b", 4)

	h.Join("r", a)
	h.Join("r", b)
	h.Leave("r", a)

	h.Broadcast(context.Background(), "r", []byte("after leave"))
	if len(a.ch) != 0 {
		t.Error("Left subscriber should not receive events")
	}
	if len(b.ch) != 1 {
		t.Error("Remaining subscriber should receive the event")
	}

	h.Leave("r", b)
	if h.Rooms() != 0 {
		t.Errorf("Expected empty room to be pruned, got %d rooms", h.Rooms())
	}
	// 未登録のLeaveは何もしない
	h.Leave("r", b)
	h.Leave("missing", a)
}

func TestBroadcast_StalledSubscriberIsIsolated(t *testing.T) {
	h := New(zerolog.Nop())
	stalled := newFakeSub("stalled", 0)
	healthy := newFakeSub("healthy", 1)

	h.Join("r", stalled)
	h.Join("r", healthy)

	done := make(chan int, 1)
	go func() {
		n, _ := h.Broadcast(context.Background(), "r", []byte("x"))
		done <- n
	}()

	select {
	case n := <-done:
		if n != 1 {
			t.Errorf("Expected 1 successful delivery, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a stalled subscriber")
	}
	if len(healthy.ch) != 1 {
		t.Error("Healthy subscriber should still receive the event")
	}
}

func TestBroadcast_OtherRoomsUntouched(t *testing.T) {
	h := New(zerolog.Nop())
	a, b := newFakeSub("a", 1), newFakeSub("b", 1)
	h.Join("chat_1_2", a)
	h.Join("chat_1_3", b)

	h.Broadcast(context.Background(), "chat_1_2", []byte("x"))
	if len(b.ch) != 0 {
		t.Error("Subscriber in another room received the event")
	}
}

func TestHub_ConcurrentJoinLeaveBroadcast(t *testing.T) {
	h := New(zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			sub := newFakeSub(fmt.Sprintf("sub-%d", i), 100)
			room := RoomID(int64(i%5), 100)
			h.Join(room, sub)
			h.Leave(room, sub)
		}(i)
		go func(i int) {
			defer wg.Done()
			h.Broadcast(ctx, RoomID(int64(i%5), 100), []byte("x"))
		}(i)
	}
	wg.Wait()

	if h.Rooms() != 0 {
		t.Errorf("Expected all rooms pruned, got %d", h.Rooms())
	}
}

func TestClose_DisconnectsSubscribers(t *testing.T) {
	h := New(zerolog.Nop())
	a := newFakeSub("a", 1)
	h.Join("r", a)

	h.Close()
	h.Close()

	if !a.isClosed() {
		t.Error("Close should close subscribers")
	}
	if err := h.Join("r", newFakeSub("b", 1)); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Expected ErrHubClosed, got %v", err)
	}
	if n, _ := h.Broadcast(context.Background(), "r", []byte("x")); n != 0 {
		t.Errorf("Closed hub should deliver nothing, got %d", n)
	}
}

// loopRelay is an in-process Relay used to exercise the relayed path.
type loopRelay struct {
	mu        sync.Mutex
	handler   func(string, []byte)
	ready     chan struct{}
	failNext  error
	published int
}

func newLoopRelay() *loopRelay { return &loopRelay{ready: make(chan struct{})} }

func (l *loopRelay) Publish(_ context.Context, room string, payload []byte) error {
	l.mu.Lock()
	if err := l.failNext; err != nil {
		l.failNext = nil
		l.mu.Unlock()
		return err
	}
	l.published++
	handler := l.handler
	l.mu.Unlock()
	if handler != nil {
		handler(room, payload)
	}
	return nil
}

func (l *loopRelay) Subscribe(ctx context.Context, handler func(string, []byte)) error {
	l.mu.Lock()
	l.handler = handler
	l.mu.Unlock()
	close(l.ready)
	<-ctx.Done()
	return ctx.Err()
}

func (l *loopRelay) Close() error { return nil }

func TestBroadcast_ThroughRelay(t *testing.T) {
	relay := newLoopRelay()
	h := New(zerolog.Nop(), WithRelay(relay))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- h.Run(ctx) }()
	<-relay.ready

	sub := newFakeSub("a", 2)
	h.Join("r", sub)

	n, err := h.Broadcast(ctx, "r", []byte("relayed"))
	if err != nil || n != 0 {
		t.Fatalf("Broadcast() = %d, %v", n, err)
	}
	select {
	case got := <-sub.ch:
		if string(got) != "relayed" {
			t.Errorf("Unexpected payload %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Relayed event not delivered")
	}

	// リレー障害時はローカル配信にフォールバック
	relay.mu.Lock()
	relay.failNext = fmt.Errorf("%w: connection closed", ErrRelayUnavailable)
	relay.mu.Unlock()
	if n, err := h.Broadcast(ctx, "r", []byte("fallback")); err != nil || n != 1 {
		t.Errorf("Expected local fallback delivery, got %d, %v", n, err)
	}
	<-sub.ch

	// 送信済みか不明なエラーではローカル配信しない (二重配信防止)
	relay.mu.Lock()
	relay.failNext = errors.New("i/o timeout")
	relay.mu.Unlock()
	if n, err := h.Broadcast(ctx, "r", []byte("maybe sent")); err == nil || n != 0 {
		t.Errorf("Expected error without local delivery, got %d, %v", n, err)
	}
	select {
	case got := <-sub.ch:
		t.Errorf("Ambiguous relay failure must not deliver locally, got %s", got)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("Run() returned %v", err)
	}
}
