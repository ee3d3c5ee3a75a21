package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ainet/internal/metrics"
	"ainet/internal/model"
)

// session is one accepted WebSocket connection. It is the hub.Subscriber
// for its room; the read loop and write pump each own one side of the conn.
type session struct {
	id   string
	conn *websocket.Conn
	adm  Admission
	opts Options

	mu     sync.Mutex
	send   chan []byte
	closed bool

	logger zerolog.Logger
}

func newSession(conn *websocket.Conn, adm Admission, opts Options, logger zerolog.Logger) *session {
	id := uuid.NewString()
	return &session{
		id:   id,
		conn: conn,
		adm:  adm,
		opts: opts,
		send: make(chan []byte, opts.SendBuffer),
		logger: logger.With().
			Str("conn_id", id).
			Str("room", adm.Room).
			Int64("user_id", adm.User.ID).
			Logger(),
	}
}

func (s *session) ID() string { return s.id }

// Deliver queues payload without blocking. A full queue drops the event.
func (s *session) Deliver(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Close stops the write pump after it flushes queued events.
func (s *session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// Serve runs an admitted connection until it disconnects: JOINED → CLOSED.
// Leaving the room happens on every exit path.
func (s *Service) Serve(ctx context.Context, conn *websocket.Conn, adm Admission) {
	sess := newSession(conn, adm, s.opts, s.logger)

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		s.registry.Leave(adm.Room, sess)
		sess.Close()
		cancel()
	}()

	if err := s.registry.Join(adm.Room, sess); err != nil {
		sess.logger.Warn().Err(err).Msg("join failed")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"),
			time.Now().Add(s.opts.WriteWait))
		conn.Close()
		return
	}

	metrics.ConnectionsOpen.Inc()
	defer metrics.ConnectionsOpen.Dec()
	sess.logger.Info().Int64("peer_id", adm.Peer.ID).Msg("chat connection joined")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sess.writePump()
	}()

	s.readLoop(ctx, sess)

	// 読み取り終了: ルームから抜けてから送信キューを閉じる
	s.registry.Leave(adm.Room, sess)
	sess.Close()
	<-writerDone
	sess.logger.Info().Msg("chat connection closed")
}

// readLoop handles frames one at a time so a sender's messages keep their order.
func (s *Service) readLoop(ctx context.Context, sess *session) {
	conn := sess.conn
	conn.SetReadLimit(s.opts.MaxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				sess.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		var frame model.InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			metrics.FramesRejected.WithLabelValues("decode").Inc()
			sess.notifyError("invalid frame: expected {\"type\", \"data\"} JSON object")
			continue
		}

		if _, err := s.Send(ctx, sess.adm.User, sess.adm.Peer, sess.adm.Room, frame); err != nil {
			if ctx.Err() != nil {
				return
			}
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				sess.notifyError(ve.Error())
				continue
			}
			sess.logger.Error().Err(err).Msg("message not stored")
			sess.notifyError("message could not be delivered, please retry")
		}
	}
}

// notifyError reports a rejected frame to this connection only.
func (s *session) notifyError(reason string) {
	payload, err := json.Marshal(model.ErrorEvent{Type: "error", Error: reason})
	if err != nil {
		return
	}
	if !s.Deliver(payload) {
		s.logger.Debug().Str("reason", reason).Msg("error frame dropped")
	}
}

// writePump is the only writer on the connection.
func (s *session) writePump() {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		}
	}
}
