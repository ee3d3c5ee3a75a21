package store

import (
	"context"
	"fmt"
	"time"

	"ainet/internal/model"
)

const messageColumns = `id, sender_kind, sender_id, receiver_kind, receiver_id, type, data, is_read, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Persist validates and appends one message. Validation failures never touch the database.
func (s *SQLStore) Persist(ctx context.Context, sender, receiver model.Identity, t model.MessageType, data string) (model.Message, error) {
	if !sender.Valid() {
		return model.Message{}, &model.ValidationError{Field: "sender", Reason: "invalid identity"}
	}
	if !receiver.Valid() {
		return model.Message{}, &model.ValidationError{Field: "receiver", Reason: "invalid identity"}
	}
	if err := model.ValidatePayload(t, data); err != nil {
		return model.Message{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.seedStamp(ctx); err != nil {
		return model.Message{}, &model.PersistenceError{Op: "read latest timestamp", Err: err}
	}

	stamp := s.now().UTC().UnixMicro()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}

	start := time.Now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (sender_kind, sender_id, receiver_kind, receiver_id, type, data, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		string(sender.Kind), sender.ID, string(receiver.Kind), receiver.ID, string(t), data, stamp)
	observe("persist", start)
	if err != nil {
		return model.Message{}, &model.PersistenceError{Op: "insert message", Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Message{}, &model.PersistenceError{Op: "read message id", Err: err}
	}
	s.lastStamp = stamp

	return model.Message{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Type:      t,
		Data:      data,
		CreatedAt: fromMicros(stamp),
	}, nil
}

// History returns every message exchanged between a and b, oldest first.
func (s *SQLStore) History(ctx context.Context, a, b model.Identity) ([]model.Message, error) {
	start := time.Now()
	defer observe("history", start)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		WHERE (sender_kind = ? AND sender_id = ? AND receiver_kind = ? AND receiver_id = ?)
		   OR (sender_kind = ? AND sender_id = ? AND receiver_kind = ? AND receiver_id = ?)
		ORDER BY created_at ASC, id ASC`,
		string(a.Kind), a.ID, string(b.Kind), b.ID,
		string(b.Kind), b.ID, string(a.Kind), a.ID)
	if err != nil {
		return nil, &model.PersistenceError{Op: "query history", Err: err}
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, &model.PersistenceError{Op: "scan history", Err: err}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "iterate history", Err: err}
	}
	return messages, nil
}

// MarkRead flags every unread message from peer to reader as read.
func (s *SQLStore) MarkRead(ctx context.Context, reader, peer model.Identity) (int64, error) {
	start := time.Now()
	defer observe("mark_read", start)

	result, err := s.db.ExecContext(ctx,
		`UPDATE chat_messages SET is_read = 1
		WHERE sender_kind = ? AND sender_id = ? AND receiver_kind = ? AND receiver_id = ? AND is_read = 0`,
		string(peer.Kind), peer.ID, string(reader.Kind), reader.ID)
	if err != nil {
		return 0, &model.PersistenceError{Op: "mark read", Err: err}
	}
	return result.RowsAffected()
}

// Discussions lists the counterparts self has exchanged messages with, most recent first.
// Counterparts that no longer resolve are skipped.
func (s *SQLStore) Discussions(ctx context.Context, self model.Identity) ([]model.Discussion, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT peer_kind, peer_id, MAX(created_at) AS last_at, SUM(unread) AS unread FROM (
			SELECT receiver_kind AS peer_kind, receiver_id AS peer_id, created_at, 0 AS unread
			FROM chat_messages WHERE sender_kind = ? AND sender_id = ?
			UNION ALL
			SELECT sender_kind AS peer_kind, sender_id AS peer_id, created_at,
				CASE WHEN is_read = 0 THEN 1 ELSE 0 END AS unread
			FROM chat_messages WHERE receiver_kind = ? AND receiver_id = ?
		) t
		GROUP BY peer_kind, peer_id
		ORDER BY last_at DESC`,
		string(self.Kind), self.ID, string(self.Kind), self.ID)
	observe("discussions", start)
	if err != nil {
		return nil, &model.PersistenceError{Op: "query discussions", Err: err}
	}

	type peerRow struct {
		ref    model.Identity
		lastAt int64
		unread int64
	}
	var peers []peerRow
	for rows.Next() {
		var (
			p    peerRow
			kind string
		)
		if err := rows.Scan(&kind, &p.ref.ID, &p.lastAt, &p.unread); err != nil {
			rows.Close()
			return nil, &model.PersistenceError{Op: "scan discussions", Err: err}
		}
		p.ref.Kind = model.Kind(kind)
		peers = append(peers, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "iterate discussions", Err: err}
	}

	// resolve after closing rows; SQLite runs on a single connection
	discussions := make([]model.Discussion, 0, len(peers))
	for _, p := range peers {
		profile, err := s.Resolve(ctx, p.ref)
		if err != nil {
			s.logger.Debug().Err(err).Str("peer", p.ref.String()).Msg("skipping unresolvable discussion peer")
			continue
		}
		discussions = append(discussions, model.Discussion{
			Peer:          p.ref,
			Name:          profile.DisplayName,
			Avatar:        profile.Avatar,
			LastMessageAt: fromMicros(p.lastAt),
			Unread:        int(p.unread),
		})
	}
	return discussions, nil
}

func scanMessage(row rowScanner) (model.Message, error) {
	var (
		m                        model.Message
		senderKind, receiverKind string
		msgType                  string
		isRead                   bool
		createdAt                int64
	)
	if err := row.Scan(&m.ID, &senderKind, &m.Sender.ID, &receiverKind, &m.Receiver.ID,
		&msgType, &m.Data, &isRead, &createdAt); err != nil {
		return model.Message{}, err
	}

	m.Sender.Kind = model.Kind(senderKind)
	m.Receiver.Kind = model.Kind(receiverKind)
	m.Type = model.MessageType(msgType)
	m.IsRead = isRead
	m.CreatedAt = fromMicros(createdAt)
	if !m.Sender.Valid() || !m.Receiver.Valid() {
		return model.Message{}, fmt.Errorf("message %d has a malformed identity", m.ID)
	}
	return m, nil
}
