// Package store persists chat messages and reads the user/agent directory.
// The same SQL runs on MySQL and SQLite; only the DDL differs (see database).
package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ainet/internal/metrics"
)

// SQLStore implements the message store and the identity directory on database/sql.
type SQLStore struct {
	db     *sql.DB
	logger zerolog.Logger

	// writeMu serializes Persist so created_at is strictly increasing
	writeMu   sync.Mutex
	lastStamp int64
	seeded    bool
	now       func() time.Time
}

// New wraps an open, migrated database.
func New(db *sql.DB, logger zerolog.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
		now:    time.Now,
	}
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// seedStamp loads the newest stored created_at so a clock that stepped back
// across a restart cannot stamp rows before existing ones. Callers hold writeMu.
func (s *SQLStore) seedStamp(ctx context.Context) error {
	if s.seeded {
		return nil
	}
	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(created_at) FROM chat_messages").Scan(&latest); err != nil {
		return err
	}
	if latest.Int64 > s.lastStamp {
		s.lastStamp = latest.Int64
	}
	s.seeded = true
	return nil
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
