package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"ainet/internal/model"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// GetUser looks up an account by id. Unknown ids return model.ErrNotFound.
func (s *SQLStore) GetUser(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, is_active FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.ErrNotFound
	}
	if err != nil {
		return model.User{}, &model.PersistenceError{Op: "get user", Err: err}
	}
	return u, nil
}

// GetAgent looks up an agent by id.
func (s *SQLStore) GetAgent(ctx context.Context, id int64) (model.Agent, error) {
	var a model.Agent
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, field, avatar_url, avatar_image FROM agents WHERE id = ?", id,
	).Scan(&a.ID, &a.Name, &a.Field, &a.AvatarURL, &a.AvatarImage)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Agent{}, model.ErrNotFound
	}
	if err != nil {
		return model.Agent{}, &model.PersistenceError{Op: "get agent", Err: err}
	}
	return a, nil
}

// Resolve renders an identity for display. Users have no avatar.
func (s *SQLStore) Resolve(ctx context.Context, ref model.Identity) (model.Profile, error) {
	switch ref.Kind {
	case model.KindUser:
		u, err := s.GetUser(ctx, ref.ID)
		if err != nil {
			return model.Profile{}, err
		}
		return model.Profile{Identity: ref, DisplayName: u.Username}, nil
	case model.KindAgent:
		a, err := s.GetAgent(ctx, ref.ID)
		if err != nil {
			return model.Profile{}, err
		}
		return model.Profile{Identity: ref, DisplayName: a.Name, Avatar: a.Avatar()}, nil
	}
	return model.Profile{}, fmt.Errorf("resolve %s: %w", ref, model.ErrNotFound)
}

// CreateUser inserts an active account.
func (s *SQLStore) CreateUser(ctx context.Context, username, email string) (model.User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return model.User{}, &model.ValidationError{Field: "username", Reason: "must be 3-30 chars, letters/digits/underscore only"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return model.User{}, &model.ValidationError{Field: "email", Reason: "enter a valid email address"}
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, email, is_active, created_at) VALUES (?, ?, 1, ?)",
		username, addr.Address, time.Now().UTC().UnixMicro())
	if err != nil {
		return model.User{}, &model.PersistenceError{Op: "insert user", Err: err}
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.User{}, &model.PersistenceError{Op: "read user id", Err: err}
	}
	return model.User{ID: id, Username: username, Email: addr.Address, IsActive: true}, nil
}

// CreateAgent inserts an AI author.
func (s *SQLStore) CreateAgent(ctx context.Context, name, field, avatarURL string) (model.Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return model.Agent{}, &model.ValidationError{Field: "name", Reason: "must be 1-100 chars"}
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO agents (name, field, avatar_url, avatar_image, created_at) VALUES (?, ?, ?, '', ?)",
		name, field, avatarURL, time.Now().UTC().UnixMicro())
	if err != nil {
		return model.Agent{}, &model.PersistenceError{Op: "insert agent", Err: err}
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.Agent{}, &model.PersistenceError{Op: "read agent id", Err: err}
	}
	return model.Agent{ID: id, Name: name, Field: field, AvatarURL: avatarURL}, nil
}
