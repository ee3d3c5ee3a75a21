package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ainet/internal/model"
)

// UserLookup resolves a subject id to an account
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
}

// Claims follows the access token layout used by the web clients:
// token_type, user_id, jti, iat, exp.
type Claims struct {
	TokenType string `json:"token_type"`
	UserID    json64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 access tokens
type Authenticator struct {
	secret []byte
	users  UserLookup
	logger zerolog.Logger
	now    func() time.Time
}

func NewAuthenticator(secret string, users UserLookup, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		users:  users,
		logger: logger.With().Str("component", "auth").Logger(),
		now:    time.Now,
	}
}

// Authenticate returns the token's user. Every failure is model.ErrUnauthenticated.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (model.User, error) {
	user, err := a.authenticate(ctx, token)
	if err != nil {
		a.logger.Debug().Err(err).Msg("token rejected")
		return model.User{}, model.ErrUnauthenticated
	}
	return user, nil
}

func (a *Authenticator) authenticate(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, errors.New("missing token")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return model.User{}, err
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return model.User{}, fmt.Errorf("unexpected token type %q", claims.TokenType)
	}

	userID := int64(claims.UserID)
	if userID == 0 && claims.Subject != "" {
		if userID, err = strconv.ParseInt(claims.Subject, 10, 64); err != nil {
			return model.User{}, fmt.Errorf("invalid subject: %w", err)
		}
	}
	if userID <= 0 {
		return model.User{}, errors.New("token has no subject")
	}

	user, err := a.users.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("lookup user %d: %w", userID, err)
	}
	if !user.IsActive {
		return model.User{}, fmt.Errorf("user %d is inactive", userID)
	}
	return user, nil
}

// Issue mints an access token for userID
func (a *Authenticator) Issue(userID int64, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		TokenType: "access",
		UserID:    json64(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
