package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"ainet/internal/hub"
	"ainet/internal/model"
)

// ErrInvalidPeer means the peer id in the route is not a positive integer
var ErrInvalidPeer = errors.New("invalid peer id")

// Authenticator resolves a bearer token to a user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.User, error)
}

// UserDirectory looks up peers by id
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
}

// Admission is the outcome of a successful handshake
type Admission struct {
	User model.User
	Peer model.User
	Room string
}

// Gate decides whether an inbound chat connection may be accepted.
type Gate struct {
	auth  Authenticator
	users UserDirectory
}

func NewGate(auth Authenticator, users UserDirectory) *Gate {
	return &Gate{auth: auth, users: users}
}

// Admit runs authenticate → resolve peer → derive room. It has no side
// effects, so a rejected connection leaves no trace in the hub.
func (g *Gate) Admit(ctx context.Context, token, peerParam string) (Admission, error) {
	user, err := g.auth.Authenticate(ctx, token)
	if err != nil {
		return Admission{}, model.ErrUnauthenticated
	}

	peerID, err := strconv.ParseInt(peerParam, 10, 64)
	if err != nil || peerID <= 0 {
		return Admission{}, ErrInvalidPeer
	}

	peer, err := g.users.GetUser(ctx, peerID)
	if errors.Is(err, model.ErrNotFound) {
		return Admission{}, model.ErrPeerNotFound
	}
	if err != nil {
		return Admission{}, fmt.Errorf("lookup peer %d: %w", peerID, err)
	}

	return Admission{
		User: user,
		Peer: peer,
		Room: hub.RoomID(user.ID, peer.ID),
	}, nil
}
