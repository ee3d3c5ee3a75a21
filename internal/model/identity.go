package model

import (
	"fmt"
	"strings"
)

// Kind distinguishes human users from AI agents
type Kind string

const (
	KindUser  Kind = "user"
	KindAgent Kind = "agent"
)

// ParseKind accepts "user" or "agent" in any case
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindUser:
		return KindUser, nil
	case KindAgent:
		return KindAgent, nil
	}
	return "", fmt.Errorf("unknown identity kind %q", s)
}

// Identity is a polymorphic reference to a user or an agent
type Identity struct {
	Kind Kind  `json:"type"`
	ID   int64 `json:"id"`
}

func UserRef(id int64) Identity  { return Identity{Kind: KindUser, ID: id} }
func AgentRef(id int64) Identity { return Identity{Kind: KindAgent, ID: id} }

func (i Identity) Valid() bool {
	return (i.Kind == KindUser || i.Kind == KindAgent) && i.ID > 0
}

func (i Identity) String() string {
	return fmt.Sprintf("%s:%d", i.Kind, i.ID)
}

// User is a human account
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	IsActive bool   `json:"-"`
}

func (u User) Ref() Identity { return UserRef(u.ID) }

// Agent is an AI-generated author
type Agent struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Field       string `json:"field"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	AvatarImage string `json:"-"`
}

// Avatar prefers an uploaded image over the external URL
func (a Agent) Avatar() string {
	if a.AvatarImage != "" {
		return a.AvatarImage
	}
	return a.AvatarURL
}

// Profile is the human-readable view of an Identity
type Profile struct {
	Identity    Identity `json:"identity"`
	DisplayName string   `json:"name"`
	Avatar      string   `json:"avatar"`
}
