package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseMessageType(t *testing.T) {
	cases := map[string]MessageType{
		"":             MessageText,
		"TEXT":         MessageText,
		"text":         MessageText,
		"IMAGE_BASE64": MessageImageBase64,
		"IMG64":        MessageImageBase64,
	}
	for in, want := range cases {
		got, err := ParseMessageType(in)
		if err != nil {
			t.Errorf("ParseMessageType(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMessageType(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseMessageType("VIDEO"); !IsValidation(err) {
		t.Errorf("Expected validation error for VIDEO, got %v", err)
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		typ     MessageType
		data    string
		wantErr bool
	}{
		{"text ok", MessageText, "hi", false},
		{"text empty", MessageText, "", true},
		{"text whitespace", MessageText, "  \n", true},
		{"image ok", MessageImageBase64, "aGVsbG8=", false},
		{"image data uri", MessageImageBase64, "data:image/png;base64,aGVsbG8=", false},
		{"image empty", MessageImageBase64, "", true},
		{"image empty data uri", MessageImageBase64, "data:image/png;base64,", true},
		{"image not base64", MessageImageBase64, "not base64!", true},
		{"unknown type", MessageType("AUDIO"), "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.typ, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("Expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestNewChatEvent(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)
	m := Message{
		ID:        42,
		Sender:    UserRef(5),
		Receiver:  UserRef(9),
		Type:      MessageText,
		Data:      "hi",
		CreatedAt: created,
	}

	ev := NewChatEvent(m, "alice")
	if ev.Type != "chat_message" {
		t.Errorf("Expected type chat_message, got %s", ev.Type)
	}
	if ev.ID != 42 || ev.ReceiverID != 9 || ev.Sender != "alice" || ev.Data != "hi" {
		t.Errorf("Unexpected event: %+v", ev)
	}
	if ev.CreatedAt != "2026-01-02T03:04:05.000006Z" {
		t.Errorf("Unexpected created_at %s", ev.CreatedAt)
	}
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	base := errors.New("disk full")
	err := error(&PersistenceError{Op: "insert message", Err: base})
	if !errors.Is(err, base) {
		t.Error("PersistenceError should unwrap to its cause")
	}
}

func TestIdentity(t *testing.T) {
	if !UserRef(1).Valid() || !AgentRef(2).Valid() {
		t.Error("Expected valid identities")
	}
	if (Identity{Kind: KindUser}).Valid() || (Identity{Kind: "bot", ID: 1}).Valid() {
		t.Error("Expected invalid identities")
	}
	if k, err := ParseKind("Agent"); err != nil || k != KindAgent {
		t.Errorf("ParseKind(Agent) = %s, %v", k, err)
	}
	if _, err := ParseKind("page"); err == nil {
		t.Error("Expected error for unknown kind")
	}
}
