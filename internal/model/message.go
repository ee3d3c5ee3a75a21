package model

import (
	"encoding/base64"
	"strings"
	"time"
)

// MessageType is the declared payload kind of a chat message
type MessageType string

const (
	MessageText        MessageType = "TEXT"
	MessageImageBase64 MessageType = "IMAGE_BASE64"

	// imageStorageCode is the legacy short code for base64 images
	imageStorageCode = "IMG64"
)

// ParseMessageType normalizes an inbound type string. An empty string is TEXT.
func ParseMessageType(s string) (MessageType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(MessageText):
		return MessageText, nil
	case string(MessageImageBase64), imageStorageCode:
		return MessageImageBase64, nil
	}
	return "", &ValidationError{Field: "type", Reason: "unsupported message type"}
}

// Message represents a persisted direct message
type Message struct {
	ID        int64       `json:"id"`
	Sender    Identity    `json:"sender"`
	Receiver  Identity    `json:"receiver"`
	Type      MessageType `json:"type"`
	Data      string      `json:"data"`
	IsRead    bool        `json:"is_read"`
	CreatedAt time.Time   `json:"created_at"`
}

// ValidatePayload checks that data is acceptable for the declared type
func ValidatePayload(t MessageType, data string) error {
	switch t {
	case MessageText:
		if strings.TrimSpace(data) == "" {
			return &ValidationError{Field: "data", Reason: "text is required for TEXT messages"}
		}
	case MessageImageBase64:
		encoded := stripDataURI(data)
		if strings.TrimSpace(encoded) == "" {
			return &ValidationError{Field: "data", Reason: "image data is required for IMAGE_BASE64 messages"}
		}
		if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
			return &ValidationError{Field: "data", Reason: "image data is not valid base64"}
		}
	default:
		return &ValidationError{Field: "type", Reason: "unsupported message type"}
	}
	return nil
}

// stripDataURI drops a leading "data:<mime>;base64," prefix if present.
func stripDataURI(data string) string {
	if !strings.HasPrefix(data, "data:") {
		return data
	}
	if i := strings.Index(data, ";base64,"); i >= 0 {
		return data[i+len(";base64,"):]
	}
	return data
}

// InboundFrame is the client→server WebSocket payload
type InboundFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ChatEvent is the server→room WebSocket payload
type ChatEvent struct {
	Type       string      `json:"type"`
	ID         int64       `json:"id"`
	Sender     string      `json:"sender"`
	ReceiverID int64       `json:"receiver_id"`
	MsgType    MessageType `json:"msg_type"`
	Data       string      `json:"data"`
	CreatedAt  string      `json:"created_at"`
}

// ChatEventType is the type tag of ChatEvent frames
const ChatEventType = "chat_message"

// ErrorEvent is sent only to the originating connection
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewChatEvent builds the broadcast frame for a persisted message
func NewChatEvent(m Message, senderName string) ChatEvent {
	return ChatEvent{
		Type:       ChatEventType,
		ID:         m.ID,
		Sender:     senderName,
		ReceiverID: m.Receiver.ID,
		MsgType:    m.Type,
		Data:       m.Data,
		CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Discussion summarizes one counterpart of a participant
type Discussion struct {
	Peer          Identity  `json:"peer"`
	Name          string    `json:"name"`
	Avatar        string    `json:"avatar"`
	LastMessageAt time.Time `json:"last_message_at"`
	Unread        int       `json:"unread"`
}
