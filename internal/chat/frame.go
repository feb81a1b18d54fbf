package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

const (
	FrameMessage = "message"
	FrameTyping  = "typing"
	FrameRead    = "read"
	FrameError   = "error"
	FrameReady   = "ready"
)

// Inbound é o frame enviado pelo cliente. To vazio = sala da clínica.
type Inbound struct {
	Type      string `json:"type"`
	To        string `json:"to,omitempty"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// Message é a forma pública de repo.ChatMessage.
type Message struct {
	ID          uuid.UUID  `json:"id"`
	SenderID    uuid.UUID  `json:"sender_id"`
	RecipientID *uuid.UUID `json:"recipient_id,omitempty"`
	Content     string     `json:"content"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func MessageFrom(m repo.ChatMessage) Message {
	return Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}
}

// Outbound é o frame enviado pelo servidor.
type Outbound struct {
	Type      string     `json:"type"`
	Message   *Message   `json:"message,omitempty"`
	From      *uuid.UUID `json:"from,omitempty"`
	To        *uuid.UUID `json:"to,omitempty"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}
