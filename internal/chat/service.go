package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const MaxContentLen = 4000

var (
	ErrEmptyContent      = errors.New("content required")
	ErrContentTooLong    = errors.New("content too long")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSelfMessage       = errors.New("cannot message yourself")
	ErrUnknownFrame      = errors.New("unknown frame type")
)

// Store é a persistência usada pelo Service.
type Store interface {
	CreateMessage(ctx context.Context, m *repo.ChatMessage) error
	MessageByID(ctx context.Context, id, clinicID uuid.UUID) (*repo.ChatMessage, error)
	MarkRead(ctx context.Context, id, clinicID, userID uuid.UUID) error
	UserInClinic(ctx context.Context, userID, clinicID uuid.UUID) (bool, error)
}

type GormStore struct {
	DB *gorm.DB
}

func (s GormStore) CreateMessage(ctx context.Context, m *repo.ChatMessage) error {
	return repo.CreateChatMessage(ctx, s.DB, m)
}

func (s GormStore) MessageByID(ctx context.Context, id, clinicID uuid.UUID) (*repo.ChatMessage, error) {
	return repo.ChatMessageByIDAndClinic(ctx, s.DB, id, clinicID)
}

func (s GormStore) MarkRead(ctx context.Context, id, clinicID, userID uuid.UUID) error {
	return repo.MarkChatMessageRead(ctx, s.DB, id, clinicID, userID)
}

func (s GormStore) UserInClinic(ctx context.Context, userID, clinicID uuid.UUID) (bool, error) {
	return repo.UserInClinic(ctx, s.DB, userID, clinicID)
}

// Service grava e distribui mensagens. É usado tanto pelo socket quanto pela API REST.
type Service struct {
	Store Store
	Hub   *Hub
	Log   zerolog.Logger
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) checkRecipient(ctx context.Context, tenantID, senderID uuid.UUID, to *uuid.UUID) error {
	if to == nil {
		return nil
	}
	if *to == senderID {
		return ErrSelfMessage
	}
	ok, err := s.Store.UserInClinic(ctx, *to, tenantID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRecipientNotFound
	}
	return nil
}

// Send valida, grava e só então distribui a mensagem: para o destinatário e de volta
// para as conexões do remetente, ou para a sala da clínica quando to é nil.
func (s *Service) Send(ctx context.Context, tenantID, senderID uuid.UUID, to *uuid.UUID, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return Message{}, ErrContentTooLong
	}
	if err := s.checkRecipient(ctx, tenantID, senderID, to); err != nil {
		return Message{}, err
	}
	m := &repo.ChatMessage{ClinicID: tenantID, SenderID: senderID, RecipientID: to, Content: content}
	if err := s.Store.CreateMessage(ctx, m); err != nil {
		return Message{}, err
	}
	out := MessageFrom(*m)
	frame := Outbound{Type: FrameMessage, Message: &out}
	if to == nil {
		s.Hub.Broadcast(TenantRoom(tenantID), frame)
	} else {
		s.Hub.Broadcast(UserRoom(*to), frame)
		s.Hub.Broadcast(UserRoom(senderID), frame)
	}
	return out, nil
}

// Typing avisa o destinatário (ou a clínica) que o usuário está digitando. Nada é gravado.
func (s *Service) Typing(ctx context.Context, tenantID, senderID uuid.UUID, to *uuid.UUID) error {
	if err := s.checkRecipient(ctx, tenantID, senderID, to); err != nil {
		return err
	}
	from := senderID
	frame := Outbound{Type: FrameTyping, From: &from, To: to}
	if to == nil {
		s.Hub.Broadcast(TenantRoom(tenantID), frame)
	} else {
		s.Hub.Broadcast(UserRoom(*to), frame)
	}
	return nil
}

// MarkRead marca a mensagem como lida pelo destinatário e envia o recibo ao remetente.
func (s *Service) MarkRead(ctx context.Context, tenantID, userID, messageID uuid.UUID) error {
	if err := s.Store.MarkRead(ctx, messageID, tenantID, userID); err != nil {
		return err
	}
	m, err := s.Store.MessageByID(ctx, messageID, tenantID)
	if err != nil {
		return err
	}
	at := s.now()
	if m.ReadAt != nil {
		at = *m.ReadAt
	}
	id, reader := messageID, userID
	frame := Outbound{Type: FrameRead, MessageID: &id, From: &reader, ReadAt: &at}
	s.Hub.Broadcast(UserRoom(m.SenderID), frame)
	s.Hub.Broadcast(UserRoom(userID), frame)
	return nil
}

// Handle despacha um frame recebido pelo socket.
func (s *Service) Handle(ctx context.Context, c *Client, in Inbound) error {
	var to *uuid.UUID
	if strings.TrimSpace(in.To) != "" {
		id, err := uuid.Parse(strings.TrimSpace(in.To))
		if err != nil {
			return ErrRecipientNotFound
		}
		to = &id
	}
	switch in.Type {
	case FrameMessage:
		_, err := s.Send(ctx, c.TenantID, c.UserID, to, in.Content)
		return err
	case FrameTyping:
		return s.Typing(ctx, c.TenantID, c.UserID, to)
	case FrameRead:
		id, err := uuid.Parse(strings.TrimSpace(in.MessageID))
		if err != nil {
			return repo.ErrNotFound
		}
		return s.MarkRead(ctx, c.TenantID, c.UserID, id)
	default:
		return ErrUnknownFrame
	}
}
