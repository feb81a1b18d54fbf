package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatMessage: RecipientID nil é mensagem para a sala da clínica inteira.
type ChatMessage struct {
	Model
	ClinicID    uuid.UUID  `gorm:"type:uuid"`
	SenderID    uuid.UUID  `gorm:"type:uuid"`
	RecipientID *uuid.UUID `gorm:"type:uuid"`
	Content     string
	ReadAt      *time.Time
}

func CreateChatMessage(ctx context.Context, db *gorm.DB, m *ChatMessage) error {
	return db.WithContext(ctx).Create(m).Error
}

func ChatMessageByIDAndClinic(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) (*ChatMessage, error) {
	var m ChatMessage
	if err := db.WithContext(ctx).Scopes(byClinic(clinicID)).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ChatMessagesWith devolve a conversa entre userID e peerID (peerID nil = sala da clínica),
// mais recentes primeiro. before, quando informado, pagina para trás.
func ChatMessagesWith(ctx context.Context, db *gorm.DB, clinicID, userID uuid.UUID, peerID *uuid.UUID, before *time.Time, limit int) ([]ChatMessage, error) {
	q := db.WithContext(ctx).Scopes(byClinic(clinicID))
	if peerID == nil {
		q = q.Where("recipient_id IS NULL")
	} else {
		q = q.Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userID, *peerID, *peerID, userID)
	}
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}
	if limit <= 0 {
		limit = 50
	}
	var list []ChatMessage
	err := q.Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}

// MarkChatMessageRead só marca mensagens diretas cujo destinatário é userID.
func MarkChatMessageRead(ctx context.Context, db *gorm.DB, id, clinicID, userID uuid.UUID) error {
	return affected(db.WithContext(ctx).Model(&ChatMessage{}).Scopes(byClinic(clinicID)).
		Where("id = ? AND recipient_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", gorm.Expr("now()")))
}

// MarkConversationRead marca como lidas todas as mensagens de peerID para userID.
func MarkConversationRead(ctx context.Context, db *gorm.DB, clinicID, userID, peerID uuid.UUID) (int64, error) {
	res := db.WithContext(ctx).Model(&ChatMessage{}).Scopes(byClinic(clinicID)).
		Where("sender_id = ? AND recipient_id = ? AND read_at IS NULL", peerID, userID).
		Update("read_at", gorm.Expr("now()"))
	return res.RowsAffected, res.Error
}

type UnreadBySender struct {
	SenderID uuid.UUID
	N        int64
}

func UnreadChatCounts(ctx context.Context, db *gorm.DB, clinicID, userID uuid.UUID) ([]UnreadBySender, error) {
	var rows []UnreadBySender
	err := db.WithContext(ctx).Model(&ChatMessage{}).Select("sender_id, COUNT(*) AS n").
		Scopes(byClinic(clinicID)).Where("recipient_id = ? AND read_at IS NULL", userID).
		Group("sender_id").Scan(&rows).Error
	return rows, err
}

// Conversation resume a última mensagem trocada com cada colega.
type Conversation struct {
	PeerID      uuid.UUID
	PeerName    string
	LastContent string
	LastAt      time.Time
	Unread      int64
}

func ChatConversations(ctx context.Context, db *gorm.DB, clinicID, userID uuid.UUID) ([]Conversation, error) {
	var list []Conversation
	err := db.WithContext(ctx).Raw(`
		WITH direct AS (
			SELECT CASE WHEN m.sender_id = ? THEN m.recipient_id ELSE m.sender_id END AS peer_id,
			       m.content, m.created_at, m.sender_id, m.read_at
			FROM chat_messages m
			WHERE m.clinic_id = ? AND m.recipient_id IS NOT NULL
			  AND (m.sender_id = ? OR m.recipient_id = ?)
		), last AS (
			SELECT DISTINCT ON (peer_id) peer_id, content AS last_content, created_at AS last_at
			FROM direct ORDER BY peer_id, created_at DESC
		)
		SELECT l.peer_id, COALESCE(u.full_name, '') AS peer_name, l.last_content, l.last_at,
		       (SELECT COUNT(*) FROM direct d WHERE d.peer_id = l.peer_id AND d.sender_id = l.peer_id AND d.read_at IS NULL) AS unread
		FROM last l
		LEFT JOIN users u ON u.id = l.peer_id
		ORDER BY l.last_at DESC
	`, userID, clinicID, userID, userID).Scan(&list).Error
	return list, err
}

// UserInClinic confirma que o destinatário pertence à mesma clínica e está ativo.
func UserInClinic(ctx context.Context, db *gorm.DB, userID, clinicID uuid.UUID) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&User{}).Scopes(byClinic(clinicID)).
		Where("id = ? AND active = true", userID).Count(&n).Error
	return n > 0, err
}
