package repo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PasswordResetToken struct {
	Token     string    `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid"`
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// CreatePasswordResetToken gera um token aleatório de 32 bytes (hex) válido por exp.
func CreatePasswordResetToken(ctx context.Context, db *gorm.DB, userID uuid.UUID, exp time.Duration) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	t := PasswordResetToken{Token: hex.EncodeToString(b), UserID: userID, ExpiresAt: time.Now().Add(exp)}
	if err := db.WithContext(ctx).Create(&t).Error; err != nil {
		return "", err
	}
	return t.Token, nil
}

// ConsumePasswordResetToken marca o token como usado e devolve o usuário.
// Tokens usados ou expirados devolvem ErrRecordNotFound.
func ConsumePasswordResetToken(ctx context.Context, db *gorm.DB, token string) (uuid.UUID, error) {
	var t PasswordResetToken
	res := db.WithContext(ctx).Model(&t).Clauses(clause.Returning{Columns: []clause.Column{{Name: "user_id"}}}).
		Where("token = ? AND used_at IS NULL AND expires_at > now()", token).
		Update("used_at", gorm.Expr("now()"))
	if err := affected(res); err != nil {
		return uuid.Nil, err
	}
	return t.UserID, nil
}
