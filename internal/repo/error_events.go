package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrorEvent guarda erros reportados pelo frontend e 5xx do backend.
type ErrorEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	RequestID  *string
	Source     string     // FRONTEND|BACKEND
	Severity   string     // WARN|ERROR
	ClinicID   *uuid.UUID `gorm:"type:uuid"`
	ActorType  *string
	ActorID    *uuid.UUID `gorm:"type:uuid"`
	HTTPMethod *string    `gorm:"column:http_method"`
	Path       *string
	Status     *int
	Kind       string
	Message    string
	Stack      *string
	Metadata   datatypes.JSON
	CreatedAt  time.Time
}

func (e *ErrorEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func CreateErrorEvent(ctx context.Context, db *gorm.DB, ev *ErrorEvent) error {
	return db.WithContext(ctx).Create(ev).Error
}

func ListErrorEvents(ctx context.Context, db *gorm.DB, source string, page Page) ([]ErrorEvent, int64, error) {
	q := db.WithContext(ctx).Model(&ErrorEvent{})
	if source != "" {
		q = q.Where("source = ?", source)
	}
	var list []ErrorEvent
	total, err := countAndFind(q, page, "created_at DESC", &list)
	return list, total, err
}
