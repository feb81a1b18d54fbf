package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActorUser   = "USER"
	ActorSystem = "SYSTEM"
)

type AuditEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Action       string
	ActorType    string     // role do usuário ou SYSTEM
	ActorID      *uuid.UUID `gorm:"type:uuid"`
	ClinicID     *uuid.UUID `gorm:"type:uuid"`
	RequestID    *string
	IP           *string `gorm:"column:ip"`
	UserAgent    *string
	ResourceType *string
	ResourceID   *uuid.UUID `gorm:"type:uuid"`
	PatientID    *uuid.UUID `gorm:"type:uuid"`
	Severity     string
	Metadata     datatypes.JSON
	CreatedAt    time.Time
}

func (e *AuditEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Severity == "" {
		e.Severity = "INFO"
	}
	return nil
}

// JSONMetadata serializa v para a coluna metadata; nil vira NULL.
func JSONMetadata(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func CreateAuditEvent(ctx context.Context, db *gorm.DB, ev *AuditEvent) error {
	return db.WithContext(ctx).Create(ev).Error
}

type AuditFilter struct {
	ClinicID *uuid.UUID
	Action   string
	ActorID  *uuid.UUID
	From     *time.Time
	To       *time.Time
}

func ListAuditEvents(ctx context.Context, db *gorm.DB, f AuditFilter, page Page) ([]AuditEvent, int64, error) {
	q := db.WithContext(ctx).Model(&AuditEvent{})
	if f.ClinicID != nil {
		q = q.Where("clinic_id = ?", *f.ClinicID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.ActorID != nil {
		q = q.Where("actor_id = ?", *f.ActorID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	var list []AuditEvent
	total, err := countAndFind(q, page, "created_at DESC", &list)
	return list, total, err
}

// AccessLog registra cada leitura ou escrita de prontuário.
type AccessLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClinicID     uuid.UUID `gorm:"type:uuid"`
	ActorType    string
	ActorID      uuid.UUID `gorm:"type:uuid"`
	Action       string    // READ|WRITE
	ResourceType string
	ResourceID   *uuid.UUID `gorm:"type:uuid"`
	PatientID    *uuid.UUID `gorm:"type:uuid"`
	IP           *string    `gorm:"column:ip"`
	UserAgent    *string
	RequestID    *string
	CreatedAt    time.Time
}

func (a *AccessLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func CreateAccessLog(ctx context.Context, db *gorm.DB, l *AccessLog) error {
	return db.WithContext(ctx).Create(l).Error
}

func AccessLogsByPatient(ctx context.Context, db *gorm.DB, clinicID, patientID uuid.UUID, page Page) ([]AccessLog, int64, error) {
	q := db.WithContext(ctx).Model(&AccessLog{}).Scopes(byClinic(clinicID)).Where("patient_id = ?", patientID)
	var list []AccessLog
	total, err := countAndFind(q, page, "created_at DESC", &list)
	return list, total, err
}
