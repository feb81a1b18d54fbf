package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RecordKindEvolution    = "EVOLUTION"
	RecordKindPrescription = "PRESCRIPTION"
	RecordKindCertificate  = "CERTIFICATE"
	RecordKindNote         = "NOTE"
)

// RecordEntry é uma entrada do prontuário. Não há update nem delete: uma correção é
// uma nova entrada com AmendsID apontando para a original.
type RecordEntry struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ClinicID          uuid.UUID  `gorm:"type:uuid"`
	PatientID         uuid.UUID  `gorm:"type:uuid"`
	AppointmentID     *uuid.UUID `gorm:"type:uuid"`
	AmendsID          *uuid.UUID `gorm:"type:uuid"`
	AuthorID          uuid.UUID  `gorm:"type:uuid"`
	Kind              string
	ContentEncrypted  []byte
	ContentNonce      []byte
	ContentKeyVersion string
	EntryDate         time.Time
	CreatedAt         time.Time
}

func (RecordEntry) TableName() string { return "record_entries" }

func (e *RecordEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// RecordEntryView traz o nome do autor para exibição.
type RecordEntryView struct {
	RecordEntry
	AuthorName string
}

func RecordEntriesByPatient(ctx context.Context, db *gorm.DB, clinicID, patientID uuid.UUID, page Page) ([]RecordEntryView, int64, error) {
	q := db.WithContext(ctx).Table("record_entries e").
		Joins("LEFT JOIN users u ON u.id = e.author_id").
		Where("e.clinic_id = ? AND e.patient_id = ?", clinicID, patientID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []RecordEntryView
	err := page.apply(q.Select("e.*, COALESCE(u.full_name, '') AS author_name").
		Order("e.entry_date DESC, e.created_at DESC")).Scan(&list).Error
	return list, total, err
}

func RecordEntryByID(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) (*RecordEntry, error) {
	var e RecordEntry
	if err := db.WithContext(ctx).Scopes(byClinic(clinicID)).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func CreateRecordEntry(ctx context.Context, db *gorm.DB, e *RecordEntry) error {
	if e.EntryDate.IsZero() {
		e.EntryDate = time.Now()
	}
	return db.WithContext(ctx).Create(e).Error
}
