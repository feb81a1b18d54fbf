package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ExamRequested = "REQUESTED"
	ExamScheduled = "SCHEDULED"
	ExamCompleted = "COMPLETED"
	ExamCancelled = "CANCELLED"
)

// ErrExamResultRequired: concluir um exame exige o texto do resultado.
var ErrExamResultRequired = errors.New("exam result required")

var examTransitions = map[string][]string{
	ExamRequested: {ExamScheduled, ExamCompleted, ExamCancelled},
	ExamScheduled: {ExamCompleted, ExamCancelled},
}

func CanTransitionExam(from, to string) bool {
	for _, s := range examTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Exam struct {
	Model
	ClinicID       uuid.UUID  `gorm:"type:uuid"`
	PatientID      uuid.UUID  `gorm:"type:uuid"`
	ProfessionalID *uuid.UUID `gorm:"type:uuid"`
	Name           string
	Type           *string
	Status         string
	RequestedAt    time.Time
	ScheduledFor   *time.Time
	Result         *string
	ResultAt       *time.Time
	Notes          *string
}

type ExamFilter struct {
	PatientID *uuid.UUID
	Status    string
}

func ListExams(ctx context.Context, db *gorm.DB, clinicID uuid.UUID, f ExamFilter, page Page) ([]Exam, int64, error) {
	q := db.WithContext(ctx).Model(&Exam{}).Scopes(byClinic(clinicID))
	if f.PatientID != nil {
		q = q.Where("patient_id = ?", *f.PatientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var list []Exam
	total, err := countAndFind(q, page, "requested_at DESC", &list)
	return list, total, err
}

func ExamByIDAndClinic(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) (*Exam, error) {
	var e Exam
	if err := db.WithContext(ctx).Scopes(byClinic(clinicID)).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func CreateExam(ctx context.Context, db *gorm.DB, e *Exam) error {
	if e.Status == "" {
		e.Status = ExamRequested
		if e.ScheduledFor != nil {
			e.Status = ExamScheduled
		}
	}
	if e.RequestedAt.IsZero() {
		e.RequestedAt = time.Now()
	}
	return db.WithContext(ctx).Create(e).Error
}

type ExamUpdate struct {
	Name         string
	Type         *string
	ScheduledFor *time.Time
	Notes        *string
}

func UpdateExam(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID, u ExamUpdate) error {
	return affected(db.WithContext(ctx).Model(&Exam{}).Scopes(byClinic(clinicID)).Where("id = ?", id).Updates(map[string]interface{}{
		"name": u.Name, "type": u.Type, "scheduled_for": u.ScheduledFor, "notes": u.Notes,
	}))
}

// SetExamStatus aplica a transição. Para COMPLETED, result é obrigatório e result_at é gravado.
func SetExamStatus(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID, to string, scheduledFor *time.Time, result *string) (*Exam, error) {
	if to == ExamCompleted && (result == nil || strings.TrimSpace(*result) == "") {
		return nil, ErrExamResultRequired
	}
	var out Exam
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Scopes(byClinic(clinicID)).First(&out, "id = ?", id).Error; err != nil {
			return err
		}
		if !CanTransitionExam(out.Status, to) {
			return ErrInvalidTransition
		}
		updates := map[string]interface{}{"status": to}
		switch to {
		case ExamScheduled:
			if scheduledFor != nil {
				updates["scheduled_for"] = *scheduledFor
				out.ScheduledFor = scheduledFor
			}
		case ExamCompleted:
			now := time.Now()
			updates["result"] = *result
			updates["result_at"] = now
			out.Result, out.ResultAt = result, &now
		}
		out.Status = to
		return tx.Model(&out).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func CountPendingExams(ctx context.Context, db *gorm.DB, clinicID uuid.UUID) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&Exam{}).Scopes(byClinic(clinicID)).
		Where("status IN ?", []string{ExamRequested, ExamScheduled}).Count(&n).Error
	return n, err
}
