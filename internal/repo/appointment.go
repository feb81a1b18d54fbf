package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	AppointmentScheduled = "SCHEDULED"
	AppointmentConfirmed = "CONFIRMED"
	AppointmentCompleted = "COMPLETED"
	AppointmentCancelled = "CANCELLED"
	AppointmentNoShow    = "NO_SHOW"
)

// ErrAppointmentConflict: o profissional já tem consulta não cancelada sobrepondo o intervalo.
var ErrAppointmentConflict = errors.New("appointment conflict")

// ErrInvalidTransition: mudança de status não permitida pela máquina de estados.
var ErrInvalidTransition = errors.New("invalid status transition")

var appointmentTransitions = map[string][]string{
	AppointmentScheduled: {AppointmentConfirmed, AppointmentCancelled, AppointmentNoShow},
	AppointmentConfirmed: {AppointmentCompleted, AppointmentCancelled, AppointmentNoShow},
}

// CanTransitionAppointment reports whether an appointment may go from one status to another.
// COMPLETED, CANCELLED and NO_SHOW are terminal.
func CanTransitionAppointment(from, to string) bool {
	for _, s := range appointmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsAppointmentStatus(s string) bool {
	switch s {
	case AppointmentScheduled, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

// IsAppointmentOpen: status que ainda ocupa a agenda e pode ser remarcado.
func IsAppointmentOpen(s string) bool {
	return s == AppointmentScheduled || s == AppointmentConfirmed
}

type Appointment struct {
	Model
	ClinicID       uuid.UUID `gorm:"type:uuid"`
	ProfessionalID uuid.UUID `gorm:"type:uuid"`
	PatientID      uuid.UUID `gorm:"type:uuid"`
	StartsAt       time.Time
	EndsAt         time.Time
	Status         string
	Notes          *string
	CancelReason   *string
	ReminderSentAt *time.Time
}

// AppointmentView acrescenta os nomes para a agenda.
type AppointmentView struct {
	Appointment
	PatientName      string
	ProfessionalName string
}

const appointmentViewColumns = "a.*, COALESCE(p.full_name, '') AS patient_name, COALESCE(pr.full_name, '') AS professional_name"

type AppointmentFilter struct {
	From           *time.Time
	To             *time.Time
	ProfessionalID *uuid.UUID
	PatientID      *uuid.UUID
	Status         string
}

func ListAppointments(ctx context.Context, db *gorm.DB, clinicID uuid.UUID, f AppointmentFilter, page Page) ([]AppointmentView, int64, error) {
	q := db.WithContext(ctx).Table("appointments a").
		Joins("LEFT JOIN patients p ON p.id = a.patient_id").
		Joins("LEFT JOIN professionals pr ON pr.id = a.professional_id").
		Where("a.clinic_id = ?", clinicID)
	if f.From != nil {
		q = q.Where("a.starts_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("a.starts_at < ?", *f.To)
	}
	if f.ProfessionalID != nil {
		q = q.Where("a.professional_id = ?", *f.ProfessionalID)
	}
	if f.PatientID != nil {
		q = q.Where("a.patient_id = ?", *f.PatientID)
	}
	if f.Status != "" {
		q = q.Where("a.status = ?", f.Status)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []AppointmentView
	err := page.apply(q.Select(appointmentViewColumns).Order("a.starts_at")).Scan(&list).Error
	return list, total, err
}

func AppointmentByIDAndClinic(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) (*Appointment, error) {
	var a Appointment
	if err := db.WithContext(ctx).Scopes(byClinic(clinicID)).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// hasOverlap considera [start, end) e ignora canceladas e faltas.
func hasOverlap(tx *gorm.DB, clinicID, professionalID uuid.UUID, start, end time.Time, exceptID *uuid.UUID) (bool, error) {
	q := tx.Model(&Appointment{}).
		Where("clinic_id = ? AND professional_id = ?", clinicID, professionalID).
		Where("status NOT IN ?", []string{AppointmentCancelled, AppointmentNoShow}).
		Where("starts_at < ? AND ends_at > ?", end, start)
	if exceptID != nil {
		q = q.Where("id <> ?", *exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// lockProfessional serializa marcações concorrentes do mesmo profissional.
func lockProfessional(tx *gorm.DB, clinicID, professionalID uuid.UUID) error {
	var p Professional
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Scopes(byClinic(clinicID)).
		Select("id").First(&p, "id = ?", professionalID).Error
}

// CreateAppointment grava a consulta se o profissional estiver livre no intervalo.
func CreateAppointment(ctx context.Context, db *gorm.DB, a *Appointment) error {
	if a.Status == "" {
		a.Status = AppointmentScheduled
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProfessional(tx, a.ClinicID, a.ProfessionalID); err != nil {
			return err
		}
		busy, err := hasOverlap(tx, a.ClinicID, a.ProfessionalID, a.StartsAt, a.EndsAt, nil)
		if err != nil {
			return err
		}
		if busy {
			return ErrAppointmentConflict
		}
		return tx.Create(a).Error
	})
}

// RescheduleAppointment muda o horário de uma consulta aberta, revalidando conflito.
func RescheduleAppointment(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID, start, end time.Time) (*Appointment, error) {
	var out Appointment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Scopes(byClinic(clinicID)).First(&out, "id = ?", id).Error; err != nil {
			return err
		}
		if !IsAppointmentOpen(out.Status) {
			return ErrInvalidTransition
		}
		if err := lockProfessional(tx, clinicID, out.ProfessionalID); err != nil {
			return err
		}
		busy, err := hasOverlap(tx, clinicID, out.ProfessionalID, start, end, &id)
		if err != nil {
			return err
		}
		if busy {
			return ErrAppointmentConflict
		}
		out.StartsAt, out.EndsAt = start, end
		return tx.Model(&out).Updates(map[string]interface{}{"starts_at": start, "ends_at": end, "reminder_sent_at": nil}).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetAppointmentStatus aplica a transição; reason só é gravado em cancelamentos.
func SetAppointmentStatus(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID, to string, reason *string) (*Appointment, error) {
	var out Appointment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Scopes(byClinic(clinicID)).First(&out, "id = ?", id).Error; err != nil {
			return err
		}
		if !CanTransitionAppointment(out.Status, to) {
			return ErrInvalidTransition
		}
		updates := map[string]interface{}{"status": to}
		if to == AppointmentCancelled {
			updates["cancel_reason"] = reason
		}
		out.Status = to
		return tx.Model(&out).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func UpdateAppointmentNotes(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID, notes *string) error {
	return affected(db.WithContext(ctx).Model(&Appointment{}).Scopes(byClinic(clinicID)).Where("id = ?", id).Update("notes", notes))
}

// CountAppointmentsByStatus agrupa por status as consultas que começam em [from, to).
func CountAppointmentsByStatus(ctx context.Context, db *gorm.DB, clinicID uuid.UUID, from, to time.Time) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).Model(&Appointment{}).Select("status, COUNT(*) AS n").
		Scopes(byClinic(clinicID)).Where("starts_at >= ? AND starts_at < ?", from, to).
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

type AppointmentReminderRow struct {
	AppointmentID uuid.UUID
	ClinicID      uuid.UUID
	PatientID     uuid.UUID
	PatientName   string
	PatientPhone  string
	ClinicName    string
	StartsAt      time.Time
}

// ListAppointmentsForReminder devolve consultas abertas em [from, to) cujo paciente tem telefone
// e que ainda não receberam lembrete. Clínicas inativas ficam de fora.
func ListAppointmentsForReminder(ctx context.Context, db *gorm.DB, from, to time.Time) ([]AppointmentReminderRow, error) {
	var list []AppointmentReminderRow
	err := db.WithContext(ctx).Raw(`
		SELECT a.id AS appointment_id, a.clinic_id, p.id AS patient_id, COALESCE(p.full_name, '') AS patient_name,
		       TRIM(p.phone) AS patient_phone, c.name AS clinic_name, a.starts_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id AND p.deleted_at IS NULL
		JOIN clinics c ON c.id = a.clinic_id AND c.active = true
		WHERE a.starts_at >= ? AND a.starts_at < ?
		  AND a.status IN (?, ?)
		  AND a.reminder_sent_at IS NULL
		  AND p.phone IS NOT NULL AND TRIM(p.phone) <> ''
		ORDER BY a.starts_at
	`, from, to, AppointmentScheduled, AppointmentConfirmed).Scan(&list).Error
	return list, err
}

func MarkReminderSent(ctx context.Context, db *gorm.DB, appointmentID uuid.UUID) error {
	return db.WithContext(ctx).Model(&Appointment{}).Where("id = ?", appointmentID).
		Update("reminder_sent_at", gorm.Expr("now()")).Error
}
