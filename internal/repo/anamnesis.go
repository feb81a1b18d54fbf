package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Anamnesis é a ficha de anamnese; Answers guarda perguntas livres do formulário da clínica.
type Anamnesis struct {
	Model
	ClinicID       uuid.UUID  `gorm:"type:uuid"`
	PatientID      uuid.UUID  `gorm:"type:uuid"`
	AppointmentID  *uuid.UUID `gorm:"type:uuid"`
	ProfessionalID *uuid.UUID `gorm:"type:uuid"`
	ChiefComplaint string
	PresentIllness *string
	PastHistory    *string
	FamilyHistory  *string
	Allergies      *string
	Medications    *string
	Habits         *string
	Answers        datatypes.JSON
}

func (Anamnesis) TableName() string { return "anamneses" }

func AnamnesesByPatient(ctx context.Context, db *gorm.DB, clinicID, patientID uuid.UUID, page Page) ([]Anamnesis, int64, error) {
	q := db.WithContext(ctx).Model(&Anamnesis{}).Scopes(byClinic(clinicID)).Where("patient_id = ?", patientID)
	var list []Anamnesis
	total, err := countAndFind(q, page, "created_at DESC", &list)
	return list, total, err
}

func AnamnesisByIDAndClinic(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) (*Anamnesis, error) {
	var a Anamnesis
	if err := db.WithContext(ctx).Scopes(byClinic(clinicID)).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func CreateAnamnesis(ctx context.Context, db *gorm.DB, a *Anamnesis) error {
	if len(a.Answers) == 0 {
		a.Answers = datatypes.JSON("{}")
	}
	return db.WithContext(ctx).Create(a).Error
}

func UpdateAnamnesis(ctx context.Context, db *gorm.DB, a *Anamnesis) error {
	if len(a.Answers) == 0 {
		a.Answers = datatypes.JSON("{}")
	}
	return affected(db.WithContext(ctx).Model(&Anamnesis{}).Scopes(byClinic(a.ClinicID)).Where("id = ?", a.ID).Updates(map[string]interface{}{
		"appointment_id": a.AppointmentID, "chief_complaint": a.ChiefComplaint, "present_illness": a.PresentIllness,
		"past_history": a.PastHistory, "family_history": a.FamilyHistory, "allergies": a.Allergies,
		"medications": a.Medications, "habits": a.Habits, "answers": a.Answers,
	}))
}

func DeleteAnamnesis(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) error {
	return affected(db.WithContext(ctx).Scopes(byClinic(clinicID)).Where("id = ?", id).Delete(&Anamnesis{}))
}
