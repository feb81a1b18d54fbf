package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Patient struct {
	Model
	ClinicID      uuid.UUID `gorm:"type:uuid"`
	FullName      string
	BirthDate     *time.Time `gorm:"type:date"`
	Email         *string
	Phone         *string
	Notes         *string
	AddressID     *uuid.UUID `gorm:"type:uuid"`
	CPFEncrypted  []byte
	CPFNonce      []byte
	CPFKeyVersion *string
	CPFHash       *string
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

type PatientFilter struct {
	Search string
}

// PatientsByClinic devolve uma página de pacientes da clínica ordenada por nome, com o total.
func PatientsByClinic(ctx context.Context, db *gorm.DB, clinicID uuid.UUID, f PatientFilter, page Page) ([]Patient, int64, error) {
	q := db.WithContext(ctx).Model(&Patient{}).Scopes(byClinic(clinicID))
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("full_name ILIKE ?", "%"+s+"%")
	}
	var list []Patient
	total, err := countAndFind(q, page, "full_name", &list)
	return list, total, err
}

func PatientsCountByClinic(ctx context.Context, db *gorm.DB, clinicID uuid.UUID) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&Patient{}).Scopes(byClinic(clinicID)).Count(&n).Error
	return n, err
}

func PatientByIDAndClinic(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) (*Patient, error) {
	var p Patient
	if err := db.WithContext(ctx).Scopes(byClinic(clinicID)).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func CreatePatient(ctx context.Context, db *gorm.DB, p *Patient) error {
	return db.WithContext(ctx).Create(p).Error
}

type PatientUpdate struct {
	FullName  string
	BirthDate *time.Time
	Email     *string
	Phone     *string
	Notes     *string
	AddressID *uuid.UUID
}

func UpdatePatient(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID, u PatientUpdate) error {
	return affected(db.WithContext(ctx).Model(&Patient{}).Scopes(byClinic(clinicID)).Where("id = ?", id).Updates(map[string]interface{}{
		"full_name": u.FullName, "birth_date": u.BirthDate, "email": u.Email, "phone": u.Phone,
		"notes": u.Notes, "address_id": u.AddressID,
	}))
}

// SetPatientCPF grava (ou limpa, com nil) o CPF cifrado. O índice único (clinic_id, cpf_hash)
// devolve 23505 quando outro paciente da clínica já usa o CPF.
func SetPatientCPF(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID, cpf *EncryptedCPF) error {
	return affected(db.WithContext(ctx).Model(&Patient{}).Scopes(byClinic(clinicID)).Where("id = ?", id).Updates(cpf.columns()))
}

// PatientCPFTaken indica se outro paciente ativo da clínica já tem o hash informado.
func PatientCPFTaken(ctx context.Context, db *gorm.DB, clinicID uuid.UUID, hash string, exceptID *uuid.UUID) (bool, error) {
	q := db.WithContext(ctx).Model(&Patient{}).Scopes(byClinic(clinicID)).Where("cpf_hash = ?", hash)
	if exceptID != nil {
		q = q.Where("id <> ?", *exceptID)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

func SoftDeletePatient(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) error {
	return affected(db.WithContext(ctx).Scopes(byClinic(clinicID)).Where("id = ?", id).Delete(&Patient{}))
}
