package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Professional struct {
	Model
	ClinicID      uuid.UUID `gorm:"type:uuid"`
	FullName      string
	Specialty     *string
	Council       *string // CRM, CRP, CRO...
	CouncilNumber *string
	Email         *string
	Phone         *string
	CPFEncrypted  []byte
	CPFNonce      []byte
	CPFKeyVersion *string
	CPFHash       *string
	Active        bool
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

type ProfessionalFilter struct {
	Search     string
	OnlyActive bool
}

func ProfessionalsByClinic(ctx context.Context, db *gorm.DB, clinicID uuid.UUID, f ProfessionalFilter, page Page) ([]Professional, int64, error) {
	q := db.WithContext(ctx).Model(&Professional{}).Scopes(byClinic(clinicID))
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("full_name ILIKE ?", "%"+s+"%")
	}
	if f.OnlyActive {
		q = q.Where("active = true")
	}
	var list []Professional
	total, err := countAndFind(q, page, "full_name", &list)
	return list, total, err
}

func ProfessionalByIDAndClinic(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) (*Professional, error) {
	var p Professional
	if err := db.WithContext(ctx).Scopes(byClinic(clinicID)).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func CreateProfessional(ctx context.Context, db *gorm.DB, p *Professional) error {
	p.Active = true
	return db.WithContext(ctx).Create(p).Error
}

type ProfessionalUpdate struct {
	FullName      string
	Specialty     *string
	Council       *string
	CouncilNumber *string
	Email         *string
	Phone         *string
	Active        bool
}

func UpdateProfessional(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID, u ProfessionalUpdate) error {
	return affected(db.WithContext(ctx).Model(&Professional{}).Scopes(byClinic(clinicID)).Where("id = ?", id).Updates(map[string]interface{}{
		"full_name": u.FullName, "specialty": u.Specialty, "council": u.Council, "council_number": u.CouncilNumber,
		"email": u.Email, "phone": u.Phone, "active": u.Active,
	}))
}

func SetProfessionalCPF(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID, cpf *EncryptedCPF) error {
	return affected(db.WithContext(ctx).Model(&Professional{}).Scopes(byClinic(clinicID)).Where("id = ?", id).Updates(cpf.columns()))
}

func SoftDeleteProfessional(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) error {
	return affected(db.WithContext(ctx).Scopes(byClinic(clinicID)).Where("id = ?", id).Delete(&Professional{}))
}
