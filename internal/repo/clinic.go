package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Clinic is the tenant row. BlockLevel is the computed billing level (nivelBloqueio);
// BlockLevelOverride, when set by a super admin, wins over the computed one.
type Clinic struct {
	Model
	Name                string
	CNPJ                *string `gorm:"column:cnpj"`
	Email               *string
	Phone               *string
	AddressID           *uuid.UUID `gorm:"type:uuid"`
	Active              bool
	BlockLevel          string
	BlockLevelOverride  *string
	BlockLevelUpdatedAt *time.Time
}

// EffectiveBlockLevel devolve o override manual quando presente.
func (c *Clinic) EffectiveBlockLevel() string {
	if c.BlockLevelOverride != nil && *c.BlockLevelOverride != "" {
		return *c.BlockLevelOverride
	}
	if c.BlockLevel == "" {
		return "NONE"
	}
	return c.BlockLevel
}

type ClinicFilter struct {
	Search string
	Active *bool
}

func ClinicByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Clinic, error) {
	var c Clinic
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func ListClinics(ctx context.Context, db *gorm.DB, f ClinicFilter, page Page) ([]Clinic, int64, error) {
	q := db.WithContext(ctx).Model(&Clinic{})
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("name ILIKE ?", "%"+s+"%")
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	var list []Clinic
	total, err := countAndFind(q, page, "name", &list)
	return list, total, err
}

func CreateClinic(ctx context.Context, db *gorm.DB, c *Clinic) error {
	c.Active = true
	if c.BlockLevel == "" {
		c.BlockLevel = "NONE"
	}
	return db.WithContext(ctx).Create(c).Error
}

type ClinicUpdate struct {
	Name      string
	CNPJ      *string
	Email     *string
	Phone     *string
	AddressID *uuid.UUID
}

func UpdateClinic(ctx context.Context, db *gorm.DB, id uuid.UUID, u ClinicUpdate) error {
	return affected(db.WithContext(ctx).Model(&Clinic{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name": u.Name, "cnpj": u.CNPJ, "email": u.Email, "phone": u.Phone, "address_id": u.AddressID,
		"updated_at": gorm.Expr("now()"),
	}))
}

func SetClinicActive(ctx context.Context, db *gorm.DB, id uuid.UUID, active bool) error {
	return affected(db.WithContext(ctx).Model(&Clinic{}).Where("id = ?", id).
		Updates(map[string]interface{}{"active": active, "updated_at": gorm.Expr("now()")}))
}

// SetClinicBlockLevel grava o nível calculado pelo sweep de faturamento.
func SetClinicBlockLevel(ctx context.Context, db *gorm.DB, id uuid.UUID, level string) error {
	return affected(db.WithContext(ctx).Model(&Clinic{}).Where("id = ?", id).Updates(map[string]interface{}{
		"block_level": level, "block_level_updated_at": gorm.Expr("now()"), "updated_at": gorm.Expr("now()"),
	}))
}

// SetClinicBlockOverride define (ou limpa, com nil) o nível manual.
func SetClinicBlockOverride(ctx context.Context, db *gorm.DB, id uuid.UUID, level *string) error {
	return affected(db.WithContext(ctx).Model(&Clinic{}).Where("id = ?", id).Updates(map[string]interface{}{
		"block_level_override": level, "updated_at": gorm.Expr("now()"),
	}))
}

// ActiveClinics lists every active tenant; used by the billing sweep.
func ActiveClinics(ctx context.Context, db *gorm.DB) ([]Clinic, error) {
	var list []Clinic
	err := db.WithContext(ctx).Where("active = true").Order("name").Find(&list).Error
	return list, err
}
