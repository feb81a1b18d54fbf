package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Address is shared by clinics and patients (address_id FK).
type Address struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Zip          string
	Street       string
	Number       *string
	Complement   *string
	Neighborhood string
	City         string
	State        string
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func CreateAddress(ctx context.Context, db *gorm.DB, a *Address) (uuid.UUID, error) {
	err := db.WithContext(ctx).Create(a).Error
	return a.ID, err
}

func GetAddressByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Address, error) {
	var a Address
	if err := db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAddress atualiza o endereço existente (id != nil) ou cria um novo, devolvendo o id final.
func UpsertAddress(ctx context.Context, db *gorm.DB, id *uuid.UUID, a *Address) (uuid.UUID, error) {
	if id == nil {
		return CreateAddress(ctx, db, a)
	}
	res := db.WithContext(ctx).Model(&Address{}).Where("id = ?", *id).Updates(map[string]interface{}{
		"zip": a.Zip, "street": a.Street, "number": a.Number, "complement": a.Complement,
		"neighborhood": a.Neighborhood, "city": a.City, "state": a.State,
	})
	if err := affected(res); err != nil {
		if IsNotFound(err) {
			return CreateAddress(ctx, db, a)
		}
		return uuid.Nil, err
	}
	return *id, nil
}

// CleanupOrphanAddresses remove endereços que não são referenciados por clinics ou patients.
func CleanupOrphanAddresses(ctx context.Context, db *gorm.DB) (int64, error) {
	result := db.WithContext(ctx).Exec(`
		DELETE FROM addresses
		WHERE id NOT IN (
			SELECT address_id FROM clinics WHERE address_id IS NOT NULL
			UNION
			SELECT address_id FROM patients WHERE address_id IS NOT NULL
		)
	`)
	return result.RowsAffected, result.Error
}
