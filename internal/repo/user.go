package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a login. ClinicID is nil only for SUPER_ADMIN.
type User struct {
	Model
	ClinicID       *uuid.UUID `gorm:"type:uuid"`
	ProfessionalID *uuid.UUID `gorm:"type:uuid"`
	Email          string
	PasswordHash   string
	FullName       string
	Role           string
	Active         bool
	LastLoginAt    *time.Time
}

func UserByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error) {
	var u User
	err := db.WithContext(ctx).Where("lower(email) = lower(?) AND active = true", strings.TrimSpace(email)).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func UserByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*User, error) {
	var u User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func UserByIDAndClinic(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) (*User, error) {
	var u User
	if err := db.WithContext(ctx).Scopes(byClinic(clinicID)).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func UsersByClinic(ctx context.Context, db *gorm.DB, clinicID uuid.UUID, page Page) ([]User, int64, error) {
	var list []User
	total, err := countAndFind(db.WithContext(ctx).Model(&User{}).Scopes(byClinic(clinicID)), page, "full_name", &list)
	return list, total, err
}

func CreateUser(ctx context.Context, db *gorm.DB, u *User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Active = true
	return db.WithContext(ctx).Create(u).Error
}

type UserUpdate struct {
	FullName       string
	Role           string
	ProfessionalID *uuid.UUID
	Active         bool
}

func UpdateUser(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID, u UserUpdate) error {
	return affected(db.WithContext(ctx).Model(&User{}).Scopes(byClinic(clinicID)).Where("id = ?", id).Updates(map[string]interface{}{
		"full_name": u.FullName, "role": u.Role, "professional_id": u.ProfessionalID, "active": u.Active,
	}))
}

func SetUserPassword(ctx context.Context, db *gorm.DB, id uuid.UUID, hash string) error {
	return affected(db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("password_hash", hash))
}

func TouchLastLogin(ctx context.Context, db *gorm.DB, id uuid.UUID) error {
	return db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("last_login_at", gorm.Expr("now()")).Error
}

// ClinicAdmins returns active ADMIN users of a clinic (recipients of billing notices).
func ClinicAdmins(ctx context.Context, db *gorm.DB, clinicID uuid.UUID) ([]User, error) {
	var list []User
	err := db.WithContext(ctx).Scopes(byClinic(clinicID)).Where("role = ? AND active = true", "ADMIN").Find(&list).Error
	return list, err
}
