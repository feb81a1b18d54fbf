package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleSuperAdmin   = "SUPER_ADMIN"
	RoleAdmin        = "ADMIN"
	RoleProfessional = "PROFESSIONAL"
	RoleReceptionist = "RECEPTIONIST"
)

// TenantRoles são os papéis que pertencem a uma clínica (SUPER_ADMIN não pertence).
var TenantRoles = []string{RoleAdmin, RoleProfessional, RoleReceptionist}

func IsValidTenantRole(role string) bool {
	for _, r := range TenantRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Claims struct {
	jwt.RegisteredClaims
	UserID         string  `json:"user_id"`
	Role           string  `json:"role"`
	TenantID       *string `json:"tenant_id,omitempty"`
	ProfessionalID *string `json:"professional_id,omitempty"`
}

// TokenSubject descreve quem recebe o token; TenantID é nil apenas para SUPER_ADMIN.
type TokenSubject struct {
	UserID         string
	Role           string
	TenantID       *string
	ProfessionalID *string
}

func BuildJWT(secret []byte, sub TokenSubject, exp time.Duration) (string, error) {
	if sub.UserID == "" || sub.Role == "" {
		return "", errors.New("auth: user id and role are required")
	}
	if sub.Role != RoleSuperAdmin && !IsValidTenantRole(sub.Role) {
		return "", fmt.Errorf("auth: unknown role %q", sub.Role)
	}
	if sub.Role != RoleSuperAdmin && (sub.TenantID == nil || *sub.TenantID == "") {
		return "", errors.New("auth: tenant id is required for tenant roles")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   sub.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
		},
		UserID:         sub.UserID,
		Role:           sub.Role,
		TenantID:       sub.TenantID,
		ProfessionalID: sub.ProfessionalID,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func ParseJWT(secret []byte, tokenString string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
