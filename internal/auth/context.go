package auth

import "context"

type contextKey string

const claimsKey contextKey = "claims"

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFrom(ctx context.Context) *Claims {
	if c, _ := ctx.Value(claimsKey).(*Claims); c != nil {
		return c
	}
	return nil
}

// TenantIDFrom devolve o tenant gravado no token (nil para SUPER_ADMIN).
// Para o tenant efetivo da requisição use tenant.FromContext.
func TenantIDFrom(ctx context.Context) *string {
	c := ClaimsFrom(ctx)
	if c == nil {
		return nil
	}
	return c.TenantID
}

func UserIDFrom(ctx context.Context) string {
	c := ClaimsFrom(ctx)
	if c == nil {
		return ""
	}
	return c.UserID
}

func RoleFrom(ctx context.Context) string {
	c := ClaimsFrom(ctx)
	if c == nil {
		return ""
	}
	return c.Role
}

func ProfessionalIDFrom(ctx context.Context) string {
	c := ClaimsFrom(ctx)
	if c == nil || c.ProfessionalID == nil {
		return ""
	}
	return *c.ProfessionalID
}

func IsSuperAdmin(ctx context.Context) bool {
	return RoleFrom(ctx) == RoleSuperAdmin
}

func HasRole(ctx context.Context, roles ...string) bool {
	role := RoleFrom(ctx)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
