package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
)

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RequireAuthMiddleware adapta RequireAuth para mux.Router.Use.
func RequireAuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(secret, next)
	}
}

// RequireAuth valida o JWT e coloca as claims (usuário, papel, tenant) no context.
func RequireAuth(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := ExtractBearer(r)
		if raw == "" {
			deny(w, http.StatusUnauthorized, "missing or invalid authorization")
			return
		}
		claims, err := auth.ParseJWT(secret, raw)
		if err != nil {
			deny(w, http.StatusUnauthorized, "invalid token")
			return
		}
		AnnotateUser(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// RequireRole deixa passar apenas os papéis informados; sem claims responde 401.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := auth.ClaimsFrom(r.Context())
			if c == nil {
				deny(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, ok := allowed[c.Role]; !ok {
				deny(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireSuperAdmin(next http.Handler) http.Handler {
	return RequireRole(auth.RoleSuperAdmin)(next)
}

// ExtractBearer lê o token do header Authorization ou, só em upgrade de WebSocket, do query ?token=.
func ExtractBearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}
