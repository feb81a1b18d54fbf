package middleware

import (
	"net/http"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
)

// OptionalAuth injeta as claims quando há um token válido e segue adiante sem ele.
// Usado em rotas públicas que só enriquecem o registro com o usuário (ex.: /api/errors).
func OptionalAuth(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := ExtractBearer(r); raw != "" {
			if claims, err := auth.ParseJWT(secret, raw); err == nil {
				AnnotateUser(r.Context(), claims.UserID)
				r = r.WithContext(auth.WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}
