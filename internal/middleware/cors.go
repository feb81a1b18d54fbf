package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// CORS libera as origens configuradas (CORS_ORIGINS); "*" libera qualquer origem.
func CORS(origins []string) func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}),
		handlers.ExposedHeaders([]string{"X-Request-ID", "X-Billing-Warning", "X-Total-Count"}),
		handlers.AllowCredentials(),
		handlers.OptionStatusCode(http.StatusNoContent),
	)
}
