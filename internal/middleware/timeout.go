package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Timeout limita a duração do context de cada request HTTP. Conexões de chat (upgrade
// para WebSocket) ficam de fora: vivem enquanto o cliente estiver conectado.
// timeoutSec <= 0 desliga o limite.
func Timeout(timeoutSec int) func(http.Handler) http.Handler {
	if timeoutSec <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limit := time.Duration(timeoutSec) * time.Second
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
