package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
)

// Compress aplica gzip/deflate nas respostas, exceto upgrades de WebSocket e PDFs já comprimidos.
func Compress(next http.Handler) http.Handler {
	compressed := handlers.CompressHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") || strings.HasSuffix(r.URL.Path, "/pdf") {
			next.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}
