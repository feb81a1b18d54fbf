package middleware

import (
	"net"
	"net/http"
	"strings"
)

// clientIP prefere o primeiro X-Forwarded-For (proxy do host) e cai para RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP é usado na auditoria.
func ClientIP(r *http.Request) string { return clientIP(r) }
