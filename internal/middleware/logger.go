package middleware

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// Hijack permite o upgrade de WebSocket através do recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	if s.status == 0 {
		s.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// accessFields é preenchido pelas camadas internas (auth, tenant) e lido ao final do request.
type accessFields struct {
	mu       sync.Mutex
	userID   string
	tenantID string
}

const accessFieldsKey ctxKey = "access_fields"

// AnnotateUser registra o usuário autenticado no log de acesso.
func AnnotateUser(ctx context.Context, userID string) {
	if f, ok := ctx.Value(accessFieldsKey).(*accessFields); ok {
		f.mu.Lock()
		f.userID = userID
		f.mu.Unlock()
	}
}

// AnnotateTenant registra o tenant resolvido no log de acesso.
func AnnotateTenant(ctx context.Context, tenantID string) {
	if f, ok := ctx.Value(accessFieldsKey).(*accessFields); ok {
		f.mu.Lock()
		f.tenantID = tenantID
		f.mu.Unlock()
	}
}

// Logger emite um evento por request com request_id, status, latência, ip, usuário e tenant.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			fields := &accessFields{}
			r = r.WithContext(context.WithValue(r.Context(), accessFieldsKey, fields))
			next.ServeHTTP(rec, r)
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			ev := log.Info()
			switch {
			case status >= 500:
				ev = log.Error()
			case status >= 400:
				ev = log.Warn()
			}
			ev = ev.Str("request_id", RequestIDFromContext(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", rec.bytes).
				Dur("latency", time.Since(start)).
				Str("remote_ip", clientIP(r))
			fields.mu.Lock()
			if fields.userID != "" {
				ev = ev.Str("user_id", fields.userID)
			}
			if fields.tenantID != "" {
				ev = ev.Str("tenant_id", fields.tenantID)
			}
			fields.mu.Unlock()
			ev.Msg("request")
		})
	}
}
