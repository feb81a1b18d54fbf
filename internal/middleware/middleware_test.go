package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-with-at-least-32-characters")

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	sub := auth.TokenSubject{UserID: "11111111-1111-1111-1111-111111111111", Role: role}
	if role != auth.RoleSuperAdmin {
		tid := "22222222-2222-2222-2222-222222222222"
		sub.TenantID = &tid
	}
	tok, err := auth.BuildJWT(testSecret, sub, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestRequireAuth(t *testing.T) {
	var gotRole string
	h := RequireAuth(testSecret, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = auth.RoleFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, auth.RoleAdmin))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.RoleAdmin, gotRole)
}

func TestExtractBearerQueryOnlyForWebSocket(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/chat/ws?token=abc", nil)
	assert.Empty(t, ExtractBearer(req))
	req.Header.Set("Upgrade", "websocket")
	assert.Equal(t, "abc", ExtractBearer(req))
}

func TestRequireRole(t *testing.T) {
	h := RequireAuth(testSecret, RequireRole(auth.RoleAdmin)(okHandler()))
	cases := map[string]int{
		auth.RoleAdmin:        http.StatusOK,
		auth.RoleProfessional: http.StatusForbidden,
		auth.RoleSuperAdmin:   http.StatusForbidden,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "fixed")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "fixed", seen)
}

func TestRecover(t *testing.T) {
	h := RequestID(Recover(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal", body["error"])
	assert.Equal(t, "rid-1", body["request_id"])
}

func TestTimeout(t *testing.T) {
	var deadline bool
	h := Timeout(5)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, deadline)

	h = Timeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, deadline)
}

func TestLoggerRecordsAnnotations(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	h := RequestID(Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AnnotateUser(r.Context(), "u-1")
		AnnotateTenant(r.Context(), "t-1")
		w.WriteHeader(http.StatusTeapot)
	})))
	req := httptest.NewRequest(http.MethodPost, "/api/x", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.9, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ev))
	assert.Equal(t, "warn", ev["level"])
	assert.Equal(t, float64(http.StatusTeapot), ev["status"])
	assert.Equal(t, "u-1", ev["user_id"])
	assert.Equal(t, "t-1", ev["tenant_id"])
	assert.Equal(t, "10.0.0.9", ev["remote_ip"])
	assert.Equal(t, "/api/x", ev["path"])
}

func TestAnnotateWithoutLoggerIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		AnnotateTenant(context.Background(), "t")
		AnnotateUser(context.Background(), "u")
	})
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://app.local"})(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/api/patients", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://app.local", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCompressSkipsPDF(t *testing.T) {
	h := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 2048))
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/billing/invoices/1/pdf", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))

	req = httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestRequestIDRejectsUnsafeValues(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	for _, bad := range []string{"has space", "quebra\nlinha", string(make([]byte, 200))} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, bad)
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, bad, seen)
		assert.Len(t, seen, 36)
	}
}

func TestTimeoutSkipsWebSocket(t *testing.T) {
	var deadline bool
	h := Timeout(5)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/chat/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, deadline)
}

func TestRequireRoleJSONBody(t *testing.T) {
	h := RequireAuth(testSecret, RequireRole(auth.RoleSuperAdmin)(okHandler()))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+tokenFor(t, auth.RoleReceptionist))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
}

func TestOptionalAuth(t *testing.T) {
	var role string
	h := OptionalAuth(testSecret, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = auth.RoleFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/errors", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, role)

	req := httptest.NewRequest(http.MethodPost, "/api/errors", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, role)

	req = httptest.NewRequest(http.MethodPost, "/api/errors", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, auth.RoleProfessional))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, auth.RoleProfessional, role)
}
