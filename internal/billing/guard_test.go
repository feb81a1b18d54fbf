package billing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
	"github.com/stretchr/testify/assert"
)

func guarded(level Level, method, path string) *httptest.ResponseRecorder {
	h := Guard("/api/billing", "/api/auth")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(tenant.WithInfo(req.Context(), tenant.Info{ID: uuid.New(), Active: true, BlockLevel: string(level)}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuard(t *testing.T) {
	cases := []struct {
		level   Level
		method  string
		path    string
		status  int
		warning bool
	}{
		{LevelNone, http.MethodPost, "/api/patients", http.StatusOK, false},
		{Level(""), http.MethodPost, "/api/patients", http.StatusOK, false},
		{LevelNotification, http.MethodPost, "/api/patients", http.StatusOK, true},
		{LevelRestriction, http.MethodGet, "/api/patients", http.StatusOK, true},
		{LevelRestriction, http.MethodPost, "/api/patients", http.StatusPaymentRequired, true},
		{LevelRestriction, http.MethodDelete, "/api/patients/1", http.StatusPaymentRequired, true},
		{LevelBlocked, http.MethodGet, "/api/patients", http.StatusPaymentRequired, true},
		{LevelBlocked, http.MethodGet, "/api/billing/status", http.StatusOK, true},
		{LevelBlocked, http.MethodPost, "/api/billing/invoices/1/pdf", http.StatusOK, true},
	}
	for _, tc := range cases {
		rec := guarded(tc.level, tc.method, tc.path)
		assert.Equal(t, tc.status, rec.Code, "%s %s %s", tc.level, tc.method, tc.path)
		assert.Equal(t, tc.warning, rec.Header().Get(WarningHeader) == "overdue", "%s %s", tc.level, tc.path)
	}
}

func TestGuardWithoutTenantPassesThrough(t *testing.T) {
	h := Guard()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clinics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuardBlockedBody(t *testing.T) {
	rec := guarded(LevelBlocked, http.MethodGet, "/api/appointments")
	assert.JSONEq(t, `{"error":"clinic blocked for overdue billing","block_level":"BLOCKED"}`, rec.Body.String())
}
