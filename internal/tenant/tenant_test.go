package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clinicA  = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	clinicB  = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
	inactive = uuid.MustParse("cccccccc-0000-0000-0000-000000000003")
)

type fakeClinics struct {
	calls int32
	rows  map[uuid.UUID]repo.Clinic
}

func (f *fakeClinics) lookup(_ context.Context, id uuid.UUID) (*repo.Clinic, error) {
	atomic.AddInt32(&f.calls, 1)
	c, ok := f.rows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &c, nil
}

func newFake() *fakeClinics {
	blocked := "BLOCKED"
	return &fakeClinics{rows: map[uuid.UUID]repo.Clinic{
		clinicA:  {Model: repo.Model{ID: clinicA}, Name: "A", Active: true, BlockLevel: "NONE"},
		clinicB:  {Model: repo.Model{ID: clinicB}, Name: "B", Active: true, BlockLevel: "NONE", BlockLevelOverride: &blocked},
		inactive: {Model: repo.Model{ID: inactive}, Name: "C", Active: false},
	}}
}

func clinicClaims(tenantID uuid.UUID) *auth.Claims {
	s := tenantID.String()
	return &auth.Claims{UserID: "u1", Role: auth.RoleAdmin, TenantID: &s}
}

func superClaims() *auth.Claims {
	return &auth.Claims{UserID: "root", Role: auth.RoleSuperAdmin}
}

func serve(t *testing.T, res *Resolver, claims *auth.Claims, req *http.Request) (*httptest.ResponseRecorder, Info, string) {
	t.Helper()
	var got Info
	var body string
	h := res.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}))
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got, body
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m["error"]
}

func TestSelect(t *testing.T) {
	cases := []struct {
		name     string
		claims   *auth.Claims
		explicit string
		want     string
		err      error
	}{
		{"token only", clinicClaims(clinicA), "", clinicA.String(), nil},
		{"token and same explicit", clinicClaims(clinicA), strings.ToUpper(clinicA.String()), clinicA.String(), nil},
		{"token and other explicit", clinicClaims(clinicA), clinicB.String(), "", ErrMismatch},
		{"super with explicit", superClaims(), clinicB.String(), clinicB.String(), nil},
		{"super without explicit", superClaims(), "", "", ErrRequired},
		{"no claims", nil, clinicA.String(), "", ErrRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Select(tc.claims, tc.explicit)
			if tc.err != nil {
				assert.Equal(t, tc.err, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExplicitPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x?tenantId=from-query", strings.NewReader(`{"tenantId":"from-body"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderName, "from-header")
	got, err := Explicit(req)
	require.NoError(t, err)
	assert.Equal(t, "from-header", got)

	req.Header.Del(HeaderName)
	got, _ = Explicit(req)
	assert.Equal(t, "from-query", got)

	req = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"tenantId":"from-body","name":"n"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	got, _ = Explicit(req)
	assert.Equal(t, "from-body", got)
	rest, _ := io.ReadAll(req.Body)
	assert.JSONEq(t, `{"tenantId":"from-body","name":"n"}`, string(rest))
}

func TestExplicitBodyNonString(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"tenantId":42}`))
	req.Header.Set("Content-Type", "application/json")
	_, err := Explicit(req)
	assert.Equal(t, ErrInvalidID, err)
}

func TestMiddlewareResolvesFromToken(t *testing.T) {
	fake := newFake()
	res := NewResolver(fake.lookup, time.Minute, zerolog.Nop())
	defer res.Close()

	rec, info, _ := serve(t, res, clinicClaims(clinicA), httptest.NewRequest(http.MethodGet, "/api/patients", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, clinicA, info.ID)
	assert.Equal(t, "NONE", info.BlockLevel)

	serve(t, res, clinicClaims(clinicA), httptest.NewRequest(http.MethodGet, "/api/patients", nil))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls), "second lookup must hit the cache")

	res.Invalidate(clinicA)
	serve(t, res, clinicClaims(clinicA), httptest.NewRequest(http.MethodGet, "/api/patients", nil))
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.calls))
}

func TestMiddlewareMismatch(t *testing.T) {
	res := NewResolver(newFake().lookup, time.Minute, zerolog.Nop())
	defer res.Close()
	req := httptest.NewRequest(http.MethodGet, "/api/patients?tenantId="+clinicB.String(), nil)
	rec, _, _ := serve(t, res, clinicClaims(clinicA), req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "tenant mismatch", errorOf(t, rec))
}

func TestMiddlewareSuperAdmin(t *testing.T) {
	res := NewResolver(newFake().lookup, time.Minute, zerolog.Nop())
	defer res.Close()

	rec, _, _ := serve(t, res, superClaims(), httptest.NewRequest(http.MethodGet, "/api/patients", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "tenantId required", errorOf(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set(HeaderName, clinicB.String())
	rec, info, _ := serve(t, res, superClaims(), req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BLOCKED", info.BlockLevel, "override wins over computed level")

	body := `{"tenantId":"` + clinicA.String() + `","full_name":"X"}`
	req = httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec, info, seen := serve(t, res, superClaims(), req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, clinicA, info.ID)
	assert.Equal(t, body, seen, "handler must still read the full body")
}

func TestMiddlewareValidation(t *testing.T) {
	res := NewResolver(newFake().lookup, time.Minute, zerolog.Nop())
	defer res.Close()
	cases := []struct {
		tenant string
		status int
		msg    string
	}{
		{"not-a-uuid", http.StatusBadRequest, "invalid tenantId"},
		{uuid.NewString(), http.StatusNotFound, "clinic not found"},
		{inactive.String(), http.StatusForbidden, "clinic inactive"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
		req.Header.Set(HeaderName, tc.tenant)
		rec, _, _ := serve(t, res, superClaims(), req)
		assert.Equal(t, tc.status, rec.Code, tc.tenant)
		assert.Equal(t, tc.msg, errorOf(t, rec), tc.tenant)
	}
}

func TestMiddlewareLookupFailure(t *testing.T) {
	res := NewResolver(func(context.Context, uuid.UUID) (*repo.Clinic, error) {
		return nil, errors.New("db down")
	}, time.Minute, zerolog.Nop())
	defer res.Close()
	rec, _, _ := serve(t, res, clinicClaims(clinicA), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
