//go:build integration

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mdnsystems/OmniCare-sub005/internal/config"
	"github.com/mdnsystems/OmniCare-sub005/internal/crypto"
	"github.com/mdnsystems/OmniCare-sub005/internal/middleware"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/seed"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
	"github.com/mdnsystems/OmniCare-sub005/internal/testutil"
)

func integrationRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	db, _ := testutil.OpenDB(ctx)
	if db == nil {
		t.Skip("DATABASE_URL not set for integration tests")
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, testutil.MustMigrate(ctx, db))
	require.NoError(t, seed.Run(ctx, db, zerolog.Nop()))

	keys, err := crypto.NewKeyring("v1:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "v1")
	require.NoError(t, err)
	res := tenant.NewResolver(func(ctx context.Context, id uuid.UUID) (*repo.Clinic, error) {
		return repo.ClinicByID(ctx, db, id)
	}, time.Second, zerolog.Nop())
	t.Cleanup(res.Close)

	h := &Handler{
		DB:      db,
		Cfg:     &config.Config{JWTSecret: testSecret, JWTTTL: time.Hour, BillingNotifyDays: 1, BillingRestrictDays: 15, BillingBlockDays: 30},
		Keys:    keys,
		Tenants: res,
		Log:     zerolog.Nop(),
	}
	return middleware.RequestID(NewRouter(h, nil)), db
}

func login(t *testing.T, r http.Handler, email string) string {
	t.Helper()
	rec := serve(r, http.MethodPost, "/api/auth/login", "",
		fmt.Sprintf(`{"email":%q,"password":%q}`, email, seed.DemoPassword))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return "Bearer " + out.Token
}

func createPatient(t *testing.T, r http.Handler, authz, name string) string {
	t.Helper()
	rec := serve(r, http.MethodPost, "/api/patients", authz, fmt.Sprintf(`{"full_name":%q}`, name))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p PatientOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p.ID
}

func TestIntegration_TenantIsolation_Patients(t *testing.T) {
	r, _ := integrationRouter(t)
	authA := login(t, r, "recepcao@clinica-a.local")
	authB := login(t, r, "recepcao@clinica-b.local")

	nameA := "Isolamento A " + uuid.NewString()[:8]
	idA := createPatient(t, r, authA, nameA)

	rec := serve(r, http.MethodGet, "/api/patients/"+idA, authA, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodGet, "/api/patients/"+idA, authB, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, http.MethodGet, "/api/patients?search="+url.QueryEscape(nameA), authB, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Patients []PatientOutput `json:"patients"`
		Total    int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	for _, p := range list.Patients {
		assert.NotEqual(t, idA, p.ID)
	}
}

func TestIntegration_TenantMismatch(t *testing.T) {
	r, db := integrationRouter(t)
	authA := login(t, r, "admin@clinica-a.local")
	clinicB := seed.DemoID(context.Background(), db, "Clínica B")
	require.NotEqual(t, uuid.Nil, clinicB)

	rec := serve(r, http.MethodGet, "/api/patients?tenantId="+clinicB.String(), authA, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "tenant mismatch", errorBody(t, rec))
}

func TestIntegration_AppointmentConflict(t *testing.T) {
	r, db := integrationRouter(t)
	ctx := context.Background()
	authz := login(t, r, "recepcao@clinica-a.local")
	prof, err := repo.UserByEmail(ctx, db, "prof@clinica-a.local")
	require.NoError(t, err)
	require.NotNil(t, prof.ProfessionalID)

	p1 := createPatient(t, r, authz, "Conflito 1 "+uuid.NewString()[:8])
	p2 := createPatient(t, r, authz, "Conflito 2 "+uuid.NewString()[:8])

	// horário distante e único por execução
	start := time.Now().UTC().Truncate(time.Minute).AddDate(1, 0, 0).Add(time.Duration(time.Now().UnixNano()%100000) * time.Hour)
	body := func(patient string, at time.Time) string {
		return fmt.Sprintf(`{"professional_id":%q,"patient_id":%q,"starts_at":%q,"duration_minutes":30}`,
			prof.ProfessionalID.String(), patient, at.Format(time.RFC3339))
	}

	rec := serve(r, http.MethodPost, "/api/appointments", authz, body(p1, start))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first AppointmentOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = serve(r, http.MethodPost, "/api/appointments", authz, body(p2, start.Add(15*time.Minute)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// intervalo semiaberto: encostar no fim não conflita
	rec = serve(r, http.MethodPost, "/api/appointments", authz, body(p2, start.Add(30*time.Minute)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(r, http.MethodPost, "/api/appointments/"+first.ID+"/status", authz, `{"status":"CANCELLED","reason":"teste"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = serve(r, http.MethodPost, "/api/appointments", authz, body(p2, start.Add(-15*time.Minute)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestIntegration_RecordEntryEncryptedAndLogged(t *testing.T) {
	r, db := integrationRouter(t)
	ctx := context.Background()
	profAuth := login(t, r, "prof@clinica-a.local")
	recAuth := login(t, r, "recepcao@clinica-a.local")
	adminAuth := login(t, r, "admin@clinica-a.local")
	patient := createPatient(t, r, recAuth, "Prontuário "+uuid.NewString()[:8])

	rec := serve(r, http.MethodPost, "/api/patients/"+patient+"/records", profAuth, `{"kind":"EVOLUTION","content":"Paciente estável."}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var entry RecordEntryOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "Paciente estável.", entry.Content)

	var stored repo.RecordEntry
	require.NoError(t, db.WithContext(ctx).Where("id = ?", entry.ID).First(&stored).Error)
	assert.NotContains(t, string(stored.ContentEncrypted), "estável")

	rec = serve(r, http.MethodGet, "/api/patients/"+patient+"/records", recAuth, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(r, http.MethodGet, "/api/patients/"+patient+"/access-logs", adminAuth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		AccessLogs []AccessLogOutput `json:"access_logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.NotEmpty(t, logs.AccessLogs)
	assert.Equal(t, "WRITE", logs.AccessLogs[0].Action)
}
