package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

// Handler sem DB: qualquer acesso ao banco entra em pânico, então estes casos provam
// que a validação roda antes de qualquer escrita.
func TestPatchAppointmentValidatesBeforeWriting(t *testing.T) {
	clinicID := uuid.New()
	h := newTestHandler(t, testClinics{clinicID: {Model: repo.Model{ID: clinicID}, Name: "A", Active: true, BlockLevel: "NONE"}})
	r := NewRouter(h, nil)
	path := "/api/appointments/" + uuid.NewString()
	authz := token(t, auth.RoleReceptionist, &clinicID)

	t.Run("reschedule with oversized notes is rejected whole", func(t *testing.T) {
		body := fmt.Sprintf(`{"starts_at":"2026-10-20T10:00:00Z","duration_minutes":30,"notes":%q}`,
			strings.Repeat("x", maxAppointmentNotes+1))
		rec := serve(r, http.MethodPatch, path, authz, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid notes", errorBody(t, rec))
	})
	t.Run("oversized notes alone", func(t *testing.T) {
		body := fmt.Sprintf(`{"notes":%q}`, strings.Repeat("x", maxAppointmentNotes+1))
		rec := serve(r, http.MethodPatch, path, authz, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid notes", errorBody(t, rec))
	})
	t.Run("empty patch", func(t *testing.T) {
		rec := serve(r, http.MethodPatch, path, authz, `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "nothing to update", errorBody(t, rec))
	})
}
