package api

import (
	"context"
	"net/http"
	"time"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready responde 503 enquanto o banco não responde ao ping.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := repo.Ping(ctx, h.DB); err != nil {
		h.Log.Warn().Err(err).Msg("ready: db ping")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "up"})
}

// CleanupOrphanAddresses (SUPER_ADMIN) remove endereços sem paciente nem clínica.
func (h *Handler) CleanupOrphanAddresses(w http.ResponseWriter, r *http.Request) {
	n, err := repo.CleanupOrphanAddresses(r.Context(), h.DB)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "ORPHAN_ADDRESSES_CLEANED", ResourceType: "ADDRESS", Metadata: map[string]int64{"deleted": n}})
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
