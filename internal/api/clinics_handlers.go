package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdnsystems/OmniCare-sub005/internal/billing"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

type ClinicRequest struct {
	Name    string        `json:"name" validate:"required,max=200"`
	CNPJ    string        `json:"cnpj" validate:"cnpj"`
	Email   string        `json:"email" validate:"emailrx"`
	Phone   string        `json:"phone" validate:"phone"`
	Address *AddressInput `json:"address"`
}

func (req *ClinicRequest) validate() error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if req.Address != nil {
		return ValidateAddress(req.Address)
	}
	return nil
}

type ClinicOutput struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	CNPJ                string         `json:"cnpj,omitempty"`
	Email               string         `json:"email,omitempty"`
	Phone               string         `json:"phone,omitempty"`
	Active              bool           `json:"active"`
	BlockLevel          string         `json:"block_level"`
	BlockLevelOverride  *string        `json:"block_level_override,omitempty"`
	BlockLevelUpdatedAt *string        `json:"block_level_updated_at,omitempty"`
	Address             *AddressOutput `json:"address,omitempty"`
	CreatedAt           string         `json:"created_at"`
}

func clinicOutput(c *repo.Clinic, addr *repo.Address) ClinicOutput {
	out := ClinicOutput{
		ID:                 c.ID.String(),
		Name:               c.Name,
		CNPJ:               strFromPtr(c.CNPJ),
		Email:              strFromPtr(c.Email),
		Phone:              strFromPtr(c.Phone),
		Active:             c.Active,
		BlockLevel:         c.EffectiveBlockLevel(),
		BlockLevelOverride: c.BlockLevelOverride,
		Address:            addressOutput(addr),
		CreatedAt:          c.CreatedAt.Format(timeLayout),
	}
	if c.BlockLevelUpdatedAt != nil {
		s := c.BlockLevelUpdatedAt.Format(timeLayout)
		out.BlockLevelUpdatedAt = &s
	}
	return out
}

func (h *Handler) loadClinicOutput(ctx context.Context, id uuid.UUID) (ClinicOutput, error) {
	c, err := repo.ClinicByID(ctx, h.DB, id)
	if err != nil {
		return ClinicOutput{}, err
	}
	var addr *repo.Address
	if c.AddressID != nil {
		if addr, err = repo.GetAddressByID(ctx, h.DB, *c.AddressID); err != nil && !repo.IsNotFound(err) {
			return ClinicOutput{}, err
		}
	}
	return clinicOutput(c, addr), nil
}

func (h *Handler) invalidateTenant(id uuid.UUID) {
	if h.Tenants != nil {
		h.Tenants.Invalidate(id)
	}
}

type clinicListQuery struct {
	Search string `schema:"search"`
	Active *bool  `schema:"active"`
}

func (h *Handler) ListClinics(w http.ResponseWriter, r *http.Request) {
	var q clinicListQuery
	if err := decodeQuery(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}
	page := pageFrom(r)
	list, total, err := repo.ListClinics(r.Context(), h.DB, repo.ClinicFilter{Search: q.Search, Active: q.Active}, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]ClinicOutput, 0, len(list))
	for i := range list {
		out = append(out, clinicOutput(&list[i], nil))
	}
	listResponse(w, "clinics", out, total, page)
}

func (h *Handler) CreateClinic(w http.ResponseWriter, r *http.Request) {
	var req ClinicRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := &repo.Clinic{
		Name:  strings.TrimSpace(req.Name),
		CNPJ:  strPtr(onlyDigits(req.CNPJ)),
		Email: strPtr(strings.ToLower(req.Email)),
		Phone: strPtr(onlyDigits(req.Phone)),
	}
	err := h.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if req.Address != nil {
			id, err := repo.CreateAddress(r.Context(), tx, req.Address.toRepo())
			if err != nil {
				return err
			}
			c.AddressID = &id
		}
		return repo.CreateClinic(r.Context(), tx, c)
	})
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "CLINIC_CREATED", ResourceType: "CLINIC", ResourceID: &c.ID, ClinicID: &c.ID})
	out, err := h.loadClinicOutput(r.Context(), c.ID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) GetClinic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := h.loadClinicOutput(r.Context(), id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateClinic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.updateClinic(w, r, id)
}

// GetMyClinic e UpdateMyClinic são o perfil da clínica para o ADMIN do tenant.
func (h *Handler) GetMyClinic(w http.ResponseWriter, r *http.Request) {
	out, err := h.loadClinicOutput(r.Context(), tenant.ID(r.Context()))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateMyClinic(w http.ResponseWriter, r *http.Request) {
	h.updateClinic(w, r, tenant.ID(r.Context()))
}

func (h *Handler) updateClinic(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ClinicRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		c, err := repo.ClinicByID(r.Context(), tx, id)
		if err != nil {
			return err
		}
		addrID := c.AddressID
		if req.Address != nil {
			nid, err := repo.UpsertAddress(r.Context(), tx, c.AddressID, req.Address.toRepo())
			if err != nil {
				return err
			}
			addrID = &nid
		}
		return repo.UpdateClinic(r.Context(), tx, id, repo.ClinicUpdate{
			Name:      strings.TrimSpace(req.Name),
			CNPJ:      strPtr(onlyDigits(req.CNPJ)),
			Email:     strPtr(strings.ToLower(req.Email)),
			Phone:     strPtr(onlyDigits(req.Phone)),
			AddressID: addrID,
		})
	})
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.invalidateTenant(id)
	h.audit(r, auditEntry{Action: "CLINIC_UPDATED", ResourceType: "CLINIC", ResourceID: &id, ClinicID: &id})
	out, err := h.loadClinicOutput(r.Context(), id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ActivateClinic(w http.ResponseWriter, r *http.Request) {
	h.setClinicActive(w, r, true)
}

func (h *Handler) DeactivateClinic(w http.ResponseWriter, r *http.Request) {
	h.setClinicActive(w, r, false)
}

func (h *Handler) setClinicActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := repo.SetClinicActive(r.Context(), h.DB, id, active); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.invalidateTenant(id)
	action := "CLINIC_DEACTIVATED"
	if active {
		action = "CLINIC_ACTIVATED"
	}
	h.audit(r, auditEntry{Action: action, ResourceType: "CLINIC", ResourceID: &id, ClinicID: &id})
	w.WriteHeader(http.StatusNoContent)
}

type BlockLevelRequest struct {
	// Level nil (ou "") remove o override e volta ao nível calculado.
	Level *string `json:"level"`
}

// SetClinicBlockLevel grava o override manual do nível de bloqueio.
func (h *Handler) SetClinicBlockLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req BlockLevelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	var level *string
	if req.Level != nil && strings.TrimSpace(*req.Level) != "" {
		l, ok := billing.ParseLevel(*req.Level)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid level")
			return
		}
		s := l.String()
		level = &s
	}
	if err := repo.SetClinicBlockOverride(r.Context(), h.DB, id, level); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.invalidateTenant(id)
	h.audit(r, auditEntry{
		Action: "CLINIC_BLOCK_LEVEL_OVERRIDE", ResourceType: "CLINIC", ResourceID: &id, ClinicID: &id,
		Severity: "WARN", Metadata: map[string]interface{}{"level": level},
	})
	out, err := h.loadClinicOutput(r.Context(), id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
