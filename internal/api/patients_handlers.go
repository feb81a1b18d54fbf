package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

var errCPFTaken = errors.New("cpf already registered in this clinic")

type PatientRequest struct {
	FullName  string        `json:"full_name" validate:"required,max=200"`
	BirthDate string        `json:"birth_date" validate:"date"`
	CPF       *string       `json:"cpf" validate:"omitempty,cpf"`
	Email     string        `json:"email" validate:"emailrx"`
	Phone     string        `json:"phone" validate:"phone"`
	Notes     string        `json:"notes" validate:"max=4000"`
	Address   *AddressInput `json:"address"`
}

func (req *PatientRequest) validate() error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if req.Address != nil {
		return ValidateAddress(req.Address)
	}
	return nil
}

type PatientOutput struct {
	ID        string         `json:"id"`
	FullName  string         `json:"full_name"`
	BirthDate string         `json:"birth_date,omitempty"`
	CPF       string         `json:"cpf,omitempty"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	Address   *AddressOutput `json:"address,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func (h *Handler) patientOutput(p *repo.Patient, addr *repo.Address) PatientOutput {
	out := PatientOutput{
		ID:        p.ID.String(),
		FullName:  p.FullName,
		CPF:       h.openCPF(p.CPFEncrypted, p.CPFNonce, p.CPFKeyVersion),
		Email:     strFromPtr(p.Email),
		Phone:     strFromPtr(p.Phone),
		Notes:     strFromPtr(p.Notes),
		Address:   addressOutput(addr),
		CreatedAt: p.CreatedAt.Format(timeLayout),
	}
	if p.BirthDate != nil {
		out.BirthDate = p.BirthDate.Format(dateLayout)
	}
	return out
}

func (h *Handler) loadPatientOutput(r *http.Request, id uuid.UUID) (PatientOutput, error) {
	p, err := repo.PatientByIDAndClinic(r.Context(), h.DB, id, tenant.ID(r.Context()))
	if err != nil {
		return PatientOutput{}, err
	}
	var addr *repo.Address
	if p.AddressID != nil {
		if addr, err = repo.GetAddressByID(r.Context(), h.DB, *p.AddressID); err != nil && !repo.IsNotFound(err) {
			return PatientOutput{}, err
		}
	}
	return h.patientOutput(p, addr), nil
}

type patientListQuery struct {
	Search string `schema:"search"`
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	var q patientListQuery
	if err := decodeQuery(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}
	page := pageFrom(r)
	list, total, err := repo.PatientsByClinic(r.Context(), h.DB, tenant.ID(r.Context()), repo.PatientFilter{Search: q.Search}, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]PatientOutput, 0, len(list))
	for i := range list {
		out = append(out, h.patientOutput(&list[i], nil))
	}
	listResponse(w, "patients", out, total, page)
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "patientId")
	if !ok {
		return
	}
	out, err := h.loadPatientOutput(r, id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req PatientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	birth, _ := ParseDate(req.BirthDate)
	clinicID := tenant.ID(r.Context())
	p := &repo.Patient{
		ClinicID:  clinicID,
		FullName:  strings.TrimSpace(req.FullName),
		BirthDate: birth,
		Email:     strPtr(strings.ToLower(req.Email)),
		Phone:     strPtr(onlyDigits(req.Phone)),
		Notes:     strPtr(req.Notes),
	}
	if req.CPF != nil {
		enc, err := h.sealCPF(*req.CPF)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrInvalidCPF.Error())
			return
		}
		if enc != nil {
			p.CPFEncrypted, p.CPFNonce, p.CPFKeyVersion, p.CPFHash = enc.Ciphertext, enc.Nonce, &enc.KeyVersion, &enc.Hash
		}
	}
	err := h.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if p.CPFHash != nil {
			taken, err := repo.PatientCPFTaken(r.Context(), tx, clinicID, *p.CPFHash, nil)
			if err != nil {
				return err
			}
			if taken {
				return errCPFTaken
			}
		}
		if req.Address != nil {
			id, err := repo.CreateAddress(r.Context(), tx, req.Address.toRepo())
			if err != nil {
				return err
			}
			p.AddressID = &id
		}
		return repo.CreatePatient(r.Context(), tx, p)
	})
	if err != nil {
		h.patientWriteError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "PATIENT_CREATED", ResourceType: "PATIENT", ResourceID: &p.ID, PatientID: &p.ID})
	out, err := h.loadPatientOutput(r, p.ID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "patientId")
	if !ok {
		return
	}
	var req PatientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var enc *repo.EncryptedCPF
	if req.CPF != nil {
		var err error
		if enc, err = h.sealCPF(*req.CPF); err != nil {
			writeError(w, http.StatusBadRequest, ErrInvalidCPF.Error())
			return
		}
	}
	birth, _ := ParseDate(req.BirthDate)
	clinicID := tenant.ID(r.Context())
	err := h.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.PatientByIDAndClinic(r.Context(), tx, id, clinicID)
		if err != nil {
			return err
		}
		addrID := cur.AddressID
		if req.Address != nil {
			nid, err := repo.UpsertAddress(r.Context(), tx, cur.AddressID, req.Address.toRepo())
			if err != nil {
				return err
			}
			addrID = &nid
		}
		if err := repo.UpdatePatient(r.Context(), tx, id, clinicID, repo.PatientUpdate{
			FullName:  strings.TrimSpace(req.FullName),
			BirthDate: birth,
			Email:     strPtr(strings.ToLower(req.Email)),
			Phone:     strPtr(onlyDigits(req.Phone)),
			Notes:     strPtr(req.Notes),
			AddressID: addrID,
		}); err != nil {
			return err
		}
		if req.CPF == nil {
			return nil
		}
		if enc != nil {
			taken, err := repo.PatientCPFTaken(r.Context(), tx, clinicID, enc.Hash, &id)
			if err != nil {
				return err
			}
			if taken {
				return errCPFTaken
			}
		}
		return repo.SetPatientCPF(r.Context(), tx, id, clinicID, enc)
	})
	if err != nil {
		h.patientWriteError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "PATIENT_UPDATED", ResourceType: "PATIENT", ResourceID: &id, PatientID: &id})
	out, err := h.loadPatientOutput(r, id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) patientWriteError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errCPFTaken) || repo.IsUniqueViolation(err) {
		writeError(w, http.StatusConflict, errCPFTaken.Error())
		return
	}
	h.storeError(w, r, err)
}

func (h *Handler) SoftDeletePatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "patientId")
	if !ok {
		return
	}
	if err := repo.SoftDeletePatient(r.Context(), h.DB, id, tenant.ID(r.Context())); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: "PATIENT_DELETED", ResourceType: "PATIENT", ResourceID: &id, PatientID: &id})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) patientExists(r *http.Request, id uuid.UUID) (bool, error) {
	_, err := repo.PatientByIDAndClinic(r.Context(), h.DB, id, tenant.ID(r.Context()))
	if repo.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}
