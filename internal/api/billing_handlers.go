package api

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mdnsystems/OmniCare-sub005/internal/billing"
	"github.com/mdnsystems/OmniCare-sub005/internal/email"
	"github.com/mdnsystems/OmniCare-sub005/internal/pdf"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

var referenceMonthRegex = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type InvoiceOutput struct {
	ID             string  `json:"id"`
	ClinicID       string  `json:"clinic_id"`
	ReferenceMonth string  `json:"reference_month"`
	Description    string  `json:"description"`
	AmountCents    int64   `json:"amount_cents"`
	Amount         string  `json:"amount"`
	DueDate        string  `json:"due_date"`
	Status         string  `json:"status"`
	DaysOverdue    int     `json:"days_overdue,omitempty"`
	PaidAt         *string `json:"paid_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func (h *Handler) billingLocation() *time.Location {
	if h.Billing != nil && h.Billing.Location != nil {
		return h.Billing.Location
	}
	return h.Cfg.ReminderLocation()
}

// invoiceOutput mostra o status efetivo em now: PENDING vencida aparece como OVERDUE
// mesmo antes do próximo sweep.
func (h *Handler) invoiceOutput(inv *repo.Invoice) InvoiceOutput {
	now, loc := h.clock(), h.billingLocation()
	status := billing.InvoiceStatusAt(*inv, now, loc)
	out := InvoiceOutput{
		ID:             inv.ID.String(),
		ClinicID:       inv.ClinicID.String(),
		ReferenceMonth: inv.ReferenceMonth,
		Description:    inv.Description,
		AmountCents:    inv.AmountCents,
		Amount:         email.FormatBRL(inv.AmountCents),
		DueDate:        inv.DueDate.Format(dateLayout),
		Status:         status,
		PaidAt:         fmtTimePtr(inv.PaidAt),
		CreatedAt:      inv.CreatedAt.Format(timeLayout),
	}
	if status == repo.InvoiceOverdue {
		out.DaysOverdue = billing.DaysOverdue(inv.DueDate, now, loc)
	}
	return out
}

type invoiceListQuery struct {
	ClinicID uuid.UUID `schema:"clinic_id"`
	Status   string    `schema:"status"`
}

func isInvoiceStatus(s string) bool {
	switch s {
	case repo.InvoicePending, repo.InvoicePaid, repo.InvoiceOverdue, repo.InvoiceCancelled:
		return true
	}
	return false
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request, clinicID *uuid.UUID) {
	var q invoiceListQuery
	if err := decodeQuery(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}
	q.Status = strings.ToUpper(strings.TrimSpace(q.Status))
	if q.Status != "" && !isInvoiceStatus(q.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if clinicID == nil {
		clinicID = uuidPtr(q.ClinicID)
	}
	page := pageFrom(r)
	list, total, err := repo.ListInvoices(r.Context(), h.DB, repo.InvoiceFilter{ClinicID: clinicID, Status: q.Status}, page)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := make([]InvoiceOutput, 0, len(list))
	for i := range list {
		out = append(out, h.invoiceOutput(&list[i]))
	}
	listResponse(w, "invoices", out, total, page)
}

// ListAllInvoices (SUPER_ADMIN) filtra por clinic_id e status.
func (h *Handler) ListAllInvoices(w http.ResponseWriter, r *http.Request) {
	h.listInvoices(w, r, nil)
}

// ListMyInvoices lista as faturas da clínica do tenant.
func (h *Handler) ListMyInvoices(w http.ResponseWriter, r *http.Request) {
	id := tenant.ID(r.Context())
	h.listInvoices(w, r, &id)
}

func (h *Handler) GetMyInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := repo.InvoiceByIDAndClinic(r.Context(), h.DB, id, tenant.ID(r.Context()))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.invoiceOutput(inv))
}

// MyInvoicePDF devolve a fatura em PDF com QR apontando para a página da fatura.
func (h *Handler) MyInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	clinicID := tenant.ID(r.Context())
	inv, err := repo.InvoiceByIDAndClinic(r.Context(), h.DB, id, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	c, err := repo.ClinicByID(r.Context(), h.DB, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out := h.invoiceOutput(inv)
	doc := pdf.InvoiceDoc{
		Number:         inv.ReferenceMonth + "-" + inv.ID.String()[:8],
		ClinicName:     c.Name,
		ClinicCNPJ:     formatCNPJ(strFromPtr(c.CNPJ)),
		ReferenceMonth: inv.ReferenceMonth,
		Description:    inv.Description,
		Amount:         out.Amount,
		DueDate:        inv.DueDate.Format("02/01/2006"),
		Status:         out.Status,
		IssuedAt:       h.clock().In(h.billingLocation()).Format("02/01/2006 15:04"),
	}
	if inv.PaidAt != nil {
		doc.PaidAt = inv.PaidAt.In(h.billingLocation()).Format("02/01/2006")
	}
	if base := strings.TrimRight(h.Cfg.AppPublicURL, "/"); base != "" {
		doc.VerificationURL = base + "/billing/invoices/" + inv.ID.String()
	}
	b, err := pdf.BuildInvoicePDF(doc)
	if err != nil {
		h.Log.Error().Err(err).Str("invoice_id", inv.ID.String()).Msg("invoice pdf")
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="fatura-`+inv.ReferenceMonth+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func formatCNPJ(s string) string {
	d := onlyDigits(s)
	if len(d) != 14 {
		return s
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}

type CreateInvoiceRequest struct {
	ClinicID       uuid.UUID `json:"clinic_id"`
	ReferenceMonth string    `json:"reference_month" validate:"required"`
	Description    string    `json:"description" validate:"required,max=300"`
	AmountCents    int64     `json:"amount_cents" validate:"gt=0"`
	DueDate        string    `json:"due_date" validate:"required,date"`
}

// CreateInvoice (SUPER_ADMIN) emite fatura para uma clínica e recalcula o nível.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.ClinicID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "clinic_id required")
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !referenceMonthRegex.MatchString(req.ReferenceMonth) {
		writeError(w, http.StatusBadRequest, "invalid reference_month")
		return
	}
	if _, err := repo.ClinicByID(r.Context(), h.DB, req.ClinicID); err != nil {
		h.referenceError(w, r, ignoreNotFound(err), "clinic not found")
		return
	}
	due, _ := ParseDate(req.DueDate)
	inv := &repo.Invoice{
		ClinicID:       req.ClinicID,
		ReferenceMonth: req.ReferenceMonth,
		Description:    strings.TrimSpace(req.Description),
		AmountCents:    req.AmountCents,
		DueDate:        *due,
	}
	if err := repo.CreateInvoice(r.Context(), h.DB, inv); err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{
		Action: "INVOICE_CREATED", ResourceType: "INVOICE", ResourceID: &inv.ID, ClinicID: &inv.ClinicID,
		Metadata: map[string]interface{}{"amount_cents": inv.AmountCents, "due_date": req.DueDate},
	})
	h.recomputeBilling(r, inv.ClinicID)
	writeJSON(w, http.StatusCreated, h.invoiceOutput(inv))
}

func (h *Handler) PayInvoice(w http.ResponseWriter, r *http.Request) {
	h.closeInvoice(w, r, repo.InvoicePaid, "INVOICE_PAID")
}

func (h *Handler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	h.closeInvoice(w, r, repo.InvoiceCancelled, "INVOICE_CANCELLED")
}

// closeInvoice paga ou cancela a fatura e recalcula na hora o nível da clínica.
func (h *Handler) closeInvoice(w http.ResponseWriter, r *http.Request, to, action string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := repo.SetInvoiceStatus(r.Context(), h.DB, id, to)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{Action: action, ResourceType: "INVOICE", ResourceID: &inv.ID, ClinicID: &inv.ClinicID})
	h.recomputeBilling(r, inv.ClinicID)
	writeJSON(w, http.StatusOK, h.invoiceOutput(inv))
}

// recomputeBilling falha em silêncio (logada): o sweep periódico corrige depois.
func (h *Handler) recomputeBilling(r *http.Request, clinicID uuid.UUID) {
	defer h.invalidateTenant(clinicID)
	if h.Billing == nil {
		return
	}
	level, err := h.Billing.Recompute(r.Context(), clinicID)
	if err != nil {
		h.Log.Error().Err(err).Str("clinic_id", clinicID.String()).Msg("billing recompute")
		return
	}
	h.Log.Debug().Str("clinic_id", clinicID.String()).Str("level", level.String()).Msg("billing recomputed")
}

type BillingStatusOutput struct {
	Level         string `json:"level"`
	ComputedLevel string `json:"computed_level"`
	Override      bool   `json:"override"`
	DaysOverdue   int    `json:"days_overdue"`
	OpenCents     int64  `json:"open_amount_cents"`
	OpenAmount    string `json:"open_amount"`
	OverdueCount  int    `json:"overdue_invoices"`
	NextDueDate   string `json:"next_due_date,omitempty"`
}

// BillingStatus resume a situação da clínica do tenant: nível, dias de atraso e valor em aberto.
func (h *Handler) BillingStatus(w http.ResponseWriter, r *http.Request) {
	clinicID := tenant.ID(r.Context())
	c, err := repo.ClinicByID(r.Context(), h.DB, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	invoices, err := repo.OpenInvoicesByClinic(r.Context(), h.DB, clinicID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	a := h.Cfg.BillingThresholds().Assess(invoices, h.clock(), h.billingLocation())
	out := BillingStatusOutput{
		Level:         billing.Effective(*c).String(),
		ComputedLevel: a.Level.String(),
		Override:      c.BlockLevelOverride != nil && *c.BlockLevelOverride != "",
		DaysOverdue:   a.DaysOverdue,
		OpenCents:     a.OpenCents,
		OpenAmount:    email.FormatBRL(a.OpenCents),
		OverdueCount:  len(a.Overdue),
	}
	for _, inv := range invoices {
		if billing.DaysOverdue(inv.DueDate, h.clock(), h.billingLocation()) <= 0 {
			out.NextDueDate = inv.DueDate.Format(dateLayout)
			break
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type SweepOutput struct {
	Clinics       int   `json:"clinics"`
	MarkedOverdue int64 `json:"marked_overdue"`
	Changed       int   `json:"changed"`
	Failed        int   `json:"failed"`
}

// RunBillingSweep (SUPER_ADMIN) dispara uma passada completa do sweep.
func (h *Handler) RunBillingSweep(w http.ResponseWriter, r *http.Request) {
	if h.Billing == nil {
		writeError(w, http.StatusServiceUnavailable, "billing sweep disabled")
		return
	}
	res, err := h.Billing.Run(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.audit(r, auditEntry{
		Action: "BILLING_SWEEP", ResourceType: "BILLING",
		Metadata: map[string]interface{}{"clinics": res.Clinics, "changed": res.Changed, "failed": res.Failed},
	})
	writeJSON(w, http.StatusOK, SweepOutput{Clinics: res.Clinics, MarkedOverdue: res.MarkedOverdue, Changed: res.Changed, Failed: res.Failed})
}
