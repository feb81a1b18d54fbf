package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/billing"
	"github.com/mdnsystems/OmniCare-sub005/internal/middleware"
)

var (
	anyRole     = []string{auth.RoleSuperAdmin, auth.RoleAdmin, auth.RoleProfessional, auth.RoleReceptionist}
	adminRoles  = []string{auth.RoleSuperAdmin, auth.RoleAdmin}
	recordRead  = []string{auth.RoleAdmin, auth.RoleProfessional}
	recordWrite = []string{auth.RoleProfessional}
)

func allow(roles []string, fn http.HandlerFunc) http.Handler {
	return middleware.RequireRole(roles...)(fn)
}

// NewRouter monta as rotas da API. ws atende /api/chat/ws (nil desliga o socket).
// Os middlewares de borda (request id, log, recover, timeout, CORS, gzip) ficam com quem chama.
func NewRouter(h *Handler, ws http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)

	// Públicas
	r.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/forgot-password", h.ForgotPassword).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/reset-password", h.ResetPassword).Methods(http.MethodPost)
	r.Handle("/api/errors", middleware.OptionalAuth(h.Cfg.JWTSecret, http.HandlerFunc(h.IngestFrontendError))).Methods(http.MethodPost)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.RequireAuthMiddleware(h.Cfg.JWTSecret))
	protected.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	protected.HandleFunc("/me/password", h.ChangeMyPassword).Methods(http.MethodPut)

	// Backoffice (SUPER_ADMIN), sem tenant.
	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireSuperAdmin)
	admin.HandleFunc("/clinics", h.ListClinics).Methods(http.MethodGet)
	admin.HandleFunc("/clinics", h.CreateClinic).Methods(http.MethodPost)
	admin.HandleFunc("/clinics/{id}", h.GetClinic).Methods(http.MethodGet)
	admin.HandleFunc("/clinics/{id}", h.UpdateClinic).Methods(http.MethodPut)
	admin.HandleFunc("/clinics/{id}/activate", h.ActivateClinic).Methods(http.MethodPost)
	admin.HandleFunc("/clinics/{id}/deactivate", h.DeactivateClinic).Methods(http.MethodPost)
	admin.HandleFunc("/clinics/{id}/block-level", h.SetClinicBlockLevel).Methods(http.MethodPut)
	admin.HandleFunc("/invoices", h.ListAllInvoices).Methods(http.MethodGet)
	admin.HandleFunc("/invoices", h.CreateInvoice).Methods(http.MethodPost)
	admin.HandleFunc("/invoices/{id}/pay", h.PayInvoice).Methods(http.MethodPost)
	admin.HandleFunc("/invoices/{id}/cancel", h.CancelInvoice).Methods(http.MethodPost)
	admin.HandleFunc("/billing/sweep", h.RunBillingSweep).Methods(http.MethodPost)
	admin.HandleFunc("/audit-events", h.ListAuditEvents).Methods(http.MethodGet)
	admin.HandleFunc("/errors", h.ListErrorEvents).Methods(http.MethodGet)
	admin.HandleFunc("/maintenance/cleanup-orphan-addresses", h.CleanupOrphanAddresses).Methods(http.MethodPost)

	// Rotas da clínica: tenant resolvido e nível de bloqueio aplicado.
	t := protected.NewRoute().Subrouter()
	t.Use(h.Tenants.Middleware, billing.Guard("/api/billing"))

	t.Handle("/dashboard", allow(anyRole, h.Dashboard)).Methods(http.MethodGet)

	t.Handle("/clinic", allow(anyRole, h.GetMyClinic)).Methods(http.MethodGet)
	t.Handle("/clinic", allow(adminRoles, h.UpdateMyClinic)).Methods(http.MethodPut)

	t.Handle("/users", allow(adminRoles, h.ListUsers)).Methods(http.MethodGet)
	t.Handle("/users", allow(adminRoles, h.CreateUser)).Methods(http.MethodPost)
	t.Handle("/users/{id}", allow(adminRoles, h.GetUser)).Methods(http.MethodGet)
	t.Handle("/users/{id}", allow(adminRoles, h.UpdateUser)).Methods(http.MethodPatch)
	t.Handle("/users/{id}", allow(adminRoles, h.DeactivateUser)).Methods(http.MethodDelete)

	t.Handle("/professionals", allow(anyRole, h.ListProfessionals)).Methods(http.MethodGet)
	t.Handle("/professionals", allow(adminRoles, h.CreateProfessional)).Methods(http.MethodPost)
	t.Handle("/professionals/{id}", allow(anyRole, h.GetProfessional)).Methods(http.MethodGet)
	t.Handle("/professionals/{id}", allow(adminRoles, h.UpdateProfessional)).Methods(http.MethodPut)
	t.Handle("/professionals/{id}", allow(adminRoles, h.DeleteProfessional)).Methods(http.MethodDelete)

	t.Handle("/patients", allow(anyRole, h.ListPatients)).Methods(http.MethodGet)
	t.Handle("/patients", allow(anyRole, h.CreatePatient)).Methods(http.MethodPost)
	t.Handle("/patients/{patientId}", allow(anyRole, h.GetPatient)).Methods(http.MethodGet)
	t.Handle("/patients/{patientId}", allow(anyRole, h.UpdatePatient)).Methods(http.MethodPut)
	t.Handle("/patients/{patientId}", allow(adminRoles, h.SoftDeletePatient)).Methods(http.MethodDelete)

	t.Handle("/patients/{patientId}/records", allow(recordRead, h.ListRecordEntries)).Methods(http.MethodGet)
	t.Handle("/patients/{patientId}/records", allow(recordWrite, h.CreateRecordEntry)).Methods(http.MethodPost)
	t.Handle("/patients/{patientId}/records/{entryId}", allow(recordRead, h.GetRecordEntry)).Methods(http.MethodGet)
	t.Handle("/patients/{patientId}/records/{entryId}/amend", allow(recordWrite, h.AmendRecordEntry)).Methods(http.MethodPost)
	t.Handle("/patients/{patientId}/access-logs", allow([]string{auth.RoleAdmin}, h.ListAccessLogs)).Methods(http.MethodGet)

	t.Handle("/patients/{patientId}/anamneses", allow(recordRead, h.ListAnamneses)).Methods(http.MethodGet)
	t.Handle("/patients/{patientId}/anamneses", allow(recordRead, h.CreateAnamnesis)).Methods(http.MethodPost)
	t.Handle("/anamneses/{id}", allow(recordRead, h.GetAnamnesis)).Methods(http.MethodGet)
	t.Handle("/anamneses/{id}", allow(recordRead, h.UpdateAnamnesis)).Methods(http.MethodPut)
	t.Handle("/anamneses/{id}", allow(recordRead, h.DeleteAnamnesis)).Methods(http.MethodDelete)

	t.Handle("/appointments", allow(anyRole, h.ListAppointments)).Methods(http.MethodGet)
	t.Handle("/appointments", allow(anyRole, h.CreateAppointment)).Methods(http.MethodPost)
	t.Handle("/appointments/{id}", allow(anyRole, h.GetAppointment)).Methods(http.MethodGet)
	t.Handle("/appointments/{id}", allow(anyRole, h.PatchAppointment)).Methods(http.MethodPatch)
	t.Handle("/appointments/{id}/status", allow(anyRole, h.SetAppointmentStatus)).Methods(http.MethodPost)

	t.Handle("/exams", allow(anyRole, h.ListExams)).Methods(http.MethodGet)
	t.Handle("/exams", allow(anyRole, h.CreateExam)).Methods(http.MethodPost)
	t.Handle("/exams/{id}", allow(anyRole, h.GetExam)).Methods(http.MethodGet)
	t.Handle("/exams/{id}", allow(anyRole, h.UpdateExam)).Methods(http.MethodPut)
	t.Handle("/exams/{id}/status", allow(anyRole, h.SetExamStatus)).Methods(http.MethodPost)

	t.Handle("/billing/status", allow(anyRole, h.BillingStatus)).Methods(http.MethodGet)
	t.Handle("/billing/invoices", allow(adminRoles, h.ListMyInvoices)).Methods(http.MethodGet)
	t.Handle("/billing/invoices/{id}", allow(adminRoles, h.GetMyInvoice)).Methods(http.MethodGet)
	t.Handle("/billing/invoices/{id}/pdf", allow(adminRoles, h.MyInvoicePDF)).Methods(http.MethodGet)

	t.Handle("/chat/conversations", allow(auth.TenantRoles, h.ListConversations)).Methods(http.MethodGet)
	t.Handle("/chat/messages", allow(auth.TenantRoles, h.ListChatMessages)).Methods(http.MethodGet)
	t.Handle("/chat/messages", allow(auth.TenantRoles, h.SendChatMessage)).Methods(http.MethodPost)
	t.Handle("/chat/messages/{id}/read", allow(auth.TenantRoles, h.MarkChatMessageRead)).Methods(http.MethodPost)
	t.Handle("/chat/unread", allow(auth.TenantRoles, h.ChatUnread)).Methods(http.MethodGet)
	if ws != nil {
		t.Handle("/chat/ws", allow(auth.TenantRoles, ws.ServeHTTP)).Methods(http.MethodGet)
	}
	return r
}
