package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"gorm.io/gorm"
)

// Store é o acesso a dados do sweep; GormStore é a implementação real.
type Store interface {
	ActiveClinics(ctx context.Context) ([]repo.Clinic, error)
	ClinicByID(ctx context.Context, id uuid.UUID) (*repo.Clinic, error)
	OpenInvoices(ctx context.Context, clinicID uuid.UUID) ([]repo.Invoice, error)
	MarkOverdue(ctx context.Context, ids []uuid.UUID) (int64, error)
	SetLevel(ctx context.Context, clinicID uuid.UUID, level Level) error
	ClinicAdminEmails(ctx context.Context, clinicID uuid.UUID) ([]string, error)
	Audit(ctx context.Context, ev *repo.AuditEvent) error
}

type GormStore struct {
	DB *gorm.DB
}

func (s GormStore) ActiveClinics(ctx context.Context) ([]repo.Clinic, error) {
	return repo.ActiveClinics(ctx, s.DB)
}

func (s GormStore) ClinicByID(ctx context.Context, id uuid.UUID) (*repo.Clinic, error) {
	return repo.ClinicByID(ctx, s.DB, id)
}

func (s GormStore) OpenInvoices(ctx context.Context, clinicID uuid.UUID) ([]repo.Invoice, error) {
	return repo.OpenInvoicesByClinic(ctx, s.DB, clinicID)
}

func (s GormStore) MarkOverdue(ctx context.Context, ids []uuid.UUID) (int64, error) {
	return repo.MarkInvoicesOverdue(ctx, s.DB, ids)
}

func (s GormStore) SetLevel(ctx context.Context, clinicID uuid.UUID, level Level) error {
	return repo.SetClinicBlockLevel(ctx, s.DB, clinicID, string(level))
}

func (s GormStore) ClinicAdminEmails(ctx context.Context, clinicID uuid.UUID) ([]string, error) {
	admins, err := repo.ClinicAdmins(ctx, s.DB, clinicID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(admins))
	for _, a := range admins {
		out = append(out, a.Email)
	}
	return out, nil
}

func (s GormStore) Audit(ctx context.Context, ev *repo.AuditEvent) error {
	return repo.CreateAuditEvent(ctx, s.DB, ev)
}
