package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	InvoicePending   = "PENDING"
	InvoicePaid      = "PAID"
	InvoiceOverdue   = "OVERDUE"
	InvoiceCancelled = "CANCELLED"
)

// Invoice é a fatura da plataforma para a clínica. DueDate é uma data (sem hora).
type Invoice struct {
	Model
	ClinicID       uuid.UUID `gorm:"type:uuid"`
	ReferenceMonth string    // YYYY-MM
	Description    string
	AmountCents    int64
	DueDate        time.Time `gorm:"type:date"`
	Status         string
	PaidAt         *time.Time
}

type InvoiceFilter struct {
	ClinicID *uuid.UUID
	Status   string
}

func ListInvoices(ctx context.Context, db *gorm.DB, f InvoiceFilter, page Page) ([]Invoice, int64, error) {
	q := db.WithContext(ctx).Model(&Invoice{})
	if f.ClinicID != nil {
		q = q.Scopes(byClinic(*f.ClinicID))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var list []Invoice
	total, err := countAndFind(q, page, "due_date DESC, created_at DESC", &list)
	return list, total, err
}

func InvoiceByIDAndClinic(ctx context.Context, db *gorm.DB, id, clinicID uuid.UUID) (*Invoice, error) {
	var inv Invoice
	if err := db.WithContext(ctx).Scopes(byClinic(clinicID)).First(&inv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func CreateInvoice(ctx context.Context, db *gorm.DB, inv *Invoice) error {
	if inv.Status == "" {
		inv.Status = InvoicePending
	}
	return db.WithContext(ctx).Create(inv).Error
}

// OpenInvoicesByClinic: faturas PENDING ou OVERDUE, ou seja, que contam para o nível de bloqueio.
func OpenInvoicesByClinic(ctx context.Context, db *gorm.DB, clinicID uuid.UUID) ([]Invoice, error) {
	var list []Invoice
	err := db.WithContext(ctx).Scopes(byClinic(clinicID)).
		Where("status IN ?", []string{InvoicePending, InvoiceOverdue}).
		Order("due_date").Find(&list).Error
	return list, err
}

// MarkInvoicesOverdue passa para OVERDUE as faturas ainda PENDING entre os ids.
func MarkInvoicesOverdue(ctx context.Context, db *gorm.DB, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Model(&Invoice{}).
		Where("id IN ? AND status = ?", ids, InvoicePending).
		Update("status", InvoiceOverdue)
	return res.RowsAffected, res.Error
}

// SetInvoiceStatus muda o status de uma fatura aberta; PAID grava paid_at.
// Faturas já pagas ou canceladas devolvem ErrInvalidTransition.
func SetInvoiceStatus(ctx context.Context, db *gorm.DB, id uuid.UUID, to string) (*Invoice, error) {
	var out Invoice
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&out, "id = ?", id).Error; err != nil {
			return err
		}
		if out.Status != InvoicePending && out.Status != InvoiceOverdue {
			return ErrInvalidTransition
		}
		updates := map[string]interface{}{"status": to}
		if to == InvoicePaid {
			now := time.Now()
			updates["paid_at"] = now
			out.PaidAt = &now
		}
		out.Status = to
		return tx.Model(&out).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
