package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CountOpenAppointments conta consultas SCHEDULED/CONFIRMED que começam em [from, to).
func CountOpenAppointments(ctx context.Context, db *gorm.DB, clinicID uuid.UUID, from, to time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&Appointment{}).Scopes(byClinic(clinicID)).
		Where("starts_at >= ? AND starts_at < ?", from, to).
		Where("status IN ?", []string{AppointmentScheduled, AppointmentConfirmed}).
		Count(&n).Error
	return n, err
}

func CountUnreadChat(ctx context.Context, db *gorm.DB, clinicID, userID uuid.UUID) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&ChatMessage{}).Scopes(byClinic(clinicID)).
		Where("recipient_id = ? AND read_at IS NULL", userID).Count(&n).Error
	return n, err
}

// OpenAmountCents soma as faturas PENDING e OVERDUE da clínica.
func OpenAmountCents(ctx context.Context, db *gorm.DB, clinicID uuid.UUID) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&Invoice{}).Select("COALESCE(SUM(amount_cents), 0)").
		Scopes(byClinic(clinicID)).Where("status IN ?", []string{InvoicePending, InvoiceOverdue}).
		Scan(&n).Error
	return n, err
}
