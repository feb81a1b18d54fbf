package billing

import (
	"testing"
	"time"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLevelForDaysOverdue(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		days int
		want Level
	}{
		{-5, LevelNone},
		{0, LevelNone},
		{1, LevelNotification},
		{14, LevelNotification},
		{15, LevelRestriction},
		{29, LevelRestriction},
		{30, LevelBlocked},
		{400, LevelBlocked},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, th.LevelForDaysOverdue(tc.days), "days=%d", tc.days)
	}
}

func TestLevelForDaysOverdueCustomThresholds(t *testing.T) {
	th := Thresholds{NotifyDays: 3, RestrictDays: 3, BlockDays: 10}
	assert.Equal(t, LevelNone, th.LevelForDaysOverdue(2))
	assert.Equal(t, LevelRestriction, th.LevelForDaysOverdue(3))
	assert.Equal(t, LevelBlocked, th.LevelForDaysOverdue(10))
}

func TestDaysOverdue(t *testing.T) {
	sp, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	due := date(2026, 3, 10)
	// 02:00 UTC em 11/03 ainda é 10/03 em São Paulo
	assert.Equal(t, 0, DaysOverdue(due, time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), sp))
	assert.Equal(t, 1, DaysOverdue(due, time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), time.UTC))
	assert.Equal(t, 31, DaysOverdue(due, date(2026, 4, 10), nil))
	assert.Equal(t, -9, DaysOverdue(due, date(2026, 3, 1), nil))
}

func TestInvoiceStatusAt(t *testing.T) {
	now := date(2026, 5, 20)
	assert.Equal(t, repo.InvoiceOverdue, InvoiceStatusAt(repo.Invoice{Status: repo.InvoicePending, DueDate: date(2026, 5, 19)}, now, nil))
	assert.Equal(t, repo.InvoicePending, InvoiceStatusAt(repo.Invoice{Status: repo.InvoicePending, DueDate: date(2026, 5, 20)}, now, nil))
	assert.Equal(t, repo.InvoicePaid, InvoiceStatusAt(repo.Invoice{Status: repo.InvoicePaid, DueDate: date(2026, 1, 1)}, now, nil))
	assert.Equal(t, repo.InvoiceCancelled, InvoiceStatusAt(repo.Invoice{Status: repo.InvoiceCancelled, DueDate: date(2026, 1, 1)}, now, nil))
}

func TestAssess(t *testing.T) {
	now := date(2026, 6, 30)
	th := DefaultThresholds()
	invoices := []repo.Invoice{
		{Status: repo.InvoicePaid, DueDate: date(2026, 1, 1), AmountCents: 1000},
		{Status: repo.InvoiceCancelled, DueDate: date(2026, 1, 1), AmountCents: 1000},
		{Status: repo.InvoiceOverdue, DueDate: date(2026, 6, 10), AmountCents: 5000},
		{Status: repo.InvoicePending, DueDate: date(2026, 7, 10), AmountCents: 7000},
	}
	a := th.Assess(invoices, now, nil)
	assert.Equal(t, LevelRestriction, a.Level)
	assert.Equal(t, 20, a.DaysOverdue)
	assert.Equal(t, int64(12000), a.OpenCents)
	assert.Len(t, a.Overdue, 1)

	assert.Equal(t, LevelNone, th.LevelForInvoices(nil, now, nil))
	assert.Equal(t, LevelNone, th.LevelForInvoices(invoices[:2], now, nil), "paid and cancelled never block")
}

func TestParseLevelAndMax(t *testing.T) {
	l, ok := ParseLevel("BLOCKED")
	assert.True(t, ok)
	assert.Equal(t, LevelBlocked, l)
	_, ok = ParseLevel("blocked")
	assert.False(t, ok)
	assert.Equal(t, LevelRestriction, Max(LevelNotification, LevelRestriction))
	assert.Equal(t, LevelBlocked, Max(LevelBlocked, LevelNone))
}

func TestEffective(t *testing.T) {
	none := "NONE"
	assert.Equal(t, LevelBlocked, Effective(repo.Clinic{BlockLevel: "BLOCKED"}))
	assert.Equal(t, LevelNone, Effective(repo.Clinic{BlockLevel: "BLOCKED", BlockLevelOverride: &none}))
	assert.Equal(t, LevelNone, Effective(repo.Clinic{}))
}
