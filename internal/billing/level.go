// Package billing computes a clinic's block level (nivelBloqueio) from its overdue
// invoices and enforces it on tenant routes.
package billing

import (
	"time"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
)

type Level string

const (
	LevelNone         Level = "NONE"
	LevelNotification Level = "NOTIFICATION"
	LevelRestriction  Level = "RESTRICTION"
	LevelBlocked      Level = "BLOCKED"
)

var rank = map[Level]int{
	LevelNone:         0,
	LevelNotification: 1,
	LevelRestriction:  2,
	LevelBlocked:      3,
}

// ParseLevel aceita apenas os quatro níveis conhecidos.
func ParseLevel(s string) (Level, bool) {
	l := Level(s)
	_, ok := rank[l]
	return l, ok
}

// Rank ordena os níveis; desconhecido conta como NONE.
func (l Level) Rank() int { return rank[l] }

func (l Level) String() string { return string(l) }

func Max(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Thresholds são os dias de atraso a partir dos quais cada nível passa a valer.
type Thresholds struct {
	NotifyDays   int
	RestrictDays int
	BlockDays    int
}

func DefaultThresholds() Thresholds {
	return Thresholds{NotifyDays: 1, RestrictDays: 15, BlockDays: 30}
}

// LevelForDaysOverdue mapeia dias de atraso para o nível, do mais severo para o mais leve.
func (t Thresholds) LevelForDaysOverdue(days int) Level {
	if days <= 0 {
		return LevelNone
	}
	table := []struct {
		min   int
		level Level
	}{
		{t.BlockDays, LevelBlocked},
		{t.RestrictDays, LevelRestriction},
		{t.NotifyDays, LevelNotification},
	}
	for _, row := range table {
		if days >= row.min {
			return row.level
		}
	}
	return LevelNone
}

// DaysOverdue conta dias de calendário entre o vencimento e "hoje" em loc.
// Zero ou negativo quando a fatura ainda não venceu.
func DaysOverdue(due, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	dy, dm, dd := due.Date()
	ny, nm, nd := now.In(loc).Date()
	dueDay := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(today.Sub(dueDay).Hours() / 24)
}

func isOpen(status string) bool {
	return status == repo.InvoicePending || status == repo.InvoiceOverdue
}

// InvoiceStatusAt devolve o status que a fatura deve ter em now: PENDING vencida vira OVERDUE.
func InvoiceStatusAt(inv repo.Invoice, now time.Time, loc *time.Location) string {
	if inv.Status == repo.InvoicePending && DaysOverdue(inv.DueDate, now, loc) > 0 {
		return repo.InvoiceOverdue
	}
	return inv.Status
}

// Assessment resume a situação financeira de uma clínica.
type Assessment struct {
	Level       Level
	DaysOverdue int
	OpenCents   int64
	Overdue     []repo.Invoice
}

// Assess aplica LevelForDaysOverdue à fatura aberta mais atrasada. Pagas e canceladas são ignoradas.
func (t Thresholds) Assess(invoices []repo.Invoice, now time.Time, loc *time.Location) Assessment {
	a := Assessment{Level: LevelNone}
	for _, inv := range invoices {
		if !isOpen(inv.Status) {
			continue
		}
		a.OpenCents += inv.AmountCents
		days := DaysOverdue(inv.DueDate, now, loc)
		if days <= 0 {
			continue
		}
		a.Overdue = append(a.Overdue, inv)
		if days > a.DaysOverdue {
			a.DaysOverdue = days
		}
		a.Level = Max(a.Level, t.LevelForDaysOverdue(days))
	}
	return a
}

// LevelForInvoices é o maior nível entre as faturas abertas.
func (t Thresholds) LevelForInvoices(invoices []repo.Invoice, now time.Time, loc *time.Location) Level {
	return t.Assess(invoices, now, loc).Level
}

// Effective aplica o override manual do super admin sobre o nível calculado.
func Effective(c repo.Clinic) Level {
	l, ok := ParseLevel(c.EffectiveBlockLevel())
	if !ok {
		return LevelNone
	}
	return l
}
