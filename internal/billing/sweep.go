package billing

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mdnsystems/OmniCare-sub005/internal/email"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const auditActionBlockLevelChanged = "CLINIC_BLOCK_LEVEL_CHANGED"

// Notifier avisa os admins da clínica quando o nível sobe.
type Notifier interface {
	SendBillingNotice(to string, n email.BillingNotice) error
}

type Sweeper struct {
	Store       Store
	Notifier    Notifier // nil desliga os avisos
	Thresholds  Thresholds
	Location    *time.Location
	BillingURL  string
	Concurrency int
	Log         zerolog.Logger
	// OnLevelChange é chamado após persistir um novo nível (ex.: invalidar o cache de tenant).
	OnLevelChange func(clinicID uuid.UUID)
	Now           func() time.Time
}

// Result conta o que uma passada do sweep fez.
type Result struct {
	Clinics       int
	MarkedOverdue int64
	Changed       int
	Failed        int
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run recalcula todas as clínicas ativas em paralelo (limitado por Concurrency).
// Falha de uma clínica é logada e contada; não interrompe as demais.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	clinics, err := s.Store.ActiveClinics(ctx)
	if err != nil {
		return Result{}, err
	}
	limit := s.Concurrency
	if limit <= 0 {
		limit = 4
	}
	var marked, changed, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, c := range clinics {
		c := c
		g.Go(func() error {
			n, ch, err := s.sweepClinic(gctx, c)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				atomic.AddInt64(&failed, 1)
				s.Log.Error().Err(err).Str("clinic_id", c.ID.String()).Msg("sweep clinic")
				return nil
			}
			atomic.AddInt64(&marked, n)
			if ch {
				atomic.AddInt64(&changed, 1)
			}
			return nil
		})
	}
	err = g.Wait()
	res := Result{Clinics: len(clinics), MarkedOverdue: marked, Changed: int(changed), Failed: int(failed)}
	s.Log.Info().Int("clinics", res.Clinics).Int64("marked_overdue", res.MarkedOverdue).
		Int("changed", res.Changed).Int("failed", res.Failed).Msg("billing sweep done")
	return res, err
}

// Recompute recalcula uma única clínica (após pagamento ou cancelamento de fatura).
func (s *Sweeper) Recompute(ctx context.Context, clinicID uuid.UUID) (Level, error) {
	c, err := s.Store.ClinicByID(ctx, clinicID)
	if err != nil {
		return LevelNone, err
	}
	if _, _, err := s.sweepClinic(ctx, *c); err != nil {
		return LevelNone, err
	}
	c, err = s.Store.ClinicByID(ctx, clinicID)
	if err != nil {
		return LevelNone, err
	}
	return Effective(*c), nil
}

func (s *Sweeper) sweepClinic(ctx context.Context, c repo.Clinic) (int64, bool, error) {
	invoices, err := s.Store.OpenInvoices(ctx, c.ID)
	if err != nil {
		return 0, false, err
	}
	now := s.now()
	var toMark []uuid.UUID
	for _, inv := range invoices {
		if inv.Status == repo.InvoicePending && InvoiceStatusAt(inv, now, s.Location) == repo.InvoiceOverdue {
			toMark = append(toMark, inv.ID)
		}
	}
	marked, err := s.Store.MarkOverdue(ctx, toMark)
	if err != nil {
		return 0, false, err
	}

	a := s.Thresholds.Assess(invoices, now, s.Location)
	prev, ok := ParseLevel(c.BlockLevel)
	if !ok {
		prev = LevelNone
	}
	if a.Level == prev {
		return marked, false, nil
	}
	if err := s.Store.SetLevel(ctx, c.ID, a.Level); err != nil {
		return marked, false, err
	}
	if s.OnLevelChange != nil {
		s.OnLevelChange(c.ID)
	}
	s.Log.Info().Str("clinic_id", c.ID.String()).Str("from", string(prev)).Str("to", string(a.Level)).
		Int("days_overdue", a.DaysOverdue).Msg("block level changed")

	clinicID := c.ID
	resource := "CLINIC"
	sev := "INFO"
	if a.Level.Rank() > prev.Rank() {
		sev = "WARN"
	}
	if err := s.Store.Audit(ctx, &repo.AuditEvent{
		Action:       auditActionBlockLevelChanged,
		ActorType:    repo.ActorSystem,
		ClinicID:     &clinicID,
		ResourceType: &resource,
		ResourceID:   &clinicID,
		Severity:     sev,
		Metadata: repo.JSONMetadata(map[string]interface{}{
			"from": prev, "to": a.Level, "days_overdue": a.DaysOverdue, "open_cents": a.OpenCents,
		}),
	}); err != nil {
		s.Log.Warn().Err(err).Str("clinic_id", c.ID.String()).Msg("audit block level")
	}
	// com override manual o nível efetivo não muda, então não há aviso
	if a.Level.Rank() > prev.Rank() && !hasOverride(c) {
		s.notify(ctx, c, a)
	}
	return marked, true, nil
}

func hasOverride(c repo.Clinic) bool {
	return c.BlockLevelOverride != nil && *c.BlockLevelOverride != ""
}

func (s *Sweeper) notify(ctx context.Context, c repo.Clinic, a Assessment) {
	if s.Notifier == nil {
		return
	}
	to, err := s.Store.ClinicAdminEmails(ctx, c.ID)
	if err != nil {
		s.Log.Warn().Err(err).Str("clinic_id", c.ID.String()).Msg("load clinic admins")
		return
	}
	if c.Email != nil && *c.Email != "" {
		to = append(to, *c.Email)
	}
	n := email.BillingNotice{
		ClinicName:  c.Name,
		Level:       string(a.Level),
		DaysOverdue: a.DaysOverdue,
		OpenCents:   a.OpenCents,
		BillingURL:  s.BillingURL,
	}
	seen := map[string]bool{}
	for _, addr := range to {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		if err := s.Notifier.SendBillingNotice(addr, n); err != nil {
			s.Log.Warn().Err(err).Str("clinic_id", c.ID.String()).Msg("billing notice")
		}
	}
}

// Loop roda Run a cada interval até ctx ser cancelado. A primeira passada é imediata.
func (s *Sweeper) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			s.Log.Error().Err(err).Msg("billing sweep")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
