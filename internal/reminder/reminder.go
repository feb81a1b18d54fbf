package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/whatsapp"
)

const auditActionReminderSent = "APPOINTMENT_REMINDER_SENT"

// Sender envia o lembrete para um telefone.
type Sender interface {
	SendReminder(ctx context.Context, phone string, r whatsapp.Reminder) error
}

// Store é a persistência do job.
type Store interface {
	ListAppointmentsForReminder(ctx context.Context, from, to time.Time) ([]repo.AppointmentReminderRow, error)
	MarkReminderSent(ctx context.Context, appointmentID uuid.UUID) error
	Audit(ctx context.Context, ev *repo.AuditEvent) error
}

type GormStore struct {
	DB *gorm.DB
}

func (s GormStore) ListAppointmentsForReminder(ctx context.Context, from, to time.Time) ([]repo.AppointmentReminderRow, error) {
	return repo.ListAppointmentsForReminder(ctx, s.DB, from, to)
}

func (s GormStore) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	return repo.MarkReminderSent(ctx, s.DB, id)
}

func (s GormStore) Audit(ctx context.Context, ev *repo.AuditEvent) error {
	return repo.CreateAuditEvent(ctx, s.DB, ev)
}

// Job envia os lembretes das consultas do dia alvo (hoje + DaysAhead no fuso Location).
type Job struct {
	Store     Store
	Sender    Sender // nil: nada é enviado e tudo conta como skipped
	Location  *time.Location
	DaysAhead int
	Log       zerolog.Logger
	Now       func() time.Time
}

type Result struct {
	Date    time.Time
	Found   int
	Sent    int
	Skipped int
}

// TargetDay devolve [início, fim) do dia alvo em loc.
func TargetDay(now time.Time, loc *time.Location, daysAhead int) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	n := now.In(loc)
	start := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, daysAhead)
	return start, start.AddDate(0, 0, 1)
}

// Run processa todas as consultas do dia alvo. Falha de envio de uma consulta é logada
// e contada como skipped; não interrompe as demais. Só erro de listagem é devolvido.
func (j *Job) Run(ctx context.Context) (Result, error) {
	now := time.Now()
	if j.Now != nil {
		now = j.Now()
	}
	days := j.DaysAhead
	if days <= 0 {
		days = 1
	}
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	from, to := TargetDay(now, loc, days)
	res := Result{Date: from}
	rows, err := j.Store.ListAppointmentsForReminder(ctx, from, to)
	if err != nil {
		return res, err
	}
	res.Found = len(rows)
	if j.Sender == nil {
		j.Log.Warn().Int("appointments", len(rows)).Msg("whatsapp not configured, reminders skipped")
		res.Skipped = len(rows)
		return res, nil
	}
	for _, r := range rows {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		msg := whatsapp.Reminder{
			PatientName: r.PatientName,
			ClinicName:  r.ClinicName,
			Date:        r.StartsAt.In(loc).Format("02/01/2006"),
			Time:        r.StartsAt.In(loc).Format("15:04"),
		}
		l := j.Log.With().Str("appointment_id", r.AppointmentID.String()).Str("clinic_id", r.ClinicID.String()).Logger()
		if err := j.Sender.SendReminder(ctx, r.PatientPhone, msg); err != nil {
			l.Error().Err(err).Msg("reminder send failed")
			res.Skipped++
			continue
		}
		res.Sent++
		if err := j.Store.MarkReminderSent(ctx, r.AppointmentID); err != nil {
			l.Error().Err(err).Msg("mark reminder sent")
		}
		clinicID, appointmentID, patientID := r.ClinicID, r.AppointmentID, r.PatientID
		resource := "APPOINTMENT"
		if err := j.Store.Audit(ctx, &repo.AuditEvent{
			Action:       auditActionReminderSent,
			ActorType:    repo.ActorSystem,
			ClinicID:     &clinicID,
			ResourceType: &resource,
			ResourceID:   &appointmentID,
			PatientID:    &patientID,
			Metadata:     repo.JSONMetadata(map[string]string{"channel": "WHATSAPP"}),
		}); err != nil {
			l.Error().Err(err).Msg("reminder audit")
		}
		l.Info().Msg("reminder sent")
	}
	return res, nil
}

// DefaultSender devolve o cliente WhatsApp, ou nil quando não configurado.
func DefaultSender(cfg whatsapp.Config) Sender {
	if !cfg.Enabled() {
		return nil
	}
	return whatsapp.NewClient(cfg)
}
