// Package app monta as dependências compartilhadas pelos binários (API, CLI e job de lembretes).
package app

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mdnsystems/OmniCare-sub005/internal/billing"
	"github.com/mdnsystems/OmniCare-sub005/internal/config"
	"github.com/mdnsystems/OmniCare-sub005/internal/email"
	"github.com/mdnsystems/OmniCare-sub005/internal/logger"
	"github.com/mdnsystems/OmniCare-sub005/internal/migrate"
	"github.com/mdnsystems/OmniCare-sub005/internal/reminder"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/whatsapp"
	"github.com/mdnsystems/OmniCare-sub005/migrations"
)

var ErrNoDatabaseURL = errors.New("DATABASE_URL is required")

// Env agrupa configuração, logger e conexão já abertos.
type Env struct {
	Cfg *config.Config
	Log zerolog.Logger
	DB  *gorm.DB
}

// Logger cria o logger raiz a partir da configuração.
func Logger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, App: cfg.AppName})
}

// Open carrega a configuração, valida e conecta ao banco.
func Open(ctx context.Context) (*Env, error) {
	cfg := config.Load()
	log := Logger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, ErrNoDatabaseURL
	}
	db, err := repo.Open(ctx, cfg.DatabaseURL, repo.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}, log)
	if err != nil {
		return nil, err
	}
	return &Env{Cfg: cfg, Log: log, DB: db}, nil
}

func (e *Env) Close() {
	if sqlDB, err := e.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Migrate aplica as migrações embutidas no binário.
func (e *Env) Migrate(ctx context.Context) (int, error) {
	return migrate.Run(ctx, e.DB, migrations.FS, logger.WithComponent(e.Log, "migrate"))
}

// Mailer devolve o remetente SMTP.
func (e *Env) Mailer() *email.Sender {
	port := email.PortFromString(e.Cfg.SMTPPort)
	if port <= 0 {
		port = 587
	}
	return email.NewSender(email.Config{
		Host:     e.Cfg.SMTPHost,
		Port:     port,
		User:     e.Cfg.SMTPUser,
		Pass:     e.Cfg.SMTPPass,
		FromName: e.Cfg.SMTPFromName,
		FromAddr: e.Cfg.SMTPFromEmail,
	}, e.Log)
}

// Sweeper monta o recálculo de inadimplência. onChange pode ser nil.
func (e *Env) Sweeper(onChange func(clinicID uuid.UUID)) *billing.Sweeper {
	s := &billing.Sweeper{
		Store:         billing.GormStore{DB: e.DB},
		Notifier:      e.Mailer(),
		Thresholds:    e.Cfg.BillingThresholds(),
		Location:      e.Cfg.ReminderLocation(),
		BillingURL:    e.Cfg.AppPublicURL + "/billing",
		Concurrency:   4,
		Log:           logger.WithComponent(e.Log, "billing"),
		OnLevelChange: onChange,
	}
	return s
}

// ReminderJob monta o job de lembretes via WhatsApp.
func (e *Env) ReminderJob() *reminder.Job {
	return &reminder.Job{
		Store: reminder.GormStore{DB: e.DB},
		Sender: reminder.DefaultSender(whatsapp.Config{
			AccountSid: e.Cfg.TwilioAccountSid,
			AuthToken:  e.Cfg.TwilioAuthToken,
			From:       e.Cfg.TwilioWhatsAppFrom,
		}),
		Location:  e.Cfg.ReminderLocation(),
		DaysAhead: e.Cfg.ReminderDaysAhead,
		Log:       logger.WithComponent(e.Log, "reminder"),
	}
}
