package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mdnsystems/OmniCare-sub005/internal/billing"
)

const defaultJWTSecret = "default-secret-min-32-chars-required!!"

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxOpenConns     int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns     int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime  time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
	JWTSecret          []byte        `mapstructure:"-"`
	JWTTTL             time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins        []string      `mapstructure:"-"`
	RequestTimeoutSec  int           `mapstructure:"REQUEST_TIMEOUT_SEC"`
	DataEncryptionKeys string        `mapstructure:"DATA_ENCRYPTION_KEYS"`
	CurrentDataKeyVer  string        `mapstructure:"CURRENT_DATA_KEY_VERSION"`
	SMTPHost           string        `mapstructure:"SMTP_HOST"`
	SMTPPort           string        `mapstructure:"SMTP_PORT"`
	SMTPUser           string        `mapstructure:"SMTP_USER"`
	SMTPPass           string        `mapstructure:"SMTP_PASS"`
	SMTPFromName       string        `mapstructure:"SMTP_FROM_NAME"`
	SMTPFromEmail      string        `mapstructure:"SMTP_FROM_EMAIL"`
	AppPublicURL       string        `mapstructure:"APP_PUBLIC_URL"`
	// WhatsApp (Twilio) para lembretes de consulta
	TwilioAccountSid   string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom string `mapstructure:"TWILIO_WHATSAPP_FROM"`
	ReminderCronTZ     string `mapstructure:"REMINDER_CRON_TZ"`
	ReminderDaysAhead  int    `mapstructure:"REMINDER_DAYS_AHEAD"`
	// Faturamento: dias de atraso que disparam cada nível de bloqueio
	BillingNotifyDays    int           `mapstructure:"BILLING_NOTIFY_DAYS"`
	BillingRestrictDays  int           `mapstructure:"BILLING_RESTRICT_DAYS"`
	BillingBlockDays     int           `mapstructure:"BILLING_BLOCK_DAYS"`
	BillingSweepInterval time.Duration `mapstructure:"BILLING_SWEEP_INTERVAL"`
	TenantCacheTTL       time.Duration `mapstructure:"TENANT_CACHE_TTL"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	LogFormat            string        `mapstructure:"LOG_FORMAT"`
	AppName              string        `mapstructure:"APP_NAME"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
	"JWT_SECRET", "JWT_TTL", "CORS_ORIGINS", "REQUEST_TIMEOUT_SEC",
	"DATA_ENCRYPTION_KEYS", "CURRENT_DATA_KEY_VERSION",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_FROM_NAME", "SMTP_FROM_EMAIL",
	"APP_PUBLIC_URL", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_WHATSAPP_FROM",
	"REMINDER_CRON_TZ", "REMINDER_DAYS_AHEAD",
	"BILLING_NOTIFY_DAYS", "BILLING_RESTRICT_DAYS", "BILLING_BLOCK_DAYS", "BILLING_SWEEP_INTERVAL",
	"TENANT_CACHE_TTL", "LOG_LEVEL", "LOG_FORMAT", "APP_NAME",
}

// Load lê variáveis de ambiente (e .env, se existir) aplicando os defaults de desenvolvimento.
func Load() *Config {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("REQUEST_TIMEOUT_SEC", 30)
	v.SetDefault("DATA_ENCRYPTION_KEYS", "v1:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	v.SetDefault("CURRENT_DATA_KEY_VERSION", "v1")
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", "1025")
	v.SetDefault("SMTP_FROM_NAME", "OmniCare")
	v.SetDefault("SMTP_FROM_EMAIL", "noreply@localhost")
	v.SetDefault("APP_PUBLIC_URL", "http://localhost:5173")
	v.SetDefault("REMINDER_CRON_TZ", "America/Sao_Paulo")
	v.SetDefault("REMINDER_DAYS_AHEAD", 1)
	v.SetDefault("BILLING_NOTIFY_DAYS", 1)
	v.SetDefault("BILLING_RESTRICT_DAYS", 15)
	v.SetDefault("BILLING_BLOCK_DAYS", 30)
	v.SetDefault("BILLING_SWEEP_INTERVAL", "1h")
	v.SetDefault("TENANT_CACHE_TTL", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("APP_NAME", "omnicare")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	// .env é opcional
	_ = v.ReadInConfig()

	cfg := &Config{}
	_ = v.Unmarshal(cfg)

	secret := v.GetString("JWT_SECRET")
	if len(secret) < 32 {
		secret = defaultJWTSecret
	}
	cfg.JWTSecret = []byte(secret)
	cfg.CORSOrigins = splitTrim(v.GetString("CORS_ORIGINS"), ",")
	return cfg
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate recusa configurações inseguras fora de desenvolvimento e limiares de bloqueio fora de ordem.
func (c *Config) Validate() error {
	if !c.IsDev() && string(c.JWTSecret) == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set (min 32 chars) when ENV=%q", c.Env)
	}
	if c.BillingNotifyDays < 1 {
		return fmt.Errorf("BILLING_NOTIFY_DAYS must be >= 1, got %d", c.BillingNotifyDays)
	}
	if c.BillingNotifyDays > c.BillingRestrictDays || c.BillingRestrictDays > c.BillingBlockDays {
		return fmt.Errorf("billing thresholds must satisfy notify <= restrict <= block (got %d, %d, %d)",
			c.BillingNotifyDays, c.BillingRestrictDays, c.BillingBlockDays)
	}
	return nil
}

// ReminderLocation devolve o fuso usado para calcular "amanhã" e os dias de atraso.
func (c *Config) ReminderLocation() *time.Location {
	loc, err := time.LoadLocation(c.ReminderCronTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BillingThresholds converte os dias configurados nos limiares usados pelo sweep.
func (c *Config) BillingThresholds() billing.Thresholds {
	return billing.Thresholds{
		NotifyDays:   c.BillingNotifyDays,
		RestrictDays: c.BillingRestrictDays,
		BlockDays:    c.BillingBlockDays,
	}
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
