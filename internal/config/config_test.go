package config

import (
	"testing"
	"time"

	"github.com/mdnsystems/OmniCare-sub005/internal/billing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local ,")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("port: got %q", cfg.Port)
	}
	if string(cfg.JWTSecret) != defaultJWTSecret {
		t.Fatalf("short secret must fall back to default")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.local" {
		t.Fatalf("cors origins: %v", cfg.CORSOrigins)
	}
	if cfg.BillingNotifyDays != 1 || cfg.BillingRestrictDays != 15 || cfg.BillingBlockDays != 30 {
		t.Fatalf("billing defaults: %d %d %d", cfg.BillingNotifyDays, cfg.BillingRestrictDays, cfg.BillingBlockDays)
	}
	if cfg.BillingThresholds() != billing.DefaultThresholds() {
		t.Fatalf("thresholds: %+v", cfg.BillingThresholds())
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Fatalf("jwt ttl: %v", cfg.JWTTTL)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Env:                 "development",
			JWTSecret:           []byte(defaultJWTSecret),
			BillingNotifyDays:   1,
			BillingRestrictDays: 15,
			BillingBlockDays:    30,
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("dev config should validate: %v", err)
	}

	prod := base()
	prod.Env = "production"
	if err := prod.Validate(); err == nil {
		t.Fatal("production with default secret must fail")
	}

	swapped := base()
	swapped.BillingRestrictDays = 40
	if err := swapped.Validate(); err == nil {
		t.Fatal("restrict > block must fail")
	}

	zero := base()
	zero.BillingNotifyDays = 0
	if err := zero.Validate(); err == nil {
		t.Fatal("notify days 0 must fail")
	}
}

func TestReminderLocationFallback(t *testing.T) {
	c := &Config{ReminderCronTZ: "Not/AZone"}
	if c.ReminderLocation() != time.UTC {
		t.Fatal("invalid tz must fall back to UTC")
	}
}
