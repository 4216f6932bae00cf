package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/careops")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.BookingReminderAt != "0 10 * * *" {
		t.Errorf("BookingReminderAt = %q", cfg.BookingReminderAt)
	}
	if cfg.FormReminderAt != "0 14 * * *" {
		t.Errorf("FormReminderAt = %q", cfg.FormReminderAt)
	}
	if cfg.InventoryCheckAt != "0 */6 * * *" {
		t.Errorf("InventoryCheckAt = %q", cfg.InventoryCheckAt)
	}
	if cfg.JobTimeout != 10*time.Minute {
		t.Errorf("JobTimeout = %v", cfg.JobTimeout)
	}
	if len(cfg.NotifyChannels) != 2 || cfg.NotifyChannels[0] != "email" {
		t.Errorf("NotifyChannels = %v", cfg.NotifyChannels)
	}
	if cfg.DSN() != "postgres://localhost/careops" {
		t.Errorf("DSN() = %q", cfg.DSN())
	}
}

func TestFromEnvAdminEmails(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/careops")

	t.Setenv("ADMIN_EMAILS", "")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.AdminEmails) != 0 {
		t.Fatalf("AdminEmails without env = %v, want none", cfg.AdminEmails)
	}

	t.Setenv("ADMIN_EMAILS", "ops@example.com,oncall@example.com")
	if cfg, err = FromEnv(); err != nil {
		t.Fatal(err)
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[1] != "oncall@example.com" {
		t.Fatalf("AdminEmails = %v", cfg.AdminEmails)
	}
}

func TestFromEnvRequiresDatabase(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected error when no database settings are present")
	}
	if !strings.Contains(err.Error(), "DB_HOST") {
		t.Fatalf("error %q does not mention DB_HOST", err)
	}
}

func TestDiscreteDSN(t *testing.T) {
	cfg := Config{DBHost: "db", DBUser: "care", DBPassword: "pw", DBName: "ops", DBPort: "5433", DBSSLMode: "require"}
	want := "host=db user=care password=pw dbname=ops port=5433 sslmode=require TimeZone=UTC connect_timeout=10"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	base := Config{DatabaseURL: "postgres://x", JobTimeout: time.Minute, NotifyChannels: []string{"email"}}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "short secret key", mutate: func(c *Config) { c.SecretKey = "short" }, wantErr: "SECRET_KEY"},
		{name: "unknown channel", mutate: func(c *Config) { c.NotifyChannels = []string{"pigeon"} }, wantErr: "pigeon"},
		{name: "zero timeout", mutate: func(c *Config) { c.JobTimeout = 0 }, wantErr: "JOB_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
