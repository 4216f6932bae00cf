package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting the server reads from the environment
type Config struct {
	Environment string   `envconfig:"ENVIRONMENT" default:"development"`
	HTTPAddr    string   `envconfig:"HTTP_ADDR" default:":8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	FrontendURL string   `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`

	// Either DATABASE_URL or the discrete DB_* values must be set
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBHost      string `envconfig:"DB_HOST"`
	DBPort      string `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER"`
	DBPassword  string `envconfig:"DB_PASSWORD"`
	DBName      string `envconfig:"DB_NAME"`
	DBSSLMode   string `envconfig:"DB_SSL_MODE" default:"disable"`
	DBLogLevel  string `envconfig:"DB_LOG_LEVEL" default:"warn"`

	// AdminEmails may list and trigger the background jobs
	AdminEmails []string `envconfig:"ADMIN_EMAILS"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTExpiry time.Duration `envconfig:"JWT_EXPIRY" default:"720h"`
	// SecretKey seals integration credentials (AES-256, 32 bytes)
	SecretKey string `envconfig:"SECRET_KEY"`

	SendGridAPIKey    string `envconfig:"SENDGRID_API_KEY"`
	SendGridFromEmail string `envconfig:"SENDGRID_FROM_EMAIL"`
	SendGridFromName  string `envconfig:"SENDGRID_FROM_NAME" default:"CareOps"`

	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string  `envconfig:"TELEGRAM_CHAT_ID"`
	TelegramRate     float64 `envconfig:"TELEGRAM_RATE_PER_SEC" default:"25"`
	// TelegramWebhookSecret is checked against X-Telegram-Bot-Api-Secret-Token
	TelegramWebhookSecret string `envconfig:"TELEGRAM_WEBHOOK_SECRET"`

	// NotifyChannels is the preference order used to pick a workspace notifier
	NotifyChannels []string `envconfig:"NOTIFY_CHANNELS" default:"email,telegram"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `envconfig:"GOOGLE_REDIRECT_URI"`

	SchedulerEnabled  bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	SchedulerTimezone string        `envconfig:"SCHEDULER_TIMEZONE" default:"UTC"`
	BookingReminderAt string        `envconfig:"BOOKING_REMINDER_CRON" default:"0 10 * * *"`
	FormReminderAt    string        `envconfig:"FORM_REMINDER_CRON" default:"0 14 * * *"`
	InventoryCheckAt  string        `envconfig:"INVENTORY_CHECK_CRON" default:"0 */6 * * *"`
	JobTimeout        time.Duration `envconfig:"JOB_TIMEOUT" default:"10m"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"` // console or json

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env (when present) and then the process environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses the process environment without touching .env
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express
func (c Config) Validate() error {
	var problems []string

	if c.DatabaseURL == "" {
		for key, value := range map[string]string{"DB_HOST": c.DBHost, "DB_USER": c.DBUser, "DB_NAME": c.DBName} {
			if value == "" {
				problems = append(problems, key+" is required when DATABASE_URL is not set")
			}
		}
	}
	if c.SecretKey != "" && len(c.SecretKey) != 32 {
		problems = append(problems, "SECRET_KEY must be exactly 32 bytes long")
	}
	if c.JobTimeout <= 0 {
		problems = append(problems, "JOB_TIMEOUT must be positive")
	}
	for _, ch := range c.NotifyChannels {
		switch strings.TrimSpace(ch) {
		case "email", "telegram":
		default:
			problems = append(problems, fmt.Sprintf("NOTIFY_CHANNELS has unknown channel %q", ch))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DSN returns the Postgres connection string
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC connect_timeout=10",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// IsProduction reports whether the server runs in production mode
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
