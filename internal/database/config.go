package database

import (
	"fmt"
	"time"

	"careops/internal/logging"
	"careops/internal/models"
	"careops/internal/store"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Options controls how the connection is opened
type Options struct {
	DSN        string
	LogLevel   string
	MaxRetries int
	RetryDelay time.Duration
}

// Open connects to Postgres with retries, configures the pool and
// migrates the schema
func Open(opts Options, log zerolog.Logger) (*gorm.DB, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}

	// Custom logger that filters the periodic sweep queries
	gormLogger := logging.NewGormLogger(logging.Component(log, "gorm"), opts.LogLevel, store.SweepQueryPatterns...)

	gormConfig := &gorm.Config{
		Logger:                                   gormLogger,
		PrepareStmt:                              true,  // Enable prepared statement cache
		TranslateError:                           true,  // Map unique violations to gorm.ErrDuplicatedKey
		DisableForeignKeyConstraintWhenMigrating: false, // Enable foreign key constraints
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < opts.MaxRetries; i++ {
		db, err = gorm.Open(postgres.Open(opts.DSN), gormConfig)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("database connection attempt failed")
		if i < opts.MaxRetries-1 {
			log.Info().Dur("delay", opts.RetryDelay).Msg("retrying database connection")
			time.Sleep(opts.RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", opts.MaxRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info().Msg("database connection established and migrations completed")
	return db, nil
}

// Migrate creates or updates every table and index
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Integration{},
		&models.Contact{},
		&models.ContactForm{},
		&models.Conversation{},
		&models.Message{},
		&models.ServiceType{},
		&models.AvailabilitySlot{},
		&models.Booking{},
		&models.PostBookingForm{},
		&models.FormSubmission{},
		&models.InventoryItem{},
		&models.InventoryUsage{},
		&models.Alert{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := db.Exec(store.AlertDedupIndexSQL).Error; err != nil {
		return fmt.Errorf("failed to create alert dedup index: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_bookings_reminder_due
		ON bookings (scheduled_at) WHERE reminder_sent = false AND status = 'pending'`).Error; err != nil {
		return fmt.Errorf("failed to create booking reminder index: %w", err)
	}
	return nil
}
