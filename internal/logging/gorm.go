package logging

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogger sends GORM logs to zerolog and drops statements that
// match any of the ignored patterns (the periodic sweep scans would
// otherwise flood the SQL log every few hours).
type GormLogger struct {
	log                  zerolog.Logger
	level                logger.LogLevel
	slowThreshold        time.Duration
	ignoredQueryPatterns []string
}

// NewGormLogger creates a GORM logger with the given ignored query patterns
func NewGormLogger(l zerolog.Logger, level string, ignoredPatterns ...string) *GormLogger {
	return &GormLogger{
		log:                  l,
		level:                gormLevel(level),
		slowThreshold:        time.Second,
		ignoredQueryPatterns: ignoredPatterns,
	}
}

func gormLevel(s string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// LogMode implements logger.Interface
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info implements logger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.log.Info().Msg(fmt.Sprintf(msg, args...))
	}
}

// Warn implements logger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.log.Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

// Error implements logger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.log.Error().Msg(fmt.Sprintf(msg, args...))
	}
}

// Trace implements logger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.event(l.log.Error().Err(err), sql, rows, elapsed).Msg("query failed")
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.event(l.log.Warn(), sql, rows, elapsed).Dur("threshold", l.slowThreshold).Msg("slow query")
	case l.level >= logger.Info:
		sql, rows := fc()
		if l.ignored(sql) {
			return
		}
		l.event(l.log.Debug(), sql, rows, elapsed).Msg("query")
	}
}

func (l *GormLogger) event(ev *zerolog.Event, sql string, rows int64, elapsed time.Duration) *zerolog.Event {
	ev = ev.Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed)
	if caller := findCaller(); caller != "" {
		ev = ev.Str("caller", caller)
	}
	return ev
}

func (l *GormLogger) ignored(sql string) bool {
	for _, pattern := range l.ignoredQueryPatterns {
		if strings.Contains(sql, pattern) {
			return true
		}
	}
	return false
}

// findCaller looks through the call stack to find the first caller
// outside GORM and the store/database plumbing
func findCaller() string {
	for i := 3; i < 15; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		if strings.Contains(file, "gorm.io") ||
			strings.Contains(file, "internal/database") ||
			strings.Contains(file, "internal/logging") {
			continue
		}

		funcName := ""
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
			if idx := strings.LastIndexByte(funcName, '.'); idx != -1 {
				funcName = funcName[idx+1:]
			}
		}

		if funcName != "" {
			return fmt.Sprintf("%s() at %s:%d", funcName, file, line)
		}
		return fmt.Sprintf("%s:%d", file, line)
	}

	return ""
}
