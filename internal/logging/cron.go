package logging

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	l zerolog.Logger
}

// Cron returns a cron.Logger backed by l. Cron's chatty info
// messages (wake, run, schedule) are logged at debug level.
func Cron(l zerolog.Logger) cron.Logger {
	return cronLogger{l: l}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
