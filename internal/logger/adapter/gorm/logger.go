// Package gorm routes gorm's sql logging into the global zerolog logger.
package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Logger implements gorm's logger.Interface.
type Logger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// New returns a warn level gorm logger. Statements slower than slow are logged as warnings,
// zero disables slow query logging.
func New(slow time.Duration) *Logger {
	return &Logger{level: gormlogger.Warn, slowThreshold: slow}
}

// LogMode returns a copy with the given level.
func (l *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	n := *l
	n.level = level

	return &n
}

// Info logs at debug, gorm's info output is chatty.
func (l *Logger) Info(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		log.Debug().Str("component", "gorm").Msg(fmt.Sprintf(msg, data...))
	}
}

// Warn logs at warn.
func (l *Logger) Warn(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		log.Warn().Str("component", "gorm").Msg(fmt.Sprintf(msg, data...))
	}
}

// Error logs at error.
func (l *Logger) Error(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		log.Error().Str("component", "gorm").Msg(fmt.Sprintf(msg, data...))
	}
}

// Trace logs a finished statement. Record-not-found is not an error worth logging.
func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)

	var event *zerolog.Event

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		event = log.Error().Err(err)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		event = log.Warn().Bool("slow", true)
	case l.level >= gormlogger.Info:
		event = log.Trace()
	default:
		return
	}

	sql, rows := fc()

	event.Str("component", "gorm").
		Dur("elapsed", elapsed).
		Int64("rows", rows).
		Str("sql", sql).
		Msg("query")
}
