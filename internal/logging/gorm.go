package logging

import (
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

type gormWriter struct {
	level zerolog.Level
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	l := WithComponent("gorm")
	l.WithLevel(w.level).Msgf(format, args...)
}

// NewGormLogger routes gorm output through zerolog. SQL tracing is only
// enabled when the global level is debug or lower; otherwise slow queries and
// errors are reported as warnings.
func NewGormLogger(slowThreshold time.Duration) gormlogger.Interface {
	w := gormWriter{level: zerolog.WarnLevel}
	level := gormlogger.Warn
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		w.level = zerolog.DebugLevel
		level = gormlogger.Info
	}
	return gormlogger.New(w, gormlogger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
