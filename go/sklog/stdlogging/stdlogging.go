// Package stdlogging implements sklogimpl.Logger and logs to either stderr or stdout.
package stdlogging

import (
	logger "github.com/jcgregorio/logger"
	"go.crawlkit.dev/infra/go/sklog/sklogimpl"
)

type stdlog struct {
	logger *logger.Logger
	min    sklogimpl.Severity
}

// New returns a sklogimpl.Logger that writes every line to a SyncWriter, such
// as os.Stdout or os.Stderr.
func New(dst logger.SyncWriter) sklogimpl.Logger {
	return NewAtLevel(dst, sklogimpl.Debug)
}

// NewAtLevel is like New, but drops lines below min. Fatal lines are always
// written.
func NewAtLevel(dst logger.SyncWriter, min sklogimpl.Severity) sklogimpl.Logger {
	if min > sklogimpl.Fatal {
		min = sklogimpl.Fatal
	}
	l := logger.NewFromOptions(&logger.Options{
		SyncWriter:   dst,
		DepthDelta:   3,
		IncludeDebug: min <= sklogimpl.Debug,
	})
	return &stdlog{
		logger: l,
		min:    min,
	}
}

// Log implements sklogimpl.Logger.
func (s stdlog) Log(_ int, severity sklogimpl.Severity, fmt string, args ...interface{}) {
	if severity < s.min {
		return
	}
	var plain func(...interface{})
	var formatted func(string, ...interface{})
	switch severity {
	case sklogimpl.Debug:
		plain, formatted = s.logger.Debug, s.logger.Debugf
	case sklogimpl.Info:
		plain, formatted = s.logger.Info, s.logger.Infof
	case sklogimpl.Warning:
		plain, formatted = s.logger.Warning, s.logger.Warningf
	case sklogimpl.Fatal:
		plain, formatted = s.logger.Fatal, s.logger.Fatalf
	default:
		plain, formatted = s.logger.Error, s.logger.Errorf
	}
	if fmt == "" {
		plain(args...)
		return
	}
	formatted(fmt, args...)
}

// Flush implements sklogimpl.Logger.
func (s stdlog) Flush() {
	// noop
}
