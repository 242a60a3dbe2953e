package hwcodec

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pion/logging"
)

const (
	scopeRoot    = "hwcodec"
	scopeProbe   = "hwcodec/probe"
	scopeSession = "hwcodec/session"
)

var (
	loggerMu      sync.RWMutex
	loggerFactory logging.LoggerFactory = newLoggerFactory(logging.LogLevelError, os.Stderr)
)

// SetLoggerFactory installs the factory used for loggers created after the
// call. Passing nil restores the default stderr factory at error level.
func SetLoggerFactory(f logging.LoggerFactory) {
	if f == nil {
		f = newLoggerFactory(logging.LogLevelError, os.Stderr)
	}
	loggerMu.Lock()
	loggerFactory = f
	loggerMu.Unlock()
}

// SetLogLevel replaces the logger factory with the default one gated at
// the named level ("disabled", "error", "warn", "info", "debug", "trace").
func SetLogLevel(level string) {
	SetLoggerFactory(newLoggerFactory(parseLogLevel(level), os.Stderr))
}

func newLogger(scope string) logging.LeveledLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return loggerFactory.NewLogger(scope)
}

// silentLogger returns a logger that drops everything. Probe trials use it
// so expected failures stay out of the application log.
func silentLogger() logging.LeveledLogger {
	return logging.NewDefaultLeveledLoggerForScope(scopeProbe, logging.LogLevelDisabled, io.Discard)
}

func newLoggerFactory(level logging.LogLevel, w io.Writer) *logging.DefaultLoggerFactory {
	return &logging.DefaultLoggerFactory{
		Writer:          w,
		DefaultLogLevel: level,
		ScopeLevels:     map[string]logging.LogLevel{},
	}
}

func parseLogLevel(s string) logging.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off", "none":
		return logging.LogLevelDisabled
	case "warn", "warning":
		return logging.LogLevelWarn
	case "info":
		return logging.LogLevelInfo
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	default:
		return logging.LogLevelError
	}
}
