package config

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Verbose indicates whether verbose logging is enabled
var Verbose bool

var (
	logMu  sync.RWMutex
	logger = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// SetLogOutput redirects all log output, mainly for tests
func SetLogOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = newLogger(w)
}

// Logger returns the process logger scoped to a component
func Logger(component string) zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	l := logger.With().Str("component", component).Logger()
	if Verbose {
		return l.Level(zerolog.DebugLevel)
	}
	return l.Level(zerolog.InfoLevel)
}

// DebugLog logs internal detail when verbose mode is enabled
func DebugLog(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	logMu.RLock()
	defer logMu.RUnlock()
	logger.Debug().Msg(fmt.Sprintf(format, args...))
}

// VerboseLog logs high-level operation information when verbose mode is enabled
func VerboseLog(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	logMu.RLock()
	defer logMu.RUnlock()
	logger.Info().Msg(fmt.Sprintf(format, args...))
}
