// Package logging provides structured logging for PhotoSync.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// global logger instance
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. The first call wins; later calls are
// no-ops so tests and the server can both initialize safely.
func Init(out io.Writer, level string, jsonFormat bool) {
	once.Do(func() {
		l := logrus.New()
		l.SetOutput(out)
		l.SetLevel(parseLevel(level))
		if jsonFormat {
			l.SetFormatter(&logrus.JSONFormatter{})
		} else {
			l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		}
		global = l
	})
}

// Get returns the global logger, initializing it with defaults if needed.
func Get() *logrus.Logger {
	if global == nil {
		Init(os.Stdout, "info", true)
	}
	return global
}

// WithComponent returns an entry tagged with the component name, so each
// subsystem's log lines are filterable.
func WithComponent(name string) *logrus.Entry {
	return Get().WithField("component", name)
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
