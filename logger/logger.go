// Package logger configures the process-wide logrus logger and hands out entries
// tagged with the module that emits them.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls level, format and where logs are written.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // json or text
	File   string // optional rotating log file; empty logs to stdout only

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu  sync.RWMutex
	app = logrus.New()
)

// Init replaces the application logger according to cfg.
func Init(cfg Config) error {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return err
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	l.SetOutput(out)

	mu.Lock()
	app = l
	mu.Unlock()
	return nil
}

// SetOutput redirects the application logger. Tests use it to capture output.
func SetOutput(w io.Writer) {
	mu.RLock()
	defer mu.RUnlock()
	app.SetOutput(w)
}

// Get returns the application logger.
func Get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return app
}

// WithModule returns an entry tagged with a module name, e.g. "hierarchy" or "batch".
func WithModule(module string) *logrus.Entry {
	return Get().WithField("module", module)
}

// WithFields returns an entry with additional fields.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Get().WithFields(logrus.Fields(fields))
}

// WithError returns an entry carrying err.
func WithError(err error) *logrus.Entry {
	return Get().WithError(err)
}
