package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// ConfigureLogging applies the level and formatter to the standard logrus logger.
func ConfigureLogging(cfg Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logrus.SetLevel(level)

	switch cfg.LogFormat {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	return nil
}

// OpenDebugLog creates a per-run classifier debug log under dir.
// The caller closes the returned file when done.
func OpenDebugLog(dir string, now time.Time) (*logrus.Logger, *os.File, error) {
	if dir == "" {
		dir = defaultLogDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	name := fmt.Sprintf("classifier_%s.log", now.Format("20060102_150405"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open debug log: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(file)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return logger, file, nil
}

// DebugLogger opens the debug log when enabled. The closer is never nil.
func (c Config) DebugLogger(now time.Time) (logrus.FieldLogger, io.Closer, error) {
	if !c.Debug {
		return nil, io.NopCloser(nil), nil
	}
	logger, file, err := OpenDebugLog(c.LogDir, now)
	if err != nil {
		return nil, io.NopCloser(nil), err
	}
	logrus.WithField("path", file.Name()).Info("classifier debug log enabled")
	return logger, file, nil
}
