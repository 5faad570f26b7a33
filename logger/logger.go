package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Cherif0104/EcosystIA-sub001/config"
)

// Log is the global logger instance.
var Log = logrus.New()

// Init configures level and formatter from the application configuration.
// Production and staging log JSON; every other environment logs text.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.LogLevel, err)
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	switch strings.ToLower(cfg.Environment) {
	case "production", "staging":
		Log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"environment": cfg.Environment,
	}).Debug("logger initialized")
}

// Get returns the configured global logger.
func Get() *logrus.Logger {
	return Log
}
