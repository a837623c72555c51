package logging

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger. Production gets JSON lines;
// everything else gets human-readable text. An unknown level falls back to info.
func Setup(level string, production bool) {
	logrus.SetOutput(os.Stdout)

	if production {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.SetLevel(logrus.InfoLevel)
		logrus.WithField("level", level).Warn("unknown log level, using info")
		return
	}
	logrus.SetLevel(parsed)
}
