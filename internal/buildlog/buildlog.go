package buildlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// LogFile is the append-only progress/error log inside the output directory.
const LogFile = "build_log.txt"

// New returns a logger that appends to build_log.txt under dir and mirrors
// to stderr. Failing to open the log file means the output directory is
// unwritable, which is fatal for a build.
func New(dir, level string) (*logrus.Logger, func() error, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open build log: %w", err)
	}

	log := logrus.New()
	log.SetOutput(io.MultiWriter(f, os.Stderr))
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(parseLevel(level))

	return log, f.Close, nil
}

func parseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}
