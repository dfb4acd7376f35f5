package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	customLog = newLogger()
	mu        sync.RWMutex
)

// Options controls where and how the daemon logs.
type Options struct {
	Level  string
	Format string
	// File additionally writes rotated logs under <home>/logs.
	File bool
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

func current() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return customLog
}

// InitLogger resets the logger to stdout at the given level.
func InitLogger(opts Options) {
	l := newLogger()
	l.SetLevel(parseLevel(opts.Level))
	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	mu.Lock()
	customLog = l
	mu.Unlock()
}

// ResetLogger redirects output to a rotated file in the daemon home, keeping stdout.
func ResetLogger(home string) {
	dir := filepath.Join(home, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		Fatalf("Failed to create log directory %s: %v", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s.log", filepath.Base(os.Args[0])))
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}

	Infof("From now on, logs are also written to %s", path)
	current().SetOutput(io.MultiWriter(os.Stdout, rotator))
}

// SetOutput is used by tests to capture log lines.
func SetOutput(w io.Writer) {
	current().SetOutput(w)
}

func parseLevel(level string) logrus.Level {
	if level == "" {
		return logrus.InfoLevel
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// WithFields returns an entry carrying structured context.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return current().WithFields(fields)
}

func Debug(v ...any) {
	current().Debug(v...)
}

func Debugf(format string, v ...any) {
	current().Debugf(format, v...)
}

func Info(v ...any) {
	current().Info(v...)
}

func Infof(format string, v ...any) {
	current().Infof(format, v...)
}

func Warnf(format string, v ...any) {
	current().Warnf(format, v...)
}

func Error(v ...any) {
	current().Error(v...)
}

func Errorf(format string, v ...any) {
	current().Errorf(format, v...)
}

func Fatal(v ...any) {
	current().Fatal(v...)
}

func Fatalf(format string, v ...any) {
	current().Fatalf(format, v...)
}

// Logger exposes the underlying logger to libraries that take a Printf-style logger.
func Logger() *logrus.Logger {
	return current()
}
