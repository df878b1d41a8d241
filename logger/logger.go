package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Plain stdout loggers until InitLoggers swaps in the rolling-file outputs,
// so packages can log safely from tests and init paths.
var (
	InfoLogger  = logrus.New()
	WarnLogger  = logrus.New()
	ErrorLogger = logrus.New()
)

// InitLoggers sets up the leveled loggers. Each logger writes to its own
// rolling file under LOG_DIR (default "logs") and mirrors to stdout.
func InitLoggers() {
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		logrus.Fatalf("failed to create log directory %s: %v", logDir, err)
	}

	InfoLogger = newLogger(logrus.InfoLevel, logDir+"/info.log")
	WarnLogger = newLogger(logrus.WarnLevel, logDir+"/warn.log")
	ErrorLogger = newLogger(logrus.ErrorLevel, logDir+"/error.log")
}

func newLogger(level logrus.Level, file string) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   file,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}))
	return l
}
