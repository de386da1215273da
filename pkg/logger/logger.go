// Package logger is a small leveled wrapper around the standard logger.
package logger

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

var (
	debugEnabled atomic.Bool
	infoLogger   = log.New(os.Stderr, "", log.LstdFlags)
	errorLogger  = log.New(os.Stderr, "[ERROR] ", log.LstdFlags)
	debugLogger  = log.New(os.Stderr, "[DEBUG] ", log.LstdFlags)
)

// SetDebug enables or disables debug logging
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

// SetOutput redirects all levels to w
func SetOutput(w io.Writer) {
	infoLogger.SetOutput(w)
	errorLogger.SetOutput(w)
	debugLogger.SetOutput(w)
}

// Info logs an informational message
func Info(format string, args ...interface{}) {
	infoLogger.Printf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	errorLogger.Printf(format, args...)
}

// Debug logs a debug message if debug logging is enabled
func Debug(format string, args ...interface{}) {
	if debugEnabled.Load() {
		debugLogger.Printf(format, args...)
	}
}
