package logging

// Leveled logging for sftpsync. Console output goes to stderr only:
// stdout carries the agent request/response stream and must stay clean.

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

// ParseLevel maps a level name to a LogLevel. Unknown names default to info.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "silent":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

// Logger provides leveled logging
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	file    *os.File
	fileLog *log.Logger
	stderr  *log.Logger
}

// NewLogger creates a new logger
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	l := &Logger{
		level:  level,
		stderr: log.New(os.Stderr, "", 0),
	}

	// Open log file if specified
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = file
		l.fileLog = log.New(file, "", log.LstdFlags)
	}

	return l, nil
}

// Close closes the logger and flushes all data
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.write(fmt.Sprintf("ERROR: "+format, v...))
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.write(fmt.Sprintf("INFO: "+format, v...))
	}
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	if l.level >= LogLevelVerbose {
		l.write(fmt.Sprintf("VERBOSE: "+format, v...))
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.write(fmt.Sprintf("DEBUG: "+format, v...))
	}
}

// write writes a message to the log file and stderr
func (l *Logger) write(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLog != nil {
		l.fileLog.Println(msg)
	}
	l.stderr.Println(msg)
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogTransfer logs a single file transfer
func (l *Logger) LogTransfer(operation, path string, size uint64, elapsed time.Duration, err error) {
	if err != nil {
		l.Info("FAILED %s %s (%s) - error: %v", operation, path, humanize.Bytes(size), err)
		return
	}
	l.Verbose("%s %s (%s in %s)", operation, path, humanize.Bytes(size), elapsed.Round(time.Millisecond))
}

// LogStartup logs startup information
func (l *Logger) LogStartup(host string, port int, username, localPath, remotePath string, patterns int) {
	l.Info("Starting sftpsync")
	l.Verbose("  Target: %s@%s:%d", username, host, port)
	l.Verbose("  Local path: %s", localPath)
	l.Verbose("  Remote path: %s", remotePath)
	l.Verbose("  Ignore patterns: %d", patterns)
}
