package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Leonid-98/optimize-table/internal/target"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelError LogLevel = "error"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Config holds logging configuration
type Config struct {
	Level  LogLevel  // Minimum log level to output
	Format LogFormat // Output format (json or text)
	Output io.Writer // Output destination (defaults to stderr)
	Quiet  bool      // If true, suppress non-error output
}

// Logger wraps slog.Logger. It never records passwords or the remote command line.
type Logger struct {
	logger *slog.Logger
	config Config
}

// NewLogger creates a new logger instance
func NewLogger(config Config) *Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: convertLogLevel(config.Level),
	}

	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &Logger{
		logger: slog.New(handler),
		config: config,
	}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return NewLogger(Config{Level: LevelError, Output: io.Discard, Quiet: true})
}

// convertLogLevel converts our LogLevel to slog.Level
func convertLogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Info logs an informational message
func (l *Logger) Info(msg string, args ...any) {
	if l.config.Quiet {
		return
	}
	l.logger.Info(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// LogConnection logs an established SSH connection
func (l *Logger) LogConnection(target target.Target, duration time.Duration) {
	l.Info("ssh connection established",
		"server", target.String(),
		"port", target.Port,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogConnectionError logs SSH connection errors
func (l *Logger) LogConnectionError(target target.Target, err error, reason string) {
	l.Error("ssh connection failed",
		"server", target.String(),
		"port", target.Port,
		"reason", reason,
		"error", err.Error(),
	)
}

// LogExecution logs a finished remote command
func (l *Logger) LogExecution(target target.Target, exitCode int, lines int, duration time.Duration) {
	l.Info("remote command finished",
		"server", target.String(),
		"exit_code", exitCode,
		"lines", lines,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogExecutionError logs a remote command that could not run to completion
func (l *Logger) LogExecutionError(target target.Target, err error) {
	l.Error("remote command failed",
		"server", target.String(),
		"error", err.Error(),
	)
}

// LogRemoteStderr logs what the remote command wrote to stderr
func (l *Logger) LogRemoteStderr(target target.Target, stderr string) {
	l.Error("remote command wrote to stderr",
		"server", target.String(),
		"stderr", stderr,
	)
}

// LogConnectionWarning logs security warnings for connections
func (l *Logger) LogConnectionWarning(hostname string, message string) {
	l.logger.Warn("connection security warning",
		"host", hostname,
		"warning", message,
	)
}

// LogRunStart logs the start of a fleet run
func (l *Logger) LogRunStart(serverCount int, databases []string, dryRun bool) {
	l.Info("fleet run started",
		"server_count", serverCount,
		"databases", databases,
		"dry_run", dryRun,
	)
}

// LogServerComplete logs the result summary for one server
func (l *Logger) LogServerComplete(target target.Target, databases int, duration time.Duration) {
	l.Info("server completed",
		"server", target.String(),
		"databases", databases,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogRunComplete logs the completion of a fleet run
func (l *Logger) LogRunComplete(serverCount int, successCount int, failureCount int, duration time.Duration) {
	l.Info("fleet run completed",
		"server_count", serverCount,
		"success_count", successCount,
		"failure_count", failureCount,
		"total_duration_ms", duration.Milliseconds(),
	)
}

// LogConfigLoad logs configuration loading events
func (l *Logger) LogConfigLoad(source string) {
	l.Info("configuration loaded",
		"source", source,
	)
}

// LogConfigError logs configuration errors
func (l *Logger) LogConfigError(source string, err error) {
	l.Error("configuration error",
		"source", source,
		"error", err.Error(),
	)
}

// LogInventoryLoad logs inventory loading information
func (l *Logger) LogInventoryLoad(source string, count int) {
	l.Info("inventory loaded",
		"source", source,
		"count", count,
	)
}

// LogInventoryError logs inventory loading errors
func (l *Logger) LogInventoryError(source string, err error) {
	l.Error("inventory loading failed",
		"source", source,
		"error", err.Error(),
	)
}

// NewLoggerFromConfig creates a logger from application configuration
func NewLoggerFromConfig(logLevel, logFormat string, quiet bool) *Logger {
	level := LevelInfo
	if logLevel == "error" {
		level = LevelError
	}

	format := FormatText
	if logFormat == "json" {
		format = FormatJSON
	}

	return NewLogger(Config{
		Level:  level,
		Format: format,
		Quiet:  quiet,
	})
}
