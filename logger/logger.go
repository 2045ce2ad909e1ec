// Package logger defines the logging contract used across go-devlink so that applications can plug
// their own logging framework into the connection manager, transports and dispatcher.
//
// Every component accepts a Logger through its options and falls back to the package default
// returned by GetLogger. Messages carry structured key-value pairs:
//
//	log.Info("line received", "device", "/dev/ttyUSB0", "line", line)
//
// Log Levels:
//
//   - DebugLevel: raw traffic (every line sent or received), worker lifecycle details.
//   - InfoLevel:  connection start/stop and worker exit.
//   - WarnLevel:  recoverable oddities such as skipped malformed lines or full failure queues.
//   - ErrorLevel: worker failures that terminate a connection.
//   - FatalLevel: logs and exits; only used by example programs.
package logger

// LogLevel indicates the logging severity level.
type LogLevel = int8

const (
	// DebugLevel logs raw traffic and internal state, usually disabled in production.
	DebugLevel LogLevel = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs conditions that were handled but deserve attention.
	WarnLevel
	// ErrorLevel logs failures that end a connection.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Logger defines a common interface for structured logging.
type Logger interface {
	// Debug logs a message at DebugLevel with the given key-value pairs.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel with the given key-value pairs.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel with the given key-value pairs.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel with the given key-value pairs.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel and then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
	// With returns a child logger carrying the given key-values on every record.
	// The parent logger is not affected.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level.
	Level() LogLevel
	// SetLevel changes the minimum enabled level.
	SetLevel(level LogLevel)
}
