// Package build provides the logging plumbing shared by every subsystem of
// the state channel engine. It mirrors lnd's build.NewSubLogger: callers ask
// for a tagged sub-logger and get one wired into whatever backend the running
// binary configured, or a disabled logger if nothing configured one yet.
package build

import (
	"io"

	"github.com/btcsuite/btclog"
)

// LogType indicates where a sub-logger's output ultimately goes.
type LogType byte

const (
	// LogTypeNone discards all output.
	LogTypeNone LogType = iota

	// LogTypeStdOut writes to stdout only; this is what unit tests want.
	LogTypeStdOut

	// LogTypeDefault writes to the backend installed by SetBackend, or to
	// stdout plus a rotated log file when installed by
	// UseFileAndStdoutLogging.
	LogTypeDefault
)

var (
	// backend is the shared btclog backend. It starts out nil, meaning
	// every subsystem logger is disabled until SetBackend,
	// UseStdoutLogging or UseFileAndStdoutLogging installs one.
	backend *btclog.Backend

	// loggingType controls how NewSubLogger resolves a subsystem tag when
	// no backend has been installed yet.
	loggingType = LogTypeNone
)

// SetBackend installs b as the shared logging backend for every sub-logger
// created afterwards.
func SetBackend(b *btclog.Backend) {
	backend = b
	loggingType = LogTypeDefault
}

// UseStdoutLogging points every subsequently created sub-logger at stdout.
// cmd/statechand calls this when no log file is configured.
func UseStdoutLogging(level btclog.Level) {
	backend = btclog.NewBackend(stdoutWriter{})
	loggingType = LogTypeStdOut
	defaultLevel = level
}

var defaultLevel = btclog.LevelInfo

// UseFileAndStdoutLogging points every subsequently created sub-logger at
// both stdout and a size-rotated, gzip-compressed log file, the way lnd's
// root log.go wires logWriter into a btclog.Backend at startup. The returned
// *RotatingLogWriter must be closed on shutdown so a partially rolled file
// finishes compressing.
func UseFileAndStdoutLogging(logFile string, maxFileSizeKB int64, maxRolls int, level btclog.Level) (*RotatingLogWriter, error) {
	rw, err := InitLogRotator(logFile, maxFileSizeKB, maxRolls)
	if err != nil {
		return nil, err
	}

	backend = btclog.NewBackend(io.MultiWriter(stdoutWriter{}, rw))
	loggingType = LogTypeDefault
	defaultLevel = level
	return rw, nil
}

// NewSubLogger returns a logger tagged with subsystem, wired into whatever
// backend is currently installed. A package's log.go calls this once at
// init() time; nothing downstream needs to care whether logging is enabled.
func NewSubLogger(subsystem string) btclog.Logger {
	if loggingType == LogTypeNone || backend == nil {
		return btclog.Disabled
	}

	logger := backend.Logger(subsystem)
	logger.SetLevel(defaultLevel)
	return logger
}
