package build

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

// RotatingLogWriter wraps a size-rotated, gzip-compressed log file the way
// lnd's build.RotatingLogWriter wraps jrick/logrotate for its own log file.
type RotatingLogWriter struct {
	rotator *rotator.Rotator
}

// InitLogRotator creates logFile's parent directory if it doesn't already
// exist and starts a rotator that rolls the file once it exceeds
// maxFileSizeKB kilobytes, keeping at most maxRolls compressed rolls around.
func InitLogRotator(logFile string, maxFileSizeKB int64, maxRolls int) (*RotatingLogWriter, error) {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, fmt.Errorf("build: create log directory %s: %w", logDir, err)
	}

	r, err := rotator.New(logFile, maxFileSizeKB, false, maxRolls)
	if err != nil {
		return nil, fmt.Errorf("build: create log rotator: %w", err)
	}

	return &RotatingLogWriter{rotator: r}, nil
}

// Write implements io.Writer so a RotatingLogWriter can back a btclog.Backend
// directly, or sit inside an io.MultiWriter alongside stdout.
func (w *RotatingLogWriter) Write(p []byte) (int, error) {
	return w.rotator.Write(p)
}

// Close flushes any in-flight compression of a just-rolled file and closes
// the active one. cmd/statechand calls this on shutdown.
func (w *RotatingLogWriter) Close() error {
	return w.rotator.Close()
}
