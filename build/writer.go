package build

import "os"

// stdoutWriter adapts os.Stdout to the io.Writer shape btclog.NewBackend
// expects for the stdout-only test logging path.
type stdoutWriter struct{}

func (stdoutWriter) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}
