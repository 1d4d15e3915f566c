package chanreg

import (
	"github.com/btcsuite/btclog"

	"github.com/arbiterlabs/statechannel/build"
)

// log is the package-level logger, disabled until UseLogger is called.
var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("CREG"))
}

// UseLogger lets the caller (typically cmd/statechand) wire this package's
// logging into the shared backend.
func UseLogger(logger btclog.Logger) {
	log = logger
}
