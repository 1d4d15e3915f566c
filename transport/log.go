package transport

import (
	"github.com/btcsuite/btclog"

	"github.com/arbiterlabs/statechannel/build"
)

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("TRSP"))
}

// UseLogger lets the caller wire this package's logging into the shared
// backend.
func UseLogger(logger btclog.Logger) {
	log = logger
}
