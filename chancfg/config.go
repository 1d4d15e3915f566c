// Package chancfg defines the node's configuration surface, parsed with
// jessevdk/go-flags the way lnd's lncfg package groups CLI options into a
// single struct (spec.md §6 "Configuration").
package chancfg

import (
	"fmt"

	flags "github.com/jessevdk/go-flags"

	"github.com/arbiterlabs/statechannel/chanengine"
)

// Config is the full set of knobs cmd/statechand accepts.
type Config struct {
	KeyFile string `long:"keyfile" description:"Path to the node's secp256k1 private key, hex encoded."`

	ListenAddr string `long:"listenaddr" description:"Address this node's transport server listens on."`
	PeerAddr   string `long:"peeraddr" description:"Address of the remote node's transport server, for the WSClient side."`

	LedgerRPCHost string `long:"ledger.host" description:"Ledger node JSON-RPC host:port."`
	LedgerRPCUser string `long:"ledger.user" description:"Ledger node JSON-RPC username."`
	LedgerRPCPass string `long:"ledger.pass" description:"Ledger node JSON-RPC password."`

	ContractBytecodeFile string `long:"contract.bytecode" description:"Path to the compiled arbiter bytecode."`
	ContractABIFile      string `long:"contract.abi" description:"Path to the arbiter contract ABI JSON."`

	AppealPeriod uint64 `long:"appealperiod" description:"Appeal window length in blocks." default:"5"`

	PrometheusListenAddr string `long:"prometheus.listenaddr" description:"Address to export Prometheus metrics on; empty disables it."`

	Simulate bool `long:"simulate" description:"Run against an in-memory ledger.SimGateway instead of a real ledger node."`

	LogFile        string `long:"logfile" description:"Path to a rotated log file; empty logs to stdout only."`
	MaxLogFileSize int64  `long:"maxlogfilesize" description:"Roll the log file once it reaches this size, in kilobytes." default:"10000"`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Number of rolled, compressed log files to keep around." default:"3"`
}

// DefaultConfig seeds the same sentinel defaults lnd's config.go seeds for
// every field a user doesn't override.
func DefaultConfig() Config {
	return Config{
		ListenAddr:           ":4589",
		LedgerRPCHost:        "localhost:8332",
		AppealPeriod:         chanengine.DefaultAppealPeriod,
		PrometheusListenAddr: "",
		Simulate:             false,
		MaxLogFileSize:       10000,
		MaxLogFiles:          3,
	}
}

// Parse parses args (typically os.Args[1:]) over a DefaultConfig, validating
// the result the way lncfg.Validate does for lnd: the appeal period can be
// raised above the protocol floor but never lowered below it, since a lower
// value would let this node accept unsafe channels from a peer (spec.md §9
// "notify_of_channel acceptance with appealPeriodLen < APPEAL_PERIOD").
func Parse(args []string) (*Config, error) {
	cfg := DefaultConfig()
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports a configuration error without touching the network.
func (c *Config) Validate() error {
	if c.AppealPeriod < chanengine.DefaultAppealPeriod {
		return fmt.Errorf("chancfg: appealperiod %d below protocol floor %d",
			c.AppealPeriod, chanengine.DefaultAppealPeriod)
	}
	if !c.Simulate && c.LedgerRPCHost == "" {
		return fmt.Errorf("chancfg: ledger.host is required unless -simulate is set")
	}
	return nil
}
