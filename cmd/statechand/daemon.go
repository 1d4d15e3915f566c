package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arbiterlabs/statechannel/build"
	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/chancfg"
	"github.com/arbiterlabs/statechannel/chanengine"
	"github.com/arbiterlabs/statechannel/chanreg"
	"github.com/arbiterlabs/statechannel/ledger"
	"github.com/arbiterlabs/statechannel/transport"
)

// Run wires together logging, the ledger gateway, the transport, and a
// single Node, then blocks until an interrupt signal arrives. It mirrors
// lnd's cmd/lnd.Main: a thin entrypoint delegating to library code so the
// wiring can also be driven from tests.
func Run(cfg *chancfg.Config) error {
	var logCloser io.Closer
	if cfg.LogFile != "" {
		rw, err := build.UseFileAndStdoutLogging(cfg.LogFile, cfg.MaxLogFileSize, cfg.MaxLogFiles, btclog.LevelInfo)
		if err != nil {
			return fmt.Errorf("daemon: init log rotator: %w", err)
		}
		logCloser = rw
	} else {
		build.UseStdoutLogging(btclog.LevelInfo)
	}
	chanengine.UseLogger(build.NewSubLogger("CENG"))
	chanreg.UseLogger(build.NewSubLogger("CREG"))
	ledger.UseLogger(build.NewSubLogger("LDGR"))
	transport.UseLogger(build.NewSubLogger("TRSP"))

	priv, err := loadPrivateKey(cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("daemon: load key: %w", err)
	}

	gw, err := buildGateway(cfg)
	if err != nil {
		return fmt.Errorf("daemon: gateway: %w", err)
	}

	bytecode, abiJSON, err := loadContractArtifacts(cfg)
	if err != nil {
		return fmt.Errorf("daemon: contract artifacts: %w", err)
	}

	selfNet := chanaddr.NodeID(cfg.ListenAddr)
	node := chanengine.New(priv, selfNet, nil, gw, bytecode, abiJSON, cfg.AppealPeriod)

	wsServer := transport.NewWSServer(node.HandleEnvelope)
	mux := http.NewServeMux()
	mux.Handle("/transport", wsServer)
	if cfg.PrometheusListenAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{Addr: cfg.PrometheusListenAddr, Handler: metricsMux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "daemon: metrics server: %v\n", err)
			}
		}()
		defer metricsSrv.Close()
	}

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "daemon: transport server: %v\n", err)
		}
	}()

	if cfg.PeerAddr != "" {
		client, err := transport.DialWSClient(cfg.PeerAddr)
		if err != nil {
			return fmt.Errorf("daemon: dial peer: %w", err)
		}
		defer client.Close()
		node.SetTransport(client)
	}

	waitForInterrupt()
	srvErr := srv.Close()
	if logCloser != nil {
		if err := logCloser.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "daemon: close log rotator: %v\n", err)
		}
	}
	return srvErr
}

func waitForInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}

func loadPrivateKey(path string) (*btcec.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	keyBytes, err := hex.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed key file: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(keyBytes)
	return priv, nil
}

func buildGateway(cfg *chancfg.Config) (ledger.Gateway, error) {
	if cfg.Simulate {
		return ledger.NewSimGateway(nil), nil
	}
	return ledger.NewRPCGateway(ledger.RPCConfig{
		Host: cfg.LedgerRPCHost,
		User: cfg.LedgerRPCUser,
		Pass: cfg.LedgerRPCPass,
	})
}

func loadContractArtifacts(cfg *chancfg.Config) (bytecode []byte, abiJSON string, err error) {
	if cfg.ContractBytecodeFile == "" {
		return nil, "", nil
	}
	bytecode, err = os.ReadFile(cfg.ContractBytecodeFile)
	if err != nil {
		return nil, "", err
	}
	abiBytes, err := os.ReadFile(cfg.ContractABIFile)
	if err != nil {
		return nil, "", err
	}
	return bytecode, string(abiBytes), nil
}
