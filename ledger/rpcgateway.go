package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/rpcclient"
	pkgerrors "github.com/pkg/errors"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/statemsg"
)

// RPCConfig carries the connection parameters for the ledger node, mirroring
// chainreg's rpcclient.ConnConfig usage one-to-one.
type RPCConfig struct {
	Host string
	User string
	Pass string
}

// RPCGateway is the production Gateway: a thin client over the ledger
// node's JSON-RPC interface, the same way lnd's chainreg package drives
// bitcoind through rpcclient. It carries no state of its own beyond the
// connection (spec.md §4.2).
type RPCGateway struct {
	client *rpcclient.Client
}

// NewRPCGateway dials the ledger node described by cfg.
func NewRPCGateway(cfg RPCConfig) (*RPCGateway, error) {
	conn := &rpcclient.ConnConfig{
		Host:                 cfg.Host,
		User:                 cfg.User,
		Pass:                 cfg.Pass,
		HTTPPostMode:         true,
		DisableTLS:           true,
		DisableConnectOnNew:  true,
		DisableAutoReconnect: false,
	}

	client, err := rpcclient.New(conn, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "ledger: dial ledger node")
	}
	return &RPCGateway{client: client}, nil
}

// rawCall marshals req as the sole positional parameter of a raw JSON-RPC
// request and unmarshals the result into resp.
func (g *RPCGateway) rawCall(method string, req, resp interface{}) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return pkgerrors.Wrap(err, "ledger: marshal request")
	}

	raw, err := g.client.RawRequest(method, []json.RawMessage{payload})
	if err != nil {
		return pkgerrors.Wrapf(err, "ledger: rpc %s", method)
	}

	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(raw, resp); err != nil {
		return pkgerrors.Wrapf(err, "ledger: decode %s response", method)
	}
	return nil
}

type deployRequest struct {
	Bytecode string `json:"bytecode"`
	ABI      string `json:"abi"`
	Signer   string `json:"signer"`
	Peer     string `json:"peer"`
	Period   uint64 `json:"appealPeriod"`
	Value    string `json:"value"`
}

type deployResponse struct {
	Address string `json:"address"`
	Success bool   `json:"success"`
}

// Deploy implements Gateway.
func (g *RPCGateway) Deploy(bytecode []byte, abiJSON string, signer *btcec.PrivateKey, ctorArgs ArbiterCtorArgs, value *big.Int) (chanaddr.ChannelID, error) {
	req := deployRequest{
		Bytecode: fmt.Sprintf("%x", bytecode),
		ABI:      abiJSON,
		Signer:   fmt.Sprintf("%x", signer.Serialize()),
		Peer:     ctorArgs.Peer.String(),
		Period:   ctorArgs.AppealPeriod,
		Value:    value.String(),
	}
	var resp deployResponse
	if err := g.rawCall("ledger_deploy", req, &resp); err != nil {
		return chanaddr.ChannelID{}, err
	}
	if !resp.Success {
		return chanaddr.ChannelID{}, fmt.Errorf("ledger: %w: deploy rejected", ErrReverted)
	}
	return chanaddr.ParseAddress(resp.Address)
}

type callRequest struct {
	Address string        `json:"address"`
	Method  string        `json:"method"`
	Args    []interface{} `json:"args"`
}

// Call implements Gateway.
func (g *RPCGateway) Call(addr chanaddr.ChannelID, fn string, args ...interface{}) (interface{}, error) {
	req := callRequest{Address: addr.String(), Method: fn, Args: args}
	var raw json.RawMessage
	if err := g.rawCall("ledger_call", req, &raw); err != nil {
		return nil, err
	}
	return decodeViewResult(fn, raw)
}

// decodeViewResult interprets the JSON payload for each known view method,
// since the wire format doesn't carry Go types directly.
func decodeViewResult(fn string, raw json.RawMessage) (interface{}, error) {
	switch fn {
	case "party1", "party2":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, pkgerrors.Wrap(err, "ledger: decode address result")
		}
		return chanaddr.ParseAddress(s)
	case "channelClosed":
		var b bool
		err := json.Unmarshal(raw, &b)
		return b, err
	case "appealPeriodLen", "currentSerialNum":
		var n uint64
		err := json.Unmarshal(raw, &n)
		return n, err
	case "totalDeposit", "getBalance":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, pkgerrors.Wrap(err, "ledger: decode amount result")
		}
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("ledger: malformed amount %q", s)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("ledger: unknown view method %q", fn)
	}
}

type transactRequest struct {
	Address string        `json:"address"`
	Signer  string        `json:"signer"`
	Method  string        `json:"method"`
	Args    []interface{} `json:"args"`
	Value   string        `json:"value"`
}

type transactResponse struct {
	TxHash       string `json:"txHash"`
	Success      bool   `json:"success"`
	RevertReason string `json:"revertReason"`
}

// Transact implements Gateway.
func (g *RPCGateway) Transact(addr chanaddr.ChannelID, signer *btcec.PrivateKey, fn string, args []interface{}, value *big.Int) (*Receipt, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	req := transactRequest{
		Address: addr.String(),
		Signer:  fmt.Sprintf("%x", signer.Serialize()),
		Method:  fn,
		Args:    encodeTransactArgs(args),
		Value:   value.String(),
	}
	var resp transactResponse
	if err := g.rawCall("ledger_transact", req, &resp); err != nil {
		return nil, err
	}

	decoded, err := hex.DecodeString(strings.TrimPrefix(resp.TxHash, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: malformed txHash %q: %w", resp.TxHash, err)
	}
	var txHash [32]byte
	copy(txHash[:], decoded)
	return &Receipt{
		TxHash:       txHash,
		Success:      resp.Success,
		RevertReason: resp.RevertReason,
	}, nil
}

// encodeTransactArgs turns close/appeal/withdraw argument tuples into
// JSON-friendly values; *big.Int becomes a decimal string and
// statemsg.Signature becomes its three scalar fields.
func encodeTransactArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case *big.Int:
			out[i] = v.String()
		case statemsg.Signature:
			out[i] = map[string]interface{}{
				"v": v.V,
				"r": fmt.Sprintf("%x", v.R),
				"s": fmt.Sprintf("%x", v.S),
			}
		case chanaddr.Address:
			out[i] = v.String()
		default:
			out[i] = v
		}
	}
	return out
}

// Balance implements Gateway.
func (g *RPCGateway) Balance(addr chanaddr.Address) (*big.Int, error) {
	var s string
	if err := g.rawCall("ledger_balance", addr.String(), &s); err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("ledger: malformed balance %q", s)
	}
	return n, nil
}

// BlockNumber implements Gateway.
func (g *RPCGateway) BlockNumber() (uint64, error) {
	var n uint64
	err := g.rawCall("ledger_blockNumber", struct{}{}, &n)
	return n, err
}

// Mine implements Gateway. Production ledger nodes reject this; it exists
// for integration tests run against a local dev chain.
func (g *RPCGateway) Mine(n int) error {
	return g.rawCall("ledger_mine", n, nil)
}
