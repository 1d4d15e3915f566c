package ledger

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/statemsg"
)

// arbiterState is the in-memory analog of a deployed arbiter contract,
// enforcing exactly the invariants spec.md §4.5.11 requires of the real
// Solidity contract this package doesn't implement.
type arbiterState struct {
	party1       chanaddr.Address
	party2       chanaddr.Address
	totalDeposit *big.Int
	appealPeriod uint64

	closed           bool
	closeBlock       uint64
	currentSerialNum uint64
	balance1         *big.Int
	balance2         *big.Int

	withdrawn map[chanaddr.Address]bool
}

// SimGateway is an in-memory Gateway plus arbiter implementation used by
// tests (and by cmd/statechand's -simulate mode). It stands in for both the
// JSON-RPC ledger gateway and the Solidity arbiter contract, so scenario
// tests can drive close/appeal/withdraw without a real chain.
type SimGateway struct {
	mu sync.Mutex

	block     uint64
	ledger    map[chanaddr.Address]*big.Int
	contracts map[chanaddr.ChannelID]*arbiterState

	// TxCount is incremented on every Deploy/Transact call, letting tests
	// assert exactly how many ledger transactions a scenario produced
	// (spec.md §8 scenarios S1, S2).
	TxCount int
}

// NewSimGateway returns a SimGateway with every address in initialBalances
// pre-funded.
func NewSimGateway(initialBalances map[chanaddr.Address]*big.Int) *SimGateway {
	ledger := make(map[chanaddr.Address]*big.Int, len(initialBalances))
	for addr, bal := range initialBalances {
		ledger[addr] = new(big.Int).Set(bal)
	}
	return &SimGateway{
		block:     1,
		ledger:    ledger,
		contracts: make(map[chanaddr.ChannelID]*arbiterState),
	}
}

func randomChannelID() chanaddr.ChannelID {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return b
}

// Deploy implements Gateway. bytecode/abiJSON are accepted for interface
// parity with the real arbiter deployment (spec.md §4.2, §6) but unused: the
// simulated contract's behavior is fixed Go code, not bytecode.
func (g *SimGateway) Deploy(bytecode []byte, abiJSON string, signer *btcec.PrivateKey, ctorArgs ArbiterCtorArgs, value *big.Int) (chanaddr.ChannelID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TxCount++

	from := addressOf(signer)
	if g.ledger[from] == nil || g.ledger[from].Cmp(value) < 0 {
		return chanaddr.ChannelID{}, fmt.Errorf("ledger: insufficient funds to deploy")
	}
	g.ledger[from] = new(big.Int).Sub(g.ledger[from], value)

	id := randomChannelID()
	g.contracts[id] = &arbiterState{
		party1:           from,
		party2:           ctorArgs.Peer,
		totalDeposit:     new(big.Int).Set(value),
		appealPeriod:     ctorArgs.AppealPeriod,
		currentSerialNum: 0,
		balance1:         new(big.Int).Set(value),
		balance2:         big.NewInt(0),
		withdrawn:        make(map[chanaddr.Address]bool),
	}
	return id, nil
}

// Call implements Gateway.
func (g *SimGateway) Call(addr chanaddr.ChannelID, fn string, args ...interface{}) (interface{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("ledger: unknown contract %s", addr)
	}

	switch fn {
	case "party1":
		return c.party1, nil
	case "party2":
		return c.party2, nil
	case "channelClosed":
		return c.closed, nil
	case "appealPeriodLen":
		return c.appealPeriod, nil
	case "totalDeposit":
		return new(big.Int).Set(c.totalDeposit), nil
	case "currentSerialNum":
		return c.currentSerialNum, nil
	case "getBalance":
		caller, ok := args[0].(chanaddr.Address)
		if !ok {
			return nil, fmt.Errorf("ledger: getBalance requires an address argument")
		}
		return g.getBalanceLocked(c, caller)
	default:
		return nil, fmt.Errorf("ledger: unknown view method %q", fn)
	}
}

// getBalanceLocked implements the arbiter's getBalance view, called with
// g.mu already held: it reverts if the window hasn't elapsed or the caller
// isn't a participant (spec.md §4.5.9, §4.5.11).
func (g *SimGateway) getBalanceLocked(c *arbiterState, caller chanaddr.Address) (*big.Int, error) {
	if !c.closed {
		return nil, fmt.Errorf("ledger: %w: channel not closed", ErrReverted)
	}
	if g.block < c.closeBlock+c.appealPeriod {
		return nil, fmt.Errorf("ledger: %w: appeal window not elapsed", ErrReverted)
	}
	switch caller {
	case c.party1:
		return new(big.Int).Set(c.balance1), nil
	case c.party2:
		return new(big.Int).Set(c.balance2), nil
	default:
		return nil, fmt.Errorf("ledger: %w: not a participant", ErrReverted)
	}
}

// Transact implements Gateway.
func (g *SimGateway) Transact(addr chanaddr.ChannelID, signer *btcec.PrivateKey, fn string, args []interface{}, value *big.Int) (*Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TxCount++

	c, ok := g.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("ledger: unknown contract %s", addr)
	}
	caller := addressOf(signer)

	switch fn {
	case "oneSidedClose":
		return g.oneSidedClose(addr, c, caller, args)
	case "appealClosure":
		return g.appealClosure(addr, c, caller, args)
	case "withdrawFunds":
		return g.withdrawFunds(addr, c, caller, args)
	default:
		return nil, fmt.Errorf("ledger: unknown transact method %q", fn)
	}
}

func closeArgs(args []interface{}) (b1, b2 *big.Int, serial uint64, sig statemsg.Signature) {
	return args[0].(*big.Int), args[1].(*big.Int), args[2].(uint64), args[3].(statemsg.Signature)
}

// oneSidedClose implements the arbiter's close entrypoint (spec.md
// §4.5.11): while not closed, accepts only if the signature recovers to the
// OTHER party and the invariant b1+b2==totalDeposit holds; serial==0 with a
// zero signature is the accepted unsigned escape hatch.
func (g *SimGateway) oneSidedClose(addr chanaddr.ChannelID, c *arbiterState, caller chanaddr.Address, args []interface{}) (*Receipt, error) {
	b1, b2, serial, sig := closeArgs(args)

	if c.closed {
		return &Receipt{Success: false, RevertReason: "already closed"}, nil
	}
	if new(big.Int).Add(b1, b2).Cmp(c.totalDeposit) != 0 {
		return &Receipt{Success: false, RevertReason: "balances do not sum to deposit"}, nil
	}

	other, err := otherParty(c, caller)
	if err != nil {
		return &Receipt{Success: false, RevertReason: err.Error()}, nil
	}

	if serial != 0 || !sig.IsZero() {
		msg := statemsg.State{Channel: addr, Balance1: b1, Balance2: b2, Serial: serial, Sig: sig}
		if !statemsg.Verify(msg, other) {
			return &Receipt{Success: false, RevertReason: "signature does not recover to counterparty"}, nil
		}
	}

	c.closed = true
	c.closeBlock = g.block
	c.currentSerialNum = serial
	c.balance1 = new(big.Int).Set(b1)
	c.balance2 = new(big.Int).Set(b2)

	return &Receipt{Success: true}, nil
}

// appealClosure implements the arbiter's appeal entrypoint (spec.md
// §4.5.11): only within the window, accepts only a strictly newer serial
// whose signature recovers to the other party.
func (g *SimGateway) appealClosure(addr chanaddr.ChannelID, c *arbiterState, caller chanaddr.Address, args []interface{}) (*Receipt, error) {
	b1, b2, serial, sig := closeArgs(args)

	if !c.closed {
		return &Receipt{Success: false, RevertReason: "not closed"}, nil
	}
	if g.block >= c.closeBlock+c.appealPeriod {
		return &Receipt{Success: false, RevertReason: "appeal window elapsed"}, nil
	}
	if serial <= c.currentSerialNum {
		return &Receipt{Success: false, RevertReason: "serial not newer"}, nil
	}
	if new(big.Int).Add(b1, b2).Cmp(c.totalDeposit) != 0 {
		return &Receipt{Success: false, RevertReason: "balances do not sum to deposit"}, nil
	}

	other, err := otherParty(c, caller)
	if err != nil {
		return &Receipt{Success: false, RevertReason: err.Error()}, nil
	}
	msg := statemsg.State{Channel: addr, Balance1: b1, Balance2: b2, Serial: serial, Sig: sig}
	if !statemsg.Verify(msg, other) {
		return &Receipt{Success: false, RevertReason: "signature does not recover to counterparty"}, nil
	}

	c.currentSerialNum = serial
	c.balance1 = new(big.Int).Set(b1)
	c.balance2 = new(big.Int).Set(b2)

	return &Receipt{Success: true}, nil
}

// withdrawFunds implements the arbiter's withdraw entrypoint: only after the
// window, pays the caller's recorded balance to the requested address, with
// double-pay protection (spec.md §4.5.11).
func (g *SimGateway) withdrawFunds(addr chanaddr.ChannelID, c *arbiterState, caller chanaddr.Address, args []interface{}) (*Receipt, error) {
	to, ok := args[0].(chanaddr.Address)
	if !ok {
		return nil, fmt.Errorf("ledger: withdrawFunds requires an address argument")
	}
	if !c.closed || g.block < c.closeBlock+c.appealPeriod {
		return &Receipt{Success: false, RevertReason: "window not elapsed"}, nil
	}
	if c.withdrawn[caller] {
		return &Receipt{Success: false, RevertReason: "already withdrawn"}, nil
	}

	bal, err := g.getBalanceLocked(c, caller)
	if err != nil {
		return &Receipt{Success: false, RevertReason: err.Error()}, nil
	}

	c.withdrawn[caller] = true
	if g.ledger[to] == nil {
		g.ledger[to] = big.NewInt(0)
	}
	g.ledger[to] = new(big.Int).Add(g.ledger[to], bal)

	return &Receipt{Success: true}, nil
}

func otherParty(c *arbiterState, caller chanaddr.Address) (chanaddr.Address, error) {
	switch caller {
	case c.party1:
		return c.party2, nil
	case c.party2:
		return c.party1, nil
	default:
		return chanaddr.Address{}, fmt.Errorf("caller is not a participant")
	}
}

// Balance implements Gateway.
func (g *SimGateway) Balance(addr chanaddr.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if bal, ok := g.ledger[addr]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

// BlockNumber implements Gateway.
func (g *SimGateway) BlockNumber() (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.block, nil
}

// Mine implements Gateway.
func (g *SimGateway) Mine(n int) error {
	if n < 0 {
		return fmt.Errorf("ledger: cannot mine a negative number of blocks")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.block += uint64(n)
	return nil
}

func addressOf(priv *btcec.PrivateKey) chanaddr.Address {
	return chanaddr.FromPrivKey(priv)
}
