// Package ledger implements the ledger gateway (spec.md §4.2): the engine's
// only window onto the on-chain arbiter contract. It deploys the arbiter,
// submits signed transactions, answers read-only view calls, and reports
// receipt status. The gateway itself holds no state beyond its connection.
package ledger

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	pkgerrors "github.com/pkg/errors"

	"github.com/arbiterlabs/statechannel/chanaddr"
)

// Receipt reports the outcome of a submitted transaction. Success is the
// single bit the engine inspects to decide between a typed LedgerFailure and
// forward progress (spec.md §4.2, §7).
type Receipt struct {
	TxHash  [32]byte
	Success bool

	// RevertReason carries the arbiter's rejection reason when Success is
	// false and the transaction reached the chain (as opposed to a
	// network-level failure, which is returned as an error instead).
	RevertReason string
}

// ErrReverted marks an arbiter rejection, as opposed to a transport failure.
// SimGateway wraps it around every reverted getBalance view Call, which the
// engine's WithdrawFunds translates into CannotWithdrawYet, and
// RPCGateway.Deploy wraps it around a rejected deploy. Transact never returns
// it: a rejected state-changing call comes back as a Receipt with Success
// false.
var ErrReverted = pkgerrors.New("ledger: transaction reverted")

// ArbiterView is the set of read-only values the engine needs from the
// arbiter contract (spec.md §4.5.11). It is assembled from individual Call
// invocations by QueryArbiterView.
type ArbiterView struct {
	Party1           chanaddr.Address
	Party2           chanaddr.Address
	ChannelClosed    bool
	AppealPeriodLen  uint64
	TotalDeposit     *big.Int
	CurrentSerialNum uint64
}

// Gateway is the interface the engine consumes; spec.md §1 treats the real
// implementation (a JSON-RPC client, transaction signing, receipts) as an
// external collaborator, so this package supplies two: RPCGateway for a
// real ledger node, and SimGateway for tests (also implementing the
// arbiter's semantic contract in memory, per spec.md §4.5.11).
type Gateway interface {
	// Deploy submits the arbiter's constructor transaction and returns
	// its resulting contract address. It fails if the receipt status is
	// not success (spec.md §4.2).
	Deploy(bytecode []byte, abiJSON string, signer *btcec.PrivateKey, ctorArgs ArbiterCtorArgs, value *big.Int) (chanaddr.ChannelID, error)

	// Call invokes a read-only arbiter view method.
	Call(addr chanaddr.ChannelID, fn string, args ...interface{}) (interface{}, error)

	// Transact submits a signed state-changing transaction and returns
	// its receipt.
	Transact(addr chanaddr.ChannelID, signer *btcec.PrivateKey, fn string, args []interface{}, value *big.Int) (*Receipt, error)

	// Balance returns addr's ledger-level balance (not a channel
	// balance).
	Balance(addr chanaddr.Address) (*big.Int, error)

	// BlockNumber returns the current chain height.
	BlockNumber() (uint64, error)

	// Mine advances the chain by n blocks. Test-only; RPCGateway returns
	// an error if the connected node doesn't support it.
	Mine(n int) error
}

// ArbiterCtorArgs is the constructor argument tuple passed to Deploy:
// (peer address, appeal period length in blocks), per spec.md §4.5.1.
type ArbiterCtorArgs struct {
	Peer         chanaddr.Address
	AppealPeriod uint64
}

// QueryArbiterView assembles an ArbiterView from individual Call
// invocations, one per view: party1, party2, channelClosed, appealPeriodLen,
// totalDeposit and currentSerialNum.
func QueryArbiterView(gw Gateway, addr chanaddr.ChannelID) (ArbiterView, error) {
	var view ArbiterView

	p1, err := gw.Call(addr, "party1")
	if err != nil {
		return view, pkgerrors.Wrap(err, "ledger: party1")
	}
	view.Party1 = p1.(chanaddr.Address)

	p2, err := gw.Call(addr, "party2")
	if err != nil {
		return view, pkgerrors.Wrap(err, "ledger: party2")
	}
	view.Party2 = p2.(chanaddr.Address)

	closed, err := gw.Call(addr, "channelClosed")
	if err != nil {
		return view, pkgerrors.Wrap(err, "ledger: channelClosed")
	}
	view.ChannelClosed = closed.(bool)

	appealPeriod, err := gw.Call(addr, "appealPeriodLen")
	if err != nil {
		return view, pkgerrors.Wrap(err, "ledger: appealPeriodLen")
	}
	view.AppealPeriodLen = appealPeriod.(uint64)

	deposit, err := gw.Call(addr, "totalDeposit")
	if err != nil {
		return view, pkgerrors.Wrap(err, "ledger: totalDeposit")
	}
	view.TotalDeposit = deposit.(*big.Int)

	serial, err := gw.Call(addr, "currentSerialNum")
	if err != nil {
		return view, pkgerrors.Wrap(err, "ledger: currentSerialNum")
	}
	view.CurrentSerialNum = serial.(uint64)

	return view, nil
}
