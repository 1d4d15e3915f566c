package chanengine

import (
	"fmt"
	"math/big"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/chanreg"
	"github.com/arbiterlabs/statechannel/metrics"
	"github.com/arbiterlabs/statechannel/statemsg"
)

// CloseChannel submits a unilateral close to the arbiter (spec.md §4.5.7).
// If override is non-nil, it is used verbatim instead of
// GetCurrentChannelState, which is how tests exercise a cheating closer
// (spec.md §8 scenario S3). CloseChannel never notifies the peer --
// discovery of an on-chain close is the peer's responsibility via
// AppealClosedChan.
func (n *Node) CloseChannel(channelID chanaddr.ChannelID, override *statemsg.State) (bool, error) {
	rec := n.registry.Get(channelID)
	if rec == nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	if rec.Closed {
		return false, fmt.Errorf("%w: %s", ErrAlreadyClosed, channelID)
	}

	// A peer may have already closed on-chain without us observing it yet
	// (spec.md §8 scenario S5). A view call costs no ledger transaction, so
	// checking first keeps a redundant close from ever reaching Transact.
	closedOnChain, err := n.gateway.Call(channelID, "channelClosed")
	if err == nil && closedOnChain == true {
		n.registry.Mutate(channelID, func(live *chanreg.Record) {
			live.Closed = true
		})
		return false, fmt.Errorf("%w: %s", ErrAlreadyClosed, channelID)
	}

	var state statemsg.State
	if override != nil {
		state = *override
	} else {
		var err error
		state, err = n.GetCurrentChannelState(channelID)
		if err != nil {
			return false, err
		}
	}

	var args []interface{}
	if state.Serial == 0 {
		// The accepted unsigned "initial state" escape hatch (spec.md
		// §4.5.7, §4.5.11): total deposit to balance1, zero serial,
		// all-zero signature, regardless of what override carried.
		args = []interface{}{
			new(big.Int).Set(rec.TotalDeposit),
			big.NewInt(0),
			uint64(0),
			statemsg.Signature{},
		}
	} else {
		args = []interface{}{state.Balance1, state.Balance2, state.Serial, state.Sig}
	}

	receipt, err := n.gateway.Transact(channelID, n.priv, "oneSidedClose", args, nil)
	if err != nil {
		return false, fmt.Errorf("%w: oneSidedClose: %v", ErrLedgerFailure, err)
	}

	n.registry.Mutate(channelID, func(live *chanreg.Record) {
		live.Closed = true
	})
	metrics.ChannelsClosed.Inc()

	log.Infof("%s: closed channel %s at serial %d, success=%v", n.selfNet, channelID, state.Serial, receipt.Success)

	return receipt.Success, nil
}
