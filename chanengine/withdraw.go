package chanengine

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/ledger"
	"github.com/arbiterlabs/statechannel/metrics"
)

// WithdrawFunds claims this node's share after the appeal window has
// elapsed (spec.md §4.5.9). A revert from the arbiter's getBalance view
// (window not over, or not a participant) is translated into
// ErrCannotWithdrawYet. On success, whatever the withdrawn amount, the
// record is removed from the registry.
func (n *Node) WithdrawFunds(channelID chanaddr.ChannelID) (*big.Int, error) {
	if !n.registry.Has(channelID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}

	balance, err := n.gateway.Call(channelID, "getBalance", n.selfAddr)
	if err != nil {
		if errors.Is(err, ledger.ErrReverted) {
			return nil, fmt.Errorf("%w: %v", ErrCannotWithdrawYet, err)
		}
		return nil, fmt.Errorf("%w: getBalance: %v", ErrLedgerFailure, err)
	}
	owed := balance.(*big.Int)

	if owed.Sign() > 0 {
		receipt, err := n.gateway.Transact(channelID, n.priv, "withdrawFunds", []interface{}{n.selfAddr}, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: withdrawFunds: %v", ErrLedgerFailure, err)
		}
		if !receipt.Success {
			return nil, fmt.Errorf("%w: withdrawFunds reverted: %s", ErrLedgerFailure, receipt.RevertReason)
		}
	}

	n.registry.Delete(channelID)
	metrics.ChannelsWithdrawn.Inc()

	log.Infof("%s: withdrew %s from channel %s", n.selfNet, owed, channelID)

	return owed, nil
}
