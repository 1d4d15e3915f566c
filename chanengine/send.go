package chanengine

import (
	"fmt"
	"math/big"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/chanreg"
	"github.com/arbiterlabs/statechannel/metrics"
	"github.com/arbiterlabs/statechannel/statemsg"
	"github.com/arbiterlabs/statechannel/transport"
)

// Send transfers amount from this node to its peer off-chain (spec.md
// §4.5.3). The local balance update is applied optimistically, before the
// peer's ack arrives: if the ack never comes, this node still holds an
// older countersigned state strictly more favorable to it, and that is
// what it will close with (spec.md §9).
func (n *Node) Send(channelID chanaddr.ChannelID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrBadArgument)
	}

	rec := n.registry.Get(channelID)
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	if rec.Closed {
		return fmt.Errorf("%w: %s", ErrAlreadyClosed, channelID)
	}
	if rec.OwnBalance().Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, rec.OwnBalance(), amount)
	}

	var newB1, newB2 *big.Int
	if rec.IsPartyOne {
		newB1 = new(big.Int).Sub(rec.LocalBalance1, amount)
		newB2 = new(big.Int).Add(rec.LocalBalance2, amount)
	} else {
		newB1 = new(big.Int).Add(rec.LocalBalance1, amount)
		newB2 = new(big.Int).Sub(rec.LocalBalance2, amount)
	}
	newSerial := rec.LocalSerial + 1

	msg := statemsg.Sign(n.priv, statemsg.State{
		Channel:  channelID,
		Balance1: newB1,
		Balance2: newB2,
		Serial:   newSerial,
	})

	n.registry.Mutate(channelID, func(live *chanreg.Record) {
		live.LocalBalance1 = newB1
		live.LocalBalance2 = newB2
		live.LocalSerial = newSerial
	})
	metrics.TransfersSent.Inc()

	log.Debugf("%s: sent %s on channel %s, serial=%d", n.selfNet, amount, channelID, newSerial)

	n.transport.Send(rec.PeerNet, transport.SendState, transport.StatePayload{State: msg})

	return nil
}
