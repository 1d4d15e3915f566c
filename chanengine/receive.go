package chanengine

import (
	"github.com/arbiterlabs/statechannel/chanreg"
	"github.com/arbiterlabs/statechannel/metrics"
	"github.com/arbiterlabs/statechannel/statemsg"
	"github.com/arbiterlabs/statechannel/transport"
)

// receiveFunds is the SEND_STATE inbound handler (spec.md §4.5.4). It drops
// silently on any check failure -- an unknown channel, a bad signature, a
// stale or replayed serial, or a "transfer" that would reduce this node's
// own balance -- since a malicious peer must never be able to disrupt this
// node by sending garbage (spec.md §7).
func (n *Node) receiveFunds(msg statemsg.State) {
	rec := n.registry.Get(msg.Channel)
	if rec == nil {
		log.Debugf("%s: dropping SEND_STATE for unknown channel %s", n.selfNet, msg.Channel)
		return
	}

	if !statemsg.Verify(msg, rec.PeerAddr) {
		log.Debugf("%s: dropping SEND_STATE on %s: bad signature", n.selfNet, msg.Channel)
		return
	}
	if msg.Serial <= rec.LocalSerial {
		log.Debugf("%s: dropping SEND_STATE on %s: stale serial %d <= %d",
			n.selfNet, msg.Channel, msg.Serial, rec.LocalSerial)
		return
	}

	newOwnBalance := msg.Balance2
	if rec.IsPartyOne {
		newOwnBalance = msg.Balance1
	}
	if newOwnBalance.Cmp(rec.OwnBalance()) < 0 {
		log.Debugf("%s: dropping SEND_STATE on %s: own balance would decrease", n.selfNet, msg.Channel)
		return
	}

	n.registry.Mutate(msg.Channel, func(live *chanreg.Record) {
		live.LocalBalance1 = msg.Balance1
		live.LocalBalance2 = msg.Balance2
		live.LocalSerial = msg.Serial
		countersigned := msg
		live.LastCountersigned = &countersigned
	})
	metrics.TransfersReceived.Inc()

	log.Debugf("%s: accepted SEND_STATE on %s, serial=%d", n.selfNet, msg.Channel, msg.Serial)

	ack := statemsg.Sign(n.priv, statemsg.State{
		Channel:  msg.Channel,
		Balance1: msg.Balance1,
		Balance2: msg.Balance2,
		Serial:   msg.Serial,
	})
	n.transport.Send(rec.PeerNet, transport.AckState, transport.StatePayload{State: ack})
}
