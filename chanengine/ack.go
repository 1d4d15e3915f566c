package chanengine

import (
	"github.com/arbiterlabs/statechannel/chanreg"
	"github.com/arbiterlabs/statechannel/metrics"
	"github.com/arbiterlabs/statechannel/statemsg"
)

// ackTransfer is the ACK_STATE inbound handler (spec.md §4.5.5): the sole
// path by which a sender's LastCountersigned advances. It drops silently on
// the same checks as receiveFunds, minus the strict-serial-increase
// requirement -- an ack may legitimately echo the sender's own current
// serial.
func (n *Node) ackTransfer(msg statemsg.State) {
	rec := n.registry.Get(msg.Channel)
	if rec == nil {
		log.Debugf("%s: dropping ACK_STATE for unknown channel %s", n.selfNet, msg.Channel)
		return
	}

	if !statemsg.Verify(msg, rec.PeerAddr) {
		log.Debugf("%s: dropping ACK_STATE on %s: bad signature", n.selfNet, msg.Channel)
		return
	}
	if msg.Serial < rec.LocalSerial {
		log.Debugf("%s: dropping ACK_STATE on %s: stale serial %d < %d",
			n.selfNet, msg.Channel, msg.Serial, rec.LocalSerial)
		return
	}

	newOwnBalance := msg.Balance2
	if rec.IsPartyOne {
		newOwnBalance = msg.Balance1
	}
	if newOwnBalance.Cmp(rec.OwnBalance()) < 0 {
		log.Debugf("%s: dropping ACK_STATE on %s: own balance would decrease", n.selfNet, msg.Channel)
		return
	}

	n.registry.Mutate(msg.Channel, func(live *chanreg.Record) {
		countersigned := msg
		live.LastCountersigned = &countersigned
	})
	metrics.AcksAccepted.Inc()

	log.Debugf("%s: countersigned state advanced on %s, serial=%d", n.selfNet, msg.Channel, msg.Serial)
}
