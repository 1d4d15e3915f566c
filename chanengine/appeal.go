package chanengine

import (
	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/chanreg"
	"github.com/arbiterlabs/statechannel/ledger"
	"github.com/arbiterlabs/statechannel/metrics"
)

// AppealClosedChan is meant to be invoked by a node monitoring the ledger
// for a stale unilateral close (spec.md §4.5.8). It returns false -- no
// appeal submitted -- if the channel is unknown, the arbiter reports it as
// not closed, this node holds no countersigned state, or that state's
// serial isn't strictly newer than the arbiter's currentSerialNum.
func (n *Node) AppealClosedChan(channelID chanaddr.ChannelID) bool {
	rec := n.registry.Get(channelID)
	if rec == nil {
		return false
	}

	view, err := ledger.QueryArbiterView(n.gateway, channelID)
	if err != nil {
		log.Debugf("%s: appeal on %s: arbiter query failed: %v", n.selfNet, channelID, err)
		return false
	}
	if !view.ChannelClosed {
		return false
	}

	n.registry.Mutate(channelID, func(live *chanreg.Record) {
		live.Closed = true
	})

	if rec.LastCountersigned == nil {
		return false
	}
	if rec.LastCountersigned.Serial <= view.CurrentSerialNum {
		return false
	}

	state := *rec.LastCountersigned
	args := []interface{}{state.Balance1, state.Balance2, state.Serial, state.Sig}

	receipt, err := n.gateway.Transact(channelID, n.priv, "appealClosure", args, nil)
	if err != nil {
		log.Debugf("%s: appeal on %s: transact failed: %v", n.selfNet, channelID, err)
		return false
	}
	if receipt.Success {
		metrics.ChannelsAppealed.Inc()
	}

	log.Infof("%s: appealed channel %s at serial %d, success=%v", n.selfNet, channelID, state.Serial, receipt.Success)

	return receipt.Success
}
