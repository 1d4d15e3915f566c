package chanengine

import (
	"math/big"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/chanreg"
	"github.com/arbiterlabs/statechannel/ledger"
)

// notifyOfChannel is the NOTIFY_CHANNEL inbound handler (spec.md §4.5.2).
// It never raises: a bogus channel id or an unreachable ledger just leaves
// the channel unknown to this node.
func (n *Node) notifyOfChannel(channelID chanaddr.ChannelID, peerNet chanaddr.NodeID) {
	if n.registry.Has(channelID) {
		return
	}

	view, err := ledger.QueryArbiterView(n.gateway, channelID)
	if err != nil {
		log.Debugf("%s: dropping NOTIFY_CHANNEL %s: arbiter query failed: %v", n.selfNet, channelID, err)
		return
	}

	var isPartyOne bool
	switch n.selfAddr {
	case view.Party1:
		isPartyOne = true
	case view.Party2:
		isPartyOne = false
	default:
		log.Debugf("%s: dropping NOTIFY_CHANNEL %s: not a participant", n.selfNet, channelID)
		return
	}

	if view.ChannelClosed {
		log.Debugf("%s: dropping NOTIFY_CHANNEL %s: already closed", n.selfNet, channelID)
		return
	}
	if view.AppealPeriodLen < n.appealPeriod {
		log.Debugf("%s: dropping NOTIFY_CHANNEL %s: appeal period %d below floor %d",
			n.selfNet, channelID, view.AppealPeriodLen, n.appealPeriod)
		return
	}

	peerAddr := view.Party2
	if !isPartyOne {
		peerAddr = view.Party1
	}

	n.registry.Insert(&chanreg.Record{
		ID:            channelID,
		PeerAddr:      peerAddr,
		PeerNet:       peerNet,
		TotalDeposit:  view.TotalDeposit,
		IsPartyOne:    isPartyOne,
		LocalBalance1: new(big.Int).Set(view.TotalDeposit),
		LocalBalance2: big.NewInt(0),
		LocalSerial:   0,
	})

	log.Infof("%s: recorded channel %s, peer %s (party1=%v)", n.selfNet, channelID, peerAddr, isPartyOne)
}
