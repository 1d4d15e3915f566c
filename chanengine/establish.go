package chanengine

import (
	"fmt"
	"math/big"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/chanreg"
	"github.com/arbiterlabs/statechannel/ledger"
	"github.com/arbiterlabs/statechannel/metrics"
	"github.com/arbiterlabs/statechannel/transport"
)

// EstablishChannel deploys the arbiter and opens a channel with peerAddr,
// reachable at peerNet, depositing amount (spec.md §4.5.1). It blocks on
// the ledger call.
func (n *Node) EstablishChannel(peerAddr chanaddr.Address, peerNet chanaddr.NodeID, amount *big.Int) (chanaddr.ChannelID, error) {
	if amount == nil || amount.Sign() <= 0 {
		return chanaddr.ChannelID{}, fmt.Errorf("%w: amount must be positive", ErrBadArgument)
	}

	balance, err := n.gateway.Balance(n.selfAddr)
	if err != nil {
		return chanaddr.ChannelID{}, fmt.Errorf("%w: %v", ErrLedgerFailure, err)
	}
	if balance.Cmp(amount) < 0 {
		return chanaddr.ChannelID{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance, amount)
	}

	ctorArgs := ledger.ArbiterCtorArgs{
		Peer:         peerAddr,
		AppealPeriod: n.appealPeriod,
	}
	channelID, err := n.gateway.Deploy(n.contractBytecode, n.contractABI, n.priv, ctorArgs, amount)
	if err != nil {
		return chanaddr.ChannelID{}, fmt.Errorf("%w: deploy: %v", ErrLedgerFailure, err)
	}

	n.registry.Insert(&chanreg.Record{
		ID:            channelID,
		PeerAddr:      peerAddr,
		PeerNet:       peerNet,
		TotalDeposit:  new(big.Int).Set(amount),
		IsPartyOne:    true,
		LocalBalance1: new(big.Int).Set(amount),
		LocalBalance2: big.NewInt(0),
		LocalSerial:   0,
	})
	metrics.ChannelsOpened.Inc()

	log.Infof("established channel %s with peer %s, deposit %s", channelID, peerAddr, amount)

	n.transport.Send(peerNet, transport.NotifyChannel, transport.NotifyChannelPayload{
		ChannelID: channelID,
		SenderNet: n.selfNet,
	})

	return channelID, nil
}
