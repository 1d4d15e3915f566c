// Package chanengine implements the protocol engine (spec.md §4.5): the
// entire off-chain surface of a node participating in bidirectional payment
// channels. Every exported method here either belongs to the local API
// (establish_channel, send, get_current_channel_state, close_channel,
// appeal_closed_chan, withdraw_funds, get_list_of_channels -- all of which
// raise typed errors on misuse) or is an inbound transport handler
// (notify_of_channel, receive_funds, ack_transfer -- all of which drop
// silently on a malicious or malformed message, per spec.md §7).
package chanengine

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/chanreg"
	"github.com/arbiterlabs/statechannel/ledger"
	"github.com/arbiterlabs/statechannel/transport"
)

// DefaultAppealPeriod is the protocol's safety floor: both the deploy-time
// parameter passed to the arbiter and the minimum a responder will accept
// on an inbound NotifyChannel (spec.md §6).
const DefaultAppealPeriod = 5

// Sender is the minimal transport capability a Node needs: deliver an
// envelope to dst and report whether it was actually delivered. Both
// transport.Broker and transport.WSClient satisfy this.
type Sender interface {
	Send(dst chanaddr.NodeID, kind transport.Kind, payload interface{}) bool
}

// brokerSender wraps a *transport.Broker as a Sender; its Send forwards
// every call to Broker.Send unchanged.
type brokerSender struct {
	broker *transport.Broker
}

func (b brokerSender) Send(dst chanaddr.NodeID, kind transport.Kind, payload interface{}) bool {
	return b.broker.Send(dst, kind, payload)
}

// NewBrokerSender wraps a transport.Broker as a Sender.
func NewBrokerSender(broker *transport.Broker) Sender {
	return brokerSender{broker: broker}
}

// Node is one participant's local protocol engine state: its key, its
// network identity, the registry of channels it knows about, and its
// collaborators (spec.md §6 "Node construction inputs").
type Node struct {
	priv     *btcec.PrivateKey
	selfAddr chanaddr.Address
	selfNet  chanaddr.NodeID

	transport Sender
	gateway   ledger.Gateway

	contractBytecode []byte
	contractABI      string

	appealPeriod uint64

	registry *chanreg.Registry
}

// New constructs a node. contractBytecode/contractABI are the arbiter
// artifacts supplied to ledger.Gateway.Deploy on establish_channel; appeal
// period defaults to DefaultAppealPeriod if zero.
func New(
	priv *btcec.PrivateKey,
	selfNet chanaddr.NodeID,
	tr Sender,
	gw ledger.Gateway,
	contractBytecode []byte,
	contractABI string,
	appealPeriod uint64,
) *Node {

	if appealPeriod == 0 {
		appealPeriod = DefaultAppealPeriod
	}

	return &Node{
		priv:             priv,
		selfAddr:         addressOf(priv),
		selfNet:          selfNet,
		transport:        tr,
		gateway:          gw,
		contractBytecode: contractBytecode,
		contractABI:      contractABI,
		appealPeriod:     appealPeriod,
		registry:         chanreg.New(),
	}
}

// SetTransport replaces the node's outbound Sender. cmd/statechand uses
// this to attach a transport.WSClient once the remote peer's address is
// known, after the node's own transport.WSServer is already listening.
func (n *Node) SetTransport(tr Sender) {
	n.transport = tr
}

// Address returns the node's on-ledger address.
func (n *Node) Address() chanaddr.Address {
	return n.selfAddr
}

// NetID returns the node's transport-level identity.
func (n *Node) NetID() chanaddr.NodeID {
	return n.selfNet
}

// GetListOfChannels returns an independent copy of the known channel ids
// (spec.md §6, §8 property 6, and the original implementation's
// node-level listing op -- see SPEC_FULL.md "Supplemented features").
func (n *Node) GetListOfChannels() []chanaddr.ChannelID {
	return n.registry.ChannelIDs()
}

func addressOf(priv *btcec.PrivateKey) chanaddr.Address {
	return chanaddr.FromPrivKey(priv)
}

// HandleEnvelope dispatches an inbound transport.Envelope to the matching
// handler. A process wiring a Node to a transport.Broker registers this as
// the broker handler for the node's NetID.
func (n *Node) HandleEnvelope(env transport.Envelope) {
	switch env.Kind {
	case transport.NotifyChannel:
		p, ok := env.Payload.(transport.NotifyChannelPayload)
		if !ok {
			log.Debugf("%s: dropping malformed NOTIFY_CHANNEL payload", n.selfNet)
			return
		}
		n.notifyOfChannel(p.ChannelID, p.SenderNet)

	case transport.SendState:
		p, ok := env.Payload.(transport.StatePayload)
		if !ok {
			log.Debugf("%s: dropping malformed SEND_STATE payload", n.selfNet)
			return
		}
		n.receiveFunds(p.State)

	case transport.AckState:
		p, ok := env.Payload.(transport.StatePayload)
		if !ok {
			log.Debugf("%s: dropping malformed ACK_STATE payload", n.selfNet)
			return
		}
		n.ackTransfer(p.State)

	default:
		log.Debugf("%s: dropping envelope of unknown kind %v", n.selfNet, env.Kind)
	}
}
