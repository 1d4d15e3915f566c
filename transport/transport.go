// Package transport implements the inter-node message bus (spec.md §4.3):
// typed one-way delivery of (dst, kind, payload), synchronous in the
// reference model so send_message returns only after the destination's
// handler has run. A pause flag drops every send silently, used to test
// failure tolerance.
package transport

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/statemsg"
)

// Kind identifies the shape of a message's Payload (spec.md §6).
type Kind uint8

const (
	// NotifyChannel carries (channel_id, sender_net) to a freshly added
	// counterparty.
	NotifyChannel Kind = iota

	// SendState carries a sender-signed statemsg.State.
	SendState

	// AckState carries the identical tuple, re-signed by the receiver.
	AckState
)

func (k Kind) String() string {
	switch k {
	case NotifyChannel:
		return "NOTIFY_CHANNEL"
	case SendState:
		return "SEND_STATE"
	case AckState:
		return "ACK_STATE"
	default:
		return "UNKNOWN"
	}
}

// NotifyChannelPayload is the payload of a NotifyChannel message.
type NotifyChannelPayload struct {
	ChannelID chanaddr.ChannelID
	SenderNet chanaddr.NodeID
}

// StatePayload is the payload of SendState and AckState messages.
type StatePayload struct {
	State statemsg.State
}

// Envelope is one message in flight on the bus. ID is stamped for log
// tracing only; the protocol's correctness never depends on it, only on the
// typed Kind/Payload and the signed state inside (spec.md §4.3 "the
// transport is not authenticated").
type Envelope struct {
	ID      string
	Dst     chanaddr.NodeID
	Kind    Kind
	Payload interface{}
}

// Handler processes one inbound envelope. Engine handlers registered here
// never return an error: spec.md §7 requires inbound-from-network failures
// to be silently dropped, never raised.
type Handler func(Envelope)

// Broker is the synchronous in-process message bus described in spec.md
// §4.3 and §5: Send returns only once the destination handler has
// finished running, so send -> receive_funds -> ack_transfer forms a strict
// request/response chain with no suspension points.
type Broker struct {
	mu       sync.RWMutex
	handlers map[chanaddr.NodeID]Handler
	paused   bool
}

// NewBroker returns an empty, unpaused broker.
func NewBroker() *Broker {
	return &Broker{
		handlers: make(map[chanaddr.NodeID]Handler),
	}
}

// Register associates dst with the handler that will run for every envelope
// addressed to it. A node calls this once at construction time.
func (b *Broker) Register(dst chanaddr.NodeID, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[dst] = h
}

// SetPaused toggles the drop-everything flag used to test failure tolerance
// (spec.md §4.3).
func (b *Broker) SetPaused(paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = paused
}

// Send delivers an envelope of the given kind/payload to dst, running dst's
// handler to completion before returning. It returns false (and drops the
// message) if the broker is paused or dst is unregistered.
func (b *Broker) Send(dst chanaddr.NodeID, kind Kind, payload interface{}) bool {
	b.mu.RLock()
	paused := b.paused
	h, ok := b.handlers[dst]
	b.mu.RUnlock()

	if paused || !ok {
		return false
	}

	h(Envelope{
		ID:      uuid.NewString(),
		Dst:     dst,
		Kind:    kind,
		Payload: payload,
	})
	return true
}

// String is convenience for log lines: "dst<-KIND".
func (e Envelope) String() string {
	return fmt.Sprintf("%s<-%s", e.Dst, e.Kind)
}
