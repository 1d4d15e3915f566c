package transport

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/statemsg"
)

func TestSendDeliversToRegisteredHandler(t *testing.T) {
	b := NewBroker()
	var got Envelope
	b.Register(chanaddr.NodeID("bob"), func(e Envelope) {
		got = e
	})

	payload := NotifyChannelPayload{SenderNet: chanaddr.NodeID("alice")}
	ok := b.Send(chanaddr.NodeID("bob"), NotifyChannel, payload)

	require.True(t, ok)
	require.Equal(t, NotifyChannel, got.Kind)
	require.Equal(t, payload, got.Payload)
	require.NotEmpty(t, got.ID)
}

func TestSendReturnsFalseForUnregisteredDst(t *testing.T) {
	b := NewBroker()
	ok := b.Send(chanaddr.NodeID("nobody"), NotifyChannel, nil)
	require.False(t, ok)
}

func TestSendDropsEverythingWhilePaused(t *testing.T) {
	b := NewBroker()
	called := false
	b.Register(chanaddr.NodeID("bob"), func(e Envelope) { called = true })

	b.SetPaused(true)
	ok := b.Send(chanaddr.NodeID("bob"), NotifyChannel, nil)

	require.False(t, ok)
	require.False(t, called)

	b.SetPaused(false)
	ok = b.Send(chanaddr.NodeID("bob"), NotifyChannel, nil)
	require.True(t, ok)
	require.True(t, called)
}

func TestSendRunsHandlerSynchronouslyBeforeReturning(t *testing.T) {
	b := NewBroker()
	var order []string
	b.Register(chanaddr.NodeID("bob"), func(e Envelope) {
		order = append(order, "handler")
	})

	order = append(order, "before")
	b.Send(chanaddr.NodeID("bob"), NotifyChannel, nil)
	order = append(order, "after")

	require.Equal(t, []string{"before", "handler", "after"}, order)
}

func TestStatePayloadRoundTripsThroughEnvelope(t *testing.T) {
	b := NewBroker()
	var channel chanaddr.ChannelID
	channel[0] = 0x42

	state := statemsg.State{
		Channel:  channel,
		Balance1: big.NewInt(7),
		Balance2: big.NewInt(3),
		Serial:   1,
	}

	var received statemsg.State
	b.Register(chanaddr.NodeID("bob"), func(e Envelope) {
		received = e.Payload.(StatePayload).State
	})

	b.Send(chanaddr.NodeID("bob"), SendState, StatePayload{State: state})

	require.Equal(t, 0, received.Balance1.Cmp(state.Balance1))
	require.Equal(t, state.Serial, received.Serial)
}

func TestKindStringNames(t *testing.T) {
	require.Equal(t, "NOTIFY_CHANNEL", NotifyChannel.String())
	require.Equal(t, "SEND_STATE", SendState.String())
	require.Equal(t, "ACK_STATE", AckState.String())
	require.Equal(t, "UNKNOWN", Kind(99).String())
}
