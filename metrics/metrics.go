// Package metrics exports Prometheus counters for the protocol engine's
// lifecycle operations, the way lnd's monitoring package exports gRPC
// metrics: plain package-level collectors, registered once at import time,
// incremented inline by the engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ChannelsOpened counts successful EstablishChannel calls.
	ChannelsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statechannel",
		Name:      "channels_opened_total",
		Help:      "Number of channels this node has opened as the originator.",
	})

	// TransfersSent counts off-chain Send calls that dispatched a
	// SEND_STATE message.
	TransfersSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statechannel",
		Name:      "transfers_sent_total",
		Help:      "Number of off-chain transfers initiated by this node.",
	})

	// TransfersReceived counts accepted inbound SEND_STATE messages.
	TransfersReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statechannel",
		Name:      "transfers_received_total",
		Help:      "Number of off-chain transfers accepted from a peer.",
	})

	// AcksAccepted counts accepted inbound ACK_STATE messages.
	AcksAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statechannel",
		Name:      "acks_accepted_total",
		Help:      "Number of counter-signed acks accepted, advancing last_countersigned.",
	})

	// ChannelsClosed counts CloseChannel calls that reached the arbiter.
	ChannelsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statechannel",
		Name:      "channels_closed_total",
		Help:      "Number of unilateral closes submitted by this node.",
	})

	// ChannelsAppealed counts successful appeal submissions.
	ChannelsAppealed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statechannel",
		Name:      "channels_appealed_total",
		Help:      "Number of stale closures successfully overridden by an appeal.",
	})

	// ChannelsWithdrawn counts successful WithdrawFunds calls.
	ChannelsWithdrawn = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statechannel",
		Name:      "channels_withdrawn_total",
		Help:      "Number of channels fully withdrawn and removed from the registry.",
	})
)

func init() {
	prometheus.MustRegister(
		ChannelsOpened,
		TransfersSent,
		TransfersReceived,
		AcksAccepted,
		ChannelsClosed,
		ChannelsAppealed,
		ChannelsWithdrawn,
	)
}
