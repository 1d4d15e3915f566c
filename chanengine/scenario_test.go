package chanengine

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/ledger"
	"github.com/arbiterlabs/statechannel/statemsg"
	"github.com/arbiterlabs/statechannel/transport"
)

// harness wires two nodes, Alice and Bob, to a shared broker and a shared
// SimGateway, mirroring a two-node slice of lnd's lntest network harness
// but scoped to this package's in-process primitives (spec.md §8).
type harness struct {
	t *testing.T

	broker *transport.Broker
	gw     *ledger.SimGateway

	alice *Node
	bob   *Node
}

func oneEth() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	alicePriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	bobPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	aliceAddr := addressOf(alicePriv)
	bobAddr := addressOf(bobPriv)

	one := oneEth()
	funding := new(big.Int).Mul(one, big.NewInt(1000))
	gw := ledger.NewSimGateway(map[chanaddr.Address]*big.Int{
		aliceAddr: new(big.Int).Set(funding),
		bobAddr:   new(big.Int).Set(funding),
	})

	broker := transport.NewBroker()
	sender := NewBrokerSender(broker)

	alice := New(alicePriv, chanaddr.NodeID("alice"), sender, gw, nil, "", DefaultAppealPeriod)
	bob := New(bobPriv, chanaddr.NodeID("bob"), sender, gw, nil, "", DefaultAppealPeriod)

	broker.Register(alice.NetID(), alice.HandleEnvelope)
	broker.Register(bob.NetID(), bob.HandleEnvelope)

	return &harness{t: t, broker: broker, gw: gw, alice: alice, bob: bob}
}

// openChannel has alice establish a channel with bob and waits for nothing
// extra: the broker is synchronous, so by the time EstablishChannel returns
// bob has already recorded the channel via notifyOfChannel.
func (h *harness) openChannel(deposit *big.Int) chanaddr.ChannelID {
	h.t.Helper()
	id, err := h.alice.EstablishChannel(h.bob.Address(), h.bob.NetID(), deposit)
	require.NoError(h.t, err)
	require.True(h.t, h.bob.registry.Has(id))
	return id
}

// TestScenarioS1OpenAndImmediateClose covers spec.md §8 scenario S1: alice
// opens with 1 unit, closes immediately with no transfers, and each side
// withdraws exactly its deposit after the window, for exactly three ledger
// transactions total.
func TestScenarioS1OpenAndImmediateClose(t *testing.T) {
	h := newHarness(t)
	deposit := oneEth()
	id := h.openChannel(deposit)
	require.Equal(t, 1, h.gw.TxCount)

	ok, err := h.alice.CloseChannel(id, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, h.gw.TxCount)

	require.NoError(t, h.gw.Mine(DefaultAppealPeriod+2))

	bobOwed, err := h.bob.WithdrawFunds(id)
	require.NoError(t, err)
	require.Equal(t, 0, bobOwed.Sign())
	require.Equal(t, 2, h.gw.TxCount, "a zero payout must not submit a ledger transaction")

	aliceOwed, err := h.alice.WithdrawFunds(id)
	require.NoError(t, err)
	require.Equal(t, 0, aliceOwed.Cmp(deposit))
	require.Equal(t, 3, h.gw.TxCount)
}

// TestScenarioS2ThreeTransfersBobCloses covers spec.md §8 scenario S2: three
// 1-unit transfers alice->bob, bob closes, and both sides recover their
// correct share after the window.
func TestScenarioS2ThreeTransfersBobCloses(t *testing.T) {
	h := newHarness(t)
	deposit := new(big.Int).Mul(oneEth(), big.NewInt(10))
	id := h.openChannel(deposit)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.alice.Send(id, oneEth()))
	}

	ok, err := h.bob.CloseChannel(id, nil)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.gw.Mine(DefaultAppealPeriod+2))

	bobOwed, err := h.bob.WithdrawFunds(id)
	require.NoError(t, err)
	require.Equal(t, 0, bobOwed.Cmp(new(big.Int).Mul(oneEth(), big.NewInt(3))))

	aliceOwed, err := h.alice.WithdrawFunds(id)
	require.NoError(t, err)
	require.Equal(t, 0, aliceOwed.Cmp(new(big.Int).Mul(oneEth(), big.NewInt(7))))
}

// TestScenarioS3CheatingCloseIsAppealed covers spec.md §8 scenario S3: alice
// closes with a stale, self-favoring state; bob successfully appeals with
// his newer countersigned state and recovers his true share.
func TestScenarioS3CheatingCloseIsAppealed(t *testing.T) {
	h := newHarness(t)
	deposit := new(big.Int).Mul(oneEth(), big.NewInt(10))
	id := h.openChannel(deposit)

	require.NoError(t, h.alice.Send(id, oneEth()))
	staleState, err := h.alice.GetCurrentChannelState(id)
	require.NoError(t, err)

	require.NoError(t, h.alice.Send(id, oneEth()))
	require.NoError(t, h.alice.Send(id, oneEth()))

	ok, err := h.alice.CloseChannel(id, &staleState)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.gw.Mine(1))
	require.True(t, h.bob.AppealClosedChan(id))

	require.NoError(t, h.gw.Mine(DefaultAppealPeriod+1))

	bobOwed, err := h.bob.WithdrawFunds(id)
	require.NoError(t, err)
	require.Equal(t, 0, bobOwed.Cmp(new(big.Int).Mul(oneEth(), big.NewInt(3))))

	aliceOwed, err := h.alice.WithdrawFunds(id)
	require.NoError(t, err)
	require.Equal(t, 0, aliceOwed.Cmp(new(big.Int).Mul(oneEth(), big.NewInt(7))))
}

// TestScenarioS4UnknownChannelSpamIsIgnored covers spec.md §8 scenario S4: a
// signed state for someone else's channel, delivered straight to a node that
// isn't a party to it, changes nothing and costs no ledger call.
func TestScenarioS4UnknownChannelSpamIsIgnored(t *testing.T) {
	h := newHarness(t)
	deposit := new(big.Int).Mul(oneEth(), big.NewInt(10))
	id := h.openChannel(deposit)

	charliePriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	charlie := New(charliePriv, chanaddr.NodeID("charlie"), NewBrokerSender(h.broker), h.gw, nil, "", DefaultAppealPeriod)
	h.broker.Register(charlie.NetID(), charlie.HandleEnvelope)

	txCountBefore := h.gw.TxCount
	charlie.receiveFunds(statemsg.Sign(h.alice.priv, mustState(h.t, id, 5, 5)))

	require.Empty(t, charlie.GetListOfChannels())
	_, err = charlie.GetCurrentChannelState(id)
	require.ErrorIs(t, err, ErrUnknownChannel)
	require.Equal(t, txCountBefore, h.gw.TxCount)
}

// TestScenarioS5DoubleCloseIsRefusedLocally covers spec.md §8 scenario S5:
// after alice closes, a second close attempt by either party is refused
// without ever reaching the ledger as a new transaction.
func TestScenarioS5DoubleCloseIsRefusedLocally(t *testing.T) {
	h := newHarness(t)
	deposit := new(big.Int).Mul(oneEth(), big.NewInt(10))
	id := h.openChannel(deposit)
	require.NoError(t, h.alice.Send(id, oneEth()))

	_, err := h.alice.CloseChannel(id, nil)
	require.NoError(t, err)
	txCountAfterClose := h.gw.TxCount

	_, err = h.alice.CloseChannel(id, nil)
	require.ErrorIs(t, err, ErrAlreadyClosed)
	require.Equal(t, txCountAfterClose, h.gw.TxCount)

	_, err = h.bob.CloseChannel(id, nil)
	require.ErrorIs(t, err, ErrAlreadyClosed)
	require.Equal(t, txCountAfterClose, h.gw.TxCount)
}

// TestWithdrawBeforeAppealWindowFails covers spec.md §4.5.9: a withdraw
// attempt before the appeal window has elapsed is rejected as
// ErrCannotWithdrawYet rather than silently succeeding or panicking.
func TestWithdrawBeforeAppealWindowFails(t *testing.T) {
	h := newHarness(t)
	deposit := oneEth()
	id := h.openChannel(deposit)

	ok, err := h.alice.CloseChannel(id, nil)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.alice.WithdrawFunds(id)
	require.ErrorIs(t, err, ErrCannotWithdrawYet)

	require.NoError(t, h.gw.Mine(DefaultAppealPeriod+1))

	aliceOwed, err := h.alice.WithdrawFunds(id)
	require.NoError(t, err)
	require.Equal(t, 0, aliceOwed.Cmp(deposit))
}

// TestScenarioS6StaleStateInjectionIsRejected covers spec.md §8 scenario S6:
// after three 1-unit transfers alice->bob, replaying the state bob already
// countersigned after the first transfer must leave bob's serial at 3 rather
// than regressing it.
func TestScenarioS6StaleStateInjectionIsRejected(t *testing.T) {
	h := newHarness(t)
	deposit := new(big.Int).Mul(oneEth(), big.NewInt(10))
	id := h.openChannel(deposit)

	require.NoError(t, h.alice.Send(id, oneEth()))
	staleState, err := h.bob.GetCurrentChannelState(id)
	require.NoError(t, err)
	require.EqualValues(t, 1, staleState.Serial)

	require.NoError(t, h.alice.Send(id, oneEth()))
	require.NoError(t, h.alice.Send(id, oneEth()))

	current, err := h.bob.GetCurrentChannelState(id)
	require.NoError(t, err)
	require.EqualValues(t, 3, current.Serial)

	h.bob.receiveFunds(staleState)

	after, err := h.bob.GetCurrentChannelState(id)
	require.NoError(t, err)
	require.EqualValues(t, 3, after.Serial)
}

// TestPropertyOwnershipChannelIDsAreIndependent exercises spec.md §8 property
// 6: repeated calls to GetListOfChannels never alias each other or internal
// state.
func TestPropertyOwnershipChannelIDsAreIndependent(t *testing.T) {
	h := newHarness(t)
	id := h.openChannel(oneEth())

	ids := h.alice.GetListOfChannels()
	require.Len(t, ids, 1)
	ids[0] = chanaddr.ChannelID{}

	fresh := h.alice.GetListOfChannels()
	require.Equal(t, id, fresh[0])
}

func mustState(t *testing.T, channel chanaddr.ChannelID, b1, b2 int64) statemsg.State {
	t.Helper()
	return statemsg.State{Channel: channel, Balance1: big.NewInt(b1), Balance2: big.NewInt(b2), Serial: 1}
}
