package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/statemsg"
)

func newKeyPair(t *testing.T) (*btcec.PrivateKey, chanaddr.Address) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv, addressOf(priv)
}

func deployTestChannel(t *testing.T, g *SimGateway, party1 *btcec.PrivateKey, party2Addr chanaddr.Address, deposit *big.Int, appealPeriod uint64) chanaddr.ChannelID {
	t.Helper()
	id, err := g.Deploy(nil, "", party1, ArbiterCtorArgs{Peer: party2Addr, AppealPeriod: appealPeriod}, deposit)
	require.NoError(t, err)
	return id
}

func signClose(priv *btcec.PrivateKey, channel chanaddr.ChannelID, b1, b2 int64, serial uint64) []interface{} {
	state := statemsg.Sign(priv, statemsg.State{
		Channel:  channel,
		Balance1: big.NewInt(b1),
		Balance2: big.NewInt(b2),
		Serial:   serial,
	})
	return []interface{}{state.Balance1, state.Balance2, state.Serial, state.Sig}
}

func TestDeployDebitsDeployerAndCreditsContract(t *testing.T) {
	alicePriv, aliceAddr := newKeyPair(t)
	_, bobAddr := newKeyPair(t)

	deposit := big.NewInt(100)
	g := NewSimGateway(map[chanaddr.Address]*big.Int{aliceAddr: big.NewInt(1000)})
	id := deployTestChannel(t, g, alicePriv, bobAddr, deposit, 5)

	bal, err := g.Balance(aliceAddr)
	require.NoError(t, err)
	require.Equal(t, 0, bal.Cmp(big.NewInt(900)))

	v, err := g.Call(id, "totalDeposit")
	require.NoError(t, err)
	require.Equal(t, 0, v.(*big.Int).Cmp(deposit))
}

func TestDeployFailsOnInsufficientFunds(t *testing.T) {
	alicePriv, _ := newKeyPair(t)
	_, bobAddr := newKeyPair(t)

	g := NewSimGateway(nil)
	_, err := g.Deploy(nil, "", alicePriv, ArbiterCtorArgs{Peer: bobAddr, AppealPeriod: 5}, big.NewInt(1))
	require.Error(t, err)
}

func TestOneSidedCloseRejectsBadSignature(t *testing.T) {
	alicePriv, aliceAddr := newKeyPair(t)
	bobPriv, bobAddr := newKeyPair(t)

	deposit := big.NewInt(100)
	g := NewSimGateway(map[chanaddr.Address]*big.Int{aliceAddr: deposit})
	id := deployTestChannel(t, g, alicePriv, bobAddr, deposit, 5)

	args := signClose(alicePriv, id, 50, 50, 1)
	receipt, err := g.Transact(id, alicePriv, "oneSidedClose", args, nil)
	require.NoError(t, err)
	require.False(t, receipt.Success, "a party cannot close with its own signature")

	goodArgs := signClose(bobPriv, id, 50, 50, 1)
	receipt, err = g.Transact(id, alicePriv, "oneSidedClose", goodArgs, nil)
	require.NoError(t, err)
	require.True(t, receipt.Success)
}

func TestOneSidedCloseRejectsUnbalancedSum(t *testing.T) {
	alicePriv, aliceAddr := newKeyPair(t)
	bobPriv, bobAddr := newKeyPair(t)

	deposit := big.NewInt(100)
	g := NewSimGateway(map[chanaddr.Address]*big.Int{aliceAddr: deposit})
	id := deployTestChannel(t, g, alicePriv, bobAddr, deposit, 5)

	args := signClose(bobPriv, id, 60, 60, 1)
	receipt, err := g.Transact(id, alicePriv, "oneSidedClose", args, nil)
	require.NoError(t, err)
	require.False(t, receipt.Success)
}

func TestAppealRequiresStrictlyNewerSerial(t *testing.T) {
	alicePriv, aliceAddr := newKeyPair(t)
	bobPriv, bobAddr := newKeyPair(t)

	deposit := big.NewInt(100)
	g := NewSimGateway(map[chanaddr.Address]*big.Int{aliceAddr: deposit})
	id := deployTestChannel(t, g, alicePriv, bobAddr, deposit, 5)

	closeArgs := signClose(bobPriv, id, 90, 10, 2)
	receipt, err := g.Transact(id, alicePriv, "oneSidedClose", closeArgs, nil)
	require.NoError(t, err)
	require.True(t, receipt.Success)

	staleAppeal := signClose(alicePriv, id, 80, 20, 2)
	receipt, err = g.Transact(id, bobPriv, "appealClosure", staleAppeal, nil)
	require.NoError(t, err)
	require.False(t, receipt.Success, "a non-newer serial must not overwrite the closed state")

	newerAppeal := signClose(alicePriv, id, 70, 30, 3)
	receipt, err = g.Transact(id, bobPriv, "appealClosure", newerAppeal, nil)
	require.NoError(t, err)
	require.True(t, receipt.Success)
}

func TestAppealFailsAfterWindowElapses(t *testing.T) {
	alicePriv, aliceAddr := newKeyPair(t)
	bobPriv, bobAddr := newKeyPair(t)

	deposit := big.NewInt(100)
	g := NewSimGateway(map[chanaddr.Address]*big.Int{aliceAddr: deposit})
	id := deployTestChannel(t, g, alicePriv, bobAddr, deposit, 3)

	closeArgs := signClose(bobPriv, id, 90, 10, 1)
	_, err := g.Transact(id, alicePriv, "oneSidedClose", closeArgs, nil)
	require.NoError(t, err)

	require.NoError(t, g.Mine(3))

	appealArgs := signClose(alicePriv, id, 70, 30, 2)
	receipt, err := g.Transact(id, bobPriv, "appealClosure", appealArgs, nil)
	require.NoError(t, err)
	require.False(t, receipt.Success)
}

func TestGetBalanceRevertsBeforeWindowElapsed(t *testing.T) {
	alicePriv, aliceAddr := newKeyPair(t)
	bobPriv, bobAddr := newKeyPair(t)

	deposit := big.NewInt(100)
	g := NewSimGateway(map[chanaddr.Address]*big.Int{aliceAddr: deposit})
	id := deployTestChannel(t, g, alicePriv, bobAddr, deposit, 5)

	closeArgs := signClose(bobPriv, id, 90, 10, 1)
	_, err := g.Transact(id, alicePriv, "oneSidedClose", closeArgs, nil)
	require.NoError(t, err)

	_, err = g.Call(id, "getBalance", aliceAddr)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrReverted))
}

func TestWithdrawFundsPaysOnceAndRejectsSecondAttempt(t *testing.T) {
	alicePriv, aliceAddr := newKeyPair(t)
	bobPriv, bobAddr := newKeyPair(t)

	deposit := big.NewInt(100)
	g := NewSimGateway(map[chanaddr.Address]*big.Int{aliceAddr: deposit})
	id := deployTestChannel(t, g, alicePriv, bobAddr, deposit, 5)

	closeArgs := signClose(bobPriv, id, 90, 10, 1)
	_, err := g.Transact(id, alicePriv, "oneSidedClose", closeArgs, nil)
	require.NoError(t, err)
	require.NoError(t, g.Mine(6))

	receipt, err := g.Transact(id, alicePriv, "withdrawFunds", []interface{}{aliceAddr}, nil)
	require.NoError(t, err)
	require.True(t, receipt.Success)

	bal, err := g.Balance(aliceAddr)
	require.NoError(t, err)
	require.Equal(t, 0, bal.Cmp(big.NewInt(90)))

	receipt, err = g.Transact(id, alicePriv, "withdrawFunds", []interface{}{aliceAddr}, nil)
	require.NoError(t, err)
	require.False(t, receipt.Success, "a second withdrawal by the same party must be rejected")
}

func TestMineRejectsNegativeBlocks(t *testing.T) {
	g := NewSimGateway(nil)
	require.Error(t, g.Mine(-1))
}
