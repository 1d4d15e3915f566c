package chanreg

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbiterlabs/statechannel/chanaddr"
)

func newTestRecord(id chanaddr.ChannelID) *Record {
	return &Record{
		ID:            id,
		TotalDeposit:  big.NewInt(100),
		IsPartyOne:    true,
		LocalBalance1: big.NewInt(100),
		LocalBalance2: big.NewInt(0),
	}
}

func TestInsertAndGet(t *testing.T) {
	reg := New()
	var id chanaddr.ChannelID
	id[0] = 1

	reg.Insert(newTestRecord(id))
	require.True(t, reg.Has(id))

	rec := reg.Get(id)
	require.NotNil(t, rec)
	require.Equal(t, 0, rec.TotalDeposit.Cmp(big.NewInt(100)))
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	reg := New()
	var id chanaddr.ChannelID
	id[0] = 2
	reg.Insert(newTestRecord(id))

	rec := reg.Get(id)
	rec.LocalBalance1.SetInt64(999)

	fresh := reg.Get(id)
	require.Equal(t, 0, fresh.LocalBalance1.Cmp(big.NewInt(100)))
}

func TestMutateAppliesToLiveRecord(t *testing.T) {
	reg := New()
	var id chanaddr.ChannelID
	id[0] = 3
	reg.Insert(newTestRecord(id))

	reg.Mutate(id, func(rec *Record) {
		rec.LocalSerial = 5
	})

	rec := reg.Get(id)
	require.Equal(t, uint64(5), rec.LocalSerial)
}

func TestDeleteRemovesRecord(t *testing.T) {
	reg := New()
	var id chanaddr.ChannelID
	id[0] = 4
	reg.Insert(newTestRecord(id))

	reg.Delete(id)
	require.False(t, reg.Has(id))
	require.Nil(t, reg.Get(id))
}

func TestChannelIDsReturnsIndependentSlice(t *testing.T) {
	reg := New()
	var id chanaddr.ChannelID
	id[0] = 5
	reg.Insert(newTestRecord(id))

	ids := reg.ChannelIDs()
	require.Len(t, ids, 1)

	ids[0] = chanaddr.ChannelID{}

	fresh := reg.ChannelIDs()
	require.Len(t, fresh, 1)
	require.Equal(t, id, fresh[0])
}

func TestOwnBalancePicksFieldByRole(t *testing.T) {
	rec := newTestRecord(chanaddr.ChannelID{})
	require.Equal(t, 0, rec.OwnBalance().Cmp(big.NewInt(100)))

	rec.IsPartyOne = false
	require.Equal(t, 0, rec.OwnBalance().Cmp(big.NewInt(0)))
}
