package contract_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

func (h *harness) seatOf(a sdk.Address) uint16 {
	h.t.Helper()
	slot, err := h.d.SeatOf(h.ctx(alice), a)
	require.NoError(h.t, err)
	return slot
}

func (h *harness) cutline() *dao.Cutline {
	h.t.Helper()
	cl, err := h.d.Cutline(h.ctx(alice))
	require.NoError(h.t, err)
	return cl
}

// fillSeats mints to fresh holders until every slot is taken. Their balances
// start at 100 so alice and bob stay the smallest.
func (h *harness) fillSeats() {
	h.t.Helper()
	seats, err := h.d.Seats(h.ctx(alice))
	require.NoError(h.t, err)
	for i := len(seats); i < dao.MaxSeats; i++ {
		holder := sdk.Address(fmt.Sprintf("hive:member%03d", i))
		require.NoError(h.t, h.d.MintShares(h.ctx(daoAddr), holder, u(uint64(100+i))))
	}
}

// TestSeatsFollowBalances checks the first holders get the lowest free slots and leave on zero.
func TestSeatsFollowBalances(t *testing.T) {
	h := defaultDAO(t)
	assert.Equal(t, uint16(1), h.seatOf(alice))
	assert.Equal(t, uint16(2), h.seatOf(bob))
	cl := h.cutline()
	assert.Equal(t, uint16(2), cl.Slot)
	assert.Equal(t, uint64(40), cl.Balance.Uint64())

	require.NoError(t, h.d.TransferShares(h.ctx(alice), carol, u(60)))
	assert.Equal(t, uint16(0), h.seatOf(alice))
	assert.Equal(t, uint16(1), h.seatOf(carol))

	require.NoError(t, h.d.TransferShares(h.ctx(bob), carol, u(15)))
	cl = h.cutline()
	assert.Equal(t, uint16(2), cl.Slot)
	assert.Equal(t, uint64(25), cl.Balance.Uint64())

	seats, err := h.d.Seats(h.ctx(alice))
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, carol, seats[0].Holder)
	assert.Equal(t, uint64(75), seats[0].Balance.Uint64())
}

// TestSeatsExcludeTreasury checks that shares held by the DAO never take a seat.
func TestSeatsExcludeTreasury(t *testing.T) {
	h := defaultDAO(t)
	require.NoError(t, h.d.TransferShares(h.ctx(alice), daoAddr, u(10)))
	assert.Equal(t, uint16(0), h.seatOf(daoAddr))
	seats, err := h.d.Seats(h.ctx(alice))
	require.NoError(t, err)
	assert.Len(t, seats, 2)
}

// TestSeatEvictionTakesCutlineSlot checks a newcomer above the cutline replaces exactly the cutline seat.
func TestSeatEvictionTakesCutlineSlot(t *testing.T) {
	h := defaultDAO(t)
	h.fillSeats()
	seats, err := h.d.Seats(h.ctx(alice))
	require.NoError(t, err)
	require.Len(t, seats, dao.MaxSeats)
	require.Equal(t, uint16(2), h.cutline().Slot)

	eve := sdk.Address("hive:eve")
	require.NoError(t, h.d.MintShares(h.ctx(daoAddr), eve, u(40)))
	assert.Equal(t, uint16(0), h.seatOf(eve), "matching the cutline is not enough")
	assert.Equal(t, uint16(2), h.seatOf(bob))

	require.NoError(t, h.d.MintShares(h.ctx(daoAddr), eve, u(1)))
	assert.Equal(t, uint16(2), h.seatOf(eve))
	assert.Equal(t, uint16(0), h.seatOf(bob))

	cl := h.cutline()
	assert.Equal(t, uint16(2), cl.Slot)
	assert.Equal(t, uint64(41), cl.Balance.Uint64())

	// once eve grows past alice the cutline moves to alice
	require.NoError(t, h.d.MintShares(h.ctx(daoAddr), eve, u(50)))
	cl = h.cutline()
	assert.Equal(t, uint16(1), cl.Slot)
	assert.Equal(t, uint64(60), cl.Balance.Uint64())
}

// TestSeatCutlineTieGoesToLowestSlot checks the rescan tie break.
func TestSeatCutlineTieGoesToLowestSlot(t *testing.T) {
	h := setupDAO(t, map[sdk.Address]uint64{alice: 30, bob: 30, carol: 50})
	require.NoError(t, h.d.TransferShares(h.ctx(carol), dave, u(10)))
	cl := h.cutline()
	assert.Equal(t, uint16(4), cl.Slot)
	assert.Equal(t, uint64(10), cl.Balance.Uint64())

	require.NoError(t, h.d.TransferShares(h.ctx(dave), carol, u(10)))
	assert.Equal(t, uint16(0), h.seatOf(dave))
	cl = h.cutline()
	assert.Equal(t, uint16(1), cl.Slot)
	assert.Equal(t, uint64(30), cl.Balance.Uint64())
}
