package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okinoko_moloch/contract"
	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// =============================================================================
// Voting power ledger
// =============================================================================

// TestVotesSumToSupply checks that delegate weight always adds up to supply across splits, transfers, mints and burns.
func TestVotesSumToSupply(t *testing.T) {
	h := defaultDAO(t)
	all := []sdk.Address{alice, bob, carol, dave}
	h.requireVotesSum(all...)

	require.NoError(t, h.d.SetSplitDelegation(h.ctx(alice), []dao.Split{
		{Delegate: alice, Bps: 2500},
		{Delegate: carol, Bps: 2500},
		{Delegate: dave, Bps: 5000},
	}))
	assert.Equal(t, uint64(15), h.votes(alice))
	assert.Equal(t, uint64(15), h.votes(carol))
	assert.Equal(t, uint64(30), h.votes(dave))
	h.requireVotesSum(all...)

	require.NoError(t, h.d.TransferShares(h.ctx(alice), bob, u(20)))
	assert.Equal(t, uint64(10), h.votes(alice))
	assert.Equal(t, uint64(10), h.votes(carol))
	assert.Equal(t, uint64(20), h.votes(dave))
	assert.Equal(t, uint64(60), h.votes(bob))
	h.requireVotesSum(all...)

	require.NoError(t, h.d.Delegate(h.ctx(bob), carol))
	assert.Equal(t, uint64(0), h.votes(bob))
	assert.Equal(t, uint64(70), h.votes(carol))
	h.requireVotesSum(all...)

	require.NoError(t, h.d.MintShares(h.ctx(daoAddr), bob, u(7)))
	require.NoError(t, h.d.BurnShares(h.ctx(daoAddr), alice, u(13)))
	h.requireVotesSum(all...)
	assert.Equal(t, uint64(94), h.supply())
}

// TestSplitHalvingByBurn checks the 25/25/50 split loses exactly half of each allocation when the balance is halved.
func TestSplitHalvingByBurn(t *testing.T) {
	h := setupDAO(t, map[sdk.Address]uint64{alice: 200, bob: 40})
	require.NoError(t, h.d.SetSplitDelegation(h.ctx(alice), []dao.Split{
		{Delegate: alice, Bps: 2500},
		{Delegate: carol, Bps: 2500},
		{Delegate: dave, Bps: 5000},
	}))
	require.Equal(t, []uint64{50, 50, 100}, []uint64{h.votes(alice), h.votes(carol), h.votes(dave)})

	require.NoError(t, h.d.BurnShares(h.ctx(daoAddr), alice, u(100)))
	assert.Equal(t, []uint64{25, 25, 50}, []uint64{h.votes(alice), h.votes(carol), h.votes(dave)})
	h.requireVotesSum(alice, bob, carol, dave)

	// 99 does not split evenly, the last delegate takes the dust
	require.NoError(t, h.d.BurnShares(h.ctx(daoAddr), alice, u(1)))
	assert.Equal(t, []uint64{24, 24, 51}, []uint64{h.votes(alice), h.votes(carol), h.votes(dave)})
	h.requireVotesSum(alice, bob, carol, dave)
}

// TestSplitThenClearRoundTrip checks that clearing a split restores every weight exactly.
func TestSplitThenClearRoundTrip(t *testing.T) {
	h := defaultDAO(t)
	before := []uint64{h.votes(alice), h.votes(bob), h.votes(carol)}

	require.NoError(t, h.d.SetSplitDelegation(h.ctx(alice), []dao.Split{
		{Delegate: alice, Bps: 3333},
		{Delegate: bob, Bps: 3333},
		{Delegate: carol, Bps: 3334},
	}))
	assert.Equal(t, []uint64{19, 59, 22}, []uint64{h.votes(alice), h.votes(bob), h.votes(carol)})

	require.NoError(t, h.d.ClearSplitDelegation(h.ctx(alice)))
	assert.Equal(t, before, []uint64{h.votes(alice), h.votes(bob), h.votes(carol)})

	dist, err := h.d.Delegates(h.ctx(alice), alice)
	require.NoError(t, err)
	assert.Equal(t, []dao.Split{{Delegate: alice, Bps: dao.BpsDenominator}}, dist)
}

// TestSplitValidation checks the malformed split inputs are rejected.
func TestSplitValidation(t *testing.T) {
	h := defaultDAO(t)
	cases := map[string][]dao.Split{
		"empty":      {},
		"short sum":  {{Delegate: alice, Bps: 5000}, {Delegate: bob, Bps: 4999}},
		"duplicate":  {{Delegate: bob, Bps: 5000}, {Delegate: bob, Bps: 5000}},
		"zero addr":  {{Delegate: sdk.ZeroAddress, Bps: 10000}},
		"zero bps":   {{Delegate: alice, Bps: 0}, {Delegate: bob, Bps: 10000}},
		"five parts": {{Delegate: alice, Bps: 2000}, {Delegate: bob, Bps: 2000}, {Delegate: carol, Bps: 2000}, {Delegate: dave, Bps: 2000}, {Delegate: target, Bps: 2000}},
	}
	for name, splits := range cases {
		t.Run(name, func(t *testing.T) {
			err := h.d.SetSplitDelegation(h.ctx(alice), splits)
			require.ErrorIs(t, err, contract.ErrInvalidInput)
		})
	}
	assert.Equal(t, uint64(60), h.votes(alice))
}

// TestDelegateZeroMeansSelf checks that the zero address points weight back at the holder.
func TestDelegateZeroMeansSelf(t *testing.T) {
	h := defaultDAO(t)
	require.NoError(t, h.d.Delegate(h.ctx(bob), alice))
	assert.Equal(t, uint64(100), h.votes(alice))
	assert.Equal(t, uint64(0), h.votes(bob))

	require.NoError(t, h.d.Delegate(h.ctx(bob), sdk.ZeroAddress))
	assert.Equal(t, uint64(60), h.votes(alice))
	assert.Equal(t, uint64(40), h.votes(bob))
}

// =============================================================================
// Checkpoints
// =============================================================================

// TestSnapshotImmunity checks that past weight never moves once the block is over.
func TestSnapshotImmunity(t *testing.T) {
	h := defaultDAO(t)
	past := h.height - 1
	before, err := h.d.GetPastVotes(h.ctx(alice), alice, past)
	require.NoError(t, err)
	require.Equal(t, uint64(60), before.Uint64())

	require.NoError(t, h.d.TransferShares(h.ctx(alice), carol, u(10)))
	require.NoError(t, h.d.TransferShares(h.ctx(alice), carol, u(5)))
	after, err := h.d.GetPastVotes(h.ctx(alice), alice, past)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// two writes in one block leave a single checkpoint
	n, err := h.d.CheckpointCount(h.ctx(alice), carol)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	h.mine()
	now, err := h.d.GetPastVotes(h.ctx(alice), alice, h.height-1)
	require.NoError(t, err)
	assert.Equal(t, uint64(45), now.Uint64())
	still, err := h.d.GetPastVotes(h.ctx(alice), alice, past)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), still.Uint64())

	supply, err := h.d.GetPastTotalSupply(h.ctx(alice), past)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), supply.Uint64())
	zero, err := h.d.GetPastVotes(h.ctx(alice), dave, past)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

// TestPastVotesRejectsCurrentBlock checks the bad ordinal guard.
func TestPastVotesRejectsCurrentBlock(t *testing.T) {
	h := defaultDAO(t)
	_, err := h.d.GetPastVotes(h.ctx(alice), alice, h.height)
	require.ErrorIs(t, err, contract.ErrBadOrdinal)
	_, err = h.d.GetPastTotalSupply(h.ctx(alice), h.height+5)
	require.ErrorIs(t, err, contract.ErrBadOrdinal)
}

// =============================================================================
// Transfers
// =============================================================================

// TestMintIsGovernanceOnly checks the ledger refuses mints from members.
func TestMintIsGovernanceOnly(t *testing.T) {
	h := defaultDAO(t)
	require.ErrorIs(t, h.d.MintShares(h.ctx(alice), alice, u(1)), contract.ErrUnauthorized)
	require.ErrorIs(t, h.d.BurnShares(h.ctx(alice), bob, u(1)), contract.ErrUnauthorized)
	assert.Equal(t, uint64(100), h.supply())
}

// TestTransferChecks checks balance and zero amount guards.
func TestTransferChecks(t *testing.T) {
	h := defaultDAO(t)
	require.ErrorIs(t, h.d.TransferShares(h.ctx(bob), alice, u(41)), contract.ErrInsufficientBalance)
	require.ErrorIs(t, h.d.TransferShares(h.ctx(bob), alice, u(0)), contract.ErrInvalidInput)
	require.ErrorIs(t, h.d.TransferShares(h.ctx(bob), sdk.ZeroAddress, u(1)), contract.ErrInvalidInput)
	assert.Equal(t, uint64(40), h.balance(bob))
}

// TestTransfersLock checks that governance can freeze member to member transfers.
func TestTransfersLock(t *testing.T) {
	h := defaultDAO(t)
	h.admin(dao.SetTransfersLockedPayload(true))

	require.ErrorIs(t, h.d.TransferShares(h.ctx(alice), carol, u(1)), contract.ErrUnauthorized)
	require.ErrorIs(t, h.d.TransferLoot(h.ctx(alice), carol, u(1)), contract.ErrUnauthorized)
	// the treasury stays reachable
	require.NoError(t, h.d.TransferShares(h.ctx(alice), daoAddr, u(1)))

	h.admin(dao.SetTransfersLockedPayload(false))
	require.NoError(t, h.d.TransferShares(h.ctx(alice), carol, u(1)))
}

// TestLootCarriesNoVotes checks loot moves balances but never weight.
func TestLootCarriesNoVotes(t *testing.T) {
	h := defaultDAO(t)
	h.admin(dao.MintLootPayload(carol, 25))
	loot, err := h.d.LootOf(h.ctx(alice), carol)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), loot.Uint64())
	assert.Equal(t, uint64(0), h.votes(carol))

	require.NoError(t, h.d.TransferLoot(h.ctx(carol), dave, u(5)))
	total, err := h.d.LootSupply(h.ctx(alice))
	require.NoError(t, err)
	assert.Equal(t, uint64(25), total.Uint64())
	h.requireVotesSum(alice, bob, carol, dave)
}
