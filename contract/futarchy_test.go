package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okinoko_moloch/contract"
	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

func (h *harness) futarchy(id dao.Hash) *dao.Futarchy {
	h.t.Helper()
	f, err := h.d.Futarchy(h.ctx(alice), id)
	require.NoError(h.t, err)
	return f
}

func (h *harness) cashOut(who sdk.Address, id dao.Hash, amount uint64) uint64 {
	h.t.Helper()
	paid, err := h.d.CashOut(h.ctx(who), id, u(amount))
	require.NoError(h.t, err)
	return paid.Uint64()
}

// =============================================================================
// Funding
// =============================================================================

// TestFutarchyForWins checks the 300 over 100 receipts case: three per unit and 120 for a 40 unit claim.
func TestFutarchyForWins(t *testing.T) {
	h := defaultDAO(t)
	h.host.Deposit(sdk.AssetNative, carol, 300)
	a := h.action([]byte("bet on it"))
	id := h.id(a)

	// funding before the proposal opens is allowed
	require.NoError(t, h.d.FundFutarchy(h.ctx(carol), id, dao.RewardNative, u(300)))
	assert.Equal(t, uint64(300), h.hostBalance(sdk.AssetNative, daoAddr))
	assert.Equal(t, dao.ProposalUnopened, h.state(id))

	h.vote(alice, id, dao.StanceFor)
	h.vote(bob, id, dao.StanceFor)
	executed, _, err := h.d.Execute(h.ctx(alice), &a)
	require.NoError(t, err)
	require.True(t, executed)

	f := h.futarchy(id)
	assert.True(t, f.Resolved)
	assert.Equal(t, dao.StanceFor, f.Winner)
	assert.Equal(t, uint64(100), f.WinningSupply.Uint64())
	assert.Equal(t, uint64(3), f.PayoutPerUnit.Uint64())

	assert.Equal(t, uint64(120), h.cashOut(bob, id, 40))
	assert.Equal(t, uint64(120), h.hostBalance(sdk.AssetNative, bob))
	assert.Equal(t, uint64(180), h.cashOut(alice, id, 60))
	assert.Equal(t, uint64(0), h.hostBalance(sdk.AssetNative, daoAddr))

	_, err = h.d.CashOut(h.ctx(bob), id, u(1))
	require.ErrorIs(t, err, contract.ErrInsufficientBalance)
}

// TestFutarchyAgainstWins checks resolution of a defeated proposal pays the Against side only.
func TestFutarchyAgainstWins(t *testing.T) {
	h := setupDAO(t, map[sdk.Address]uint64{alice: 40, bob: 40, carol: 20})
	h.host.Deposit(sdk.AssetNative, dave, 100)
	id := h.id(h.action([]byte("contested")))
	h.vote(alice, id, dao.StanceFor)
	require.NoError(t, h.d.FundFutarchy(h.ctx(dave), id, dao.RewardNative, u(100)))

	require.ErrorIs(t, h.d.ResolveFutarchy(h.ctx(dave), id), contract.ErrInvalidState, "still active")
	h.vote(bob, id, dao.StanceAgainst)
	require.Equal(t, dao.ProposalDefeated, h.state(id))
	require.NoError(t, h.d.ResolveFutarchy(h.ctx(dave), id))
	require.ErrorIs(t, h.d.ResolveFutarchy(h.ctx(dave), id), contract.ErrInvalidState, "resolves once")

	f := h.futarchy(id)
	assert.Equal(t, dao.StanceAgainst, f.Winner)
	assert.Equal(t, uint64(2), f.PayoutPerUnit.Uint64())

	_, err := h.d.CastVote(h.ctx(carol), id, dao.StanceAgainst)
	require.ErrorIs(t, err, contract.ErrInvalidState)
	_, err = h.d.CashOut(h.ctx(alice), id, u(40))
	require.ErrorIs(t, err, contract.ErrInsufficientBalance, "for receipts lost")
	assert.Equal(t, uint64(80), h.cashOut(bob, id, 40))
}

// TestFutarchyZeroWinningSupply checks that a pool nobody can claim stays locked.
func TestFutarchyZeroWinningSupply(t *testing.T) {
	h := defaultDAO(t)
	h.admin(dao.SetProposalTTLPayload(100))
	h.host.Deposit(sdk.AssetNative, carol, 50)
	id := h.id(h.action([]byte("ignored")))
	require.NoError(t, h.d.OpenProposal(h.ctx(alice), id))
	require.NoError(t, h.d.FundFutarchy(h.ctx(carol), id, dao.RewardNative, u(50)))

	h.wait(100)
	require.Equal(t, dao.ProposalExpired, h.state(id))
	require.NoError(t, h.d.ResolveFutarchy(h.ctx(carol), id))
	f := h.futarchy(id)
	assert.True(t, f.WinningSupply.IsZero())
	assert.True(t, f.PayoutPerUnit.IsZero())
	assert.Equal(t, uint64(50), f.Pool.Uint64())

	_, err := h.d.CashOut(h.ctx(alice), id, u(1))
	require.ErrorIs(t, err, contract.ErrInsufficientBalance)
	assert.Equal(t, uint64(50), h.hostBalance(sdk.AssetNative, daoAddr))
}

// TestFutarchyZeroPayoutClaim checks that a claim rounding to nothing still burns receipts.
func TestFutarchyZeroPayoutClaim(t *testing.T) {
	h := defaultDAO(t)
	h.host.Deposit(sdk.AssetNative, carol, 50)
	a := h.action([]byte("tiny pool"))
	id := h.id(a)
	require.NoError(t, h.d.FundFutarchy(h.ctx(carol), id, dao.RewardNative, u(50)))
	h.vote(alice, id, dao.StanceFor)
	h.vote(bob, id, dao.StanceFor)
	_, _, err := h.d.Execute(h.ctx(alice), &a)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), h.cashOut(bob, id, 40))
	rid := dao.ReceiptID(id, dao.StanceFor)
	bal, err := h.d.ReceiptBalance(h.ctx(alice), rid, bob)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
	assert.Equal(t, uint64(50), h.futarchy(id).Pool.Uint64())
	assert.Equal(t, uint64(0), h.hostBalance(sdk.AssetNative, bob))
}

// TestFutarchyTreasuryShares checks funding with shares and a share payout out of the treasury.
func TestFutarchyTreasuryShares(t *testing.T) {
	h := setupDAO(t, map[sdk.Address]uint64{alice: 10, bob: 90})
	id := h.id(h.action([]byte("share bet")))
	require.NoError(t, h.d.FundFutarchy(h.ctx(bob), id, dao.RewardTreasuryShares, u(60)))
	assert.Equal(t, uint64(30), h.balance(bob))
	assert.Equal(t, uint64(60), h.balance(daoAddr))
	h.requireVotesSum(alice, bob, daoAddr)

	// funding does not change the snapshot bob votes with
	h.vote(alice, id, dao.StanceAgainst)
	h.vote(bob, id, dao.StanceAbstain)
	require.Equal(t, dao.ProposalDefeated, h.state(id))
	require.NoError(t, h.d.ResolveFutarchy(h.ctx(bob), id))
	assert.Equal(t, uint64(6), h.futarchy(id).PayoutPerUnit.Uint64())

	assert.Equal(t, uint64(60), h.cashOut(alice, id, 10))
	assert.Equal(t, uint64(70), h.balance(alice))
	assert.Equal(t, uint64(0), h.balance(daoAddr))
	h.requireVotesSum(alice, bob, daoAddr)
}

// TestFutarchyFundingRules checks kind locking and who may fund what.
func TestFutarchyFundingRules(t *testing.T) {
	h := defaultDAO(t)
	h.host.Deposit(sdk.AssetNative, carol, 10)
	a := h.action([]byte("rules"))
	id := h.id(a)

	require.ErrorIs(t, h.d.FundFutarchy(h.ctx(alice), id, dao.RewardMintedShares, u(5)), contract.ErrUnauthorized)
	require.ErrorIs(t, h.d.FundFutarchy(h.ctx(alice), id, dao.RewardNative, u(0)), contract.ErrInvalidInput)
	require.ErrorIs(t, h.d.FundFutarchy(h.ctx(dave), id, dao.RewardNative, u(5)), contract.ErrInsufficientBalance)

	require.NoError(t, h.d.FundFutarchy(h.ctx(carol), id, dao.RewardNative, u(5)))
	require.ErrorIs(t, h.d.FundFutarchy(h.ctx(alice), id, dao.RewardTreasuryShares, u(5)), contract.ErrInvalidInput)
	require.NoError(t, h.d.FundFutarchy(h.ctx(carol), id, dao.RewardNative, u(5)))
	assert.Equal(t, uint64(10), h.futarchy(id).Pool.Uint64())

	h.vote(alice, id, dao.StanceFor)
	_, _, err := h.d.Execute(h.ctx(alice), &a)
	require.NoError(t, err)
	require.ErrorIs(t, h.d.FundFutarchy(h.ctx(carol), id, dao.RewardNative, u(1)), contract.ErrInvalidState)
}

// TestFutarchyPresetKind checks that a governance preset reward kind binds every funder.
func TestFutarchyPresetKind(t *testing.T) {
	h := defaultDAO(t)
	h.admin(dao.SetRewardKindPayload(dao.RewardTreasuryShares))
	h.host.Deposit(sdk.AssetNative, carol, 10)
	id := h.id(h.action([]byte("preset")))
	require.ErrorIs(t, h.d.FundFutarchy(h.ctx(carol), id, dao.RewardNative, u(10)), contract.ErrInvalidInput)
	require.NoError(t, h.d.FundFutarchy(h.ctx(alice), id, dao.RewardTreasuryShares, u(10)))
}

// TestAutoEarmark checks that opening reserves a minted share pool sized from config.
func TestAutoEarmark(t *testing.T) {
	h := defaultDAO(t)
	h.admin(dao.SetRewardKindPayload(dao.RewardMintedShares))
	// above 10000 the parameter is an absolute amount
	h.admin(dao.SetAutoFutarchyPayload(20_000, 0))

	a := h.action([]byte("earmarked"))
	id := h.id(a)
	h.vote(alice, id, dao.StanceFor)
	f := h.futarchy(id)
	require.True(t, f.Enabled)
	assert.Equal(t, dao.RewardMintedShares, f.Kind)
	assert.Equal(t, uint64(20_000), f.Pool.Uint64())

	_, _, err := h.d.Execute(h.ctx(alice), &a)
	require.NoError(t, err)
	assert.Equal(t, uint64(333), h.futarchy(id).PayoutPerUnit.Uint64())
	assert.Equal(t, uint64(19_980), h.cashOut(alice, id, 60))
	assert.Equal(t, uint64(60+19_980), h.balance(alice))

	// in basis points with a ceiling
	h.mine()
	h.admin(dao.SetAutoFutarchyPayload(2_500, 1_000))
	supply := h.supply()
	b := h.id(h.action([]byte("capped")))
	require.NoError(t, h.d.OpenProposal(h.ctx(alice), b))
	want := supply / 4
	if want > 1_000 {
		want = 1_000
	}
	assert.Equal(t, want, h.futarchy(b).Pool.Uint64())
}

// TestReceiptTransfer checks that receipts carry the payout claim to a new holder.
func TestReceiptTransfer(t *testing.T) {
	h := setupDAO(t, map[sdk.Address]uint64{alice: 30, bob: 30, carol: 40})
	h.host.Deposit(sdk.AssetNative, dave, 300)
	a := h.action([]byte("tradeable"))
	id := h.id(a)
	h.vote(alice, id, dao.StanceFor)
	require.Equal(t, dao.ProposalActive, h.state(id))

	rid := dao.ReceiptID(id, dao.StanceFor)
	info, err := h.d.ReceiptInfo(h.ctx(alice), rid)
	require.NoError(t, err)
	assert.Equal(t, id, info.Proposal)
	assert.Equal(t, dao.StanceFor, info.Stance)
	_, err = h.d.ReceiptInfo(h.ctx(alice), dao.ReceiptID(id, dao.StanceAbstain))
	require.ErrorIs(t, err, contract.ErrInvalidInput)

	require.NoError(t, h.d.TransferReceipt(h.ctx(alice), rid, dave, u(10)))
	require.ErrorIs(t, h.d.TransferReceipt(h.ctx(alice), rid, "", u(1)), contract.ErrInvalidInput)
	require.ErrorIs(t, h.d.TransferReceipt(h.ctx(dave), rid, carol, u(11)), contract.ErrInsufficientBalance)

	// the vote can no longer be withdrawn without its receipts
	require.ErrorIs(t, h.d.CancelVote(h.ctx(alice), id), contract.ErrInsufficientBalance)

	h.vote(bob, id, dao.StanceFor)
	supply, err := h.d.ReceiptSupply(h.ctx(alice), rid)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), supply.Uint64(), "transfers leave supply equal to the tally")

	require.NoError(t, h.d.FundFutarchy(h.ctx(dave), id, dao.RewardNative, u(300)))
	_, _, err = h.d.Execute(h.ctx(alice), &a)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), h.futarchy(id).PayoutPerUnit.Uint64())
	assert.Equal(t, uint64(50), h.cashOut(dave, id, 10))
	assert.Equal(t, uint64(50), h.hostBalance(sdk.AssetNative, dave))
	left, err := h.d.ReceiptBalance(h.ctx(alice), rid, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), left.Uint64())
}

// TestGovernanceFundsMintedPool checks that a passed self-call can back a pool
// with shares minted at cash-out.
func TestGovernanceFundsMintedPool(t *testing.T) {
	h := defaultDAO(t)
	a := h.action([]byte("minted bet"))
	id := h.id(a)
	require.ErrorIs(t, h.d.FundFutarchy(h.ctx(carol), id, dao.RewardMintedShares, u(10)), contract.ErrUnauthorized)
	require.False(t, h.futarchy(id).Enabled)

	h.admin(dao.FundFutarchyPayload(id, dao.RewardMintedShares, 120))
	f := h.futarchy(id)
	require.True(t, f.Enabled)
	assert.Equal(t, dao.RewardMintedShares, f.Kind)
	assert.Equal(t, uint64(120), f.Pool.Uint64())
	assert.Equal(t, uint64(100), h.supply(), "minted pools mint nothing up front")

	h.vote(alice, id, dao.StanceFor)
	executed, _, err := h.d.Execute(h.ctx(alice), &a)
	require.NoError(t, err)
	require.True(t, executed)
	assert.Equal(t, uint64(2), h.futarchy(id).PayoutPerUnit.Uint64())

	h.mine()
	assert.Equal(t, uint64(120), h.cashOut(alice, id, 60))
	assert.Equal(t, uint64(180), h.balance(alice))
	assert.Equal(t, uint64(220), h.supply())
	h.requireVotesSum(alice, bob)
}
