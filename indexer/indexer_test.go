package indexer_test

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okinoko_moloch/contract"
	"okinoko_moloch/contract/dao"
	"okinoko_moloch/event"
	"okinoko_moloch/indexer"
	"okinoko_moloch/sdk"
)

const (
	daoAddr = sdk.Address("contract:moloch")
	alice   = sdk.Address("hive:alice")
	bob     = sdk.Address("hive:bob")
	carol   = sdk.Address("hive:carol")
)

func envAt(caller sdk.Address, height uint64) context.Context {
	return sdk.WithEnv(context.Background(), sdk.Env{Caller: caller, BlockHeight: height, Timestamp: int64(height) * 10})
}

func setup(t *testing.T, dataDir string) (*indexer.Indexer, *contract.DAO, *sdk.MemoryHost) {
	t.Helper()
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	ix, err := indexer.New(dataDir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Shutdown() })
	ix.Attach(bus)

	host := sdk.NewMemoryHost()
	d := contract.New(daoAddr, contract.NewMemoryState(), host, contract.WithEventBus(bus))
	require.NoError(t, d.Init(envAt(alice, 1), contract.InitParams{
		Name:      "indexed",
		QuorumBps: 5000,
		Holders:   []sdk.Address{alice, bob},
		Amounts:   []*uint256.Int{uint256.NewInt(60), uint256.NewInt(40)},
	}))
	return ix, d, host
}

func TestIndexerFollowsProposal(t *testing.T) {
	ix, d, host := setup(t, "")
	host.Deposit(sdk.AssetNative, carol, 300)

	a := dao.NewAction("contract:target", []byte("x"), 1)
	id, err := d.ProposalID(envAt(alice, 2), &a)
	require.NoError(t, err)
	_, err = d.CastVote(envAt(bob, 2), id, dao.StanceAgainst)
	require.NoError(t, err)
	require.NoError(t, d.FundFutarchy(envAt(carol, 2), id, dao.RewardNative, uint256.NewInt(300)))
	require.NoError(t, d.CancelVote(envAt(bob, 2), id))
	_, err = d.CastVote(envAt(alice, 2), id, dao.StanceFor)
	require.NoError(t, err)
	_, err = d.CastVote(envAt(bob, 2), id, dao.StanceFor)
	require.NoError(t, err)

	executed, _, err := d.Execute(envAt(alice, 3), &a)
	require.NoError(t, err)
	require.True(t, executed)
	_, err = d.CashOut(envAt(bob, 3), id, uint256.NewInt(40))
	require.NoError(t, err)

	daoKey := daoAddr.String()
	p, err := ix.Proposal(daoKey, id)
	require.NoError(t, err)
	assert.Equal(t, alice.String(), p.Proposer)
	assert.Equal(t, "executed", p.Status)
	assert.Equal(t, "100", p.For)
	assert.Equal(t, "0", p.Against)
	assert.Equal(t, "300", p.Pool)
	require.NotNil(t, p.Winner)
	assert.Equal(t, uint8(dao.StanceFor), *p.Winner)

	votes, err := ix.Votes(daoKey, id)
	require.NoError(t, err)
	require.Len(t, votes, 2, "the cancelled ballot is hidden")
	assert.Equal(t, alice.String(), votes[0].Voter)
	assert.Equal(t, bob.String(), votes[1].Voter)
	assert.Equal(t, uint8(dao.StanceFor), votes[1].Stance)

	claims, err := ix.Claims(daoKey, bob.String())
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "120", claims[0].Payout)

	_, err = ix.Proposal(daoKey, dao.Keccak256([]byte("nothing")))
	require.ErrorIs(t, err, indexer.ErrProposalNotFound)
}

func TestIndexerSeatsAndTransfers(t *testing.T) {
	ix, d, _ := setup(t, t.TempDir())
	require.NoError(t, d.TransferShares(envAt(alice, 2), carol, uint256.NewInt(60)))

	seats, err := ix.Seats(daoAddr.String())
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, uint16(1), seats[0].Slot)
	assert.Equal(t, carol.String(), seats[0].Holder)
	assert.Equal(t, "60", seats[0].Balance)

	transfers, err := ix.Transfers(daoAddr.String(), 1)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, alice.String(), transfers[0].From)
	assert.Equal(t, carol.String(), transfers[0].To)

	all, err := ix.Transfers(daoAddr.String(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3, "two mints and a transfer")
}

func TestIndexerDetach(t *testing.T) {
	ix, d, _ := setup(t, "")
	ix.Detach()
	require.NoError(t, d.TransferShares(envAt(alice, 2), carol, uint256.NewInt(1)))
	all, err := ix.Transfers(daoAddr.String(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
