package contract_test

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"okinoko_moloch/contract"
	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

const (
	daoAddr = sdk.Address("contract:moloch")
	alice   = sdk.Address("hive:alice")
	bob     = sdk.Address("hive:bob")
	carol   = sdk.Address("hive:carol")
	dave    = sdk.Address("hive:dave")
	target  = sdk.Address("contract:target")
)

// harness drives one DAO over an in-memory state and host. Every call runs at
// the harness block height and timestamp.
type harness struct {
	t      *testing.T
	d      *contract.DAO
	host   *sdk.MemoryHost
	kv     *contract.MemoryState
	height uint64
	ts     int64
	nonce  uint64
}

func u(n uint64) *uint256.Int { return uint256.NewInt(n) }

// setupDAO initializes a DAO at block 1 with the given holders and moves to
// block 2 so that the genesis supply is visible to snapshots.
func setupDAO(t *testing.T, holders map[sdk.Address]uint64, opts ...contract.Option) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		host:   sdk.NewMemoryHost(),
		kv:     contract.NewMemoryState(),
		height: 1,
		ts:     1_000,
	}
	h.d = contract.New(daoAddr, h.kv, h.host, opts...)
	params := contract.InitParams{
		Name:          "moloch",
		Symbol:        "MOL",
		URI:           "ipfs://moloch",
		QuorumBps:     5000,
		Ragequittable: true,
	}
	for _, a := range []sdk.Address{alice, bob, carol, dave} {
		if n, ok := holders[a]; ok {
			params.Holders = append(params.Holders, a)
			params.Amounts = append(params.Amounts, u(n))
		}
	}
	require.NoError(t, h.d.Init(h.ctx(alice), params))
	h.mine()
	return h
}

// defaultDAO is the 60/40 organization most scenarios start from.
func defaultDAO(t *testing.T, opts ...contract.Option) *harness {
	return setupDAO(t, map[sdk.Address]uint64{alice: 60, bob: 40}, opts...)
}

func (h *harness) ctx(caller sdk.Address) context.Context {
	return sdk.WithEnv(context.Background(), sdk.Env{
		Caller:      caller,
		BlockHeight: h.height,
		Timestamp:   h.ts,
		TxID:        "tx",
	})
}

// mine moves one block and ten seconds ahead.
func (h *harness) mine() {
	h.height++
	h.ts += 10
}

func (h *harness) wait(seconds int64) {
	h.height++
	h.ts += seconds
}

// action returns a plain call to target with a fresh nonce.
func (h *harness) action(payload []byte) dao.Action {
	h.nonce++
	return dao.NewAction(target, payload, h.nonce)
}

// selfAction returns an admin self-call with a fresh nonce.
func (h *harness) selfAction(payload []byte) dao.Action {
	h.nonce++
	return dao.NewAction(daoAddr, payload, h.nonce)
}

func (h *harness) id(a dao.Action) dao.Hash {
	h.t.Helper()
	id, err := h.d.ProposalID(h.ctx(alice), &a)
	require.NoError(h.t, err)
	return id
}

func (h *harness) vote(voter sdk.Address, id dao.Hash, s dao.Stance) {
	h.t.Helper()
	_, err := h.d.CastVote(h.ctx(voter), id, s)
	require.NoError(h.t, err)
}

// govern passes a through a for vote of alice and bob and executes it.
func (h *harness) govern(a dao.Action) []byte {
	h.t.Helper()
	id := h.id(a)
	h.vote(alice, id, dao.StanceFor)
	h.vote(bob, id, dao.StanceFor)
	executed, ret, err := h.d.Execute(h.ctx(alice), &a)
	require.NoError(h.t, err)
	require.True(h.t, executed)
	h.mine()
	return ret
}

// admin runs an admin payload through governance.
func (h *harness) admin(payload []byte) {
	h.t.Helper()
	h.govern(h.selfAction(payload))
}

func (h *harness) state(id dao.Hash) dao.ProposalState {
	h.t.Helper()
	st, err := h.d.ProposalState(h.ctx(alice), id)
	require.NoError(h.t, err)
	return st
}

func (h *harness) votes(a sdk.Address) uint64 {
	h.t.Helper()
	v, err := h.d.GetVotes(h.ctx(alice), a)
	require.NoError(h.t, err)
	return v.Uint64()
}

func (h *harness) balance(a sdk.Address) uint64 {
	h.t.Helper()
	v, err := h.d.BalanceOf(h.ctx(alice), a)
	require.NoError(h.t, err)
	return v.Uint64()
}

func (h *harness) supply() uint64 {
	h.t.Helper()
	v, err := h.d.TotalSupply(h.ctx(alice))
	require.NoError(h.t, err)
	return v.Uint64()
}

// requireVotesSum checks that the weight of every listed delegate adds up to supply.
func (h *harness) requireVotesSum(delegates ...sdk.Address) {
	h.t.Helper()
	var sum uint64
	for _, d := range delegates {
		sum += h.votes(d)
	}
	require.Equal(h.t, h.supply(), sum, "sum of delegate votes must equal supply")
}

func (h *harness) hostBalance(asset sdk.Asset, a sdk.Address) uint64 {
	h.t.Helper()
	v, err := h.host.Balance(context.Background(), asset, a)
	require.NoError(h.t, err)
	return v.Uint64()
}
