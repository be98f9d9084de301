package dao_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

func TestConfigRoundTrip(t *testing.T) {
	cfg := &dao.Config{
		Name:             "moloch",
		Symbol:           "MOL",
		URI:              "ipfs://x",
		QuorumBps:        4000,
		ProposalTTL:      3600,
		TimelockDelay:    60,
		Ragequittable:    true,
		TransfersLocked:  true,
		RewardKind:       dao.RewardTreasuryShares,
		RewardKindPreset: true,
		Epoch:            7,
	}
	cfg.QuorumAbsolute.Set(dao.MaxTally)
	cfg.MinYesVotes.SetUint64(12)
	cfg.AutoFutarchyParam.SetUint64(20_000)

	got, err := dao.DecodeConfig(dao.EncodeConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestAdminBatchRoundTrip(t *testing.T) {
	inner := dao.NewAction("contract:moloch", dao.SetProposalTTLPayload(10), 1)
	other := dao.NewAction("contract:target", []byte("x"), 2)
	other.Op = sdk.OpDelegateCall
	other.Value.SetUint64(5)

	ac, err := dao.DecodeAdminCall(dao.BatchPayload(inner, other))
	require.NoError(t, err)
	require.Equal(t, dao.AdminBatch, ac.Method)
	require.Len(t, ac.Actions, 2)
	assert.Equal(t, other, ac.Actions[1])

	nested, err := dao.DecodeAdminCall(ac.Actions[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, dao.AdminSetProposalTTL, nested.Method)
	assert.Equal(t, uint64(10), nested.Seconds)
}

func TestDecodeRejectsDamagedInput(t *testing.T) {
	p := &dao.Proposal{Proposer: "hive:alice", CreatedAt: 10, Snapshot: 3}
	p.SupplyAtSnapshot.SetUint64(100)
	raw := dao.EncodeProposal(p)

	_, err := dao.DecodeProposal(raw[:len(raw)-1])
	require.ErrorIs(t, err, dao.ErrCorrupt)
	_, err = dao.DecodeProposal(append(raw, 0))
	require.ErrorIs(t, err, dao.ErrCorrupt, "trailing bytes")
	_, err = dao.DecodeAdminCall([]byte{0xee})
	require.ErrorIs(t, err, dao.ErrCorrupt)
}

func TestSplitsRoundTrip(t *testing.T) {
	splits := []dao.Split{{Delegate: "hive:a", Bps: 2500}, {Delegate: "hive:b", Bps: 7500}}
	got, err := dao.DecodeSplits(dao.EncodeSplits(splits))
	require.NoError(t, err)
	assert.Equal(t, splits, got)
}

// TestActionIDInputs checks that every part of the preimage changes the identity.
func TestActionIDInputs(t *testing.T) {
	const self = sdk.Address("contract:moloch")
	a := dao.NewAction("contract:target", []byte("pay"), 1)
	base := dao.ActionID(self, &a, 0)
	assert.Equal(t, base, dao.ActionID(self, &a, 0))

	assert.NotEqual(t, base, dao.ActionID(self, &a, 1), "epoch")
	assert.NotEqual(t, base, dao.ActionID("contract:other", &a, 0), "instance")

	b := a
	b.Nonce.SetUint64(2)
	assert.NotEqual(t, base, dao.ActionID(self, &b, 0), "nonce")
	c := a
	c.Payload = []byte("pay more")
	assert.NotEqual(t, base, dao.ActionID(self, &c, 0), "payload")
	d := a
	d.Value = *uint256.NewInt(1)
	assert.NotEqual(t, base, dao.ActionID(self, &d, 0), "value")
}

func TestReceiptAndAddressDerivation(t *testing.T) {
	id := dao.Keccak256([]byte("proposal"))
	assert.NotEqual(t, dao.ReceiptID(id, dao.StanceFor), dao.ReceiptID(id, dao.StanceAgainst))

	addr := dao.DeriveAddress("contract:factory", "salt")
	assert.Equal(t, addr, dao.DeriveAddress("contract:factory", "salt"))
	assert.NotEqual(t, addr, dao.DeriveAddress("contract:factory", "pepper"))
	assert.Len(t, addr.String(), len("contract:")+40)

	// the empty keccak digest is a well known constant
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", dao.Keccak256().String())
}
