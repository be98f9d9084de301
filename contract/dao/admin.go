package dao

import (
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/sdk"
)

// AdminMethod selects a governance-only operation reachable through a self-call.
type AdminMethod uint8

const (
	AdminSetQuorumBps AdminMethod = iota + 1
	AdminSetQuorumAbsolute
	AdminSetMinYesVotes
	AdminSetProposalTTL
	AdminSetTimelockDelay
	AdminSetProposalThreshold
	AdminSetTransfersLocked
	AdminSetRagequittable
	AdminSetMetadata
	AdminSetAutoFutarchy
	AdminSetRewardKind
	AdminBumpConfig
	AdminBatch
	AdminSetPermit
	AdminSetAllowance
	AdminSetSale
	AdminMintShares
	AdminMintLoot
	AdminFundFutarchy
)

func (m AdminMethod) String() string {
	switch m {
	case AdminSetQuorumBps:
		return "set_quorum_bps"
	case AdminSetQuorumAbsolute:
		return "set_quorum_absolute"
	case AdminSetMinYesVotes:
		return "set_min_yes_votes"
	case AdminSetProposalTTL:
		return "set_proposal_ttl"
	case AdminSetTimelockDelay:
		return "set_timelock_delay"
	case AdminSetProposalThreshold:
		return "set_proposal_threshold"
	case AdminSetTransfersLocked:
		return "set_transfers_locked"
	case AdminSetRagequittable:
		return "set_ragequittable"
	case AdminSetMetadata:
		return "set_metadata"
	case AdminSetAutoFutarchy:
		return "set_auto_futarchy"
	case AdminSetRewardKind:
		return "set_reward_kind"
	case AdminBumpConfig:
		return "bump_config"
	case AdminBatch:
		return "batch"
	case AdminSetPermit:
		return "set_permit"
	case AdminSetAllowance:
		return "set_allowance"
	case AdminSetSale:
		return "set_sale"
	case AdminMintShares:
		return "mint_shares"
	case AdminMintLoot:
		return "mint_loot"
	case AdminFundFutarchy:
		return "fund_futarchy"
	default:
		return "unknown"
	}
}

// AdminCall is the decoded payload of a self-call. Only the fields used by
// Method are encoded.
type AdminCall struct {
	Method  AdminMethod
	Bps     uint16
	Amount  uint256.Int
	Cap     uint256.Int
	Seconds uint64
	Flag    bool
	Name    string
	Symbol  string
	URI     string
	Kind    RewardKind
	Actions []Action
	Action  Action
	Account sdk.Address
	Asset   sdk.Asset
	Count   uint64
	Sale    Sale
	ID      Hash
}

func EncodeAdminCall(c *AdminCall) []byte {
	w := newWriter()
	w.writeByte(byte(c.Method))
	switch c.Method {
	case AdminSetQuorumBps:
		w.writeUint16(c.Bps)
	case AdminSetQuorumAbsolute, AdminSetMinYesVotes, AdminSetProposalThreshold:
		w.writeU256(&c.Amount)
	case AdminSetProposalTTL, AdminSetTimelockDelay:
		w.writeUint64(c.Seconds)
	case AdminSetTransfersLocked, AdminSetRagequittable:
		w.writeBool(c.Flag)
	case AdminSetMetadata:
		w.writeString(c.Name)
		w.writeString(c.Symbol)
		w.writeString(c.URI)
	case AdminSetAutoFutarchy:
		w.writeU256(&c.Amount)
		w.writeU256(&c.Cap)
	case AdminSetRewardKind:
		w.writeByte(byte(c.Kind))
	case AdminBumpConfig:
	case AdminBatch:
		w.writeVarUint(uint64(len(c.Actions)))
		for i := range c.Actions {
			encodeAction(w, &c.Actions[i])
		}
	case AdminSetPermit:
		encodeAction(w, &c.Action)
		w.writeAddress(c.Account)
		w.writeUint64(c.Count)
	case AdminSetAllowance:
		w.writeAddress(c.Account)
		w.writeAsset(c.Asset)
		w.writeU256(&c.Amount)
	case AdminSetSale:
		encodeSale(w, &c.Sale)
	case AdminMintShares, AdminMintLoot:
		w.writeAddress(c.Account)
		w.writeU256(&c.Amount)
	case AdminFundFutarchy:
		w.writeHash(c.ID)
		w.writeByte(byte(c.Kind))
		w.writeU256(&c.Amount)
	}
	return w.bytes()
}

func DecodeAdminCall(data []byte) (*AdminCall, error) {
	r := newReader(data)
	c := &AdminCall{Method: AdminMethod(r.readByte())}
	switch c.Method {
	case AdminSetQuorumBps:
		c.Bps = r.readUint16()
	case AdminSetQuorumAbsolute, AdminSetMinYesVotes, AdminSetProposalThreshold:
		r.readU256(&c.Amount)
	case AdminSetProposalTTL, AdminSetTimelockDelay:
		c.Seconds = r.readUint64()
	case AdminSetTransfersLocked, AdminSetRagequittable:
		c.Flag = r.readBool()
	case AdminSetMetadata:
		c.Name = r.readString()
		c.Symbol = r.readString()
		c.URI = r.readString()
	case AdminSetAutoFutarchy:
		r.readU256(&c.Amount)
		r.readU256(&c.Cap)
	case AdminSetRewardKind:
		c.Kind = RewardKind(r.readByte())
	case AdminBumpConfig:
	case AdminBatch:
		n := r.readVarUint()
		if n > uint64(len(data)) {
			return nil, fmt.Errorf("%w: batch of %d actions", ErrCorrupt, n)
		}
		for i := uint64(0); i < n && r.err == nil; i++ {
			c.Actions = append(c.Actions, decodeAction(r))
		}
	case AdminSetPermit:
		c.Action = decodeAction(r)
		c.Account = r.readAddress()
		c.Count = r.readUint64()
	case AdminSetAllowance:
		c.Account = r.readAddress()
		c.Asset = r.readAsset()
		r.readU256(&c.Amount)
	case AdminSetSale:
		c.Sale = decodeSale(r)
	case AdminMintShares, AdminMintLoot:
		c.Account = r.readAddress()
		r.readU256(&c.Amount)
	case AdminFundFutarchy:
		c.ID = r.readHash()
		c.Kind = RewardKind(r.readByte())
		r.readU256(&c.Amount)
	default:
		if r.err == nil {
			return nil, fmt.Errorf("%w: unknown admin method %d", ErrCorrupt, c.Method)
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return c, nil
}

// ------------------------------------------------------------------
// Payload builders, used by proposers to assemble self-calls.
// ------------------------------------------------------------------

func SetQuorumBpsPayload(bps uint16) []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminSetQuorumBps, Bps: bps})
}

func SetQuorumAbsolutePayload(amount uint64) []byte {
	c := &AdminCall{Method: AdminSetQuorumAbsolute}
	c.Amount.SetUint64(amount)
	return EncodeAdminCall(c)
}

func SetMinYesVotesPayload(amount uint64) []byte {
	c := &AdminCall{Method: AdminSetMinYesVotes}
	c.Amount.SetUint64(amount)
	return EncodeAdminCall(c)
}

func SetProposalThresholdPayload(amount uint64) []byte {
	c := &AdminCall{Method: AdminSetProposalThreshold}
	c.Amount.SetUint64(amount)
	return EncodeAdminCall(c)
}

func SetProposalTTLPayload(seconds uint64) []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminSetProposalTTL, Seconds: seconds})
}

func SetTimelockDelayPayload(seconds uint64) []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminSetTimelockDelay, Seconds: seconds})
}

func SetTransfersLockedPayload(locked bool) []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminSetTransfersLocked, Flag: locked})
}

func SetRagequittablePayload(on bool) []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminSetRagequittable, Flag: on})
}

func SetMetadataPayload(name, symbol, uri string) []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminSetMetadata, Name: name, Symbol: symbol, URI: uri})
}

func SetAutoFutarchyPayload(param, ceiling uint64) []byte {
	c := &AdminCall{Method: AdminSetAutoFutarchy}
	c.Amount.SetUint64(param)
	c.Cap.SetUint64(ceiling)
	return EncodeAdminCall(c)
}

func SetRewardKindPayload(kind RewardKind) []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminSetRewardKind, Kind: kind})
}

func BumpConfigPayload() []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminBumpConfig})
}

func BatchPayload(actions ...Action) []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminBatch, Actions: actions})
}

func SetPermitPayload(action Action, spender sdk.Address, count uint64) []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminSetPermit, Action: action, Account: spender, Count: count})
}

func SetAllowancePayload(spender sdk.Address, asset sdk.Asset, amount uint64) []byte {
	c := &AdminCall{Method: AdminSetAllowance, Account: spender, Asset: asset}
	c.Amount.SetUint64(amount)
	return EncodeAdminCall(c)
}

func SetSalePayload(sale Sale) []byte {
	return EncodeAdminCall(&AdminCall{Method: AdminSetSale, Sale: sale})
}

func MintSharesPayload(to sdk.Address, amount uint64) []byte {
	c := &AdminCall{Method: AdminMintShares, Account: to}
	c.Amount.SetUint64(amount)
	return EncodeAdminCall(c)
}

func MintLootPayload(to sdk.Address, amount uint64) []byte {
	c := &AdminCall{Method: AdminMintLoot, Account: to}
	c.Amount.SetUint64(amount)
	return EncodeAdminCall(c)
}

// FundFutarchyPayload funds the pool of id from the DAO itself, the only way
// to back a pool with newly minted shares.
func FundFutarchyPayload(id Hash, kind RewardKind, amount uint64) []byte {
	c := &AdminCall{Method: AdminFundFutarchy, ID: id, Kind: kind}
	c.Amount.SetUint64(amount)
	return EncodeAdminCall(c)
}
