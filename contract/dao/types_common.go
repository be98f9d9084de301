package dao

import (
	"encoding/hex"

	"github.com/holiman/uint256"

	"okinoko_moloch/sdk"
)

const (
	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10_000
	// MaxSplits bounds the number of delegates in a split delegation.
	MaxSplits = 4
	// MaxSeats is the size of the top-holder registry.
	MaxSeats = 256
)

// MaxTally is the largest value a single tally bucket may hold (96 bits).
var MaxTally = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 96), uint256.NewInt(1))

// Hash is a 32 byte content identity (proposals, receipts, permits).
type Hash [32]byte

// String renders the hash as 0x-prefixed hex.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Short is the first 8 hex chars, handy in event lines.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:4])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HashFromHex parses a 0x-prefixed or bare 64 char hex string.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, hex.ErrLength
	}
	copy(h[:], b)
	return h, nil
}

// Stance is a voter's position on a proposal.
type Stance uint8

const (
	StanceAgainst Stance = 0
	StanceFor     Stance = 1
	StanceAbstain Stance = 2
)

// Valid reports whether s is one of the three known stances.
func (s Stance) Valid() bool {
	return s <= StanceAbstain
}

// String prints the stance as lower-case text for events and logs.
func (s Stance) String() string {
	switch s {
	case StanceAgainst:
		return "against"
	case StanceFor:
		return "for"
	case StanceAbstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// ProposalState captures a proposal's lifecycle. Only Unopened and Executed are
// backed by stored latches, every other state is derived on demand.
type ProposalState uint8

const (
	ProposalUnopened  ProposalState = 0
	ProposalActive    ProposalState = 1
	ProposalQueued    ProposalState = 2
	ProposalSucceeded ProposalState = 3
	ProposalDefeated  ProposalState = 4
	ProposalExpired   ProposalState = 5
	ProposalExecuted  ProposalState = 6
)

// String prints the proposal state as lower-case text for events and logs.
func (ps ProposalState) String() string {
	switch ps {
	case ProposalUnopened:
		return "unopened"
	case ProposalActive:
		return "active"
	case ProposalQueued:
		return "queued"
	case ProposalSucceeded:
		return "succeeded"
	case ProposalDefeated:
		return "defeated"
	case ProposalExpired:
		return "expired"
	case ProposalExecuted:
		return "executed"
	default:
		return "unspecified"
	}
}

// RewardKind is the asset a futarchy pool pays out in.
type RewardKind uint8

const (
	// RewardNative pays the host's native currency out of the treasury.
	RewardNative RewardKind = 0
	// RewardMintedShares mints fresh shares to winners.
	RewardMintedShares RewardKind = 1
	// RewardTreasuryShares pays shares already held by the DAO itself.
	RewardTreasuryShares RewardKind = 2
)

func (k RewardKind) Valid() bool {
	return k <= RewardTreasuryShares
}

func (k RewardKind) String() string {
	switch k {
	case RewardNative:
		return "native"
	case RewardMintedShares:
		return "minted-shares"
	case RewardTreasuryShares:
		return "treasury-shares"
	default:
		return "unknown"
	}
}

// Split is one weighted delegate of a split delegation.
type Split struct {
	Delegate sdk.Address
	Bps      uint16
}

// Checkpoint records the voting weight of a delegate (or the total supply)
// as of a block ordinal.
type Checkpoint struct {
	Height uint64
	Votes  uint256.Int
}

// Config is the governance configuration, mutable only through self-calls.
type Config struct {
	Name              string
	Symbol            string
	URI               string
	QuorumBps         uint16
	QuorumAbsolute    uint256.Int
	MinYesVotes       uint256.Int
	ProposalThreshold uint256.Int
	ProposalTTL       uint64
	TimelockDelay     uint64
	Ragequittable     bool
	TransfersLocked   bool
	AutoFutarchyParam uint256.Int
	AutoFutarchyCap   uint256.Int
	RewardKind        RewardKind
	RewardKindPreset  bool
	Epoch             uint64
}

// Tally holds the three vote buckets of a proposal.
type Tally struct {
	For     uint256.Int
	Against uint256.Int
	Abstain uint256.Int
}

// Total returns for + against + abstain. Each bucket is 96 bits so this never wraps.
func (t *Tally) Total() *uint256.Int {
	total := new(uint256.Int).Add(&t.For, &t.Against)
	return total.Add(total, &t.Abstain)
}

// Bucket returns the tally bucket for stance.
func (t *Tally) Bucket(s Stance) *uint256.Int {
	switch s {
	case StanceFor:
		return &t.For
	case StanceAgainst:
		return &t.Against
	default:
		return &t.Abstain
	}
}

func (t *Tally) IsZero() bool {
	return t.For.IsZero() && t.Against.IsZero() && t.Abstain.IsZero()
}

// Proposal is the stored record behind a proposal identity.
type Proposal struct {
	ID               Hash
	Proposer         sdk.Address
	CreatedAt        int64
	Snapshot         uint64
	SupplyAtSnapshot uint256.Int
	Tally            Tally
	QueuedAt         int64
	Executed         bool
}

// Opened reports whether the record has been opened (or tombstoned).
func (p *Proposal) Opened() bool {
	return p.CreatedAt != 0 || p.Executed
}

// Ballot is the per-voter marker on a proposal.
type Ballot struct {
	Stance Stance
	Weight uint256.Int
}

// Futarchy is the side pool on a proposal outcome.
type Futarchy struct {
	Enabled       bool
	Kind          RewardKind
	Pool          uint256.Int
	Resolved      bool
	Winner        Stance
	WinningSupply uint256.Int
	PayoutPerUnit uint256.Int
}

// Receipt maps a receipt token id back to its proposal and stance.
type Receipt struct {
	Proposal Hash
	Stance   Stance
}

// Seat is one occupied slot of the top-holder registry.
type Seat struct {
	Slot    uint16
	Holder  sdk.Address
	Balance uint256.Int
}

// Cutline caches the smallest seated balance. Slot 0 means no seat is taken.
type Cutline struct {
	Balance uint256.Int
	Slot    uint16
}

// Sale is a standing offer to sell shares (or loot) for a pay asset.
type Sale struct {
	PayAsset sdk.Asset
	Price    uint256.Int
	Cap      uint256.Int
	Minting  bool
	Active   bool
	Loot     bool
}

// Action is an outgoing action identified by a proposal or permit identity.
type Action struct {
	Op      sdk.Operation
	Target  sdk.Address
	Value   uint256.Int
	Payload []byte
	Nonce   uint256.Int
}

// NewAction is a small helper for the common no-value call.
func NewAction(target sdk.Address, payload []byte, nonce uint64) Action {
	a := Action{Op: sdk.OpCall, Target: target, Payload: payload}
	a.Nonce.SetUint64(nonce)
	return a
}
