package contract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/event"
	"okinoko_moloch/sdk"
)

const (
	InitializedEventType       event.EventType = "dao.initialized"
	TransferEventType          event.EventType = "dao.transfer"
	DelegationEventType        event.EventType = "dao.delegation"
	SeatEventType              event.EventType = "dao.seat"
	ProposalOpenedEventType    event.EventType = "dao.proposal.opened"
	VoteCastEventType          event.EventType = "dao.vote.cast"
	VoteCancelledEventType     event.EventType = "dao.vote.cancelled"
	ProposalCancelledEventType event.EventType = "dao.proposal.cancelled"
	ProposalQueuedEventType    event.EventType = "dao.proposal.queued"
	ProposalExecutedEventType  event.EventType = "dao.proposal.executed"
	FutarchyFundedEventType    event.EventType = "dao.futarchy.funded"
	FutarchyResolvedEventType  event.EventType = "dao.futarchy.resolved"
	FutarchyClaimedEventType   event.EventType = "dao.futarchy.claimed"
	ReceiptTransferEventType   event.EventType = "dao.receipt.transfer"
	PermitEventType            event.EventType = "dao.permit"
	AllowanceEventType         event.EventType = "dao.allowance"
	SaleEventType              event.EventType = "dao.sale"
	SharesBoughtEventType      event.EventType = "dao.sale.bought"
	RagequitEventType          event.EventType = "dao.ragequit"
	ConfigChangedEventType     event.EventType = "dao.config"
)

// EventTypes lists every type the DAO publishes, for subscribers that want all of them.
var EventTypes = []event.EventType{
	InitializedEventType,
	TransferEventType,
	DelegationEventType,
	SeatEventType,
	ProposalOpenedEventType,
	VoteCastEventType,
	VoteCancelledEventType,
	ProposalCancelledEventType,
	ProposalQueuedEventType,
	ProposalExecutedEventType,
	FutarchyFundedEventType,
	FutarchyResolvedEventType,
	FutarchyClaimedEventType,
	ReceiptTransferEventType,
	PermitEventType,
	AllowanceEventType,
	SaleEventType,
	SharesBoughtEventType,
	RagequitEventType,
	ConfigChangedEventType,
}

type InitializedEvent struct {
	DAO    sdk.Address
	Name   string
	Symbol string
	URI    string
}

// TransferEvent covers mint (zero From), burn (zero To) and transfer of shares or loot.
type TransferEvent struct {
	DAO    sdk.Address
	From   sdk.Address
	To     sdk.Address
	Amount uint256.Int
	Loot   bool
}

type DelegationEvent struct {
	DAO     sdk.Address
	Account sdk.Address
	Splits  []dao.Split
}

type SeatEvent struct {
	DAO     sdk.Address
	Slot    uint16
	Holder  sdk.Address
	Balance uint256.Int
	Vacated bool
}

type ProposalOpenedEvent struct {
	DAO       sdk.Address
	ID        dao.Hash
	Proposer  sdk.Address
	CreatedAt int64
	Snapshot  uint64
	Supply    uint256.Int
}

type VoteEvent struct {
	DAO    sdk.Address
	ID     dao.Hash
	Voter  sdk.Address
	Stance dao.Stance
	Weight uint256.Int
}

type ProposalCancelledEvent struct {
	DAO sdk.Address
	ID  dao.Hash
	By  sdk.Address
}

type ProposalQueuedEvent struct {
	DAO        sdk.Address
	ID         dao.Hash
	QueuedAt   int64
	EligibleAt int64
}

type ProposalExecutedEvent struct {
	DAO    sdk.Address
	ID     dao.Hash
	By     sdk.Address
	Op     sdk.Operation
	Target sdk.Address
	Value  uint256.Int
	Permit bool
}

type FutarchyFundedEvent struct {
	DAO    sdk.Address
	ID     dao.Hash
	By     sdk.Address
	Kind   dao.RewardKind
	Amount uint256.Int
	Pool   uint256.Int
}

type FutarchyResolvedEvent struct {
	DAO           sdk.Address
	ID            dao.Hash
	Winner        dao.Stance
	WinningSupply uint256.Int
	PayoutPerUnit uint256.Int
}

type FutarchyClaimedEvent struct {
	DAO      sdk.Address
	ID       dao.Hash
	Claimant sdk.Address
	Burned   uint256.Int
	Payout   uint256.Int
}

type ReceiptTransferEvent struct {
	DAO       sdk.Address
	ReceiptID dao.Hash
	From      sdk.Address
	To        sdk.Address
	Amount    uint256.Int
}

type PermitEvent struct {
	DAO     sdk.Address
	ID      dao.Hash
	Spender sdk.Address
	Count   uint64
	Spent   bool
}

type AllowanceEvent struct {
	DAO     sdk.Address
	Spender sdk.Address
	Asset   sdk.Asset
	Amount  uint256.Int
	Spent   bool
}

type SaleEvent struct {
	DAO  sdk.Address
	Sale dao.Sale
}

type SharesBoughtEvent struct {
	DAO      sdk.Address
	Buyer    sdk.Address
	PayAsset sdk.Asset
	Amount   uint256.Int
	Cost     uint256.Int
	Loot     bool
}

type RagequitEvent struct {
	DAO    sdk.Address
	Member sdk.Address
	Shares uint256.Int
	Loot   uint256.Int
	Assets []sdk.Asset
	Paid   []uint256.Int
}

type ConfigChangedEvent struct {
	DAO   sdk.Address
	Field string
	Old   string
	New   string
}

// pendingEvent waits in the frame until the outermost call commits.
type pendingEvent struct {
	typ  event.EventType
	data any
	line string
}

func (c *call) emit(typ event.EventType, data any, line string) {
	c.events = append(c.events, pendingEvent{typ: typ, data: data, line: line})
}

// publish logs each event as its terse line and hands it to the bus.
func (d *DAO) publish(events []pendingEvent) {
	for _, pe := range events {
		d.logger.Info(pe.line, "type", string(pe.typ))
		d.metrics.observeEvent(string(pe.typ))
		if d.bus != nil {
			d.bus.Publish(pe.typ, event.NewEvent(pe.typ, pe.data))
		}
	}
}

func (c *call) emitInitialized(cfg *dao.Config) {
	c.emit(InitializedEventType,
		InitializedEvent{DAO: c.self(), Name: cfg.Name, Symbol: cfg.Symbol, URI: cfg.URI},
		fmt.Sprintf("di|n:%s|s:%s", cfg.Name, cfg.Symbol),
	)
}

// emitTransfer is the one line for mint, burn and transfer. k is "s" for shares and "l" for loot.
func (c *call) emitTransfer(from, to sdk.Address, amount *uint256.Int, loot bool) {
	k := "s"
	if loot {
		k = "l"
	}
	c.emit(TransferEventType,
		TransferEvent{DAO: c.self(), From: from, To: to, Amount: *amount, Loot: loot},
		fmt.Sprintf("t|k:%s|f:%s|t:%s|am:%s", k, from, to, amount.Dec()),
	)
}

func (c *call) emitDelegation(account sdk.Address, splits []dao.Split) {
	parts := make([]string, len(splits))
	for i, s := range splits {
		parts[i] = s.Delegate.String() + ":" + strconv.Itoa(int(s.Bps))
	}
	c.emit(DelegationEventType,
		DelegationEvent{DAO: c.self(), Account: account, Splits: append([]dao.Split(nil), splits...)},
		fmt.Sprintf("dl|by:%s|to:%s", account, strings.Join(parts, ",")),
	)
}

func (c *call) emitSeat(slot uint16, holder sdk.Address, balance *uint256.Int, vacated bool) {
	c.emit(SeatEventType,
		SeatEvent{DAO: c.self(), Slot: slot, Holder: holder, Balance: *balance, Vacated: vacated},
		fmt.Sprintf("st|sl:%d|h:%s|b:%s|v:%s", slot, holder, balance.Dec(), strconv.FormatBool(vacated)),
	)
}

func (c *call) emitProposalOpened(p *dao.Proposal) {
	c.emit(ProposalOpenedEventType,
		ProposalOpenedEvent{DAO: c.self(), ID: p.ID, Proposer: p.Proposer, CreatedAt: p.CreatedAt, Snapshot: p.Snapshot, Supply: p.SupplyAtSnapshot},
		fmt.Sprintf("pc|id:%s|by:%s|sn:%d", p.ID.Short(), p.Proposer, p.Snapshot),
	)
}

// emitVote includes stance plus weight so tallies can be replayed from logs only.
func (c *call) emitVote(id dao.Hash, voter sdk.Address, stance dao.Stance, weight *uint256.Int, cancelled bool) {
	typ, tag := VoteCastEventType, "v"
	if cancelled {
		typ, tag = VoteCancelledEventType, "vc"
	}
	c.emit(typ,
		VoteEvent{DAO: c.self(), ID: id, Voter: voter, Stance: stance, Weight: *weight},
		fmt.Sprintf("%s|id:%s|by:%s|s:%s|w:%s", tag, id.Short(), voter, stance, weight.Dec()),
	)
}

func (c *call) emitProposalCancelled(id dao.Hash) {
	c.emit(ProposalCancelledEventType,
		ProposalCancelledEvent{DAO: c.self(), ID: id, By: c.caller()},
		fmt.Sprintf("px|id:%s|by:%s", id.Short(), c.caller()),
	)
}

// emitProposalQueued logs when a passed proposal waits out its timelock so runners can schedule it.
func (c *call) emitProposalQueued(id dao.Hash, queuedAt, eligibleAt int64) {
	c.emit(ProposalQueuedEventType,
		ProposalQueuedEvent{DAO: c.self(), ID: id, QueuedAt: queuedAt, EligibleAt: eligibleAt},
		fmt.Sprintf("pq|id:%s|ready:%s", id.Short(), strconv.FormatInt(eligibleAt, 10)),
	)
}

func (c *call) emitProposalExecuted(id dao.Hash, a *dao.Action, permit bool) {
	c.emit(ProposalExecutedEventType,
		ProposalExecutedEvent{DAO: c.self(), ID: id, By: c.caller(), Op: a.Op, Target: a.Target, Value: a.Value, Permit: permit},
		fmt.Sprintf("pe|id:%s|op:%s|to:%s|val:%s|pm:%s", id.Short(), a.Op, a.Target, a.Value.Dec(), strconv.FormatBool(permit)),
	)
}

func (c *call) emitFutarchyFunded(id dao.Hash, kind dao.RewardKind, amount, pool *uint256.Int) {
	c.emit(FutarchyFundedEventType,
		FutarchyFundedEvent{DAO: c.self(), ID: id, By: c.caller(), Kind: kind, Amount: *amount, Pool: *pool},
		fmt.Sprintf("ff|id:%s|by:%s|k:%s|am:%s|p:%s", id.Short(), c.caller(), kind, amount.Dec(), pool.Dec()),
	)
}

func (c *call) emitFutarchyResolved(id dao.Hash, f *dao.Futarchy) {
	c.emit(FutarchyResolvedEventType,
		FutarchyResolvedEvent{DAO: c.self(), ID: id, Winner: f.Winner, WinningSupply: f.WinningSupply, PayoutPerUnit: f.PayoutPerUnit},
		fmt.Sprintf("fr|id:%s|w:%s|ws:%s|ppu:%s", id.Short(), f.Winner, f.WinningSupply.Dec(), f.PayoutPerUnit.Dec()),
	)
}

func (c *call) emitFutarchyClaimed(id dao.Hash, burned, payout *uint256.Int) {
	c.emit(FutarchyClaimedEventType,
		FutarchyClaimedEvent{DAO: c.self(), ID: id, Claimant: c.caller(), Burned: *burned, Payout: *payout},
		fmt.Sprintf("fc|id:%s|by:%s|b:%s|am:%s", id.Short(), c.caller(), burned.Dec(), payout.Dec()),
	)
}

func (c *call) emitReceiptTransfer(rid dao.Hash, from, to sdk.Address, amount *uint256.Int) {
	c.emit(ReceiptTransferEventType,
		ReceiptTransferEvent{DAO: c.self(), ReceiptID: rid, From: from, To: to, Amount: *amount},
		fmt.Sprintf("rt|id:%s|f:%s|t:%s|am:%s", rid.Short(), from, to, amount.Dec()),
	)
}

func (c *call) emitPermit(id dao.Hash, spender sdk.Address, count uint64, spent bool) {
	c.emit(PermitEventType,
		PermitEvent{DAO: c.self(), ID: id, Spender: spender, Count: count, Spent: spent},
		fmt.Sprintf("pm|id:%s|sp:%s|n:%d|u:%s", id.Short(), spender, count, strconv.FormatBool(spent)),
	)
}

func (c *call) emitAllowance(spender sdk.Address, asset sdk.Asset, amount *uint256.Int, spent bool) {
	c.emit(AllowanceEventType,
		AllowanceEvent{DAO: c.self(), Spender: spender, Asset: asset, Amount: *amount, Spent: spent},
		fmt.Sprintf("al|sp:%s|as:%s|am:%s|u:%s", spender, asset, amount.Dec(), strconv.FormatBool(spent)),
	)
}

func (c *call) emitSale(s *dao.Sale) {
	c.emit(SaleEventType,
		SaleEvent{DAO: c.self(), Sale: *s},
		fmt.Sprintf("sl|as:%s|pr:%s|cap:%s|on:%s", s.PayAsset, s.Price.Dec(), s.Cap.Dec(), strconv.FormatBool(s.Active)),
	)
}

func (c *call) emitSharesBought(asset sdk.Asset, amount, cost *uint256.Int, loot bool) {
	c.emit(SharesBoughtEventType,
		SharesBoughtEvent{DAO: c.self(), Buyer: c.caller(), PayAsset: asset, Amount: *amount, Cost: *cost, Loot: loot},
		fmt.Sprintf("sb|by:%s|as:%s|am:%s|c:%s", c.caller(), asset, amount.Dec(), cost.Dec()),
	)
}

func (c *call) emitRagequit(shares, loot *uint256.Int, assets []sdk.Asset, paid []uint256.Int) {
	c.emit(RagequitEventType,
		RagequitEvent{DAO: c.self(), Member: c.caller(), Shares: *shares, Loot: *loot, Assets: assets, Paid: paid},
		fmt.Sprintf("rq|by:%s|s:%s|l:%s|n:%d", c.caller(), shares.Dec(), loot.Dec(), len(assets)),
	)
}

// emitConfigChanged spells out field diffs so auditors can track sensitive flips.
func (c *call) emitConfigChanged(field, old, new string) {
	c.emit(ConfigChangedEventType,
		ConfigChangedEvent{DAO: c.self(), Field: field, Old: old, New: new},
		fmt.Sprintf("cfg|f:%s|old:%s|new:%s", field, old, new),
	)
}
