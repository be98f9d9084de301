// Package indexer keeps a SQLite read model of DAO events for the CLI and the
// HTTP getters. It never feeds back into contract state.
package indexer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"okinoko_moloch/contract"
	"okinoko_moloch/contract/dao"
	"okinoko_moloch/event"
)

var ErrProposalNotFound = errors.New("proposal not found")

type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	mu     sync.Mutex
	subIDs map[event.EventType]event.EventSubscriberId
	bus    *event.EventBus
}

// New opens the read model under dataDir, or in memory when dataDir is empty.
func New(dataDir string, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	dsn := "file::memory:"
	if dataDir != "" {
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", filepath.Join(dataDir, "index.sqlite"))
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}
	if dataDir == "" {
		// every pooled connection would otherwise get its own empty memory db
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	for _, model := range MigrateModels {
		logger.Debug(fmt.Sprintf("creating table: %T", model), "component", "indexer")
		if err := db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return &Indexer{
		db:     db,
		logger: logger.With("component", "indexer"),
		subIDs: make(map[event.EventType]event.EventSubscriberId),
	}, nil
}

func (ix *Indexer) DB() *gorm.DB {
	return ix.db
}

// Attach registers the indexer as a synchronous sink for every DAO event type.
func (ix *Indexer) Attach(bus *event.EventBus) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.bus = bus
	for _, t := range contract.EventTypes {
		ix.subIDs[t] = bus.RegisterSubscriber(t, ix)
	}
}

// Detach stops receiving events.
func (ix *Indexer) Detach() {
	ix.mu.Lock()
	bus, ids := ix.bus, ix.subIDs
	ix.bus, ix.subIDs = nil, make(map[event.EventType]event.EventSubscriberId)
	ix.mu.Unlock()
	if bus == nil {
		return
	}
	for t, id := range ids {
		bus.Unsubscribe(t, id)
	}
}

// Close is called by the bus per event type on unsubscribe. The database
// stays open until Shutdown.
func (ix *Indexer) Close() {}

func (ix *Indexer) Shutdown() error {
	ix.Detach()
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Deliver applies one event. Unknown payloads are ignored.
func (ix *Indexer) Deliver(evt event.Event) error {
	var err error
	switch e := evt.Data.(type) {
	case contract.ProposalOpenedEvent:
		err = ix.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Proposal{
			DAO:       e.DAO.String(),
			Hash:      e.ID.String(),
			Proposer:  e.Proposer.String(),
			CreatedAt: e.CreatedAt,
			Snapshot:  e.Snapshot,
			Supply:    e.Supply.Dec(),
			For:       "0",
			Against:   "0",
			Abstain:   "0",
			Status:    "active",
			Pool:      "0",
		}).Error
	case contract.VoteEvent:
		err = ix.applyVote(e, evt.Type == contract.VoteCancelledEventType)
	case contract.ProposalQueuedEvent:
		err = ix.updateProposal(e.DAO.String(), e.ID, map[string]any{"status": "queued", "eligible_at": e.EligibleAt})
	case contract.ProposalExecutedEvent:
		err = ix.updateProposal(e.DAO.String(), e.ID, map[string]any{"status": "executed"})
	case contract.ProposalCancelledEvent:
		err = ix.updateProposal(e.DAO.String(), e.ID, map[string]any{"status": "cancelled"})
	case contract.FutarchyFundedEvent:
		err = ix.updateProposal(e.DAO.String(), e.ID, map[string]any{"pool": e.Pool.Dec()})
	case contract.FutarchyResolvedEvent:
		winner := uint8(e.Winner)
		err = ix.updateProposal(e.DAO.String(), e.ID, map[string]any{"winner": winner})
	case contract.FutarchyClaimedEvent:
		err = ix.db.Create(&Claim{
			DAO:      e.DAO.String(),
			Hash:     e.ID.String(),
			Claimant: e.Claimant.String(),
			Burned:   e.Burned.Dec(),
			Payout:   e.Payout.Dec(),
		}).Error
	case contract.SeatEvent:
		err = ix.applySeat(e)
	case contract.TransferEvent:
		err = ix.db.Create(&Transfer{
			DAO:    e.DAO.String(),
			From:   e.From.String(),
			To:     e.To.String(),
			Amount: e.Amount.Dec(),
			Loot:   e.Loot,
		}).Error
	}
	if err != nil {
		ix.logger.Error("failed to index event", "type", evt.Type, "err", err)
	}
	return err
}

// updateProposal patches a row. Events for proposals opened before the
// indexer was attached have no row and are skipped.
func (ix *Indexer) updateProposal(daoAddr string, id dao.Hash, fields map[string]any) error {
	return ix.db.Model(&Proposal{}).
		Where("dao = ? AND hash = ?", daoAddr, id.String()).
		Updates(fields).Error
}

func (ix *Indexer) applyVote(e contract.VoteEvent, cancelled bool) error {
	return ix.db.Transaction(func(tx *gorm.DB) error {
		var p Proposal
		result := tx.Where("dao = ? AND hash = ?", e.DAO.String(), e.ID.String()).First(&p)
		if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		if result.Error == nil {
			bucket := &p.Abstain
			switch e.Stance {
			case dao.StanceFor:
				bucket = &p.For
			case dao.StanceAgainst:
				bucket = &p.Against
			}
			cur, err := uint256.FromDecimal(*bucket)
			if err != nil {
				return fmt.Errorf("tally of %s: %w", e.ID.Short(), err)
			}
			if cancelled {
				cur.Sub(cur, &e.Weight)
			} else {
				cur.Add(cur, &e.Weight)
			}
			*bucket = cur.Dec()
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		}
		if cancelled {
			return tx.Model(&Vote{}).
				Where("dao = ? AND hash = ? AND voter = ? AND cancelled = ?", e.DAO.String(), e.ID.String(), e.Voter.String(), false).
				Update("cancelled", true).Error
		}
		return tx.Create(&Vote{
			DAO:    e.DAO.String(),
			Hash:   e.ID.String(),
			Voter:  e.Voter.String(),
			Stance: uint8(e.Stance),
			Weight: e.Weight.Dec(),
		}).Error
	})
}

func (ix *Indexer) applySeat(e contract.SeatEvent) error {
	if e.Vacated {
		return ix.db.Where("dao = ? AND slot = ? AND holder = ?", e.DAO.String(), e.Slot, e.Holder.String()).
			Delete(&Seat{}).Error
	}
	return ix.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dao"}, {Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"holder", "balance"}),
	}).Create(&Seat{
		DAO:     e.DAO.String(),
		Slot:    e.Slot,
		Holder:  e.Holder.String(),
		Balance: e.Balance.Dec(),
	}).Error
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// Proposals lists the proposals of daoAddr, newest first.
func (ix *Indexer) Proposals(daoAddr string, limit int) ([]Proposal, error) {
	var out []Proposal
	q := ix.db.Where("dao = ?", daoAddr).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, q.Find(&out).Error
}

func (ix *Indexer) Proposal(daoAddr string, id dao.Hash) (*Proposal, error) {
	var p Proposal
	result := ix.db.Where("dao = ? AND hash = ?", daoAddr, id.String()).First(&p)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrProposalNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &p, nil
}

// Votes lists the live ballots on a proposal in cast order.
func (ix *Indexer) Votes(daoAddr string, id dao.Hash) ([]Vote, error) {
	var out []Vote
	return out, ix.db.Where("dao = ? AND hash = ? AND cancelled = ?", daoAddr, id.String(), false).
		Order("id").Find(&out).Error
}

func (ix *Indexer) Claims(daoAddr, claimant string) ([]Claim, error) {
	var out []Claim
	return out, ix.db.Where("dao = ? AND claimant = ?", daoAddr, claimant).Order("id").Find(&out).Error
}

// Seats lists occupied seats by slot.
func (ix *Indexer) Seats(daoAddr string) ([]Seat, error) {
	var out []Seat
	return out, ix.db.Where("dao = ?", daoAddr).Order("slot").Find(&out).Error
}

func (ix *Indexer) Transfers(daoAddr string, limit int) ([]Transfer, error) {
	var out []Transfer
	q := ix.db.Where("dao = ?", daoAddr).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, q.Find(&out).Error
}
