package contract

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// -----------------------------------------------------------------------------
// Proposal records
// -----------------------------------------------------------------------------

// loadProposal returns the stored record, or a blank one carrying only the id.
func (c *call) loadProposal(id dao.Hash) *dao.Proposal {
	ptr := c.kv.get(proposalKey(id))
	if ptr == nil {
		return &dao.Proposal{ID: id}
	}
	p, err := dao.DecodeProposal([]byte(*ptr))
	if err != nil {
		c.fail(err)
		return &dao.Proposal{ID: id}
	}
	return p
}

func (c *call) saveProposal(p *dao.Proposal) {
	c.kv.set(proposalKey(p.ID), string(dao.EncodeProposal(p)))
}

func (c *call) actionID(a *dao.Action) (dao.Hash, error) {
	cfg, err := c.config()
	if err != nil {
		return dao.Hash{}, err
	}
	return dao.ActionID(c.self(), a, cfg.Epoch), nil
}

// openProposal opens id on first touch and returns the record either way.
func (c *call) openProposal(id dao.Hash) (*dao.Proposal, error) {
	p := c.loadProposal(id)
	if p.Opened() {
		return p, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if !cfg.ProposalThreshold.IsZero() {
		if votes := c.votesOf(c.caller()); votes.Lt(&cfg.ProposalThreshold) {
			return nil, fmt.Errorf("%w: %s has %s votes, threshold is %s", ErrUnauthorized, c.caller(), votes.Dec(), cfg.ProposalThreshold.Dec())
		}
	}
	if c.env.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: call carries no timestamp", ErrInvalidInput)
	}
	if c.env.BlockHeight == 0 {
		return nil, fmt.Errorf("%w: no block before genesis", ErrTooEarly)
	}
	snapshot := c.env.BlockHeight - 1
	supply, err := c.pastTotalSupply(snapshot)
	if err != nil {
		return nil, err
	}
	if supply.IsZero() {
		return nil, fmt.Errorf("%w: no shares at block %d", ErrTooEarly, snapshot)
	}
	p.Proposer = c.caller()
	p.CreatedAt = c.env.Timestamp
	p.Snapshot = snapshot
	p.SupplyAtSnapshot.Set(supply)
	c.saveProposal(p)
	c.appendHashToIndex(idxProposals, id)
	c.incCount(ProposalsCount)
	c.emitProposalOpened(p)
	c.onCommit(c.d.metrics.proposalOpened)
	if err := c.autoEarmark(p, cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// proposalState folds latches, timing and the configured gates into one state.
func proposalState(p *dao.Proposal, cfg *dao.Config, now int64) dao.ProposalState {
	if p.Executed {
		return dao.ProposalExecuted
	}
	if p.CreatedAt == 0 {
		return dao.ProposalUnopened
	}
	if p.QueuedAt != 0 && cfg.TimelockDelay > 0 && now < p.QueuedAt+int64(cfg.TimelockDelay) {
		return dao.ProposalQueued
	}
	if p.QueuedAt == 0 && cfg.ProposalTTL > 0 && now >= p.CreatedAt+int64(cfg.ProposalTTL) {
		return dao.ProposalExpired
	}
	total := p.Tally.Total()
	if !cfg.QuorumAbsolute.IsZero() && total.Lt(&cfg.QuorumAbsolute) {
		return dao.ProposalActive
	}
	if cfg.QuorumBps > 0 {
		minVotes, _ := new(uint256.Int).MulDivOverflow(uint256.NewInt(uint64(cfg.QuorumBps)), &p.SupplyAtSnapshot, uint256.NewInt(dao.BpsDenominator))
		if total.Lt(minVotes) {
			return dao.ProposalActive
		}
	}
	if !cfg.MinYesVotes.IsZero() && p.Tally.For.Lt(&cfg.MinYesVotes) {
		return dao.ProposalDefeated
	}
	if !p.Tally.For.Gt(&p.Tally.Against) {
		return dao.ProposalDefeated
	}
	return dao.ProposalSucceeded
}

func (c *call) state(p *dao.Proposal) (dao.ProposalState, error) {
	cfg, err := c.config()
	if err != nil {
		return 0, err
	}
	return proposalState(p, cfg, c.env.Timestamp), nil
}

// queue stamps the queue time once. Without a timelock it does nothing.
func (c *call) queue(p *dao.Proposal, cfg *dao.Config) (bool, error) {
	if cfg.TimelockDelay == 0 || p.QueuedAt != 0 {
		return false, nil
	}
	if st := proposalState(p, cfg, c.env.Timestamp); st != dao.ProposalSucceeded {
		return false, fmt.Errorf("%w: cannot queue a %s proposal", ErrInvalidState, st)
	}
	p.QueuedAt = c.env.Timestamp
	c.saveProposal(p)
	c.emitProposalQueued(p.ID, p.QueuedAt, p.QueuedAt+int64(cfg.TimelockDelay))
	return true, nil
}

// dispatch performs an action on behalf of the DAO. Actions aimed at the DAO
// itself are admin calls and run as a nested frame with the DAO as caller.
func (c *call) dispatch(a *dao.Action) ([]byte, error) {
	if a.Target.IsZero() {
		return nil, fmt.Errorf("%w: action without target", ErrInvalidInput)
	}
	if a.Target == c.self() {
		if a.Op != sdk.OpCall || !a.Value.IsZero() {
			return nil, fmt.Errorf("%w: self calls are plain calls without value", ErrInvalidInput)
		}
		ac, err := dao.DecodeAdminCall(a.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		env := c.env
		env.Caller = c.self()
		return nil, c.d.Admin(sdk.WithEnv(c.ctx, env), ac)
	}
	if c.d.host == nil {
		return nil, fmt.Errorf("%w: no host to call %s", ErrExecutionFailed, a.Target)
	}
	return c.d.host.Call(c.ctx, c.self(), a.Op, a.Target, &a.Value, a.Payload)
}

// -----------------------------------------------------------------------------
// Entry points
// -----------------------------------------------------------------------------

// ProposalID is the identity of a under the live config epoch.
func (d *DAO) ProposalID(ctx context.Context, a *dao.Action) (dao.Hash, error) {
	var id dao.Hash
	err := d.view(ctx, func(c *call) error {
		var err error
		id, err = c.actionID(a)
		return err
	})
	return id, err
}

// OpenProposal captures the snapshot of id. Opening twice is a no-op.
func (d *DAO) OpenProposal(ctx context.Context, id dao.Hash) error {
	return d.run(ctx, "open", func(c *call) error {
		_, err := c.openProposal(id)
		return err
	})
}

// CancelProposal tombstones an untouched proposal. Only its proposer may do so
// and only while nothing was voted, queued or funded.
func (d *DAO) CancelProposal(ctx context.Context, id dao.Hash) error {
	return d.run(ctx, "cancel_proposal", func(c *call) error {
		p := c.loadProposal(id)
		if !p.Opened() {
			return fmt.Errorf("%w: proposal %s not opened", ErrInvalidState, id.Short())
		}
		if p.Proposer != c.caller() {
			return fmt.Errorf("%w: only %s may cancel", ErrUnauthorized, p.Proposer)
		}
		st, err := c.state(p)
		if err != nil {
			return err
		}
		if st != dao.ProposalActive {
			return fmt.Errorf("%w: cannot cancel a %s proposal", ErrInvalidState, st)
		}
		if p.QueuedAt != 0 {
			return fmt.Errorf("%w: proposal is queued", ErrInvalidState)
		}
		if !p.Tally.IsZero() {
			return fmt.Errorf("%w: proposal has votes", ErrInvalidState)
		}
		if f := c.loadFutarchy(id); !f.Pool.IsZero() {
			return fmt.Errorf("%w: proposal has a funded futarchy pool", ErrInvalidState)
		}
		p.Executed = true
		c.saveProposal(p)
		c.emitProposalCancelled(id)
		return nil
	})
}

// Queue starts the timelock of a succeeded proposal.
func (d *DAO) Queue(ctx context.Context, id dao.Hash) error {
	return d.run(ctx, "queue", func(c *call) error {
		cfg, err := c.config()
		if err != nil {
			return err
		}
		_, err = c.queue(c.loadProposal(id), cfg)
		return err
	})
}

// Execute runs a passed proposal. Under a timelock the first call only queues
// and reports executed == false; a call after the delay performs the action.
// A failing action reverts everything, the executed latch included.
func (d *DAO) Execute(ctx context.Context, a *dao.Action) (executed bool, ret []byte, err error) {
	err = d.run(ctx, "execute", func(c *call) error {
		release, err := c.nonReentrant()
		if err != nil {
			return err
		}
		defer release()

		cfg, err := c.config()
		if err != nil {
			return err
		}
		id := dao.ActionID(c.self(), a, cfg.Epoch)
		p := c.loadProposal(id)
		if p.Executed {
			return fmt.Errorf("%w: proposal %s already executed", ErrInvalidState, id.Short())
		}
		switch st := proposalState(p, cfg, c.env.Timestamp); st {
		case dao.ProposalSucceeded:
		case dao.ProposalQueued:
			return &TimelockError{EligibleAt: p.QueuedAt + int64(cfg.TimelockDelay)}
		case dao.ProposalExpired:
			return fmt.Errorf("%w: proposal %s", ErrExpired, id.Short())
		default:
			return fmt.Errorf("%w: cannot execute a %s proposal", ErrInvalidState, st)
		}
		if queued, err := c.queue(p, cfg); err != nil || queued {
			return err
		}

		p.Executed = true
		c.saveProposal(p)
		out, err := c.dispatch(a)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
		}
		if err := c.resolveFutarchy(id, dao.StanceFor); err != nil {
			return err
		}
		c.emitProposalExecuted(id, a, false)
		executed, ret = true, out
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return executed, ret, nil
}

// ProposalState is the derived lifecycle state of id.
func (d *DAO) ProposalState(ctx context.Context, id dao.Hash) (dao.ProposalState, error) {
	var st dao.ProposalState
	err := d.view(ctx, func(c *call) error {
		var err error
		st, err = c.state(c.loadProposal(id))
		return err
	})
	return st, err
}

// Proposal returns the stored record of id, tallies and snapshot included.
func (d *DAO) Proposal(ctx context.Context, id dao.Hash) (*dao.Proposal, error) {
	var out *dao.Proposal
	err := d.view(ctx, func(c *call) error {
		out = c.loadProposal(id)
		return nil
	})
	return out, err
}

// Proposals lists opened proposal ids in open order.
func (d *DAO) Proposals(ctx context.Context, offset, limit int) ([]dao.Hash, error) {
	var out []dao.Hash
	err := d.view(ctx, func(c *call) error {
		out = c.hashesFromIndex(idxProposals, offset, limit)
		return nil
	})
	return out, err
}

// ProposalCount is the number of proposals ever opened.
func (d *DAO) ProposalCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := d.view(ctx, func(c *call) error {
		n = c.getCount(ProposalsCount)
		return nil
	})
	return n, err
}
