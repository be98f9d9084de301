package contract

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// -----------------------------------------------------------------------------
// Voting
// -----------------------------------------------------------------------------

func (c *call) loadBallot(id dao.Hash, voter sdk.Address) *dao.Ballot {
	ptr := c.kv.get(ballotKey(id, voter))
	if ptr == nil {
		return nil
	}
	b, err := dao.DecodeBallot([]byte(*ptr))
	if err != nil {
		c.fail(err)
		return nil
	}
	return b
}

// castVote opens id if needed, then adds the caller's snapshot weight to the
// stance bucket and mints the matching receipts.
func (c *call) castVote(id dao.Hash, stance dao.Stance) (*uint256.Int, error) {
	if !stance.Valid() {
		return nil, fmt.Errorf("%w: stance %d", ErrInvalidInput, stance)
	}
	p, err := c.openProposal(id)
	if err != nil {
		return nil, err
	}
	if p.Executed {
		return nil, fmt.Errorf("%w: proposal %s already executed", ErrInvalidState, id.Short())
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if cfg.ProposalTTL > 0 && c.env.Timestamp >= p.CreatedAt+int64(cfg.ProposalTTL) {
		return nil, fmt.Errorf("%w: voting on %s closed", ErrExpired, id.Short())
	}
	if f := c.loadFutarchy(id); f.Resolved {
		return nil, fmt.Errorf("%w: futarchy on %s already resolved", ErrInvalidState, id.Short())
	}
	voter := c.caller()
	if c.loadBallot(id, voter) != nil {
		return nil, fmt.Errorf("%w: %s already voted", ErrInvalidState, voter)
	}
	weight, err := c.pastVotes(voter, p.Snapshot)
	if err != nil {
		return nil, err
	}
	if weight.IsZero() {
		return nil, fmt.Errorf("%w: %s had no votes at block %d", ErrUnauthorized, voter, p.Snapshot)
	}
	bucket := p.Tally.Bucket(stance)
	sum, overflow := new(uint256.Int).AddOverflow(bucket, weight)
	if overflow || sum.Gt(dao.MaxTally) {
		return nil, fmt.Errorf("%w: %s tally", ErrOverflow, stance)
	}
	bucket.Set(sum)
	c.saveProposal(p)
	b := &dao.Ballot{Stance: stance}
	b.Weight.Set(weight)
	c.kv.set(ballotKey(id, voter), string(dao.EncodeBallot(b)))
	c.mintReceipt(id, stance, voter, weight)
	c.incCount(VotesCount)
	c.emitVote(id, voter, stance, weight, false)
	c.onCommit(c.d.metrics.voteCast)
	return weight, nil
}

func (c *call) cancelVote(id dao.Hash) error {
	p := c.loadProposal(id)
	st, err := c.state(p)
	if err != nil {
		return err
	}
	if st != dao.ProposalActive {
		return fmt.Errorf("%w: cannot cancel a vote on a %s proposal", ErrInvalidState, st)
	}
	if f := c.loadFutarchy(id); f.Resolved {
		return fmt.Errorf("%w: futarchy on %s already resolved", ErrInvalidState, id.Short())
	}
	voter := c.caller()
	b := c.loadBallot(id, voter)
	if b == nil {
		return fmt.Errorf("%w: %s has not voted", ErrInvalidState, voter)
	}
	if err := c.burnReceipt(dao.ReceiptID(id, b.Stance), voter, &b.Weight); err != nil {
		return err
	}
	bucket := p.Tally.Bucket(b.Stance)
	bucket.Sub(bucket, &b.Weight)
	c.saveProposal(p)
	c.kv.del(ballotKey(id, voter))
	c.emitVote(id, voter, b.Stance, &b.Weight, true)
	return nil
}

// CastVote records the caller's stance on id with their weight at the
// proposal snapshot. It returns that weight.
func (d *DAO) CastVote(ctx context.Context, id dao.Hash, stance dao.Stance) (*uint256.Int, error) {
	var weight *uint256.Int
	err := d.run(ctx, "vote", func(c *call) error {
		var err error
		weight, err = c.castVote(id, stance)
		return err
	})
	return weight, err
}

// CancelVote withdraws the caller's vote while the proposal is still active.
// The receipts minted for it must still be held.
func (d *DAO) CancelVote(ctx context.Context, id dao.Hash) error {
	return d.run(ctx, "cancel_vote", func(c *call) error {
		return c.cancelVote(id)
	})
}

// Ballot is voter's marker on id, nil when they have not voted.
func (d *DAO) Ballot(ctx context.Context, id dao.Hash, voter sdk.Address) (*dao.Ballot, error) {
	var out *dao.Ballot
	err := d.view(ctx, func(c *call) error {
		out = c.loadBallot(id, voter)
		return nil
	})
	return out, err
}
