package contract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// history is one checkpoint sequence: a delegate's weight or the total supply.
type history struct {
	countKey string
	at       func(idx uint64) string
}

func delegateHistory(delegate sdk.Address) history {
	return history{
		countKey: checkpointCountKey(delegate),
		at:       func(idx uint64) string { return checkpointKey(delegate, idx) },
	}
}

func supplyHistory() history {
	return history{countKey: supplyCheckpointCountKey(), at: supplyCheckpointKey}
}

func (c *call) historyLen(h history) uint64 {
	ptr := c.kv.get(h.countKey)
	if ptr == nil || *ptr == "" {
		return 0
	}
	n, err := strconv.ParseUint(*ptr, 10, 64)
	if err != nil {
		c.fail(fmt.Errorf("%w: checkpoint count: %v", dao.ErrCorrupt, err))
	}
	return n
}

// loadCheckpoint returns the entry at idx, or a zero entry when it is missing.
func (c *call) loadCheckpoint(h history, idx uint64) *dao.Checkpoint {
	ptr := c.kv.get(h.at(idx))
	if ptr == nil {
		return &dao.Checkpoint{}
	}
	cp, err := dao.DecodeCheckpoint([]byte(*ptr))
	if err != nil {
		c.fail(err)
		return &dao.Checkpoint{}
	}
	return cp
}

// latest is the most recent value of the sequence, zero when empty.
func (c *call) latest(h history) *uint256.Int {
	n := c.historyLen(h)
	if n == 0 {
		return new(uint256.Int)
	}
	return &c.loadCheckpoint(h, n-1).Votes
}

// writeCheckpoint records value at the current block. Equal values are a
// no-op, a second write in the same block overwrites, anything else appends.
func (c *call) writeCheckpoint(h history, value *uint256.Int) {
	height := c.env.BlockHeight
	n := c.historyLen(h)
	if n == 0 {
		if value.IsZero() {
			return
		}
	} else {
		last := c.loadCheckpoint(h, n-1)
		if last.Votes.Eq(value) {
			return
		}
		if last.Height == height {
			last.Votes.Set(value)
			c.kv.set(h.at(n-1), string(dao.EncodeCheckpoint(last)))
			return
		}
	}
	cp := &dao.Checkpoint{Height: height}
	cp.Votes.Set(value)
	c.kv.set(h.at(n), string(dao.EncodeCheckpoint(cp)))
	c.kv.set(h.countKey, strconv.FormatUint(n+1, 10))
}

// pastValue binary searches for the latest entry at or before height. Only
// strictly historical heights are answered.
func (c *call) pastValue(h history, height uint64) (*uint256.Int, error) {
	if height >= c.env.BlockHeight {
		return nil, fmt.Errorf("%w: %d is not before current block %d", ErrBadOrdinal, height, c.env.BlockHeight)
	}
	lo, hi := uint64(0), c.historyLen(h)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if c.loadCheckpoint(h, mid).Height > height {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == 0 {
		return new(uint256.Int), nil
	}
	return &c.loadCheckpoint(h, lo-1).Votes, nil
}

func (c *call) writeSupplyCheckpoint(supply *uint256.Int) {
	c.writeCheckpoint(supplyHistory(), supply)
}

func (c *call) votesOf(delegate sdk.Address) *uint256.Int {
	return c.latest(delegateHistory(delegate))
}

func (c *call) pastVotes(delegate sdk.Address, height uint64) (*uint256.Int, error) {
	return c.pastValue(delegateHistory(delegate), height)
}

func (c *call) pastTotalSupply(height uint64) (*uint256.Int, error) {
	return c.pastValue(supplyHistory(), height)
}

// adjustVotes moves a delegate's weight by delta in the given direction.
func (c *call) adjustVotes(delegate sdk.Address, delta *uint256.Int, increase bool) error {
	if delta.IsZero() {
		return nil
	}
	cur := c.votesOf(delegate)
	next := new(uint256.Int)
	if increase {
		var overflow bool
		if next, overflow = next.AddOverflow(cur, delta); overflow || next.Gt(dao.MaxTally) {
			return fmt.Errorf("%w: votes of %s", ErrOverflow, delegate)
		}
	} else {
		if cur.Lt(delta) {
			return fmt.Errorf("%w: votes of %s below zero", ErrInvalidState, delegate)
		}
		next.Sub(cur, delta)
	}
	c.writeCheckpoint(delegateHistory(delegate), next)
	return nil
}

// CheckpointCount is the number of weight checkpoints recorded for delegate.
func (d *DAO) CheckpointCount(ctx context.Context, delegate sdk.Address) (uint64, error) {
	var n uint64
	err := d.view(ctx, func(c *call) error {
		n = c.historyLen(delegateHistory(delegate))
		return nil
	})
	return n, err
}

// Checkpoint returns the idx-th weight checkpoint of delegate.
func (d *DAO) Checkpoint(ctx context.Context, delegate sdk.Address, idx uint64) (*dao.Checkpoint, error) {
	var out *dao.Checkpoint
	err := d.view(ctx, func(c *call) error {
		if idx >= c.historyLen(delegateHistory(delegate)) {
			return fmt.Errorf("%w: checkpoint %d out of range", ErrInvalidInput, idx)
		}
		out = c.loadCheckpoint(delegateHistory(delegate), idx)
		return nil
	})
	return out, err
}

// GetVotes is the current voting weight delegated to a.
func (d *DAO) GetVotes(ctx context.Context, a sdk.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := d.view(ctx, func(c *call) error {
		out = c.votesOf(a)
		return nil
	})
	return out, err
}

// GetPastVotes is the weight delegated to a as of height, which must lie
// strictly before the block in ctx.
func (d *DAO) GetPastVotes(ctx context.Context, a sdk.Address, height uint64) (*uint256.Int, error) {
	var out *uint256.Int
	err := d.view(ctx, func(c *call) error {
		var err error
		out, err = c.pastVotes(a, height)
		return err
	})
	return out, err
}

// GetPastTotalSupply is the share supply as of height.
func (d *DAO) GetPastTotalSupply(ctx context.Context, height uint64) (*uint256.Int, error) {
	var out *uint256.Int
	err := d.view(ctx, func(c *call) error {
		var err error
		out, err = c.pastTotalSupply(height)
		return err
	})
	return out, err
}
