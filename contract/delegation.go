package contract

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// delegateOf is the explicit single delegate of a, or a itself.
func (c *call) delegateOf(a sdk.Address) sdk.Address {
	if ptr := c.kv.get(delegateKey(a)); ptr != nil {
		return sdk.Address(*ptr)
	}
	return a
}

func (c *call) splitsOf(a sdk.Address) []dao.Split {
	ptr := c.kv.get(splitsKey(a))
	if ptr == nil {
		return nil
	}
	splits, err := dao.DecodeSplits([]byte(*ptr))
	if err != nil {
		c.fail(err)
		return nil
	}
	return splits
}

// distribution is the active delegation of a: its split, or 100% to its single delegate.
func (c *call) distribution(a sdk.Address) []dao.Split {
	if splits := c.splitsOf(a); len(splits) > 0 {
		return splits
	}
	return []dao.Split{{Delegate: c.delegateOf(a), Bps: dao.BpsDenominator}}
}

// allocate splits bal across dist. Every member but the last gets
// floor(bal*bps/10000), the last takes the remainder so nothing is lost.
func allocate(dist []dao.Split, bal *uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(dist))
	rest := bal.Clone()
	den := uint256.NewInt(dao.BpsDenominator)
	for i, s := range dist {
		if i == len(dist)-1 {
			out[i] = rest
			break
		}
		share, _ := new(uint256.Int).MulDivOverflow(bal, uint256.NewInt(uint64(s.Bps)), den)
		out[i] = share
		rest.Sub(rest, share)
	}
	return out
}

// rebalance moves only the signed difference between the old and the new
// allocation of one account, over the union of both delegate sets. Decreases
// go first so no delegate passes through a transient overflow.
func (c *call) rebalance(oldDist []dao.Split, oldBal *uint256.Int, newDist []dao.Split, newBal *uint256.Int) error {
	order := make([]sdk.Address, 0, len(oldDist)+len(newDist))
	before := make(map[sdk.Address]*uint256.Int)
	after := make(map[sdk.Address]*uint256.Int)
	for i, amt := range allocate(oldDist, oldBal) {
		d := oldDist[i].Delegate
		if _, ok := before[d]; !ok {
			before[d] = new(uint256.Int)
			if _, seen := after[d]; !seen {
				order = append(order, d)
			}
		}
		before[d].Add(before[d], amt)
	}
	for i, amt := range allocate(newDist, newBal) {
		d := newDist[i].Delegate
		if _, ok := after[d]; !ok {
			after[d] = new(uint256.Int)
			if _, seen := before[d]; !seen {
				order = append(order, d)
			}
		}
		after[d].Add(after[d], amt)
	}
	zero := new(uint256.Int)
	amountOr := func(m map[sdk.Address]*uint256.Int, d sdk.Address) *uint256.Int {
		if v, ok := m[d]; ok {
			return v
		}
		return zero
	}
	for _, d := range order {
		b, a := amountOr(before, d), amountOr(after, d)
		if b.Gt(a) {
			if err := c.adjustVotes(d, new(uint256.Int).Sub(b, a), false); err != nil {
				return err
			}
		}
	}
	for _, d := range order {
		b, a := amountOr(before, d), amountOr(after, d)
		if a.Gt(b) {
			if err := c.adjustVotes(d, new(uint256.Int).Sub(a, b), true); err != nil {
				return err
			}
		}
	}
	return nil
}

// moveVotingPower follows a balance change of a under its current distribution.
func (c *call) moveVotingPower(a sdk.Address, oldBal, newBal *uint256.Int) error {
	if oldBal.Eq(newBal) {
		return nil
	}
	dist := c.distribution(a)
	return c.rebalance(dist, oldBal, dist, newBal)
}

func validateSplits(splits []dao.Split) error {
	if len(splits) == 0 || len(splits) > dao.MaxSplits {
		return fmt.Errorf("%w: %d splits, want 1..%d", ErrInvalidInput, len(splits), dao.MaxSplits)
	}
	var sum uint32
	seen := make(map[sdk.Address]struct{}, len(splits))
	for _, s := range splits {
		if s.Delegate.IsZero() {
			return fmt.Errorf("%w: zero delegate in split", ErrInvalidInput)
		}
		if s.Bps == 0 {
			return fmt.Errorf("%w: zero bps for %s", ErrInvalidInput, s.Delegate)
		}
		if _, dup := seen[s.Delegate]; dup {
			return fmt.Errorf("%w: duplicate delegate %s", ErrInvalidInput, s.Delegate)
		}
		seen[s.Delegate] = struct{}{}
		sum += uint32(s.Bps)
	}
	if sum != dao.BpsDenominator {
		return fmt.Errorf("%w: split bps sum to %d, want %d", ErrInvalidInput, sum, dao.BpsDenominator)
	}
	return nil
}

// setDelegate points all of a's weight at delegate and drops any split.
func (c *call) setDelegate(a, delegate sdk.Address) error {
	delegate = delegate.Or(a)
	oldDist := c.distribution(a)
	bal := c.sharesOf(a)
	c.kv.del(splitsKey(a))
	if delegate == a {
		c.kv.del(delegateKey(a))
	} else {
		c.kv.set(delegateKey(a), delegate.String())
	}
	newDist := []dao.Split{{Delegate: delegate, Bps: dao.BpsDenominator}}
	if err := c.rebalance(oldDist, bal, newDist, bal); err != nil {
		return err
	}
	c.emitDelegation(a, newDist)
	return nil
}

// setSplitDelegation replaces the distribution of a with splits and drops the single delegate.
func (c *call) setSplitDelegation(a sdk.Address, splits []dao.Split) error {
	if err := validateSplits(splits); err != nil {
		return err
	}
	oldDist := c.distribution(a)
	bal := c.sharesOf(a)
	c.kv.del(delegateKey(a))
	c.kv.set(splitsKey(a), string(dao.EncodeSplits(splits)))
	if err := c.rebalance(oldDist, bal, splits, bal); err != nil {
		return err
	}
	c.emitDelegation(a, splits)
	return nil
}

// clearSplitDelegation falls back to the single delegate, which is self after a split.
func (c *call) clearSplitDelegation(a sdk.Address) error {
	if len(c.splitsOf(a)) == 0 {
		return nil
	}
	return c.setDelegate(a, c.delegateOf(a))
}

// Delegate sends all of the caller's weight to delegate. The zero address means self.
func (d *DAO) Delegate(ctx context.Context, delegate sdk.Address) error {
	return d.run(ctx, "delegate", func(c *call) error {
		return c.setDelegate(c.caller(), delegate)
	})
}

// SetSplitDelegation spreads the caller's weight over up to four delegates.
func (d *DAO) SetSplitDelegation(ctx context.Context, splits []dao.Split) error {
	return d.run(ctx, "split_delegate", func(c *call) error {
		return c.setSplitDelegation(c.caller(), splits)
	})
}

// ClearSplitDelegation returns the caller to plain self delegation.
func (d *DAO) ClearSplitDelegation(ctx context.Context) error {
	return d.run(ctx, "clear_split", func(c *call) error {
		return c.clearSplitDelegation(c.caller())
	})
}

// Delegates is the active distribution of a. Without a split this is a single
// entry carrying 10000 bps.
func (d *DAO) Delegates(ctx context.Context, a sdk.Address) ([]dao.Split, error) {
	var out []dao.Split
	err := d.view(ctx, func(c *call) error {
		out = c.distribution(a)
		return nil
	})
	return out, err
}
