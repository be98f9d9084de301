package contract

import (
	"context"
	"fmt"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// Permits let governance pre-approve an action identity for a spender, who may
// then run it without a vote. The count is stored like the other counters.

func (c *call) permitCount(id dao.Hash, spender sdk.Address) uint64 {
	return c.getCount(permitKey(id, spender))
}

func (c *call) setPermit(a *dao.Action, spender sdk.Address, count uint64) error {
	if spender.IsZero() {
		return fmt.Errorf("%w: permit for zero address", ErrInvalidInput)
	}
	id, err := c.actionID(a)
	if err != nil {
		return err
	}
	if count == 0 {
		c.kv.del(permitKey(id, spender))
	} else {
		c.setCount(permitKey(id, spender), count)
	}
	c.emitPermit(id, spender, count, false)
	return nil
}

// SpendPermit runs a permitted action for the caller. It latches the identity
// as executed and settles any futarchy on it toward for.
func (d *DAO) SpendPermit(ctx context.Context, a *dao.Action) ([]byte, error) {
	var ret []byte
	err := d.run(ctx, "spend_permit", func(c *call) error {
		release, err := c.nonReentrant()
		if err != nil {
			return err
		}
		defer release()

		id, err := c.actionID(a)
		if err != nil {
			return err
		}
		spender := c.caller()
		left := c.permitCount(id, spender)
		if left == 0 {
			return fmt.Errorf("%w: %s holds no permit for %s", ErrUnauthorized, spender, id.Short())
		}
		if left == 1 {
			c.kv.del(permitKey(id, spender))
		} else {
			c.setCount(permitKey(id, spender), left-1)
		}
		p := c.loadProposal(id)
		if !p.Executed {
			p.Executed = true
			c.saveProposal(p)
		}
		out, err := c.dispatch(a)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
		}
		if err := c.resolveFutarchy(id, dao.StanceFor); err != nil {
			return err
		}
		c.emitPermit(id, spender, left-1, true)
		c.emitProposalExecuted(id, a, true)
		ret = out
		return nil
	})
	return ret, err
}

// Permit is the number of uses spender has left on id.
func (d *DAO) Permit(ctx context.Context, id dao.Hash, spender sdk.Address) (uint64, error) {
	var n uint64
	err := d.view(ctx, func(c *call) error {
		n = c.permitCount(id, spender)
		return nil
	})
	return n, err
}
