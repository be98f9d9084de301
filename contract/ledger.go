package contract

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// fail records a corrupt record on the frame. The call fails at commit.
func (c *call) fail(err error) {
	if c.kv.err == nil && err != nil {
		c.kv.err = err
	}
}

// getU256 reads an amount, missing keys are zero.
func (c *call) getU256(key string) *uint256.Int {
	v := new(uint256.Int)
	if ptr := c.kv.get(key); ptr != nil {
		if len(*ptr) > 32 {
			c.fail(fmt.Errorf("%w: amount under %x", dao.ErrCorrupt, key))
			return v
		}
		v.SetBytes([]byte(*ptr))
	}
	return v
}

// setU256 deletes zero amounts so empty accounts leave no trace.
func (c *call) setU256(key string, v *uint256.Int) {
	if v.IsZero() {
		c.kv.del(key)
		return
	}
	c.kv.set(key, string(v.Bytes()))
}

func positive(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: zero amount", ErrInvalidInput)
	}
	return nil
}

func (c *call) sharesOf(a sdk.Address) *uint256.Int { return c.getU256(sharesKey(a)) }
func (c *call) lootOf(a sdk.Address) *uint256.Int   { return c.getU256(lootKey(a)) }
func (c *call) shareSupply() *uint256.Int           { return c.getU256(shareSupplyKey()) }
func (c *call) lootSupply() *uint256.Int            { return c.getU256(lootSupplyKey()) }

// mintShares creates voting shares. Supply is bounded to 96 bits so every tally,
// checkpoint and allocation derived from it fits a bucket.
func (c *call) mintShares(to sdk.Address, amount *uint256.Int) error {
	if to.IsZero() {
		return fmt.Errorf("%w: mint to zero address", ErrInvalidInput)
	}
	if err := positive(amount); err != nil {
		return err
	}
	supply, overflow := new(uint256.Int).AddOverflow(c.shareSupply(), amount)
	if overflow || supply.Gt(dao.MaxTally) {
		return fmt.Errorf("%w: share supply", ErrOverflow)
	}
	old := c.sharesOf(to)
	bal := new(uint256.Int).Add(old, amount)
	c.setU256(sharesKey(to), bal)
	c.setU256(shareSupplyKey(), supply)
	c.writeSupplyCheckpoint(supply)
	if err := c.moveVotingPower(to, old, bal); err != nil {
		return err
	}
	c.updateSeat(to, bal)
	c.emitTransfer(sdk.ZeroAddress, to, amount, false)
	c.onCommit(func() { c.d.metrics.setShareSupply(supply) })
	return nil
}

func (c *call) burnShares(from sdk.Address, amount *uint256.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	old := c.sharesOf(from)
	if old.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s shares, burning %s", ErrInsufficientBalance, from, old.Dec(), amount.Dec())
	}
	bal := new(uint256.Int).Sub(old, amount)
	supply := new(uint256.Int).Sub(c.shareSupply(), amount)
	c.setU256(sharesKey(from), bal)
	c.setU256(shareSupplyKey(), supply)
	c.writeSupplyCheckpoint(supply)
	if err := c.moveVotingPower(from, old, bal); err != nil {
		return err
	}
	c.updateSeat(from, bal)
	c.emitTransfer(from, sdk.ZeroAddress, amount, false)
	c.onCommit(func() { c.d.metrics.setShareSupply(supply) })
	return nil
}

// moveShares is the unchecked transfer used by transfers, sales and treasury payouts.
func (c *call) moveShares(from, to sdk.Address, amount *uint256.Int) error {
	if to.IsZero() {
		return fmt.Errorf("%w: transfer to zero address", ErrInvalidInput)
	}
	if err := positive(amount); err != nil {
		return err
	}
	oldFrom := c.sharesOf(from)
	if oldFrom.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s shares, moving %s", ErrInsufficientBalance, from, oldFrom.Dec(), amount.Dec())
	}
	if from != to {
		newFrom := new(uint256.Int).Sub(oldFrom, amount)
		c.setU256(sharesKey(from), newFrom)
		oldTo := c.sharesOf(to)
		newTo := new(uint256.Int).Add(oldTo, amount)
		c.setU256(sharesKey(to), newTo)
		if err := c.moveVotingPower(from, oldFrom, newFrom); err != nil {
			return err
		}
		if err := c.moveVotingPower(to, oldTo, newTo); err != nil {
			return err
		}
		c.updateSeat(from, newFrom)
		c.updateSeat(to, newTo)
	}
	c.emitTransfer(from, to, amount, false)
	return nil
}

func (c *call) mintLoot(to sdk.Address, amount *uint256.Int) error {
	if to.IsZero() {
		return fmt.Errorf("%w: mint to zero address", ErrInvalidInput)
	}
	if err := positive(amount); err != nil {
		return err
	}
	supply, overflow := new(uint256.Int).AddOverflow(c.lootSupply(), amount)
	if overflow || supply.Gt(dao.MaxTally) {
		return fmt.Errorf("%w: loot supply", ErrOverflow)
	}
	c.setU256(lootKey(to), new(uint256.Int).Add(c.lootOf(to), amount))
	c.setU256(lootSupplyKey(), supply)
	c.emitTransfer(sdk.ZeroAddress, to, amount, true)
	c.onCommit(func() { c.d.metrics.setLootSupply(supply) })
	return nil
}

func (c *call) burnLoot(from sdk.Address, amount *uint256.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	old := c.lootOf(from)
	if old.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s loot, burning %s", ErrInsufficientBalance, from, old.Dec(), amount.Dec())
	}
	supply := new(uint256.Int).Sub(c.lootSupply(), amount)
	c.setU256(lootKey(from), new(uint256.Int).Sub(old, amount))
	c.setU256(lootSupplyKey(), supply)
	c.emitTransfer(from, sdk.ZeroAddress, amount, true)
	c.onCommit(func() { c.d.metrics.setLootSupply(supply) })
	return nil
}

func (c *call) moveLoot(from, to sdk.Address, amount *uint256.Int) error {
	if to.IsZero() {
		return fmt.Errorf("%w: transfer to zero address", ErrInvalidInput)
	}
	if err := positive(amount); err != nil {
		return err
	}
	old := c.lootOf(from)
	if old.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s loot, moving %s", ErrInsufficientBalance, from, old.Dec(), amount.Dec())
	}
	if from != to {
		c.setU256(lootKey(from), new(uint256.Int).Sub(old, amount))
		c.setU256(lootKey(to), new(uint256.Int).Add(c.lootOf(to), amount))
	}
	c.emitTransfer(from, to, amount, true)
	return nil
}

// checkTransferLock rejects member to member transfers while locked. Moves
// in or out of the treasury stay open.
func (c *call) checkTransferLock(from, to sdk.Address) error {
	if from == c.self() || to == c.self() {
		return nil
	}
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if cfg.TransfersLocked {
		return fmt.Errorf("%w: transfers are locked", ErrUnauthorized)
	}
	return nil
}

// ------------------------------------------------------------------
// Entry points
// ------------------------------------------------------------------

// MintShares creates shares for to. Only the DAO may mint.
func (d *DAO) MintShares(ctx context.Context, to sdk.Address, amount *uint256.Int) error {
	return d.run(ctx, "mint_shares", func(c *call) error {
		if err := c.onlySelf(); err != nil {
			return err
		}
		return c.mintShares(to, amount)
	})
}

// BurnShares destroys shares held by from. Only the DAO may burn.
func (d *DAO) BurnShares(ctx context.Context, from sdk.Address, amount *uint256.Int) error {
	return d.run(ctx, "burn_shares", func(c *call) error {
		if err := c.onlySelf(); err != nil {
			return err
		}
		return c.burnShares(from, amount)
	})
}

// TransferShares moves shares from the caller to to, carrying their voting weight along.
func (d *DAO) TransferShares(ctx context.Context, to sdk.Address, amount *uint256.Int) error {
	return d.run(ctx, "transfer_shares", func(c *call) error {
		if err := c.checkTransferLock(c.caller(), to); err != nil {
			return err
		}
		return c.moveShares(c.caller(), to, amount)
	})
}

// TransferLoot moves loot from the caller to to.
func (d *DAO) TransferLoot(ctx context.Context, to sdk.Address, amount *uint256.Int) error {
	return d.run(ctx, "transfer_loot", func(c *call) error {
		if err := c.checkTransferLock(c.caller(), to); err != nil {
			return err
		}
		return c.moveLoot(c.caller(), to, amount)
	})
}

// BalanceOf is the share balance of a.
func (d *DAO) BalanceOf(ctx context.Context, a sdk.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := d.view(ctx, func(c *call) error {
		out = c.sharesOf(a)
		return nil
	})
	return out, err
}

// LootOf is the loot balance of a.
func (d *DAO) LootOf(ctx context.Context, a sdk.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := d.view(ctx, func(c *call) error {
		out = c.lootOf(a)
		return nil
	})
	return out, err
}

// TotalSupply is the live share supply.
func (d *DAO) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	var out *uint256.Int
	err := d.view(ctx, func(c *call) error {
		out = c.shareSupply()
		return nil
	})
	return out, err
}

// LootSupply is the live loot supply.
func (d *DAO) LootSupply(ctx context.Context) (*uint256.Int, error) {
	var out *uint256.Int
	err := d.view(ctx, func(c *call) error {
		out = c.lootSupply()
		return nil
	})
	return out, err
}
