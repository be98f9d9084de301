package contract

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/sdk"
)

// getAllowance retrieves how much of asset spender may still take from the treasury.
func (c *call) getAllowance(spender sdk.Address, asset sdk.Asset) *uint256.Int {
	return c.getU256(allowanceKey(spender, asset))
}

// setAllowance overwrites the cap. Zero removes it.
func (c *call) setAllowance(spender sdk.Address, asset sdk.Asset, amount *uint256.Int) error {
	if spender.IsZero() {
		return fmt.Errorf("%w: allowance for zero address", ErrInvalidInput)
	}
	if asset == "" || len(asset) > 255 {
		return fmt.Errorf("%w: asset name %q", ErrInvalidInput, asset)
	}
	c.setU256(allowanceKey(spender, asset), amount)
	c.emitAllowance(spender, asset, amount, false)
	return nil
}

// removeAllowance draws amount down from the cap. It fails without touching
// the cap when it does not cover amount.
func (c *call) removeAllowance(spender sdk.Address, asset sdk.Asset, amount *uint256.Int) error {
	current := c.getAllowance(spender, asset)
	if current.Lt(amount) {
		return fmt.Errorf("%w: %s may take %s %s, asked %s", ErrUnauthorized, spender, current.Dec(), asset, amount.Dec())
	}
	c.setU256(allowanceKey(spender, asset), new(uint256.Int).Sub(current, amount))
	return nil
}

// SpendAllowance pays amount of asset from the treasury to the caller within
// the cap governance granted them.
func (d *DAO) SpendAllowance(ctx context.Context, asset sdk.Asset, amount *uint256.Int) error {
	return d.run(ctx, "spend_allowance", func(c *call) error {
		release, err := c.nonReentrant()
		if err != nil {
			return err
		}
		defer release()

		if err := positive(amount); err != nil {
			return err
		}
		spender := c.caller()
		if err := c.removeAllowance(spender, asset, amount); err != nil {
			return err
		}
		if d.host == nil {
			return fmt.Errorf("%w: no host to pay %s", ErrExecutionFailed, asset)
		}
		if err := d.host.Transfer(c.ctx, asset, c.self(), spender, amount); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
		}
		c.emitAllowance(spender, asset, amount, true)
		return nil
	})
}

// Allowance is what spender may still take of asset.
func (d *DAO) Allowance(ctx context.Context, spender sdk.Address, asset sdk.Asset) (*uint256.Int, error) {
	var out *uint256.Int
	err := d.view(ctx, func(c *call) error {
		out = c.getAllowance(spender, asset)
		return nil
	})
	return out, err
}
