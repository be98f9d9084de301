package contract

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// A sale is keyed by the asset it takes in payment. A zero cap is unlimited.

func (c *call) loadSale(asset sdk.Asset) *dao.Sale {
	ptr := c.kv.get(saleKey(asset))
	if ptr == nil {
		return &dao.Sale{PayAsset: asset}
	}
	s, err := dao.DecodeSale([]byte(*ptr))
	if err != nil {
		c.fail(err)
		return &dao.Sale{PayAsset: asset}
	}
	return s
}

func (c *call) saveSale(s *dao.Sale) {
	if !s.Active {
		c.kv.del(saleKey(s.PayAsset))
		return
	}
	c.kv.set(saleKey(s.PayAsset), string(dao.EncodeSale(s)))
}

func (c *call) setSale(s *dao.Sale) error {
	if s.PayAsset == "" || len(s.PayAsset) > 255 {
		return fmt.Errorf("%w: pay asset %q", ErrInvalidInput, s.PayAsset)
	}
	c.saveSale(s)
	c.emitSale(s)
	return nil
}

// BuyShares buys amount shares (or loot) at the sale price for asset. The
// call fails when the cost exceeds maxPay, unless maxPay is zero.
func (d *DAO) BuyShares(ctx context.Context, asset sdk.Asset, amount, maxPay *uint256.Int) (*uint256.Int, error) {
	var cost *uint256.Int
	err := d.run(ctx, "buy_shares", func(c *call) error {
		release, err := c.nonReentrant()
		if err != nil {
			return err
		}
		defer release()

		if err := positive(amount); err != nil {
			return err
		}
		s := c.loadSale(asset)
		if !s.Active {
			return fmt.Errorf("%w: nothing for sale against %s", ErrInvalidState, asset)
		}
		if !s.Cap.IsZero() {
			if amount.Gt(&s.Cap) {
				return fmt.Errorf("%w: %s left for sale", ErrInvalidInput, s.Cap.Dec())
			}
			s.Cap.Sub(&s.Cap, amount)
			if s.Cap.IsZero() {
				s.Active = false
			}
		}
		price, overflow := new(uint256.Int).MulOverflow(amount, &s.Price)
		if overflow {
			return fmt.Errorf("%w: sale cost", ErrOverflow)
		}
		if maxPay != nil && !maxPay.IsZero() && price.Gt(maxPay) {
			return fmt.Errorf("%w: costs %s, max %s", ErrInvalidInput, price.Dec(), maxPay.Dec())
		}
		c.saveSale(s)
		buyer := c.caller()
		switch {
		case s.Minting && s.Loot:
			err = c.mintLoot(buyer, amount)
		case s.Minting:
			err = c.mintShares(buyer, amount)
		case s.Loot:
			err = c.moveLoot(c.self(), buyer, amount)
		default:
			err = c.moveShares(c.self(), buyer, amount)
		}
		if err != nil {
			return err
		}
		if !price.IsZero() {
			if d.host == nil {
				return fmt.Errorf("%w: no host to take payment", ErrExecutionFailed)
			}
			if err := d.host.Pull(c.ctx, asset, buyer, c.self(), price); err != nil {
				return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
			}
		}
		c.emitSharesBought(asset, amount, price, s.Loot)
		cost = price
		return nil
	})
	return cost, err
}

// Sale returns the standing offer against asset, inactive if there is none.
func (d *DAO) Sale(ctx context.Context, asset sdk.Asset) (*dao.Sale, error) {
	var out *dao.Sale
	err := d.view(ctx, func(c *call) error {
		out = c.loadSale(asset)
		return nil
	})
	return out, err
}
