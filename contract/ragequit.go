package contract

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/sdk"
)

// ShareAsset and LootAsset name the DAO's own units. Ragequit refuses them
// so members cannot claim the treasury's stake in itself.
func ShareAsset(self sdk.Address) sdk.Asset { return sdk.Asset(self.String() + "/shares") }
func LootAsset(self sdk.Address) sdk.Asset  { return sdk.Asset(self.String() + "/loot") }

// checkAssets wants a strictly ascending list, which also rules out duplicates.
func (c *call) checkAssets(assets []sdk.Asset) error {
	if len(assets) == 0 {
		return fmt.Errorf("%w: no assets", ErrInvalidInput)
	}
	own, loot := ShareAsset(c.self()), LootAsset(c.self())
	for i, a := range assets {
		if a == "" || a == own || a == loot {
			return fmt.Errorf("%w: cannot ragequit into %q", ErrInvalidInput, a)
		}
		if i > 0 && assets[i-1] >= a {
			return fmt.Errorf("%w: assets must be strictly ascending (%s, %s)", ErrInvalidInput, assets[i-1], a)
		}
	}
	return nil
}

// Ragequit burns shares and loot of the caller and pays out its pro-rata part
// of every listed treasury asset, measured against supply before the burn.
func (d *DAO) Ragequit(ctx context.Context, assets []sdk.Asset, shares, loot *uint256.Int) ([]uint256.Int, error) {
	var paid []uint256.Int
	err := d.run(ctx, "ragequit", func(c *call) error {
		release, err := c.nonReentrant()
		if err != nil {
			return err
		}
		defer release()

		cfg, err := c.config()
		if err != nil {
			return err
		}
		if !cfg.Ragequittable {
			return fmt.Errorf("%w: ragequit disabled", ErrInvalidState)
		}
		if shares == nil {
			shares = new(uint256.Int)
		}
		if loot == nil {
			loot = new(uint256.Int)
		}
		burn := new(uint256.Int).Add(shares, loot)
		if burn.IsZero() {
			return fmt.Errorf("%w: nothing to burn", ErrInvalidInput)
		}
		if err := c.checkAssets(assets); err != nil {
			return err
		}
		if d.host == nil {
			return fmt.Errorf("%w: no host to pay out", ErrExecutionFailed)
		}
		total := new(uint256.Int).Add(c.shareSupply(), c.lootSupply())
		member := c.caller()
		if !shares.IsZero() {
			if err := c.burnShares(member, shares); err != nil {
				return err
			}
		}
		if !loot.IsZero() {
			if err := c.burnLoot(member, loot); err != nil {
				return err
			}
		}
		// every due is priced before the first transfer
		paid = make([]uint256.Int, len(assets))
		for i, asset := range assets {
			held, err := d.host.Balance(c.ctx, asset, c.self())
			if err != nil {
				return fmt.Errorf("%w: balance of %s: %w", ErrExecutionFailed, asset, err)
			}
			due, _ := new(uint256.Int).MulDivOverflow(held, burn, total)
			paid[i].Set(due)
		}
		for i, asset := range assets {
			if paid[i].IsZero() {
				continue
			}
			if err := d.host.Transfer(c.ctx, asset, c.self(), member, &paid[i]); err != nil {
				return fmt.Errorf("%w: pay %s: %w", ErrExecutionFailed, asset, err)
			}
		}
		c.emitRagequit(shares, loot, assets, paid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}
