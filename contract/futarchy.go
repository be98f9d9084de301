package contract

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// -----------------------------------------------------------------------------
// Futarchy pools
// -----------------------------------------------------------------------------

// loadFutarchy returns the pool of id, a disabled blank one if never funded.
func (c *call) loadFutarchy(id dao.Hash) *dao.Futarchy {
	ptr := c.kv.get(futarchyKey(id))
	if ptr == nil {
		return &dao.Futarchy{}
	}
	f, err := dao.DecodeFutarchy([]byte(*ptr))
	if err != nil {
		c.fail(err)
		return &dao.Futarchy{}
	}
	return f
}

func (c *call) saveFutarchy(id dao.Hash, f *dao.Futarchy) {
	c.kv.set(futarchyKey(id), string(dao.EncodeFutarchy(f)))
}

// enable fixes the reward kind of f on first use. Once fixed, by the first
// funder or a governance preset, it never changes.
func (c *call) enable(f *dao.Futarchy, kind dao.RewardKind, cfg *dao.Config) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: reward kind %d", ErrInvalidInput, kind)
	}
	if f.Enabled {
		if f.Kind != kind {
			return fmt.Errorf("%w: pool pays %s, not %s", ErrInvalidInput, f.Kind, kind)
		}
		return nil
	}
	if cfg.RewardKindPreset && cfg.RewardKind != kind {
		return fmt.Errorf("%w: dao pays futarchy in %s, not %s", ErrInvalidInput, cfg.RewardKind, kind)
	}
	f.Enabled = true
	f.Kind = kind
	return nil
}

func addPool(f *dao.Futarchy, amount *uint256.Int) error {
	pool, overflow := new(uint256.Int).AddOverflow(&f.Pool, amount)
	if overflow {
		return fmt.Errorf("%w: futarchy pool", ErrOverflow)
	}
	f.Pool.Set(pool)
	return nil
}

// earmarkAmount derives the reserved pool size. A param up to 10000 is read
// as bps of the snapshot supply, anything above as an absolute amount.
func earmarkAmount(cfg *dao.Config, supply *uint256.Int) *uint256.Int {
	amount := new(uint256.Int)
	if cfg.AutoFutarchyParam.GtUint64(dao.BpsDenominator) {
		amount.Set(&cfg.AutoFutarchyParam)
	} else {
		amount.MulDivOverflow(&cfg.AutoFutarchyParam, supply, uint256.NewInt(dao.BpsDenominator))
	}
	if !cfg.AutoFutarchyCap.IsZero() && amount.Gt(&cfg.AutoFutarchyCap) {
		amount.Set(&cfg.AutoFutarchyCap)
	}
	return amount
}

// autoEarmark reserves a pool for a freshly opened proposal. Nothing moves,
// the pool is paid from the treasury at cash out.
func (c *call) autoEarmark(p *dao.Proposal, cfg *dao.Config) error {
	if cfg.AutoFutarchyParam.IsZero() {
		return nil
	}
	f := c.loadFutarchy(p.ID)
	if f.Resolved || (f.Enabled && f.Kind != cfg.RewardKind) {
		return nil
	}
	amount := earmarkAmount(cfg, &p.SupplyAtSnapshot)
	if cfg.RewardKind == dao.RewardTreasuryShares {
		if held := c.sharesOf(c.self()); amount.Gt(held) {
			amount = held
		}
	}
	if amount.IsZero() {
		return nil
	}
	if err := c.enable(f, cfg.RewardKind, cfg); err != nil {
		return err
	}
	if err := addPool(f, amount); err != nil {
		return err
	}
	c.saveFutarchy(p.ID, f)
	c.emitFutarchyFunded(p.ID, f.Kind, amount, &f.Pool)
	return nil
}

// resolveFutarchy settles the pool of id once. Disabled or settled pools are
// left alone.
func (c *call) resolveFutarchy(id dao.Hash, winner dao.Stance) error {
	f := c.loadFutarchy(id)
	if !f.Enabled || f.Resolved {
		return nil
	}
	supply := c.receiptSupply(dao.ReceiptID(id, winner))
	f.Resolved = true
	f.Winner = winner
	f.WinningSupply.Set(supply)
	if supply.IsZero() {
		f.PayoutPerUnit.Clear()
	} else {
		f.PayoutPerUnit.Div(&f.Pool, supply)
	}
	c.saveFutarchy(id, f)
	c.emitFutarchyResolved(id, f)
	return nil
}

// payout sends amount of the reward kind from the treasury to to.
func (c *call) payout(kind dao.RewardKind, to sdk.Address, amount *uint256.Int) error {
	switch kind {
	case dao.RewardNative:
		if c.d.host == nil {
			return fmt.Errorf("%w: no host for native payouts", ErrExecutionFailed)
		}
		return c.d.host.Transfer(c.ctx, sdk.AssetNative, c.self(), to, amount)
	case dao.RewardMintedShares:
		return c.mintShares(to, amount)
	case dao.RewardTreasuryShares:
		return c.moveShares(c.self(), to, amount)
	default:
		return fmt.Errorf("%w: reward kind %d", ErrInvalidInput, kind)
	}
}

// -----------------------------------------------------------------------------
// Entry points
// -----------------------------------------------------------------------------

// fundFutarchy adds amount to the pool of id. Callers hold the guard.
func (c *call) fundFutarchy(id dao.Hash, kind dao.RewardKind, amount *uint256.Int) error {
	if err := positive(amount); err != nil {
		return err
	}
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if p := c.loadProposal(id); p.Executed {
		return fmt.Errorf("%w: proposal %s is closed", ErrInvalidState, id.Short())
	}
	f := c.loadFutarchy(id)
	if f.Resolved {
		return fmt.Errorf("%w: futarchy on %s already resolved", ErrInvalidState, id.Short())
	}
	if err := c.enable(f, kind, cfg); err != nil {
		return err
	}
	if err := addPool(f, amount); err != nil {
		return err
	}
	switch kind {
	case dao.RewardNative:
		if c.d.host == nil {
			return fmt.Errorf("%w: no host to pull funds", ErrExecutionFailed)
		}
		if err := c.d.host.Pull(c.ctx, sdk.AssetNative, c.caller(), c.self(), amount); err != nil {
			return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
		}
	case dao.RewardMintedShares:
		if err := c.onlySelf(); err != nil {
			return err
		}
	case dao.RewardTreasuryShares:
		if c.caller() != c.self() {
			if err := c.moveShares(c.caller(), c.self(), amount); err != nil {
				return err
			}
		}
	}
	c.saveFutarchy(id, f)
	c.emitFutarchyFunded(id, kind, amount, &f.Pool)
	return nil
}

// FundFutarchy adds amount to the pool of id. Native funds are pulled from the
// caller, treasury shares are moved from the caller to the DAO. Minted shares
// are a promise only the DAO itself can make, through a governance self-call.
func (d *DAO) FundFutarchy(ctx context.Context, id dao.Hash, kind dao.RewardKind, amount *uint256.Int) error {
	return d.run(ctx, "fund", func(c *call) error {
		release, err := c.nonReentrant()
		if err != nil {
			return err
		}
		defer release()
		return c.fundFutarchy(id, kind, amount)
	})
}

// ResolveFutarchy settles the pool of a proposal that can no longer pass.
// Against wins.
func (d *DAO) ResolveFutarchy(ctx context.Context, id dao.Hash) error {
	return d.run(ctx, "resolve", func(c *call) error {
		f := c.loadFutarchy(id)
		if !f.Enabled || f.Resolved {
			return fmt.Errorf("%w: no open futarchy on %s", ErrInvalidState, id.Short())
		}
		st, err := c.state(c.loadProposal(id))
		if err != nil {
			return err
		}
		if st != dao.ProposalDefeated && st != dao.ProposalExpired {
			return fmt.Errorf("%w: cannot resolve against a %s proposal", ErrInvalidState, st)
		}
		return c.resolveFutarchy(id, dao.StanceAgainst)
	})
}

// CashOut burns amount of the caller's winning receipts on id and pays
// amount * payout-per-unit. A zero payout still burns and still emits a claim.
func (d *DAO) CashOut(ctx context.Context, id dao.Hash, amount *uint256.Int) (*uint256.Int, error) {
	var paid *uint256.Int
	err := d.run(ctx, "cash_out", func(c *call) error {
		release, err := c.nonReentrant()
		if err != nil {
			return err
		}
		defer release()

		if err := positive(amount); err != nil {
			return err
		}
		f := c.loadFutarchy(id)
		if !f.Resolved {
			return fmt.Errorf("%w: futarchy on %s not resolved", ErrInvalidState, id.Short())
		}
		if err := c.burnReceipt(dao.ReceiptID(id, f.Winner), c.caller(), amount); err != nil {
			return err
		}
		out, overflow := new(uint256.Int).MulOverflow(amount, &f.PayoutPerUnit)
		if overflow {
			return fmt.Errorf("%w: payout", ErrOverflow)
		}
		if !out.IsZero() {
			if err := c.payout(f.Kind, c.caller(), out); err != nil {
				return err
			}
		}
		c.incCount(ClaimsCount)
		c.emitFutarchyClaimed(id, amount, out)
		paid = out
		return nil
	})
	return paid, err
}

// Futarchy returns the pool record of id. Never funded pools come back disabled.
func (d *DAO) Futarchy(ctx context.Context, id dao.Hash) (*dao.Futarchy, error) {
	var out *dao.Futarchy
	err := d.view(ctx, func(c *call) error {
		out = c.loadFutarchy(id)
		return nil
	})
	return out, err
}
