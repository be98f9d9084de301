package contract

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// InitParams seeds a fresh instance: metadata, quorum, the founding holders
// and governance calls run as the DAO before anyone else can act.
type InitParams struct {
	Name          string
	Symbol        string
	URI           string
	QuorumBps     uint16
	Ragequittable bool
	Holders       []sdk.Address
	Amounts       []*uint256.Int
	InitCalls     []dao.Action
}

func (p *InitParams) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is mandatory", ErrInvalidInput)
	}
	if p.QuorumBps > dao.BpsDenominator {
		return fmt.Errorf("%w: quorum %d bps", ErrInvalidInput, p.QuorumBps)
	}
	if len(p.Holders) != len(p.Amounts) {
		return fmt.Errorf("%w: %d holders but %d amounts", ErrInvalidInput, len(p.Holders), len(p.Amounts))
	}
	return nil
}

// Init sets up the instance once. Any later call fails with ErrUnauthorized.
func (d *DAO) Init(ctx context.Context, params InitParams) error {
	return d.run(ctx, "init", func(c *call) error {
		if c.kv.get(initializedKey()) != nil {
			return fmt.Errorf("%w: already initialized", ErrUnauthorized)
		}
		if err := params.validate(); err != nil {
			return err
		}
		cfg := &dao.Config{
			Name:          params.Name,
			Symbol:        params.Symbol,
			URI:           params.URI,
			QuorumBps:     params.QuorumBps,
			Ragequittable: params.Ragequittable,
		}
		c.saveConfig(cfg)
		c.kv.set(initializedKey(), "1")
		c.emitInitialized(cfg)

		for i, holder := range params.Holders {
			if err := c.mintShares(holder, params.Amounts[i]); err != nil {
				return fmt.Errorf("holder %d: %w", i, err)
			}
		}
		// dispatch acts as the DAO, so init calls may reach the admin surface
		for i := range params.InitCalls {
			if _, err := c.dispatch(&params.InitCalls[i]); err != nil {
				return fmt.Errorf("init call %d: %w", i, err)
			}
		}
		return nil
	})
}

// Initialized reports whether Init ran.
func (d *DAO) Initialized(ctx context.Context) (bool, error) {
	var ok bool
	err := d.view(ctx, func(c *call) error {
		ok = c.kv.get(initializedKey()) != nil
		return nil
	})
	return ok, err
}
