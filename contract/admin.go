package contract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
)

// Admin applies a governance-only change. It is reachable only through a
// self-call, that is from an executed proposal, a spent permit or init.
func (d *DAO) Admin(ctx context.Context, ac *dao.AdminCall) error {
	return d.run(ctx, "admin", func(c *call) error {
		if err := c.onlySelf(); err != nil {
			return err
		}
		return c.admin(ac)
	})
}

func (c *call) admin(ac *dao.AdminCall) error {
	switch ac.Method {
	case dao.AdminBatch:
		for i := range ac.Actions {
			if _, err := c.dispatch(&ac.Actions[i]); err != nil {
				return fmt.Errorf("batch action %d: %w", i, err)
			}
		}
		return nil
	case dao.AdminSetPermit:
		return c.setPermit(&ac.Action, ac.Account, ac.Count)
	case dao.AdminSetAllowance:
		return c.setAllowance(ac.Account, ac.Asset, &ac.Amount)
	case dao.AdminSetSale:
		return c.setSale(&ac.Sale)
	case dao.AdminMintShares:
		return c.mintShares(ac.Account, &ac.Amount)
	case dao.AdminMintLoot:
		return c.mintLoot(ac.Account, &ac.Amount)
	case dao.AdminFundFutarchy:
		return c.fundFutarchy(ac.ID, ac.Kind, &ac.Amount)
	}

	cfg, err := c.config()
	if err != nil {
		return err
	}
	field, old, next := ac.Method.String(), "", ""
	switch ac.Method {
	case dao.AdminSetQuorumBps:
		if ac.Bps > dao.BpsDenominator {
			return fmt.Errorf("%w: quorum %d bps", ErrInvalidInput, ac.Bps)
		}
		old, next = fmtUint(uint64(cfg.QuorumBps)), fmtUint(uint64(ac.Bps))
		cfg.QuorumBps = ac.Bps
	case dao.AdminSetQuorumAbsolute:
		if err := bounded(&ac.Amount, "quorum"); err != nil {
			return err
		}
		old, next = cfg.QuorumAbsolute.Dec(), ac.Amount.Dec()
		cfg.QuorumAbsolute.Set(&ac.Amount)
	case dao.AdminSetMinYesVotes:
		if err := bounded(&ac.Amount, "min yes votes"); err != nil {
			return err
		}
		old, next = cfg.MinYesVotes.Dec(), ac.Amount.Dec()
		cfg.MinYesVotes.Set(&ac.Amount)
	case dao.AdminSetProposalThreshold:
		old, next = cfg.ProposalThreshold.Dec(), ac.Amount.Dec()
		cfg.ProposalThreshold.Set(&ac.Amount)
	case dao.AdminSetProposalTTL:
		old, next = fmtUint(cfg.ProposalTTL), fmtUint(ac.Seconds)
		cfg.ProposalTTL = ac.Seconds
	case dao.AdminSetTimelockDelay:
		old, next = fmtUint(cfg.TimelockDelay), fmtUint(ac.Seconds)
		cfg.TimelockDelay = ac.Seconds
	case dao.AdminSetTransfersLocked:
		old, next = strconv.FormatBool(cfg.TransfersLocked), strconv.FormatBool(ac.Flag)
		cfg.TransfersLocked = ac.Flag
	case dao.AdminSetRagequittable:
		old, next = strconv.FormatBool(cfg.Ragequittable), strconv.FormatBool(ac.Flag)
		cfg.Ragequittable = ac.Flag
	case dao.AdminSetMetadata:
		old, next = cfg.Name+"/"+cfg.Symbol, ac.Name+"/"+ac.Symbol
		cfg.Name, cfg.Symbol, cfg.URI = ac.Name, ac.Symbol, ac.URI
	case dao.AdminSetAutoFutarchy:
		old = cfg.AutoFutarchyParam.Dec() + "/" + cfg.AutoFutarchyCap.Dec()
		next = ac.Amount.Dec() + "/" + ac.Cap.Dec()
		cfg.AutoFutarchyParam.Set(&ac.Amount)
		cfg.AutoFutarchyCap.Set(&ac.Cap)
	case dao.AdminSetRewardKind:
		if !ac.Kind.Valid() {
			return fmt.Errorf("%w: reward kind %d", ErrInvalidInput, ac.Kind)
		}
		old, next = cfg.RewardKind.String(), ac.Kind.String()
		cfg.RewardKind = ac.Kind
		cfg.RewardKindPreset = true
	case dao.AdminBumpConfig:
		if cfg.Epoch == ^uint64(0) {
			return fmt.Errorf("%w: config epoch", ErrOverflow)
		}
		old, next = fmtUint(cfg.Epoch), fmtUint(cfg.Epoch+1)
		cfg.Epoch++
	default:
		return fmt.Errorf("%w: admin method %d", ErrInvalidInput, ac.Method)
	}
	c.saveConfig(cfg)
	c.emitConfigChanged(field, old, next)
	return nil
}

func fmtUint(n uint64) string { return strconv.FormatUint(n, 10) }

// bounded rejects absolute thresholds no tally could ever reach.
func bounded(v *uint256.Int, what string) error {
	if v.Gt(dao.MaxTally) {
		return fmt.Errorf("%w: %s above tally range", ErrOverflow, what)
	}
	return nil
}
