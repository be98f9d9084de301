package contract

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// Vote receipts are fungible tokens keyed by keccak(proposal, stance). Their
// live supply always equals the matching tally bucket.

func (c *call) loadReceipt(rid dao.Hash) *dao.Receipt {
	ptr := c.kv.get(receiptKey(rid))
	if ptr == nil {
		return nil
	}
	rc, err := dao.DecodeReceipt([]byte(*ptr))
	if err != nil {
		c.fail(err)
		return nil
	}
	return rc
}

func (c *call) receiptBalance(rid dao.Hash, holder sdk.Address) *uint256.Int {
	return c.getU256(receiptBalanceKey(rid, holder))
}

func (c *call) receiptSupply(rid dao.Hash) *uint256.Int {
	return c.getU256(receiptSupplyKey(rid))
}

func (c *call) mintReceipt(id dao.Hash, stance dao.Stance, to sdk.Address, amount *uint256.Int) dao.Hash {
	rid := dao.ReceiptID(id, stance)
	if c.kv.get(receiptKey(rid)) == nil {
		c.kv.set(receiptKey(rid), string(dao.EncodeReceipt(&dao.Receipt{Proposal: id, Stance: stance})))
	}
	c.setU256(receiptBalanceKey(rid, to), new(uint256.Int).Add(c.receiptBalance(rid, to), amount))
	c.setU256(receiptSupplyKey(rid), new(uint256.Int).Add(c.receiptSupply(rid), amount))
	return rid
}

func (c *call) burnReceipt(rid dao.Hash, from sdk.Address, amount *uint256.Int) error {
	bal := c.receiptBalance(rid, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s receipts of %s, burning %s", ErrInsufficientBalance, from, bal.Dec(), rid.Short(), amount.Dec())
	}
	c.setU256(receiptBalanceKey(rid, from), new(uint256.Int).Sub(bal, amount))
	c.setU256(receiptSupplyKey(rid), new(uint256.Int).Sub(c.receiptSupply(rid), amount))
	return nil
}

// TransferReceipt moves vote receipts of rid from the caller to to. A receipt
// sold on keeps its claim on the futarchy pool but can no longer cancel the vote.
func (d *DAO) TransferReceipt(ctx context.Context, rid dao.Hash, to sdk.Address, amount *uint256.Int) error {
	return d.run(ctx, "transfer_receipt", func(c *call) error {
		if to.IsZero() {
			return fmt.Errorf("%w: transfer to zero address", ErrInvalidInput)
		}
		if err := positive(amount); err != nil {
			return err
		}
		if c.loadReceipt(rid) == nil {
			return fmt.Errorf("%w: unknown receipt %s", ErrInvalidInput, rid.Short())
		}
		from := c.caller()
		bal := c.receiptBalance(rid, from)
		if bal.Lt(amount) {
			return fmt.Errorf("%w: %s holds %s receipts", ErrInsufficientBalance, from, bal.Dec())
		}
		if from != to {
			c.setU256(receiptBalanceKey(rid, from), new(uint256.Int).Sub(bal, amount))
			c.setU256(receiptBalanceKey(rid, to), new(uint256.Int).Add(c.receiptBalance(rid, to), amount))
		}
		c.emitReceiptTransfer(rid, from, to, amount)
		return nil
	})
}

// ReceiptInfo maps a receipt id back to its proposal and stance.
func (d *DAO) ReceiptInfo(ctx context.Context, rid dao.Hash) (*dao.Receipt, error) {
	var out *dao.Receipt
	err := d.view(ctx, func(c *call) error {
		out = c.loadReceipt(rid)
		if out == nil {
			return fmt.Errorf("%w: unknown receipt %s", ErrInvalidInput, rid.Short())
		}
		return nil
	})
	return out, err
}

// ReceiptBalance is the number of rid receipts held by holder.
func (d *DAO) ReceiptBalance(ctx context.Context, rid dao.Hash, holder sdk.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := d.view(ctx, func(c *call) error {
		out = c.receiptBalance(rid, holder)
		return nil
	})
	return out, err
}

// ReceiptSupply is the live supply of rid receipts.
func (d *DAO) ReceiptSupply(ctx context.Context, rid dao.Hash) (*uint256.Int, error) {
	var out *uint256.Int
	err := d.view(ctx, func(c *call) error {
		out = c.receiptSupply(rid)
		return nil
	})
	return out, err
}
