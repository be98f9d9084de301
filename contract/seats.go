package contract

import (
	"context"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/holiman/uint256"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// Seats are a sticky best-effort top holder set over dao.MaxSeats slots.
// Slot numbers are 1-based; bit i of the occupancy set is slot i+1.

func (c *call) seatBits() *bitset.BitSet {
	bits := bitset.New(dao.MaxSeats)
	ptr := c.kv.get(seatBitsKey())
	if ptr == nil {
		return bits
	}
	if err := bits.UnmarshalBinary([]byte(*ptr)); err != nil {
		c.fail(fmt.Errorf("%w: seat bits: %v", dao.ErrCorrupt, err))
	}
	return bits
}

func (c *call) saveSeatBits(bits *bitset.BitSet) {
	raw, err := bits.MarshalBinary()
	if err != nil {
		c.fail(err)
		return
	}
	c.kv.set(seatBitsKey(), string(raw))
}

func (c *call) seatOf(a sdk.Address) uint16 {
	ptr := c.kv.get(seatOfKey(a))
	if ptr == nil || len(*ptr) != 2 {
		return 0
	}
	return uint16((*ptr)[0]) | uint16((*ptr)[1])<<8
}

func (c *call) loadSeat(slot uint16) *dao.Seat {
	ptr := c.kv.get(seatKey(slot))
	if ptr == nil {
		return &dao.Seat{Slot: slot}
	}
	s, err := dao.DecodeSeat([]byte(*ptr))
	if err != nil {
		c.fail(err)
		return &dao.Seat{Slot: slot}
	}
	return s
}

func (c *call) saveSeat(s *dao.Seat) {
	c.kv.set(seatKey(s.Slot), string(dao.EncodeSeat(s)))
	c.kv.set(seatOfKey(s.Holder), string([]byte{byte(s.Slot), byte(s.Slot >> 8)}))
}

func (c *call) cutline() *dao.Cutline {
	ptr := c.kv.get(cutlineKey())
	if ptr == nil {
		return &dao.Cutline{}
	}
	cl, err := dao.DecodeCutline([]byte(*ptr))
	if err != nil {
		c.fail(err)
		return &dao.Cutline{}
	}
	return cl
}

func (c *call) saveCutline(cl *dao.Cutline) {
	if cl.Slot == 0 {
		c.kv.del(cutlineKey())
		return
	}
	c.kv.set(cutlineKey(), string(dao.EncodeCutline(cl)))
}

// rescanCutline walks every occupied slot for the smallest balance, lowest slot on ties.
func (c *call) rescanCutline(bits *bitset.BitSet) {
	cl := &dao.Cutline{}
	for i, ok := bits.NextSet(0); ok && i < dao.MaxSeats; i, ok = bits.NextSet(i + 1) {
		s := c.loadSeat(uint16(i + 1))
		if cl.Slot == 0 || s.Balance.Lt(&cl.Balance) {
			cl.Slot = s.Slot
			cl.Balance.Set(&s.Balance)
		}
	}
	c.saveCutline(cl)
}

func (c *call) vacate(slot uint16, bits *bitset.BitSet) *dao.Seat {
	s := c.loadSeat(slot)
	bits.Clear(uint(slot - 1))
	c.kv.del(seatKey(slot))
	c.kv.del(seatOfKey(s.Holder))
	return s
}

// updateSeat applies the sticky seat policy after a's share balance became bal.
func (c *call) updateSeat(a sdk.Address, bal *uint256.Int) {
	if a == c.self() {
		return
	}
	slot := c.seatOf(a)
	cl := c.cutline()
	bits := c.seatBits()

	switch {
	case slot != 0 && bal.IsZero():
		c.vacate(slot, bits)
		c.saveSeatBits(bits)
		if cl.Slot == slot {
			c.rescanCutline(bits)
		}
		c.emitSeat(slot, a, bal, true)

	case slot != 0:
		s := c.loadSeat(slot)
		grew := bal.Gt(&s.Balance)
		s.Balance.Set(bal)
		c.saveSeat(s)
		switch {
		case cl.Slot == slot && grew:
			c.rescanCutline(bits)
		case cl.Slot == slot:
			cl.Balance.Set(bal)
			c.saveCutline(cl)
		case bal.Lt(&cl.Balance):
			cl.Slot = slot
			cl.Balance.Set(bal)
			c.saveCutline(cl)
		}
		c.emitSeat(slot, a, bal, false)

	case bal.IsZero():
		// nothing to seat

	case bits.Count() < dao.MaxSeats:
		free, ok := bits.NextClear(0)
		if !ok || free >= dao.MaxSeats {
			c.fail(fmt.Errorf("%w: seat bits report room but no free slot", dao.ErrCorrupt))
			return
		}
		slot = uint16(free + 1)
		bits.Set(free)
		s := &dao.Seat{Slot: slot, Holder: a}
		s.Balance.Set(bal)
		c.saveSeat(s)
		c.saveSeatBits(bits)
		if cl.Slot == 0 || bal.Lt(&cl.Balance) {
			cl.Slot = slot
			cl.Balance.Set(bal)
			c.saveCutline(cl)
		}
		c.emitSeat(slot, a, bal, false)

	case bal.Gt(&cl.Balance):
		slot = cl.Slot
		evicted := c.vacate(slot, bits)
		c.emitSeat(slot, evicted.Holder, &evicted.Balance, true)
		bits.Set(uint(slot - 1))
		s := &dao.Seat{Slot: slot, Holder: a}
		s.Balance.Set(bal)
		c.saveSeat(s)
		c.saveSeatBits(bits)
		c.rescanCutline(bits)
		c.emitSeat(slot, a, bal, false)
	}
	if slot != 0 {
		occupied := bits.Count()
		c.onCommit(func() { c.d.metrics.setSeats(occupied) })
	}
}

// Seats returns every occupied seat in slot order.
func (d *DAO) Seats(ctx context.Context) ([]dao.Seat, error) {
	var out []dao.Seat
	err := d.view(ctx, func(c *call) error {
		bits := c.seatBits()
		out = make([]dao.Seat, 0, bits.Count())
		for i, ok := bits.NextSet(0); ok && i < dao.MaxSeats; i, ok = bits.NextSet(i + 1) {
			out = append(out, *c.loadSeat(uint16(i + 1)))
		}
		return nil
	})
	return out, err
}

// SeatOf returns the slot held by a, zero when a holds none.
func (d *DAO) SeatOf(ctx context.Context, a sdk.Address) (uint16, error) {
	var slot uint16
	err := d.view(ctx, func(c *call) error {
		slot = c.seatOf(a)
		return nil
	})
	return slot, err
}

// Cutline is the smallest seated balance and its slot.
func (d *DAO) Cutline(ctx context.Context) (*dao.Cutline, error) {
	var out *dao.Cutline
	err := d.view(ctx, func(c *call) error {
		out = c.cutline()
		return nil
	})
	return out, err
}
