package sdk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

// ErrInsufficientFunds is returned by MemoryHost when a holder cannot cover a move.
var ErrInsufficientFunds = errors.New("insufficient funds")

// RecordedCall is one outgoing action seen by MemoryHost.
type RecordedCall struct {
	From    Address
	Op      Operation
	Target  Address
	Value   *uint256.Int
	Payload []byte
}

// CallHandler lets tests and the dev CLI decide what an outgoing action does.
type CallHandler func(ctx context.Context, call RecordedCall) ([]byte, error)

// MemoryHost is an in-process Host keeping per-asset balances in maps. It backs
// tests and the dev CLI.
type MemoryHost struct {
	mu       sync.Mutex
	balances map[Asset]map[Address]*uint256.Int
	calls    []RecordedCall
	handlers map[Address]CallHandler
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		balances: make(map[Asset]map[Address]*uint256.Int),
		handlers: make(map[Address]CallHandler),
	}
}

// Deposit credits holder with amount of asset out of thin air.
func (h *MemoryHost) Deposit(asset Asset, holder Address, amount uint64) {
	h.Credit(asset, holder, uint256.NewInt(amount))
}

// Credit is Deposit for amounts beyond 64 bits.
func (h *MemoryHost) Credit(asset Asset, holder Address, amount *uint256.Int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bal := h.balanceLocked(asset, holder)
	bal.Add(bal, amount)
}

// Holdings returns a copy of every non-zero balance, keyed by asset and holder.
func (h *MemoryHost) Holdings() map[Asset]map[Address]*uint256.Int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.copyLocked()
}

func (h *MemoryHost) copyLocked() map[Asset]map[Address]*uint256.Int {
	out := make(map[Asset]map[Address]*uint256.Int, len(h.balances))
	for asset, byHolder := range h.balances {
		for holder, bal := range byHolder {
			if bal.IsZero() {
				continue
			}
			if out[asset] == nil {
				out[asset] = make(map[Address]*uint256.Int)
			}
			out[asset][holder] = bal.Clone()
		}
	}
	return out
}

// Checkpoint snapshots every balance. Recorded calls are not rolled back.
func (h *MemoryHost) Checkpoint() func() {
	h.mu.Lock()
	snap := h.copyLocked()
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.balances = snap
		// the next revert must not hand out the same maps
		snap = h.copyLocked()
	}
}

// Handle registers the behaviour of calls towards target.
func (h *MemoryHost) Handle(target Address, fn CallHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[target] = fn
}

// Calls returns a copy of every recorded outgoing action.
func (h *MemoryHost) Calls() []RecordedCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]RecordedCall, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *MemoryHost) balanceLocked(asset Asset, holder Address) *uint256.Int {
	byHolder, ok := h.balances[asset]
	if !ok {
		byHolder = make(map[Address]*uint256.Int)
		h.balances[asset] = byHolder
	}
	bal, ok := byHolder[holder]
	if !ok {
		bal = new(uint256.Int)
		byHolder[holder] = bal
	}
	return bal
}

func (h *MemoryHost) moveLocked(asset Asset, from, to Address, amount *uint256.Int) error {
	src := h.balanceLocked(asset, from)
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientFunds, from, src.Dec(), asset, amount.Dec())
	}
	dst := h.balanceLocked(asset, to)
	src.Sub(src, amount)
	dst.Add(dst, amount)
	return nil
}

// Call records the action, moves any attached native value and runs the
// registered handler without holding the host lock so it may re-enter. The
// handler sees target as the caller of anything it invokes. When the handler
// fails every balance is rolled back, the attached value included.
func (h *MemoryHost) Call(ctx context.Context, from Address, op Operation, target Address, value *uint256.Int, payload []byte) ([]byte, error) {
	call := RecordedCall{
		From:    from,
		Op:      op,
		Target:  target,
		Value:   new(uint256.Int),
		Payload: append([]byte(nil), payload...),
	}
	if value != nil {
		call.Value.Set(value)
	}
	revert := h.Checkpoint()
	h.mu.Lock()
	if !call.Value.IsZero() {
		if err := h.moveLocked(AssetNative, from, target, call.Value); err != nil {
			h.mu.Unlock()
			return nil, err
		}
	}
	h.calls = append(h.calls, call)
	handler := h.handlers[target]
	h.mu.Unlock()
	if handler == nil {
		return nil, nil
	}
	// the callee re-enters as itself
	if env, err := EnvFromContext(ctx); err == nil {
		env.Caller = target
		ctx = WithEnv(ctx, env)
	}
	ret, err := handler(ctx, call)
	if err != nil {
		revert()
		return nil, err
	}
	return ret, nil
}

func (h *MemoryHost) Transfer(ctx context.Context, asset Asset, from, to Address, amount *uint256.Int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveLocked(asset, from, to, amount)
}

func (h *MemoryHost) Pull(ctx context.Context, asset Asset, payer, to Address, amount *uint256.Int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveLocked(asset, payer, to, amount)
}

func (h *MemoryHost) Balance(ctx context.Context, asset Asset, holder Address) (*uint256.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.balanceLocked(asset, holder).Clone(), nil
}
