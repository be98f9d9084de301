package sdk

import (
	"context"
	"errors"

	"github.com/holiman/uint256"
)

// Operation selects how the host performs an outgoing action.
type Operation uint8

const (
	OpCall         Operation = 0
	OpDelegateCall Operation = 1
)

// String prints the operation as lower-case text for events and logs.
func (op Operation) String() string {
	switch op {
	case OpCall:
		return "call"
	case OpDelegateCall:
		return "delegatecall"
	default:
		return "unknown"
	}
}

// Env is the execution environment of one entry-point call: who is calling,
// at which block ordinal and timestamp.
type Env struct {
	Caller      Address
	BlockHeight uint64
	Timestamp   int64
	TxID        string
}

type ctxKey string

const envContextKey ctxKey = "okinoko.env"

// ErrNoEnv is returned when a context carries no call environment.
var ErrNoEnv = errors.New("no call environment in context")

// WithEnv attaches the call environment to ctx.
func WithEnv(ctx context.Context, env Env) context.Context {
	return context.WithValue(ctx, envContextKey, env)
}

// EnvFromContext returns the call environment previously attached with WithEnv.
func EnvFromContext(ctx context.Context) (Env, error) {
	env, ok := ctx.Value(envContextKey).(Env)
	if !ok {
		return Env{}, ErrNoEnv
	}
	return env, nil
}

// Host is everything outside the DAO: the treasury holding native currency and
// tokens, and the targets of executed actions. Calls may re-enter the DAO using
// the context they were given.
type Host interface {
	// Call performs an outgoing action on behalf of from. A non-nil error means the
	// action failed.
	Call(ctx context.Context, from Address, op Operation, target Address, value *uint256.Int, payload []byte) ([]byte, error)
	// Transfer moves amount of asset out of from's holdings to to.
	Transfer(ctx context.Context, asset Asset, from, to Address, amount *uint256.Int) error
	// Pull moves amount of asset from payer into to's holdings.
	Pull(ctx context.Context, asset Asset, payer, to Address, amount *uint256.Int) error
	// Balance returns the amount of asset held by holder.
	Balance(ctx context.Context, asset Asset, holder Address) (*uint256.Int, error)
}

// Journal is implemented by hosts that can undo asset moves. Checkpoint
// returns a func that rolls every balance back to the moment it was taken;
// the DAO calls it when a call frame fails after moving funds.
type Journal interface {
	Checkpoint() (revert func())
}
