package contract

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized: the caller lacks the role or relationship the call needs.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState: the call is not valid for the current proposal or market state.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput: malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExpired: the proposal TTL has elapsed.
	ErrExpired = errors.New("expired")
	// ErrTimelocked: execution attempted before the delay elapsed. Returned wrapped
	// in a *TimelockError.
	ErrTimelocked = errors.New("timelocked")
	// ErrOverflow: a value exceeds a fixed-width counter.
	ErrOverflow = errors.New("overflow")
	// ErrReentrancy: a guarded entry point was entered from inside another one.
	ErrReentrancy = errors.New("reentrant call")
	// ErrBadOrdinal: a history lookup asked for the current or a future block.
	ErrBadOrdinal = errors.New("bad ordinal")
	// ErrTooEarly: nothing was minted before the snapshot block.
	ErrTooEarly = errors.New("too early")
	// ErrExecutionFailed: the outgoing action failed.
	ErrExecutionFailed = errors.New("execution failed")
	// ErrInsufficientBalance: a burn, transfer or spend exceeds what is held.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// TimelockError reports when a queued proposal becomes executable.
type TimelockError struct {
	EligibleAt int64
}

func (e *TimelockError) Error() string {
	return fmt.Sprintf("%s until %s", ErrTimelocked, time.Unix(e.EligibleAt, 0).UTC().Format(time.RFC3339))
}

func (e *TimelockError) Unwrap() error {
	return ErrTimelocked
}
