package domain

import "errors"

// Sentinel errors describing the failure kinds surfaced by the wagering core.
// Concrete errors wrap one of these so callers can classify with errors.Is.
var (
	// ErrNotFound indicates the referenced market, position, or settlement
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates the operation is illegal for the market's
	// current status, e.g. staking after the end time or resolving an
	// already-terminal market.
	ErrInvalidState = errors.New("invalid market state")

	// ErrInvalidInput indicates a violated precondition on the inputs
	// themselves: non-positive amount, unknown side/category/outcome, or an
	// end time that is not in the future.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a concurrent-mutation race was lost. The whole
	// operation may be retried; no partial effect was applied.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrUnavailable indicates the underlying store is temporarily
	// unreachable. The operation may be retried; no state was changed.
	ErrUnavailable = errors.New("store unavailable")

	// ErrAlreadySettled indicates settlement has already been recorded for
	// the market. Settlement is single-shot per market.
	ErrAlreadySettled = errors.New("market already settled")

	// ErrAlreadyClaimed indicates a payout has already been claimed.
	ErrAlreadyClaimed = errors.New("payout already claimed")

	// ErrLockHeld indicates a distributed lock is held by another party.
	ErrLockHeld = errors.New("lock already held")
)

// IsRetryable reports whether the caller may safely retry the whole operation.
// Only race losses and transient store failures qualify; invalid input or
// state reproduces the same error on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrLockHeld)
}
