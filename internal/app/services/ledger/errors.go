package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Business errors. They are returned without any state change.
var (
	ErrUnauthorized        = errors.New("caller is not authorized")
	ErrInvalidIdentity     = errors.New("identity is required")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrMemoTooLong         = errors.New("memo exceeds the maximum length")
	ErrOverflow            = errors.New("amount overflows")
	ErrTooOld              = errors.New("transaction is too old")
	ErrAlreadyStaked       = errors.New("account already has an active stake")
	ErrNoActiveStake       = errors.New("account has no active stake")
	ErrStillLocked         = errors.New("stake is still locked")
	ErrNothingToClaim      = errors.New("no reward has accrued")
	ErrDailyLimitReached   = errors.New("daily limit reached")
	ErrFaucetDisabled      = errors.New("faucet is disabled")
	ErrInvalidLockPeriod   = errors.New("lock period does not match a staking tier")
	ErrUnknownEarningType  = errors.New("unknown earning type")
	ErrUnknownSpendingType = errors.New("unknown spending type")
	ErrRateNotConfigured   = errors.New("no rate configured")
)

// InsufficientFundsError is returned when a debit exceeds the spendable balance.
type InsufficientFundsError struct {
	Balance uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d", e.Balance)
}

// BadFeeError is returned when a caller supplied fee differs from the ledger fee.
type BadFeeError struct {
	ExpectedFee uint64
}

func (e *BadFeeError) Error() string {
	return fmt.Sprintf("bad fee: expected %d", e.ExpectedFee)
}

// DuplicateError is returned for a replayed transfer.
type DuplicateError struct {
	DuplicateOf uint64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of transaction %d", e.DuplicateOf)
}

// CreatedInFutureError is returned when created_at is ahead of the ledger clock.
type CreatedInFutureError struct {
	LedgerTime time.Time
}

func (e *CreatedInFutureError) Error() string {
	return fmt.Sprintf("created in future: ledger time %s", e.LedgerTime.UTC().Format(time.RFC3339Nano))
}

// BelowMinimumStakeError is returned when a stake is under the tier floor.
type BelowMinimumStakeError struct {
	Minimum uint64
}

func (e *BelowMinimumStakeError) Error() string {
	return fmt.Sprintf("stake below minimum %d", e.Minimum)
}

// BadBurnError is returned when a burn is under the configured minimum.
type BadBurnError struct {
	MinBurnAmount uint64
}

func (e *BadBurnError) Error() string {
	return fmt.Sprintf("burn below minimum %d", e.MinBurnAmount)
}

// ErrorKind groups business errors for callers that only need the category.
type ErrorKind string

const (
	KindAuthorization ErrorKind = "authorization"
	KindBalance       ErrorKind = "balance"
	KindReplay        ErrorKind = "fee_replay"
	KindState         ErrorKind = "state"
	KindConfiguration ErrorKind = "configuration"
	KindValidation    ErrorKind = "validation"
	KindInternal      ErrorKind = "internal"
)

// Code returns a stable machine readable code for err. Unknown errors map to
// "internal_error".
func Code(err error) string {
	var (
		insufficient *InsufficientFundsError
		badFee       *BadFeeError
		duplicate    *DuplicateError
		future       *CreatedInFutureError
		belowMin     *BelowMinimumStakeError
		badBurn      *BadBurnError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidIdentity):
		return "invalid_identity"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrMemoTooLong):
		return "memo_too_long"
	case errors.Is(err, ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrTooOld):
		return "too_old"
	case errors.Is(err, ErrAlreadyStaked):
		return "already_staked"
	case errors.Is(err, ErrNoActiveStake):
		return "no_active_stake"
	case errors.Is(err, ErrStillLocked):
		return "still_locked"
	case errors.Is(err, ErrNothingToClaim):
		return "nothing_to_claim"
	case errors.Is(err, ErrDailyLimitReached):
		return "daily_limit_reached"
	case errors.Is(err, ErrFaucetDisabled):
		return "faucet_disabled"
	case errors.Is(err, ErrInvalidLockPeriod):
		return "invalid_lock_period"
	case errors.Is(err, ErrUnknownEarningType):
		return "unknown_earning_type"
	case errors.Is(err, ErrUnknownSpendingType):
		return "unknown_spending_type"
	case errors.Is(err, ErrRateNotConfigured):
		return "rate_not_configured"
	case errors.As(err, &insufficient):
		return "insufficient_funds"
	case errors.As(err, &badFee):
		return "bad_fee"
	case errors.As(err, &duplicate):
		return "duplicate"
	case errors.As(err, &future):
		return "created_in_future"
	case errors.As(err, &belowMin):
		return "below_minimum_stake"
	case errors.As(err, &badBurn):
		return "bad_burn"
	default:
		return "internal_error"
	}
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	switch Code(err) {
	case "unauthorized":
		return KindAuthorization
	case "insufficient_funds", "below_minimum_stake", "overflow", "bad_burn":
		return KindBalance
	case "bad_fee", "duplicate", "too_old", "created_in_future":
		return KindReplay
	case "already_staked", "no_active_stake", "still_locked", "nothing_to_claim",
		"daily_limit_reached", "faucet_disabled":
		return KindState
	case "unknown_earning_type", "unknown_spending_type", "invalid_lock_period", "rate_not_configured":
		return KindConfiguration
	case "invalid_identity", "invalid_amount", "memo_too_long":
		return KindValidation
	default:
		return KindInternal
	}
}

// IsBusinessError reports whether err is an expected, typed ledger outcome.
func IsBusinessError(err error) bool {
	return err != nil && KindOf(err) != KindInternal
}
