package service

import "errors"

// Typed failures returned by engine operations. Callers test them with errors.Is;
// services wrap them with the offending id.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAlreadySettled      = errors.New("activity already settled")
	ErrDeadlinePassed      = errors.New("activity deadline passed")
	ErrInvalidChoice       = errors.New("invalid choice")
	ErrAlreadyListed       = errors.New("ticket already listed")
	ErrListingNotActive    = errors.New("listing not active")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// Withdrawal outcomes after the debit has committed. A Payer wraps ErrTransferRejected
// only when the funds certainly did not leave; any other transfer error is unconfirmed.
var (
	ErrTransferRejected     = errors.New("transfer rejected")
	ErrTransferUnconfirmed  = errors.New("transfer unconfirmed")
	ErrWithdrawalUnrecorded = errors.New("withdrawal transferred but not recorded")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrAlreadySettled, "already_settled"},
	{ErrDeadlinePassed, "deadline_passed"},
	{ErrInvalidChoice, "invalid_choice"},
	{ErrAlreadyListed, "already_listed"},
	{ErrListingNotActive, "listing_not_active"},
	{ErrInsufficientPayment, "insufficient_payment"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrInvalidArgument, "invalid_argument"},
	{ErrTransferRejected, "transfer_failed"},
	{ErrTransferUnconfirmed, "transfer_unconfirmed"},
	{ErrWithdrawalUnrecorded, "withdrawal_unrecorded"},
}

// ErrorCode returns a stable code for a typed failure, "internal" for anything
// else and "ok" for a nil error.
func ErrorCode(err error) string {
	if err == nil {
		return "ok"
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}

// IsBusinessError reports whether err is one of the typed caller failures, as
// opposed to an infrastructure or payout error.
func IsBusinessError(err error) bool {
	if errors.Is(err, ErrTransferRejected) || errors.Is(err, ErrTransferUnconfirmed) || errors.Is(err, ErrWithdrawalUnrecorded) {
		return false
	}
	code := ErrorCode(err)
	return code != "ok" && code != "internal"
}
