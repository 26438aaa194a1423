package domain

import "errors"

// Sentinel errors for every outcome the ledger core can report. Handlers
// match these with errors.Is to pick HTTP status codes; anything else that
// escapes the core is an internal failure.
var (
	ErrCardNotFound       = errors.New("card not found")
	ErrCardBlocked        = errors.New("card is blocked")
	ErrInvalidPIN         = errors.New("invalid PIN")
	ErrAccountNotFound    = errors.New("account not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrMissingCreditLimit = errors.New("credit card has no credit limit")
	ErrInvalidAmount      = errors.New("amount must be positive with at most two decimal places")
	ErrCardExists         = errors.New("card number already exists")
)
