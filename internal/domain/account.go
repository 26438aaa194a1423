package domain

import "time"

// Account holds the authoritative balance for one customer account.
// Maps directly to the `accounts` table; the balance is in cents.
type Account struct {
	ID         int64 `json:"account_id"`
	CustomerID int64 `json:"customer_id"`
	Balance    int64 `json:"balance"`
}

// Customer is the directory record used for display names on receipts.
// The ledger core never depends on it beyond lookups.
type Customer struct {
	ID        int64  `json:"customer_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AuthenticatedCard is the result of a successful card authentication:
// everything the session layer needs to serve the card holder.
type AuthenticatedCard struct {
	AccountID   int64
	CardType    CardType
	CreditLimit *int64
	Customer    Customer
}

// ActivitySummary aggregates journal activity for reporting.
type ActivitySummary struct {
	Since           time.Time
	WithdrawalCount int64
	WithdrawalTotal int64 // cents, positive magnitude
	TopUpCount      int64
	TopUpTotal      int64 // cents
	BlockedCards    int64 // cards currently blocked
}
