package domain

import "time"

// Transaction is one immutable journal row: a signed balance movement on an
// account. Withdrawals carry a negative amount, top-ups a positive one.
// Rows are never updated or deleted; IDs are assigned by the store and
// increase monotonically.
type Transaction struct {
	ID          int64     `json:"transaction_id"`
	AccountID   int64     `json:"account_id"`
	Amount      int64     `json:"amount"` // cents, signed
	Time        time.Time `json:"transaction_time"`
}

// Receipt is returned by a committed withdraw or top-up: the balance after
// the movement and the journal row written in the same atomic scope.
type Receipt struct {
	NewBalance  int64
	Transaction Transaction
}
