/**
 * @description
 * This file defines the card credential model and the rules that govern it:
 * PIN failure accounting with permanent lockout, and the withdrawal
 * authorization policy for debit and credit cards.
 *
 * @notes
 * - Amounts are handled as `int64` cents throughout the domain to avoid
 *   floating-point inaccuracies with financial data.
 * - A blocked card stays blocked. Nothing in this service clears
 *   `IsBlocked`; unblocking is an administrative action outside the system.
 */

package domain

// CardType distinguishes the two authorization policies a card can carry.
type CardType string

const (
	CardTypeDebit  CardType = "debit"
	CardTypeCredit CardType = "credit"
)

// Valid reports whether the card type is one of the known values.
func (t CardType) Valid() bool {
	return t == CardTypeDebit || t == CardTypeCredit
}

// Card represents a physical card bound to an account.
// This struct maps directly to the `cards` table.
type Card struct {
	CardNumber        string   `json:"card_number"`
	PINHash           string   `json:"-"`
	AccountID         int64    `json:"account_id"`
	Type              CardType `json:"card_type"`
	CreditLimit       *int64   `json:"credit_limit,omitempty"` // cents; required for credit cards, checked at authorization time
	FailedPINAttempts int      `json:"-"`
	IsBlocked         bool     `json:"is_blocked"`
}

// RegisterFailedAttempt records one more failed PIN verification and blocks
// the card once the attempt count reaches maxAttempts. It returns true when
// this attempt is the one that blocked the card.
func (c *Card) RegisterFailedAttempt(maxAttempts int) bool {
	c.FailedPINAttempts++
	if !c.IsBlocked && c.FailedPINAttempts >= maxAttempts {
		c.IsBlocked = true
		return true
	}
	return false
}

// AuthorizeWithdrawal applies the balance-authorization policy for this card
// against the account's current balance, both in cents.
//
// Debit cards may not take the balance below zero. Credit cards may draw the
// balance down to -CreditLimit; a credit card persisted without a limit is a
// legacy record and is rejected with ErrMissingCreditLimit here rather than
// at creation time.
func (c *Card) AuthorizeWithdrawal(balance, amount int64) error {
	if c.Type == CardTypeCredit {
		if c.CreditLimit == nil {
			return ErrMissingCreditLimit
		}
		usedCredit := int64(0)
		if balance < 0 {
			usedCredit = -balance
		}
		if amount > *c.CreditLimit-usedCredit {
			return ErrInsufficientFunds
		}
		return nil
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	return nil
}
