/**
 * @description
 * This file defines the `Repository` interface: the contract for all data
 * access the ledger core needs. Keeping the interface separate from the
 * PostgreSQL implementation lets the application layer be tested against
 * stubs without a database.
 *
 * @notes
 * - AuthenticateCard, Withdraw and TopUp are atomic operations: each runs as
 *   one database transaction and either commits everything it did or nothing.
 *   PIN comparison is injected as a PINVerifier callback so the hashing
 *   scheme stays out of the storage layer while the comparison still happens
 *   under the card row lock.
 */

package store

import (
	"context"
	"time"

	"github.com/LASTMARIAN/atm-application/internal/domain"
)

// PINVerifier reports whether a candidate PIN matches the stored hash. It is
// expected to be resistant to timing leaks (bcrypt comparison in practice).
type PINVerifier func(pinHash string) bool

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// AuthenticateCard verifies a card PIN under the card's row lock.
	// A failed verification increments the failed-attempt counter, sets the
	// block flag on the attempt that reaches maxAttempts, and commits
	// that state before returning domain.ErrInvalidPIN or
	// domain.ErrCardBlocked. A successful verification resets the counter
	// and returns the card.
	AuthenticateCard(ctx context.Context, cardNumber string, verify PINVerifier, maxAttempts int) (*domain.Card, error)

	// Withdraw executes the full withdrawal protocol in one transaction:
	// lock card, authenticate, lock account, authorize, debit the balance
	// and append the journal row. Authentication side effects commit even
	// when the withdrawal itself is rejected; authorization failures roll
	// back with zero mutation.
	Withdraw(ctx context.Context, cardNumber string, amount int64, verify PINVerifier, maxAttempts int) (*domain.Receipt, error)

	// TopUp credits an account and appends the matching journal row in one
	// transaction. No card is involved.
	TopUp(ctx context.Context, accountID int64, amount int64) (*domain.Receipt, error)

	FindCardByNumber(ctx context.Context, cardNumber string) (*domain.Card, error)
	FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error)
	ListRecentTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error)

	// Customer directory (display names only; the ledger never writes these
	// during money movement).
	FindCustomerByID(ctx context.Context, customerID int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer *domain.Customer) error
	UpdateCustomer(ctx context.Context, customer *domain.Customer) error

	// Provisioning. Cards and accounts are normally created by an external
	// process; these exist for the administrative endpoints.
	CreateCard(ctx context.Context, card *domain.Card) error
	ListCards(ctx context.Context) ([]domain.Card, error)
	CreateAccount(ctx context.Context, account *domain.Account) error
	ListAccounts(ctx context.Context) ([]domain.Account, error)

	// ActivitySummarySince aggregates committed journal rows for reporting.
	ActivitySummarySince(ctx context.Context, since time.Time) (*domain.ActivitySummary, error)
}
