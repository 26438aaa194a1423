/**
 * @description
 * PostgreSQL implementation of the `Repository` interface. All money
 * movement runs inside explicit transactions with row-level locks:
 * `SELECT ... FOR UPDATE` on the card row first, then the account row, so
 * concurrent operations on the same card or account serialize and the lock
 * order is identical everywhere a withdrawal touches both.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pooling.
 * - internal/domain: domain models and sentinel errors.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LASTMARIAN/atm-application/internal/domain"
)

// PostgresRepository is the concrete Repository backed by a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// lockCard loads a card under FOR UPDATE so attempt-counter updates on the
// same card never interleave.
func lockCard(ctx context.Context, tx pgx.Tx, cardNumber string) (*domain.Card, error) {
	var card domain.Card
	query := `
		SELECT card_number, pin_hash, account_id, card_type, credit_limit, failed_pin_attempts, is_blocked
		FROM cards
		WHERE card_number = $1
		FOR UPDATE
	`
	err := tx.QueryRow(ctx, query, cardNumber).Scan(
		&card.CardNumber,
		&card.PINHash,
		&card.AccountID,
		&card.Type,
		&card.CreditLimit,
		&card.FailedPINAttempts,
		&card.IsBlocked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// authenticateLocked runs PIN verification against a locked card row and
// persists the attempt-counter outcome on tx. On a failed attempt it commits
// tx itself (a failed attempt must survive even if the surrounding operation
// goes no further) and returns ErrInvalidPIN or ErrCardBlocked.
// On success the reset stays uncommitted so it belongs to the caller's scope.
func authenticateLocked(ctx context.Context, tx pgx.Tx, card *domain.Card, verify PINVerifier, maxAttempts int) error {
	if card.IsBlocked {
		return domain.ErrCardBlocked
	}

	if !verify(card.PINHash) {
		card.RegisterFailedAttempt(maxAttempts)
		_, err := tx.Exec(ctx,
			`UPDATE cards SET failed_pin_attempts = $1, is_blocked = $2 WHERE card_number = $3`,
			card.FailedPINAttempts, card.IsBlocked, card.CardNumber,
		)
		if err != nil {
			return fmt.Errorf("failed to persist pin attempt: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit pin attempt: %w", err)
		}
		if card.IsBlocked {
			return domain.ErrCardBlocked
		}
		return domain.ErrInvalidPIN
	}

	if card.FailedPINAttempts > 0 {
		_, err := tx.Exec(ctx,
			`UPDATE cards SET failed_pin_attempts = 0 WHERE card_number = $1`,
			card.CardNumber,
		)
		if err != nil {
			return fmt.Errorf("failed to reset pin attempts: %w", err)
		}
		card.FailedPINAttempts = 0
	}
	return nil
}

// AuthenticateCard verifies a PIN as its own atomic operation.
func (r *PostgresRepository) AuthenticateCard(ctx context.Context, cardNumber string, verify PINVerifier, maxAttempts int) (*domain.Card, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	card, err := lockCard(ctx, tx, cardNumber)
	if err != nil {
		return nil, err
	}
	if err := authenticateLocked(ctx, tx, card, verify, maxAttempts); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit authentication: %w", err)
	}
	return card, nil
}

// Withdraw executes the withdrawal protocol in one transaction. Lock order
// is card before account; TopUp only ever locks the account, so the two
// cannot deadlock.
func (r *PostgresRepository) Withdraw(ctx context.Context, cardNumber string, amount int64, verify PINVerifier, maxAttempts int) (*domain.Receipt, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	card, err := lockCard(ctx, tx, cardNumber)
	if err != nil {
		return nil, err
	}
	// authenticateLocked commits the transaction itself on a failed attempt,
	// so the counter update is durable even though the withdrawal stops here.
	if err := authenticateLocked(ctx, tx, card, verify, maxAttempts); err != nil {
		return nil, err
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE account_id = $1 FOR UPDATE`,
		card.AccountID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	// Authorization failure aborts the whole scope, including a pending
	// attempt-counter reset: the deferred rollback handles it.
	if err := card.AuthorizeWithdrawal(balance, amount); err != nil {
		return nil, err
	}

	receipt, err := applyDelta(ctx, tx, card.AccountID, balance, -amount)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal: %w", err)
	}
	return receipt, nil
}

// TopUp credits an account and journals the movement in one transaction.
func (r *PostgresRepository) TopUp(ctx context.Context, accountID int64, amount int64) (*domain.Receipt, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE account_id = $1 FOR UPDATE`,
		accountID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	receipt, err := applyDelta(ctx, tx, accountID, balance, amount)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit top-up: %w", err)
	}
	return receipt, nil
}

// applyDelta writes the new balance and appends the paired journal row on
// the caller's transaction. The account row must already be locked.
func applyDelta(ctx context.Context, tx pgx.Tx, accountID, balance, delta int64) (*domain.Receipt, error) {
	newBalance := balance + delta
	_, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $1 WHERE account_id = $2`,
		newBalance, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	entry := domain.Transaction{AccountID: accountID, Amount: delta}
	err = tx.QueryRow(ctx,
		`INSERT INTO transactions (account_id, amount, transaction_time)
		 VALUES ($1, $2, NOW())
		 RETURNING transaction_id, transaction_time`,
		accountID, delta,
	).Scan(&entry.ID, &entry.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to append journal entry: %w", err)
	}

	return &domain.Receipt{NewBalance: newBalance, Transaction: entry}, nil
}

// FindCardByNumber retrieves a card without locking it.
func (r *PostgresRepository) FindCardByNumber(ctx context.Context, cardNumber string) (*domain.Card, error) {
	var card domain.Card
	query := `
		SELECT card_number, pin_hash, account_id, card_type, credit_limit, failed_pin_attempts, is_blocked
		FROM cards
		WHERE card_number = $1
	`
	err := r.db.QueryRow(ctx, query, cardNumber).Scan(
		&card.CardNumber,
		&card.PINHash,
		&card.AccountID,
		&card.Type,
		&card.CreditLimit,
		&card.FailedPINAttempts,
		&card.IsBlocked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// FindAccountByID retrieves an account's current committed state.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	var account domain.Account
	err := r.db.QueryRow(ctx,
		`SELECT account_id, customer_id, balance FROM accounts WHERE account_id = $1`,
		accountID,
	).Scan(&account.ID, &account.CustomerID, &account.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListRecentTransactions returns the account's most recent committed journal
// rows, newest first.
func (r *PostgresRepository) ListRecentTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT transaction_id, account_id, amount, transaction_time
		 FROM transactions
		 WHERE account_id = $1
		 ORDER BY transaction_time DESC, transaction_id DESC
		 LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Time); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// FindCustomerByID retrieves a customer directory record.
func (r *PostgresRepository) FindCustomerByID(ctx context.Context, customerID int64) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.QueryRow(ctx,
		`SELECT customer_id, first_name, last_name FROM customers WHERE customer_id = $1`,
		customerID,
	).Scan(&c.ID, &c.FirstName, &c.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListCustomers returns every customer directory record.
func (r *PostgresRepository) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT customer_id, first_name, last_name FROM customers ORDER BY customer_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// CreateCustomer inserts a customer and fills in the generated id.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO customers (first_name, last_name) VALUES ($1, $2) RETURNING customer_id`,
		customer.FirstName, customer.LastName,
	).Scan(&customer.ID)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// UpdateCustomer updates a customer's display name.
func (r *PostgresRepository) UpdateCustomer(ctx context.Context, customer *domain.Customer) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE customers SET first_name = $1, last_name = $2 WHERE customer_id = $3`,
		customer.FirstName, customer.LastName, customer.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// CreateCard inserts a provisioned card. The PIN arrives already hashed.
// Lockout fields always start clean regardless of what the caller populated.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *domain.Card) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO cards (card_number, pin_hash, account_id, card_type, credit_limit, failed_pin_attempts, is_blocked)
		 VALUES ($1, $2, $3, $4, $5, 0, FALSE)`,
		card.CardNumber, card.PINHash, card.AccountID, card.Type, card.CreditLimit,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrCardExists
		}
		return fmt.Errorf("failed to create card: %w", err)
	}
	card.FailedPINAttempts = 0
	card.IsBlocked = false
	return nil
}

// ListCards returns every card. PIN hashes are included in the model but
// never serialized by the API layer.
func (r *PostgresRepository) ListCards(ctx context.Context) ([]domain.Card, error) {
	rows, err := r.db.Query(ctx,
		`SELECT card_number, pin_hash, account_id, card_type, credit_limit, failed_pin_attempts, is_blocked
		 FROM cards ORDER BY card_number`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.CardNumber, &c.PINHash, &c.AccountID, &c.Type, &c.CreditLimit, &c.FailedPINAttempts, &c.IsBlocked); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// CreateAccount inserts an account and fills in the generated id.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO accounts (customer_id, balance) VALUES ($1, $2) RETURNING account_id`,
		account.CustomerID, account.Balance,
	).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// ListAccounts returns every account.
func (r *PostgresRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx,
		`SELECT account_id, customer_id, balance FROM accounts ORDER BY account_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Balance); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ActivitySummarySince aggregates committed journal rows from the given
// instant, plus the count of cards currently blocked.
func (r *PostgresRepository) ActivitySummarySince(ctx context.Context, since time.Time) (*domain.ActivitySummary, error) {
	summary := domain.ActivitySummary{Since: since}
	err := r.db.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE amount < 0),
			COALESCE(SUM(-amount) FILTER (WHERE amount < 0), 0),
			COUNT(*) FILTER (WHERE amount > 0),
			COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0)
		 FROM transactions
		 WHERE transaction_time >= $1`,
		since,
	).Scan(&summary.WithdrawalCount, &summary.WithdrawalTotal, &summary.TopUpCount, &summary.TopUpTotal)
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM cards WHERE is_blocked`).Scan(&summary.BlockedCards)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
