/**
 * @description
 * This file contains the core business logic of the service. The `Service`
 * struct coordinates card authentication and money movement across the
 * repository, the optional event producer, and the optional per-card
 * authentication throttle.
 *
 * Key features:
 * - Withdraw and top-up with all-or-nothing semantics delegated to the
 *   store's atomic operations.
 * - bcrypt PIN verification injected into the store so the comparison runs
 *   under the card row lock.
 * - Publishes ledger events after commit; publishing failures are logged,
 *   never surfaced to the caller.
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt: PIN hash comparison and hashing.
 * - internal/domain, internal/store: domain models and data access.
 * - pkg/rabbitmq, pkg/metrics: event publishing and counters.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/LASTMARIAN/atm-application/internal/domain"
	"github.com/LASTMARIAN/atm-application/internal/store"
	"github.com/LASTMARIAN/atm-application/pkg/metrics"
	"github.com/LASTMARIAN/atm-application/pkg/rabbitmq"

	"github.com/google/uuid"
)

// ErrAuthThrottled is returned when the distributed per-card throttle has
// seen too many authentication attempts inside the current window. Distinct
// from the persistent lockout: throttling passes with time, a block does not.
var ErrAuthThrottled = errors.New("too many authentication attempts, try again later")

const defaultRecentLimit = 10

// AuthRateLimiter counts attempts per scope/subject inside a rolling window.
type AuthRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic of the ledger.
type Service struct {
	repo           store.Repository
	events         rabbitmq.Publisher
	collector      *metrics.Collector
	eventExchange  string
	maxPINAttempts int

	limiter       AuthRateLimiter
	authRateLimit int
}

// NewService creates a new service instance. The publisher may be a fallback
// no-op and the collector may be nil.
func NewService(repo store.Repository, events rabbitmq.Publisher, collector *metrics.Collector, eventExchange string, maxPINAttempts int) *Service {
	if events == nil {
		events = &rabbitmq.FallbackProducer{}
	}
	return &Service{
		repo:           repo,
		events:         events,
		collector:      collector,
		eventExchange:  eventExchange,
		maxPINAttempts: maxPINAttempts,
	}
}

// SetAuthRateLimiter wires the optional distributed throttle for PIN
// verification attempts.
func (s *Service) SetAuthRateLimiter(limiter AuthRateLimiter, perMinute int) {
	s.limiter = limiter
	s.authRateLimit = perMinute
}

// pinVerifier returns the bcrypt comparison closure handed to the store.
func pinVerifier(pin string) store.PINVerifier {
	return func(pinHash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(pinHash), []byte(pin)) == nil
	}
}

// throttle consumes one attempt from the per-card window. Limiter errors
// fail open: a broken Redis must not take cash withdrawal down with it.
func (s *Service) throttle(ctx context.Context, cardNumber string) error {
	if s.limiter == nil || s.authRateLimit <= 0 {
		return nil
	}
	count, _, err := s.limiter.ConsumeRateLimit(ctx, "card_auth", cardNumber, s.authRateLimit, time.Minute)
	if err != nil {
		log.Printf("level=warn component=app msg=\"auth rate limiter unavailable\" err=%v", err)
		return nil
	}
	if count > s.authRateLimit {
		return ErrAuthThrottled
	}
	return nil
}

// AuthenticateCard verifies a card PIN and, on success, resolves the account
// and the customer's display name for the session layer.
func (s *Service) AuthenticateCard(ctx context.Context, cardNumber, pin string) (*domain.AuthenticatedCard, error) {
	if err := s.throttle(ctx, cardNumber); err != nil {
		return nil, err
	}

	card, err := s.repo.AuthenticateCard(ctx, cardNumber, pinVerifier(pin), s.maxPINAttempts)
	if err != nil {
		s.observeAuthFailure(err)
		return nil, err
	}
	s.collector.AuthSuccess()

	account, err := s.repo.FindAccountByID(ctx, card.AccountID)
	if err != nil {
		return nil, err
	}
	customer, err := s.repo.FindCustomerByID(ctx, account.CustomerID)
	if err != nil {
		return nil, err
	}

	return &domain.AuthenticatedCard{
		AccountID:   card.AccountID,
		CardType:    card.Type,
		CreditLimit: card.CreditLimit,
		Customer:    *customer,
	}, nil
}

// Withdraw debits a card holder's account. The amount is in cents and must
// be positive.
func (s *Service) Withdraw(ctx context.Context, cardNumber, pin string, amount int64) (*domain.Receipt, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if err := s.throttle(ctx, cardNumber); err != nil {
		return nil, err
	}

	receipt, err := s.repo.Withdraw(ctx, cardNumber, amount, pinVerifier(pin), s.maxPINAttempts)
	if err != nil {
		s.observeAuthFailure(err)
		if errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrMissingCreditLimit) {
			s.collector.RejectedAuthorization()
		}
		return nil, err
	}

	s.collector.Withdrawal()
	s.publishTransaction(ctx, "transaction.withdrawal", receipt)
	return receipt, nil
}

// TopUp credits an account. The amount is in cents and must be positive.
func (s *Service) TopUp(ctx context.Context, accountID, amount int64) (*domain.Receipt, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	receipt, err := s.repo.TopUp(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}

	s.collector.TopUp()
	s.publishTransaction(ctx, "transaction.top_up", receipt)
	return receipt, nil
}

// Balance returns an account's committed balance in cents.
func (s *Service) Balance(ctx context.Context, accountID int64) (int64, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// RecentTransactions lists an account's most recent journal rows, newest
// first. A non-positive limit falls back to the default of 10.
func (s *Service) RecentTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListRecentTransactions(ctx, accountID, limit)
}

// CreateCardParams carries everything needed to provision a card.
type CreateCardParams struct {
	CardNumber  string
	PIN         string
	AccountID   int64
	Type        domain.CardType
	CreditLimit *int64 // cents; may be nil even for credit cards (legacy tolerance)
}

// CreateCard provisions a card with a bcrypt-hashed PIN.
func (s *Service) CreateCard(ctx context.Context, params CreateCardParams) (*domain.Card, error) {
	pinHash, err := bcrypt.GenerateFromPassword([]byte(params.PIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	card := &domain.Card{
		CardNumber:  params.CardNumber,
		PINHash:     string(pinHash),
		AccountID:   params.AccountID,
		Type:        params.Type,
		CreditLimit: params.CreditLimit,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, err
	}
	log.Printf("level=info component=app msg=\"card created\" account_id=%d card_type=%s", card.AccountID, card.Type)
	return card, nil
}

// ListCards returns every provisioned card.
func (s *Service) ListCards(ctx context.Context) ([]domain.Card, error) {
	return s.repo.ListCards(ctx)
}

// CreateAccount provisions an account with an initial balance in cents.
func (s *Service) CreateAccount(ctx context.Context, customerID, initialBalance int64) (*domain.Account, error) {
	if initialBalance < 0 {
		return nil, domain.ErrInvalidAmount
	}
	account := &domain.Account{CustomerID: customerID, Balance: initialBalance}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts returns every account.
func (s *Service) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.repo.ListAccounts(ctx)
}

// CreateCustomer adds a customer directory record.
func (s *Service) CreateCustomer(ctx context.Context, firstName, lastName string) (*domain.Customer, error) {
	customer := &domain.Customer{FirstName: firstName, LastName: lastName}
	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// ListCustomers returns every customer directory record.
func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// UpdateCustomer updates a customer's display name.
func (s *Service) UpdateCustomer(ctx context.Context, customer *domain.Customer) error {
	return s.repo.UpdateCustomer(ctx, customer)
}

func (s *Service) observeAuthFailure(err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPIN):
		s.collector.AuthFailure()
	case errors.Is(err, domain.ErrCardBlocked):
		s.collector.AuthFailure()
		s.collector.BlockedRejection()
	}
}

func (s *Service) publishTransaction(ctx context.Context, routingKey string, receipt *domain.Receipt) {
	event := rabbitmq.TransactionEvent{
		EventID:       uuid.New(),
		TransactionID: receipt.Transaction.ID,
		AccountID:     receipt.Transaction.AccountID,
		Amount:        domain.FormatCents(receipt.Transaction.Amount),
		NewBalance:    domain.FormatCents(receipt.NewBalance),
		OccurredAt:    receipt.Transaction.Time,
	}
	if err := s.events.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s transaction_id=%d err=%v", routingKey, event.TransactionID, err)
	}
}
