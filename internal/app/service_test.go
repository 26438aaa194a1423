package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/LASTMARIAN/atm-application/internal/domain"
	"github.com/LASTMARIAN/atm-application/internal/store"
)

type serviceRepoStub struct {
	store.Repository

	card     *domain.Card
	account  *domain.Account
	customer *domain.Customer
	receipt  *domain.Receipt

	authErr     error
	withdrawErr error
	topUpErr    error

	withdrawCalled bool
	topUpCalled    bool
	lastVerify     store.PINVerifier
	lastMaxAttempt int
}

func (s *serviceRepoStub) AuthenticateCard(ctx context.Context, cardNumber string, verify store.PINVerifier, maxAttempts int) (*domain.Card, error) {
	s.lastVerify = verify
	s.lastMaxAttempt = maxAttempts
	if s.authErr != nil {
		return nil, s.authErr
	}
	if s.card != nil && !verify(s.card.PINHash) {
		return nil, domain.ErrInvalidPIN
	}
	return s.card, nil
}

func (s *serviceRepoStub) Withdraw(ctx context.Context, cardNumber string, amount int64, verify store.PINVerifier, maxAttempts int) (*domain.Receipt, error) {
	s.withdrawCalled = true
	s.lastVerify = verify
	s.lastMaxAttempt = maxAttempts
	if s.withdrawErr != nil {
		return nil, s.withdrawErr
	}
	return s.receipt, nil
}

func (s *serviceRepoStub) TopUp(ctx context.Context, accountID int64, amount int64) (*domain.Receipt, error) {
	s.topUpCalled = true
	if s.topUpErr != nil {
		return nil, s.topUpErr
	}
	return s.receipt, nil
}

func (s *serviceRepoStub) FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	if s.account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *serviceRepoStub) FindCustomerByID(ctx context.Context, customerID int64) (*domain.Customer, error) {
	if s.customer == nil {
		return nil, domain.ErrCustomerNotFound
	}
	return s.customer, nil
}

func (s *serviceRepoStub) ListRecentTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	transactions := make([]domain.Transaction, limit)
	return transactions, nil
}

type publisherStub struct {
	published   []string
	routingKeys []string
	err         error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.published = append(p.published, exchange)
	p.routingKeys = append(p.routingKeys, routingKey)
	return p.err
}

func (p *publisherStub) Close() {}

type limiterStub struct {
	count int
	err   error
}

func (l *limiterStub) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if l.err != nil {
		return 0, 0, l.err
	}
	l.count++
	return l.count, 30, nil
}

func sampleReceipt() *domain.Receipt {
	return &domain.Receipt{
		NewBalance: 8000,
		Transaction: domain.Transaction{
			ID:        42,
			AccountID: 7,
			Amount:    -2000,
			Time:      time.Now(),
		},
	}
}

func TestAuthenticateCard_Success(t *testing.T) {
	pinHash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing pin: %v", err)
	}
	repo := &serviceRepoStub{
		card:     &domain.Card{CardNumber: "4000-1", PINHash: string(pinHash), AccountID: 7, Type: domain.CardTypeDebit},
		account:  &domain.Account{ID: 7, CustomerID: 3, Balance: 10000},
		customer: &domain.Customer{ID: 3, FirstName: "Ada", LastName: "Lovelace"},
	}
	service := NewService(repo, &publisherStub{}, nil, "ledger_events", 3)

	auth, err := service.AuthenticateCard(context.Background(), "4000-1", "1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth.AccountID != 7 {
		t.Fatalf("expected account 7, got %d", auth.AccountID)
	}
	if auth.Customer.FirstName != "Ada" || auth.Customer.LastName != "Lovelace" {
		t.Fatalf("unexpected customer: %+v", auth.Customer)
	}
	if repo.lastMaxAttempt != 3 {
		t.Fatalf("expected max attempts 3, got %d", repo.lastMaxAttempt)
	}
}

func TestAuthenticateCard_WrongPIN(t *testing.T) {
	pinHash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing pin: %v", err)
	}
	repo := &serviceRepoStub{
		card: &domain.Card{CardNumber: "4000-1", PINHash: string(pinHash), AccountID: 7},
	}
	service := NewService(repo, &publisherStub{}, nil, "ledger_events", 3)

	_, err = service.AuthenticateCard(context.Background(), "4000-1", "9999")
	if !errors.Is(err, domain.ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN, got %v", err)
	}
}

func TestAuthenticateCard_Throttled(t *testing.T) {
	repo := &serviceRepoStub{}
	service := NewService(repo, &publisherStub{}, nil, "ledger_events", 3)
	service.SetAuthRateLimiter(&limiterStub{count: 5}, 5)

	_, err := service.AuthenticateCard(context.Background(), "4000-1", "1234")
	if !errors.Is(err, ErrAuthThrottled) {
		t.Fatalf("expected ErrAuthThrottled, got %v", err)
	}
	if repo.lastVerify != nil {
		t.Fatal("repository must not be reached when throttled")
	}
}

func TestAuthenticateCard_LimiterFailureFailsOpen(t *testing.T) {
	pinHash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing pin: %v", err)
	}
	repo := &serviceRepoStub{
		card:     &domain.Card{CardNumber: "4000-1", PINHash: string(pinHash), AccountID: 7},
		account:  &domain.Account{ID: 7, CustomerID: 3},
		customer: &domain.Customer{ID: 3, FirstName: "Ada", LastName: "Lovelace"},
	}
	service := NewService(repo, &publisherStub{}, nil, "ledger_events", 3)
	service.SetAuthRateLimiter(&limiterStub{err: errors.New("redis down")}, 5)

	if _, err := service.AuthenticateCard(context.Background(), "4000-1", "1234"); err != nil {
		t.Fatalf("expected fail-open authentication, got %v", err)
	}
}

func TestWithdraw_RejectsNonPositiveAmount(t *testing.T) {
	repo := &serviceRepoStub{}
	service := NewService(repo, &publisherStub{}, nil, "ledger_events", 3)

	for _, amount := range []int64{0, -1} {
		if _, err := service.Withdraw(context.Background(), "4000-1", "1234", amount); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if repo.withdrawCalled {
		t.Fatal("repository must not be reached for invalid amounts")
	}
}

func TestWithdraw_PublishesEvent(t *testing.T) {
	repo := &serviceRepoStub{receipt: sampleReceipt()}
	publisher := &publisherStub{}
	service := NewService(repo, publisher, nil, "ledger_events", 3)

	receipt, err := service.Withdraw(context.Background(), "4000-1", "1234", 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.NewBalance != 8000 {
		t.Fatalf("expected new balance 8000, got %d", receipt.NewBalance)
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "transaction.withdrawal" {
		t.Fatalf("expected one withdrawal event, got %v", publisher.routingKeys)
	}
	if publisher.published[0] != "ledger_events" {
		t.Fatalf("expected ledger_events exchange, got %q", publisher.published[0])
	}
}

func TestWithdraw_PublishFailureDoesNotFailWithdrawal(t *testing.T) {
	repo := &serviceRepoStub{receipt: sampleReceipt()}
	publisher := &publisherStub{err: errors.New("broker gone")}
	service := NewService(repo, publisher, nil, "ledger_events", 3)

	if _, err := service.Withdraw(context.Background(), "4000-1", "1234", 2000); err != nil {
		t.Fatalf("withdrawal must survive publish failure, got %v", err)
	}
}

func TestWithdraw_ErrorPassthrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "insufficient funds", err: domain.ErrInsufficientFunds},
		{name: "card blocked", err: domain.ErrCardBlocked},
		{name: "missing credit limit", err: domain.ErrMissingCreditLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &serviceRepoStub{withdrawErr: tt.err}
			publisher := &publisherStub{}
			service := NewService(repo, publisher, nil, "ledger_events", 3)

			_, err := service.Withdraw(context.Background(), "4000-1", "1234", 2000)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if len(publisher.routingKeys) != 0 {
				t.Fatal("no event must be published for a rejected withdrawal")
			}
		})
	}
}

func TestTopUp_PublishesEvent(t *testing.T) {
	receipt := sampleReceipt()
	receipt.Transaction.Amount = 2000
	repo := &serviceRepoStub{receipt: receipt}
	publisher := &publisherStub{}
	service := NewService(repo, publisher, nil, "ledger_events", 3)

	if _, err := service.TopUp(context.Background(), 7, 2000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.topUpCalled {
		t.Fatal("expected repository top-up call")
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "transaction.top_up" {
		t.Fatalf("expected one top-up event, got %v", publisher.routingKeys)
	}
}

func TestTopUp_RejectsNonPositiveAmount(t *testing.T) {
	repo := &serviceRepoStub{}
	service := NewService(repo, &publisherStub{}, nil, "ledger_events", 3)

	if _, err := service.TopUp(context.Background(), 7, 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if repo.topUpCalled {
		t.Fatal("repository must not be reached for invalid amounts")
	}
}

func TestRecentTransactions_DefaultLimit(t *testing.T) {
	repo := &serviceRepoStub{}
	service := NewService(repo, &publisherStub{}, nil, "ledger_events", 3)

	transactions, err := service.RecentTransactions(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transactions) != 10 {
		t.Fatalf("expected default limit of 10, got %d", len(transactions))
	}
}

func TestRecentTransactions_CapsLimit(t *testing.T) {
	repo := &serviceRepoStub{}
	service := NewService(repo, &publisherStub{}, nil, "ledger_events", 3)

	transactions, err := service.RecentTransactions(context.Background(), 7, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transactions) != 100 {
		t.Fatalf("expected limit capped at 100, got %d", len(transactions))
	}
}
