/**
 * @description
 * This file contains the HTTP handlers for the ledger API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LASTMARIAN/atm-application/internal/app"
	"github.com/LASTMARIAN/atm-application/internal/domain"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service    *app.Service
	jwtSecret  string
	sessionTTL time.Duration
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service, jwtSecret string, sessionTTL time.Duration) *LedgerHandlers {
	return &LedgerHandlers{service: service, jwtSecret: jwtSecret, sessionTTL: sessionTTL}
}

type cardAuthRequest struct {
	CardNumber string `json:"card_number"`
	PINCode    string `json:"pin_code"`
}

type cardAuthResponse struct {
	Success   bool            `json:"success"`
	Customer  domain.Customer `json:"customer"`
	AccountID int64           `json:"account_id"`
	CardType  domain.CardType `json:"card_type"`
	Token     string          `json:"token"`
}

type receiptResponse struct {
	Success       bool               `json:"success"`
	NewBalance    string             `json:"new_balance"`
	TransactionID int64              `json:"transaction_id"`
	Transaction   domain.Transaction `json:"transaction"`
}

func buildReceiptResponse(receipt *domain.Receipt) receiptResponse {
	return receiptResponse{
		Success:       true,
		NewBalance:    domain.FormatCents(receipt.NewBalance),
		TransactionID: receipt.Transaction.ID,
		Transaction:   receipt.Transaction,
	}
}

// CardAuthHandler verifies a card PIN and opens a session. On success a
// session token is returned in the body and mirrored in an HttpOnly cookie.
func (h *LedgerHandlers) CardAuthHandler(w http.ResponseWriter, r *http.Request) {
	var req cardAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=card_auth outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.CardNumber = strings.TrimSpace(req.CardNumber)
	if req.CardNumber == "" || req.PINCode == "" {
		h.writeError(w, http.StatusBadRequest, "card_number and pin_code are required")
		return
	}

	auth, err := h.service.AuthenticateCard(r.Context(), req.CardNumber, req.PINCode)
	if err != nil {
		h.writeServiceError(w, "card_auth", req.CardNumber, err)
		return
	}

	token, err := issueSessionToken(h.jwtSecret, auth.AccountID, h.sessionTTL)
	if err != nil {
		log.Printf("level=error component=api endpoint=card_auth msg=\"session token signing failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	log.Printf("level=info component=api endpoint=card_auth outcome=success account_id=%d card_type=%s", auth.AccountID, auth.CardType)
	h.writeJSON(w, http.StatusOK, cardAuthResponse{
		Success:   true,
		Customer:  auth.Customer,
		AccountID: auth.AccountID,
		CardType:  auth.CardType,
		Token:     token,
	})
}

// WithdrawHandler debits the card holder's account. PIN verification and the
// balance check happen inside one atomic operation; a failed PIN attempt is
// recorded even though the withdrawal is aborted.
func (h *LedgerHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := GetAccountID(r.Context()); !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		CardNumber string      `json:"card_number"`
		PINCode    string      `json:"pin_code"`
		Amount     json.Number `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=withdraw outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := parseRequestAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.service.Withdraw(r.Context(), strings.TrimSpace(req.CardNumber), req.PINCode, amount)
	if err != nil {
		h.writeServiceError(w, "withdraw", req.CardNumber, err)
		return
	}

	log.Printf("level=info component=api endpoint=withdraw outcome=success account_id=%d transaction_id=%d amount=%d", receipt.Transaction.AccountID, receipt.Transaction.ID, amount)
	h.writeJSON(w, http.StatusOK, buildReceiptResponse(receipt))
}

// TopUpHandler credits an account. Deposits do not require a card session;
// they address the account directly.
func (h *LedgerHandlers) TopUpHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64       `json:"account_id"`
		Amount    json.Number `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=top_up outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := parseRequestAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.service.TopUp(r.Context(), req.AccountID, amount)
	if err != nil {
		h.writeServiceError(w, "top_up", "", err)
		return
	}

	log.Printf("level=info component=api endpoint=top_up outcome=success account_id=%d transaction_id=%d amount=%d", receipt.Transaction.AccountID, receipt.Transaction.ID, amount)
	h.writeJSON(w, http.StatusOK, buildReceiptResponse(receipt))
}

// BalanceHandler returns the committed balance of the session's account.
func (h *LedgerHandlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	balance, err := h.service.Balance(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, "balance", "", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"balance":    domain.FormatCents(balance),
	})
}

// RecentTransactionsHandler lists an account's most recent transactions,
// newest first.
func (h *LedgerHandlers) RecentTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64 `json:"account_id"`
		Limit     int   `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=get_transactions outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transactions, err := h.service.RecentTransactions(r.Context(), req.AccountID, req.Limit)
	if err != nil {
		h.writeServiceError(w, "get_transactions", "", err)
		return
	}
	if transactions == nil {
		// An account with no history still gets a JSON array, not null.
		transactions = []domain.Transaction{}
	}

	h.writeJSON(w, http.StatusOK, transactions)
}

// CreateCardHandler provisions a new card.
func (h *LedgerHandlers) CreateCardHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardNumber  string       `json:"card_number"`
		PINCode     string       `json:"pin_code"`
		AccountID   int64        `json:"account_id"`
		CardType    string       `json:"card_type"`
		CreditLimit *json.Number `json:"credit_limit,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.CardNumber = strings.TrimSpace(req.CardNumber)
	if req.CardNumber == "" || req.PINCode == "" {
		h.writeError(w, http.StatusBadRequest, "card_number and pin_code are required")
		return
	}
	cardType := domain.CardType(req.CardType)
	if !cardType.Valid() {
		h.writeError(w, http.StatusBadRequest, "card_type must be debit or credit")
		return
	}

	var creditLimit *int64
	if req.CreditLimit != nil {
		limit, err := parseRequestAmount(*req.CreditLimit)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		creditLimit = &limit
	}

	card, err := h.service.CreateCard(r.Context(), app.CreateCardParams{
		CardNumber:  req.CardNumber,
		PIN:         req.PINCode,
		AccountID:   req.AccountID,
		Type:        cardType,
		CreditLimit: creditLimit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCardExists) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeServiceError(w, "create_card", req.CardNumber, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, card)
}

// ListCardsHandler lists every provisioned card.
func (h *LedgerHandlers) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.ListCards(r.Context())
	if err != nil {
		h.writeServiceError(w, "list_cards", "", err)
		return
	}
	h.writeJSON(w, http.StatusOK, cards)
}

// CreateAccountHandler provisions a new account.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int64       `json:"customer_id"`
		Balance    json.Number `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var balance int64
	if req.Balance != "" {
		parsed, err := domain.ParseAmount(req.Balance.String())
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		balance = parsed
	}

	account, err := h.service.CreateAccount(r.Context(), req.CustomerID, balance)
	if err != nil {
		h.writeServiceError(w, "create_account", "", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, account)
}

// ListAccountsHandler lists every account.
func (h *LedgerHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.writeServiceError(w, "list_accounts", "", err)
		return
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

// CreateCustomerHandler adds a customer record.
func (h *LedgerHandlers) CreateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" {
		h.writeError(w, http.StatusBadRequest, "first_name and last_name are required")
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), req.FirstName, req.LastName)
	if err != nil {
		h.writeServiceError(w, "create_customer", "", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, customer)
}

// ListCustomersHandler lists every customer record.
func (h *LedgerHandlers) ListCustomersHandler(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.writeServiceError(w, "list_customers", "", err)
		return
	}
	h.writeJSON(w, http.StatusOK, customers)
}

// UpdateCustomerHandler updates a customer's display name.
func (h *LedgerHandlers) UpdateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid customer ID")
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" {
		h.writeError(w, http.StatusBadRequest, "first_name and last_name are required")
		return
	}

	customer := &domain.Customer{ID: customerID, FirstName: req.FirstName, LastName: req.LastName}
	if err := h.service.UpdateCustomer(r.Context(), customer); err != nil {
		h.writeServiceError(w, "update_customer", "", err)
		return
	}

	h.writeJSON(w, http.StatusOK, customer)
}

// parseRequestAmount converts a JSON amount (number or string, major units)
// into cents, rejecting zero, negatives, and sub-cent precision.
func parseRequestAmount(raw json.Number) (int64, error) {
	if raw == "" {
		return 0, domain.ErrInvalidAmount
	}
	amount, err := domain.ParseAmount(raw.String())
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	return amount, nil
}

// writeServiceError maps domain errors onto HTTP status codes.
func (h *LedgerHandlers) writeServiceError(w http.ResponseWriter, endpoint, cardNumber string, err error) {
	switch {
	case errors.Is(err, domain.ErrCardNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrCustomerNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCardBlocked),
		errors.Is(err, domain.ErrInvalidPIN):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrMissingCreditLimit),
		errors.Is(err, domain.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrAuthThrottled):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		if cardNumber != "" {
			log.Printf("level=error component=api endpoint=%s outcome=failed card_number=%s err=%v", endpoint, maskCardNumber(cardNumber), err)
		} else {
			log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		}
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// maskCardNumber keeps only the last four digits in log output.
func maskCardNumber(cardNumber string) string {
	if len(cardNumber) <= 4 {
		return "****"
	}
	return "****" + cardNumber[len(cardNumber)-4:]
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
