package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testJWTSecret = "test-secret"

func protectedEcho(t *testing.T, wantAccountID int64) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := GetAccountID(r.Context())
		if !ok {
			t.Fatal("expected account ID on context")
		}
		if accountID != wantAccountID {
			t.Fatalf("expected account %d, got %d", wantAccountID, accountID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddleware_AcceptsBearerToken(t *testing.T) {
	token, err := issueSessionToken(testJWTSecret, 7, time.Hour)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	handler := SessionMiddleware(testJWTSecret)(protectedEcho(t, 7))
	req := httptest.NewRequest(http.MethodPost, "/transactions/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSessionMiddleware_AcceptsSessionCookie(t *testing.T) {
	token, err := issueSessionToken(testJWTSecret, 7, time.Hour)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	handler := SessionMiddleware(testJWTSecret)(protectedEcho(t, 7))
	req := httptest.NewRequest(http.MethodPost, "/transactions/balance", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSessionMiddleware_RejectsMissingToken(t *testing.T) {
	handler := SessionMiddleware(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached without a token")
	}))
	req := httptest.NewRequest(http.MethodPost, "/transactions/balance", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionMiddleware_RejectsExpiredToken(t *testing.T) {
	token, err := issueSessionToken(testJWTSecret, 7, -time.Minute)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	handler := SessionMiddleware(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached with an expired token")
	}))
	req := httptest.NewRequest(http.MethodPost, "/transactions/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionMiddleware_RejectsTokenSignedWithWrongSecret(t *testing.T) {
	token, err := issueSessionToken("other-secret", 7, time.Hour)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	handler := SessionMiddleware(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached with a forged token")
	}))
	req := httptest.NewRequest(http.MethodPost, "/transactions/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionMiddleware_RejectsMalformedAuthorizationHeader(t *testing.T) {
	handler := SessionMiddleware(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))
	req := httptest.NewRequest(http.MethodPost, "/transactions/balance", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
