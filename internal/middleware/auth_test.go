package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestProperty_RequestsWithoutTokenAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			mw := AuthMiddleware("test-secret", zap.NewNop())

			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			path := "/" + pathSuffix
			if path == "/" {
				path = "/orders"
			}

			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_GarbageTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("malformed bearer tokens are rejected", prop.ForAll(
		func(garbage string) bool {
			mw := AuthMiddleware("test-secret", zap.NewNop())

			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/orders", nil)
			req.Header.Set("Authorization", "Bearer "+garbage)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestExpiredTokenIsRejected(t *testing.T) {
	secret := "test-secret"
	mw := AuthMiddleware(secret, zap.NewNop())
	tokenString := signedToken(t, secret, jwt.MapClaims{
		"user_id": 1,
		"name":    "Marta",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestValidTokenPutsOperatorOnContext(t *testing.T) {
	secret := "test-secret"
	mw := AuthMiddleware(secret, zap.NewNop())
	tokenString := signedToken(t, secret, jwt.MapClaims{
		"user_id": 42,
		"name":    "Marta",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		id, ok := GetUserID(r.Context())
		if !ok || id != 42 {
			t.Errorf("expected operator id 42 on context, got %d (%v)", id, ok)
		}
		name, ok := GetUserName(r.Context())
		if !ok || name != "Marta" {
			t.Errorf("expected operator name on context, got %q (%v)", name, ok)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !handlerCalled || w.Code != http.StatusOK {
		t.Errorf("expected handler to run with 200, got %d", w.Code)
	}
}

func TestMissingBearerPrefixIsRejected(t *testing.T) {
	mw := AuthMiddleware("test-secret", zap.NewNop())

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/orders", nil)
	req.Header.Set("Authorization", "just-a-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
