package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func issueToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authedRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/lending/supply", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func runMiddleware(auth *Authenticator, req *http.Request, scopes ...string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler := auth.Middleware(scopes...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: false}, nil)
	rec := runMiddleware(auth, authedRequest(""), ScopeLedgerWrite)
	if rec.Code != http.StatusOK {
		t.Fatalf("disabled auth blocked request: %d", rec.Code)
	}
}

func TestAuthRequiresBearerToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	rec := runMiddleware(auth, authedRequest(""), ScopeLedgerWrite)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token not rejected: %d", rec.Code)
	}
}

func TestAuthAcceptsValidToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	token := issueToken(t, testSecret, jwt.MapClaims{
		"sub":   "svc-ledger",
		"scope": ScopeLedgerWrite + " " + ScopeRelay,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	rec := runMiddleware(auth, authedRequest(token), ScopeLedgerWrite)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token rejected: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, ClockSkew: time.Second}, nil)
	token := issueToken(t, testSecret, jwt.MapClaims{
		"scope": ScopeLedgerWrite,
		"exp":   time.Now().Add(-time.Hour).Unix(),
	})
	rec := runMiddleware(auth, authedRequest(token), ScopeLedgerWrite)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token accepted: %d", rec.Code)
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	token := issueToken(t, "other-secret", jwt.MapClaims{
		"scope": ScopeLedgerWrite,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	rec := runMiddleware(auth, authedRequest(token), ScopeLedgerWrite)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("token with wrong secret accepted: %d", rec.Code)
	}
}

func TestAuthEnforcesScopes(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	token := issueToken(t, testSecret, jwt.MapClaims{
		"scope": ScopeRelay,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	rec := runMiddleware(auth, authedRequest(token), ScopeAdmin)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("insufficient scope not rejected: %d", rec.Code)
	}
}

func TestAuthChecksIssuerAndAudience(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "hublend",
		Audience:   "gateway",
	}, nil)

	good := issueToken(t, testSecret, jwt.MapClaims{
		"iss":   "hublend",
		"aud":   "gateway",
		"scope": ScopeLedgerWrite,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	if rec := runMiddleware(auth, authedRequest(good), ScopeLedgerWrite); rec.Code != http.StatusOK {
		t.Fatalf("valid issuer/audience rejected: %d", rec.Code)
	}

	badIssuer := issueToken(t, testSecret, jwt.MapClaims{
		"iss":   "someone-else",
		"aud":   "gateway",
		"scope": ScopeLedgerWrite,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	if rec := runMiddleware(auth, authedRequest(badIssuer), ScopeLedgerWrite); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong issuer accepted: %d", rec.Code)
	}

	badAudience := issueToken(t, testSecret, jwt.MapClaims{
		"iss":   "hublend",
		"aud":   "not-the-gateway",
		"scope": ScopeLedgerWrite,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	if rec := runMiddleware(auth, authedRequest(badAudience), ScopeLedgerWrite); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong audience accepted: %d", rec.Code)
	}
}

func TestExtractBearer(t *testing.T) {
	if got := extractBearer("Bearer abc"); got != "abc" {
		t.Fatalf("extractBearer = %q", got)
	}
	if got := extractBearer("bearer abc"); got != "abc" {
		t.Fatalf("case-insensitive scheme: %q", got)
	}
	if got := extractBearer("Basic abc"); got != "" {
		t.Fatalf("non-bearer scheme accepted: %q", got)
	}
	if got := extractBearer(""); got != "" {
		t.Fatalf("empty header: %q", got)
	}
}
