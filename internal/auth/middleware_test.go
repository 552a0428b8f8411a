package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	policy := NewDefaultPolicy([]string{"/api/health"}, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/stations", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json envelope, got %q", ct)
	}
}

func TestAuthMiddleware_HealthExempt(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy([]string{"/api/health"}, nil))
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ReadonlyForbiddenWrite(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer", "readonly", time.Hour)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPut, "/api/platforms/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_StationForbiddenAdminMirror(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "svb-user", "station", time.Hour)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ClaimsInContext(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "alice", "admin", time.Hour)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	var seen *Claims
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/stations/3", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if seen == nil || seen.Username != "alice" || RoleFromContext(WithClaims(req.Context(), seen)) != RoleAdmin {
		t.Fatalf("unexpected claims %+v", seen)
	}
}

func TestParseJWT_Rejections(t *testing.T) {
	secret := []byte("test-secret")
	expired := mustToken(t, secret, "alice", "admin", -time.Minute)
	wrongKey := mustToken(t, []byte("other"), "alice", "admin", time.Hour)
	noUser := mustToken(t, secret, "", "admin", time.Hour)
	badRole := mustToken(t, secret, "alice", "operator", time.Hour)
	legacy := base64.StdEncoding.EncodeToString([]byte(`{"username":"alice","role":"admin","expires_at":9999999999}`))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "alice", Role: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	for name, token := range map[string]string{
		"empty":     "",
		"expired":   expired,
		"wrong key": wrongKey,
		"no user":   noUser,
		"bad role":  badRole,
		"legacy":    legacy,
		"unsigned":  unsigned,
	} {
		if _, err := ParseJWT(token, secret); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	issuer, err := NewTokenIssuer(secret, time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	token, _, err := issuer.Issue(User{
		Username:              "svb",
		Role:                  RoleStation,
		StationID:             4,
		StationAcronym:        "SVB",
		StationNormalizedName: "svartberget",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.StationNormalizedName != "svartberget" || claims.StationID != 4 || claims.Role != "station" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Sub(claims.IssuedAt.Time) != time.Hour {
		t.Fatalf("unexpected expiry %+v", claims.RegisteredClaims)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func mustToken(t *testing.T, secret []byte, username, role string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
