package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
}

func runJWT(t *testing.T, cfg JWTConfig, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/comparisons", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var seen echo.Context
	err := JWTMiddleware(cfg)(func(c echo.Context) error {
		seen = c
		return c.String(http.StatusOK, "ok")
	})(c)
	return seen, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "reconciler", Audience: "api"}
	tok, err := IssueToken(cfg, "user-1", []string{RoleReader}, validClaims())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	c, err := runJWT(t, cfg, "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "user-1" {
		t.Errorf("expected user-1, got %q", UserIDFromContext(ctx))
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RoleReader {
		t.Errorf("unexpected roles %v", roles)
	}
}

func TestJWTMiddleware_Rejects(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "reconciler"}

	wrongKey, _ := IssueToken(JWTConfig{SigningKey: []byte("another-key-another-key-another!!")}, "u", nil, validClaims())
	expired, _ := IssueToken(cfg, "u", nil, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	noExpiry, _ := IssueToken(cfg, "u", nil, jwt.RegisteredClaims{})
	wrongIssuer, _ := IssueToken(JWTConfig{SigningKey: testSigningKey, Issuer: "other"}, "u", nil, validClaims())

	for name, tok := range map[string]string{
		"wrong key":    wrongKey,
		"expired":      expired,
		"no expiry":    noExpiry,
		"wrong issuer": wrongIssuer,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := runJWT(t, cfg, "Bearer "+tok)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/metrics")

	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper})
	if err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c); err != nil {
		t.Fatalf("expected public path to skip auth, got %v", err)
	}
	if !IsPublicPath("/health") || IsPublicPath("/api/v1/comparisons") {
		t.Error("unexpected public path table")
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{"reader allowed", []string{RoleReader}, http.StatusOK},
		{"admin allowed", []string{RoleAdmin}, http.StatusOK},
		{"writer forbidden", []string{RoleWriter}, http.StatusForbidden},
		{"no roles", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, tt.roles))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequireRole(RoleReader)(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})(c)

			if tt.want == http.StatusOK {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			expectStatus(t, err, tt.want)
		})
	}
}
