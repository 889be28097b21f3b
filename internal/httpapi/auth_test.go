package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"posledger/internal/domain"
	"posledger/internal/service"
)

type authenticatorStub struct {
	actor domain.Actor
	pass  string
	calls int
}

func (s *authenticatorStub) Authenticate(_ context.Context, userName string, password string) (domain.Actor, error) {
	s.calls++
	if userName != s.actor.UserName || password != s.pass {
		return domain.Actor{}, service.ErrInvalidCredentials
	}
	return s.actor, nil
}

func login(t *testing.T, ta testAPI, userName string, password string) string {
	t.Helper()
	rec := ta.do(t, http.MethodPost, "/auth/login", domain.LoginRequest{UserName: userName, Password: password})
	expectStatus(t, rec, http.StatusOK)
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	return resp.AccessToken
}

func TestAuthManagerTokenRoundTrip(t *testing.T) {
	users := &authenticatorStub{actor: domain.Actor{UserID: 7, UserName: "cashier"}, pass: "pw-123456"}
	auth := NewAuthManager("round-trip-secret-round-trip-secret", time.Hour, users)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{UserName: "cashier", Password: "pw-123456"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.UserID != 7 {
		t.Fatalf("expected user 7, got %d", resp.UserID)
	}
	if _, err := time.Parse(time.RFC3339, resp.ExpiresAt); err != nil {
		t.Fatalf("expires_at not RFC3339: %v", err)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.UserID != 7 || actor.UserName != "cashier" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestAuthManagerRejectsBadCredentials(t *testing.T) {
	users := &authenticatorStub{actor: domain.Actor{UserID: 7, UserName: "cashier"}, pass: "pw-123456"}
	auth := NewAuthManager("round-trip-secret-round-trip-secret", time.Hour, users)

	_, err := auth.Login(context.Background(), domain.LoginRequest{UserName: "cashier", Password: "nope"})
	if !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := auth.Basic(context.Background(), "cashier", "pw-123456"); err != nil {
		t.Fatalf("basic auth: %v", err)
	}
	if users.calls != 2 {
		t.Fatalf("expected every check to reach the authenticator, got %d calls", users.calls)
	}
}

func TestAuthManagerRejectsForeignTokens(t *testing.T) {
	users := &authenticatorStub{actor: domain.Actor{UserID: 3, UserName: "ops"}, pass: "pw"}
	auth := NewAuthManager("first-secret-first-secret-first-secret", time.Hour, users)
	other := NewAuthManager("second-secret-second-secret-second", time.Hour, users)

	token, err := other.sign(domain.Actor{UserID: 3, UserName: "ops"}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected token from another secret to be rejected")
	}

	expired, err := auth.sign(domain.Actor{UserID: 3, UserName: "ops"}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.RegisteredClaims{
		Subject:   "3",
		Issuer:    "posledger",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := auth.ParseToken(raw); err == nil {
		t.Fatalf("expected alg=none token to be rejected")
	}

	badSubject := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{
		Subject:   "ops",
		Issuer:    "posledger",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err = badSubject.SignedString(auth.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(raw); err == nil || !strings.Contains(err.Error(), "subject") {
		t.Fatalf("expected non-numeric subject to be rejected, got %v", err)
	}
}

func TestHandleLogin(t *testing.T) {
	ta := newTestAPI(t)

	token := login(t, ta, "admin", testAdminPassword)
	actor, err := ta.auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.UserID != 1 || actor.UserName != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}

	rec := ta.do(t, http.MethodPost, "/auth/login", domain.LoginRequest{UserName: "admin", Password: "wrong"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = ta.do(t, http.MethodPost, "/auth/login", `{"user_name":"admin"}`)
	expectStatus(t, rec, http.StatusBadRequest)
	if msg := errorMessage(t, rec); msg != "password is required" {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestBearerTokenOwnsUpdate(t *testing.T) {
	ta := newTestAPI(t)
	token := login(t, ta, "admin", testAdminPassword)

	rec := ta.form(t, formRequest{path: "/user/update", fields: map[string]string{"user_id": "1", "password": "rotated-pass-1"}, token: token})
	expectStatus(t, rec, http.StatusOK)

	rec = ta.do(t, http.MethodPost, "/auth/login", domain.LoginRequest{UserName: "admin", Password: testAdminPassword})
	expectStatus(t, rec, http.StatusUnauthorized)
	login(t, ta, "admin", "rotated-pass-1")

	rec = ta.form(t, formRequest{path: "/user/update", fields: map[string]string{"user_id": "1"}, token: "garbage"})
	expectStatus(t, rec, http.StatusUnauthorized)
}
