package security

import (
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *SessionSigner {
	t.Helper()
	signer, err := NewSessionSigner("shopiq", "test-secret-at-least-32-bytes-long!!")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return signer
}

func TestNewSessionSignerRequiresSecret(t *testing.T) {
	if _, err := NewSessionSigner("shopiq", ""); err != ErrSecretNotConfigured {
		t.Fatalf("expected ErrSecretNotConfigured, got %v", err)
	}
}

func TestUserSessionRoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	raw, err := signer.SignUserSession(42, "a@example.com", "Ada", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := signer.Parse(raw, SessionKindUser)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.PrincipalID() != 42 || claims.Email != "a@example.com" || claims.Name != "Ada" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestStoreSessionRoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	raw, err := signer.SignStoreSession(7, "acme.myshopify.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := signer.Parse(raw, SessionKindStore)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.PrincipalID() != 7 || claims.Domain != "acme.myshopify.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestEmployeeSessionRoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	raw, err := signer.SignEmployeeSession(3, "s@shopiq.io", "Sam", "SALES_MEMBER", true, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := signer.Parse(raw, SessionKindEmployee)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Role != "SALES_MEMBER" || !claims.IsApproved {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongKind(t *testing.T) {
	signer := newTestSigner(t)
	raw, err := signer.SignUserSession(42, "a@example.com", "Ada", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := signer.Parse(raw, SessionKindEmployee); err == nil {
		t.Fatal("expected user token to fail the employee guard")
	}
	if _, err := signer.Parse(raw, SessionKindStore); err == nil {
		t.Fatal("expected user token to fail the store guard")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	signer := newTestSigner(t)
	raw, err := signer.SignUserSession(42, "a@example.com", "Ada", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := signer.Parse(raw, SessionKindUser); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signer := newTestSigner(t)
	other, err := NewSessionSigner("shopiq", "a-different-secret-also-32-bytes!!!!")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	raw, err := signer.SignUserSession(42, "a@example.com", "Ada", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := other.Parse(raw, SessionKindUser); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}
