package security

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("Valid123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword("Valid123", hash) {
		t.Fatal("expected hash to verify against original password")
	}
	if VerifyPassword("Valid124", hash) {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	h1, err := HashPassword("Valid123")
	if err != nil {
		t.Fatalf("hash 1: %v", err)
	}
	h2, err := HashPassword("Valid123")
	if err != nil {
		t.Fatalf("hash 2: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct hashes for the same input")
	}
	if !VerifyPassword("Valid123", h1) || !VerifyPassword("Valid123", h2) {
		t.Fatal("expected both salted hashes to verify")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	if VerifyPassword("Valid123", "not-a-bcrypt-hash") {
		t.Fatal("expected malformed hash to verify as false")
	}
	if VerifyPassword("Valid123", "") {
		t.Fatal("expected empty hash to verify as false")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"too short", "short1A", ErrPasswordTooShort},
		{"over 72 bytes multibyte", strings.Repeat("ü", 35) + "Aa1", ErrPasswordTooLong},
		{"missing uppercase", "alllowercase1", ErrPasswordNoUpper},
		{"missing lowercase", "ALLUPPERCASE1", ErrPasswordNoLower},
		{"missing digit", "NoDigitsHere", ErrPasswordNoDigit},
		{"valid", "Valid123", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if !errors.Is(err, tc.want) {
				t.Fatalf("ValidatePassword(%q) = %v, want %v", tc.password, err, tc.want)
			}
		})
	}
}

func TestValidatePasswordByteLengthNotRuneLength(t *testing.T) {
	// 24 three-byte runes plus the required classes: 8+ runes but 72+ bytes.
	p := strings.Repeat("あ", 24) + "Aa1"
	if err := ValidatePassword(p); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected byte-length rejection, got %v", err)
	}
}
