package service

import "errors"

var (
	// ErrUnauthorized is the sentinel thrown by Require accessors; Get
	// accessors return nil instead.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials covers both "no such account" and "wrong
	// password" so responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidResetToken covers unknown, expired, and already-consumed
	// tokens identically.
	ErrInvalidResetToken = errors.New("invalid or expired token")

	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidReferralCode = errors.New("invalid referral code")
)
