package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session kinds. Each kind signs its own claims shape and is verified
// against its own expected kind, so a user token can never satisfy an
// employee guard even though all three share the signing secret.
const (
	SessionKindStore    = "store"
	SessionKindUser     = "user"
	SessionKindEmployee = "employee"
)

var ErrSecretNotConfigured = errors.New("session secret is not configured")

type SessionClaims struct {
	Kind       string `json:"kind"`
	Domain     string `json:"domain,omitempty"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	IsApproved bool   `json:"is_approved,omitempty"`
	jwt.RegisteredClaims
}

// PrincipalID parses the numeric subject. Zero means a malformed token,
// which Parse already rejects for tokens we issued.
func (c *SessionClaims) PrincipalID() uint {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

type SessionSigner struct {
	issuer string
	secret []byte
}

// NewSessionSigner fails on an empty secret. This is a boot-time
// invariant: a server without a signing secret must not start.
func NewSessionSigner(issuer, secret string) (*SessionSigner, error) {
	if secret == "" {
		return nil, ErrSecretNotConfigured
	}
	return &SessionSigner{issuer: issuer, secret: []byte(secret)}, nil
}

func (s *SessionSigner) SignStoreSession(storeID uint, domain string, ttl time.Duration) (string, error) {
	return s.sign(SessionClaims{Kind: SessionKindStore, Domain: domain}, storeID, ttl)
}

func (s *SessionSigner) SignUserSession(userID uint, email, name string, ttl time.Duration) (string, error) {
	return s.sign(SessionClaims{Kind: SessionKindUser, Email: email, Name: name}, userID, ttl)
}

func (s *SessionSigner) SignEmployeeSession(employeeID uint, email, name, role string, isApproved bool, ttl time.Duration) (string, error) {
	return s.sign(SessionClaims{Kind: SessionKindEmployee, Email: email, Name: name, Role: role, IsApproved: isApproved}, employeeID, ttl)
}

func (s *SessionSigner) sign(claims SessionClaims, principalID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   fmt.Sprintf("%d", principalID),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies signature, expiry, issuer and kind. Any failure returns
// an error; callers that want nil-on-invalid wrap this themselves.
func (s *SessionSigner) Parse(raw, kind string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("unexpected session kind: %s", claims.Kind)
	}
	return claims, nil
}
