package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/mail"
	"github.com/shopiq/shopiq-backend/internal/observability"
	"github.com/shopiq/shopiq-backend/internal/repository"
	"github.com/shopiq/shopiq-backend/internal/security"
)

// CredentialVerifier is the password primitive seam. The production
// implementation is bcrypt; tests substitute a counting fake to assert
// the timing-equalization invariant.
type CredentialVerifier interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type BcryptVerifier struct{}

func (BcryptVerifier) Hash(plaintext string) (string, error) { return security.HashPassword(plaintext) }
func (BcryptVerifier) Verify(plaintext, hash string) bool {
	return security.VerifyPassword(plaintext, hash)
}

const forgotPasswordTTL = time.Hour

// Principal is the result of a sign-in: exactly one of User or Employee
// is set.
type Principal struct {
	User     *domain.User
	Employee *domain.Employee
}

type AuthService struct {
	userRepo     repository.UserRepository
	employeeRepo repository.EmployeeRepository
	verifier     CredentialVerifier
	mailer       mail.Mailer
	appBaseURL   string

	// dummyHash keeps the comparison cost identical when no account
	// matches the presented email.
	dummyHash string
}

func NewAuthService(
	userRepo repository.UserRepository,
	employeeRepo repository.EmployeeRepository,
	verifier CredentialVerifier,
	mailer mail.Mailer,
	appBaseURL string,
) (*AuthService, error) {
	dummyHash, err := verifier.Hash("shopiq-equalization-placeholder-1")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{
		userRepo:     userRepo,
		employeeRepo: employeeRepo,
		verifier:     verifier,
		mailer:       mailer,
		appBaseURL:   appBaseURL,
		dummyHash:    dummyHash,
	}, nil
}

// SignIn authenticates against both principal tables. Both lookups and
// both password comparisons run on every call, whether or not either
// row exists, so response time cannot distinguish "no such account"
// from "wrong password" or reveal which table matched. Do not
// short-circuit this.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Principal, error) {
	var user *domain.User
	var employee *domain.Employee

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.userRepo.FindByEmail(email)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}
		user = u
		return nil
	})
	g.Go(func() error {
		e, err := s.employeeRepo.FindByEmail(email)
		if err != nil && !errors.Is(err, repository.ErrEmployeeNotFound) {
			return err
		}
		employee = e
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	userHash := s.dummyHash
	if user != nil {
		userHash = user.PasswordHash
	}
	employeeHash := s.dummyHash
	if employee != nil {
		employeeHash = employee.PasswordHash
	}

	userOK := s.verifier.Verify(password, userHash)
	employeeOK := s.verifier.Verify(password, employeeHash)

	// Emails are unique across both tables; user precedence is a
	// tiebreak that should never fire in practice.
	if user != nil && userOK {
		observability.RecordSignIn("user", "success")
		return &Principal{User: user}, nil
	}
	if employee != nil && employeeOK {
		observability.RecordSignIn("employee", "success")
		return &Principal{Employee: employee}, nil
	}
	observability.RecordSignIn("unknown", "failure")
	return nil, ErrInvalidCredentials
}

// SignUp creates a user principal. A duplicate email in either table
// reports the same ambiguous error as validation problems do not.
func (s *AuthService) SignUp(ctx context.Context, email, name, password string) (*domain.User, error) {
	if err := security.ValidatePassword(password); err != nil {
		return nil, err
	}
	taken, err := s.emailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}
	hash, err := s.verifier.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{Email: email, Name: name, PasswordHash: hash}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// ForgotPassword always reports success to the caller; whether a token
// was issued is never observable from the response.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}
		observability.RecordPasswordReset("forgot", "no_account")
		return nil
	}

	token, err := security.GenerateResetToken()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(forgotPasswordTTL)
	if err := s.userRepo.SetResetToken(user.ID, security.HashResetToken(token), expiresAt); err != nil {
		return err
	}
	observability.RecordPasswordReset("forgot", "issued")

	resetURL := fmt.Sprintf("%s/reset-password/start?token=%s", s.appBaseURL, token)
	name, addr := user.Name, user.Email
	mail.Dispatch(func(ctx context.Context) error {
		return s.mailer.SendPasswordResetEmail(ctx, mail.PasswordResetEmail{
			Email:    addr,
			Name:     name,
			ResetURL: resetURL,
		})
	})
	return nil
}

// ResetPassword consumes a token against whichever table holds it. The
// conditional update is the single-use gate: of two concurrent calls
// with the same token, exactly one matches the row.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := security.ValidatePassword(newPassword); err != nil {
		return err
	}
	newHash, err := s.verifier.Hash(newPassword)
	if err != nil {
		return err
	}
	tokenHash := security.HashResetToken(token)

	ok, err := s.userRepo.ConsumeResetToken(tokenHash, newHash)
	if err != nil {
		return err
	}
	if !ok {
		ok, err = s.employeeRepo.ConsumeResetToken(tokenHash, newHash)
		if err != nil {
			return err
		}
	}
	if !ok {
		observability.RecordPasswordReset("reset", "invalid_token")
		return ErrInvalidResetToken
	}
	observability.RecordPasswordReset("reset", "success")
	return nil
}

func (s *AuthService) emailTaken(ctx context.Context, email string) (bool, error) {
	return emailTakenAcrossTables(ctx, s.userRepo, s.employeeRepo, email)
}

// emailTakenAcrossTables enforces email uniqueness over both principal
// tables. Every account-creating path must run it: sign-in's
// user-over-employee precedence assumes a cross-table collision never
// exists.
func emailTakenAcrossTables(ctx context.Context, users repository.UserRepository, employees repository.EmployeeRepository, email string) (bool, error) {
	var userExists, employeeExists bool

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := users.FindByEmail(email)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil
			}
			return err
		}
		userExists = true
		return nil
	})
	g.Go(func() error {
		_, err := employees.FindByEmail(email)
		if err != nil {
			if errors.Is(err, repository.ErrEmployeeNotFound) {
				return nil
			}
			return err
		}
		employeeExists = true
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, err
	}
	return userExists || employeeExists, nil
}
