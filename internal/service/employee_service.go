package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/mail"
	"github.com/shopiq/shopiq-backend/internal/repository"
	"github.com/shopiq/shopiq-backend/internal/security"
)

const (
	inviteTokenTTL      = 24 * time.Hour
	forcedResetTokenTTL = 15 * time.Minute
)

// EmployeeService covers the founder-side lifecycle of sales members:
// invitation, approval, and forced credential rotation. Invited
// employees never receive a usable password; the invite token is the
// only way to set one.
type EmployeeService struct {
	employeeRepo repository.EmployeeRepository
	userRepo     repository.UserRepository
	verifier     CredentialVerifier
	mailer       mail.Mailer
	appBaseURL   string
}

func NewEmployeeService(
	employeeRepo repository.EmployeeRepository,
	userRepo repository.UserRepository,
	verifier CredentialVerifier,
	mailer mail.Mailer,
	appBaseURL string,
) *EmployeeService {
	return &EmployeeService{
		employeeRepo: employeeRepo,
		userRepo:     userRepo,
		verifier:     verifier,
		mailer:       mailer,
		appBaseURL:   appBaseURL,
	}
}

// Invite creates an unapproved SALES_MEMBER with a placeholder password
// hash and mails a 24-hour setup link. The placeholder is a fresh
// random token that is thrown away, so the account cannot be signed
// into until the invite is accepted.
func (s *EmployeeService) Invite(ctx context.Context, invitedBy *domain.Employee, email, name string) (*domain.Employee, error) {
	taken, err := s.emailInUse(email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	placeholder, err := security.GenerateResetToken()
	if err != nil {
		return nil, err
	}
	placeholderHash, err := s.verifier.Hash(placeholder)
	if err != nil {
		return nil, err
	}

	employee := &domain.Employee{
		Email:        email,
		Name:         name,
		PasswordHash: placeholderHash,
		Role:         domain.RoleSalesMember,
		IsApproved:   false,
	}
	if invitedBy != nil {
		employee.InvitedByID = &invitedBy.ID
	}
	if err := s.employeeRepo.Create(employee); err != nil {
		return nil, err
	}

	token, err := security.GenerateResetToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(inviteTokenTTL)
	if err := s.employeeRepo.SetResetToken(employee.ID, security.HashResetToken(token), expiresAt); err != nil {
		return nil, err
	}

	resetURL := fmt.Sprintf("%s/reset-password/start?token=%s", s.appBaseURL, token)
	dashboardURL := s.appBaseURL + "/sales/dashboard"
	addr := employee.Email
	mail.Dispatch(func(ctx context.Context) error {
		return s.mailer.SendSalesWelcomeEmail(ctx, mail.SalesWelcomeEmail{
			Email:        addr,
			Name:         name,
			ResetURL:     resetURL,
			DashboardURL: dashboardURL,
			ExpiryHours:  int(inviteTokenTTL / time.Hour),
		})
	})
	return employee, nil
}

// List returns every employee for the founder roster view.
func (s *EmployeeService) List(ctx context.Context) ([]domain.Employee, error) {
	return s.employeeRepo.List()
}

// SetApproval flips the approval bit on a sales member. It reports
// false when the target does not exist or is not a SALES_MEMBER;
// founders cannot be approved or revoked. The change bites on the
// target's next request because guards re-read the row.
func (s *EmployeeService) SetApproval(ctx context.Context, employeeID uint, approved bool) (bool, error) {
	return s.employeeRepo.SetApproval(employeeID, approved)
}

// ForcePasswordChange rotates an employee's credential path: a
// 15-minute reset token is issued, only its hash is stored, and the
// raw token is mailed to the employee. Any previously issued token for
// the employee is superseded.
func (s *EmployeeService) ForcePasswordChange(ctx context.Context, employeeID uint) error {
	employee, err := s.employeeRepo.FindByID(employeeID)
	if err != nil {
		return err
	}
	token, err := security.GenerateResetToken()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(forcedResetTokenTTL)
	if err := s.employeeRepo.SetResetToken(employee.ID, security.HashResetToken(token), expiresAt); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password/start?token=%s", s.appBaseURL, token)
	name, addr := employee.Name, employee.Email
	mail.Dispatch(func(ctx context.Context) error {
		return s.mailer.SendPasswordResetEmail(ctx, mail.PasswordResetEmail{
			Email:    addr,
			Name:     name,
			ResetURL: resetURL,
		})
	})
	return nil
}

func (s *EmployeeService) emailInUse(email string) (bool, error) {
	if _, err := s.employeeRepo.FindByEmail(email); err == nil {
		return true, nil
	} else if err != repository.ErrEmployeeNotFound {
		return false, err
	}
	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return true, nil
	} else if err != repository.ErrUserNotFound {
		return false, err
	}
	return false, nil
}
