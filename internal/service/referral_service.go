package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/observability"
	"github.com/shopiq/shopiq-backend/internal/repository"
	"github.com/shopiq/shopiq-backend/internal/security"
)

const defaultTrialDays = 14

// Commission paid per converted referral, in cents.
const conversionCommissionCents = 5000

// ReferralService owns sales-member trial links: creation, public
// redemption, and conversion accounting.
type ReferralService struct {
	referralRepo repository.ReferralRepository
	userRepo     repository.UserRepository
	employeeRepo repository.EmployeeRepository
	verifier     CredentialVerifier
}

func NewReferralService(
	referralRepo repository.ReferralRepository,
	userRepo repository.UserRepository,
	employeeRepo repository.EmployeeRepository,
	verifier CredentialVerifier,
) *ReferralService {
	return &ReferralService{
		referralRepo: referralRepo,
		userRepo:     userRepo,
		employeeRepo: employeeRepo,
		verifier:     verifier,
	}
}

// CreateLink mints a trial link for a sales member. Codes are UUIDs:
// unguessable enough for a public URL while staying short.
func (s *ReferralService) CreateLink(ctx context.Context, employeeID uint, trialDays int) (*domain.ReferralLink, error) {
	if trialDays <= 0 {
		trialDays = defaultTrialDays
	}
	link := &domain.ReferralLink{
		Code:       uuid.NewString(),
		EmployeeID: employeeID,
		TrialDays:  trialDays,
	}
	if err := s.referralRepo.Create(link); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *ReferralService) ListLinks(ctx context.Context, employeeID uint) ([]domain.ReferralLink, error) {
	return s.referralRepo.ListByEmployee(employeeID)
}

func (s *ReferralService) ListCommissions(ctx context.Context, employeeID uint) ([]domain.Commission, error) {
	return s.referralRepo.ListCommissionsByEmployee(employeeID)
}

// RedeemTrial is the public endpoint behind a referral link: it signs
// the visitor up as a trial user attributed to the link. Unknown codes
// fail with the same error regardless of whether the code ever existed.
func (s *ReferralService) RedeemTrial(ctx context.Context, code, email, name, password string) (*domain.User, error) {
	link, err := s.referralRepo.FindByCode(code)
	if err != nil {
		if errors.Is(err, repository.ErrReferralNotFound) {
			observability.RecordTrialRedeem("invalid_code")
			return nil, ErrInvalidReferralCode
		}
		return nil, err
	}

	if err := security.ValidatePassword(password); err != nil {
		return nil, err
	}
	taken, err := emailTakenAcrossTables(ctx, s.userRepo, s.employeeRepo, email)
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
	trialEnds := time.Now().AddDate(0, 0, link.TrialDays)
	user := &domain.User{
		Email:          email,
		Name:           name,
		PasswordHash:   hash,
		TrialEndsAt:    &trialEnds,
		ReferralLinkID: &link.ID,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	if err := s.referralRepo.IncrementSignups(link.ID); err != nil {
		return nil, err
	}
	observability.RecordTrialRedeem("success")
	return user, nil
}

// RecordConversion marks a referred user as subscribed and credits the
// owning sales member once. MarkSubscribed is conditional on the user
// not already being subscribed, so a replay cannot double-pay.
func (s *ReferralService) RecordConversion(ctx context.Context, userID uint) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}

	converted, err := s.userRepo.MarkSubscribed(user.ID, time.Now())
	if err != nil {
		return err
	}
	if !converted {
		return nil
	}
	if user.ReferralLinkID == nil {
		return nil
	}

	link, err := s.referralRepo.FindByID(*user.ReferralLinkID)
	if err != nil {
		if errors.Is(err, repository.ErrReferralNotFound) {
			return nil
		}
		return err
	}
	if err := s.referralRepo.IncrementConversions(link.ID); err != nil {
		return err
	}
	return s.referralRepo.CreateCommission(&domain.Commission{
		EmployeeID:  link.EmployeeID,
		UserID:      user.ID,
		AmountCents: conversionCommissionCents,
		Currency:    "USD",
		Status:      domain.CommissionPending,
	})
}
