package repository

import (
	"context"
	"errors"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/observability"

	"gorm.io/gorm"
)

var ErrReferralNotFound = errors.New("referral link not found")

type ReferralRepository interface {
	Create(link *domain.ReferralLink) error
	FindByID(id uint) (*domain.ReferralLink, error)
	FindByCode(code string) (*domain.ReferralLink, error)
	ListByEmployee(employeeID uint) ([]domain.ReferralLink, error)
	IncrementSignups(linkID uint) error
	IncrementConversions(linkID uint) error
	CreateCommission(c *domain.Commission) error
	ListCommissionsByEmployee(employeeID uint) ([]domain.Commission, error)
}

type GormReferralRepository struct{ db *gorm.DB }

func NewReferralRepository(db *gorm.DB) ReferralRepository { return &GormReferralRepository{db: db} }

func (r *GormReferralRepository) Create(link *domain.ReferralLink) error {
	err := r.db.Create(link).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "referral", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "referral", "create", "success")
	return nil
}

func (r *GormReferralRepository) FindByID(id uint) (*domain.ReferralLink, error) {
	var link domain.ReferralLink
	err := r.db.First(&link, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "referral", "find_by_id", "not_found")
			return nil, ErrReferralNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "referral", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "referral", "find_by_id", "success")
	return &link, nil
}

func (r *GormReferralRepository) FindByCode(code string) (*domain.ReferralLink, error) {
	var link domain.ReferralLink
	err := r.db.Where("code = ?", code).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "referral", "find_by_code", "not_found")
			return nil, ErrReferralNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "referral", "find_by_code", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "referral", "find_by_code", "success")
	return &link, nil
}

func (r *GormReferralRepository) ListByEmployee(employeeID uint) ([]domain.ReferralLink, error) {
	var links []domain.ReferralLink
	err := r.db.Where("employee_id = ?", employeeID).Order("created_at DESC").Find(&links).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "referral", "list_by_employee", "error")
		return links, err
	}
	observability.RecordRepositoryOperation(context.Background(), "referral", "list_by_employee", "success")
	return links, nil
}

func (r *GormReferralRepository) IncrementSignups(linkID uint) error {
	err := r.db.Model(&domain.ReferralLink{}).Where("id = ?", linkID).
		UpdateColumn("signup_count", gorm.Expr("signup_count + 1")).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "referral", "increment_signups", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "referral", "increment_signups", "success")
	return nil
}

func (r *GormReferralRepository) IncrementConversions(linkID uint) error {
	err := r.db.Model(&domain.ReferralLink{}).Where("id = ?", linkID).
		UpdateColumn("conversion_count", gorm.Expr("conversion_count + 1")).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "referral", "increment_conversions", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "referral", "increment_conversions", "success")
	return nil
}

func (r *GormReferralRepository) CreateCommission(c *domain.Commission) error {
	err := r.db.Create(c).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "commission", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "commission", "create", "success")
	return nil
}

func (r *GormReferralRepository) ListCommissionsByEmployee(employeeID uint) ([]domain.Commission, error) {
	var commissions []domain.Commission
	err := r.db.Where("employee_id = ?", employeeID).Order("created_at DESC").Find(&commissions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "commission", "list_by_employee", "error")
		return commissions, err
	}
	observability.RecordRepositoryOperation(context.Background(), "commission", "list_by_employee", "success")
	return commissions, nil
}
