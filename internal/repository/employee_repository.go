package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/observability"

	"gorm.io/gorm"
)

var ErrEmployeeNotFound = errors.New("employee not found")

type EmployeeRepository interface {
	FindByID(id uint) (*domain.Employee, error)
	FindByEmail(email string) (*domain.Employee, error)
	Create(employee *domain.Employee) error
	List() ([]domain.Employee, error)
	SetApproval(employeeID uint, approved bool) (bool, error)
	SetResetToken(employeeID uint, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(tokenHash, newPasswordHash string) (bool, error)
}

type GormEmployeeRepository struct{ db *gorm.DB }

func NewEmployeeRepository(db *gorm.DB) EmployeeRepository { return &GormEmployeeRepository{db: db} }

func (r *GormEmployeeRepository) FindByID(id uint) (*domain.Employee, error) {
	var e domain.Employee
	err := r.db.First(&e, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "employee", "find_by_id", "not_found")
			return nil, ErrEmployeeNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "employee", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "employee", "find_by_id", "success")
	return &e, nil
}

func (r *GormEmployeeRepository) FindByEmail(email string) (*domain.Employee, error) {
	var e domain.Employee
	err := r.db.Where("email = ?", email).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "employee", "find_by_email", "not_found")
			return nil, ErrEmployeeNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "employee", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "employee", "find_by_email", "success")
	return &e, nil
}

func (r *GormEmployeeRepository) Create(employee *domain.Employee) error {
	err := r.db.Create(employee).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "employee", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "employee", "create", "success")
	return nil
}

func (r *GormEmployeeRepository) List() ([]domain.Employee, error) {
	var employees []domain.Employee
	err := r.db.Order("created_at ASC").Find(&employees).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "employee", "list", "error")
		return employees, err
	}
	observability.RecordRepositoryOperation(context.Background(), "employee", "list", "success")
	return employees, nil
}

func (r *GormEmployeeRepository) SetApproval(employeeID uint, approved bool) (bool, error) {
	res := r.db.Model(&domain.Employee{}).
		Where("id = ? AND role = ?", employeeID, domain.RoleSalesMember).
		Update("is_approved", approved)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "employee", "set_approval", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "employee", "set_approval", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormEmployeeRepository) SetResetToken(employeeID uint, tokenHash string, expiresAt time.Time) error {
	err := r.db.Model(&domain.Employee{}).Where("id = ?", employeeID).
		Updates(map[string]any{
			"reset_token_hash":       tokenHash,
			"reset_token_expires_at": expiresAt,
		}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "employee", "set_reset_token", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "employee", "set_reset_token", "success")
	return nil
}

// ConsumeResetToken is the single-use gate for both the forced-change and
// invite flows; two concurrent consumers cannot both match the row.
func (r *GormEmployeeRepository) ConsumeResetToken(tokenHash, newPasswordHash string) (bool, error) {
	res := r.db.Model(&domain.Employee{}).
		Where("reset_token_hash = ? AND reset_token_expires_at > ?", tokenHash, time.Now()).
		Updates(map[string]any{
			"password_hash":          newPasswordHash,
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "employee", "consume_reset_token", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "employee", "consume_reset_token", "not_found")
		return false, nil
	}
	observability.RecordRepositoryOperation(context.Background(), "employee", "consume_reset_token", "success")
	return true, nil
}
