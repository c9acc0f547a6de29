package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/observability"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	FindByIDWithStores(id uint) (*domain.User, error)
	Create(user *domain.User) error
	Update(user *domain.User) error
	SetResetToken(userID uint, tokenHash string, expiresAt time.Time) error
	// ConsumeResetToken atomically sets the new password hash and clears
	// the token in one conditional UPDATE. It reports false when no row
	// matched, which covers wrong token, expired token, and a concurrent
	// consumer that won the race.
	ConsumeResetToken(tokenHash, newPasswordHash string) (bool, error)
	MarkSubscribed(userID uint, at time.Time) (bool, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByIDWithStores(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.Preload("Stores").First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_with_stores", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_with_stores", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_with_stores", "success")
	return &u, nil
}

func (r *GormUserRepository) Create(user *domain.User) error {
	err := r.db.Create(user).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) Update(user *domain.User) error {
	err := r.db.Save(user).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "update", "success")
	return nil
}

func (r *GormUserRepository) SetResetToken(userID uint, tokenHash string, expiresAt time.Time) error {
	err := r.db.Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]any{
			"reset_token_hash":       tokenHash,
			"reset_token_expires_at": expiresAt,
		}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "set_reset_token", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "set_reset_token", "success")
	return nil
}

func (r *GormUserRepository) ConsumeResetToken(tokenHash, newPasswordHash string) (bool, error) {
	res := r.db.Model(&domain.User{}).
		Where("reset_token_hash = ? AND reset_token_expires_at > ?", tokenHash, time.Now()).
		Updates(map[string]any{
			"password_hash":          newPasswordHash,
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "consume_reset_token", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "consume_reset_token", "not_found")
		return false, nil
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "consume_reset_token", "success")
	return true, nil
}

func (r *GormUserRepository) MarkSubscribed(userID uint, at time.Time) (bool, error) {
	res := r.db.Model(&domain.User{}).
		Where("id = ? AND subscribed_at IS NULL", userID).
		Update("subscribed_at", at)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "mark_subscribed", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "mark_subscribed", "success")
	return res.RowsAffected > 0, nil
}
