package repository

import (
	"context"
	"errors"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrStoreNotFound = errors.New("store not found")

type StoreRepository interface {
	FindByID(id uint) (*domain.Store, error)
	FindByDomain(domainName string) (*domain.Store, error)
	// UpsertByDomain creates on first connect and refreshes the token,
	// scope and shop metadata on reconnect. Domain is the conflict key.
	UpsertByDomain(store *domain.Store) error
	ListByUserID(userID uint) ([]domain.Store, error)
	SetSyncStatus(storeID uint, status domain.SyncStatus) error
	Delete(storeID uint) error
}

type GormStoreRepository struct{ db *gorm.DB }

func NewStoreRepository(db *gorm.DB) StoreRepository { return &GormStoreRepository{db: db} }

func (r *GormStoreRepository) FindByID(id uint) (*domain.Store, error) {
	var s domain.Store
	err := r.db.First(&s, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "store", "find_by_id", "not_found")
			return nil, ErrStoreNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "store", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "store", "find_by_id", "success")
	return &s, nil
}

func (r *GormStoreRepository) FindByDomain(domainName string) (*domain.Store, error) {
	var s domain.Store
	err := r.db.Where("domain = ?", domainName).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "store", "find_by_domain", "not_found")
			return nil, ErrStoreNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "store", "find_by_domain", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "store", "find_by_domain", "success")
	return &s, nil
}

func (r *GormStoreRepository) UpsertByDomain(store *domain.Store) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "domain"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "access_token", "scope", "shop_name", "shop_email", "currency", "timezone", "updated_at",
		}),
	}).Create(store).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "store", "upsert_by_domain", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "store", "upsert_by_domain", "success")
	return nil
}

func (r *GormStoreRepository) ListByUserID(userID uint) ([]domain.Store, error) {
	var stores []domain.Store
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&stores).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "store", "list_by_user", "error")
		return stores, err
	}
	observability.RecordRepositoryOperation(context.Background(), "store", "list_by_user", "success")
	return stores, nil
}

func (r *GormStoreRepository) SetSyncStatus(storeID uint, status domain.SyncStatus) error {
	err := r.db.Model(&domain.Store{}).Where("id = ?", storeID).Update("sync_status", status).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "store", "set_sync_status", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "store", "set_sync_status", "success")
	return nil
}

func (r *GormStoreRepository) Delete(storeID uint) error {
	err := r.db.Delete(&domain.Store{}, storeID).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "store", "delete", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "store", "delete", "success")
	return nil
}
