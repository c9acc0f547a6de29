package domain

import "time"

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// Store is a connected marketplace storefront. Domain is the immutable
// external identifier; reconnects update the token in place.
type Store struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Domain        string     `gorm:"size:255;uniqueIndex;not null" json:"domain"`
	UserID        *uint      `gorm:"index" json:"user_id,omitempty"`
	AccessToken   string     `gorm:"size:512;not null" json:"-"`
	Scope         string     `gorm:"size:512" json:"scope"`
	ShopName      string     `gorm:"size:255" json:"shop_name"`
	ShopEmail     string     `gorm:"size:255" json:"shop_email"`
	Currency      string     `gorm:"size:8" json:"currency"`
	Timezone      string     `gorm:"size:64" json:"timezone"`
	SyncStatus    SyncStatus `gorm:"size:16;not null;default:pending" json:"sync_status"`
	ProductCount  int        `gorm:"not null;default:0" json:"product_count"`
	OrderCount    int        `gorm:"not null;default:0" json:"order_count"`
	CustomerCount int        `gorm:"not null;default:0" json:"customer_count"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
