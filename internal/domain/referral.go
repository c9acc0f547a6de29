package domain

import "time"

// ReferralLink is a sales member's shareable trial link. Code is the
// opaque value embedded in the public redemption URL.
type ReferralLink struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Code            string    `gorm:"size:64;uniqueIndex;not null" json:"code"`
	EmployeeID      uint      `gorm:"index;not null" json:"employee_id"`
	TrialDays       int       `gorm:"not null;default:14" json:"trial_days"`
	SignupCount     int       `gorm:"not null;default:0" json:"signup_count"`
	ConversionCount int       `gorm:"not null;default:0" json:"conversion_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CommissionStatus string

const (
	CommissionPending CommissionStatus = "pending"
	CommissionPaid    CommissionStatus = "paid"
)

type Commission struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	EmployeeID  uint             `gorm:"index;not null" json:"employee_id"`
	UserID      uint             `gorm:"index;not null" json:"user_id"`
	AmountCents int64            `gorm:"not null" json:"amount_cents"`
	Currency    string           `gorm:"size:8;not null;default:USD" json:"currency"`
	Status      CommissionStatus `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
