package domain

import "time"

type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Email               string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name                string     `gorm:"size:255;not null" json:"name"`
	PasswordHash        string     `gorm:"size:255;not null" json:"-"`
	ResetTokenHash      *string    `gorm:"size:64;index" json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	TrialEndsAt         *time.Time `json:"trial_ends_at,omitempty"`
	SubscribedAt        *time.Time `json:"subscribed_at,omitempty"`
	ReferralLinkID      *uint      `gorm:"index" json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Stores []Store `gorm:"foreignKey:UserID" json:"stores,omitempty"`
}

// OnTrial reports whether the user is inside an unexpired trial window
// and has not yet converted to a paid subscription.
func (u *User) OnTrial(now time.Time) bool {
	return u.SubscribedAt == nil && u.TrialEndsAt != nil && u.TrialEndsAt.After(now)
}
