package domain

import "time"

type EmployeeRole string

const (
	RoleFounder     EmployeeRole = "FOUNDER"
	RoleSalesMember EmployeeRole = "SALES_MEMBER"
)

type Employee struct {
	ID                  uint         `gorm:"primaryKey" json:"id"`
	Email               string       `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name                string       `gorm:"size:255;not null" json:"name"`
	Role                EmployeeRole `gorm:"size:32;not null;default:SALES_MEMBER" json:"role"`
	IsApproved          bool         `gorm:"not null;default:false" json:"is_approved"`
	PasswordHash        string       `gorm:"size:255;not null" json:"-"`
	ResetTokenHash      *string      `gorm:"size:64;index" json:"-"`
	ResetTokenExpiresAt *time.Time   `json:"-"`
	InvitedByID         *uint        `gorm:"index" json:"-"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}
