package models

import (
	"time"

	"gorm.io/gorm"
)

// Capability classes. Only jobseekers may apply to roles.
const (
	RoleFounder   = "founder"
	RoleInvestor  = "investor"
	RoleJobseeker = "jobseeker"
)

// Engagement is the project and role a user is committed to.
// ExitDate is set once the engagement is closed.
type Engagement struct {
	ProjectID uint       `json:"project_id"`
	Role      string     `json:"role"`
	JoinDate  time.Time  `json:"join_date"`
	ExitDate  *time.Time `json:"exit_date,omitempty"`
}

// User represents a platform account
type User struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Username          string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password          string         `gorm:"size:255" json:"-"` // bcrypt hash
	Email             string         `gorm:"uniqueIndex;size:255" json:"email"`
	Nickname          string         `gorm:"size:100" json:"nickname"`
	Avatar            string         `gorm:"size:500" json:"avatar"`
	Role              string         `gorm:"size:50;default:jobseeker" json:"role"` // founder, investor, jobseeker
	CurrentEngagement *Engagement    `gorm:"type:text;serializer:json" json:"current_engagement"`
	PastEngagements   []Engagement   `gorm:"type:text;serializer:json" json:"past_engagements"`
	IsActive          bool           `gorm:"default:true" json:"is_active"`
	LastLogin         *time.Time     `json:"last_login"`
	Version           int            `gorm:"not null;default:1" json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }
