package models

import (
	"time"

	"gorm.io/gorm"
)

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationCancelled ApplicationStatus = "cancelled"
)

// Role is a capacity-limited open position within a project.
type Role struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Capacity    int    `json:"capacity"`
	FilledCount int    `json:"filled_count"`
}

// Membership assigns a user to one of the project's roles.
type Membership struct {
	UserID    uint      `json:"user_id"`
	RoleTitle string    `json:"role_title"`
	JoinDate  time.Time `json:"join_date"`
}

// Application is a user's request to fill a role.
type Application struct {
	ID          string            `json:"id"`
	UserID      uint              `json:"user_id"`
	RoleTitle   string            `json:"role_title"`
	Message     string            `json:"message"`
	Status      ApplicationStatus `json:"status"`
	AppliedDate time.Time         `json:"applied_date"`
}

// Project is the aggregate root for roles, team and applications.
// Nested collections are stored as JSON columns and written back as a whole,
// guarded by Version.
type Project struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:200;not null" json:"name"`
	Description  string         `gorm:"type:text" json:"description"`
	FounderID    uint           `gorm:"index;not null" json:"founder_id"`
	TeamSize     int            `gorm:"not null" json:"team_size"`
	OpenRoles    []Role         `gorm:"type:text;serializer:json" json:"open_roles"`
	TeamMembers  []Membership   `gorm:"type:text;serializer:json" json:"team_members"`
	Applications []Application  `gorm:"type:text;serializer:json" json:"applications,omitempty"`
	Version      int            `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }

// Role returns the role with the given title, or nil.
func (p *Project) Role(title string) *Role {
	for i := range p.OpenRoles {
		if p.OpenRoles[i].Title == title {
			return &p.OpenRoles[i]
		}
	}
	return nil
}

// Member returns the membership of userID, or nil.
func (p *Project) Member(userID uint) *Membership {
	for i := range p.TeamMembers {
		if p.TeamMembers[i].UserID == userID {
			return &p.TeamMembers[i]
		}
	}
	return nil
}

// Application returns the application with the given id, or nil.
func (p *Project) Application(id string) *Application {
	for i := range p.Applications {
		if p.Applications[i].ID == id {
			return &p.Applications[i]
		}
	}
	return nil
}
