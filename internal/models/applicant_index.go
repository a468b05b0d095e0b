package models

import "time"

// ApplicantIndex records that a user has applied to a project at least once.
// It is only a lookup aid; the project's applications remain authoritative.
type ApplicantIndex struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_applicant_project;not null" json:"user_id"`
	ProjectID uint      `gorm:"uniqueIndex:idx_applicant_project;index;not null" json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (ApplicantIndex) TableName() string { return "applicant_index" }
