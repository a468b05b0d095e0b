package models

import "time"

// SweepJob is an outbox row for the follow-up work of an acceptance that
// touches other projects. It is written in the acceptance transaction and
// removed once the sweep has completed.
type SweepJob struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"index;not null" json:"user_id"`
	KeepProjectID     uint      `gorm:"not null" json:"keep_project_id"`
	PreviousProjectID *uint     `json:"previous_project_id"`
	AcceptedAt        int64     `gorm:"not null" json:"accepted_at"` // unix nanoseconds
	Attempts          int       `gorm:"default:0" json:"attempts"`
	LastError         string    `gorm:"type:text" json:"last_error"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `gorm:"index" json:"updated_at"`
}

func (SweepJob) TableName() string { return "sweep_jobs" }
