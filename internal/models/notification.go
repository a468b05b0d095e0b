package models

import "time"

// Notification kinds
const (
	NotifyApplicationReceived     = "application_received"
	NotifyApplicationAccepted     = "application_accepted"
	NotifyApplicationRejected     = "application_rejected"
	NotifyApplicationAutoRejected = "application_auto_rejected"
	NotifyApplicationCancelled    = "application_cancelled"
	NotifyMemberLeft              = "member_left"
	NotifyMemberRemoved           = "member_removed"
	NotifyEngagementClosed        = "engagement_closed"
)

// Notification is a persisted message for a single recipient.
type Notification struct {
	ID          uint                   `gorm:"primaryKey" json:"id"`
	RecipientID uint                   `gorm:"index;not null" json:"recipient_id"`
	Kind        string                 `gorm:"size:50;not null" json:"kind"`
	Payload     map[string]interface{} `gorm:"type:text;serializer:json" json:"payload"`
	Read        bool                   `gorm:"column:is_read;index;default:false" json:"read"`
	CreatedAt   time.Time              `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
