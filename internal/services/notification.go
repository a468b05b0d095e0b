package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/launchpad/backend/internal/lifecycle"
	"github.com/launchpad/backend/internal/models"
	"gorm.io/gorm"
)

// Notifier delivers a notification to a user. Callers emit after commit and
// treat failures as non-fatal.
type Notifier interface {
	Emit(recipientID uint, kind string, payload map[string]interface{}) error
}

// QueueNotifier emits notifications through the task queue.
type QueueNotifier struct {
	queue TaskQueue
}

func NewQueueNotifier(queue TaskQueue) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

func (n *QueueNotifier) Emit(recipientID uint, kind string, payload map[string]interface{}) error {
	return n.queue.Enqueue(&NotificationTask{
		RecipientID: recipientID,
		Kind:        kind,
		Payload:     payload,
	})
}

type NotificationService struct {
	db  *gorm.DB
	hub *SSEHub
}

func NewNotificationService(db *gorm.DB, hub *SSEHub) *NotificationService {
	return &NotificationService{db: db, hub: hub}
}

type NotificationListRequest struct {
	Page       int  `form:"page" binding:"omitempty,min=1"`
	PageSize   int  `form:"page_size" binding:"omitempty,min=1,max=100"`
	UnreadOnly bool `form:"unread"`
}

type NotificationListResponse struct {
	Total    int64                 `json:"total"`
	Unread   int64                 `json:"unread"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Items    []models.Notification `json:"items"`
}

// Deliver persists a queued notification and pushes it to the recipient's
// open streams. It is the task queue processor.
func (s *NotificationService) Deliver(ctx context.Context, task *NotificationTask) error {
	n := models.Notification{
		RecipientID: task.RecipientID,
		Kind:        task.Kind,
		Payload:     task.Payload,
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	if s.hub != nil {
		s.hub.Publish(n)
	}
	return nil
}

// List returns the user's notifications, newest first
func (s *NotificationService) List(userID uint, req *NotificationListRequest) (*NotificationListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Notification{}).Where("recipient_id = ?", userID)
	if req.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Notification
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}

	unread, err := s.UnreadCount(userID)
	if err != nil {
		return nil, err
	}

	return &NotificationListResponse{
		Total:    total,
		Unread:   unread,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// MarkRead marks one of the user's notifications as read
func (s *NotificationService) MarkRead(userID, id uint) error {
	var n models.Notification
	if err := s.db.Where("id = ? AND recipient_id = ?", id, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: notification %d", lifecycle.ErrNotFound, id)
		}
		return err
	}
	if n.Read {
		return nil
	}
	return s.db.Model(&n).Update("is_read", true).Error
}

// MarkAllRead marks every unread notification of the user and returns how
// many changed.
func (s *NotificationService) MarkAllRead(userID uint) (int64, error) {
	result := s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
