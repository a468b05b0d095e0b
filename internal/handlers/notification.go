package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/launchpad/backend/internal/middleware"
	"github.com/launchpad/backend/internal/services"
	"github.com/launchpad/backend/pkg/response"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List returns the caller's notifications, newest first
// GET /api/notifications?unread=true
func (h *NotificationHandler) List(c *gin.Context) {
	var req services.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.notificationService.List(middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, resp)
}

// MarkRead marks one notification as read
// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(middleware.GetUserID(c), id); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"id": id, "read": true})
}

// MarkAllRead marks every unread notification of the caller as read
// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.notificationService.MarkAllRead(middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"updated": updated})
}
