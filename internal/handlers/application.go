package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/launchpad/backend/internal/middleware"
	"github.com/launchpad/backend/internal/services"
	"github.com/launchpad/backend/pkg/response"
)

type ApplicationHandler struct {
	appService *services.ApplicationService
}

func NewApplicationHandler(appService *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{appService: appService}
}

// Submit applies the caller to a role
// POST /api/projects/:id/applications
func (h *ApplicationHandler) Submit(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	app, err := h.appService.Submit(c.Request.Context(), projectID, middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, app)
}

// ListForProject returns the project's applications, optionally by status
// GET /api/projects/:id/applications?status=pending
func (h *ApplicationHandler) ListForProject(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}

	apps, err := h.appService.ListForProject(c.Request.Context(), projectID, middleware.GetUserID(c), c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, apps)
}

// Decide accepts or rejects a pending application
// POST /api/projects/:id/applications/:appId/decision
func (h *ApplicationHandler) Decide(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	app, err := h.appService.Process(c.Request.Context(), projectID, c.Param("appId"), req.Decision, middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, app)
}

// Leave ends the caller's membership
// POST /api/projects/:id/leave
func (h *ApplicationHandler) Leave(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.appService.Leave(c.Request.Context(), projectID, middleware.GetUserID(c)); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "left project"})
}

// RemoveMember lets the founder drop a member
// DELETE /api/projects/:id/members/:userId
func (h *ApplicationHandler) RemoveMember(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "userId")
	if !ok {
		return
	}

	if err := h.appService.RemoveMember(c.Request.Context(), projectID, memberID, middleware.GetUserID(c)); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "member removed"})
}

// Mine lists the caller's applications across projects
// GET /api/me/applications
func (h *ApplicationHandler) Mine(c *gin.Context) {
	apps, err := h.appService.ListForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, apps)
}
