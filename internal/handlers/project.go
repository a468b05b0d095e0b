package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/launchpad/backend/internal/lifecycle"
	"github.com/launchpad/backend/internal/middleware"
	"github.com/launchpad/backend/internal/services"
	"github.com/launchpad/backend/pkg/response"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List returns paginated projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.projectService.List(&req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, resp)
}

// GetByID returns a project. Applications are visible to its founder only.
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	if !lifecycle.IsFounder(project, middleware.GetUserID(c)) {
		project.Applications = nil
	}
	response.Success(c, project)
}

// Create creates a project owned by the caller
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Create(&req, middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, project)
}

// Update edits project details or adds roles
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), id, middleware.GetUserID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, project)
}

// Delete removes a project without members
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), id, middleware.GetUserID(c)); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "project deleted"})
}
