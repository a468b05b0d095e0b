package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/launchpad/backend/internal/lifecycle"
	"github.com/launchpad/backend/internal/models"
	"gorm.io/gorm"
)

// ErrInvalidInput marks request data the service refuses.
var ErrInvalidInput = errors.New("invalid input")

type ProjectService struct {
	db    *gorm.DB
	store *ProjectStore
}

func NewProjectService(db *gorm.DB, store *ProjectStore) *ProjectService {
	return &ProjectService{db: db, store: store}
}

type ProjectListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Name      string `form:"name"`
	FounderID uint   `form:"founder_id"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type RoleRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Capacity    int    `json:"capacity" binding:"required,min=1"`
}

type CreateProjectRequest struct {
	Name        string        `json:"name" binding:"required"`
	Description string        `json:"description"`
	TeamSize    int           `json:"team_size" binding:"required,min=1"`
	Roles       []RoleRequest `json:"roles" binding:"dive"`
}

type UpdateProjectRequest struct {
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	TeamSize    *int          `json:"team_size" binding:"omitempty,min=1"`
	AddRoles    []RoleRequest `json:"add_roles" binding:"dive"`
}

// List returns paginated projects without their applications
func (s *ProjectService) List(req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	var projects []models.Project
	var total int64

	query := s.db.Model(&models.Project{})

	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.FounderID != 0 {
		query = query.Where("founder_id = ?", req.FounderID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Omit("applications").Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, err
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    projects,
	}, nil
}

// GetByID returns a project by ID
func (s *ProjectService) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	return s.store.Get(ctx, id)
}

// Create creates a new project owned by founderID
func (s *ProjectService) Create(req *CreateProjectRequest, founderID uint) (*models.Project, error) {
	project := models.Project{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		FounderID:    founderID,
		TeamSize:     req.TeamSize,
		OpenRoles:    []models.Role{},
		TeamMembers:  []models.Membership{},
		Applications: []models.Application{},
		Version:      1,
	}
	if project.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := addRoles(&project, req.Roles); err != nil {
		return nil, err
	}
	if err := lifecycle.CheckInvariants(&project); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.db.Create(&project).Error; err != nil {
		return nil, err
	}

	return &project, nil
}

// Update changes project details and adds roles. Only the founder may update.
func (s *ProjectService) Update(ctx context.Context, id, actingUserID uint, req *UpdateProjectRequest) (*models.Project, error) {
	return s.store.Mutate(ctx, id, func(tx *gorm.DB, p *models.Project) error {
		if !lifecycle.IsFounder(p, actingUserID) {
			return fmt.Errorf("%w: only the founder can update the project", lifecycle.ErrForbidden)
		}

		if name := strings.TrimSpace(req.Name); name != "" {
			p.Name = name
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.TeamSize != nil {
			if *req.TeamSize < len(p.TeamMembers) {
				return fmt.Errorf("%w: team size %d is below the current %d members", ErrInvalidInput, *req.TeamSize, len(p.TeamMembers))
			}
			p.TeamSize = *req.TeamSize
		}
		return addRoles(p, req.AddRoles)
	})
}

// Delete removes a project that has no members. Only the founder may delete.
func (s *ProjectService) Delete(ctx context.Context, id, actingUserID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := loadProject(tx, id)
		if err != nil {
			return err
		}
		if !lifecycle.IsFounder(p, actingUserID) {
			return fmt.Errorf("%w: only the founder can delete the project", lifecycle.ErrForbidden)
		}
		if len(p.TeamMembers) > 0 {
			return fmt.Errorf("%w: project still has %d members", lifecycle.ErrInvalidState, len(p.TeamMembers))
		}

		result := tx.Where("version = ?", p.Version).Delete(p)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: project %d", ErrConcurrentModification, id)
		}
		return tx.Where("project_id = ?", id).Delete(&models.ApplicantIndex{}).Error
	})
}

func addRoles(p *models.Project, roles []RoleRequest) error {
	for _, r := range roles {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			return fmt.Errorf("%w: role title is required", ErrInvalidInput)
		}
		if r.Capacity < 1 {
			return fmt.Errorf("%w: role %q needs a capacity of at least 1", ErrInvalidInput, title)
		}
		if p.Role(title) != nil {
			return fmt.Errorf("%w: role %q already exists", ErrInvalidInput, title)
		}
		p.OpenRoles = append(p.OpenRoles, models.Role{
			Title:       title,
			Description: r.Description,
			Capacity:    r.Capacity,
		})
	}
	return nil
}
