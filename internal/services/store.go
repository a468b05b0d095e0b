package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/launchpad/backend/internal/lifecycle"
	"github.com/launchpad/backend/internal/models"
	"github.com/launchpad/backend/pkg/logger"
	"gorm.io/gorm"
)

// ErrConcurrentModification is returned when a versioned row changed between
// read and write.
var ErrConcurrentModification = errors.New("concurrent modification")

// errUnchanged lets a mutation finish without writing the project back.
var errUnchanged = errors.New("unchanged")

var projectColumns = []string{
	"name", "description", "team_size", "open_roles", "team_members", "applications", "version", "updated_at",
}

var userColumns = []string{
	"current_engagement", "past_engagements", "version", "updated_at",
}

// MutateFunc changes a project loaded inside tx. Other rows it writes must go
// through tx so they commit or roll back with the project.
type MutateFunc func(tx *gorm.DB, p *models.Project) error

// ProjectStore loads and persists project aggregates under optimistic
// concurrency.
type ProjectStore struct {
	db         *gorm.DB
	maxRetries int
}

func NewProjectStore(db *gorm.DB, maxRetries int) *ProjectStore {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ProjectStore{db: db, maxRetries: maxRetries}
}

// Get returns a project by ID
func (s *ProjectStore) Get(ctx context.Context, id uint) (*models.Project, error) {
	return loadProject(s.db.WithContext(ctx), id)
}

// Mutate loads project id, applies fn and writes the result back in one
// transaction. A write that loses a version race is retried from a fresh
// load, up to the configured number of retries.
func (s *ProjectStore) Mutate(ctx context.Context, id uint, fn MutateFunc) (*models.Project, error) {
	for attempt := 0; ; attempt++ {
		var out *models.Project
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			p, err := loadProject(tx, id)
			if err != nil {
				return err
			}
			if err := fn(tx, p); err != nil {
				if errors.Is(err, errUnchanged) {
					out = p
					return nil
				}
				return err
			}
			if err := lifecycle.CheckInvariants(p); err != nil {
				return err
			}
			if err := saveProject(tx, p); err != nil {
				return err
			}
			out = p
			return nil
		})
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrConcurrentModification) || attempt >= s.maxRetries {
			return nil, err
		}
		logger.Debug().Uint("project_id", id).Int("attempt", attempt+1).Msg("version conflict, retrying")
	}
}

func loadProject(db *gorm.DB, id uint) (*models.Project, error) {
	var p models.Project
	if err := db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: project %d", lifecycle.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

func saveProject(tx *gorm.DB, p *models.Project) error {
	expected := p.Version
	p.Version++
	result := tx.Model(p).Where("version = ?", expected).Select(projectColumns).Updates(p)
	if result.Error != nil {
		p.Version = expected
		return result.Error
	}
	if result.RowsAffected == 0 {
		p.Version = expected
		return fmt.Errorf("%w: project %d at version %d", ErrConcurrentModification, p.ID, expected)
	}
	return nil
}

// UserStore reads and writes the engagement state of users.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// With returns a store bound to tx.
func (s *UserStore) With(tx *gorm.DB) *UserStore {
	return &UserStore{db: tx}
}

// Get returns a user by ID. A missing user is gorm.ErrRecordNotFound.
func (s *UserStore) Get(id uint) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Save writes the user's engagements guarded by its version.
func (s *UserStore) Save(u *models.User) error {
	expected := u.Version
	u.Version++
	result := s.db.Model(u).Where("version = ?", expected).Select(userColumns).Updates(u)
	if result.Error != nil {
		u.Version = expected
		return result.Error
	}
	if result.RowsAffected == 0 {
		u.Version = expected
		return fmt.Errorf("%w: user %d at version %d", ErrConcurrentModification, u.ID, expected)
	}
	return nil
}
