package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/launchpad/backend/internal/lifecycle"
	"github.com/launchpad/backend/internal/models"
	"github.com/launchpad/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplicationService runs lifecycle operations against storage. Each call is
// one load-mutate-persist cycle on the project; notifications and the
// cross-project sweep follow the commit.
type ApplicationService struct {
	db       *gorm.DB
	projects *ProjectStore
	users    *UserStore
	notifier Notifier
	sweeper  *SweepService
	now      func() time.Time
}

func NewApplicationService(db *gorm.DB, projects *ProjectStore, notifier Notifier, sweeper *SweepService) *ApplicationService {
	return &ApplicationService{
		db:       db,
		projects: projects,
		users:    NewUserStore(db),
		notifier: notifier,
		sweeper:  sweeper,
		now:      time.Now,
	}
}

type SubmitApplicationRequest struct {
	RoleTitle string `json:"role_title" binding:"required"`
	Message   string `json:"message" binding:"max=2000"`
}

type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

// UserApplication is an application together with the project it targets
type UserApplication struct {
	models.Application
	ProjectID   uint   `json:"project_id"`
	ProjectName string `json:"project_name"`
}

// Submit files an application by userID for a role in the project
func (s *ApplicationService) Submit(ctx context.Context, projectID, userID uint, req *SubmitApplicationRequest) (*models.Application, error) {
	var res *lifecycle.Result
	_, err := s.projects.Mutate(ctx, projectID, func(tx *gorm.DB, p *models.Project) error {
		u, err := s.loadUser(tx, userID)
		if err != nil {
			return err
		}
		res, err = lifecycle.Submit(p, u, req.RoleTitle, req.Message, s.now())
		if err != nil {
			return err
		}
		// Conflicts with an acceptance of u elsewhere; the retry sees the engagement.
		if err := s.users.With(tx).Save(u); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ApplicantIndex{UserID: userID, ProjectID: projectID}).Error
	})
	if err != nil {
		return nil, err
	}

	emitEvents(s.notifier, res.Events)
	app := *res.Application
	logger.Info().Uint("project_id", projectID).Uint("user_id", userID).Str("application_id", app.ID).Msg("application submitted")
	return &app, nil
}

// Process applies the founder's decision to a pending application
func (s *ApplicationService) Process(ctx context.Context, projectID uint, applicationID, decision string, actingUserID uint) (*models.Application, error) {
	var (
		res *lifecycle.Result
		job *models.SweepJob
	)
	_, err := s.projects.Mutate(ctx, projectID, func(tx *gorm.DB, p *models.Project) error {
		job = nil

		var applicant *models.User
		if app := p.Application(applicationID); app != nil && lifecycle.Decision(decision) == lifecycle.DecisionAccept {
			u, err := s.users.With(tx).Get(app.UserID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			applicant = u
		}

		var err error
		res, err = lifecycle.Process(p, applicationID, lifecycle.Decision(decision), actingUserID, applicant, s.now())
		if err != nil {
			return err
		}
		if res.Sweep == nil {
			return nil
		}

		if err := s.users.With(tx).Save(applicant); err != nil {
			return err
		}
		job = &models.SweepJob{
			UserID:            res.Sweep.UserID,
			KeepProjectID:     res.Sweep.KeepProjectID,
			PreviousProjectID: res.Sweep.PreviousProjectID,
			AcceptedAt:        res.Sweep.AcceptedAt.UnixNano(),
		}
		return tx.Create(job).Error
	})
	if err != nil {
		return nil, err
	}

	emitEvents(s.notifier, res.Events)
	app := *res.Application
	logger.Info().Uint("project_id", projectID).Str("application_id", app.ID).Str("status", string(app.Status)).Msg("application processed")

	if job != nil && s.sweeper != nil {
		// A failed sweep stays in the outbox for the scheduler
		_ = s.sweeper.Run(context.WithoutCancel(ctx), job)
	}
	return &app, nil
}

// Leave removes the user from the project's team at their own request
func (s *ApplicationService) Leave(ctx context.Context, projectID, userID uint) error {
	var res *lifecycle.Result
	_, err := s.projects.Mutate(ctx, projectID, func(tx *gorm.DB, p *models.Project) error {
		u, err := s.loadUser(tx, userID)
		if err != nil {
			return err
		}
		res, err = lifecycle.Leave(p, u, s.now())
		if err != nil {
			return err
		}
		return s.users.With(tx).Save(u)
	})
	if err != nil {
		return err
	}

	emitEvents(s.notifier, res.Events)
	logger.Info().Uint("project_id", projectID).Uint("user_id", userID).Msg("member left")
	return nil
}

// RemoveMember takes memberID off the team on the founder's behalf
func (s *ApplicationService) RemoveMember(ctx context.Context, projectID, memberID, actingUserID uint) error {
	var res *lifecycle.Result
	_, err := s.projects.Mutate(ctx, projectID, func(tx *gorm.DB, p *models.Project) error {
		member, err := s.users.With(tx).Get(memberID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		res, err = lifecycle.Remove(p, memberID, actingUserID, member, s.now())
		if err != nil {
			return err
		}
		if member == nil {
			return nil
		}
		return s.users.With(tx).Save(member)
	})
	if err != nil {
		return err
	}

	emitEvents(s.notifier, res.Events)
	logger.Info().Uint("project_id", projectID).Uint("user_id", memberID).Msg("member removed")
	return nil
}

// ListForProject returns the project's applications to its founder, newest
// first, optionally filtered by status.
func (s *ApplicationService) ListForProject(ctx context.Context, projectID, actingUserID uint, status string) ([]models.Application, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.IsFounder(p, actingUserID) {
		return nil, fmt.Errorf("%w: only the founder can list applications", lifecycle.ErrForbidden)
	}

	apps := make([]models.Application, 0, len(p.Applications))
	for _, app := range p.Applications {
		if status != "" && string(app.Status) != status {
			continue
		}
		apps = append(apps, app)
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].AppliedDate.After(apps[j].AppliedDate) })
	return apps, nil
}

// ListForUser returns every application the user has filed, newest first
func (s *ApplicationService) ListForUser(ctx context.Context, userID uint) ([]UserApplication, error) {
	var projectIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.ApplicantIndex{}).
		Where("user_id = ?", userID).
		Pluck("project_id", &projectIDs).Error; err != nil {
		return nil, err
	}
	if len(projectIDs) == 0 {
		return []UserApplication{}, nil
	}

	var projects []models.Project
	if err := s.db.WithContext(ctx).Where("id IN ?", projectIDs).Find(&projects).Error; err != nil {
		return nil, err
	}

	out := []UserApplication{}
	for _, p := range projects {
		for _, app := range p.Applications {
			if app.UserID != userID {
				continue
			}
			out = append(out, UserApplication{Application: app, ProjectID: p.ID, ProjectName: p.Name})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AppliedDate.After(out[j].AppliedDate) })
	return out, nil
}

func (s *ApplicationService) loadUser(tx *gorm.DB, id uint) (*models.User, error) {
	u, err := s.users.With(tx).Get(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", lifecycle.ErrNotFound, id)
	}
	return u, err
}
