package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/launchpad/backend/internal/lifecycle"
	"github.com/launchpad/backend/internal/models"
	"github.com/launchpad/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	SweepBatchSize = 20
	// Jobs younger than this are left to the request that created them.
	DefaultSweepRetryDelay = 30 * time.Second
)

// SweepService carries out the cross-project follow-up of an acceptance:
// cancelling the user's pending applications in other projects and releasing
// the membership of a closed engagement. Jobs come from the sweep_jobs outbox.
type SweepService struct {
	db            *gorm.DB
	projects      *ProjectStore
	users         *UserStore
	notifier      Notifier
	maxAttempts   int
	retryDelay    time.Duration
	cronScheduler *cron.Cron
}

func NewSweepService(db *gorm.DB, projects *ProjectStore, notifier Notifier, maxAttempts int) *SweepService {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &SweepService{
		db:          db,
		projects:    projects,
		users:       NewUserStore(db),
		notifier:    notifier,
		maxAttempts: maxAttempts,
		retryDelay:  DefaultSweepRetryDelay,
	}
}

// Run executes job and removes it on success. On failure the job stays in
// the outbox with its attempt count raised.
func (s *SweepService) Run(ctx context.Context, job *models.SweepJob) error {
	if err := s.sweep(ctx, job); err != nil {
		job.Attempts++
		job.LastError = err.Error()
		if uerr := s.db.Model(job).Updates(map[string]interface{}{
			"attempts":   job.Attempts,
			"last_error": job.LastError,
		}).Error; uerr != nil {
			logger.Errorf("[Sweep] Failed to record attempt for job %d: %v", job.ID, uerr)
		}

		event := logger.Warn()
		if job.Attempts >= s.maxAttempts {
			event = logger.Error()
		}
		event.Err(err).Uint("job_id", job.ID).Uint("user_id", job.UserID).
			Int("attempts", job.Attempts).Int("max_attempts", s.maxAttempts).Msg("sweep failed")
		return err
	}

	if err := s.db.Delete(&models.SweepJob{}, job.ID).Error; err != nil {
		return fmt.Errorf("delete sweep job %d: %w", job.ID, err)
	}
	return nil
}

func (s *SweepService) sweep(ctx context.Context, job *models.SweepJob) error {
	cutoff := time.Unix(0, job.AcceptedAt)

	var projectIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.ApplicantIndex{}).
		Where("user_id = ? AND project_id <> ?", job.UserID, job.KeepProjectID).
		Order("project_id").
		Pluck("project_id", &projectIDs).Error; err != nil {
		return fmt.Errorf("find projects of user %d: %w", job.UserID, err)
	}
	if prev := job.PreviousProjectID; prev != nil && *prev != job.KeepProjectID && !containsID(projectIDs, *prev) {
		projectIDs = append(projectIDs, *prev)
	}

	for _, id := range projectIDs {
		if err := s.sweepProject(ctx, id, job.UserID, cutoff); err != nil {
			return err
		}
	}
	return nil
}

func (s *SweepService) sweepProject(ctx context.Context, projectID, userID uint, cutoff time.Time) error {
	var events []lifecycle.Event
	_, err := s.projects.Mutate(ctx, projectID, func(tx *gorm.DB, p *models.Project) error {
		events = lifecycle.CancelPending(p, userID, cutoff)

		u, err := s.users.With(tx).Get(userID)
		switch {
		case err == nil:
			events = append(events, lifecycle.ReleaseStale(p, u, cutoff)...)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if len(events) == 0 {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, lifecycle.ErrNotFound) {
		// Project deleted since; nothing left to sweep
		return nil
	}
	if err != nil {
		return fmt.Errorf("sweep project %d: %w", projectID, err)
	}

	emitEvents(s.notifier, events)
	return nil
}

// RetryPending runs outstanding jobs that have not exhausted their attempts.
func (s *SweepService) RetryPending(ctx context.Context) int {
	var jobs []models.SweepJob
	err := s.db.WithContext(ctx).
		Where("attempts < ? AND updated_at < ?", s.maxAttempts, time.Now().Add(-s.retryDelay)).
		Order("id").
		Limit(SweepBatchSize).
		Find(&jobs).Error
	if err != nil {
		logger.Errorf("[Sweep] Failed to fetch pending jobs: %v", err)
		return 0
	}

	done := 0
	for i := range jobs {
		if err := s.Run(ctx, &jobs[i]); err == nil {
			done++
		}
	}
	if len(jobs) > 0 {
		logger.Infof("[Sweep] Retried %d jobs, %d completed", len(jobs), done)
	}
	return done
}

func (s *SweepService) StartScheduler(spec string) error {
	s.cronScheduler = cron.New()

	if _, err := s.cronScheduler.AddFunc(spec, func() {
		s.RetryPending(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	s.cronScheduler.Start()
	logger.Infof("[Sweep] Scheduler started (cron: %s, max attempts: %d)", spec, s.maxAttempts)
	return nil
}

func (s *SweepService) StopScheduler() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// emitEvents hands events to the notifier. Failures are logged only.
func emitEvents(n Notifier, events []lifecycle.Event) {
	if n == nil {
		return
	}
	for _, e := range events {
		if err := n.Emit(e.RecipientID, e.Kind, e.Payload); err != nil {
			logger.Warn().Err(err).Uint("recipient_id", e.RecipientID).Str("kind", e.Kind).Msg("notification emit failed")
		}
	}
}
