package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/launchpad/backend/internal/config"
	"github.com/launchpad/backend/internal/models"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := models.OpenDB(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func createUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		IsActive: true,
		Version:  1,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func createProject(t *testing.T, db *gorm.DB, founder *models.User, teamSize int, roles ...RoleRequest) *models.Project {
	t.Helper()
	svc := NewProjectService(db, NewProjectStore(db, 0))
	p, err := svc.Create(&CreateProjectRequest{
		Name:     founder.Username + "'s startup",
		TeamSize: teamSize,
		Roles:    roles,
	}, founder.ID)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func reloadProject(t *testing.T, db *gorm.DB, id uint) *models.Project {
	t.Helper()
	var p models.Project
	if err := db.First(&p, id).Error; err != nil {
		t.Fatalf("reload project %d: %v", id, err)
	}
	return &p
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) *models.User {
	t.Helper()
	var u models.User
	if err := db.First(&u, id).Error; err != nil {
		t.Fatalf("reload user %d: %v", id, err)
	}
	return &u
}

type recordingNotifier struct {
	mu    sync.Mutex
	tasks []NotificationTask
	err   error
}

func (n *recordingNotifier) Emit(recipientID uint, kind string, payload map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, NotificationTask{RecipientID: recipientID, Kind: kind, Payload: payload})
	return n.err
}

func (n *recordingNotifier) kinds(recipientID uint) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, task := range n.tasks {
		if task.RecipientID == recipientID {
			out = append(out, task.Kind)
		}
	}
	return out
}

func (n *recordingNotifier) has(recipientID uint, kind string) bool {
	for _, k := range n.kinds(recipientID) {
		if k == kind {
			return true
		}
	}
	return false
}

// stepClock returns times one minute apart on every call.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Minute)
	return c.cur
}

type testEnv struct {
	db       *gorm.DB
	notifier *recordingNotifier
	store    *ProjectStore
	sweeper  *SweepService
	apps     *ApplicationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	notifier := &recordingNotifier{}
	store := NewProjectStore(db, 5)
	sweeper := NewSweepService(db, store, notifier, 3)
	apps := NewApplicationService(db, store, notifier, sweeper)
	apps.now = newStepClock().Now
	return &testEnv{db: db, notifier: notifier, store: store, sweeper: sweeper, apps: apps}
}
