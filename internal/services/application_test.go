package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/launchpad/backend/internal/lifecycle"
	"github.com/launchpad/backend/internal/models"
	"gorm.io/gorm"
)

var testCtx = context.Background()

func submit(t *testing.T, env *testEnv, projectID uint, u *models.User, role string) *models.Application {
	t.Helper()
	app, err := env.apps.Submit(testCtx, projectID, u.ID, &SubmitApplicationRequest{RoleTitle: role, Message: "hi"})
	if err != nil {
		t.Fatalf("Submit(%s, %s) error = %v", u.Username, role, err)
	}
	return app
}

func statusIn(p *models.Project, appID string) models.ApplicationStatus {
	if app := p.Application(appID); app != nil {
		return app.Status
	}
	return ""
}

func TestApplicationService_CapacityOneEngineer(t *testing.T) {
	env := newTestEnv(t)
	founder := createUser(t, env.db, "founder", models.RoleFounder)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	b := createUser(t, env.db, "bob", models.RoleJobseeker)
	p := createProject(t, env.db, founder, 5, RoleRequest{Title: "Engineer", Capacity: 1})

	appA := submit(t, env, p.ID, a, "Engineer")
	appB := submit(t, env, p.ID, b, "Engineer")

	got, err := env.apps.Process(testCtx, p.ID, appA.ID, "accepted", founder.ID)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got.Status != models.ApplicationAccepted {
		t.Errorf("status = %q, expected accepted", got.Status)
	}

	stored := reloadProject(t, env.db, p.ID)
	if statusIn(stored, appB.ID) != models.ApplicationRejected {
		t.Errorf("B = %q, expected rejected", statusIn(stored, appB.ID))
	}
	if stored.OpenRoles[0].FilledCount != 1 || len(stored.TeamMembers) != 1 || stored.TeamMembers[0].UserID != a.ID {
		t.Errorf("team = %+v roles = %+v", stored.TeamMembers, stored.OpenRoles)
	}
	if err := lifecycle.CheckInvariants(stored); err != nil {
		t.Errorf("CheckInvariants() = %v", err)
	}

	alice := reloadUser(t, env.db, a.ID)
	if alice.CurrentEngagement == nil || alice.CurrentEngagement.ProjectID != p.ID {
		t.Errorf("alice engagement = %+v", alice.CurrentEngagement)
	}
	if !env.notifier.has(b.ID, models.NotifyApplicationAutoRejected) {
		t.Errorf("bob should get an automatic rejection, got %v", env.notifier.kinds(b.ID))
	}
	if !env.notifier.has(a.ID, models.NotifyApplicationAccepted) {
		t.Errorf("alice should get an acceptance, got %v", env.notifier.kinds(a.ID))
	}
	if got := env.notifier.kinds(founder.ID); len(got) != 2 {
		t.Errorf("founder should get 2 application_received notices, got %v", got)
	}

	var jobs int64
	env.db.Model(&models.SweepJob{}).Count(&jobs)
	if jobs != 0 {
		t.Errorf("completed sweep should leave no jobs, got %d", jobs)
	}
}

func TestApplicationService_AcceptWhenRoleFull(t *testing.T) {
	env := newTestEnv(t)
	founder := createUser(t, env.db, "founder", models.RoleFounder)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	b := createUser(t, env.db, "bob", models.RoleJobseeker)
	p := createProject(t, env.db, founder, 5, RoleRequest{Title: "Engineer", Capacity: 2})

	appA := submit(t, env, p.ID, a, "Engineer")
	appB := submit(t, env, p.ID, b, "Engineer")

	// Fill the remaining slot behind the engine's back.
	stored := reloadProject(t, env.db, p.ID)
	stored.OpenRoles[0].Capacity = 1
	stored.OpenRoles[0].FilledCount = 1
	stored.TeamMembers = []models.Membership{{UserID: 999, RoleTitle: "Engineer"}}
	if err := saveProject(env.db, stored); err != nil {
		t.Fatal(err)
	}

	_, err := env.apps.Process(testCtx, p.ID, appA.ID, "accepted", founder.ID)
	if !errors.Is(err, lifecycle.ErrRoleUnavailable) {
		t.Fatalf("expected ErrRoleUnavailable, got %v", err)
	}

	stored = reloadProject(t, env.db, p.ID)
	if statusIn(stored, appA.ID) != models.ApplicationPending || statusIn(stored, appB.ID) != models.ApplicationPending {
		t.Error("applications should stay pending after a failed acceptance")
	}
	if reloadUser(t, env.db, a.ID).CurrentEngagement != nil {
		t.Error("failed acceptance must not change the engagement")
	}
}

func TestApplicationService_AcceptCancelsPendingElsewhere(t *testing.T) {
	env := newTestEnv(t)
	f1 := createUser(t, env.db, "f1", models.RoleFounder)
	f2 := createUser(t, env.db, "f2", models.RoleFounder)
	u := createUser(t, env.db, "uma", models.RoleJobseeker)
	p1 := createProject(t, env.db, f1, 3, RoleRequest{Title: "Engineer", Capacity: 1}, RoleRequest{Title: "PM", Capacity: 1})
	p2 := createProject(t, env.db, f2, 3, RoleRequest{Title: "Designer", Capacity: 1})

	eng := submit(t, env, p1.ID, u, "Engineer")
	pm := submit(t, env, p1.ID, u, "PM")
	des := submit(t, env, p2.ID, u, "Designer")

	if _, err := env.apps.Process(testCtx, p1.ID, eng.ID, "accepted", f1.ID); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if s := statusIn(reloadProject(t, env.db, p1.ID), pm.ID); s != models.ApplicationCancelled {
		t.Errorf("same-project application = %q, expected cancelled", s)
	}
	if s := statusIn(reloadProject(t, env.db, p2.ID), des.ID); s != models.ApplicationCancelled {
		t.Errorf("other-project application = %q, expected cancelled", s)
	}
	if got := env.notifier.kinds(u.ID); len(got) != 3 {
		t.Errorf("expected two cancellations and one acceptance, got %v", got)
	}
}

func TestApplicationService_SubmitErrors(t *testing.T) {
	env := newTestEnv(t)
	founder := createUser(t, env.db, "founder", models.RoleFounder)
	investor := createUser(t, env.db, "ivan", models.RoleInvestor)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	p := createProject(t, env.db, founder, 2, RoleRequest{Title: "Engineer", Capacity: 1})
	submit(t, env, p.ID, a, "Engineer")

	tests := []struct {
		name      string
		projectID uint
		userID    uint
		role      string
		wantErr   error
	}{
		{"missing project", 9999, a.ID, "Engineer", lifecycle.ErrNotFound},
		{"missing user", p.ID, 9999, "Engineer", lifecycle.ErrNotFound},
		{"investor", p.ID, investor.ID, "Engineer", lifecycle.ErrForbidden},
		{"founder", p.ID, founder.ID, "Engineer", lifecycle.ErrForbidden},
		{"unknown role", p.ID, a.ID, "CFO", lifecycle.ErrNotFound},
		{"duplicate", p.ID, a.ID, "Engineer", lifecycle.ErrDuplicateApplication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.apps.Submit(testCtx, tt.projectID, tt.userID, &SubmitApplicationRequest{RoleTitle: tt.role})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplicationService_SubmitRetriesWhenUserEngagedMeanwhile(t *testing.T) {
	env := newTestEnv(t)
	founder := createUser(t, env.db, "founder", models.RoleFounder)
	other := createUser(t, env.db, "olga", models.RoleFounder)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	p := createProject(t, env.db, founder, 2, RoleRequest{Title: "Engineer", Capacity: 1})
	elsewhere := createProject(t, env.db, other, 2, RoleRequest{Title: "Engineer", Capacity: 1})

	// Another project accepts alice right after Submit first reads her row.
	userLoads := 0
	err := env.db.Callback().Query().After("gorm:query").Register("test:accept_elsewhere", func(d *gorm.DB) {
		if d.Statement.Table != "users" {
			return
		}
		userLoads++
		if userLoads != 1 {
			return
		}
		engaged := &models.User{
			CurrentEngagement: &models.Engagement{ProjectID: elsewhere.ID, Role: "Engineer", JoinDate: time.Now()},
			Version:           a.Version + 1,
		}
		if err := d.Session(&gorm.Session{NewDB: true}).Model(&models.User{}).Where("id = ?", a.ID).
			Select("current_engagement", "version").Updates(engaged).Error; err != nil {
			d.AddError(err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = env.apps.Submit(testCtx, p.ID, a.ID, &SubmitApplicationRequest{RoleTitle: "Engineer"})
	if !errors.Is(err, lifecycle.ErrAlreadyEngaged) {
		t.Fatalf("Submit() error = %v, expected %v", err, lifecycle.ErrAlreadyEngaged)
	}
	if userLoads != 2 {
		t.Errorf("user loads = %d, expected a retry after the version conflict", userLoads)
	}
	if got := reloadProject(t, env.db, p.ID); len(got.Applications) != 0 {
		t.Errorf("applications = %+v, expected none", got.Applications)
	}
	var indexed int64
	env.db.Model(&models.ApplicantIndex{}).Where("user_id = ? AND project_id = ?", a.ID, p.ID).Count(&indexed)
	if indexed != 0 {
		t.Errorf("applicant index rows = %d, expected 0", indexed)
	}
}

func TestApplicationService_ResubmitAfterCancel(t *testing.T) {
	env := newTestEnv(t)
	f1 := createUser(t, env.db, "f1", models.RoleFounder)
	f2 := createUser(t, env.db, "f2", models.RoleFounder)
	u := createUser(t, env.db, "uma", models.RoleJobseeker)
	p1 := createProject(t, env.db, f1, 3, RoleRequest{Title: "Engineer", Capacity: 1})
	p2 := createProject(t, env.db, f2, 3, RoleRequest{Title: "Designer", Capacity: 1})

	eng := submit(t, env, p1.ID, u, "Engineer")
	des := submit(t, env, p2.ID, u, "Designer")
	if _, err := env.apps.Process(testCtx, p1.ID, eng.ID, "accepted", f1.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.apps.Leave(testCtx, p1.ID, u.ID); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}

	again := submit(t, env, p2.ID, u, "Designer")
	if again.ID != des.ID {
		t.Errorf("resubmission should reuse id %s, got %s", des.ID, again.ID)
	}
	if again.Status != models.ApplicationPending {
		t.Errorf("status = %q, expected pending", again.Status)
	}
}

func TestApplicationService_ResubmitAfterReject(t *testing.T) {
	env := newTestEnv(t)
	founder := createUser(t, env.db, "founder", models.RoleFounder)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	p := createProject(t, env.db, founder, 2, RoleRequest{Title: "Engineer", Capacity: 1})

	first := submit(t, env, p.ID, a, "Engineer")
	if _, err := env.apps.Process(testCtx, p.ID, first.ID, "rejected", founder.ID); err != nil {
		t.Fatal(err)
	}

	second := submit(t, env, p.ID, a, "Engineer")
	if second.ID == first.ID {
		t.Error("resubmission after rejection should get a new id")
	}
	if got := len(reloadProject(t, env.db, p.ID).Applications); got != 2 {
		t.Errorf("expected 2 applications, got %d", got)
	}
}

func TestApplicationService_ProcessErrors(t *testing.T) {
	env := newTestEnv(t)
	founder := createUser(t, env.db, "founder", models.RoleFounder)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	p := createProject(t, env.db, founder, 2, RoleRequest{Title: "Engineer", Capacity: 1})
	app := submit(t, env, p.ID, a, "Engineer")

	if _, err := env.apps.Process(testCtx, p.ID, app.ID, "accepted", a.ID); !errors.Is(err, lifecycle.ErrForbidden) {
		t.Errorf("non-founder: expected ErrForbidden, got %v", err)
	}
	if _, err := env.apps.Process(testCtx, p.ID, "nope", "accepted", founder.ID); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Errorf("missing application: expected ErrNotFound, got %v", err)
	}
	if _, err := env.apps.Process(testCtx, p.ID, app.ID, "maybe", founder.ID); !errors.Is(err, lifecycle.ErrInvalidState) {
		t.Errorf("bad decision: expected ErrInvalidState, got %v", err)
	}

	// Applicant account gone before the founder decides.
	if err := env.db.Unscoped().Delete(&models.User{}, a.ID).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := env.apps.Process(testCtx, p.ID, app.ID, "accepted", founder.ID); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Errorf("missing applicant: expected ErrNotFound, got %v", err)
	}
}

func TestApplicationService_ConcurrentAcceptsOnLastSlot(t *testing.T) {
	env := newTestEnv(t)
	founder := createUser(t, env.db, "founder", models.RoleFounder)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	b := createUser(t, env.db, "bob", models.RoleJobseeker)
	p := createProject(t, env.db, founder, 5, RoleRequest{Title: "Engineer", Capacity: 1})
	appA := submit(t, env, p.ID, a, "Engineer")
	appB := submit(t, env, p.ID, b, "Engineer")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{appA.ID, appB.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = env.apps.Process(testCtx, p.ID, id, "accepted", founder.ID)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, lifecycle.ErrInvalidState), errors.Is(err, lifecycle.ErrRoleUnavailable):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one acceptance, got %d", succeeded)
	}

	stored := reloadProject(t, env.db, p.ID)
	if len(stored.TeamMembers) != 1 || stored.OpenRoles[0].FilledCount != 1 {
		t.Errorf("team = %+v roles = %+v", stored.TeamMembers, stored.OpenRoles)
	}
}

func TestApplicationService_TransferBetweenProjects(t *testing.T) {
	env := newTestEnv(t)
	f1 := createUser(t, env.db, "f1", models.RoleFounder)
	f2 := createUser(t, env.db, "f2", models.RoleFounder)
	u := createUser(t, env.db, "uma", models.RoleJobseeker)
	p1 := createProject(t, env.db, f1, 3, RoleRequest{Title: "Engineer", Capacity: 1})
	p2 := createProject(t, env.db, f2, 3, RoleRequest{Title: "Designer", Capacity: 1})

	eng := submit(t, env, p1.ID, u, "Engineer")
	des := submit(t, env, p2.ID, u, "Designer")

	// Accept on P1 without running the sweep so the P2 application survives.
	sweeper := env.apps.sweeper
	env.apps.sweeper = nil
	if _, err := env.apps.Process(testCtx, p1.ID, eng.ID, "accepted", f1.ID); err != nil {
		t.Fatal(err)
	}
	env.apps.sweeper = sweeper

	if _, err := env.apps.Process(testCtx, p2.ID, des.ID, "accepted", f2.ID); err != nil {
		t.Fatalf("Process() on P2 error = %v", err)
	}

	user := reloadUser(t, env.db, u.ID)
	if user.CurrentEngagement == nil || user.CurrentEngagement.ProjectID != p2.ID {
		t.Fatalf("current engagement = %+v, expected P2", user.CurrentEngagement)
	}
	if len(user.PastEngagements) != 1 || user.PastEngagements[0].ProjectID != p1.ID || user.PastEngagements[0].ExitDate == nil {
		t.Errorf("past engagements = %+v", user.PastEngagements)
	}

	stored1 := reloadProject(t, env.db, p1.ID)
	if stored1.Member(u.ID) != nil || stored1.OpenRoles[0].FilledCount != 0 {
		t.Errorf("P1 membership should be released, team = %+v", stored1.TeamMembers)
	}
	if !env.notifier.has(f1.ID, models.NotifyEngagementClosed) {
		t.Errorf("P1 founder should be told, got %v", env.notifier.kinds(f1.ID))
	}

	// The P1 sweep left in the outbox must not undo the transfer.
	env.sweeper.retryDelay = -time.Hour
	if done := env.sweeper.RetryPending(testCtx); done != 1 {
		t.Errorf("RetryPending() = %d, expected 1", done)
	}
	stored2 := reloadProject(t, env.db, p2.ID)
	if stored2.Member(u.ID) == nil || statusIn(stored2, des.ID) != models.ApplicationAccepted {
		t.Error("P2 membership must survive the stale sweep")
	}
}

func TestApplicationService_Leave(t *testing.T) {
	env := newTestEnv(t)
	founder := createUser(t, env.db, "founder", models.RoleFounder)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	p := createProject(t, env.db, founder, 2, RoleRequest{Title: "Engineer", Capacity: 1})

	if err := env.apps.Leave(testCtx, p.ID, a.ID); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Errorf("non-member: expected ErrNotFound, got %v", err)
	}
	if err := env.apps.Leave(testCtx, p.ID, founder.ID); !errors.Is(err, lifecycle.ErrForbidden) {
		t.Errorf("founder: expected ErrForbidden, got %v", err)
	}

	app := submit(t, env, p.ID, a, "Engineer")
	if _, err := env.apps.Process(testCtx, p.ID, app.ID, "accepted", founder.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.apps.Leave(testCtx, p.ID, a.ID); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}

	stored := reloadProject(t, env.db, p.ID)
	if len(stored.TeamMembers) != 0 || stored.OpenRoles[0].FilledCount != 0 {
		t.Errorf("team should be empty, got %+v", stored.TeamMembers)
	}
	alice := reloadUser(t, env.db, a.ID)
	if alice.CurrentEngagement != nil || len(alice.PastEngagements) != 1 {
		t.Errorf("engagement not closed: current=%+v past=%+v", alice.CurrentEngagement, alice.PastEngagements)
	}
	if !env.notifier.has(founder.ID, models.NotifyMemberLeft) {
		t.Errorf("founder should be told, got %v", env.notifier.kinds(founder.ID))
	}
}

func TestApplicationService_RemoveMember(t *testing.T) {
	env := newTestEnv(t)
	founder := createUser(t, env.db, "founder", models.RoleFounder)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	p := createProject(t, env.db, founder, 2, RoleRequest{Title: "Engineer", Capacity: 1})
	app := submit(t, env, p.ID, a, "Engineer")
	if _, err := env.apps.Process(testCtx, p.ID, app.ID, "accepted", founder.ID); err != nil {
		t.Fatal(err)
	}

	if err := env.apps.RemoveMember(testCtx, p.ID, a.ID, a.ID); !errors.Is(err, lifecycle.ErrForbidden) {
		t.Errorf("non-founder: expected ErrForbidden, got %v", err)
	}
	if err := env.apps.RemoveMember(testCtx, p.ID, founder.ID, founder.ID); !errors.Is(err, lifecycle.ErrForbidden) {
		t.Errorf("founder target: expected ErrForbidden, got %v", err)
	}
	if err := env.apps.RemoveMember(testCtx, p.ID, 4242, founder.ID); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Errorf("non-member: expected ErrNotFound, got %v", err)
	}

	if err := env.apps.RemoveMember(testCtx, p.ID, a.ID, founder.ID); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if reloadProject(t, env.db, p.ID).Member(a.ID) != nil {
		t.Error("alice should be removed")
	}
	if reloadUser(t, env.db, a.ID).CurrentEngagement != nil {
		t.Error("alice's engagement should be closed")
	}
	if !env.notifier.has(a.ID, models.NotifyMemberRemoved) {
		t.Errorf("alice should be told, got %v", env.notifier.kinds(a.ID))
	}
}

func TestApplicationService_EmitFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errors.New("queue down")
	founder := createUser(t, env.db, "founder", models.RoleFounder)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	p := createProject(t, env.db, founder, 2, RoleRequest{Title: "Engineer", Capacity: 1})

	if _, err := env.apps.Submit(testCtx, p.ID, a.ID, &SubmitApplicationRequest{RoleTitle: "Engineer"}); err != nil {
		t.Fatalf("Submit() should succeed when emit fails, got %v", err)
	}
	if len(reloadProject(t, env.db, p.ID).Applications) != 1 {
		t.Error("application should be stored")
	}
}

func TestApplicationService_Listings(t *testing.T) {
	env := newTestEnv(t)
	f1 := createUser(t, env.db, "f1", models.RoleFounder)
	f2 := createUser(t, env.db, "f2", models.RoleFounder)
	a := createUser(t, env.db, "alice", models.RoleJobseeker)
	b := createUser(t, env.db, "bob", models.RoleJobseeker)
	p1 := createProject(t, env.db, f1, 3, RoleRequest{Title: "Engineer", Capacity: 2})
	p2 := createProject(t, env.db, f2, 3, RoleRequest{Title: "Designer", Capacity: 1})

	submit(t, env, p1.ID, a, "Engineer")
	rejected := submit(t, env, p1.ID, b, "Engineer")
	submit(t, env, p2.ID, a, "Designer")
	if _, err := env.apps.Process(testCtx, p1.ID, rejected.ID, "rejected", f1.ID); err != nil {
		t.Fatal(err)
	}

	all, err := env.apps.ListForProject(testCtx, p1.ID, f1.ID, "")
	if err != nil {
		t.Fatalf("ListForProject() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 applications, got %d", len(all))
	}
	pending, _ := env.apps.ListForProject(testCtx, p1.ID, f1.ID, "pending")
	if len(pending) != 1 || pending[0].UserID != a.ID {
		t.Errorf("pending = %+v", pending)
	}
	if _, err := env.apps.ListForProject(testCtx, p1.ID, a.ID, ""); !errors.Is(err, lifecycle.ErrForbidden) {
		t.Errorf("non-founder: expected ErrForbidden, got %v", err)
	}

	mine, err := env.apps.ListForUser(testCtx, a.ID)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 applications for alice, got %d", len(mine))
	}
	if mine[0].ProjectID != p2.ID || mine[0].ProjectName == "" {
		t.Errorf("newest application should be for P2, got %+v", mine[0])
	}
}
