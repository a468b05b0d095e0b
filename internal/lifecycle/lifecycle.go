// Package lifecycle holds the role-application state machine of a project.
//
// Every function mutates the in-memory aggregate it is given and reports the
// notifications to emit once the caller has persisted the result. Nothing in
// this package touches storage, so a failed call may leave the aggregate
// half-modified; callers discard it on error.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/launchpad/backend/internal/models"
)

// Decision is a founder's verdict on a pending application.
type Decision string

const (
	DecisionAccept Decision = "accepted"
	DecisionReject Decision = "rejected"
)

// Cancellation and rejection reasons carried in notification payloads.
const (
	ReasonAcceptedElsewhere = "accepted_elsewhere"
	ReasonRoleFilled        = "role_filled"
	ReasonFounderDecision   = "founder_decision"
)

var newApplicationID = func() string { return uuid.New().String() }

// Event is a notification to deliver after the change has been committed.
type Event struct {
	RecipientID uint
	Kind        string
	Payload     map[string]interface{}
}

// Sweep describes work left in other projects after an acceptance.
type Sweep struct {
	UserID            uint
	KeepProjectID     uint
	PreviousProjectID *uint
	AcceptedAt        time.Time
}

// Result is the outcome of a lifecycle operation.
type Result struct {
	Application *models.Application
	Events      []Event
	Sweep       *Sweep
}

func (r *Result) emit(recipient uint, kind string, payload map[string]interface{}) {
	r.Events = append(r.Events, Event{RecipientID: recipient, Kind: kind, Payload: payload})
}

// IsFounder reports whether userID owns the project.
func IsFounder(p *models.Project, userID uint) bool {
	return p.FounderID != 0 && p.FounderID == userID
}

// CanApply reports whether the user's capability class may apply to roles.
func CanApply(u *models.User) bool {
	return u.Role == models.RoleJobseeker
}

func applicationPayload(p *models.Project, app *models.Application) map[string]interface{} {
	return map[string]interface{}{
		"project_id":     p.ID,
		"project_name":   p.Name,
		"role":           app.RoleTitle,
		"application_id": app.ID,
		"applicant_id":   app.UserID,
	}
}

// Submit files an application by u for roleTitle.
func Submit(p *models.Project, u *models.User, roleTitle, message string, now time.Time) (*Result, error) {
	if !CanApply(u) {
		return nil, fmt.Errorf("%w: %s accounts cannot apply to roles", ErrForbidden, u.Role)
	}
	role := p.Role(roleTitle)
	if role == nil {
		return nil, fmt.Errorf("%w: role %q", ErrNotFound, roleTitle)
	}
	if role.FilledCount >= role.Capacity {
		return nil, fmt.Errorf("%w: role %q is at capacity", ErrRoleUnavailable, roleTitle)
	}
	if p.Member(u.ID) != nil {
		return nil, fmt.Errorf("%w: user %d is already on the team", ErrAlreadyEngaged, u.ID)
	}
	if e := u.CurrentEngagement; e != nil && e.ProjectID != p.ID {
		return nil, fmt.Errorf("%w: user %d is engaged on project %d", ErrAlreadyEngaged, u.ID, e.ProjectID)
	}

	var latest *models.Application
	for i := range p.Applications {
		app := &p.Applications[i]
		if app.UserID != u.ID || app.RoleTitle != roleTitle {
			continue
		}
		if app.Status == models.ApplicationPending {
			return nil, fmt.Errorf("%w: application %s is still pending", ErrDuplicateApplication, app.ID)
		}
		latest = app
	}

	res := &Result{}
	if latest != nil && latest.Status == models.ApplicationCancelled {
		latest.Status = models.ApplicationPending
		latest.Message = message
		latest.AppliedDate = now
		res.Application = latest
	} else {
		p.Applications = append(p.Applications, models.Application{
			ID:          newApplicationID(),
			UserID:      u.ID,
			RoleTitle:   roleTitle,
			Message:     message,
			Status:      models.ApplicationPending,
			AppliedDate: now,
		})
		res.Application = &p.Applications[len(p.Applications)-1]
	}

	res.emit(p.FounderID, models.NotifyApplicationReceived, applicationPayload(p, res.Application))
	return res, nil
}

// Process applies the founder's decision to a pending application. applicant
// must be the application's author; it is only consulted on acceptance.
func Process(p *models.Project, applicationID string, decision Decision, actingUserID uint, applicant *models.User, now time.Time) (*Result, error) {
	if !IsFounder(p, actingUserID) {
		return nil, fmt.Errorf("%w: only the founder can decide on applications", ErrForbidden)
	}
	app := p.Application(applicationID)
	if app == nil {
		return nil, fmt.Errorf("%w: application %s", ErrNotFound, applicationID)
	}
	if app.Status != models.ApplicationPending {
		return nil, fmt.Errorf("%w: application %s is %s", ErrInvalidState, app.ID, app.Status)
	}

	switch decision {
	case DecisionReject:
		app.Status = models.ApplicationRejected
		res := &Result{Application: app}
		payload := applicationPayload(p, app)
		payload["automatic"] = false
		payload["reason"] = ReasonFounderDecision
		res.emit(app.UserID, models.NotifyApplicationRejected, payload)
		return res, nil
	case DecisionAccept:
		return accept(p, app, applicant, now)
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidState, decision)
	}
}

func accept(p *models.Project, app *models.Application, applicant *models.User, now time.Time) (*Result, error) {
	if applicant == nil || applicant.ID != app.UserID {
		return nil, fmt.Errorf("%w: applicant %d", ErrNotFound, app.UserID)
	}
	if p.Member(app.UserID) != nil {
		return nil, fmt.Errorf("%w: user %d is already on the team", ErrAlreadyEngaged, app.UserID)
	}
	role := p.Role(app.RoleTitle)
	if role == nil {
		return nil, fmt.Errorf("%w: role %q no longer exists", ErrRoleUnavailable, app.RoleTitle)
	}
	if role.FilledCount >= role.Capacity {
		return nil, fmt.Errorf("%w: role %q is at capacity", ErrRoleUnavailable, role.Title)
	}
	if len(p.TeamMembers) >= p.TeamSize {
		return nil, fmt.Errorf("%w: team already has %d members", ErrTeamFull, len(p.TeamMembers))
	}

	res := &Result{Application: app}

	p.TeamMembers = append(p.TeamMembers, models.Membership{
		UserID:    app.UserID,
		RoleTitle: role.Title,
		JoinDate:  now,
	})
	role.FilledCount++

	sweep := &Sweep{UserID: applicant.ID, KeepProjectID: p.ID, AcceptedAt: now}
	if prev := applicant.CurrentEngagement; prev != nil {
		closed := *prev
		closed.ExitDate = &now
		applicant.PastEngagements = append(applicant.PastEngagements, closed)
		if prev.ProjectID != p.ID {
			previousID := prev.ProjectID
			sweep.PreviousProjectID = &previousID
		}
	}
	applicant.CurrentEngagement = &models.Engagement{
		ProjectID: p.ID,
		Role:      role.Title,
		JoinDate:  now,
	}
	res.Sweep = sweep

	for i := range p.Applications {
		other := &p.Applications[i]
		if other.ID == app.ID || other.UserID != app.UserID || other.Status != models.ApplicationPending {
			continue
		}
		other.Status = models.ApplicationCancelled
		payload := applicationPayload(p, other)
		payload["reason"] = ReasonAcceptedElsewhere
		res.emit(other.UserID, models.NotifyApplicationCancelled, payload)
	}

	if role.FilledCount == role.Capacity {
		for i := range p.Applications {
			other := &p.Applications[i]
			if other.ID == app.ID || other.RoleTitle != role.Title || other.Status != models.ApplicationPending {
				continue
			}
			other.Status = models.ApplicationRejected
			payload := applicationPayload(p, other)
			payload["automatic"] = true
			payload["reason"] = ReasonRoleFilled
			res.emit(other.UserID, models.NotifyApplicationAutoRejected, payload)
		}
	}

	app.Status = models.ApplicationAccepted
	res.emit(app.UserID, models.NotifyApplicationAccepted, applicationPayload(p, app))
	return res, nil
}

// Leave removes u from the team at their own request.
func Leave(p *models.Project, u *models.User, now time.Time) (*Result, error) {
	if IsFounder(p, u.ID) {
		return nil, fmt.Errorf("%w: the founder cannot leave their own project", ErrForbidden)
	}
	m, ok := release(p, u.ID)
	if !ok {
		return nil, fmt.Errorf("%w: user %d is not on the team", ErrNotFound, u.ID)
	}
	closeEngagement(u, p.ID, now)

	res := &Result{}
	res.emit(p.FounderID, models.NotifyMemberLeft, memberPayload(p, m))
	return res, nil
}

// Remove takes memberID off the team on the founder's behalf. member may be
// nil when the account no longer exists; the membership is still removed.
func Remove(p *models.Project, memberID, actingUserID uint, member *models.User, now time.Time) (*Result, error) {
	if !IsFounder(p, actingUserID) {
		return nil, fmt.Errorf("%w: only the founder can remove members", ErrForbidden)
	}
	if memberID == p.FounderID || memberID == actingUserID {
		return nil, fmt.Errorf("%w: the founder cannot be removed", ErrForbidden)
	}
	m, ok := release(p, memberID)
	if !ok {
		return nil, fmt.Errorf("%w: user %d is not on the team", ErrNotFound, memberID)
	}
	if member != nil {
		closeEngagement(member, p.ID, now)
	}

	res := &Result{}
	res.emit(memberID, models.NotifyMemberRemoved, memberPayload(p, m))
	return res, nil
}

func memberPayload(p *models.Project, m models.Membership) map[string]interface{} {
	return map[string]interface{}{
		"project_id":   p.ID,
		"project_name": p.Name,
		"role":         m.RoleTitle,
		"user_id":      m.UserID,
	}
}

// release drops userID's membership and frees its role slot.
func release(p *models.Project, userID uint) (models.Membership, bool) {
	for i, m := range p.TeamMembers {
		if m.UserID != userID {
			continue
		}
		p.TeamMembers = append(p.TeamMembers[:i], p.TeamMembers[i+1:]...)
		if role := p.Role(m.RoleTitle); role != nil && role.FilledCount > 0 {
			role.FilledCount--
		}
		return m, true
	}
	return models.Membership{}, false
}

func closeEngagement(u *models.User, projectID uint, now time.Time) {
	e := u.CurrentEngagement
	if e == nil || e.ProjectID != projectID {
		return
	}
	closed := *e
	closed.ExitDate = &now
	u.PastEngagements = append(u.PastEngagements, closed)
	u.CurrentEngagement = nil
}

// CancelPending cancels userID's pending applications filed at or before
// cutoff. Applications filed later, or already terminal, are left alone, so
// running it twice is a no-op.
func CancelPending(p *models.Project, userID uint, cutoff time.Time) []Event {
	res := &Result{}
	for i := range p.Applications {
		app := &p.Applications[i]
		if app.UserID != userID || app.Status != models.ApplicationPending || app.AppliedDate.After(cutoff) {
			continue
		}
		app.Status = models.ApplicationCancelled
		payload := applicationPayload(p, app)
		payload["reason"] = ReasonAcceptedElsewhere
		res.emit(userID, models.NotifyApplicationCancelled, payload)
	}
	return res.Events
}

// ReleaseStale removes u's membership in p when u has since committed to a
// different project. A membership that started after cutoff, or one that u's
// current engagement still points at, is kept.
func ReleaseStale(p *models.Project, u *models.User, cutoff time.Time) []Event {
	if e := u.CurrentEngagement; e != nil && e.ProjectID == p.ID {
		return nil
	}
	m := p.Member(u.ID)
	if m == nil || m.JoinDate.After(cutoff) {
		return nil
	}
	released, _ := release(p, u.ID)

	res := &Result{}
	res.emit(p.FounderID, models.NotifyEngagementClosed, memberPayload(p, released))
	return res.Events
}

// CheckInvariants verifies the counting and uniqueness rules of a project.
func CheckInvariants(p *models.Project) error {
	if len(p.TeamMembers) > p.TeamSize {
		return fmt.Errorf("%w: %d members exceed team size %d", ErrInvariant, len(p.TeamMembers), p.TeamSize)
	}

	counts := make(map[string]int, len(p.OpenRoles))
	seen := make(map[uint]bool, len(p.TeamMembers))
	for _, m := range p.TeamMembers {
		if seen[m.UserID] {
			return fmt.Errorf("%w: user %d holds two memberships", ErrInvariant, m.UserID)
		}
		seen[m.UserID] = true
		counts[m.RoleTitle]++
	}

	titles := make(map[string]bool, len(p.OpenRoles))
	for _, r := range p.OpenRoles {
		if titles[r.Title] {
			return fmt.Errorf("%w: duplicate role %q", ErrInvariant, r.Title)
		}
		titles[r.Title] = true
		if r.Capacity <= 0 {
			return fmt.Errorf("%w: role %q has capacity %d", ErrInvariant, r.Title, r.Capacity)
		}
		if r.FilledCount != counts[r.Title] {
			return fmt.Errorf("%w: role %q counts %d but has %d members", ErrInvariant, r.Title, r.FilledCount, counts[r.Title])
		}
		if r.FilledCount > r.Capacity {
			return fmt.Errorf("%w: role %q over capacity", ErrInvariant, r.Title)
		}
		delete(counts, r.Title)
	}
	for title := range counts {
		return fmt.Errorf("%w: members hold unknown role %q", ErrInvariant, title)
	}

	type key struct {
		user uint
		role string
	}
	pending := make(map[key]bool)
	for _, app := range p.Applications {
		if app.Status != models.ApplicationPending {
			continue
		}
		k := key{app.UserID, app.RoleTitle}
		if pending[k] {
			return fmt.Errorf("%w: user %d has two pending applications for %q", ErrInvariant, app.UserID, app.RoleTitle)
		}
		pending[k] = true
	}
	return nil
}
