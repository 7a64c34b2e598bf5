package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allocai/backend/internal/auth"
	"github.com/allocai/backend/internal/conflict"
	"github.com/allocai/backend/internal/db/memstore"
	"github.com/allocai/backend/internal/events"
	"github.com/allocai/backend/internal/models"
)

type published struct {
	name    string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(_ context.Context, name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{name, payload})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.name)
	}
	return out
}

var monday = time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return monday.Add(9 * time.Hour) }

func seedEmployee(t *testing.T, store *memstore.Store, code string) models.Employee {
	t.Helper()
	svc := NewEmployeeService(store, nil)
	e, err := svc.Create(context.Background(), EmployeeInput{
		EmployeeCode: code,
		FirstName:    "Ada",
		LastName:     code,
		Skills:       []SkillInput{{Name: "go", Level: 4, YearsOfExperience: 6}},
	})
	require.NoError(t, err)
	return e
}

func seedProject(t *testing.T, store *memstore.Store, code string) models.Project {
	t.Helper()
	svc := NewProjectService(store, nil)
	p, err := svc.Create(context.Background(), ProjectInput{
		ProjectCode: code,
		Name:        "Project " + code,
		StartDate:   monday,
		EndDate:     monday.AddDate(0, 3, 0),
	})
	require.NoError(t, err)
	return p
}

func TestAllocationCreatePublishesExpandedRecord(t *testing.T) {
	store := memstore.New()
	rec := &recorder{}
	emp := seedEmployee(t, store, "E1")
	proj := seedProject(t, store, "P1")

	svc := NewAllocationService(store, rec)
	svc.Now = fixedNow
	a, err := svc.Create(context.Background(), AllocationInput{
		EmployeeID:   emp.ID,
		ProjectID:    proj.ID,
		StartDate:    monday,
		EndDate:      monday.AddDate(0, 0, 13),
		HoursPerWeek: 40,
	}, "u1")
	require.NoError(t, err)

	assert.Equal(t, models.AllocationPending, a.Status)
	assert.True(t, a.Billable)
	require.NotNil(t, a.Employee)
	require.NotNil(t, a.Project)
	assert.Equal(t, "E1", a.Employee.EmployeeCode)
	assert.Equal(t, "P1", a.Project.ProjectCode)
	require.NotNil(t, a.CreatedBy)
	assert.Equal(t, "u1", *a.CreatedBy)
	assert.Equal(t, []string{events.AllocationCreated}, rec.names())

	list, err := svc.List(context.Background(), models.AllocationFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
}

func TestAllocationDuplicatePair(t *testing.T) {
	store := memstore.New()
	rec := &recorder{}
	emp := seedEmployee(t, store, "E1")
	proj := seedProject(t, store, "P1")
	svc := NewAllocationService(store, rec)

	in := AllocationInput{EmployeeID: emp.ID, ProjectID: proj.ID, StartDate: monday, EndDate: monday.AddDate(0, 1, 0), HoursPerWeek: 10}
	_, err := svc.Create(context.Background(), in, "")
	require.NoError(t, err)

	in.StartDate = monday.AddDate(0, 2, 0)
	in.EndDate = monday.AddDate(0, 3, 0)
	_, err = svc.Create(context.Background(), in, "")
	assert.ErrorIs(t, err, ErrDuplicateAllocation)
	assert.Len(t, rec.names(), 1, "failed writes must not publish")
}

func TestAllocationCreateRejectsBadInput(t *testing.T) {
	store := memstore.New()
	emp := seedEmployee(t, store, "E1")
	svc := NewAllocationService(store, nil)

	_, err := svc.Create(context.Background(), AllocationInput{
		EmployeeID: emp.ID, ProjectID: "missing", StartDate: monday, EndDate: monday.AddDate(0, 0, 7),
	}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), AllocationInput{
		EmployeeID: emp.ID, ProjectID: "missing", StartDate: monday, EndDate: monday.AddDate(0, 0, -1),
	}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAllocationUpdateAndDelete(t *testing.T) {
	store := memstore.New()
	rec := &recorder{}
	emp := seedEmployee(t, store, "E1")
	proj := seedProject(t, store, "P1")
	svc := NewAllocationService(store, rec)

	a, err := svc.Create(context.Background(), AllocationInput{
		EmployeeID: emp.ID, ProjectID: proj.ID, StartDate: monday, EndDate: monday.AddDate(0, 1, 0), HoursPerWeek: 10,
	}, "")
	require.NoError(t, err)

	hours, status := 32.0, models.AllocationActive
	updated, err := svc.Update(context.Background(), a.ID, AllocationPatch{HoursPerWeek: &hours, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 32.0, updated.HoursPerWeek)
	assert.Equal(t, models.AllocationActive, updated.Status)
	assert.Equal(t, a.StartDate, updated.StartDate)

	_, err = svc.Update(context.Background(), "nope", AllocationPatch{HoursPerWeek: &hours})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(context.Background(), a.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), a.ID), ErrNotFound)
	assert.Equal(t, []string{events.AllocationCreated, events.AllocationUpdated, events.AllocationDeleted}, rec.names())
}

func TestAllocationListWindow(t *testing.T) {
	store := memstore.New()
	emp := seedEmployee(t, store, "E1")
	p1 := seedProject(t, store, "P1")
	p2 := seedProject(t, store, "P2")
	svc := NewAllocationService(store, nil)

	_, err := svc.Create(context.Background(), AllocationInput{EmployeeID: emp.ID, ProjectID: p1.ID, StartDate: monday, EndDate: monday.AddDate(0, 0, 6)}, "")
	require.NoError(t, err)
	late, err := svc.Create(context.Background(), AllocationInput{EmployeeID: emp.ID, ProjectID: p2.ID, StartDate: monday.AddDate(0, 1, 0), EndDate: monday.AddDate(0, 2, 0)}, "")
	require.NoError(t, err)

	from, to := monday.AddDate(0, 0, 20), monday.AddDate(0, 1, 2)
	list, err := svc.List(context.Background(), models.AllocationFilter{Start: &from, End: &to})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, late.ID, list[0].ID)

	_, err = svc.List(context.Background(), models.AllocationFilter{Start: &to, End: &from})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEmployeeCreatePublishesJoined(t *testing.T) {
	store := memstore.New()
	rec := &recorder{}
	svc := NewEmployeeService(store, rec)

	e, err := svc.Create(context.Background(), EmployeeInput{EmployeeCode: "E9", FirstName: "Linus", LastName: "T"})
	require.NoError(t, err)
	assert.Equal(t, 40.0, e.Preferences.MaxHoursPerWeek)
	assert.Equal(t, []string{events.EmployeeJoined}, rec.names())

	_, err = svc.Create(context.Background(), EmployeeInput{EmployeeCode: "E9", FirstName: "Other", LastName: "T"})
	assert.Error(t, err)

	ghost := "no-such-user"
	_, err = svc.Create(context.Background(), EmployeeInput{UserID: &ghost, EmployeeCode: "E10", FirstName: "G", LastName: "H"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	title := "Principal"
	updated, err := svc.Update(context.Background(), e.ID, EmployeePatch{JobTitle: &title})
	require.NoError(t, err)
	assert.Equal(t, "Principal", updated.JobTitle)
	assert.Equal(t, "Linus", updated.FirstName)
}

func TestProjectVisibilityForEmployees(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	user := models.User{ID: "u-emp", Email: "emp@example.com", Role: models.RoleEmployee, IsActive: true}
	require.NoError(t, store.CreateUser(ctx, &user))
	empSvc := NewEmployeeService(store, nil)
	emp, err := empSvc.Create(ctx, EmployeeInput{UserID: &user.ID, EmployeeCode: "E1", FirstName: "A", LastName: "B"})
	require.NoError(t, err)

	mine := seedProject(t, store, "P1")
	other := seedProject(t, store, "P2")
	_, err = NewAllocationService(store, nil).Create(ctx, AllocationInput{
		EmployeeID: emp.ID, ProjectID: mine.ID, StartDate: monday, EndDate: monday.AddDate(0, 1, 0),
	}, "")
	require.NoError(t, err)

	svc := NewProjectService(store, nil)
	caller := Caller{UserID: user.ID, Role: models.RoleEmployee}

	list, err := svc.List(ctx, caller)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = svc.Get(ctx, caller, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	name := "Renamed"
	_, err = svc.Update(ctx, caller, other.ID, ProjectPatch{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.Update(ctx, caller, mine.ID, ProjectPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	all, err := svc.List(ctx, Caller{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	unlinked, err := svc.List(ctx, Caller{UserID: "someone", Role: models.RoleEmployee})
	require.NoError(t, err)
	assert.Empty(t, unlinked)
}

func TestProjectCreateDefaults(t *testing.T) {
	store := memstore.New()
	rec := &recorder{}
	svc := NewProjectService(store, rec)

	p, err := svc.Create(context.Background(), ProjectInput{ProjectCode: "X", Name: "X", StartDate: monday, EndDate: monday})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectPlanning, p.Status)
	assert.Equal(t, models.PriorityMedium, p.Priority)
	assert.Equal(t, 100.0, p.AIHealthScore)
	assert.NotNil(t, p.RiskFactors)
	assert.Equal(t, []string{events.ProjectCreated}, rec.names())
}

func newAuthService(store *memstore.Store) *AuthService {
	tokens := auth.NewTokenService("access", "refresh", 15*time.Minute, 7*24*time.Hour)
	return NewAuthService(store, tokens, auth.NewMemoryRevocationList(), zerolog.Nop())
}

func TestAuthRegisterLoginRefresh(t *testing.T) {
	store := memstore.New()
	svc := newAuthService(store)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterInput{Email: "Grace@Example.com", Password: "hunter22", FirstName: "Grace", LastName: "H"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, sess.User.Role)
	assert.Equal(t, "grace@example.com", sess.User.Email)

	_, err = svc.Register(ctx, RegisterInput{Email: "grace@example.com", Password: "x12345", FirstName: "G", LastName: "H"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Login(ctx, LoginInput{Email: "grace@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	logged, err := svc.Login(ctx, LoginInput{Email: "grace@example.com", Password: "hunter22"})
	require.NoError(t, err)
	u, err := svc.Me(ctx, logged.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, u.LastLogin)

	pair, err := svc.Refresh(ctx, logged.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = svc.Refresh(ctx, logged.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "rotated refresh token must be rejected")

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Refresh(ctx, logged.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "access token is not a refresh token")

	got, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, logged.User.ID, got.ID)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	store := memstore.New()
	svc := newAuthService(store)
	u := models.User{ID: "u1", Email: "off@example.com", Role: models.RoleAdmin, IsActive: false}
	require.NoError(t, store.CreateUser(context.Background(), &u))

	pair, err := svc.Tokens.Issue(u.ID, u.Role)
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

type stubAnalyzer struct {
	calls    int
	findings []conflict.Finding
}

func (s *stubAnalyzer) AnalyzeResourceEfficiency(_ context.Context, _ models.Snapshot, findings []conflict.Finding) models.InsightReport {
	s.calls++
	s.findings = findings
	return models.InsightReport{Insights: []models.Insight{{Type: "trend", Title: "ok"}}, Source: "ai"}
}

func TestInsightServiceDeepAnalysis(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	emp := seedEmployee(t, store, "E1")
	p1 := seedProject(t, store, "P1")
	p2 := seedProject(t, store, "P2")
	allocs := NewAllocationService(store, nil)
	for _, p := range []models.Project{p1, p2} {
		_, err := allocs.Create(ctx, AllocationInput{
			EmployeeID: emp.ID, ProjectID: p.ID, StartDate: monday, EndDate: monday.AddDate(0, 0, 6),
			HoursPerWeek: 30, Status: models.AllocationActive,
		}, "")
		require.NoError(t, err)
	}

	rec := &recorder{}
	analyzer := &stubAnalyzer{}
	svc := NewInsightService(store, analyzer, rec, zerolog.Nop())
	svc.Detector.Now = fixedNow

	require.NoError(t, svc.RunAnalysis(ctx, true))
	assert.Equal(t, 1, analyzer.calls)
	assert.NotEmpty(t, analyzer.findings)
	assert.Equal(t, []string{events.InsightsGenerated}, rec.names())

	saved, err := svc.History(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, saved)
	assert.NotEmpty(t, store.Insights())

	list, err := store.ListAllocations(ctx, models.AllocationFilter{})
	require.NoError(t, err)
	for _, a := range list {
		assert.NotEmpty(t, a.Conflicts, "allocation %s should carry its conflicts", a.ID)
	}

	report, err := svc.Insights(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Insights, 1)
}

func TestWebhookServiceRejectsUnknownEvents(t *testing.T) {
	svc := NewWebhookService(memstore.New())
	_, err := svc.Create(context.Background(), WebhookInput{URL: "http://x", Events: []string{"allocation.exploded"}, Secret: "s"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	w, err := svc.Create(context.Background(), WebhookInput{URL: "http://x", Events: []string{"allocation.created"}, Secret: "s"})
	require.NoError(t, err)
	assert.True(t, w.IsActive)

	require.NoError(t, svc.Delete(context.Background(), w.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), w.ID), ErrNotFound)
}
