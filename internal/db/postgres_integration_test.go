//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	url       string
	store     *Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("allocai"),
		tcpostgres.WithUsername("allocai"),
		tcpostgres.WithPassword("allocai"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	s.url, err = container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	version, err := Migrate(s.url, MigrateUp)
	s.Require().NoError(err)
	s.Require().Equal(uint(1), version)

	s.store, err = New(ctx, s.url)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.store.Pool.Exec(context.Background(),
		`TRUNCATE allocations, employees, projects, users, webhooks, conflicts, ai_insights`)
	s.Require().NoError(err)
}

var week0 = time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)

func (s *PostgresStoreSuite) seedPair() (models.Employee, models.Project) {
	ctx := context.Background()
	e := models.Employee{
		ID: uuid.NewString(), EmployeeCode: "EMP-" + uuid.NewString()[:6], FirstName: "Sarah", LastName: "Chen",
		Skills:      []models.Skill{{Name: "go", Level: 4}},
		Preferences: models.EmployeePreferences{MaxHoursPerWeek: 40},
		CreatedAt:   week0, UpdatedAt: week0,
	}
	s.Require().NoError(s.store.CreateEmployee(ctx, &e))
	p := models.Project{
		ID: uuid.NewString(), ProjectCode: "P-" + uuid.NewString()[:6], Name: "Titan",
		Status: models.ProjectActive, Priority: models.PriorityHigh,
		StartDate: week0, EndDate: week0.AddDate(0, 3, 0), AIHealthScore: 100,
		CreatedAt: week0, UpdatedAt: week0,
	}
	s.Require().NoError(s.store.CreateProject(ctx, &p))
	return e, p
}

func (s *PostgresStoreSuite) TestAllocationLifecycle() {
	ctx := context.Background()
	e, p := s.seedPair()

	a := models.Allocation{
		ID: uuid.NewString(), EmployeeID: e.ID, ProjectID: p.ID,
		StartDate: week0, EndDate: week0.AddDate(0, 0, 13), HoursPerWeek: 30,
		Status: models.AllocationActive, Billable: true, CreatedAt: week0, UpdatedAt: week0,
	}
	s.Require().NoError(s.store.CreateAllocation(ctx, &a))

	dup := a
	dup.ID = uuid.NewString()
	s.ErrorIs(s.store.CreateAllocation(ctx, &dup), sentinel.ErrDuplicate)

	orphan := a
	orphan.ID = uuid.NewString()
	orphan.EmployeeID = uuid.NewString()
	s.ErrorIs(s.store.CreateAllocation(ctx, &orphan), sentinel.ErrReference)

	start, end := week0.AddDate(0, 0, 7), week0.AddDate(0, 0, 13)
	list, err := s.store.ListAllocations(ctx, models.AllocationFilter{Start: &start, End: &end, ProjectID: p.ID})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Require().NotNil(list[0].Employee)
	s.Equal("Sarah", list[0].Employee.FirstName)
	s.Require().NotNil(list[0].Project)
	s.Equal("Titan", list[0].Project.Name)

	s.Require().NoError(s.store.UpdateAllocationConflicts(ctx, map[string][]models.AllocationConflict{
		a.ID: {{Type: "overallocation", Severity: "medium", DetectedAt: week0}},
	}))
	got, err := s.store.GetAllocation(ctx, a.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Conflicts, 1)
	s.Equal("medium", got.Conflicts[0].Severity)

	exists, err := s.store.AllocationExists(ctx, e.ID, p.ID)
	s.Require().NoError(err)
	s.True(exists)

	s.Require().NoError(s.store.DeleteEmployee(ctx, e.ID))
	_, err = s.store.GetAllocation(ctx, a.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUsersAndEmailCase() {
	ctx := context.Background()
	u := models.User{
		ID: uuid.NewString(), Email: "Admin@AllocAI.com", PasswordHash: "x", FirstName: "A", LastName: "B",
		Role: models.RoleAdmin, IsActive: true, CreatedAt: week0, UpdatedAt: week0,
	}
	s.Require().NoError(s.store.CreateUser(ctx, &u))

	again := u
	again.ID = uuid.NewString()
	again.Email = "admin@allocai.com"
	s.ErrorIs(s.store.CreateUser(ctx, &again), sentinel.ErrDuplicate)

	got, err := s.store.GetUserByEmail(ctx, "ADMIN@allocai.com")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	s.Require().NoError(s.store.UpdateLastLogin(ctx, u.ID, week0.Add(time.Hour)))
	got, err = s.store.GetUserByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.LastLogin)
	s.True(got.LastLogin.Equal(week0.Add(time.Hour)))
}

func (s *PostgresStoreSuite) TestWebhooksAndConflicts() {
	ctx := context.Background()
	w := models.Webhook{
		ID: uuid.NewString(), URL: "https://example.com/hook", Events: []string{"allocation.created"},
		Secret: "s", IsActive: true, CreatedAt: week0, UpdatedAt: week0,
	}
	s.Require().NoError(s.store.CreateWebhook(ctx, &w))
	s.Require().NoError(s.store.RecordWebhookSuccess(ctx, w.ID, week0))
	s.Require().NoError(s.store.RecordWebhookFailure(ctx, w.ID))

	hooks, err := s.store.ListActiveWebhooksForEvent(ctx, "allocation.created")
	s.Require().NoError(err)
	s.Require().Len(hooks, 1)
	s.Equal(int64(1), hooks[0].SuccessCount)
	s.Equal(int64(1), hooks[0].FailureCount)

	none, err := s.store.ListActiveWebhooksForEvent(ctx, "project.created")
	s.Require().NoError(err)
	s.Empty(none)

	s.Require().NoError(s.store.SaveConflicts(ctx, []models.Conflict{
		{ID: uuid.NewString(), Type: "overallocation", Severity: "high", Status: "detected", DetectedAt: week0, DetectedBy: "system", CreatedAt: week0, UpdatedAt: week0},
		{ID: uuid.NewString(), Type: "allocation_overlap", Severity: "medium", Status: "detected", DetectedAt: week0.Add(time.Hour), DetectedBy: "system", CreatedAt: week0, UpdatedAt: week0},
	}))
	history, err := s.store.ListConflicts(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("allocation_overlap", history[0].Type)

	s.ErrorIs(s.store.DeleteWebhook(ctx, uuid.NewString()), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMalformedIDMatchesMemoryStore() {
	ctx := context.Background()
	_, err := s.store.GetProject(ctx, "not-a-uuid")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.DeleteAllocation(ctx, "not-a-uuid"), sentinel.ErrNotFound)

	e, _ := s.seedPair()
	bad := models.Allocation{
		ID: uuid.NewString(), EmployeeID: e.ID, ProjectID: "not-a-uuid",
		StartDate: week0, EndDate: week0, Status: models.AllocationPending, CreatedAt: week0, UpdatedAt: week0,
	}
	s.ErrorIs(s.store.CreateAllocation(ctx, &bad), sentinel.ErrReference)
}
