package service

import (
	"context"
	"time"

	"github.com/allocai/backend/internal/models"
)

// Publisher is the slice of the event bus the services need.
type Publisher interface {
	Publish(ctx context.Context, name string, payload any)
}

type AllocationStore interface {
	ListAllocations(ctx context.Context, f models.AllocationFilter) ([]models.Allocation, error)
	GetAllocation(ctx context.Context, id string) (models.Allocation, error)
	CreateAllocation(ctx context.Context, a *models.Allocation) error
	UpdateAllocation(ctx context.Context, a *models.Allocation) error
	DeleteAllocation(ctx context.Context, id string) error
}

type EmployeeStore interface {
	ListEmployees(ctx context.Context) ([]models.Employee, error)
	GetEmployee(ctx context.Context, id string) (models.Employee, error)
	GetEmployeeByUserID(ctx context.Context, userID string) (models.Employee, error)
	CreateEmployee(ctx context.Context, e *models.Employee) error
	UpdateEmployee(ctx context.Context, e *models.Employee) error
	DeleteEmployee(ctx context.Context, id string) error
}

type ProjectStore interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListProjectsForEmployee(ctx context.Context, employeeID string) ([]models.Project, error)
	GetProject(ctx context.Context, id string) (models.Project, error)
	CreateProject(ctx context.Context, p *models.Project) error
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	GetEmployeeByUserID(ctx context.Context, userID string) (models.Employee, error)
	AllocationExists(ctx context.Context, employeeID, projectID string) (bool, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

type InsightStore interface {
	ListEmployees(ctx context.Context) ([]models.Employee, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListAllocations(ctx context.Context, f models.AllocationFilter) ([]models.Allocation, error)
	SaveInsights(ctx context.Context, insights []models.AIInsight) error
	SaveConflicts(ctx context.Context, conflicts []models.Conflict) error
	ListConflicts(ctx context.Context, limit int) ([]models.Conflict, error)
	UpdateAllocationConflicts(ctx context.Context, conflicts map[string][]models.AllocationConflict) error
}

type WebhookStore interface {
	ListWebhooks(ctx context.Context) ([]models.Webhook, error)
	CreateWebhook(ctx context.Context, w *models.Webhook) error
	DeleteWebhook(ctx context.Context, id string) error
}

// Store is everything the HTTP layer needs from persistence. Both the
// Postgres store and the in-memory store satisfy it.
type Store interface {
	AllocationStore
	EmployeeStore
	UserStore
	WebhookStore
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListProjectsForEmployee(ctx context.Context, employeeID string) ([]models.Project, error)
	GetProject(ctx context.Context, id string) (models.Project, error)
	CreateProject(ctx context.Context, p *models.Project) error
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	AllocationExists(ctx context.Context, employeeID, projectID string) (bool, error)
	SaveInsights(ctx context.Context, insights []models.AIInsight) error
	SaveConflicts(ctx context.Context, conflicts []models.Conflict) error
	ListConflicts(ctx context.Context, limit int) ([]models.Conflict, error)
	UpdateAllocationConflicts(ctx context.Context, conflicts map[string][]models.AllocationConflict) error
	Ping(ctx context.Context) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
