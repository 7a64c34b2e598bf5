package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/allocai/backend/internal/events"
	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
)

// Caller identifies the authenticated user an operation runs on behalf of.
type Caller struct {
	UserID string
	Role   string
}

func (c Caller) restricted() bool { return c.Role == models.RoleEmployee }

type ProjectInput struct {
	ProjectCode      string                 `json:"projectCode" validate:"required"`
	Name             string                 `json:"name" validate:"required"`
	Description      string                 `json:"description"`
	Status           string                 `json:"status" validate:"omitempty,oneof=planning active on_hold completed cancelled"`
	Priority         string                 `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	StartDate        time.Time              `json:"startDate" validate:"required"`
	EndDate          time.Time              `json:"endDate" validate:"required"`
	Budget           *float64               `json:"budget" validate:"omitempty,gte=0"`
	Client           string                 `json:"client"`
	ProjectManagerID *string                `json:"projectManagerId"`
	RequiredSkills   []models.RequiredSkill `json:"requiredSkills"`
	Milestones       []models.Milestone     `json:"milestones"`
	RiskFactors      []string               `json:"riskFactors"`
}

type ProjectPatch struct {
	ProjectCode      *string                `json:"projectCode" validate:"omitempty,min=1"`
	Name             *string                `json:"name" validate:"omitempty,min=1"`
	Description      *string                `json:"description"`
	Status           *string                `json:"status" validate:"omitempty,oneof=planning active on_hold completed cancelled"`
	Priority         *string                `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	StartDate        *time.Time             `json:"startDate"`
	EndDate          *time.Time             `json:"endDate"`
	Budget           *float64               `json:"budget" validate:"omitempty,gte=0"`
	Client           *string                `json:"client"`
	ProjectManagerID *string                `json:"projectManagerId"`
	RequiredSkills   []models.RequiredSkill `json:"requiredSkills"`
	Milestones       []models.Milestone     `json:"milestones"`
	RiskFactors      []string               `json:"riskFactors"`
}

type ProjectService struct {
	Store  ProjectStore
	Events Publisher
	Now    func() time.Time
}

func NewProjectService(store ProjectStore, pub Publisher) *ProjectService {
	return &ProjectService{Store: store, Events: publisherOrNop(pub), Now: time.Now}
}

// List returns every project, or for callers with the employee role only the
// projects they hold an allocation on.
func (s *ProjectService) List(ctx context.Context, c Caller) ([]models.Project, error) {
	if !c.restricted() {
		return s.Store.ListProjects(ctx)
	}
	emp, err := s.Store.GetEmployeeByUserID(ctx, c.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return []models.Project{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.Store.ListProjectsForEmployee(ctx, emp.ID)
}

func (s *ProjectService) Get(ctx context.Context, c Caller, id string) (models.Project, error) {
	p, err := s.Store.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if err := s.checkAssigned(ctx, c, id); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

func (s *ProjectService) checkAssigned(ctx context.Context, c Caller, projectID string) error {
	if !c.restricted() {
		return nil
	}
	emp, err := s.Store.GetEmployeeByUserID(ctx, c.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	ok, err := s.Store.AllocationExists(ctx, emp.ID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (models.Project, error) {
	if in.EndDate.Before(in.StartDate) {
		return models.Project{}, invalid("endDate must not be before startDate")
	}
	now := s.Now().UTC()
	p := models.Project{
		ID:               uuid.NewString(),
		ProjectCode:      in.ProjectCode,
		Name:             in.Name,
		Description:      in.Description,
		Status:           in.Status,
		Priority:         in.Priority,
		StartDate:        in.StartDate.UTC(),
		EndDate:          in.EndDate.UTC(),
		Budget:           in.Budget,
		Client:           in.Client,
		ProjectManagerID: in.ProjectManagerID,
		RequiredSkills:   nonNilSlice(in.RequiredSkills),
		Milestones:       nonNilSlice(in.Milestones),
		AIHealthScore:    100,
		RiskFactors:      nonNilSlice(in.RiskFactors),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if p.Status == "" {
		p.Status = models.ProjectPlanning
	}
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}

	if err := s.Store.CreateProject(ctx, &p); err != nil {
		return models.Project{}, projectWriteError(err)
	}
	s.Events.Publish(ctx, events.ProjectCreated, p)
	return p, nil
}

func (s *ProjectService) Update(ctx context.Context, c Caller, id string, patch ProjectPatch) (models.Project, error) {
	p, err := s.Store.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if err := s.checkAssigned(ctx, c, id); err != nil {
		return models.Project{}, err
	}

	setString(&p.ProjectCode, patch.ProjectCode)
	setString(&p.Name, patch.Name)
	setString(&p.Description, patch.Description)
	setString(&p.Status, patch.Status)
	setString(&p.Priority, patch.Priority)
	setString(&p.Client, patch.Client)
	if patch.StartDate != nil {
		p.StartDate = patch.StartDate.UTC()
	}
	if patch.EndDate != nil {
		p.EndDate = patch.EndDate.UTC()
	}
	if p.EndDate.Before(p.StartDate) {
		return models.Project{}, invalid("endDate must not be before startDate")
	}
	if patch.Budget != nil {
		p.Budget = patch.Budget
	}
	if patch.ProjectManagerID != nil {
		p.ProjectManagerID = patch.ProjectManagerID
	}
	if patch.RequiredSkills != nil {
		p.RequiredSkills = patch.RequiredSkills
	}
	if patch.Milestones != nil {
		p.Milestones = patch.Milestones
	}
	if patch.RiskFactors != nil {
		p.RiskFactors = patch.RiskFactors
	}
	p.UpdatedAt = s.Now().UTC()

	if err := s.Store.UpdateProject(ctx, &p); err != nil {
		return models.Project{}, projectWriteError(err)
	}
	return p, nil
}

func (s *ProjectService) Delete(ctx context.Context, id string) error {
	return s.Store.DeleteProject(ctx, id)
}

func projectWriteError(err error) error {
	if errors.Is(err, sentinel.ErrDuplicate) {
		return fmt.Errorf("project code already in use: %w", err)
	}
	return referenceError(err, "project manager")
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
