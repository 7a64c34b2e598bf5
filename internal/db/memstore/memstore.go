// Package memstore keeps the whole data set in process memory. It mirrors the
// Postgres store's constraints and ordering and backs development runs
// without DATABASE_URL as well as the HTTP tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
)

type Store struct {
	mu          sync.RWMutex
	users       map[string]models.User
	employees   map[string]models.Employee
	projects    map[string]models.Project
	allocations map[string]models.Allocation
	webhooks    map[string]models.Webhook
	insights    []models.AIInsight
	conflicts   []models.Conflict
}

func New() *Store {
	return &Store{
		users:       make(map[string]models.User),
		employees:   make(map[string]models.Employee),
		projects:    make(map[string]models.Project),
		allocations: make(map[string]models.Allocation),
		webhooks:    make(map[string]models.Webhook),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

func duplicate(constraint string) error {
	return fmt.Errorf("%w: %s", sentinel.ErrDuplicate, constraint)
}

// Users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return duplicate("users_email_key")
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, sentinel.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, sentinel.ErrNotFound
}

func (s *Store) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.LastLogin = &at
	u.UpdatedAt = at
	s.users[id] = u
	return nil
}

// Employees

func (s *Store) ListEmployees(context.Context) ([]models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return models.Employee{}, sentinel.ErrNotFound
	}
	return e, nil
}

func (s *Store) GetEmployeeByUserID(_ context.Context, userID string) (models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.employees {
		if e.UserID != nil && *e.UserID == userID {
			return e, nil
		}
	}
	return models.Employee{}, sentinel.ErrNotFound
}

func (s *Store) checkEmployee(e *models.Employee) error {
	for id, existing := range s.employees {
		if id != e.ID && existing.EmployeeCode == e.EmployeeCode {
			return duplicate("employees_employee_code_key")
		}
	}
	if e.UserID != nil {
		if _, ok := s.users[*e.UserID]; !ok {
			return fmt.Errorf("%w: employees_user_id_fkey", sentinel.ErrReference)
		}
	}
	return nil
}

func (s *Store) CreateEmployee(_ context.Context, e *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[e.ID]; ok {
		return duplicate("employees_pkey")
	}
	if err := s.checkEmployee(e); err != nil {
		return err
	}
	s.employees[e.ID] = *e
	return nil
}

func (s *Store) UpdateEmployee(_ context.Context, e *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.employees[e.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkEmployee(e); err != nil {
		return err
	}
	updated := *e
	updated.CreatedAt = existing.CreatedAt
	s.employees[e.ID] = updated
	return nil
}

func (s *Store) DeleteEmployee(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.employees, id)
	for aid, a := range s.allocations {
		if a.EmployeeID == id {
			delete(s.allocations, aid)
		}
	}
	return nil
}

// Projects

func sortProjects(out []models.Project) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
}

func (s *Store) ListProjects(context.Context) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sortProjects(out)
	return out, nil
}

func (s *Store) ListProjectsForEmployee(_ context.Context, employeeID string) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	out := []models.Project{}
	for _, a := range s.allocations {
		if a.EmployeeID != employeeID || seen[a.ProjectID] {
			continue
		}
		if p, ok := s.projects[a.ProjectID]; ok {
			seen[a.ProjectID] = true
			out = append(out, p)
		}
	}
	sortProjects(out)
	return out, nil
}

func (s *Store) GetProject(_ context.Context, id string) (models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, sentinel.ErrNotFound
	}
	return p, nil
}

func (s *Store) checkProject(p *models.Project) error {
	for id, existing := range s.projects {
		if id != p.ID && existing.ProjectCode == p.ProjectCode {
			return duplicate("projects_project_code_key")
		}
	}
	if p.ProjectManagerID != nil {
		if _, ok := s.users[*p.ProjectManagerID]; !ok {
			return fmt.Errorf("%w: projects_project_manager_id_fkey", sentinel.ErrReference)
		}
	}
	return nil
}

func (s *Store) CreateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return duplicate("projects_pkey")
	}
	if err := s.checkProject(p); err != nil {
		return err
	}
	s.projects[p.ID] = *p
	return nil
}

func (s *Store) UpdateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.projects[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkProject(p); err != nil {
		return err
	}
	updated := *p
	updated.CreatedAt = existing.CreatedAt
	s.projects[p.ID] = updated
	return nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.projects, id)
	for aid, a := range s.allocations {
		if a.ProjectID == id {
			delete(s.allocations, aid)
		}
	}
	return nil
}

// Allocations

func (s *Store) expand(a models.Allocation) models.Allocation {
	if e, ok := s.employees[a.EmployeeID]; ok {
		a.Employee = &e
	}
	if p, ok := s.projects[a.ProjectID]; ok {
		a.Project = &p
	}
	return a
}

func (s *Store) ListAllocations(_ context.Context, f models.AllocationFilter) ([]models.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Allocation{}
	for _, a := range s.allocations {
		if f.End != nil && a.StartDate.After(*f.End) {
			continue
		}
		if f.Start != nil && a.EndDate.Before(*f.Start) {
			continue
		}
		if f.EmployeeID != "" && a.EmployeeID != f.EmployeeID {
			continue
		}
		if f.ProjectID != "" && a.ProjectID != f.ProjectID {
			continue
		}
		out = append(out, s.expand(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetAllocation(_ context.Context, id string) (models.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.allocations[id]
	if !ok {
		return models.Allocation{}, sentinel.ErrNotFound
	}
	return s.expand(a), nil
}

func (s *Store) checkAllocation(a *models.Allocation) error {
	if _, ok := s.employees[a.EmployeeID]; !ok {
		return fmt.Errorf("%w: allocations_employee_id_fkey", sentinel.ErrReference)
	}
	if _, ok := s.projects[a.ProjectID]; !ok {
		return fmt.Errorf("%w: allocations_project_id_fkey", sentinel.ErrReference)
	}
	for id, existing := range s.allocations {
		if id != a.ID && existing.EmployeeID == a.EmployeeID && existing.ProjectID == a.ProjectID {
			return duplicate("allocations_employee_project_key")
		}
	}
	return nil
}

func stripExpansion(a models.Allocation) models.Allocation {
	a.Employee = nil
	a.Project = nil
	return a
}

func (s *Store) CreateAllocation(_ context.Context, a *models.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allocations[a.ID]; ok {
		return duplicate("allocations_pkey")
	}
	if err := s.checkAllocation(a); err != nil {
		return err
	}
	s.allocations[a.ID] = stripExpansion(*a)
	return nil
}

func (s *Store) UpdateAllocation(_ context.Context, a *models.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.allocations[a.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkAllocation(a); err != nil {
		return err
	}
	updated := stripExpansion(*a)
	updated.CreatedAt = existing.CreatedAt
	s.allocations[a.ID] = updated
	return nil
}

func (s *Store) DeleteAllocation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allocations[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.allocations, id)
	return nil
}

func (s *Store) AllocationExists(_ context.Context, employeeID, projectID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.allocations {
		if a.EmployeeID == employeeID && a.ProjectID == projectID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateAllocationConflicts(_ context.Context, conflicts map[string][]models.AllocationConflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, list := range conflicts {
		a, ok := s.allocations[id]
		if !ok {
			continue
		}
		a.Conflicts = append([]models.AllocationConflict{}, list...)
		s.allocations[id] = a
	}
	return nil
}

// Webhooks

func (s *Store) sortedWebhooks(keep func(models.Webhook) bool) []models.Webhook {
	out := []models.Webhook{}
	for _, w := range s.webhooks {
		if keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) ListWebhooks(context.Context) ([]models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedWebhooks(func(models.Webhook) bool { return true }), nil
}

func (s *Store) ListActiveWebhooksForEvent(_ context.Context, event string) ([]models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedWebhooks(func(w models.Webhook) bool {
		if !w.IsActive {
			return false
		}
		for _, e := range w.Events {
			if e == event {
				return true
			}
		}
		return false
	}), nil
}

func (s *Store) CreateWebhook(_ context.Context, w *models.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhooks[w.ID]; ok {
		return duplicate("webhooks_pkey")
	}
	s.webhooks[w.ID] = *w
	return nil
}

func (s *Store) DeleteWebhook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhooks[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.webhooks, id)
	return nil
}

func (s *Store) RecordWebhookSuccess(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.webhooks[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	w.SuccessCount++
	w.LastTriggered = &at
	w.UpdatedAt = at
	s.webhooks[id] = w
	return nil
}

func (s *Store) RecordWebhookFailure(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.webhooks[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	w.FailureCount++
	s.webhooks[id] = w
	return nil
}

// Insights and conflicts

func (s *Store) SaveInsights(_ context.Context, insights []models.AIInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = append(s.insights, insights...)
	return nil
}

func (s *Store) Insights() []models.AIInsight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AIInsight(nil), s.insights...)
}

func (s *Store) SaveConflicts(_ context.Context, conflicts []models.Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = append(s.conflicts, conflicts...)
	return nil
}

func (s *Store) ListConflicts(_ context.Context, limit int) ([]models.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.Conflict{}, s.conflicts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
