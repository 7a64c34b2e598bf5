package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
)

const projectColumns = `id, project_code, name, description, status, priority, start_date, end_date, budget, client, project_manager_id, required_skills, milestones, ai_health_score, risk_factors, created_at, updated_at`

type projectRow struct {
	p              models.Project
	requiredSkills []byte
	milestones     []byte
}

func (r *projectRow) dest() []any {
	return []any{&r.p.ID, &r.p.ProjectCode, &r.p.Name, &r.p.Description, &r.p.Status, &r.p.Priority,
		&r.p.StartDate, &r.p.EndDate, &r.p.Budget, &r.p.Client, &r.p.ProjectManagerID,
		&r.requiredSkills, &r.milestones, &r.p.AIHealthScore, &r.p.RiskFactors, &r.p.CreatedAt, &r.p.UpdatedAt}
}

func (r *projectRow) build() (models.Project, error) {
	p := r.p
	if err := unmarshalJSON(r.requiredSkills, &p.RequiredSkills); err != nil {
		return models.Project{}, fmt.Errorf("project %s required skills: %w", p.ID, err)
	}
	if err := unmarshalJSON(r.milestones, &p.Milestones); err != nil {
		return models.Project{}, fmt.Errorf("project %s milestones: %w", p.ID, err)
	}
	p.RequiredSkills = nonNil(p.RequiredSkills)
	p.Milestones = nonNil(p.Milestones)
	p.RiskFactors = nonNil(p.RiskFactors)
	return p, nil
}

func projectArgs(p *models.Project) ([]any, error) {
	skills, err := json.Marshal(nonNil(p.RequiredSkills))
	if err != nil {
		return nil, err
	}
	milestones, err := json.Marshal(nonNil(p.Milestones))
	if err != nil {
		return nil, err
	}
	return []any{p.ID, p.ProjectCode, p.Name, p.Description, p.Status, p.Priority,
		p.StartDate, p.EndDate, p.Budget, p.Client, p.ProjectManagerID,
		skills, milestones, p.AIHealthScore, nonNil(p.RiskFactors), p.CreatedAt, p.UpdatedAt}, nil
}

func (s *Store) queryProjects(ctx context.Context, sql string, args ...any) ([]models.Project, error) {
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		var r projectRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		p, err := r.build()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.queryProjects(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY start_date, name, id`)
}

// ListProjectsForEmployee returns the projects the employee holds at least
// one allocation on.
func (s *Store) ListProjectsForEmployee(ctx context.Context, employeeID string) ([]models.Project, error) {
	if !validID(employeeID) {
		return []models.Project{}, nil
	}
	return s.queryProjects(ctx, `SELECT `+prefixed("p", projectColumns)+`
		FROM projects p
		WHERE EXISTS (SELECT 1 FROM allocations a WHERE a.project_id = p.id AND a.employee_id = $1)
		ORDER BY p.start_date, p.name, p.id`, employeeID)
}

func (s *Store) GetProject(ctx context.Context, id string) (models.Project, error) {
	if !validID(id) {
		return models.Project{}, sentinel.ErrNotFound
	}
	var r projectRow
	if err := s.Pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id).Scan(r.dest()...); err != nil {
		return models.Project{}, translateError(err)
	}
	return r.build()
}

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	args, err := projectArgs(p)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO projects (`+projectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`, args...)
	return translateError(err)
}

func (s *Store) UpdateProject(ctx context.Context, p *models.Project) error {
	args, err := projectArgs(p)
	if err != nil {
		return err
	}
	args = append(args[:15], args[16])
	return expectOne(s.Pool.Exec(ctx, `UPDATE projects SET
		project_code = $2, name = $3, description = $4, status = $5, priority = $6, start_date = $7,
		end_date = $8, budget = $9, client = $10, project_manager_id = $11, required_skills = $12,
		milestones = $13, ai_health_score = $14, risk_factors = $15, updated_at = $16
		WHERE id = $1`, args...))
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if !validID(id) {
		return sentinel.ErrNotFound
	}
	return expectOne(s.Pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id))
}
