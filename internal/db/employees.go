package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
)

const employeeColumns = `id, user_id, employee_code, first_name, last_name, email, skills, department, job_title, location, cost_per_hour, availability, preferences, metrics, created_at, updated_at`

type employeeRow struct {
	e            models.Employee
	skills       []byte
	availability []byte
	preferences  []byte
	metrics      []byte
}

func (r *employeeRow) dest() []any {
	return []any{&r.e.ID, &r.e.UserID, &r.e.EmployeeCode, &r.e.FirstName, &r.e.LastName, &r.e.Email,
		&r.skills, &r.e.Department, &r.e.JobTitle, &r.e.Location, &r.e.CostPerHour,
		&r.availability, &r.preferences, &r.metrics, &r.e.CreatedAt, &r.e.UpdatedAt}
}

func (r *employeeRow) build() (models.Employee, error) {
	e := r.e
	if err := unmarshalJSON(r.skills, &e.Skills); err != nil {
		return models.Employee{}, fmt.Errorf("employee %s skills: %w", e.ID, err)
	}
	if err := unmarshalJSON(r.availability, &e.Availability); err != nil {
		return models.Employee{}, fmt.Errorf("employee %s availability: %w", e.ID, err)
	}
	if err := unmarshalJSON(r.preferences, &e.Preferences); err != nil {
		return models.Employee{}, fmt.Errorf("employee %s preferences: %w", e.ID, err)
	}
	if err := unmarshalJSON(r.metrics, &e.Metrics); err != nil {
		return models.Employee{}, fmt.Errorf("employee %s metrics: %w", e.ID, err)
	}
	if e.Skills == nil {
		e.Skills = []models.Skill{}
	}
	if e.Availability == nil {
		e.Availability = []models.AvailabilityWindow{}
	}
	return e, nil
}

func employeeArgs(e *models.Employee) ([]any, error) {
	skills, err := json.Marshal(nonNil(e.Skills))
	if err != nil {
		return nil, err
	}
	availability, err := json.Marshal(nonNil(e.Availability))
	if err != nil {
		return nil, err
	}
	preferences, err := json.Marshal(e.Preferences)
	if err != nil {
		return nil, err
	}
	metrics, err := json.Marshal(e.Metrics)
	if err != nil {
		return nil, err
	}
	return []any{e.ID, e.UserID, e.EmployeeCode, e.FirstName, e.LastName, e.Email,
		skills, e.Department, e.JobTitle, e.Location, e.CostPerHour,
		availability, preferences, metrics, e.CreatedAt, e.UpdatedAt}, nil
}

func (s *Store) queryEmployees(ctx context.Context, sql string, args ...any) ([]models.Employee, error) {
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	out := []models.Employee{}
	for rows.Next() {
		var r employeeRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		e, err := r.build()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) getEmployee(ctx context.Context, sql string, args ...any) (models.Employee, error) {
	var r employeeRow
	if err := s.Pool.QueryRow(ctx, sql, args...).Scan(r.dest()...); err != nil {
		return models.Employee{}, translateError(err)
	}
	return r.build()
}

func (s *Store) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	return s.queryEmployees(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY last_name, first_name, id`)
}

func (s *Store) GetEmployee(ctx context.Context, id string) (models.Employee, error) {
	if !validID(id) {
		return models.Employee{}, sentinel.ErrNotFound
	}
	return s.getEmployee(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
}

func (s *Store) GetEmployeeByUserID(ctx context.Context, userID string) (models.Employee, error) {
	if !validID(userID) {
		return models.Employee{}, sentinel.ErrNotFound
	}
	return s.getEmployee(ctx, `SELECT `+employeeColumns+` FROM employees WHERE user_id = $1 LIMIT 1`, userID)
}

func (s *Store) CreateEmployee(ctx context.Context, e *models.Employee) error {
	args, err := employeeArgs(e)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO employees (`+employeeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, args...)
	return translateError(err)
}

func (s *Store) UpdateEmployee(ctx context.Context, e *models.Employee) error {
	args, err := employeeArgs(e)
	if err != nil {
		return err
	}
	// created_at ($15) is never rewritten
	args = append(args[:14], args[15])
	return expectOne(s.Pool.Exec(ctx, `UPDATE employees SET
		user_id = $2, employee_code = $3, first_name = $4, last_name = $5, email = $6, skills = $7,
		department = $8, job_title = $9, location = $10, cost_per_hour = $11, availability = $12,
		preferences = $13, metrics = $14, updated_at = $15
		WHERE id = $1`, args...))
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	if !validID(id) {
		return sentinel.ErrNotFound
	}
	return expectOne(s.Pool.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id))
}

func unmarshalJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
