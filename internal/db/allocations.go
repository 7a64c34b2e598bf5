package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
)

const allocationColumns = `id, employee_id, project_id, start_date, end_date, hours_per_week, percentage, role, status, billable, notes, created_by, approved_by, conflicts, created_at, updated_at`

type allocationRow struct {
	a         models.Allocation
	conflicts []byte
}

func (r *allocationRow) dest() []any {
	return []any{&r.a.ID, &r.a.EmployeeID, &r.a.ProjectID, &r.a.StartDate, &r.a.EndDate,
		&r.a.HoursPerWeek, &r.a.Percentage, &r.a.Role, &r.a.Status, &r.a.Billable, &r.a.Notes,
		&r.a.CreatedBy, &r.a.ApprovedBy, &r.conflicts, &r.a.CreatedAt, &r.a.UpdatedAt}
}

func (r *allocationRow) build() (models.Allocation, error) {
	a := r.a
	if err := unmarshalJSON(r.conflicts, &a.Conflicts); err != nil {
		return models.Allocation{}, fmt.Errorf("allocation %s conflicts: %w", a.ID, err)
	}
	a.Conflicts = nonNil(a.Conflicts)
	return a, nil
}

// expandedRow scans an allocation joined with its employee and project.
type expandedRow struct {
	alloc    allocationRow
	employee employeeRow
	project  projectRow
}

func (r *expandedRow) dest() []any {
	out := r.alloc.dest()
	out = append(out, r.employee.dest()...)
	return append(out, r.project.dest()...)
}

func (r *expandedRow) build() (models.Allocation, error) {
	a, err := r.alloc.build()
	if err != nil {
		return models.Allocation{}, err
	}
	e, err := r.employee.build()
	if err != nil {
		return models.Allocation{}, err
	}
	p, err := r.project.build()
	if err != nil {
		return models.Allocation{}, err
	}
	a.Employee = &e
	a.Project = &p
	return a, nil
}

var expandedSelect = `SELECT ` + prefixed("a", allocationColumns) + `, ` + prefixed("e", employeeColumns) + `, ` + prefixed("p", projectColumns) + `
	FROM allocations a
	JOIN employees e ON e.id = a.employee_id
	JOIN projects p ON p.id = a.project_id`

func allocationArgs(a *models.Allocation) ([]any, error) {
	conflicts, err := json.Marshal(nonNil(a.Conflicts))
	if err != nil {
		return nil, err
	}
	return []any{a.ID, a.EmployeeID, a.ProjectID, a.StartDate, a.EndDate, a.HoursPerWeek, a.Percentage,
		a.Role, a.Status, a.Billable, a.Notes, a.CreatedBy, a.ApprovedBy, conflicts, a.CreatedAt, a.UpdatedAt}, nil
}

// ListAllocations returns allocations with employee and project expanded.
// A window filter keeps allocations overlapping [Start, End].
func (s *Store) ListAllocations(ctx context.Context, f models.AllocationFilter) ([]models.Allocation, error) {
	if (f.EmployeeID != "" && !validID(f.EmployeeID)) || (f.ProjectID != "" && !validID(f.ProjectID)) {
		return []models.Allocation{}, nil
	}
	var (
		where []string
		args  []any
	)
	if f.End != nil {
		args = append(args, *f.End)
		where = append(where, fmt.Sprintf("a.start_date <= $%d", len(args)))
	}
	if f.Start != nil {
		args = append(args, *f.Start)
		where = append(where, fmt.Sprintf("a.end_date >= $%d", len(args)))
	}
	if f.EmployeeID != "" {
		args = append(args, f.EmployeeID)
		where = append(where, fmt.Sprintf("a.employee_id = $%d", len(args)))
	}
	if f.ProjectID != "" {
		args = append(args, f.ProjectID)
		where = append(where, fmt.Sprintf("a.project_id = $%d", len(args)))
	}

	sql := expandedSelect
	if len(where) > 0 {
		sql += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	sql += "\n\tORDER BY a.start_date, a.id"

	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	out := []models.Allocation{}
	for rows.Next() {
		var r expandedRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		a, err := r.build()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAllocation(ctx context.Context, id string) (models.Allocation, error) {
	if !validID(id) {
		return models.Allocation{}, sentinel.ErrNotFound
	}
	var r expandedRow
	if err := s.Pool.QueryRow(ctx, expandedSelect+"\n\tWHERE a.id = $1", id).Scan(r.dest()...); err != nil {
		return models.Allocation{}, translateError(err)
	}
	return r.build()
}

func (s *Store) CreateAllocation(ctx context.Context, a *models.Allocation) error {
	args, err := allocationArgs(a)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO allocations (`+allocationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, args...)
	return translateError(err)
}

func (s *Store) UpdateAllocation(ctx context.Context, a *models.Allocation) error {
	args, err := allocationArgs(a)
	if err != nil {
		return err
	}
	args = append(args[:14], args[15])
	return expectOne(s.Pool.Exec(ctx, `UPDATE allocations SET
		employee_id = $2, project_id = $3, start_date = $4, end_date = $5, hours_per_week = $6,
		percentage = $7, role = $8, status = $9, billable = $10, notes = $11, created_by = $12,
		approved_by = $13, conflicts = $14, updated_at = $15
		WHERE id = $1`, args...))
}

func (s *Store) DeleteAllocation(ctx context.Context, id string) error {
	if !validID(id) {
		return sentinel.ErrNotFound
	}
	return expectOne(s.Pool.Exec(ctx, `DELETE FROM allocations WHERE id = $1`, id))
}

func (s *Store) AllocationExists(ctx context.Context, employeeID, projectID string) (bool, error) {
	if !validID(employeeID, projectID) {
		return false, nil
	}
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM allocations WHERE employee_id = $1 AND project_id = $2)`,
		employeeID, projectID).Scan(&exists)
	return exists, translateError(err)
}

// UpdateAllocationConflicts replaces the embedded conflict list of each
// allocation in the map, inside one transaction.
func (s *Store) UpdateAllocationConflicts(ctx context.Context, conflicts map[string][]models.AllocationConflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for id, list := range conflicts {
			raw, err := json.Marshal(nonNil(list))
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE allocations SET conflicts = $2 WHERE id = $1`, id, raw); err != nil {
				return translateError(err)
			}
		}
		return nil
	})
}
