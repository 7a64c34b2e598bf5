package db

import (
	"context"
	"time"

	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, department, is_active, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.Department, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, translateError(err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.Department, u.IsActive, u.LastLogin, u.CreatedAt, u.UpdatedAt)
	return translateError(err)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (models.User, error) {
	if !validID(id) {
		return models.User{}, sentinel.ErrNotFound
	}
	return scanUser(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return expectOne(s.Pool.Exec(ctx, `UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`, at, id))
}
