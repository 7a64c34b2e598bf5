package service

import (
	"errors"
	"fmt"

	"github.com/allocai/backend/internal/sentinel"
)

var (
	ErrNotFound            = sentinel.ErrNotFound
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateAllocation = errors.New("employee is already allocated to this project")
	ErrEmailTaken          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// referenceError turns a foreign key failure into an input error naming
// the missing entity.
func referenceError(err error, what string) error {
	if errors.Is(err, sentinel.ErrReference) {
		return invalid("%s does not exist", what)
	}
	return err
}
