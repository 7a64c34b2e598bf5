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

type AllocationInput struct {
	EmployeeID   string    `json:"employeeId" validate:"required"`
	ProjectID    string    `json:"projectId" validate:"required"`
	StartDate    time.Time `json:"startDate" validate:"required"`
	EndDate      time.Time `json:"endDate" validate:"required"`
	HoursPerWeek float64   `json:"hoursPerWeek" validate:"gte=0,lte=168"`
	Percentage   float64   `json:"percentage" validate:"gte=0,lte=100"`
	Role         string    `json:"role"`
	Status       string    `json:"status" validate:"omitempty,oneof=pending active completed cancelled"`
	Billable     *bool     `json:"billable"`
	Notes        string    `json:"notes"`
	ApprovedBy   *string   `json:"approvedBy"`
}

// AllocationPatch holds the fields of a partial update. Nil means unchanged.
type AllocationPatch struct {
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	HoursPerWeek *float64   `json:"hoursPerWeek" validate:"omitempty,gte=0,lte=168"`
	Percentage   *float64   `json:"percentage" validate:"omitempty,gte=0,lte=100"`
	Role         *string    `json:"role"`
	Status       *string    `json:"status" validate:"omitempty,oneof=pending active completed cancelled"`
	Billable     *bool      `json:"billable"`
	Notes        *string    `json:"notes"`
	ApprovedBy   *string    `json:"approvedBy"`
}

type AllocationService struct {
	Store  AllocationStore
	Events Publisher
	Now    func() time.Time
}

func NewAllocationService(store AllocationStore, pub Publisher) *AllocationService {
	return &AllocationService{Store: store, Events: publisherOrNop(pub), Now: time.Now}
}

func (s *AllocationService) List(ctx context.Context, f models.AllocationFilter) ([]models.Allocation, error) {
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return nil, invalid("endDate must not be before startDate")
	}
	return s.Store.ListAllocations(ctx, f)
}

func (s *AllocationService) Get(ctx context.Context, id string) (models.Allocation, error) {
	return s.Store.GetAllocation(ctx, id)
}

// Create persists a new allocation and announces it on the bus. The returned
// record carries the expanded employee and project.
func (s *AllocationService) Create(ctx context.Context, in AllocationInput, createdBy string) (models.Allocation, error) {
	if in.EndDate.Before(in.StartDate) {
		return models.Allocation{}, invalid("endDate must not be before startDate")
	}
	now := s.Now().UTC()
	a := models.Allocation{
		ID:           uuid.NewString(),
		EmployeeID:   in.EmployeeID,
		ProjectID:    in.ProjectID,
		StartDate:    in.StartDate.UTC(),
		EndDate:      in.EndDate.UTC(),
		HoursPerWeek: in.HoursPerWeek,
		Percentage:   in.Percentage,
		Role:         in.Role,
		Status:       in.Status,
		Billable:     true,
		Notes:        in.Notes,
		ApprovedBy:   in.ApprovedBy,
		Conflicts:    []models.AllocationConflict{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if a.Status == "" {
		a.Status = models.AllocationPending
	}
	if in.Billable != nil {
		a.Billable = *in.Billable
	}
	if createdBy != "" {
		a.CreatedBy = &createdBy
	}

	if err := s.Store.CreateAllocation(ctx, &a); err != nil {
		return models.Allocation{}, allocationWriteError(err)
	}
	created, err := s.Store.GetAllocation(ctx, a.ID)
	if err != nil {
		return models.Allocation{}, fmt.Errorf("reload allocation %s: %w", a.ID, err)
	}
	s.Events.Publish(ctx, events.AllocationCreated, created)
	return created, nil
}

func (s *AllocationService) Update(ctx context.Context, id string, p AllocationPatch) (models.Allocation, error) {
	a, err := s.Store.GetAllocation(ctx, id)
	if err != nil {
		return models.Allocation{}, err
	}
	if p.StartDate != nil {
		a.StartDate = p.StartDate.UTC()
	}
	if p.EndDate != nil {
		a.EndDate = p.EndDate.UTC()
	}
	if a.EndDate.Before(a.StartDate) {
		return models.Allocation{}, invalid("endDate must not be before startDate")
	}
	if p.HoursPerWeek != nil {
		a.HoursPerWeek = *p.HoursPerWeek
	}
	if p.Percentage != nil {
		a.Percentage = *p.Percentage
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Billable != nil {
		a.Billable = *p.Billable
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.ApprovedBy != nil {
		a.ApprovedBy = p.ApprovedBy
	}
	a.UpdatedAt = s.Now().UTC()

	if err := s.Store.UpdateAllocation(ctx, &a); err != nil {
		return models.Allocation{}, allocationWriteError(err)
	}
	updated, err := s.Store.GetAllocation(ctx, id)
	if err != nil {
		return models.Allocation{}, fmt.Errorf("reload allocation %s: %w", id, err)
	}
	s.Events.Publish(ctx, events.AllocationUpdated, updated)
	return updated, nil
}

func (s *AllocationService) Delete(ctx context.Context, id string) error {
	if err := s.Store.DeleteAllocation(ctx, id); err != nil {
		return err
	}
	s.Events.Publish(ctx, events.AllocationDeleted, id)
	return nil
}

func allocationWriteError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrDuplicate):
		return ErrDuplicateAllocation
	case errors.Is(err, sentinel.ErrReference):
		return invalid("employee or project does not exist")
	}
	return err
}
