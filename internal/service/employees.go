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

type SkillInput struct {
	Name              string  `json:"name" validate:"required"`
	Level             int     `json:"level" validate:"gte=1,lte=5"`
	YearsOfExperience float64 `json:"yearsOfExperience" validate:"gte=0"`
	Certified         bool    `json:"certified"`
}

type AvailabilityInput struct {
	StartDate  time.Time `json:"startDate" validate:"required"`
	EndDate    time.Time `json:"endDate" validate:"required"`
	Type       string    `json:"type" validate:"omitempty,oneof=available vacation sick_leave training"`
	Percentage int       `json:"percentage" validate:"gte=0,lte=100"`
}

type EmployeeInput struct {
	UserID       *string                     `json:"userId"`
	EmployeeCode string                      `json:"employeeCode" validate:"required"`
	FirstName    string                      `json:"firstName" validate:"required"`
	LastName     string                      `json:"lastName" validate:"required"`
	Email        string                      `json:"email" validate:"omitempty,email"`
	Skills       []SkillInput                `json:"skills" validate:"dive"`
	Department   string                      `json:"department"`
	JobTitle     string                      `json:"jobTitle"`
	Location     string                      `json:"location"`
	CostPerHour  float64                     `json:"costPerHour" validate:"gte=0"`
	Availability []AvailabilityInput         `json:"availability" validate:"dive"`
	Preferences  *models.EmployeePreferences `json:"preferences"`
}

type EmployeePatch struct {
	EmployeeCode *string                     `json:"employeeCode" validate:"omitempty,min=1"`
	FirstName    *string                     `json:"firstName" validate:"omitempty,min=1"`
	LastName     *string                     `json:"lastName" validate:"omitempty,min=1"`
	Email        *string                     `json:"email" validate:"omitempty,email"`
	Skills       []SkillInput                `json:"skills" validate:"omitempty,dive"`
	Department   *string                     `json:"department"`
	JobTitle     *string                     `json:"jobTitle"`
	Location     *string                     `json:"location"`
	CostPerHour  *float64                    `json:"costPerHour" validate:"omitempty,gte=0"`
	Availability []AvailabilityInput         `json:"availability" validate:"omitempty,dive"`
	Preferences  *models.EmployeePreferences `json:"preferences"`
	Metrics      *models.EmployeeMetrics     `json:"metrics"`
}

type EmployeeService struct {
	Store  EmployeeStore
	Events Publisher
	Now    func() time.Time
}

func NewEmployeeService(store EmployeeStore, pub Publisher) *EmployeeService {
	return &EmployeeService{Store: store, Events: publisherOrNop(pub), Now: time.Now}
}

func (s *EmployeeService) List(ctx context.Context) ([]models.Employee, error) {
	return s.Store.ListEmployees(ctx)
}

func (s *EmployeeService) Get(ctx context.Context, id string) (models.Employee, error) {
	return s.Store.GetEmployee(ctx, id)
}

func (s *EmployeeService) Create(ctx context.Context, in EmployeeInput) (models.Employee, error) {
	now := s.Now().UTC()
	e := models.Employee{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		EmployeeCode: in.EmployeeCode,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Skills:       toSkills(in.Skills),
		Department:   in.Department,
		JobTitle:     in.JobTitle,
		Location:     in.Location,
		CostPerHour:  in.CostPerHour,
		Availability: toAvailability(in.Availability),
		Preferences:  models.EmployeePreferences{MaxHoursPerWeek: 40},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Preferences != nil {
		e.Preferences = *in.Preferences
		if e.Preferences.MaxHoursPerWeek <= 0 {
			e.Preferences.MaxHoursPerWeek = 40
		}
	}
	if err := validateAvailability(e.Availability); err != nil {
		return models.Employee{}, err
	}

	if err := s.Store.CreateEmployee(ctx, &e); err != nil {
		return models.Employee{}, employeeWriteError(err)
	}
	s.Events.Publish(ctx, events.EmployeeJoined, e)
	return e, nil
}

func (s *EmployeeService) Update(ctx context.Context, id string, p EmployeePatch) (models.Employee, error) {
	e, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return models.Employee{}, err
	}
	setString(&e.EmployeeCode, p.EmployeeCode)
	setString(&e.FirstName, p.FirstName)
	setString(&e.LastName, p.LastName)
	setString(&e.Email, p.Email)
	setString(&e.Department, p.Department)
	setString(&e.JobTitle, p.JobTitle)
	setString(&e.Location, p.Location)
	if p.CostPerHour != nil {
		e.CostPerHour = *p.CostPerHour
	}
	if p.Skills != nil {
		e.Skills = toSkills(p.Skills)
	}
	if p.Availability != nil {
		e.Availability = toAvailability(p.Availability)
		if err := validateAvailability(e.Availability); err != nil {
			return models.Employee{}, err
		}
	}
	if p.Preferences != nil {
		e.Preferences = *p.Preferences
	}
	if p.Metrics != nil {
		e.Metrics = *p.Metrics
	}
	e.UpdatedAt = s.Now().UTC()

	if err := s.Store.UpdateEmployee(ctx, &e); err != nil {
		return models.Employee{}, employeeWriteError(err)
	}
	return e, nil
}

func (s *EmployeeService) Delete(ctx context.Context, id string) error {
	return s.Store.DeleteEmployee(ctx, id)
}

func employeeWriteError(err error) error {
	if errors.Is(err, sentinel.ErrDuplicate) {
		return fmt.Errorf("employee code already in use: %w", err)
	}
	return referenceError(err, "user")
}

func toSkills(in []SkillInput) []models.Skill {
	out := make([]models.Skill, 0, len(in))
	for _, s := range in {
		out = append(out, models.Skill{
			Name:              s.Name,
			Level:             s.Level,
			YearsOfExperience: s.YearsOfExperience,
			Certified:         s.Certified,
		})
	}
	return out
}

func toAvailability(in []AvailabilityInput) []models.AvailabilityWindow {
	out := make([]models.AvailabilityWindow, 0, len(in))
	for _, w := range in {
		typ := w.Type
		if typ == "" {
			typ = "available"
		}
		out = append(out, models.AvailabilityWindow{
			StartDate:  w.StartDate.UTC(),
			EndDate:    w.EndDate.UTC(),
			Type:       typ,
			Percentage: w.Percentage,
		})
	}
	return out
}

func validateAvailability(ws []models.AvailabilityWindow) error {
	for i, w := range ws {
		if w.EndDate.Before(w.StartDate) {
			return invalid("availability[%d]: endDate must not be before startDate", i)
		}
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
