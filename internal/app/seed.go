package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/allocai/backend/internal/auth"
	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/sentinel"
	"github.com/allocai/backend/internal/service"
)

const (
	SeedAdminEmail       = "admin@allocai.com"
	seedAdminPassword    = "AdminPassword123!"
	seedEmployeePassword = "Password123!"
)

type seedPerson struct {
	first, last, email, title, dept, code string
}

var seedPeople = []seedPerson{
	{"Sarah", "Chen", "s.chen@allocai.com", "Senior Full Stack Engineer", "Engineering", "EMP-1001"},
	{"Marcus", "Rodriguez", "m.rod@allocai.com", "UI/UX Designer", "Product", "EMP-1002"},
	{"Elena", "Petrova", "e.petrova@allocai.com", "Data Scientist", "AI/ML", "EMP-1003"},
}

// SeedSummary counts what Seed created.
type SeedSummary struct {
	Users       int
	Employees   int
	Projects    int
	Allocations int
}

// Seed loads the demo data set: an admin, three employees with linked user
// accounts, two projects and three allocations. Records that already exist
// are left alone, so running it twice is harmless.
func Seed(ctx context.Context, store service.Store, logger zerolog.Logger) (SeedSummary, error) {
	var sum SeedSummary
	now := time.Now().UTC()

	ensureUser := func(email, password, first, last, role string) (models.User, error) {
		u, err := store.GetUserByEmail(ctx, email)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return models.User{}, err
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return models.User{}, err
		}
		u = models.User{
			ID: uuid.NewString(), Email: email, PasswordHash: hash, FirstName: first, LastName: last,
			Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now,
		}
		if err := store.CreateUser(ctx, &u); err != nil {
			return models.User{}, fmt.Errorf("create user %s: %w", email, err)
		}
		sum.Users++
		return u, nil
	}

	if _, err := ensureUser(SeedAdminEmail, seedAdminPassword, "Platform", "Admin", models.RoleAdmin); err != nil {
		return sum, err
	}

	employees := service.NewEmployeeService(store, nil)
	projects := service.NewProjectService(store, nil)
	allocations := service.NewAllocationService(store, nil)

	var seeded []models.Employee
	for _, p := range seedPeople {
		u, err := ensureUser(p.email, seedEmployeePassword, p.first, p.last, models.RoleEmployee)
		if err != nil {
			return sum, err
		}
		if e, err := store.GetEmployeeByUserID(ctx, u.ID); err == nil {
			seeded = append(seeded, e)
			continue
		}
		e, err := employees.Create(ctx, service.EmployeeInput{
			UserID:       &u.ID,
			EmployeeCode: p.code,
			FirstName:    p.first,
			LastName:     p.last,
			Email:        p.email,
			JobTitle:     p.title,
			Department:   p.dept,
			Skills: []service.SkillInput{
				{Name: "TypeScript", Level: 5, YearsOfExperience: 4, Certified: true},
				{Name: "Node.js", Level: 4, YearsOfExperience: 3},
			},
			Availability: []service.AvailabilityInput{{
				StartDate: now, EndDate: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), Type: "available", Percentage: 100,
			}},
		})
		if err != nil {
			return sum, fmt.Errorf("create employee %s: %w", p.code, err)
		}
		sum.Employees++
		seeded = append(seeded, e)
	}

	existing, err := store.ListProjects(ctx)
	if err != nil {
		return sum, err
	}
	if len(existing) > 0 {
		logger.Info().Int("projects", len(existing)).Msg("projects present, skipping project and allocation seed")
		return sum, nil
	}

	titanBudget, nebulaBudget := 500000.0, 250000.0
	titan, err := projects.Create(ctx, service.ProjectInput{
		ProjectCode: "TITAN-01", Name: "Project Titan", Description: "Next-gen enterprise storage engine",
		Status: models.ProjectActive, Priority: models.PriorityHigh, Budget: &titanBudget,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return sum, err
	}
	nebula, err := projects.Create(ctx, service.ProjectInput{
		ProjectCode: "NEBULA-99", Name: "Nebula App", Description: "Cross-platform mobile wellness experience",
		Status: models.ProjectActive, Priority: models.PriorityMedium, Budget: &nebulaBudget,
		StartDate: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return sum, err
	}
	sum.Projects = 2

	plan := []struct {
		emp   models.Employee
		proj  models.Project
		role  string
		hours float64
		pct   float64
	}{
		{seeded[0], titan, "Lead Developer", 30, 75},
		{seeded[1], nebula, "Visual Designer", 40, 100},
		{seeded[2], titan, "ML Advisor", 20, 50},
	}
	for _, p := range plan {
		_, err := allocations.Create(ctx, service.AllocationInput{
			EmployeeID: p.emp.ID, ProjectID: p.proj.ID, Role: p.role,
			HoursPerWeek: p.hours, Percentage: p.pct,
			StartDate: p.proj.StartDate, EndDate: p.proj.EndDate,
		}, "")
		if err != nil {
			return sum, fmt.Errorf("create allocation %s/%s: %w", p.emp.EmployeeCode, p.proj.ProjectCode, err)
		}
		sum.Allocations++
	}
	return sum, nil
}
