package models

import "time"

const (
	RoleAdmin           = "admin"
	RoleResourceManager = "resource_manager"
	RoleProjectManager  = "project_manager"
	RoleEmployee        = "employee"
)

const (
	AllocationPending   = "pending"
	AllocationActive    = "active"
	AllocationCompleted = "completed"
	AllocationCancelled = "cancelled"
)

const (
	ProjectPlanning  = "planning"
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Role         string     `json:"role"`
	Department   string     `json:"department,omitempty"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Skill struct {
	Name              string  `json:"name"`
	Level             int     `json:"level"`
	YearsOfExperience float64 `json:"yearsOfExperience"`
	Certified         bool    `json:"certified"`
}

type AvailabilityWindow struct {
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	Type       string    `json:"type"`
	Percentage int       `json:"percentage"`
}

type EmployeePreferences struct {
	MaxHoursPerWeek       float64  `json:"maxHoursPerWeek"`
	PreferredProjectTypes []string `json:"preferredProjectTypes,omitempty"`
	WillingToTravel       bool     `json:"willingToTravel"`
}

type EmployeeMetrics struct {
	TotalProjects        int     `json:"totalProjects"`
	AverageProjectRating float64 `json:"averageProjectRating"`
	UtilizationRate      float64 `json:"utilizationRate"`
}

type Employee struct {
	ID           string               `json:"id"`
	UserID       *string              `json:"userId,omitempty"`
	EmployeeCode string               `json:"employeeCode"`
	FirstName    string               `json:"firstName"`
	LastName     string               `json:"lastName"`
	Email        string               `json:"email,omitempty"`
	Skills       []Skill              `json:"skills"`
	Department   string               `json:"department,omitempty"`
	JobTitle     string               `json:"jobTitle,omitempty"`
	Location     string               `json:"location,omitempty"`
	CostPerHour  float64              `json:"costPerHour"`
	Availability []AvailabilityWindow `json:"availability"`
	Preferences  EmployeePreferences  `json:"preferences"`
	Metrics      EmployeeMetrics      `json:"metrics"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

func (e Employee) FullName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// Capacity is the weekly hour ceiling used for over-allocation checks.
func (e Employee) Capacity() float64 {
	if e.Preferences.MaxHoursPerWeek > 0 {
		return e.Preferences.MaxHoursPerWeek
	}
	return 40
}

type RequiredSkill struct {
	Skill string `json:"skill"`
	Level int    `json:"level"`
	Count int    `json:"count"`
}

type Milestone struct {
	Name                 string     `json:"name"`
	Deadline             *time.Time `json:"deadline,omitempty"`
	Status               string     `json:"status"`
	CompletionPercentage float64    `json:"completionPercentage"`
}

type Project struct {
	ID               string          `json:"id"`
	ProjectCode      string          `json:"projectCode"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Status           string          `json:"status"`
	Priority         string          `json:"priority"`
	StartDate        time.Time       `json:"startDate"`
	EndDate          time.Time       `json:"endDate"`
	Budget           *float64        `json:"budget,omitempty"`
	Client           string          `json:"client,omitempty"`
	ProjectManagerID *string         `json:"projectManagerId,omitempty"`
	RequiredSkills   []RequiredSkill `json:"requiredSkills"`
	Milestones       []Milestone     `json:"milestones"`
	AIHealthScore    float64         `json:"aiHealthScore"`
	RiskFactors      []string        `json:"riskFactors"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type AllocationConflict struct {
	Type       string     `json:"type"`
	Severity   string     `json:"severity"`
	DetectedAt time.Time  `json:"detectedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
}

type Allocation struct {
	ID           string               `json:"id"`
	EmployeeID   string               `json:"employeeId"`
	ProjectID    string               `json:"projectId"`
	StartDate    time.Time            `json:"startDate"`
	EndDate      time.Time            `json:"endDate"`
	HoursPerWeek float64              `json:"hoursPerWeek"`
	Percentage   float64              `json:"percentage"`
	Role         string               `json:"role,omitempty"`
	Status       string               `json:"status"`
	Billable     bool                 `json:"billable"`
	Notes        string               `json:"notes,omitempty"`
	CreatedBy    *string              `json:"createdBy,omitempty"`
	ApprovedBy   *string              `json:"approvedBy,omitempty"`
	Conflicts    []AllocationConflict `json:"conflicts"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`

	Employee *Employee `json:"employee,omitempty"`
	Project  *Project  `json:"project,omitempty"`
}

// Overlaps reports whether the allocation window intersects [start, end].
func (a Allocation) Overlaps(start, end time.Time) bool {
	return !a.StartDate.After(end) && !a.EndDate.Before(start)
}

type AllocationFilter struct {
	Start      *time.Time
	End        *time.Time
	EmployeeID string
	ProjectID  string
}

type Webhook struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Events        []string   `json:"events"`
	Secret        string     `json:"-"`
	IsActive      bool       `json:"isActive"`
	Description   string     `json:"description,omitempty"`
	LastTriggered *time.Time `json:"lastTriggered,omitempty"`
	SuccessCount  int64      `json:"successCount"`
	FailureCount  int64      `json:"failureCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type InsightPrediction struct {
	Outcome     string  `json:"outcome,omitempty"`
	Probability float64 `json:"probability"`
	Timeframe   string  `json:"timeframe,omitempty"`
	Confidence  float64 `json:"confidence"`
}

type InsightRecommendation struct {
	Action         string `json:"action,omitempty"`
	Reasoning      string `json:"reasoning,omitempty"`
	ExpectedImpact string `json:"expectedImpact,omitempty"`
	Priority       string `json:"priority,omitempty"`
}

type InsightFactor struct {
	Factor string  `json:"factor"`
	Weight float64 `json:"weight"`
	Value  any     `json:"value,omitempty"`
}

// AIInsight is the persisted form of an insight attached to an entity.
type AIInsight struct {
	ID             string                `json:"id"`
	Type           string                `json:"type"`
	TargetID       string                `json:"targetId"`
	TargetType     string                `json:"targetType"`
	Prediction     InsightPrediction     `json:"prediction"`
	Recommendation InsightRecommendation `json:"recommendation"`
	Factors        []InsightFactor       `json:"factors"`
	Status         string                `json:"status"`
	AppliedBy      *string               `json:"appliedBy,omitempty"`
	AppliedAt      *time.Time            `json:"appliedAt,omitempty"`
	ExpiresAt      *time.Time            `json:"expiresAt,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

type ConflictSuggestion struct {
	Action     string  `json:"action"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence"`
	Impact     string  `json:"impact,omitempty"`
}

type ConflictResolution struct {
	ResolvedBy *string    `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Action     string     `json:"action,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

type Conflict struct {
	ID                  string               `json:"id"`
	Type                string               `json:"type"`
	Severity            string               `json:"severity"`
	Status              string               `json:"status"`
	AffectedAllocations []string             `json:"affectedAllocations"`
	AffectedEmployees   []string             `json:"affectedEmployees"`
	AffectedProjects    []string             `json:"affectedProjects"`
	DetectedAt          time.Time            `json:"detectedAt"`
	DetectedBy          string               `json:"detectedBy"`
	AISuggestions       []ConflictSuggestion `json:"aiSuggestions"`
	Resolution          *ConflictResolution  `json:"resolution,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// Insight is one human-readable item of an insight report.
type Insight struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Priority    string `json:"priority"`
}

type InsightReport struct {
	Insights    []Insight `json:"insights"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Snapshot is the whole resource state handed to the analysis pipeline.
type Snapshot struct {
	Employees   []Employee
	Allocations []Allocation
	Projects    []Project
}
