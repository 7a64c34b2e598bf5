// Package conflict finds over-allocation and overlapping assignments by
// summing allocated hours per employee per ISO week.
package conflict

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/allocai/backend/internal/models"
)

const (
	TypeOverallocation = "overallocation"
	TypeOverlap        = "allocation_overlap"
)

const week = 7 * 24 * time.Hour

type Finding struct {
	Type          string    `json:"type"`
	Severity      string    `json:"severity"`
	EmployeeID    string    `json:"employeeId"`
	EmployeeName  string    `json:"employeeName"`
	AllocationIDs []string  `json:"allocationIds"`
	ProjectIDs    []string  `json:"projectIds"`
	WeekStart     time.Time `json:"weekStart"`
	WeeksOver     int       `json:"weeksOver,omitempty"`
	PeakHours     float64   `json:"peakHours,omitempty"`
	Capacity      float64   `json:"capacity,omitempty"`
	Description   string    `json:"description"`
}

type Underutilised struct {
	EmployeeID   string  `json:"employeeId"`
	EmployeeName string  `json:"employeeName"`
	JobTitle     string  `json:"jobTitle,omitempty"`
	Hours        float64 `json:"hoursThisWeek"`
}

type Report struct {
	Findings      []Finding       `json:"conflicts"`
	Underutilised []Underutilised `json:"underutilised"`
	GeneratedAt   time.Time       `json:"generatedAt"`
}

type Detector struct {
	DefaultCapacity float64
	SeniorThreshold float64
	Now             func() time.Time
}

func NewDetector() *Detector {
	return &Detector{
		DefaultCapacity: 40,
		SeniorThreshold: 20,
		Now:             time.Now,
	}
}

// WeekStart returns Monday 00:00 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func counts(a models.Allocation) bool {
	return a.Status == models.AllocationActive || a.Status == models.AllocationPending
}

// span is a run of consecutive weeks with the same set of allocations.
type span struct {
	start       time.Time
	weeks       int
	hours       float64
	allocations []string
	projects    []string
}

func (d *Detector) capacity(e models.Employee) float64 {
	if e.Preferences.MaxHoursPerWeek > 0 {
		return e.Preferences.MaxHoursPerWeek
	}
	return d.DefaultCapacity
}

func (d *Detector) Detect(employees []models.Employee, allocations []models.Allocation) Report {
	now := d.Now().UTC()
	byEmployee := map[string][]models.Allocation{}
	for _, a := range allocations {
		if counts(a) {
			byEmployee[a.EmployeeID] = append(byEmployee[a.EmployeeID], a)
		}
	}
	known := map[string]models.Employee{}
	for _, e := range employees {
		known[e.ID] = e
	}

	ids := make([]string, 0, len(byEmployee))
	for id := range byEmployee {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	report := Report{Findings: []Finding{}, Underutilised: []Underutilised{}, GeneratedAt: now}
	for _, id := range ids {
		e, ok := known[id]
		if !ok {
			e = models.Employee{ID: id}
		}
		list := byEmployee[id]
		sort.Slice(list, func(i, j int) bool {
			if !list[i].StartDate.Equal(list[j].StartDate) {
				return list[i].StartDate.Before(list[j].StartDate)
			}
			return list[i].ID < list[j].ID
		})
		if f, ok := d.overallocation(e, list); ok {
			report.Findings = append(report.Findings, f)
		}
		report.Findings = append(report.Findings, overlaps(e, list)...)
	}

	current := WeekStart(now)
	for _, e := range employees {
		if !senior(e) {
			continue
		}
		var hours float64
		for _, a := range byEmployee[e.ID] {
			if a.Overlaps(current, current.Add(week-time.Nanosecond)) {
				hours += a.HoursPerWeek
			}
		}
		if hours < d.SeniorThreshold {
			report.Underutilised = append(report.Underutilised, Underutilised{
				EmployeeID:   e.ID,
				EmployeeName: e.FullName(),
				JobTitle:     e.JobTitle,
				Hours:        hours,
			})
		}
	}
	sort.Slice(report.Underutilised, func(i, j int) bool {
		return report.Underutilised[i].EmployeeID < report.Underutilised[j].EmployeeID
	})
	return report
}

// weeks returns the ISO week range [first, end) covered by the allocation.
func weeks(a models.Allocation) (time.Time, time.Time) {
	return WeekStart(a.StartDate), WeekStart(a.EndDate).Add(week)
}

// spans cuts the timeline at every week an allocation starts or stops, so
// the load inside each span is constant however long the allocations run.
func spans(list []models.Allocation) []span {
	seen := map[time.Time]bool{}
	var cuts []time.Time
	for _, a := range list {
		first, end := weeks(a)
		for _, t := range []time.Time{first, end} {
			if !seen[t] {
				seen[t] = true
				cuts = append(cuts, t)
			}
		}
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Before(cuts[j]) })

	out := make([]span, 0, len(cuts))
	for i := 0; i+1 < len(cuts); i++ {
		s := span{start: cuts[i], weeks: int(cuts[i+1].Sub(cuts[i]) / week)}
		for _, a := range list {
			first, end := weeks(a)
			if first.After(s.start) || !end.After(s.start) {
				continue
			}
			s.hours += a.HoursPerWeek
			s.allocations = append(s.allocations, a.ID)
			s.projects = append(s.projects, a.ProjectID)
		}
		out = append(out, s)
	}
	return out
}

func (d *Detector) overallocation(e models.Employee, list []models.Allocation) (Finding, bool) {
	valid := make([]models.Allocation, 0, len(list))
	for _, a := range list {
		if !a.EndDate.Before(a.StartDate) {
			valid = append(valid, a)
		}
	}

	capacity := d.capacity(e)
	var (
		over   []span
		total  int
		peak   float64
		allocs = newSet()
		projs  = newSet()
	)
	for _, s := range spans(valid) {
		if s.hours <= capacity {
			continue
		}
		over = append(over, s)
		total += s.weeks
		if s.hours > peak {
			peak = s.hours
		}
		allocs.add(s.allocations...)
		projs.add(s.projects...)
	}
	if len(over) == 0 {
		return Finding{}, false
	}
	first := over[0].start

	return Finding{
		Type:          TypeOverallocation,
		Severity:      severity(peak, capacity),
		EmployeeID:    e.ID,
		EmployeeName:  e.FullName(),
		AllocationIDs: allocs.items,
		ProjectIDs:    projs.items,
		WeekStart:     first,
		WeeksOver:     total,
		PeakHours:     peak,
		Capacity:      capacity,
		Description: fmt.Sprintf("%s is allocated %.0fh/week against a %.0fh capacity in %d week(s) starting %s",
			displayName(e), peak, capacity, total, first.Format("2006-01-02")),
	}, true
}

func overlaps(e models.Employee, list []models.Allocation) []Finding {
	var out []Finding
	for i := 0; i < len(list); i++ {
		for j := i + 1; j < len(list); j++ {
			a, b := list[i], list[j]
			if !a.Overlaps(b.StartDate, b.EndDate) {
				continue
			}
			start := a.StartDate
			if b.StartDate.After(start) {
				start = b.StartDate
			}
			out = append(out, Finding{
				Type:          TypeOverlap,
				Severity:      models.PriorityLow,
				EmployeeID:    e.ID,
				EmployeeName:  e.FullName(),
				AllocationIDs: []string{a.ID, b.ID},
				ProjectIDs:    []string{a.ProjectID, b.ProjectID},
				WeekStart:     WeekStart(start),
				Description: fmt.Sprintf("%s has overlapping allocations on projects %s and %s",
					displayName(e), a.ProjectID, b.ProjectID),
			})
		}
	}
	return out
}

func severity(peak, capacity float64) string {
	switch {
	case peak > capacity*1.5:
		return models.PriorityCritical
	case peak > capacity*1.25:
		return models.PriorityHigh
	default:
		return models.PriorityMedium
	}
}

func senior(e models.Employee) bool {
	for _, s := range e.Skills {
		if s.Level >= 4 || s.YearsOfExperience >= 5 {
			return true
		}
	}
	return false
}

func displayName(e models.Employee) string {
	if n := e.FullName(); n != "" {
		return n
	}
	return e.ID
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newSet() *orderedSet { return &orderedSet{seen: map[string]bool{}, items: []string{}} }

func (s *orderedSet) add(vs ...string) {
	for _, v := range vs {
		if !s.seen[v] {
			s.seen[v] = true
			s.items = append(s.items, v)
		}
	}
}

// Conflicts converts findings into persisted conflict records.
func (r Report) Conflicts() []models.Conflict {
	out := make([]models.Conflict, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, models.Conflict{
			ID:                  uuid.NewString(),
			Type:                f.Type,
			Severity:            f.Severity,
			Status:              "detected",
			AffectedAllocations: f.AllocationIDs,
			AffectedEmployees:   []string{f.EmployeeID},
			AffectedProjects:    f.ProjectIDs,
			DetectedAt:          r.GeneratedAt,
			DetectedBy:          "system",
			AISuggestions:       suggestions(f),
			CreatedAt:           r.GeneratedAt,
			UpdatedAt:           r.GeneratedAt,
		})
	}
	return out
}

func suggestions(f Finding) []models.ConflictSuggestion {
	who := f.EmployeeName
	if who == "" {
		who = f.EmployeeID
	}
	switch f.Type {
	case TypeOverallocation:
		return []models.ConflictSuggestion{{
			Action:     "Reduce hours or reassign work for " + who,
			Reasoning:  f.Description,
			Confidence: 0.9,
			Impact:     "Brings weekly load back under capacity",
		}}
	default:
		return []models.ConflictSuggestion{}
	}
}

// Insights converts findings into AIInsight records targeting employees.
func (r Report) Insights() []models.AIInsight {
	out := []models.AIInsight{}
	expires := r.GeneratedAt.Add(week)
	for _, f := range r.Findings {
		if f.Type != TypeOverallocation {
			continue
		}
		probability := 0.6
		if f.Severity == models.PriorityHigh {
			probability = 0.75
		} else if f.Severity == models.PriorityCritical {
			probability = 0.9
		}
		out = append(out, models.AIInsight{
			ID:         uuid.NewString(),
			Type:       "burnout_risk",
			TargetID:   f.EmployeeID,
			TargetType: "employee",
			Prediction: models.InsightPrediction{
				Outcome:     "overallocation",
				Probability: probability,
				Timeframe:   f.WeekStart.Format("2006-01-02"),
				Confidence:  0.9,
			},
			Recommendation: models.InsightRecommendation{
				Action:         "Rebalance allocations",
				Reasoning:      f.Description,
				ExpectedImpact: "Lower burnout risk",
				Priority:       f.Severity,
			},
			Factors: []models.InsightFactor{
				{Factor: "peak_hours", Weight: 1, Value: f.PeakHours},
				{Factor: "capacity", Weight: 1, Value: f.Capacity},
				{Factor: "weeks_over", Weight: 0.5, Value: f.WeeksOver},
			},
			Status:    "pending",
			ExpiresAt: &expires,
			CreatedAt: r.GeneratedAt,
			UpdatedAt: r.GeneratedAt,
		})
	}
	for _, u := range r.Underutilised {
		out = append(out, models.AIInsight{
			ID:         uuid.NewString(),
			Type:       "utilization_forecast",
			TargetID:   u.EmployeeID,
			TargetType: "employee",
			Prediction: models.InsightPrediction{
				Outcome:     "underutilised",
				Probability: 0.8,
				Timeframe:   WeekStart(r.GeneratedAt).Format("2006-01-02"),
				Confidence:  0.8,
			},
			Recommendation: models.InsightRecommendation{
				Action:   "Assign senior capacity to open work",
				Priority: models.PriorityMedium,
			},
			Factors:   []models.InsightFactor{{Factor: "hours_this_week", Weight: 1, Value: u.Hours}},
			Status:    "pending",
			ExpiresAt: &expires,
			CreatedAt: r.GeneratedAt,
			UpdatedAt: r.GeneratedAt,
		})
	}
	return out
}

// AllocationConflicts groups findings by allocation in the embedded form
// stored on each allocation.
func (r Report) AllocationConflicts() map[string][]models.AllocationConflict {
	out := map[string][]models.AllocationConflict{}
	for _, f := range r.Findings {
		kind := "overallocation"
		if f.Type == TypeOverlap {
			kind = "overlap"
		}
		for _, id := range f.AllocationIDs {
			out[id] = append(out[id], models.AllocationConflict{
				Type:       kind,
				Severity:   f.Severity,
				DetectedAt: r.GeneratedAt,
			})
		}
	}
	return out
}
