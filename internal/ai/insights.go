package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/allocai/backend/internal/conflict"
	"github.com/allocai/backend/internal/metrics"
	"github.com/allocai/backend/internal/models"
)

var errNoInsights = errors.New("reply carries no usable insight")

// FallbackInsight is returned whenever the model cannot be reached or its
// reply cannot be used.
var FallbackInsight = models.Insight{
	Type:        "risk",
	Title:       "Heuristic Drift detected",
	Description: "AI synchronization error. Heuristic analysis suggests checking resource utilization trends safely.",
	Color:       "amber",
	Priority:    models.PriorityMedium,
}

type Generator struct {
	Assistant Assistant
	Logger    zerolog.Logger
	Timeout   time.Duration
	Now       func() time.Time
}

func NewGenerator(a Assistant, logger zerolog.Logger) *Generator {
	return &Generator{
		Assistant: a,
		Logger:    logger.With().Str("component", "ai_generator").Logger(),
		Timeout:   defaultTimeout,
		Now:       time.Now,
	}
}

func (g *Generator) AnalyzeResourceEfficiency(ctx context.Context, snap models.Snapshot, findings []conflict.Finding) models.InsightReport {
	now := g.Now().UTC()
	if g.Assistant == nil {
		g.Logger.Warn().Msg("assistant not configured, using fallback insight")
		return g.fallback(now)
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	reply, err := g.Assistant.Ask(ctx, BuildPrompt(snap, findings), nil)
	if err != nil {
		g.Logger.Error().Err(err).Msg("insight analysis failed")
		return g.fallback(now)
	}
	insights, err := ParseReply(reply)
	if err != nil {
		g.Logger.Error().Err(err).Int("reply_bytes", len(reply)).Msg("insight reply rejected")
		return g.fallback(now)
	}

	metrics.InsightReports.WithLabelValues(SourceAI).Inc()
	return models.InsightReport{Insights: insights, Source: SourceAI, GeneratedAt: now}
}

func (g *Generator) fallback(now time.Time) models.InsightReport {
	metrics.InsightReports.WithLabelValues(SourceFallback).Inc()
	return models.InsightReport{
		Insights:    []models.Insight{FallbackInsight},
		Source:      SourceFallback,
		GeneratedAt: now,
	}
}

type promptEmployee struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	JobTitle string         `json:"jobTitle,omitempty"`
	Skills   []models.Skill `json:"skills"`
}

type promptAllocation struct {
	EmployeeID string  `json:"empId"`
	ProjectID  string  `json:"projId"`
	Hours      float64 `json:"hours"`
	Role       string  `json:"role,omitempty"`
}

type promptProject struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// BuildPrompt serialises reduced projections of the snapshot plus the
// deterministic findings into the analysis prompt.
func BuildPrompt(snap models.Snapshot, findings []conflict.Finding) string {
	employees := make([]promptEmployee, 0, len(snap.Employees))
	for _, e := range snap.Employees {
		employees = append(employees, promptEmployee{ID: e.ID, Name: e.FullName(), JobTitle: e.JobTitle, Skills: e.Skills})
	}
	allocations := make([]promptAllocation, 0, len(snap.Allocations))
	for _, a := range snap.Allocations {
		allocations = append(allocations, promptAllocation{EmployeeID: a.EmployeeID, ProjectID: a.ProjectID, Hours: a.HoursPerWeek, Role: a.Role})
	}
	projects := make([]promptProject, 0, len(snap.Projects))
	for _, p := range snap.Projects {
		projects = append(projects, promptProject{ID: p.ID, Name: p.Name, Status: p.Status, Priority: p.Priority})
	}

	var b strings.Builder
	b.WriteString("Analyze the following resource data for a corporate resource management platform:\n\n")
	fmt.Fprintf(&b, "Employees: %s\n", mustJSON(employees))
	fmt.Fprintf(&b, "Allocations: %s\n", mustJSON(allocations))
	fmt.Fprintf(&b, "Projects: %s\n", mustJSON(projects))
	if len(findings) > 0 {
		fmt.Fprintf(&b, "Detected conflicts: %s\n", mustJSON(findings))
	}
	b.WriteString(`
Tasks:
1. Conflict Prediction: Detect overlapping allocations that exceed 40h total per employee per week.
2. Burnout Risk: Identify employees with high-priority project roles and high weekly hours.
3. Utilization Optimization: Find senior employees with < 20h allocation.
4. Team Composition Suggestion: Recommend a team for a hypothetical high-priority project based on skills.

Requirements:
- Return a JSON object with a key "insights" which is an array of objects.
- Each insight object must have: type ('optimization' | 'risk' | 'trend'), title, description, color ('blue' | 'rose' | 'emerald' | 'amber'), and priority ('low' | 'medium' | 'high' | 'critical').
`)
	return b.String()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ParseReply decodes the model reply and normalises every insight. A reply
// that yields no insight is an error.
func ParseReply(raw string) ([]models.Insight, error) {
	var body struct {
		Insights []models.Insight `json:"insights"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &body); err != nil {
		return nil, fmt.Errorf("decode insight reply: %w", err)
	}
	out := make([]models.Insight, 0, len(body.Insights))
	for _, in := range body.Insights {
		if n, ok := normalise(in); ok {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, errNoInsights
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

var defaultColor = map[string]string{
	"risk":         "rose",
	"optimization": "emerald",
	"trend":        "blue",
}

func normalise(in models.Insight) (models.Insight, bool) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return models.Insight{}, false
	}
	in.Description = strings.TrimSpace(in.Description)

	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if _, ok := defaultColor[in.Type]; !ok {
		in.Type = "trend"
	}

	in.Color = strings.ToLower(strings.TrimSpace(in.Color))
	switch in.Color {
	case "blue", "rose", "emerald", "amber":
	default:
		in.Color = defaultColor[in.Type]
	}

	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	switch in.Priority {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical:
	default:
		in.Priority = models.PriorityMedium
	}
	return in, true
}
