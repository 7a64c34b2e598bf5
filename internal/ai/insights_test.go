package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/allocai/backend/internal/ai"
	"github.com/allocai/backend/internal/ai/mocks"
	"github.com/allocai/backend/internal/conflict"
	"github.com/allocai/backend/internal/models"
)

func snapshot() models.Snapshot {
	return models.Snapshot{
		Employees: []models.Employee{{ID: "e1", FirstName: "Grace", LastName: "Hopper", JobTitle: "Staff Engineer",
			Skills: []models.Skill{{Name: "cobol", Level: 5}}}},
		Allocations: []models.Allocation{{ID: "a1", EmployeeID: "e1", ProjectID: "p1", HoursPerWeek: 40, Role: "lead"}},
		Projects:    []models.Project{{ID: "p1", Name: "Compiler", Status: models.ProjectActive, Priority: models.PriorityHigh}},
	}
}

func newGenerator(a ai.Assistant) *ai.Generator {
	g := ai.NewGenerator(a, zerolog.Nop())
	g.Now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	return g
}

func TestGeneratorReturnsParsedInsights(t *testing.T) {
	ctrl := gomock.NewController(t)
	assistant := mocks.NewMockAssistant(ctrl)
	assistant.EXPECT().
		Ask(gomock.Any(), gomock.Any(), gomock.Nil()).
		DoAndReturn(func(_ context.Context, prompt string, _ []ai.ChatMessage) (string, error) {
			assert.Contains(t, prompt, `"name":"Grace Hopper"`)
			assert.Contains(t, prompt, `"hours":40`)
			assert.Contains(t, prompt, "Detected conflicts")
			return "```json\n{\"insights\":[{\"type\":\"Risk\",\"title\":\" Grace is at capacity \",\"description\":\"40h\",\"color\":\"purple\",\"priority\":\"urgent\"},{\"type\":\"trend\",\"title\":\"\"}]}\n```", nil
		})

	findings := []conflict.Finding{{Type: conflict.TypeOverallocation, EmployeeID: "e1"}}
	report := newGenerator(assistant).AnalyzeResourceEfficiency(context.Background(), snapshot(), findings)

	require.Len(t, report.Insights, 1)
	assert.Equal(t, ai.SourceAI, report.Source)
	assert.Equal(t, models.Insight{
		Type:        "risk",
		Title:       "Grace is at capacity",
		Description: "40h",
		Color:       "rose",
		Priority:    models.PriorityMedium,
	}, report.Insights[0])
}

func TestGeneratorFallsBack(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "transport error", err: errors.New("connection refused")},
		{name: "rate limited", err: ai.RateLimitError{RetryAfter: time.Second}},
		{name: "invalid json", reply: "I think everything is fine"},
		{name: "empty insights", reply: `{"insights":[]}`},
		{name: "missing insights key", reply: `{"result":"ok"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			assistant := mocks.NewMockAssistant(ctrl)
			assistant.EXPECT().Ask(gomock.Any(), gomock.Any(), gomock.Any()).Return(tc.reply, tc.err)

			report := newGenerator(assistant).AnalyzeResourceEfficiency(context.Background(), snapshot(), nil)

			require.Len(t, report.Insights, 1)
			assert.Equal(t, ai.FallbackInsight, report.Insights[0])
			assert.Equal(t, ai.SourceFallback, report.Source)
		})
	}
}

func TestGeneratorWithoutAssistant(t *testing.T) {
	report := newGenerator(nil).AnalyzeResourceEfficiency(context.Background(), models.Snapshot{}, nil)
	require.Len(t, report.Insights, 1)
	assert.Equal(t, "Heuristic Drift detected", report.Insights[0].Title)
	assert.Equal(t, "amber", report.Insights[0].Color)
}

func TestGeneratorUnconfiguredClientFallsBack(t *testing.T) {
	report := newGenerator(&ai.OpenAICompatAssistant{BaseURL: "https://api.openai.com/v1", Model: "gpt-4-turbo-preview"}).
		AnalyzeResourceEfficiency(context.Background(), snapshot(), nil)
	assert.Equal(t, []models.Insight{ai.FallbackInsight}, report.Insights)
}

func TestStaticAssistantRepliesParse(t *testing.T) {
	g := newGenerator(ai.StaticAssistant{})
	report := g.AnalyzeResourceEfficiency(context.Background(), snapshot(), nil)
	assert.Equal(t, ai.SourceAI, report.Source)
	assert.NotEmpty(t, report.Insights)
}

func TestBuildPromptOmitsEmptyFindings(t *testing.T) {
	prompt := ai.BuildPrompt(snapshot(), nil)
	assert.False(t, strings.Contains(prompt, "Detected conflicts"))
	assert.Contains(t, prompt, `"status":"active"`)
}
