package ai

import (
	"context"

	"github.com/allocai/backend/internal/conflict"
	"github.com/allocai/backend/internal/models"
)

const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// Analyzer turns a resource snapshot into human-readable insights. It never
// fails: callers always receive at least one insight.
type Analyzer interface {
	AnalyzeResourceEfficiency(ctx context.Context, snap models.Snapshot, findings []conflict.Finding) models.InsightReport
}
