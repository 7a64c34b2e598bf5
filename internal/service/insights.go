package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/allocai/backend/internal/ai"
	"github.com/allocai/backend/internal/conflict"
	"github.com/allocai/backend/internal/events"
	"github.com/allocai/backend/internal/models"
)

// InsightService loads the resource snapshot and feeds it to the detector
// and the AI analyzer. It is also the job runner's analyzer.
type InsightService struct {
	Store    InsightStore
	Analyzer ai.Analyzer
	Detector *conflict.Detector
	Events   Publisher
	Logger   zerolog.Logger
}

func NewInsightService(store InsightStore, analyzer ai.Analyzer, pub Publisher, logger zerolog.Logger) *InsightService {
	return &InsightService{
		Store:    store,
		Analyzer: analyzer,
		Detector: conflict.NewDetector(),
		Events:   publisherOrNop(pub),
		Logger:   logger.With().Str("component", "insights").Logger(),
	}
}

// Snapshot reads employees, allocations and projects concurrently.
func (s *InsightService) Snapshot(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Employees, err = s.Store.ListEmployees(gctx)
		if err != nil {
			return fmt.Errorf("load employees: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap.Allocations, err = s.Store.ListAllocations(gctx, models.AllocationFilter{})
		if err != nil {
			return fmt.Errorf("load allocations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap.Projects, err = s.Store.ListProjects(gctx)
		if err != nil {
			return fmt.Errorf("load projects: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// Insights runs a fresh analysis over the current state. Only a store
// failure is an error; analyzer problems degrade to the fallback insight.
func (s *InsightService) Insights(ctx context.Context) (models.InsightReport, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return models.InsightReport{}, err
	}
	report := s.Detector.Detect(snap.Employees, snap.Allocations)
	return s.Analyzer.AnalyzeResourceEfficiency(ctx, snap, report.Findings), nil
}

// Conflicts returns the deterministic detector report without calling the
// model.
func (s *InsightService) Conflicts(ctx context.Context) (conflict.Report, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return conflict.Report{}, err
	}
	return s.Detector.Detect(snap.Employees, snap.Allocations), nil
}

// History lists the most recently persisted conflicts.
func (s *InsightService) History(ctx context.Context, limit int) ([]models.Conflict, error) {
	return s.Store.ListConflicts(ctx, limit)
}

func (s *InsightService) RunAnalysis(ctx context.Context, deep bool) error {
	start := time.Now()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	detected := s.Detector.Detect(snap.Employees, snap.Allocations)

	if deep {
		if err := s.persist(ctx, snap, detected); err != nil {
			return err
		}
	}

	report := s.Analyzer.AnalyzeResourceEfficiency(ctx, snap, detected.Findings)
	s.Events.Publish(ctx, events.InsightsGenerated, report)
	s.Logger.Info().
		Bool("deep", deep).
		Int("insights", len(report.Insights)).
		Int("findings", len(detected.Findings)).
		Str("source", report.Source).
		Dur("took", time.Since(start)).
		Msg("analysis completed")
	return nil
}

func (s *InsightService) persist(ctx context.Context, snap models.Snapshot, detected conflict.Report) error {
	if err := s.Store.SaveConflicts(ctx, detected.Conflicts()); err != nil {
		return fmt.Errorf("save conflicts: %w", err)
	}
	if err := s.Store.SaveInsights(ctx, detected.Insights()); err != nil {
		return fmt.Errorf("save insights: %w", err)
	}

	// allocations that no longer conflict get their list cleared
	byAllocation := make(map[string][]models.AllocationConflict, len(snap.Allocations))
	for _, a := range snap.Allocations {
		byAllocation[a.ID] = []models.AllocationConflict{}
	}
	for id, list := range detected.AllocationConflicts() {
		byAllocation[id] = list
	}
	if err := s.Store.UpdateAllocationConflicts(ctx, byAllocation); err != nil {
		return fmt.Errorf("update allocation conflicts: %w", err)
	}
	return nil
}
