// Package cleanup provides data retention for the history collections.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/database"
)

const pruneInterval = time.Hour

// Service periodically enforces retention policies:
//   - Deletes stats records past their retention window
//   - Deletes old resolved alerts
//   - Deletes old completed updates
//
// All operations are idempotent.
type Service struct {
	config *config.RetentionConfig
	db     *database.Client

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, db *database.Client) *Service {
	return &Service{
		config: cfg,
		db:     db,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"stats_retention_days", s.config.StatsDays,
		"alerts_retention_days", s.config.AlertsDays,
		"updates_retention_days", s.config.UpdatesDays)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.pruneStats(ctx)
	s.pruneAlerts(ctx)
	s.pruneUpdates(ctx)
}

func (s *Service) pruneStats(ctx context.Context) {
	count, err := s.db.PruneStats(ctx, s.config.StatsDays)
	if err != nil {
		slog.Error("Retention: prune stats failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned stats records", "count", count)
	}
}

func (s *Service) pruneAlerts(ctx context.Context) {
	count, err := s.db.PruneAlerts(ctx, s.config.AlertsDays)
	if err != nil {
		slog.Error("Retention: prune alerts failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned resolved alerts", "count", count)
	}
}

func (s *Service) pruneUpdates(ctx context.Context) {
	count, err := s.db.PruneUpdates(ctx, s.config.UpdatesDays)
	if err != nil {
		slog.Error("Retention: prune updates failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned completed updates", "count", count)
	}
}
