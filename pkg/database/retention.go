package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/types"
)

func cutoffMS(days int) int64 {
	return time.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
}

// PruneStats deletes stats records older than the given number of days.
func (c *Client) PruneStats(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	res, err := c.Collections.Stats.DeleteMany(ctx,
		bson.M{"ts": bson.M{"$lt": cutoffMS(days)}})
	if err != nil {
		return 0, fmt.Errorf("failed to prune stats: %w", err)
	}
	return res.DeletedCount, nil
}

// PruneAlerts deletes resolved alerts older than the given number of days.
// Open alerts are never pruned.
func (c *Client) PruneAlerts(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	res, err := c.Collections.Alerts.DeleteMany(ctx, bson.M{
		"resolved": true,
		"ts":       bson.M{"$lt": cutoffMS(days)},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}
	return res.DeletedCount, nil
}

// PruneUpdates deletes completed updates older than the given number of
// days. In-flight updates are never pruned.
func (c *Client) PruneUpdates(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	res, err := c.Collections.Updates.DeleteMany(ctx, bson.M{
		"status":   types.UpdateComplete,
		"start_ts": bson.M{"$lt": cutoffMS(days)},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune updates: %w", err)
	}
	return res.DeletedCount, nil
}
