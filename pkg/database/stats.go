package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/komodo-sh/komodo/pkg/types"
)

// HistoricalStats pages one server's persisted stats samples, newest first.
func (c *Client) HistoricalStats(ctx context.Context, serverID string, page int64) ([]types.StatsRecord, error) {
	if page < 0 {
		page = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: -1}}).
		SetSkip(page * types.StatsPageSize).
		SetLimit(types.StatsPageSize)

	cur, err := c.Collections.Stats.Find(ctx, bson.M{"sid": serverID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	records := []types.StatsRecord{}
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return records, nil
}
