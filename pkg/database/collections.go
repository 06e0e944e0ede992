package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/komodo-sh/komodo/pkg/types"
)

// Collections holds one handle per persisted collection.
type Collections struct {
	// One collection per resource kind.
	Servers         *mongo.Collection
	Deployments     *mongo.Collection
	Builds          *mongo.Collection
	Repos           *mongo.Collection
	Procedures      *mongo.Collection
	Actions         *mongo.Collection
	Stacks          *mongo.Collection
	ResourceSyncs   *mongo.Collection
	Builders        *mongo.Collection
	Alerters        *mongo.Collection
	ServerTemplates *mongo.Collection

	Users       *mongo.Collection
	UserGroups  *mongo.Collection
	ApiKeys     *mongo.Collection
	Permissions *mongo.Collection
	Tags        *mongo.Collection
	Variables   *mongo.Collection
	Updates     *mongo.Collection
	Alerts      *mongo.Collection
	Stats       *mongo.Collection
}

func newCollections(db *mongo.Database) *Collections {
	return &Collections{
		Servers:         db.Collection("servers"),
		Deployments:     db.Collection("deployments"),
		Builds:          db.Collection("builds"),
		Repos:           db.Collection("repos"),
		Procedures:      db.Collection("procedures"),
		Actions:         db.Collection("actions"),
		Stacks:          db.Collection("stacks"),
		ResourceSyncs:   db.Collection("resource_syncs"),
		Builders:        db.Collection("builders"),
		Alerters:        db.Collection("alerters"),
		ServerTemplates: db.Collection("server_templates"),
		Users:           db.Collection("users"),
		UserGroups:      db.Collection("user_groups"),
		ApiKeys:         db.Collection("api_keys"),
		Permissions:     db.Collection("permissions"),
		Tags:            db.Collection("tags"),
		Variables:       db.Collection("variables"),
		Updates:         db.Collection("updates"),
		Alerts:          db.Collection("alerts"),
		Stats:           db.Collection("stats"),
	}
}

// ForKind returns the collection backing one resource kind.
func (c *Collections) ForKind(kind types.ResourceKind) (*mongo.Collection, error) {
	switch kind {
	case types.KindServer:
		return c.Servers, nil
	case types.KindDeployment:
		return c.Deployments, nil
	case types.KindBuild:
		return c.Builds, nil
	case types.KindRepo:
		return c.Repos, nil
	case types.KindProcedure:
		return c.Procedures, nil
	case types.KindAction:
		return c.Actions, nil
	case types.KindStack:
		return c.Stacks, nil
	case types.KindResourceSync:
		return c.ResourceSyncs, nil
	case types.KindBuilder:
		return c.Builders, nil
	case types.KindAlerter:
		return c.Alerters, nil
	case types.KindServerTemplate:
		return c.ServerTemplates, nil
	default:
		return nil, fmt.Errorf("no collection for resource kind %q", kind)
	}
}

// EnsureIndexes creates the indexes the query paths rely on. Creation is
// idempotent, so this runs unconditionally at startup.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	nameUnique := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	for _, col := range []*mongo.Collection{
		c.Collections.Servers, c.Collections.Deployments, c.Collections.Builds,
		c.Collections.Repos, c.Collections.Procedures, c.Collections.Actions,
		c.Collections.Stacks, c.Collections.ResourceSyncs, c.Collections.Builders,
		c.Collections.Alerters, c.Collections.ServerTemplates,
		c.Collections.UserGroups, c.Collections.Tags,
	} {
		if _, err := col.Indexes().CreateOne(ctx, nameUnique); err != nil {
			return fmt.Errorf("failed to create name index on %s: %w", col.Name(), err)
		}
	}

	if _, err := c.Collections.Users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create username index: %w", err)
	}

	if _, err := c.Collections.ApiKeys.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create api key index: %w", err)
	}

	if _, err := c.Collections.Permissions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_target.type", Value: 1},
			{Key: "user_target.id", Value: 1},
			{Key: "resource_target.type", Value: 1},
			{Key: "resource_target.id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create permissions index: %w", err)
	}

	if _, err := c.Collections.Updates.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "start_ts", Value: -1}}},
		{Keys: bson.D{
			{Key: "target.type", Value: 1},
			{Key: "target.id", Value: 1},
			{Key: "start_ts", Value: -1},
		}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create updates indexes: %w", err)
	}

	if _, err := c.Collections.Alerts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ts", Value: -1}}},
		{Keys: bson.D{{Key: "resolved", Value: 1}, {Key: "ts", Value: -1}}},
		{Keys: bson.D{
			{Key: "target.type", Value: 1},
			{Key: "target.id", Value: 1},
			{Key: "ts", Value: -1},
		}},
	}); err != nil {
		return fmt.Errorf("failed to create alerts indexes: %w", err)
	}

	if _, err := c.Collections.Stats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "sid", Value: 1}, {Key: "ts", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create stats index: %w", err)
	}

	return nil
}
