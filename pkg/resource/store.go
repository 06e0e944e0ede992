package resource

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/types"
)

// Concrete resource types, one per kind.
type (
	Server         = types.Resource[types.ServerConfig, types.NoInfo]
	Deployment     = types.Resource[types.DeploymentConfig, types.NoInfo]
	Build          = types.Resource[types.BuildConfig, types.BuildInfo]
	Repo           = types.Resource[types.RepoConfig, types.RepoInfo]
	Procedure      = types.Resource[types.ProcedureConfig, types.NoInfo]
	Action         = types.Resource[types.ActionConfig, types.ActionInfo]
	Stack          = types.Resource[types.StackConfig, types.StackInfo]
	ResourceSync   = types.Resource[types.ResourceSyncConfig, types.SyncInfo]
	Builder        = types.Resource[types.BuilderConfig, types.NoInfo]
	Alerter        = types.Resource[types.AlerterConfig, types.NoInfo]
	ServerTemplate = types.Resource[types.ServerTemplateConfig, types.NoInfo]
)

// Store provides typed access to the resource collections for the internal
// consumers (executor, monitor, syncer). The API goes through the Registry,
// which shares the same underlying CRUD.
type Store struct {
	db *database.Client
}

// NewStore creates a store.
func NewStore(db *database.Client) *Store {
	if db == nil {
		panic("database client is required")
	}
	return &Store{db: db}
}

// Collections exposes the raw collection handles.
func (s *Store) Collections() *database.Collections {
	return s.db.Collections
}

func (s *Store) Server(ctx context.Context, selector string) (*Server, error) {
	return get[types.ServerConfig, types.NoInfo](ctx, s.db.Collections.Servers, selector)
}

func (s *Store) Servers(ctx context.Context, q ListQuery) ([]Server, error) {
	return list[types.ServerConfig, types.NoInfo](ctx, s.db.Collections.Servers, q)
}

func (s *Store) Deployment(ctx context.Context, selector string) (*Deployment, error) {
	return get[types.DeploymentConfig, types.NoInfo](ctx, s.db.Collections.Deployments, selector)
}

func (s *Store) Deployments(ctx context.Context, q ListQuery) ([]Deployment, error) {
	return list[types.DeploymentConfig, types.NoInfo](ctx, s.db.Collections.Deployments, q)
}

func (s *Store) Build(ctx context.Context, selector string) (*Build, error) {
	return get[types.BuildConfig, types.BuildInfo](ctx, s.db.Collections.Builds, selector)
}

func (s *Store) Builds(ctx context.Context, q ListQuery) ([]Build, error) {
	return list[types.BuildConfig, types.BuildInfo](ctx, s.db.Collections.Builds, q)
}

func (s *Store) Repo(ctx context.Context, selector string) (*Repo, error) {
	return get[types.RepoConfig, types.RepoInfo](ctx, s.db.Collections.Repos, selector)
}

func (s *Store) Repos(ctx context.Context, q ListQuery) ([]Repo, error) {
	return list[types.RepoConfig, types.RepoInfo](ctx, s.db.Collections.Repos, q)
}

func (s *Store) Procedure(ctx context.Context, selector string) (*Procedure, error) {
	return get[types.ProcedureConfig, types.NoInfo](ctx, s.db.Collections.Procedures, selector)
}

func (s *Store) Procedures(ctx context.Context, q ListQuery) ([]Procedure, error) {
	return list[types.ProcedureConfig, types.NoInfo](ctx, s.db.Collections.Procedures, q)
}

func (s *Store) Action(ctx context.Context, selector string) (*Action, error) {
	return get[types.ActionConfig, types.ActionInfo](ctx, s.db.Collections.Actions, selector)
}

func (s *Store) Actions(ctx context.Context, q ListQuery) ([]Action, error) {
	return list[types.ActionConfig, types.ActionInfo](ctx, s.db.Collections.Actions, q)
}

func (s *Store) Stack(ctx context.Context, selector string) (*Stack, error) {
	return get[types.StackConfig, types.StackInfo](ctx, s.db.Collections.Stacks, selector)
}

func (s *Store) Stacks(ctx context.Context, q ListQuery) ([]Stack, error) {
	return list[types.StackConfig, types.StackInfo](ctx, s.db.Collections.Stacks, q)
}

func (s *Store) ResourceSync(ctx context.Context, selector string) (*ResourceSync, error) {
	return get[types.ResourceSyncConfig, types.SyncInfo](ctx, s.db.Collections.ResourceSyncs, selector)
}

func (s *Store) ResourceSyncs(ctx context.Context, q ListQuery) ([]ResourceSync, error) {
	return list[types.ResourceSyncConfig, types.SyncInfo](ctx, s.db.Collections.ResourceSyncs, q)
}

func (s *Store) Builder(ctx context.Context, selector string) (*Builder, error) {
	return get[types.BuilderConfig, types.NoInfo](ctx, s.db.Collections.Builders, selector)
}

func (s *Store) Builders(ctx context.Context, q ListQuery) ([]Builder, error) {
	return list[types.BuilderConfig, types.NoInfo](ctx, s.db.Collections.Builders, q)
}

func (s *Store) Alerter(ctx context.Context, selector string) (*Alerter, error) {
	return get[types.AlerterConfig, types.NoInfo](ctx, s.db.Collections.Alerters, selector)
}

func (s *Store) Alerters(ctx context.Context, q ListQuery) ([]Alerter, error) {
	return list[types.AlerterConfig, types.NoInfo](ctx, s.db.Collections.Alerters, q)
}

func (s *Store) ServerTemplate(ctx context.Context, selector string) (*ServerTemplate, error) {
	return get[types.ServerTemplateConfig, types.NoInfo](ctx, s.db.Collections.ServerTemplates, selector)
}

func (s *Store) ServerTemplates(ctx context.Context, q ListQuery) ([]ServerTemplate, error) {
	return list[types.ServerTemplateConfig, types.NoInfo](ctx, s.db.Collections.ServerTemplates, q)
}

// UpdateInfo sets server-written info fields on one resource.
func (s *Store) UpdateInfo(ctx context.Context, kind types.ResourceKind, id string, fields bson.M) error {
	col, err := s.db.Collections.ForKind(kind)
	if err != nil {
		return err
	}
	return UpdateInfo(ctx, col, id, fields)
}

// SetBuildVersion persists a build's next version after auto-increment.
func (s *Store) SetBuildVersion(ctx context.Context, id string, v types.Version) error {
	_, err := s.db.Collections.Builds.UpdateOne(ctx, selectorFilter(id),
		bson.M{"$set": bson.M{"config.version": v}})
	if err != nil {
		return fmt.Errorf("failed to set build version: %w", err)
	}
	return nil
}

// CleanupAfterDelete removes the side documents pointing at a deleted
// resource: its permission grants and its entries in recently-viewed lists.
func (s *Store) CleanupAfterDelete(ctx context.Context, target types.ResourceTarget) error {
	_, err := s.db.Collections.Permissions.DeleteMany(ctx, bson.M{
		"resource_target.type": target.Type,
		"resource_target.id":   target.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to remove permissions for %s: %w", target.String(), err)
	}
	_, err = s.db.Collections.Users.UpdateMany(ctx,
		bson.M{},
		bson.M{"$pull": bson.M{"recently_viewed": bson.M{
			"type": target.Type,
			"id":   target.ID,
		}}})
	if err != nil {
		return fmt.Errorf("failed to prune recently viewed for %s: %w", target.String(), err)
	}
	return nil
}

// SetSyncFileContents persists the declaration written by CommitSync.
func (s *Store) SetSyncFileContents(ctx context.Context, id, contents string) error {
	_, err := s.db.Collections.ResourceSyncs.UpdateOne(ctx, selectorFilter(id),
		bson.M{"$set": bson.M{
			"config.file_contents": contents,
			"updated_at":           types.NowMS(),
		}})
	if err != nil {
		return fmt.Errorf("failed to set sync file contents: %w", err)
	}
	return nil
}
