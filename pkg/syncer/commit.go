package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

// RefreshPending recomputes the sync's plan and stores it on the sync's info
// for review, without applying anything. Planning failures are recorded on
// the pending state rather than returned, so a broken declaration is visible
// where the operator looks for it.
func (s *Syncer) RefreshPending(ctx context.Context, sync *resource.ResourceSync) (types.PendingSyncUpdates, error) {
	var pending types.PendingSyncUpdates
	var files []types.FileContents

	file, files, err := s.Load(sync)
	if err != nil {
		pending.Err = err.Error()
	} else {
		plan, err := s.BuildPlan(ctx, sync, file)
		if err != nil {
			pending.Err = err.Error()
		} else {
			pending = plan.Pending()
		}
	}

	storeErr := s.store.UpdateInfo(ctx, types.KindResourceSync, sync.ID.Hex(), bson.M{
		"pending":         pending,
		"remote_contents": files,
	})
	if storeErr != nil {
		return pending, fmt.Errorf("failed to store pending updates: %w", storeErr)
	}
	return pending, nil
}

// MarkSynced records a completed run: the sync timestamp and a cleared plan.
func (s *Syncer) MarkSynced(ctx context.Context, syncID string) error {
	return s.store.UpdateInfo(ctx, types.KindResourceSync, syncID, bson.M{
		"last_sync_ts": types.NowMS(),
		"pending":      types.PendingSyncUpdates{},
	})
}

// Commit serializes the current database state into a TOML declaration and
// stores it as the sync's inline file contents. The sync's scope (match tags,
// include flags) bounds what is exported.
func (s *Syncer) Commit(ctx context.Context, sync *resource.ResourceSync) (string, error) {
	cfg := sync.Config

	tags, err := s.loadTags(ctx)
	if err != nil {
		return "", err
	}
	matchIDs, err := tags.matchIDs(cfg.MatchTags)
	if err != nil {
		return "", err
	}

	var file types.ResourceFile
	if cfg.IncludeResources {
		for _, kind := range types.AllResourceKinds {
			specs, err := s.exportKind(ctx, kind, tags, matchIDs)
			if err != nil {
				return "", fmt.Errorf("%s: %w", kind, err)
			}
			appendSpecs(&file, kind, specs)
		}
	}
	if cfg.IncludeVariables {
		cur, err := s.db.Collections.Variables.Find(ctx, bson.M{})
		if err != nil {
			return "", fmt.Errorf("failed to list variables: %w", err)
		}
		if err := cur.All(ctx, &file.Variables); err != nil {
			return "", fmt.Errorf("failed to decode variables: %w", err)
		}
	}
	if cfg.IncludeUserGroups {
		groups, err := s.exportUserGroups(ctx)
		if err != nil {
			return "", err
		}
		file.UserGroups = groups
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return "", fmt.Errorf("failed to serialize declaration: %w", err)
	}
	contents := string(data)

	if err := s.store.SetSyncFileContents(ctx, sync.ID.Hex(), contents); err != nil {
		return "", err
	}
	return contents, nil
}

// exportKind serializes one kind's resources into specs, tags as names.
func (s *Syncer) exportKind(ctx context.Context, kind types.ResourceKind, tags *tagIndex, matchIDs []string) ([]types.ResourceSpec, error) {
	handler, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	rows, err := handler.List(ctx, resource.ListQuery{})
	if err != nil {
		return nil, err
	}
	var specs []types.ResourceSpec
	for i := range rows {
		row := &rows[i]
		if !carriesAll(row.Tags, matchIDs) {
			continue
		}
		config, err := configMap(row.Resource)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", row.Name, err)
		}
		specs = append(specs, types.ResourceSpec{
			Name:        row.Name,
			Description: row.Description,
			Tags:        tags.names(row.Tags),
			Config:      config,
		})
	}
	return specs, nil
}

// configMap extracts a resource's config as generic TOML-ready tables.
func configMap(res any) (map[string]any, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	var full struct {
		Config map[string]any `json:"config"`
	}
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, err
	}
	return full.Config, nil
}

func (s *Syncer) exportUserGroups(ctx context.Context) ([]types.UserGroupSpec, error) {
	cur, err := s.db.Collections.UserGroups.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	var groups []types.UserGroup
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode user groups: %w", err)
	}
	specs := make([]types.UserGroupSpec, 0, len(groups))
	for _, g := range groups {
		usernames := make([]string, 0, len(g.Users))
		for _, id := range g.Users {
			var user types.User
			oid, err := database.ParseObjectID(id)
			if err != nil {
				continue
			}
			if err := s.db.Collections.Users.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
				continue
			}
			usernames = append(usernames, user.Username)
		}
		specs = append(specs, types.UserGroupSpec{
			Name:  g.Name,
			Users: usernames,
			All:   g.All,
		})
	}
	return specs, nil
}

func appendSpecs(file *types.ResourceFile, kind types.ResourceKind, specs []types.ResourceSpec) {
	switch kind {
	case types.KindServer:
		file.Servers = specs
	case types.KindDeployment:
		file.Deployments = specs
	case types.KindBuild:
		file.Builds = specs
	case types.KindRepo:
		file.Repos = specs
	case types.KindProcedure:
		file.Procedures = specs
	case types.KindAction:
		file.Actions = specs
	case types.KindStack:
		file.Stacks = specs
	case types.KindBuilder:
		file.Builders = specs
	case types.KindAlerter:
		file.Alerters = specs
	case types.KindServerTemplate:
		file.ServerTemplates = specs
	case types.KindResourceSync:
		file.ResourceSyncs = specs
	}
}
