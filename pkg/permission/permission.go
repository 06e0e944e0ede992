// Package permission computes the effective access level of a principal on a
// resource, combining the user's admin bit, transparent mode, the resource's
// base permission, kind-wide grants on the user and their groups, and
// specific per-resource grants.
package permission

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/types"
)

// Engine resolves permissions against the database.
type Engine struct {
	db *database.Client
	// transparent raises every enabled user's floor to Read.
	transparent bool
}

// NewEngine creates a permission engine.
func NewEngine(db *database.Client, transparent bool) *Engine {
	return &Engine{db: db, transparent: transparent}
}

// coarseLevel computes the level granted before specific per-resource
// permissions are considered. Pure so the ordering rules are testable without
// a database.
func coarseLevel(
	user *types.User,
	groups []types.UserGroup,
	kind types.ResourceKind,
	resourceBase types.PermissionLevel,
	transparent bool,
) types.PermissionLevel {
	if user.Admin {
		return types.PermissionWrite
	}
	base := types.PermissionNone
	if transparent {
		base = types.PermissionRead
	}
	base = types.MaxPermission(base, resourceBase)
	base = types.MaxPermission(base, user.All[kind])
	for _, g := range groups {
		base = types.MaxPermission(base, g.All[kind])
	}
	return base
}

// GroupsFor returns the groups the user belongs to.
func (e *Engine) GroupsFor(ctx context.Context, userID string) ([]types.UserGroup, error) {
	cur, err := e.db.Collections.UserGroups.Find(ctx, bson.M{"users": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to query user groups: %w", err)
	}
	var groups []types.UserGroup
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode user groups: %w", err)
	}
	return groups, nil
}

// userTargets returns the permission grantees matching the user: themselves
// plus each of their groups.
func userTargets(userID string, groups []types.UserGroup) []types.UserTarget {
	targets := make([]types.UserTarget, 0, 1+len(groups))
	targets = append(targets, types.UserTarget{Type: types.UserTargetUser, ID: userID})
	for _, g := range groups {
		targets = append(targets, types.UserTarget{Type: types.UserTargetUserGroup, ID: g.ID.Hex()})
	}
	return targets
}

// Level computes the user's effective level on the target. resourceBase is
// the target's base_permission, passed in because the caller already holds
// the resource document.
func (e *Engine) Level(
	ctx context.Context,
	user *types.User,
	target types.ResourceTarget,
	resourceBase types.PermissionLevel,
) (types.PermissionLevel, error) {
	if user.Admin {
		return types.PermissionWrite, nil
	}
	groups, err := e.GroupsFor(ctx, user.ID.Hex())
	if err != nil {
		return types.PermissionNone, err
	}

	level := coarseLevel(user, groups, target.Type, resourceBase, e.transparent)
	if level == types.PermissionWrite {
		return level, nil
	}

	targets := userTargets(user.ID.Hex(), groups)
	cur, err := e.db.Collections.Permissions.Find(ctx, bson.M{
		"user_target":          bson.M{"$in": targets},
		"resource_target.type": target.Type,
		"resource_target.id":   target.ID,
	})
	if err != nil {
		return types.PermissionNone, fmt.Errorf("failed to query permissions: %w", err)
	}
	var perms []types.Permission
	if err := cur.All(ctx, &perms); err != nil {
		return types.PermissionNone, fmt.Errorf("failed to decode permissions: %w", err)
	}
	for _, p := range perms {
		level = types.MaxPermission(level, p.Level)
	}
	return level, nil
}

// AllowedIDs prefilters list queries for one kind. A nil slice with ok=true
// means the user may see the whole kind; otherwise only the returned ids (the
// union of resources with a base permission and resources specifically
// granted) are visible.
func (e *Engine) AllowedIDs(
	ctx context.Context,
	user *types.User,
	kind types.ResourceKind,
) (ids []string, all bool, err error) {
	if user.Admin || e.transparent {
		return nil, true, nil
	}
	groups, err := e.GroupsFor(ctx, user.ID.Hex())
	if err != nil {
		return nil, false, err
	}
	if coarseLevel(user, groups, kind, types.PermissionNone, false) > types.PermissionNone {
		return nil, true, nil
	}

	seen := make(map[string]bool)

	// Resources granting everyone a base level.
	col, err := e.db.Collections.ForKind(kind)
	if err != nil {
		return nil, false, err
	}
	cur, err := col.Find(ctx, bson.M{
		"base_permission": bson.M{"$exists": true, "$ne": types.PermissionNone},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to query base permissions: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, false, fmt.Errorf("failed to decode base permissions: %w", err)
	}
	for _, d := range docs {
		seen[d.ID] = true
	}

	// Resources specifically granted to the user or their groups.
	pcur, err := e.db.Collections.Permissions.Find(ctx, bson.M{
		"user_target":          bson.M{"$in": userTargets(user.ID.Hex(), groups)},
		"resource_target.type": kind,
		"level":                bson.M{"$ne": types.PermissionNone},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to query permissions: %w", err)
	}
	var perms []types.Permission
	if err := pcur.All(ctx, &perms); err != nil {
		return nil, false, fmt.Errorf("failed to decode permissions: %w", err)
	}
	for _, p := range perms {
		seen[p.ResourceTarget.ID] = true
	}

	ids = make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, false, nil
}

// Require returns ErrForbidden unless the user's effective level on the
// target reaches required. Read denials surface as ErrNotFound so callers
// cannot probe for resource existence.
func (e *Engine) Require(
	ctx context.Context,
	user *types.User,
	target types.ResourceTarget,
	resourceBase types.PermissionLevel,
	required types.PermissionLevel,
) error {
	level, err := e.Level(ctx, user, target, resourceBase)
	if err != nil {
		return err
	}
	if level.Satisfies(required) {
		return nil
	}
	if !level.Satisfies(types.PermissionRead) {
		return fmt.Errorf("%s %s: %w", target.Type, target.ID, types.ErrNotFound)
	}
	return fmt.Errorf("requires %s on %s: %w", required, target, types.ErrForbidden)
}
