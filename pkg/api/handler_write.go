package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/periphery"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/update"
)

// writeHandler handles POST /write: configuration-plane mutations. Every
// resource mutation that goes through lands one finalized update in the
// journal.
func (s *Server) writeHandler(c *echo.Context) error {
	var req types.WriteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid write request body")
	}
	result, err := s.write(c.Request().Context(), userFrom(c), req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) write(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	switch req.Type {
	case "UpdateDescription":
		return s.updateDescription(ctx, user, req)
	case "UpdateTagsOnResource":
		return s.updateTagsOnResource(ctx, user, req)

	case "CreateTag":
		return s.createTag(ctx, user, req)
	case "RenameTag":
		return s.renameTag(ctx, user, req)
	case "UpdateTagColor":
		return s.updateTagColor(ctx, user, req)
	case "DeleteTag":
		return s.deleteTag(ctx, user, req)

	case "CreateVariable":
		return s.createVariable(ctx, user, req)
	case "UpdateVariableValue":
		return s.updateVariableValue(ctx, user, req)
	case "UpdateVariableDescription":
		return s.updateVariableDescription(ctx, user, req)
	case "UpdateVariableIsSecret":
		return s.updateVariableIsSecret(ctx, user, req)
	case "DeleteVariable":
		return s.deleteVariable(ctx, user, req)

	case "CreateApiKey":
		return s.createApiKey(ctx, user, req)
	case "DeleteApiKey":
		return s.deleteApiKey(ctx, user, req)

	case "CreateUserGroup":
		return s.createUserGroup(ctx, user, req)
	case "RenameUserGroup":
		return s.renameUserGroup(ctx, user, req)
	case "SetUsersInUserGroup":
		return s.setUsersInUserGroup(ctx, user, req)
	case "DeleteUserGroup":
		return s.deleteUserGroup(ctx, user, req)

	case "UpdatePermissionOnTarget":
		return s.updatePermissionOnTarget(ctx, user, req)
	case "UpdateUserBasePermissions":
		return s.updateUserBasePermissions(ctx, user, req)
	case "UpdateUserAdmin":
		return s.updateUserAdmin(ctx, user, req)

	case "RefreshResourceSyncPending":
		return s.refreshSyncPending(ctx, user, req)
	case "CommitSync":
		return s.commitSync(ctx, user, req)
	}
	return s.writeResource(ctx, user, req)
}

// writeResource dispatches the kind-generic resource mutations.
func (s *Server) writeResource(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	verb, kind, ok := writeOpKind(req.Type)
	if !ok {
		return nil, types.NewValidationError("type", fmt.Sprintf("unknown write operation %q", req.Type))
	}
	switch verb {
	case "Create":
		params, err := decodeParams[types.CreateResourceParams](req.Params)
		if err != nil {
			return nil, err
		}
		return s.createResource(ctx, user, kind, params)
	case "Copy":
		params, err := decodeParams[types.CopyResourceParams](req.Params)
		if err != nil {
			return nil, err
		}
		return s.copyResource(ctx, user, kind, params)
	case "Update":
		params, err := decodeParams[types.UpdateResourceParams](req.Params)
		if err != nil {
			return nil, err
		}
		return s.updateResource(ctx, user, kind, params)
	case "Rename":
		params, err := decodeParams[types.RenameResourceParams](req.Params)
		if err != nil {
			return nil, err
		}
		return s.renameResource(ctx, user, kind, params)
	default:
		params, err := decodeParams[types.DeleteResourceParams](req.Params)
		if err != nil {
			return nil, err
		}
		return s.deleteResource(ctx, user, kind, params)
	}
}

func (s *Server) createResource(ctx context.Context, user *types.User, kind types.ResourceKind, params types.CreateResourceParams) (any, error) {
	if err := s.requireCreate(ctx, user, kind); err != nil {
		return nil, err
	}
	handler, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	tagIDs, err := s.resolveOrCreateTags(ctx, user, params.Tags)
	if err != nil {
		return nil, err
	}
	params.Tags = tagIDs

	row, err := handler.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	target := row.Target(kind)
	// Creators without the admin bypass get explicit Write on what they
	// made, so create-permission flags are useful on their own.
	if !user.Admin {
		s.grantCreatorPermission(ctx, user, target)
	}

	ub, err := s.journal.Init(ctx, opFor("Create", kind), target, user.Username)
	if err != nil {
		return nil, err
	}
	ub.AddSimple(ctx, "Create "+string(kind), fmt.Sprintf("created %s %s", kind, row.Name))
	ub.Finalize(ctx)
	return row.Resource, nil
}

func (s *Server) copyResource(ctx context.Context, user *types.User, kind types.ResourceKind, params types.CopyResourceParams) (any, error) {
	handler, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	row, err := handler.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Require(ctx, user, row.Target(kind), row.BasePermission, types.PermissionRead); err != nil {
		return nil, err
	}

	var src struct {
		Description string          `json:"description"`
		Tags        []string        `json:"tags"`
		Config      json.RawMessage `json:"config"`
	}
	raw, err := json.Marshal(row.Resource)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize source resource: %w", err)
	}
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("failed to extract source config: %w", err)
	}

	return s.createResource(ctx, user, kind, types.CreateResourceParams{
		Name:        params.Name,
		Description: src.Description,
		Tags:        src.Tags,
		Config:      src.Config,
	})
}

func (s *Server) updateResource(ctx context.Context, user *types.User, kind types.ResourceKind, params types.UpdateResourceParams) (any, error) {
	handler, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	row, err := handler.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Require(ctx, user, row.Target(kind), row.BasePermission, types.PermissionWrite); err != nil {
		return nil, err
	}
	if s.state.Busy(kind, row.ID) {
		return nil, fmt.Errorf("%s %s has an operation in flight: %w", kind, row.Name, types.ErrBusy)
	}

	updated, diff, err := handler.Update(ctx, params.ID, params.Config)
	if err != nil {
		return nil, err
	}

	ub, err := s.journal.Init(ctx, opFor("Update", kind), updated.Target(kind), user.Username)
	if err != nil {
		return nil, err
	}
	if len(diff) == 0 {
		ub.AddSimple(ctx, "Update Config", "config already matches; nothing changed")
	} else {
		ub.AddSimple(ctx, "Update Config", diff.Render())
	}
	ub.Finalize(ctx)
	return updated.Resource, nil
}

func (s *Server) renameResource(ctx context.Context, user *types.User, kind types.ResourceKind, params types.RenameResourceParams) (any, error) {
	handler, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	row, err := handler.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Require(ctx, user, row.Target(kind), row.BasePermission, types.PermissionWrite); err != nil {
		return nil, err
	}
	if s.state.Busy(kind, row.ID) {
		return nil, fmt.Errorf("%s %s has an operation in flight: %w", kind, row.Name, types.ErrBusy)
	}

	renamed, err := handler.Rename(ctx, params.ID, params.Name)
	if err != nil {
		return nil, err
	}

	ub, err := s.journal.Init(ctx, opFor("Rename", kind), renamed.Target(kind), user.Username)
	if err != nil {
		return nil, err
	}
	ub.AddSimple(ctx, "Rename "+string(kind),
		fmt.Sprintf("renamed %s to %s", row.Name, renamed.Name))
	ub.Finalize(ctx)
	return renamed.Resource, nil
}

func (s *Server) deleteResource(ctx context.Context, user *types.User, kind types.ResourceKind, params types.DeleteResourceParams) (any, error) {
	handler, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	row, err := handler.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	target := row.Target(kind)
	if err := s.perms.Require(ctx, user, target, row.BasePermission, types.PermissionWrite); err != nil {
		return nil, err
	}
	if s.state.Busy(kind, row.ID) {
		return nil, fmt.Errorf("%s %s has an operation in flight: %w", kind, row.Name, types.ErrBusy)
	}

	ub, err := s.journal.Init(ctx, opFor("Delete", kind), target, user.Username)
	if err != nil {
		return nil, err
	}
	deleted, err := handler.Delete(ctx, params.ID)
	if err != nil {
		ub.AddError(ctx, "Delete "+string(kind), err)
		ub.Finalize(ctx)
		return nil, err
	}
	ub.AddSimple(ctx, "Delete "+string(kind), fmt.Sprintf("deleted %s %s", kind, deleted.Name))

	// What the resource left running on its server goes too, best effort.
	// The resource is already gone either way; failures only show on the
	// delete update's logs.
	if td := teardownFor(row); td != nil {
		s.runTeardown(ctx, ub, td)
	}

	// Dangling grants and recently-viewed entries go with the resource.
	if err := s.store.CleanupAfterDelete(ctx, target); err != nil {
		ub.AddError(ctx, "Cleanup", err)
	}
	s.state.RemoveActionState(kind, row.ID)

	ub.Finalize(ctx)
	return deleted.Resource, nil
}

// teardown is the periphery cleanup a deleted resource calls for.
type teardown struct {
	serverID string
	stage    string
	call     func(ctx context.Context, client *periphery.Client) (types.Log, error)
}

// teardownFor maps a deleted resource onto the periphery call that removes
// what it left on its server: a deployment's container, a repo's clone, a
// stack's compose project. Kinds that leave nothing behind, and resources
// never attached to a server, return nil.
func teardownFor(row *resource.Row) *teardown {
	switch res := row.Resource.(type) {
	case *resource.Deployment:
		if res.Config.ServerID == "" {
			return nil
		}
		name := res.Name
		signal := res.Config.TerminationSignal
		timeout := res.Config.TerminationTimeout
		return &teardown{
			serverID: res.Config.ServerID,
			stage:    "Destroy Container",
			call: func(ctx context.Context, client *periphery.Client) (types.Log, error) {
				return client.RemoveContainer(ctx, name, signal, timeout)
			},
		}
	case *resource.Repo:
		if res.Config.ServerID == "" {
			return nil
		}
		name := res.Name
		return &teardown{
			serverID: res.Config.ServerID,
			stage:    "Delete Repo",
			call: func(ctx context.Context, client *periphery.Client) (types.Log, error) {
				return client.DeleteRepo(ctx, name)
			},
		}
	case *resource.Stack:
		if res.Config.ServerID == "" {
			return nil
		}
		project := res.Config.ProjectName
		if project == "" {
			project = res.Name
		}
		return &teardown{
			serverID: res.Config.ServerID,
			stage:    "Destroy Stack",
			call: func(ctx context.Context, client *periphery.Client) (types.Log, error) {
				return client.ComposeExecution(ctx, project, "down")
			},
		}
	default:
		return nil
	}
}

// runTeardown resolves the server and runs the cleanup call, logging the
// outcome on the delete update.
func (s *Server) runTeardown(ctx context.Context, ub *update.Builder, td *teardown) {
	server, err := s.store.Server(ctx, td.serverID)
	if err != nil {
		ub.AddError(ctx, td.stage, fmt.Errorf("failed to resolve server for cleanup: %w", err))
		return
	}
	if !server.Config.Enabled {
		ub.AddSimple(ctx, td.stage, fmt.Sprintf("server %s is disabled; skipped cleanup", server.Name))
		return
	}
	log, err := td.call(ctx, s.state.Periphery.ForServer(server.Config))
	if err != nil {
		ub.AddError(ctx, td.stage, err)
		return
	}
	ub.AddLog(ctx, log)
}

// requireCreate checks kind-level create rights: admins, the per-kind create
// flags, or Write on the whole kind.
func (s *Server) requireCreate(ctx context.Context, user *types.User, kind types.ResourceKind) error {
	if user.Admin {
		return nil
	}
	if kind == types.KindServer && user.CreateServerPermissions {
		return nil
	}
	if kind == types.KindBuild && user.CreateBuildPermissions {
		return nil
	}
	if user.All[kind].Satisfies(types.PermissionWrite) {
		return nil
	}
	groups, err := s.perms.GroupsFor(ctx, user.ID.Hex())
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.All[kind].Satisfies(types.PermissionWrite) {
			return nil
		}
	}
	return fmt.Errorf("creating a %s requires Write on the kind: %w", kind, types.ErrForbidden)
}

// grantCreatorPermission upserts Write for the creator on the new resource.
// Best effort: a failed grant leaves an admin-fixable gap, not a broken
// resource.
func (s *Server) grantCreatorPermission(ctx context.Context, user *types.User, target types.ResourceTarget) {
	_, err := s.db.Collections.Permissions.UpdateOne(ctx,
		bson.M{
			"user_target.type":     types.UserTargetUser,
			"user_target.id":       user.ID.Hex(),
			"resource_target.type": target.Type,
			"resource_target.id":   target.ID,
		},
		bson.M{"$set": bson.M{
			"user_target":     types.UserTarget{Type: types.UserTargetUser, ID: user.ID.Hex()},
			"resource_target": target,
			"level":           types.PermissionWrite,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		slog.Error("Failed to grant creator permission", "target", target, "error", err)
	}
}

// --- description and tags on resources ---

func (s *Server) updateDescription(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	params, err := decodeParams[types.UpdateDescriptionParams](req.Params)
	if err != nil {
		return nil, err
	}
	row, err := s.writableRow(ctx, user, params.Target)
	if err != nil {
		return nil, err
	}
	col, err := s.db.Collections.ForKind(params.Target.Type)
	if err != nil {
		return nil, err
	}
	if err := resource.UpdateDescription(ctx, col, row.ID, params.Description); err != nil {
		return nil, err
	}
	return map[string]string{"description": params.Description}, nil
}

func (s *Server) updateTagsOnResource(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	params, err := decodeParams[types.UpdateTagsOnResourceParams](req.Params)
	if err != nil {
		return nil, err
	}
	row, err := s.writableRow(ctx, user, params.Target)
	if err != nil {
		return nil, err
	}
	tagIDs, err := s.resolveOrCreateTags(ctx, user, params.Tags)
	if err != nil {
		return nil, err
	}
	col, err := s.db.Collections.ForKind(params.Target.Type)
	if err != nil {
		return nil, err
	}
	if err := resource.SetTags(ctx, col, row.ID, tagIDs); err != nil {
		return nil, err
	}
	return tagIDs, nil
}

// writableRow loads a target's row and enforces Write.
func (s *Server) writableRow(ctx context.Context, user *types.User, target types.ResourceTarget) (*resource.Row, error) {
	handler, err := s.registry.Get(target.Type)
	if err != nil {
		return nil, err
	}
	row, err := handler.Get(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Require(ctx, user, row.Target(target.Type), row.BasePermission, types.PermissionWrite); err != nil {
		return nil, err
	}
	return row, nil
}

// --- tags ---

func (s *Server) createTag(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	params, err := decodeParams[types.CreateTagParams](req.Params)
	if err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, types.NewValidationError("name", "tag name is required")
	}
	tag := types.Tag{
		Name:  params.Name,
		Owner: user.ID.Hex(),
		Color: params.Color,
	}
	res, err := s.db.Collections.Tags.InsertOne(ctx, tag)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("tag %s already exists: %w", params.Name, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	tag.ID = database.InsertedObjectID(res)
	return tag, nil
}

func (s *Server) renameTag(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	params, err := decodeParams[types.RenameTagParams](req.Params)
	if err != nil {
		return nil, err
	}
	tag, err := s.ownedTag(ctx, user, params.ID)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Collections.Tags.UpdateOne(ctx,
		bson.M{"_id": tag.ID}, bson.M{"$set": bson.M{"name": params.Name}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("tag %s already exists: %w", params.Name, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to rename tag: %w", err)
	}
	tag.Name = params.Name
	return tag, nil
}

func (s *Server) updateTagColor(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	params, err := decodeParams[types.UpdateTagColorParams](req.Params)
	if err != nil {
		return nil, err
	}
	tag, err := s.ownedTag(ctx, user, params.ID)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Collections.Tags.UpdateOne(ctx,
		bson.M{"_id": tag.ID}, bson.M{"$set": bson.M{"color": params.Color}})
	if err != nil {
		return nil, fmt.Errorf("failed to update tag color: %w", err)
	}
	tag.Color = params.Color
	return tag, nil
}

func (s *Server) deleteTag(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	params, err := decodeParams[types.DeleteTagParams](req.Params)
	if err != nil {
		return nil, err
	}
	tag, err := s.ownedTag(ctx, user, params.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Collections.Tags.DeleteOne(ctx, bson.M{"_id": tag.ID}); err != nil {
		return nil, fmt.Errorf("failed to delete tag: %w", err)
	}
	// Strip the id from every tagged resource.
	id := tag.ID.Hex()
	for _, kind := range s.registry.Kinds() {
		col, err := s.db.Collections.ForKind(kind)
		if err != nil {
			continue
		}
		if _, err := col.UpdateMany(ctx,
			bson.M{"tags": id}, bson.M{"$pull": bson.M{"tags": id}}); err != nil {
			slog.Error("Failed to strip deleted tag from resources",
				"tag", tag.Name, "kind", kind, "error", err)
		}
	}
	return tag, nil
}

// ownedTag loads a tag and enforces owner-or-admin.
func (s *Server) ownedTag(ctx context.Context, user *types.User, selector string) (*types.Tag, error) {
	tag, err := s.findTag(ctx, selector)
	if err != nil {
		return nil, err
	}
	if !user.Admin && tag.Owner != user.ID.Hex() {
		return nil, fmt.Errorf("tag %s belongs to another user: %w", tag.Name, types.ErrForbidden)
	}
	return tag, nil
}

// resolveOrCreateTags maps tag ids or names onto ids, creating tags for
// names that don't exist yet.
func (s *Server) resolveOrCreateTags(ctx context.Context, user *types.User, tags []string) ([]string, error) {
	ids := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		tag, err := s.findTag(ctx, t)
		if err == nil {
			ids = append(ids, tag.ID.Hex())
			continue
		}
		if _, idErr := database.ParseObjectID(t); idErr == nil {
			// Looked like an id but matched nothing.
			return nil, err
		}
		res, insErr := s.db.Collections.Tags.InsertOne(ctx, types.Tag{Name: t, Owner: user.ID.Hex()})
		if insErr != nil {
			return nil, fmt.Errorf("failed to create tag %s: %w", t, insErr)
		}
		ids = append(ids, database.InsertedObjectID(res).Hex())
	}
	return ids, nil
}

// --- variables (admin-gated; values may be secrets) ---

func requireAdmin(user *types.User) error {
	if user.Admin {
		return nil
	}
	return fmt.Errorf("managing variables requires admin: %w", types.ErrForbidden)
}

func (s *Server) createVariable(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if err := requireAdmin(user); err != nil {
		return nil, err
	}
	params, err := decodeParams[types.CreateVariableParams](req.Params)
	if err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, types.NewValidationError("name", "variable name is required")
	}
	v := types.Variable{
		Name:        params.Name,
		Description: params.Description,
		Value:       params.Value,
		IsSecret:    params.IsSecret,
	}
	if _, err := s.db.Collections.Variables.InsertOne(ctx, v); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("variable %s already exists: %w", params.Name, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create variable: %w", err)
	}
	s.journalVariableOp(ctx, user, types.OpCreateVariable,
		fmt.Sprintf("created variable %s", params.Name))
	return v, nil
}

func (s *Server) updateVariableValue(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if err := requireAdmin(user); err != nil {
		return nil, err
	}
	params, err := decodeParams[types.UpdateVariableValueParams](req.Params)
	if err != nil {
		return nil, err
	}
	v, err := s.findVariable(ctx, params.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Collections.Variables.UpdateOne(ctx,
		bson.M{"_id": v.Name}, bson.M{"$set": bson.M{"value": params.Value}}); err != nil {
		return nil, fmt.Errorf("failed to update variable value: %w", err)
	}
	// Secret values never reach the journal.
	detail := fmt.Sprintf("set %s to %s", v.Name, params.Value)
	if v.IsSecret {
		detail = fmt.Sprintf("updated value of secret variable %s", v.Name)
	}
	s.journalVariableOp(ctx, user, types.OpUpdateVariableValue, detail)
	v.Value = params.Value
	return v, nil
}

func (s *Server) updateVariableDescription(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if err := requireAdmin(user); err != nil {
		return nil, err
	}
	params, err := decodeParams[types.UpdateVariableDescriptionParams](req.Params)
	if err != nil {
		return nil, err
	}
	v, err := s.findVariable(ctx, params.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Collections.Variables.UpdateOne(ctx,
		bson.M{"_id": v.Name}, bson.M{"$set": bson.M{"description": params.Description}}); err != nil {
		return nil, fmt.Errorf("failed to update variable description: %w", err)
	}
	v.Description = params.Description
	return v, nil
}

func (s *Server) updateVariableIsSecret(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if err := requireAdmin(user); err != nil {
		return nil, err
	}
	params, err := decodeParams[types.UpdateVariableIsSecretParams](req.Params)
	if err != nil {
		return nil, err
	}
	v, err := s.findVariable(ctx, params.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Collections.Variables.UpdateOne(ctx,
		bson.M{"_id": v.Name}, bson.M{"$set": bson.M{"is_secret": params.IsSecret}}); err != nil {
		return nil, fmt.Errorf("failed to update variable: %w", err)
	}
	v.IsSecret = params.IsSecret
	return v, nil
}

func (s *Server) deleteVariable(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if err := requireAdmin(user); err != nil {
		return nil, err
	}
	params, err := decodeParams[types.DeleteVariableParams](req.Params)
	if err != nil {
		return nil, err
	}
	v, err := s.findVariable(ctx, params.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Collections.Variables.DeleteOne(ctx, bson.M{"_id": v.Name}); err != nil {
		return nil, fmt.Errorf("failed to delete variable: %w", err)
	}
	s.journalVariableOp(ctx, user, types.OpDeleteVariable,
		fmt.Sprintf("deleted variable %s", v.Name))
	return v, nil
}

// journalVariableOp records a variable mutation against the system target.
func (s *Server) journalVariableOp(ctx context.Context, user *types.User, op types.Operation, detail string) {
	ub, err := s.journal.Init(ctx, op, types.SystemTarget(), user.Username)
	if err != nil {
		slog.Error("Failed to journal variable operation", "operation", op, "error", err)
		return
	}
	ub.AddSimple(ctx, string(op), detail)
	ub.Finalize(ctx)
}

// --- api keys ---

func (s *Server) createApiKey(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	params, err := decodeParams[types.CreateApiKeyParams](req.Params)
	if err != nil {
		return nil, err
	}
	name := params.Name
	if name == "" {
		name = "api key"
	}
	key := "K-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	secret := "S-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = s.db.Collections.ApiKeys.InsertOne(ctx, types.ApiKey{
		Name:      name,
		UserID:    user.ID.Hex(),
		Key:       key,
		Secret:    types.HashApiSecret(secret),
		CreatedAt: types.NowMS(),
		Expires:   params.Expires,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create api key: %w", err)
	}
	// The plaintext secret exists in this response and nowhere else.
	return types.CreateApiKeyResponse{Key: key, Secret: secret}, nil
}

func (s *Server) deleteApiKey(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	params, err := decodeParams[types.DeleteApiKeyParams](req.Params)
	if err != nil {
		return nil, err
	}
	var apiKey types.ApiKey
	if err := s.db.Collections.ApiKeys.FindOne(ctx, bson.M{"key": params.Key}).Decode(&apiKey); err != nil {
		return nil, fmt.Errorf("api key: %w", types.ErrNotFound)
	}
	if !user.Admin && apiKey.UserID != user.ID.Hex() {
		return nil, fmt.Errorf("api key: %w", types.ErrNotFound)
	}
	if _, err := s.db.Collections.ApiKeys.DeleteOne(ctx, bson.M{"key": params.Key}); err != nil {
		return nil, fmt.Errorf("failed to delete api key: %w", err)
	}
	return apiKey, nil
}

// --- user groups (admin-gated) ---

func (s *Server) createUserGroup(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if !user.Admin {
		return nil, fmt.Errorf("managing user groups requires admin: %w", types.ErrForbidden)
	}
	params, err := decodeParams[types.CreateUserGroupParams](req.Params)
	if err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, types.NewValidationError("name", "group name is required")
	}
	group := types.UserGroup{Name: params.Name, Users: []string{}, UpdatedAt: types.NowMS()}
	res, err := s.db.Collections.UserGroups.InsertOne(ctx, group)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("user group %s already exists: %w", params.Name, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user group: %w", err)
	}
	group.ID = database.InsertedObjectID(res)
	return group, nil
}

func (s *Server) renameUserGroup(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if !user.Admin {
		return nil, fmt.Errorf("managing user groups requires admin: %w", types.ErrForbidden)
	}
	params, err := decodeParams[types.RenameUserGroupParams](req.Params)
	if err != nil {
		return nil, err
	}
	group, err := s.findUserGroup(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Collections.UserGroups.UpdateOne(ctx,
		bson.M{"_id": group.ID},
		bson.M{"$set": bson.M{"name": params.Name, "updated_at": types.NowMS()}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("user group %s already exists: %w", params.Name, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to rename user group: %w", err)
	}
	group.Name = params.Name
	return group, nil
}

func (s *Server) setUsersInUserGroup(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if !user.Admin {
		return nil, fmt.Errorf("managing user groups requires admin: %w", types.ErrForbidden)
	}
	params, err := decodeParams[types.SetUsersInUserGroupParams](req.Params)
	if err != nil {
		return nil, err
	}
	group, err := s.findUserGroup(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(params.Users))
	for _, selector := range params.Users {
		member, err := s.lookupUser(ctx, selector)
		if err != nil {
			return nil, err
		}
		ids = append(ids, member.ID.Hex())
	}
	_, err = s.db.Collections.UserGroups.UpdateOne(ctx,
		bson.M{"_id": group.ID},
		bson.M{"$set": bson.M{"users": ids, "updated_at": types.NowMS()}})
	if err != nil {
		return nil, fmt.Errorf("failed to set group members: %w", err)
	}
	group.Users = ids
	return group, nil
}

func (s *Server) deleteUserGroup(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if !user.Admin {
		return nil, fmt.Errorf("managing user groups requires admin: %w", types.ErrForbidden)
	}
	params, err := decodeParams[types.DeleteUserGroupParams](req.Params)
	if err != nil {
		return nil, err
	}
	group, err := s.findUserGroup(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Collections.UserGroups.DeleteOne(ctx, bson.M{"_id": group.ID}); err != nil {
		return nil, fmt.Errorf("failed to delete user group: %w", err)
	}
	// Grants held by the group die with it.
	_, err = s.db.Collections.Permissions.DeleteMany(ctx, bson.M{
		"user_target.type": types.UserTargetUserGroup,
		"user_target.id":   group.ID.Hex(),
	})
	if err != nil {
		slog.Error("Failed to delete group permissions", "group", group.Name, "error", err)
	}
	return group, nil
}

// --- permissions ---

func (s *Server) updatePermissionOnTarget(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if !user.Admin {
		return nil, fmt.Errorf("managing permissions requires admin: %w", types.ErrForbidden)
	}
	params, err := decodeParams[types.UpdatePermissionOnTargetParams](req.Params)
	if err != nil {
		return nil, err
	}
	// Both ends must exist before a grant is recorded.
	switch params.UserTarget.Type {
	case types.UserTargetUser:
		if _, err := s.lookupUser(ctx, params.UserTarget.ID); err != nil {
			return nil, err
		}
	case types.UserTargetUserGroup:
		if _, err := s.findUserGroup(ctx, params.UserTarget.ID); err != nil {
			return nil, err
		}
	default:
		return nil, types.NewValidationError("user_target", "unknown user target kind")
	}
	handler, err := s.registry.Get(params.ResourceTarget.Type)
	if err != nil {
		return nil, err
	}
	row, err := handler.Get(ctx, params.ResourceTarget.ID)
	if err != nil {
		return nil, err
	}
	target := row.Target(params.ResourceTarget.Type)

	_, err = s.db.Collections.Permissions.UpdateOne(ctx,
		bson.M{
			"user_target.type":     params.UserTarget.Type,
			"user_target.id":       params.UserTarget.ID,
			"resource_target.type": target.Type,
			"resource_target.id":   target.ID,
		},
		bson.M{"$set": bson.M{
			"user_target":     params.UserTarget,
			"resource_target": target,
			"level":           params.Level,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert permission: %w", err)
	}
	return types.Permission{
		UserTarget:     params.UserTarget,
		ResourceTarget: target,
		Level:          params.Level,
	}, nil
}

func (s *Server) updateUserBasePermissions(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if !user.Admin {
		return nil, fmt.Errorf("managing users requires admin: %w", types.ErrForbidden)
	}
	params, err := decodeParams[types.UpdateUserBasePermissionsParams](req.Params)
	if err != nil {
		return nil, err
	}
	subject, err := s.lookupUser(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if subject.Admin && !user.SuperAdmin {
		return nil, fmt.Errorf("modifying an admin requires super admin: %w", types.ErrForbidden)
	}

	set := bson.M{"updated_at": types.NowMS()}
	if params.Enabled != nil {
		set["enabled"] = *params.Enabled
	}
	if params.CreateServers != nil {
		set["create_server_permissions"] = *params.CreateServers
	}
	if params.CreateBuilds != nil {
		set["create_build_permissions"] = *params.CreateBuilds
	}
	if _, err := s.db.Collections.Users.UpdateOne(ctx,
		bson.M{"_id": subject.ID}, bson.M{"$set": set}); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.lookupUser(ctx, subject.ID.Hex())
}

func (s *Server) updateUserAdmin(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	if !user.SuperAdmin {
		return nil, fmt.Errorf("granting admin requires super admin: %w", types.ErrForbidden)
	}
	params, err := decodeParams[types.UpdateUserAdminParams](req.Params)
	if err != nil {
		return nil, err
	}
	subject, err := s.lookupUser(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if subject.SuperAdmin {
		return nil, fmt.Errorf("super admin flags are immutable over the api: %w", types.ErrForbidden)
	}
	if _, err := s.db.Collections.Users.UpdateOne(ctx,
		bson.M{"_id": subject.ID},
		bson.M{"$set": bson.M{"admin": params.Admin, "updated_at": types.NowMS()}}); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.lookupUser(ctx, subject.ID.Hex())
}

// --- sync ---

func (s *Server) refreshSyncPending(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	params, err := decodeParams[types.RefreshResourceSyncPendingParams](req.Params)
	if err != nil {
		return nil, err
	}
	sync, err := s.store.ResourceSync(ctx, params.Sync)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Require(ctx, user, sync.Target(types.KindResourceSync), sync.BasePermission, types.PermissionExecute); err != nil {
		return nil, err
	}
	return s.syncer.RefreshPending(ctx, sync)
}

func (s *Server) commitSync(ctx context.Context, user *types.User, req types.WriteRequest) (any, error) {
	params, err := decodeParams[types.CommitSyncParams](req.Params)
	if err != nil {
		return nil, err
	}
	sync, err := s.store.ResourceSync(ctx, params.Sync)
	if err != nil {
		return nil, err
	}
	target := sync.Target(types.KindResourceSync)
	if err := s.perms.Require(ctx, user, target, sync.BasePermission, types.PermissionWrite); err != nil {
		return nil, err
	}

	ub, err := s.journal.Init(ctx, types.OpCommitSync, target, user.Username)
	if err != nil {
		return nil, err
	}
	contents, err := s.syncer.Commit(ctx, sync)
	if err != nil {
		ub.AddError(ctx, "Commit Sync", err)
		ub.Finalize(ctx)
		return nil, err
	}
	ub.AddSimple(ctx, "Commit Sync", "wrote current database state into the sync declaration")
	ub.Finalize(ctx)
	return types.FileContents{Path: "resources.toml", Contents: contents}, nil
}
