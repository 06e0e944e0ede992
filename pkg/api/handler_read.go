package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	echo "github.com/labstack/echo/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/version"
)

// defaultLogTail bounds container log reads when the caller gives no tail.
const defaultLogTail = 100

// readHandler handles POST /read: a typed envelope dispatched to the op
// named in it.
func (s *Server) readHandler(c *echo.Context) error {
	var req types.ReadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid read request body")
	}
	result, err := s.read(c.Request().Context(), userFrom(c), req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) read(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	switch req.Type {
	case "GetVersion":
		return types.GetVersionResponse{Version: version.Full()}, nil
	case "GetCoreInfo":
		return types.GetCoreInfoResponse{
			Title:          s.cfg.Title,
			Version:        version.Full(),
			WebhookBaseURL: s.cfg.WebhookBaseURL,
		}, nil

	case "GetUpdate":
		return s.getUpdate(ctx, user, req)
	case "ListUpdates":
		return s.listUpdates(ctx, user, req)
	case "GetAlert":
		return s.getAlert(ctx, user, req)
	case "ListAlerts":
		return s.listAlerts(ctx, user, req)

	case "GetSystemInformation":
		return s.getSystemInformation(ctx, user, req)
	case "GetSystemStats":
		return s.getSystemStats(ctx, user, req)
	case "ListSystemProcesses":
		return s.listSystemProcesses(ctx, user, req)
	case "GetHistoricalServerStats":
		return s.getHistoricalServerStats(ctx, user, req)
	case "ListDockerContainers":
		return s.listDockerContainers(ctx, user, req)
	case "GetContainerLog":
		return s.getContainerLog(ctx, user, req)

	case "GetTag":
		return s.getTag(ctx, req)
	case "ListTags":
		return s.listTags(ctx)
	case "GetVariable":
		return s.getVariable(ctx, user, req)
	case "ListVariables":
		return s.listVariables(ctx, user)

	case "FindUser":
		return s.findUser(ctx, user, req)
	case "GetUserGroup":
		return s.getUserGroup(ctx, user, req)
	case "ListUserGroups":
		return s.listUserGroups(ctx, user)
	case "ListUserTargetPermissions":
		return s.listUserTargetPermissions(ctx, user, req)
	}
	return s.readResource(ctx, user, req)
}

// readResource dispatches the kind-generic Get<Kind> / List<Kinds> ops.
func (s *Server) readResource(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	if kind, ok := getOpKind(req.Type); ok {
		params, err := decodeParams[types.GetResourceParams](req.Params)
		if err != nil {
			return nil, err
		}
		return s.getResource(ctx, user, kind, params.ID)
	}
	if kind, ok := listOpKind(req.Type); ok {
		params, err := decodeParams[types.ListResourcesParams](req.Params)
		if err != nil {
			return nil, err
		}
		return s.listResources(ctx, user, kind, params)
	}
	return nil, types.NewValidationError("type", fmt.Sprintf("unknown read operation %q", req.Type))
}

func (s *Server) getResource(ctx context.Context, user *types.User, kind types.ResourceKind, selector string) (any, error) {
	handler, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	row, err := handler.Get(ctx, selector)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Require(ctx, user, row.Target(kind), row.BasePermission, types.PermissionRead); err != nil {
		return nil, err
	}
	return row.Resource, nil
}

func (s *Server) listResources(ctx context.Context, user *types.User, kind types.ResourceKind, params types.ListResourcesParams) (any, error) {
	handler, err := s.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	tagIDs, err := s.resolveTagIDs(ctx, params.Tags)
	if err != nil {
		return nil, err
	}
	rows, err := handler.List(ctx, resource.ListQuery{
		TagIDs:       tagIDs,
		NameContains: params.NameContains,
	})
	if err != nil {
		return nil, err
	}

	allowed, all, err := s.perms.AllowedIDs(ctx, user, kind)
	if err != nil {
		return nil, err
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	out := make([]any, 0, len(rows))
	for i := range rows {
		if all || allowedSet[rows[i].ID] {
			out = append(out, rows[i].Resource)
		}
	}
	return out, nil
}

// --- updates and alerts ---

func (s *Server) getUpdate(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.GetUpdateParams](req.Params)
	if err != nil {
		return nil, err
	}
	u, err := s.journal.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if err := s.requireTargetRead(ctx, user, u.Target); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Server) listUpdates(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.ListUpdatesParams](req.Params)
	if err != nil {
		return nil, err
	}
	if params.Target != nil {
		if err := s.requireTargetRead(ctx, user, *params.Target); err != nil {
			return nil, err
		}
	} else if !user.Admin {
		return nil, fmt.Errorf("listing updates across all targets requires admin: %w", types.ErrForbidden)
	}
	return s.journal.List(ctx, params)
}

func (s *Server) getAlert(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.GetAlertParams](req.Params)
	if err != nil {
		return nil, err
	}
	a, err := s.alerts.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if err := s.requireTargetRead(ctx, user, a.Target); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Server) listAlerts(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.ListAlertsParams](req.Params)
	if err != nil {
		return nil, err
	}
	if params.Target != nil {
		if err := s.requireTargetRead(ctx, user, *params.Target); err != nil {
			return nil, err
		}
	} else if !user.Admin {
		return nil, fmt.Errorf("listing alerts across all targets requires admin: %w", types.ErrForbidden)
	}
	return s.alerts.List(ctx, params)
}

// requireTargetRead enforces Read on a journaled record's target. System
// targets are admin-only; a deleted target denies like a missing one.
func (s *Server) requireTargetRead(ctx context.Context, user *types.User, target types.ResourceTarget) error {
	if user.Admin {
		return nil
	}
	if target.Type == types.KindSystem {
		return fmt.Errorf("system-scoped records: %w", types.ErrForbidden)
	}
	handler, err := s.registry.Get(target.Type)
	if err != nil {
		return err
	}
	row, err := handler.Get(ctx, target.ID)
	if err != nil {
		return err
	}
	return s.perms.Require(ctx, user, row.Target(target.Type), row.BasePermission, types.PermissionRead)
}

// --- server monitoring reads ---

// readableServer loads a server and enforces Read.
func (s *Server) readableServer(ctx context.Context, user *types.User, selector string) (*resource.Server, error) {
	server, err := s.store.Server(ctx, selector)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Require(ctx, user, server.Target(types.KindServer), server.BasePermission, types.PermissionRead); err != nil {
		return nil, err
	}
	return server, nil
}

func (s *Server) getSystemInformation(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.GetSystemInformationParams](req.Params)
	if err != nil {
		return nil, err
	}
	server, err := s.readableServer(ctx, user, params.Server)
	if err != nil {
		return nil, err
	}
	return s.state.SystemInfo.GetOrFetch(server.ID.Hex(), func() (types.SystemInformation, error) {
		return s.state.Periphery.ForServer(server.Config).GetSystemInformation(ctx)
	})
}

func (s *Server) getSystemStats(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.GetSystemStatsParams](req.Params)
	if err != nil {
		return nil, err
	}
	server, err := s.readableServer(ctx, user, params.Server)
	if err != nil {
		return nil, err
	}
	// The monitor refreshes stats every sweep; serve its cache when warm.
	if status, ok := s.state.ServerStatus.Get(server.ID.Hex()); ok && status.Stats != nil {
		return status.Stats, nil
	}
	stats, err := s.state.Periphery.ForServer(server.Config).GetSystemStats(ctx)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Server) listSystemProcesses(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.ListSystemProcessesParams](req.Params)
	if err != nil {
		return nil, err
	}
	server, err := s.readableServer(ctx, user, params.Server)
	if err != nil {
		return nil, err
	}
	return s.state.Processes.GetOrFetch(server.ID.Hex(), func() ([]types.SystemProcess, error) {
		return s.state.Periphery.ForServer(server.Config).GetSystemProcesses(ctx)
	})
}

func (s *Server) getHistoricalServerStats(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.GetHistoricalServerStatsParams](req.Params)
	if err != nil {
		return nil, err
	}
	server, err := s.readableServer(ctx, user, params.Server)
	if err != nil {
		return nil, err
	}
	return s.db.HistoricalStats(ctx, server.ID.Hex(), params.Page)
}

func (s *Server) listDockerContainers(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.ListDockerContainersParams](req.Params)
	if err != nil {
		return nil, err
	}
	server, err := s.readableServer(ctx, user, params.Server)
	if err != nil {
		return nil, err
	}
	if status, ok := s.state.ServerStatus.Get(server.ID.Hex()); ok {
		return status.Containers, nil
	}
	return s.state.Periphery.ForServer(server.Config).GetContainerList(ctx)
}

func (s *Server) getContainerLog(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.GetContainerLogParams](req.Params)
	if err != nil {
		return nil, err
	}
	if params.Container == "" {
		return nil, types.NewValidationError("container", "container name is required")
	}
	server, err := s.readableServer(ctx, user, params.Server)
	if err != nil {
		return nil, err
	}
	tail := params.Tail
	if tail <= 0 {
		tail = defaultLogTail
	}
	return s.state.Periphery.ForServer(server.Config).GetContainerLog(ctx, params.Container, tail)
}

// --- tags and variables ---

func (s *Server) getTag(ctx context.Context, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.GetTagParams](req.Params)
	if err != nil {
		return nil, err
	}
	return s.findTag(ctx, params.ID)
}

func (s *Server) listTags(ctx context.Context) (any, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := s.db.Collections.Tags.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	tags := []types.Tag{}
	if err := cur.All(ctx, &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}

// findTag resolves a tag by id or name.
func (s *Server) findTag(ctx context.Context, selector string) (*types.Tag, error) {
	filter := bson.M{"name": selector}
	if oid, err := database.ParseObjectID(selector); err == nil {
		filter = bson.M{"_id": oid}
	}
	var tag types.Tag
	if err := s.db.Collections.Tags.FindOne(ctx, filter).Decode(&tag); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("tag %s: %w", selector, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up tag: %w", err)
	}
	return &tag, nil
}

// resolveTagIDs maps tag ids or names onto ids for list filters. Unknown
// tags fail the query rather than silently matching everything.
func (s *Server) resolveTagIDs(ctx context.Context, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(tags))
	for _, t := range tags {
		tag, err := s.findTag(ctx, t)
		if err != nil {
			return nil, err
		}
		ids = append(ids, tag.ID.Hex())
	}
	return ids, nil
}

func (s *Server) getVariable(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.GetVariableParams](req.Params)
	if err != nil {
		return nil, err
	}
	v, err := s.findVariable(ctx, params.Name)
	if err != nil {
		return nil, err
	}
	return maskVariable(user, *v), nil
}

func (s *Server) listVariables(ctx context.Context, user *types.User) (any, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.db.Collections.Variables.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list variables: %w", err)
	}
	vars := []types.Variable{}
	if err := cur.All(ctx, &vars); err != nil {
		return nil, fmt.Errorf("failed to decode variables: %w", err)
	}
	for i := range vars {
		vars[i] = maskVariable(user, vars[i])
	}
	return vars, nil
}

func (s *Server) findVariable(ctx context.Context, name string) (*types.Variable, error) {
	var v types.Variable
	if err := s.db.Collections.Variables.FindOne(ctx, bson.M{"_id": name}).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("variable %s: %w", name, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up variable: %w", err)
	}
	return &v, nil
}

// maskVariable strips secret values for non-admins. The name stays visible
// so interpolation references can still be written.
func maskVariable(user *types.User, v types.Variable) types.Variable {
	if v.IsSecret && !user.Admin {
		v.Value = ""
	}
	return v
}

// --- users, groups, permissions ---

func (s *Server) findUser(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.FindUserParams](req.Params)
	if err != nil {
		return nil, err
	}
	if params.User == "" {
		return user, nil
	}
	found, err := s.lookupUser(ctx, params.User)
	if err != nil {
		return nil, err
	}
	if !user.Admin && found.ID != user.ID {
		return nil, fmt.Errorf("user %s: %w", params.User, types.ErrNotFound)
	}
	return found, nil
}

// lookupUser resolves a user by id or username.
func (s *Server) lookupUser(ctx context.Context, selector string) (*types.User, error) {
	filter := bson.M{"username": selector}
	if oid, err := database.ParseObjectID(selector); err == nil {
		filter = bson.M{"_id": oid}
	}
	var u types.User
	if err := s.db.Collections.Users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", selector, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &u, nil
}

func (s *Server) getUserGroup(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.GetUserGroupParams](req.Params)
	if err != nil {
		return nil, err
	}
	group, err := s.findUserGroup(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if !user.Admin && !slices.Contains(group.Users, user.ID.Hex()) {
		return nil, fmt.Errorf("user group %s: %w", params.ID, types.ErrNotFound)
	}
	return group, nil
}

func (s *Server) listUserGroups(ctx context.Context, user *types.User) (any, error) {
	filter := bson.M{}
	if !user.Admin {
		filter["users"] = user.ID.Hex()
	}
	cur, err := s.db.Collections.UserGroups.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	groups := []types.UserGroup{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode user groups: %w", err)
	}
	return groups, nil
}

func (s *Server) findUserGroup(ctx context.Context, selector string) (*types.UserGroup, error) {
	filter := bson.M{"name": selector}
	if oid, err := database.ParseObjectID(selector); err == nil {
		filter = bson.M{"_id": oid}
	}
	var group types.UserGroup
	if err := s.db.Collections.UserGroups.FindOne(ctx, filter).Decode(&group); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user group %s: %w", selector, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up user group: %w", err)
	}
	return &group, nil
}

func (s *Server) listUserTargetPermissions(ctx context.Context, user *types.User, req types.ReadRequest) (any, error) {
	params, err := decodeParams[types.ListUserTargetPermissionsParams](req.Params)
	if err != nil {
		return nil, err
	}
	self := params.UserTarget.Type == types.UserTargetUser && params.UserTarget.ID == user.ID.Hex()
	if !user.Admin && !self {
		return nil, fmt.Errorf("listing another principal's permissions: %w", types.ErrForbidden)
	}
	cur, err := s.db.Collections.Permissions.Find(ctx, bson.M{
		"user_target.type": params.UserTarget.Type,
		"user_target.id":   params.UserTarget.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	perms := []types.Permission{}
	if err := cur.All(ctx, &perms); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return perms, nil
}
