package execute

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/periphery"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

// refreshTimeout bounds the post-operation container list refresh.
const refreshTimeout = 10 * time.Second

// serverClient loads a deployment's or stack's server and returns its
// periphery client. Disabled and unreachable servers refuse operations
// up front, before an update is created.
func (e *Executor) serverClient(ctx context.Context, serverID string) (*resource.Server, *periphery.Client, error) {
	if serverID == "" {
		return nil, nil, types.NewValidationError("server_id", "no server configured")
	}
	server, err := e.store.Server(ctx, serverID)
	if err != nil {
		return nil, nil, err
	}
	if !server.Config.Enabled {
		return nil, nil, types.NewValidationError("server_id",
			fmt.Sprintf("server %s is disabled", server.Name))
	}
	if status, ok := e.state.ServerStatus.Get(server.ID.Hex()); ok && status.State == types.ServerNotOk {
		return nil, nil, types.NewExternalError("periphery",
			fmt.Errorf("server %s is unreachable: %s", server.Name, status.Err))
	}
	return server, e.state.Periphery.ForServer(server.Config), nil
}

// refreshServerStatus re-lists the server's containers into the status cache
// so reads see the operation's outcome before the next monitor sweep. Best
// effort; the sweep corrects any miss.
func (e *Executor) refreshServerStatus(server *resource.Server, client *periphery.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	containers, err := client.GetContainerList(ctx)
	if err != nil {
		slog.Debug("Post-operation container refresh failed",
			"server", server.Name, "error", err)
		return
	}
	id := server.ID.Hex()
	status, ok := e.state.ServerStatus.Get(id)
	if !ok {
		status = types.ServerStatus{State: types.ServerOk}
	}
	status.Containers = containers
	status.TS = types.NowMS()
	e.state.ServerStatus.Update(id, status)
}

// loadVariables reads the variable store for interpolation and redaction.
func (e *Executor) loadVariables(ctx context.Context) ([]types.Variable, error) {
	cur, err := e.state.DB.Collections.Variables.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list variables: %w", err)
	}
	var vars []types.Variable
	if err := cur.All(ctx, &vars); err != nil {
		return nil, fmt.Errorf("failed to decode variables: %w", err)
	}
	return vars, nil
}

// buildImageName derives the image reference a build pushes: the configured
// image name (default: the build's name, lowered), namespaced by the
// registry organization or account, prefixed by the registry domain.
func buildImageName(build *resource.Build) string {
	cfg := build.Config
	name := cfg.ImageName
	if name == "" {
		name = build.Name
	}
	name = strings.ToLower(name)

	namespace := cfg.ImageRegistryOrganization
	if namespace == "" {
		namespace = cfg.ImageRegistryAccount
	}
	if namespace != "" {
		name = strings.ToLower(namespace) + "/" + name
	}
	if cfg.ImageRegistry != "" {
		name = cfg.ImageRegistry + "/" + name
	}
	return name
}
