package execute

import (
	"context"

	"github.com/komodo-sh/komodo/pkg/types"
)

// containerOp runs one lifecycle operation on an arbitrary container named
// in the request. Unlike deployment ops there is no single-flight guard: the
// target container is not a tracked resource.
func (e *Executor) containerOp(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	if req.Params.Container == "" {
		return types.Update{}, types.NewValidationError("container", "no container named")
	}
	server, err := e.store.Server(ctx, req.Params.Server)
	if err != nil {
		return types.Update{}, err
	}
	target := server.Target(types.KindServer)
	if err := e.requireExecute(ctx, user, target, server.BasePermission); err != nil {
		return types.Update{}, err
	}
	_, client, err := e.serverClient(ctx, server.ID.Hex())
	if err != nil {
		return types.Update{}, err
	}

	ub, err := e.journal.Init(ctx, types.Operation(req.Type), target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	name := req.Params.Container
	signal := req.Params.StopSignal
	stopTime := req.Params.StopTime

	var log types.Log
	switch req.Type {
	case types.ExecStartContainer:
		log, err = client.StartContainer(ctx, name)
	case types.ExecRestartContainer:
		log, err = client.RestartContainer(ctx, name)
	case types.ExecPauseContainer:
		log, err = client.PauseContainer(ctx, name)
	case types.ExecUnpauseContainer:
		log, err = client.UnpauseContainer(ctx, name)
	case types.ExecStopContainer:
		log, err = client.StopContainer(ctx, name, signal, stopTime)
	default:
		log, err = client.RemoveContainer(ctx, name, signal, stopTime)
	}
	if err != nil {
		ub.AddError(ctx, string(req.Type), err)
	} else {
		ub.AddLog(ctx, log)
	}
	e.refreshServerStatus(server, client)
	return finish(ctx, ub), nil
}

// stopAllContainers stops every container on the server.
func (e *Executor) stopAllContainers(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	server, err := e.store.Server(ctx, req.Params.Server)
	if err != nil {
		return types.Update{}, err
	}
	target := server.Target(types.KindServer)
	if err := e.requireExecute(ctx, user, target, server.BasePermission); err != nil {
		return types.Update{}, err
	}
	_, client, err := e.serverClient(ctx, server.ID.Hex())
	if err != nil {
		return types.Update{}, err
	}

	release, err := e.state.ServerActions.Guard(target.ID,
		func(s *types.ServerActionState) *bool { return &s.StoppingContainers })
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.OpStopAllContainers, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	logs, err := client.StopAllContainers(ctx)
	if err != nil {
		ub.AddError(ctx, "Stop All Containers", err)
	} else {
		ub.AddLogs(ctx, logs)
	}
	e.refreshServerStatus(server, client)
	return finish(ctx, ub), nil
}

func pruneGuard(t types.ExecutionType) func(*types.ServerActionState) *bool {
	switch t {
	case types.ExecPruneContainers:
		return func(s *types.ServerActionState) *bool { return &s.PruningContainers }
	case types.ExecPruneImages:
		return func(s *types.ServerActionState) *bool { return &s.PruningImages }
	case types.ExecPruneNetworks:
		return func(s *types.ServerActionState) *bool { return &s.PruningNetworks }
	case types.ExecPruneVolumes:
		return func(s *types.ServerActionState) *bool { return &s.PruningVolumes }
	case types.ExecPruneBuilders:
		return func(s *types.ServerActionState) *bool { return &s.PruningBuilders }
	default:
		return func(s *types.ServerActionState) *bool { return &s.PruningSystem }
	}
}

// pruneOp runs one docker prune on the server.
func (e *Executor) pruneOp(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	server, err := e.store.Server(ctx, req.Params.Server)
	if err != nil {
		return types.Update{}, err
	}
	target := server.Target(types.KindServer)
	if err := e.requireExecute(ctx, user, target, server.BasePermission); err != nil {
		return types.Update{}, err
	}
	_, client, err := e.serverClient(ctx, server.ID.Hex())
	if err != nil {
		return types.Update{}, err
	}

	release, err := e.state.ServerActions.Guard(target.ID, pruneGuard(req.Type))
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.Operation(req.Type), target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	var log types.Log
	switch req.Type {
	case types.ExecPruneContainers:
		log, err = client.PruneContainers(ctx)
	case types.ExecPruneImages:
		log, err = client.PruneImages(ctx)
	case types.ExecPruneNetworks:
		log, err = client.PruneNetworks(ctx)
	case types.ExecPruneVolumes:
		log, err = client.PruneVolumes(ctx)
	case types.ExecPruneBuilders:
		log, err = client.PruneBuilders(ctx)
	default:
		log, err = client.PruneSystem(ctx)
	}
	if err != nil {
		ub.AddError(ctx, string(req.Type), err)
	} else {
		ub.AddLog(ctx, log)
	}
	return finish(ctx, ub), nil
}
