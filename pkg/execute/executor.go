// Package execute is the execution engine: it dispatches ExecuteRequest
// variants onto periphery RPCs, the action runner, and the sync engine, with
// the single-flight, permission, and update-journal discipline shared by
// every operation.
package execute

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/action"
	"github.com/komodo-sh/komodo/pkg/alert"
	"github.com/komodo-sh/komodo/pkg/builder"
	"github.com/komodo-sh/komodo/pkg/permission"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/state"
	"github.com/komodo-sh/komodo/pkg/syncer"
	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/update"
)

// Executor runs execute requests. One instance serves the whole process; all
// of its dependencies are safe for concurrent use.
type Executor struct {
	state    *state.State
	store    *resource.Store
	registry *resource.Registry
	perms    *permission.Engine
	journal  *update.Journal
	syncer   *syncer.Syncer
	actions  *action.Runner
	alerts   *alert.Manager
	builders *builder.Manager
}

// New wires the executor.
func New(
	st *state.State,
	store *resource.Store,
	registry *resource.Registry,
	perms *permission.Engine,
	journal *update.Journal,
	sync *syncer.Syncer,
	actions *action.Runner,
	alerts *alert.Manager,
	builders *builder.Manager,
) *Executor {
	return &Executor{
		state:    st,
		store:    store,
		registry: registry,
		perms:    perms,
		journal:  journal,
		syncer:   sync,
		actions:  actions,
		alerts:   alerts,
		builders: builders,
	}
}

// Execute runs one single-resource request as the user and returns the
// finished update. Rejections that happen before the update exists (unknown
// resource, permission, busy target) come back as errors; failures after
// that are recorded on the update, which is returned with success=false.
//
// Batch variants are not accepted here; use Batch.
func (e *Executor) Execute(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	if req.IsBatch() {
		return types.Update{}, types.NewValidationError("type",
			fmt.Sprintf("%s is a batch variant", req.Type))
	}
	return e.execute(ctx, user, req, 0)
}

// ExecuteDetached dispatches the request in a task that outlives the caller's
// context and returns as soon as the journal record exists, so the caller
// gets the InProgress update (and its id) while the work proceeds. A dropped
// caller does not abort the operation. Rejections that happen before the
// record exists (unknown resource, permission, busy) come back as errors,
// exactly as with Execute.
func (e *Executor) ExecuteDetached(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	if req.IsBatch() {
		return types.Update{}, types.NewValidationError("type",
			fmt.Sprintf("%s is a batch variant", req.Type))
	}
	return detach(ctx, func(ctx context.Context) (types.Update, error) {
		return e.execute(ctx, user, req, 0)
	})
}

// ExecuteAsSystem runs the request as the named system user. Used by the
// monitor's auto-update path, the scheduler, and the webhook listener.
func (e *Executor) ExecuteAsSystem(ctx context.Context, username string, req types.ExecuteRequest) (types.Update, error) {
	var user types.User
	err := e.state.DB.Collections.Users.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		return types.Update{}, fmt.Errorf("system user %q missing: %w", username, err)
	}
	return e.Execute(ctx, &user, req)
}

// execute dispatches one request. depth counts nested procedure levels.
func (e *Executor) execute(ctx context.Context, user *types.User, req types.ExecuteRequest, depth int) (types.Update, error) {
	switch req.Type {
	case types.ExecDeploy, types.ExecStartDeployment, types.ExecRestartDeployment,
		types.ExecPauseDeployment, types.ExecUnpauseDeployment,
		types.ExecStopDeployment, types.ExecDestroyDeployment:
		return e.deploymentOp(ctx, user, req)

	case types.ExecRunBuild:
		return e.runBuild(ctx, user, req)
	case types.ExecCancelBuild:
		return e.cancelBuild(ctx, user, req)

	case types.ExecCloneRepo, types.ExecPullRepo:
		return e.repoGitOp(ctx, user, req)
	case types.ExecBuildRepo:
		return e.buildRepo(ctx, user, req)

	case types.ExecRunProcedure:
		return e.runProcedure(ctx, user, req, depth)
	case types.ExecRunAction:
		return e.runAction(ctx, user, req)

	case types.ExecDeployStack, types.ExecDeployStackIfChanged:
		return e.deployStack(ctx, user, req)
	case types.ExecPullStack, types.ExecStartStack, types.ExecRestartStack,
		types.ExecPauseStack, types.ExecUnpauseStack, types.ExecStopStack,
		types.ExecDestroyStack:
		return e.stackOp(ctx, user, req)

	case types.ExecRunSync:
		return e.runSync(ctx, user, req)

	case types.ExecStartContainer, types.ExecRestartContainer,
		types.ExecPauseContainer, types.ExecUnpauseContainer,
		types.ExecStopContainer, types.ExecDestroyContainer:
		return e.containerOp(ctx, user, req)
	case types.ExecStopAllContainers:
		return e.stopAllContainers(ctx, user, req)
	case types.ExecPruneContainers, types.ExecPruneImages, types.ExecPruneNetworks,
		types.ExecPruneVolumes, types.ExecPruneBuilders, types.ExecPruneSystem:
		return e.pruneOp(ctx, user, req)

	case types.ExecTestAlerter:
		return e.testAlerter(ctx, user, req)
	case types.ExecLaunchServer:
		return e.launchServer(ctx, user, req)

	default:
		return types.Update{}, types.NewValidationError("type",
			fmt.Sprintf("unknown execution type %q", req.Type))
	}
}

// requireExecute checks the user holds Execute on the target.
func (e *Executor) requireExecute(
	ctx context.Context,
	user *types.User,
	target types.ResourceTarget,
	base types.PermissionLevel,
) error {
	return e.perms.Require(ctx, user, target, base, types.PermissionExecute)
}

type execOutcome struct {
	update types.Update
	err    error
}

// detach runs the operation in its own goroutine on a context detached from
// the caller's cancellation, returning the InProgress update as soon as the
// journal record exists. Operations that end before that point (pre-update
// rejections) return their own result. A panic inside the operation is
// recorded as an error log on the update, which is then finalized rather
// than left InProgress.
func detach(ctx context.Context, run func(context.Context) (types.Update, error)) (types.Update, error) {
	ctx = context.WithoutCancel(ctx)

	// started carries a snapshot of the record taken inside Init, before the
	// operation can append to it. ub is written by the observer and read by
	// the recover path, both on the operation goroutine.
	started := make(chan types.Update, 1)
	var ub *update.Builder
	ctx = update.WithInitObserver(ctx, func(b *update.Builder) {
		// Nested executions (procedure stages) init their own updates; the
		// caller's record is the first one.
		if ub != nil {
			return
		}
		ub = b
		started <- b.Update()
	})

	done := make(chan execOutcome, 1)
	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err := fmt.Errorf("operation panicked: %v", r)
			if ub == nil {
				done <- execOutcome{err: err}
				return
			}
			if !ub.Finalized() {
				ub.AddError(ctx, "Execution", err)
				done <- execOutcome{update: ub.Finalize(ctx)}
				return
			}
			done <- execOutcome{update: ub.Update()}
		}()
		u, err := run(ctx)
		done <- execOutcome{update: u, err: err}
	}()

	select {
	case u := <-started:
		return u, nil
	case out := <-done:
		return out.update, out.err
	}
}

// finish finalizes the update and logs failed operations.
func finish(ctx context.Context, ub *update.Builder) types.Update {
	u := ub.Finalize(ctx)
	if !u.Success {
		slog.Warn("Execution finished with failure",
			"operation", u.Operation,
			"target", u.Target.String(),
			"update_id", u.ID.Hex())
	}
	return u
}
