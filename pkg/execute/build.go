package execute

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/interpolate"
	"github.com/komodo-sh/komodo/pkg/periphery"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/update"
)

// runBuild executes one build: acquire the build host, clone, docker build,
// clean up. A concurrent CancelBuild for the same build id aborts the
// in-flight periphery calls and converges on the cleanup branch.
func (e *Executor) runBuild(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	build, err := e.store.Build(ctx, req.Params.Build)
	if err != nil {
		return types.Update{}, err
	}
	target := build.Target(types.KindBuild)
	if err := e.requireExecute(ctx, user, target, build.BasePermission); err != nil {
		return types.Update{}, err
	}
	if build.Config.BuilderID == "" {
		return types.Update{}, types.NewValidationError("builder_id", "build has no builder configured")
	}

	release, err := e.state.BuildActions.Guard(target.ID,
		func(s *types.BuildActionState) *bool { return &s.Building })
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.OpRunBuild, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	// Auto-increment builds bump the version before the run, so the image
	// tag and the update carry the version this run produces. The bumped
	// value is persisted only if the run succeeds.
	version := runVersion(build.Config)
	ub.SetVersion(version)

	// Cancellation: watch the broadcast for this build id, aborting the
	// periphery calls when a cancel lands.
	buildCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	cancelCh, unsubscribe := e.state.CancelHub.Subscribe()
	watch := watchCancel(cancelCh, unsubscribe, target.ID, cancelRun)
	defer watch.stop()

	host, err := e.acquireBuildHost(buildCtx, build.Config.BuilderID, build.Name, ub)
	if err != nil {
		ub.AddError(ctx, "Acquire Build Host", err)
		e.recordBuildOutcome(ctx, build, target, version, "", ub)
		return finish(ctx, ub), nil
	}

	redactor, cfg, err := e.interpolateBuildConfig(ctx, build.Config, ub)
	if err != nil {
		e.releaseBuildHost(ctx, host, build.Name, target, ub)
		e.recordBuildOutcome(ctx, build, target, version, "", ub)
		return finish(ctx, ub), nil
	}
	if redactor != nil {
		ub.SetRedactor(redactor)
	}

	var commitHash string
	gitRes, err := host.client.CloneRepo(buildCtx, gitParamsFromBuild(build.Name, cfg))
	ub.AddLogs(ctx, gitRes.Logs)
	if err != nil {
		ub.AddError(ctx, "Clone Repo", err)
	} else {
		commitHash = gitRes.CommitHash
		ub.SetCommitHash(commitHash)
	}

	cloneOk := err == nil && gitRes.Success()
	if cloneOk && !watch.noteCancelled(ctx, ub) {
		logs, err := host.client.Build(buildCtx, periphery.BuildParams{
			Name:    build.Name,
			Config:  cfg,
			Version: version,
		})
		ub.AddLogs(ctx, logs)
		if err != nil {
			ub.AddError(ctx, "Build", err)
		}
		watch.noteCancelled(ctx, ub)
	}

	e.releaseBuildHost(ctx, host, build.Name, target, ub)
	e.recordBuildOutcome(ctx, build, target, version, commitHash, ub)
	return finish(ctx, ub), nil
}

// cancelBuild publishes a cancellation for an in-flight build run. Refused
// when the build is not running or a cancel is already in progress.
func (e *Executor) cancelBuild(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	build, err := e.store.Build(ctx, req.Params.Build)
	if err != nil {
		return types.Update{}, err
	}
	target := build.Target(types.KindBuild)
	if err := e.requireExecute(ctx, user, target, build.BasePermission); err != nil {
		return types.Update{}, err
	}
	if !e.state.BuildActions.Busy(target.ID) {
		return types.Update{}, types.NewValidationError("build", "no build run in flight")
	}
	count, err := e.state.DB.Collections.Updates.CountDocuments(ctx, bson.M{
		"operation":   types.OpCancelBuild,
		"target.type": types.KindBuild,
		"target.id":   target.ID,
		"status":      types.UpdateInProgress,
	})
	if err != nil {
		return types.Update{}, fmt.Errorf("failed to check pending cancels: %w", err)
	}
	if count > 0 {
		return types.Update{}, fmt.Errorf("cancel already in progress for build %s: %w",
			build.Name, types.ErrConflict)
	}

	ub, err := e.journal.Init(ctx, types.OpCancelBuild, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}
	e.state.CancelHub.Publish(types.BuildCancel{BuildID: target.ID, UpdateID: ub.ID()})
	ub.AddSimple(ctx, "Cancel Build", fmt.Sprintf("requested cancellation of build %s", build.Name))
	return finish(ctx, ub), nil
}

// recordBuildOutcome persists the run's result onto the build and the alert
// store: info fields and auto-increment on success, a BuildFailed alert on
// failure, resolution of a previous failure on success.
func (e *Executor) recordBuildOutcome(
	ctx context.Context,
	build *resource.Build,
	target types.ResourceTarget,
	version types.Version,
	commitHash string,
	ub *update.Builder,
) {
	data := types.AlertData{
		ID:      target.ID,
		Name:    build.Name,
		Version: &version,
	}
	u := ub.Update()
	if !u.AllLogsSuccess() {
		e.alerts.Open(ctx, types.Alert{
			TS:       types.NowMS(),
			Level:    types.SeverityCritical,
			Target:   target,
			DataType: types.AlertBuildFailed,
			Data:     data,
		})
		return
	}

	fields := bson.M{"info.last_built_at": types.NowMS()}
	if commitHash != "" {
		fields["info.built_hash"] = commitHash
	}
	if err := e.store.UpdateInfo(ctx, types.KindBuild, target.ID, fields); err != nil {
		ub.AddError(ctx, "Record Build", err)
		return
	}
	if build.Config.AutoIncrementVersion {
		if err := e.store.SetBuildVersion(ctx, target.ID, version); err != nil {
			ub.AddError(ctx, "Record Build", err)
			return
		}
	}
	e.alerts.Resolve(ctx, target, types.AlertBuildFailed, data)
	e.postBuildRedeploy(ctx, target.ID, ub)
}

// postBuildRedeploy deploys every running deployment that tracks this build
// with redeploy_on_build, as the system user.
func (e *Executor) postBuildRedeploy(ctx context.Context, buildID string, ub *update.Builder) {
	cur, err := e.state.DB.Collections.Deployments.Find(ctx, bson.M{
		"config.image.type":            types.ImageTypeBuild,
		"config.image.params.build_id": buildID,
		"config.redeploy_on_build":     true,
	})
	if err != nil {
		ub.AddError(ctx, "Post Build Redeploy", err)
		return
	}
	var deps []resource.Deployment
	if err := cur.All(ctx, &deps); err != nil {
		ub.AddError(ctx, "Post Build Redeploy", err)
		return
	}

	for _, dep := range deps {
		status, ok := e.state.DeploymentStatus.Get(dep.ID.Hex())
		if !ok || status.State != types.DeploymentRunning {
			continue
		}
		u, err := e.ExecuteAsSystem(ctx, types.SystemUserSystem, types.ExecuteRequest{
			Type:   types.ExecDeploy,
			Params: types.ExecuteParams{Deployment: dep.ID.Hex()},
		})
		switch {
		case err != nil:
			ub.AddError(ctx, "Post Build Redeploy", fmt.Errorf("%s: %w", dep.Name, err))
		case !u.Success:
			ub.AddError(ctx, "Post Build Redeploy",
				fmt.Errorf("%s: redeploy failed, see update %s", dep.Name, u.ID.Hex()))
		default:
			ub.AddSimple(ctx, "Post Build Redeploy", fmt.Sprintf("redeployed %s", dep.Name))
		}
	}
}

// interpolateBuildConfig applies variable interpolation to the build's args
// and returns a redactor covering secret variables and secret arg values.
// Errors are already appended to the update.
func (e *Executor) interpolateBuildConfig(
	ctx context.Context,
	cfg types.BuildConfig,
	ub *update.Builder,
) (*interpolate.Redactor, types.BuildConfig, error) {
	secrets := make(map[string]string)
	for _, arg := range cfg.SecretArgs {
		if arg.Value != "" {
			secrets[arg.Variable] = arg.Value
		}
	}

	if !cfg.SkipSecretInterp {
		vars, err := e.loadVariables(ctx)
		if err != nil {
			ub.AddError(ctx, "Interpolate", err)
			return nil, cfg, err
		}
		interp := interpolate.New(vars)
		if cfg.BuildArgs, err = interp.EnvironmentVars(cfg.BuildArgs); err != nil {
			ub.AddError(ctx, "Interpolate", err)
			return nil, cfg, err
		}
		if cfg.SecretArgs, err = interp.EnvironmentVars(cfg.SecretArgs); err != nil {
			ub.AddError(ctx, "Interpolate", err)
			return nil, cfg, err
		}
		if log := interp.SummaryLog(); log != nil {
			ub.AddLog(ctx, *log)
		}
		for _, v := range vars {
			if v.IsSecret {
				secrets[v.Name] = v.Value
			}
		}
		for _, arg := range cfg.SecretArgs {
			if arg.Value != "" {
				secrets[arg.Variable] = arg.Value
			}
		}
	}

	if len(secrets) == 0 {
		return nil, cfg, nil
	}
	return interpolate.NewValueRedactor(secrets), cfg, nil
}

// runVersion is the version a run of the build produces, stamped on the
// update and baked into the image tag.
func runVersion(cfg types.BuildConfig) types.Version {
	if cfg.AutoIncrementVersion {
		return cfg.Version.Increment()
	}
	return cfg.Version
}

func gitParamsFromBuild(name string, cfg types.BuildConfig) periphery.GitParams {
	return periphery.GitParams{
		Name:     name,
		Provider: cfg.GitProvider,
		Account:  cfg.GitAccount,
		HTTPS:    cfg.GitHTTPS,
		Repo:     cfg.Repo,
		Branch:   cfg.Branch,
		Commit:   cfg.Commit,
		OnClone:  cfg.PreBuild,
	}
}

// cancelWatcher observes the build-cancel broadcast for one build id.
type cancelWatcher struct {
	mu       sync.Mutex
	updateID string

	done chan struct{}
	once sync.Once
}

// watchCancel spawns the watcher goroutine over a hub subscription. It
// triggers cancel when a matching build id arrives, recording the cancel
// update's id for the acknowledgement log.
func watchCancel(ch <-chan types.BuildCancel, unsubscribe func(), buildID string, cancel context.CancelFunc) *cancelWatcher {
	w := &cancelWatcher{done: make(chan struct{})}
	go func() {
		defer unsubscribe()
		for {
			select {
			case msg := <-ch:
				if msg.BuildID != buildID {
					continue
				}
				w.mu.Lock()
				w.updateID = msg.UpdateID
				w.mu.Unlock()
				cancel()
				return
			case <-w.done:
				return
			}
		}
	}()
	return w
}

func (w *cancelWatcher) stop() {
	w.once.Do(func() { close(w.done) })
}

// noteCancelled reports whether a cancel arrived, appending the
// acknowledgement log (once) when it did.
func (w *cancelWatcher) noteCancelled(ctx context.Context, ub *update.Builder) bool {
	w.mu.Lock()
	id := w.updateID
	w.mu.Unlock()
	if id == "" {
		return false
	}
	ub.AddSimple(ctx, "Cancel Acknowledged",
		fmt.Sprintf("build run cancelled by update %s", id))
	ub.ForceFailure()
	return true
}
