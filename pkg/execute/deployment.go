package execute

import (
	"context"
	"fmt"

	"github.com/komodo-sh/komodo/pkg/interpolate"
	"github.com/komodo-sh/komodo/pkg/periphery"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/update"
)

// deploymentGuard returns the action-state flag an execution type holds for
// its duration.
func deploymentGuard(t types.ExecutionType) func(*types.DeploymentActionState) *bool {
	switch t {
	case types.ExecDeploy:
		return func(s *types.DeploymentActionState) *bool { return &s.Deploying }
	case types.ExecStartDeployment:
		return func(s *types.DeploymentActionState) *bool { return &s.Starting }
	case types.ExecRestartDeployment:
		return func(s *types.DeploymentActionState) *bool { return &s.Restarting }
	case types.ExecPauseDeployment:
		return func(s *types.DeploymentActionState) *bool { return &s.Pausing }
	case types.ExecUnpauseDeployment:
		return func(s *types.DeploymentActionState) *bool { return &s.Unpausing }
	case types.ExecStopDeployment:
		return func(s *types.DeploymentActionState) *bool { return &s.Stopping }
	default:
		return func(s *types.DeploymentActionState) *bool { return &s.Destroying }
	}
}

// deploymentOp runs one container lifecycle operation on a deployment,
// including Deploy itself. The container is named after the deployment.
func (e *Executor) deploymentOp(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	dep, err := e.store.Deployment(ctx, req.Params.Deployment)
	if err != nil {
		return types.Update{}, err
	}
	target := dep.Target(types.KindDeployment)
	if err := e.requireExecute(ctx, user, target, dep.BasePermission); err != nil {
		return types.Update{}, err
	}
	server, client, err := e.serverClient(ctx, dep.Config.ServerID)
	if err != nil {
		return types.Update{}, err
	}

	release, err := e.state.DeploymentActions.Guard(target.ID, deploymentGuard(req.Type))
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.Operation(req.Type), target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	if req.Type == types.ExecDeploy {
		e.deploy(ctx, dep, client, ub)
		e.refreshServerStatus(server, client)
		return finish(ctx, ub), nil
	}

	signal := dep.Config.TerminationSignal
	if req.Params.StopSignal != "" {
		signal = req.Params.StopSignal
	}
	stopTime := dep.Config.TerminationTimeout
	if req.Params.StopTime != 0 {
		stopTime = req.Params.StopTime
	}

	var log types.Log
	switch req.Type {
	case types.ExecStartDeployment:
		log, err = client.StartContainer(ctx, dep.Name)
	case types.ExecRestartDeployment:
		log, err = client.RestartContainer(ctx, dep.Name)
	case types.ExecPauseDeployment:
		log, err = client.PauseContainer(ctx, dep.Name)
	case types.ExecUnpauseDeployment:
		log, err = client.UnpauseContainer(ctx, dep.Name)
	case types.ExecStopDeployment:
		log, err = client.StopContainer(ctx, dep.Name, signal, stopTime)
	case types.ExecDestroyDeployment:
		log, err = client.RemoveContainer(ctx, dep.Name, signal, stopTime)
	}
	if err != nil {
		ub.AddError(ctx, string(req.Type), err)
	} else {
		ub.AddLog(ctx, log)
	}
	e.refreshServerStatus(server, client)
	return finish(ctx, ub), nil
}

// deploy resolves the image, interpolates secrets into the environment, and
// calls periphery Deploy. Every outcome lands on the update.
func (e *Executor) deploy(ctx context.Context, dep *resource.Deployment, client *periphery.Client, ub *update.Builder) {
	cfg := dep.Config

	image, registryAccount, err := e.resolveImage(ctx, cfg)
	if err != nil {
		ub.AddError(ctx, "Deploy", err)
		return
	}

	if !cfg.SkipSecretInterp {
		vars, err := e.loadVariables(ctx)
		if err != nil {
			ub.AddError(ctx, "Deploy", err)
			return
		}
		interp := interpolate.New(vars)
		env, err := interp.EnvironmentVars(cfg.Environment)
		if err != nil {
			ub.AddError(ctx, "Deploy", err)
			return
		}
		cfg.Environment = env
		if log := interp.SummaryLog(); log != nil {
			ub.AddLog(ctx, *log)
		}
		ub.SetRedactor(interpolate.NewRedactor(vars))
	}

	log, err := client.Deploy(ctx, periphery.DeployParams{
		Name:                 dep.Name,
		Image:                image,
		ImageRegistryAccount: registryAccount,
		Config:               cfg,
	})
	if err != nil {
		ub.AddError(ctx, "Deploy", err)
		return
	}
	ub.AddLog(ctx, log)
}

// resolveImage turns the deployment's image declaration into a concrete
// reference. Build-linked images resolve to the build's image name at the
// pinned version, or :latest when no version is pinned; the build's registry
// account is inherited when the deployment leaves its own empty.
func (e *Executor) resolveImage(ctx context.Context, cfg types.DeploymentConfig) (image, registryAccount string, err error) {
	registryAccount = cfg.ImageRegistryAccount
	switch cfg.Image.Type {
	case types.ImageTypeBuild:
		if cfg.Image.Params.BuildID == "" {
			return "", "", types.NewValidationError("image", "no build configured")
		}
		build, err := e.store.Build(ctx, cfg.Image.Params.BuildID)
		if err != nil {
			return "", "", err
		}
		tag := "latest"
		if v := cfg.Image.Params.Version; !v.IsZero() {
			tag = v.String()
		}
		if build.Config.ImageTag != "" {
			tag += "-" + build.Config.ImageTag
		}
		if registryAccount == "" {
			registryAccount = build.Config.ImageRegistryAccount
		}
		return fmt.Sprintf("%s:%s", buildImageName(build), tag), registryAccount, nil
	default:
		if cfg.Image.Params.Image == "" {
			return "", "", types.NewValidationError("image", "no image configured")
		}
		return cfg.Image.Params.Image, registryAccount, nil
	}
}
