package execute

import (
	"context"
	"path"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/interpolate"
	"github.com/komodo-sh/komodo/pkg/periphery"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

// composeFileName is the synthetic path inline compose contents deploy under.
const composeFileName = "compose.yaml"

func stackGuard(t types.ExecutionType) func(*types.StackActionState) *bool {
	switch t {
	case types.ExecDeployStack, types.ExecDeployStackIfChanged:
		return func(s *types.StackActionState) *bool { return &s.Deploying }
	case types.ExecPullStack:
		return func(s *types.StackActionState) *bool { return &s.Pulling }
	case types.ExecStartStack:
		return func(s *types.StackActionState) *bool { return &s.Starting }
	case types.ExecRestartStack:
		return func(s *types.StackActionState) *bool { return &s.Restarting }
	case types.ExecPauseStack:
		return func(s *types.StackActionState) *bool { return &s.Pausing }
	case types.ExecUnpauseStack:
		return func(s *types.StackActionState) *bool { return &s.Unpausing }
	case types.ExecStopStack:
		return func(s *types.StackActionState) *bool { return &s.Stopping }
	default:
		return func(s *types.StackActionState) *bool { return &s.Destroying }
	}
}

// stackProject returns the compose project name the stack's containers carry.
func stackProject(stack *resource.Stack) string {
	if stack.Config.ProjectName != "" {
		return stack.Config.ProjectName
	}
	return stack.Name
}

// deployStack runs compose up for the stack. The IfChanged variant
// short-circuits when the compose declaration matches the deployed one.
func (e *Executor) deployStack(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	stack, err := e.store.Stack(ctx, req.Params.Stack)
	if err != nil {
		return types.Update{}, err
	}
	target := stack.Target(types.KindStack)
	if err := e.requireExecute(ctx, user, target, stack.BasePermission); err != nil {
		return types.Update{}, err
	}
	server, client, err := e.serverClient(ctx, stack.Config.ServerID)
	if err != nil {
		return types.Update{}, err
	}

	release, err := e.state.StackActions.Guard(target.ID, stackGuard(req.Type))
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.OpDeployStack, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	if req.Type == types.ExecDeployStackIfChanged && !stackChanged(stack) {
		ub.AddSimple(ctx, "Deploy Stack", "compose declaration unchanged; skipping deploy")
		return finish(ctx, ub), nil
	}

	cfg := stack.Config
	env := cfg.Environment
	var fileContents string
	if cfg.FileContents != "" {
		fileContents = cfg.FileContents
	}

	if !cfg.SkipSecretInterp {
		vars, err := e.loadVariables(ctx)
		if err != nil {
			ub.AddError(ctx, "Deploy Stack", err)
			return finish(ctx, ub), nil
		}
		interp := interpolate.New(vars)
		if env, err = interp.EnvironmentVars(env); err != nil {
			ub.AddError(ctx, "Deploy Stack", err)
			return finish(ctx, ub), nil
		}
		if fileContents != "" {
			if fileContents, err = interp.String(fileContents); err != nil {
				ub.AddError(ctx, "Deploy Stack", err)
				return finish(ctx, ub), nil
			}
		}
		if log := interp.SummaryLog(); log != nil {
			ub.AddLog(ctx, *log)
		}
		ub.SetRedactor(interpolate.NewRedactor(vars))
	}

	params := periphery.ComposeUpParams{
		Project:              stackProject(stack),
		RunDirectory:         cfg.RunDirectory,
		FilePaths:            cfg.FilePaths,
		Services:             req.Params.Services,
		Environment:          env,
		EnvFilePath:          cfg.EnvFilePath,
		ImageRegistryAccount: cfg.ImageRegistryAccount,
		ExtraArgs:            cfg.ExtraArgs,
		DestroyFirst:         cfg.DestroyBeforeDeploy,
	}

	var deployedHash string
	if cfg.FileContents != "" {
		params.Files = []types.FileContents{{Path: composeFileName, Contents: fileContents}}
		params.RunDirectory = ""
	} else {
		// Repo-backed stack: refresh the clone on the server, then run
		// compose from inside it.
		res, err := client.CloneRepo(ctx, gitParamsFromStack(stack))
		ub.AddLogs(ctx, res.Logs)
		if err != nil {
			ub.AddError(ctx, "Clone Stack Repo", err)
			return finish(ctx, ub), nil
		}
		if !res.Success() {
			return finish(ctx, ub), nil
		}
		deployedHash = res.CommitHash
		ub.SetCommitHash(deployedHash)
		params.RunDirectory = path.Join(stack.Name, cfg.RunDirectory)
	}

	logs, err := client.ComposeUp(ctx, params)
	ub.AddLogs(ctx, logs)
	if err != nil {
		ub.AddError(ctx, "Deploy Stack", err)
		e.refreshServerStatus(server, client)
		return finish(ctx, ub), nil
	}

	if ub.Update().AllLogsSuccess() {
		fields := bson.M{"info.last_deployed_at": types.NowMS()}
		if cfg.FileContents != "" {
			fields["info.deployed_contents"] = []types.FileContents{
				{Path: composeFileName, Contents: cfg.FileContents},
			}
		} else {
			fields["info.deployed_hash"] = deployedHash
		}
		if err := e.store.UpdateInfo(ctx, types.KindStack, target.ID, fields); err != nil {
			ub.AddError(ctx, "Record Stack", err)
		}
	}
	e.refreshServerStatus(server, client)
	return finish(ctx, ub), nil
}

// stackChanged reports whether the declaration differs from what the last
// deploy recorded. Inline stacks compare file contents; repo stacks compare
// the refreshed head against the deployed hash.
func stackChanged(stack *resource.Stack) bool {
	if stack.Config.FileContents != "" {
		deployed := stack.Info.DeployedContents
		if len(deployed) != 1 {
			return true
		}
		return deployed[0].Contents != stack.Config.FileContents
	}
	if stack.Info.DeployedHash == "" || stack.Info.LatestHash == "" {
		return true
	}
	return stack.Info.DeployedHash != stack.Info.LatestHash
}

// stackOp runs one compose lifecycle subcommand against the project.
func (e *Executor) stackOp(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	stack, err := e.store.Stack(ctx, req.Params.Stack)
	if err != nil {
		return types.Update{}, err
	}
	target := stack.Target(types.KindStack)
	if err := e.requireExecute(ctx, user, target, stack.BasePermission); err != nil {
		return types.Update{}, err
	}
	server, client, err := e.serverClient(ctx, stack.Config.ServerID)
	if err != nil {
		return types.Update{}, err
	}

	release, err := e.state.StackActions.Guard(target.ID, stackGuard(req.Type))
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.Operation(req.Type), target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	project := stackProject(stack)
	if req.Type == types.ExecPullStack {
		logs, err := client.ComposePull(ctx, project, req.Params.Services)
		if err != nil {
			ub.AddError(ctx, "Pull Stack", err)
		} else {
			ub.AddLogs(ctx, logs)
		}
		return finish(ctx, ub), nil
	}

	command := composeCommand(req.Type, req.Params.Services)
	log, err := client.ComposeExecution(ctx, project, command)
	if err != nil {
		ub.AddError(ctx, string(req.Type), err)
	} else {
		ub.AddLog(ctx, log)
	}
	e.refreshServerStatus(server, client)
	return finish(ctx, ub), nil
}

// composeCommand maps a stack variant onto the compose subcommand, scoped to
// the requested services when given.
func composeCommand(t types.ExecutionType, services []string) string {
	var verb string
	switch t {
	case types.ExecStartStack:
		verb = "start"
	case types.ExecRestartStack:
		verb = "restart"
	case types.ExecPauseStack:
		verb = "pause"
	case types.ExecUnpauseStack:
		verb = "unpause"
	case types.ExecStopStack:
		verb = "stop"
	default:
		verb = "down"
	}
	if len(services) == 0 {
		return verb
	}
	return verb + " " + strings.Join(services, " ")
}

func gitParamsFromStack(stack *resource.Stack) periphery.GitParams {
	cfg := stack.Config
	return periphery.GitParams{
		Name:     stack.Name,
		Provider: cfg.GitProvider,
		Account:  cfg.GitAccount,
		HTTPS:    cfg.GitHTTPS,
		Repo:     cfg.Repo,
		Branch:   cfg.Branch,
		Commit:   cfg.Commit,
	}
}
