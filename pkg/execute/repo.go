package execute

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/interpolate"
	"github.com/komodo-sh/komodo/pkg/periphery"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/update"
)

// repoGitOp clones or pulls a repo on its configured server, running the
// on-clone/on-pull hooks agent-side.
func (e *Executor) repoGitOp(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	repo, err := e.store.Repo(ctx, req.Params.Repo)
	if err != nil {
		return types.Update{}, err
	}
	target := repo.Target(types.KindRepo)
	if err := e.requireExecute(ctx, user, target, repo.BasePermission); err != nil {
		return types.Update{}, err
	}
	_, client, err := e.serverClient(ctx, repo.Config.ServerID)
	if err != nil {
		return types.Update{}, err
	}

	pick := func(s *types.RepoActionState) *bool { return &s.Cloning }
	op := types.OpCloneRepo
	if req.Type == types.ExecPullRepo {
		pick = func(s *types.RepoActionState) *bool { return &s.Pulling }
		op = types.OpPullRepo
	}
	release, err := e.state.RepoActions.Guard(target.ID, pick)
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, op, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	params, err := e.gitParamsFromRepo(ctx, repo, ub)
	if err != nil {
		return finish(ctx, ub), nil
	}

	var res periphery.GitResult
	if req.Type == types.ExecPullRepo {
		res, err = client.PullRepo(ctx, params)
	} else {
		res, err = client.CloneRepo(ctx, params)
	}
	ub.AddLogs(ctx, res.Logs)
	if err != nil {
		ub.AddError(ctx, string(op), err)
		return finish(ctx, ub), nil
	}
	ub.SetCommitHash(res.CommitHash)

	if res.Success() {
		fields := bson.M{
			"info.last_pulled_at":  types.NowMS(),
			"info.latest_hash":     res.CommitHash,
			"info.latest_message":  res.CommitMessage,
		}
		if err := e.store.UpdateInfo(ctx, types.KindRepo, target.ID, fields); err != nil {
			ub.AddError(ctx, "Record Repo", err)
		}
	}
	return finish(ctx, ub), nil
}

// buildRepo clones the repo onto its builder host and runs the hooks there,
// mirroring the build flow without a docker build step.
func (e *Executor) buildRepo(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	repo, err := e.store.Repo(ctx, req.Params.Repo)
	if err != nil {
		return types.Update{}, err
	}
	target := repo.Target(types.KindRepo)
	if err := e.requireExecute(ctx, user, target, repo.BasePermission); err != nil {
		return types.Update{}, err
	}
	if repo.Config.BuilderID == "" {
		return types.Update{}, types.NewValidationError("builder_id", "repo has no builder configured")
	}

	release, err := e.state.RepoActions.Guard(target.ID,
		func(s *types.RepoActionState) *bool { return &s.Building })
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.OpBuildRepo, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	host, err := e.acquireBuildHost(ctx, repo.Config.BuilderID, repo.Name, ub)
	if err != nil {
		ub.AddError(ctx, "Acquire Build Host", err)
		return finish(ctx, ub), nil
	}

	params, err := e.gitParamsFromRepo(ctx, repo, ub)
	if err != nil {
		e.releaseBuildHost(ctx, host, repo.Name, target, ub)
		return finish(ctx, ub), nil
	}

	res, err := host.client.CloneRepo(ctx, params)
	ub.AddLogs(ctx, res.Logs)
	if err != nil {
		ub.AddError(ctx, "Build Repo", err)
	} else {
		ub.SetCommitHash(res.CommitHash)
	}

	e.releaseBuildHost(ctx, host, repo.Name, target, ub)

	if err == nil && res.Success() {
		fields := bson.M{
			"info.last_built_at": types.NowMS(),
			"info.built_hash":    res.CommitHash,
		}
		if err := e.store.UpdateInfo(ctx, types.KindRepo, target.ID, fields); err != nil {
			ub.AddError(ctx, "Record Repo", err)
		}
	}
	return finish(ctx, ub), nil
}

// gitParamsFromRepo maps a repo's config onto the periphery git params, with
// the environment interpolated. Errors land on the update.
func (e *Executor) gitParamsFromRepo(ctx context.Context, repo *resource.Repo, ub *update.Builder) (periphery.GitParams, error) {
	cfg := repo.Config
	env := cfg.Environment
	if !cfg.SkipSecretInterp && len(env) > 0 {
		vars, err := e.loadVariables(ctx)
		if err != nil {
			ub.AddError(ctx, "Interpolate", err)
			return periphery.GitParams{}, err
		}
		interp := interpolate.New(vars)
		if env, err = interp.EnvironmentVars(env); err != nil {
			ub.AddError(ctx, "Interpolate", err)
			return periphery.GitParams{}, err
		}
		if log := interp.SummaryLog(); log != nil {
			ub.AddLog(ctx, *log)
		}
		ub.SetRedactor(interpolate.NewRedactor(vars))
	}
	return periphery.GitParams{
		Name:        repo.Name,
		Provider:    cfg.GitProvider,
		Account:     cfg.GitAccount,
		HTTPS:       cfg.GitHTTPS,
		Repo:        cfg.Repo,
		Branch:      cfg.Branch,
		Commit:      cfg.Commit,
		Path:        cfg.Path,
		OnClone:     cfg.OnClone,
		OnPull:      cfg.OnPull,
		Environment: env,
		EnvFilePath: cfg.EnvFilePath,
	}, nil
}
