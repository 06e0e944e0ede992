package execute

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/update"
)

// runProcedure executes a procedure's stages sequentially, the executions
// within each stage concurrently. Nested RunProcedure executions recurse
// through the engine with depth tracked, bounded by MaxProcedureDepth.
func (e *Executor) runProcedure(ctx context.Context, user *types.User, req types.ExecuteRequest, depth int) (types.Update, error) {
	if depth >= types.MaxProcedureDepth {
		return types.Update{}, types.NewValidationError("procedure",
			fmt.Sprintf("procedure nesting exceeds the maximum depth of %d", types.MaxProcedureDepth))
	}

	proc, err := e.store.Procedure(ctx, req.Params.Procedure)
	if err != nil {
		return types.Update{}, err
	}
	target := proc.Target(types.KindProcedure)
	if err := e.requireExecute(ctx, user, target, proc.BasePermission); err != nil {
		return types.Update{}, err
	}

	release, err := e.state.ProcedureActions.Guard(target.ID,
		func(s *types.ProcedureActionState) *bool { return &s.Running })
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.OpRunProcedure, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	for i, stage := range proc.Config.Stages {
		if !stage.Enabled {
			continue
		}
		name := stage.Name
		if name == "" {
			name = fmt.Sprintf("Stage %d", i+1)
		}
		ok := e.runStage(ctx, user, name, stage, depth, ub)
		if !ok {
			if proc.Config.FailureOK {
				ub.AddSimple(ctx, "Run Procedure",
					fmt.Sprintf("stage %q failed; continuing (failure_ok)", name))
				continue
			}
			ub.AddError(ctx, "Run Procedure",
				fmt.Errorf("stage %q failed; aborting remaining stages", name))
			break
		}
	}

	return finish(ctx, ub), nil
}

// runStage runs one stage's enabled executions concurrently, appending a
// summary log. Returns whether every execution succeeded.
func (e *Executor) runStage(
	ctx context.Context,
	user *types.User,
	name string,
	stage types.ProcedureStage,
	depth int,
	ub *update.Builder,
) bool {
	type result struct {
		desc string
		ok   bool
		err  error
	}

	var enabled []types.ExecuteRequest
	for _, ex := range stage.Executions {
		if ex.Enabled && ex.Execution.Type != types.ExecNone {
			enabled = append(enabled, ex.Execution)
		}
	}
	if len(enabled) == 0 {
		ub.AddSimple(ctx, "Stage: "+name, "no enabled executions")
		return true
	}

	results := make([]result, len(enabled))
	var wg sync.WaitGroup
	for i, child := range enabled {
		wg.Add(1)
		go func(i int, child types.ExecuteRequest) {
			defer wg.Done()
			kind, selector := child.Selector()
			desc := fmt.Sprintf("%s %s:%s", child.Type, kind, selector)
			u, err := e.execute(ctx, user, child, depth+1)
			results[i] = result{desc: desc, ok: err == nil && u.Success, err: err}
		}(i, child)
	}
	wg.Wait()

	var lines []string
	ok := true
	for _, r := range results {
		switch {
		case r.err != nil:
			lines = append(lines, fmt.Sprintf("%s | error: %v", r.desc, r.err))
			ok = false
		case !r.ok:
			lines = append(lines, r.desc+" | failed")
			ok = false
		default:
			lines = append(lines, r.desc+" | ok")
		}
	}
	now := types.NowMS()
	ub.AddLog(ctx, types.Log{
		Stage:   "Stage: " + name,
		Stdout:  strings.Join(lines, "\n"),
		Success: ok,
		StartTS: now,
		EndTS:   now,
	})
	return ok
}
