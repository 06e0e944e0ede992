package execute

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/builder"
	"github.com/komodo-sh/komodo/pkg/types"
)

// runSync loads the sync's declaration, plans, and applies the plan. Every
// mutation lands as one log on the update.
func (e *Executor) runSync(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	sync, err := e.store.ResourceSync(ctx, req.Params.Sync)
	if err != nil {
		return types.Update{}, err
	}
	target := sync.Target(types.KindResourceSync)
	if err := e.requireExecute(ctx, user, target, sync.BasePermission); err != nil {
		return types.Update{}, err
	}

	release, err := e.state.SyncActions.Guard(target.ID,
		func(s *types.SyncActionState) *bool { return &s.Syncing })
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.OpRunSync, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	file, _, err := e.syncer.Load(sync)
	if err != nil {
		ub.AddError(ctx, "Run Sync", err)
		return finish(ctx, ub), nil
	}
	plan, err := e.syncer.BuildPlan(ctx, sync, file)
	if err != nil {
		ub.AddError(ctx, "Run Sync", err)
		return finish(ctx, ub), nil
	}
	if plan.IsEmpty() {
		ub.AddSimple(ctx, "Run Sync", "declaration matches current state; nothing to apply")
	} else {
		e.syncer.Apply(ctx, plan, ub)
	}

	if ub.Update().AllLogsSuccess() {
		if err := e.syncer.MarkSynced(ctx, target.ID); err != nil {
			ub.AddError(ctx, "Run Sync", err)
		}
	}
	return finish(ctx, ub), nil
}

// runAction executes the action's script through the deno runner.
func (e *Executor) runAction(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	act, err := e.store.Action(ctx, req.Params.Action)
	if err != nil {
		return types.Update{}, err
	}
	target := act.Target(types.KindAction)
	if err := e.requireExecute(ctx, user, target, act.BasePermission); err != nil {
		return types.Update{}, err
	}

	release, err := e.state.ActionActions.Guard(target.ID,
		func(s *types.ActionActionState) *bool { return &s.Running })
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.OpRunAction, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	// Run appends its own logs, including failures.
	_ = e.actions.Run(ctx, act, ub)

	if err := e.store.UpdateInfo(ctx, types.KindAction, target.ID, bson.M{
		"info.last_run_at": types.NowMS(),
	}); err != nil {
		ub.AddError(ctx, "Run Action", err)
	}
	return finish(ctx, ub), nil
}

// testAlerter sends a test alert through the alerter's endpoint.
func (e *Executor) testAlerter(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	alerter, err := e.store.Alerter(ctx, req.Params.Alerter)
	if err != nil {
		return types.Update{}, err
	}
	target := alerter.Target(types.KindAlerter)
	if err := e.requireExecute(ctx, user, target, alerter.BasePermission); err != nil {
		return types.Update{}, err
	}

	release, err := e.state.AlerterActions.Guard(target.ID,
		func(s *types.AlerterActionState) *bool { return &s.Testing })
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.OpTestAlerter, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	if err := e.alerts.Test(ctx, alerter); err != nil {
		ub.AddError(ctx, "Test Alerter", err)
	} else {
		ub.AddSimple(ctx, "Test Alerter",
			fmt.Sprintf("test alert delivered to %s endpoint", alerter.Config.Endpoint.Type))
	}
	return finish(ctx, ub), nil
}

// launchServer provisions a cloud instance per the template and registers it
// as a new server resource pointed at the instance's periphery address.
func (e *Executor) launchServer(ctx context.Context, user *types.User, req types.ExecuteRequest) (types.Update, error) {
	tmpl, err := e.store.ServerTemplate(ctx, req.Params.ServerTemplate)
	if err != nil {
		return types.Update{}, err
	}
	target := tmpl.Target(types.KindServerTemplate)
	if err := e.requireExecute(ctx, user, target, tmpl.BasePermission); err != nil {
		return types.Update{}, err
	}
	if req.Params.Name == "" {
		return types.Update{}, types.NewValidationError("name", "launched server needs a name")
	}

	provider := builder.ProviderAws
	if tmpl.Config.Type == types.TemplateHetzner {
		provider = builder.ProviderHetzner
	}
	prov, err := e.builders.For(provider)
	if err != nil {
		return types.Update{}, err
	}

	release, err := e.state.TemplateActions.Guard(target.ID,
		func(s *types.ServerTemplateActionState) *bool { return &s.Launching })
	if err != nil {
		return types.Update{}, err
	}
	defer release()

	ub, err := e.journal.Init(ctx, types.OpLaunchServer, target, user.Username)
	if err != nil {
		return types.Update{}, err
	}

	spec := builder.SpecFromTemplate(tmpl.Config.Params)
	ub.AddSimple(ctx, "Launch Server",
		fmt.Sprintf("launching %s instance for server %s", provider, req.Params.Name))
	instance, err := prov.Launch(ctx, req.Params.Name, spec)
	if err != nil {
		ub.AddError(ctx, "Launch Server", err)
		return finish(ctx, ub), nil
	}
	address := instance.Address(spec)
	ub.AddSimple(ctx, "Launch Server",
		fmt.Sprintf("launched instance %s at %s", instance.ID, address))
	ub.SetOtherData(instance.ID)

	handler, err := e.registry.Get(types.KindServer)
	if err != nil {
		ub.AddError(ctx, "Register Server", err)
		return finish(ctx, ub), nil
	}
	config, err := json.Marshal(map[string]any{
		"address": address,
		"enabled": true,
	})
	if err != nil {
		ub.AddError(ctx, "Register Server", err)
		return finish(ctx, ub), nil
	}
	row, err := handler.Create(ctx, types.CreateResourceParams{
		Name:   req.Params.Name,
		Config: config,
	})
	if err != nil {
		ub.AddError(ctx, "Register Server", err)
		return finish(ctx, ub), nil
	}
	ub.AddSimple(ctx, "Register Server",
		fmt.Sprintf("created server %s (%s)", row.Name, row.ID))
	return finish(ctx, ub), nil
}
