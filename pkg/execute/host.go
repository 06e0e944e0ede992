package execute

import (
	"context"
	"fmt"

	"github.com/komodo-sh/komodo/pkg/builder"
	"github.com/komodo-sh/komodo/pkg/periphery"
	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/update"
)

// buildHost is an acquired build host. Server and url builders point at a
// persistent agent; cloud builders carry the ephemeral instance that must be
// terminated when the run ends.
type buildHost struct {
	client *periphery.Client

	cloud    bool
	provider builder.Provider
	prov     builder.Provisioner
	instance builder.Instance
	spec     builder.CloudSpec
}

// acquireBuildHost resolves a builder resource onto a reachable periphery
// client, provisioning a cloud instance when the builder is cloud-backed.
func (e *Executor) acquireBuildHost(ctx context.Context, builderSelector, name string, ub *update.Builder) (*buildHost, error) {
	b, err := e.store.Builder(ctx, builderSelector)
	if err != nil {
		return nil, err
	}

	switch b.Config.Type {
	case types.BuilderUrl:
		if b.Config.Params.Address == "" {
			return nil, types.NewValidationError("builder", "url builder has no address")
		}
		return &buildHost{client: e.state.Periphery.ForAddress(b.Config.Params.Address)}, nil

	case types.BuilderServer:
		_, client, err := e.serverClient(ctx, b.Config.Params.ServerID)
		if err != nil {
			return nil, err
		}
		return &buildHost{client: client}, nil

	case types.BuilderAws, types.BuilderHetzner:
		provider := builder.ProviderAws
		if b.Config.Type == types.BuilderHetzner {
			provider = builder.ProviderHetzner
		}
		prov, err := e.builders.For(provider)
		if err != nil {
			return nil, err
		}
		spec := builder.SpecFromBuilder(b.Config.Params)
		instanceName := "komodo-builder-" + name

		ub.AddSimple(ctx, "Launch Builder",
			fmt.Sprintf("launching %s instance %s", provider, instanceName))
		instance, err := prov.Launch(ctx, instanceName, spec)
		if err != nil {
			return nil, err
		}
		ub.AddSimple(ctx, "Launch Builder",
			fmt.Sprintf("launched instance %s at %s", instance.ID, instance.IP))

		host := &buildHost{
			client:   e.state.Periphery.ForAddress(instance.Address(spec)),
			cloud:    true,
			provider: provider,
			prov:     prov,
			instance: instance,
			spec:     spec,
		}
		if err := builder.WaitReady(ctx, host.client); err != nil {
			e.terminateBuildHost(ctx, host, b.Target(types.KindBuilder), ub)
			return nil, err
		}
		return host, nil

	default:
		return nil, types.NewValidationError("builder",
			fmt.Sprintf("unknown builder type %q", b.Config.Type))
	}
}

// releaseBuildHost cleans up after a run: persistent hosts get the repo
// clone removed, cloud hosts get terminated.
func (e *Executor) releaseBuildHost(ctx context.Context, host *buildHost, repoName string, target types.ResourceTarget, ub *update.Builder) {
	if !host.cloud {
		log, err := host.client.DeleteRepo(ctx, repoName)
		if err != nil {
			ub.AddError(ctx, "Cleanup Repo", err)
			return
		}
		ub.AddLog(ctx, log)
		return
	}
	e.terminateBuildHost(ctx, host, target, ub)
}

// terminateBuildHost tears down a cloud instance, alerting when termination
// keeps failing: a leaked instance costs money until someone acts.
func (e *Executor) terminateBuildHost(ctx context.Context, host *buildHost, target types.ResourceTarget, ub *update.Builder) {
	err := builder.TerminateWithRetry(ctx, host.prov, host.instance.ID, host.spec)
	if err == nil {
		ub.AddSimple(ctx, "Terminate Builder",
			fmt.Sprintf("terminated instance %s", host.instance.ID))
		return
	}
	ub.AddError(ctx, "Terminate Builder", err)

	dataType := types.AlertAwsBuilderTerminationFailed
	if host.provider == builder.ProviderHetzner {
		dataType = types.AlertHetznerBuilderTerminationFailed
	}
	e.alerts.Open(ctx, types.Alert{
		TS:       types.NowMS(),
		Level:    types.SeverityCritical,
		Target:   target,
		DataType: dataType,
		Data: types.AlertData{
			ID:         target.ID,
			InstanceID: host.instance.ID,
			Region:     host.spec.Region,
			Err:        err.Error(),
		},
	})
}
