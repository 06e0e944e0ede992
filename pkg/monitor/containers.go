package monitor

import (
	"context"
	"log/slog"

	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

func logError(msg, serverID string, err error) {
	slog.Error(msg, "server_id", serverID, "error", err)
}

// refreshDeployments updates the deployment status cache from the server's
// container listing and runs the per-deployment detectors.
func (m *Monitor) refreshDeployments(
	ctx context.Context,
	server resource.Server,
	deployments []resource.Deployment,
	status *types.ServerStatus,
) {
	for _, dep := range deployments {
		id := dep.ID.Hex()
		cfg := dep.Config

		container := status.FindContainer(dep.Name)
		updateAvailable := container != nil && container.UpdateAvailable &&
			(cfg.PollForUpdates || cfg.AutoUpdate)

		newStatus := types.DeploymentStatus{
			State:           types.DeploymentStateFromContainer(container),
			Container:       container,
			UpdateAvailable: updateAvailable,
			TS:              types.NowMS(),
		}
		old, seen := m.state.DeploymentStatus.Get(id)
		m.state.DeploymentStatus.Update(id, newStatus)

		target := dep.Target(types.KindDeployment)
		data := types.AlertData{
			ID:         id,
			Name:       dep.Name,
			ServerID:   server.ID.Hex(),
			ServerName: server.Name,
		}

		if seen && old.State != newStatus.State && cfg.SendAlerts {
			stateData := data
			stateData.From = string(old.State)
			stateData.To = string(newStatus.State)
			m.alerts.OpenResolved(ctx, types.Alert{
				Level:    types.SeverityWarning,
				Target:   target,
				DataType: types.AlertContainerStateChange,
				Data:     stateData,
			})
		}

		imgKey := "img:" + id
		if container != nil {
			data.Image = container.Image
		}
		switch {
		case updateAvailable && cfg.AutoUpdate:
			m.autoUpdateDeployment(ctx, dep, newStatus, data)
		case updateAvailable:
			if cfg.SendAlerts && m.state.SentAlerts.Insert(imgKey) {
				m.alerts.Open(ctx, types.Alert{
					Level:    types.SeverityOk,
					Target:   target,
					DataType: types.AlertDeploymentImageUpdateAvailable,
					Data:     data,
				})
			}
		default:
			if m.state.SentAlerts.Contains(imgKey) {
				m.state.SentAlerts.Remove(imgKey)
				m.alerts.Resolve(ctx, target, types.AlertDeploymentImageUpdateAvailable, data)
			}
		}
	}
}

// autoUpdateDeployment redeploys a running deployment whose image has an
// update, as the auto redeploy system user. Runs detached so a slow pull does
// not stall the sweep.
func (m *Monitor) autoUpdateDeployment(ctx context.Context, dep resource.Deployment, status types.DeploymentStatus, data types.AlertData) {
	id := dep.ID.Hex()
	if status.State != types.DeploymentRunning || m.state.Busy(types.KindDeployment, id) {
		return
	}
	// The sweep's group context is cancelled the moment the sweep returns;
	// the detached deploy runs on its own lifetime.
	ctx = context.WithoutCancel(ctx)
	go func() {
		update, err := m.deployer.ExecuteAsSystem(ctx, types.SystemUserAutoRedeploy, types.ExecuteRequest{
			Type:   types.ExecDeploy,
			Params: types.ExecuteParams{Deployment: id},
		})
		if err != nil {
			slog.Error("Auto update deploy failed", "deployment", dep.Name, "error", err)
			return
		}
		if update.Success {
			m.alerts.OpenResolved(ctx, types.Alert{
				Level:    types.SeverityOk,
				Target:   dep.Target(types.KindDeployment),
				DataType: types.AlertDeploymentAutoUpdated,
				Data:     data,
			})
		}
	}()
}

// stackProject returns the compose project name a stack's containers carry.
func stackProject(stack resource.Stack) string {
	if stack.Config.ProjectName != "" {
		return stack.Config.ProjectName
	}
	return stack.Name
}

// stackServices groups the server's containers into the stack's services by
// the compose labels.
func stackServices(stack resource.Stack, containers []types.Container) []types.StackServiceStatus {
	project := stackProject(stack)
	pollsUpdates := stack.Config.PollForUpdates || stack.Config.AutoUpdate

	var services []types.StackServiceStatus
	for i := range containers {
		c := containers[i]
		if c.Labels[types.ComposeProjectLabel] != project {
			continue
		}
		name := c.Labels[types.ComposeServiceLabel]
		if name == "" {
			continue
		}
		services = append(services, types.StackServiceStatus{
			ServiceName:     name,
			Image:           c.Image,
			Container:       &containers[i],
			UpdateAvailable: c.UpdateAvailable && pollsUpdates,
		})
	}
	return services
}

// stackState derives the aggregate state, excluding ignored services.
func stackState(stack resource.Stack, services []types.StackServiceStatus) types.StackState {
	ignored := make(map[string]bool, len(stack.Config.IgnoreServices))
	for _, s := range stack.Config.IgnoreServices {
		ignored[s] = true
	}
	var counted []types.Container
	for _, svc := range services {
		if ignored[svc.ServiceName] || svc.Container == nil {
			continue
		}
		counted = append(counted, *svc.Container)
	}
	return types.StackStateFromContainers(counted)
}

// refreshStacks updates the stack status cache and runs the per-stack
// detectors.
func (m *Monitor) refreshStacks(
	ctx context.Context,
	server resource.Server,
	stacks []resource.Stack,
	status *types.ServerStatus,
) {
	for _, stack := range stacks {
		id := stack.ID.Hex()
		cfg := stack.Config

		services := stackServices(stack, status.Containers)
		newStatus := types.StackStatus{
			State:    stackState(stack, services),
			Services: services,
			TS:       types.NowMS(),
		}
		old, seen := m.state.StackStatus.Get(id)
		m.state.StackStatus.Update(id, newStatus)

		target := stack.Target(types.KindStack)
		data := types.AlertData{
			ID:         id,
			Name:       stack.Name,
			ServerID:   server.ID.Hex(),
			ServerName: server.Name,
		}

		if seen && old.State != newStatus.State && cfg.SendAlerts {
			stateData := data
			stateData.From = string(old.State)
			stateData.To = string(newStatus.State)
			m.alerts.OpenResolved(ctx, types.Alert{
				Level:    types.SeverityWarning,
				Target:   target,
				DataType: types.AlertStackStateChange,
				Data:     stateData,
			})
		}

		var updated []string
		for _, svc := range services {
			key := "img:" + id + ":" + svc.ServiceName
			svcData := data
			svcData.Image = svc.Image
			if svc.UpdateAvailable {
				updated = append(updated, svc.ServiceName)
				if !cfg.AutoUpdate && cfg.SendAlerts && m.state.SentAlerts.Insert(key) {
					m.alerts.Open(ctx, types.Alert{
						Level:    types.SeverityOk,
						Target:   target,
						DataType: types.AlertStackImageUpdateAvailable,
						Data:     svcData,
					})
				}
			} else if m.state.SentAlerts.Contains(key) {
				m.state.SentAlerts.Remove(key)
				m.alerts.Resolve(ctx, target, types.AlertStackImageUpdateAvailable, svcData)
			}
		}

		if len(updated) > 0 && cfg.AutoUpdate && !m.state.Busy(types.KindStack, id) {
			m.autoUpdateStack(ctx, stack, updated, data)
		}
	}
}

// autoUpdateStack redeploys the updated services (or the whole stack) as the
// auto redeploy system user.
func (m *Monitor) autoUpdateStack(ctx context.Context, stack resource.Stack, updated []string, data types.AlertData) {
	id := stack.ID.Hex()
	services := updated
	if stack.Config.AutoUpdateAllServices {
		services = nil
	}
	// Same lifetime rule as autoUpdateDeployment: the sweep's context dies
	// with the sweep.
	ctx = context.WithoutCancel(ctx)
	go func() {
		update, err := m.deployer.ExecuteAsSystem(ctx, types.SystemUserAutoRedeploy, types.ExecuteRequest{
			Type: types.ExecDeployStack,
			Params: types.ExecuteParams{
				Stack:    id,
				Services: services,
			},
		})
		if err != nil {
			slog.Error("Auto update stack deploy failed", "stack", stack.Name, "error", err)
			return
		}
		if update.Success {
			m.alerts.OpenResolved(ctx, types.Alert{
				Level:    types.SeverityOk,
				Target:   stack.Target(types.KindStack),
				DataType: types.AlertStackAutoUpdated,
				Data:     data,
			})
		}
	}()
}
