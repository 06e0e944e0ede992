// Package monitor runs the periodic poll of every enabled server, maintains
// the status caches, detects alertable transitions, and triggers automatic
// redeploys when a newer image is available.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/komodo-sh/komodo/pkg/alert"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/state"
	"github.com/komodo-sh/komodo/pkg/types"
)

// pollConcurrency bounds how many servers are polled at once.
const pollConcurrency = 16

// statsStoreInterval is how often a historical stats sample is persisted per
// server, independent of the sweep interval.
const statsStoreInterval = time.Minute

// autoPruneInterval is how often AutoPrune servers get their image prune.
const autoPruneInterval = 24 * time.Hour

// Deployer triggers redeploys for the auto-update path. Implemented by the
// execution engine; an interface here keeps the monitor testable and breaks
// the package cycle.
type Deployer interface {
	// ExecuteAsSystem runs the request as the named system user.
	ExecuteAsSystem(ctx context.Context, username string, req types.ExecuteRequest) (types.Update, error)
}

// Monitor owns the sweep loop.
type Monitor struct {
	state    *state.State
	store    *resource.Store
	alerts   *alert.Manager
	deployer Deployer

	cancel context.CancelFunc
	done   chan struct{}

	mu sync.Mutex
	// lastHealth keeps the previous threshold classification per server, so
	// threshold alerts fire on transitions only.
	lastHealth map[string]types.ServerHealth
	// lastStored is the ms timestamp of the last persisted stats sample.
	lastStored map[string]int64
	// lastPruned is the ms timestamp of the last auto prune per server.
	lastPruned map[string]int64
}

func New(st *state.State, store *resource.Store, alerts *alert.Manager, deployer Deployer) *Monitor {
	return &Monitor{
		state:      st,
		store:      store,
		alerts:     alerts,
		deployer:   deployer,
		lastHealth: make(map[string]types.ServerHealth),
		lastStored: make(map[string]int64),
		lastPruned: make(map[string]int64),
	}
}

// Start launches the sweep loop at the configured interval. The first sweep
// runs immediately so caches are warm before the API serves status reads.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	interval := m.state.Config.Monitoring.Interval()
	slog.Info("Starting monitor", "interval", interval)

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	slog.Info("Monitor stopped")
}

// sweep polls every server once. Deployments and stacks are loaded up front
// and grouped by server, so each server's poll touches the database no
// further.
func (m *Monitor) sweep(ctx context.Context) {
	servers, err := m.store.Servers(ctx, resource.ListQuery{})
	if err != nil {
		slog.Error("Monitor sweep failed to list servers", "error", err)
		return
	}
	deployments, err := m.store.Deployments(ctx, resource.ListQuery{})
	if err != nil {
		slog.Error("Monitor sweep failed to list deployments", "error", err)
		return
	}
	stacks, err := m.store.Stacks(ctx, resource.ListQuery{})
	if err != nil {
		slog.Error("Monitor sweep failed to list stacks", "error", err)
		return
	}

	deploymentsByServer := make(map[string][]resource.Deployment)
	for _, d := range deployments {
		deploymentsByServer[d.Config.ServerID] = append(deploymentsByServer[d.Config.ServerID], d)
	}
	stacksByServer := make(map[string][]resource.Stack)
	for _, s := range stacks {
		stacksByServer[s.Config.ServerID] = append(stacksByServer[s.Config.ServerID], s)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pollConcurrency)
	for _, server := range servers {
		server := server
		id := server.ID.Hex()
		g.Go(func() error {
			m.pollServer(gctx, server, deploymentsByServer[id], stacksByServer[id])
			return nil
		})
	}
	g.Wait()
}

// pollServer refreshes one server's status cache and runs the detectors.
func (m *Monitor) pollServer(
	ctx context.Context,
	server resource.Server,
	deployments []resource.Deployment,
	stacks []resource.Stack,
) {
	id := server.ID.Hex()

	if !server.Config.Enabled {
		m.state.ServerStatus.Update(id, types.ServerStatus{
			State: types.ServerDisabled,
			TS:    types.NowMS(),
		})
		return
	}

	client := m.state.Periphery.ForServer(server.Config)
	status := types.ServerStatus{State: types.ServerOk, TS: types.NowMS()}

	version, err := client.GetVersion(ctx)
	if err == nil {
		status.Version = version
		var stats types.SystemStats
		stats, err = client.GetSystemStats(ctx)
		if err == nil {
			status.Stats = &stats
			health := computeHealth(server.Config, &stats)
			status.Health = &health
		}
	}
	if err == nil {
		status.Containers, err = client.GetContainerList(ctx)
	}
	if err == nil {
		status.Images, err = client.GetImageList(ctx)
	}
	if err == nil {
		status.Networks, err = client.GetNetworkList(ctx)
	}
	if err != nil {
		status = types.ServerStatus{
			State: types.ServerNotOk,
			Err:   err.Error(),
			TS:    types.NowMS(),
		}
	}

	prev, _ := m.state.ServerStatus.Get(id)
	m.state.ServerStatus.Update(id, status)

	m.detectReachability(ctx, server, prev, status)
	if status.State == types.ServerOk {
		m.detectThresholds(ctx, server, status)
		m.storeStats(ctx, id, status)
		m.autoPrune(ctx, server, client)
		m.refreshDeployments(ctx, server, deployments, &status)
		m.refreshStacks(ctx, server, stacks, &status)
	}
}

// detectReachability opens and resolves the unreachable alert on state
// transitions.
func (m *Monitor) detectReachability(ctx context.Context, server resource.Server, prev, curr types.ServerStatus) {
	if !server.Config.SendUnreachableAlerts {
		return
	}
	target := server.Target(types.KindServer)
	data := types.AlertData{
		ID:     server.ID.Hex(),
		Name:   server.Name,
		Region: server.Config.Region,
	}
	key := "unreachable:" + server.ID.Hex()

	switch curr.State {
	case types.ServerNotOk:
		if m.state.SentAlerts.Insert(key) {
			data.Err = curr.Err
			m.alerts.Open(ctx, types.Alert{
				Level:    types.SeverityCritical,
				Target:   target,
				DataType: types.AlertServerUnreachable,
				Data:     data,
			})
		}
	case types.ServerOk:
		m.state.SentAlerts.Remove(key)
		// Resolve on the first Ok observation too, so an alert left open by
		// a core restart still clears.
		if prev.State != types.ServerOk {
			m.alerts.Resolve(ctx, target, types.AlertServerUnreachable, data)
		}
	}
}
