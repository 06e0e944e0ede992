package monitor

import (
	"context"

	"github.com/komodo-sh/komodo/pkg/periphery"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

// classify maps a usage percentage onto the severity scale.
func classify(value, warning, critical float64) types.SeverityLevel {
	switch {
	case critical > 0 && value >= critical:
		return types.SeverityCritical
	case warning > 0 && value >= warning:
		return types.SeverityWarning
	default:
		return types.SeverityOk
	}
}

func severityRank(l types.SeverityLevel) int {
	switch l {
	case types.SeverityWarning:
		return 1
	case types.SeverityCritical:
		return 2
	default:
		return 0
	}
}

// computeHealth classifies the latest stats sample against the server's
// thresholds. Ignored mounts get no disk entry.
func computeHealth(cfg types.ServerConfig, stats *types.SystemStats) types.ServerHealth {
	health := types.ServerHealth{
		Cpu:   classify(stats.CpuPerc, cfg.CpuWarning, cfg.CpuCritical),
		Mem:   classify(stats.MemPerc(), cfg.MemWarning, cfg.MemCritical),
		Disks: make(map[string]types.SeverityLevel),
	}
	ignored := make(map[string]bool, len(cfg.IgnoreMounts))
	for _, m := range cfg.IgnoreMounts {
		ignored[m] = true
	}
	for _, disk := range stats.Disks {
		if ignored[disk.Mount] {
			continue
		}
		var perc float64
		if disk.TotalGB > 0 {
			perc = 100 * disk.UsedGB / disk.TotalGB
		}
		health.Disks[disk.Mount] = classify(perc, cfg.DiskWarning, cfg.DiskCritical)
	}
	return health
}

// detectThresholds fires cpu/mem/disk alerts on upward level transitions and
// resolves them when the level returns to Ok.
func (m *Monitor) detectThresholds(ctx context.Context, server resource.Server, status types.ServerStatus) {
	if status.Stats == nil || status.Health == nil {
		return
	}
	id := server.ID.Hex()
	cfg := server.Config
	stats := status.Stats

	m.mu.Lock()
	prev := m.lastHealth[id]
	m.lastHealth[id] = *status.Health
	m.mu.Unlock()

	target := server.Target(types.KindServer)
	base := types.AlertData{ID: id, Name: server.Name, Region: cfg.Region}

	if cfg.SendCpuAlerts {
		data := base
		data.Percentage = stats.CpuPerc
		m.thresholdTransition(ctx, target, types.AlertServerCpu, prev.Cpu, status.Health.Cpu, data)
	}
	if cfg.SendMemAlerts {
		data := base
		data.Percentage = stats.MemPerc()
		data.UsedGB = stats.MemUsedGB
		data.TotalGB = stats.MemTotalGB
		m.thresholdTransition(ctx, target, types.AlertServerMem, prev.Mem, status.Health.Mem, data)
	}
	if cfg.SendDiskAlerts {
		for _, disk := range stats.Disks {
			level, tracked := status.Health.Disks[disk.Mount]
			if !tracked {
				continue
			}
			data := base
			data.Path = disk.Mount
			data.UsedGB = disk.UsedGB
			data.TotalGB = disk.TotalGB
			if disk.TotalGB > 0 {
				data.Percentage = 100 * disk.UsedGB / disk.TotalGB
			}
			m.thresholdTransition(ctx, target, types.AlertServerDisk, prev.Disks[disk.Mount], level, data)
		}
	}
}

// thresholdTransition opens an alert when the level rises and resolves when
// it falls back to Ok. Steady states are silent.
func (m *Monitor) thresholdTransition(
	ctx context.Context,
	target types.ResourceTarget,
	dataType types.AlertDataType,
	prev, curr types.SeverityLevel,
	data types.AlertData,
) {
	prevRank, currRank := severityRank(prev), severityRank(curr)
	switch {
	case currRank > prevRank && currRank > 0:
		m.alerts.Open(ctx, types.Alert{
			Level:    curr,
			Target:   target,
			DataType: dataType,
			Data:     data,
		})
	case currRank == 0 && prevRank > 0:
		m.alerts.Resolve(ctx, target, dataType, data)
	}
}

// storeStats persists one historical sample per store interval.
func (m *Monitor) storeStats(ctx context.Context, id string, status types.ServerStatus) {
	if !m.state.Config.Monitoring.StatsStoringEnabled || status.Stats == nil {
		return
	}
	now := types.NowMS()
	m.mu.Lock()
	last := m.lastStored[id]
	if now-last < statsStoreInterval.Milliseconds() {
		m.mu.Unlock()
		return
	}
	m.lastStored[id] = now
	m.mu.Unlock()

	record := types.StatsRecord{SID: id, TS: now, Stats: *status.Stats}
	if _, err := m.state.DB.Collections.Stats.InsertOne(ctx, record); err != nil {
		logError("Failed to store stats record", id, err)
	}
}

// autoPrune runs the daily image prune on servers that opted in.
func (m *Monitor) autoPrune(ctx context.Context, server resource.Server, client *periphery.Client) {
	if !server.Config.AutoPrune {
		return
	}
	id := server.ID.Hex()
	now := types.NowMS()

	m.mu.Lock()
	last := m.lastPruned[id]
	if now-last < autoPruneInterval.Milliseconds() {
		m.mu.Unlock()
		return
	}
	m.lastPruned[id] = now
	m.mu.Unlock()

	if _, err := client.PruneImages(ctx); err != nil {
		logError("Auto prune failed", id, err)
	}
}
