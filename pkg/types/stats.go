package types

// SystemInformation is the static description of a server's host, refreshed
// lazily by the monitor.
type SystemInformation struct {
	Name     string `json:"name,omitempty"`
	OS       string `json:"os,omitempty"`
	Kernel   string `json:"kernel,omitempty"`
	CoreCount int   `json:"core_count,omitempty"`
	HostName string `json:"host_name,omitempty"`
	CpuBrand string `json:"cpu_brand,omitempty"`
}

// SingleDiskUsage is usage of one mounted filesystem.
type SingleDiskUsage struct {
	Mount   string  `json:"mount" bson:"mount"`
	UsedGB  float64 `json:"used_gb" bson:"used_gb"`
	TotalGB float64 `json:"total_gb" bson:"total_gb"`
}

// SystemStats is one sample of a server's resource usage.
type SystemStats struct {
	CpuPerc    float64           `json:"cpu_perc" bson:"cpu_perc"`
	MemUsedGB  float64           `json:"mem_used_gb" bson:"mem_used_gb"`
	MemTotalGB float64           `json:"mem_total_gb" bson:"mem_total_gb"`
	Disks      []SingleDiskUsage `json:"disks" bson:"disks"`
	// NetworkIngressBytes/NetworkEgressBytes are since the previous sample.
	NetworkIngressBytes float64 `json:"network_ingress_bytes,omitempty" bson:"network_ingress_bytes,omitempty"`
	NetworkEgressBytes  float64 `json:"network_egress_bytes,omitempty" bson:"network_egress_bytes,omitempty"`
	// PollingRate is the agent's sampling interval, informational only.
	PollingRate string `json:"polling_rate,omitempty" bson:"polling_rate,omitempty"`
	RefreshTS   int64  `json:"refresh_ts,omitempty" bson:"refresh_ts,omitempty"`
}

// MemPerc returns memory usage as a percentage, 0 when the total is unknown.
func (s *SystemStats) MemPerc() float64 {
	if s.MemTotalGB <= 0 {
		return 0
	}
	return 100 * s.MemUsedGB / s.MemTotalGB
}

// DiskPerc returns aggregate disk usage as a percentage across mounts not in
// ignoreMounts, 0 when nothing is mounted.
func (s *SystemStats) DiskPerc(ignoreMounts []string) float64 {
	ignored := make(map[string]bool, len(ignoreMounts))
	for _, m := range ignoreMounts {
		ignored[m] = true
	}
	var used, total float64
	for _, d := range s.Disks {
		if ignored[d.Mount] {
			continue
		}
		used += d.UsedGB
		total += d.TotalGB
	}
	if total <= 0 {
		return 0
	}
	return 100 * used / total
}

// SystemProcess is one process of a server's process listing.
type SystemProcess struct {
	Pid     uint32  `json:"pid"`
	Name    string  `json:"name"`
	Exe     string  `json:"exe,omitempty"`
	CpuPerc float64 `json:"cpu_perc"`
	MemMB   float64 `json:"mem_mb"`
}

// StatsRecord is one persisted historical sample, written once per minute
// per reachable server.
type StatsRecord struct {
	SID   string      `json:"sid" bson:"sid"`
	TS    int64       `json:"ts" bson:"ts"`
	Stats SystemStats `json:"stats" bson:"stats"`
}
