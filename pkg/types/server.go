package types

// ServerConfig declares how the core reaches and watches one periphery agent.
type ServerConfig struct {
	// Address is the root URL of the periphery agent, e.g.
	// "https://10.0.0.2:8120".
	Address string `json:"address" bson:"address"`
	Region  string `json:"region,omitempty" bson:"region,omitempty"`
	// Enabled gates monitoring and all operations on the server. Disabled
	// servers are skipped by the poll loop and refuse executions.
	Enabled bool `json:"enabled" bson:"enabled"`
	// TimeoutSeconds bounds each RPC to the agent.
	TimeoutSeconds int64 `json:"timeout_seconds,omitempty" bson:"timeout_seconds,omitempty"`
	// Passkey overrides the core-wide periphery passkey for this agent.
	Passkey string `json:"passkey,omitempty" bson:"passkey,omitempty"`

	// IgnoreMounts lists disk mount paths excluded from disk usage and
	// disk alerts.
	IgnoreMounts []string `json:"ignore_mounts,omitempty" bson:"ignore_mounts,omitempty"`

	// Alert toggles, one per detector.
	SendUnreachableAlerts bool `json:"send_unreachable_alerts" bson:"send_unreachable_alerts"`
	SendCpuAlerts         bool `json:"send_cpu_alerts" bson:"send_cpu_alerts"`
	SendMemAlerts         bool `json:"send_mem_alerts" bson:"send_mem_alerts"`
	SendDiskAlerts        bool `json:"send_disk_alerts" bson:"send_disk_alerts"`

	// Usage thresholds, in percent. Warning fires at or above the warning
	// value, Critical at or above the critical value.
	CpuWarning   float64 `json:"cpu_warning,omitempty" bson:"cpu_warning,omitempty"`
	CpuCritical  float64 `json:"cpu_critical,omitempty" bson:"cpu_critical,omitempty"`
	MemWarning   float64 `json:"mem_warning,omitempty" bson:"mem_warning,omitempty"`
	MemCritical  float64 `json:"mem_critical,omitempty" bson:"mem_critical,omitempty"`
	DiskWarning  float64 `json:"disk_warning,omitempty" bson:"disk_warning,omitempty"`
	DiskCritical float64 `json:"disk_critical,omitempty" bson:"disk_critical,omitempty"`

	// AutoPrune runs a daily image prune on the server.
	AutoPrune bool     `json:"auto_prune,omitempty" bson:"auto_prune,omitempty"`
	Links     []string `json:"links,omitempty" bson:"links,omitempty"`
}

// NewServerConfig returns the defaults applied to created servers before the
// caller's partial config is merged over them.
func NewServerConfig() ServerConfig {
	return ServerConfig{
		Enabled:               true,
		TimeoutSeconds:        10,
		SendUnreachableAlerts: true,
		SendCpuAlerts:         true,
		SendMemAlerts:         true,
		SendDiskAlerts:        true,
		CpuWarning:            90,
		CpuCritical:           99,
		MemWarning:            75,
		MemCritical:           95,
		DiskWarning:           75,
		DiskCritical:          95,
	}
}

// ServerState is the health classification kept by the monitor.
type ServerState string

const (
	ServerOk       ServerState = "Ok"
	ServerNotOk    ServerState = "NotOk"
	ServerDisabled ServerState = "Disabled"
)

// ServerListItemInfo is the derived info attached to server list items.
type ServerListItemInfo struct {
	State   ServerState `json:"state"`
	Region  string      `json:"region,omitempty"`
	Address string      `json:"address"`
	Version string      `json:"version,omitempty"`
}

// ServerHealth is the threshold classification of the latest stats sample.
type ServerHealth struct {
	Cpu   SeverityLevel            `json:"cpu"`
	Mem   SeverityLevel            `json:"mem"`
	Disks map[string]SeverityLevel `json:"disks"`
}
