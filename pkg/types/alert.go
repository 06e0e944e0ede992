package types

import "go.mongodb.org/mongo-driver/bson/primitive"

// SeverityLevel classifies alerts. Ok is used when a condition resolves.
type SeverityLevel string

const (
	SeverityOk       SeverityLevel = "Ok"
	SeverityWarning  SeverityLevel = "Warning"
	SeverityCritical SeverityLevel = "Critical"
)

// AlertDataType discriminates AlertData payloads.
type AlertDataType string

const (
	AlertServerUnreachable  AlertDataType = "ServerUnreachable"
	AlertServerCpu          AlertDataType = "ServerCpu"
	AlertServerMem          AlertDataType = "ServerMem"
	AlertServerDisk         AlertDataType = "ServerDisk"
	AlertContainerStateChange AlertDataType = "ContainerStateChange"
	AlertDeploymentImageUpdateAvailable AlertDataType = "DeploymentImageUpdateAvailable"
	AlertDeploymentAutoUpdated          AlertDataType = "DeploymentAutoUpdated"
	AlertStackStateChange               AlertDataType = "StackStateChange"
	AlertStackImageUpdateAvailable      AlertDataType = "StackImageUpdateAvailable"
	AlertStackAutoUpdated               AlertDataType = "StackAutoUpdated"
	AlertAwsBuilderTerminationFailed    AlertDataType = "AwsBuilderTerminationFailed"
	AlertHetznerBuilderTerminationFailed AlertDataType = "HetznerBuilderTerminationFailed"
	AlertBuildFailed                    AlertDataType = "BuildFailed"
	AlertScheduleRun                    AlertDataType = "ScheduleRun"
	AlertTest                           AlertDataType = "Test"
	AlertNone                           AlertDataType = "None"
)

// AlertData carries the variant-specific payload of an alert. It is a
// flattened union: only the fields relevant to the Type are populated, and
// empty fields are omitted from both wire and persisted forms.
type AlertData struct {
	// Resource identity, present on all resource-scoped variants.
	ID   string `json:"id,omitempty" bson:"id,omitempty"`
	Name string `json:"name,omitempty" bson:"name,omitempty"`

	// ServerID/ServerName locate the server for container and stack
	// variants where the alerted resource is not itself a server.
	ServerID   string `json:"server_id,omitempty" bson:"server_id,omitempty"`
	ServerName string `json:"server_name,omitempty" bson:"server_name,omitempty"`

	// Region is set for unreachable-server and builder variants.
	Region string `json:"region,omitempty" bson:"region,omitempty"`

	// Percentage is the observed usage for Cpu/Mem/Disk variants.
	Percentage float64 `json:"percentage,omitempty" bson:"percentage,omitempty"`
	// TotalGB/UsedGB detail Mem and Disk variants.
	TotalGB float64 `json:"total_gb,omitempty" bson:"total_gb,omitempty"`
	UsedGB  float64 `json:"used_gb,omitempty" bson:"used_gb,omitempty"`
	// Path is the mount the Disk variant observed.
	Path string `json:"path,omitempty" bson:"path,omitempty"`

	// From/To describe state transitions.
	From string `json:"from,omitempty" bson:"from,omitempty"`
	To   string `json:"to,omitempty" bson:"to,omitempty"`

	// Image is the image with an update available, or the one deployed.
	Image string `json:"image,omitempty" bson:"image,omitempty"`

	// InstanceID identifies the cloud instance that failed to terminate.
	InstanceID string `json:"instance_id,omitempty" bson:"instance_id,omitempty"`

	// Version is set by BuildFailed to the version that failed.
	Version *Version `json:"version,omitempty" bson:"version,omitempty"`

	// Err carries failure detail where a variant includes one.
	Err string `json:"err,omitempty" bson:"err,omitempty"`
}

// Alert records a detected condition. Open alerts represent ongoing
// conditions and are resolved (with ResolvedTS set) when they clear.
type Alert struct {
	ID primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TS int64              `json:"ts" bson:"ts"`
	// Resolved conditions stay queryable for history.
	Resolved   bool           `json:"resolved" bson:"resolved"`
	ResolvedTS int64          `json:"resolved_ts,omitempty" bson:"resolved_ts,omitempty"`
	Level      SeverityLevel  `json:"level" bson:"level"`
	Target     ResourceTarget `json:"target" bson:"target"`
	DataType   AlertDataType  `json:"data_type" bson:"data_type"`
	Data       AlertData      `json:"data" bson:"data"`
}
