package types

// ImageListItem is one entry of a periphery image listing. The ID is the
// engine image id, compared against running containers to detect updates.
type ImageListItem struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// NetworkListItem is one entry of a periphery network listing.
type NetworkListItem struct {
	Name   string `json:"name"`
	Driver string `json:"driver,omitempty"`
}

// ServerStatus is the monitor's cached view of one server, replaced
// atomically every sweep.
type ServerStatus struct {
	State   ServerState `json:"state"`
	Version string      `json:"version,omitempty"`
	// Err is the reason a NotOk server was classified unreachable.
	Err        string            `json:"err,omitempty"`
	Stats      *SystemStats      `json:"stats,omitempty"`
	Health     *ServerHealth     `json:"health,omitempty"`
	Containers []Container       `json:"containers,omitempty"`
	Images     []ImageListItem   `json:"images,omitempty"`
	Networks   []NetworkListItem `json:"networks,omitempty"`
	TS         int64             `json:"ts"`
}

// FindContainer returns the listed container with the given name, or nil.
func (s *ServerStatus) FindContainer(name string) *Container {
	for i := range s.Containers {
		if s.Containers[i].Name == name {
			return &s.Containers[i]
		}
	}
	return nil
}

// DeploymentStatus is the monitor's cached view of one deployment.
type DeploymentStatus struct {
	State DeploymentState `json:"state"`
	// Container is the matched container, nil when not deployed.
	Container *Container `json:"container,omitempty"`
	// UpdateAvailable means the registry holds the same image name under a
	// different image id than the running container.
	UpdateAvailable bool  `json:"update_available,omitempty"`
	TS              int64 `json:"ts"`
}

// StackServiceStatus is the cached view of one compose service.
type StackServiceStatus struct {
	ServiceName string `json:"service_name"`
	Image       string `json:"image,omitempty"`
	// Container is the matched service container, nil when down.
	Container       *Container `json:"container,omitempty"`
	UpdateAvailable bool       `json:"update_available,omitempty"`
}

// StackStatus is the monitor's cached view of one stack.
type StackStatus struct {
	State    StackState           `json:"state"`
	Services []StackServiceStatus `json:"services,omitempty"`
	TS       int64                `json:"ts"`
}

// AnyUpdateAvailable reports whether any service has an image update.
func (s *StackStatus) AnyUpdateAvailable() bool {
	for _, svc := range s.Services {
		if svc.UpdateAvailable {
			return true
		}
	}
	return false
}

// BuildCancel is broadcast when a CancelBuild lands, so an in-flight RunBuild
// for the same build can abort into its cleanup branch.
type BuildCancel struct {
	BuildID string
	// UpdateID is the cancel update, referenced from the cancelled build's
	// logs.
	UpdateID string
}
