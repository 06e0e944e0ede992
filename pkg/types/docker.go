package types

// ContainerState mirrors the docker engine's container states.
type ContainerState string

const (
	ContainerRunning    ContainerState = "running"
	ContainerCreated    ContainerState = "created"
	ContainerRestarting ContainerState = "restarting"
	ContainerPaused     ContainerState = "paused"
	ContainerExited     ContainerState = "exited"
	ContainerRemoving   ContainerState = "removing"
	ContainerDead       ContainerState = "dead"
	ContainerUnknown    ContainerState = "unknown"
)

// Container is one entry of a periphery container listing.
type Container struct {
	Name  string         `json:"name"`
	ID    string         `json:"id,omitempty"`
	Image string         `json:"image,omitempty"`
	State ContainerState `json:"state"`
	// Status is the engine's human status line, e.g. "Up 3 days".
	Status string `json:"status,omitempty"`
	// Networks the container is attached to.
	Networks []string `json:"networks,omitempty"`
	// Labels as reported by the engine. Compose project membership is
	// read from the com.docker.compose.project label.
	Labels map[string]string `json:"labels,omitempty"`
	// UpdateAvailable is set by the image-update check, not by the engine.
	UpdateAvailable bool `json:"update_available,omitempty"`
}

// ComposeProjectLabel is the engine label carrying compose project
// membership, used to group containers into stack services.
const ComposeProjectLabel = "com.docker.compose.project"

// ComposeServiceLabel carries the service name within a compose project.
const ComposeServiceLabel = "com.docker.compose.service"

// DeploymentState classifies a deployment by its container's state.
type DeploymentState string

const (
	DeploymentRunning     DeploymentState = "running"
	DeploymentExited      DeploymentState = "exited"
	DeploymentPaused      DeploymentState = "paused"
	DeploymentRestarting  DeploymentState = "restarting"
	DeploymentDead        DeploymentState = "dead"
	DeploymentCreated     DeploymentState = "created"
	DeploymentRemoving    DeploymentState = "removing"
	DeploymentNotDeployed DeploymentState = "not_deployed"
	DeploymentUnknown     DeploymentState = "unknown"
)

// DeploymentStateFromContainer maps a container state onto the deployment
// classification; a nil container means not deployed.
func DeploymentStateFromContainer(c *Container) DeploymentState {
	if c == nil {
		return DeploymentNotDeployed
	}
	switch c.State {
	case ContainerRunning:
		return DeploymentRunning
	case ContainerExited:
		return DeploymentExited
	case ContainerPaused:
		return DeploymentPaused
	case ContainerRestarting:
		return DeploymentRestarting
	case ContainerDead:
		return DeploymentDead
	case ContainerCreated:
		return DeploymentCreated
	case ContainerRemoving:
		return DeploymentRemoving
	default:
		return DeploymentUnknown
	}
}

// StackState classifies a stack by the aggregate of its service containers.
type StackState string

const (
	StackRunning   StackState = "running"
	StackPaused    StackState = "paused"
	StackStopped   StackState = "stopped"
	StackRestarting StackState = "restarting"
	StackDown      StackState = "down"
	StackUnhealthy StackState = "unhealthy"
	StackUnknown   StackState = "unknown"
)

// StackStateFromContainers derives the aggregate state: uniform container
// states map to the matching stack state, no containers means down, and any
// mixture is unhealthy.
func StackStateFromContainers(containers []Container) StackState {
	if len(containers) == 0 {
		return StackDown
	}
	all := func(s ContainerState) bool {
		for _, c := range containers {
			if c.State != s {
				return false
			}
		}
		return true
	}
	switch {
	case all(ContainerRunning):
		return StackRunning
	case all(ContainerPaused):
		return StackPaused
	case all(ContainerExited):
		return StackStopped
	case all(ContainerRestarting):
		return StackRestarting
	default:
		return StackUnhealthy
	}
}

// TerminationSignal is a unix signal name accepted by stop operations.
type TerminationSignal string

const (
	SigTerm TerminationSignal = "SigTerm"
	SigInt  TerminationSignal = "SigInt"
	SigQuit TerminationSignal = "SigQuit"
	SigHup  TerminationSignal = "SigHup"
)

// RestartMode is the docker restart policy for deployment containers.
type RestartMode string

const (
	RestartNever         RestartMode = "no"
	RestartAlways        RestartMode = "always"
	RestartOnFailure     RestartMode = "on-failure"
	RestartUnlessStopped RestartMode = "unless-stopped"
)

// EnvironmentVar is one KEY=value pair passed to containers and builds.
type EnvironmentVar struct {
	Variable string `json:"variable" bson:"variable"`
	Value    string `json:"value" bson:"value"`
}

// Conversion is a host:container mapping used for ports and volumes.
type Conversion struct {
	Local     string `json:"local" bson:"local"`
	Container string `json:"container" bson:"container"`
}
