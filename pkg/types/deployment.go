package types

// DeploymentImageType discriminates the deployment image source.
type DeploymentImageType string

const (
	// ImageTypeImage deploys a registry image named directly.
	ImageTypeImage DeploymentImageType = "Image"
	// ImageTypeBuild deploys the image produced by a linked build.
	ImageTypeBuild DeploymentImageType = "Build"
)

// DeploymentImageParams carries the variant payload of DeploymentImage.
// Exactly one of Image or BuildID is meaningful, per the Type.
type DeploymentImageParams struct {
	// Image is the full image reference for the Image variant.
	Image string `json:"image,omitempty" bson:"image,omitempty"`
	// BuildID references the linked build for the Build variant.
	BuildID string `json:"build_id,omitempty" bson:"build_id,omitempty"`
	// Version pins the built version to deploy; zero means latest built.
	Version Version `json:"version,omitempty" bson:"version,omitempty"`
}

// DeploymentImage selects what image a deployment runs.
type DeploymentImage struct {
	Type   DeploymentImageType   `json:"type" bson:"type"`
	Params DeploymentImageParams `json:"params" bson:"params"`
}

// DeploymentConfig declares one managed container.
type DeploymentConfig struct {
	// ServerID is the server the container runs on.
	ServerID string          `json:"server_id" bson:"server_id"`
	Image    DeploymentImage `json:"image" bson:"image"`
	// ImageRegistryAccount selects the registry credential the periphery
	// uses to pull the image.
	ImageRegistryAccount string `json:"image_registry_account,omitempty" bson:"image_registry_account,omitempty"`

	Restart     RestartMode      `json:"restart,omitempty" bson:"restart,omitempty"`
	Command     string           `json:"command,omitempty" bson:"command,omitempty"`
	Network     string           `json:"network,omitempty" bson:"network,omitempty"`
	Ports       []Conversion     `json:"ports,omitempty" bson:"ports,omitempty"`
	Volumes     []Conversion     `json:"volumes,omitempty" bson:"volumes,omitempty"`
	Environment []EnvironmentVar `json:"environment,omitempty" bson:"environment,omitempty"`
	Labels      []EnvironmentVar `json:"labels,omitempty" bson:"labels,omitempty"`
	// ExtraArgs are passed through to docker run verbatim.
	ExtraArgs []string `json:"extra_args,omitempty" bson:"extra_args,omitempty"`

	// SkipSecretInterp disables variable interpolation for this deployment.
	SkipSecretInterp bool `json:"skip_secret_interp,omitempty" bson:"skip_secret_interp,omitempty"`

	// RedeployOnBuild redeploys this deployment whenever its linked build
	// completes successfully.
	RedeployOnBuild bool `json:"redeploy_on_build,omitempty" bson:"redeploy_on_build,omitempty"`
	// PollForUpdates checks the registry for a newer image digest and
	// raises an alert when one exists.
	PollForUpdates bool `json:"poll_for_updates,omitempty" bson:"poll_for_updates,omitempty"`
	// AutoUpdate redeploys automatically when a newer image is found.
	// Implies the update check.
	AutoUpdate bool `json:"auto_update,omitempty" bson:"auto_update,omitempty"`

	SendAlerts bool `json:"send_alerts" bson:"send_alerts"`

	TerminationSignal  TerminationSignal `json:"termination_signal,omitempty" bson:"termination_signal,omitempty"`
	TerminationTimeout int64             `json:"termination_timeout,omitempty" bson:"termination_timeout,omitempty"`

	Links []string `json:"links,omitempty" bson:"links,omitempty"`
}

// NewDeploymentConfig returns the defaults applied to created deployments.
func NewDeploymentConfig() DeploymentConfig {
	return DeploymentConfig{
		Image:              DeploymentImage{Type: ImageTypeImage},
		Restart:            RestartUnlessStopped,
		Network:            "host",
		SendAlerts:         true,
		TerminationSignal:  SigTerm,
		TerminationTimeout: 10,
	}
}

// DeploymentListItemInfo is the derived info attached to deployment list
// items, sourced from the container cache.
type DeploymentListItemInfo struct {
	State    DeploymentState `json:"state"`
	Status   string          `json:"status,omitempty"`
	Image    string          `json:"image,omitempty"`
	ServerID string          `json:"server_id"`
	BuildID  string          `json:"build_id,omitempty"`
	UpdateAvailable bool     `json:"update_available,omitempty"`
}
