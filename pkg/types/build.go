package types

// SystemCommand is a shell command run relative to a path.
type SystemCommand struct {
	Path    string `json:"path,omitempty" bson:"path,omitempty"`
	Command string `json:"command,omitempty" bson:"command,omitempty"`
}

// IsNone reports whether no command is declared.
func (c SystemCommand) IsNone() bool {
	return c.Command == ""
}

// BuildConfig declares a docker image build from a git repo.
type BuildConfig struct {
	// BuilderID selects the builder resource that provides the build host.
	BuilderID string `json:"builder_id" bson:"builder_id"`

	GitProvider string `json:"git_provider,omitempty" bson:"git_provider,omitempty"`
	GitAccount  string `json:"git_account,omitempty" bson:"git_account,omitempty"`
	// GitHTTPS selects https clone urls over ssh.
	GitHTTPS bool `json:"git_https" bson:"git_https"`
	// Repo is "namespace/name" on the provider.
	Repo   string `json:"repo" bson:"repo"`
	Branch string `json:"branch,omitempty" bson:"branch,omitempty"`
	// Commit pins a specific hash; empty follows the branch head.
	Commit string `json:"commit,omitempty" bson:"commit,omitempty"`

	// Version is the next version to build. Incremented automatically
	// after each successful build when AutoIncrementVersion is set.
	Version              Version `json:"version" bson:"version"`
	AutoIncrementVersion bool    `json:"auto_increment_version" bson:"auto_increment_version"`
	// ImageName overrides the image name, which defaults to the build name.
	ImageName string `json:"image_name,omitempty" bson:"image_name,omitempty"`
	// ImageTag is an extra tag suffix applied alongside the version tags.
	ImageTag string `json:"image_tag,omitempty" bson:"image_tag,omitempty"`
	// ImageRegistry names the registry domain to push to; empty skips push.
	ImageRegistry string `json:"image_registry,omitempty" bson:"image_registry,omitempty"`
	// ImageRegistryAccount selects the periphery registry credential.
	ImageRegistryAccount string `json:"image_registry_account,omitempty" bson:"image_registry_account,omitempty"`
	// ImageRegistryOrganization overrides the account namespace on push.
	ImageRegistryOrganization string `json:"image_registry_organization,omitempty" bson:"image_registry_organization,omitempty"`

	// BuildPath is the docker build context, relative to the repo root.
	BuildPath string `json:"build_path,omitempty" bson:"build_path,omitempty"`
	// DockerfilePath is relative to BuildPath.
	DockerfilePath string `json:"dockerfile_path,omitempty" bson:"dockerfile_path,omitempty"`

	BuildArgs  []EnvironmentVar `json:"build_args,omitempty" bson:"build_args,omitempty"`
	// SecretArgs are passed as build args but redacted from logs.
	SecretArgs []EnvironmentVar `json:"secret_args,omitempty" bson:"secret_args,omitempty"`
	Labels     []EnvironmentVar `json:"labels,omitempty" bson:"labels,omitempty"`
	ExtraArgs  []string         `json:"extra_args,omitempty" bson:"extra_args,omitempty"`
	// UseBuildx builds with docker buildx instead of the legacy builder.
	UseBuildx bool `json:"use_buildx,omitempty" bson:"use_buildx,omitempty"`

	// PreBuild runs in the repo after clone, before docker build.
	PreBuild SystemCommand `json:"pre_build,omitempty" bson:"pre_build,omitempty"`

	SkipSecretInterp bool `json:"skip_secret_interp,omitempty" bson:"skip_secret_interp,omitempty"`
	// WebhookEnabled gates the push-triggered build listener.
	WebhookEnabled bool `json:"webhook_enabled" bson:"webhook_enabled"`

	Links []string `json:"links,omitempty" bson:"links,omitempty"`
}

// NewBuildConfig returns the defaults applied to created builds.
func NewBuildConfig() BuildConfig {
	return BuildConfig{
		GitProvider:          "github.com",
		GitHTTPS:             true,
		Branch:               "main",
		AutoIncrementVersion: true,
		WebhookEnabled:       true,
	}
}

// BuildInfo is server-written build state.
type BuildInfo struct {
	LastBuiltAt int64 `json:"last_built_at,omitempty" bson:"last_built_at,omitempty"`
	// BuiltHash is the commit hash of the last successful build.
	BuiltHash string `json:"built_hash,omitempty" bson:"built_hash,omitempty"`
	// LatestHash is the branch head observed by the latest refresh.
	LatestHash string `json:"latest_hash,omitempty" bson:"latest_hash,omitempty"`
}

// BuildListItemInfo is the derived info attached to build list items.
type BuildListItemInfo struct {
	LastBuiltAt int64   `json:"last_built_at,omitempty"`
	Version     Version `json:"version"`
	BuilderID   string  `json:"builder_id,omitempty"`
	Repo        string  `json:"repo,omitempty"`
	Branch      string  `json:"branch,omitempty"`
	// State is Building while a run is in flight, otherwise reflects the
	// latest run's outcome.
	State BuildState `json:"state"`
}

// BuildState classifies a build for list views.
type BuildState string

const (
	BuildOk       BuildState = "Ok"
	BuildFailedSt BuildState = "Failed"
	BuildBuilding BuildState = "Building"
	BuildUnknown  BuildState = "Unknown"
)
