package types

// FileContents pairs a path with the file body, used for compose files and
// sync files that travel through the API.
type FileContents struct {
	Path     string `json:"path" bson:"path"`
	Contents string `json:"contents" bson:"contents"`
}

// StackConfig declares a docker compose project on a server. The compose
// files come either inline (FileContents) or from a git repo.
type StackConfig struct {
	ServerID string `json:"server_id" bson:"server_id"`

	// FileContents is the inline compose file. When set, the git fields
	// are ignored.
	FileContents string `json:"file_contents,omitempty" bson:"file_contents,omitempty"`

	GitProvider string `json:"git_provider,omitempty" bson:"git_provider,omitempty"`
	GitAccount  string `json:"git_account,omitempty" bson:"git_account,omitempty"`
	GitHTTPS    bool   `json:"git_https" bson:"git_https"`
	Repo        string `json:"repo,omitempty" bson:"repo,omitempty"`
	Branch      string `json:"branch,omitempty" bson:"branch,omitempty"`
	Commit      string `json:"commit,omitempty" bson:"commit,omitempty"`
	// RunDirectory is where compose commands run, relative to the repo root.
	RunDirectory string `json:"run_directory,omitempty" bson:"run_directory,omitempty"`
	// FilePaths lists compose files passed with -f, relative to
	// RunDirectory. Empty means the compose default lookup.
	FilePaths []string `json:"file_paths,omitempty" bson:"file_paths,omitempty"`

	// ProjectName overrides the compose project name, which defaults to
	// the stack name.
	ProjectName string `json:"project_name,omitempty" bson:"project_name,omitempty"`

	Environment []EnvironmentVar `json:"environment,omitempty" bson:"environment,omitempty"`
	EnvFilePath string           `json:"env_file_path,omitempty" bson:"env_file_path,omitempty"`

	// IgnoreServices excludes services from state derivation, for one-shot
	// jobs that are expected to exit.
	IgnoreServices []string `json:"ignore_services,omitempty" bson:"ignore_services,omitempty"`

	ImageRegistryAccount string `json:"image_registry_account,omitempty" bson:"image_registry_account,omitempty"`
	ExtraArgs            []string `json:"extra_args,omitempty" bson:"extra_args,omitempty"`

	SkipSecretInterp bool `json:"skip_secret_interp,omitempty" bson:"skip_secret_interp,omitempty"`

	PollForUpdates bool `json:"poll_for_updates,omitempty" bson:"poll_for_updates,omitempty"`
	AutoUpdate     bool `json:"auto_update,omitempty" bson:"auto_update,omitempty"`
	// AutoUpdateAllServices redeploys the whole stack on any service
	// update rather than only the updated services.
	AutoUpdateAllServices bool `json:"auto_update_all_services,omitempty" bson:"auto_update_all_services,omitempty"`

	// DestroyBeforeDeploy runs compose down before every deploy.
	DestroyBeforeDeploy bool `json:"destroy_before_deploy,omitempty" bson:"destroy_before_deploy,omitempty"`

	SendAlerts bool `json:"send_alerts" bson:"send_alerts"`

	WebhookEnabled bool `json:"webhook_enabled" bson:"webhook_enabled"`
	// WebhookForceDeploy makes the webhook run DeployStack even when the
	// compose files are unchanged.
	WebhookForceDeploy bool `json:"webhook_force_deploy,omitempty" bson:"webhook_force_deploy,omitempty"`

	Links []string `json:"links,omitempty" bson:"links,omitempty"`
}

// NewStackConfig returns the defaults applied to created stacks.
func NewStackConfig() StackConfig {
	return StackConfig{
		GitProvider:    "github.com",
		GitHTTPS:       true,
		Branch:         "main",
		EnvFilePath:    ".env",
		SendAlerts:     true,
		WebhookEnabled: true,
	}
}

// StackServiceNames records one deployed service and its image.
type StackServiceNames struct {
	ServiceName string `json:"service_name" bson:"service_name"`
	Image       string `json:"image,omitempty" bson:"image,omitempty"`
}

// StackInfo is server-written stack state, maintained by deploys and the
// monitor refresh.
type StackInfo struct {
	// DeployedContents are the compose files as of the last deploy, used
	// by DeployStackIfChanged to detect drift.
	DeployedContents []FileContents `json:"deployed_contents,omitempty" bson:"deployed_contents,omitempty"`
	// DeployedHash is the git hash deployed, for repo-based stacks.
	DeployedHash string `json:"deployed_hash,omitempty" bson:"deployed_hash,omitempty"`
	// LatestHash is the branch head observed by the latest refresh.
	LatestHash string `json:"latest_hash,omitempty" bson:"latest_hash,omitempty"`
	// DeployedServices lists services from the last deployed compose file.
	DeployedServices []StackServiceNames `json:"deployed_services,omitempty" bson:"deployed_services,omitempty"`
	LastDeployedAt   int64               `json:"last_deployed_at,omitempty" bson:"last_deployed_at,omitempty"`
}

// StackListItemInfo is the derived info attached to stack list items.
type StackListItemInfo struct {
	State    StackState `json:"state"`
	Status   string     `json:"status,omitempty"`
	ServerID string     `json:"server_id"`
	// Services pairs declared services with running state for the UI.
	Services        []StackServiceNames `json:"services,omitempty"`
	UpdateAvailable bool                `json:"update_available,omitempty"`
	// FileMissing flags repo stacks whose compose files were not found.
	FileMissing bool `json:"file_missing,omitempty"`
}
