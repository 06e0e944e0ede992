package types

// RepoConfig declares a git repo kept cloned on a server.
type RepoConfig struct {
	// ServerID is the server holding the clone.
	ServerID string `json:"server_id" bson:"server_id"`
	// BuilderID selects the build host for the BuildRepo operation.
	BuilderID string `json:"builder_id,omitempty" bson:"builder_id,omitempty"`

	GitProvider string `json:"git_provider,omitempty" bson:"git_provider,omitempty"`
	GitAccount  string `json:"git_account,omitempty" bson:"git_account,omitempty"`
	GitHTTPS    bool   `json:"git_https" bson:"git_https"`
	Repo        string `json:"repo" bson:"repo"`
	Branch      string `json:"branch,omitempty" bson:"branch,omitempty"`
	Commit      string `json:"commit,omitempty" bson:"commit,omitempty"`

	// Path overrides the clone destination on the server, which defaults
	// to the repo name under the periphery root directory.
	Path string `json:"path,omitempty" bson:"path,omitempty"`

	// OnClone runs in the repo after every clone.
	OnClone SystemCommand `json:"on_clone,omitempty" bson:"on_clone,omitempty"`
	// OnPull runs in the repo after every pull (and after clone, after
	// OnClone).
	OnPull SystemCommand `json:"on_pull,omitempty" bson:"on_pull,omitempty"`

	// Environment is written to EnvFilePath in the repo before hooks run.
	Environment []EnvironmentVar `json:"environment,omitempty" bson:"environment,omitempty"`
	EnvFilePath string           `json:"env_file_path,omitempty" bson:"env_file_path,omitempty"`

	SkipSecretInterp bool `json:"skip_secret_interp,omitempty" bson:"skip_secret_interp,omitempty"`
	WebhookEnabled   bool `json:"webhook_enabled" bson:"webhook_enabled"`

	Links []string `json:"links,omitempty" bson:"links,omitempty"`
}

// NewRepoConfig returns the defaults applied to created repos.
func NewRepoConfig() RepoConfig {
	return RepoConfig{
		GitProvider:    "github.com",
		GitHTTPS:       true,
		Branch:         "main",
		EnvFilePath:    ".env",
		WebhookEnabled: true,
	}
}

// RepoInfo is server-written repo state.
type RepoInfo struct {
	LastPulledAt int64 `json:"last_pulled_at,omitempty" bson:"last_pulled_at,omitempty"`
	LastBuiltAt  int64 `json:"last_built_at,omitempty" bson:"last_built_at,omitempty"`
	// BuiltHash is the commit hash of the last BuildRepo run.
	BuiltHash string `json:"built_hash,omitempty" bson:"built_hash,omitempty"`
	// LatestHash is the commit hash of the current clone.
	LatestHash    string `json:"latest_hash,omitempty" bson:"latest_hash,omitempty"`
	LatestMessage string `json:"latest_message,omitempty" bson:"latest_message,omitempty"`
}

// RepoState classifies a repo for list views.
type RepoState string

const (
	RepoOk       RepoState = "Ok"
	RepoCloning  RepoState = "Cloning"
	RepoPulling  RepoState = "Pulling"
	RepoBuilding RepoState = "Building"
	RepoFailed   RepoState = "Failed"
	RepoUnknown  RepoState = "Unknown"
)

// RepoListItemInfo is the derived info attached to repo list items.
type RepoListItemInfo struct {
	ServerID     string    `json:"server_id,omitempty"`
	Repo         string    `json:"repo,omitempty"`
	Branch       string    `json:"branch,omitempty"`
	LastPulledAt int64     `json:"last_pulled_at,omitempty"`
	LatestHash   string    `json:"latest_hash,omitempty"`
	State        RepoState `json:"state"`
}
