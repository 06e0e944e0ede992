package types

// ResourceSyncConfig declares a TOML source of truth applied to the resource
// collections. Files come inline (FileContents) or from paths on the core
// host filesystem.
type ResourceSyncConfig struct {
	// FileContents is the inline TOML declaration. When set, ResourcePath
	// is ignored.
	FileContents string `json:"file_contents,omitempty" bson:"file_contents,omitempty"`
	// ResourcePath lists files or directories on the core host; directories
	// are walked for .toml files.
	ResourcePath []string `json:"resource_path,omitempty" bson:"resource_path,omitempty"`

	// Delete removes managed-kind resources that exist in the database but
	// not in the declaration.
	Delete bool `json:"delete,omitempty" bson:"delete,omitempty"`
	// MatchTags restricts the sync to resources carrying all given tags.
	MatchTags []string `json:"match_tags,omitempty" bson:"match_tags,omitempty"`

	IncludeResources  bool `json:"include_resources" bson:"include_resources"`
	IncludeVariables  bool `json:"include_variables,omitempty" bson:"include_variables,omitempty"`
	IncludeUserGroups bool `json:"include_user_groups,omitempty" bson:"include_user_groups,omitempty"`

	WebhookEnabled bool `json:"webhook_enabled" bson:"webhook_enabled"`

	Links []string `json:"links,omitempty" bson:"links,omitempty"`
}

// NewResourceSyncConfig returns the defaults applied to created syncs.
func NewResourceSyncConfig() ResourceSyncConfig {
	return ResourceSyncConfig{
		IncludeResources: true,
		WebhookEnabled:   true,
	}
}

// PendingChange is one planned mutation of a sync run. Kind is a resource
// kind, or "Variable" / "UserGroup" for non-resource entries.
type PendingChange struct {
	Kind string `json:"kind" bson:"kind"`
	Name string `json:"name" bson:"name"`
	// Diff renders the field-level changes; creates render the full
	// declared config.
	Diff string `json:"diff,omitempty" bson:"diff,omitempty"`
}

// PendingSyncUpdates is the computed plan stored on the sync for review.
type PendingSyncUpdates struct {
	Creates []PendingChange `json:"creates,omitempty" bson:"creates,omitempty"`
	Updates []PendingChange `json:"updates,omitempty" bson:"updates,omitempty"`
	Deletes []PendingChange `json:"deletes,omitempty" bson:"deletes,omitempty"`
	// Err is set when planning failed (parse error, unknown references).
	Err string `json:"err,omitempty" bson:"err,omitempty"`
}

// IsEmpty reports whether the plan contains no mutations.
func (p PendingSyncUpdates) IsEmpty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// SyncInfo is server-written sync state.
type SyncInfo struct {
	LastSyncTS int64 `json:"last_sync_ts,omitempty" bson:"last_sync_ts,omitempty"`
	// RemoteContents are the resolved declaration files at last refresh.
	RemoteContents []FileContents     `json:"remote_contents,omitempty" bson:"remote_contents,omitempty"`
	Pending        PendingSyncUpdates `json:"pending" bson:"pending"`
}

// SyncState classifies a sync for list views.
type SyncState string

const (
	SyncOk      SyncState = "Ok"
	SyncSyncing SyncState = "Syncing"
	SyncPending SyncState = "Pending"
	SyncFailed  SyncState = "Failed"
	SyncUnknown SyncState = "Unknown"
)

// SyncListItemInfo is the derived info attached to sync list items.
type SyncListItemInfo struct {
	State      SyncState `json:"state"`
	LastSyncTS int64     `json:"last_sync_ts,omitempty"`
	// PendingCount totals planned creates, updates and deletes.
	PendingCount int `json:"pending_count"`
}

// ResourceSpec is one declared resource in a sync TOML file. Config is the
// kind's partial config as raw TOML tables, merged over defaults on create
// and diffed against current state on update.
type ResourceSpec struct {
	Name        string         `toml:"name" json:"name"`
	Description string         `toml:"description,omitempty" json:"description,omitempty"`
	// Tags are tag names here, unlike the ids stored on resources.
	Tags   []string       `toml:"tags,omitempty" json:"tags,omitempty"`
	Config map[string]any `toml:"config,omitempty" json:"config,omitempty"`
}

// UserGroupSpec is one declared user group in a sync TOML file. Users are
// usernames.
type UserGroupSpec struct {
	Name  string   `toml:"name" json:"name"`
	Users []string `toml:"users,omitempty" json:"users,omitempty"`
	All   map[ResourceKind]PermissionLevel `toml:"all,omitempty" json:"all,omitempty"`
}

// ResourceFile is the root of a sync TOML declaration.
type ResourceFile struct {
	Servers         []ResourceSpec  `toml:"server,omitempty" json:"server,omitempty"`
	Deployments     []ResourceSpec  `toml:"deployment,omitempty" json:"deployment,omitempty"`
	Builds          []ResourceSpec  `toml:"build,omitempty" json:"build,omitempty"`
	Repos           []ResourceSpec  `toml:"repo,omitempty" json:"repo,omitempty"`
	Procedures      []ResourceSpec  `toml:"procedure,omitempty" json:"procedure,omitempty"`
	Actions         []ResourceSpec  `toml:"action,omitempty" json:"action,omitempty"`
	Stacks          []ResourceSpec  `toml:"stack,omitempty" json:"stack,omitempty"`
	Builders        []ResourceSpec  `toml:"builder,omitempty" json:"builder,omitempty"`
	Alerters        []ResourceSpec  `toml:"alerter,omitempty" json:"alerter,omitempty"`
	ServerTemplates []ResourceSpec  `toml:"server_template,omitempty" json:"server_template,omitempty"`
	ResourceSyncs   []ResourceSpec  `toml:"resource_sync,omitempty" json:"resource_sync,omitempty"`
	Variables       []Variable      `toml:"variable,omitempty" json:"variable,omitempty"`
	UserGroups      []UserGroupSpec `toml:"user_group,omitempty" json:"user_group,omitempty"`
}

// SpecsFor returns the declared resources of one kind.
func (f *ResourceFile) SpecsFor(kind ResourceKind) []ResourceSpec {
	switch kind {
	case KindServer:
		return f.Servers
	case KindDeployment:
		return f.Deployments
	case KindBuild:
		return f.Builds
	case KindRepo:
		return f.Repos
	case KindProcedure:
		return f.Procedures
	case KindAction:
		return f.Actions
	case KindStack:
		return f.Stacks
	case KindBuilder:
		return f.Builders
	case KindAlerter:
		return f.Alerters
	case KindServerTemplate:
		return f.ServerTemplates
	case KindResourceSync:
		return f.ResourceSyncs
	default:
		return nil
	}
}

// Append merges another file's declarations into f, preserving order.
func (f *ResourceFile) Append(other *ResourceFile) {
	f.Servers = append(f.Servers, other.Servers...)
	f.Deployments = append(f.Deployments, other.Deployments...)
	f.Builds = append(f.Builds, other.Builds...)
	f.Repos = append(f.Repos, other.Repos...)
	f.Procedures = append(f.Procedures, other.Procedures...)
	f.Actions = append(f.Actions, other.Actions...)
	f.Stacks = append(f.Stacks, other.Stacks...)
	f.Builders = append(f.Builders, other.Builders...)
	f.Alerters = append(f.Alerters, other.Alerters...)
	f.ServerTemplates = append(f.ServerTemplates, other.ServerTemplates...)
	f.ResourceSyncs = append(f.ResourceSyncs, other.ResourceSyncs...)
	f.Variables = append(f.Variables, other.Variables...)
	f.UserGroups = append(f.UserGroups, other.UserGroups...)
}
