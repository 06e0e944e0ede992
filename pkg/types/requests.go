package types

import "encoding/json"

// ReadRequest is the envelope accepted by POST /read. Params are decoded
// per-op once the type is known.
type ReadRequest struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

// WriteRequest is the envelope accepted by POST /write.
type WriteRequest struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

// Partial is a partial config: top-level field name to raw JSON value.
// Merges and diffs operate on this shape.
type Partial = map[string]json.RawMessage

// --- resource ops (generic across kinds; the op type carries the kind,
// e.g. "CreateDeployment", "ListServers") ---

// CreateResourceParams creates a named resource. Config is a partial merged
// over the kind's defaults.
type CreateResourceParams struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// CopyResourceParams duplicates an existing resource's config under a new name.
type CopyResourceParams struct {
	// ID selects the source, id or name.
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UpdateResourceParams merges a partial config over the resource's current
// config.
type UpdateResourceParams struct {
	ID     string          `json:"id"`
	Config json.RawMessage `json:"config"`
}

// RenameResourceParams renames a resource.
type RenameResourceParams struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeleteResourceParams deletes a resource.
type DeleteResourceParams struct {
	ID string `json:"id"`
}

// GetResourceParams fetches one resource, id or name.
type GetResourceParams struct {
	ID string `json:"id"`
}

// ListResourcesParams filters list results. All filters are conjunctive.
type ListResourcesParams struct {
	// Tags are tag ids or names; resources must carry all of them.
	Tags []string `json:"tags,omitempty"`
	// NameContains is a case-insensitive substring match.
	NameContains string `json:"name_contains,omitempty"`
}

// --- updates ---

type GetUpdateParams struct {
	ID string `json:"id"`
}

type ListUpdatesParams struct {
	// Target narrows to one resource when set.
	Target *ResourceTarget `json:"target,omitempty"`
	// Operations narrows to the given operations.
	Operations []Operation `json:"operations,omitempty"`
	// Page selects UpdatesPageSize-sized pages, newest first.
	Page int64 `json:"page,omitempty"`
}

// UpdatesPageSize is the page size of ListUpdates.
const UpdatesPageSize = 100

// --- alerts ---

type GetAlertParams struct {
	ID string `json:"id"`
}

type ListAlertsParams struct {
	Target   *ResourceTarget `json:"target,omitempty"`
	Resolved *bool           `json:"resolved,omitempty"`
	Page     int64           `json:"page,omitempty"`
}

// AlertsPageSize is the page size of ListAlerts.
const AlertsPageSize = 100

// --- server monitoring reads ---

type GetSystemInformationParams struct {
	Server string `json:"server"`
}

type GetSystemStatsParams struct {
	Server string `json:"server"`
}

type ListSystemProcessesParams struct {
	Server string `json:"server"`
}

type GetHistoricalServerStatsParams struct {
	Server string `json:"server"`
	Page   int64  `json:"page,omitempty"`
}

// StatsPageSize is the page size of GetHistoricalServerStats.
const StatsPageSize = 500

type ListDockerContainersParams struct {
	Server string `json:"server"`
}

type GetContainerLogParams struct {
	Server    string `json:"server"`
	Container string `json:"container"`
	// Tail bounds the returned lines; zero means the default 100.
	Tail int64 `json:"tail,omitempty"`
}

// --- tags ---

type GetTagParams struct {
	ID string `json:"id"`
}

type CreateTagParams struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type RenameTagParams struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UpdateTagColorParams struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

type DeleteTagParams struct {
	ID string `json:"id"`
}

// UpdateTagsOnResourceParams replaces a resource's tag set. Tags are ids or
// names; names that don't exist yet are created.
type UpdateTagsOnResourceParams struct {
	Target ResourceTarget `json:"target"`
	Tags   []string       `json:"tags"`
}

// UpdateDescriptionParams replaces a resource's description.
type UpdateDescriptionParams struct {
	Target      ResourceTarget `json:"target"`
	Description string         `json:"description"`
}

// --- variables ---

type GetVariableParams struct {
	Name string `json:"name"`
}

type CreateVariableParams struct {
	Name        string `json:"name"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
	IsSecret    bool   `json:"is_secret,omitempty"`
}

type UpdateVariableValueParams struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type UpdateVariableDescriptionParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateVariableIsSecretParams struct {
	Name     string `json:"name"`
	IsSecret bool   `json:"is_secret"`
}

type DeleteVariableParams struct {
	Name string `json:"name"`
}

// --- users, groups, permissions ---

type FindUserParams struct {
	// User is a user id or username.
	User string `json:"user"`
}

type CreateApiKeyParams struct {
	Name string `json:"name"`
	// Expires is a ms timestamp; zero means never.
	Expires int64 `json:"expires,omitempty"`
}

// CreateApiKeyResponse returns the plaintext secret exactly once.
type CreateApiKeyResponse struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type DeleteApiKeyParams struct {
	Key string `json:"key"`
}

type CreateUserGroupParams struct {
	Name string `json:"name"`
}

type RenameUserGroupParams struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type DeleteUserGroupParams struct {
	ID string `json:"id"`
}

// SetUsersInUserGroupParams replaces group membership. Users are ids or
// usernames.
type SetUsersInUserGroupParams struct {
	ID    string   `json:"id"`
	Users []string `json:"users"`
}

type GetUserGroupParams struct {
	ID string `json:"id"`
}

// UpdatePermissionOnTargetParams upserts one permission document.
type UpdatePermissionOnTargetParams struct {
	UserTarget     UserTarget      `json:"user_target"`
	ResourceTarget ResourceTarget  `json:"resource_target"`
	Level          PermissionLevel `json:"level"`
}

// ListUserTargetPermissionsParams lists grants held by a user or group.
type ListUserTargetPermissionsParams struct {
	UserTarget UserTarget `json:"user_target"`
}

// UpdateUserBasePermissionsParams toggles account-level flags. Nil fields
// are left unchanged.
type UpdateUserBasePermissionsParams struct {
	UserID        string `json:"user_id"`
	Enabled       *bool  `json:"enabled,omitempty"`
	CreateServers *bool  `json:"create_servers,omitempty"`
	CreateBuilds  *bool  `json:"create_builds,omitempty"`
}

type UpdateUserAdminParams struct {
	UserID string `json:"user_id"`
	Admin  bool   `json:"admin"`
}

// --- sync ---

// RefreshResourceSyncPendingParams recomputes the plan without applying it.
type RefreshResourceSyncPendingParams struct {
	Sync string `json:"sync"`
}

// CommitSyncParams writes the current database state back into the sync's
// inline file contents.
type CommitSyncParams struct {
	Sync string `json:"sync"`
}

// --- misc reads ---

// GetVersionResponse is returned by GetVersion and GET /version.
type GetVersionResponse struct {
	Version string `json:"version"`
}

// GetCoreInfoResponse describes the running core.
type GetCoreInfoResponse struct {
	Title         string `json:"title"`
	Version       string `json:"version"`
	WebhookBaseURL string `json:"webhook_base_url,omitempty"`
}
