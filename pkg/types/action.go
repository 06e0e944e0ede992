package types

// ActionConfig declares a TypeScript automation run by the core host's deno.
type ActionConfig struct {
	// FileContents is the user's script body. The generated preamble
	// prepended at run time provides an authenticated client.
	FileContents string `json:"file_contents" bson:"file_contents"`

	Schedule         string `json:"schedule,omitempty" bson:"schedule,omitempty"`
	ScheduleEnabled  bool   `json:"schedule_enabled" bson:"schedule_enabled"`
	ScheduleTimezone string `json:"schedule_timezone,omitempty" bson:"schedule_timezone,omitempty"`
	ScheduleAlert    bool   `json:"schedule_alert,omitempty" bson:"schedule_alert,omitempty"`

	WebhookEnabled bool `json:"webhook_enabled" bson:"webhook_enabled"`

	// ReloadDenoDeps passes --reload so cached remote imports refresh.
	ReloadDenoDeps bool `json:"reload_deno_deps,omitempty" bson:"reload_deno_deps,omitempty"`

	Links []string `json:"links,omitempty" bson:"links,omitempty"`
}

// NewActionConfig returns the defaults applied to created actions.
func NewActionConfig() ActionConfig {
	return ActionConfig{
		ScheduleEnabled: true,
		WebhookEnabled:  true,
	}
}

// ActionInfo is server-written action state.
type ActionInfo struct {
	LastRunAt int64 `json:"last_run_at,omitempty" bson:"last_run_at,omitempty"`
}

// ActionState classifies an action for list views.
type ActionState string

const (
	ActionOk      ActionState = "Ok"
	ActionRunning ActionState = "Running"
	ActionFailed  ActionState = "Failed"
	ActionUnknown ActionState = "Unknown"
)

// ActionListItemInfo is the derived info attached to action list items.
type ActionListItemInfo struct {
	State            ActionState `json:"state"`
	LastRunAt        int64       `json:"last_run_at,omitempty"`
	NextScheduledRun int64       `json:"next_scheduled_run,omitempty"`
}
