package types

// EnabledExecution is one execution within a procedure stage. Disabled
// entries are kept in config but skipped at run time.
type EnabledExecution struct {
	Execution ExecuteRequest `json:"execution" bson:"execution"`
	Enabled   bool           `json:"enabled" bson:"enabled"`
}

// ProcedureStage is one sequential step of a procedure. All enabled
// executions within a stage run concurrently; the stage fails if any fails.
type ProcedureStage struct {
	Name       string             `json:"name" bson:"name"`
	Enabled    bool               `json:"enabled" bson:"enabled"`
	Executions []EnabledExecution `json:"executions" bson:"executions"`
}

// ProcedureConfig declares a multi-stage composite execution.
type ProcedureConfig struct {
	Stages []ProcedureStage `json:"stages" bson:"stages"`

	// Schedule is a cron expression; empty disables scheduling.
	Schedule         string `json:"schedule,omitempty" bson:"schedule,omitempty"`
	ScheduleEnabled  bool   `json:"schedule_enabled" bson:"schedule_enabled"`
	ScheduleTimezone string `json:"schedule_timezone,omitempty" bson:"schedule_timezone,omitempty"`
	// ScheduleAlert raises a ScheduleRun alert on each scheduled run.
	ScheduleAlert bool `json:"schedule_alert,omitempty" bson:"schedule_alert,omitempty"`

	WebhookEnabled bool `json:"webhook_enabled" bson:"webhook_enabled"`

	// FailureOK marks the procedure successful even when stages fail.
	FailureOK bool `json:"failure_ok,omitempty" bson:"failure_ok,omitempty"`

	Links []string `json:"links,omitempty" bson:"links,omitempty"`
}

// NewProcedureConfig returns the defaults applied to created procedures.
func NewProcedureConfig() ProcedureConfig {
	return ProcedureConfig{
		ScheduleEnabled: true,
		WebhookEnabled:  true,
	}
}

// MaxProcedureDepth bounds nested RunProcedure executions. Runs that exceed
// it fail rather than recurse further.
const MaxProcedureDepth = 10

// ProcedureState classifies a procedure for list views.
type ProcedureState string

const (
	ProcedureOk      ProcedureState = "Ok"
	ProcedureRunning ProcedureState = "Running"
	ProcedureFailed  ProcedureState = "Failed"
	ProcedureUnknownSt ProcedureState = "Unknown"
)

// ProcedureListItemInfo is the derived info attached to procedure list items.
type ProcedureListItemInfo struct {
	Stages          int            `json:"stages"`
	State           ProcedureState `json:"state"`
	NextScheduledRun int64         `json:"next_scheduled_run,omitempty"`
	LastRunAt        int64         `json:"last_run_at,omitempty"`
}
