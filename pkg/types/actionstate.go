package types

// Action states track which mutually-exclusive operations are in flight per
// resource. A resource with any flag set refuses conflicting executions and
// deletion. These live only in memory; restart clears them.

// ServerActionState flags in-flight server-scoped operations.
type ServerActionState struct {
	PruningContainers  bool `json:"pruning_containers"`
	PruningImages      bool `json:"pruning_images"`
	PruningNetworks    bool `json:"pruning_networks"`
	PruningVolumes     bool `json:"pruning_volumes"`
	PruningBuilders    bool `json:"pruning_builders"`
	PruningSystem      bool `json:"pruning_system"`
	StoppingContainers bool `json:"stopping_containers"`
}

func (s ServerActionState) Busy() bool {
	return s.PruningContainers || s.PruningImages || s.PruningNetworks ||
		s.PruningVolumes || s.PruningBuilders || s.PruningSystem ||
		s.StoppingContainers
}

// DeploymentActionState flags in-flight deployment operations.
type DeploymentActionState struct {
	Deploying  bool `json:"deploying"`
	Starting   bool `json:"starting"`
	Restarting bool `json:"restarting"`
	Pausing    bool `json:"pausing"`
	Unpausing  bool `json:"unpausing"`
	Stopping   bool `json:"stopping"`
	Destroying bool `json:"destroying"`
}

func (s DeploymentActionState) Busy() bool {
	return s.Deploying || s.Starting || s.Restarting || s.Pausing ||
		s.Unpausing || s.Stopping || s.Destroying
}

// BuildActionState flags an in-flight build.
type BuildActionState struct {
	Building bool `json:"building"`
}

func (s BuildActionState) Busy() bool { return s.Building }

// RepoActionState flags in-flight repo operations.
type RepoActionState struct {
	Cloning  bool `json:"cloning"`
	Pulling  bool `json:"pulling"`
	Building bool `json:"building"`
}

func (s RepoActionState) Busy() bool { return s.Cloning || s.Pulling || s.Building }

// ProcedureActionState flags an in-flight procedure run.
type ProcedureActionState struct {
	Running bool `json:"running"`
}

func (s ProcedureActionState) Busy() bool { return s.Running }

// ActionActionState flags an in-flight action run.
type ActionActionState struct {
	Running bool `json:"running"`
}

func (s ActionActionState) Busy() bool { return s.Running }

// StackActionState flags in-flight stack operations.
type StackActionState struct {
	Deploying  bool `json:"deploying"`
	Pulling    bool `json:"pulling"`
	Starting   bool `json:"starting"`
	Restarting bool `json:"restarting"`
	Pausing    bool `json:"pausing"`
	Unpausing  bool `json:"unpausing"`
	Stopping   bool `json:"stopping"`
	Destroying bool `json:"destroying"`
}

func (s StackActionState) Busy() bool {
	return s.Deploying || s.Pulling || s.Starting || s.Restarting ||
		s.Pausing || s.Unpausing || s.Stopping || s.Destroying
}

// SyncActionState flags an in-flight sync run.
type SyncActionState struct {
	Syncing bool `json:"syncing"`
}

func (s SyncActionState) Busy() bool { return s.Syncing }

// AlerterActionState flags an in-flight alerter test.
type AlerterActionState struct {
	Testing bool `json:"testing"`
}

func (s AlerterActionState) Busy() bool { return s.Testing }

// ServerTemplateActionState flags an in-flight launch.
type ServerTemplateActionState struct {
	Launching bool `json:"launching"`
}

func (s ServerTemplateActionState) Busy() bool { return s.Launching }
