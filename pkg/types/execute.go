package types

// ExecutionType names an execution variant. The values double as the
// Operation recorded on the resulting update for most variants.
type ExecutionType string

const (
	ExecNone ExecutionType = "None"

	ExecDeploy            ExecutionType = "Deploy"
	ExecStartDeployment   ExecutionType = "StartDeployment"
	ExecRestartDeployment ExecutionType = "RestartDeployment"
	ExecPauseDeployment   ExecutionType = "PauseDeployment"
	ExecUnpauseDeployment ExecutionType = "UnpauseDeployment"
	ExecStopDeployment    ExecutionType = "StopDeployment"
	ExecDestroyDeployment ExecutionType = "DestroyDeployment"

	ExecRunBuild    ExecutionType = "RunBuild"
	ExecCancelBuild ExecutionType = "CancelBuild"

	ExecCloneRepo ExecutionType = "CloneRepo"
	ExecPullRepo  ExecutionType = "PullRepo"
	ExecBuildRepo ExecutionType = "BuildRepo"

	ExecRunProcedure ExecutionType = "RunProcedure"
	ExecRunAction    ExecutionType = "RunAction"

	ExecDeployStack          ExecutionType = "DeployStack"
	ExecDeployStackIfChanged ExecutionType = "DeployStackIfChanged"
	ExecPullStack            ExecutionType = "PullStack"
	ExecStartStack           ExecutionType = "StartStack"
	ExecRestartStack         ExecutionType = "RestartStack"
	ExecPauseStack           ExecutionType = "PauseStack"
	ExecUnpauseStack         ExecutionType = "UnpauseStack"
	ExecStopStack            ExecutionType = "StopStack"
	ExecDestroyStack         ExecutionType = "DestroyStack"

	ExecRunSync ExecutionType = "RunSync"

	ExecStartContainer    ExecutionType = "StartContainer"
	ExecRestartContainer  ExecutionType = "RestartContainer"
	ExecPauseContainer    ExecutionType = "PauseContainer"
	ExecUnpauseContainer  ExecutionType = "UnpauseContainer"
	ExecStopContainer     ExecutionType = "StopContainer"
	ExecDestroyContainer  ExecutionType = "DestroyContainer"
	ExecStopAllContainers ExecutionType = "StopAllContainers"
	ExecPruneContainers   ExecutionType = "PruneContainers"
	ExecPruneImages       ExecutionType = "PruneImages"
	ExecPruneNetworks     ExecutionType = "PruneNetworks"
	ExecPruneVolumes      ExecutionType = "PruneVolumes"
	ExecPruneBuilders     ExecutionType = "PruneBuilders"
	ExecPruneSystem       ExecutionType = "PruneSystem"

	ExecTestAlerter  ExecutionType = "TestAlerter"
	ExecLaunchServer ExecutionType = "LaunchServer"

	ExecBatchDeploy               ExecutionType = "BatchDeploy"
	ExecBatchDestroyDeployment    ExecutionType = "BatchDestroyDeployment"
	ExecBatchRunBuild             ExecutionType = "BatchRunBuild"
	ExecBatchCloneRepo            ExecutionType = "BatchCloneRepo"
	ExecBatchPullRepo             ExecutionType = "BatchPullRepo"
	ExecBatchRunProcedure         ExecutionType = "BatchRunProcedure"
	ExecBatchRunAction            ExecutionType = "BatchRunAction"
	ExecBatchDeployStack          ExecutionType = "BatchDeployStack"
	ExecBatchDeployStackIfChanged ExecutionType = "BatchDeployStackIfChanged"
	ExecBatchDestroyStack         ExecutionType = "BatchDestroyStack"
	ExecBatchRunSync              ExecutionType = "BatchRunSync"
)

// ExecuteParams is the flattened payload of ExecuteRequest. Each variant
// reads the fields it needs; the rest stay zero and are omitted on the wire.
type ExecuteParams struct {
	// Resource selectors, id or name.
	Deployment     string `json:"deployment,omitempty" bson:"deployment,omitempty"`
	Build          string `json:"build,omitempty" bson:"build,omitempty"`
	Repo           string `json:"repo,omitempty" bson:"repo,omitempty"`
	Procedure      string `json:"procedure,omitempty" bson:"procedure,omitempty"`
	Action         string `json:"action,omitempty" bson:"action,omitempty"`
	Stack          string `json:"stack,omitempty" bson:"stack,omitempty"`
	Sync           string `json:"sync,omitempty" bson:"sync,omitempty"`
	Alerter        string `json:"alerter,omitempty" bson:"alerter,omitempty"`
	ServerTemplate string `json:"server_template,omitempty" bson:"server_template,omitempty"`
	Server         string `json:"server,omitempty" bson:"server,omitempty"`

	// Container names the target of server container variants.
	Container string `json:"container,omitempty" bson:"container,omitempty"`

	// Services restricts stack variants to a subset of compose services.
	Services []string `json:"services,omitempty" bson:"services,omitempty"`

	// Pattern selects resources for Batch variants: comma-separated names
	// with '*' wildcards, or a regex wrapped in backslashes.
	Pattern string `json:"pattern,omitempty" bson:"pattern,omitempty"`

	// StopSignal/StopTime override stop behavior where supported.
	StopSignal TerminationSignal `json:"stop_signal,omitempty" bson:"stop_signal,omitempty"`
	StopTime   int64             `json:"stop_time,omitempty" bson:"stop_time,omitempty"`

	// Name is the instance name for LaunchServer.
	Name string `json:"name,omitempty" bson:"name,omitempty"`
}

// ExecuteRequest is the tagged execution request. It round-trips identically
// through JSON and BSON, so procedure stages persist it as configured.
type ExecuteRequest struct {
	Type   ExecutionType `json:"type" bson:"type"`
	Params ExecuteParams `json:"params" bson:"params"`
}

// IsBatch reports whether the variant fans out over a pattern.
func (r ExecuteRequest) IsBatch() bool {
	switch r.Type {
	case ExecBatchDeploy, ExecBatchDestroyDeployment, ExecBatchRunBuild,
		ExecBatchCloneRepo, ExecBatchPullRepo, ExecBatchRunProcedure,
		ExecBatchRunAction, ExecBatchDeployStack, ExecBatchDeployStackIfChanged,
		ExecBatchDestroyStack, ExecBatchRunSync:
		return true
	}
	return false
}

// Unbatch returns the per-resource variant of a batch type, with the given
// selector filled in.
func (r ExecuteRequest) Unbatch(selector string) ExecuteRequest {
	out := ExecuteRequest{Params: ExecuteParams{}}
	switch r.Type {
	case ExecBatchDeploy:
		out.Type = ExecDeploy
		out.Params.Deployment = selector
	case ExecBatchDestroyDeployment:
		out.Type = ExecDestroyDeployment
		out.Params.Deployment = selector
	case ExecBatchRunBuild:
		out.Type = ExecRunBuild
		out.Params.Build = selector
	case ExecBatchCloneRepo:
		out.Type = ExecCloneRepo
		out.Params.Repo = selector
	case ExecBatchPullRepo:
		out.Type = ExecPullRepo
		out.Params.Repo = selector
	case ExecBatchRunProcedure:
		out.Type = ExecRunProcedure
		out.Params.Procedure = selector
	case ExecBatchRunAction:
		out.Type = ExecRunAction
		out.Params.Action = selector
	case ExecBatchDeployStack:
		out.Type = ExecDeployStack
		out.Params.Stack = selector
	case ExecBatchDeployStackIfChanged:
		out.Type = ExecDeployStackIfChanged
		out.Params.Stack = selector
	case ExecBatchDestroyStack:
		out.Type = ExecDestroyStack
		out.Params.Stack = selector
	case ExecBatchRunSync:
		out.Type = ExecRunSync
		out.Params.Sync = selector
	default:
		out.Type = ExecNone
	}
	return out
}

// BatchKind returns the resource kind a batch variant's pattern matches over.
func (r ExecuteRequest) BatchKind() ResourceKind {
	switch r.Type {
	case ExecBatchDeploy, ExecBatchDestroyDeployment:
		return KindDeployment
	case ExecBatchRunBuild:
		return KindBuild
	case ExecBatchCloneRepo, ExecBatchPullRepo:
		return KindRepo
	case ExecBatchRunProcedure:
		return KindProcedure
	case ExecBatchRunAction:
		return KindAction
	case ExecBatchDeployStack, ExecBatchDeployStackIfChanged, ExecBatchDestroyStack:
		return KindStack
	case ExecBatchRunSync:
		return KindResourceSync
	default:
		return ""
	}
}

// WithTarget returns the request with its target selector replaced, the
// write counterpart of Selector. Batch variants and unknown types come back
// unchanged.
func (r ExecuteRequest) WithTarget(selector string) ExecuteRequest {
	if r.IsBatch() {
		return r
	}
	switch r.Type {
	case ExecDeploy, ExecStartDeployment, ExecRestartDeployment,
		ExecPauseDeployment, ExecUnpauseDeployment, ExecStopDeployment,
		ExecDestroyDeployment:
		r.Params.Deployment = selector
	case ExecRunBuild, ExecCancelBuild:
		r.Params.Build = selector
	case ExecCloneRepo, ExecPullRepo, ExecBuildRepo:
		r.Params.Repo = selector
	case ExecRunProcedure:
		r.Params.Procedure = selector
	case ExecRunAction:
		r.Params.Action = selector
	case ExecDeployStack, ExecDeployStackIfChanged, ExecPullStack,
		ExecStartStack, ExecRestartStack, ExecPauseStack, ExecUnpauseStack,
		ExecStopStack, ExecDestroyStack:
		r.Params.Stack = selector
	case ExecRunSync:
		r.Params.Sync = selector
	case ExecTestAlerter:
		r.Params.Alerter = selector
	case ExecLaunchServer:
		r.Params.ServerTemplate = selector
	case ExecStartContainer, ExecRestartContainer, ExecPauseContainer,
		ExecUnpauseContainer, ExecStopContainer, ExecDestroyContainer,
		ExecStopAllContainers, ExecPruneContainers, ExecPruneImages,
		ExecPruneNetworks, ExecPruneVolumes, ExecPruneBuilders, ExecPruneSystem:
		r.Params.Server = selector
	}
	return r
}

// Selector returns the resource kind the variant targets and the id-or-name
// selector from params. Batch variants return their kind and the pattern.
func (r ExecuteRequest) Selector() (ResourceKind, string) {
	if r.IsBatch() {
		return r.BatchKind(), r.Params.Pattern
	}
	switch r.Type {
	case ExecDeploy, ExecStartDeployment, ExecRestartDeployment,
		ExecPauseDeployment, ExecUnpauseDeployment, ExecStopDeployment,
		ExecDestroyDeployment:
		return KindDeployment, r.Params.Deployment
	case ExecRunBuild, ExecCancelBuild:
		return KindBuild, r.Params.Build
	case ExecCloneRepo, ExecPullRepo, ExecBuildRepo:
		return KindRepo, r.Params.Repo
	case ExecRunProcedure:
		return KindProcedure, r.Params.Procedure
	case ExecRunAction:
		return KindAction, r.Params.Action
	case ExecDeployStack, ExecDeployStackIfChanged, ExecPullStack,
		ExecStartStack, ExecRestartStack, ExecPauseStack, ExecUnpauseStack,
		ExecStopStack, ExecDestroyStack:
		return KindStack, r.Params.Stack
	case ExecRunSync:
		return KindResourceSync, r.Params.Sync
	case ExecTestAlerter:
		return KindAlerter, r.Params.Alerter
	case ExecLaunchServer:
		return KindServerTemplate, r.Params.ServerTemplate
	case ExecStartContainer, ExecRestartContainer, ExecPauseContainer,
		ExecUnpauseContainer, ExecStopContainer, ExecDestroyContainer,
		ExecStopAllContainers, ExecPruneContainers, ExecPruneImages,
		ExecPruneNetworks, ExecPruneVolumes, ExecPruneBuilders, ExecPruneSystem:
		return KindServer, r.Params.Server
	default:
		return "", ""
	}
}
