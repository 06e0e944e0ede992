package types

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UpdateStatus is the lifecycle state of an Update document.
type UpdateStatus string

const (
	UpdateQueued     UpdateStatus = "Queued"
	UpdateInProgress UpdateStatus = "InProgress"
	UpdateComplete   UpdateStatus = "Complete"
)

// Operation names what an Update did. Values are part of the wire contract.
type Operation string

const (
	OpNone Operation = "None"

	// Resource CRUD, one trio per kind.
	OpCreateServer         Operation = "CreateServer"
	OpUpdateServer         Operation = "UpdateServer"
	OpDeleteServer         Operation = "DeleteServer"
	OpRenameServer         Operation = "RenameServer"
	OpCreateDeployment     Operation = "CreateDeployment"
	OpUpdateDeployment     Operation = "UpdateDeployment"
	OpDeleteDeployment     Operation = "DeleteDeployment"
	OpRenameDeployment     Operation = "RenameDeployment"
	OpCreateBuild          Operation = "CreateBuild"
	OpUpdateBuild          Operation = "UpdateBuild"
	OpDeleteBuild          Operation = "DeleteBuild"
	OpRenameBuild          Operation = "RenameBuild"
	OpCreateRepo           Operation = "CreateRepo"
	OpUpdateRepo           Operation = "UpdateRepo"
	OpDeleteRepo           Operation = "DeleteRepo"
	OpRenameRepo           Operation = "RenameRepo"
	OpCreateProcedure      Operation = "CreateProcedure"
	OpUpdateProcedure      Operation = "UpdateProcedure"
	OpDeleteProcedure      Operation = "DeleteProcedure"
	OpRenameProcedure      Operation = "RenameProcedure"
	OpCreateAction         Operation = "CreateAction"
	OpUpdateAction         Operation = "UpdateAction"
	OpDeleteAction         Operation = "DeleteAction"
	OpRenameAction         Operation = "RenameAction"
	OpCreateStack          Operation = "CreateStack"
	OpUpdateStack          Operation = "UpdateStack"
	OpDeleteStack          Operation = "DeleteStack"
	OpRenameStack          Operation = "RenameStack"
	OpCreateResourceSync   Operation = "CreateResourceSync"
	OpUpdateResourceSync   Operation = "UpdateResourceSync"
	OpDeleteResourceSync   Operation = "DeleteResourceSync"
	OpRenameResourceSync   Operation = "RenameResourceSync"
	OpCreateBuilder        Operation = "CreateBuilder"
	OpUpdateBuilder        Operation = "UpdateBuilder"
	OpDeleteBuilder        Operation = "DeleteBuilder"
	OpRenameBuilder        Operation = "RenameBuilder"
	OpCreateAlerter        Operation = "CreateAlerter"
	OpUpdateAlerter        Operation = "UpdateAlerter"
	OpDeleteAlerter        Operation = "DeleteAlerter"
	OpRenameAlerter        Operation = "RenameAlerter"
	OpCreateServerTemplate Operation = "CreateServerTemplate"
	OpUpdateServerTemplate Operation = "UpdateServerTemplate"
	OpDeleteServerTemplate Operation = "DeleteServerTemplate"
	OpRenameServerTemplate Operation = "RenameServerTemplate"

	// Executions.
	OpRunBuild             Operation = "RunBuild"
	OpCancelBuild          Operation = "CancelBuild"
	OpDeploy               Operation = "Deploy"
	OpStartDeployment      Operation = "StartDeployment"
	OpRestartDeployment    Operation = "RestartDeployment"
	OpPauseDeployment      Operation = "PauseDeployment"
	OpUnpauseDeployment    Operation = "UnpauseDeployment"
	OpStopDeployment       Operation = "StopDeployment"
	OpDestroyDeployment    Operation = "DestroyDeployment"
	OpCloneRepo            Operation = "CloneRepo"
	OpPullRepo             Operation = "PullRepo"
	OpBuildRepo            Operation = "BuildRepo"
	OpRunProcedure         Operation = "RunProcedure"
	OpRunAction            Operation = "RunAction"
	OpDeployStack          Operation = "DeployStack"
	OpStartStack           Operation = "StartStack"
	OpRestartStack         Operation = "RestartStack"
	OpPauseStack           Operation = "PauseStack"
	OpUnpauseStack         Operation = "UnpauseStack"
	OpStopStack            Operation = "StopStack"
	OpDestroyStack         Operation = "DestroyStack"
	OpPullStack            Operation = "PullStack"
	OpRunSync              Operation = "RunSync"
	OpCommitSync           Operation = "CommitSync"
	OpTestAlerter          Operation = "TestAlerter"
	OpLaunchServer         Operation = "LaunchServer"

	// Server-scoped container ops and prunes.
	OpStartContainer    Operation = "StartContainer"
	OpRestartContainer  Operation = "RestartContainer"
	OpPauseContainer    Operation = "PauseContainer"
	OpUnpauseContainer  Operation = "UnpauseContainer"
	OpStopContainer     Operation = "StopContainer"
	OpDestroyContainer  Operation = "DestroyContainer"
	OpStopAllContainers Operation = "StopAllContainers"
	OpPruneContainers   Operation = "PruneContainers"
	OpPruneImages       Operation = "PruneImages"
	OpPruneNetworks     Operation = "PruneNetworks"
	OpPruneVolumes      Operation = "PruneVolumes"
	OpPruneBuilders     Operation = "PruneBuilders"
	OpPruneSystem       Operation = "PruneSystem"

	// System scope.
	OpCreateVariable      Operation = "CreateVariable"
	OpUpdateVariableValue Operation = "UpdateVariableValue"
	OpDeleteVariable      Operation = "DeleteVariable"
)

// Log is one command's captured output within an Update.
type Log struct {
	Stage string `json:"stage" bson:"stage"`
	// Command is the invocation as run, after secret redaction.
	Command string `json:"command" bson:"command"`
	Stdout  string `json:"stdout" bson:"stdout"`
	Stderr  string `json:"stderr" bson:"stderr"`
	Success bool   `json:"success" bson:"success"`
	StartTS int64  `json:"start_ts" bson:"start_ts"`
	EndTS   int64  `json:"end_ts" bson:"end_ts"`
}

// SimpleLog builds a successful single-stage log with stdout only.
func SimpleLog(stage, stdout string, startTS, endTS int64) Log {
	return Log{Stage: stage, Stdout: stdout, Success: true, StartTS: startTS, EndTS: endTS}
}

// ErrorLog builds a failed log carrying the error text on stderr.
func ErrorLog(stage string, err error, startTS, endTS int64) Log {
	return Log{Stage: stage, Stderr: err.Error(), Success: false, StartTS: startTS, EndTS: endTS}
}

// Update is the audit record of one operation. It is persisted with status
// InProgress before any side effects run, and finalized exactly once.
type Update struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Operation Operation          `json:"operation" bson:"operation"`
	Target    ResourceTarget     `json:"target" bson:"target"`
	// Operator is the id of the initiating user (possibly a system user).
	Operator string       `json:"operator" bson:"operator"`
	StartTS  int64        `json:"start_ts" bson:"start_ts"`
	EndTS    int64        `json:"end_ts,omitempty" bson:"end_ts,omitempty"`
	Status   UpdateStatus `json:"status" bson:"status"`
	Success  bool         `json:"success" bson:"success"`
	Logs     []Log        `json:"logs" bson:"logs"`
	// Version is set by RunBuild to the version that was built.
	Version *Version `json:"version,omitempty" bson:"version,omitempty"`
	// CommitHash is set by repo operations to the resulting commit.
	CommitHash string `json:"commit_hash,omitempty" bson:"commit_hash,omitempty"`
	// OtherData carries operation-specific extras (e.g. provisioned
	// instance ids) that don't warrant their own field.
	OtherData string `json:"other_data,omitempty" bson:"other_data,omitempty"`
}

// AllLogsSuccess reports whether every log in the update succeeded. Value
// receiver: callers chain it off copies returned by the update builder.
func (u Update) AllLogsSuccess() bool {
	for _, l := range u.Logs {
		if !l.Success {
			return false
		}
	}
	return true
}

// UpdateListItem is the projection returned by update list queries; logs are
// omitted to keep the payload small.
type UpdateListItem struct {
	ID        string         `json:"id"`
	Operation Operation      `json:"operation"`
	Target    ResourceTarget `json:"target"`
	Operator  string         `json:"operator"`
	StartTS   int64          `json:"start_ts"`
	Status    UpdateStatus   `json:"status"`
	Success   bool           `json:"success"`
	Version   *Version       `json:"version,omitempty"`
}

// Version is a semantic version triplet.
type Version struct {
	Major int `json:"major" bson:"major"`
	Minor int `json:"minor" bson:"minor"`
	Patch int `json:"patch" bson:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Increment returns the version with patch bumped, as applied by builds
// configured to auto-increment.
func (v Version) Increment() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// IsZero reports whether the version is 0.0.0.
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Patch == 0
}
