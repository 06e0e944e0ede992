// Package state assembles the process-wide shared state: database client,
// periphery client factory, action-state guards, monitoring caches, broadcast
// hubs, and the webhook lock sets. One State is constructed at startup and
// passed explicitly; there are no package-level singletons.
package state

import (
	"time"

	"github.com/komodo-sh/komodo/pkg/cache"
	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/periphery"
	"github.com/komodo-sh/komodo/pkg/types"
)

// expensiveReadTTL bounds how often the system info and process list RPCs hit
// an agent, protecting it from UI polling floods.
const expensiveReadTTL = 15 * time.Second

// State is the shared runtime state of the core.
type State struct {
	Config    *config.Config
	DB        *database.Client
	Periphery *periphery.Factory

	// Single-flight guards, one set per resource kind.
	ServerActions     *cache.ActionStates[types.ServerActionState]
	DeploymentActions *cache.ActionStates[types.DeploymentActionState]
	BuildActions      *cache.ActionStates[types.BuildActionState]
	RepoActions       *cache.ActionStates[types.RepoActionState]
	ProcedureActions  *cache.ActionStates[types.ProcedureActionState]
	ActionActions     *cache.ActionStates[types.ActionActionState]
	StackActions      *cache.ActionStates[types.StackActionState]
	SyncActions       *cache.ActionStates[types.SyncActionState]
	AlerterActions    *cache.ActionStates[types.AlerterActionState]
	TemplateActions   *cache.ActionStates[types.ServerTemplateActionState]

	// Monitoring caches, written by the monitor sweep.
	ServerStatus     *cache.StatusCache[types.ServerStatus]
	DeploymentStatus *cache.StatusCache[types.DeploymentStatus]
	StackStatus      *cache.StatusCache[types.StackStatus]

	// TTL caches over the two expensive periphery reads.
	SystemInfo *cache.TTLCache[string, types.SystemInformation]
	Processes  *cache.TTLCache[string, []types.SystemProcess]

	// UpdateHub broadcasts ids of created or modified updates.
	UpdateHub *cache.Hub[string]
	// CancelHub broadcasts build cancellations to in-flight RunBuild tasks.
	CancelHub *cache.Hub[types.BuildCancel]

	// WebhookLocks serializes webhook deliveries per resource, keyed
	// "<kind>:<id>", so back-to-back pushes queue instead of hitting the
	// busy check.
	WebhookLocks *cache.KeyedLocks

	// SentAlerts de-duplicates image-update alerts until the condition
	// clears, keyed by deployment id or "<stack-id>:<service>".
	SentAlerts *cache.DedupSet
}

// New wires the shared state.
func New(cfg *config.Config, db *database.Client) *State {
	return &State{
		Config:    cfg,
		DB:        db,
		Periphery: periphery.NewFactory(cfg.Passkey),

		ServerActions:     cache.NewActionStates[types.ServerActionState](),
		DeploymentActions: cache.NewActionStates[types.DeploymentActionState](),
		BuildActions:      cache.NewActionStates[types.BuildActionState](),
		RepoActions:       cache.NewActionStates[types.RepoActionState](),
		ProcedureActions:  cache.NewActionStates[types.ProcedureActionState](),
		ActionActions:     cache.NewActionStates[types.ActionActionState](),
		StackActions:      cache.NewActionStates[types.StackActionState](),
		SyncActions:       cache.NewActionStates[types.SyncActionState](),
		AlerterActions:    cache.NewActionStates[types.AlerterActionState](),
		TemplateActions:   cache.NewActionStates[types.ServerTemplateActionState](),

		ServerStatus:     cache.NewStatusCache[types.ServerStatus](),
		DeploymentStatus: cache.NewStatusCache[types.DeploymentStatus](),
		StackStatus:      cache.NewStatusCache[types.StackStatus](),

		SystemInfo: cache.NewTTLCache[string, types.SystemInformation](expensiveReadTTL),
		Processes:  cache.NewTTLCache[string, []types.SystemProcess](expensiveReadTTL),

		UpdateHub: cache.NewHub[string]("updates"),
		CancelHub: cache.NewHub[types.BuildCancel]("build-cancel"),

		WebhookLocks: cache.NewKeyedLocks(),
		SentAlerts:   cache.NewDedupSet(),
	}
}

// Busy reports whether any operation is in flight for the resource.
func (s *State) Busy(kind types.ResourceKind, id string) bool {
	switch kind {
	case types.KindServer:
		return s.ServerActions.Busy(id)
	case types.KindDeployment:
		return s.DeploymentActions.Busy(id)
	case types.KindBuild:
		return s.BuildActions.Busy(id)
	case types.KindRepo:
		return s.RepoActions.Busy(id)
	case types.KindProcedure:
		return s.ProcedureActions.Busy(id)
	case types.KindAction:
		return s.ActionActions.Busy(id)
	case types.KindStack:
		return s.StackActions.Busy(id)
	case types.KindResourceSync:
		return s.SyncActions.Busy(id)
	case types.KindAlerter:
		return s.AlerterActions.Busy(id)
	case types.KindServerTemplate:
		return s.TemplateActions.Busy(id)
	default:
		return false
	}
}

// RemoveActionState drops a deleted resource's action-state entry.
func (s *State) RemoveActionState(kind types.ResourceKind, id string) {
	switch kind {
	case types.KindServer:
		s.ServerActions.Remove(id)
		s.ServerStatus.Remove(id)
	case types.KindDeployment:
		s.DeploymentActions.Remove(id)
		s.DeploymentStatus.Remove(id)
	case types.KindBuild:
		s.BuildActions.Remove(id)
	case types.KindRepo:
		s.RepoActions.Remove(id)
	case types.KindProcedure:
		s.ProcedureActions.Remove(id)
	case types.KindAction:
		s.ActionActions.Remove(id)
	case types.KindStack:
		s.StackActions.Remove(id)
		s.StackStatus.Remove(id)
	case types.KindResourceSync:
		s.SyncActions.Remove(id)
	case types.KindAlerter:
		s.AlerterActions.Remove(id)
	case types.KindServerTemplate:
		s.TemplateActions.Remove(id)
	}
}
