// Package schedule runs procedures and actions on their cron expressions.
// The scheduler reconciles its cron entries against the database on an
// interval, so config edits, syncs, and deletions take effect without a
// restart. Scheduled runs execute as the system user and journal like any
// other execution.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/komodo-sh/komodo/pkg/alert"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

// reloadInterval bounds how stale the entry set can get after a config edit.
const reloadInterval = time.Minute

// runTimeout bounds one scheduled execution.
const runTimeout = time.Hour

// Runner runs the synthesized requests. Implemented by the execution engine.
type Runner interface {
	ExecuteAsSystem(ctx context.Context, username string, req types.ExecuteRequest) (types.Update, error)
}

// job is one schedulable resource's desired entry.
type job struct {
	kind       types.ResourceKind
	id         string
	name       string
	spec       string
	raiseOnRun bool
}

// key is the reconcile identity: same key + same spec means keep the entry.
func (j job) key() string {
	return fmt.Sprintf("%s:%s", j.kind, j.id)
}

// Scheduler owns the cron runtime and its reconcile loop.
type Scheduler struct {
	store  *resource.Store
	alerts *alert.Manager
	exec   Runner

	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	specs   map[string]string

	cancel context.CancelFunc
	done   chan struct{}
}

// New wires the scheduler. Start launches it.
func New(store *resource.Store, alerts *alert.Manager, exec Runner) *Scheduler {
	return &Scheduler{
		store:   store,
		alerts:  alerts,
		exec:    exec,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		specs:   make(map[string]string),
	}
}

// Start launches the cron runtime and the reconcile loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	s.cron.Start()
	go s.run(ctx)

	slog.Info("Scheduler started", "reload_interval", reloadInterval)
}

// Stop halts scheduling. In-flight runs finish on their own deadline.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cron.Stop()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.Reload(ctx)
	ticker := time.NewTicker(reloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reload(ctx)
		}
	}
}

// Reload reconciles cron entries against the database.
func (s *Scheduler) Reload(ctx context.Context) {
	desired, err := s.desiredJobs(ctx)
	if err != nil {
		slog.Error("Failed to load schedules", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entryID := range s.entries {
		j, keep := desired[key]
		if keep && j.spec == s.specs[key] {
			continue
		}
		s.cron.Remove(entryID)
		delete(s.entries, key)
		delete(s.specs, key)
	}

	for key, j := range desired {
		if _, exists := s.entries[key]; exists {
			continue
		}
		j := j
		entryID, err := s.cron.AddFunc(j.spec, func() { s.runJob(j) })
		if err != nil {
			slog.Error("Rejected schedule",
				"kind", j.kind, "name", j.name, "spec", j.spec, "error", err)
			continue
		}
		s.entries[key] = entryID
		s.specs[key] = j.spec
		slog.Info("Scheduled", "kind", j.kind, "name", j.name, "spec", j.spec)
	}
}

// NextRun reports when the resource's schedule next fires. The zero time and
// false mean the resource has no active schedule.
func (s *Scheduler) NextRun(kind types.ResourceKind, id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, ok := s.entries[fmt.Sprintf("%s:%s", kind, id)]
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(entryID).Next
	return next, !next.IsZero()
}

// desiredJobs lists every procedure and action with an enabled schedule.
func (s *Scheduler) desiredJobs(ctx context.Context) (map[string]job, error) {
	desired := make(map[string]job)

	procedures, err := s.store.Procedures(ctx, resource.ListQuery{})
	if err != nil {
		return nil, err
	}
	for i := range procedures {
		p := &procedures[i]
		if !p.Config.ScheduleEnabled || p.Config.Schedule == "" {
			continue
		}
		j := job{
			kind:       types.KindProcedure,
			id:         p.ID.Hex(),
			name:       p.Name,
			spec:       cronSpec(p.Config.Schedule, p.Config.ScheduleTimezone),
			raiseOnRun: p.Config.ScheduleAlert,
		}
		desired[j.key()] = j
	}

	actions, err := s.store.Actions(ctx, resource.ListQuery{})
	if err != nil {
		return nil, err
	}
	for i := range actions {
		a := &actions[i]
		if !a.Config.ScheduleEnabled || a.Config.Schedule == "" {
			continue
		}
		j := job{
			kind:       types.KindAction,
			id:         a.ID.Hex(),
			name:       a.Name,
			spec:       cronSpec(a.Config.Schedule, a.Config.ScheduleTimezone),
			raiseOnRun: a.Config.ScheduleAlert,
		}
		desired[j.key()] = j
	}
	return desired, nil
}

// cronSpec binds a timezone into the expression the way the cron parser
// expects it.
func cronSpec(schedule, timezone string) string {
	if timezone == "" {
		return schedule
	}
	return "CRON_TZ=" + timezone + " " + schedule
}

// runJob executes one scheduled run as the system user.
func (s *Scheduler) runJob(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	req := types.ExecuteRequest{Type: types.ExecRunProcedure,
		Params: types.ExecuteParams{Procedure: j.id}}
	if j.kind == types.KindAction {
		req = types.ExecuteRequest{Type: types.ExecRunAction,
			Params: types.ExecuteParams{Action: j.id}}
	}

	u, err := s.exec.ExecuteAsSystem(ctx, types.SystemUserSystem, req)
	if err != nil {
		slog.Error("Scheduled run refused", "kind", j.kind, "name", j.name, "error", err)
		return
	}
	if !u.Success {
		slog.Warn("Scheduled run failed",
			"kind", j.kind, "name", j.name, "update_id", u.ID.Hex())
	}

	if j.raiseOnRun {
		level := types.SeverityOk
		if !u.Success {
			level = types.SeverityWarning
		}
		s.alerts.OpenResolved(ctx, types.Alert{
			TS:       types.NowMS(),
			Level:    level,
			Target:   types.ResourceTarget{Type: j.kind, ID: j.id},
			DataType: types.AlertScheduleRun,
			Data:     types.AlertData{Name: j.name},
		})
	}
}
