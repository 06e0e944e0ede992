// Package update owns the append-only journal of operations. Every
// state-changing operation creates one Update before its first side effect,
// appends logs as it proceeds, and finalizes exactly once. Observers follow
// progress through the broadcast hub.
package update

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/komodo-sh/komodo/pkg/cache"
	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/interpolate"
	"github.com/komodo-sh/komodo/pkg/types"
)

// Journal creates and persists updates.
type Journal struct {
	db  *database.Client
	hub *cache.Hub[string]
}

// NewJournal creates a journal publishing ids to the hub.
func NewJournal(db *database.Client, hub *cache.Hub[string]) *Journal {
	return &Journal{db: db, hub: hub}
}

// Get loads one update by id.
func (j *Journal) Get(ctx context.Context, id string) (*types.Update, error) {
	oid, err := database.ParseObjectID(id)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", id, types.ErrNotFound)
	}
	var u types.Update
	if err := j.db.Collections.Updates.FindOne(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		return nil, fmt.Errorf("update %s: %w", id, types.ErrNotFound)
	}
	return &u, nil
}

// List pages updates newest first, optionally narrowed to one target or a
// set of operations.
func (j *Journal) List(ctx context.Context, params types.ListUpdatesParams) ([]types.Update, error) {
	filter := bson.M{}
	if params.Target != nil {
		filter["target.type"] = params.Target.Type
		filter["target.id"] = params.Target.ID
	}
	if len(params.Operations) > 0 {
		filter["operation"] = bson.M{"$in": params.Operations}
	}
	page := params.Page
	if page < 0 {
		page = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "start_ts", Value: -1}}).
		SetSkip(page * types.UpdatesPageSize).
		SetLimit(types.UpdatesPageSize)

	cur, err := j.db.Collections.Updates.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list updates: %w", err)
	}
	updates := []types.Update{}
	if err := cur.All(ctx, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return updates, nil
}

// InitObserver is notified with each builder the journal creates under a
// context carrying it. The execution engine uses this to hand the InProgress
// record back to the caller of a detached operation while the work proceeds.
type InitObserver func(*Builder)

type initObserverKey struct{}

// WithInitObserver returns a context under which Init notifies the observer.
// The observer is called synchronously, before the operation's first side
// effect.
func WithInitObserver(ctx context.Context, obs InitObserver) context.Context {
	return context.WithValue(ctx, initObserverKey{}, obs)
}

// Init persists a new InProgress update and returns its builder. This must
// happen before any side effect of the operation.
func (j *Journal) Init(
	ctx context.Context,
	operation types.Operation,
	target types.ResourceTarget,
	operator string,
) (*Builder, error) {
	u := types.Update{
		Operation: operation,
		Target:    target,
		Operator:  operator,
		StartTS:   types.NowMS(),
		Status:    types.UpdateInProgress,
		Logs:      []types.Log{},
	}
	res, err := j.db.Collections.Updates.InsertOne(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to create update: %w", err)
	}
	u.ID = database.InsertedObjectID(res)

	j.hub.Publish(u.ID.Hex())

	b := &Builder{journal: j, update: u}
	if obs, ok := ctx.Value(initObserverKey{}).(InitObserver); ok {
		obs(b)
	}
	return b, nil
}

// Builder accumulates one update's logs and finalizes it. Not safe for
// concurrent use; an operation appends from a single goroutine.
type Builder struct {
	journal  *Journal
	update   types.Update
	redactor *interpolate.Redactor

	finalized   bool
	forcedError bool
}

// ID returns the update's id.
func (b *Builder) ID() string {
	return b.update.ID.Hex()
}

// Update returns a copy of the current record.
func (b *Builder) Update() types.Update {
	return b.update
}

// SetRedactor installs a secret redactor applied to every subsequently
// appended log.
func (b *Builder) SetRedactor(r *interpolate.Redactor) {
	b.redactor = r
}

// SetVersion records the version a build run produced.
func (b *Builder) SetVersion(v types.Version) {
	b.update.Version = &v
}

// SetCommitHash records the commit a git operation resulted in.
func (b *Builder) SetCommitHash(hash string) {
	b.update.CommitHash = hash
}

// SetOtherData attaches operation-specific extra data.
func (b *Builder) SetOtherData(data string) {
	b.update.OtherData = data
}

// AddLog appends one log and flushes, so observers see progress before the
// operation finishes.
func (b *Builder) AddLog(ctx context.Context, log types.Log) {
	if b.redactor != nil {
		log = b.redactor.RedactLog(log)
	}
	b.update.Logs = append(b.update.Logs, log)
	b.flush(ctx)
}

// AddLogs appends several logs with a single flush.
func (b *Builder) AddLogs(ctx context.Context, logs []types.Log) {
	for _, log := range logs {
		if b.redactor != nil {
			log = b.redactor.RedactLog(log)
		}
		b.update.Logs = append(b.update.Logs, log)
	}
	b.flush(ctx)
}

// AddError appends a failed log for the stage carrying the error text.
func (b *Builder) AddError(ctx context.Context, stage string, err error) {
	now := types.NowMS()
	b.AddLog(ctx, types.ErrorLog(stage, err, now, now))
}

// AddSimple appends a successful single-line log for the stage.
func (b *Builder) AddSimple(ctx context.Context, stage, message string) {
	now := types.NowMS()
	b.AddLog(ctx, types.SimpleLog(stage, message, now, now))
}

// ForceFailure marks the update failed regardless of log outcomes, used when
// the failure has no log of its own (e.g. cancellation).
func (b *Builder) ForceFailure() {
	b.forcedError = true
}

// Finalized reports whether Finalize has run.
func (b *Builder) Finalized() bool {
	return b.finalized
}

// Finalize sets the terminal status and success, persists, and returns the
// finished record. Safe to call more than once; later calls are no-ops.
func (b *Builder) Finalize(ctx context.Context) types.Update {
	if b.finalized {
		return b.update
	}
	b.finalized = true
	b.update.EndTS = types.NowMS()
	b.update.Status = types.UpdateComplete
	b.update.Success = !b.forcedError && b.update.AllLogsSuccess()
	b.flush(ctx)
	return b.update
}

// flush persists the current record and broadcasts the id.
func (b *Builder) flush(ctx context.Context) {
	_, err := b.journal.db.Collections.Updates.ReplaceOne(ctx,
		bson.M{"_id": b.update.ID}, b.update)
	if err != nil {
		// The operation must not die because an observer write failed; the
		// next flush retries with the full log set.
		slog.Error("Failed to flush update",
			"update_id", b.update.ID.Hex(),
			"operation", b.update.Operation,
			"error", err)
		return
	}
	b.journal.hub.Publish(b.update.ID.Hex())
}
