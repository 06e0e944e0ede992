// Package alert persists detected conditions and dispatches them to the
// configured alerter endpoints. Open alerts represent ongoing conditions;
// resolving one emits a follow-up notification at severity Ok.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

// dispatchTimeout bounds one endpoint delivery. A dead webhook must not hold
// up the monitor sweep.
const dispatchTimeout = 10 * time.Second

// Manager owns the alerts collection and endpoint delivery.
type Manager struct {
	db    *database.Client
	store *resource.Store
	http  *http.Client
}

func NewManager(db *database.Client, store *resource.Store) *Manager {
	return &Manager{
		db:    db,
		store: store,
		http:  &http.Client{Timeout: dispatchTimeout},
	}
}

// Open persists a new unresolved alert and dispatches it. Errors are logged,
// not returned: alerting failures must never fail the detecting operation.
func (m *Manager) Open(ctx context.Context, a types.Alert) {
	if a.TS == 0 {
		a.TS = types.NowMS()
	}
	res, err := m.db.Collections.Alerts.InsertOne(ctx, a)
	if err != nil {
		slog.Error("Failed to persist alert",
			"data_type", a.DataType, "target", a.Target.String(), "error", err)
		return
	}
	a.ID = database.InsertedObjectID(res)
	m.dispatch(ctx, a)
}

// OpenResolved persists an alert that is already resolved, used for
// point-in-time events (auto updates, schedule runs) that have no open phase.
func (m *Manager) OpenResolved(ctx context.Context, a types.Alert) {
	now := types.NowMS()
	if a.TS == 0 {
		a.TS = now
	}
	a.Resolved = true
	a.ResolvedTS = now
	res, err := m.db.Collections.Alerts.InsertOne(ctx, a)
	if err != nil {
		slog.Error("Failed to persist alert",
			"data_type", a.DataType, "target", a.Target.String(), "error", err)
		return
	}
	a.ID = database.InsertedObjectID(res)
	m.dispatch(ctx, a)
}

// Resolve closes every open alert of the given type on the target and, when
// at least one was open, dispatches a resolution notification at severity Ok.
func (m *Manager) Resolve(ctx context.Context, target types.ResourceTarget, dataType types.AlertDataType, data types.AlertData) {
	now := types.NowMS()
	res, err := m.db.Collections.Alerts.UpdateMany(ctx,
		bson.M{"resolved": false, "data_type": dataType, "target.type": target.Type, "target.id": target.ID},
		bson.M{"$set": bson.M{"resolved": true, "resolved_ts": now}})
	if err != nil {
		slog.Error("Failed to resolve alerts",
			"data_type", dataType, "target", target.String(), "error", err)
		return
	}
	if res.ModifiedCount == 0 {
		return
	}
	m.dispatch(ctx, types.Alert{
		TS:         now,
		Resolved:   true,
		ResolvedTS: now,
		Level:      types.SeverityOk,
		Target:     target,
		DataType:   dataType,
		Data:       data,
	})
}

// ResolveAll closes every open alert on the target without notifying, used
// when the resource itself is deleted.
func (m *Manager) ResolveAll(ctx context.Context, target types.ResourceTarget) {
	_, err := m.db.Collections.Alerts.UpdateMany(ctx,
		bson.M{"resolved": false, "target.type": target.Type, "target.id": target.ID},
		bson.M{"$set": bson.M{"resolved": true, "resolved_ts": types.NowMS()}})
	if err != nil {
		slog.Error("Failed to resolve alerts for deleted resource",
			"target", target.String(), "error", err)
	}
}

// ResolveStale closes open alerts whose target resource no longer exists.
// Runs once at startup, after the interrupted-update recovery.
func (m *Manager) ResolveStale(ctx context.Context) error {
	cur, err := m.db.Collections.Alerts.Find(ctx, bson.M{"resolved": false})
	if err != nil {
		return fmt.Errorf("failed to list open alerts: %w", err)
	}
	var open []types.Alert
	if err := cur.All(ctx, &open); err != nil {
		return fmt.Errorf("failed to decode open alerts: %w", err)
	}

	resolved := 0
	for _, a := range open {
		col, err := m.db.Collections.ForKind(a.Target.Type)
		if err != nil {
			continue
		}
		oid, err := database.ParseObjectID(a.Target.ID)
		if err != nil {
			continue
		}
		n, err := col.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return fmt.Errorf("failed to check alert target %s: %w", a.Target.String(), err)
		}
		if n > 0 {
			continue
		}
		_, err = m.db.Collections.Alerts.UpdateOne(ctx,
			bson.M{"_id": a.ID},
			bson.M{"$set": bson.M{"resolved": true, "resolved_ts": types.NowMS()}})
		if err != nil {
			return fmt.Errorf("failed to resolve stale alert %s: %w", a.ID.Hex(), err)
		}
		resolved++
	}
	if resolved > 0 {
		slog.Info("Resolved stale alerts for deleted resources", "count", resolved)
	}
	return nil
}

// Get loads one alert by id.
func (m *Manager) Get(ctx context.Context, id string) (*types.Alert, error) {
	oid, err := database.ParseObjectID(id)
	if err != nil {
		return nil, fmt.Errorf("alert %s: %w", id, types.ErrNotFound)
	}
	var a types.Alert
	if err := m.db.Collections.Alerts.FindOne(ctx, bson.M{"_id": oid}).Decode(&a); err != nil {
		return nil, fmt.Errorf("alert %s: %w", id, types.ErrNotFound)
	}
	return &a, nil
}

// List returns one page of alerts, newest first.
func (m *Manager) List(ctx context.Context, params types.ListAlertsParams) ([]types.Alert, error) {
	filter := bson.M{}
	if params.Target != nil {
		filter["target.type"] = params.Target.Type
		filter["target.id"] = params.Target.ID
	}
	if params.Resolved != nil {
		filter["resolved"] = *params.Resolved
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: -1}}).
		SetSkip(params.Page * types.AlertsPageSize).
		SetLimit(types.AlertsPageSize)
	cur, err := m.db.Collections.Alerts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	alerts := []types.Alert{}
	if err := cur.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}
	return alerts, nil
}

// Test sends a Test alert through the given alerter's endpoint, bypassing the
// enabled flag and filters so a disabled alerter can still be verified.
func (m *Manager) Test(ctx context.Context, alerter *resource.Alerter) error {
	a := types.Alert{
		TS:       types.NowMS(),
		Level:    types.SeverityOk,
		Target:   alerter.Target(types.KindAlerter),
		DataType: types.AlertTest,
		Data: types.AlertData{
			ID:   alerter.ID.Hex(),
			Name: alerter.Name,
		},
	}
	return m.send(ctx, alerter.Config.Endpoint, a)
}
