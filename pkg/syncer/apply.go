package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/update"
)

// Apply executes the plan, appending one log per mutation to the update.
// Failures are logged and do not stop the run; the update's success reflects
// whether every log succeeded.
//
// Order: variables and user groups first (so interpolation and permissions
// are in place), then resources in dependency order, deletes last in reverse
// order. Procedures retry to a fixed point because they may reference each
// other.
func (s *Syncer) Apply(ctx context.Context, plan *Plan, ub *update.Builder) {
	s.applyVariables(ctx, plan, ub)
	s.applyUserGroups(ctx, plan, ub)

	for _, kind := range types.AllResourceKinds {
		if kind == types.KindProcedure {
			s.applyProcedures(ctx, plan, ub)
			continue
		}
		for _, c := range plan.Creates {
			if c.Kind == kind {
				s.applyCreate(ctx, c, ub)
			}
		}
		for _, u := range plan.Updates {
			if u.Kind == kind {
				s.applyUpdate(ctx, u, ub)
			}
		}
	}

	for i := len(types.AllResourceKinds) - 1; i >= 0; i-- {
		kind := types.AllResourceKinds[i]
		for _, d := range plan.Deletes {
			if d.Kind == kind {
				s.applyDelete(ctx, d, ub)
			}
		}
	}
}

// applyProcedures runs procedure creates and updates to a fixed point:
// procedures can reference each other, so a failed validation is retried
// after the rest of the round lands. Bounded by the procedure nesting cap.
func (s *Syncer) applyProcedures(ctx context.Context, plan *Plan, ub *update.Builder) {
	type pending struct {
		create *PlannedCreate
		update *PlannedUpdate
	}
	var remaining []pending
	for i := range plan.Creates {
		if plan.Creates[i].Kind == types.KindProcedure {
			remaining = append(remaining, pending{create: &plan.Creates[i]})
		}
	}
	for i := range plan.Updates {
		if plan.Updates[i].Kind == types.KindProcedure {
			remaining = append(remaining, pending{update: &plan.Updates[i]})
		}
	}

	for round := 0; round < types.MaxProcedureDepth && len(remaining) > 0; round++ {
		var failed []pending
		for _, p := range remaining {
			var err error
			if p.create != nil {
				err = s.create(ctx, *p.create)
			} else {
				err = s.update(ctx, *p.update)
			}
			if err != nil {
				failed = append(failed, p)
				continue
			}
			if p.create != nil {
				ub.AddSimple(ctx, "Create Procedure", fmt.Sprintf("created %s", p.create.Spec.Name))
			} else {
				ub.AddSimple(ctx, "Update Procedure", fmt.Sprintf("updated %s", p.update.Name))
			}
		}
		if len(failed) == len(remaining) {
			// No progress; surface each failure once.
			for _, p := range failed {
				name := ""
				stage := "Create Procedure"
				var err error
				if p.create != nil {
					name = p.create.Spec.Name
					err = s.create(ctx, *p.create)
				} else {
					name = p.update.Name
					stage = "Update Procedure"
					err = s.update(ctx, *p.update)
				}
				if err != nil {
					ub.AddError(ctx, stage, fmt.Errorf("%s: %w", name, err))
				}
			}
			return
		}
		remaining = failed
	}
}

func (s *Syncer) applyCreate(ctx context.Context, c PlannedCreate, ub *update.Builder) {
	if err := s.create(ctx, c); err != nil {
		ub.AddError(ctx, fmt.Sprintf("Create %s", c.Kind), fmt.Errorf("%s: %w", c.Spec.Name, err))
		return
	}
	ub.AddSimple(ctx, fmt.Sprintf("Create %s", c.Kind), fmt.Sprintf("created %s", c.Spec.Name))
}

func (s *Syncer) create(ctx context.Context, c PlannedCreate) error {
	handler, err := s.registry.Get(c.Kind)
	if err != nil {
		return err
	}
	tagIDs, err := s.ensureTagIDs(ctx, c.Spec.Tags)
	if err != nil {
		return err
	}
	config, err := json.Marshal(c.Partial)
	if err != nil {
		return err
	}
	_, err = handler.Create(ctx, types.CreateResourceParams{
		Name:        c.Spec.Name,
		Description: c.Spec.Description,
		Tags:        tagIDs,
		Config:      config,
	})
	return err
}

func (s *Syncer) applyUpdate(ctx context.Context, u PlannedUpdate, ub *update.Builder) {
	if err := s.update(ctx, u); err != nil {
		ub.AddError(ctx, fmt.Sprintf("Update %s", u.Kind), fmt.Errorf("%s: %w", u.Name, err))
		return
	}
	ub.AddSimple(ctx, fmt.Sprintf("Update %s", u.Kind), fmt.Sprintf("updated %s", u.Name))
}

func (s *Syncer) update(ctx context.Context, u PlannedUpdate) error {
	handler, err := s.registry.Get(u.Kind)
	if err != nil {
		return err
	}
	col, err := s.db.Collections.ForKind(u.Kind)
	if err != nil {
		return err
	}
	if len(u.Partial) > 0 {
		config, err := json.Marshal(u.Partial)
		if err != nil {
			return err
		}
		if _, _, err := handler.Update(ctx, u.ID, config); err != nil {
			return err
		}
	}
	if u.UpdateDescription {
		if err := resource.UpdateDescription(ctx, col, u.ID, u.Description); err != nil {
			return err
		}
	}
	if u.UpdateTags {
		tagIDs, err := s.ensureTagIDs(ctx, u.Tags)
		if err != nil {
			return err
		}
		if err := resource.SetTags(ctx, col, u.ID, tagIDs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) applyDelete(ctx context.Context, d PlannedDelete, ub *update.Builder) {
	handler, err := s.registry.Get(d.Kind)
	if err != nil {
		ub.AddError(ctx, fmt.Sprintf("Delete %s", d.Kind), err)
		return
	}
	row, err := handler.Delete(ctx, d.ID)
	if err != nil {
		ub.AddError(ctx, fmt.Sprintf("Delete %s", d.Kind), fmt.Errorf("%s: %w", d.Name, err))
		return
	}
	target := row.Target(d.Kind)
	if err := s.store.CleanupAfterDelete(ctx, target); err != nil {
		ub.AddError(ctx, fmt.Sprintf("Delete %s", d.Kind), err)
		return
	}
	s.state.RemoveActionState(d.Kind, d.ID)
	ub.AddSimple(ctx, fmt.Sprintf("Delete %s", d.Kind), fmt.Sprintf("deleted %s", d.Name))
}

func (s *Syncer) applyVariables(ctx context.Context, plan *Plan, ub *update.Builder) {
	for _, v := range plan.Variables {
		stage := "Update Variable"
		if v.Create {
			stage = "Create Variable"
		}
		_, err := s.db.Collections.Variables.ReplaceOne(ctx,
			bson.M{"_id": v.Variable.Name}, v.Variable,
			options.Replace().SetUpsert(true))
		if err != nil {
			ub.AddError(ctx, stage, fmt.Errorf("%s: %w", v.Variable.Name, err))
			continue
		}
		ub.AddSimple(ctx, stage, fmt.Sprintf("%s %s", verbOf(v.Create), v.Variable.Name))
	}
	for _, name := range plan.VarDeletes {
		_, err := s.db.Collections.Variables.DeleteOne(ctx, bson.M{"_id": name})
		if err != nil {
			ub.AddError(ctx, "Delete Variable", fmt.Errorf("%s: %w", name, err))
			continue
		}
		ub.AddSimple(ctx, "Delete Variable", fmt.Sprintf("deleted %s", name))
	}
}

func (s *Syncer) applyUserGroups(ctx context.Context, plan *Plan, ub *update.Builder) {
	for _, g := range plan.UserGroups {
		stage := "Update UserGroup"
		if g.Create {
			stage = "Create UserGroup"
		}
		group := types.UserGroup{
			Name:      g.Spec.Name,
			Users:     g.UserIDs,
			All:       g.Spec.All,
			UpdatedAt: types.NowMS(),
		}
		var err error
		if g.Create {
			_, err = s.db.Collections.UserGroups.InsertOne(ctx, group)
		} else {
			_, err = s.db.Collections.UserGroups.UpdateOne(ctx,
				bson.M{"name": g.Spec.Name},
				bson.M{"$set": bson.M{
					"users":      g.UserIDs,
					"all":        g.Spec.All,
					"updated_at": group.UpdatedAt,
				}})
		}
		if err != nil {
			ub.AddError(ctx, stage, fmt.Errorf("%s: %w", g.Spec.Name, err))
			continue
		}
		ub.AddSimple(ctx, stage, fmt.Sprintf("%s %s", verbOf(g.Create), g.Spec.Name))
	}
	for _, name := range plan.GroupDeletes {
		_, err := s.db.Collections.UserGroups.DeleteOne(ctx, bson.M{"name": name})
		if err != nil {
			ub.AddError(ctx, "Delete UserGroup", fmt.Errorf("%s: %w", name, err))
			continue
		}
		ub.AddSimple(ctx, "Delete UserGroup", fmt.Sprintf("deleted %s", name))
	}
}

func verbOf(create bool) string {
	if create {
		return "created"
	}
	return "updated"
}

// ensureTagIDs resolves tag names onto ids, creating tags that do not exist.
func (s *Syncer) ensureTagIDs(ctx context.Context, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		var tag types.Tag
		err := s.db.Collections.Tags.FindOne(ctx, bson.M{"name": name}).Decode(&tag)
		if err == nil {
			ids = append(ids, tag.ID.Hex())
			continue
		}
		res, err := s.db.Collections.Tags.InsertOne(ctx, types.Tag{Name: name})
		if err != nil {
			return nil, fmt.Errorf("failed to create tag %q: %w", name, err)
		}
		if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
			ids = append(ids, oid.Hex())
		}
	}
	return ids, nil
}
