package syncer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

// PlannedCreate declares a resource that does not exist yet.
type PlannedCreate struct {
	Kind types.ResourceKind
	Spec types.ResourceSpec
	// Partial is the declared config, refs normalized to ids.
	Partial types.Partial
}

// PlannedUpdate brings an existing resource in line with its declaration.
type PlannedUpdate struct {
	Kind types.ResourceKind
	ID   string
	Name string
	// Partial applies the config diff; empty when only description or tags
	// changed.
	Partial types.Partial
	Diff    resource.ConfigDiff

	UpdateDescription bool
	Description       string

	UpdateTags bool
	// Tags are the declared tag names; missing tags are created on apply.
	Tags []string
}

// PlannedDelete removes a resource present in the database but absent from
// the declaration.
type PlannedDelete struct {
	Kind types.ResourceKind
	ID   string
	Name string
}

// PlannedVariable upserts one declared variable.
type PlannedVariable struct {
	Variable types.Variable
	// Create distinguishes create from update in logs and pending views.
	Create bool
}

// PlannedUserGroup upserts one declared user group. UserIDs are resolved
// from the declared usernames.
type PlannedUserGroup struct {
	Spec    types.UserGroupSpec
	UserIDs []string
	Create  bool
}

// Plan is the full set of mutations one sync run would perform.
type Plan struct {
	Creates []PlannedCreate
	Updates []PlannedUpdate
	Deletes []PlannedDelete

	Variables  []PlannedVariable
	VarDeletes []string

	UserGroups   []PlannedUserGroup
	GroupDeletes []string
}

// IsEmpty reports whether the plan performs no mutation.
func (p *Plan) IsEmpty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0 &&
		len(p.Variables) == 0 && len(p.VarDeletes) == 0 &&
		len(p.UserGroups) == 0 && len(p.GroupDeletes) == 0
}

// Pending renders the plan for storage on the sync's info.
func (p *Plan) Pending() types.PendingSyncUpdates {
	var pending types.PendingSyncUpdates
	for _, c := range p.Creates {
		pending.Creates = append(pending.Creates, types.PendingChange{
			Kind: string(c.Kind),
			Name: c.Spec.Name,
			Diff: renderPartial(c.Partial),
		})
	}
	for _, u := range p.Updates {
		diff := u.Diff.Render()
		if u.UpdateDescription {
			diff += "description changed\n"
		}
		if u.UpdateTags {
			diff += fmt.Sprintf("tags: %s\n", strings.Join(u.Tags, ", "))
		}
		pending.Updates = append(pending.Updates, types.PendingChange{
			Kind: string(u.Kind),
			Name: u.Name,
			Diff: diff,
		})
	}
	for _, d := range p.Deletes {
		pending.Deletes = append(pending.Deletes, types.PendingChange{
			Kind: string(d.Kind),
			Name: d.Name,
		})
	}
	for _, v := range p.Variables {
		change := types.PendingChange{Kind: "Variable", Name: v.Variable.Name}
		if v.Create {
			pending.Creates = append(pending.Creates, change)
		} else {
			pending.Updates = append(pending.Updates, change)
		}
	}
	for _, name := range p.VarDeletes {
		pending.Deletes = append(pending.Deletes, types.PendingChange{Kind: "Variable", Name: name})
	}
	for _, g := range p.UserGroups {
		change := types.PendingChange{Kind: "UserGroup", Name: g.Spec.Name}
		if g.Create {
			pending.Creates = append(pending.Creates, change)
		} else {
			pending.Updates = append(pending.Updates, change)
		}
	}
	for _, name := range p.GroupDeletes {
		pending.Deletes = append(pending.Deletes, types.PendingChange{Kind: "UserGroup", Name: name})
	}
	return pending
}

func renderPartial(partial types.Partial) string {
	fields := make([]string, 0, len(partial))
	for f := range partial {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: %s\n", f, string(partial[f]))
	}
	return b.String()
}

// tagIndex resolves tags both ways during planning.
type tagIndex struct {
	byID   map[string]types.Tag
	byName map[string]types.Tag
}

func (s *Syncer) loadTags(ctx context.Context) (*tagIndex, error) {
	cur, err := s.db.Collections.Tags.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	var tags []types.Tag
	if err := cur.All(ctx, &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	idx := &tagIndex{
		byID:   make(map[string]types.Tag, len(tags)),
		byName: make(map[string]types.Tag, len(tags)),
	}
	for _, t := range tags {
		idx.byID[t.ID.Hex()] = t
		idx.byName[t.Name] = t
	}
	return idx, nil
}

// names maps stored tag ids onto names, dropping dangling ids.
func (idx *tagIndex) names(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if t, ok := idx.byID[id]; ok {
			names = append(names, t.Name)
		}
	}
	return names
}

// matchIDs resolves the MatchTags filter (names or ids) onto ids. Unknown
// tags fail the plan: a typo must not widen the delete scope.
func (idx *tagIndex) matchIDs(matchTags []string) ([]string, error) {
	ids := make([]string, 0, len(matchTags))
	for _, sel := range matchTags {
		if t, ok := idx.byName[sel]; ok {
			ids = append(ids, t.ID.Hex())
			continue
		}
		if _, ok := idx.byID[sel]; ok {
			ids = append(ids, sel)
			continue
		}
		return nil, types.NewValidationError("match_tags", fmt.Sprintf("unknown tag %q", sel))
	}
	return ids, nil
}

func carriesAll(tagIDs, required []string) bool {
	has := make(map[string]bool, len(tagIDs))
	for _, id := range tagIDs {
		has[id] = true
	}
	for _, id := range required {
		if !has[id] {
			return false
		}
	}
	return true
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, s := range a {
		set[s]++
	}
	for _, s := range b {
		set[s]--
		if set[s] < 0 {
			return false
		}
	}
	return true
}

// BuildPlan computes the mutations that bring the database in line with the
// declaration. Nothing is written.
func (s *Syncer) BuildPlan(ctx context.Context, sync *resource.ResourceSync, file *types.ResourceFile) (*Plan, error) {
	cfg := sync.Config
	plan := &Plan{}

	tags, err := s.loadTags(ctx)
	if err != nil {
		return nil, err
	}
	matchIDs, err := tags.matchIDs(cfg.MatchTags)
	if err != nil {
		return nil, err
	}

	if cfg.IncludeResources {
		for _, kind := range types.AllResourceKinds {
			if err := s.planKind(ctx, plan, sync, kind, file, tags, matchIDs); err != nil {
				return nil, fmt.Errorf("%s: %w", kind, err)
			}
		}
	}
	if cfg.IncludeVariables {
		if err := s.planVariables(ctx, plan, cfg, file); err != nil {
			return nil, err
		}
	}
	if cfg.IncludeUserGroups {
		if err := s.planUserGroups(ctx, plan, cfg, file); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (s *Syncer) planKind(
	ctx context.Context,
	plan *Plan,
	sync *resource.ResourceSync,
	kind types.ResourceKind,
	file *types.ResourceFile,
	tags *tagIndex,
	matchIDs []string,
) error {
	handler, err := s.registry.Get(kind)
	if err != nil {
		return err
	}
	rows, err := handler.List(ctx, resource.ListQuery{})
	if err != nil {
		return err
	}
	byName := make(map[string]*resource.Row, len(rows))
	for i := range rows {
		byName[rows[i].Name] = &rows[i]
	}

	specs := file.SpecsFor(kind)
	declared := make(map[string]bool, len(specs))

	for _, spec := range specs {
		if spec.Name == "" {
			return types.NewValidationError("name", "declared resource is missing a name")
		}
		declared[spec.Name] = true

		partial, err := partialFromSpec(spec.Config)
		if err != nil {
			return fmt.Errorf("%s: %w", spec.Name, err)
		}
		if err := s.normalizeRefs(ctx, kind, partial); err != nil {
			return fmt.Errorf("%s: %w", spec.Name, err)
		}

		row, exists := byName[spec.Name]
		if !exists {
			plan.Creates = append(plan.Creates, PlannedCreate{
				Kind:    kind,
				Spec:    spec,
				Partial: partial,
			})
			continue
		}
		if !carriesAll(row.Tags, matchIDs) {
			// Exists outside the sync's tag scope; leave it alone.
			continue
		}

		// Overlay the declaration onto the kind's defaults, so fields absent
		// from the declaration diff back to their default.
		desired, err := resource.ToPartial(handler.DefaultConfig())
		if err != nil {
			return err
		}
		for field, value := range partial {
			desired[field] = value
		}
		diff, err := handler.Preview(ctx, row.ID, desired)
		if err != nil {
			return fmt.Errorf("%s: %w", spec.Name, err)
		}

		descChanged := spec.Description != row.Description
		tagsChanged := !sameStringSet(tags.names(row.Tags), spec.Tags)
		if len(diff) == 0 && !descChanged && !tagsChanged {
			continue
		}
		plan.Updates = append(plan.Updates, PlannedUpdate{
			Kind:              kind,
			ID:                row.ID,
			Name:              row.Name,
			Partial:           diff.ToUpdatePartial(),
			Diff:              diff,
			UpdateDescription: descChanged,
			Description:       spec.Description,
			UpdateTags:        tagsChanged,
			Tags:              spec.Tags,
		})
	}

	if !sync.Config.Delete {
		return nil
	}
	ownID := sync.ID.Hex()
	for i := range rows {
		row := &rows[i]
		if declared[row.Name] || !carriesAll(row.Tags, matchIDs) {
			continue
		}
		// A sync never deletes itself.
		if kind == types.KindResourceSync && row.ID == ownID {
			continue
		}
		plan.Deletes = append(plan.Deletes, PlannedDelete{
			Kind: kind,
			ID:   row.ID,
			Name: row.Name,
		})
	}
	return nil
}

func (s *Syncer) planVariables(ctx context.Context, plan *Plan, cfg types.ResourceSyncConfig, file *types.ResourceFile) error {
	cur, err := s.db.Collections.Variables.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to list variables: %w", err)
	}
	var existing []types.Variable
	if err := cur.All(ctx, &existing); err != nil {
		return fmt.Errorf("failed to decode variables: %w", err)
	}
	byName := make(map[string]types.Variable, len(existing))
	for _, v := range existing {
		byName[v.Name] = v
	}

	declared := make(map[string]bool, len(file.Variables))
	for _, v := range file.Variables {
		if v.Name == "" {
			return types.NewValidationError("variable", "declared variable is missing a name")
		}
		declared[v.Name] = true
		curr, exists := byName[v.Name]
		if !exists {
			plan.Variables = append(plan.Variables, PlannedVariable{Variable: v, Create: true})
			continue
		}
		if curr.Value != v.Value || curr.Description != v.Description || curr.IsSecret != v.IsSecret {
			plan.Variables = append(plan.Variables, PlannedVariable{Variable: v})
		}
	}
	if cfg.Delete {
		for _, v := range existing {
			if !declared[v.Name] {
				plan.VarDeletes = append(plan.VarDeletes, v.Name)
			}
		}
	}
	return nil
}

func (s *Syncer) planUserGroups(ctx context.Context, plan *Plan, cfg types.ResourceSyncConfig, file *types.ResourceFile) error {
	cur, err := s.db.Collections.UserGroups.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to list user groups: %w", err)
	}
	var existing []types.UserGroup
	if err := cur.All(ctx, &existing); err != nil {
		return fmt.Errorf("failed to decode user groups: %w", err)
	}
	byName := make(map[string]types.UserGroup, len(existing))
	for _, g := range existing {
		byName[g.Name] = g
	}

	declared := make(map[string]bool, len(file.UserGroups))
	for _, spec := range file.UserGroups {
		if spec.Name == "" {
			return types.NewValidationError("user_group", "declared user group is missing a name")
		}
		declared[spec.Name] = true

		userIDs, err := s.resolveUsernames(ctx, spec.Users)
		if err != nil {
			return fmt.Errorf("%s: %w", spec.Name, err)
		}

		curr, exists := byName[spec.Name]
		if !exists {
			plan.UserGroups = append(plan.UserGroups, PlannedUserGroup{
				Spec:    spec,
				UserIDs: userIDs,
				Create:  true,
			})
			continue
		}
		if !sameStringSet(curr.Users, userIDs) || !samePermissionMap(curr.All, spec.All) {
			plan.UserGroups = append(plan.UserGroups, PlannedUserGroup{
				Spec:    spec,
				UserIDs: userIDs,
			})
		}
	}
	if cfg.Delete {
		for _, g := range existing {
			if !declared[g.Name] {
				plan.GroupDeletes = append(plan.GroupDeletes, g.Name)
			}
		}
	}
	return nil
}

func samePermissionMap(a, b map[types.ResourceKind]types.PermissionLevel) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func (s *Syncer) resolveUsernames(ctx context.Context, usernames []string) ([]string, error) {
	ids := make([]string, 0, len(usernames))
	for _, username := range usernames {
		var user types.User
		err := s.db.Collections.Users.FindOne(ctx, bson.M{"username": username}).Decode(&user)
		if err != nil {
			return nil, types.NewValidationError("users", fmt.Sprintf("unknown user %q", username))
		}
		ids = append(ids, user.ID.Hex())
	}
	return ids, nil
}
