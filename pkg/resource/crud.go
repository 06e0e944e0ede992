package resource

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/komodo-sh/komodo/pkg/types"
)

// ListQuery filters resource listings. Zero value lists everything.
type ListQuery struct {
	// TagIDs requires resources to carry all given tag ids.
	TagIDs []string
	// NameContains is a case-insensitive substring match.
	NameContains string
}

func (q ListQuery) filter() bson.M {
	filter := bson.M{}
	if len(q.TagIDs) > 0 {
		filter["tags"] = bson.M{"$all": q.TagIDs}
	}
	if q.NameContains != "" {
		filter["name"] = bson.M{
			"$regex":   escapeRegex(q.NameContains),
			"$options": "i",
		}
	}
	return filter
}

func escapeRegex(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`, `.`, `\.`, `+`, `\+`, `*`, `\*`, `?`, `\?`,
		`(`, `\(`, `)`, `\)`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
		`^`, `\^`, `$`, `\$`, `|`, `\|`,
	)
	return replacer.Replace(s)
}

// SanitizeName normalizes a resource name: trims whitespace and replaces
// interior whitespace runs with '-'. Returns a ValidationError when the
// result is unusable as a name.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.Join(strings.Fields(name), "-")
	if name == "" {
		return "", types.NewValidationError("name", "must not be empty")
	}
	if len(name) > 100 {
		return "", types.NewValidationError("name", "must be at most 100 characters")
	}
	if strings.ContainsAny(name, "/\\") {
		return "", types.NewValidationError("name", "must not contain path separators")
	}
	// A name that parses as a document id would shadow id lookups.
	if types.LooksLikeObjectID(name) {
		return "", types.NewValidationError("name", "must not be a 24-character hex string")
	}
	return name, nil
}

// create inserts a new resource of one kind. The partial is merged over the
// kind defaults and validated before insert. Duplicate names map to
// ErrConflict via the unique name index.
func create[C, I any](
	ctx context.Context,
	col *mongo.Collection,
	params types.CreateResourceParams,
	defaults C,
	validate func(context.Context, *C) error,
) (*types.Resource[C, I], error) {
	name, err := SanitizeName(params.Name)
	if err != nil {
		return nil, err
	}

	partial := types.Partial{}
	if len(params.Config) > 0 {
		if err := unmarshalPartial(params.Config, &partial); err != nil {
			return nil, err
		}
	}
	cfg, err := MergePartial(defaults, partial)
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(ctx, &cfg); err != nil {
			return nil, err
		}
	}

	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	res := &types.Resource[C, I]{
		Name:        name,
		Description: params.Description,
		Tags:        tags,
		Config:      cfg,
		UpdatedAt:   types.NowMS(),
	}
	inserted, err := col.InsertOne(ctx, res)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s named %q already exists: %w", col.Name(), name, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert %s: %w", col.Name(), err)
	}
	res.ID = insertedObjectID(inserted)
	return res, nil
}

// get fetches one resource by id-or-name selector.
func get[C, I any](ctx context.Context, col *mongo.Collection, selector string) (*types.Resource[C, I], error) {
	var res types.Resource[C, I]
	if err := findBySelector(ctx, col, selector, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// list returns all resources of a kind matching the query, sorted by name.
func list[C, I any](ctx context.Context, col *mongo.Collection, query ListQuery) ([]types.Resource[C, I], error) {
	cursor, err := col.Find(ctx, query.filter(),
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", col.Name(), err)
	}
	var out []types.Resource[C, I]
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", col.Name(), err)
	}
	return out, nil
}

// updateConfig merges a partial over the resource's current config,
// validates, and persists. Returns the updated resource and the diff of
// fields that actually changed.
func updateConfig[C, I any](
	ctx context.Context,
	col *mongo.Collection,
	selector string,
	rawPartial []byte,
	validate func(context.Context, *C) error,
) (*types.Resource[C, I], ConfigDiff, error) {
	res, err := get[C, I](ctx, col, selector)
	if err != nil {
		return nil, nil, err
	}

	partial := types.Partial{}
	if err := unmarshalPartial(rawPartial, &partial); err != nil {
		return nil, nil, err
	}

	diff, err := Diff(res.Config, partial)
	if err != nil {
		return nil, nil, err
	}

	merged, err := MergePartial(res.Config, partial)
	if err != nil {
		return nil, nil, err
	}
	if validate != nil {
		if err := validate(ctx, &merged); err != nil {
			return nil, nil, err
		}
	}

	now := types.NowMS()
	_, err = col.UpdateOne(ctx,
		bson.M{"_id": res.ID},
		bson.M{"$set": bson.M{"config": merged, "updated_at": now}})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update %s: %w", col.Name(), err)
	}

	res.Config = merged
	res.UpdatedAt = now
	return res, diff, nil
}

// rename changes a resource's name. Duplicate names map to ErrConflict.
func rename[C, I any](ctx context.Context, col *mongo.Collection, selector, newName string) (*types.Resource[C, I], error) {
	name, err := SanitizeName(newName)
	if err != nil {
		return nil, err
	}
	res, err := get[C, I](ctx, col, selector)
	if err != nil {
		return nil, err
	}
	_, err = col.UpdateOne(ctx,
		bson.M{"_id": res.ID},
		bson.M{"$set": bson.M{"name": name, "updated_at": types.NowMS()}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s named %q already exists: %w", col.Name(), name, types.ErrConflict)
		}
		return nil, fmt.Errorf("failed to rename %s: %w", col.Name(), err)
	}
	res.Name = name
	return res, nil
}

// deleteResource removes a resource and returns the deleted document.
func deleteResource[C, I any](ctx context.Context, col *mongo.Collection, selector string) (*types.Resource[C, I], error) {
	res, err := get[C, I](ctx, col, selector)
	if err != nil {
		return nil, err
	}
	if _, err := col.DeleteOne(ctx, bson.M{"_id": res.ID}); err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", col.Name(), err)
	}
	return res, nil
}

// UpdateDescription replaces a resource's description.
func UpdateDescription(ctx context.Context, col *mongo.Collection, selector, description string) error {
	res, err := col.UpdateOne(ctx, selectorFilter(selector),
		bson.M{"$set": bson.M{"description": description, "updated_at": types.NowMS()}})
	if err != nil {
		return fmt.Errorf("failed to update description: %w", err)
	}
	if res.MatchedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

// SetTags replaces a resource's tag id set.
func SetTags(ctx context.Context, col *mongo.Collection, selector string, tagIDs []string) error {
	if tagIDs == nil {
		tagIDs = []string{}
	}
	res, err := col.UpdateOne(ctx, selectorFilter(selector),
		bson.M{"$set": bson.M{"tags": tagIDs, "updated_at": types.NowMS()}})
	if err != nil {
		return fmt.Errorf("failed to set tags: %w", err)
	}
	if res.MatchedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

// SetBasePermission replaces a resource's base permission level.
func SetBasePermission(ctx context.Context, col *mongo.Collection, selector string, level types.PermissionLevel) error {
	res, err := col.UpdateOne(ctx, selectorFilter(selector),
		bson.M{"$set": bson.M{"base_permission": level, "updated_at": types.NowMS()}})
	if err != nil {
		return fmt.Errorf("failed to set base permission: %w", err)
	}
	if res.MatchedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

// UpdateInfo sets fields under the resource's info document. Used by
// executions and the monitor to record server-written state.
func UpdateInfo(ctx context.Context, col *mongo.Collection, id string, fields bson.M) error {
	set := bson.M{}
	for k, v := range fields {
		set["info."+k] = v
	}
	_, err := col.UpdateOne(ctx, selectorFilter(id), bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update info: %w", err)
	}
	return nil
}
