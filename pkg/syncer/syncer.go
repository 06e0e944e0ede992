// Package syncer implements resource syncs: parsing TOML declarations,
// planning the mutations that would bring the database in line with them,
// applying plans, and committing database state back into a declaration.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/state"
	"github.com/komodo-sh/komodo/pkg/types"
)

// inlinePath is the synthetic path reported for inline declarations.
const inlinePath = "resource.toml"

// Syncer plans and applies resource syncs.
type Syncer struct {
	db       *database.Client
	store    *resource.Store
	registry *resource.Registry
	state    *state.State
	syncDir  string
}

func New(db *database.Client, store *resource.Store, registry *resource.Registry, st *state.State, syncDir string) *Syncer {
	return &Syncer{
		db:       db,
		store:    store,
		registry: registry,
		state:    st,
		syncDir:  syncDir,
	}
}

// Load resolves the sync's declaration: the inline file contents when set,
// otherwise every .toml under the configured resource paths. Returns the
// parsed declaration and the raw files for the refresh record.
func (s *Syncer) Load(sync *resource.ResourceSync) (*types.ResourceFile, []types.FileContents, error) {
	cfg := sync.Config

	if cfg.FileContents != "" {
		file, err := parseFile(cfg.FileContents)
		if err != nil {
			return nil, nil, err
		}
		return file, []types.FileContents{{Path: inlinePath, Contents: cfg.FileContents}}, nil
	}

	if len(cfg.ResourcePath) == 0 {
		return &types.ResourceFile{}, nil, nil
	}

	var combined types.ResourceFile
	var files []types.FileContents
	for _, p := range cfg.ResourcePath {
		paths, err := resolveTomlPaths(s.syncDir, p)
		if err != nil {
			return nil, nil, err
		}
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read sync file %s: %w", path, err)
			}
			file, err := parseFile(string(data))
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", path, err)
			}
			combined.Append(file)
			rel, relErr := filepath.Rel(s.syncDir, path)
			if relErr != nil {
				rel = path
			}
			files = append(files, types.FileContents{Path: rel, Contents: string(data)})
		}
	}
	return &combined, files, nil
}

// resolveTomlPaths expands one configured path: a file is taken as-is, a
// directory is walked for .toml files. Paths must stay under the sync
// directory.
func resolveTomlPaths(syncDir, p string) ([]string, error) {
	full := filepath.Join(syncDir, filepath.Clean("/"+p))
	info, err := os.Stat(full)
	if err != nil {
		return nil, types.NewValidationError("resource_path",
			fmt.Sprintf("cannot read %s: %v", p, err))
	}
	if !info.IsDir() {
		return []string{full}, nil
	}
	var paths []string
	err = filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".toml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", p, err)
	}
	return paths, nil
}

func parseFile(contents string) (*types.ResourceFile, error) {
	var file types.ResourceFile
	if err := toml.Unmarshal([]byte(contents), &file); err != nil {
		return nil, types.NewValidationError("file_contents",
			fmt.Sprintf("invalid TOML: %v", err))
	}
	return &file, nil
}

// partialFromSpec converts a spec's TOML config tables into the partial shape
// the diff engine works on.
func partialFromSpec(config map[string]any) (types.Partial, error) {
	partial := make(types.Partial, len(config))
	for field, value := range config {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, types.NewValidationError(field, err.Error())
		}
		partial[field] = raw
	}
	return partial, nil
}

// normalizeRefs rewrites declared name references onto ids, so declarations
// written with names diff cleanly against stored configs that hold ids.
func (s *Syncer) normalizeRefs(ctx context.Context, kind types.ResourceKind, partial types.Partial) error {
	switch kind {
	case types.KindDeployment:
		if err := s.resolveRef(ctx, partial, "server_id", s.serverID); err != nil {
			return err
		}
		return s.normalizeDeploymentImage(ctx, partial)
	case types.KindBuild:
		return s.resolveRef(ctx, partial, "builder_id", s.builderID)
	case types.KindRepo:
		if err := s.resolveRef(ctx, partial, "server_id", s.serverID); err != nil {
			return err
		}
		return s.resolveRef(ctx, partial, "builder_id", s.builderID)
	case types.KindStack:
		return s.resolveRef(ctx, partial, "server_id", s.serverID)
	case types.KindProcedure:
		return s.normalizeProcedureStages(ctx, partial)
	case types.KindBuilder:
		return s.normalizeBuilderParams(ctx, partial)
	default:
		return nil
	}
}

// normalizeProcedureStages rewrites execution target names onto ids inside a
// declared procedure's stages. Without this a declaration naming its targets
// diffs forever against the stored id form.
func (s *Syncer) normalizeProcedureStages(ctx context.Context, partial types.Partial) error {
	raw, ok := partial["stages"]
	if !ok {
		return nil
	}
	var stages []types.ProcedureStage
	if err := json.Unmarshal(raw, &stages); err != nil {
		return types.NewValidationError("stages", err.Error())
	}
	if err := normalizeStageTargets(ctx, stages, s.resourceID); err != nil {
		return err
	}
	out, err := json.Marshal(stages)
	if err != nil {
		return types.NewValidationError("stages", err.Error())
	}
	partial["stages"] = out
	return nil
}

// normalizeStageTargets walks every execution and swaps its target selector
// for the id the lookup resolves. Batch patterns, empty targets, and
// selectors already in id form are left alone.
func normalizeStageTargets(
	ctx context.Context,
	stages []types.ProcedureStage,
	lookup func(context.Context, types.ResourceKind, string) (string, error),
) error {
	for si := range stages {
		for ei := range stages[si].Executions {
			exec := &stages[si].Executions[ei]
			req := exec.Execution
			if req.IsBatch() {
				continue
			}
			kind, selector := req.Selector()
			if kind == "" || selector == "" || types.LooksLikeObjectID(selector) {
				continue
			}
			id, err := lookup(ctx, kind, selector)
			if err != nil {
				return types.NewValidationError(
					fmt.Sprintf("stages[%d].executions[%d]", si, ei),
					fmt.Sprintf("unknown %s %q", kind, selector))
			}
			exec.Execution = req.WithTarget(id)
		}
	}
	return nil
}

// resourceID resolves any kind's selector onto its stored id.
func (s *Syncer) resourceID(ctx context.Context, kind types.ResourceKind, selector string) (string, error) {
	handler, err := s.registry.Get(kind)
	if err != nil {
		return "", err
	}
	row, err := handler.Get(ctx, selector)
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

func (s *Syncer) serverID(ctx context.Context, selector string) (string, error) {
	server, err := s.store.Server(ctx, selector)
	if err != nil {
		return "", err
	}
	return server.ID.Hex(), nil
}

func (s *Syncer) builderID(ctx context.Context, selector string) (string, error) {
	builder, err := s.store.Builder(ctx, selector)
	if err != nil {
		return "", err
	}
	return builder.ID.Hex(), nil
}

// resolveRef rewrites one string field from a name onto an id.
func (s *Syncer) resolveRef(
	ctx context.Context,
	partial types.Partial,
	field string,
	lookup func(context.Context, string) (string, error),
) error {
	raw, ok := partial[field]
	if !ok {
		return nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return types.NewValidationError(field, "must be a string")
	}
	if name == "" || types.LooksLikeObjectID(name) {
		return nil
	}
	id, err := lookup(ctx, name)
	if err != nil {
		return types.NewValidationError(field, fmt.Sprintf("unknown reference %q", name))
	}
	partial[field] = json.RawMessage(strconv.Quote(id))
	return nil
}

// normalizeDeploymentImage rewrites image.params.build_id from a name.
func (s *Syncer) normalizeDeploymentImage(ctx context.Context, partial types.Partial) error {
	raw, ok := partial["image"]
	if !ok {
		return nil
	}
	var image types.DeploymentImage
	if err := json.Unmarshal(raw, &image); err != nil {
		return types.NewValidationError("image", err.Error())
	}
	if image.Type != types.ImageTypeBuild || image.Params.BuildID == "" ||
		types.LooksLikeObjectID(image.Params.BuildID) {
		return nil
	}
	build, err := s.store.Build(ctx, image.Params.BuildID)
	if err != nil {
		return types.NewValidationError("image",
			fmt.Sprintf("unknown build %q", image.Params.BuildID))
	}
	image.Params.BuildID = build.ID.Hex()
	out, err := json.Marshal(image)
	if err != nil {
		return types.NewValidationError("image", err.Error())
	}
	partial["image"] = out
	return nil
}

// normalizeBuilderParams rewrites params.server_id from a name on
// server-backed builders.
func (s *Syncer) normalizeBuilderParams(ctx context.Context, partial types.Partial) error {
	raw, ok := partial["params"]
	if !ok {
		return nil
	}
	var params types.BuilderConfigParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return types.NewValidationError("params", err.Error())
	}
	if params.ServerID == "" || types.LooksLikeObjectID(params.ServerID) {
		return nil
	}
	id, err := s.serverID(ctx, params.ServerID)
	if err != nil {
		return types.NewValidationError("params",
			fmt.Sprintf("unknown server %q", params.ServerID))
	}
	params.ServerID = id
	out, err := json.Marshal(params)
	if err != nil {
		return types.NewValidationError("params", err.Error())
	}
	partial["params"] = out
	return nil
}
