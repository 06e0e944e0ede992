package resource

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/komodo-sh/komodo/pkg/types"
)

// Row is the kind-erased view of a resource returned by registry operations.
// Resource holds the typed *types.Resource[C, I] for JSON responses; the
// explicit fields let callers do permission filtering without reflection.
type Row struct {
	ID             string
	Name           string
	Description    string
	Tags           []string
	BasePermission types.PermissionLevel
	Resource       any
}

// Target returns the resource target for this row.
func (r *Row) Target(kind types.ResourceKind) types.ResourceTarget {
	return types.ResourceTarget{Type: kind, ID: r.ID}
}

// ValidateSelf identifies the resource being validated, so hooks can reject
// self-references. ID is empty during create.
type ValidateSelf struct {
	ID   string
	Name string
}

// Handler is the registry entry for one resource kind: the same generic
// CRUD specialized with the kind's collection, defaults, and validate hook.
type Handler struct {
	Kind types.ResourceKind

	createFn  func(ctx context.Context, params types.CreateResourceParams) (*Row, error)
	getFn     func(ctx context.Context, selector string) (*Row, error)
	listFn    func(ctx context.Context, q ListQuery) ([]Row, error)
	updateFn  func(ctx context.Context, selector string, rawPartial []byte) (*Row, ConfigDiff, error)
	previewFn func(ctx context.Context, selector string, partial types.Partial) (ConfigDiff, error)
	renameFn  func(ctx context.Context, selector, name string) (*Row, error)
	deleteFn  func(ctx context.Context, selector string) (*Row, error)
	defaultFn func() any
}

func (h *Handler) Create(ctx context.Context, params types.CreateResourceParams) (*Row, error) {
	return h.createFn(ctx, params)
}

func (h *Handler) Get(ctx context.Context, selector string) (*Row, error) {
	return h.getFn(ctx, selector)
}

func (h *Handler) List(ctx context.Context, q ListQuery) ([]Row, error) {
	return h.listFn(ctx, q)
}

func (h *Handler) Update(ctx context.Context, selector string, rawPartial []byte) (*Row, ConfigDiff, error) {
	return h.updateFn(ctx, selector, rawPartial)
}

// Preview computes the diff an update would apply without persisting. The
// partial is validated against the kind's config shape.
func (h *Handler) Preview(ctx context.Context, selector string, partial types.Partial) (ConfigDiff, error) {
	return h.previewFn(ctx, selector, partial)
}

func (h *Handler) Rename(ctx context.Context, selector, name string) (*Row, error) {
	return h.renameFn(ctx, selector, name)
}

func (h *Handler) Delete(ctx context.Context, selector string) (*Row, error) {
	return h.deleteFn(ctx, selector)
}

// DefaultConfig returns the kind's defaults, for create forms.
func (h *Handler) DefaultConfig() any {
	return h.defaultFn()
}

// Registry dispatches kind-generic resource operations.
type Registry struct {
	handlers map[types.ResourceKind]*Handler
}

// NewRegistry builds the registry with every kind registered against the
// store's collections.
func NewRegistry(store *Store) *Registry {
	r := &Registry{handlers: make(map[types.ResourceKind]*Handler)}
	cols := store.Collections()

	// The info type never appears in registerKind's signature, so both type
	// arguments are spelled out.
	registerKind[types.ServerConfig, types.NoInfo](r, types.KindServer, cols.Servers,
		types.NewServerConfig, validateServer(store))
	registerKind[types.DeploymentConfig, types.NoInfo](r, types.KindDeployment, cols.Deployments,
		types.NewDeploymentConfig, validateDeployment(store))
	registerKind[types.BuildConfig, types.BuildInfo](r, types.KindBuild, cols.Builds,
		types.NewBuildConfig, validateBuild(store))
	registerKind[types.RepoConfig, types.RepoInfo](r, types.KindRepo, cols.Repos,
		types.NewRepoConfig, validateRepo(store))
	registerKind[types.ProcedureConfig, types.NoInfo](r, types.KindProcedure, cols.Procedures,
		types.NewProcedureConfig, validateProcedure(store))
	registerKind[types.ActionConfig, types.ActionInfo](r, types.KindAction, cols.Actions,
		types.NewActionConfig, validateAction(store))
	registerKind[types.StackConfig, types.StackInfo](r, types.KindStack, cols.Stacks,
		types.NewStackConfig, validateStack(store))
	registerKind[types.ResourceSyncConfig, types.SyncInfo](r, types.KindResourceSync, cols.ResourceSyncs,
		types.NewResourceSyncConfig, validateResourceSync(store))
	registerKind[types.BuilderConfig, types.NoInfo](r, types.KindBuilder, cols.Builders,
		types.NewBuilderConfig, validateBuilder(store))
	registerKind[types.AlerterConfig, types.NoInfo](r, types.KindAlerter, cols.Alerters,
		types.NewAlerterConfig, validateAlerter(store))
	registerKind[types.ServerTemplateConfig, types.NoInfo](r, types.KindServerTemplate, cols.ServerTemplates,
		types.NewServerTemplateConfig, validateServerTemplate(store))

	return r
}

// Get returns the handler for a kind.
func (r *Registry) Get(kind types.ResourceKind) (*Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, types.NewValidationError("kind", fmt.Sprintf("unknown resource kind %q", kind))
	}
	return h, nil
}

// Kinds returns the registered kinds in declaration order.
func (r *Registry) Kinds() []types.ResourceKind {
	return types.AllResourceKinds
}

// validateFn checks and normalizes a merged config before persist. Hooks
// resolve referenced resources and rewrite name references to ids.
type validateFn[C any] func(ctx context.Context, self ValidateSelf, cfg *C) error

// registerKind wires one kind's typed CRUD into the kind-erased handler.
func registerKind[C, I any](
	r *Registry,
	kind types.ResourceKind,
	col *mongo.Collection,
	defaults func() C,
	validate validateFn[C],
) {
	rowOf := func(res *types.Resource[C, I]) *Row {
		return &Row{
			ID:             res.ID.Hex(),
			Name:           res.Name,
			Description:    res.Description,
			Tags:           res.Tags,
			BasePermission: res.BasePermission,
			Resource:       res,
		}
	}

	r.handlers[kind] = &Handler{
		Kind: kind,

		createFn: func(ctx context.Context, params types.CreateResourceParams) (*Row, error) {
			hook := func(ctx context.Context, cfg *C) error {
				return validate(ctx, ValidateSelf{Name: params.Name}, cfg)
			}
			res, err := create[C, I](ctx, col, params, defaults(), hook)
			if err != nil {
				return nil, err
			}
			return rowOf(res), nil
		},

		getFn: func(ctx context.Context, selector string) (*Row, error) {
			res, err := get[C, I](ctx, col, selector)
			if err != nil {
				return nil, err
			}
			return rowOf(res), nil
		},

		listFn: func(ctx context.Context, q ListQuery) ([]Row, error) {
			resources, err := list[C, I](ctx, col, q)
			if err != nil {
				return nil, err
			}
			rows := make([]Row, 0, len(resources))
			for i := range resources {
				rows = append(rows, *rowOf(&resources[i]))
			}
			return rows, nil
		},

		updateFn: func(ctx context.Context, selector string, rawPartial []byte) (*Row, ConfigDiff, error) {
			// Fetch first so the validate hook knows the resource's own
			// identity.
			current, err := get[C, I](ctx, col, selector)
			if err != nil {
				return nil, nil, err
			}
			self := ValidateSelf{ID: current.ID.Hex(), Name: current.Name}
			hook := func(ctx context.Context, cfg *C) error {
				return validate(ctx, self, cfg)
			}
			res, diff, err := updateConfig[C, I](ctx, col, current.ID.Hex(), rawPartial, hook)
			if err != nil {
				return nil, nil, err
			}
			return rowOf(res), diff, nil
		},

		previewFn: func(ctx context.Context, selector string, partial types.Partial) (ConfigDiff, error) {
			current, err := get[C, I](ctx, col, selector)
			if err != nil {
				return nil, err
			}
			// Merge first so unknown fields and type mismatches are caught
			// at plan time rather than apply time.
			if _, err := MergePartial(current.Config, partial); err != nil {
				return nil, err
			}
			return Diff(current.Config, partial)
		},

		renameFn: func(ctx context.Context, selector, name string) (*Row, error) {
			res, err := rename[C, I](ctx, col, selector, name)
			if err != nil {
				return nil, err
			}
			return rowOf(res), nil
		},

		deleteFn: func(ctx context.Context, selector string) (*Row, error) {
			res, err := deleteResource[C, I](ctx, col, selector)
			if err != nil {
				return nil, err
			}
			return rowOf(res), nil
		},

		defaultFn: func() any {
			return defaults()
		},
	}
}
