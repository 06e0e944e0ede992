package execute

import (
	"context"
	"fmt"
	"sync"

	"github.com/komodo-sh/komodo/pkg/permission"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

// batchConcurrency bounds how many fan-out executions run at once.
const batchConcurrency = 8

// BatchResult is one resource's outcome of a batch execution.
type BatchResult struct {
	Name string `json:"name"`
	// Update is the finished update of a dispatched execution.
	Update *types.Update `json:"update,omitempty"`
	// Error is set when the execution was refused before an update existed
	// (busy target, permission).
	Error string `json:"error,omitempty"`
}

// Batch fans a batch variant out over every matching resource the user may
// execute on. No update is created for the batch itself; each dispatched
// execution journals its own. Results come back in name order.
func (e *Executor) Batch(ctx context.Context, user *types.User, req types.ExecuteRequest) ([]BatchResult, error) {
	if !req.IsBatch() {
		return nil, types.NewValidationError("type",
			fmt.Sprintf("%s is not a batch variant", req.Type))
	}
	kind := req.BatchKind()
	if req.Params.Pattern == "" {
		return nil, types.NewValidationError("pattern", "batch execution needs a pattern")
	}

	names, err := e.matchBatchNames(ctx, user, kind, req.Params.Pattern)
	if err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(names))
	sem := make(chan struct{}, batchConcurrency)
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			u, err := e.execute(ctx, user, req.Unbatch(name), 0)
			if err != nil {
				results[i] = BatchResult{Name: name, Error: err.Error()}
				return
			}
			results[i] = BatchResult{Name: name, Update: &u}
		}(i, name)
	}
	wg.Wait()
	return results, nil
}

// matchBatchNames lists the kind's resources visible to the user and matches
// the pattern against their names.
func (e *Executor) matchBatchNames(
	ctx context.Context,
	user *types.User,
	kind types.ResourceKind,
	pattern string,
) ([]string, error) {
	handler, err := e.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	rows, err := handler.List(ctx, resource.ListQuery{})
	if err != nil {
		return nil, err
	}

	allowed, all, err := e.perms.AllowedIDs(ctx, user, kind)
	if err != nil {
		return nil, err
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if all || allowedSet[row.ID] {
			names = append(names, row.Name)
		}
	}
	return permission.MatchNames(pattern, names)
}
