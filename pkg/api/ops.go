package api

import (
	"encoding/json"
	"strings"

	"github.com/komodo-sh/komodo/pkg/types"
)

// opKinds lists the kinds resource operations dispatch over, with the plural
// suffix their list op uses ("ListServers", "ListResourceSyncs").
var opKinds = []struct {
	kind   types.ResourceKind
	plural string
}{
	{types.KindServer, "Servers"},
	{types.KindDeployment, "Deployments"},
	{types.KindBuild, "Builds"},
	{types.KindRepo, "Repos"},
	{types.KindProcedure, "Procedures"},
	{types.KindAction, "Actions"},
	{types.KindStack, "Stacks"},
	{types.KindResourceSync, "ResourceSyncs"},
	{types.KindBuilder, "Builders"},
	{types.KindAlerter, "Alerters"},
	{types.KindServerTemplate, "ServerTemplates"},
}

// getOpKind matches "Get<Kind>" ops.
func getOpKind(op string) (types.ResourceKind, bool) {
	rest, ok := strings.CutPrefix(op, "Get")
	if !ok {
		return "", false
	}
	for _, k := range opKinds {
		if rest == string(k.kind) {
			return k.kind, true
		}
	}
	return "", false
}

// listOpKind matches "List<Kinds>" ops.
func listOpKind(op string) (types.ResourceKind, bool) {
	rest, ok := strings.CutPrefix(op, "List")
	if !ok {
		return "", false
	}
	for _, k := range opKinds {
		if rest == k.plural {
			return k.kind, true
		}
	}
	return "", false
}

// writeOpKind matches "<Verb><Kind>" write ops, e.g. "CreateDeployment".
func writeOpKind(op string) (verb string, kind types.ResourceKind, ok bool) {
	for _, v := range []string{"Create", "Copy", "Update", "Rename", "Delete"} {
		rest, found := strings.CutPrefix(op, v)
		if !found {
			continue
		}
		for _, k := range opKinds {
			if rest == string(k.kind) {
				return v, k.kind, true
			}
		}
	}
	return "", "", false
}

// opFor builds the journal operation for a resource write. Operation names
// are exactly verb+kind ("CreateServer", "RenameStack").
func opFor(verb string, kind types.ResourceKind) types.Operation {
	return types.Operation(verb + string(kind))
}

// decodeParams unmarshals an envelope's params into the op's shape. Absent
// params decode as the zero value so ops without required fields work bare.
func decodeParams[T any](raw json.RawMessage) (T, error) {
	var params T
	if len(raw) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		var zero T
		return zero, types.NewValidationError("params", "malformed params: "+err.Error())
	}
	return params, nil
}
