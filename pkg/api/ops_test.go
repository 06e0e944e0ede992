package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/types"
)

func TestGetOpKind(t *testing.T) {
	kind, ok := getOpKind("GetServer")
	require.True(t, ok)
	assert.Equal(t, types.KindServer, kind)

	kind, ok = getOpKind("GetServerTemplate")
	require.True(t, ok)
	assert.Equal(t, types.KindServerTemplate, kind)

	_, ok = getOpKind("GetSomething")
	assert.False(t, ok)
	_, ok = getOpKind("ListServers")
	assert.False(t, ok)
}

func TestListOpKind(t *testing.T) {
	tests := []struct {
		op   string
		kind types.ResourceKind
	}{
		{"ListServers", types.KindServer},
		{"ListDeployments", types.KindDeployment},
		{"ListResourceSyncs", types.KindResourceSync},
		{"ListServerTemplates", types.KindServerTemplate},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			kind, ok := listOpKind(tt.op)
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}

	_, ok := listOpKind("ListUpdates")
	assert.False(t, ok)
}

func TestWriteOpKind(t *testing.T) {
	verb, kind, ok := writeOpKind("CreateDeployment")
	require.True(t, ok)
	assert.Equal(t, "Create", verb)
	assert.Equal(t, types.KindDeployment, kind)

	verb, kind, ok = writeOpKind("RenameStack")
	require.True(t, ok)
	assert.Equal(t, "Rename", verb)
	assert.Equal(t, types.KindStack, kind)

	// Ops handled by the explicit switch never reach the kind parser.
	_, _, ok = writeOpKind("UpdateDescription")
	assert.False(t, ok)
	_, _, ok = writeOpKind("UpdateVariableValue")
	assert.False(t, ok)
}

func TestOpFor(t *testing.T) {
	assert.Equal(t, types.OpCreateServer, opFor("Create", types.KindServer))
	assert.Equal(t, types.OpDeleteStack, opFor("Delete", types.KindStack))
	assert.Equal(t, types.OpRenameResourceSync, opFor("Rename", types.KindResourceSync))
}

func TestDecodeParams(t *testing.T) {
	params, err := decodeParams[types.GetResourceParams](json.RawMessage(`{"id":"web"}`))
	require.NoError(t, err)
	assert.Equal(t, "web", params.ID)

	// Absent params decode to the zero value.
	params, err = decodeParams[types.GetResourceParams](nil)
	require.NoError(t, err)
	assert.Empty(t, params.ID)

	_, err = decodeParams[types.GetResourceParams](json.RawMessage(`not json`))
	assert.True(t, types.IsValidationError(err))
}
