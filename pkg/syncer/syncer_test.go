package syncer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/types"
)

func TestParseFile(t *testing.T) {
	t.Run("parses resources variables and groups", func(t *testing.T) {
		file, err := parseFile(`
[[deployment]]
name = "api"
description = "the api"
tags = ["prod"]
[deployment.config]
server_id = "prod-1"

[[variable]]
name = "REGION"
value = "us-east-1"

[[user_group]]
name = "devs"
users = ["alice"]
`)
		require.NoError(t, err)
		require.Len(t, file.Deployments, 1)
		assert.Equal(t, "api", file.Deployments[0].Name)
		assert.Equal(t, "the api", file.Deployments[0].Description)
		assert.Equal(t, []string{"prod"}, file.Deployments[0].Tags)
		assert.Equal(t, "prod-1", file.Deployments[0].Config["server_id"])
		require.Len(t, file.Variables, 1)
		assert.Equal(t, "REGION", file.Variables[0].Name)
		require.Len(t, file.UserGroups, 1)
		assert.Equal(t, []string{"alice"}, file.UserGroups[0].Users)
	})

	t.Run("rejects invalid toml", func(t *testing.T) {
		_, err := parseFile("[[deployment]\nname =")
		require.Error(t, err)
		assert.True(t, types.IsValidationError(err))
	})
}

func TestPartialFromSpec(t *testing.T) {
	partial, err := partialFromSpec(map[string]any{
		"server_id":   "prod-1",
		"send_alerts": true,
		"term_signal": int64(15),
		"extra_args":  []any{"--pull", "always"},
		"environment": "PORT=8080",
	})
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"prod-1"`), partial["server_id"])
	assert.Equal(t, json.RawMessage(`true`), partial["send_alerts"])
	assert.Equal(t, json.RawMessage(`15`), partial["term_signal"])
	assert.JSONEq(t, `["--pull","always"]`, string(partial["extra_args"]))
}

func TestResolveTomlPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "stacks"), 0o755))
	write := func(rel, contents string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(contents), 0o644))
	}
	write("main.toml", "")
	write("stacks/a.toml", "")
	write("stacks/b.toml", "")
	write("stacks/readme.md", "")

	t.Run("single file", func(t *testing.T) {
		paths, err := resolveTomlPaths(dir, "main.toml")
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "main.toml")}, paths)
	})

	t.Run("directory collects toml files only", func(t *testing.T) {
		paths, err := resolveTomlPaths(dir, "stacks")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			filepath.Join(dir, "stacks", "a.toml"),
			filepath.Join(dir, "stacks", "b.toml"),
		}, paths)
	})

	t.Run("traversal stays under the sync directory", func(t *testing.T) {
		_, err := resolveTomlPaths(dir, "../../../etc")
		require.Error(t, err)
		assert.True(t, types.IsValidationError(err))
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := resolveTomlPaths(dir, "nope.toml")
		require.Error(t, err)
		assert.True(t, types.IsValidationError(err))
	})
}

func TestCarriesAll(t *testing.T) {
	assert.True(t, carriesAll([]string{"a", "b", "c"}, []string{"a", "c"}))
	assert.True(t, carriesAll(nil, nil))
	assert.False(t, carriesAll([]string{"a"}, []string{"a", "b"}))
	assert.False(t, carriesAll(nil, []string{"a"}))
}

func TestSameStringSet(t *testing.T) {
	assert.True(t, sameStringSet([]string{"a", "b"}, []string{"b", "a"}))
	assert.True(t, sameStringSet(nil, nil))
	assert.False(t, sameStringSet([]string{"a"}, []string{"a", "a"}))
	assert.False(t, sameStringSet([]string{"a", "b"}, []string{"a", "c"}))
}

func TestRenderPartial(t *testing.T) {
	out := renderPartial(types.Partial{
		"server_id": json.RawMessage(`"abc"`),
		"image":     json.RawMessage(`{"type":"Image"}`),
	})
	assert.Equal(t, "image: {\"type\":\"Image\"}\nserver_id: \"abc\"\n", out)
}

func TestPlanPending(t *testing.T) {
	plan := &Plan{
		Creates: []PlannedCreate{{
			Kind:    types.KindDeployment,
			Spec:    types.ResourceSpec{Name: "api"},
			Partial: types.Partial{"server_id": json.RawMessage(`"abc"`)},
		}},
		Deletes:      []PlannedDelete{{Kind: types.KindStack, Name: "old-stack"}},
		Variables:    []PlannedVariable{{Variable: types.Variable{Name: "REGION"}, Create: true}},
		GroupDeletes: []string{"contractors"},
	}
	pending := plan.Pending()

	require.Len(t, pending.Creates, 2)
	assert.Equal(t, "Deployment", pending.Creates[0].Kind)
	assert.Equal(t, "api", pending.Creates[0].Name)
	assert.Equal(t, "server_id: \"abc\"\n", pending.Creates[0].Diff)
	assert.Equal(t, "Variable", pending.Creates[1].Kind)
	require.Len(t, pending.Deletes, 2)
	assert.Equal(t, "old-stack", pending.Deletes[0].Name)
	assert.Equal(t, "UserGroup", pending.Deletes[1].Kind)
	assert.False(t, pending.IsEmpty())
	assert.True(t, (&Plan{}).Pending().IsEmpty())
}

func TestNormalizeStageTargets(t *testing.T) {
	storedID := "507f1f77bcf86cd799439011"
	ids := map[string]string{
		"Deployment:api":    "64b000000000000000000001",
		"Stack:web":         "64b000000000000000000002",
		"Procedure:nightly": "64b000000000000000000003",
	}
	lookup := func(_ context.Context, kind types.ResourceKind, selector string) (string, error) {
		id, ok := ids[string(kind)+":"+selector]
		if !ok {
			return "", types.NewValidationError("selector", "no such resource")
		}
		return id, nil
	}

	t.Run("rewrites names across kinds", func(t *testing.T) {
		stages := []types.ProcedureStage{
			{
				Name:    "deploy",
				Enabled: true,
				Executions: []types.EnabledExecution{
					{Enabled: true, Execution: types.ExecuteRequest{
						Type:   types.ExecDeploy,
						Params: types.ExecuteParams{Deployment: "api"},
					}},
					{Enabled: true, Execution: types.ExecuteRequest{
						Type:   types.ExecDeployStack,
						Params: types.ExecuteParams{Stack: "web", Services: []string{"db"}},
					}},
				},
			},
			{
				Name: "follow up",
				Executions: []types.EnabledExecution{
					// Disabled executions are normalized too; toggling one on
					// later must not reintroduce a name reference.
					{Execution: types.ExecuteRequest{
						Type:   types.ExecRunProcedure,
						Params: types.ExecuteParams{Procedure: "nightly"},
					}},
				},
			},
		}

		require.NoError(t, normalizeStageTargets(context.Background(), stages, lookup))

		assert.Equal(t, ids["Deployment:api"], stages[0].Executions[0].Execution.Params.Deployment)
		assert.Equal(t, ids["Stack:web"], stages[0].Executions[1].Execution.Params.Stack)
		assert.Equal(t, []string{"db"}, stages[0].Executions[1].Execution.Params.Services,
			"non-target params survive the rewrite")
		assert.Equal(t, ids["Procedure:nightly"], stages[1].Executions[0].Execution.Params.Procedure)
	})

	t.Run("ids and batch patterns pass through", func(t *testing.T) {
		stages := []types.ProcedureStage{{
			Executions: []types.EnabledExecution{
				{Execution: types.ExecuteRequest{
					Type:   types.ExecDeploy,
					Params: types.ExecuteParams{Deployment: storedID},
				}},
				{Execution: types.ExecuteRequest{
					Type:   types.ExecBatchDeploy,
					Params: types.ExecuteParams{Pattern: "api-*"},
				}},
			},
		}}

		require.NoError(t, normalizeStageTargets(context.Background(), stages, lookup))

		assert.Equal(t, storedID, stages[0].Executions[0].Execution.Params.Deployment)
		assert.Equal(t, "api-*", stages[0].Executions[1].Execution.Params.Pattern)
	})

	t.Run("unknown reference fails with the execution's position", func(t *testing.T) {
		stages := []types.ProcedureStage{{
			Executions: []types.EnabledExecution{
				{Execution: types.ExecuteRequest{
					Type:   types.ExecDeploy,
					Params: types.ExecuteParams{Deployment: "ghost"},
				}},
			},
		}}

		err := normalizeStageTargets(context.Background(), stages, lookup)
		var verr *types.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "stages[0].executions[0]", verr.Field)
	})
}

func TestConfigMap(t *testing.T) {
	dep := types.Resource[types.DeploymentConfig, types.NoInfo]{
		Name:   "api",
		Config: types.DeploymentConfig{ServerID: "abc", Image: types.DeploymentImage{Type: types.ImageTypeImage}},
	}
	config, err := configMap(dep)
	require.NoError(t, err)
	assert.Equal(t, "abc", config["server_id"])
}
