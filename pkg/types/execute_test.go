package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRequestBatch(t *testing.T) {
	batchVariants := []ExecutionType{
		ExecBatchDeploy, ExecBatchDestroyDeployment, ExecBatchRunBuild,
		ExecBatchCloneRepo, ExecBatchPullRepo, ExecBatchRunProcedure,
		ExecBatchRunAction, ExecBatchDeployStack, ExecBatchDeployStackIfChanged,
		ExecBatchDestroyStack, ExecBatchRunSync,
	}

	t.Run("batch variants unbatch to single variants", func(t *testing.T) {
		for _, typ := range batchVariants {
			req := ExecuteRequest{Type: typ, Params: ExecuteParams{Pattern: "prod-*"}}
			require.True(t, req.IsBatch(), "%s", typ)
			require.NotEmpty(t, req.BatchKind(), "%s", typ)

			single := req.Unbatch("prod-api")
			require.False(t, single.IsBatch(), "%s", typ)
			require.NotEqual(t, ExecNone, single.Type, "%s", typ)

			// The unbatched variant targets the same kind, with the
			// selector in the right params slot.
			kind, selector := single.Selector()
			assert.Equal(t, req.BatchKind(), kind, "%s", typ)
			assert.Equal(t, "prod-api", selector, "%s", typ)
		}
	})

	t.Run("single variants are not batch", func(t *testing.T) {
		for _, typ := range []ExecutionType{
			ExecDeploy, ExecRunBuild, ExecCancelBuild, ExecRunProcedure,
			ExecRunSync, ExecStartContainer, ExecTestAlerter,
		} {
			assert.False(t, ExecuteRequest{Type: typ}.IsBatch(), "%s", typ)
		}
	})
}

func TestExecuteRequestSelector(t *testing.T) {
	tests := []struct {
		name   string
		req    ExecuteRequest
		kind   ResourceKind
		target string
	}{
		{
			"deploy targets the deployment",
			ExecuteRequest{Type: ExecDeploy, Params: ExecuteParams{Deployment: "api"}},
			KindDeployment, "api",
		},
		{
			"cancel build targets the build",
			ExecuteRequest{Type: ExecCancelBuild, Params: ExecuteParams{Build: "core"}},
			KindBuild, "core",
		},
		{
			"stack variants target the stack",
			ExecuteRequest{Type: ExecDeployStackIfChanged, Params: ExecuteParams{Stack: "observability"}},
			KindStack, "observability",
		},
		{
			"batch returns kind and pattern",
			ExecuteRequest{Type: ExecBatchPullRepo, Params: ExecuteParams{Pattern: "infra-?,\\^legacy-.*$\\"}},
			KindRepo, "infra-?,\\^legacy-.*$\\",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, selector := tt.req.Selector()
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.target, selector)
		})
	}
}

func TestExecuteRequestWithTarget(t *testing.T) {
	t.Run("retargets every single variant", func(t *testing.T) {
		for _, typ := range []ExecutionType{
			ExecDeploy, ExecDestroyDeployment, ExecRunBuild, ExecCloneRepo,
			ExecRunProcedure, ExecRunAction, ExecDeployStack, ExecRunSync,
			ExecTestAlerter, ExecLaunchServer, ExecPruneImages,
		} {
			req := ExecuteRequest{Type: typ}.WithTarget("507f1f77bcf86cd799439011")
			kind, selector := req.Selector()
			require.NotEmpty(t, kind, "%s", typ)
			assert.Equal(t, "507f1f77bcf86cd799439011", selector, "%s", typ)
		}
	})

	t.Run("replaces an existing name selector", func(t *testing.T) {
		req := ExecuteRequest{
			Type:   ExecDeployStack,
			Params: ExecuteParams{Stack: "web", Services: []string{"api"}},
		}
		out := req.WithTarget("507f1f77bcf86cd799439011")
		assert.Equal(t, "507f1f77bcf86cd799439011", out.Params.Stack)
		assert.Equal(t, []string{"api"}, out.Params.Services)
		assert.Equal(t, "web", req.Params.Stack, "the receiver is untouched")
	})

	t.Run("batch variants keep their pattern", func(t *testing.T) {
		req := ExecuteRequest{Type: ExecBatchDeploy, Params: ExecuteParams{Pattern: "prod-*"}}
		out := req.WithTarget("507f1f77bcf86cd799439011")
		assert.Equal(t, "prod-*", out.Params.Pattern)
		assert.Empty(t, out.Params.Deployment)
	})
}

func TestPermissionLevels(t *testing.T) {
	assert.True(t, PermissionWrite.Satisfies(PermissionExecute))
	assert.True(t, PermissionExecute.Satisfies(PermissionRead))
	assert.False(t, PermissionRead.Satisfies(PermissionExecute))
	assert.False(t, PermissionNone.Satisfies(PermissionRead))

	assert.Equal(t, PermissionExecute, MaxPermission(PermissionRead, PermissionExecute))
	assert.Equal(t, PermissionWrite, MaxPermission(PermissionWrite, PermissionNone))
}
