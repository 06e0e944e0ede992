package execute

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

func TestBuildImageName(t *testing.T) {
	tests := []struct {
		name  string
		build resource.Build
		want  string
	}{
		{
			name:  "defaults to lowered build name",
			build: resource.Build{Name: "My-API"},
			want:  "my-api",
		},
		{
			name: "image name override",
			build: resource.Build{
				Name:   "my-api",
				Config: types.BuildConfig{ImageName: "Backend"},
			},
			want: "backend",
		},
		{
			name: "account namespace",
			build: resource.Build{
				Name:   "api",
				Config: types.BuildConfig{ImageRegistryAccount: "Acme"},
			},
			want: "acme/api",
		},
		{
			name: "organization wins over account",
			build: resource.Build{
				Name: "api",
				Config: types.BuildConfig{
					ImageRegistryAccount:      "personal",
					ImageRegistryOrganization: "acme-org",
				},
			},
			want: "acme-org/api",
		},
		{
			name: "registry domain prefix",
			build: resource.Build{
				Name: "api",
				Config: types.BuildConfig{
					ImageRegistry:        "ghcr.io",
					ImageRegistryAccount: "acme",
				},
			},
			want: "ghcr.io/acme/api",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildImageName(&tt.build))
		})
	}
}

func TestResolveImage_CustomImage(t *testing.T) {
	e := &Executor{}

	image, account, err := e.resolveImage(context.Background(), types.DeploymentConfig{
		Image: types.DeploymentImage{
			Type:   types.ImageTypeImage,
			Params: types.DeploymentImageParams{Image: "nginx:1.27"},
		},
		ImageRegistryAccount: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, "nginx:1.27", image)
	assert.Equal(t, "acme", account)
}

func TestResolveImage_EmptyImageRejected(t *testing.T) {
	e := &Executor{}

	_, _, err := e.resolveImage(context.Background(), types.DeploymentConfig{})

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "image", verr.Field)
}

func TestDeploymentGuard(t *testing.T) {
	tests := []struct {
		execType types.ExecutionType
		flag     func(types.DeploymentActionState) bool
	}{
		{types.ExecDeploy, func(s types.DeploymentActionState) bool { return s.Deploying }},
		{types.ExecStartDeployment, func(s types.DeploymentActionState) bool { return s.Starting }},
		{types.ExecRestartDeployment, func(s types.DeploymentActionState) bool { return s.Restarting }},
		{types.ExecPauseDeployment, func(s types.DeploymentActionState) bool { return s.Pausing }},
		{types.ExecUnpauseDeployment, func(s types.DeploymentActionState) bool { return s.Unpausing }},
		{types.ExecStopDeployment, func(s types.DeploymentActionState) bool { return s.Stopping }},
		{types.ExecDestroyDeployment, func(s types.DeploymentActionState) bool { return s.Destroying }},
	}
	for _, tt := range tests {
		t.Run(string(tt.execType), func(t *testing.T) {
			var state types.DeploymentActionState
			*deploymentGuard(tt.execType)(&state) = true
			assert.True(t, tt.flag(state))
		})
	}
}

func TestStackGuard(t *testing.T) {
	tests := []struct {
		execType types.ExecutionType
		flag     func(types.StackActionState) bool
	}{
		{types.ExecDeployStack, func(s types.StackActionState) bool { return s.Deploying }},
		{types.ExecDeployStackIfChanged, func(s types.StackActionState) bool { return s.Deploying }},
		{types.ExecPullStack, func(s types.StackActionState) bool { return s.Pulling }},
		{types.ExecStartStack, func(s types.StackActionState) bool { return s.Starting }},
		{types.ExecRestartStack, func(s types.StackActionState) bool { return s.Restarting }},
		{types.ExecPauseStack, func(s types.StackActionState) bool { return s.Pausing }},
		{types.ExecUnpauseStack, func(s types.StackActionState) bool { return s.Unpausing }},
		{types.ExecStopStack, func(s types.StackActionState) bool { return s.Stopping }},
		{types.ExecDestroyStack, func(s types.StackActionState) bool { return s.Destroying }},
	}
	for _, tt := range tests {
		t.Run(string(tt.execType), func(t *testing.T) {
			var state types.StackActionState
			*stackGuard(tt.execType)(&state) = true
			assert.True(t, tt.flag(state))
		})
	}
}

func TestPruneGuard(t *testing.T) {
	tests := []struct {
		execType types.ExecutionType
		flag     func(types.ServerActionState) bool
	}{
		{types.ExecPruneContainers, func(s types.ServerActionState) bool { return s.PruningContainers }},
		{types.ExecPruneImages, func(s types.ServerActionState) bool { return s.PruningImages }},
		{types.ExecPruneNetworks, func(s types.ServerActionState) bool { return s.PruningNetworks }},
		{types.ExecPruneVolumes, func(s types.ServerActionState) bool { return s.PruningVolumes }},
		{types.ExecPruneBuilders, func(s types.ServerActionState) bool { return s.PruningBuilders }},
		{types.ExecPruneSystem, func(s types.ServerActionState) bool { return s.PruningSystem }},
	}
	for _, tt := range tests {
		t.Run(string(tt.execType), func(t *testing.T) {
			var state types.ServerActionState
			*pruneGuard(tt.execType)(&state) = true
			assert.True(t, tt.flag(state))
		})
	}
}

func TestComposeCommand(t *testing.T) {
	tests := []struct {
		name     string
		execType types.ExecutionType
		services []string
		want     string
	}{
		{"start", types.ExecStartStack, nil, "start"},
		{"restart", types.ExecRestartStack, nil, "restart"},
		{"pause", types.ExecPauseStack, nil, "pause"},
		{"unpause", types.ExecUnpauseStack, nil, "unpause"},
		{"stop", types.ExecStopStack, nil, "stop"},
		{"destroy", types.ExecDestroyStack, nil, "down"},
		{"scoped to services", types.ExecStopStack, []string{"db", "web"}, "stop db web"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, composeCommand(tt.execType, tt.services))
		})
	}
}

func TestStackProject(t *testing.T) {
	stack := &resource.Stack{Name: "blog"}
	assert.Equal(t, "blog", stackProject(stack))

	stack.Config.ProjectName = "blog-prod"
	assert.Equal(t, "blog-prod", stackProject(stack))
}

func TestStackChanged_Inline(t *testing.T) {
	stack := &resource.Stack{
		Config: types.StackConfig{FileContents: "services: {}"},
	}
	// Never deployed.
	assert.True(t, stackChanged(stack))

	stack.Info.DeployedContents = []types.FileContents{
		{Path: "compose.yaml", Contents: "services: {}"},
	}
	assert.False(t, stackChanged(stack))

	stack.Config.FileContents = "services:\n  web: {}"
	assert.True(t, stackChanged(stack))
}

func TestStackChanged_Repo(t *testing.T) {
	stack := &resource.Stack{}
	// No hashes recorded yet.
	assert.True(t, stackChanged(stack))

	stack.Info.DeployedHash = "abc123"
	stack.Info.LatestHash = "abc123"
	assert.False(t, stackChanged(stack))

	stack.Info.LatestHash = "def456"
	assert.True(t, stackChanged(stack))
}

func TestGitParamsFromBuild(t *testing.T) {
	cfg := types.BuildConfig{
		GitProvider: "github.com",
		GitAccount:  "acme",
		GitHTTPS:    true,
		Repo:        "acme/api",
		Branch:      "main",
		Commit:      "abc123",
		PreBuild:    types.SystemCommand{Path: ".", Command: "make generate"},
	}

	params := gitParamsFromBuild("api", cfg)

	assert.Equal(t, "api", params.Name)
	assert.Equal(t, "github.com", params.Provider)
	assert.Equal(t, "acme", params.Account)
	assert.True(t, params.HTTPS)
	assert.Equal(t, "acme/api", params.Repo)
	assert.Equal(t, "main", params.Branch)
	assert.Equal(t, "abc123", params.Commit)
	assert.Equal(t, cfg.PreBuild, params.OnClone)
}

func TestWatchCancel_MatchingBuildCancelsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan types.BuildCancel, 2)

	w := watchCancel(ch, func() {}, "b1", cancel)
	defer w.stop()

	// A different build's cancel is ignored.
	ch <- types.BuildCancel{BuildID: "other", UpdateID: "u0"}
	select {
	case <-ctx.Done():
		t.Fatal("cancelled by unrelated build id")
	case <-time.After(50 * time.Millisecond):
	}

	ch <- types.BuildCancel{BuildID: "b1", UpdateID: "u1"}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("matching cancel did not cancel the context")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, "u1", w.updateID)
}

func TestWatchCancel_StopEndsWatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan types.BuildCancel, 1)

	unsubscribed := make(chan struct{})
	w := watchCancel(ch, func() { close(unsubscribed) }, "b1", cancel)
	w.stop()
	// Idempotent.
	w.stop()

	select {
	case <-unsubscribed:
	case <-time.After(time.Second):
		t.Fatal("stop did not release the subscription")
	}
	assert.NoError(t, ctx.Err())
}

func TestRunVersion(t *testing.T) {
	cfg := types.BuildConfig{Version: types.Version{Major: 1, Minor: 2, Patch: 3}}
	assert.Equal(t, types.Version{Major: 1, Minor: 2, Patch: 3}, runVersion(cfg))

	// Auto-increment builds produce the bumped version, and the run stamps
	// that same value on the update and the image tag.
	cfg.AutoIncrementVersion = true
	assert.Equal(t, types.Version{Major: 1, Minor: 2, Patch: 4}, runVersion(cfg))
}

func TestExecuteDetached_RejectsBatch(t *testing.T) {
	e := &Executor{}

	_, err := e.ExecuteDetached(context.Background(), &types.User{}, types.ExecuteRequest{
		Type: types.ExecBatchDeploy,
	})

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "type", verr.Field)
}

func TestDetach_PassesThroughEarlyResult(t *testing.T) {
	u, err := detach(context.Background(), func(context.Context) (types.Update, error) {
		return types.Update{Operation: types.OpDeploy, Success: true}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, types.OpDeploy, u.Operation)
	assert.True(t, u.Success)
}

func TestDetach_PassesThroughRejection(t *testing.T) {
	_, err := detach(context.Background(), func(context.Context) (types.Update, error) {
		return types.Update{}, types.NewValidationError("deployment", "does not exist")
	})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDetach_RecoversPanicBeforeRecord(t *testing.T) {
	_, err := detach(context.Background(), func(context.Context) (types.Update, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestDetach_OutlivesCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	observed := make(chan error, 1)
	_, err := detach(ctx, func(ctx context.Context) (types.Update, error) {
		observed <- ctx.Err()
		return types.Update{}, nil
	})
	require.NoError(t, err)

	select {
	case err := <-observed:
		assert.NoError(t, err, "detached work must not inherit the caller's cancellation")
	case <-time.After(time.Second):
		t.Fatal("operation never ran")
	}
}

func TestBatch_RejectsNonBatchType(t *testing.T) {
	e := &Executor{}

	_, err := e.Batch(context.Background(), &types.User{}, types.ExecuteRequest{
		Type: types.ExecDeploy,
	})

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "type", verr.Field)
}

func TestBatch_RequiresPattern(t *testing.T) {
	e := &Executor{}

	_, err := e.Batch(context.Background(), &types.User{}, types.ExecuteRequest{
		Type: types.ExecBatchDeploy,
	})

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pattern", verr.Field)
}
