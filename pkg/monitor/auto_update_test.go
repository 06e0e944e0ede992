package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/state"
	"github.com/komodo-sh/komodo/pkg/types"
)

// observingDeployer records the context state and username each trigger ran
// under. Returning success=false keeps the alert pipeline out of the test.
type observingDeployer struct {
	calls chan deployCall
}

type deployCall struct {
	ctxErr   error
	username string
	req      types.ExecuteRequest
}

func (d *observingDeployer) ExecuteAsSystem(ctx context.Context, username string, req types.ExecuteRequest) (types.Update, error) {
	d.calls <- deployCall{ctxErr: ctx.Err(), username: username, req: req}
	return types.Update{}, nil
}

func TestAutoUpdateDeploymentOutlivesSweep(t *testing.T) {
	deployer := &observingDeployer{calls: make(chan deployCall, 1)}
	m := New(state.New(&config.Config{}, nil), nil, nil, deployer)

	dep := resource.Deployment{ID: primitive.NewObjectID(), Name: "api"}

	// The sweep's group context is already gone by the time the detached
	// deploy gets scheduled.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.autoUpdateDeployment(ctx, dep, types.DeploymentStatus{State: types.DeploymentRunning}, types.AlertData{})

	select {
	case call := <-deployer.calls:
		assert.NoError(t, call.ctxErr, "auto update deploy must not run under the sweep's cancellation")
		assert.Equal(t, types.SystemUserAutoRedeploy, call.username)
		assert.Equal(t, types.ExecDeploy, call.req.Type)
		assert.Equal(t, dep.ID.Hex(), call.req.Params.Deployment)
	case <-time.After(time.Second):
		t.Fatal("auto update deploy was never triggered")
	}
}

func TestAutoUpdateDeploymentSkipsNonRunning(t *testing.T) {
	deployer := &observingDeployer{calls: make(chan deployCall, 1)}
	m := New(state.New(&config.Config{}, nil), nil, nil, deployer)

	dep := resource.Deployment{ID: primitive.NewObjectID(), Name: "api"}
	m.autoUpdateDeployment(context.Background(), dep, types.DeploymentStatus{State: types.DeploymentExited}, types.AlertData{})

	select {
	case <-deployer.calls:
		t.Fatal("stopped deployment must not be auto updated")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAutoUpdateStackOutlivesSweep(t *testing.T) {
	deployer := &observingDeployer{calls: make(chan deployCall, 1)}
	m := New(state.New(&config.Config{}, nil), nil, nil, deployer)

	stack := resource.Stack{ID: primitive.NewObjectID(), Name: "web"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.autoUpdateStack(ctx, stack, []string{"api"}, types.AlertData{})

	select {
	case call := <-deployer.calls:
		assert.NoError(t, call.ctxErr, "auto update stack deploy must not run under the sweep's cancellation")
		assert.Equal(t, types.ExecDeployStack, call.req.Type)
		assert.Equal(t, []string{"api"}, call.req.Params.Services)
	case <-time.After(time.Second):
		t.Fatal("auto update stack deploy was never triggered")
	}
}

func TestAutoUpdateStackAllServices(t *testing.T) {
	deployer := &observingDeployer{calls: make(chan deployCall, 1)}
	m := New(state.New(&config.Config{}, nil), nil, nil, deployer)

	stack := resource.Stack{ID: primitive.NewObjectID(), Name: "web"}
	stack.Config.AutoUpdateAllServices = true
	m.autoUpdateStack(context.Background(), stack, []string{"api"}, types.AlertData{})

	select {
	case call := <-deployer.calls:
		assert.Nil(t, call.req.Params.Services, "whole-stack auto update redeploys every service")
	case <-time.After(time.Second):
		t.Fatal("auto update stack deploy was never triggered")
	}
}
