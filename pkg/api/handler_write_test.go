package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

func TestTeardownFor(t *testing.T) {
	t.Run("deployment destroys its container", func(t *testing.T) {
		dep := &resource.Deployment{Name: "api"}
		dep.Config.ServerID = "507f1f77bcf86cd799439011"
		dep.Config.TerminationSignal = types.SigInt
		dep.Config.TerminationTimeout = 30

		td := teardownFor(&resource.Row{Name: "api", Resource: dep})
		require.NotNil(t, td)
		assert.Equal(t, "507f1f77bcf86cd799439011", td.serverID)
		assert.Equal(t, "Destroy Container", td.stage)
		assert.NotNil(t, td.call)
	})

	t.Run("repo deletes its clone", func(t *testing.T) {
		repo := &resource.Repo{Name: "infra"}
		repo.Config.ServerID = "507f1f77bcf86cd799439011"

		td := teardownFor(&resource.Row{Name: "infra", Resource: repo})
		require.NotNil(t, td)
		assert.Equal(t, "Delete Repo", td.stage)
	})

	t.Run("stack brings its compose project down", func(t *testing.T) {
		stack := &resource.Stack{Name: "web"}
		stack.Config.ServerID = "507f1f77bcf86cd799439011"

		td := teardownFor(&resource.Row{Name: "web", Resource: stack})
		require.NotNil(t, td)
		assert.Equal(t, "Destroy Stack", td.stage)
	})

	t.Run("serverless resources have nothing to tear down", func(t *testing.T) {
		assert.Nil(t, teardownFor(&resource.Row{Resource: &resource.Deployment{Name: "api"}}))
		assert.Nil(t, teardownFor(&resource.Row{Resource: &resource.Repo{Name: "infra"}}))
		assert.Nil(t, teardownFor(&resource.Row{Resource: &resource.Stack{Name: "web"}}))
	})

	t.Run("other kinds have nothing to tear down", func(t *testing.T) {
		proc := &resource.Procedure{Name: "nightly"}
		assert.Nil(t, teardownFor(&resource.Row{Resource: proc}))

		alerter := &resource.Alerter{Name: "slack"}
		assert.Nil(t, teardownFor(&resource.Row{Resource: alerter}))
	})
}
