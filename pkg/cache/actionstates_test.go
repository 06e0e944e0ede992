package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/types"
)

func TestGuard_ClaimsAndReleases(t *testing.T) {
	states := NewActionStates[types.BuildActionState]()

	release, err := states.Guard("b1", func(s *types.BuildActionState) *bool { return &s.Building })
	require.NoError(t, err)
	assert.True(t, states.Busy("b1"))
	assert.True(t, states.Get("b1").Building)

	release()
	assert.False(t, states.Busy("b1"))
	assert.False(t, states.Get("b1").Building)
}

func TestGuard_RefusesWhileBusy(t *testing.T) {
	states := NewActionStates[types.DeploymentActionState]()

	release, err := states.Guard("d1", func(s *types.DeploymentActionState) *bool { return &s.Deploying })
	require.NoError(t, err)
	defer release()

	// Same flag refused.
	_, err = states.Guard("d1", func(s *types.DeploymentActionState) *bool { return &s.Deploying })
	assert.ErrorIs(t, err, types.ErrBusy)

	// Any other flag refused too: one operation per resource.
	_, err = states.Guard("d1", func(s *types.DeploymentActionState) *bool { return &s.Stopping })
	assert.ErrorIs(t, err, types.ErrBusy)

	// Other resources unaffected.
	release2, err := states.Guard("d2", func(s *types.DeploymentActionState) *bool { return &s.Deploying })
	require.NoError(t, err)
	release2()
}

func TestGuard_SingleWinnerUnderContention(t *testing.T) {
	states := NewActionStates[types.BuildActionState]()

	const racers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, busies int

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := states.Guard("b1", func(s *types.BuildActionState) *bool { return &s.Building })
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				// Hold the claim so the rest observe busy.
				defer release()
				return
			}
			if errors.Is(err, types.ErrBusy) {
				busies++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one racer should claim the flag")
	assert.Equal(t, racers-1, busies)
	// The winner released on goroutine exit.
	assert.False(t, states.Busy("b1"))
}

func TestGuard_ReleaseIsIdempotent(t *testing.T) {
	states := NewActionStates[types.SyncActionState]()

	release, err := states.Guard("s1", func(s *types.SyncActionState) *bool { return &s.Syncing })
	require.NoError(t, err)

	release()
	// Second claim between the two releases must not be clobbered.
	release2, err := states.Guard("s1", func(s *types.SyncActionState) *bool { return &s.Syncing })
	require.NoError(t, err)

	release()
	assert.True(t, states.Busy("s1"), "stale release must not clear the new claim")

	release2()
	assert.False(t, states.Busy("s1"))
}

func TestActionStates_Remove(t *testing.T) {
	states := NewActionStates[types.RepoActionState]()

	release, err := states.Guard("r1", func(s *types.RepoActionState) *bool { return &s.Cloning })
	require.NoError(t, err)
	release()

	states.Remove("r1")
	assert.False(t, states.Busy("r1"))
}
