package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name              string
		value             float64
		warning, critical float64
		want              types.SeverityLevel
	}{
		{"below warning", 50, 75, 95, types.SeverityOk},
		{"at warning", 75, 75, 95, types.SeverityWarning},
		{"between", 80, 75, 95, types.SeverityWarning},
		{"at critical", 95, 75, 95, types.SeverityCritical},
		{"above critical", 99.9, 75, 95, types.SeverityCritical},
		{"zero thresholds disable", 99.9, 0, 0, types.SeverityOk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.value, tt.warning, tt.critical))
		})
	}
}

func TestComputeHealth(t *testing.T) {
	cfg := types.NewServerConfig()
	cfg.IgnoreMounts = []string{"/boot"}

	stats := types.SystemStats{
		CpuPerc:    95,
		MemUsedGB:  30,
		MemTotalGB: 32,
		Disks: []types.SingleDiskUsage{
			{Mount: "/", UsedGB: 90, TotalGB: 100},
			{Mount: "/boot", UsedGB: 0.9, TotalGB: 1},
			{Mount: "/data", UsedGB: 10, TotalGB: 100},
		},
	}

	health := computeHealth(cfg, &stats)

	assert.Equal(t, types.SeverityWarning, health.Cpu)
	assert.Equal(t, types.SeverityWarning, health.Mem)
	assert.Equal(t, types.SeverityWarning, health.Disks["/"])
	assert.Equal(t, types.SeverityOk, health.Disks["/data"])
	_, tracked := health.Disks["/boot"]
	assert.False(t, tracked, "ignored mounts are not classified")
}

func TestStackServiceGrouping(t *testing.T) {
	stack := resource.Stack{Name: "web"}
	stack.Config.PollForUpdates = true

	containers := []types.Container{
		{
			Name:  "web-api-1",
			Image: "api:latest",
			State: types.ContainerRunning,
			Labels: map[string]string{
				types.ComposeProjectLabel: "web",
				types.ComposeServiceLabel: "api",
			},
			UpdateAvailable: true,
		},
		{
			Name:  "web-db-1",
			Image: "postgres:16",
			State: types.ContainerRunning,
			Labels: map[string]string{
				types.ComposeProjectLabel: "web",
				types.ComposeServiceLabel: "db",
			},
		},
		{
			Name:  "other-1",
			State: types.ContainerRunning,
			Labels: map[string]string{
				types.ComposeProjectLabel: "other",
				types.ComposeServiceLabel: "app",
			},
		},
		{Name: "loose", State: types.ContainerExited},
	}

	services := stackServices(stack, containers)

	assert.Len(t, services, 2)
	assert.Equal(t, "api", services[0].ServiceName)
	assert.True(t, services[0].UpdateAvailable)
	assert.Equal(t, "db", services[1].ServiceName)
	assert.False(t, services[1].UpdateAvailable)
}

func TestStackServiceGroupingHonorsProjectName(t *testing.T) {
	stack := resource.Stack{Name: "web"}
	stack.Config.ProjectName = "custom"

	containers := []types.Container{
		{
			Name:  "c1",
			State: types.ContainerRunning,
			Labels: map[string]string{
				types.ComposeProjectLabel: "custom",
				types.ComposeServiceLabel: "api",
			},
		},
		{
			Name:  "c2",
			State: types.ContainerRunning,
			Labels: map[string]string{
				types.ComposeProjectLabel: "web",
				types.ComposeServiceLabel: "api",
			},
		},
	}

	services := stackServices(stack, containers)
	assert.Len(t, services, 1)
	assert.Equal(t, "c1", services[0].Container.Name)
}

func TestStackState(t *testing.T) {
	running := types.Container{State: types.ContainerRunning}
	exited := types.Container{State: types.ContainerExited}

	t.Run("uniform running", func(t *testing.T) {
		stack := resource.Stack{Name: "web"}
		services := []types.StackServiceStatus{
			{ServiceName: "api", Container: &running},
			{ServiceName: "db", Container: &running},
		}
		assert.Equal(t, types.StackRunning, stackState(stack, services))
	})

	t.Run("mixed is unhealthy", func(t *testing.T) {
		stack := resource.Stack{Name: "web"}
		services := []types.StackServiceStatus{
			{ServiceName: "api", Container: &running},
			{ServiceName: "job", Container: &exited},
		}
		assert.Equal(t, types.StackUnhealthy, stackState(stack, services))
	})

	t.Run("ignored services are excluded", func(t *testing.T) {
		stack := resource.Stack{Name: "web"}
		stack.Config.IgnoreServices = []string{"job"}
		services := []types.StackServiceStatus{
			{ServiceName: "api", Container: &running},
			{ServiceName: "job", Container: &exited},
		}
		assert.Equal(t, types.StackRunning, stackState(stack, services))
	})

	t.Run("no containers is down", func(t *testing.T) {
		stack := resource.Stack{Name: "web"}
		assert.Equal(t, types.StackDown, stackState(stack, nil))
	})
}
