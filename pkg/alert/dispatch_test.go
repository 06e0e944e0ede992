package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/komodo-sh/komodo/pkg/types"
)

func TestAlerterAccepts(t *testing.T) {
	server := types.ResourceTarget{Type: types.KindServer, ID: "abc"}
	other := types.ResourceTarget{Type: types.KindServer, ID: "def"}

	alert := types.Alert{
		Level:    types.SeverityCritical,
		Target:   server,
		DataType: types.AlertServerUnreachable,
	}

	tests := []struct {
		name string
		cfg  types.AlerterConfig
		want bool
	}{
		{
			name: "enabled with no filters accepts everything",
			cfg:  types.AlerterConfig{Enabled: true},
			want: true,
		},
		{
			name: "disabled rejects",
			cfg:  types.AlerterConfig{Enabled: false},
			want: false,
		},
		{
			name: "type whitelist hit",
			cfg: types.AlerterConfig{
				Enabled:    true,
				AlertTypes: []types.AlertDataType{types.AlertServerUnreachable},
			},
			want: true,
		},
		{
			name: "type whitelist miss",
			cfg: types.AlerterConfig{
				Enabled:    true,
				AlertTypes: []types.AlertDataType{types.AlertBuildFailed},
			},
			want: false,
		},
		{
			name: "resource whitelist hit",
			cfg: types.AlerterConfig{
				Enabled:   true,
				Resources: []types.ResourceTarget{server},
			},
			want: true,
		},
		{
			name: "resource whitelist miss",
			cfg: types.AlerterConfig{
				Enabled:   true,
				Resources: []types.ResourceTarget{other},
			},
			want: false,
		},
		{
			name: "blacklist overrides whitelist",
			cfg: types.AlerterConfig{
				Enabled:         true,
				Resources:       []types.ResourceTarget{server},
				ExceptResources: []types.ResourceTarget{server},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, alerterAccepts(tt.cfg, alert))
		})
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name  string
		alert types.Alert
		want  string
	}{
		{
			name: "server unreachable with error",
			alert: types.Alert{
				DataType: types.AlertServerUnreachable,
				Data:     types.AlertData{Name: "prod-1", Err: "connection refused"},
			},
			want: "*prod-1* is unreachable: connection refused",
		},
		{
			name: "server unreachable resolved",
			alert: types.Alert{
				DataType: types.AlertServerUnreachable,
				Resolved: true,
				Data:     types.AlertData{Name: "prod-1"},
			},
			want: "*prod-1* is reachable again",
		},
		{
			name: "cpu threshold",
			alert: types.Alert{
				DataType: types.AlertServerCpu,
				Data:     types.AlertData{Name: "prod-1", Percentage: 97.3},
			},
			want: "*prod-1* CPU usage at 97.3%",
		},
		{
			name: "container state change",
			alert: types.Alert{
				DataType: types.AlertContainerStateChange,
				Data: types.AlertData{
					Name: "api", ServerName: "prod-1",
					From: "running", To: "exited",
				},
			},
			want: "*api* on *prod-1*: running ➜ exited",
		},
		{
			name: "build failed with version",
			alert: types.Alert{
				DataType: types.AlertBuildFailed,
				Data: types.AlertData{
					Name:    "api",
					Version: &types.Version{Major: 1, Minor: 2, Patch: 3},
				},
			},
			want: "build *api* failed at v1.2.3",
		},
		{
			name: "builder termination failure names the instance",
			alert: types.Alert{
				DataType: types.AlertAwsBuilderTerminationFailed,
				Data:     types.AlertData{InstanceID: "i-0abc", Err: "timeout"},
			},
			want: "failed to terminate builder instance *i-0abc*: timeout. The instance must be terminated manually.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.alert))
		})
	}
}

func TestLevelColor(t *testing.T) {
	assert.Equal(t, 0x2ecc71, levelColor(types.SeverityOk))
	assert.Equal(t, 0xe67e22, levelColor(types.SeverityWarning))
	assert.Equal(t, 0xe74c3c, levelColor(types.SeverityCritical))
}
