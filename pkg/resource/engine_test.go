package resource

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/types"
)

func fullServerConfig() types.ServerConfig {
	return types.ServerConfig{
		Address:               "https://10.0.0.2:8120",
		Region:                "eu-central",
		Enabled:               true,
		TimeoutSeconds:        30,
		Passkey:               "pk",
		IgnoreMounts:          []string{"/boot"},
		SendUnreachableAlerts: true,
		SendCpuAlerts:         true,
		SendMemAlerts:         true,
		SendDiskAlerts:        true,
		CpuWarning:            80,
		CpuCritical:           95,
		MemWarning:            70,
		MemCritical:           90,
		DiskWarning:           75,
		DiskCritical:          95,
		AutoPrune:             true,
		Links:                 []string{"https://grafana.example.com"},
	}
}

func TestPartialRoundTrip(t *testing.T) {
	// Config -> Partial -> Config on a fully populated config is identity.
	orig := fullServerConfig()

	partial, err := ToPartial(orig)
	require.NoError(t, err)

	merged, err := MergePartial(types.NewServerConfig(), partial)
	require.NoError(t, err)
	assert.Equal(t, orig, merged)
}

func TestMergePartial(t *testing.T) {
	t.Run("overlays only provided fields", func(t *testing.T) {
		base := types.NewServerConfig()
		partial := types.Partial{
			"address": json.RawMessage(`"https://10.0.0.9:8120"`),
			"enabled": json.RawMessage(`false`),
		}

		merged, err := MergePartial(base, partial)
		require.NoError(t, err)
		assert.Equal(t, "https://10.0.0.9:8120", merged.Address)
		assert.False(t, merged.Enabled)
		// Untouched fields keep the defaults.
		assert.Equal(t, base.CpuWarning, merged.CpuWarning)
		assert.Equal(t, base.TimeoutSeconds, merged.TimeoutSeconds)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		partial := types.Partial{
			"adress": json.RawMessage(`"typo"`),
		}
		_, err := MergePartial(types.NewServerConfig(), partial)
		var verr *types.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("rejects type mismatches", func(t *testing.T) {
		partial := types.Partial{
			"enabled": json.RawMessage(`"yes"`),
		}
		_, err := MergePartial(types.NewServerConfig(), partial)
		var verr *types.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestDiff(t *testing.T) {
	t.Run("identical partial produces empty diff", func(t *testing.T) {
		cfg := fullServerConfig()
		partial, err := ToPartial(cfg)
		require.NoError(t, err)

		diff, err := Diff(cfg, partial)
		require.NoError(t, err)
		assert.Empty(t, diff)
	})

	t.Run("changed fields only", func(t *testing.T) {
		cfg := fullServerConfig()
		partial := types.Partial{
			"region":      json.RawMessage(`"us-east"`),
			"cpu_warning": json.RawMessage(`80`),
		}

		diff, err := Diff(cfg, partial)
		require.NoError(t, err)
		require.Len(t, diff, 1)
		change, ok := diff["region"]
		require.True(t, ok)
		assert.JSONEq(t, `"eu-central"`, string(change.From))
		assert.JSONEq(t, `"us-east"`, string(change.To))
	})

	t.Run("absent field diffs from null", func(t *testing.T) {
		cfg := types.NewServerConfig()
		// region is omitempty and empty on the default config, so the
		// stored document has no such key.
		partial := types.Partial{"region": json.RawMessage(`"us-east"`)}

		diff, err := Diff(cfg, partial)
		require.NoError(t, err)
		require.Contains(t, diff, "region")
	})

	t.Run("null equals zero", func(t *testing.T) {
		cfg := types.NewServerConfig()
		// A declaration spelling out the zero must not diff against a
		// stored config that omits the field.
		partial := types.Partial{
			"region":        json.RawMessage(`""`),
			"ignore_mounts": json.RawMessage(`[]`),
			"auto_prune":    json.RawMessage(`false`),
		}

		diff, err := Diff(cfg, partial)
		require.NoError(t, err)
		assert.Empty(t, diff)
	})
}

func TestDiffRoundTrip(t *testing.T) {
	// Diff -> partial -> re-diff against the original reproduces the diff.
	cfg := fullServerConfig()
	partial := types.Partial{
		"region":       json.RawMessage(`"us-east"`),
		"cpu_critical": json.RawMessage(`99`),
	}

	diff, err := Diff(cfg, partial)
	require.NoError(t, err)
	require.Len(t, diff, 2)

	rediff, err := Diff(cfg, diff.ToUpdatePartial())
	require.NoError(t, err)
	assert.Equal(t, diff, rediff)
}

func TestConfigDiffRender(t *testing.T) {
	diff := ConfigDiff{
		"b_field": {From: json.RawMessage(`1`), To: json.RawMessage(`2`)},
		"a_field": {From: json.RawMessage(`"x"`), To: json.RawMessage(`"y"`)},
	}

	assert.Equal(t, []string{"a_field", "b_field"}, diff.SortedFields())
	assert.Equal(t, "a_field: \"x\" => \"y\"\nb_field: 1 => 2\n", diff.Render())
}
