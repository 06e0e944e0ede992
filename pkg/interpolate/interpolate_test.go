package interpolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/types"
)

func testVars() []types.Variable {
	return []types.Variable{
		{Name: "REGION", Value: "us-east-1"},
		{Name: "DB_PASSWORD", Value: "hunter2", IsSecret: true},
		{Name: "API_TOKEN", Value: "hunter2-extended", IsSecret: true},
	}
}

func TestInterpolateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "no references passes through",
			input:    "plain value",
			expected: "plain value",
		},
		{
			name:     "plain variable",
			input:    "deploy to [[REGION]]",
			expected: "deploy to us-east-1",
		},
		{
			name:     "secret variable",
			input:    "PASSWORD=[[DB_PASSWORD]]",
			expected: "PASSWORD=hunter2",
		},
		{
			name:     "multiple references",
			input:    "[[REGION]]/[[REGION]]",
			expected: "us-east-1/us-east-1",
		},
		{
			name:    "unknown variable errors",
			input:   "[[NO_SUCH_VAR]]",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New(testVars()).String(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestSummaryLogOmitsSecrets(t *testing.T) {
	i := New(testVars())

	_, err := i.String("[[REGION]] [[DB_PASSWORD]]")
	require.NoError(t, err)

	log := i.SummaryLog()
	require.NotNil(t, log)
	assert.Contains(t, log.Stdout, "REGION")
	assert.NotContains(t, log.Stdout, "DB_PASSWORD")
	assert.NotContains(t, log.Stdout, "hunter2")
	assert.Contains(t, log.Stdout, "1 secret reference(s)")
}

func TestSummaryLogNilWhenUnused(t *testing.T) {
	i := New(testVars())
	_, err := i.String("nothing here")
	require.NoError(t, err)
	assert.Nil(t, i.SummaryLog())
}

func TestRedactor(t *testing.T) {
	r := NewRedactor(testVars())

	t.Run("replaces secret values", func(t *testing.T) {
		out := r.Redact("connecting with hunter2 now")
		assert.Equal(t, "connecting with <DB_PASSWORD> now", out)
	})

	t.Run("longest secret wins on overlap", func(t *testing.T) {
		out := r.Redact("token hunter2-extended end")
		assert.Equal(t, "token <API_TOKEN> end", out)
	})

	t.Run("non-secret values untouched", func(t *testing.T) {
		out := r.Redact("region us-east-1")
		assert.Equal(t, "region us-east-1", out)
	})

	t.Run("redacts all log fields", func(t *testing.T) {
		log := r.RedactLog(types.Log{
			Command: "run hunter2",
			Stdout:  "out hunter2",
			Stderr:  "err hunter2",
		})
		assert.NotContains(t, log.Command, "hunter2")
		assert.NotContains(t, log.Stdout, "hunter2")
		assert.NotContains(t, log.Stderr, "hunter2")
	})
}

func TestValueRedactor(t *testing.T) {
	r := NewValueRedactor(map[string]string{
		"API_KEY":    "K-abc123",
		"API_SECRET": "S-def456",
	})
	out := r.Redact("key=K-abc123 secret=S-def456")
	assert.Equal(t, "key=<API_KEY> secret=<API_SECRET>", out)
}
