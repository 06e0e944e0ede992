package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "1.2.3", Version{Major: 1, Minor: 2, Patch: 3}.String())
		assert.Equal(t, "0.0.0", Version{}.String())
	})

	t.Run("increment bumps patch only", func(t *testing.T) {
		v := Version{Major: 1, Minor: 4, Patch: 9}.Increment()
		assert.Equal(t, Version{Major: 1, Minor: 4, Patch: 10}, v)
	})

	t.Run("is zero", func(t *testing.T) {
		assert.True(t, Version{}.IsZero())
		assert.False(t, Version{Patch: 1}.IsZero())
	})
}

func TestAllLogsSuccess(t *testing.T) {
	tests := []struct {
		name string
		logs []Log
		want bool
	}{
		{"no logs", nil, true},
		{"all success", []Log{
			SimpleLog("Clone", "done", 1, 2),
			SimpleLog("Build", "done", 2, 3),
		}, true},
		{"one failure", []Log{
			SimpleLog("Clone", "done", 1, 2),
			ErrorLog("Build", errors.New("exit 1"), 2, 3),
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := Update{Logs: tt.logs}
			assert.Equal(t, tt.want, u.AllLogsSuccess())
		})
	}

	t.Run("chains off a returned copy", func(t *testing.T) {
		fresh := func() Update {
			return Update{Logs: []Log{SimpleLog("Deploy", "done", 1, 2)}}
		}
		assert.True(t, fresh().AllLogsSuccess())
	})
}

func TestLogConstructors(t *testing.T) {
	s := SimpleLog("Deploy", "container started", 10, 20)
	assert.True(t, s.Success)
	assert.Equal(t, "Deploy", s.Stage)
	assert.Equal(t, "container started", s.Stdout)
	assert.Empty(t, s.Stderr)

	e := ErrorLog("Deploy", errors.New("no such image"), 10, 20)
	assert.False(t, e.Success)
	assert.Equal(t, "no such image", e.Stderr)
	assert.Empty(t, e.Stdout)
}
