package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/komodo-sh/komodo/pkg/types"
)

func TestCoarseLevel(t *testing.T) {
	plain := &types.User{ID: primitive.NewObjectID(), Username: "u", Enabled: true}
	admin := &types.User{ID: primitive.NewObjectID(), Username: "a", Enabled: true, Admin: true}
	executor := &types.User{
		ID: primitive.NewObjectID(), Username: "e", Enabled: true,
		All: map[types.ResourceKind]types.PermissionLevel{
			types.KindDeployment: types.PermissionExecute,
		},
	}
	writeGroup := []types.UserGroup{{
		Name: "ops",
		All: map[types.ResourceKind]types.PermissionLevel{
			types.KindServer: types.PermissionWrite,
		},
	}}

	tests := []struct {
		name         string
		user         *types.User
		groups       []types.UserGroup
		kind         types.ResourceKind
		resourceBase types.PermissionLevel
		transparent  bool
		expected     types.PermissionLevel
	}{
		{
			name:     "admin always writes",
			user:     admin,
			kind:     types.KindServer,
			expected: types.PermissionWrite,
		},
		{
			name:     "no grants means none",
			user:     plain,
			kind:     types.KindServer,
			expected: types.PermissionNone,
		},
		{
			name:        "transparent mode floors at read",
			user:        plain,
			kind:        types.KindServer,
			transparent: true,
			expected:    types.PermissionRead,
		},
		{
			name:         "resource base permission applies",
			user:         plain,
			kind:         types.KindDeployment,
			resourceBase: types.PermissionExecute,
			expected:     types.PermissionExecute,
		},
		{
			name:     "kind-wide user grant applies",
			user:     executor,
			kind:     types.KindDeployment,
			expected: types.PermissionExecute,
		},
		{
			name:     "kind-wide grant is per kind",
			user:     executor,
			kind:     types.KindBuild,
			expected: types.PermissionNone,
		},
		{
			name:     "group grant applies",
			user:     plain,
			groups:   writeGroup,
			kind:     types.KindServer,
			expected: types.PermissionWrite,
		},
		{
			name:         "max of all sources wins",
			user:         executor,
			groups:       writeGroup,
			kind:         types.KindDeployment,
			resourceBase: types.PermissionRead,
			transparent:  true,
			expected:     types.PermissionExecute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := coarseLevel(tt.user, tt.groups, tt.kind, tt.resourceBase, tt.transparent)
			assert.Equal(t, tt.expected, level)
		})
	}
}

// Effective level must never decrease when a grant is added anywhere.
func TestCoarseLevelMonotone(t *testing.T) {
	user := &types.User{ID: primitive.NewObjectID(), Username: "u", Enabled: true}
	before := coarseLevel(user, nil, types.KindStack, types.PermissionNone, false)

	granted := &types.User{
		ID: user.ID, Username: "u", Enabled: true,
		All: map[types.ResourceKind]types.PermissionLevel{types.KindStack: types.PermissionRead},
	}
	after := coarseLevel(granted, nil, types.KindStack, types.PermissionNone, false)
	assert.GreaterOrEqual(t, after.Rank(), before.Rank())

	withGroup := coarseLevel(granted, []types.UserGroup{{
		All: map[types.ResourceKind]types.PermissionLevel{types.KindStack: types.PermissionExecute},
	}}, types.KindStack, types.PermissionNone, false)
	assert.GreaterOrEqual(t, withGroup.Rank(), after.Rank())
}

func TestMatchNames(t *testing.T) {
	names := []string{"api-prod", "api-staging", "worker-prod", "db"}

	tests := []struct {
		name     string
		pattern  string
		expected []string
		wantErr  bool
	}{
		{
			name:     "exact name",
			pattern:  "db",
			expected: []string{"db"},
		},
		{
			name:     "star wildcard",
			pattern:  "api-*",
			expected: []string{"api-prod", "api-staging"},
		},
		{
			name:     "question mark wildcard",
			pattern:  "d?",
			expected: []string{"db"},
		},
		{
			name:     "comma separated union",
			pattern:  "db, worker-*",
			expected: []string{"worker-prod", "db"},
		},
		{
			name:     "regex form",
			pattern:  `\.*-prod$\`,
			expected: []string{"api-prod", "worker-prod"},
		},
		{
			name:     "no match is empty not error",
			pattern:  "nothing-*",
			expected: nil,
		},
		{
			name:    "empty pattern rejected",
			pattern: "  ",
			wantErr: true,
		},
		{
			name:    "invalid regex rejected",
			pattern: `\[unclosed\`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchNames(tt.pattern, names)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, types.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, got)
		})
	}
}

// A wildcard pattern must not be interpreted as a regex: dots are literal.
func TestMatchNamesEscapesMeta(t *testing.T) {
	got, err := MatchNames("a.b", []string{"a.b", "axb"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.b"}, got)
}
