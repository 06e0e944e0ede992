package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/types"
	"github.com/komodo-sh/komodo/pkg/version"
)

func TestRead_UnknownOperation(t *testing.T) {
	s := NewServer(&config.Config{}, Deps{})

	_, err := s.read(context.Background(), &types.User{}, types.ReadRequest{Type: "ReadTheDocs"})
	assert.True(t, types.IsValidationError(err))
}

func TestRead_GetVersion(t *testing.T) {
	s := NewServer(&config.Config{}, Deps{})

	result, err := s.read(context.Background(), &types.User{}, types.ReadRequest{Type: "GetVersion"})
	require.NoError(t, err)
	assert.Equal(t, types.GetVersionResponse{Version: version.Full()}, result)
}

func TestRead_GetCoreInfo(t *testing.T) {
	s := NewServer(&config.Config{
		Title: "komodo-test",
		Host:  "https://komodo.example.com",
	}, Deps{})

	result, err := s.read(context.Background(), &types.User{}, types.ReadRequest{Type: "GetCoreInfo"})
	require.NoError(t, err)

	info, ok := result.(types.GetCoreInfoResponse)
	require.True(t, ok)
	assert.Equal(t, "komodo-test", info.Title)
	assert.Equal(t, "https://komodo.example.com", info.WebhookBaseURL)
}

func TestMaskVariable(t *testing.T) {
	secret := types.Variable{Name: "DB_PASS", Value: "hunter2", IsSecret: true}
	plain := types.Variable{Name: "REGION", Value: "eu-west-1"}

	admin := &types.User{Admin: true}
	regular := &types.User{}

	assert.Equal(t, "hunter2", maskVariable(admin, secret).Value)
	assert.Equal(t, "", maskVariable(regular, secret).Value)
	assert.Equal(t, "eu-west-1", maskVariable(regular, plain).Value)
	// The name survives masking so interpolation references stay writable.
	assert.Equal(t, "DB_PASS", maskVariable(regular, secret).Name)
}
