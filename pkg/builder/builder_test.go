package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/types"
)

func TestInstanceAddress(t *testing.T) {
	instance := Instance{ID: "i-0abc", IP: "10.0.0.5"}

	assert.Equal(t, "https://10.0.0.5:8120",
		instance.Address(CloudSpec{UseHTTPS: true, Port: 8120}))
	assert.Equal(t, "http://10.0.0.5:9001",
		instance.Address(CloudSpec{UseHTTPS: false, Port: 9001}))
}

func TestSpecFromBuilder(t *testing.T) {
	spec := SpecFromBuilder(types.BuilderConfigParams{
		Port:             8120,
		UseHTTPS:         true,
		UsePublicIP:      true,
		Region:           "us-east-1",
		InstanceType:     "c5.2xlarge",
		VolumeGB:         40,
		AmiID:            "ami-123",
		SecurityGroupIDs: []string{"sg-1", "sg-2"},
	})

	assert.Equal(t, "us-east-1", spec.Region)
	assert.Equal(t, "c5.2xlarge", spec.InstanceType)
	assert.Equal(t, int32(40), spec.VolumeGB)
	assert.Equal(t, []string{"sg-1", "sg-2"}, spec.SecurityGroupIDs)
	assert.True(t, spec.UsePublicIP)
}

func TestManagerFor(t *testing.T) {
	t.Run("aws without credentials", func(t *testing.T) {
		m := NewManager(&config.Config{})
		_, err := m.For(ProviderAws)
		require.Error(t, err)
		assert.True(t, types.IsValidationError(err))
	})

	t.Run("hetzner without token", func(t *testing.T) {
		m := NewManager(&config.Config{})
		_, err := m.For(ProviderHetzner)
		require.Error(t, err)
		assert.True(t, types.IsValidationError(err))
	})

	t.Run("aws with credentials", func(t *testing.T) {
		m := NewManager(&config.Config{
			AWS: config.AwsConfig{AccessKeyID: "AKIA", SecretAccessKey: "secret"},
		})
		p, err := m.For(ProviderAws)
		require.NoError(t, err)
		assert.NotNil(t, p)
	})

	t.Run("hetzner with token", func(t *testing.T) {
		m := NewManager(&config.Config{
			Hetzner: config.HetznerConfig{Token: "tok"},
		})
		p, err := m.For(ProviderHetzner)
		require.NoError(t, err)
		assert.NotNil(t, p)
	})

	t.Run("unknown provider", func(t *testing.T) {
		m := NewManager(&config.Config{})
		_, err := m.For(Provider("DigitalOcean"))
		require.Error(t, err)
	})
}
