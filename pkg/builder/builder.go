// Package builder provisions and tears down ephemeral cloud hosts for builds
// and server launches. Provider backends implement Provisioner; the manager
// selects one per the resource's cloud provider and handles the shared
// readiness and termination machinery.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/periphery"
	"github.com/komodo-sh/komodo/pkg/types"
)

const (
	// Readiness polling against the fresh instance's periphery agent.
	readyAttempts = 30
	readyInterval = 2 * time.Second

	// Termination retries before giving up and alerting.
	terminateAttempts = 5
	terminateInterval = 15 * time.Second
)

// Provider identifies a cloud backend.
type Provider string

const (
	ProviderAws     Provider = "Aws"
	ProviderHetzner Provider = "Hetzner"
)

// CloudSpec is the provider-neutral instance request, built from either a
// builder's or a server template's cloud params.
type CloudSpec struct {
	Port        int
	UseHTTPS    bool
	UsePublicIP bool
	UserData    string

	// Aws.
	Region           string
	InstanceType     string
	VolumeGB         int32
	AmiID            string
	SubnetID         string
	SecurityGroupIDs []string
	KeyPairName      string
	AssignPublicIP   bool

	// Hetzner.
	ServerType string
	Location   string
	ImageName  string
	SSHKeys    []string
}

// SpecFromBuilder maps a builder's cloud params onto the neutral spec.
func SpecFromBuilder(p types.BuilderConfigParams) CloudSpec {
	return CloudSpec{
		Port:             p.Port,
		UseHTTPS:         p.UseHTTPS,
		UsePublicIP:      p.UsePublicIP,
		UserData:         p.UserData,
		Region:           p.Region,
		InstanceType:     p.InstanceType,
		VolumeGB:         p.VolumeGB,
		AmiID:            p.AmiID,
		SubnetID:         p.SubnetID,
		SecurityGroupIDs: p.SecurityGroupIDs,
		KeyPairName:      p.KeyPairName,
		AssignPublicIP:   p.AssignPublicIP,
		ServerType:       p.ServerType,
		Location:         p.Location,
		ImageName:        p.ImageName,
		SSHKeys:          p.SSHKeys,
	}
}

// SpecFromTemplate maps a server template's cloud params onto the neutral spec.
func SpecFromTemplate(p types.ServerTemplateConfigParams) CloudSpec {
	return CloudSpec{
		Port:             p.Port,
		UseHTTPS:         p.UseHTTPS,
		UsePublicIP:      p.UsePublicIP,
		UserData:         p.UserData,
		Region:           p.Region,
		InstanceType:     p.InstanceType,
		VolumeGB:         p.VolumeGB,
		AmiID:            p.AmiID,
		SubnetID:         p.SubnetID,
		SecurityGroupIDs: p.SecurityGroupIDs,
		KeyPairName:      p.KeyPairName,
		AssignPublicIP:   p.AssignPublicIP,
		ServerType:       p.ServerType,
		Location:         p.Location,
		ImageName:        p.ImageName,
		SSHKeys:          p.SSHKeys,
	}
}

// Instance is a provisioned cloud host.
type Instance struct {
	// ID is the provider's instance identifier, kept for termination.
	ID string
	// IP is the public or private address, per CloudSpec.UsePublicIP.
	IP string
}

// Address returns the periphery agent url of the instance.
func (i Instance) Address(spec CloudSpec) string {
	scheme := "http"
	if spec.UseHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, i.IP, spec.Port)
}

// Provisioner launches and terminates instances at one provider.
type Provisioner interface {
	// Launch creates an instance and blocks until it is running with an
	// address assigned.
	Launch(ctx context.Context, name string, spec CloudSpec) (Instance, error)
	// Terminate destroys the instance. The spec locates it (e.g. region).
	Terminate(ctx context.Context, instanceID string, spec CloudSpec) error
}

// Manager hands out provider backends from the configured credentials.
type Manager struct {
	aws     config.AwsConfig
	hetzner config.HetznerConfig
}

func NewManager(cfg *config.Config) *Manager {
	return &Manager{aws: cfg.AWS, hetzner: cfg.Hetzner}
}

// For returns the backend for the provider, or a validation error when its
// credentials are not configured.
func (m *Manager) For(provider Provider) (Provisioner, error) {
	switch provider {
	case ProviderAws:
		if !m.aws.Enabled() {
			return nil, types.NewValidationError("builder", "aws credentials are not configured on this core")
		}
		return &awsProvisioner{creds: m.aws}, nil
	case ProviderHetzner:
		if !m.hetzner.Enabled() {
			return nil, types.NewValidationError("builder", "hetzner token is not configured on this core")
		}
		return &hetznerProvisioner{token: m.hetzner.Token}, nil
	default:
		return nil, types.NewValidationError("builder", fmt.Sprintf("unknown cloud provider: %s", provider))
	}
}

// WaitReady polls the instance's periphery agent until it responds to
// GetVersion, bounded at readyAttempts.
func WaitReady(ctx context.Context, client *periphery.Client) error {
	var lastErr error
	for i := 0; i < readyAttempts; i++ {
		if _, err := client.GetVersion(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyInterval):
		}
	}
	return types.NewExternalError("builder",
		fmt.Errorf("instance agent did not become reachable at %s: %w", client.Address(), lastErr))
}

// TerminateWithRetry tears the instance down, retrying on failure. The caller
// raises the termination-failed alert when this returns an error: a leaked
// instance costs money until someone acts.
func TerminateWithRetry(ctx context.Context, p Provisioner, instanceID string, spec CloudSpec) error {
	var lastErr error
	for i := 0; i < terminateAttempts; i++ {
		if err := p.Terminate(ctx, instanceID, spec); err == nil {
			return nil
		} else {
			lastErr = err
			slog.Warn("Failed to terminate builder instance, retrying",
				"instance_id", instanceID,
				"attempt", i+1,
				"error", err)
		}
		if i == terminateAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(terminateInterval):
		}
	}
	return fmt.Errorf("failed to terminate instance %s after %d attempts: %w",
		instanceID, terminateAttempts, lastErr)
}
