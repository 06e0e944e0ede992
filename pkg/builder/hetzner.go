package builder

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/komodo-sh/komodo/pkg/types"
)

const (
	hetznerPollAttempts = 60
	hetznerPollInterval = 2 * time.Second
)

type hetznerProvisioner struct {
	token string
}

func (p *hetznerProvisioner) Launch(ctx context.Context, name string, spec CloudSpec) (Instance, error) {
	client := hcloud.NewClient(hcloud.WithToken(p.token))

	serverType, _, err := client.ServerType.GetByName(ctx, spec.ServerType)
	if err != nil {
		return Instance{}, types.NewExternalError("hetzner", fmt.Errorf("failed to resolve server type: %w", err))
	}
	if serverType == nil {
		return Instance{}, types.NewValidationError("server_type",
			fmt.Sprintf("unknown hetzner server type: %s", spec.ServerType))
	}
	image, _, err := client.Image.GetByName(ctx, spec.ImageName)
	if err != nil {
		return Instance{}, types.NewExternalError("hetzner", fmt.Errorf("failed to resolve image: %w", err))
	}
	if image == nil {
		return Instance{}, types.NewValidationError("image_name",
			fmt.Sprintf("unknown hetzner image: %s", spec.ImageName))
	}

	opts := hcloud.ServerCreateOpts{
		Name:       name,
		ServerType: serverType,
		Image:      image,
		UserData:   spec.UserData,
	}
	if spec.Location != "" {
		location, _, err := client.Location.GetByName(ctx, spec.Location)
		if err != nil {
			return Instance{}, types.NewExternalError("hetzner", fmt.Errorf("failed to resolve location: %w", err))
		}
		if location == nil {
			return Instance{}, types.NewValidationError("location",
				fmt.Sprintf("unknown hetzner location: %s", spec.Location))
		}
		opts.Location = location
	}
	for _, keyName := range spec.SSHKeys {
		key, _, err := client.SSHKey.GetByName(ctx, keyName)
		if err != nil {
			return Instance{}, types.NewExternalError("hetzner", fmt.Errorf("failed to resolve ssh key: %w", err))
		}
		if key == nil {
			return Instance{}, types.NewValidationError("ssh_keys",
				fmt.Sprintf("unknown hetzner ssh key: %s", keyName))
		}
		opts.SSHKeys = append(opts.SSHKeys, key)
	}

	result, _, err := client.Server.Create(ctx, opts)
	if err != nil {
		return Instance{}, types.NewExternalError("hetzner", fmt.Errorf("failed to create server: %w", err))
	}
	id := result.Server.ID

	instance, err := p.waitRunning(ctx, client, id, spec.UsePublicIP)
	if err != nil {
		return Instance{ID: strconv.FormatInt(id, 10)}, err
	}
	return instance, nil
}

func (p *hetznerProvisioner) waitRunning(ctx context.Context, client *hcloud.Client, id int64, publicIP bool) (Instance, error) {
	instanceID := strconv.FormatInt(id, 10)
	for i := 0; i < hetznerPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return Instance{ID: instanceID}, ctx.Err()
		case <-time.After(hetznerPollInterval):
		}

		server, _, err := client.Server.GetByID(ctx, id)
		if err != nil || server == nil {
			continue
		}
		if server.Status != hcloud.ServerStatusRunning {
			continue
		}
		ip := serverIP(server, publicIP)
		if ip == "" {
			continue
		}
		return Instance{ID: instanceID, IP: ip}, nil
	}
	return Instance{ID: instanceID}, types.NewExternalError("hetzner",
		fmt.Errorf("server %d did not reach running state in time", id))
}

func serverIP(server *hcloud.Server, publicIP bool) string {
	if publicIP {
		if server.PublicNet.IPv4.IsUnspecified() {
			return ""
		}
		return server.PublicNet.IPv4.IP.String()
	}
	if len(server.PrivateNet) == 0 {
		return ""
	}
	return server.PrivateNet[0].IP.String()
}

func (p *hetznerProvisioner) Terminate(ctx context.Context, instanceID string, _ CloudSpec) error {
	id, err := strconv.ParseInt(instanceID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid hetzner server id %q: %w", instanceID, err)
	}
	client := hcloud.NewClient(hcloud.WithToken(p.token))
	_, _, err = client.Server.DeleteWithResult(ctx, &hcloud.Server{ID: id})
	if err != nil {
		return types.NewExternalError("hetzner",
			fmt.Errorf("failed to delete server %d: %w", id, err))
	}
	return nil
}
