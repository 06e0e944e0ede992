package builder

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/types"
)

const (
	awsPollAttempts = 60
	awsPollInterval = 2 * time.Second
)

// awsProvisioner launches EC2 instances using the core's static credential.
type awsProvisioner struct {
	creds config.AwsConfig
}

func (p *awsProvisioner) client(ctx context.Context, region string) (*ec2.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.creds.AccessKeyID, p.creds.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, types.NewExternalError("aws", fmt.Errorf("failed to load credentials: %w", err))
	}
	return ec2.NewFromConfig(cfg), nil
}

func (p *awsProvisioner) Launch(ctx context.Context, name string, spec CloudSpec) (Instance, error) {
	client, err := p.client(ctx, spec.Region)
	if err != nil {
		return Instance{}, err
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.AmiID),
		InstanceType: ec2types.InstanceType(spec.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags: []ec2types.Tag{{
				Key:   aws.String("Name"),
				Value: aws.String(name),
			}},
		}},
	}
	if spec.KeyPairName != "" {
		input.KeyName = aws.String(spec.KeyPairName)
	}
	if spec.UserData != "" {
		input.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(spec.UserData)))
	}
	if spec.VolumeGB > 0 {
		input.BlockDeviceMappings = []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String("/dev/sda1"),
			Ebs: &ec2types.EbsBlockDevice{
				VolumeSize:          aws.Int32(spec.VolumeGB),
				DeleteOnTermination: aws.Bool(true),
			},
		}}
	}
	if spec.AssignPublicIP {
		// Public ip assignment requires an explicit interface spec; subnet
		// and security groups move onto the interface in that case.
		iface := ec2types.InstanceNetworkInterfaceSpecification{
			DeviceIndex:              aws.Int32(0),
			AssociatePublicIpAddress: aws.Bool(true),
		}
		if spec.SubnetID != "" {
			iface.SubnetId = aws.String(spec.SubnetID)
		}
		iface.Groups = spec.SecurityGroupIDs
		input.NetworkInterfaces = []ec2types.InstanceNetworkInterfaceSpecification{iface}
	} else {
		if spec.SubnetID != "" {
			input.SubnetId = aws.String(spec.SubnetID)
		}
		input.SecurityGroupIds = spec.SecurityGroupIDs
	}

	out, err := client.RunInstances(ctx, input)
	if err != nil {
		return Instance{}, types.NewExternalError("aws", fmt.Errorf("failed to launch instance: %w", err))
	}
	if len(out.Instances) == 0 || out.Instances[0].InstanceId == nil {
		return Instance{}, types.NewExternalError("aws", fmt.Errorf("launch returned no instance"))
	}
	id := *out.Instances[0].InstanceId

	instance, err := p.waitRunning(ctx, client, id, spec.UsePublicIP)
	if err != nil {
		return Instance{ID: id}, err
	}
	return instance, nil
}

// waitRunning polls until the instance is running with the requested address
// assigned.
func (p *awsProvisioner) waitRunning(ctx context.Context, client *ec2.Client, id string, publicIP bool) (Instance, error) {
	for i := 0; i < awsPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return Instance{ID: id}, ctx.Err()
		case <-time.After(awsPollInterval):
		}

		out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{id},
		})
		if err != nil {
			continue
		}
		if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
			continue
		}
		inst := out.Reservations[0].Instances[0]
		if inst.State == nil || inst.State.Name != ec2types.InstanceStateNameRunning {
			continue
		}
		ip := inst.PrivateIpAddress
		if publicIP {
			ip = inst.PublicIpAddress
		}
		if ip == nil || *ip == "" {
			continue
		}
		return Instance{ID: id, IP: *ip}, nil
	}
	return Instance{ID: id}, types.NewExternalError("aws",
		fmt.Errorf("instance %s did not reach running state in time", id))
}

func (p *awsProvisioner) Terminate(ctx context.Context, instanceID string, spec CloudSpec) error {
	client, err := p.client(ctx, spec.Region)
	if err != nil {
		return err
	}
	_, err = client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return types.NewExternalError("aws",
			fmt.Errorf("failed to terminate instance %s: %w", instanceID, err))
	}
	return nil
}
