package types

// BuilderConfigType discriminates how a builder provides its build host.
type BuilderConfigType string

const (
	// BuilderUrl points at a standalone periphery agent by address.
	BuilderUrl BuilderConfigType = "Url"
	// BuilderServer reuses an existing server resource.
	BuilderServer BuilderConfigType = "Server"
	// BuilderAws launches an ephemeral EC2 instance per build.
	BuilderAws BuilderConfigType = "Aws"
	// BuilderHetzner launches an ephemeral Hetzner Cloud server per build.
	BuilderHetzner BuilderConfigType = "Hetzner"
)

// BuilderConfigParams carries the variant payload of BuilderConfig. Only the
// fields of the active Type are meaningful.
type BuilderConfigParams struct {
	// Url variant.
	Address string `json:"address,omitempty" bson:"address,omitempty"`
	Passkey string `json:"passkey,omitempty" bson:"passkey,omitempty"`

	// Server variant.
	ServerID string `json:"server_id,omitempty" bson:"server_id,omitempty"`

	// Shared by the cloud variants.
	Port        int    `json:"port,omitempty" bson:"port,omitempty"`
	UseHTTPS    bool   `json:"use_https,omitempty" bson:"use_https,omitempty"`
	UsePublicIP bool   `json:"use_public_ip,omitempty" bson:"use_public_ip,omitempty"`
	UserData    string `json:"user_data,omitempty" bson:"user_data,omitempty"`

	// Aws variant.
	Region           string   `json:"region,omitempty" bson:"region,omitempty"`
	InstanceType     string   `json:"instance_type,omitempty" bson:"instance_type,omitempty"`
	VolumeGB         int32    `json:"volume_gb,omitempty" bson:"volume_gb,omitempty"`
	AmiID            string   `json:"ami_id,omitempty" bson:"ami_id,omitempty"`
	SubnetID         string   `json:"subnet_id,omitempty" bson:"subnet_id,omitempty"`
	SecurityGroupIDs []string `json:"security_group_ids,omitempty" bson:"security_group_ids,omitempty"`
	KeyPairName      string   `json:"key_pair_name,omitempty" bson:"key_pair_name,omitempty"`
	AssignPublicIP   bool     `json:"assign_public_ip,omitempty" bson:"assign_public_ip,omitempty"`

	// Hetzner variant.
	ServerType string   `json:"server_type,omitempty" bson:"server_type,omitempty"`
	Location   string   `json:"location,omitempty" bson:"location,omitempty"`
	ImageName  string   `json:"image_name,omitempty" bson:"image_name,omitempty"`
	SSHKeys    []string `json:"ssh_keys,omitempty" bson:"ssh_keys,omitempty"`
}

// BuilderConfig declares where builds run.
type BuilderConfig struct {
	Type   BuilderConfigType   `json:"type" bson:"type"`
	Params BuilderConfigParams `json:"params" bson:"params"`
}

// NewBuilderConfig returns the defaults applied to created builders.
func NewBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Type: BuilderUrl,
		Params: BuilderConfigParams{
			Port:     8120,
			UseHTTPS: true,
		},
	}
}

// BuilderListItemInfo is the derived info attached to builder list items.
type BuilderListItemInfo struct {
	Type BuilderConfigType `json:"type"`
	// InstanceType is informational, set for cloud variants.
	InstanceType string `json:"instance_type,omitempty"`
}
