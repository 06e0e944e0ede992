package types

// ServerTemplateConfigType discriminates server template providers.
type ServerTemplateConfigType string

const (
	TemplateAws     ServerTemplateConfigType = "Aws"
	TemplateHetzner ServerTemplateConfigType = "Hetzner"
)

// ServerTemplateConfigParams carries the provider payload. Only the fields
// of the active Type are meaningful; the cloud fields mirror the builder
// cloud variants since LaunchServer provisions the same way.
type ServerTemplateConfigParams struct {
	// Shared.
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

// ServerTemplateConfig declares how LaunchServer provisions new servers.
type ServerTemplateConfig struct {
	Type   ServerTemplateConfigType   `json:"type" bson:"type"`
	Params ServerTemplateConfigParams `json:"params" bson:"params"`
}

// NewServerTemplateConfig returns the defaults applied to created templates.
func NewServerTemplateConfig() ServerTemplateConfig {
	return ServerTemplateConfig{
		Type: TemplateAws,
		Params: ServerTemplateConfigParams{
			Port:        8120,
			UseHTTPS:    true,
			UsePublicIP: false,
		},
	}
}

// ServerTemplateListItemInfo is the derived info for template list items.
type ServerTemplateListItemInfo struct {
	Provider     ServerTemplateConfigType `json:"provider"`
	InstanceType string                   `json:"instance_type,omitempty"`
}
