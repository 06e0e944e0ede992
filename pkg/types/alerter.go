package types

// AlerterEndpointType discriminates alerter destinations.
type AlerterEndpointType string

const (
	// EndpointSlack posts Block Kit messages to a Slack webhook url.
	EndpointSlack AlerterEndpointType = "Slack"
	// EndpointDiscord posts embeds to a Discord webhook url.
	EndpointDiscord AlerterEndpointType = "Discord"
	// EndpointCustom posts the raw Alert JSON to an arbitrary url.
	EndpointCustom AlerterEndpointType = "Custom"
)

// AlerterEndpoint selects the alert destination.
type AlerterEndpoint struct {
	Type   AlerterEndpointType   `json:"type" bson:"type"`
	Params AlerterEndpointParams `json:"params" bson:"params"`
}

// AlerterEndpointParams carries the endpoint payload. All variants share the
// url field.
type AlerterEndpointParams struct {
	URL string `json:"url" bson:"url"`
}

// AlerterConfig declares one alert destination with optional filtering.
type AlerterConfig struct {
	Endpoint AlerterEndpoint `json:"endpoint" bson:"endpoint"`
	Enabled  bool            `json:"enabled" bson:"enabled"`

	// AlertTypes whitelists alert variants; empty sends all.
	AlertTypes []AlertDataType `json:"alert_types,omitempty" bson:"alert_types,omitempty"`
	// Resources whitelists alerting resources; empty sends all.
	Resources []ResourceTarget `json:"resources,omitempty" bson:"resources,omitempty"`
	// ExceptResources excludes resources after the whitelist is applied.
	ExceptResources []ResourceTarget `json:"except_resources,omitempty" bson:"except_resources,omitempty"`
}

// NewAlerterConfig returns the defaults applied to created alerters.
func NewAlerterConfig() AlerterConfig {
	return AlerterConfig{
		Endpoint: AlerterEndpoint{Type: EndpointSlack},
		Enabled:  true,
	}
}

// AlerterListItemInfo is the derived info attached to alerter list items.
type AlerterListItemInfo struct {
	EndpointType AlerterEndpointType `json:"endpoint_type"`
	Enabled      bool                `json:"enabled"`
}
