// Package periphery implements the JSON RPC client for the per-host agents.
// Every request is a POST of {type, params} to the agent's root url,
// authenticated by a shared passkey header. Responses are either the typed
// result, one or more command Logs, or an {error} body.
package periphery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/komodo-sh/komodo/pkg/types"
)

const (
	passkeyHeader  = "x-komodo-passkey"
	defaultTimeout = 10 * time.Second
)

// Factory builds clients for individual agents, sharing one transport. The
// core passkey applies unless the server config overrides it.
type Factory struct {
	passkey string
	http    *http.Client
}

// NewFactory creates a client factory using the core-wide passkey.
// Certificate verification is disabled: agents serve self-signed certs on
// private networks, and the passkey authenticates both directions.
func NewFactory(passkey string) *Factory {
	return &Factory{
		passkey: passkey,
		http: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// ForServer returns a client for the server's agent, honoring its configured
// timeout and passkey override.
func (f *Factory) ForServer(cfg types.ServerConfig) *Client {
	passkey := f.passkey
	if cfg.Passkey != "" {
		passkey = cfg.Passkey
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		address: cfg.Address,
		passkey: passkey,
		timeout: timeout,
		http:    f.http,
	}
}

// ForAddress returns a client for a bare address, used for cloud builders
// before any server resource exists.
func (f *Factory) ForAddress(address string) *Client {
	return &Client{
		address: address,
		passkey: f.passkey,
		timeout: defaultTimeout,
		http:    f.http,
	}
}

// Client talks to one periphery agent.
type Client struct {
	address string
	passkey string
	timeout time.Duration
	http    *http.Client
}

// Address returns the agent's root url.
func (c *Client) Address() string {
	return c.address
}

type envelope struct {
	Type   string `json:"type"`
	Params any    `json:"params"`
}

type errorBody struct {
	Error string `json:"error"`
}

// call posts one request and decodes the response into T.
func call[T any](ctx context.Context, c *Client, reqType string, params any) (T, error) {
	var zero T

	body, err := json.Marshal(envelope{Type: reqType, Params: params})
	if err != nil {
		return zero, fmt.Errorf("failed to encode %s request: %w", reqType, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("failed to build %s request: %w", reqType, err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set(passkeyHeader, c.passkey)

	res, err := c.http.Do(req)
	if err != nil {
		return zero, types.NewExternalError("periphery", fmt.Errorf("%s: %w", reqType, err))
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return zero, types.NewExternalError("periphery", fmt.Errorf("%s: failed to read response: %w", reqType, err))
	}

	if res.StatusCode != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			return zero, types.NewExternalError("periphery", fmt.Errorf("%s: %s", reqType, eb.Error))
		}
		return zero, types.NewExternalError("periphery", fmt.Errorf("%s: agent returned status %d", reqType, res.StatusCode))
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, types.NewExternalError("periphery", fmt.Errorf("%s: failed to decode response: %w", reqType, err))
	}
	return out, nil
}
