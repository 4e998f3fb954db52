package mhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"matrixhub/internal"
	"matrixhub/internal/logger"
)

// Client talks to one MHUB over its local REST API
type Client struct {
	httpClient *http.Client
	address    string
	baseURL    string
	debug      bool
	logger     zerolog.Logger
}

// NewClient creates a client for the switcher at address (IP or IP:port)
func NewClient(address string, options *internal.ModeOptions) *Client {
	if options == nil {
		options = internal.NewModeOptions()
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = internal.DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		address:    address,
		baseURL:    "http://" + strings.TrimSuffix(address, "/"),
		debug:      options.Debug,
		logger:     logger.Component("mhub").With().Str("address", address).Logger(),
	}
}

// WithLogger replaces the client's logger
func (c *Client) WithLogger(l zerolog.Logger) *Client {
	c.logger = l
	return c
}

// Address returns the switcher address the client was created with
func (c *Client) Address() string {
	return c.address
}

// BaseURL returns the http://address prefix used for every request
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetSystemInfo fetches the system and topology description
func (c *Client) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	var env envelope[SystemInfo]
	if err := c.getJSON(ctx, string(SystemInfoEndpoint), &env); err != nil {
		return nil, fmt.Errorf("failed to retrieve system information: %w", err)
	}
	if env.Data.MHUB.Name == "" {
		env.Data.MHUB.Name = DefaultName
	}
	return &env.Data, nil
}

// GetZones fetches the v2.1 zone list and flattens it into an output mapping
func (c *Client) GetZones(ctx context.Context) (ZoneMapping, error) {
	var env envelope[[]Zone]
	if err := c.getJSON(ctx, string(ZoneDataEndpoint), &env); err != nil {
		return nil, fmt.Errorf("failed to retrieve zone data: %w", err)
	}
	return NewZoneMapping(env.Data), nil
}

// NewZoneMapping maps every zone output to its zone. Later zones win on duplicate outputs.
func NewZoneMapping(zones []Zone) ZoneMapping {
	mapping := make(ZoneMapping)
	for _, zone := range zones {
		for _, output := range zone.Outputs {
			mapping[output.OutputID] = ZoneDetails{
				ZoneLabel:      zone.ZoneLabel,
				ArcInput:       output.ArcInput,
				AutoSwitchMode: zone.AutoSwitchMode,
			}
		}
	}
	return mapping
}

// GetPowerState reads the switcher's power flag
func (c *Client) GetPowerState(ctx context.Context) (bool, error) {
	var env envelope[PowerState]
	if err := c.getJSON(ctx, string(StateEndpoint), &env); err != nil {
		return false, fmt.Errorf("failed to retrieve power state: %w", err)
	}
	return env.Data.Power, nil
}

// SetPower turns the switcher on or off
func (c *Client) SetPower(ctx context.Context, on bool) error {
	endpoint := PowerOffEndpoint
	if on {
		endpoint = PowerOnEndpoint
	}
	resp, err := c.do(ctx, http.MethodPost, string(endpoint))
	if err != nil {
		return fmt.Errorf("failed to set power: %w", err)
	}
	resp.Body.Close()
	return nil
}

// SwitchInput routes input to output
func (c *Client) SwitchInput(ctx context.Context, output, input ID) error {
	path := SwitchPath(output, input)
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return fmt.Errorf("failed to switch input: %w", err)
	}
	resp.Body.Close()
	return nil
}

// SwitchPath builds the switch control path. The firmware expects lower-case output ids.
func SwitchPath(output, input ID) string {
	return fmt.Sprintf(switchEndpointFormat, strings.ToLower(string(output)), string(input))
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		c.logger.Debug().
			Str("path", path).
			Str("body", string(body)).
			Msg("Received response")
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// do sends a request and turns any non-200 answer into a StatusError
func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.debug {
		c.logger.Debug().
			Str("method", method).
			Str("url", url).
			Msg("Sending MHUB request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{
			Endpoint: path,
			Status:   resp.StatusCode,
			Body:     strings.TrimSpace(string(body)),
		}
	}

	if c.debug {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("path", path).
			Msg("MHUB request completed")
	}

	return resp, nil
}
