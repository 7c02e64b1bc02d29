package hcloud

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeseed/internal/cloud"
)

const applicationName = "nodeseed"

// Driver authenticates against the Hetzner Cloud API.
type Driver struct {
	version    string
	httpClient *http.Client
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithVersion sets the application version reported in the User-Agent.
func WithVersion(v string) DriverOption {
	return func(d *Driver) {
		d.version = v
	}
}

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(hc *http.Client) DriverOption {
	return func(d *Driver) {
		d.httpClient = hc
	}
}

// NewDriver creates a Driver.
func NewDriver(opts ...DriverOption) *Driver {
	d := &Driver{version: "dev"}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Authenticate builds an API client for creds and verifies the token with a
// cheap read-only request.
func (d *Driver) Authenticate(ctx context.Context, creds cloud.Credentials) (cloud.Compute, error) {
	if creds.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is empty", cloud.ErrAuthentication)
	}

	opts := []hcloud.ClientOption{
		hcloud.WithToken(creds.APIKey),
		hcloud.WithApplication(applicationName, d.version),
	}
	if endpoint := strings.TrimRight(creds.AuthEndpoint, "/"); endpoint != "" {
		opts = append(opts, hcloud.WithEndpoint(endpoint))
	}
	if d.httpClient != nil {
		opts = append(opts, hcloud.WithHTTPClient(d.httpClient))
	}

	client := hcloud.NewClient(opts...)
	if _, err := client.Location.All(ctx); err != nil {
		return nil, classifyAuthError(err)
	}

	return &Compute{
		client: client,
		user:   creds.User,
		tenant: creds.TenantName,
	}, nil
}
