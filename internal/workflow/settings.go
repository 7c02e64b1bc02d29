package workflow

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/imamik/nodeseed/internal/bootstrap"
	"github.com/imamik/nodeseed/internal/cloud"
	"github.com/imamik/nodeseed/internal/config"
	"github.com/imamik/nodeseed/internal/provisioning"
)

const defaultKeyBits = 4096

// Settings are the per-invocation parameters shared by every run.
type Settings struct {
	Credentials cloud.Credentials
	Family      cloud.AddressFamily
	Wait        provisioning.WaitConfig
	Bootstrap   bootstrap.Config
	LoginUser   string
	// Script is rendered once per node. Nil selects the default script.
	Script *bootstrap.Script
	Vars   map[string]string
	// GenerateKey creates an ephemeral key pair per node instead of
	// logging in with the provider's root password.
	GenerateKey bool
	KeyBits     int
}

// SettingsFromConfig builds Settings from a loaded configuration.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	body, err := cfg.ScriptBody()
	if err != nil {
		return Settings{}, err
	}
	script, err := bootstrap.ParseScript("bootstrap", body)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse bootstrap script: %w", err)
	}

	return Settings{
		Credentials: CredentialsFromConfig(cfg.Provider),
		Family:      cloud.AddressFamily(cfg.Address.Family),
		Wait: provisioning.WaitConfig{
			MaxPolls:        cfg.Address.MaxPolls,
			InitialInterval: cfg.Address.InitialInterval,
			MaxInterval:     cfg.Address.MaxInterval,
			Timeout:         cfg.Address.Timeout,
		},
		Bootstrap: bootstrap.Config{
			ConnectAttempts: cfg.Bootstrap.ConnectAttempts,
			ConnectDelay:    cfg.Bootstrap.ConnectDelay,
		},
		LoginUser:   cfg.Bootstrap.User,
		Script:      script,
		Vars:        cfg.Bootstrap.Vars,
		GenerateKey: cfg.Bootstrap.GenerateKey,
	}, nil
}

// CredentialsFromConfig returns the provider credentials of a configuration.
func CredentialsFromConfig(p config.Provider) cloud.Credentials {
	return cloud.Credentials{
		User:         p.User,
		APIKey:       p.APIKey,
		AuthEndpoint: p.AuthEndpoint,
		TenantName:   p.TenantName,
	}
}

// NewLimiter returns the provider rate limiter shared by all runs of one
// invocation, or nil when rate limiting is disabled.
func NewLimiter(p config.Provider) *rate.Limiter {
	if p.RateLimit <= 0 {
		return nil
	}
	burst := p.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(p.RateLimit), burst)
}
