package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty.
const (
	DefaultDriver          = "hcloud"
	DefaultAuthEndpoint    = "https://api.hetzner.cloud/v1"
	DefaultRateLimit       = 5.0
	DefaultBurst           = 5
	DefaultFamily          = "public"
	DefaultMaxPolls        = 30
	DefaultInitialInterval = 2 * time.Second
	DefaultMaxInterval     = 30 * time.Second
	DefaultAddressTimeout  = 5 * time.Minute
	DefaultLoginUser       = "root"
	DefaultSSHPort         = 22
	DefaultRemotePath      = "/tmp/nodeseed-bootstrap.sh"
	DefaultConnectAttempts = 10
	DefaultConnectDelay    = 5 * time.Second
	DefaultDialTimeout     = 10 * time.Second
	DefaultConcurrency     = 4
)

// Load reads path, applies environment overrides and defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	cfg.baseDir = filepath.Dir(path)
	return cfg, nil
}

// LoadFromBytes is Load for an in-memory document.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ApplyEnv(&cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SetDefaults fills every empty field with its default.
func (c *Config) SetDefaults() {
	p := &c.Provider
	if p.Driver == "" {
		p.Driver = DefaultDriver
	}
	if p.AuthEndpoint == "" {
		p.AuthEndpoint = DefaultAuthEndpoint
	}
	if p.RateLimit == 0 {
		p.RateLimit = DefaultRateLimit
	}
	if p.Burst == 0 {
		p.Burst = DefaultBurst
	}

	a := &c.Address
	if a.Family == "" {
		a.Family = DefaultFamily
	}
	if a.MaxPolls == 0 {
		a.MaxPolls = DefaultMaxPolls
	}
	if a.InitialInterval == 0 {
		a.InitialInterval = DefaultInitialInterval
	}
	if a.MaxInterval == 0 {
		a.MaxInterval = DefaultMaxInterval
	}
	if a.Timeout == 0 {
		a.Timeout = DefaultAddressTimeout
	}

	b := &c.Bootstrap
	if b.User == "" {
		b.User = DefaultLoginUser
	}
	if b.Port == 0 {
		b.Port = DefaultSSHPort
	}
	if b.RemotePath == "" {
		b.RemotePath = DefaultRemotePath
	}
	if b.ConnectAttempts == 0 {
		b.ConnectAttempts = DefaultConnectAttempts
	}
	if b.ConnectDelay == 0 {
		b.ConnectDelay = DefaultConnectDelay
	}
	if b.DialTimeout == 0 {
		b.DialTimeout = DefaultDialTimeout
	}

	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
}

// ScriptBody returns the bootstrap script template. An empty result means
// the built-in default. A relative script_file is resolved against the
// directory of the config file.
func (c *Config) ScriptBody() (string, error) {
	if c.Bootstrap.ScriptFile == "" {
		return c.Bootstrap.Script, nil
	}

	path := c.Bootstrap.ScriptFile
	if !filepath.IsAbs(path) && c.baseDir != "" {
		path = filepath.Join(c.baseDir, path)
	}
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read bootstrap script: %w", err)
	}
	return string(data), nil
}

// DefaultConfigPath returns the default config file in the working directory.
func DefaultConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return DefaultConfigFilename
	}
	return filepath.Join(cwd, DefaultConfigFilename)
}
