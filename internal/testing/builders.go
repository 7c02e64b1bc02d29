package testing

import (
	"maps"
	"time"

	"github.com/imamik/nodeseed/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a builder with defaults applied and intervals
// short enough for unit tests.
func NewConfigBuilder() *ConfigBuilder {
	cfg := config.Config{
		Provider: config.Provider{
			User:       "fred",
			APIKey:     "test-token",
			TenantName: "team-a",
			RateLimit:  1000,
			Burst:      1000,
		},
		Address: config.Address{
			MaxPolls:        5,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Timeout:         5 * time.Second,
		},
		Bootstrap: config.Bootstrap{
			ConnectAttempts: 3,
			ConnectDelay:    time.Millisecond,
			Vars:            map[string]string{"master": "salt.example.com"},
		},
	}
	cfg.SetDefaults()
	return &ConfigBuilder{cfg: cfg}
}

// WithVM appends a VM.
func (b *ConfigBuilder) WithVM(name, image, size string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.VMs = append(newBuilder.cfg.VMs, config.VM{Name: name, Image: image, Size: size})
	return newBuilder
}

// WithAPIKey sets the provider API key.
func (b *ConfigBuilder) WithAPIKey(key string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Provider.APIKey = key
	return newBuilder
}

// WithFamily sets the address family.
func (b *ConfigBuilder) WithFamily(family string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Address.Family = family
	return newBuilder
}

// WithMaxPolls sets the address poll budget.
func (b *ConfigBuilder) WithMaxPolls(n int) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Address.MaxPolls = n
	return newBuilder
}

// WithConnectAttempts sets the shell connection budget.
func (b *ConfigBuilder) WithConnectAttempts(n int) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Bootstrap.ConnectAttempts = n
	return newBuilder
}

// WithScript sets an inline bootstrap script.
func (b *ConfigBuilder) WithScript(body string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Bootstrap.Script = body
	return newBuilder
}

// WithGenerateKey toggles ephemeral key generation.
func (b *ConfigBuilder) WithGenerateKey(enabled bool) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Bootstrap.GenerateKey = enabled
	return newBuilder
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() *config.Config {
	return &b.clone().cfg
}

// clone creates a deep copy of the builder for immutability.
func (b *ConfigBuilder) clone() *ConfigBuilder {
	newCfg := b.cfg
	newCfg.Bootstrap.Vars = maps.Clone(b.cfg.Bootstrap.Vars)
	if b.cfg.Archive != nil {
		archive := *b.cfg.Archive
		newCfg.Archive = &archive
	}
	newCfg.VMs = make([]config.VM, len(b.cfg.VMs))
	for i, vm := range b.cfg.VMs {
		vm.Labels = maps.Clone(vm.Labels)
		newCfg.VMs[i] = vm
	}
	return &ConfigBuilder{cfg: newCfg}
}
