package config

import (
	"fmt"
	"sort"

	"github.com/imamik/nodeseed/internal/util/naming"
)

// ValidDrivers lists the compute drivers nodeseed ships.
var ValidDrivers = map[string]bool{
	"hcloud": true,
}

// ValidFamilies lists the address families a node can be reached on.
var ValidFamilies = map[string]bool{
	"public":  true,
	"private": true,
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !ValidDrivers[c.Provider.Driver] {
		return fmt.Errorf("invalid provider driver %q: must be one of %v", c.Provider.Driver, getMapKeys(ValidDrivers))
	}
	if c.Provider.RateLimit < 0 {
		return fmt.Errorf("provider rate_limit must not be negative")
	}

	if err := c.validateAddress(); err != nil {
		return fmt.Errorf("address validation failed: %w", err)
	}
	if err := c.validateBootstrap(); err != nil {
		return fmt.Errorf("bootstrap validation failed: %w", err)
	}
	if err := c.validateArchive(); err != nil {
		return fmt.Errorf("archive validation failed: %w", err)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}

	if err := c.validateVMs(); err != nil {
		return fmt.Errorf("vm validation failed: %w", err)
	}
	return nil
}

func (c *Config) validateAddress() error {
	a := c.Address
	if !ValidFamilies[a.Family] {
		return fmt.Errorf("invalid family %q: must be one of %v", a.Family, getMapKeys(ValidFamilies))
	}
	if a.MaxPolls < 1 {
		return fmt.Errorf("max_polls must be at least 1, got %d", a.MaxPolls)
	}
	if a.InitialInterval < 0 || a.MaxInterval < 0 || a.Timeout < 0 {
		return fmt.Errorf("intervals and timeout must not be negative")
	}
	if a.MaxInterval < a.InitialInterval {
		return fmt.Errorf("max_interval (%s) is shorter than initial_interval (%s)", a.MaxInterval, a.InitialInterval)
	}
	return nil
}

func (c *Config) validateBootstrap() error {
	b := c.Bootstrap
	if b.Port < 1 || b.Port > 65535 {
		return fmt.Errorf("invalid port %d", b.Port)
	}
	if b.ConnectAttempts < 1 {
		return fmt.Errorf("connect_attempts must be at least 1, got %d", b.ConnectAttempts)
	}
	if b.ConnectDelay < 0 {
		return fmt.Errorf("connect_delay must not be negative")
	}
	if b.Script != "" && b.ScriptFile != "" {
		return fmt.Errorf("script and script_file are mutually exclusive")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if c.Archive == nil {
		return nil
	}
	if c.Archive.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Archive.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	return nil
}

func (c *Config) validateVMs() error {
	seen := make(map[string]bool, len(c.VMs))
	for i, vm := range c.VMs {
		if vm.Name == "" {
			return fmt.Errorf("vms[%d]: name is required", i)
		}
		if !naming.IsHostname(vm.Name) {
			return fmt.Errorf("vm %q: name must be a valid hostname", vm.Name)
		}
		if seen[vm.Name] {
			return fmt.Errorf("duplicate vm name %q", vm.Name)
		}
		seen[vm.Name] = true

		if vm.Image == "" {
			return fmt.Errorf("vm %q: image is required", vm.Name)
		}
		if vm.Size == "" {
			return fmt.Errorf("vm %q: size is required", vm.Name)
		}
	}
	return nil
}

func getMapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
