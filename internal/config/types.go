package config

import "time"

// DefaultConfigFilename is the file looked up when --config is not given.
const DefaultConfigFilename = "nodeseed.yaml"

// Config is the root of the configuration file.
type Config struct {
	Provider  Provider  `yaml:"provider"`
	SockDir   string    `yaml:"sock_dir"`
	Address   Address   `yaml:"address"`
	Bootstrap Bootstrap `yaml:"bootstrap"`
	Archive   *Archive  `yaml:"archive,omitempty"`

	// Concurrency bounds how many VMs are provisioned at once.
	Concurrency int  `yaml:"concurrency"`
	VMs         []VM `yaml:"vms"`

	baseDir string
}

// Provider holds the compute provider account settings.
type Provider struct {
	Driver       string `yaml:"driver"`
	User         string `yaml:"user"`
	APIKey       string `yaml:"apikey"`
	AuthEndpoint string `yaml:"auth_endpoint"`
	TenantName   string `yaml:"tenant_name"`

	// RateLimit is the number of API requests per second shared by every
	// workflow of one invocation. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// Address controls how long to wait for a node address.
type Address struct {
	Family          string        `yaml:"family"`
	MaxPolls        int           `yaml:"max_polls"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Bootstrap controls the remote shell and the script pushed over it.
type Bootstrap struct {
	User       string `yaml:"user"`
	Port       int    `yaml:"port"`
	ScriptFile string `yaml:"script_file"`
	// Script is an inline template, used when ScriptFile is empty.
	Script          string            `yaml:"script"`
	RemotePath      string            `yaml:"remote_path"`
	ConnectAttempts int               `yaml:"connect_attempts"`
	ConnectDelay    time.Duration     `yaml:"connect_delay"`
	DialTimeout     time.Duration     `yaml:"dial_timeout"`
	GenerateKey     bool              `yaml:"generate_key"`
	Vars            map[string]string `yaml:"vars"`
}

// Archive configures report upload to an S3-compatible bucket.
type Archive struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// VM is one machine to create.
type VM struct {
	Name     string            `yaml:"name"`
	Image    string            `yaml:"image"`
	Size     string            `yaml:"size"`
	Location string            `yaml:"location"`
	Labels   map[string]string `yaml:"labels"`
}

// FindVM returns the VM with the given name.
func (c *Config) FindVM(name string) (VM, bool) {
	for _, vm := range c.VMs {
		if vm.Name == name {
			return vm, true
		}
	}
	return VM{}, false
}
