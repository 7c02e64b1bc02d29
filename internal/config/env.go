package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variables that override the config file.
const (
	EnvAPIKey          = "NODESEED_APIKEY"
	EnvHCloudToken     = "HCLOUD_TOKEN"
	EnvAddressTimeout  = "NODESEED_ADDRESS_TIMEOUT"
	EnvAddressMaxPolls = "NODESEED_ADDRESS_MAX_POLLS"
	EnvConnectAttempts = "NODESEED_CONNECT_ATTEMPTS"
	EnvConnectDelay    = "NODESEED_CONNECT_DELAY"
	EnvS3AccessKey     = "NODESEED_S3_ACCESS_KEY"
	EnvS3SecretKey     = "NODESEED_S3_SECRET_KEY"
)

// ApplyEnv overrides cfg from the environment. Unset or unparsable
// variables leave the current value alone.
//
// Environment Variables:
//   - NODESEED_APIKEY, falling back to HCLOUD_TOKEN when the file has no key
//   - NODESEED_ADDRESS_TIMEOUT
//   - NODESEED_ADDRESS_MAX_POLLS
//   - NODESEED_CONNECT_ATTEMPTS
//   - NODESEED_CONNECT_DELAY
//   - NODESEED_S3_ACCESS_KEY, NODESEED_S3_SECRET_KEY (only with an archive section)
func ApplyEnv(cfg *Config) {
	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.Provider.APIKey = key
	} else if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv(EnvHCloudToken)
	}

	cfg.Address.Timeout = parseDuration(EnvAddressTimeout, cfg.Address.Timeout)
	cfg.Address.MaxPolls = parseInt(EnvAddressMaxPolls, cfg.Address.MaxPolls)
	cfg.Bootstrap.ConnectAttempts = parseInt(EnvConnectAttempts, cfg.Bootstrap.ConnectAttempts)
	cfg.Bootstrap.ConnectDelay = parseDuration(EnvConnectDelay, cfg.Bootstrap.ConnectDelay)

	if cfg.Archive != nil {
		cfg.Archive.AccessKey = parseString(EnvS3AccessKey, cfg.Archive.AccessKey)
		cfg.Archive.SecretKey = parseString(EnvS3SecretKey, cfg.Archive.SecretKey)
	}
}

func parseString(envVar, current string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return current
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, current is returned.
func parseDuration(envVar string, current time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return current
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return current
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, current is returned.
func parseInt(envVar string, current int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return current
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return current
	}

	return i
}
