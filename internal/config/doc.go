// Package config defines the nodeseed configuration file.
//
// A [Config] is loaded from YAML with [Load], completed with defaults,
// overridden from the environment (see [ApplyEnv]) and validated. It is
// passed down explicitly: no package reads configuration on its own.
package config
