// Package branding provides compile-time identity values for the CLI.
package branding

import "strings"

const (
	cliName     = "tz"
	displayName = "Terrazul"
	description = "Package manager for AI agent configuration bundles"
	homeDir     = ".terrazul"
	envPrefix   = "TERRAZUL"
	registryURL = "https://registry.terrazul.dev"
)

// CLIName returns the root command name (e.g., "tz").
func CLIName() string { return cliName }

// DisplayName returns the human-readable product name (e.g., "Terrazul").
func DisplayName() string { return displayName }

// Description returns the short product description.
func Description() string { return description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".terrazul").
func HomeDir() string { return homeDir }

// EnvPrefix returns the environment variable prefix (e.g., "TERRAZUL").
func EnvPrefix() string { return envPrefix }

// DefaultRegistryURL returns the registry used when no config value is set.
func DefaultRegistryURL() string { return registryURL }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "TERRAZUL_HOME".
func EnvVar(suffix string) string {
	return envPrefix + "_" + strings.ToUpper(suffix)
}
