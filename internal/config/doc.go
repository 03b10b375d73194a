// Package config manages user-level settings stored at
// ~/.terrazul/config.yaml (registry URL, auth token, store and cache
// directories) and builds the explicit Context handed to the registry
// client and installer. Precedence per key: TERRAZUL_* environment
// variable, config file value, built-in default.
package config
