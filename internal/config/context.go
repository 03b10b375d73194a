package config

import (
	"os"
	"path/filepath"

	"github.com/terrazul-dev/tz/internal/branding"
)

// Context carries the effective configuration into the registry client,
// resolver, and installer. Constructing it once in the CLI layer keeps the
// core free of ambient global reads, so tests can run multiple resolutions
// against different registries side by side.
type Context struct {
	RegistryURL string // base URL of the package registry
	AuthToken   string // bearer token, empty for anonymous access
	StoreDir    string // content-addressable store root (~/.terrazul/store)
	CacheDir    string // transient download cache (~/.terrazul/cache)
}

// NewContext builds a Context from loaded viper state and env overrides.
// Precedence per key: TERRAZUL_* env var, config.yaml value, built-in default.
func NewContext() Context {
	ctx := Context{
		RegistryURL: Get(KeyRegistryURL),
		AuthToken:   Get(KeyAuthToken),
		StoreDir:    Get(KeyStoreDir),
		CacheDir:    Get(KeyCacheDir),
	}

	if v := os.Getenv(branding.EnvVar("REGISTRY")); v != "" {
		ctx.RegistryURL = v
	}
	if v := os.Getenv(branding.EnvVar("TOKEN")); v != "" {
		ctx.AuthToken = v
	}
	if v := os.Getenv(branding.EnvVar("STORE")); v != "" {
		ctx.StoreDir = v
	}
	if v := os.Getenv(branding.EnvVar("CACHE")); v != "" {
		ctx.CacheDir = v
	}

	if ctx.RegistryURL == "" {
		ctx.RegistryURL = branding.DefaultRegistryURL()
	}
	if ctx.StoreDir == "" {
		ctx.StoreDir = filepath.Join(Dir(), "store")
	}
	if ctx.CacheDir == "" {
		ctx.CacheDir = filepath.Join(Dir(), "cache")
	}

	return ctx
}
