package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// latestPath is the registry endpoint announcing the newest CLI release.
const latestPath = "/v1/cli/latest"

// release is the registry's answer for the latest CLI version.
type release struct {
	Version string `json:"version"`
}

// Checker queries the registry for newer CLI releases.
type Checker struct {
	currentVersion string
	registryURL    string
	httpClient     *http.Client
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Checker) {
		ch.httpClient = c
	}
}

// New creates a Checker for the given current version and registry.
func New(currentVersion, registryURL string, opts ...Option) *Checker {
	ch := &Checker{
		currentVersion: currentVersion,
		registryURL:    strings.TrimRight(registryURL, "/"),
		httpClient:     &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// CheckLatestVersion asks the registry for the newest released CLI version.
func (ch *Checker) CheckLatestVersion() (string, error) {
	resp, err := ch.httpClient.Get(ch.registryURL + latestPath)
	if err != nil {
		return "", fmt.Errorf("checking latest version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version check returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("reading version check response: %w", err)
	}

	var rel release
	if err := json.Unmarshal(body, &rel); err != nil {
		return "", fmt.Errorf("parsing version check response: %w", err)
	}
	if rel.Version == "" {
		return "", fmt.Errorf("version check response missing version")
	}
	return rel.Version, nil
}

// CheckAndPrintBanner checks the version cache and prints an update banner if
// a newer version is available. It never blocks on the network: a stale cache
// is refreshed by a background goroutine for the next invocation.
func (ch *Checker) CheckAndPrintBanner(w io.Writer, configDir string) {
	cache, err := LoadCache(configDir)
	if err != nil {
		// Silently ignore cache errors.
		return
	}

	if cache != nil && cache.UpdateAvailable {
		PrintUpdateBanner(w, cache.CurrentVersion, cache.LatestVersion)
	}

	if IsCacheStale(cache, DefaultCacheMaxAge) {
		go ch.refreshCache(configDir)
	}
}

// PrintUpdateBanner prints the update notification to w.
func PrintUpdateBanner(w io.Writer, current, latest string) {
	fmt.Fprintf(w, "\nUpdate available: %s -> %s\n", current, latest)
	fmt.Fprintf(w, "    See https://terrazul.dev/install for instructions\n\n")
}

// refreshCache fetches the latest version and updates the cache file.
// Runs in a background goroutine and never fails loudly.
func (ch *Checker) refreshCache(configDir string) {
	latest, err := ch.CheckLatestVersion()
	if err != nil {
		return
	}

	available, err := IsUpdateAvailable(ch.currentVersion, latest)
	if err != nil {
		return
	}

	cache := &VersionCache{
		LatestVersion:   latest,
		CurrentVersion:  ch.currentVersion,
		CheckedAt:       time.Now(),
		UpdateAvailable: available,
	}

	// Silently ignore save errors.
	_ = SaveCache(configDir, cache)
}
