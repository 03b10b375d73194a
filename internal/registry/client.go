package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/terrazul-dev/tz/internal/config"
	"github.com/terrazul-dev/tz/internal/errs"
)

// Client talks to a package registry over HTTP.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a registry client from the effective configuration.
func NewClient(cfg config.Context) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.RegistryURL, "/"),
		authToken: cfg.AuthToken,
		httpClient: &http.Client{
			Transport: &retryTransport{
				maxRetries:     3,
				initialBackoff: time.Second,
				maxBackoff:     30 * time.Second,
			},
		},
	}
}

// PackageVersions fetches the full version listing for a package.
// A 404 maps to PACKAGE_NOT_FOUND.
func (c *Client) PackageVersions(ctx context.Context, name string) (*PackageList, error) {
	endpoint := fmt.Sprintf("%s/v1/packages/%s", c.baseURL, url.PathEscape(name))

	body, status, err := c.get(ctx, endpoint, true)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, errs.New(errs.PackageNotFound, "package %s not found in registry", name).
			WithDetail("package", name)
	}
	if status != http.StatusOK {
		return nil, errs.New(errs.NetworkError, "registry returned status %d for %s", status, name)
	}

	if err := validateResponse("package.schema.json", body); err != nil {
		return nil, fmt.Errorf("package listing for %s: %w", name, err)
	}

	var list PackageList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decoding package listing for %s: %w", name, err)
	}
	return &list, nil
}

// TarballInfo fetches the download location for one release. The returned
// URL may redirect to the actual bytes. A 404 maps to VERSION_NOT_FOUND.
func (c *Client) TarballInfo(ctx context.Context, name, version string) (*TarballInfo, error) {
	endpoint := fmt.Sprintf("%s/v1/packages/%s/tarballs/%s",
		c.baseURL, url.PathEscape(name), url.PathEscape(version))

	body, status, err := c.get(ctx, endpoint, true)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, errs.New(errs.VersionNotFound, "no tarball for %s@%s", name, version).
			WithDetail("package", name).
			WithDetail("version", version)
	}
	if status != http.StatusOK {
		return nil, errs.New(errs.NetworkError, "registry returned status %d for %s@%s", status, name, version)
	}

	if err := validateResponse("tarball.schema.json", body); err != nil {
		return nil, fmt.Errorf("tarball info for %s@%s: %w", name, version, err)
	}

	var info TarballInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decoding tarball info for %s@%s: %w", name, version, err)
	}
	return &info, nil
}

// DownloadTarball opens a streaming download of the artifact bytes.
// Redirects are followed; the auth token is not forwarded because tarball
// URLs commonly point at a CDN. The caller owns closing the body.
func (c *Client) DownloadTarball(ctx context.Context, tarballURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tarballURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err, "downloading %s", tarballURL)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errs.New(errs.NetworkError, "download of %s returned status %d", tarballURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// get performs a GET and returns (body, status). Transport-level failures
// are mapped to NETWORK_ERROR / TIMEOUT_ERROR; status handling is left to
// the caller so 404s can carry operation-specific codes.
func (c *Client) get(ctx context.Context, endpoint string, withAuth bool) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if withAuth && c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, c.transportError(ctx, err, "requesting %s", endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, c.transportError(ctx, err, "reading response from %s", endpoint)
	}
	return body, resp.StatusCode, nil
}

// transportError classifies a transport failure as timeout or network.
func (c *Client) transportError(ctx context.Context, err error, format string, args ...any) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errs.Wrap(errs.TimeoutError, err, format, args...)
	}
	return errs.Wrap(errs.NetworkError, err, format, args...)
}
