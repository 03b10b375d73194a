package registry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/terrazul-dev/tz/internal/config"
	"github.com/terrazul-dev/tz/internal/errs"
)

func newTestClient(baseURL, token string) *Client {
	return NewClient(config.Context{RegistryURL: baseURL, AuthToken: token})
}

func TestPackageVersions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/packages/@scope/demo" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Errorf("Accept = %q", accept)
		}
		io.WriteString(w, `{
			"name": "@scope/demo",
			"versions": {
				"1.0.0": {"version": "1.0.0"},
				"1.1.0": {"version": "1.1.0", "dependencies": {"@scope/base": "^2.0.0"}, "publishedAt": "2026-08-01T00:00:00Z"},
				"1.2.0": {"version": "1.2.0", "yanked": true, "yankedReason": "broken"}
			}
		}`)
	}))
	defer srv.Close()

	list, err := newTestClient(srv.URL, "").PackageVersions(context.Background(), "@scope/demo")
	if err != nil {
		t.Fatalf("PackageVersions: %v", err)
	}
	if list.Name != "@scope/demo" {
		t.Errorf("Name = %q", list.Name)
	}
	if len(list.Versions) != 3 {
		t.Errorf("len(Versions) = %d, want 3", len(list.Versions))
	}
	if deps := list.Versions["1.1.0"].Dependencies; deps["@scope/base"] != "^2.0.0" {
		t.Errorf("dependencies = %v", deps)
	}
	if !list.Versions["1.2.0"].Yanked {
		t.Error("1.2.0 should be yanked")
	}
}

func TestPackageVersionsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").PackageVersions(context.Background(), "@scope/missing")
	if !errors.Is(err, &errs.Error{Code: errs.PackageNotFound}) {
		t.Fatalf("err = %v, want PACKAGE_NOT_FOUND", err)
	}
}

func TestPackageVersionsRejectsMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Missing the required "versions" field.
		io.WriteString(w, `{"name": "@scope/demo"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").PackageVersions(context.Background(), "@scope/demo")
	if err == nil {
		t.Fatal("malformed response should fail validation")
	}
	if !strings.Contains(err.Error(), "unexpected response shape") {
		t.Errorf("err = %v, want a schema violation message", err)
	}
}

func TestPackageVersionsRejectsUnsafeIdentifiers(t *testing.T) {
	// Version keys and dependency names end up in filesystem paths; the
	// response schema refuses anything that is not a plain identifier.
	tests := []struct {
		name string
		body string
	}{
		{
			"traversal version key",
			`{"name": "@scope/demo", "versions": {"../../evil": {"version": "1.0.0"}}}`,
		},
		{
			"traversal version field",
			`{"name": "@scope/demo", "versions": {"1.0.0": {"version": "../../evil"}}}`,
		},
		{
			"traversal dependency name",
			`{"name": "@scope/demo", "versions": {"1.0.0": {"version": "1.0.0", "dependencies": {"../../victim": "^1.0.0"}}}}`,
		},
		{
			"traversal package name",
			`{"name": "../../victim", "versions": {"1.0.0": {"version": "1.0.0"}}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, "").PackageVersions(context.Background(), "@scope/demo")
			if err == nil {
				t.Fatal("response with unsafe identifiers should fail validation")
			}
			if !strings.Contains(err.Error(), "unexpected response shape") {
				t.Errorf("err = %v, want a schema violation message", err)
			}
		})
	}
}

func TestPackageVersionsSendsAuthToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, `{"name": "@scope/demo", "versions": {}}`)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL, "tz_token_123").PackageVersions(context.Background(), "@scope/demo"); err != nil {
		t.Fatalf("PackageVersions: %v", err)
	}
	if gotAuth != "Bearer tz_token_123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestTarballInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/packages/@scope/demo/tarballs/1.0.0" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"url": "https://cdn.example.com/demo-1.0.0.tgz", "integrity": "sha256-abcd"}`)
	}))
	defer srv.Close()

	info, err := newTestClient(srv.URL, "").TarballInfo(context.Background(), "@scope/demo", "1.0.0")
	if err != nil {
		t.Fatalf("TarballInfo: %v", err)
	}
	if info.URL != "https://cdn.example.com/demo-1.0.0.tgz" {
		t.Errorf("URL = %q", info.URL)
	}
	if info.Integrity != "sha256-abcd" {
		t.Errorf("Integrity = %q", info.Integrity)
	}
}

func TestTarballInfoNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").TarballInfo(context.Background(), "@scope/demo", "9.9.9")
	if !errors.Is(err, &errs.Error{Code: errs.VersionNotFound}) {
		t.Fatalf("err = %v, want VERSION_NOT_FOUND", err)
	}
}

func TestDownloadTarball(t *testing.T) {
	payload := "tarball bytes"
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	body, err := newTestClient(srv.URL, "tz_token_123").DownloadTarball(context.Background(), srv.URL+"/files/demo.tgz")
	if err != nil {
		t.Fatalf("DownloadTarball: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(data) != payload {
		t.Errorf("body = %q, want %q", data, payload)
	}
	// Tarball URLs commonly point at a CDN; no credentials cross that boundary.
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want none on tarball downloads", gotAuth)
	}
}

func TestDownloadTarballNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").DownloadTarball(context.Background(), srv.URL+"/files/demo.tgz")
	if !errors.Is(err, &errs.Error{Code: errs.NetworkError}) {
		t.Fatalf("err = %v, want NETWORK_ERROR", err)
	}
}
