package registry

import (
	"encoding/json"
	"fmt"
	"time"
)

// VersionInfo is one published release of a package. Immutable once fetched
// within a resolution pass.
type VersionInfo struct {
	Version       string            `json:"version"`
	Dependencies  map[string]string `json:"dependencies,omitempty"`
	Compatibility map[string]string `json:"compatibility,omitempty"`
	PublishedAt   Timestamp         `json:"publishedAt,omitempty"`
	Yanked        bool              `json:"yanked,omitempty"`
	YankedReason  string            `json:"yankedReason,omitempty"`
}

// PackageList is the registry's full version listing for one package.
type PackageList struct {
	Name     string                 `json:"name"`
	Versions map[string]VersionInfo `json:"versions"`
}

// TarballInfo locates the downloadable artifact for one release.
type TarballInfo struct {
	URL       string `json:"url"`
	Integrity string `json:"integrity,omitempty"`
}

// Timestamp normalizes the registry's publishedAt forms (epoch seconds,
// full ISO-8601, or a bare date) into a single time value.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts a JSON number (seconds since epoch) or a string in
// RFC 3339 or YYYY-MM-DD form.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err == nil {
		sec := int64(seconds)
		nsec := int64((seconds - float64(sec)) * float64(time.Second))
		t.Time = time.Unix(sec, nsec).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("publishedAt: expected number or string, got %s", data)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("publishedAt: unrecognized time format %q", s)
}

// MarshalJSON emits RFC 3339, or null for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
