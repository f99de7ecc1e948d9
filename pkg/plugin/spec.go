package plugin

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Plugin API version implemented by this runtime. Plugins declaring the same
// major and a minor no greater than SupportedAPIMinor are accepted.
const (
	SupportedAPIMajor = 1
	SupportedAPIMinor = 0
)

// Manifest defaults for the compatibility spec.
const (
	DefaultAPIVersion    = "1.0"
	DefaultPluginVersion = "0.1.0"
)

// Spec is a plugin's declared compatibility metadata.
type Spec struct {
	APIVersion    string   `json:"api_version" yaml:"api_version" toml:"api_version"`
	PluginVersion string   `json:"plugin_version" yaml:"plugin_version" toml:"plugin_version"`
	Capabilities  []string `json:"capabilities" yaml:"capabilities" toml:"capabilities"`
}

// HasCapability reports whether the spec declares capability c.
func (s Spec) HasCapability(c string) bool {
	_, found := slices.BinarySearch(s.Capabilities, c)
	return found
}

var apiVersionPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// APIGate decides whether a declared plugin API version is compatible.
type APIGate struct {
	Major uint64
	Minor uint64
}

// DefaultAPIGate accepts 1.0 through 1.SupportedAPIMinor.
func DefaultAPIGate() APIGate {
	return APIGate{Major: SupportedAPIMajor, Minor: SupportedAPIMinor}
}

// String renders the gate as "<major>.<minor>".
func (g APIGate) String() string { return fmt.Sprintf("%d.%d", g.Major, g.Minor) }

// Check parses declared as "<major>" or "<major>.<minor>" and returns its
// normalized "<major>.<minor>" form when compatible.
func (g APIGate) Check(declared string) (string, error) {
	v, err := ParseAPIVersion(declared)
	if err != nil {
		return "", err
	}
	normalized := fmt.Sprintf("%d.%d", v.Major(), v.Minor())
	if v.Major() != g.Major {
		return "", fmt.Errorf("api_version %s has major %d, runtime supports %d.x", normalized, v.Major(), g.Major)
	}
	if v.Minor() > g.Minor {
		return "", fmt.Errorf("api_version %s is newer than supported %s", normalized, g)
	}
	return normalized, nil
}

// ParseAPIVersion parses an API version. Only "<major>" and "<major>.<minor>"
// are accepted; a bare major is treated as "<major>.0".
func ParseAPIVersion(s string) (*semver.Version, error) {
	s = strings.TrimSpace(s)
	if !apiVersionPattern.MatchString(s) {
		return nil, fmt.Errorf("api_version %q must be <major>.<minor>", s)
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("api_version %q: %w", s, err)
	}
	return v, nil
}

// normalizeCapabilities trims, dedupes and sorts capability tags.
func normalizeCapabilities(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// semverLoose parses a plugin_version. Any semver-ish form is accepted ("1",
// "1.2", "v1.2.3-beta").
func semverLoose(s string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("plugin_version %q is not a version: %w", s, err)
	}
	return v, nil
}
