package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
)

//go:embed manifest.schema.json
var manifestSchemaJSON []byte

var manifestSchema = gojsonschema.NewBytesLoader(manifestSchemaJSON)

// Manifest is a validated plugin manifest with defaults applied.
type Manifest struct {
	Path    string
	Entries []plugin.ManifestEntry
}

// rawManifest is the decoded document before defaults. Pointers distinguish
// "absent" from zero values.
type rawManifest struct {
	Plugins []rawEntry `json:"plugins"`
}

type rawEntry struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Callable string         `json:"callable"`
	Enabled  *bool          `json:"enabled"`
	Order    *int           `json:"order"`
	Settings map[string]any `json:"settings"`
	Spec     *rawSpec       `json:"spec"`
}

type rawSpec struct {
	APIVersion    any      `json:"api_version"`
	PluginVersion any      `json:"plugin_version"`
	Capabilities  []string `json:"capabilities"`
}

// LoadManifest reads the manifest at path. The format follows the extension:
// .yaml/.yml (yaml.v3), .toml (BurntSushi/toml) or .json. Keys are kept as
// written so plugin settings reach plugins unchanged.
func LoadManifest(path string, logger *slog.Logger) (Manifest, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: plugin manifest '%s': %w", ErrConfigRead, path, err)
	}
	m, err := ParseManifest(data, formatFromExt(path))
	if err != nil {
		return Manifest{}, fmt.Errorf("plugin manifest '%s': %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	m.Path = abs
	logger.Debug("Loaded plugin manifest", slog.String("path", abs), slog.Int("plugins", len(m.Entries)))
	return m, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	}
	return "yaml"
}

// ParseManifest decodes, schema-validates and defaults a manifest document.
// A top-level list is accepted as shorthand for {"plugins": [...]}.
func ParseManifest(data []byte, format string) (Manifest, error) {
	var doc any
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Manifest{}, fmt.Errorf("%w: invalid YAML: %w", ErrConfigRead, err)
		}
	case "toml":
		var m map[string]any
		if _, err := toml.Decode(string(data), &m); err != nil {
			return Manifest{}, fmt.Errorf("%w: invalid TOML: %w", ErrConfigRead, err)
		}
		doc = m
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return Manifest{}, fmt.Errorf("%w: invalid JSON: %w", ErrConfigRead, err)
		}
	default:
		return Manifest{}, fmt.Errorf("%w: unsupported manifest format '%s'", ErrConfigValidation, format)
	}
	if doc == nil {
		doc = map[string]any{"plugins": []any{}}
	}
	if list, ok := doc.([]any); ok {
		doc = map[string]any{"plugins": list}
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: manifest is not representable as JSON: %w", ErrConfigValidation, err)
	}
	result, err := gojsonschema.Validate(manifestSchema, gojsonschema.NewBytesLoader(normalized))
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: manifest schema check: %w", ErrConfigValidation, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Manifest{}, fmt.Errorf("%w: %s", ErrConfigValidation, strings.Join(msgs, "; "))
	}

	var raw rawManifest
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return buildManifest(raw)
}

// buildManifest applies defaults and rejects duplicate (kind, name) pairs.
func buildManifest(raw rawManifest) (Manifest, error) {
	m := Manifest{Entries: make([]plugin.ManifestEntry, 0, len(raw.Plugins))}
	seen := make(map[string]int, len(raw.Plugins))
	for i, r := range raw.Plugins {
		key := r.Kind + "/" + r.Name
		if prev, dup := seen[key]; dup {
			return Manifest{}, fmt.Errorf("%w: plugins[%d]: duplicate %s plugin '%s' (first declared at plugins[%d])", ErrConfigValidation, i, r.Kind, r.Name, prev)
		}
		seen[key] = i

		e := plugin.ManifestEntry{
			Name:     r.Name,
			Kind:     plugin.Kind(r.Kind),
			Callable: r.Callable,
			Enabled:  true,
			Settings: r.Settings,
			Spec: plugin.Spec{
				APIVersion:    plugin.DefaultAPIVersion,
				PluginVersion: plugin.DefaultPluginVersion,
			},
		}
		if r.Enabled != nil {
			e.Enabled = *r.Enabled
		}
		if r.Order != nil {
			e.Order = *r.Order
		}
		if r.Spec != nil {
			if s := versionString(r.Spec.APIVersion); s != "" {
				e.Spec.APIVersion = s
			}
			if s := versionString(r.Spec.PluginVersion); s != "" {
				e.Spec.PluginVersion = s
			}
			e.Spec.Capabilities = r.Spec.Capabilities
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}

// versionString accepts versions written as strings or bare numbers (YAML `1.0`).
func versionString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	}
	return fmt.Sprint(v)
}
