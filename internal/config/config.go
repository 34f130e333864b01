// Package config holds the model configuration document: the key/value file
// shipped next to a compiled model that describes its shapes, templates and
// companion files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Format is the encoding of a configuration file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Candidates are the file names looked up, in order, when Load is given a
// directory.
var Candidates = []string{"config.json", "llm_config.json", "config.yaml", "config.yml", "config.toml"}

// Config is a loaded configuration document. Values are normalised to the
// JSON data model whatever the source format was.
type Config struct {
	dir  string
	path string
	doc  map[string]any
}

// Load reads a configuration from a file, or from the first of Candidates
// present in a directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if info.IsDir() {
		found := ""
		for _, name := range Candidates {
			p := filepath.Join(path, name)
			if _, err := os.Stat(p); err == nil {
				found = p
				break
			}
		}
		if found == "" {
			return nil, fmt.Errorf("config: no configuration file in %s (looked for %s)", path, strings.Join(Candidates, ", "))
		}
		path = found
	}
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data, format, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	c.path = path
	return c, nil
}

// FormatFor picks the decoder from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("config: unsupported file type %q", filepath.Ext(path))
	}
}

// Parse decodes a document. Relative file paths in it resolve against dir.
func Parse(data []byte, format Format, dir string) (*Config, error) {
	raw := map[string]any{}
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("config: unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}
	doc, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	return &Config{dir: dir, doc: doc}, nil
}

// New wraps an in-memory document.
func New(doc map[string]any, dir string) (*Config, error) {
	n, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	return &Config{dir: dir, doc: n}, nil
}

// normalize round-trips through JSON so YAML and TOML integers, nested maps
// and arrays share one representation.
func normalize(v map[string]any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("config: normalise document: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("config: normalise document: %w", err)
	}
	return out, nil
}

// Dir is the directory relative paths resolve against.
func (c *Config) Dir() string { return c.dir }

// Path is the file the document was loaded from, if any.
func (c *Config) Path() string { return c.path }

// Get returns the raw value stored under key.
func (c *Config) Get(key string) (any, bool) {
	v, ok := c.doc[key]
	return v, ok
}

// Set stores a value, normalised to the JSON data model.
func (c *Config) Set(key string, value any) error {
	n, err := normalize(map[string]any{key: value})
	if err != nil {
		return err
	}
	c.doc[key] = n[key]
	return nil
}

// MergePatch applies an RFC 7386 JSON merge patch. The patch must be an
// object; null members delete keys.
func (c *Config) MergePatch(patch []byte) error {
	var p any
	if err := json.Unmarshal(patch, &p); err != nil {
		return fmt.Errorf("config: parse merge patch: %w", err)
	}
	obj, ok := p.(map[string]any)
	if !ok {
		return fmt.Errorf("config: merge patch must be a JSON object")
	}
	c.doc = mergeObject(c.doc, obj)
	return nil
}

func mergeObject(target, patch map[string]any) map[string]any {
	if target == nil {
		target = map[string]any{}
	}
	for k, pv := range patch {
		if pv == nil {
			delete(target, k)
			continue
		}
		if po, ok := pv.(map[string]any); ok {
			to, _ := target[k].(map[string]any)
			target[k] = mergeObject(to, po)
			continue
		}
		target[k] = pv
	}
	return target
}

// Dump renders the document as indented JSON with sorted keys.
func (c *Config) Dump() (string, error) {
	data, err := json.MarshalIndent(c.doc, "", "    ")
	if err != nil {
		return "", fmt.Errorf("config: dump: %w", err)
	}
	return string(data), nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}
