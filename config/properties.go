package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format is a configuration file format.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

const delim = "."

// Properties is a tree of configuration values addressed by dotted keys.
//
// Contract:
//   - Has reports presence, including keys holding an empty string.
//   - Safe for concurrent use; Reload swaps the tree atomically.
type Properties struct {
	mu     sync.RWMutex
	k      *koanf.Koanf
	path   string
	format Format
}

// New returns empty properties.
func New() *Properties {
	return &Properties{k: koanf.New(delim)}
}

// Load reads properties from a .yaml, .yml or .json file.
func Load(path string) (*Properties, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	k, err := readFile(path, format)
	if err != nil {
		return nil, err
	}
	return &Properties{k: k, path: path, format: format}, nil
}

// LoadBytes parses data in the given format. Empty data yields empty
// properties.
func LoadBytes(data []byte, format Format) (*Properties, error) {
	if format != FormatYAML && format != FormatJSON {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	k := koanf.New(delim)
	if len(data) > 0 {
		if err := parse(k, data, format); err != nil {
			return nil, err
		}
	}
	return &Properties{k: k, format: format}, nil
}

// FromMap builds properties from a flat map of dotted keys.
func FromMap(values map[string]any) *Properties {
	p := New()
	for key, v := range values {
		_ = p.k.Set(key, v)
	}
	return p
}

func (p *Properties) client() *koanf.Koanf {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.k
}

// Has implements condition.ConfigSource.
func (p *Properties) Has(key string) bool {
	return p.client().Exists(key)
}

// Lookup implements condition.ConfigSource. Non-string values are
// formatted with fmt.
func (p *Properties) Lookup(key string) (string, bool) {
	k := p.client()
	if !k.Exists(key) {
		return "", false
	}
	return k.String(key), true
}

// String returns the value of key, or def when absent.
func (p *Properties) String(key, def string) string {
	if v, ok := p.Lookup(key); ok {
		return v
	}
	return def
}

// Bool returns the boolean value of key, or false when absent.
func (p *Properties) Bool(key string) bool {
	return p.client().Bool(key)
}

// Int returns the integer value of key, or def when absent.
func (p *Properties) Int(key string, def int) int {
	k := p.client()
	if !k.Exists(key) {
		return def
	}
	return k.Int(key)
}

// Keys returns all leaf keys, sorted.
func (p *Properties) Keys() []string {
	return p.client().Keys()
}

// Set assigns value to key.
func (p *Properties) Set(key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.k.Set(key, value)
}

// Unmarshal decodes the section at path into target using "koanf" struct
// tags. An empty path decodes everything.
func (p *Properties) Unmarshal(path string, target any) error {
	if err := p.client().UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Reload re-reads the file the properties were loaded from.
func (p *Properties) Reload() error {
	if p.path == "" {
		return ErrReloadUnsupported
	}
	k, err := readFile(p.path, p.format)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.k = k
	p.mu.Unlock()
	return nil
}

// Path returns the source file, or "" for properties built in memory.
func (p *Properties) Path() string {
	return p.path
}

// ResolveSecrets replaces every string value with its resolved form: env
// references are expanded and secret references are fetched from r.
func (p *Properties) ResolveSecrets(ctx context.Context, r *SecretResolver) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, v := range p.k.All() {
		s, ok := v.(string)
		if !ok {
			continue
		}
		resolved, err := r.ResolveValue(ctx, s)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", key, err)
		}
		if resolved != s {
			if err := p.k.Set(key, resolved); err != nil {
				return err
			}
		}
	}
	return nil
}

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func readFile(path string, format Format) (*koanf.Koanf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k := koanf.New(delim)
	if err := parse(k, data, format); err != nil {
		return nil, err
	}
	return k, nil
}

func parse(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return ErrUnsupportedFormat
	}

	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
