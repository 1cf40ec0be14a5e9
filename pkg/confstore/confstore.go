// Package confstore persists process configuration and runtime metadata to
// the filesystem: one configuration file per record (JSON, YAML, or TOML,
// auto-detected by extension) plus a distinct-suffix metadata file carrying
// the runtime identity needed to resume across daemon restarts.
package confstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kestrel-run/kestrel/pkg/types"
	"gopkg.in/yaml.v3"
)

// metaSuffix is the distinguishing suffix so the configuration loader never
// mistakes a metadata file for a configuration.
const metaSuffix = ".meta.json"

// defaultExt is used when SaveConfig is asked to persist a record whose
// configuration file doesn't already exist on disk.
const defaultExt = ".yaml"

// Store persists configurations and metadata beneath a single apps
// directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// ecosystemFile is the optional aggregate form: { apps: [config, ...] }.
type ecosystemFile struct {
	Apps []types.Config `json:"apps" yaml:"apps" toml:"apps"`
}

func (s *Store) configPath(name, ext string) string {
	return filepath.Join(s.dir, name+ext)
}

func (s *Store) metaPath(name string) string {
	return filepath.Join(s.dir, name+metaSuffix)
}

// existingConfigPath returns the path of name's configuration file on disk,
// trying each supported extension, or "" if none exists.
func (s *Store) existingConfigPath(name string) string {
	for _, ext := range []string{".json", ".yaml", ".yml", ".toml"} {
		p := s.configPath(name, ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// SaveConfig writes cfg to disk, reusing the existing file's extension and
// format if one already exists, defaulting to YAML for a new record.
func (s *Store) SaveConfig(cfg types.Config) error {
	path := s.existingConfigPath(cfg.Name)
	ext := defaultExt
	if path != "" {
		ext = filepath.Ext(path)
	} else {
		path = s.configPath(cfg.Name, ext)
	}

	data, err := marshalConfig(cfg, ext)
	if err != nil {
		return fmt.Errorf("marshaling config %q: %w", cfg.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %q: %w", cfg.Name, err)
	}
	return nil
}

// LoadConfig reads a single record's configuration from disk.
func (s *Store) LoadConfig(name string) (types.Config, error) {
	path := s.existingConfigPath(name)
	if path == "" {
		return types.Config{}, fmt.Errorf("no configuration file for %q", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Config{}, fmt.Errorf("reading config %q: %w", name, err)
	}
	var cfg types.Config
	if err := unmarshalInto(data, filepath.Ext(path), &cfg); err != nil {
		return types.Config{}, fmt.Errorf("parsing config %q: %w", name, err)
	}
	return cfg, nil
}

// ListConfigs enumerates every configuration file in the store, skipping
// anything with the metadata suffix, and returns them sorted by name.
func (s *Store) ListConfigs() ([]types.Config, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing config directory: %w", err)
	}

	var configs []types.Config
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fname := entry.Name()
		if strings.HasSuffix(fname, metaSuffix) {
			continue
		}
		ext := filepath.Ext(fname)
		switch ext {
		case ".json", ".yaml", ".yml", ".toml":
		default:
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		cfg, err := s.LoadConfig(name)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs, nil
}

// SaveMetadata writes a record's runtime metadata, always as JSON.
func (s *Store) SaveMetadata(name string, meta types.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata %q: %w", name, err)
	}
	if err := os.WriteFile(s.metaPath(name), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata %q: %w", name, err)
	}
	return nil
}

// LoadMetadata reads a record's runtime metadata. A missing file is not an
// error: it returns the zero value and ok==false.
func (s *Store) LoadMetadata(name string) (types.Metadata, bool, error) {
	data, err := os.ReadFile(s.metaPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return types.Metadata{}, false, nil
		}
		return types.Metadata{}, false, fmt.Errorf("reading metadata %q: %w", name, err)
	}
	var meta types.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return types.Metadata{}, false, fmt.Errorf("parsing metadata %q: %w", name, err)
	}
	return meta, true, nil
}

// Delete removes a record's configuration and metadata files. Missing files
// are not an error.
func (s *Store) Delete(name string) error {
	if path := s.existingConfigPath(name); path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing config %q: %w", name, err)
		}
	}
	if err := os.Remove(s.metaPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing metadata %q: %w", name, err)
	}
	return nil
}

// LoadEcosystem parses an aggregate "{ apps: [...] }" file into individual
// configurations, without persisting them individually.
func LoadEcosystem(path string) ([]types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ecosystem file %q: %w", path, err)
	}
	var eco ecosystemFile
	if err := unmarshalInto(data, filepath.Ext(path), &eco); err != nil {
		return nil, fmt.Errorf("parsing ecosystem file %q: %w", path, err)
	}
	return eco.Apps, nil
}

func marshalConfig(cfg types.Config, ext string) ([]byte, error) {
	switch ext {
	case ".json":
		return json.MarshalIndent(cfg, "", "  ")
	case ".toml":
		var buf strings.Builder
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return []byte(buf.String()), nil
	default: // ".yaml", ".yml"
		return yaml.Marshal(cfg)
	}
}

func unmarshalInto(data []byte, ext string, v interface{}) error {
	switch ext {
	case ".json":
		return json.Unmarshal(data, v)
	case ".toml":
		return toml.Unmarshal(data, v)
	default: // ".yaml", ".yml"
		return yaml.Unmarshal(data, v)
	}
}
