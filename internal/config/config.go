// Package config handles configuration loading and validation for medialink.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"medialink/internal/scanner"
)

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound    ConfigErrorType = "FILE_NOT_FOUND"
	InvalidFormat   ConfigErrorType = "INVALID_FORMAT"
	ValidationError ConfigErrorType = "VALIDATION_ERROR"
)

// ConfigError represents an error that occurred during configuration loading.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		if e.Message != "" {
			return fmt.Sprintf("configuration file not readable: %s: %s", e.Path, e.Message)
		}
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidFormat:
		return fmt.Sprintf("invalid configuration file %s: %s", e.Path, e.Message)
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

// Defaults
const (
	DefaultTrackingDirectory = "hardlinks"
	DefaultDebounceSeconds   = 5
	DefaultFileName          = "config.json"
)

// Library is one source tree mirrored into one target tree.
type Library struct {
	Name         string `json:"name" yaml:"name" toml:"name"`
	Source       string `json:"source" yaml:"source" toml:"source"`
	Target       string `json:"target" yaml:"target" toml:"target"`
	TrackingFile string `json:"trackingFile,omitempty" yaml:"trackingFile,omitempty" toml:"trackingFile,omitempty"`
}

// WatchConfig holds settings for watch mode.
type WatchConfig struct {
	DebounceSeconds int      `json:"debounceSeconds" yaml:"debounceSeconds" toml:"debounceSeconds"`
	IgnorePatterns  []string `json:"ignorePatterns,omitempty" yaml:"ignorePatterns,omitempty" toml:"ignorePatterns,omitempty"`
}

// Configuration holds all settings for medialink.
type Configuration struct {
	TrackingDirectory      string       `json:"trackingDirectory,omitempty" yaml:"trackingDirectory,omitempty" toml:"trackingDirectory,omitempty"`
	PassthroughDirectories []string     `json:"passthroughDirectories,omitempty" yaml:"passthroughDirectories,omitempty" toml:"passthroughDirectories,omitempty"`
	SymlinkPolicy          string       `json:"symlinkPolicy,omitempty" yaml:"symlinkPolicy,omitempty" toml:"symlinkPolicy,omitempty"`
	Exclude                []string     `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude,omitempty"`
	Libraries              []Library    `json:"libraries" yaml:"libraries" toml:"libraries"`
	Watch                  *WatchConfig `json:"watch,omitempty" yaml:"watch,omitempty" toml:"watch,omitempty"`
}

// DefaultConfiguration returns the stock two-library layout: downloaded
// movies and shows mirrored into a media tree.
func DefaultConfiguration() *Configuration {
	cfg := &Configuration{
		TrackingDirectory:      DefaultTrackingDirectory,
		PassthroughDirectories: []string{"Featurettes"},
		SymlinkPolicy:          scanner.SymlinkPolicyFollow,
		Libraries: []Library{
			{Name: "movies", Source: filepath.Join("downloads", "movies"), Target: filepath.Join("media", "movies")},
			{Name: "shows", Source: filepath.Join("downloads", "shows"), Target: filepath.Join("media", "shows")},
		},
		Watch: &WatchConfig{DebounceSeconds: DefaultDebounceSeconds},
	}
	return cfg
}

// Validate checks that the configuration has all required fields. It does
// not touch the filesystem; see ValidateConfig for that.
func (c *Configuration) Validate() error {
	if len(c.Libraries) == 0 {
		return &ConfigError{
			Type:    ValidationError,
			Message: "libraries must contain at least one library",
		}
	}

	seen := make(map[string]int)
	for i, lib := range c.Libraries {
		if strings.TrimSpace(lib.Name) == "" {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("libraries[%d].name cannot be empty", i),
			}
		}
		if first, dup := seen[lib.Name]; dup {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("libraries[%d].name %q duplicates libraries[%d]", i, lib.Name, first),
			}
		}
		seen[lib.Name] = i
		if lib.Source == "" {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("libraries[%d].source cannot be empty", i),
			}
		}
		if lib.Target == "" {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("libraries[%d].target cannot be empty", i),
			}
		}
	}

	if !scanner.ValidSymlinkPolicy(c.SymlinkPolicy) {
		return &ConfigError{
			Type:    ValidationError,
			Message: fmt.Sprintf("invalid symlink policy %q", c.SymlinkPolicy),
		}
	}

	return nil
}

// ApplyDefaults fills unset optional fields.
func (c *Configuration) ApplyDefaults() {
	if c.TrackingDirectory == "" {
		c.TrackingDirectory = DefaultTrackingDirectory
	}
	if c.PassthroughDirectories == nil {
		c.PassthroughDirectories = []string{"Featurettes"}
	}
	if c.SymlinkPolicy == "" {
		c.SymlinkPolicy = scanner.SymlinkPolicyFollow
	}
	if c.Watch == nil {
		c.Watch = &WatchConfig{}
	}
	if c.Watch.DebounceSeconds == 0 {
		c.Watch.DebounceSeconds = DefaultDebounceSeconds
	}
}

// TrackingFileFor returns the tracking store path for lib.
func (c *Configuration) TrackingFileFor(lib Library) string {
	if lib.TrackingFile != "" {
		return lib.TrackingFile
	}
	dir := c.TrackingDirectory
	if dir == "" {
		dir = DefaultTrackingDirectory
	}
	return filepath.Join(dir, "hardlinked_"+lib.Name+".json")
}

// Library returns the library with the given name.
func (c *Configuration) Library(name string) (Library, bool) {
	for _, lib := range c.Libraries {
		if lib.Name == name {
			return lib, true
		}
	}
	return Library{}, false
}

// SelectLibraries returns the named libraries in the order given, or every
// library when names is empty.
func (c *Configuration) SelectLibraries(names []string) ([]Library, error) {
	if len(names) == 0 {
		return append([]Library(nil), c.Libraries...), nil
	}
	selected := make([]Library, 0, len(names))
	for _, name := range names {
		lib, ok := c.Library(name)
		if !ok {
			return nil, fmt.Errorf("unknown library %q", name)
		}
		selected = append(selected, lib)
	}
	return selected, nil
}

// DefaultPath returns the per-user configuration file location.
// XDG_CONFIG_HOME is read at call time so it can be changed after startup.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = xdg.ConfigHome
	}
	return filepath.Join(configHome, "medialink", DefaultFileName)
}

// format identifies a configuration encoding.
type format string

const (
	formatJSON format = "json"
	formatYAML format = "yaml"
	formatTOML format = "toml"
)

// formatFor picks the encoding from the file extension. Unknown extensions
// are read as JSON.
func formatFor(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".toml":
		return formatTOML
	default:
		return formatJSON
	}
}

func decode(data []byte, f format, cfg *Configuration) error {
	switch f {
	case formatYAML:
		return yaml.Unmarshal(data, cfg)
	case formatTOML:
		return toml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func encode(cfg *Configuration, f format) ([]byte, error) {
	switch f {
	case formatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case formatTOML:
		return toml.Marshal(cfg)
	default:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

// Load reads and parses a configuration file from the given path. The
// encoding is chosen by extension: .json, .yaml/.yml or .toml.
func Load(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{
				Type: FileNotFound,
				Path: filePath,
			}
		}
		return nil, &ConfigError{
			Type:    FileNotFound,
			Path:    filePath,
			Message: err.Error(),
		}
	}

	return parse(filePath, data)
}

func parse(filePath string, data []byte) (*Configuration, error) {
	var config Configuration
	if err := decode(data, formatFor(filePath), &config); err != nil {
		return nil, &ConfigError{
			Type:    InvalidFormat,
			Path:    filePath,
			Message: err.Error(),
		}
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadOrCreate loads config if it exists, or returns the default
// configuration if the file doesn't exist.
func LoadOrCreate(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfiguration(), nil
		}
		return nil, &ConfigError{
			Type:    FileNotFound,
			Path:    filePath,
			Message: err.Error(),
		}
	}

	return parse(filePath, data)
}

// Save serializes and writes a configuration to the given path, creating
// parent directories as needed.
func Save(config *Configuration, filePath string) error {
	data, err := encode(config, formatFor(filePath))
	if err != nil {
		return &ConfigError{
			Type:    InvalidFormat,
			Path:    filePath,
			Message: err.Error(),
		}
	}

	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("failed to create configuration directory: %s", err.Error()),
			}
		}
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return &ConfigError{
			Type:    ValidationError,
			Message: fmt.Sprintf("failed to write configuration file: %s", err.Error()),
		}
	}

	return nil
}
