package teng

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is teng's ambient engine configuration, normally loaded once at
// process startup from a YAML file alongside the application's other
// config. Every field has a documented default so a zero-value Config
// (as produced by an empty YAML document) is still a usable engine.
type Config struct {
	// BaseDir is the template root directory for a LocalFilesystemLoader.
	// Ignored when the caller supplies its own TemplateLoader via
	// WithLoader.
	BaseDir string `yaml:"base_dir"`

	// DefaultCType names the content type PRINT escapes with before any
	// <?teng ctype?> directive is seen. Defaults to "html".
	DefaultCType string `yaml:"default_ctype"`

	// NoPrintEscape disables recognizing "%{" and "#{" as print-form
	// openers, for templates that need those two-character sequences to
	// appear literally (e.g. templates generating CSS).
	NoPrintEscape bool `yaml:"no_print_escape"`

	// DictionaryFile, if set, is loaded as the engine's static
	// Dictionary for #{key} lookups.
	DictionaryFile string `yaml:"dictionary_file"`

	// Watch enables fsnotify-based cache invalidation so edited
	// templates are picked up without restarting the process.
	Watch bool `yaml:"watch"`

	// LogLevel sets the juju/loggo level for the "teng" logger module
	// tree, e.g. "INFO", "DEBUG", "WARNING".
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the configuration new engines use when no
// explicit Config is supplied.
func DefaultConfig() Config {
	return Config{DefaultCType: "html", LogLevel: "WARNING"}
}

// LoadConfigFile reads and parses a YAML config file at path, filling in
// defaults for any field the file leaves unset.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	return LoadConfig(data)
}

// LoadConfig parses a YAML document into a Config, applying defaults for
// zero-valued fields afterward.
func LoadConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config YAML: %w", err)
	}
	if cfg.DefaultCType == "" {
		cfg.DefaultCType = "html"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "WARNING"
	}
	return cfg, nil
}
