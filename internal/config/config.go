package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config contains the program configuration
type Config struct {
	Verbose         bool      `yaml:"verbose" toml:"verbose"`
	Listen          string    `yaml:"listen" toml:"listen"`
	Locale          string    `yaml:"locale" toml:"locale"`
	LogDir          string    `yaml:"log_dir" toml:"log_dir"`
	CacheBackend    string    `yaml:"cache_backend" toml:"cache_backend"`
	CacheDir        string    `yaml:"cache_dir" toml:"cache_dir"`
	MediaDir        string    `yaml:"media_dir" toml:"media_dir"`
	MediaRetention  string    `yaml:"media_retention" toml:"media_retention"`
	SearchLimit     int       `yaml:"search_limit" toml:"search_limit"`
	SearchSweep     string    `yaml:"search_sweep" toml:"search_sweep"`
	ProgressBuffer  int       `yaml:"progress_buffer" toml:"progress_buffer"`
	DefaultProvider string    `yaml:"default_provider" toml:"default_provider"`
	PlaceholderURL  string    `yaml:"placeholder_url" toml:"placeholder_url"`
	FFmpegPath      string    `yaml:"ffmpeg_path" toml:"ffmpeg_path"`
	Lyrics          bool      `yaml:"lyrics" toml:"lyrics"`
	Enrich          []string  `yaml:"enrich" toml:"enrich"`
	Providers       Providers `yaml:"providers" toml:"providers"`
}

// Providers holds per-service settings; a nil section disables the service.
type Providers struct {
	Hifi   *HifiConfig   `yaml:"hifi,omitempty" toml:"hifi,omitempty"`
	Yandex *YandexConfig `yaml:"yandex,omitempty" toml:"yandex,omitempty"`
	Lucida *LucidaConfig `yaml:"lucida,omitempty" toml:"lucida,omitempty"`
}

type HifiConfig struct {
	APIURL  string `yaml:"api_url" toml:"api_url"`
	WebURL  string `yaml:"web_url" toml:"web_url"`
	Token   string `yaml:"token" toml:"token"`
	Quality int    `yaml:"quality" toml:"quality"`
}

type YandexConfig struct {
	APIURL string `yaml:"api_url" toml:"api_url"`
	WebURL string `yaml:"web_url" toml:"web_url"`
	Token  string `yaml:"token" toml:"token"`
}

type LucidaConfig struct {
	APIURL  string `yaml:"api_url" toml:"api_url"`
	Service string `yaml:"service" toml:"service"`
}

var (
	validLocales  = []string{"en", "ru"}
	validBackends = []string{"memory", "file", "sqlite"}
	validEnrich   = []string{"deezer", "itunes", "musicbrainz"}
)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Listen:          "127.0.0.1:8080",
		Locale:          "en",
		LogDir:          GetDefaultLogPath(),
		CacheBackend:    "file",
		CacheDir:        filepath.Join(xdg.CacheHome, "trackbot", "media-cache"),
		MediaDir:        filepath.Join(xdg.DataHome, "trackbot", "media"),
		MediaRetention:  "24h",
		SearchLimit:     10,
		SearchSweep:     "5m",
		ProgressBuffer:  16,
		DefaultProvider: "hifi",
		PlaceholderURL:  "https://example.invalid/placeholder.mp3",
		Enrich:          []string{"deezer", "itunes"},
	}
}

// LoadConfigFile loads configuration from a YAML or TOML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.LogDir = ExpandHome(cfg.LogDir)
	cfg.CacheDir = ExpandHome(cfg.CacheDir)
	cfg.MediaDir = ExpandHome(cfg.MediaDir)

	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(xdg.Home, path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	locations := []string{
		"./trackbot.yaml",
		"./trackbot.yml",
		"./trackbot.toml",
		filepath.Join(xdg.ConfigHome, "trackbot", "config.yaml"),
		filepath.Join(xdg.ConfigHome, "trackbot", "config.yml"),
		filepath.Join(xdg.ConfigHome, "trackbot", "config.toml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the configuration, picking the format from the extension
func SaveConfigFile(cfg Config, path string) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "trackbot", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(xdg.DataHome, "trackbot", "logs")
}

// SearchSweepInterval is how often the search result cache is cleared.
func (c *Config) SearchSweepInterval() time.Duration {
	d, _ := time.ParseDuration(c.SearchSweep)
	return d
}

// MediaRetentionWindow is how long the gateway keeps uploaded files.
func (c *Config) MediaRetentionWindow() time.Duration {
	d, _ := time.ParseDuration(c.MediaRetention)
	return d
}

// EnabledProviders lists provider tags with a config section, in a fixed order.
func (c *Config) EnabledProviders() []string {
	var tags []string
	if c.Providers.Hifi != nil {
		tags = append(tags, "hifi")
	}
	if c.Providers.Yandex != nil {
		tags = append(tags, "yandex")
	}
	if c.Providers.Lucida != nil {
		tags = append(tags, "lucida")
	}
	return tags
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	if !contains(validLocales, c.Locale) {
		return fmt.Errorf("unsupported locale '%s', valid locales: %v", c.Locale, validLocales)
	}

	if !contains(validBackends, c.CacheBackend) {
		return fmt.Errorf("unsupported cache_backend '%s', valid backends: %v", c.CacheBackend, validBackends)
	}
	if c.CacheBackend != "memory" && c.CacheDir == "" {
		return fmt.Errorf("cache_dir cannot be empty for the %s backend", c.CacheBackend)
	}

	if c.MediaDir == "" {
		return fmt.Errorf("media_dir cannot be empty")
	}

	if d, err := time.ParseDuration(c.MediaRetention); err != nil || d <= 0 {
		return fmt.Errorf("media_retention must be a positive duration, got %q", c.MediaRetention)
	}
	if d, err := time.ParseDuration(c.SearchSweep); err != nil || d <= 0 {
		return fmt.Errorf("search_sweep must be a positive duration, got %q", c.SearchSweep)
	}

	if c.SearchLimit < 1 || c.SearchLimit > 50 {
		return fmt.Errorf("search_limit must be between 1 and 50, got %d", c.SearchLimit)
	}
	if c.ProgressBuffer < 1 {
		return fmt.Errorf("progress_buffer must be at least 1, got %d", c.ProgressBuffer)
	}

	enabled := c.EnabledProviders()
	if len(enabled) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	if !contains(enabled, c.DefaultProvider) {
		return fmt.Errorf("default_provider %q is not configured, configured providers: %v", c.DefaultProvider, enabled)
	}

	for _, name := range c.Enrich {
		if !contains(validEnrich, name) {
			return fmt.Errorf("unsupported enrich source '%s', valid sources: %v", name, validEnrich)
		}
	}

	if c.Providers.Hifi != nil && c.Providers.Hifi.APIURL == "" {
		return fmt.Errorf("providers.hifi.api_url is required")
	}
	if c.Providers.Yandex != nil {
		if c.Providers.Yandex.APIURL == "" {
			return fmt.Errorf("providers.yandex.api_url is required")
		}
		if c.Providers.Yandex.Token == "" {
			return fmt.Errorf("providers.yandex.token is required")
		}
	}
	if c.Providers.Lucida != nil && c.Providers.Lucida.APIURL == "" {
		return fmt.Errorf("providers.lucida.api_url is required")
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// Exists reports whether a file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
