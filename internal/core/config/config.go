package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName  = "config.yml"
	HistoryFileName = "history.db"
	AppDirName      = "unmark"

	// ConfigDirEnv overrides the config directory (used in Docker and tests)
	ConfigDirEnv = "UNMARK_CONFIG_DIR"
)

// ConfigDir returns the standard config directory for unmark.
// Windows: %APPDATA%\unmark\
// macOS/Linux: ~/.config/unmark/
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return expandPath(dir), nil
	}
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/unmark/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// Language for reason strings ("zh" or "en")
	Language string `yaml:"language,omitempty"`

	// Server configuration for `unmark serve`
	Server ServerConfig `yaml:"server,omitempty"`

	Resolver ResolverConfig `yaml:"resolver,omitempty"`
	Capture  CaptureConfig  `yaml:"capture,omitempty"`
	Probe    ProbeConfig    `yaml:"probe,omitempty"`
	Proxy    ProxyConfig    `yaml:"proxy,omitempty"`
	History  HistoryConfig  `yaml:"history,omitempty"`
}

// ServerConfig holds HTTP server settings for `unmark serve`
type ServerConfig struct {
	// Port is the HTTP listen port (default: 5001)
	Port int `yaml:"port,omitempty"`

	// APIKey for authentication (optional, if set all /api requests must include X-API-Key header)
	APIKey string `yaml:"api_key,omitempty"`

	// AllowedOrigins for CORS; "*" allows any origin
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`

	// SessionTTL is how long a stored cookie session lives (default: 10m)
	SessionTTL time.Duration `yaml:"session_ttl,omitempty"`
}

// ResolverConfig controls redirect resolution and markup fetching
type ResolverConfig struct {
	Timeout        time.Duration `yaml:"timeout,omitempty"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout,omitempty"`
	UserAgent      string        `yaml:"user_agent,omitempty"`
	AcceptLanguage string        `yaml:"accept_language,omitempty"`
	Referer        string        `yaml:"referer,omitempty"`
}

// CaptureConfig controls the headless-browser network capture
type CaptureConfig struct {
	// Mode is always, fallback or off
	Mode string `yaml:"mode,omitempty"`

	// BrowserPath points at a Chromium binary; ROD_BROWSER and the system
	// lookup are used when empty
	BrowserPath string `yaml:"browser_path,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty"`
	Settle  time.Duration `yaml:"settle,omitempty"`
}

// ProbeConfig controls candidate reachability checks
type ProbeConfig struct {
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	RejectHTML bool          `yaml:"reject_html"`
}

// ProxyConfig controls the media proxy endpoint
type ProxyConfig struct {
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	MaxBytes int64         `yaml:"max_bytes,omitempty"`
}

// HistoryConfig controls the local record of resolved notes kept by the CLI
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path of the sqlite database (default: history.db next to config.yml)
	Path string `yaml:"path,omitempty"`

	// Limit is how many entries are kept; older ones are pruned
	Limit int `yaml:"limit,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Language: "zh",
		Server: ServerConfig{
			Port:           5001,
			AllowedOrigins: []string{"*"},
			SessionTTL:     10 * time.Minute,
		},
		Resolver: ResolverConfig{
			Timeout:      5 * time.Second,
			FetchTimeout: 8 * time.Second,
		},
		Capture: CaptureConfig{
			Mode:    "always",
			Timeout: 30 * time.Second,
			Settle:  2 * time.Second,
		},
		Probe: ProbeConfig{
			Timeout:    12 * time.Second,
			RejectHTML: true,
		},
		Proxy: ProxyConfig{
			Timeout:  60 * time.Second,
			MaxBytes: 50 << 20,
		},
		History: HistoryConfig{
			Enabled: true,
			Limit:   500,
		},
	}
}

// ApplyDefaults fills every unset field from DefaultConfig
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = d.Server.AllowedOrigins
	}
	if c.Server.SessionTTL <= 0 {
		c.Server.SessionTTL = d.Server.SessionTTL
	}
	if c.Resolver.Timeout <= 0 {
		c.Resolver.Timeout = d.Resolver.Timeout
	}
	if c.Resolver.FetchTimeout <= 0 {
		c.Resolver.FetchTimeout = d.Resolver.FetchTimeout
	}
	if c.Capture.Mode == "" {
		c.Capture.Mode = d.Capture.Mode
	}
	if c.Capture.Timeout <= 0 {
		c.Capture.Timeout = d.Capture.Timeout
	}
	if c.Capture.Settle <= 0 {
		c.Capture.Settle = d.Capture.Settle
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = d.Probe.Timeout
	}
	if c.Proxy.Timeout <= 0 {
		c.Proxy.Timeout = d.Proxy.Timeout
	}
	if c.Proxy.MaxBytes <= 0 {
		c.Proxy.MaxBytes = d.Proxy.MaxBytes
	}
	if c.History.Limit <= 0 {
		c.History.Limit = d.History.Limit
	}
}

// HistoryPath returns where the resolve history is stored
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return expandPath(c.History.Path), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HistoryFileName), nil
}

// Validate rejects values the rest of the program cannot work with
func (c *Config) Validate() error {
	switch c.Language {
	case "", "zh", "en":
	default:
		return fmt.Errorf("unsupported language %q (use zh or en)", c.Language)
	}
	switch c.Capture.Mode {
	case "", "always", "fallback", "off":
	default:
		return fmt.Errorf("unsupported capture mode %q (use always, fallback or off)", c.Capture.Mode)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/unmark/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads a config file from an explicit path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	// decode over the defaults so keys missing from the file keep them
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cfg.Capture.BrowserPath = expandPath(cfg.Capture.BrowserPath)
	cfg.ApplyDefaults()
	return cfg, nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes so config files written on
// Windows still work elsewhere.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		// Only expand if it's explicitly "~", "~/", or "~\"
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// Save writes the config to ~/.config/unmark/config.yml
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# unmark configuration file\n# Run 'unmark init' to regenerate with defaults\n\n"
	content := header + string(data)

	// may hold an API key
	return os.WriteFile(configPath, []byte(content), 0600)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads config if it exists, otherwise returns defaults
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
	}
	return cfg
}
