package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override file configuration.
const (
	EnvBackendURL   = "PROOFS_BACKEND_URL"
	EnvUsername     = "PROOFS_USERNAME"
	EnvPassword     = "PROOFS_PASSWORD"
	EnvDatabasePath = "PROOFS_DATABASE_PATH"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Backend     BackendConfig     `toml:"backend"`
	Credentials CredentialsConfig `toml:"credentials"`
	Upload      UploadConfig      `toml:"upload"`
	Database    DatabaseConfig    `toml:"database"`
	Watch       WatchConfig       `toml:"watch"`
}

// BackendConfig locates the studio REST backend and its public pages.
type BackendConfig struct {
	URL          string `toml:"url"`
	ClientPage   string `toml:"client_page"`
	SelectionURL string `toml:"selection_url"`
	Timeout      string `toml:"timeout"`
}

// CredentialsConfig contains the photographer login.
type CredentialsConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	AuthFile string `toml:"auth_file"`
}

// UploadConfig tunes the batch upload orchestrator.
type UploadConfig struct {
	MaxConcurrent int     `toml:"max_concurrent"`
	RateLimit     float64 `toml:"rate_limit"`
	TaskTimeout   string  `toml:"task_timeout"`
	CustomerName  string  `toml:"customer_name"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// WatchConfig controls folder watch uploads.
type WatchConfig struct {
	Debounce   string   `toml:"debounce"`
	Extensions []string `toml:"extensions"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects duration settings that would otherwise be read as "no limit".
func (c *Config) Validate() error {
	durations := []struct{ key, value string }{
		{"backend.timeout", c.Backend.Timeout},
		{"upload.task_timeout", c.Upload.TaskTimeout},
		{"watch.debounce", c.Watch.Debounce},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, d.key, err)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, d.key)
		}
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads the optional dotenv files and overrides config values present in the environment.
//
// Missing dotenv files are not an error. Variables already set in the process environment win over
// values in the files.
func (c *Config) ApplyEnv(files ...string) error {
	existing := []string{}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return fmt.Errorf("%w: failed to load env file: %v", ErrInvalidConfig, err)
		}
	}

	if v := os.Getenv(EnvBackendURL); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		c.Credentials.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Credentials.Password = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		c.Database.Path = v
	}
	return nil
}

// BaseURL returns the backend URL without a trailing slash.
func (b BackendConfig) BaseURL() string {
	return strings.TrimRight(b.URL, "/")
}

// RequestTimeout parses the backend timeout, zero when unset or invalid.
func (b BackendConfig) RequestTimeout() time.Duration {
	return ParseDuration(b.Timeout)
}

// PerTaskTimeout parses the per-file upload deadline, zero when unset.
func (u UploadConfig) PerTaskTimeout() time.Duration {
	return ParseDuration(u.TaskTimeout)
}

// DebounceInterval parses the watch debounce window with a one second floor.
func (w WatchConfig) DebounceInterval() time.Duration {
	d := ParseDuration(w.Debounce)
	if d < time.Second {
		return time.Second
	}
	return d
}

// AuthFilePath expands a leading ~ in the configured auth file.
func (c CredentialsConfig) AuthFilePath() string {
	return ExpandHome(c.AuthFile)
}

// ParseDuration parses s as a [time.Duration], returning zero for empty or malformed input.
func ParseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
