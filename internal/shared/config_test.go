package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./proofs.db" {
			t.Errorf("expected database path ./proofs.db, got %s", config.Database.Path)
		}
		if config.Backend.URL != "http://localhost:3000" {
			t.Errorf("expected backend URL http://localhost:3000, got %s", config.Backend.URL)
		}
		if config.Backend.ClientPage != "pages/selection/selection" {
			t.Errorf("expected client page pages/selection/selection, got %s", config.Backend.ClientPage)
		}
		if config.Upload.MaxConcurrent != 0 {
			t.Errorf("expected unbounded uploads by default, got %d", config.Upload.MaxConcurrent)
		}
		if config.Upload.PerTaskTimeout() != 5*time.Minute {
			t.Errorf("expected 5m task timeout, got %v", config.Upload.PerTaskTimeout())
		}
		if len(config.Watch.Extensions) == 0 {
			t.Error("expected default watch extensions")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")
		testConfig := `[backend]
url = "https://studio.example.com/api/"
timeout = "10s"

[credentials]
username = "photographer"
password = "secret"

[upload]
max_concurrent = 4
rate_limit = 2.5
task_timeout = "90s"

[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Backend.BaseURL() != "https://studio.example.com/api" {
			t.Errorf("expected trailing slash trimmed, got %s", config.Backend.BaseURL())
		}
		if config.Backend.RequestTimeout() != 10*time.Second {
			t.Errorf("expected 10s timeout, got %v", config.Backend.RequestTimeout())
		}
		if config.Upload.MaxConcurrent != 4 {
			t.Errorf("expected max_concurrent 4, got %d", config.Upload.MaxConcurrent)
		}
		if config.Upload.RateLimit != 2.5 {
			t.Errorf("expected rate_limit 2.5, got %v", config.Upload.RateLimit)
		}
		if config.Upload.PerTaskTimeout() != 90*time.Second {
			t.Errorf("expected 90s task timeout, got %v", config.Upload.PerTaskTimeout())
		}
		if config.Credentials.Username != "photographer" {
			t.Errorf("expected username photographer, got %s", config.Credentials.Username)
		}
	})

	t.Run("LoadConfig Errors", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}

		bad := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(bad, []byte("[backend\nurl = "), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		_, err = LoadConfig(bad)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadConfig rejects bad durations", func(t *testing.T) {
		tests := []struct {
			name string
			toml string
			key  string
		}{
			{"bare number", "[upload]\ntask_timeout = \"2\"\n", "upload.task_timeout"},
			{"garbage", "[backend]\ntimeout = \"abc\"\n", "backend.timeout"},
			{"negative", "[watch]\ndebounce = \"-1s\"\n", "watch.debounce"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(path, []byte(tt.toml), 0644); err != nil {
					t.Fatalf("failed to write config: %v", err)
				}
				_, err := LoadConfig(path)
				if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), tt.key) {
					t.Errorf("expected ErrInvalidConfig naming %s, got %v", tt.key, err)
				}
			})
		}
	})

	t.Run("default config validates", func(t *testing.T) {
		if err := DefaultConfig().Validate(); err != nil {
			t.Errorf("expected embedded config to validate, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Run("process environment overrides", func(t *testing.T) {
			t.Setenv(EnvBackendURL, "http://env.example.com")
			t.Setenv(EnvUsername, "env-user")

			config := DefaultConfig()
			if err := config.ApplyEnv(); err != nil {
				t.Fatalf("ApplyEnv() error = %v", err)
			}

			if config.Backend.URL != "http://env.example.com" {
				t.Errorf("expected env backend URL, got %s", config.Backend.URL)
			}
			if config.Credentials.Username != "env-user" {
				t.Errorf("expected env username, got %s", config.Credentials.Username)
			}
		})

		t.Run("dotenv file is loaded", func(t *testing.T) {
			t.Setenv(EnvPassword, "")
			os.Unsetenv(EnvPassword)

			envPath := filepath.Join(t.TempDir(), ".env")
			if err := os.WriteFile(envPath, []byte(EnvPassword+"=from-dotenv\n"), 0600); err != nil {
				t.Fatalf("failed to write env file: %v", err)
			}

			config := DefaultConfig()
			if err := config.ApplyEnv(envPath, filepath.Join(t.TempDir(), "absent.env")); err != nil {
				t.Fatalf("ApplyEnv() error = %v", err)
			}
			if config.Credentials.Password != "from-dotenv" {
				t.Errorf("expected password from dotenv, got %q", config.Credentials.Password)
			}
			os.Unsetenv(EnvPassword)
		})
	})

	t.Run("ParseDuration", func(t *testing.T) {
		tests := []struct {
			in   string
			want time.Duration
		}{
			{"", 0},
			{"garbage", 0},
			{"-5s", 0},
			{"1m30s", 90 * time.Second},
		}
		for _, tt := range tests {
			if got := ParseDuration(tt.in); got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	})

	t.Run("DebounceInterval has a floor", func(t *testing.T) {
		w := WatchConfig{Debounce: "100ms"}
		if w.DebounceInterval() != time.Second {
			t.Errorf("expected 1s floor, got %v", w.DebounceInterval())
		}
	})
}
