package main

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/desertthunder/proofs/internal/tasks"
	tu "github.com/desertthunder/proofs/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			progress := &bytes.Buffer{}
			httpClient := &http.Client{}
			studio := services.NewStudioService(services.StudioOpts{})
			api := &services.APIService{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				Progress:   progress,
				HTTPClient: httpClient,
				Studio:     studio,
				API:        api,
				LockDir:    "/tmp/locks",
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.progress != progress {
				t.Error("expected progress to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.studio != studio {
				t.Error("expected studio to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.lockDir != "/tmp/locks" {
				t.Errorf("expected lockDir to be set, got %s", runner.lockDir)
			}
			if runner.engine == nil {
				t.Error("expected an upload engine when a studio is configured")
			}
		})

		t.Run("engine follows upload config", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Upload.MaxConcurrent = 3
			config.Upload.RateLimit = 2.5
			config.Upload.TaskTimeout = "45s"

			runner := NewRunner(RunnerOpts{Config: config, Studio: services.NewStudioService(services.StudioOpts{})})
			opts := runner.engine.Opts()

			if opts.MaxConcurrent != 3 || opts.RateLimit != 2.5 || opts.TaskTimeout.Seconds() != 45 {
				t.Errorf("unexpected engine options %+v", opts)
			}
		})

		t.Run("without studio has no engine", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.engine != nil {
				t.Error("expected no engine without a studio")
			}
			if err := runner.requireStudio(); err == nil {
				t.Error("expected requireStudio to fail")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.progress != os.Stderr {
				t.Error("expected progress to default to os.Stderr")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				HTTPClient: nil,
			})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with empty lockDir uses temp dir", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.lockDir != filepath.Join(os.TempDir(), "proofs-locks") {
				t.Errorf("unexpected lock dir %s", runner.lockDir)
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("history", func(t *testing.T) {
		t.Run("uses provided database", func(t *testing.T) {
			db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
			if err != nil {
				t.Fatalf("failed to open database: %v", err)
			}
			runner := NewRunner(RunnerOpts{DB: db})
			defer runner.Close()

			if runner.history == nil {
				t.Fatal("expected history recorder")
			}
			if runner.recorder() == nil {
				t.Error("expected recorder")
			}
		})

		t.Run("opens database lazily from config", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Database.Path = filepath.Join(t.TempDir(), "history.db")
			runner := NewRunner(RunnerOpts{Config: config})
			defer runner.Close()

			if runner.db != nil {
				t.Fatal("database should not be opened before use")
			}
			if _, err := runner.openHistory(); err != nil {
				t.Fatalf("openHistory failed: %v", err)
			}
			tu.AssertFileExists(t, config.Database.Path)
		})

		t.Run("unusable database disables recording", func(t *testing.T) {
			dir := t.TempDir()
			config := shared.DefaultConfig()
			config.Database.Path = filepath.Join(tu.MustWriteFile(t, dir, "file", 1), "history.db")
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(&bytes.Buffer{})})

			if rec := runner.recorder(); rec != nil {
				t.Errorf("expected nil recorder, got %T", rec)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writeTable", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		err := runner.writeTable([]string{"Name", "Count"}, [][]string{{"alpha", "1"}, {"beta"}}, alignLeft, alignRight)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"Name", "Count", "alpha", "beta"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("table missing %q:\n%s", want, output.String())
			}
		}
		if strings.Contains(output.String(), "NAME") {
			t.Errorf("headers should print as given:\n%s", output.String())
		}
		if renderTable(nil, nil, nil) != "" {
			t.Error("expected empty table without headers")
		}
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
				continue
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "auth", "session", "portfolio", "select", "upload", "history", "api", "tui"} {
			if !names[want] {
				t.Errorf("expected %q command", want)
			}
		}
	})

	t.Run("progressPrinter", func(t *testing.T) {
		out := &bytes.Buffer{}
		p := newProgressPrinter(out)

		p.sink(tasks.Progress{Percent: 50, Loaded: 512, Total: 1024, Settled: 1, Tasks: 2})
		p.sink(tasks.Progress{Percent: 50.01, Loaded: 513, Total: 1024, Settled: 1, Tasks: 2})
		p.finish()

		got := out.String()
		if strings.Count(got, "\r") != 1 {
			t.Errorf("expected a single redraw, got %q", got)
		}
		if !strings.Contains(got, " 50.0%") || !strings.Contains(got, "1/2 files") || !strings.HasSuffix(got, "\n") {
			t.Errorf("unexpected progress line %q", got)
		}
	})

	t.Run("renderBar", func(t *testing.T) {
		tests := []struct {
			percent float64
			filled  int
		}{
			{0, 0},
			{50, 5},
			{100, 10},
			{150, 10},
			{-5, 0},
		}
		for _, tt := range tests {
			bar := renderBar(tt.percent, 10)
			if got := strings.Count(bar, "█"); got != tt.filled {
				t.Errorf("renderBar(%v) filled %d, want %d", tt.percent, got, tt.filled)
			}
		}
	})

	t.Run("requireArg", func(t *testing.T) {
		if err := requireArg("", "session id"); err == nil || !strings.Contains(err.Error(), "session id") {
			t.Errorf("expected missing argument error, got %v", err)
		}
		if err := requireArg("s1", "session id"); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Close without database", func(t *testing.T) {
		if err := NewRunner(RunnerOpts{}).Close(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

}
