package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/proofs/internal/repositories"
	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/desertthunder/proofs/internal/tasks"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	studio     services.Studio
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	progress   io.Writer
	engine     *tasks.UploadEngine
	lockDir    string
	db         *sql.DB
	history    *repositories.HistoryRecorder
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Studio     services.Studio
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Progress   io.Writer // progress bars; defaults to stderr so stdout stays parseable
	LockDir    string
	DB         *sql.DB // history database; opened from config on first use when nil
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Progress == nil {
		opts.Progress = os.Stderr
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.LockDir == "" {
		opts.LockDir = filepath.Join(os.TempDir(), "proofs-locks")
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		studio:     opts.Studio,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		progress:   opts.Progress,
		lockDir:    opts.LockDir,
		db:         opts.DB,
	}
	r.engine = r.newEngine()
	if r.db != nil {
		r.history = repositories.NewHistoryRecorder(r.db)
	}
	return r
}

func (r *Runner) newEngine() *tasks.UploadEngine {
	if r.studio == nil {
		return nil
	}
	up := r.config.Upload
	return tasks.NewUploadEngine(r.studio, tasks.EngineOpts{
		MaxConcurrent: up.MaxConcurrent,
		RateLimit:     up.RateLimit,
		TaskTimeout:   up.PerTaskTimeout(),
		Logger:        r.logger,
	})
}

// SetLogger replaces the logger, rebuilding the engine so uploads log to it too.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.engine = r.newEngine()
}

// Close releases the history database.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, sessionCommand, portfolioCommand, selectCommand,
		uploadCommand, historyCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) requireStudio() error {
	if r.studio == nil {
		return fmt.Errorf("%w: studio backend not configured", shared.ErrServiceUnavailable)
	}
	return nil
}

// openHistory opens the history database on first use.
func (r *Runner) openHistory() (*repositories.HistoryRecorder, error) {
	if r.history != nil {
		return r.history, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.history = repositories.NewHistoryRecorder(db)
	return r.history, nil
}

// recorder returns the history recorder, or nil when the database is unusable.
// Uploads never fail because history could not be written.
func (r *Runner) recorder() tasks.Recorder {
	h, err := r.openHistory()
	if err != nil {
		r.logger.Warn("upload history disabled", "error", err)
		return nil
	}
	return h
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				tr[i] = row[i]
			} else {
				tr[i] = ""
			}
		}
		tw.AppendRow(tr)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func (r *Runner) writeTable(headers []string, rows [][]string, aligns ...columnAlignment) error {
	return r.writePlain("%s\n", renderTable(headers, rows, aligns))
}
