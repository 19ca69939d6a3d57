package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/proofs/internal/models"
	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/desertthunder/proofs/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SessionListView ViewState = iota
	ConfirmView
	UploadView
	ResultView
)

// SessionSource lists sessions to pick a destination from. [services.StudioService] implements it.
type SessionSource interface {
	ListSessions(ctx context.Context, q services.SessionQuery) (*models.SessionPage, error)
}

// Opts wires the TUI to the backend and the files to send.
type Opts struct {
	Sessions SessionSource
	Engine   *tasks.UploadEngine
	Recorder tasks.Recorder // optional
	Files    []services.LocalFile
	Query    services.SessionQuery
	LockDir  string // empty skips the destination lock
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	opts         Opts
	totalBytes   int64
	width        int
	height       int
	sessionList  list.Model
	session      *models.Session
	progressChan <-chan tasks.ProgressUpdate
	doneChan     <-chan uploadComplete
	progress     tasks.ProgressUpdate
	percent      float64
	bar          progress.Model
	cancelling   bool
	result       *uploadComplete
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Opts) *Model {
	var total int64
	for _, f := range opts.Files {
		total += f.Size
	}
	if opts.Query.Limit <= 0 {
		opts.Query.Limit = 50
	}
	return &Model{
		ctx:         ctx,
		view:        SessionListView,
		opts:        opts,
		totalBytes:  total,
		sessionList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		bar:         progress.New(progress.WithGradient(styles.barFrom, styles.barTo)),
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// State returns the current view.
func (m *Model) State() ViewState { return m.view }

// Outcome returns the finished batch, nil until the upload completes.
func (m *Model) Outcome() *tasks.BatchOutcome {
	if m.result == nil {
		return nil
	}
	return m.result.outcome
}

// Init initializes the TUI by fetching sessions from the backend.
func (m *Model) Init() tea.Cmd {
	return m.fetchSessions()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sessionList.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = max(10, min(msg.Width-8, 80))
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SessionListView:
			return m.handleSessionListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case UploadView:
			return m.handleUploadKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == SessionListView {
		m.sessionList, cmd = m.sessionList.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSessionsFetched:
		data := msg.data.(sessionsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(data.sessions))
		for i, s := range data.sessions {
			items[i] = sessionItem{session: s}
		}
		cmd := m.sessionList.SetItems(items)
		m.sessionList.Title = fmt.Sprintf("Upload %d files (%s) to…", len(m.opts.Files), shared.FormatBytes(m.totalBytes))
		return m, cmd

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		if p, ok := m.progress.Data.(tasks.Progress); ok {
			m.percent = p.Percent / 100
		}
		return m, waitForProgress(m.progressChan, m.doneChan)

	case MsgUploadComplete:
		done := msg.data.(uploadComplete)
		m.result = &done
		m.err = done.err
		m.view = ResultView
		m.progressChan, m.doneChan = nil, nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if done.outcome != nil {
			m.progress = tasks.CompleteUpdate(done.outcome)
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case SessionListView:
		return m.renderSessionList()
	case ConfirmView:
		return m.renderConfirm()
	case UploadView:
		return m.renderUpload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleSessionListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.sessionList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			return m, m.fetchSessions()
		case key.Matches(msg, m.keys.enter):
			if item, ok := m.sessionList.SelectedItem().(sessionItem); ok {
				s := item.session
				m.session = &s
				m.view = ConfirmView
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.sessionList, cmd = m.sessionList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = UploadView
		return m, m.startUpload()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = SessionListView
		m.session = nil
	}
	return m, nil
}

func (m *Model) handleUploadKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.cancel != nil && !m.cancelling {
		m.cancelling = true
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.again):
		m.view = SessionListView
		m.session = nil
		m.result = nil
		m.err = nil
		m.percent = 0
		m.cancelling = false
		m.progress = tasks.ProgressUpdate{}
	}
	return m, nil
}

func (m *Model) fetchSessions() tea.Cmd {
	src, q, ctx := m.opts.Sessions, m.opts.Query, m.ctx
	return func() tea.Msg {
		if src == nil {
			return sessionsFetchedMsg(nil, shared.ErrServiceUnavailable)
		}
		page, err := src.ListSessions(ctx, q)
		if err != nil {
			return sessionsFetchedMsg(nil, err)
		}
		return sessionsFetchedMsg(page.Sessions, nil)
	}
}

// startUpload runs the batch in the background. The goroutine owns both
// channels and closes the progress channel only after the outcome is queued.
func (m *Model) startUpload() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.cancelling = false
	m.percent = 0

	progressChan := make(chan tasks.ProgressUpdate, 64)
	doneChan := make(chan uploadComplete, 1)
	m.progressChan, m.doneChan = progressChan, doneChan

	engine, rec, files, lockDir := m.opts.Engine, m.opts.Recorder, m.opts.Files, m.opts.LockDir
	dest := tasks.SessionDestination(m.session.ID, m.session.CustomerName)

	go func() {
		defer close(progressChan)
		if engine == nil {
			doneChan <- uploadComplete{err: shared.ErrServiceUnavailable}
			return
		}
		if lockDir != "" {
			lock, err := shared.AcquireDestinationLock(lockDir, dest.LockKey())
			if err != nil {
				doneChan <- uploadComplete{err: err}
				return
			}
			defer lock.Release()
		}
		outcome, batchID, err := engine.RunRecorded(ctx, rec, files, dest, tasks.ChannelSink(progressChan))
		doneChan <- uploadComplete{outcome: outcome, batchID: batchID, err: err}
	}()

	return waitForProgress(progressChan, doneChan)
}

func waitForProgress(updates <-chan tasks.ProgressUpdate, done <-chan uploadComplete) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return uploadCompleteMsg(<-done)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderSessionList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.refresh, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.sessionList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Upload to %s?", m.session.DisplayName()))

	var b strings.Builder
	fmt.Fprintf(&b, "\nSession: %s\nFiles: %d (%s)\n", m.session.ID, len(m.opts.Files), shared.FormatBytes(m.totalBytes))
	for i, f := range m.opts.Files {
		if i == 8 {
			b.WriteString(styles.faint.Render(fmt.Sprintf("  … and %d more", len(m.opts.Files)-i)) + "\n")
			break
		}
		fmt.Fprintf(&b, "  • %s %s\n", f.Name, styles.faint.Render(shared.FormatBytes(f.Size)))
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderUpload() string {
	title := styles.title.Render(fmt.Sprintf("Uploading to %s", m.session.DisplayName()))

	var phase string
	switch m.progress.Phase {
	case tasks.Prepare:
		phase = "Preparing files..."
	case tasks.Transfer, tasks.Settle:
		phase = fmt.Sprintf("Finished %d/%d files", m.progress.Step, m.progress.Total)
	default:
		phase = "Starting..."
	}
	if m.cancelling {
		phase = styles.warn.Render("Cancelling, waiting for in-flight uploads...")
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s\n\n%s", title, m.bar.ViewAs(m.percent), phase, m.progress.Message, helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.again, m.keys.quit})

	if m.result == nil || m.result.outcome == nil {
		err := m.err
		if err == nil {
			err = fmt.Errorf("no result available")
		}
		return styles.err.Render(fmt.Sprintf("Upload failed: %v", err)) + "\n\n" + helpView
	}

	out := m.result.outcome
	var title string
	if out.Succeeded() {
		title = styles.ok.Render("✓ Upload Complete!")
	} else {
		title = styles.err.Render("✗ Upload Partially Failed")
	}

	info := fmt.Sprintf("\nSession: %s (%s)\n%s", m.session.DisplayName(), m.session.ID, m.progress.Message)
	if m.result.batchID != "" {
		info += "\n" + styles.faint.Render("Batch "+m.result.batchID)
	}

	var failed string
	if failures := out.Failures(); len(failures) > 0 {
		failed = "\n\n" + styles.warn.Render(fmt.Sprintf("Failed to upload %d files:", len(failures)))
		for _, f := range failures {
			failed += fmt.Sprintf("\n  • %s [%s] %v", f.Name, f.Kind, f.Err)
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
