package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/desertthunder/proofs/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/proofs-tui.log"

// TUI lets the user pick a session and uploads the given files into it.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStudio(); err != nil {
		return err
	}
	files, err := r.collect(cmd.Args().Slice())
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, ui.Opts{
		Sessions: r.studio,
		Engine:   r.engineFor(cmd),
		Recorder: r.recorder(),
		Files:    files,
		LockDir:  r.lockDir,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if m, ok := final.(*ui.Model); ok {
		if out := m.Outcome(); out != nil {
			return out.Err()
		}
	}
	return nil
}
