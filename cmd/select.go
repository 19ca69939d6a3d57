package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/urfave/cli/v3"
)

// SelectPhotos lists a session's photos with the client's view of them.
func (r *Runner) SelectPhotos(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("session")
	if err := requireArg(id, "session id"); err != nil {
		return err
	}
	if err := r.requireStudio(); err != nil {
		return err
	}

	photos, err := r.studio.ListPhotos(ctx, id, services.Customer)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(photos, true)
	}
	if len(photos) == 0 {
		return r.writePlain("No photos in session %s\n", id)
	}

	rows := make([][]string, 0, len(photos))
	for i, p := range photos {
		mark := "[ ]"
		if p.Selected {
			mark = "[x]"
		}
		rows = append(rows, []string{fmt.Sprint(i + 1), mark, p.ID, p.URL})
	}
	return r.writeTable([]string{"#", "", "Photo", "URL"}, rows, alignRight)
}

// SelectSubmit submits the photo IDs the client picked.
func (r *Runner) SelectSubmit(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}
	if err := r.requireStudio(); err != nil {
		return err
	}

	session, ids := args[0], args[1:]
	if err := r.studio.SubmitSelection(ctx, session, ids); err != nil {
		return err
	}
	r.logger.Info("selection submitted", "session", session, "photos", len(ids))
	return r.writePlain("✓ Submitted %d photos for session %s\n", len(ids), session)
}
