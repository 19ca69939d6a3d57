package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/proofs/internal/formatter"
	"github.com/desertthunder/proofs/internal/models"
	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/desertthunder/proofs/internal/tasks"
	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v3"
)

// sessionDestination builds the upload target from --session and --customer,
// generating a session ID when none is given.
func (r *Runner) sessionDestination(cmd *cli.Command) tasks.Destination {
	id := cmd.String("session")
	if id == "" {
		id = shared.GenerateID()
	}
	customer := cmd.String("customer")
	if customer == "" {
		customer = r.config.Upload.CustomerName
	}
	return tasks.SessionDestination(id, customer)
}

func (r *Runner) collect(paths []string) ([]services.LocalFile, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: at least one file or directory", shared.ErrMissingArgument)
	}
	files, err := services.CollectFiles(paths)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	r.logger.Debug("collected files", "count", len(files), "bytes", shared.FormatBytes(total))
	return files, nil
}

func requireArg(value, name string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return nil
}

// SessionUpload uploads photos into a session, creating it when the ID is new.
func (r *Runner) SessionUpload(ctx context.Context, cmd *cli.Command) error {
	files, err := r.collect(cmd.Args().Slice())
	if err != nil {
		return err
	}

	dest := r.sessionDestination(cmd)
	if !cmd.IsSet("session") {
		r.logger.Info("no session given, starting a new one", "session", dest.Target())
	}

	if _, err := r.runBatch(ctx, cmd, files, dest); err != nil {
		return err
	}
	if !cmd.Bool("json") {
		r.writePlain("Session: %s\n", dest.Target())
	}
	return nil
}

// SessionAppend adds photos to a session that already exists on the backend.
func (r *Runner) SessionAppend(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}
	if err := r.requireStudio(); err != nil {
		return err
	}

	session, err := r.studio.GetSession(ctx, args[0])
	if err != nil {
		return err
	}
	files, err := r.collect(args[1:])
	if err != nil {
		return err
	}

	_, err = r.runBatch(ctx, cmd, files, tasks.SessionDestination(session.ID, session.CustomerName))
	return err
}

// SessionList prints one page of sessions.
func (r *Runner) SessionList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStudio(); err != nil {
		return err
	}

	page, err := r.studio.ListSessions(ctx, services.SessionQuery{
		Page:   int(cmd.Int("page")),
		Limit:  int(cmd.Int("limit")),
		Status: cmd.String("status"),
		Search: cmd.String("search"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, true)
	}

	if len(page.Sessions) == 0 {
		return r.writePlain("No sessions found\n")
	}

	rows := make([][]string, 0, len(page.Sessions))
	for _, s := range page.Sessions {
		created := s.CreatedAt
		if t, ok := s.Created(); ok {
			created = t.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{s.ID, s.DisplayName(), string(s.Status), fmt.Sprint(s.PhotoCount), created})
	}
	r.writeTable([]string{"ID", "Customer", "Status", "Photos", "Created"}, rows,
		alignLeft, alignLeft, alignLeft, alignRight)
	return r.writePlain("page %d / %d (total %d)\n", page.Page, page.TotalPages(), page.Total)
}

func photoFilter(cmd *cli.Command) (models.PhotoFilter, error) {
	selected, unselected := cmd.Bool("selected"), cmd.Bool("unselected")
	switch {
	case selected && unselected:
		return "", fmt.Errorf("%w: --selected and --unselected are exclusive", shared.ErrInvalidFlag)
	case selected:
		return models.PhotosSelected, nil
	case unselected:
		return models.PhotosUnselected, nil
	}
	return models.PhotosAll, nil
}

func (r *Runner) loadExport(ctx context.Context, id string) (*models.SessionExport, error) {
	session, err := r.studio.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	photos, err := r.studio.ListPhotos(ctx, id, services.Photographer)
	if err != nil {
		return nil, err
	}
	return &models.SessionExport{Session: *session, Photos: photos}, nil
}

// SessionShow prints a session with its photos.
func (r *Runner) SessionShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg(id, "session id"); err != nil {
		return err
	}
	filter, err := photoFilter(cmd)
	if err != nil {
		return err
	}
	if err := r.requireStudio(); err != nil {
		return err
	}

	export, err := r.loadExport(ctx, id)
	if err != nil {
		return err
	}
	selected := export.SelectedCount()
	export.Photos = models.FilterPhotos(export.Photos, filter)

	if cmd.Bool("json") {
		return r.writeJSON(export, true)
	}

	s := export.Session
	r.writePlainHeader(s.DisplayName())
	r.writePlain("ID:       %s\n", s.ID)
	r.writePlain("Status:   %s\n", s.Status)
	r.writePlain("Created:  %s\n", s.CreatedAt)
	r.writePlain("Photos:   %d (%d selected)\n\n", s.PhotoCount, selected)

	if len(export.Photos) == 0 {
		return r.writePlain("No photos\n")
	}
	rows := make([][]string, 0, len(export.Photos))
	for _, p := range export.Photos {
		mark := ""
		if p.Selected {
			mark = "✓"
		}
		rows = append(rows, []string{p.ID, mark, p.URL})
	}
	return r.writeTable([]string{"Photo", "Selected", "URL"}, rows)
}

// SessionDelete removes a session.
func (r *Runner) SessionDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg(id, "session id"); err != nil {
		return err
	}
	if err := r.requireStudio(); err != nil {
		return err
	}
	if err := r.studio.DeleteSession(ctx, id); err != nil {
		return err
	}
	r.logger.Info("session deleted", "session", id)
	return r.writePlain("✓ Deleted session %s\n", id)
}

// SessionDeletePhoto removes one photo from a session.
func (r *Runner) SessionDeletePhoto(ctx context.Context, cmd *cli.Command) error {
	session, photo := cmd.StringArg("session"), cmd.StringArg("photo")
	if err := requireArg(session, "session id"); err != nil {
		return err
	}
	if err := requireArg(photo, "photo id"); err != nil {
		return err
	}
	if err := r.requireStudio(); err != nil {
		return err
	}
	if err := r.studio.DeletePhoto(ctx, session, photo); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted photo %s from %s\n", photo, session)
}

// SessionFinish marks a session ready for the client.
func (r *Runner) SessionFinish(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg(id, "session id"); err != nil {
		return err
	}
	if err := r.requireStudio(); err != nil {
		return err
	}
	if err := r.studio.FinishSession(ctx, id); err != nil {
		return err
	}
	r.logger.Info("session finished", "session", id)
	return r.writePlain("✓ Session %s is ready for selection\n", id)
}

// SessionQRCode prints the backend QR code URL, and renders the selection link
// locally when --terminal or --png is given.
func (r *Runner) SessionQRCode(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg(id, "session id"); err != nil {
		return err
	}
	if err := r.requireStudio(); err != nil {
		return err
	}

	qrURL, err := r.studio.GenerateQRCode(ctx, id)
	if err != nil {
		return err
	}
	r.writePlain("QR code: %s\n", qrURL)

	pngPath := cmd.String("png")
	if !cmd.Bool("terminal") && pngPath == "" {
		return nil
	}

	link, err := services.SelectionLink(r.config.Backend.SelectionURL, id)
	if err != nil {
		return err
	}

	if cmd.Bool("terminal") {
		code, err := qrcode.New(link, qrcode.Medium)
		if err != nil {
			return fmt.Errorf("failed to encode QR code: %w", err)
		}
		r.writePlain("\n%s\n%s\n", code.ToSmallString(false), link)
	}

	if pngPath != "" {
		png, err := qrcode.Encode(link, qrcode.Medium, int(cmd.Int("size")))
		if err != nil {
			return fmt.Errorf("failed to encode QR code: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(pngPath), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(pngPath, png, 0644); err != nil {
			return fmt.Errorf("failed to write QR code: %w", err)
		}
		r.writePlain("✓ QR code saved to %s\n", pngPath)
	}
	return nil
}

// SessionLink prints the client selection link once the session accepts selections.
func (r *Runner) SessionLink(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg(id, "session id"); err != nil {
		return err
	}
	if err := r.requireStudio(); err != nil {
		return err
	}

	session, err := r.studio.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if !session.Status.AcceptsClientSelection() {
		return fmt.Errorf("%w: session %s is %s", shared.ErrSessionNotReady, id, session.Status)
	}

	link, err := services.SelectionLink(r.config.Backend.SelectionURL, id)
	if err != nil {
		return err
	}
	r.writePlain("%s\n", link)

	if cmd.Bool("open") {
		if err := shared.OpenBrowser(link); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}
	return nil
}

// SessionExport writes a session report in the requested format.
func (r *Runner) SessionExport(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg(id, "session id"); err != nil {
		return err
	}
	if err := r.requireStudio(); err != nil {
		return err
	}

	export, err := r.loadExport(ctx, id)
	if err != nil {
		return err
	}

	result, err := formatter.WriteSessionExport(ctx, export, formatter.ExportOpts{
		Format:   cmd.String("format"),
		Output:   cmd.String("output"),
		Download: cmd.Bool("download"),
		Client:   r.httpClient,
	})
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		r.logger.Warn("photo not downloaded", "error", w)
	}
	for _, f := range result.Files {
		r.writePlain("✓ Wrote %s\n", f)
	}
	return nil
}
