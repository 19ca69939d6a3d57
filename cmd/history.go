package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/proofs/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

type historyEntry struct {
	ID          string     `json:"id"`
	Sequence    int        `json:"sequence"`
	Kind        string     `json:"kind"`
	Destination string     `json:"destination"`
	Customer    string     `json:"customer,omitempty"`
	Status      string     `json:"status"`
	Files       int        `json:"files"`
	Bytes       int64      `json:"bytes"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newHistoryEntry(b *models.UploadBatch) historyEntry {
	return historyEntry{
		ID:          b.ID(),
		Sequence:    b.Sequence(),
		Kind:        string(b.Kind()),
		Destination: b.Destination(),
		Customer:    b.CustomerName(),
		Status:      string(b.Status()),
		Files:       b.FileCount(),
		Bytes:       b.TotalBytes(),
		Error:       b.ErrorMessage(),
		StartedAt:   b.StartedAt(),
		CompletedAt: b.CompletedAt(),
	}
}

// HistoryList prints recent upload batches.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	h, err := r.openHistory()
	if err != nil {
		return err
	}

	batches, err := h.List(map[string]any{
		"kind":        cmd.String("kind"),
		"destination": cmd.String("destination"),
		"status":      cmd.String("status"),
		"limit":       int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		entries := make([]historyEntry, 0, len(batches))
		for _, b := range batches {
			entries = append(entries, newHistoryEntry(b))
		}
		return r.writeJSON(entries, true)
	}

	if len(batches) == 0 {
		return r.writePlain("No uploads recorded\n")
	}

	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		when := ""
		if b.StartedAt() != nil {
			when = humanize.Time(*b.StartedAt())
		}
		rows = append(rows, []string{
			fmt.Sprintf("#%d", b.Sequence()), shortID(b.ID()), string(b.Kind()), b.Destination(),
			string(b.Status()), fmt.Sprint(b.FileCount()), humanize.Bytes(uint64(b.TotalBytes())), when,
		})
	}
	return r.writeTable([]string{"#", "ID", "Kind", "Destination", "Status", "Files", "Size", "Started"}, rows,
		alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight)
}

// HistoryShow prints one batch with its files.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg(id, "batch id"); err != nil {
		return err
	}
	h, err := r.openHistory()
	if err != nil {
		return err
	}
	detail, err := h.Show(id)
	if err != nil {
		return err
	}

	b := detail.Batch
	r.writePlainHeader(fmt.Sprintf("Batch #%d", b.Sequence()))
	r.writePlain("ID:          %s\n", b.ID())
	r.writePlain("Destination: %s %s\n", b.Kind(), b.Destination())
	if b.CustomerName() != "" {
		r.writePlain("Customer:    %s\n", b.CustomerName())
	}
	r.writePlain("Status:      %s\n", b.Status())
	r.writePlain("Files:       %d (%s)\n", b.FileCount(), humanize.Bytes(uint64(b.TotalBytes())))
	if d := b.Duration(); d > 0 {
		r.writePlain("Duration:    %s\n", d.Round(time.Millisecond))
	}
	if b.ErrorMessage() != "" {
		r.writePlain("Error:       %s\n", b.ErrorMessage())
	}
	r.writePlain("\n")

	rows := make([][]string, 0, len(detail.Files))
	for _, f := range detail.Files {
		result := f.RemoteID()
		if f.ErrorMessage() != "" {
			result = f.ErrorMessage()
		}
		rows = append(rows, []string{
			fmt.Sprint(f.TaskIndex() + 1), f.Name(), humanize.Bytes(uint64(f.Size())), string(f.Status()), result,
		})
	}
	return r.writeTable([]string{"#", "File", "Size", "Status", "Result"}, rows, alignRight, alignLeft, alignRight)
}

// HistoryDelete removes a batch from the history.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg(id, "batch id"); err != nil {
		return err
	}
	h, err := r.openHistory()
	if err != nil {
		return err
	}
	if err := h.Delete(id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted batch %s\n", id)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
