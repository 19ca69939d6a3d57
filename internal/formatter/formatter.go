// package formatter provides functions to export session photo lists and upload results to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/proofs/internal/models"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/desertthunder/proofs/internal/tasks"
)

// Formats accepted by [WriteSessionExport].
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// ExportToCSV converts a SessionExport to CSV format with columns: ID, URL, Selected
func ExportToCSV(export *models.SessionExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "URL", "Selected"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, photo := range export.Photos {
		if err := writer.Write([]string{photo.ID, photo.URL, strconv.FormatBool(photo.Selected)}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders a proof sheet. Images point at local files when
// localImages maps photo IDs to downloaded filenames, otherwise at the remote URL.
func ExportToMarkdown(export *models.SessionExport, localImages map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	s := export.Session

	fmt.Fprintf(&buf, "# %s\n\n", s.DisplayName())
	fmt.Fprintf(&buf, "**Session**: `%s`\n", s.ID)
	if s.Status != "" {
		fmt.Fprintf(&buf, "**Status**: %s\n", s.Status)
	}
	if created, ok := s.Created(); ok {
		fmt.Fprintf(&buf, "**Created**: %s\n", created.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&buf, "**Photos**: %d (%d selected)\n\n", len(export.Photos), export.SelectedCount())

	buf.WriteString("## Photos\n\n")
	for i, photo := range export.Photos {
		mark := " "
		if photo.Selected {
			mark = "x"
		}
		src := photo.URL
		if local, ok := localImages[photo.ID]; ok {
			src = local
		}
		fmt.Fprintf(&buf, "%d. [%s] `%s`\n\n   ![%s](%s)\n\n", i+1, mark, photo.ID, photo.ID, src)
	}
	return buf.Bytes(), nil
}

// ExportToText converts a SessionExport to plain text format
func ExportToText(export *models.SessionExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Session: %s\n", export.Session.ID)
	fmt.Fprintf(&buf, "Customer: %s\n", export.Session.DisplayName())
	if export.Session.Status != "" {
		fmt.Fprintf(&buf, "Status: %s\n", export.Session.Status)
	}
	fmt.Fprintf(&buf, "Photos: %d (%d selected)\n\n", len(export.Photos), export.SelectedCount())

	for i, photo := range export.Photos {
		mark := " "
		if photo.Selected {
			mark = "*"
		}
		fmt.Fprintf(&buf, "%s %d. %s %s\n", mark, i+1, photo.ID, photo.URL)
	}
	return buf.Bytes(), nil
}

// ExportToJSON encodes the export with indentation.
func ExportToJSON(export *models.SessionExport) ([]byte, error) {
	return shared.MarshalJSON(export, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrInvalidInput)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return imageData, nil
}

// ExportOpts controls [WriteSessionExport].
type ExportOpts struct {
	Format   string
	Output   string // file path, or the directory for markdown; defaults from the session ID
	Download bool   // markdown only: fetch photos next to README.md
	Client   *http.Client
}

// ExportResult lists the files written by [WriteSessionExport].
type ExportResult struct {
	Files    []string
	Warnings []error // photos that could not be downloaded
}

// WriteSessionExport writes export in the requested format.
//
// Markdown output is a directory holding README.md (and downloaded photos when
// requested); every other format is a single file.
func WriteSessionExport(ctx context.Context, export *models.SessionExport, opts ExportOpts) (*ExportResult, error) {
	base := export.Session.ID
	if base == "" {
		base = "session"
	}

	var (
		data []byte
		err  error
		ext  string
	)
	switch opts.Format {
	case FormatMarkdown:
		return writeMarkdownExport(ctx, export, opts, base)
	case FormatCSV:
		data, err = ExportToCSV(export)
		ext = ".csv"
	case FormatText:
		data, err = ExportToText(export)
		ext = ".txt"
	case FormatJSON, "":
		data, err = ExportToJSON(export)
		ext = ".json"
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", ext, err)
	}

	out := opts.Output
	if out == "" {
		out = base + ext
	}
	if err := writeFile(out, data); err != nil {
		return nil, err
	}
	return &ExportResult{Files: []string{out}}, nil
}

func writeMarkdownExport(ctx context.Context, export *models.SessionExport, opts ExportOpts, base string) (*ExportResult, error) {
	dir := opts.Output
	if dir == "" {
		dir = base
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ExportResult{}
	local := map[string]string{}
	if opts.Download {
		for _, photo := range export.Photos {
			data, err := DownloadImage(ctx, opts.Client, photo.URL)
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Errorf("%s: %w", photo.ID, err))
				continue
			}
			name := photo.ID + imageExt(photo.URL)
			full := filepath.Join(dir, name)
			if err := writeFile(full, data); err != nil {
				result.Warnings = append(result.Warnings, fmt.Errorf("%s: %w", photo.ID, err))
				continue
			}
			local[photo.ID] = name
			result.Files = append(result.Files, full)
		}
	}

	md, err := ExportToMarkdown(export, local)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}
	readme := filepath.Join(dir, "README.md")
	if err := writeFile(readme, md); err != nil {
		return nil, err
	}
	result.Files = append(result.Files, readme)
	return result, nil
}

func imageExt(rawURL string) string {
	ext := path.Ext(rawURL)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if ext == "" || len(ext) > 5 {
		return ".jpg"
	}
	return ext
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// UploadManifest is the JSON summary written after a batch upload.
type UploadManifest struct {
	BatchID     string               `json:"batch_id,omitempty"`
	Kind        string               `json:"kind"`
	Destination string               `json:"destination"`
	Status      string               `json:"status"`
	TotalFiles  int                  `json:"total_files"`
	Succeeded   int                  `json:"succeeded"`
	Failed      int                  `json:"failed"`
	TotalBytes  int64                `json:"total_bytes"`
	ElapsedMS   int64                `json:"elapsed_ms"`
	FirstError  string               `json:"first_error,omitempty"`
	Files       []UploadManifestFile `json:"files"`
}

// UploadManifestFile is one file of an [UploadManifest].
type UploadManifestFile struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Status   string `json:"status"`
	RemoteID string `json:"remote_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Kind     string `json:"error_kind,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewUploadManifest summarizes an outcome.
func NewUploadManifest(batchID string, dest tasks.Destination, out *tasks.BatchOutcome) UploadManifest {
	m := UploadManifest{
		BatchID:     batchID,
		Kind:        string(dest.Kind),
		Destination: dest.Target(),
		Status:      out.Status.String(),
		TotalFiles:  len(out.Tasks),
		Succeeded:   out.SucceededCount(),
		TotalBytes:  out.TotalBytes,
		ElapsedMS:   out.Elapsed.Milliseconds(),
		Files:       make([]UploadManifestFile, 0, len(out.Tasks)),
	}
	m.Failed = m.TotalFiles - m.Succeeded
	if out.FirstError != nil {
		m.FirstError = out.FirstError.Error()
	}

	for _, t := range out.Tasks {
		f := UploadManifestFile{Index: t.Index, Name: t.File.Name, Size: t.File.Size, Status: "success"}
		if t.Err != nil {
			f.Status = "failed"
			f.Kind = tasks.Classify(t.Err)
			f.Error = t.Err.Error()
		} else if t.Receipt != nil {
			f.RemoteID = t.Receipt.ID
			f.URL = t.Receipt.URL
		}
		m.Files = append(m.Files, f)
	}
	return m
}

// WriteUploadManifest writes the manifest as indented JSON to path.
func WriteUploadManifest(m UploadManifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return writeFile(path, data)
}
