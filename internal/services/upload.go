package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Upload endpoints on the studio backend.
const (
	SessionUploadPath   = "/upload"
	PortfolioUploadPath = "/portfolio/upload"
)

// FileField is the multipart field carrying file content.
const FileField = "file"

// ProgressFunc receives the cumulative number of file bytes sent so far.
type ProgressFunc func(loaded int64)

// LocalFile is a file on disk with its size known up front.
type LocalFile struct {
	Path string
	Name string
	Size int64
}

// NewLocalFile stats path and returns its handle.
func NewLocalFile(path string) (LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return LocalFile{}, fmt.Errorf("%s is a directory", path)
	}
	return LocalFile{Path: path, Name: filepath.Base(path), Size: info.Size()}, nil
}

// UploadReceipt is what the backend returned for one successfully uploaded file.
type UploadReceipt struct {
	ID  string          `json:"id"`
	URL string          `json:"url"`
	Raw json.RawMessage `json:"raw,omitempty"`
}

// receiptFields covers both the session ({photoId, photoUrl}) and
// portfolio ({id, url} or {item: {...}}) response shapes.
type receiptFields struct {
	PhotoID  json.RawMessage `json:"photoId"`
	PhotoURL string          `json:"photoUrl"`
	ID       json.RawMessage `json:"id"`
	URL      string          `json:"url"`
	Item     *struct {
		ID  json.RawMessage `json:"id"`
		URL string          `json:"url"`
	} `json:"item"`
}

func parseReceipt(payload json.RawMessage) (*UploadReceipt, error) {
	var f receiptFields
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, &ParseError{Body: snippet(payload), Err: err}
	}

	r := &UploadReceipt{Raw: payload}
	switch {
	case len(f.PhotoID) > 0:
		r.ID, r.URL = rawID(f.PhotoID), f.PhotoURL
	case f.Item != nil:
		r.ID, r.URL = rawID(f.Item.ID), f.Item.URL
	default:
		r.ID, r.URL = rawID(f.ID), f.URL
	}
	return r, nil
}

// rawID renders a JSON string or number ID as text.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// progressReader reports cumulative bytes read from the wrapped file.
type progressReader struct {
	r        io.Reader
	loaded   int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		if p.progress != nil {
			p.progress(p.loaded)
		}
	}
	return n, err
}

// multipartBody builds a streaming multipart body with an exact content length.
//
// The form fields and file part header are rendered up front, file content is
// streamed through a progress reader, and the closing boundary follows.
func multipartBody(file LocalFile, content io.Reader, fields map[string]string, progress ProgressFunc) (io.Reader, string, int64, error) {
	var head bytes.Buffer
	mw := multipart.NewWriter(&head)

	for _, k := range sortedKeys(fields) {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, "", 0, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FileField, escapeQuotes(file.Name)))
	h.Set("Content-Type", detectContentType(file.Path))
	if _, err := mw.CreatePart(h); err != nil {
		return nil, "", 0, fmt.Errorf("failed to create file part: %w", err)
	}

	prefix := bytes.Clone(head.Bytes())
	head.Reset()
	if err := mw.Close(); err != nil {
		return nil, "", 0, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	suffix := bytes.Clone(head.Bytes())

	body := io.MultiReader(
		bytes.NewReader(prefix),
		&progressReader{r: io.LimitReader(content, file.Size), progress: progress},
		bytes.NewReader(suffix),
	)
	length := int64(len(prefix)) + file.Size + int64(len(suffix))
	return body, mw.FormDataContentType(), length, nil
}

func detectContentType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// Upload sends one file as multipart/form-data to endpoint with the extra form
// fields, reporting file bytes sent through progress.
//
// The returned error is one of [TransportError], [HTTPStatusError],
// [ApplicationError] or [ParseError].
func (s *StudioService) Upload(ctx context.Context, endpoint string, file LocalFile, fields map[string]string, progress ProgressFunc) (*UploadReceipt, error) {
	fullURL := s.baseURL + endpoint

	f, err := os.Open(file.Path)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: fullURL, Err: fmt.Errorf("open %s: %w", file.Name, err)}
	}
	defer f.Close()

	body, contentType, length, err := multipartBody(file, f, fields, progress)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: fullURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, body)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: fullURL, Err: err}
	}
	req.ContentLength = length
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: fullURL, Err: fmt.Errorf("read response: %w", err)}
	}

	out := DecodeEnvelope(resp.StatusCode, resp.Status, data)
	if out.Err != nil {
		return nil, out.Err
	}
	return parseReceipt(out.Payload)
}
