package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Reply is a canned backend response.
type Reply struct {
	Status int
	Body   string
}

// OK wraps payload fields in a code 0 envelope.
func OK(fields map[string]any) Reply {
	body := map[string]any{"code": 0}
	for k, v := range fields {
		body[k] = v
	}
	data, _ := json.Marshal(body)
	return Reply{Status: http.StatusOK, Body: string(data)}
}

// Fail is a 200 response carrying a non-zero application code.
func Fail(code int, message string) Reply {
	data, _ := json.Marshal(map[string]any{"code": code, "message": message})
	return Reply{Status: http.StatusOK, Body: string(data)}
}

// ReceivedUpload is one multipart upload seen by [FakeBackend].
type ReceivedUpload struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
	Fields      map[string]string
	Auth        string
}

// ReceivedRequest is a non-upload call seen by [FakeBackend].
type ReceivedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Header http.Header
	Body   map[string]any
}

// FakeBackend is an httptest server that speaks the studio backend envelope.
//
// Routes are keyed by "METHOD /path". Upload routes record the multipart form and
// answer with UploadReply, which defaults to a code 0 photo receipt.
type FakeBackend struct {
	*httptest.Server

	mu          sync.Mutex
	routes      map[string]Reply
	uploads     []ReceivedUpload
	requests    []ReceivedRequest
	UploadReply func(filename string) Reply
}

// NewFakeBackend starts a backend that is closed with the test.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{routes: map[string]Reply{}}
	fb.Server = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.Close)
	return fb
}

// On registers a canned reply for method and path.
func (fb *FakeBackend) On(method, path string, reply Reply) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.routes[method+" "+path] = reply
}

// Uploads returns the uploads received so far.
func (fb *FakeBackend) Uploads() []ReceivedUpload {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]ReceivedUpload(nil), fb.uploads...)
}

// Requests returns the non-upload requests received so far.
func (fb *FakeBackend) Requests() []ReceivedRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]ReceivedRequest(nil), fb.requests...)
}

// LastRequest returns the most recent non-upload request, or a zero value.
func (fb *FakeBackend) LastRequest() ReceivedRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.requests) == 0 {
		return ReceivedRequest{}
	}
	return fb.requests[len(fb.requests)-1]
}

func (fb *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		fb.serveUpload(w, r)
		return
	}

	rec := ReceivedRequest{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}, Header: r.Header.Clone()}
	for k := range r.URL.Query() {
		rec.Query[k] = r.URL.Query().Get(k)
	}
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
	}

	fb.mu.Lock()
	fb.requests = append(fb.requests, rec)
	reply, ok := fb.routes[r.Method+" "+r.URL.Path]
	fb.mu.Unlock()

	if !ok {
		reply = Reply{Status: http.StatusNotFound, Body: fmt.Sprintf(`{"code":404,"message":"no route %s %s"}`, r.Method, r.URL.Path)}
	}
	write(w, reply)
}

func (fb *FakeBackend) serveUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		write(w, Reply{Status: http.StatusBadRequest, Body: `{"code":400,"message":"bad multipart"}`})
		return
	}

	up := ReceivedUpload{Path: r.URL.Path, Fields: map[string]string{}, Auth: r.Header.Get("Authorization")}
	for k, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			up.Fields[k] = vs[0]
		}
	}
	if fhs := r.MultipartForm.File["file"]; len(fhs) > 0 {
		up.Filename = fhs[0].Filename
		up.ContentType = fhs[0].Header.Get("Content-Type")
		up.Size = fhs[0].Size
	}

	fb.mu.Lock()
	fb.uploads = append(fb.uploads, up)
	replyFn := fb.UploadReply
	n := len(fb.uploads)
	fb.mu.Unlock()

	if replyFn != nil {
		write(w, replyFn(up.Filename))
		return
	}
	write(w, OK(map[string]any{
		"photoId":  fmt.Sprintf("photo-%d", n),
		"photoUrl": fmt.Sprintf("https://cdn.example.com/%s", up.Filename),
	}))
}

func write(w http.ResponseWriter, reply Reply) {
	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}
	if strings.HasPrefix(strings.TrimSpace(reply.Body), "{") {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(reply.Status)
	io.WriteString(w, reply.Body)
}
