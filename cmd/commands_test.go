package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	tu "github.com/desertthunder/proofs/internal/testing"
	"github.com/urfave/cli/v3"
)

type harness struct {
	runner *Runner
	out    *bytes.Buffer
	fb     *tu.FakeBackend
	config *shared.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fb := tu.NewFakeBackend(t)

	config := shared.DefaultConfig()
	config.Backend.URL = fb.URL
	config.Backend.SelectionURL = "https://proofs.example.com/select"
	config.Credentials.AuthFile = filepath.Join(t.TempDir(), "auth")
	config.Upload.MaxConcurrent = 2

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		Studio:     services.NewStudioService(services.StudioOpts{BaseURL: fb.URL}),
		API:        services.NewAPIService(fb.URL, nil),
		Logger:     shared.NewLogger(io.Discard),
		Output:     out,
		Progress:   io.Discard,
		LockDir:    t.TempDir(),
		DB:         db,
	})
	t.Cleanup(func() { runner.Close() })

	return &harness{runner: runner, out: out, fb: fb, config: config}
}

func (h *harness) run(args ...string) error {
	app := &cli.Command{Name: "proofs", Commands: h.runner.register()}
	return app.Run(context.Background(), append([]string{"proofs"}, args...))
}

func photoDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		tu.MustWriteImage(t, dir, n, 256)
	}
	return dir
}

func sessionsReply() tu.Reply {
	return tu.OK(map[string]any{
		"total": 2,
		"sessions": []map[string]any{
			{"id": "s1", "customerName": "Ada", "status": "ready", "photoCount": 2, "createdAt": "2025-03-01T10:00:00Z"},
			{"id": "s2", "customerName": "", "status": "pending", "photoCount": 0},
		},
	})
}

func TestSessionCommands(t *testing.T) {
	t.Run("upload sends every file with session fields", func(t *testing.T) {
		h := newHarness(t)
		dir := photoDir(t, "a.jpg", "b.jpg", "c.jpg")

		if err := h.run("session", "upload", "--session", "s9", "--customer", "Ada", dir); err != nil {
			t.Fatalf("upload failed: %v", err)
		}

		uploads := h.fb.Uploads()
		if len(uploads) != 3 {
			t.Fatalf("expected 3 uploads, got %d", len(uploads))
		}
		for _, u := range uploads {
			if u.Path != services.SessionUploadPath || u.Fields["sessionId"] != "s9" || u.Fields["customerName"] != "Ada" {
				t.Errorf("unexpected upload %+v", u)
			}
		}
		got := h.out.String()
		for _, want := range []string{"Uploaded 3/3 files", "History:", "Session: s9"} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}

		batches, err := h.runner.history.List(nil)
		if err != nil || len(batches) != 1 {
			t.Fatalf("expected one recorded batch, got %d (%v)", len(batches), err)
		}
		if batches[0].Destination() != "s9" || batches[0].FileCount() != 3 {
			t.Errorf("unexpected batch %s/%d", batches[0].Destination(), batches[0].FileCount())
		}
	})

	t.Run("upload without session generates one", func(t *testing.T) {
		h := newHarness(t)
		h.config.Upload.CustomerName = "Walk-in"

		if err := h.run("session", "upload", photoDir(t, "a.jpg")); err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		up := h.fb.Uploads()[0]
		if up.Fields["sessionId"] == "" || up.Fields["customerName"] != "Walk-in" {
			t.Errorf("expected generated session with config customer, got %+v", up.Fields)
		}
	})

	t.Run("partial failure returns upload error and lists the file", func(t *testing.T) {
		h := newHarness(t)
		h.fb.UploadReply = func(name string) tu.Reply {
			if name == "b.jpg" {
				return tu.Fail(7, "quota exceeded")
			}
			return tu.OK(map[string]any{"photoId": "p-" + name})
		}

		err := h.run("session", "upload", "--session", "s1", photoDir(t, "a.jpg", "b.jpg"))
		if !errors.Is(err, shared.ErrUploadFailed) {
			t.Fatalf("expected ErrUploadFailed, got %v", err)
		}
		var appErr *services.ApplicationError
		if !errors.As(err, &appErr) || appErr.Code != 7 {
			t.Errorf("expected application error code 7, got %v", err)
		}
		got := h.out.String()
		if !strings.Contains(got, "[application]") || !strings.Contains(got, "1 of 2 files failed") {
			t.Errorf("unexpected output:\n%s", got)
		}
	})

	t.Run("json output and manifest", func(t *testing.T) {
		h := newHarness(t)
		manifest := filepath.Join(t.TempDir(), "out", "manifest.json")

		err := h.run("session", "upload", "--session", "s1", "--json", "--manifest", manifest, photoDir(t, "a.jpg", "b.jpg"))
		if err != nil {
			t.Fatalf("upload failed: %v", err)
		}

		var printed map[string]any
		if err := json.Unmarshal(h.out.Bytes(), &printed); err != nil {
			t.Fatalf("stdout is not JSON: %v\n%s", err, h.out.String())
		}
		if printed["status"] != "all_succeeded" {
			t.Errorf("unexpected status %v", printed["status"])
		}
		tu.AssertFileExists(t, manifest)
	})

	t.Run("upload requires paths", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run("session", "upload"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("malformed timeout is rejected before uploading", func(t *testing.T) {
		for _, value := range []string{"2", "abc", "-5s"} {
			h := newHarness(t)
			if err := h.run("session", "upload", "--session", "s1", "--timeout", value, photoDir(t, "a.jpg")); err == nil {
				t.Errorf("--timeout %s: expected an error", value)
			}
			if len(h.fb.Uploads()) != 0 {
				t.Errorf("--timeout %s: no files should be sent", value)
			}
		}
	})

	t.Run("well-formed timeout uploads normally", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run("session", "upload", "--session", "s1", "--timeout", "90s", photoDir(t, "a.jpg")); err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		if len(h.fb.Uploads()) != 1 {
			t.Errorf("expected one upload, got %d", len(h.fb.Uploads()))
		}
	})

	t.Run("held destination lock rejects a second batch", func(t *testing.T) {
		h := newHarness(t)
		lock, err := shared.AcquireDestinationLock(h.runner.lockDir, "session-s1")
		if err != nil {
			t.Fatalf("failed to take lock: %v", err)
		}
		defer lock.Release()

		err = h.run("session", "upload", "--session", "s1", photoDir(t, "a.jpg"))
		if !errors.Is(err, shared.ErrBatchLocked) {
			t.Fatalf("expected ErrBatchLocked, got %v", err)
		}
		if len(h.fb.Uploads()) != 0 {
			t.Error("no files should be sent while locked")
		}

		if err := h.run("session", "upload", "--session", "s1", "--no-lock", photoDir(t, "a.jpg")); err != nil {
			t.Errorf("--no-lock upload failed: %v", err)
		}
	})

	t.Run("append uses the existing session", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodGet, "/sessions", sessionsReply())

		if err := h.run("session", "append", "s1", photoDir(t, "z.jpg")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		up := h.fb.Uploads()[0]
		if up.Fields["sessionId"] != "s1" || up.Fields["customerName"] != "Ada" {
			t.Errorf("unexpected fields %+v", up.Fields)
		}
	})

	t.Run("append to unknown session", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodGet, "/sessions", sessionsReply())

		err := h.run("session", "append", "nope", photoDir(t, "z.jpg"))
		if !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodGet, "/sessions", sessionsReply())

		if err := h.run("session", "list", "--status", "ready", "--limit", "1"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		req := h.fb.LastRequest()
		if req.Query["status"] != "ready" || req.Query["limit"] != "1" {
			t.Errorf("unexpected query %v", req.Query)
		}
		got := h.out.String()
		for _, want := range []string{"Ada", "unknown customer", "2025-03-01 10:00", "page 1 / 2 (total 2)"} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("show filters photos", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodGet, "/sessions", sessionsReply())
		h.fb.On(http.MethodGet, "/photos", tu.OK(map[string]any{
			"photos": []map[string]any{
				{"id": "p1", "url": "https://cdn/p1.jpg", "selected": true},
				{"id": "p2", "url": "https://cdn/p2.jpg", "selected": false},
			},
		}))

		if err := h.run("session", "show", "--selected", "s1"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		got := h.out.String()
		if !strings.Contains(got, "p1") || strings.Contains(got, "p2.jpg") {
			t.Errorf("expected only selected photo:\n%s", got)
		}
		if !strings.Contains(got, "(1 selected)") {
			t.Errorf("expected selection count:\n%s", got)
		}
		if h.fb.LastRequest().Header.Get("X-Client-Type") != string(services.Photographer) {
			t.Error("expected photographer client type")
		}

		if err := h.run("session", "show", "--selected", "--unselected", "s1"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("delete finish and delete-photo", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodDelete, "/session/s1", tu.OK(nil))
		h.fb.On(http.MethodDelete, "/photo/s1/p1", tu.OK(nil))
		h.fb.On(http.MethodPost, "/finishSession", tu.OK(nil))

		for _, args := range [][]string{
			{"session", "delete", "s1"},
			{"session", "delete-photo", "s1", "p1"},
			{"session", "finish", "s1"},
		} {
			if err := h.run(args...); err != nil {
				t.Errorf("%v failed: %v", args, err)
			}
		}
		if h.fb.LastRequest().Body["sessionId"] != "s1" {
			t.Errorf("unexpected finish body %v", h.fb.LastRequest().Body)
		}
		if err := h.run("session", "delete"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("backend failure surfaces as api error", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodDelete, "/session/s1", tu.Fail(404, "no such session"))

		err := h.run("session", "delete", "s1")
		if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "no such session") {
			t.Errorf("expected api error, got %v", err)
		}
	})

	t.Run("qrcode", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodPost, "/generateQRCode", tu.OK(map[string]any{"qrCodeUrl": "https://cdn/qr.png"}))
		png := filepath.Join(t.TempDir(), "qr", "s1.png")

		if err := h.run("session", "qrcode", "--png", png, "--terminal", "s1"); err != nil {
			t.Fatalf("qrcode failed: %v", err)
		}
		got := h.out.String()
		if !strings.Contains(got, "https://cdn/qr.png") || !strings.Contains(got, "sessionId=s1") {
			t.Errorf("unexpected output:\n%s", got)
		}
		data, err := os.ReadFile(png)
		if err != nil {
			t.Fatalf("png not written: %v", err)
		}
		if !bytes.HasPrefix(data, []byte("\x89PNG")) {
			t.Error("expected PNG data")
		}
	})

	t.Run("link requires a ready session", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodGet, "/sessions", sessionsReply())

		if err := h.run("session", "link", "s1"); err != nil {
			t.Fatalf("link failed: %v", err)
		}
		if strings.TrimSpace(h.out.String()) != "https://proofs.example.com/select?sessionId=s1" {
			t.Errorf("unexpected link %q", h.out.String())
		}

		if err := h.run("session", "link", "s2"); !errors.Is(err, shared.ErrSessionNotReady) {
			t.Errorf("expected ErrSessionNotReady, got %v", err)
		}
	})

	t.Run("export", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodGet, "/sessions", sessionsReply())
		h.fb.On(http.MethodGet, "/photos", tu.OK(map[string]any{
			"photos": []map[string]any{{"id": "p1", "url": "https://cdn/p1.jpg", "selected": true}},
		}))
		path := filepath.Join(t.TempDir(), "s1.csv")

		if err := h.run("session", "export", "--format", "csv", "--output", path, "s1"); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "p1,https://cdn/p1.jpg,true") {
			t.Errorf("unexpected csv:\n%s", content)
		}
	})
}

func TestPortfolioCommands(t *testing.T) {
	portfolio := tu.OK(map[string]any{
		"portfolioItems": []map[string]any{
			{"id": "1", "category": "wedding", "title": "Vows"},
			{"id": "2", "category": "portrait"},
			{"id": "3", "category": "wedding"},
		},
	})

	t.Run("upload sends category", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run("portfolio", "upload", "--category", "wedding", photoDir(t, "a.jpg")); err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		up := h.fb.Uploads()[0]
		if up.Path != services.PortfolioUploadPath || up.Fields["category"] != "wedding" {
			t.Errorf("unexpected upload %+v", up)
		}
	})

	t.Run("list and categories", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodGet, "/portfolio", portfolio)

		if err := h.run("portfolio", "list"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "Vows") || !strings.Contains(h.out.String(), "3 items") {
			t.Errorf("unexpected list:\n%s", h.out.String())
		}

		h.out.Reset()
		if err := h.run("portfolio", "categories"); err != nil {
			t.Fatalf("categories failed: %v", err)
		}
		got := h.out.String()
		if strings.Index(got, "wedding") > strings.Index(got, "portrait") {
			t.Errorf("expected first-seen order:\n%s", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodDelete, "/portfolio/2", tu.OK(nil))
		if err := h.run("portfolio", "delete", "2"); err != nil {
			t.Errorf("delete failed: %v", err)
		}
	})
}

func TestSelectCommands(t *testing.T) {
	t.Run("photos as client", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodGet, "/photos", tu.OK(map[string]any{
			"photos": []map[string]any{{"id": "p1", "url": "u1", "selected": true}, {"id": "p2", "url": "u2"}},
		}))

		if err := h.run("select", "photos", "s1"); err != nil {
			t.Fatalf("photos failed: %v", err)
		}
		if h.fb.LastRequest().Header.Get("X-Client-Type") != string(services.Customer) {
			t.Error("expected client type header")
		}
		if !strings.Contains(h.out.String(), "[x]") || !strings.Contains(h.out.String(), "[ ]") {
			t.Errorf("unexpected output:\n%s", h.out.String())
		}
	})

	t.Run("submit", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodPost, "/submitSelection", tu.OK(nil))

		if err := h.run("select", "submit", "s1", "p1", "p3"); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		ids, _ := h.fb.LastRequest().Body["selectedPhotoIds"].([]any)
		if len(ids) != 2 {
			t.Errorf("expected two ids, got %v", h.fb.LastRequest().Body)
		}

		if err := h.run("select", "submit", "s1"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty selection, got %v", err)
		}
	})
}

func TestHistoryCommands(t *testing.T) {
	h := newHarness(t)
	if err := h.run("session", "upload", "--session", "s1", photoDir(t, "a.jpg", "b.jpg")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	batches, err := h.runner.history.List(nil)
	if err != nil || len(batches) != 1 {
		t.Fatalf("expected one batch, got %v", err)
	}
	id := batches[0].ID()

	t.Run("list", func(t *testing.T) {
		h.out.Reset()
		if err := h.run("history", "list", "--kind", "session"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(h.out.String(), id[:8]) || !strings.Contains(h.out.String(), "succeeded") {
			t.Errorf("unexpected list:\n%s", h.out.String())
		}

		h.out.Reset()
		if err := h.run("history", "list", "--kind", "portfolio"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "No uploads recorded") {
			t.Errorf("expected empty list:\n%s", h.out.String())
		}
	})

	t.Run("show by prefix", func(t *testing.T) {
		h.out.Reset()
		if err := h.run("history", "show", id[:8]); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		got := h.out.String()
		for _, want := range []string{id, "a.jpg", "b.jpg", "session s1"} {
			if !strings.Contains(got, want) {
				t.Errorf("show missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := h.run("history", "delete", id); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if err := h.run("history", "show", id); !errors.Is(err, shared.ErrBatchNotFound) {
			t.Errorf("expected ErrBatchNotFound after delete, got %v", err)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("login stores token and logout clears it", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodPost, "/login", tu.OK(nil))
		h.fb.On(http.MethodGet, "/sessions", sessionsReply())

		if err := h.run("auth", "login", "-u", "studio", "-p", "secret"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		path := h.config.Credentials.AuthFilePath()
		token, err := services.LoadToken(path)
		if err != nil {
			t.Fatalf("token not saved: %v", err)
		}
		if creds, _ := services.ParseToken(token); creds.Username != "studio" {
			t.Errorf("unexpected stored user %q", creds.Username)
		}

		h.out.Reset()
		if err := h.run("auth", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "User:     studio") || !strings.Contains(h.out.String(), "✓ Authenticated") {
			t.Errorf("unexpected status:\n%s", h.out.String())
		}

		if err := h.run("auth", "logout"); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if _, err := services.LoadToken(path); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected token removed, got %v", err)
		}
	})

	t.Run("login rejected", func(t *testing.T) {
		h := newHarness(t)
		h.fb.On(http.MethodPost, "/login", tu.Fail(401, "wrong password"))

		if err := h.run("auth", "login", "-u", "studio", "-p", "nope"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("login without credentials", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run("auth", "login"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("status when logged out", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run("auth", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(h.out.String(), "Not logged in") {
			t.Errorf("unexpected status:\n%s", h.out.String())
		}
	})
}

func TestSetupCommands(t *testing.T) {
	h := newHarness(t)

	if err := h.run("setup", "config"); err != nil {
		t.Fatalf("setup config failed: %v", err)
	}
	tu.AssertFileExists(t, h.runner.configPath)
	if err := h.run("setup", "config"); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected existing config to be refused, got %v", err)
	}
	if err := h.run("setup", "config", "--force"); err != nil {
		t.Errorf("--force should overwrite, got %v", err)
	}

	h.config.Database.Path = filepath.Join(t.TempDir(), "setup.db")
	h.out.Reset()
	if err := h.run("setup", "database"); err != nil {
		t.Fatalf("setup database failed: %v", err)
	}
	if !strings.Contains(h.out.String(), "✓ Database ready") {
		t.Errorf("unexpected output:\n%s", h.out.String())
	}
	if err := h.run("setup", "rollback"); err != nil {
		t.Errorf("rollback failed: %v", err)
	}
}

func TestAPICommands(t *testing.T) {
	h := newHarness(t)
	h.fb.On(http.MethodGet, "/sessions", sessionsReply())
	h.fb.On(http.MethodPost, "/finishSession", tu.OK(nil))

	if err := h.run("api", "get", "/sessions"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !strings.Contains(h.out.String(), `"customerName": "Ada"`) {
		t.Errorf("expected pretty JSON:\n%s", h.out.String())
	}

	if err := h.run("api", "post", "/finishSession", "-d", `{"sessionId":"s1"}`); err != nil {
		t.Errorf("post failed: %v", err)
	}
	if err := h.run("api", "post", "/finishSession", "-d", `{bad`); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if err := h.run("api", "delete", "/missing"); !errors.Is(err, shared.ErrAPIRequest) {
		t.Errorf("expected ErrAPIRequest for 404, got %v", err)
	}
}
