package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/proofs/internal/models"
	"github.com/desertthunder/proofs/internal/shared"
)

const (
	maxResponseBody = 4 << 20

	// DefaultBaseURL is used when no backend URL is configured.
	DefaultBaseURL = "http://localhost:3000"
	// DefaultClientPage is the mini-program page encoded into QR codes.
	DefaultClientPage = "pages/selection/selection"
)

// ClientType is sent as X-Client-Type when listing photos.
type ClientType string

const (
	Photographer ClientType = "photographer"
	Customer     ClientType = "client"
)

// SessionQuery filters the session listing.
type SessionQuery struct {
	Page   int
	Limit  int
	Status string
	Search string
}

// StudioService talks to the studio REST backend.
type StudioService struct {
	baseURL    string
	httpClient *http.Client
	clientPage string
	timeout    time.Duration
}

// StudioOpts configures a [StudioService].
type StudioOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	ClientPage string
	Timeout    time.Duration // applies to JSON calls, never to uploads
}

// NewStudioService creates a backend client with defaults for empty options.
func NewStudioService(opts StudioOpts) *StudioService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.ClientPage == "" {
		opts.ClientPage = DefaultClientPage
	}
	return &StudioService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		clientPage: opts.ClientPage,
		timeout:    opts.Timeout,
	}
}

// BaseURL returns the backend base URL.
func (s *StudioService) BaseURL() string { return s.baseURL }

// call performs a JSON request and decodes the response envelope.
func (s *StudioService) call(ctx context.Context, method, path string, query url.Values, body any, header http.Header) Outcome {
	fullURL := s.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return Outcome{Err: fmt.Errorf("%w: failed to encode request: %v", shared.ErrInvalidInput, err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return Outcome{Err: &TransportError{Op: method, URL: fullURL, Err: err}}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Outcome{Err: &TransportError{Op: method, URL: fullURL, Err: err}}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Outcome{Err: &TransportError{Op: method, URL: fullURL, Err: fmt.Errorf("read response: %w", err)}}
	}
	return DecodeEnvelope(resp.StatusCode, resp.Status, data)
}

// Login checks a username and password against the backend.
func (s *StudioService) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", shared.ErrMissingCredentials)
	}
	out := s.call(ctx, http.MethodPost, "/login", nil, map[string]string{
		"username": username,
		"password": password,
	}, nil)
	if out.Err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, out.Err)
	}
	return nil
}

// ListSessions returns one page of sessions.
func (s *StudioService) ListSessions(ctx context.Context, q SessionQuery) (*models.SessionPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("limit", strconv.Itoa(q.Limit))
	query.Set("status", q.Status)
	query.Set("search", q.Search)

	var page models.SessionPage
	if err := s.call(ctx, http.MethodGet, "/sessions", query, nil, nil).Into(&page); err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", shared.ErrAPIRequest, err)
	}
	page.Page, page.Limit = q.Page, q.Limit
	return &page, nil
}

// GetSession finds a session by exact ID through the search endpoint.
func (s *StudioService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	page, err := s.ListSessions(ctx, SessionQuery{Page: 1, Limit: 20, Search: id})
	if err != nil {
		return nil, err
	}
	for _, sess := range page.Sessions {
		if sess.ID == id {
			return &sess, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
}

// ListPhotos returns the photos of a session as seen by the given client type.
func (s *StudioService) ListPhotos(ctx context.Context, sessionID string, as ClientType) ([]models.Photo, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}
	query := url.Values{"sessionId": {sessionID}}
	header := http.Header{"X-Client-Type": {string(as)}}

	var resp struct {
		Photos []models.Photo `json:"photos"`
	}
	if err := s.call(ctx, http.MethodGet, "/photos", query, nil, header).Into(&resp); err != nil {
		return nil, fmt.Errorf("%w: list photos: %w", shared.ErrAPIRequest, err)
	}
	return resp.Photos, nil
}

// DeletePhoto removes one photo from a session.
func (s *StudioService) DeletePhoto(ctx context.Context, sessionID, photoID string) error {
	path := "/photo/" + url.PathEscape(sessionID) + "/" + url.PathEscape(photoID)
	if err := s.call(ctx, http.MethodDelete, path, nil, nil, nil).Err; err != nil {
		return fmt.Errorf("%w: delete photo: %w", shared.ErrAPIRequest, err)
	}
	return nil
}

// DeleteSession removes a session and its photos.
func (s *StudioService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.call(ctx, http.MethodDelete, "/session/"+url.PathEscape(sessionID), nil, nil, nil).Err; err != nil {
		return fmt.Errorf("%w: delete session: %w", shared.ErrAPIRequest, err)
	}
	return nil
}

// GenerateQRCode asks the backend for a QR code image URL pointing at the client page.
func (s *StudioService) GenerateQRCode(ctx context.Context, sessionID string) (string, error) {
	var resp struct {
		QRCodeURL string `json:"qrCodeUrl"`
	}
	body := map[string]string{"sessionId": sessionID, "page": s.clientPage}
	if err := s.call(ctx, http.MethodPost, "/generateQRCode", nil, body, nil).Into(&resp); err != nil {
		return "", fmt.Errorf("%w: generate QR code: %w", shared.ErrAPIRequest, err)
	}
	return resp.QRCodeURL, nil
}

// FinishSession marks a session ready for client selection.
func (s *StudioService) FinishSession(ctx context.Context, sessionID string) error {
	body := map[string]string{"sessionId": sessionID}
	if err := s.call(ctx, http.MethodPost, "/finishSession", nil, body, nil).Err; err != nil {
		return fmt.Errorf("%w: finish session: %w", shared.ErrAPIRequest, err)
	}
	return nil
}

// SubmitSelection sends the client's chosen photo IDs.
func (s *StudioService) SubmitSelection(ctx context.Context, sessionID string, photoIDs []string) error {
	if len(photoIDs) == 0 {
		return fmt.Errorf("%w: select at least one photo", shared.ErrInvalidInput)
	}
	body := map[string]any{"sessionId": sessionID, "selectedPhotoIds": photoIDs}
	if err := s.call(ctx, http.MethodPost, "/submitSelection", nil, body, nil).Err; err != nil {
		return fmt.Errorf("%w: submit selection: %w", shared.ErrAPIRequest, err)
	}
	return nil
}

// ListPortfolio returns portfolio items, optionally within one category.
func (s *StudioService) ListPortfolio(ctx context.Context, category string) ([]models.PortfolioItem, error) {
	var query url.Values
	if category != "" && category != "all" {
		query = url.Values{"category": {category}}
	}

	var resp struct {
		Items []models.PortfolioItem `json:"portfolioItems"`
	}
	if err := s.call(ctx, http.MethodGet, "/portfolio", query, nil, nil).Into(&resp); err != nil {
		return nil, fmt.Errorf("%w: list portfolio: %w", shared.ErrAPIRequest, err)
	}
	return resp.Items, nil
}

// DeletePortfolioItem removes a portfolio entry.
func (s *StudioService) DeletePortfolioItem(ctx context.Context, id string) error {
	if err := s.call(ctx, http.MethodDelete, "/portfolio/"+url.PathEscape(id), nil, nil, nil).Err; err != nil {
		return fmt.Errorf("%w: delete portfolio item: %w", shared.ErrAPIRequest, err)
	}
	return nil
}

// SelectionLink builds the public client selection URL for a session.
func SelectionLink(base, sessionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: selection url %q", shared.ErrInvalidConfig, base)
	}
	q := u.Query()
	q.Set("sessionId", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PortfolioCategories returns the distinct categories in first-seen order.
func PortfolioCategories(items []models.PortfolioItem) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		if it.Category == "" || seen[it.Category] {
			continue
		}
		seen[it.Category] = true
		out = append(out, it.Category)
	}
	return out
}
