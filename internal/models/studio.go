package models

import (
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a shooting session as reported by the backend.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionReady     SessionStatus = "ready"
	SessionSubmitted SessionStatus = "submitted"
	SessionCompleted SessionStatus = "completed"
)

// AcceptsClientSelection reports whether the client selection link may be shared.
func (s SessionStatus) AcceptsClientSelection() bool {
	return s == SessionReady || s == SessionSubmitted
}

// Session is one customer shooting session.
type Session struct {
	ID           string        `json:"id"`
	CustomerName string        `json:"customerName"`
	Status       SessionStatus `json:"status"`
	PhotoCount   int           `json:"photoCount"`
	CreatedAt    string        `json:"createdAt"`
}

// Created parses CreatedAt, accepting RFC 3339 and "2006-01-02 15:04:05".
func (s Session) Created() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s.CreatedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DisplayName falls back to a placeholder for sessions without a customer.
func (s Session) DisplayName() string {
	if strings.TrimSpace(s.CustomerName) == "" {
		return "unknown customer"
	}
	return s.CustomerName
}

// Photo belongs to a session, Selected is set once the client picks it.
type Photo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Selected bool   `json:"selected"`
}

// PortfolioItem is a public gallery entry.
type PortfolioItem struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// UploadedPhoto is the backend's answer to a session photo upload.
type UploadedPhoto struct {
	PhotoID  string `json:"photoId"`
	PhotoURL string `json:"photoUrl"`
}

// SessionPage is a page of the session listing.
type SessionPage struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
	Page     int       `json:"-"`
	Limit    int       `json:"-"`
}

// TotalPages returns the page count, at least one.
func (p SessionPage) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// PhotoFilter narrows a photo listing by selection state.
type PhotoFilter string

const (
	PhotosAll        PhotoFilter = "all"
	PhotosSelected   PhotoFilter = "selected"
	PhotosUnselected PhotoFilter = "unselected"
)

// FilterPhotos returns the photos matching f, all of them for an unknown filter.
func FilterPhotos(photos []Photo, f PhotoFilter) []Photo {
	if f != PhotosSelected && f != PhotosUnselected {
		return photos
	}
	out := make([]Photo, 0, len(photos))
	for _, p := range photos {
		if p.Selected == (f == PhotosSelected) {
			out = append(out, p)
		}
	}
	return out
}

// SessionExport bundles a session with its photos for reporting.
type SessionExport struct {
	Session Session `json:"session"`
	Photos  []Photo `json:"photos"`
}

// SelectedCount counts the client's picks.
func (e SessionExport) SelectedCount() int {
	n := 0
	for _, p := range e.Photos {
		if p.Selected {
			n++
		}
	}
	return n
}
