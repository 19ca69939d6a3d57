package services

import (
	"fmt"
	"net/http"
)

// TransportError means no usable response arrived: the connection failed, the
// request could not be written, or a deadline expired first.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is a response whose transport status is outside 2xx.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	text := e.Status
	if text == "" {
		text = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return "HTTP error: " + text
}

// ApplicationError is a 2xx response whose envelope code is not zero.
type ApplicationError struct {
	Code    int
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		if e.Code == MissingCode {
			return "request failed: response has no status code"
		}
		return fmt.Sprintf("request failed (code %d)", e.Code)
	}
	return e.Message
}

// ParseError is a response body that is not the expected JSON envelope.
type ParseError struct {
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse server response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
