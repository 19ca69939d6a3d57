package services

import (
	"bytes"
	"encoding/json"
	"errors"
)

const maxErrorBody = 512

// MissingCode is the ApplicationError code used when a response has no "code" field.
const MissingCode = -1

// envelope is the {code, message} frame every backend response carries.
// A missing code decodes as nil and is treated as a failure.
type envelope struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
}

// Outcome is the decoded result of one backend response: either a success
// payload or the failure that replaced it.
type Outcome struct {
	Payload json.RawMessage
	Err     error
}

// Ok reports whether the response was a success.
func (o Outcome) Ok() bool { return o.Err == nil }

// Into unmarshals the success payload into v.
func (o Outcome) Into(v any) error {
	if o.Err != nil {
		return o.Err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(o.Payload, v); err != nil {
		return &ParseError{Body: snippet(o.Payload), Err: err}
	}
	return nil
}

// DecodeEnvelope classifies a response the way every upload and API call does:
// non-2xx first, then JSON decoding, then the application code.
func DecodeEnvelope(statusCode int, status string, body []byte) Outcome {
	if statusCode < 200 || statusCode >= 300 {
		return Outcome{Err: &HTTPStatusError{StatusCode: statusCode, Status: status, Body: snippet(body)}}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Outcome{Err: &ParseError{Body: snippet(body), Err: errors.New("response is not a JSON object")}}
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Outcome{Err: &ParseError{Body: snippet(body), Err: err}}
	}

	if env.Code == nil {
		return Outcome{Err: &ApplicationError{Code: MissingCode, Message: env.Message}}
	}
	if *env.Code != 0 {
		return Outcome{Err: &ApplicationError{Code: *env.Code, Message: env.Message}}
	}

	return Outcome{Payload: json.RawMessage(trimmed)}
}

func snippet(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
