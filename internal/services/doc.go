// Package services implements the HTTP client for the studio backend.
//
// # Studio Interface
//
// [Studio] lists every backend operation the CLI and TUI use; [StudioService] implements it.
// Sessions, photos, QR codes, client selection and the portfolio are plain JSON calls.
// Uploads stream a multipart/form-data body with an exact Content-Length and report
// cumulative file bytes through a [ProgressFunc].
//
// # Response Envelope
//
// Every response carries {code, message}. [DecodeEnvelope] turns a response into an
// [Outcome] in a fixed order:
//   - transport status outside 2xx : [HTTPStatusError]
//   - body is not a JSON object : [ParseError]
//   - code missing or not zero : [ApplicationError] with the server message
//
// Network failures (no response) are reported as [TransportError].
//
// # Authentication
//
// The backend accepts Basic credentials. [NewAuthClient] wraps a stored token in an
// oauth2 static token source with token type "Basic", so every request made with the
// returned client carries the header. Tokens live in the configured auth file with
// 0600 permissions.
//
// # Raw Access
//
// [APIService] issues unstructured GET, POST and DELETE calls for debugging endpoints by hand.
package services
