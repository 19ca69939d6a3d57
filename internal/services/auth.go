package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/proofs/internal/shared"
	"golang.org/x/oauth2"
)

// Credentials are the photographer's backend login.
type Credentials struct {
	Username string
	Password string
}

// Token encodes the credentials as a Basic authorization token.
func (c Credentials) Token() string {
	return base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
}

// ParseToken decodes a stored Basic token back into credentials.
func ParseToken(token string) (Credentials, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: malformed token: %v", shared.ErrInvalidCredentials, err)
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok || user == "" {
		return Credentials{}, fmt.Errorf("%w: token has no username", shared.ErrInvalidCredentials)
	}
	return Credentials{Username: user, Password: pass}, nil
}

// NewAuthClient returns an HTTP client that sends "Authorization: Basic <token>" on every request.
//
// The base transport comes from ctx when it carries an [oauth2.HTTPClient] value.
func NewAuthClient(ctx context.Context, token string) *http.Client {
	if token == "" {
		if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && c != nil {
			return c
		}
		return http.DefaultClient
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Basic"})
	return oauth2.NewClient(ctx, src)
}

// SaveToken writes the token to path with owner-only permissions.
func SaveToken(path, token string) error {
	if path == "" {
		return fmt.Errorf("%w: auth file path", shared.ErrMissingConfig)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create auth directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}
	return nil
}

// LoadToken reads a stored token. A missing file yields [shared.ErrNotAuthenticated].
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", shared.ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("failed to read auth file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", shared.ErrNotAuthenticated
	}
	return token, nil
}

// ClearToken removes the stored token; a missing file is not an error.
func ClearToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove auth file: %w", err)
	}
	return nil
}

// ResolveToken picks credentials from the config first, then the auth file.
func ResolveToken(creds shared.CredentialsConfig) (string, error) {
	if creds.Username != "" && creds.Password != "" {
		return Credentials{Username: creds.Username, Password: creds.Password}.Token(), nil
	}
	return LoadToken(creds.AuthFilePath())
}
