package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin checks credentials against /login and stores them in the auth file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	creds := services.Credentials{
		Username: cmd.String("username"),
		Password: cmd.String("password"),
	}
	if creds.Username == "" {
		creds.Username = r.config.Credentials.Username
	}
	if creds.Password == "" {
		creds.Password = r.config.Credentials.Password
	}
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("%w: pass --username and --password or set them in config", shared.ErrMissingCredentials)
	}
	if err := r.requireStudio(); err != nil {
		return err
	}

	r.logger.Info("logging in", "username", creds.Username)
	if err := r.studio.Login(ctx, creds.Username, creds.Password); err != nil {
		return err
	}

	path := r.config.Credentials.AuthFilePath()
	if err := services.SaveToken(path, creds.Token()); err != nil {
		return err
	}
	r.logger.Infof("auth file saved to %v", path)

	return r.writePlain("✓ Logged in as %s\n", creds.Username)
}

// AuthStatus shows which credentials are in use and whether the backend accepts them.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	token, err := services.ResolveToken(r.config.Credentials)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return r.writePlain("Authentication: ✗ Not logged in\n")
	}
	if err != nil {
		return err
	}

	creds, err := services.ParseToken(token)
	if err != nil {
		return err
	}
	r.writePlain("Backend:  %s\n", r.config.Backend.BaseURL())
	r.writePlain("User:     %s\n", creds.Username)

	if err := r.requireStudio(); err != nil {
		return err
	}
	if _, err := r.studio.ListSessions(ctx, services.SessionQuery{Page: 1, Limit: 1}); err != nil {
		r.writePlain("Authentication: ✗ Rejected\n")
		return fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, err)
	}
	return r.writePlain("Authentication: ✓ Authenticated\n")
}

// AuthLogout removes the stored credentials.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Credentials.AuthFilePath()
	if err := services.ClearToken(path); err != nil {
		return err
	}
	r.logger.Info("auth file removed", "path", path)
	return r.writePlain("✓ Logged out\n")
}
