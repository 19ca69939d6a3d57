package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) requireAPI() error {
	if r.api == nil {
		return fmt.Errorf("%w: api client not configured", shared.ErrServiceUnavailable)
	}
	return nil
}

// printResponse writes a raw backend response, failing on non-2xx statuses.
func (r *Runner) printResponse(resp *services.APIResponse, pretty bool) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		if out := resp.Envelope(); !out.Ok() {
			r.logger.Warn("backend reported an error", "error", out.Err)
		}
		return r.writeJSON(resp.JSONData, pretty)
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// APIGet makes a direct GET request to the backend.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if err := requireArg(path, "path"); err != nil {
		return err
	}
	if err := r.requireAPI(); err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)
	resp, err := r.api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.printResponse(resp, cmd.Bool("pretty"))
}

// APIPost makes a direct POST request to the backend.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data := cmd.String("data")
	if err := requireArg(path, "path"); err != nil {
		return err
	}
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidInput)
	}
	if err := r.requireAPI(); err != nil {
		return err
	}

	r.logger.Info("POST request", "path", path)
	resp, err := r.api.Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.printResponse(resp, true)
}

// APIDelete makes a direct DELETE request to the backend.
func (r *Runner) APIDelete(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if err := requireArg(path, "path"); err != nil {
		return err
	}
	if err := r.requireAPI(); err != nil {
		return err
	}

	r.logger.Info("DELETE request", "path", path)
	resp, err := r.api.Delete(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.printResponse(resp, true)
}
