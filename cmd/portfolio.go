package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/desertthunder/proofs/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PortfolioUpload uploads photos into a portfolio category.
func (r *Runner) PortfolioUpload(ctx context.Context, cmd *cli.Command) error {
	category := strings.TrimSpace(cmd.String("category"))
	if category == "" {
		return fmt.Errorf("%w: --category", shared.ErrMissingArgument)
	}
	files, err := r.collect(cmd.Args().Slice())
	if err != nil {
		return err
	}
	_, err = r.runBatch(ctx, cmd, files, tasks.PortfolioDestination(category))
	return err
}

// PortfolioList prints portfolio items.
func (r *Runner) PortfolioList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStudio(); err != nil {
		return err
	}
	items, err := r.studio.ListPortfolio(ctx, cmd.String("category"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, true)
	}
	if len(items) == 0 {
		return r.writePlain("No portfolio items\n")
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.ID, it.Category, it.Title, it.URL})
	}
	r.writeTable([]string{"ID", "Category", "Title", "URL"}, rows)
	return r.writePlain("%d items\n", len(items))
}

// PortfolioCategories prints the categories currently in use.
func (r *Runner) PortfolioCategories(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStudio(); err != nil {
		return err
	}
	items, err := r.studio.ListPortfolio(ctx, "")
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, it := range items {
		counts[it.Category]++
	}

	var rows [][]string
	for _, c := range services.PortfolioCategories(items) {
		rows = append(rows, []string{c, fmt.Sprint(counts[c])})
	}
	if len(rows) == 0 {
		return r.writePlain("No categories\n")
	}
	return r.writeTable([]string{"Category", "Items"}, rows, alignLeft, alignRight)
}

// PortfolioDelete removes a portfolio item.
func (r *Runner) PortfolioDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := requireArg(id, "portfolio item id"); err != nil {
		return err
	}
	if err := r.requireStudio(); err != nil {
		return err
	}
	if err := r.studio.DeletePortfolioItem(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted portfolio item %s\n", id)
}
