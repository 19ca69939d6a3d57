// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles configuration and database setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a configuration file from the template",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles studio credentials.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage studio credentials",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Verify credentials against the backend and store them",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Studio account name (defaults to config)",
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Studio password (defaults to config)",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show stored credentials and check the backend accepts them",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove stored credentials",
				Action: r.AuthLogout,
			},
		},
	}
}

// sessionCommand handles shooting sessions.
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"s"},
		Usage:   "Shooting session operations",
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload photos into a new or existing session",
				ArgsUsage: "<file or dir>...",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Session ID (generated when empty)",
					},
					&cli.StringFlag{
						Name:  "customer",
						Usage: "Customer name recorded with the session",
					},
				}, batchFlags()...),
				Action: r.SessionUpload,
			},
			{
				Name:      "append",
				Usage:     "Add more photos to an existing session",
				ArgsUsage: "<session> <file or dir>...",
				Flags:     batchFlags(),
				Action:    r.SessionAppend,
			},
			{
				Name:  "list",
				Usage: "List sessions",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Sessions per page",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (pending, ready, submitted, completed)",
					},
					&cli.StringFlag{
						Name:  "search",
						Usage: "Match customer name or session ID",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SessionList,
			},
			{
				Name:  "show",
				Usage: "Show a session and its photos",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "selected",
						Usage: "Only photos the client picked",
					},
					&cli.BoolFlag{
						Name:  "unselected",
						Usage: "Only photos the client did not pick",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SessionShow,
			},
			{
				Name:  "delete",
				Usage: "Delete a session and its photos",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.SessionDelete,
			},
			{
				Name:  "delete-photo",
				Usage: "Delete one photo from a session",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
					&cli.StringArg{Name: "photo"},
				},
				Action: r.SessionDeletePhoto,
			},
			{
				Name:  "finish",
				Usage: "Mark a session ready for client selection",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.SessionFinish,
			},
			{
				Name:  "qrcode",
				Usage: "Get the client QR code for a session",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "terminal",
						Usage: "Render the selection link as a QR code in the terminal",
					},
					&cli.StringFlag{
						Name:  "png",
						Usage: "Write the selection link as a QR code PNG to this path",
					},
					&cli.IntFlag{
						Name:  "size",
						Usage: "PNG size in pixels",
						Value: 256,
					},
				},
				Action: r.SessionQRCode,
			},
			{
				Name:  "link",
				Usage: "Print the client selection link",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the link in a browser",
					},
				},
				Action: r.SessionLink,
			},
			{
				Name:  "export",
				Usage: "Export a session and its photos",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "json, csv, markdown or txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (defaults to <session>.<ext>)",
					},
					&cli.BoolFlag{
						Name:  "download",
						Usage: "Download photos next to a markdown export",
					},
				},
				Action: r.SessionExport,
			},
		},
	}
}

// portfolioCommand handles the public gallery.
func portfolioCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "portfolio",
		Aliases: []string{"pf"},
		Usage:   "Portfolio gallery operations",
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload photos into a portfolio category",
				ArgsUsage: "<file or dir>...",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "category",
						Aliases:  []string{"c"},
						Usage:    "Portfolio category",
						Required: true,
					},
				}, batchFlags()...),
				Action: r.PortfolioUpload,
			},
			{
				Name:  "list",
				Usage: "List portfolio items",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "category",
						Aliases: []string{"c"},
						Usage:   "Only this category",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PortfolioList,
			},
			{
				Name:   "categories",
				Usage:  "List categories in use",
				Action: r.PortfolioCategories,
			},
			{
				Name:  "delete",
				Usage: "Delete a portfolio item",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.PortfolioDelete,
			},
		},
	}
}

// selectCommand acts as the client picking photos.
func selectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "select",
		Usage: "Client photo selection",
		Commands: []*cli.Command{
			{
				Name:  "photos",
				Usage: "List a session's photos as the client sees them",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SelectPhotos,
			},
			{
				Name:      "submit",
				Usage:     "Submit the client's chosen photos",
				ArgsUsage: "<session> <photo>...",
				Action:    r.SelectSubmit,
			},
		},
	}
}

// uploadCommand groups upload modes that are not tied to one session command.
func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Upload modes",
		Commands: []*cli.Command{
			{
				Name:      "watch",
				Usage:     "Watch a folder and upload new photos as they arrive",
				ArgsUsage: "<dir>",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Session ID (generated when empty)",
					},
					&cli.StringFlag{
						Name:  "customer",
						Usage: "Customer name for a new session",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Upload into this portfolio category instead of a session",
					},
					&cli.DurationFlag{
						Name:      "debounce",
						Usage:     "Quiet period before a batch is sent, e.g. 2s",
						Validator: nonNegative("debounce"),
					},
				}, batchFlags()...),
				Action: r.UploadWatch,
			},
		},
	}
}

// historyCommand browses the local upload history.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Local upload history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent batches",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "session or portfolio",
					},
					&cli.StringFlag{
						Name:  "destination",
						Usage: "Session ID or portfolio category",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "pending, running, succeeded or failed",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum batches to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show a batch and its files",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "delete",
				Usage: "Remove a batch from history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}

// apiCommand makes raw calls to the studio backend.
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the studio backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a path and print the JSON response",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "POST a JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "delete",
				Usage: "DELETE a path",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.APIDelete,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for picking a session and uploading.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Aliases:   []string{"interactive", "ui"},
		Usage:     "Pick a session interactively and upload photos into it",
		ArgsUsage: "<file or dir>...",
		Flags:     batchFlags(),
		Action:    r.TUI,
	}
}
