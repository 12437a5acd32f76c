// Package main provides the stepflow command line tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	err := newCommand(os.Stdout, os.Stderr).Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stepflow:", err)
		os.Exit(1)
	}
}

func newCommand(out, errOut io.Writer) *cli.Command {
	return &cli.Command{
		Name:                  "stepflow",
		Usage:                 "Validate, import, export and drive approval workflows",
		EnableShellCompletion: true,
		Writer:                out,
		ErrWriter:             errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence (file://, postgres://, redis://)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Edit through a running API instead of the database",
				Sources: cli.EnvVars("STEPFLOW_API_URL"),
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (yaml, json)",
				Value:   "yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			validateCommand(),
			importCommand(),
			exportCommand(),
			publishCommand(),
			statusCommand(),
			decideCommand(),
			pendingCommand(),
			summaryCommand(),
			schemaCommand(),
		},
	}
}
