package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dukex/stepflow/pkg/client"
	"github.com/dukex/stepflow/pkg/cmd"
	"github.com/dukex/stepflow/pkg/editor"
	"github.com/dukex/stepflow/pkg/export"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/schema"
	"github.com/dukex/stepflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

var (
	errMissingArgument = errors.New("missing argument")
	errInvalidDocument = errors.New("workflow document is invalid")
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a workflow document file against the schema and the graph rules",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, command *cli.Command) error {
			doc, err := readDocument(command.Args().First())
			if err != nil {
				return reportInvalid(command, err)
			}

			if violations := doc.Validate(); len(violations) > 0 {
				return reportInvalid(command, models.AsViolations(violations))
			}

			_, err = fmt.Fprintf(output(command), "%s: valid (%d nodes, %d edges)\n", doc.Name, len(doc.Nodes), len(doc.Edges))

			return err
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create a draft workflow from a document file",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, command *cli.Command) error {
			doc, err := readDocument(command.Args().First())
			if err != nil {
				return reportInvalid(command, err)
			}

			return withPersistence(ctx, command, func(p persistence.Persistence, logger *slog.Logger) error {
				created, err := services.NewWorkflow(p, nil, logger).Create(ctx, *doc)
				if err != nil {
					return reportInvalid(command, err)
				}

				_, err = fmt.Fprintln(output(command), created.ID)

				return err
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write the audit report of a workflow",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file, standard output when empty",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := requireArg(command, 0, "workflow-id")
			if err != nil {
				return err
			}

			return withPersistence(ctx, command, func(p persistence.Persistence, logger *slog.Logger) error {
				workflow, err := services.NewWorkflow(p, nil, logger).FetchByID(ctx, id)
				if err != nil {
					return err
				}

				return writeTo(command, command.String("output"), export.NewReport(workflow, time.Now()))
			})
		},
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Publish a draft workflow",
		ArgsUsage: "<workflow-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := requireArg(command, 0, "workflow-id")
			if err != nil {
				return err
			}

			return withPersistence(ctx, command, func(p persistence.Persistence, logger *slog.Logger) error {
				published, err := services.NewPublishing(p, nil, logger).PublishWorkflow(ctx, id)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(output(command), "%s published as %s\n", published.Name, published.ID)

				return err
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Move a step to a new status",
		ArgsUsage: "<workflow-id> <node-id> <status>",
		Action: func(ctx context.Context, command *cli.Command) error {
			args, err := requireArgs(command, "workflow-id", "node-id", "status")
			if err != nil {
				return err
			}

			return withSession(ctx, command, args[0], func(session *editor.Session) error {
				node, err := session.UpdateNodeStatus(args[1], models.NodeStatus(args[2]))
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(output(command), "%s is %s\n", node.Label, node.Status)

				return err
			})
		},
	}
}

func decideCommand() *cli.Command {
	return &cli.Command{
		Name:      "decide",
		Usage:     "Record an approval decision on a gated transition",
		ArgsUsage: "<workflow-id> <edge-id> <approved|rejected>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "approver",
				Usage:    "Identity of the approver",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "comments",
				Usage: "Decision comments",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			args, err := requireArgs(command, "workflow-id", "edge-id", "decision")
			if err != nil {
				return err
			}

			return withSession(ctx, command, args[0], func(session *editor.Session) error {
				edge, err := session.DecideEdge(
					args[1],
					models.Decision(args[2]),
					command.String("approver"),
					command.String("comments"),
				)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(output(command), "%s -> %s %s by %s\n", edge.Source, edge.Target, edge.Status, edge.ApprovedBy)

				return err
			})
		},
	}
}

func pendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "List approvals waiting for a decision",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "role",
				Usage: "Only approvals required from this role",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			return withPersistence(ctx, command, func(p persistence.Persistence, _ *slog.Logger) error {
				pending, err := services.NewApprovals(p).Pending(ctx, command.String("role"))
				if err != nil {
					return err
				}

				return writeTo(command, "", pending)
			})
		},
	}
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Count workflows by status and pending approvals",
		Action: func(ctx context.Context, command *cli.Command) error {
			return withPersistence(ctx, command, func(p persistence.Persistence, _ *slog.Logger) error {
				summary, err := services.NewApprovals(p).Summary(ctx)
				if err != nil {
					return err
				}

				return writeTo(command, "", summary)
			})
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON Schema of workflow documents",
		Action: func(_ context.Context, command *cli.Command) error {
			_, err := output(command).Write(schema.Raw())

			return err
		},
	}
}

// readDocument decodes a JSON or YAML document file, chosen by extension.
func readDocument(path string) (*models.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: file", errMissingArgument)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return schema.DecodeYAML(raw)
	default:
		return schema.Decode(raw)
	}
}

// reportInvalid prints schema errors and graph violations one per line.
func reportInvalid(command *cli.Command, err error) error {
	var (
		invalid    *schema.ValidationError
		violations *models.ViolationsError
	)

	var lines []string

	switch {
	case errors.As(err, &invalid):
		lines = invalid.Errors
	case errors.As(err, &violations):
		for _, v := range violations.Violations {
			lines = append(lines, v.Error())
		}
	default:
		return err
	}

	for _, line := range lines {
		if _, werr := fmt.Fprintln(output(command), "-", line); werr != nil {
			return werr
		}
	}

	return fmt.Errorf("%w: %d problem(s)", errInvalidDocument, len(lines))
}

func withPersistence(
	ctx context.Context,
	command *cli.Command,
	fn func(p persistence.Persistence, logger *slog.Logger) error,
) error {
	logger := newLogger(command)

	p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := p.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	return fn(p, logger)
}

// withSession opens a workflow in an editing session, applies fn and saves.
// The session edits through the API when --api-url is set.
func withSession(ctx context.Context, command *cli.Command, workflowID string, fn func(*editor.Session) error) error {
	logger := newLogger(command)

	if apiURL := command.String("api-url"); apiURL != "" {
		store := client.NewWorkflowClient(apiURL, client.WithLogger(logger), client.WithRetry(client.RetryConfig{
			Attempts: 3,
			Delay:    time.Second,
		}))

		return editAndSave(ctx, editor.NewSession(store, logger), workflowID, fn)
	}

	return withPersistence(ctx, command, func(p persistence.Persistence, logger *slog.Logger) error {
		store := editor.NewRepositoryStore(p.WorkflowRepository())

		return editAndSave(ctx, editor.NewSession(store, logger), workflowID, fn)
	})
}

func editAndSave(ctx context.Context, session *editor.Session, workflowID string, fn func(*editor.Session) error) error {
	if err := session.Open(ctx, workflowID); err != nil {
		return err
	}

	if err := fn(session); err != nil {
		return err
	}

	result := <-session.Save(ctx)

	return result.Err
}

func writeTo(command *cli.Command, path string, v any) error {
	format, err := export.ParseFormat(command.String("format"))
	if err != nil {
		return err
	}

	if path == "" {
		return export.Write(output(command), format, v)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := export.Write(f, format, v); err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}

func requireArg(command *cli.Command, i int, name string) (string, error) {
	arg := command.Args().Get(i)
	if arg == "" {
		return "", fmt.Errorf("%w: %s", errMissingArgument, name)
	}

	return arg, nil
}

func requireArgs(command *cli.Command, names ...string) ([]string, error) {
	args := make([]string, len(names))

	for i, name := range names {
		arg, err := requireArg(command, i, name)
		if err != nil {
			return nil, err
		}

		args[i] = arg
	}

	return args, nil
}

func output(command *cli.Command) io.Writer {
	return command.Root().Writer
}

func newLogger(command *cli.Command) *slog.Logger {
	return log.New(command.Root().ErrWriter, command.String("log-level")).With("module", "cli")
}
