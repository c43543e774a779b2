// Package main provides the bookforge CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/bookforge/cli"
	"github.com/richinex/bookforge/model"
	"github.com/richinex/bookforge/orchestration"
)

var (
	// Global flags
	dbURL     string
	provider  string
	modelName string
	logLevel  string
	logFormat string
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "bookforge",
		Short: "Multi-agent book creation pipeline",
		Long: `Run the book creation pipeline: structure, title, research, fact mapping,
emotional layer, creative guidelines and writing.

Each stage runs a proposer, critic and implementer loop against the configured
LLM provider. Projects, stage artifacts and costs are stored in a sqlite or
Postgres database.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database URL or sqlite path (default $BOOKFORGE_DATABASE_URL or ~/.bookforge/bookforge.db)")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (mock, openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Model name for the provider")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json, console)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(providersCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if kind := orchestration.ErrorKind(err); kind != "" && kind != orchestration.KindInternal {
			fmt.Fprintf(os.Stderr, "[%s] ", kind)
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// withApp opens the application for the duration of fn.
func withApp(fn func(app *cli.App) error) error {
	app, err := cli.Open(cli.Options{
		DatabaseURL: dbURL,
		Provider:    provider,
		Model:       modelName,
		LogLevel:    logLevel,
		LogFormat:   logFormat,
	})
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func runCmd() *cobra.Command {
	var file, stage, prompt, projectID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute stages directly from a request file or a single prompt",
		Long: `Execute an ordered list of stages and print each stage result.

Use --file with a YAML or JSON run request, or --stage with --prompt for a single
stage. With neither, every stage runs with its default prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req orchestration.RunRequest
			switch {
			case file != "":
				var err error
				if req, err = cli.LoadRunRequest(file); err != nil {
					return err
				}
			case stage != "":
				s, err := model.ParseBookStage(stage)
				if err != nil {
					return err
				}
				req.Stages = []orchestration.StageRequest{{Stage: s, Prompt: prompt}}
			}
			if projectID != "" {
				req.ProjectID = projectID
			}
			return withApp(func(app *cli.App) error {
				_, err := cli.RunPipeline(cmd.Context(), app, req, asJSON)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Run request file (YAML or JSON)")
	cmd.Flags().StringVar(&stage, "stage", "", "Single stage to run")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt or JSON payload for --stage")
	cmd.Flags().StringVar(&projectID, "project", "", "Project id to tag the run with")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	cmd.MarkFlagsMutuallyExclusive("file", "stage")

	return cmd
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and inspect projects",
	}

	var title, idea, guidelines string
	var limit float64
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project from an idea",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cli.ProjectInput{Title: title, IdeaSummary: idea, ResearchGuidelines: guidelines}
			if cmd.Flags().Changed("limit-usd") {
				in.LimitUSD = &limit
			}
			return withApp(func(app *cli.App) error {
				_, err := cli.CreateProject(cmd.Context(), app, in)
				return err
			})
		},
	}
	create.Flags().StringVar(&title, "title", "", "Working title")
	create.Flags().StringVar(&idea, "idea", "", "Idea summary")
	create.Flags().StringVar(&guidelines, "research-guidelines", "", "Guidelines for the research stage")
	create.Flags().Float64Var(&limit, "limit-usd", 0, "Spend limit in USD")
	_ = create.MarkFlagRequired("idea")

	show := &cobra.Command{
		Use:   "show [project-id]",
		Short: "Show a project with its artifacts and stage runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				return cli.ShowProject(cmd.Context(), app, args[0])
			})
		},
	}

	var budgetLimit float64
	var clearLimit bool
	budget := &cobra.Command{
		Use:   "budget [project-id]",
		Short: "Set or clear a project's spend limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !clearLimit && !cmd.Flags().Changed("limit-usd") {
				return fmt.Errorf("either --limit-usd or --clear is required")
			}
			var l *float64
			if !clearLimit {
				l = &budgetLimit
			}
			return withApp(func(app *cli.App) error {
				return cli.SetBudget(cmd.Context(), app, args[0], l)
			})
		},
	}
	budget.Flags().Float64Var(&budgetLimit, "limit-usd", 0, "Spend limit in USD")
	budget.Flags().BoolVar(&clearLimit, "clear", false, "Remove the spend limit")
	budget.MarkFlagsMutuallyExclusive("limit-usd", "clear")

	cmd.AddCommand(create, show, budget)
	return cmd
}

func stageCmd() *cobra.Command {
	var projectID string
	var opts orchestration.StageOptions

	cmd := &cobra.Command{
		Use:   "stage [STAGE]",
		Short: "Run one stage for a project using its stored artifacts",
		Long: `Run one stage for a stored project.

The stage payload is built from the project's latest artifacts. The run is
rejected when the spend limit is reached and skipped when upstream stages have
not produced what it needs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := model.ParseBookStage(args[0])
			if err != nil {
				return err
			}
			return withApp(func(app *cli.App) error {
				_, err := cli.RunStage(cmd.Context(), app, projectID, stage, opts)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().StringVar(&opts.ResearchGuidelines, "research-guidelines", "", "Research guidelines for this run")
	cmd.Flags().StringVar(&opts.PersonaPreferences, "persona", "", "Persona preferences for the emotional layer")
	cmd.Flags().StringVar(&opts.Preferences, "preferences", "", "Preferences for the creative guidelines")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "Notes for the writing stage")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func parseCmd() *cobra.Command {
	var projectID string
	var promptIndex int

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Extract fact candidates from a research document (.docx or text)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var idx *int
			if cmd.Flags().Changed("prompt-index") {
				if promptIndex < 0 {
					return fmt.Errorf("--prompt-index must not be negative")
				}
				idx = &promptIndex
			}
			return withApp(func(app *cli.App) error {
				_, err := cli.ParseDocument(cmd.Context(), app, projectID, args[0], idx)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().IntVar(&promptIndex, "prompt-index", 0, "Research prompt the document answers")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func exportCmd() *cobra.Command {
	var projectID, format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the latest manuscript as Markdown or HTML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				return cli.Export(cmd.Context(), app, projectID, format, out)
			})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().StringVar(&format, "format", cli.FormatMarkdown, "Output format (md, html)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported providers and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *cli.App) error {
				_, err := cli.ListProviders(app)
				return err
			})
		},
	}
}
