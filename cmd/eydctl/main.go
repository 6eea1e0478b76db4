// Package main is eydctl, the operator CLI. It computes summaries offline
// from a snapshot file and manages the database schema.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eyd-portfolio/portfolio-analytics/config"
	"github.com/eyd-portfolio/portfolio-analytics/internal/application/query"
	"github.com/eyd-portfolio/portfolio-analytics/internal/bootstrap"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/persistence/postgres"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/snapshotfile"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries the flags shared by the subcommands.
type cli struct {
	file       string
	trainee    string
	logLevel   string
	hideRecent bool

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "eydctl",
		Short:         "eydctl - EYD portfolio analytics tool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	matrixCmd := &cobra.Command{
		Use:   "matrix",
		Short: "Build the EPA coverage matrix of a snapshot file",
		Args:  cobra.NoArgs,
		RunE:  c.runMatrix,
	}
	portfolioCmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Summarize portfolio progress of a snapshot file",
		Args:  cobra.NoArgs,
		RunE:  c.runPortfolio,
	}
	surveyCmd := &cobra.Command{
		Use:   "survey <code>",
		Short: "Aggregate the responses of one questionnaire (msf, psq)",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runSurvey,
	}
	surveyCmd.Flags().BoolVar(&c.hideRecent, "hide-recent", false, "Leave out the most recent responses")

	for _, cmd := range []*cobra.Command{matrixCmd, portfolioCmd, surveyCmd} {
		cmd.Flags().StringVarP(&c.file, "file", "f", "", "Snapshot file (YAML or JSON)")
		cmd.Flags().StringVar(&c.trainee, "trainee", "", "Trainee id (default: the file's trainee)")
		_ = cmd.MarkFlagRequired("file")
	}

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the activity catalog and intensity scale",
		Args:  cobra.NoArgs,
		RunE:  c.runCatalog,
	}
	instrumentsCmd := &cobra.Command{
		Use:   "instruments",
		Short: "List the supported questionnaires",
		Args:  cobra.NoArgs,
		RunE:  c.runInstruments,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema (uses DATABASE_URL)",
	}
	migrateCmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply pending migrations", Args: cobra.NoArgs, RunE: c.runMigrateUp},
		&cobra.Command{Use: "down", Short: "Roll back the latest migration", Args: cobra.NoArgs, RunE: c.runMigrateDown},
		&cobra.Command{Use: "status", Short: "Show migration status", Args: cobra.NoArgs, RunE: c.runMigrateStatus},
	)

	root.AddCommand(matrixCmd, portfolioCmd, surveyCmd, catalogCmd, instrumentsCmd, migrateCmd)
	return root
}

// ══════════════════════════════════════════════════════════════════════════════
// OFFLINE SUMMARIES
// ══════════════════════════════════════════════════════════════════════════════

func (c *cli) logger() *logger.Logger {
	return logger.New(logger.Options{
		Output: c.stderr,
		Level:  logger.ParseLevel(c.logLevel),
		Format: logger.FormatText,
	})
}

// offline loads the snapshot file and builds handlers without a cache.
func (c *cli) offline() (*bootstrap.Handlers, string, error) {
	analytics, err := config.LoadAnalyticsConfig()
	if err != nil {
		return nil, "", err
	}
	engine, err := bootstrap.NewEngine(analytics)
	if err != nil {
		return nil, "", err
	}

	f, err := snapshotfile.Load(c.file)
	if err != nil {
		return nil, "", err
	}
	src := snapshotfile.NewSource(f)

	trainee := c.trainee
	if trainee == "" {
		trainee = f.TraineeID
	}

	h := bootstrap.NewHandlers(bootstrap.Sources{
		Coverage:  src,
		Portfolio: src,
		Surveys:   src,
	}, engine, nil, c.logger())
	return h, trainee, nil
}

func (c *cli) runMatrix(cmd *cobra.Command, _ []string) error {
	h, trainee, err := c.offline()
	if err != nil {
		return err
	}
	res, err := h.CoverageMatrix.Handle(cmd.Context(), query.GetCoverageMatrixQuery{TraineeID: trainee})
	if err != nil {
		return err
	}
	return c.printJSON(res.Envelope)
}

func (c *cli) runPortfolio(cmd *cobra.Command, _ []string) error {
	h, trainee, err := c.offline()
	if err != nil {
		return err
	}
	res, err := h.PortfolioSummary.Handle(cmd.Context(), query.GetPortfolioSummaryQuery{TraineeID: trainee})
	if err != nil {
		return err
	}
	return c.printJSON(res.Envelope)
}

func (c *cli) runSurvey(cmd *cobra.Command, args []string) error {
	h, trainee, err := c.offline()
	if err != nil {
		return err
	}
	res, err := h.SurveyResults.Handle(cmd.Context(), query.GetSurveyResultsQuery{
		TraineeID:         trainee,
		QuestionnaireCode: args[0],
		HideRecent:        c.hideRecent,
	})
	if err != nil {
		return err
	}
	return c.printJSON(res.Envelope)
}

func (c *cli) runCatalog(*cobra.Command, []string) error {
	analytics, err := config.LoadAnalyticsConfig()
	if err != nil {
		return err
	}
	engine, err := bootstrap.NewEngine(analytics)
	if err != nil {
		return err
	}
	return c.printJSON(map[string]any{
		"catalog":   query.ListCatalog(engine.Catalog),
		"intensity": engine.Scale,
	})
}

func (c *cli) runInstruments(*cobra.Command, []string) error {
	analytics, err := config.LoadAnalyticsConfig()
	if err != nil {
		return err
	}
	engine, err := bootstrap.NewEngine(analytics)
	if err != nil {
		return err
	}
	return c.printJSON(query.ListInstruments(engine.Registry))
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

func (c *cli) withMigrator(ctx context.Context, fn func(*postgres.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL

	conn, err := postgres.NewConnection(ctx, pgCfg, c.logger())
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(postgres.NewMigrator(conn))
}

func (c *cli) runMigrateUp(cmd *cobra.Command, _ []string) error {
	return c.withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
		if err := m.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, "migrations applied")
		return nil
	})
}

func (c *cli) runMigrateDown(cmd *cobra.Command, _ []string) error {
	return c.withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
		if err := m.Rollback(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, "latest migration rolled back")
		return nil
	})
}

func (c *cli) runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return c.withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
		migrations, err := m.Status(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
		for _, mg := range migrations {
			applied := "pending"
			if mg.IsApplied {
				applied = mg.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", mg.Version, mg.Name, applied)
		}
		return tw.Flush()
	})
}
