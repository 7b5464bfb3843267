// Command jira-flow-metrics exports issue, sprint and pull request flow
// metrics from Jira, GitHub and Bitbucket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jira-flow-metrics/app"
	"jira-flow-metrics/config"
	"jira-flow-metrics/logging"
	"jira-flow-metrics/report"
	"jira-flow-metrics/web"
)

const sampleConfigFile = "jira-flow.sample.yaml"

type globalFlags struct {
	configPath string
	logLevel   string
	outputDir  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "jira-flow-metrics",
		Short: "Jira flow metrics - lead time, status time and sprint delivery reports",
		Long: `Jira flow metrics replays issue changelogs to measure lead time and time
per status category, classifies issues against their sprints and exports
the results with pull request metrics as CSV and JSON.

Run "jira-flow-metrics sample-config" to get started.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default ./jira-flow.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level")
	rootCmd.PersistentFlags().StringVarP(&flags.outputDir, "output", "o", "", "override output.dir")

	rootCmd.AddCommand(
		reportCmd(flags, "run", "Export every report and print the team summary", app.All),
		reportCmd(flags, "issues", "Export the issue and sprint reports", app.Selection{Issues: true}),
		reportCmd(flags, "pullrequests", "Export the pull request report", app.Selection{PullRequests: true}),
		sprintsCmd(flags),
		fieldsCmd(flags),
		calendarCmd(flags),
		sampleConfigCmd(),
		serveCmd(flags),
	)
	return rootCmd
}

func (f *globalFlags) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.outputDir != "" {
		cfg.Output.Dir = f.outputDir
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format), nil
}

func reportCmd(flags *globalFlags, use, short string, sel app.Selection) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}

			now := time.Now()
			p, err := app.New(cfg, sel, nil, log, now)
			if err != nil {
				return err
			}

			start := time.Now()
			rep, err := p.Run(cmd.Context(), now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report.PrintMetricsSummary(out, rep.Summary)

			written, err := report.WriteFiles(cfg.Output.Dir, rep, p.Columns)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintln(out)
			for _, path := range written {
				fmt.Fprintf(out, "%s %s\n", color.GreenString("exported"), path)
			}
			log.Info().Dur("took", time.Since(start)).Int("files", len(written)).Msg("analysis complete")
			return nil
		},
	}
}

func sprintsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sprints",
		Short: "List the sprints of the configured board, completed from the sprint calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			now := time.Now()
			p, err := app.New(cfg, app.Selection{}, nil, log, now)
			if err != nil {
				return err
			}
			sprints, err := p.Jira.BoardSprints(cmd.Context())
			if err != nil {
				return err
			}
			report.PrintSprints(cmd.OutOrStdout(), p.Processor.Catalog(nil, sprints).Sprints())
			return nil
		},
	}
}

func fieldsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List Jira fields to find the estimation and sprint field ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			p, err := app.New(cfg, app.Selection{}, nil, log, time.Now())
			if err != nil {
				return err
			}
			fields, err := p.Jira.Fields(cmd.Context())
			if err != nil {
				return err
			}
			report.PrintFields(cmd.OutOrStdout(), fields)
			return nil
		},
	}
}

func calendarCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "Print the generated sprint calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := flags.load()
			if err != nil {
				return err
			}
			now := time.Now()
			cal, err := cfg.SprintCalendar(now)
			if err != nil {
				return err
			}
			report.PrintSprintCalendar(cmd.OutOrStdout(), cal, now)
			return nil
		},
	}
}

func sampleConfigCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "sample-config",
		Short: "Write a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteSample(path); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Sample configuration file created: %s\n", color.GreenString("ok"), path)
			fmt.Fprintln(out, "Edit it, export the tokens named by the *_env keys and rename it to jira-flow.yaml")
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", sampleConfigFile, "destination file")
	return cmd
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reports over HTTP and refresh them on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			return web.Run(cmd.Context(), flags.configPath, cfg, fmt.Sprintf(":%d", cfg.Server.Port), log)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}
