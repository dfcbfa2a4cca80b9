package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appLog "coursecal/internal/log"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "coursecal",
		Short: "Relates course assignments to a schedule feed and infers missing deadlines",
		Long: `coursecal cross-references course assignments with the events of a
schedule feed (TimeEdit or any ICS export). Assignments without a due date
get an implied deadline from the last matching scheduled session.

It can run as:
  - a one-shot CLI (crossref)
  - an HTTP API that keeps the feed fresh on a cron schedule (serve)`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Flags().Changed("log-level") {
				appLog.SetLevel(appLog.ParseLevel(logLevel))
			}
		},
	}
	cmd.SetVersionTemplate(`{{printf "coursecal version %s\n" .Version}}`)

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info or error")

	cmd.AddCommand(newCrossRefCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coursecal version %s\n", version)
		},
	}
}
