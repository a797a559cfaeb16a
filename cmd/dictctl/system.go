package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/dictcache/internal/version"
)

var preloadCmd = &cobra.Command{
	Use:     "preload",
	Short:   "Load every dictionary and form structure",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report := client.PreloadAll(cmd.Context())
		out := cmd.OutOrStdout()

		if jsonOutput {
			if err := printJSON(out, report); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Loaded %d dictionaries in %s\n", report.Total, report.Duration.Round(time.Millisecond))
			if len(report.FailedCollections) > 0 {
				fmt.Fprintf(out, "Failed collections: %s\n", strings.Join(report.FailedCollections, ", "))
			}
			if len(report.FailedSchemas) > 0 {
				fmt.Fprintf(out, "Failed schemas:     %s\n", strings.Join(report.FailedSchemas, ", "))
			}
		}

		if !report.OK() {
			return fmt.Errorf("preload incomplete")
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the catalog API and snapshot store",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report := client.Health(cmd.Context())
		out := cmd.OutOrStdout()

		if jsonOutput {
			if err := printJSON(out, report); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Health: %s\n", report.Status)
			for name, res := range report.Checks {
				fmt.Fprintf(out, "  %-10s %s\n", name, res)
			}
		}

		if report.Status != "ok" {
			return fmt.Errorf("unhealthy: %s", report.Status)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the dictctl version",
	GroupID: "system",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dictctl %s\n", version.String())
	},
}
