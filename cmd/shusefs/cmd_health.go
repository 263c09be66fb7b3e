package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shusefs/shusefs/pkg/cli"
	"github.com/shusefs/shusefs/pkg/health"
	"github.com/shusefs/shusefs/pkg/shelly/session"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Health check operations",
	Long: `Run health checks against a device's pending-request table,
switch temperatures, config freshness, and schedule sync state.

Examples:
  shusefs health check ws://shellyplus1-a1b2c3.local/rpc`,
}

var healthCheckCmd = &cobra.Command{
	Use:   "check <device-url>",
	Short: "Run all health checks and print a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceURL := args[0]

		s, err := oneShot(deviceURL, func(s *session.Session) bool {
			_, _, valid := s.Cache.SystemConfig()
			return valid
		})
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", deviceURL, err)
		}

		report, err := health.NewChecker().Run(context.Background(), s, deviceURL)
		if err != nil {
			return err
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(report)
		}

		fmt.Printf("\nHealth report for %s\n", bold(deviceURL))
		fmt.Printf("Duration: %s\n\n", report.Duration)

		t := cli.NewTable("CHECK", "STATUS", "MESSAGE")
		for _, result := range report.Results {
			t.Row(result.Check, formatHealthStatus(result.Status), result.Message)
		}
		t.Flush()

		fmt.Printf("\nOverall: %s\n", formatHealthStatus(report.Overall))
		return nil
	},
}

func formatHealthStatus(status health.Status) string {
	switch status {
	case health.StatusOK:
		return green("ok")
	case health.StatusWarning:
		return yellow("warning")
	case health.StatusCritical:
		return red("critical")
	default:
		return string(status)
	}
}

func init() {
	healthCmd.AddCommand(healthCheckCmd)
}
