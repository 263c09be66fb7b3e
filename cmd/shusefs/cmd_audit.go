package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shusefs/shusefs/pkg/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the RPC audit trail",
	Long: `View the append-only log of every RPC this client issued to a
device, with its outcome.

Examples:
  shusefs audit list --device ws://shellyplus1-a1b2c3.local/rpc
  shusefs audit list --last 24h
  shusefs audit list --failures`,
}

var (
	auditDevice   string
	auditMethod   string
	auditLast     string
	auditLimit    int
	auditFailures bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Device:      auditDevice,
			Method:      auditMethod,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("no audit events found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tDEVICE\tMETHOD\tREQUEST ID\tSTATUS")
		fmt.Fprintln(w, "---------\t------\t------\t----------\t------")

		for _, event := range events {
			status := green("ok")
			if !event.Success {
				status = red("failed: " + event.Error)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.Device,
				event.Method,
				event.RequestID,
				status,
			)
		}
		return w.Flush()
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditDevice, "device", "", "Filter by device URL")
	auditListCmd.Flags().StringVar(&auditMethod, "method", "", "Filter by RPC method")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h, 30m)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed RPCs")

	auditCmd.AddCommand(auditListCmd)
}
