package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shusefs/shusefs/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.shusefs/settings.json.

Settings provide defaults for flags:
  - default_device_url:  Saved default device URL (shown here only; device commands take the URL as an argument)
  - reconnect_min_backoff_ms / reconnect_max_backoff_ms
  - audit_log_path, audit_max_size_mb, audit_max_backups
  - mqtt_mirror_enabled

Examples:
  shusefs settings show
  shusefs settings set default_device_url ws://shellyplus1-a1b2c3.local/rpc
  shusefs settings set mqtt_mirror_enabled true
  shusefs settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SETTING\tVALUE")
		fmt.Fprintln(w, "-------\t-----")

		row := func(name, value string) { fmt.Fprintf(w, "%s\t%s\n", name, value) }

		row("default_device_url", s.GetDeviceURL())
		row("last_mount_point", dash(s.LastMountPoint))
		row("reconnect_min_backoff_ms", strconv.Itoa(s.GetReconnectMinBackoffMS()))
		row("reconnect_max_backoff_ms", strconv.Itoa(s.GetReconnectMaxBackoffMS()))
		row("audit_log_path", s.GetAuditLogPath())
		row("audit_max_size_mb", strconv.Itoa(s.GetAuditMaxSizeMB()))
		row("audit_max_backups", strconv.Itoa(s.GetAuditMaxBackups()))
		row("mqtt_mirror_enabled", strconv.FormatBool(s.MQTTMirrorEnabled))

		return w.Flush()
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value.

Available settings:
  default_device_url       - Saved default device URL (not read by device commands)
  reconnect_min_backoff_ms - Initial reconnect backoff, milliseconds
  reconnect_max_backoff_ms - Maximum reconnect backoff, milliseconds
  audit_log_path           - Path to the RPC audit log
  audit_max_size_mb        - Audit log rotation size, megabytes
  audit_max_backups        - Number of rotated audit log files to keep
  mqtt_mirror_enabled      - Enable the redundant MQTT status mirror (true/false)`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting, value := args[0], args[1]

		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}

		switch setting {
		case "default_device_url":
			s.DefaultDeviceURL = value
		case "reconnect_min_backoff_ms":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer: %s", value)
			}
			s.ReconnectMinBackoffMS = n
		case "reconnect_max_backoff_ms":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer: %s", value)
			}
			s.ReconnectMaxBackoffMS = n
		case "audit_log_path":
			s.AuditLogPath = value
		case "audit_max_size_mb":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer: %s", value)
			}
			s.AuditMaxSizeMB = n
		case "audit_max_backups":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer: %s", value)
			}
			s.AuditMaxBackups = n
		case "mqtt_mirror_enabled":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid boolean: %s", value)
			}
			s.MQTTMirrorEnabled = b
		default:
			return fmt.Errorf("unknown setting: %s", setting)
		}

		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s set to: %s\n", setting, value)
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset all settings to defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		s.Clear()
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("settings cleared")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsClearCmd)
}
