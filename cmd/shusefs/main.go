// shusefs - Shelly Gen2+ Device Filesystem
//
// Mounts a Shelly Gen2+ smart-power device's configuration and live
// status as a FUSE filesystem: config files under the mount root,
// script bodies under scripts/, and a read-mostly /proc/switch,
// /proc/input status tree, all backed by a single JSON-RPC 2.0
// WebSocket session to the device.
//
// Noun-group CLI pattern:
//
//	shusefs mount <device-url> <mount-point>
//	shusefs status <device-url>
//	shusefs switch set <device-url> <id> on|off
//	shusefs health check <device-url>
//	shusefs settings show
//
// Examples:
//
//	shusefs mount ws://shellyplus1-a1b2c3.local/rpc /mnt/shelly
//	shusefs status ws://shellyplus1-a1b2c3.local/rpc
//	shusefs switch set ws://shellyplus1-a1b2c3.local/rpc 0 on
//	shusefs health check ws://shellyplus1-a1b2c3.local/rpc
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shusefs/shusefs/pkg/audit"
	"github.com/shusefs/shusefs/pkg/cli"
	"github.com/shusefs/shusefs/pkg/settings"
	"github.com/shusefs/shusefs/pkg/util"
	"github.com/shusefs/shusefs/pkg/version"
)

// App holds CLI state shared across all commands.
type App struct {
	username string
	password string
	verbose  bool
	jsonOutput bool
	timeout  time.Duration

	settings *settings.Settings
}

var app = &App{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "shusefs",
	Short:         "Shelly Gen2+ device filesystem",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `shusefs exposes a Shelly Gen2+ smart-power device as a FUSE
filesystem, backed by a single JSON-RPC 2.0 WebSocket session.

  shusefs mount <device-url> <mount-point>
  shusefs status <device-url>
  shusefs switch set <device-url> <id> on|off
  shusefs health check <device-url>
  shusefs settings show`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		app.settings, err = settings.Load()
		if err != nil {
			util.Logger.Warnf("could not load settings: %v", err)
			app.settings = &settings.Settings{}
		}

		if app.verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		auditLogger, err := audit.NewFileLogger(app.settings.GetAuditLogPath(), audit.RotationConfig{
			MaxSize:    int64(app.settings.GetAuditMaxSizeMB()) * 1024 * 1024,
			MaxBackups: app.settings.GetAuditMaxBackups(),
		})
		if err != nil {
			util.Logger.Warnf("could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.username, "username", "u", "", "Device auth username (default: admin)")
	rootCmd.PersistentFlags().StringVarP(&app.password, "password", "p", "", "Device auth password (enables digest auth)")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().DurationVar(&app.timeout, "timeout", 5*time.Second, "One-shot command timeout")

	for _, cmd := range []*cobra.Command{statusCmd, healthCmd, switchCmd, auditCmd} {
		addOutputFlags(cmd)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "operate", Title: "Operate:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{mountCmd, statusCmd, switchCmd, healthCmd} {
		cmd.GroupID = "operate"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Info())
	},
}

func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVar(&app.jsonOutput, "json", false, "JSON output")
}

func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
