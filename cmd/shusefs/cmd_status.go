package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shusefs/shusefs/pkg/cli"
	"github.com/shusefs/shusefs/pkg/shelly/session"
)

var statusCmd = &cobra.Command{
	Use:   "status <device-url>",
	Short: "Connect once and print the device's discovered status",
	Long: `Status dials the device, runs the discovery window, waits for
the system config to arrive (or --timeout to elapse), and prints a
snapshot of every switch/input instance found.

Examples:
  shusefs status ws://shellyplus1-a1b2c3.local/rpc
  shusefs status --json ws://shellyplus1-a1b2c3.local/rpc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceURL := args[0]

		s, err := oneShot(deviceURL, func(s *session.Session) bool {
			_, _, valid := s.Cache.SystemConfig()
			return valid
		})
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", deviceURL, err)
		}

		if app.jsonOutput {
			return printStatusJSON(s)
		}
		printStatusTable(deviceURL, s)
		return nil
	},
}

type statusSnapshot struct {
	Device  string                  `json:"device"`
	Valid   bool                    `json:"system_config_valid"`
	Name    string                  `json:"name,omitempty"`
	Switches []statusSwitchEntry    `json:"switches,omitempty"`
	Inputs   []statusInputEntry     `json:"inputs,omitempty"`
}

type statusSwitchEntry struct {
	ID     int     `json:"id"`
	Output bool    `json:"output"`
	APower float64 `json:"apower"`
	Energy float64 `json:"energy"`
}

type statusInputEntry struct {
	ID    int  `json:"id"`
	State bool `json:"state"`
}

func printStatusJSON(s *session.Session) error {
	cfg, _, valid := s.Cache.SystemConfig()
	snap := statusSnapshot{Valid: valid, Name: cfg.Name}
	for _, id := range s.Cache.ValidSwitchIDs() {
		st, _, ok := s.Cache.SwitchStatus(id)
		if !ok {
			continue
		}
		snap.Switches = append(snap.Switches, statusSwitchEntry{ID: id, Output: st.Output, APower: st.APower, Energy: st.Energy})
	}
	for _, id := range s.Cache.ValidInputIDs() {
		st, _, ok := s.Cache.InputStatus(id)
		if !ok {
			continue
		}
		snap.Inputs = append(snap.Inputs, statusInputEntry{ID: id, State: st.State})
	}
	return json.NewEncoder(os.Stdout).Encode(snap)
}

func printStatusTable(deviceURL string, s *session.Session) {
	cfg, _, valid := s.Cache.SystemConfig()
	fmt.Printf("%s %s\n", bold(deviceURL), dash(cfg.Name))
	if !valid {
		fmt.Println(yellow("system config not yet discovered"))
	}

	switches := s.Cache.ValidSwitchIDs()
	if len(switches) > 0 {
		t := cli.NewTable("SWITCH", "OUTPUT", "APOWER", "ENERGY")
		for _, id := range switches {
			st, _, ok := s.Cache.SwitchStatus(id)
			if !ok {
				continue
			}
			t.Row(fmt.Sprintf("%d", id), onOff(st.Output), fmt.Sprintf("%.1fW", st.APower), fmt.Sprintf("%.3fWh", st.Energy))
		}
		t.Flush()
	}

	inputs := s.Cache.ValidInputIDs()
	if len(inputs) > 0 {
		t := cli.NewTable("INPUT", "STATE")
		for _, id := range inputs {
			st, _, ok := s.Cache.InputStatus(id)
			if !ok {
				continue
			}
			t.Row(fmt.Sprintf("%d", id), onOff(st.State))
		}
		t.Flush()
	}
}

func onOff(b bool) string {
	if b {
		return green("on")
	}
	return red("off")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
