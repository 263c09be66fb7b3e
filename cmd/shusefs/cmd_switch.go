package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shusefs/shusefs/pkg/audit"
	"github.com/shusefs/shusefs/pkg/shelly/session"
)

var switchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Switch instance operations",
	Long: `Operate on a device's switch instances.

Examples:
  shusefs switch set ws://shellyplus1-a1b2c3.local/rpc 0 on
  shusefs switch set ws://shellyplus1-a1b2c3.local/rpc 0 off`,
}

var switchSetCmd = &cobra.Command{
	Use:   "set <device-url> <id> on|off",
	Short: "Set a switch instance's output",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceURL := args[0]
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid switch id %q: %w", args[1], err)
		}
		on, err := parseOnOff(args[2])
		if err != nil {
			return err
		}

		var reqID uint64
		var setErr error
		s, err := oneShot(deviceURL, func(s *session.Session) bool {
			if reqID == 0 && setErr == nil {
				reqID, setErr = s.Intents.SetSwitchOutput(id, on)
			}
			if setErr != nil {
				return true
			}
			entry, ok := s.Table.RequestOf(reqID)
			return !ok || entry.State == session.StateCompleted || entry.State == session.StateError
		})

		event := audit.NewEvent(deviceURL, "Switch.Set", reqID).WithParams(mustJSON(map[string]any{"id": id, "on": on}))
		if err != nil {
			event.WithError(err)
		} else if setErr != nil {
			event.WithError(setErr)
		} else {
			event.WithSuccess()
		}
		_ = audit.Log(event)

		if err != nil {
			return fmt.Errorf("connecting to %s: %w", deviceURL, err)
		}
		if setErr != nil {
			return fmt.Errorf("setting switch %d: %w", id, setErr)
		}

		st, _, ok := s.Cache.SwitchStatus(id)
		if ok {
			fmt.Printf("switch %d: %s\n", id, onOff(st.Output))
		} else {
			fmt.Printf("switch %d: request sent\n", id)
		}
		return nil
	},
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on|off, got %q", s)
	}
}

func init() {
	switchCmd.AddCommand(switchSetCmd)
}
