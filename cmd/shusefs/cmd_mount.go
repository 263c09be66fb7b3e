package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shusefs/shusefs/pkg/fsadaptor"
	"github.com/shusefs/shusefs/pkg/shelly/mqttmirror"
	"github.com/shusefs/shusefs/pkg/shelly/session"
	"github.com/shusefs/shusefs/pkg/shelly/transport"
	"github.com/shusefs/shusefs/pkg/util"
)

var mqttBrokerURL string
var mqttTopicPrefix string

var mountCmd = &cobra.Command{
	Use:   "mount <device-url> <mount-point>",
	Short: "Mount a device as a FUSE filesystem",
	Long: `Mount opens a single JSON-RPC 2.0 WebSocket session to the device,
runs the discovery window, and mounts the config/proc file tree at
<mount-point>. It runs until interrupted (SIGINT/SIGTERM), at which
point it unmounts and closes the connection cleanly.

Examples:
  shusefs mount ws://shellyplus1-a1b2c3.local/rpc /mnt/shelly
  shusefs mount -u admin -p secret ws://192.168.1.50/rpc /mnt/shelly`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceURL, mountPoint := args[0], args[1]

		s := session.NewSession()
		cfg := transport.Config{
			URL:        deviceURL,
			Username:   app.username,
			Password:   app.password,
			MinBackoff: time.Duration(app.settings.GetReconnectMinBackoffMS()) * time.Millisecond,
			MaxBackoff: time.Duration(app.settings.GetReconnectMaxBackoffMS()) * time.Millisecond,
		}
		t := transport.New(cfg, s)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := t.Connect(ctx); err != nil {
			return fmt.Errorf("connecting to %s: %w", deviceURL, err)
		}
		if errs := s.Discover(); len(errs) > 0 {
			util.WithDevice(deviceURL).WithField("errors", errs).Warn("shusefs: discovery window had failures")
		}

		var mirror *mqttmirror.Mirror
		if app.settings.MQTTMirrorEnabled && mqttBrokerURL != "" {
			mirror = mqttmirror.New(mqttBrokerURL, mqttTopicPrefix, s.Cache)
			if err := mirror.Start(true, true); err != nil {
				util.Logger.WithError(err).Warn("shusefs: MQTT mirror failed to start, continuing without it")
				mirror = nil
			} else {
				defer mirror.Stop()
			}
		}

		fs := fsadaptor.New(s, deviceURL)
		mfs, err := fsadaptor.Mount(mountPoint, fs)
		if err != nil {
			return fmt.Errorf("mounting at %s: %w", mountPoint, err)
		}

		runErr := make(chan error, 1)
		go func() { runErr <- t.Run(ctx) }()

		joinErr := make(chan error, 1)
		go func() { joinErr <- mfs.Join(context.Background()) }()

		fmt.Printf("%s mounted at %s (Ctrl-C to stop)\n", deviceURL, mountPoint)

		app.settings.LastMountPoint = mountPoint
		if err := app.settings.Save(); err != nil {
			util.Logger.WithError(err).Debug("shusefs: could not persist last mount point")
		}

		<-ctx.Done()
		fmt.Println("\nunmounting...")

		if err := fsadaptor.Unmount(mountPoint); err != nil {
			util.Logger.WithError(err).Warn("shusefs: unmount failed")
		}
		<-joinErr
		<-runErr
		return t.Close()
	},
}

func init() {
	mountCmd.Flags().StringVar(&mqttBrokerURL, "mqtt-broker", "", "MQTT broker URL for the status mirror (e.g. tcp://broker:1883)")
	mountCmd.Flags().StringVar(&mqttTopicPrefix, "mqtt-prefix", "shellies/device", "MQTT topic prefix to subscribe under")
}
