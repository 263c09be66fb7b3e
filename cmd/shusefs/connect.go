package main

import (
	"context"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/session"
	"github.com/shusefs/shusefs/pkg/shelly/transport"
)

// oneShot dials deviceURL, runs the discovery window, then drives the
// transport's network task for app.timeout (or until ready returns
// true, if given) before cancelling and returning. It is the shared
// connect-poll-disconnect shape behind status/health/switch: those
// commands need one fresh snapshot, not a long-lived mount.
func oneShot(deviceURL string, ready func(*session.Session) bool) (*session.Session, error) {
	s := session.NewSession()
	cfg := transport.Config{
		URL:        deviceURL,
		Username:   app.username,
		Password:   app.password,
		MinBackoff: time.Duration(app.settings.GetReconnectMinBackoffMS()) * time.Millisecond,
		MaxBackoff: time.Duration(app.settings.GetReconnectMaxBackoffMS()) * time.Millisecond,
	}
	t := transport.New(cfg, s)

	ctx, cancel := context.WithTimeout(context.Background(), app.timeout)
	defer cancel()

	if err := t.Connect(ctx); err != nil {
		return nil, err
	}
	if errs := s.Discover(); len(errs) > 0 {
		return nil, errs[0]
	}

	done := make(chan error, 1)
	go func() { done <- t.Run(ctx) }()
	defer t.Close()

	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()
	for {
		if ready != nil && ready(s) {
			cancel()
			<-done
			return s, nil
		}
		select {
		case <-ctx.Done():
			<-done
			return s, nil
		case <-poll.C:
		}
	}
}
