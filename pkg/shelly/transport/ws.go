// Package transport owns the single WebSocket connection to a Shelly
// Gen2+ device: dialing, reconnect backoff, the per-tick network task
// described in spec.md §5 (poll, dispatch through the session, drain
// and send queued requests, periodic sweep_timeouts), and transparent
// HTTP-digest-style auth retry (auth.go). Nothing here owns protocol
// semantics — that's pkg/shelly/session; the transport only moves bytes
// and keeps the link up.
package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/shusefs/shusefs/pkg/shelly/session"
	"github.com/shusefs/shusefs/pkg/util"
)

// tickInterval is the network task's poll period (spec.md §5: "Per
// tick (≈1s)").
const tickInterval = time.Second

// sweepEvery is the number of ticks between sweep_timeouts calls
// (spec.md §5: "every ~10 ticks").
const sweepEvery = 10

// Config configures one Transport.
type Config struct {
	// URL is the device's ws:// or wss:// RPC endpoint.
	URL string

	// Username/Password enable transparent digest-auth retry on a 401
	// challenge. Username defaults to "admin" (the device's fixed RPC
	// user) when Password is set and Username is empty.
	Username string
	Password string

	// MinBackoff/MaxBackoff bound reconnect backoff between dial
	// attempts (pkg/settings.GetReconnectMinBackoffMS/MaxBackoffMS).
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Transport drives the network task for one Session against one
// device. It owns the WebSocket connection and reconnects with
// exponential backoff on loss; it does not interpret JSON-RPC payloads
// beyond what's needed to retry a digest challenge.
type Transport struct {
	cfg     Config
	session *session.Session
	conn    *websocket.Conn
}

// New creates a Transport bound to session s. Connect must be called
// before Run.
func New(cfg Config, s *session.Session) *Transport {
	return &Transport{cfg: cfg, session: s}
}

// Connect dials the device once, without retry. Run should be used for
// a self-healing long-lived session; Connect is exposed separately so
// callers (tests, `shusefs status`) can do a single attempt.
func (t *Transport) Connect(ctx context.Context) error {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return fmt.Errorf("parsing device URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", t.cfg.URL, err)
	}
	t.conn = conn
	return nil
}

// Close closes the underlying connection, if any.
func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *Transport) reconnectBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.MinBackoff
	b.MaxInterval = t.cfg.MaxBackoff
	b.MaxElapsedTime = 0 // retry forever; Run only gives up on ctx cancellation
	return b
}

// Run drives the network task until ctx is cancelled (spec.md §9
// "Cooperative shutdown": a cancellation token observed by the network
// loop). It reconnects with exponential backoff whenever the
// connection drops, and on each (re)connect issues the discovery
// window via session.Discover.
func (t *Transport) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if t.conn == nil {
			if err := t.dialWithBackoff(ctx); err != nil {
				return err // only returns on ctx cancellation
			}
			if errs := t.session.Discover(); len(errs) > 0 {
				for _, e := range errs {
					util.WithDevice(t.cfg.URL).WithError(e).Warn("shelly: discovery request failed")
				}
			}
		}

		if err := t.runTicks(ctx); err != nil {
			util.WithDevice(t.cfg.URL).WithError(err).Warn("shelly: connection lost, reconnecting")
			_ = t.Close()
			continue
		}
		return nil // ctx cancelled cleanly mid-tick-loop
	}
}

func (t *Transport) dialWithBackoff(ctx context.Context) error {
	return backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		err := t.Connect(ctx)
		if err != nil {
			util.WithDevice(t.cfg.URL).WithError(err).Warn("shelly: dial failed, backing off")
		}
		return err
	}, backoff.WithContext(t.reconnectBackoff(), ctx))
}

// runTicks runs the poll/dispatch/drain/sweep loop until the connection
// drops or ctx is cancelled.
func (t *Transport) runTicks(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick++
			if err := t.pollOnce(); err != nil {
				return err
			}
			if err := t.drainQueued(); err != nil {
				return err
			}
			if tick%sweepEvery == 0 {
				if timedOut := t.session.SweepTimeouts(time.Now()); len(timedOut) > 0 {
					util.WithField("ids", timedOut).Warn("shelly: requests timed out")
				}
			}
		}
	}
}

// pollOnce drains every currently-available inbound frame without
// blocking past a short read deadline, dispatching each through the
// session. A 401 digest challenge is intercepted here and answered
// with a transparent retry (auth.go) before the session ever sees it,
// per the supplemented digest-auth feature: C1-C5 only ever observe the
// eventual real response.
func (t *Transport) pollOnce() error {
	if t.conn == nil {
		return fmt.Errorf("shelly: not connected")
	}
	_ = t.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("shelly: connection closed: %w", err)
			}
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				return nil // no more frames ready this tick
			}
			return fmt.Errorf("shelly: read failed: %w", err)
		}

		if t.cfg.Password != "" && t.handleChallenge(data) {
			continue
		}

		if err := t.session.HandleFrame(data, time.Now()); err != nil {
			util.WithDevice(t.cfg.URL).WithError(err).Warn("shelly: dropping unparseable frame")
		}
	}
}

// handleChallenge inspects one inbound frame; if it is a 401 digest
// challenge for a request still PENDING in the table, it resends that
// request with an "auth" object and returns true (the challenge frame
// is swallowed, not passed to the session). Otherwise it returns false
// and the caller dispatches the frame normally.
func (t *Transport) handleChallenge(data []byte) bool {
	frame, err := session.ClassifyFrame(data)
	if err != nil || frame.Kind != session.FrameResponse || frame.Error == nil || frame.Error.Code != 401 {
		return false
	}

	entry, ok := t.session.Table.RequestOf(uint64(frame.ID))
	if !ok {
		return false
	}

	challenge, err := parseAuthChallenge(frame.Error.Message)
	if err != nil {
		util.WithField("id", frame.ID).WithError(err).Warn("shelly: malformed digest challenge")
		return true
	}

	username := t.cfg.Username
	if username == "" {
		username = "admin"
	}
	auth := computeDigestAuth(challenge, username, t.cfg.Password, rand.Int63())

	retried, err := injectAuth(entry.Request, auth)
	if err != nil {
		util.WithField("id", frame.ID).WithError(err).Warn("shelly: building digest retry")
		return true
	}

	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(retried)); err != nil {
		util.WithField("id", frame.ID).WithError(err).Warn("shelly: resending with digest auth")
	}
	return true
}

// drainQueued sends every currently QUEUED request; each is marked
// PENDING as it is taken, before the send. On send failure it stops for this tick (spec.md
// §5: "on send failure, break — back off") and reports the error so the
// caller reconnects.
func (t *Transport) drainQueued() error {
	for {
		id, payload, ok := t.session.NextOutbound()
		if !ok {
			return nil
		}
		if err := t.send(payload); err != nil {
			return fmt.Errorf("shelly: sending request %d: %w", id, err)
		}
	}
}

func (t *Transport) send(payload string) error {
	if t.conn == nil {
		return fmt.Errorf("shelly: not connected")
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(payload))
}
