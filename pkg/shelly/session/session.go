package session

import (
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/model"
	"github.com/shusefs/shusefs/pkg/util"
)

// Session wires the pending-request table (C1), frame classifier (C2),
// dispatcher (C3), device-state cache (C4) and RPC intention layer (C5)
// into the single object the transport and filesystem adaptor talk to.
// Session itself does no network I/O (spec.md §3): the transport pulls
// outbound payloads via NextOutbound and feeds inbound frames via
// HandleFrame.
type Session struct {
	Table      *Table
	Cache      *Cache
	Dispatcher *Dispatcher
	Intents    *Intents
}

// NewSession builds an empty session: no requests pending, no cached
// state, ready to discover a freshly connected device.
func NewSession() *Session {
	table := NewTable()
	cache := NewCache()
	dispatcher := NewDispatcher(table, cache)
	intents := NewIntents(table, cache)
	dispatcher.SetIntents(intents)
	return &Session{
		Table:      table,
		Cache:      cache,
		Dispatcher: dispatcher,
		Intents:    intents,
	}
}

// NextOutbound drains the oldest QUEUED request, marks it PENDING, and
// returns its wire payload for the transport to send. ok is false when
// nothing is queued.
func (s *Session) NextOutbound() (id uint64, payload string, ok bool) {
	id, payload, ok = s.Table.TakeNextQueued()
	if !ok {
		return 0, "", false
	}
	if err := s.Table.MarkSent(id); err != nil {
		util.WithField("id", id).WithError(err).Warn("shelly: marking request sent")
	}
	return id, payload, true
}

// HandleFrame classifies one inbound wire message and dispatches it,
// using now as the cache's update timestamp.
func (s *Session) HandleFrame(raw []byte, now time.Time) error {
	frame, err := ClassifyFrame(raw)
	if err != nil {
		return err
	}
	switch frame.Kind {
	case FrameResponse:
		s.Dispatcher.DispatchResponse(frame, now)
	case FrameNotification:
		s.Dispatcher.DispatchNotification(frame, now)
	}
	return nil
}

// SweepTimeouts ages out any request that has been PENDING longer than
// RequestTimeout and releases it, returning the timed-out ids for the
// caller to log.
func (s *Session) SweepTimeouts(now time.Time) []uint64 {
	timedOut := s.Table.SweepTimeouts(now)
	for _, id := range timedOut {
		s.Table.Release(id)
	}
	return timedOut
}

// Discover issues the connect-time discovery window: GetConfig and
// GetStatus for switch/input instances 0..DiscoveryWindow-1, plus
// system config, MQTT config, the script roster and the schedule list
// (spec.md §9 design note: only this window is probed eagerly; higher
// instance ids are discovered later, from notifications, via
// Dispatcher.applyStatusNotification's EnsureSwitchSlot/EnsureInputSlot
// calls).
func (s *Session) Discover() []error {
	var errs []error
	try := func(_ uint64, err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	try(s.Intents.RefreshSystemConfig())
	try(s.Intents.RefreshMQTTConfig())
	try(s.Intents.ListScripts())
	try(s.Intents.RefreshSchedules())

	for id := 0; id < model.DiscoveryWindow; id++ {
		s.Cache.EnsureSwitchSlot(id)
		try(s.Intents.RefreshSwitchConfig(id))
		try(s.Intents.RefreshSwitchStatus(id))

		s.Cache.EnsureInputSlot(id)
		try(s.Intents.RefreshInputConfig(id))
		try(s.Intents.RefreshInputStatus(id))
	}

	return errs
}
