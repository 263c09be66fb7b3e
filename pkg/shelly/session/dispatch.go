package session

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/model"
	"github.com/shusefs/shusefs/pkg/util"
)

// Dispatcher is the method dispatcher (C3): it routes a classified
// Frame to the cache update it implies. It never does network I/O and
// never holds Table's or Cache's mutex across the other's call (spec.md
// §3, §5 "coarse-mutex concurrency model").
type Dispatcher struct {
	table   *Table
	cache   *Cache
	intents *Intents
}

// NewDispatcher builds a dispatcher over an existing pending-request
// table and device-state cache. SetIntents must be called before the
// first response arrives, so the dispatcher can issue the follow-up
// requests some responses and notifications chain.
func NewDispatcher(table *Table, cache *Cache) *Dispatcher {
	return &Dispatcher{table: table, cache: cache}
}

// SetIntents wires the RPC intention layer into the dispatcher, used
// to chain successive Script.GetCode chunk requests (spec.md §4.5), the
// GetConfig/List refresh after a SET, the GetStatus confirmation after
// Switch.Set, and the config refresh after a config_changed event.
func (d *Dispatcher) SetIntents(intents *Intents) {
	d.intents = intents
}

// DispatchResponse handles a solicited response frame: it looks up the
// original request's method by id, completes the pending-request entry,
// and — for the methods the cache cares about — applies the result to
// C4. An id with no matching entry is logged and dropped rather than
// treated as fatal (spec.md §4.1: late/duplicate responses are
// possible after a timeout has already fired).
func (d *Dispatcher) DispatchResponse(f Frame, now time.Time) {
	entry, ok := d.table.RequestOf(uint64(f.ID))
	if !ok {
		util.WithField("id", f.ID).Debug("shelly: response for unknown request id, dropping")
		return
	}

	if f.IsError() {
		if err := d.table.failEntry(uint64(f.ID), f.Error); err != nil {
			util.WithField("id", f.ID).WithError(err).Debug("shelly: failing already-resolved request")
		}
		return
	}

	if err := d.table.Complete(uint64(f.ID), string(f.Result)); err != nil {
		util.WithField("id", f.ID).WithError(err).Debug("shelly: completing already-resolved request")
	}

	d.applyResult(entry.Method, uint64(f.ID), f.Result, now)
}

// applyResult routes a successful response's result payload to the
// cache update implied by the method it answers, using a tagged-variant
// dispatch over the method name rather than substring matching (spec.md
// §9 design note: method names are opaque tokens, not structured paths
// to parse).
func (d *Dispatcher) applyResult(method string, reqID uint64, result json.RawMessage, now time.Time) {
	switch method {
	case "Sys.GetConfig":
		if err := d.cache.SetSystemConfig(result, now); err != nil {
			util.Logger.WithError(err).Warn("shelly: caching system config")
		}
	case "Sys.SetConfig":
		// A SetConfig result is {"restart_required":bool}, not the
		// config itself (spec.md §4.3) — pull the canonical view instead
		// of caching the set result.
		d.refreshAfterSet("Sys.SetConfig", func() (uint64, error) { return d.intents.RefreshSystemConfig() })
	case "MQTT.GetConfig":
		if err := d.cache.SetMQTTConfig(result, now); err != nil {
			util.Logger.WithError(err).Warn("shelly: caching MQTT config")
		}
	case "MQTT.SetConfig":
		d.refreshAfterSet("MQTT.SetConfig", func() (uint64, error) { return d.intents.RefreshMQTTConfig() })
	case "Schedule.List":
		var wire struct {
			Jobs []scheduleListWire `json:"jobs"`
		}
		if err := json.Unmarshal(result, &wire); err != nil {
			util.Logger.WithError(err).Warn("shelly: parsing Schedule.List result")
			return
		}
		if err := d.cache.SetScheduleList(schedulesFromWire(wire.Jobs), now); err != nil {
			util.Logger.WithError(err).Warn("shelly: caching schedule list")
		}
	case "Schedule.Create", "Schedule.Update", "Schedule.Delete":
		// Always refresh the full list rather than patch the cache
		// locally: Schedule.Create returns a device-assigned id, and
		// the refreshed list is what the next crontab write is diffed
		// against (spec.md §4.3, §8).
		d.refreshAfterSet(method, func() (uint64, error) { return d.intents.RefreshSchedules() })
	case "Script.List":
		var wire struct {
			Scripts []scriptListWire `json:"scripts"`
		}
		if err := json.Unmarshal(result, &wire); err != nil {
			util.Logger.WithError(err).Warn("shelly: parsing Script.List result")
			return
		}
		if err := d.cache.SetScriptList(wire.Scripts, now); err != nil {
			util.Logger.WithError(err).Warn("shelly: caching script list")
		}
	default:
		d.applyInstanceMethod(method, reqID, result, now)
	}
}

// refreshAfterSet issues the GetConfig/List follow-up a successful SET
// response requires (spec.md §4.3: a SET result is not the canonical
// config and must never be cached directly). label is the method name
// the caller just handled, used only for the warning log.
func (d *Dispatcher) refreshAfterSet(label string, refresh func() (uint64, error)) {
	if d.intents == nil {
		util.WithField("method", label).Warn("shelly: set succeeded but no intents wired to refresh")
		return
	}
	if _, err := refresh(); err != nil {
		util.WithField("method", label).WithError(err).Warn("shelly: refreshing after set")
	}
}

// applyInstanceMethod handles the Switch.*/Input.*/Script.GetCode
// family, all of which are parameterised by a numeric instance id that
// JSON-RPC responses do not carry. The RPC intention layer (C5) tags the
// cached Method string with it ("Switch.GetConfig#0"), and
// splitInstanceMethod recovers the class and id here.
func (d *Dispatcher) applyInstanceMethod(method string, reqID uint64, result json.RawMessage, now time.Time) {
	class, id, ok := splitInstanceMethod(method)
	if !ok {
		util.WithField("method", method).Debug("shelly: unrecognised response method")
		return
	}
	switch class {
	case "Switch.GetConfig":
		if err := d.cache.SetSwitchConfig(id, result, now); err != nil {
			util.Logger.WithError(err).Warn("shelly: caching switch config")
		}
	case "Switch.SetConfig":
		d.refreshAfterSet("Switch.SetConfig", func() (uint64, error) { return d.intents.RefreshSwitchConfig(id) })
	case "Switch.GetStatus":
		if err := d.cache.ApplySwitchStatus(id, result, now); err != nil {
			util.Logger.WithError(err).Warn("shelly: applying switch status")
		}
	case "Switch.Set":
		if err := d.cache.ApplySwitchStatus(id, result, now); err != nil {
			util.Logger.WithError(err).Warn("shelly: applying switch status")
		}
		// Spec §4.3: also enqueue an explicit GetStatus to confirm the
		// change, beyond the status already embedded in the Set result.
		if d.intents == nil {
			util.WithField("id", id).Warn("shelly: Switch.Set confirmed but no intents wired to refresh status")
			break
		}
		if _, err := d.intents.RefreshSwitchStatus(id); err != nil {
			util.Logger.WithError(err).Warn("shelly: confirming switch status after Set")
		}
	case "Input.GetConfig":
		if err := d.cache.SetInputConfig(id, result, now); err != nil {
			util.Logger.WithError(err).Warn("shelly: caching input config")
		}
	case "Input.SetConfig":
		d.refreshAfterSet("Input.SetConfig", func() (uint64, error) { return d.intents.RefreshInputConfig(id) })
	case "Input.GetStatus":
		if err := d.cache.ApplyInputStatus(id, result, now); err != nil {
			util.Logger.WithError(err).Warn("shelly: applying input status")
		}
	case "Script.GetCode":
		d.applyScriptCodeChunk(id, result, now)
	case "Script.PutCode":
		d.cache.CompleteScriptUpload(id, reqID, now)
	}
}

// scriptCodeChunkWire is a Script.GetCode response: the chunk's bytes
// and how many bytes remain beyond this chunk.
type scriptCodeChunkWire struct {
	Data string `json:"data"`
	Left int    `json:"left"`
}

// applyScriptCodeChunk appends one retrieved chunk to the cursor and,
// if more remains, chains the next Script.GetCode request itself
// (spec.md §4.5: chunked transfer is driven to completion without the
// filesystem adaptor having to pump it manually).
func (d *Dispatcher) applyScriptCodeChunk(id int, result json.RawMessage, now time.Time) {
	var wire scriptCodeChunkWire
	if err := json.Unmarshal(result, &wire); err != nil {
		util.Logger.WithError(err).Warn("shelly: parsing Script.GetCode result")
		return
	}
	if err := d.cache.AppendScriptChunk(id, []byte(wire.Data)); err != nil {
		util.Logger.WithError(err).Warn("shelly: appending script code chunk")
		return
	}
	if wire.Left <= 0 {
		if _, err := d.cache.FinishScriptRead(id, now); err != nil {
			util.Logger.WithError(err).Warn("shelly: finishing script code read")
		}
		return
	}
	if d.intents == nil {
		util.WithField("id", id).Warn("shelly: script code chunk left but no intents wired to continue")
		return
	}
	offset := d.cache.CursorOffset()
	if _, err := d.intents.ContinueScriptCodeFetch(id, offset); err != nil {
		util.Logger.WithError(err).Warn("shelly: continuing script code fetch")
	}
}

// splitInstanceMethod recovers the (class, instance id) pair the RPC
// intention layer embeds into a Table entry's cached Method string (see
// rpc.go's instanceMethod), e.g. "Switch.GetConfig#0" -> ("Switch.GetConfig", 0).
func splitInstanceMethod(method string) (class string, id int, ok bool) {
	class, idStr, found := strings.Cut(method, "#")
	if !found {
		return "", 0, false
	}
	n, err := strconv.Atoi(idStr)
	if err != nil {
		return "", 0, false
	}
	return class, n, true
}

// DispatchNotification handles a device-initiated notification frame
// (spec.md §4.3). NotifyStatus carries partial component updates that
// must flow through the selective update algorithm exactly like a
// GetStatus response; NotifyEvent's config_changed variant immediately
// re-issues GetConfig for every config class (see applyEventNotification).
func (d *Dispatcher) DispatchNotification(f Frame, now time.Time) {
	switch f.Method {
	case "NotifyStatus":
		d.applyStatusNotification(f.Params, now)
	case "NotifyEvent":
		d.applyEventNotification(f.Params, now)
	default:
		util.WithField("method", f.Method).Debug("shelly: unrecognised notification method")
	}
}

func (d *Dispatcher) applyStatusNotification(params json.RawMessage, now time.Time) {
	var components map[string]json.RawMessage
	if err := json.Unmarshal(params, &components); err != nil {
		util.Logger.WithError(err).Warn("shelly: parsing NotifyStatus params")
		return
	}
	for key, raw := range components {
		class, id, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		switch class {
		case "switch":
			d.cache.EnsureSwitchSlot(idx)
			if err := d.cache.ApplySwitchStatus(idx, raw, now); err != nil {
				util.Logger.WithError(err).Warn("shelly: applying switch status notification")
			}
		case "input":
			d.cache.EnsureInputSlot(idx)
			if err := d.cache.ApplyInputStatus(idx, raw, now); err != nil {
				util.Logger.WithError(err).Warn("shelly: applying input status notification")
			}
		}
	}
}

// configChangedEvent is the subset of a NotifyEvent `events[]` entry
// this dispatcher reacts to.
type configChangedEvent struct {
	Event string `json:"event"`
}

// applyEventNotification inspects a NotifyEvent's events[] for
// config_changed. Each such event re-issues GetConfig for system, MQTT
// and every valid switch and input via RefreshAllConfigs; the event's
// component is not inspected, so a change to one class also refreshes
// all the others.
func (d *Dispatcher) applyEventNotification(params json.RawMessage, now time.Time) {
	var wire struct {
		Events []configChangedEvent `json:"events"`
	}
	if err := json.Unmarshal(params, &wire); err != nil {
		util.Logger.WithError(err).Warn("shelly: parsing NotifyEvent params")
		return
	}
	for _, e := range wire.Events {
		if e.Event != "config_changed" {
			continue
		}
		if d.intents == nil {
			util.Logger.Warn("shelly: config_changed event received but no intents wired to refresh")
			continue
		}
		for _, err := range d.intents.RefreshAllConfigs() {
			util.Logger.WithError(err).Warn("shelly: refreshing config after config_changed event")
		}
	}
}

type scheduleListWire struct {
	ID       int                  `json:"id"`
	Enable   bool                 `json:"enable"`
	Timespec string               `json:"timespec"`
	Calls    []scheduleCallWire   `json:"calls"`
}

type scheduleCallWire struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func schedulesFromWire(jobs []scheduleListWire) []model.Schedule {
	out := make([]model.Schedule, 0, len(jobs))
	for _, j := range jobs {
		calls := make([]model.ScheduleCall, 0, len(j.Calls))
		for _, c := range j.Calls {
			calls = append(calls, model.ScheduleCall{Method: c.Method, Params: c.Params})
		}
		out = append(out, model.Schedule{
			ID:       j.ID,
			Enable:   j.Enable,
			Timespec: j.Timespec,
			Calls:    calls,
		})
	}
	return out
}
