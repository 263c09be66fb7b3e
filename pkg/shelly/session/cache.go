// Package session implements the device session: the pending-request
// table (C1), frame classifier (C2), method dispatcher (C3),
// device-state cache (C4), and RPC intention layer (C5) described in
// spec.md. Everything here is pure state and protocol logic — no
// WebSocket I/O happens in this package (see pkg/shelly/transport) and
// no kernel filesystem calls happen here either (see pkg/fsadaptor).
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

// SwitchMtimes holds the per-field modification time for one switch's
// status, so a filesystem watcher can tell exactly which status field
// last changed (spec.md §3, §4.4).
type SwitchMtimes struct {
	Output      time.Time
	Source      time.Time
	APower      time.Time
	Voltage     time.Time
	Current     time.Time
	Frequency   time.Time
	Energy      time.Time
	RetEnergy   time.Time
	TempC       time.Time
	TempF       time.Time
	Overtemp    time.Time
}

// InputMtimes holds the per-field modification time for one input's
// status.
type InputMtimes struct {
	State time.Time
}

type switchSlot struct {
	valid bool

	cfg        model.SwitchConfig
	cfgRaw     json.RawMessage
	cfgUpdated time.Time

	status model.SwitchStatus
	mtimes SwitchMtimes
	// statusRaw is the most recent full status response body, kept for
	// diagnostics/inspection; the selective-update algorithm compares
	// against the parsed `status` fields, not against this blob.
	statusRaw json.RawMessage
}

type inputSlot struct {
	valid bool

	cfg        model.InputConfig
	cfgRaw     json.RawMessage
	cfgUpdated time.Time

	status model.InputStatus
	mtimes InputMtimes
}

type scriptSlot struct {
	valid bool

	ID      int
	Name    string
	Enable  bool
	Code    []byte
	Created time.Time
	Modified time.Time

	// Runtime status. Running is taken from Script.List; no handler
	// fills in MemUsed, MemPeak or Errors.
	Running bool
	MemUsed int
	MemPeak int
	Errors  []string

	// LastUploadReqID is the id of the final chunk of the most recent
	// Script.PutCode upload; the dispatcher recognises upload completion
	// by matching a response id against this value (spec.md §4.3).
	LastUploadReqID uint64
}

// scriptCursor is the single retrieval cursor shared across all scripts
// (spec.md §3: "A single retrieval cursor spans all scripts").
type scriptCursor struct {
	scriptID int // -1 if none in progress
	offset   int
	buffer   []byte
}

type systemEntry struct {
	valid   bool
	cfg     model.SystemConfig
	updated time.Time
}

type mqttEntry struct {
	valid   bool
	cfg     model.MQTTConfig
	updated time.Time
}

type scheduleEntry struct {
	list     []model.Schedule
	revision int
	updated  time.Time
}

// Cache is the thread-safe device-state cache (C4). One coarse mutex
// guards the whole tree, per spec.md §3: "Holding this mutex must NOT
// be combined with blocking network I/O; all outbound RPC construction
// happens outside the critical section." Every exported method here
// returns copies, never pointers into the cache's internals, so callers
// can't accidentally mutate state outside a lock.
type Cache struct {
	mu sync.RWMutex

	system systemEntry
	mqtt   mqttEntry

	switches [model.MaxSwitches]switchSlot
	inputs   [model.MaxInputs]inputSlot
	scripts  [model.MaxScripts]scriptSlot
	cursor   scriptCursor

	schedules scheduleEntry
}

// NewCache creates an empty device-state cache.
func NewCache() *Cache {
	return &Cache{
		cursor: scriptCursor{scriptID: -1},
	}
}
