package session

import (
	"encoding/json"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

type switchConfigWire struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	InMode       string  `json:"in_mode"`
	InputLocked  bool    `json:"input_mode_locked"`
	InitialState string  `json:"initial_state"`
	AutoOn       bool    `json:"auto_on"`
	AutoOnDelay  float64 `json:"auto_on_delay"`
	AutoOff      bool    `json:"auto_off"`
	AutoOffDelay float64 `json:"auto_off_delay"`
	PowerLimit   float64 `json:"power_limit"`
	VoltageLimit float64 `json:"voltage_limit"`
	CurrentLimit float64 `json:"current_limit"`
	AutoRecover  bool    `json:"autorecover_voltage_errors"`
}

// EnsureSwitchSlot marks slot id valid, allocating it for the first time
// if needed. Used both by the connect-time discovery window (ids
// 0..DiscoveryWindow-1) and by notification-driven discovery of a
// higher instance id (spec.md §9 design note). id must be within
// [0, model.MaxSwitches).
func (c *Cache) EnsureSwitchSlot(id int) bool {
	if id < 0 || id >= model.MaxSwitches {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switches[id].valid = true
	c.switches[id].cfg.ID = id
	c.switches[id].status.ID = id
	return true
}

// SetSwitchConfig replaces switch id's cached configuration wholesale
// (config GETs are not selective — only status is, per spec.md §4.4).
func (c *Cache) SetSwitchConfig(id int, raw json.RawMessage, now time.Time) error {
	if id < 0 || id >= model.MaxSwitches {
		return ErrUnknownInstance
	}
	var wire switchConfigWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	slot := &c.switches[id]
	slot.valid = true
	slot.cfg = model.SwitchConfig{
		ID:           id,
		Name:         wire.Name,
		InMode:       model.SwitchInMode(wire.InMode),
		InputLocked:  wire.InputLocked,
		InitialState: model.SwitchInitialState(wire.InitialState),
		AutoOn:       wire.AutoOn,
		AutoOnDelay:  wire.AutoOnDelay,
		AutoOff:      wire.AutoOff,
		AutoOffDelay: wire.AutoOffDelay,
		PowerLimit:   wire.PowerLimit,
		VoltageLimit: wire.VoltageLimit,
		CurrentLimit: wire.CurrentLimit,
		AutoRecover:  wire.AutoRecover,
	}
	slot.cfgRaw = raw
	slot.cfgUpdated = now
	return nil
}

// SwitchConfig returns a copy of switch id's cached configuration.
func (c *Cache) SwitchConfig(id int) (cfg model.SwitchConfig, raw json.RawMessage, updated time.Time, valid bool) {
	if id < 0 || id >= model.MaxSwitches {
		return model.SwitchConfig{}, nil, time.Time{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot := c.switches[id]
	return slot.cfg, slot.cfgRaw, slot.cfgUpdated, slot.valid
}

// partialSwitchStatus is the shape of a Switch.GetStatus result or a
// NotifyStatus `switch:N` payload: every field is optional, and only
// fields actually present in the JSON should be considered "reported"
// (spec.md §4.4 "selective status update").
type partialSwitchStatus struct {
	ID      *int     `json:"id"`
	Source  *string  `json:"source"`
	Output  *bool    `json:"output"`
	APower  *float64 `json:"apower"`
	Voltage *float64 `json:"voltage"`
	Current *float64 `json:"current"`
	Freq    *float64 `json:"freq"`
	AEnergy *struct {
		Total float64 `json:"total"`
	} `json:"aenergy"`
	RetAEnergy *struct {
		Total float64 `json:"total"`
	} `json:"ret_aenergy"`
	Temperature *struct {
		TC *float64 `json:"tC"`
		TF *float64 `json:"tF"`
	} `json:"temperature"`
	Overtemp *bool `json:"errors_overtemp"` // presence-based; absent means not reported
}

// ApplySwitchStatus runs the selective status update algorithm for
// switch id: for each field present in raw, compare to the cached
// value; if different, assign the new value and stamp that field's
// mtime with now. Fields absent from raw, or present but unchanged, are
// left untouched — in particular their mtime does NOT advance
// (spec.md §4.4, the cache's key testable property). Any in-range id
// not yet known is marked valid, so a new id counts as discovery rather
// than an error (spec.md §9); an id outside 0..MaxSwitches-1 returns
// ErrUnknownInstance, and a payload that is not valid JSON returns the
// parse error.
func (c *Cache) ApplySwitchStatus(id int, raw json.RawMessage, now time.Time) error {
	if id < 0 || id >= model.MaxSwitches {
		return ErrUnknownInstance
	}
	var p partialSwitchStatus
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	slot := &c.switches[id]
	slot.valid = true
	slot.cfg.ID = id
	slot.status.ID = id
	slot.statusRaw = raw

	st := &slot.status
	mt := &slot.mtimes

	if p.Source != nil && st.Source != *p.Source {
		st.Source = *p.Source
		mt.Source = now
	}
	if p.Output != nil && st.Output != *p.Output {
		st.Output = *p.Output
		mt.Output = now
	}
	if p.APower != nil && st.APower != *p.APower {
		st.APower = *p.APower
		mt.APower = now
	}
	if p.Voltage != nil && st.Voltage != *p.Voltage {
		st.Voltage = *p.Voltage
		mt.Voltage = now
	}
	if p.Current != nil && st.Current != *p.Current {
		st.Current = *p.Current
		mt.Current = now
	}
	if p.Freq != nil && st.Frequency != *p.Freq {
		st.Frequency = *p.Freq
		mt.Frequency = now
	}
	if p.AEnergy != nil && st.Energy != p.AEnergy.Total {
		st.Energy = p.AEnergy.Total
		mt.Energy = now
	}
	if p.RetAEnergy != nil && st.ReturnedEnergy != p.RetAEnergy.Total {
		st.ReturnedEnergy = p.RetAEnergy.Total
		mt.RetEnergy = now
	}
	if p.Temperature != nil {
		if p.Temperature.TC != nil && st.TemperatureC != *p.Temperature.TC {
			st.TemperatureC = *p.Temperature.TC
			mt.TempC = now
		}
		if p.Temperature.TF != nil && st.TemperatureF != *p.Temperature.TF {
			st.TemperatureF = *p.Temperature.TF
			mt.TempF = now
		}
	}
	if p.Overtemp != nil && st.Overtemp != *p.Overtemp {
		st.Overtemp = *p.Overtemp
		mt.Overtemp = now
	}

	return nil
}

// SwitchStatus returns a copy of switch id's cached status and its
// per-field mtimes.
func (c *Cache) SwitchStatus(id int) (status model.SwitchStatus, mtimes SwitchMtimes, valid bool) {
	if id < 0 || id >= model.MaxSwitches {
		return model.SwitchStatus{}, SwitchMtimes{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot := c.switches[id]
	return slot.status, slot.mtimes, slot.valid
}

// ValidSwitchIDs returns the ids of all known (discovered) switch slots,
// in ascending order.
func (c *Cache) ValidSwitchIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []int
	for i, s := range c.switches {
		if s.valid {
			ids = append(ids, i)
		}
	}
	return ids
}

// SetSwitchOutput applies the post-Switch.Set status embedded in the
// response body, exactly as if it were a GetStatus result (spec.md
// §4.3: "the device's response body contains the post-change status").
func (c *Cache) SetSwitchOutput(id int, raw json.RawMessage, now time.Time) error {
	return c.ApplySwitchStatus(id, raw, now)
}
