package session

import (
	"encoding/json"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

type inputConfigWire struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Enable       bool   `json:"enable"`
	Invert       bool   `json:"invert"`
	FactoryReset bool   `json:"factory_reset"`
}

// EnsureInputSlot marks input slot id valid, allocating it the first
// time it is referenced. Mirrors EnsureSwitchSlot.
func (c *Cache) EnsureInputSlot(id int) bool {
	if id < 0 || id >= model.MaxInputs {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs[id].valid = true
	c.inputs[id].cfg.ID = id
	c.inputs[id].status.ID = id
	return true
}

// SetInputConfig replaces input id's cached configuration wholesale.
func (c *Cache) SetInputConfig(id int, raw json.RawMessage, now time.Time) error {
	if id < 0 || id >= model.MaxInputs {
		return ErrUnknownInstance
	}
	var wire inputConfigWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	slot := &c.inputs[id]
	slot.valid = true
	slot.cfg = model.InputConfig{
		ID:           id,
		Name:         wire.Name,
		Type:         model.InputType(wire.Type),
		Enable:       wire.Enable,
		Invert:       wire.Invert,
		FactoryReset: wire.FactoryReset,
	}
	slot.cfgRaw = raw
	slot.cfgUpdated = now
	return nil
}

// InputConfig returns a copy of input id's cached configuration.
func (c *Cache) InputConfig(id int) (cfg model.InputConfig, raw json.RawMessage, updated time.Time, valid bool) {
	if id < 0 || id >= model.MaxInputs {
		return model.InputConfig{}, nil, time.Time{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot := c.inputs[id]
	return slot.cfg, slot.cfgRaw, slot.cfgUpdated, slot.valid
}

type partialInputStatus struct {
	ID    *int  `json:"id"`
	State *bool `json:"state"`
}

// ApplyInputStatus runs the selective status update algorithm for
// input id: State is the input's only status field, so this updates it
// (and its mtime) only when present and changed, exactly like
// ApplySwitchStatus (spec.md §4.4).
func (c *Cache) ApplyInputStatus(id int, raw json.RawMessage, now time.Time) error {
	if id < 0 || id >= model.MaxInputs {
		return ErrUnknownInstance
	}
	var p partialInputStatus
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	slot := &c.inputs[id]
	slot.valid = true
	slot.cfg.ID = id
	slot.status.ID = id

	if p.State != nil && slot.status.State != *p.State {
		slot.status.State = *p.State
		slot.mtimes.State = now
	}

	return nil
}

// InputStatus returns a copy of input id's cached status and mtime.
func (c *Cache) InputStatus(id int) (status model.InputStatus, mtimes InputMtimes, valid bool) {
	if id < 0 || id >= model.MaxInputs {
		return model.InputStatus{}, InputMtimes{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot := c.inputs[id]
	return slot.status, slot.mtimes, slot.valid
}

// ValidInputIDs returns the ids of all known input slots, ascending.
func (c *Cache) ValidInputIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []int
	for i, s := range c.inputs {
		if s.valid {
			ids = append(ids, i)
		}
	}
	return ids
}
