package session

import (
	"encoding/json"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

// sysConfigWire is the subset of Sys.GetConfig's result this cache
// parses out of the raw response.
type sysConfigWire struct {
	Device struct {
		Name string `json:"name"`
	} `json:"device"`
	Location struct {
		TZ string `json:"tz"`
	} `json:"location"`
	Eco struct {
		Enable bool `json:"enable"`
	} `json:"eco_mode"`
	SNTP struct {
		Server string `json:"server"`
	} `json:"sntp"`
}

// SetSystemConfig replaces the cached system configuration from a
// Sys.GetConfig (or post-SetConfig refresh) result. The raw JSON is
// stored verbatim so a SetConfig->GetConfig round trip can be verified
// byte-for-byte (spec.md §8).
func (c *Cache) SetSystemConfig(raw json.RawMessage, now time.Time) error {
	var wire sysConfigWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.system = systemEntry{
		valid: true,
		cfg: model.SystemConfig{
			Name:        wire.Device.Name,
			Location:    wire.Location.TZ,
			Eco:         wire.Eco.Enable,
			SNTPEnabled: wire.SNTP.Server != "",
			Raw:         raw,
		},
		updated: now,
	}
	return nil
}

// SystemConfig returns a copy of the cached system configuration and
// whether it has ever been successfully populated.
func (c *Cache) SystemConfig() (cfg model.SystemConfig, updated time.Time, valid bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.system
	return e.cfg, e.updated, e.valid
}
