package session

import (
	"encoding/json"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

// mqttConfigWire is the subset of MQTT.GetConfig's result this cache
// parses out of the raw response.
type mqttConfigWire struct {
	Enable        bool   `json:"enable"`
	Server        string `json:"server"`
	ClientID      string `json:"client_id"`
	User          string `json:"user"`
	TopicPrefix   string `json:"topic_prefix"`
	SSLCA         string `json:"ssl_ca"`
	EnableControl bool   `json:"enable_control"`
	EnableRPC     bool   `json:"enable_rpc"`
	RPCNtf        bool   `json:"rpc_ntf"`
	StatusNtf     bool   `json:"status_ntf"`
	UseClientCert bool   `json:"use_client_cert"`
}

func sslCAModeFromWire(s string) model.SSLCAMode {
	switch s {
	case string(model.SSLCAUser):
		return model.SSLCAUser
	case string(model.SSLCADefault):
		return model.SSLCADefault
	default:
		return model.SSLCANone
	}
}

// SetMQTTConfig replaces the cached MQTT configuration from an
// MQTT.GetConfig result.
func (c *Cache) SetMQTTConfig(raw json.RawMessage, now time.Time) error {
	var wire mqttConfigWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.mqtt = mqttEntry{
		valid: true,
		cfg: model.MQTTConfig{
			Enable:           wire.Enable,
			Server:           wire.Server,
			ClientID:         wire.ClientID,
			User:             wire.User,
			TopicPrefix:      wire.TopicPrefix,
			SSLCA:            sslCAModeFromWire(wire.SSLCA),
			EnableControl:    wire.EnableControl,
			EnableRPC:        wire.EnableRPC,
			RPCNotifications: wire.RPCNtf,
			StatusNotify:     wire.StatusNtf,
			UseClientCert:    wire.UseClientCert,
			Raw:              raw,
		},
		updated: now,
	}
	return nil
}

// MQTTConfig returns a copy of the cached MQTT configuration.
func (c *Cache) MQTTConfig() (cfg model.MQTTConfig, updated time.Time, valid bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.mqtt
	return e.cfg, e.updated, e.valid
}
