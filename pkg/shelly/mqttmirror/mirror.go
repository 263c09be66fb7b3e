// Package mqttmirror is a redundant status channel: once started, it
// subscribes to the broker and folds published switch/input status payloads into
// the same cache the WebSocket session updates, using the identical
// selective-update path (spec.md §4.4). It never originates requests —
// only a fallback ingestion path for when the primary session is
// reconnecting (SPEC_FULL.md supplemented feature: MQTT status mirror).
package mqttmirror

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/shusefs/shusefs/pkg/shelly/session"
	"github.com/shusefs/shusefs/pkg/util"
)

// Mirror subscribes to one device's status topics and applies incoming
// payloads to a Cache.
type Mirror struct {
	client mqtt.Client
	cache  *session.Cache
	prefix string
}

// topicFilter is the subscription filter covering every status topic,
// "<prefix>/status/#"; parseStatusTopic picks out "<class>:<id>".
func (m *Mirror) topicFilter() string {
	return fmt.Sprintf("%s/status/#", m.prefix)
}

// New builds (but does not connect) a Mirror for the given broker,
// topic prefix, and target cache.
func New(brokerURL, topicPrefix string, cache *session.Cache) *Mirror {
	m := &Mirror{cache: cache, prefix: topicPrefix}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID("shusefs-mirror-" + strconv.FormatInt(time.Now().UnixNano(), 36))
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		util.WithField("broker", brokerURL).WithError(err).Warn("mqttmirror: connection lost")
	})
	opts.SetDefaultPublishHandler(m.handleMessage)

	m.client = mqtt.NewClient(opts)
	return m
}

// Start connects to the broker and subscribes to the status topic tree.
// It is a no-op (and returns nil) if enable or statusNotify is false.
// Start does not read the device's MQTT config itself; `shusefs mount`
// passes true for both.
func (m *Mirror) Start(enable, statusNotify bool) error {
	if !enable || !statusNotify {
		util.Logger.Debug("mqttmirror: disabled by device MQTT config, not starting")
		return nil
	}

	token := m.client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqttmirror: connecting to broker: %w", err)
		}
		return fmt.Errorf("mqttmirror: connect timed out")
	}

	subToken := m.client.Subscribe(m.topicFilter(), 0, m.handleMessage)
	if !subToken.WaitTimeout(10*time.Second) || subToken.Error() != nil {
		if err := subToken.Error(); err != nil {
			return fmt.Errorf("mqttmirror: subscribing to %s: %w", m.topicFilter(), err)
		}
		return fmt.Errorf("mqttmirror: subscribe timed out")
	}

	util.WithField("topic", m.topicFilter()).Info("mqttmirror: subscribed")
	return nil
}

// Stop disconnects from the broker, waiting up to 250ms for
// in-flight acknowledgements.
func (m *Mirror) Stop() {
	m.client.Disconnect(250)
}

// handleMessage parses one published status message and applies it
// through the cache's selective-update path, exactly as NotifyStatus
// frames are applied by the session dispatcher.
func (m *Mirror) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	class, id, ok := parseStatusTopic(msg.Topic(), m.prefix)
	if !ok {
		return
	}

	now := time.Now()
	var err error
	switch class {
	case "switch":
		m.cache.EnsureSwitchSlot(id)
		err = m.cache.ApplySwitchStatus(id, msg.Payload(), now)
	case "input":
		m.cache.EnsureInputSlot(id)
		err = m.cache.ApplyInputStatus(id, msg.Payload(), now)
	default:
		return
	}
	if err != nil {
		util.WithField("topic", msg.Topic()).WithError(err).Warn("mqttmirror: applying status payload")
	}
}

// parseStatusTopic extracts (class, id) from "<prefix>/status/<class>:<id>".
func parseStatusTopic(topic, prefix string) (class string, id int, ok bool) {
	rest := strings.TrimPrefix(topic, prefix+"/status/")
	if rest == topic {
		return "", 0, false
	}
	class, idStr, found := strings.Cut(rest, ":")
	if !found {
		return "", 0, false
	}
	n, err := strconv.Atoi(idStr)
	if err != nil {
		return "", 0, false
	}
	return class, n, true
}
