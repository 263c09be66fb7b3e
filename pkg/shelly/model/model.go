// Package model defines the domain types mirrored from a Gen2+ Shelly
// device: system and MQTT configuration, per-instance switch/input
// configuration and status, script metadata, and schedules. These are
// the value types the device-state cache (pkg/shelly/session) stores;
// nothing here talks to the network.
package model

import "encoding/json"

// Bound on the number of addressable instances of each component kind,
// per spec.md §3.
const (
	MaxSwitches  = 16
	MaxInputs    = 16
	MaxScripts   = 10
	MaxSchedules = 20

	// DiscoveryWindow is the instance-id range probed on connect.
	// Higher ids are only ever learned from notifications (spec.md §9,
	// "discovery window" design note).
	DiscoveryWindow = 4

	// MaxScriptCodeBytes bounds a single script's stored source.
	MaxScriptCodeBytes = 20480

	// MaxScheduleCalls bounds the calls array of one schedule entry.
	MaxScheduleCalls = 5
)

// SSLCAMode is the MQTT SSL CA verification mode.
type SSLCAMode string

const (
	SSLCANone    SSLCAMode = "NONE"
	SSLCAUser    SSLCAMode = "user_ca.pem"
	SSLCADefault SSLCAMode = "ca.pem"
)

// SwitchInitialState is the configured power-on behaviour of a switch.
type SwitchInitialState string

const (
	InitialOn          SwitchInitialState = "on"
	InitialOff         SwitchInitialState = "off"
	InitialRestoreLast SwitchInitialState = "restore_last"
	InitialMatchInput  SwitchInitialState = "match_input"
)

// SwitchInMode is how a paired input drives the switch.
type SwitchInMode string

const (
	InModeMomentary SwitchInMode = "momentary"
	InModeFollow    SwitchInMode = "follow"
	InModeFlip      SwitchInMode = "flip"
	InModeDetached  SwitchInMode = "detached"
)

// InputType is the configured physical wiring of an input.
type InputType string

const (
	InputTypeSwitch  InputType = "switch"
	InputTypeButton  InputType = "button"
	InputTypeAnalog  InputType = "analog"
)

// SystemConfig mirrors Sys.GetConfig's parsed fields.
type SystemConfig struct {
	Name        string // device name, <=64 chars
	Location    string // timezone / location string
	Eco         bool
	SNTPEnabled bool

	Raw json.RawMessage // last device response, verbatim
}

// MQTTConfig mirrors MQTT.GetConfig.
type MQTTConfig struct {
	Enable           bool
	Server           string
	ClientID         string
	User             string
	TopicPrefix      string
	SSLCA            SSLCAMode
	EnableControl    bool
	EnableRPC        bool
	RPCNotifications bool
	StatusNotify     bool
	UseClientCert    bool

	Raw json.RawMessage
}

// SwitchConfig mirrors Switch.GetConfig for one instance.
type SwitchConfig struct {
	ID             int
	Name           string
	InMode         SwitchInMode
	InputLocked    bool
	InitialState   SwitchInitialState
	AutoOn         bool
	AutoOnDelay    float64
	AutoOff        bool
	AutoOffDelay   float64
	PowerLimit     float64
	VoltageLimit   float64
	CurrentLimit   float64
	AutoRecover    bool
}

// SwitchStatus mirrors Switch.GetStatus for one instance.
type SwitchStatus struct {
	ID             int
	Source         string
	Output         bool
	APower         float64
	Voltage        float64
	Current        float64
	Frequency      float64
	Energy         float64 // cumulative, Wh
	ReturnedEnergy float64 // Wh
	TemperatureC   float64
	TemperatureF   float64
	Overtemp       bool
}

// InputConfig mirrors Input.GetConfig for one instance.
type InputConfig struct {
	ID           int
	Name         string
	Type         InputType
	Enable       bool
	Invert       bool
	FactoryReset bool
}

// InputStatus mirrors Input.GetStatus for one instance.
type InputStatus struct {
	ID    int
	State bool
}

// ScheduleCall is one entry of a schedule's calls array.
type ScheduleCall struct {
	Method string
	Params json.RawMessage
}

// Schedule mirrors one entry from Schedule.List.
type Schedule struct {
	ID       int
	Enable   bool
	Timespec string // "sec min hour dom month dow"
	Calls    []ScheduleCall
}
