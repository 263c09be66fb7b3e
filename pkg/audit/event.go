// Package audit provides an append-only trail of every RPC this client
// issues to a Shelly device, for post-hoc review of who changed what
// (spec.md's ambient logging concerns, extended to a durable record).
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event represents one outbound RPC and its eventual outcome.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Device    string          `json:"device"`
	Method    string          `json:"method"`
	RequestID uint64          `json:"request_id"`
	Params    json.RawMessage `json:"params,omitempty"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

// Severity indicates the importance of an audit event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Filter defines criteria for querying audit events.
type Filter struct {
	Device      string
	Method      string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event for one outbound RPC.
func NewEvent(device, method string, requestID uint64) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Device:    device,
		Method:    method,
		RequestID: requestID,
	}
}

// WithParams attaches the request's params for later inspection.
func (e *Event) WithParams(params json.RawMessage) *Event {
	e.Params = params
	return e
}

// WithSuccess marks the event as successful.
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed.
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the round-trip duration.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}
