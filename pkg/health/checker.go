// Package health reports the operational health of a device session:
// pending-request table saturation, cache staleness, and per-switch
// overtemperature conditions.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/session"
)

// Status represents the health status of a component.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// Result represents the result of a health check.
type Result struct {
	Check     string        `json:"check"`
	Status    Status        `json:"status"`
	Message   string        `json:"message"`
	Details   interface{}   `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Report contains all health check results for a session.
type Report struct {
	Device    string    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
	Overall   Status    `json:"overall"`
	Results   []Result  `json:"results"`
	Duration  time.Duration `json:"duration"`
}

// Check defines the interface for health checks.
type Check interface {
	Name() string
	Run(ctx context.Context, s *session.Session) Result
}

// Checker runs health checks against a device session.
type Checker struct {
	checks []Check
}

// NewChecker creates a new health checker with the default checks.
func NewChecker() *Checker {
	return &Checker{
		checks: []Check{
			&PendingTableCheck{},
			&SwitchTemperatureCheck{},
			&ConfigFreshnessCheck{},
			&ScheduleSyncCheck{},
		},
	}
}

// Run executes all health checks and returns a report.
func (c *Checker) Run(ctx context.Context, s *session.Session, device string) (*Report, error) {
	if s == nil {
		return nil, fmt.Errorf("health: nil session")
	}

	start := time.Now()
	report := &Report{
		Device:    device,
		Timestamp: start,
		Results:   make([]Result, 0, len(c.checks)),
		Overall:   StatusOK,
	}

	for _, check := range c.checks {
		result := check.Run(ctx, s)
		report.Results = append(report.Results, result)

		if result.Status == StatusCritical {
			report.Overall = StatusCritical
		} else if result.Status == StatusWarning && report.Overall != StatusCritical {
			report.Overall = StatusWarning
		} else if result.Status == StatusUnknown && report.Overall == StatusOK {
			report.Overall = StatusUnknown
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

// RunCheck runs a specific health check by name.
func (c *Checker) RunCheck(ctx context.Context, s *session.Session, name string) (*Result, error) {
	for _, check := range c.checks {
		if check.Name() == name {
			result := check.Run(ctx, s)
			return &result, nil
		}
	}
	return nil, fmt.Errorf("health check '%s' not found", name)
}

// PendingTableCheck verifies the pending-request table isn't close to
// exhausting its 64 slots, which would start rejecting new RPCs.
type PendingTableCheck struct{}

func (c *PendingTableCheck) Name() string { return "pending_table" }

func (c *PendingTableCheck) Run(ctx context.Context, s *session.Session) Result {
	start := time.Now()
	result := Result{Check: c.Name(), Timestamp: start}

	inUse := s.Table.Len()
	result.Details = map[string]int{
		"in_use":   inUse,
		"capacity": session.TableCapacity,
	}
	result.Duration = time.Since(start)

	switch {
	case inUse >= session.TableCapacity:
		result.Status = StatusCritical
		result.Message = "pending-request table is full"
	case inUse >= session.TableCapacity*3/4:
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("pending-request table at %d/%d slots", inUse, session.TableCapacity)
	default:
		result.Status = StatusOK
		result.Message = fmt.Sprintf("%d/%d slots in use", inUse, session.TableCapacity)
	}
	return result
}

// SwitchTemperatureCheck flags any discovered switch reporting an
// overtemperature condition.
type SwitchTemperatureCheck struct{}

func (c *SwitchTemperatureCheck) Name() string { return "switch_temperature" }

func (c *SwitchTemperatureCheck) Run(ctx context.Context, s *session.Session) Result {
	start := time.Now()
	result := Result{Check: c.Name(), Timestamp: start}

	var overtemp []int
	ids := s.Cache.ValidSwitchIDs()
	for _, id := range ids {
		status, _, valid := s.Cache.SwitchStatus(id)
		if valid && status.Overtemp {
			overtemp = append(overtemp, id)
		}
	}

	result.Details = map[string]interface{}{
		"checked":  len(ids),
		"overtemp": overtemp,
	}
	result.Duration = time.Since(start)

	if len(overtemp) > 0 {
		result.Status = StatusCritical
		result.Message = fmt.Sprintf("%d switch(es) reporting overtemperature", len(overtemp))
	} else {
		result.Status = StatusOK
		result.Message = fmt.Sprintf("%d switch(es) within temperature limits", len(ids))
	}
	return result
}

// ConfigFreshnessCheck verifies the system configuration has been
// successfully discovered at least once.
type ConfigFreshnessCheck struct{}

func (c *ConfigFreshnessCheck) Name() string { return "config_freshness" }

func (c *ConfigFreshnessCheck) Run(ctx context.Context, s *session.Session) Result {
	start := time.Now()
	result := Result{Check: c.Name(), Timestamp: start}

	_, updated, valid := s.Cache.SystemConfig()
	result.Duration = time.Since(start)

	if !valid {
		result.Status = StatusUnknown
		result.Message = "system configuration not yet discovered"
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("system config last refreshed %s", updated.Format(time.RFC3339))
	result.Details = map[string]time.Time{"updated": updated}
	return result
}

// ScheduleSyncCheck reports the cached schedule list's revision and
// count, so callers can tell whether a sync is overdue.
type ScheduleSyncCheck struct{}

func (c *ScheduleSyncCheck) Name() string { return "schedule_sync" }

func (c *ScheduleSyncCheck) Run(ctx context.Context, s *session.Session) Result {
	start := time.Now()
	result := Result{Check: c.Name(), Timestamp: start}

	list, revision, updated := s.Cache.Schedules()
	result.Duration = time.Since(start)
	result.Details = map[string]interface{}{
		"count":    len(list),
		"revision": revision,
	}

	if updated.IsZero() {
		result.Status = StatusUnknown
		result.Message = "schedules not yet synced"
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("%d schedule(s) at revision %d", len(list), revision)
	return result
}
