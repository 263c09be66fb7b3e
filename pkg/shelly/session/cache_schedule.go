package session

import (
	"sort"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

// SetScheduleList replaces the cached schedule list wholesale from a
// Schedule.List result (schedules, like scripts, are snapshotted rather
// than selectively updated — spec.md §4.4 scopes selective update to
// switch/input status only).
func (c *Cache) SetScheduleList(list []model.Schedule, now time.Time) error {
	if len(list) > model.MaxSchedules {
		return ErrInvalidArgument
	}
	sorted := make([]model.Schedule, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedules = scheduleEntry{
		list:     sorted,
		revision: c.schedules.revision + 1,
		updated:  now,
	}
	return nil
}

// Schedules returns a copy of the cached schedule list and its
// revision counter (bumped on every SetScheduleList call, so a caller
// can detect whether a sync round needs re-running against a stale
// view).
func (c *Cache) Schedules() (list []model.Schedule, revision int, updated time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Schedule, len(c.schedules.list))
	copy(out, c.schedules.list)
	return out, c.schedules.revision, c.schedules.updated
}

// ScheduleByID returns a copy of the cached schedule with the given id.
func (c *Cache) ScheduleByID(id int) (model.Schedule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.schedules.list {
		if s.ID == id {
			return s, true
		}
	}
	return model.Schedule{}, false
}
