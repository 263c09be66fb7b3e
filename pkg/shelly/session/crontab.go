package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

// ParsedScheduleLine is one line of the crontab-style text representation
// after tokenizing, before it has been reconciled against the cache.
type ParsedScheduleLine struct {
	// ID is the schedule id this line refers to, or -1 if the line has
	// no "id=" token — meaning it is sticky to whatever position it was
	// typed in and should be treated as a brand-new schedule to create
	// (spec.md §4.4 crontab synchronizer).
	ID       int
	Enable   bool
	Timespec string
	Calls    []model.ScheduleCall
}

// RenderCrontab produces the textual crontab-style listing for a set of
// schedules, one line per schedule, sorted by id. Disabled schedules
// are rendered with a leading "!" (spec.md's disabled-prefix
// convention); "#" at the start of a line is reserved for free-text
// comments and is never emitted by the renderer, so it round-trips
// unambiguously through ParseCrontab.
func RenderCrontab(schedules []model.Schedule) string {
	sorted := make([]model.Schedule, len(schedules))
	copy(sorted, schedules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var b strings.Builder
	for _, s := range sorted {
		if !s.Enable {
			b.WriteByte('!')
		}
		b.WriteString(s.Timespec)
		b.WriteByte(' ')
		b.WriteString(renderCalls(s.Calls))
		fmt.Fprintf(&b, " id=%d\n", s.ID)
	}
	return b.String()
}

func renderCalls(calls []model.ScheduleCall) string {
	parts := make([]string, 0, len(calls))
	for _, c := range calls {
		if len(c.Params) == 0 {
			parts = append(parts, c.Method)
			continue
		}
		parts = append(parts, c.Method+":"+string(c.Params))
	}
	return strings.Join(parts, ",")
}

// ParseCrontab tokenizes a crontab-style text listing into
// ParsedScheduleLine entries. Blank lines and lines starting with "#"
// are ignored as comments. Each remaining line must have a 6-field
// timespec followed by a comma-separated call list and, for schedules
// that already exist on the device, a trailing "id=N" token.
func ParseCrontab(text string) ([]ParsedScheduleLine, error) {
	var out []ParsedScheduleLine
	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		enable := true
		if strings.HasPrefix(line, "!") {
			enable = false
			line = strings.TrimSpace(line[1:])
		}

		fields := strings.Fields(line)
		if len(fields) < 7 {
			return nil, fmt.Errorf("crontab line %d: expected 6-field timespec, call list and optional id: %q", lineNo+1, raw)
		}

		timespec := strings.Join(fields[:6], " ")
		rest := fields[6:]

		id := -1
		callTokens := rest
		if last := rest[len(rest)-1]; strings.HasPrefix(last, "id=") {
			n, err := strconv.Atoi(strings.TrimPrefix(last, "id="))
			if err != nil {
				return nil, fmt.Errorf("crontab line %d: bad id token %q", lineNo+1, last)
			}
			id = n
			callTokens = rest[:len(rest)-1]
		}
		if len(callTokens) != 1 {
			return nil, fmt.Errorf("crontab line %d: expected one comma-separated call list", lineNo+1)
		}

		calls, err := parseCalls(callTokens[0])
		if err != nil {
			return nil, fmt.Errorf("crontab line %d: %w", lineNo+1, err)
		}

		out = append(out, ParsedScheduleLine{
			ID:       id,
			Enable:   enable,
			Timespec: timespec,
			Calls:    calls,
		})
	}
	return out, nil
}

func parseCalls(s string) ([]model.ScheduleCall, error) {
	var calls []model.ScheduleCall
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, fmt.Errorf("empty call in list")
		}
		method, params, hasParams := strings.Cut(tok, ":")
		call := model.ScheduleCall{Method: method}
		if hasParams {
			if !json.Valid([]byte(params)) {
				return nil, fmt.Errorf("invalid params JSON for %s", method)
			}
			call.Params = json.RawMessage(params)
		}
		calls = append(calls, call)
		if len(calls) > model.MaxScheduleCalls {
			return nil, fmt.Errorf("too many calls on one schedule (max %d)", model.MaxScheduleCalls)
		}
	}
	return calls, nil
}

// ScheduleDiff is the result of reconciling a parsed crontab listing
// against the cached schedule list: the RPCs needed to bring the
// device in line with the text (spec.md §4.4).
type ScheduleDiff struct {
	Create []ParsedScheduleLine
	Update []model.Schedule
	Delete []int
}

// DiffSchedules compares parsed crontab lines against the currently
// cached schedules and produces the Create/Update/Delete operations
// needed to reconcile them. Running DiffSchedules again against the
// would-be post-sync state (i.e. cached == parsed) always yields an
// empty ScheduleDiff — the synchronizer is idempotent.
func DiffSchedules(cached []model.Schedule, parsed []ParsedScheduleLine) ScheduleDiff {
	byID := make(map[int]model.Schedule, len(cached))
	for _, s := range cached {
		byID[s.ID] = s
	}

	var diff ScheduleDiff
	seen := make(map[int]bool, len(parsed))

	for _, p := range parsed {
		if p.ID < 0 {
			diff.Create = append(diff.Create, p)
			continue
		}
		seen[p.ID] = true
		existing, ok := byID[p.ID]
		if !ok {
			// Referenced an id the device doesn't have; treat as create
			// so the text is still honoured rather than silently dropped.
			diff.Create = append(diff.Create, p)
			continue
		}
		if scheduleEquals(existing, p) {
			continue
		}
		diff.Update = append(diff.Update, model.Schedule{
			ID:       p.ID,
			Enable:   p.Enable,
			Timespec: p.Timespec,
			Calls:    p.Calls,
		})
	}

	for id := range byID {
		if !seen[id] {
			diff.Delete = append(diff.Delete, id)
		}
	}
	sort.Ints(diff.Delete)

	return diff
}

func scheduleEquals(s model.Schedule, p ParsedScheduleLine) bool {
	if s.Enable != p.Enable || s.Timespec != p.Timespec {
		return false
	}
	if len(s.Calls) != len(p.Calls) {
		return false
	}
	for i := range s.Calls {
		if s.Calls[i].Method != p.Calls[i].Method {
			return false
		}
		if string(s.Calls[i].Params) != string(p.Calls[i].Params) {
			return false
		}
	}
	return true
}
