package session

import (
	"sync"
	"time"
)

// RequestState is the lifecycle stage of one pending-request entry.
// QUEUED -> PENDING -> {COMPLETED | TIMEOUT | ERROR} is the only legal
// progression (spec.md §3).
type RequestState int

const (
	StateQueued RequestState = iota
	StatePending
	StateCompleted
	StateTimeout
	StateError
)

func (s RequestState) String() string {
	switch s {
	case StateQueued:
		return "QUEUED"
	case StatePending:
		return "PENDING"
	case StateCompleted:
		return "COMPLETED"
	case StateTimeout:
		return "TIMEOUT"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// RequestTimeout is the maximum duration an entry may remain PENDING
// before sweep_timeouts transitions it to TIMEOUT (spec.md §3, §5).
const RequestTimeout = 30 * time.Second

// TableCapacity is the fixed number of concurrent pending-request slots
// (spec.md §3).
const TableCapacity = 64

// Entry is one pending-request slot. Fields are only ever mutated with
// Table.mu held; callers receive copies, never the live pointer, except
// through the accessor methods below.
type Entry struct {
	ID       uint64
	State    RequestState
	Request  string // owned request payload, set at enqueue
	Response string // owned response payload, set at completion
	Err      error  // set when State == StateError
	Method   string // JSON-RPC method of the original request, cached for dispatch
	StampedAt time.Time // reset QUEUED->PENDING; used by sweep_timeouts

	done chan struct{} // closed exactly once, on COMPLETED/TIMEOUT/ERROR
}

// Table is the pending-request table (C1): it allocates correlation ids,
// stores request/response payloads keyed by id, matches responses to
// requests, and ages out entries that time out. All methods are safe
// for concurrent use. Holding Table's mutex must never be combined with
// network I/O (spec.md §3, §5) — callers build/parse JSON outside any
// lock obtained here.
type Table struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[uint64]*Entry
	queue   []uint64 // FIFO order of QUEUED ids, oldest first
}

// NewTable creates an empty pending-request table with its id sequence
// starting at 1 (spec.md §3: "monotonically issued starting at 1").
func NewTable() *Table {
	return &Table{
		nextID:  1,
		entries: make(map[uint64]*Entry),
	}
}

// Enqueue reserves a slot, assigns the next sequential id, and stores
// the request payload in state QUEUED. Returns ErrQueueFull (wrapped in
// *EnqueueError) if the table is already at TableCapacity.
func (t *Table) Enqueue(method, payload string) (uint64, error) {
	return t.EnqueueFunc(method, func(uint64) (string, error) { return payload, nil })
}

// EnqueueFunc reserves the next sequential id and stores the request
// payload build returns for it, all under a single lock acquisition.
// Callers that must embed their own id in the request body (all of
// C5's verbs) use this instead of peeking an id and calling Enqueue
// separately — peek-then-enqueue is not atomic and lets two concurrent
// callers both build a payload around the same id while only one of
// them actually gets it (spec.md §4.1: ids are assigned, not chosen by
// the caller). If build returns an error, the id is still consumed
// (never reused) but no entry is recorded, so a failed marshal never
// leaves a stray QUEUED entry with an empty payload for the network
// task to send. Returns ErrQueueFull (wrapped in *EnqueueError) if the
// table is already at TableCapacity.
func (t *Table) EnqueueFunc(method string, build func(id uint64) (string, error)) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= TableCapacity {
		return 0, &EnqueueError{Capacity: TableCapacity}
	}

	id := t.nextID
	t.nextID++

	payload, err := build(id)
	if err != nil {
		return id, err
	}

	t.entries[id] = &Entry{
		ID:        id,
		State:     StateQueued,
		Request:   payload,
		Method:    method,
		StampedAt: time.Now(),
		done:      make(chan struct{}),
	}
	t.queue = append(t.queue, id)
	return id, nil
}

// TakeNextQueued returns the oldest QUEUED entry's id and payload without
// changing its state, for the network task to drain and send. Returns
// ok=false if no entry is QUEUED.
func (t *Table) TakeNextQueued() (id uint64, payload string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(t.queue) > 0 {
		candidate := t.queue[0]
		e, exists := t.entries[candidate]
		if !exists {
			// Entry was reclaimed before being sent; drop the stale
			// queue pointer and keep looking.
			t.queue = t.queue[1:]
			continue
		}
		if e.State != StateQueued {
			t.queue = t.queue[1:]
			continue
		}
		return e.ID, e.Request, true
	}
	return 0, "", false
}

// MarkSent transitions an entry QUEUED->PENDING and resets its
// timestamp, so the 30s timeout is measured from send time rather than
// enqueue time (spec.md §4.1).
func (t *Table) MarkSent(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.State != StateQueued {
		return ErrWrongState
	}
	e.State = StatePending
	e.StampedAt = time.Now()
	t.popQueued(id)
	return nil
}

// popQueued removes id from the head of the FIFO queue if present there.
// Must be called with t.mu held.
func (t *Table) popQueued(id uint64) {
	if len(t.queue) > 0 && t.queue[0] == id {
		t.queue = t.queue[1:]
	}
}

// Complete transitions an entry PENDING->COMPLETED, stores the response
// payload, and wakes any waiters. Returns ErrNotFound if no entry
// matches — the caller (the dispatcher) should treat that as an
// unsolicited response and log it, per spec.md §4.1.
func (t *Table) Complete(id uint64, response string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.State != StatePending {
		return ErrWrongState
	}
	e.State = StateCompleted
	e.Response = response
	close(e.done)
	return nil
}

// failEntry transitions an entry PENDING->ERROR, stores the RPC error,
// and wakes any waiters. Mirrors Complete but for the device-returned
// error case (spec.md §4.1).
func (t *Table) failEntry(id uint64, rpcErr error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.State != StatePending {
		return ErrWrongState
	}
	e.State = StateError
	e.Err = rpcErr
	close(e.done)
	return nil
}

// RequestOf returns a copy of the entry for id, for dispatcher
// correlation (reading back the original request's method). ok is false
// if no such entry exists.
func (t *Table) RequestOf(id uint64) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Release removes a completed/timed-out/errored entry from the table,
// returning its slot to the free pool. Safe to call on an id that is
// still PENDING or QUEUED — a no-op in that case, since only terminal
// entries are meant to be reclaimed.
func (t *Table) Release(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return
	}
	switch e.State {
	case StateCompleted, StateTimeout, StateError:
		delete(t.entries, id)
	}
}

// SweepTimeouts transitions any entry that has been PENDING for more
// than RequestTimeout (measured from `now`) to TIMEOUT, waking its
// waiters. It does not reclaim slots itself — callers that want the
// capacity back should Release timed-out entries once they've observed
// them (e.g. after logging). Returns the ids that were timed out, for
// logging by the caller.
func (t *Table) SweepTimeouts(now time.Time) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var timedOut []uint64
	for id, e := range t.entries {
		if e.State != StatePending {
			continue
		}
		if now.Sub(e.StampedAt) > RequestTimeout {
			e.State = StateTimeout
			close(e.done)
			timedOut = append(timedOut, id)
		}
	}
	return timedOut
}

// Len returns the number of occupied slots, for metrics/health reporting.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Done returns a channel closed when the entry reaches a terminal state.
// Writes in this design are fire-and-forget (spec.md §5), so nothing
// currently blocks on this, but it is exposed for callers (tests, or a
// future synchronous verb) that need to wait for resolution.
func (t *Table) Done(id uint64) (<-chan struct{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	return e.done, true
}
