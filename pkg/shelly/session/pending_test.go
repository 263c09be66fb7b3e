package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestTable_Enqueue_AssignsSequentialIDs(t *testing.T) {
	tbl := NewTable()

	id1, err := tbl.Enqueue("Switch.Set", `{"id":1}`)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	id2, err := tbl.Enqueue("Switch.Set", `{"id":2}`)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id1 != 1 || id2 != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", id1, id2)
	}

	e, ok := tbl.RequestOf(id1)
	if !ok {
		t.Fatal("RequestOf(id1) not found")
	}
	if e.State != StateQueued {
		t.Errorf("State = %v, want StateQueued", e.State)
	}
}

func TestTable_EnqueueFunc_SeesItsOwnAssignedID(t *testing.T) {
	tbl := NewTable()
	var seen uint64
	id, err := tbl.EnqueueFunc("Shelly.GetStatus", func(assigned uint64) (string, error) {
		seen = assigned
		return `{}`, nil
	})
	if err != nil {
		t.Fatalf("EnqueueFunc: %v", err)
	}
	if seen != id {
		t.Errorf("build saw id %d, Enqueue assigned %d", seen, id)
	}
}

func TestTable_EnqueueFunc_CapacityFull_BuildNotCalled(t *testing.T) {
	tbl := NewTable()
	for i := 0; i < TableCapacity; i++ {
		if _, err := tbl.Enqueue("Shelly.GetStatus", `{}`); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	called := false
	if _, err := tbl.EnqueueFunc("Shelly.GetStatus", func(uint64) (string, error) {
		called = true
		return `{}`, nil
	}); err == nil {
		t.Fatal("EnqueueFunc at capacity: want error, got nil")
	}
	if called {
		t.Error("build was called even though the table was full")
	}
}

func TestTable_EnqueueFunc_BuildError_LeavesNoEntry(t *testing.T) {
	tbl := NewTable()
	buildErr := fmt.Errorf("boom")

	id, err := tbl.EnqueueFunc("Shelly.GetStatus", func(uint64) (string, error) {
		return "", buildErr
	})
	if err != buildErr {
		t.Fatalf("EnqueueFunc error = %v, want %v", err, buildErr)
	}
	if id == 0 {
		t.Fatal("EnqueueFunc on build error: want the consumed id back, got 0")
	}
	if _, ok := tbl.RequestOf(id); ok {
		t.Error("a failed build must not leave an entry behind")
	}
	if tbl.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (failed build consumed no slot)", tbl.Len())
	}

	// The id is never reused even though it was never recorded.
	nextID, err := tbl.Enqueue("Shelly.GetStatus", `{}`)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if nextID <= id {
		t.Errorf("next id %d did not advance past the consumed failed id %d", nextID, id)
	}
}

func TestTable_EnqueueFunc_ConcurrentCallersEachGetTheirOwnID(t *testing.T) {
	tbl := NewTable()
	const n = 32

	var wg sync.WaitGroup
	ids := make([]uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := tbl.EnqueueFunc("Switch.Set", func(id uint64) (string, error) {
				// Simulate building a payload that embeds the id, the
				// way Intents.enqueue does — this must see the same id
				// the table actually assigns, even when many goroutines
				// race to enqueue at once.
				return fmt.Sprintf(`{"id":%d}`, id), nil
			})
			if err != nil {
				t.Errorf("EnqueueFunc: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for i, id := range ids {
		if id == 0 {
			t.Fatalf("goroutine %d never got an id", i)
		}
		if seen[id] {
			t.Fatalf("id %d assigned to more than one caller", id)
		}
		seen[id] = true

		e, ok := tbl.RequestOf(id)
		if !ok {
			t.Fatalf("RequestOf(%d) not found", id)
		}
		want := fmt.Sprintf(`{"id":%d}`, id)
		if e.Request != want {
			t.Errorf("entry %d payload = %q, want %q (payload must embed the same id the table assigned)", id, e.Request, want)
		}
	}
}

func TestTable_Enqueue_CapacityFull(t *testing.T) {
	tbl := NewTable()
	for i := 0; i < TableCapacity; i++ {
		if _, err := tbl.Enqueue("Shelly.GetStatus", `{}`); err != nil {
			t.Fatalf("Enqueue #%d: %v", i, err)
		}
	}
	if _, err := tbl.Enqueue("Shelly.GetStatus", `{}`); err == nil {
		t.Fatal("Enqueue past capacity: want error, got nil")
	} else if _, ok := err.(*EnqueueError); !ok {
		t.Errorf("error type = %T, want *EnqueueError", err)
	}
}

func TestTable_Lifecycle_QueuedToCompleted(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Enqueue("Switch.Set", `{"id":0,"on":true}`)

	gotID, payload, ok := tbl.TakeNextQueued()
	if !ok || gotID != id || payload != `{"id":0,"on":true}` {
		t.Fatalf("TakeNextQueued() = %d, %q, %v", gotID, payload, ok)
	}

	if err := tbl.MarkSent(id); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if _, _, ok := tbl.TakeNextQueued(); ok {
		t.Fatal("TakeNextQueued after MarkSent: want no entries left QUEUED")
	}

	if err := tbl.Complete(id, `{"was_on":false}`); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	e, ok := tbl.RequestOf(id)
	if !ok {
		t.Fatal("RequestOf after Complete: not found")
	}
	if e.State != StateCompleted {
		t.Errorf("State = %v, want StateCompleted", e.State)
	}
	if e.Response != `{"was_on":false}` {
		t.Errorf("Response = %q", e.Response)
	}

	select {
	case <-mustDone(t, tbl, id):
	default:
		t.Error("done channel not closed after Complete")
	}
}

func mustDone(t *testing.T, tbl *Table, id uint64) <-chan struct{} {
	t.Helper()
	ch, ok := tbl.Done(id)
	if !ok {
		t.Fatalf("Done(%d): not found", id)
	}
	return ch
}

func TestTable_Complete_WrongState(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Enqueue("Shelly.GetStatus", `{}`)
	// Still QUEUED, never MarkSent.
	if err := tbl.Complete(id, `{}`); err != ErrWrongState {
		t.Errorf("Complete on QUEUED entry = %v, want ErrWrongState", err)
	}
}

func TestTable_Complete_NotFound(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Complete(999, `{}`); err != ErrNotFound {
		t.Errorf("Complete(999) = %v, want ErrNotFound", err)
	}
}

func TestTable_FailEntry(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Enqueue("Switch.Set", `{}`)
	tbl.MarkSent(id)

	rpcErr := &InvalidArgumentError{Verb: "Switch.Set", Err: ErrUnknownInstance}
	if err := tbl.failEntry(id, rpcErr); err != nil {
		t.Fatalf("failEntry: %v", err)
	}

	e, _ := tbl.RequestOf(id)
	if e.State != StateError {
		t.Errorf("State = %v, want StateError", e.State)
	}
	if e.Err != rpcErr {
		t.Errorf("Err = %v, want %v", e.Err, rpcErr)
	}
}

func TestTable_Release_OnlyTerminal(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Enqueue("Shelly.GetStatus", `{}`)

	tbl.Release(id) // still QUEUED: no-op
	if _, ok := tbl.RequestOf(id); !ok {
		t.Fatal("Release on a QUEUED entry must be a no-op")
	}

	tbl.MarkSent(id)
	tbl.Complete(id, `{}`)
	tbl.Release(id)
	if _, ok := tbl.RequestOf(id); ok {
		t.Error("Release on a COMPLETED entry must remove it")
	}
	if tbl.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Release", tbl.Len())
	}
}

func TestTable_SweepTimeouts(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Enqueue("Shelly.GetStatus", `{}`)
	tbl.MarkSent(id)

	// Backdate the entry past RequestTimeout by sweeping with a `now`
	// far enough in the future, rather than mutating StampedAt directly
	// (callers only get copies of an entry, and the table mutates it
	// only under its own lock).
	future := time.Now().Add(RequestTimeout + time.Second)
	timedOut := tbl.SweepTimeouts(future)

	if len(timedOut) != 1 || timedOut[0] != id {
		t.Fatalf("SweepTimeouts = %v, want [%d]", timedOut, id)
	}
	e, _ := tbl.RequestOf(id)
	if e.State != StateTimeout {
		t.Errorf("State = %v, want StateTimeout", e.State)
	}

	// Slot is still occupied until Release.
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (SweepTimeouts must not reclaim)", tbl.Len())
	}
}

func TestTable_SweepTimeouts_IgnoresQueuedAndFresh(t *testing.T) {
	tbl := NewTable()
	queuedID, _ := tbl.Enqueue("Shelly.GetStatus", `{}`) // never sent

	sentID, _ := tbl.Enqueue("Shelly.GetStatus", `{}`)
	tbl.MarkSent(sentID)

	timedOut := tbl.SweepTimeouts(time.Now())
	if len(timedOut) != 0 {
		t.Fatalf("SweepTimeouts (fresh) = %v, want none", timedOut)
	}

	qe, _ := tbl.RequestOf(queuedID)
	if qe.State != StateQueued {
		t.Errorf("queued entry State = %v, want StateQueued", qe.State)
	}
}

func TestRequestState_String(t *testing.T) {
	cases := []struct {
		state RequestState
		want  string
	}{
		{StateQueued, "QUEUED"},
		{StatePending, "PENDING"},
		{StateCompleted, "COMPLETED"},
		{StateTimeout, "TIMEOUT"},
		{StateError, "ERROR"},
		{RequestState(99), "UNKNOWN"},
	}
	for _, c := range cases {
		if got := c.state.String(); got != c.want {
			t.Errorf("State(%d).String() = %q, want %q", int(c.state), got, c.want)
		}
	}
}
