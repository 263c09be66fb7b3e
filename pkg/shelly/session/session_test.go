package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

func TestSession_NextOutbound_MarksSent(t *testing.T) {
	s := NewSession()
	id, err := s.Intents.SetSwitchOutput(0, true)
	if err != nil {
		t.Fatalf("SetSwitchOutput: %v", err)
	}

	gotID, payload, ok := s.NextOutbound()
	if !ok || gotID != id || payload == "" {
		t.Fatalf("NextOutbound() = %d, %q, %v", gotID, payload, ok)
	}

	e, _ := s.Table.RequestOf(id)
	if e.State != StatePending {
		t.Errorf("State after NextOutbound = %v, want StatePending", e.State)
	}

	if _, _, ok := s.NextOutbound(); ok {
		t.Error("NextOutbound with nothing queued: want ok=false")
	}
}

func TestSession_HandleFrame_RoundTrip(t *testing.T) {
	s := NewSession()
	s.Cache.EnsureSwitchSlot(0)

	id, err := s.Intents.RefreshSwitchStatus(0)
	if err != nil {
		t.Fatalf("RefreshSwitchStatus: %v", err)
	}
	if _, _, ok := s.NextOutbound(); !ok {
		t.Fatal("NextOutbound: expected the RefreshSwitchStatus request")
	}

	raw := []byte(fmt.Sprintf(`{"id":%d,"result":{"id":0,"output":true}}`, id))
	if err := s.HandleFrame(raw, time.Now()); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}

	status, _, valid := s.Cache.SwitchStatus(0)
	if !valid || !status.Output {
		t.Errorf("SwitchStatus(0) = %+v, valid=%v, want Output=true", status, valid)
	}
}

func TestSession_SweepTimeouts_ReleasesSlot(t *testing.T) {
	s := NewSession()
	id, _ := s.Intents.SetSwitchOutput(1, false)
	s.NextOutbound() // QUEUED -> PENDING

	future := time.Now().Add(RequestTimeout + time.Second)
	timedOut := s.SweepTimeouts(future)

	if len(timedOut) != 1 || timedOut[0] != id {
		t.Fatalf("SweepTimeouts = %v, want [%d]", timedOut, id)
	}
	if _, ok := s.Table.RequestOf(id); ok {
		t.Error("SweepTimeouts must Release the timed-out entry, but it is still present")
	}
}

func TestSession_Discover_EnqueuesDiscoveryWindow(t *testing.T) {
	s := NewSession()
	if errs := s.Discover(); len(errs) != 0 {
		t.Fatalf("Discover() errs = %v, want none", errs)
	}

	// 4 global refreshes + GetConfig/GetStatus for each switch and each
	// input across the discovery window (spec.md §9).
	want := 4 + 4*model.DiscoveryWindow
	if s.Table.Len() != want {
		t.Errorf("Table.Len() after Discover = %d, want %d", s.Table.Len(), want)
	}

	ids := s.Cache.ValidSwitchIDs()
	if len(ids) != model.DiscoveryWindow {
		t.Errorf("ValidSwitchIDs() = %v, want %d slots ensured", ids, model.DiscoveryWindow)
	}
}
