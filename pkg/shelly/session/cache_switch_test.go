package session

import (
	"testing"
	"time"
)

func TestApplySwitchStatus_SourceChangeStampsMtime(t *testing.T) {
	c := NewCache()
	c.EnsureSwitchSlot(0)

	t1 := time.Now()
	if err := c.ApplySwitchStatus(0, []byte(`{"source":"init"}`), t1); err != nil {
		t.Fatalf("ApplySwitchStatus: %v", err)
	}
	status, mtimes, valid := c.SwitchStatus(0)
	if !valid {
		t.Fatal("switch 0 not valid")
	}
	if status.Source != "init" {
		t.Fatalf("Source = %q, want %q", status.Source, "init")
	}
	if mtimes.Source.IsZero() {
		t.Fatal("mtimes.Source not stamped on first report")
	}
	firstStamp := mtimes.Source

	t2 := t1.Add(time.Second)
	if err := c.ApplySwitchStatus(0, []byte(`{"source":"http"}`), t2); err != nil {
		t.Fatalf("ApplySwitchStatus: %v", err)
	}
	status, mtimes, _ = c.SwitchStatus(0)
	if status.Source != "http" {
		t.Fatalf("Source = %q, want %q", status.Source, "http")
	}
	if !mtimes.Source.Equal(t2) {
		t.Errorf("mtimes.Source = %v, want %v (changed source must advance mtime)", mtimes.Source, t2)
	}
	if mtimes.Source.Equal(firstStamp) {
		t.Error("mtimes.Source did not advance after a changed source field")
	}

	t3 := t2.Add(time.Second)
	if err := c.ApplySwitchStatus(0, []byte(`{"source":"http"}`), t3); err != nil {
		t.Fatalf("ApplySwitchStatus: %v", err)
	}
	_, mtimes, _ = c.SwitchStatus(0)
	if !mtimes.Source.Equal(t2) {
		t.Errorf("mtimes.Source = %v, want unchanged %v (unchanged source must not advance mtime)", mtimes.Source, t2)
	}
}
