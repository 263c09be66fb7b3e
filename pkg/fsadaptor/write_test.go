package fsadaptor

import (
	"encoding/json"
	"syscall"
	"testing"
	"time"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/shusefs/shusefs/pkg/shelly/model"
	"github.com/shusefs/shusefs/pkg/shelly/session"
)

func TestCommit_SysConfig_Valid(t *testing.T) {
	fs, s := newTestFS(t)
	err := fs.commit(sysConfigInode, []byte(`{"device":{"name":"x"}}`))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.Table.Len() != 1 {
		t.Errorf("Table.Len() = %d, want 1 (one Sys.SetConfig enqueued)", s.Table.Len())
	}
}

func TestCommit_SysConfig_InvalidJSON(t *testing.T) {
	fs, s := newTestFS(t)
	err := fs.commit(sysConfigInode, []byte(`not json`))
	if err != syscall.EINVAL {
		t.Errorf("commit invalid JSON = %v, want EINVAL", err)
	}
	if s.Table.Len() != 0 {
		t.Error("invalid write must not enqueue a request")
	}
}

func TestCommit_MQTTConfig_Valid(t *testing.T) {
	fs, s := newTestFS(t)
	if err := fs.commit(mqttConfigInode, []byte(`{"enable":true}`)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.Table.Len() != 1 {
		t.Errorf("Table.Len() = %d, want 1", s.Table.Len())
	}
}

func TestCommit_SwitchConfig(t *testing.T) {
	fs, s := newTestFS(t)
	s.Cache.EnsureSwitchSlot(0)
	if err := fs.commit(switchConfigBase+0, []byte(`{"name":"lamp"}`)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.Table.Len() != 1 {
		t.Errorf("Table.Len() = %d, want 1", s.Table.Len())
	}
}

func TestCommit_SwitchOutput_True(t *testing.T) {
	fs, s := newTestFS(t)
	s.Cache.EnsureSwitchSlot(1)
	err := fs.commit(procSwitchFieldInode(1, 0), []byte("true\n"))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.Table.Len() != 1 {
		t.Errorf("Table.Len() = %d, want 1", s.Table.Len())
	}
}

func TestCommit_SwitchOutput_One(t *testing.T) {
	fs, s := newTestFS(t)
	s.Cache.EnsureSwitchSlot(1)
	if err := fs.commit(procSwitchFieldInode(1, 0), []byte("1")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.Table.Len() != 1 {
		t.Error("expected one request enqueued")
	}
}

func TestCommit_SwitchOutput_NumericPrefixRejected(t *testing.T) {
	// "10" and "0xff" both start with a digit that would match a naive
	// prefix check against "1"/"0"; only exact boolean spellings are
	// accepted.
	fs, s := newTestFS(t)
	s.Cache.EnsureSwitchSlot(1)
	for _, content := range []string{"10", "0xff", "2"} {
		if err := fs.commit(procSwitchFieldInode(1, 0), []byte(content)); err != syscall.EINVAL {
			t.Errorf("commit(%q) = %v, want EINVAL", content, err)
		}
	}
	if s.Table.Len() != 0 {
		t.Error("malformed boolean content must not enqueue a request")
	}
}

func TestCommit_SwitchOutput_Invalid(t *testing.T) {
	fs, s := newTestFS(t)
	s.Cache.EnsureSwitchSlot(1)
	err := fs.commit(procSwitchFieldInode(1, 0), []byte("maybe"))
	if err != syscall.EINVAL {
		t.Errorf("commit = %v, want EINVAL", err)
	}
	if s.Table.Len() != 0 {
		t.Error("invalid content must not enqueue a request")
	}
}

func TestCommit_ReadOnlyProcField_Rejected(t *testing.T) {
	fs, s := newTestFS(t)
	s.Cache.EnsureSwitchSlot(1)
	err := fs.commit(procSwitchFieldInode(1, 3), []byte("1.0")) // apower, read-only
	if err != syscall.EACCES {
		t.Errorf("commit to read-only field = %v, want EACCES", err)
	}
}

func TestCommit_Crontab_InvalidSyntax(t *testing.T) {
	fs, _ := newTestFS(t)
	err := fs.commit(crontabInode, []byte("not a valid crontab line\n"))
	if err != syscall.EINVAL {
		t.Errorf("commit = %v, want EINVAL", err)
	}
}

func TestCommit_Crontab_DifferentialSync(t *testing.T) {
	fs, s := newTestFS(t)
	schedules := []model.Schedule{
		{ID: 1, Enable: true, Timespec: "0 0 6 * * *", Calls: []model.ScheduleCall{{Method: "Switch.Set", Params: json.RawMessage(`{"id":0,"on":true}`)}}},
		{ID: 2, Enable: true, Timespec: "0 0 7 * * *", Calls: []model.ScheduleCall{{Method: "Switch.Set", Params: json.RawMessage(`{"id":0,"on":false}`)}}},
	}
	if err := s.Cache.SetScheduleList(schedules, time.Now()); err != nil {
		t.Fatalf("SetScheduleList: %v", err)
	}

	text := "0 0 6 * * * Switch.Set:{\"id\":0,\"on\":true} id=1\n" +
		"0 0 8 * * * Switch.Set:{\"id\":0,\"on\":true}\n"

	if err := fs.commit(crontabInode, []byte(text)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// id=1 unchanged, id=2 deleted, one new schedule created: 2 requests.
	if s.Table.Len() != 2 {
		t.Errorf("Table.Len() = %d, want 2 (one delete, one create)", s.Table.Len())
	}
}

func TestCommit_ScriptFile(t *testing.T) {
	fs, s := newTestFS(t)
	err := fs.commit(scriptFileBase+3, []byte("print('hi')"))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.Table.Len() != 1 {
		t.Errorf("Table.Len() = %d, want 1 (single-chunk upload)", s.Table.Len())
	}
}

func TestCommit_UnknownInode(t *testing.T) {
	fs, _ := newTestFS(t)
	if err := fs.commit(999999, []byte("x")); err != syscall.EACCES {
		t.Errorf("commit unknown inode = %v, want EACCES", err)
	}
}

func TestWriteThenFlush_AppliesBufferedContent(t *testing.T) {
	fs, s := newTestFS(t)
	s.Cache.EnsureSwitchSlot(0)

	h := fs.allocHandle(switchConfigBase + 0)
	if err := fs.WriteFile(nil, &fuseops.WriteFileOp{Handle: h, Offset: 0, Data: []byte(`{"name":"a"}`)}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := fs.FlushFile(nil, &fuseops.FlushFileOp{Handle: h}); err != nil {
		t.Fatalf("FlushFile: %v", err)
	}
	if s.Table.Len() != 1 {
		t.Errorf("Table.Len() = %d, want 1", s.Table.Len())
	}
}

func TestWriteThenFlush_ZeroByteWriteStillCommits(t *testing.T) {
	// A crontab cleared to empty (`: > crontab`) must still reach the
	// device as a genuine zero-length commit, not be mistaken for a
	// handle that was never written to. Seed one existing schedule so
	// an empty crontab produces a real Delete, proving the write
	// actually ran rather than being silently skipped.
	fs, s := newTestFS(t)
	existing := []model.Schedule{{ID: 1, Enable: true, Timespec: "0 0 7 * * *"}}
	if err := s.Cache.SetScheduleList(existing, time.Now()); err != nil {
		t.Fatalf("SetScheduleList: %v", err)
	}

	h := fs.allocHandle(crontabInode)
	if err := fs.WriteFile(nil, &fuseops.WriteFileOp{Handle: h, Offset: 0, Data: nil}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := fs.FlushFile(nil, &fuseops.FlushFileOp{Handle: h}); err != nil {
		t.Fatalf("FlushFile: %v", err)
	}
	if s.Table.Len() != 1 {
		t.Errorf("Table.Len() = %d, want 1 (Schedule.Delete from an empty crontab wiping the one cached schedule)", s.Table.Len())
	}
}

func TestFlush_NoWrite_IsNoop(t *testing.T) {
	fs, s := newTestFS(t)
	h := fs.allocHandle(sysConfigInode)
	if err := fs.FlushFile(nil, &fuseops.FlushFileOp{Handle: h}); err != nil {
		t.Fatalf("FlushFile: %v", err)
	}
	if s.Table.Len() != 0 {
		t.Error("flush without a prior write must not enqueue anything")
	}
}

func TestMapErr_UnknownInstance(t *testing.T) {
	fs, _ := newTestFS(t)
	if err := fs.mapErr("x", session.ErrUnknownInstance); err != syscall.ENOENT {
		t.Errorf("mapErr(ErrUnknownInstance) = %v, want ENOENT", err)
	}
}

func TestMapErr_Nil(t *testing.T) {
	fs, _ := newTestFS(t)
	if err := fs.mapErr("x", nil); err != nil {
		t.Errorf("mapErr(nil) = %v, want nil", err)
	}
}
