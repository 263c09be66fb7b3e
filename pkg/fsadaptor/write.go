package fsadaptor

import (
	"bytes"
	"errors"
	"strconv"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/shusefs/shusefs/pkg/shelly/session"
	"github.com/shusefs/shusefs/pkg/util"
)

// commit applies a flushed write buffer to the device session, per
// inode kind. Mutations are never applied speculatively (spec.md §7):
// on any validation failure the cache is left untouched and EINVAL is
// returned; enqueue failures (e.g. a full pending-request table) are
// logged and surfaced as EAGAIN.
func (fs *FileSystem) commit(inode fuseops.InodeID, buf []byte) error {
	kind, id, field := classify(inode)

	switch kind {
	case kindSysConfig:
		return fs.enqueueResult("Sys.SetConfig", fs.session.Intents.SetSystemConfig(buf))
	case kindMQTTConfig:
		return fs.enqueueResult("MQTT.SetConfig", fs.session.Intents.SetMQTTConfig(buf))
	case kindSwitchConfig:
		return fs.enqueueResult("Switch.SetConfig", fs.session.Intents.SetSwitchConfig(id, buf))
	case kindInputConfig:
		return fs.enqueueResult("Input.SetConfig", fs.session.Intents.SetInputConfig(id, buf))
	case kindScriptFile:
		_, err := fs.session.Intents.PutScriptCode(id, buf)
		return fs.mapErr("Script.PutCode", err)
	case kindCrontab:
		return fs.commitCrontab(buf)
	case kindProcSwitchField:
		return fs.commitSwitchField(id, field, buf)
	default:
		return syscall.EACCES
	}
}

func (fs *FileSystem) enqueueResult(verb string, _ uint64, err error) error {
	return fs.mapErr(verb, err)
}

// mapErr translates a pkg/shelly/session error into the errno the
// filesystem layer reports, per spec.md §7's error taxonomy.
func (fs *FileSystem) mapErr(verb string, err error) error {
	if err == nil {
		return nil
	}
	var invalid *session.InvalidArgumentError
	if errors.As(err, &invalid) {
		return syscall.EINVAL
	}
	if errors.Is(err, session.ErrUnknownInstance) {
		return syscall.ENOENT
	}
	var full *session.EnqueueError
	if errors.As(err, &full) {
		util.WithField("verb", verb).WithError(err).Warn("fsadaptor: pending-request table full")
		return syscall.EAGAIN
	}
	util.WithField("verb", verb).WithError(err).Warn("fsadaptor: enqueue failed")
	return syscall.EIO
}

func (fs *FileSystem) commitCrontab(buf []byte) error {
	parsed, err := session.ParseCrontab(string(buf))
	if err != nil {
		util.Logger.WithError(err).Warn("fsadaptor: crontab parse rejected")
		return syscall.EINVAL
	}
	cached, _, _ := fs.session.Cache.Schedules()
	diff := session.DiffSchedules(cached, parsed)
	if _, err := fs.session.Intents.SyncSchedules(diff); err != nil {
		return fs.mapErr("Schedule.Sync", err)
	}
	return nil
}

func (fs *FileSystem) commitSwitchField(id, field int, buf []byte) error {
	if switchFields[field] != "output" {
		return syscall.EACCES
	}
	on, err := strconv.ParseBool(string(bytes.TrimSpace(buf)))
	if err != nil {
		return syscall.EINVAL
	}
	_, err = fs.session.Intents.SetSwitchOutput(id, on)
	return fs.mapErr("Switch.Set", err)
}
