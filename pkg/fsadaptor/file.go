package fsadaptor

import (
	"context"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
)

// OpenFile allocates a write-scratch handle; reads never use it.
func (fs *FileSystem) OpenFile(_ context.Context, op *fuseops.OpenFileOp) error {
	kind, _, _ := classify(op.Inode)
	if kind == kindUnknown || kind == kindDir {
		return syscall.ENOENT
	}
	op.Handle = fs.allocHandle(op.Inode)
	return nil
}

// ReadFile always renders a fresh snapshot from the cache, ignoring
// any in-progress write buffer on the same or a different handle —
// reads and writes never interact mid-flight (spec.md §5).
func (fs *FileSystem) ReadFile(_ context.Context, op *fuseops.ReadFileOp) error {
	content, err := fs.render(op.Inode)
	if err != nil {
		return err
	}
	if int64(len(content)) <= op.Offset {
		op.BytesRead = 0
		return nil
	}
	op.BytesRead = copy(op.Dst, content[op.Offset:])
	return nil
}

// render dispatches to the content renderer for inode's kind.
func (fs *FileSystem) render(inode fuseops.InodeID) ([]byte, error) {
	kind, id, field := classify(inode)
	switch kind {
	case kindSysConfig:
		c, _ := fs.renderSysConfig()
		return c, nil
	case kindMQTTConfig:
		c, _ := fs.renderMQTTConfig()
		return c, nil
	case kindCrontab:
		c, _ := fs.renderCrontab()
		return c, nil
	case kindSwitchConfig:
		c, _ := fs.renderSwitchConfig(id)
		return c, nil
	case kindInputConfig:
		c, _ := fs.renderInputConfig(id)
		return c, nil
	case kindScriptFile:
		c, _ := fs.renderScriptFile(id)
		return c, nil
	case kindProcSwitchField:
		c, _ := fs.renderSwitchField(id, field)
		return c, nil
	case kindProcInputField:
		c, _ := fs.renderInputField(id, field)
		return c, nil
	default:
		return nil, syscall.ENOENT
	}
}

// WriteFile buffers into the handle's scratch area; nothing is
// enqueued to the device until FlushFile (most writers open with
// O_TRUNC and write the whole file in one or a few calls, then close).
func (fs *FileSystem) WriteFile(_ context.Context, op *fuseops.WriteFileOp) error {
	fh, ok := fs.handleFor(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	fh.written = true
	end := int(op.Offset) + len(op.Data)
	if end > len(fh.buf) {
		grown := make([]byte, end)
		copy(grown, fh.buf)
		fh.buf = grown
	}
	copy(fh.buf[op.Offset:], op.Data)
	return nil
}

// FlushFile applies the buffered write, if any, to the device session.
// fh.written (not fh.buf's nilness) distinguishes "never written to"
// from a genuine zero-byte write — e.g. truncating the crontab to
// empty to delete every schedule — which must still commit.
func (fs *FileSystem) FlushFile(_ context.Context, op *fuseops.FlushFileOp) error {
	fh, ok := fs.handleFor(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	if !fh.written {
		return nil // handle was opened read-only or never written to
	}
	return fs.commit(fh.inode, fh.buf)
}

// ReleaseFileHandle drops the handle allocated by OpenFile.
func (fs *FileSystem) ReleaseFileHandle(_ context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fs.releaseHandle(op.Handle)
	return nil
}
