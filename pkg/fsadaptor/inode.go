package fsadaptor

import (
	"context"
	"os"
	"strconv"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

// dirent is one entry of a resolved directory listing, shared by
// LookUpInode (resolve one name) and ReadDir (enumerate all of them).
type dirent struct {
	name  string
	inode fuseops.InodeID
	isDir bool
}

// entriesFor returns the full, order-stable listing of directory
// inode. Order matters only for ReadDir's offset-based pagination
// contract, not for correctness of lookups.
func (fs *FileSystem) entriesFor(inode fuseops.InodeID) []dirent {
	switch inode {
	case rootInode:
		out := []dirent{
			{"sys_config.json", sysConfigInode, false},
			{"mqtt_config.json", mqttConfigInode, false},
			{"crontab", crontabInode, false},
			{"scripts", scriptsDirInode, true},
			{"proc", procDirInode, true},
		}
		for _, id := range fs.session.Cache.ValidSwitchIDs() {
			out = append(out, dirent{switchConfigName(id), switchConfigBase + fuseops.InodeID(id), false})
		}
		for _, id := range fs.session.Cache.ValidInputIDs() {
			out = append(out, dirent{inputConfigName(id), inputConfigBase + fuseops.InodeID(id), false})
		}
		return out

	case scriptsDirInode:
		var out []dirent
		for _, id := range fs.session.Cache.ValidScriptIDs() {
			out = append(out, dirent{scriptFileName(id), scriptFileBase + fuseops.InodeID(id), false})
		}
		return out

	case procDirInode:
		return []dirent{
			{"switch", procSwitchDirInode, true},
			{"input", procInputDirInode, true},
		}

	case procSwitchDirInode:
		var out []dirent
		for _, id := range fs.session.Cache.ValidSwitchIDs() {
			out = append(out, dirent{strconv.Itoa(id), procSwitchInstBase + fuseops.InodeID(id), true})
		}
		return out

	case procInputDirInode:
		var out []dirent
		for _, id := range fs.session.Cache.ValidInputIDs() {
			out = append(out, dirent{strconv.Itoa(id), procInputInstBase + fuseops.InodeID(id), true})
		}
		return out
	}

	if inode >= procSwitchInstBase && inode < procSwitchInstBase+model.MaxSwitches {
		id := int(inode - procSwitchInstBase)
		out := make([]dirent, len(switchFields))
		for i, name := range switchFields {
			out[i] = dirent{name, procSwitchFieldInode(id, i), false}
		}
		return out
	}
	if inode >= procInputInstBase && inode < procInputInstBase+model.MaxInputs {
		id := int(inode - procInputInstBase)
		out := make([]dirent, len(inputFields))
		for i, name := range inputFields {
			out[i] = dirent{name, procInputFieldInode(id, i), false}
		}
		return out
	}
	return nil
}

// LookUpInode resolves one name within a directory inode.
func (fs *FileSystem) LookUpInode(_ context.Context, op *fuseops.LookUpInodeOp) error {
	for _, e := range fs.entriesFor(op.Parent) {
		if e.name == op.Name {
			op.Entry.Child = e.inode
			op.Entry.Attributes = fs.attrFor(e.inode)
			return nil
		}
	}
	return syscall.ENOENT
}

// attrFor computes the current attributes of inode, rendering file
// content where necessary to get an accurate size and mtime.
func (fs *FileSystem) attrFor(inode fuseops.InodeID) fuseops.InodeAttributes {
	kind, id, field := classify(inode)
	switch kind {
	case kindDir:
		return dirAttr(now())
	case kindSysConfig:
		content, mtime := fs.renderSysConfig()
		return fileAttr(0664, len(content), mtime)
	case kindMQTTConfig:
		content, mtime := fs.renderMQTTConfig()
		return fileAttr(0664, len(content), mtime)
	case kindCrontab:
		content, mtime := fs.renderCrontab()
		return fileAttr(0644, len(content), mtime)
	case kindSwitchConfig:
		content, mtime := fs.renderSwitchConfig(id)
		return fileAttr(0664, len(content), mtime)
	case kindInputConfig:
		content, mtime := fs.renderInputConfig(id)
		return fileAttr(0664, len(content), mtime)
	case kindScriptFile:
		content, mtime := fs.renderScriptFile(id)
		return fileAttr(0664, len(content), mtime)
	case kindProcSwitchField:
		content, mtime := fs.renderSwitchField(id, field)
		mode := os.FileMode(0444)
		if switchFields[field] == "output" {
			mode = 0664
		}
		return fileAttr(mode, len(content), mtime)
	case kindProcInputField:
		content, mtime := fs.renderInputField(id, field)
		return fileAttr(0444, len(content), mtime)
	default:
		return fuseops.InodeAttributes{}
	}
}

// GetInodeAttributes reports the current attributes of inode.
func (fs *FileSystem) GetInodeAttributes(_ context.Context, op *fuseops.GetInodeAttributesOp) error {
	kind, _, _ := classify(op.Inode)
	if kind == kindUnknown {
		return syscall.ENOENT
	}
	op.Attributes = fs.attrFor(op.Inode)
	return nil
}

// SetInodeAttributes supports the truncate-on-open pattern (most
// writers open with O_TRUNC); any requested size change is a no-op
// here because content is generated on demand from the cache, not
// stored — WriteFile/FlushFile own the actual mutation.
func (fs *FileSystem) SetInodeAttributes(_ context.Context, op *fuseops.SetInodeAttributesOp) error {
	kind, _, _ := classify(op.Inode)
	if kind == kindUnknown {
		return syscall.ENOENT
	}
	op.Attributes = fs.attrFor(op.Inode)
	return nil
}

// ForgetInode is a no-op: the tree has no refcounted allocation to
// release, since inode numbers are computed, not allocated.
func (fs *FileSystem) ForgetInode(_ context.Context, _ *fuseops.ForgetInodeOp) error {
	return nil
}

// OpenDir always succeeds; directory listings have no per-handle state.
func (fs *FileSystem) OpenDir(_ context.Context, op *fuseops.OpenDirOp) error {
	op.Handle = fs.allocHandle(op.Inode)
	return nil
}

// ReleaseDirHandle drops the handle allocated by OpenDir.
func (fs *FileSystem) ReleaseDirHandle(_ context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.releaseHandle(op.Handle)
	return nil
}

// ReadDir serializes entriesFor(op.Inode) into op.Dst starting at
// op.Offset, following the standard jacobsa/fuse pagination contract:
// the kernel keeps calling with an advancing offset until a call
// writes zero bytes.
func (fs *FileSystem) ReadDir(_ context.Context, op *fuseops.ReadDirOp) error {
	entries := fs.entriesFor(op.Inode)
	if int(op.Offset) > len(entries) {
		return syscall.EIO
	}
	for i := int(op.Offset); i < len(entries); i++ {
		e := entries[i]
		dt := fuseutil.DT_File
		if e.isDir {
			dt = fuseutil.DT_Dir
		}
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  e.inode,
			Name:   e.name,
			Type:   dt,
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}
