// Package fsadaptor binds a device session to a FUSE mount: the file
// tree described in spec.md §6 (config files, crontab, scripts, and
// the /proc status tree), backed entirely by pkg/shelly/session's
// cache and RPC intention layer. Every handler is non-blocking — reads
// render the cache's current snapshot and writes enqueue a request and
// return, never waiting on the device (spec.md §5's fire-and-forget
// filesystem task).
package fsadaptor

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/shusefs/shusefs/pkg/shelly/session"
	"github.com/shusefs/shusefs/pkg/util"
)

// FileSystem implements fuseutil.FileSystem over one device session. It
// embeds NotImplementedFileSystem so operations the file tree never
// needs (mkdir, symlink, rename, xattrs, ...) fail with ENOSYS without
// each needing an explicit stub here.
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	session *session.Session
	device  string // for log context only

	mu       sync.Mutex
	handles  map[fuseops.HandleID]*fileHandle
	nextHandle fuseops.HandleID
}

// fileHandle is the write-side scratch buffer for one open file
// handle. Reads never consult it — ReadFile always renders a fresh
// snapshot from the cache — so a handle only matters for files opened
// for writing (config files, crontab, scripts, switch output).
type fileHandle struct {
	inode   fuseops.InodeID
	buf     []byte
	written bool // true once WriteFile has been called, even with zero bytes
}

// New builds a FileSystem bound to s. device is used only to annotate
// log lines.
func New(s *session.Session, device string) *FileSystem {
	return &FileSystem{
		session:    s,
		device:     device,
		handles:    make(map[fuseops.HandleID]*fileHandle),
		nextHandle: 1,
	}
}

// Mount mounts fs at mountPoint and returns the live mount, or an error
// if the kernel rejects the mount request. Callers unmount via
// fuse.Unmount(mountPoint) or by calling Unmount on the returned value.
func Mount(mountPoint string, fs *FileSystem) (*fuse.MountedFileSystem, error) {
	cfg := &fuse.MountConfig{
		FSName:     "shusefs",
		VolumeName: "shusefs",
	}
	mfs, err := fuse.Mount(mountPoint, fuseutil.NewFileSystemServer(fs), cfg)
	if err != nil {
		return nil, err
	}
	util.WithDevice(fs.device).WithField("mount", mountPoint).Info("fsadaptor: mounted")
	return mfs, nil
}

// Unmount requests the kernel unmount mountPoint. The mount's Join
// call (see Mount's returned *fuse.MountedFileSystem) returns once the
// unmount completes.
func Unmount(mountPoint string) error {
	return fuse.Unmount(mountPoint)
}

func (fs *FileSystem) allocHandle(inode fuseops.InodeID) fuseops.HandleID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	h := fs.nextHandle
	fs.nextHandle++
	fs.handles[h] = &fileHandle{inode: inode}
	return h
}

func (fs *FileSystem) handleFor(h fuseops.HandleID) (*fileHandle, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fh, ok := fs.handles[h]
	return fh, ok
}

func (fs *FileSystem) releaseHandle(h fuseops.HandleID) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.handles, h)
}

// now is a seam so tests can't depend on wall-clock time leaking into
// attribute comparisons; production code always calls time.Now.
var now = time.Now

func fileAttr(mode os.FileMode, size int, mtime time.Time) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(size),
		Nlink: 1,
		Mode:  mode,
		Atime: mtime,
		Mtime: mtime,
		Ctime: mtime,
	}
}

func dirAttr(mtime time.Time) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Nlink: 1,
		Mode:  os.ModeDir | 0755,
		Atime: mtime,
		Mtime: mtime,
		Ctime: mtime,
	}
}

// StatFS answers with zeroed statistics; the file tree is synthetic and
// has no meaningful block/inode counts to report.
func (fs *FileSystem) StatFS(_ context.Context, _ *fuseops.StatFSOp) error {
	return nil
}

// Destroy releases no resources of its own; the session/transport
// lifecycle is owned by the caller (cmd/shusefs), not the mount.
func (fs *FileSystem) Destroy() {}
