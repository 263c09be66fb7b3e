package fsadaptor

import (
	"fmt"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

// Inode numbers are assigned from a fixed, deterministic scheme rather
// than an allocation table: the whole tree is bounded (16 switches, 16
// inputs, 10 scripts, a handful of fixed files) so every path maps to
// exactly one number with no bookkeeping required. This mirrors how
// small synthetic filesystems in the jacobsa/fuse sample tree assign
// inode constants directly rather than generating them.
const (
	rootInode          fuseops.InodeID = fuseops.RootInodeID
	sysConfigInode      fuseops.InodeID = 2
	mqttConfigInode     fuseops.InodeID = 3
	crontabInode        fuseops.InodeID = 4
	scriptsDirInode     fuseops.InodeID = 5
	procDirInode        fuseops.InodeID = 6
	procSwitchDirInode  fuseops.InodeID = 7
	procInputDirInode   fuseops.InodeID = 8

	switchConfigBase   fuseops.InodeID = 100 // + switch id
	inputConfigBase    fuseops.InodeID = 200 // + input id
	scriptFileBase     fuseops.InodeID = 300 // + script id
	procSwitchInstBase fuseops.InodeID = 400 // + switch id
	procInputInstBase  fuseops.InodeID = 500 // + input id

	procSwitchFieldBase fuseops.InodeID = 1000 // + id*16 + field index
	procInputFieldBase  fuseops.InodeID = 2000 // + id*16 + field index
)

// switchFields is the fixed, ordered set of files under
// /proc/switch/N/ (spec.md §6).
var switchFields = []string{
	"output", "id", "source", "apower", "voltage",
	"current", "freq", "energy", "ret_energy", "temperature",
}

// inputFields is the fixed, ordered set of files under /proc/input/N/.
var inputFields = []string{"id", "state"}

func switchFieldIndex(name string) (int, bool) {
	for i, f := range switchFields {
		if f == name {
			return i, true
		}
	}
	return 0, false
}

func inputFieldIndex(name string) (int, bool) {
	for i, f := range inputFields {
		if f == name {
			return i, true
		}
	}
	return 0, false
}

func procSwitchFieldInode(id, field int) fuseops.InodeID {
	return procSwitchFieldBase + fuseops.InodeID(id*16+field)
}

func procInputFieldInode(id, field int) fuseops.InodeID {
	return procInputFieldBase + fuseops.InodeID(id*16+field)
}

// nodeKind identifies what an inode number refers to, for dispatch in
// GetInodeAttributes/ReadFile/WriteFile.
type nodeKind int

const (
	kindUnknown nodeKind = iota
	kindDir
	kindSysConfig
	kindMQTTConfig
	kindCrontab
	kindSwitchConfig
	kindInputConfig
	kindScriptFile
	kindProcSwitchField
	kindProcInputField
)

// classify maps an inode number back to what it is and, where
// applicable, the instance/field index it addresses.
func classify(inode fuseops.InodeID) (kind nodeKind, id, field int) {
	switch {
	case inode == rootInode || inode == scriptsDirInode || inode == procDirInode ||
		inode == procSwitchDirInode || inode == procInputDirInode:
		return kindDir, 0, 0
	case inode == sysConfigInode:
		return kindSysConfig, 0, 0
	case inode == mqttConfigInode:
		return kindMQTTConfig, 0, 0
	case inode == crontabInode:
		return kindCrontab, 0, 0
	case inode >= switchConfigBase && inode < switchConfigBase+model.MaxSwitches:
		return kindSwitchConfig, int(inode - switchConfigBase), 0
	case inode >= inputConfigBase && inode < inputConfigBase+model.MaxInputs:
		return kindInputConfig, int(inode - inputConfigBase), 0
	case inode >= scriptFileBase && inode < scriptFileBase+model.MaxScripts:
		return kindScriptFile, int(inode - scriptFileBase), 0
	case inode >= procSwitchInstBase && inode < procSwitchInstBase+model.MaxSwitches:
		return kindDir, int(inode - procSwitchInstBase), 0
	case inode >= procInputInstBase && inode < procInputInstBase+model.MaxInputs:
		return kindDir, int(inode - procInputInstBase), 0
	case inode >= procSwitchFieldBase && inode < procSwitchFieldBase+fuseops.InodeID(model.MaxSwitches*16):
		off := int(inode - procSwitchFieldBase)
		return kindProcSwitchField, off / 16, off % 16
	case inode >= procInputFieldBase && inode < procInputFieldBase+fuseops.InodeID(model.MaxInputs*16):
		off := int(inode - procInputFieldBase)
		return kindProcInputField, off / 16, off % 16
	default:
		return kindUnknown, 0, 0
	}
}

func switchConfigName(id int) string { return fmt.Sprintf("switch_%d_config.json", id) }
func inputConfigName(id int) string  { return fmt.Sprintf("input_%d_config.json", id) }
func scriptFileName(id int) string   { return fmt.Sprintf("script_%d.js", id) }
