// Package vfs implements the virtual filesystem and path translation layer
// of spec.md §4.2: a mount table mapping application-visible virtual paths
// to host-native physical paths, with validated, component-boundary-aware
// prefix matching.
//
// The mount table itself is grounded on the teacher's path-to-inode map in
// hanwen-go-fuse/fuse/pathfilesystem.go (a name-keyed map guarded by a
// single mutex, built up by explicit Add calls) generalized from a
// parent-inode/name key to a virtual-mountpoint key.
package vfs

import (
	"strings"
	"sync"

	"github.com/nasa/osal-go/internal/osalerr"
)

// MountFlags is the bitmap spec.md §3 describes for a Mount Entry.
type MountFlags uint8

const (
	IsFixed MountFlags = 1 << iota
	IsReady
	IsMountedSystem
	IsMountedVirtual
)

// Entry is one mount table row (spec.md §3 Mount Entry).
type Entry struct {
	DeviceName        string
	VolumeName        string
	PhysicalMountpt   string
	VirtualMountpt    string
	BlockSize         uint32
	BlockCount        uint32
	Flags             MountFlags
	FSType            string
}

func (f MountFlags) has(bit MountFlags) bool { return f&bit != 0 }

// valid enforces the invariant from spec.md §3:
// IS_MOUNTED_VIRTUAL ⇒ IS_MOUNTED_SYSTEM ⇒ IS_READY.
func (f MountFlags) valid() bool {
	if f.has(IsMountedVirtual) && !f.has(IsMountedSystem) {
		return false
	}
	if f.has(IsMountedSystem) && !f.has(IsReady) {
		return false
	}
	return true
}

// Table is the mount table shared by every virtual path lookup.
type Table struct {
	mu         sync.Mutex
	entries    map[string]*Entry // keyed by VirtualMountpt
	maxPathLen int
	maxFSName  int
}

// NewTable constructs an empty mount table. maxPathLen bounds the full
// virtual/physical path (spec.md MAX_PATH_LEN / MAX_LOCAL_PATH_LEN,
// collapsed to one limit here since the emulation backend has no separate
// local-path budget); maxFileName bounds the last path component
// (MAX_FILE_NAME).
func NewTable(maxPathLen, maxFileName int) *Table {
	return &Table{
		entries:    make(map[string]*Entry),
		maxPathLen: maxPathLen,
		maxFSName:  maxFileName,
	}
}

func normalize(p string) string {
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		return strings.TrimRight(p, "/")
	}
	return p
}

// AddFixedMap registers an IS_FIXED, IS_READY, IS_MOUNTED_SYSTEM,
// IS_MOUNTED_VIRTUAL entry without invoking any host-level format/mount,
// per spec.md §4.2.
func (t *Table) AddFixedMap(physical, virtual string) osalerr.Code {
	return t.add(&Entry{
		PhysicalMountpt: physical,
		VirtualMountpt:  virtual,
		Flags:           IsFixed | IsReady | IsMountedSystem | IsMountedVirtual,
	})
}

// add registers an arbitrary mount entry, validating both paths and the
// uniqueness invariant before inserting. Flags must already satisfy the
// IS_MOUNTED_VIRTUAL ⇒ IS_MOUNTED_SYSTEM ⇒ IS_READY chain.
func (t *Table) add(e *Entry) osalerr.Code {
	if code := osalerr.CheckPath(e.PhysicalMountpt, t.maxPathLen); code != osalerr.Success {
		return code
	}
	if code := osalerr.CheckPath(e.VirtualMountpt, t.maxPathLen); code != osalerr.Success {
		return code
	}
	if !e.Flags.valid() {
		return osalerr.IncorrectObjState
	}

	virt := normalize(e.VirtualMountpt)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.entries[virt]; dup {
		return osalerr.NameTaken
	}
	cp := *e
	cp.VirtualMountpt = virt
	cp.PhysicalMountpt = normalize(e.PhysicalMountpt)
	t.entries[virt] = &cp
	return osalerr.Success
}

// Remove deregisters a mount entry by its virtual mountpoint. IS_FIXED
// entries cannot be removed, per the glossary's "not user-unmountable".
func (t *Table) Remove(virtual string) osalerr.Code {
	virt := normalize(virtual)
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[virt]
	if !ok {
		return osalerr.NameNotFound
	}
	if e.Flags.has(IsFixed) {
		return osalerr.IncorrectObjState
	}
	delete(t.entries, virt)
	return osalerr.Success
}

// SetFlags replaces the flag bitmap of an existing entry (used by fsvol's
// mount/unmount to flip IS_MOUNTED_SYSTEM / IS_MOUNTED_VIRTUAL), validating
// the resulting state against the invariant.
func (t *Table) SetFlags(virtual string, flags MountFlags) osalerr.Code {
	if !flags.valid() {
		return osalerr.IncorrectObjState
	}
	virt := normalize(virtual)
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[virt]
	if !ok {
		return osalerr.NameNotFound
	}
	e.Flags = flags
	return osalerr.Success
}

// Lookup returns a copy of the entry registered at virtual, if any.
func (t *Table) Lookup(virtual string) (Entry, bool) {
	virt := normalize(virtual)
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[virt]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// All returns a snapshot of every registered entry.
func (t *Table) All() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	return out
}

// matchMount finds the entry whose VirtualMountpt is a component-boundary
// prefix of virtual: "/ut" matches "/ut" and "/ut/x" but never "/utXX".
func (t *Table) matchMount(virtual string) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var best *Entry
	for mnt, e := range t.entries {
		if virtual != mnt && !strings.HasPrefix(virtual, mnt+"/") {
			continue
		}
		if best == nil || len(mnt) > len(best.VirtualMountpt) {
			best = e
		}
	}
	if best == nil {
		return nil, false
	}
	cp := *best
	return &cp, true
}

// TranslatePath maps a virtual path to its physical path per spec.md §4.2.
func (t *Table) TranslatePath(virtual string) (string, osalerr.Code) {
	if virtual == "" {
		return "", osalerr.InvalidPointer
	}
	if virtual[0] != '/' {
		return "", osalerr.PathInvalid
	}
	if len(virtual) > t.maxPathLen-1 {
		return "", osalerr.PathTooLong
	}
	if idx := strings.LastIndexByte(virtual, '/'); idx >= 0 {
		if name := virtual[idx+1:]; len(name) > t.maxFSName-1 {
			return "", osalerr.NameTooLong
		}
	}

	virtual = normalize(virtual)
	entry, ok := t.matchMount(virtual)
	if !ok {
		return "", osalerr.PathInvalid
	}
	if !entry.Flags.has(IsMountedVirtual) {
		return "", osalerr.IncorrectObjState
	}

	remainder := strings.TrimPrefix(virtual, entry.VirtualMountpt)
	local := entry.PhysicalMountpt + remainder
	if len(local) > t.maxPathLen-1 {
		return "", osalerr.PathTooLong
	}
	return local, osalerr.Success
}
