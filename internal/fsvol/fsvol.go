// Package fsvol implements the filesystem volume manager of spec.md §4.3:
// register, format, mount/unmount, and stat filesystem volumes, delegating
// the host-specific steps (starting a device, formatting, confirming a
// system-level mount) to a HostShim.
//
// The mkfs/initfs-share-a-helper structure spec.md §4.3 describes is
// grounded on the teacher's NewPathFileSystemConnector/Lookup pattern
// (hanwen-go-fuse/fuse/pathfilesystem.go): a single internal constructor
// that both entry points funnel through, registering into one shared table
// under one lock.
package fsvol

import (
	"github.com/nasa/osal-go/internal/osalerr"
	"github.com/nasa/osal-go/internal/registry"
	"github.com/nasa/osal-go/internal/vfs"
)

// Stat reports a volume's capacity, per spec.md's FileSysStatVolume.
type Stat struct {
	BlockSize   uint32
	TotalBlocks uint32
	BlocksFree  uint32
}

// HostShim performs the host-specific half of each operation. Backends
// (posix, rtems, vxworks, macos in the original) each provide one; fsvol
// only orchestrates registry/mount-table bookkeeping around it.
type HostShim interface {
	// StartVolume brings up the low-level device at physical, analogous to
	// the original's OS_BSP_StartVolume. Called by both mkfs and initfs.
	StartVolume(physical string) error
	// Format writes a fresh filesystem of the given type at physical.
	Format(physical, fstype string) error
	// ConfirmMounted reports whether physical is presently mounted at the
	// host level, consulted by Mount before flipping IS_MOUNTED_SYSTEM.
	ConfirmMounted(physical string) bool
	// Stat reports capacity; OperationNotSupported if the backend cannot.
	Stat(physical string) (Stat, osalerr.Code)
}

// volume is the kind-specific record stored in the registry for KindFileSys.
type volume struct {
	deviceName string
	physical   string
	fstype     string
	ready      bool
	mounted    bool
}

// Manager ties the KindFileSys registry table to a vfs.Table and a
// HostShim.
type Manager struct {
	reg        *registry.Table[volume]
	mnt        *vfs.Table
	shim       HostShim
	volNameLen int
	pathLen    int
}

// New constructs a volume manager with the given table capacity.
// volNameLen and pathLen are the configured FS_VOL_NAME_LEN/MAX_PATH_LEN
// ceilings (spec.md §6) that register enforces, rather than fixed
// constants, so Manager stays in step with the Context it is built from.
func New(capacity int, mnt *vfs.Table, shim HostShim, volNameLen, pathLen int) *Manager {
	return &Manager{
		reg:        registry.NewTable[volume](registry.KindFileSys, capacity),
		mnt:        mnt,
		shim:       shim,
		volNameLen: volNameLen,
		pathLen:    pathLen,
	}
}

func (m *Manager) register(creator registry.ID, deviceName, volumeName, physical, fstype string, format bool) (registry.ID, osalerr.Code) {
	if code := osalerr.CheckName(volumeName, m.volNameLen); code != osalerr.Success {
		return registry.Undefined, code
	}
	if code := osalerr.CheckPath(physical, m.pathLen); code != osalerr.Success {
		return registry.Undefined, code
	}

	tok, code := m.reg.AllocateNew(creator, volumeName)
	if code != osalerr.Success {
		return registry.Undefined, code
	}

	if err := m.shim.StartVolume(physical); err != nil {
		m.reg.FinalizeNew(osalerr.Error, tok)
		return registry.Undefined, osalerr.Error
	}
	if format {
		if err := m.shim.Format(physical, fstype); err != nil {
			m.reg.FinalizeNew(osalerr.Error, tok)
			return registry.Undefined, osalerr.Error
		}
	}

	*tok.Record() = volume{deviceName: deviceName, physical: physical, fstype: fstype, ready: true}
	return m.reg.FinalizeNew(osalerr.Success, tok)
}

// Mkfs formats a fresh volume and registers it.
func (m *Manager) Mkfs(creator registry.ID, deviceName, volumeName, physical, fstype string) (registry.ID, osalerr.Code) {
	return m.register(creator, deviceName, volumeName, physical, fstype, true)
}

// Initfs attaches an existing, already-formatted volume without
// reformatting it.
func (m *Manager) Initfs(creator registry.ID, deviceName, volumeName, physical, fstype string) (registry.ID, osalerr.Code) {
	return m.register(creator, deviceName, volumeName, physical, fstype, false)
}

// Rmfs deregisters a volume. The volume must be unmounted first and must
// have no outstanding references.
func (m *Manager) Rmfs(id registry.ID) osalerr.Code {
	tok, code := m.reg.GetById(registry.LockExclusive, id)
	if code != osalerr.Success {
		return code
	}
	if tok.Record().mounted {
		m.reg.Release(tok)
		return osalerr.FSErrDeviceNotFree
	}
	return m.reg.FinalizeDelete(osalerr.Success, tok)
}

// Mount flips IS_MOUNTED_SYSTEM and IS_MOUNTED_VIRTUAL for the volume,
// confirming the host-level mount via the shim first.
func (m *Manager) Mount(id registry.ID, virtual string) osalerr.Code {
	tok, code := m.reg.GetById(registry.LockGlobal, id)
	if code != osalerr.Success {
		return code
	}
	defer m.reg.Release(tok)

	vol := tok.Record()
	if !vol.ready {
		return osalerr.IncorrectObjState
	}
	if !m.shim.ConfirmMounted(vol.physical) {
		return osalerr.IncorrectObjState
	}

	flags := vfs.IsReady | vfs.IsMountedSystem | vfs.IsMountedVirtual
	if _, exists := m.mnt.Lookup(virtual); exists {
		if code := m.mnt.SetFlags(virtual, flags); code != osalerr.Success {
			return code
		}
	} else {
		if code := m.mnt.AddFixedMap(vol.physical, virtual); code != osalerr.Success {
			return code
		}
		// AddFixedMap marks IS_FIXED; fsvol-managed mounts are
		// unmountable, so clear that bit immediately.
		if code := m.mnt.SetFlags(virtual, flags); code != osalerr.Success {
			return code
		}
	}
	vol.mounted = true
	return osalerr.Success
}

// Unmount reverts IS_MOUNTED_SYSTEM and IS_MOUNTED_VIRTUAL.
func (m *Manager) Unmount(id registry.ID, virtual string) osalerr.Code {
	tok, code := m.reg.GetById(registry.LockGlobal, id)
	if code != osalerr.Success {
		return code
	}
	defer m.reg.Release(tok)

	if code := m.mnt.SetFlags(virtual, vfs.IsReady); code != osalerr.Success {
		return code
	}
	tok.Record().mounted = false
	return osalerr.Success
}

// Chkfs asks the shim to confirm the volume's host-level mount is intact.
func (m *Manager) Chkfs(id registry.ID) osalerr.Code {
	tok, code := m.reg.GetById(registry.LockGlobal, id)
	if code != osalerr.Success {
		return code
	}
	defer m.reg.Release(tok)
	if !m.shim.ConfirmMounted(tok.Record().physical) {
		return osalerr.IncorrectObjState
	}
	return osalerr.Success
}

// FileSysStatVolume reports a volume's capacity.
func (m *Manager) FileSysStatVolume(id registry.ID) (Stat, osalerr.Code) {
	tok, code := m.reg.GetById(registry.LockGlobal, id)
	if code != osalerr.Success {
		return Stat{}, code
	}
	defer m.reg.Release(tok)
	return m.shim.Stat(tok.Record().physical)
}

// FreeBytes computes free bytes from a Stat, per spec.md §4.3.
func (s Stat) FreeBytes() uint64 {
	return uint64(s.BlockSize) * uint64(s.BlocksFree)
}
