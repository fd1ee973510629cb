//go:build linux

package fsvol

import (
	"os"
	"syscall"

	"github.com/moby/sys/mountinfo"
	"github.com/nasa/osal-go/internal/osalerr"
)

// PosixShim is the Linux host shim: it starts a volume by creating the
// physical mountpoint directory if it is missing, "formats" by the same
// directory creation and nothing more (existing content is left in place;
// the emulation backend does not own a real filesystem formatter), and
// confirms mounts via /proc/self/mountinfo through
// moby/sys/mountinfo, the teacher's own mount-table cross-check dependency.
type PosixShim struct{}

func (PosixShim) StartVolume(physical string) error {
	return os.MkdirAll(physical, 0o755)
}

func (PosixShim) Format(physical, fstype string) error {
	return os.MkdirAll(physical, 0o755)
}

func (PosixShim) ConfirmMounted(physical string) bool {
	mounts, err := mountinfo.GetMounts(mountinfo.SingleEntryFilter(physical))
	if err == nil && len(mounts) > 0 {
		return true
	}
	// physical may be a subdirectory of a mounted filesystem rather than a
	// mountpoint itself (common for the emulation backend, which mounts a
	// single host filesystem and carves OSAL volumes out of directories
	// under it); fall back to a plain existence check in that case.
	info, statErr := os.Stat(physical)
	return statErr == nil && info.IsDir()
}

func (PosixShim) Stat(physical string) (Stat, osalerr.Code) {
	var fs syscall.Statfs_t
	if err := syscall.Statfs(physical, &fs); err != nil {
		return Stat{}, osalerr.OperationNotSupported
	}
	return Stat{
		BlockSize:   uint32(fs.Bsize),
		TotalBlocks: uint32(fs.Blocks),
		BlocksFree:  uint32(fs.Bfree),
	}, osalerr.Success
}
