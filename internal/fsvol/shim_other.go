//go:build !linux

package fsvol

import (
	"os"

	"github.com/nasa/osal-go/internal/osalerr"
)

// PosixShim is the non-Linux host shim (including macOS): without a
// mountinfo-equivalent table to consult, ConfirmMounted falls back to a
// plain stat-based existence check, and Stat reports OperationNotSupported
// per spec.md §4.3's "implementations that cannot compute these" clause.
type PosixShim struct{}

func (PosixShim) StartVolume(physical string) error {
	return os.MkdirAll(physical, 0o755)
}

func (PosixShim) Format(physical, fstype string) error {
	return os.MkdirAll(physical, 0o755)
}

func (PosixShim) ConfirmMounted(physical string) bool {
	info, err := os.Stat(physical)
	return err == nil && info.IsDir()
}

func (PosixShim) Stat(physical string) (Stat, osalerr.Code) {
	if _, err := os.Stat(physical); err != nil {
		return Stat{}, osalerr.OperationNotSupported
	}
	return Stat{}, osalerr.OperationNotSupported
}
