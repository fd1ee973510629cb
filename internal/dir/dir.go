// Package dir implements directory iteration (spec.md §4.8) over a host
// directory, handed out as registry-managed handles so a stale or closed
// handle ID is rejected the same way every other OSAL object is: by the
// registry's generation check, returning osalerr.InvalidID.
//
// Grounded on the teacher's directory listing support in
// fuse/nodefs/*Readdir pathways (a handle wraps a host-side directory
// stream and is read in fixed-size batches) and, more directly, on
// fuse/handle.go's free-list-backed handle map already adapted into
// internal/registry — this package is a thin domain layer over that table.
package dir

import (
	"os"

	"github.com/nasa/osal-go/internal/osalerr"
	"github.com/nasa/osal-go/internal/registry"
)

// Entry is one directory entry returned by GetNext.
type Entry struct {
	Name  string
	IsDir bool
}

// stream holds the open os.File plus rewind state for a directory handle.
type stream struct {
	path string
	f    *os.File
}

// Manager opens and iterates host directories, handing out registry IDs.
type Manager struct {
	reg *registry.Table[stream]
}

// New creates a directory manager with room for capacity concurrent open
// directories, per spec.md §6's OS_MAX_NUM_OPEN_DIRS.
func New(capacity int) *Manager {
	return &Manager{reg: registry.NewTable[stream](registry.KindDir, capacity)}
}

// Open opens path for iteration and returns its handle ID.
func (m *Manager) Open(path string) (registry.ID, osalerr.Code) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return registry.Undefined, osalerr.FSErrPathInvalid
		}
		return registry.Undefined, osalerr.Error
	}

	tok, code := m.reg.AllocateNew(registry.Undefined, "")
	if code != osalerr.Success {
		f.Close()
		return registry.Undefined, code
	}
	*tok.Record() = stream{path: path, f: f}
	return m.reg.FinalizeNew(osalerr.Success, tok)
}

// Close releases a directory handle.
func (m *Manager) Close(id registry.ID) osalerr.Code {
	tok, code := m.reg.GetById(registry.LockExclusive, id)
	if code != osalerr.Success {
		return code
	}
	tok.Record().f.Close()
	return m.reg.FinalizeDelete(osalerr.Success, tok)
}

// GetNext reads the next directory entry, returning osalerr.QueueEmpty
// (reused as "no more entries", matching spec.md §4.8's single EOF signal)
// once the stream is exhausted.
func (m *Manager) GetNext(id registry.ID) (Entry, osalerr.Code) {
	tok, code := m.reg.GetById(registry.LockGlobal, id)
	if code != osalerr.Success {
		return Entry{}, code
	}
	defer m.reg.Release(tok)

	names, err := tok.Record().f.ReadDir(1)
	if err != nil {
		return Entry{}, osalerr.QueueEmpty
	}
	ent := names[0]
	return Entry{Name: ent.Name(), IsDir: ent.IsDir()}, osalerr.Success
}

// Rewind resets iteration back to the first entry by reopening the
// directory at its stored path and swapping the new handle in, closing the
// old one. The next GetNext therefore starts from the first entry of a
// fresh read.
func (m *Manager) Rewind(id registry.ID) osalerr.Code {
	tok, code := m.reg.GetById(registry.LockExclusive, id)
	if code != osalerr.Success {
		return code
	}
	defer m.reg.Release(tok)

	rec := tok.Record()
	f, err := os.Open(rec.path)
	if err != nil {
		return osalerr.Error
	}
	rec.f.Close()
	rec.f = f
	return osalerr.Success
}
