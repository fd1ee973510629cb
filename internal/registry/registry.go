// Package registry implements the object registry of spec.md §4.1: a
// per-kind fixed-capacity table mapping opaque IDs to records, with
// name-based lookup, reference counting, and atomic allocate/finalize/delete
// transitions under a per-kind lock.
//
// The free-list-plus-generation design is grounded on the teacher's
// HandleMap (hanwen-go-fuse/fuse/handle.go, the portableHandleMap variant):
// a slice of slots, a stack of free indices, and a check value (here, the
// generation counter) that detects use of a stale handle. Where the teacher
// used unsafe pointer tricks for its 64-bit variant, Table[T] uses Go
// generics to keep each kind's payload typed without reflection.
package registry

import (
	"sync"

	"github.com/nasa/osal-go/internal/osalerr"
)

// LockMode records what kind of hold a Token has on its table, per
// spec.md §4.1.
type LockMode uint8

const (
	// LockNone validates then releases the kind lock immediately; used on
	// kinds whose impl layer is internally thread-safe.
	LockNone LockMode = iota
	// LockExclusive is held across allocate/delete.
	LockExclusive
	// LockGlobal is held for a short read-only inspection of the record.
	LockGlobal
	// LockRefcount increments the record's refcount and releases the kind
	// lock so the operation runs concurrently with others.
	LockRefcount
)

type record[T any] struct {
	active   ID
	name     string
	hasName  bool
	creator  ID
	refcount int32
	impl     T
}

func (r *record[T]) free() bool { return r.active == Undefined }

// Table is the fixed-capacity, kind-specific object table of spec.md §3
// ("Per-kind Tables"). capacity is fixed at construction, mirroring the
// build-time OS_MAX_* arrays.
type Table[T any] struct {
	kind Kind
	mu   sync.Mutex

	slots      []record[T]
	generation []uint8
	free       []uint16 // stack of free indices
	names      map[string]uint16
}

// NewTable allocates a table of the given capacity for kind.
func NewTable[T any](kind Kind, capacity int) *Table[T] {
	t := &Table[T]{
		kind:       kind,
		slots:      make([]record[T], capacity),
		generation: make([]uint8, capacity),
		names:      make(map[string]uint16),
	}
	t.free = make([]uint16, capacity)
	for i := range t.free {
		t.free[i] = uint16(capacity - 1 - i)
	}
	return t
}

// Token is a transient authorization to operate on a table slot, carrying
// the lock mode that governs how Release behaves.
type Token[T any] struct {
	tbl   *Table[T]
	index uint16
	id    ID
	mode  LockMode
}

// ID returns the object ID this token refers to.
func (t Token[T]) ID() ID { return t.id }

// Mode returns the lock mode this token was acquired under.
func (t Token[T]) Mode() LockMode { return t.mode }

// Record gives mutable access to the kind-specific payload. LockExclusive
// and LockGlobal tokens hold the kind lock, and a LockRefcount token makes
// FinalizeDelete refuse until it is released, so all three keep the record
// from being deleted underneath the caller; a LockNone token does not.
// LockRefcount and LockNone tokens must not mutate shared fields without
// their own synchronization, since the kind lock is not held.
func (t Token[T]) Record() *T { return &t.tbl.slots[t.index].impl }

// AllocateNew acquires the kind lock, checks for a duplicate name, and
// reserves a free slot. The kind lock remains held in the returned token
// until FinalizeNew or the allocation is abandoned by calling FinalizeNew
// with a non-success status.
func (tb *Table[T]) AllocateNew(creator ID, name string) (Token[T], osalerr.Code) {
	tb.mu.Lock()
	if name != "" {
		if _, dup := tb.names[name]; dup {
			tb.mu.Unlock()
			return Token[T]{}, osalerr.NameTaken
		}
	}
	if len(tb.free) == 0 {
		tb.mu.Unlock()
		return Token[T]{}, osalerr.NoFreeIDs
	}
	index := tb.free[len(tb.free)-1]
	tb.free = tb.free[:len(tb.free)-1]

	slot := &tb.slots[index]
	*slot = record[T]{}
	slot.name = name
	slot.hasName = name != ""
	slot.creator = creator
	// Tentative pre-ID; not yet visible to FindByName/GetById until
	// FinalizeNew commits it. Kind lock stays held by design.
	return Token[T]{tbl: tb, index: index, mode: LockExclusive}, osalerr.Success
}

// FinalizeNew commits or reverts a pending allocation from AllocateNew and
// always releases the kind lock. On success the slot's generation is
// bumped and a fresh ID returned; the ID becomes immediately visible to
// FindByName and GetById, per spec.md's registry ordering guarantee.
func (tb *Table[T]) FinalizeNew(status osalerr.Code, tok Token[T]) (ID, osalerr.Code) {
	defer tb.mu.Unlock()
	slot := &tb.slots[tok.index]

	if status != osalerr.Success {
		if slot.hasName {
			delete(tb.names, slot.name)
		}
		*slot = record[T]{}
		tb.free = append(tb.free, tok.index)
		return Undefined, status
	}

	tb.generation[tok.index]++
	id := makeID(tb.kind, tb.generation[tok.index], tok.index)
	slot.active = id
	if slot.hasName {
		tb.names[slot.name] = tok.index
	}
	return id, osalerr.Success
}

func (tb *Table[T]) validate(id ID) (uint16, osalerr.Code) {
	if id.IsUndefined() || id.Kind() != tb.kind {
		return 0, osalerr.InvalidID
	}
	index := id.index()
	if int(index) >= len(tb.slots) {
		return 0, osalerr.InvalidID
	}
	if tb.slots[index].active != id {
		return 0, osalerr.InvalidID
	}
	return index, osalerr.Success
}

// GetById resolves id to a token under the given lock mode. For
// LockRefcount the refcount is incremented and the kind lock released
// immediately so the caller proceeds concurrently with others; for
// LockExclusive and LockGlobal the kind lock is retained in the token; for
// LockNone the lock is acquired, validated, and released before returning.
func (tb *Table[T]) GetById(mode LockMode, id ID) (Token[T], osalerr.Code) {
	tb.mu.Lock()
	index, code := tb.validate(id)
	if code != osalerr.Success {
		tb.mu.Unlock()
		return Token[T]{}, code
	}

	switch mode {
	case LockRefcount:
		tb.slots[index].refcount++
		tb.mu.Unlock()
		return Token[T]{tbl: tb, index: index, id: id, mode: mode}, osalerr.Success
	case LockExclusive, LockGlobal:
		return Token[T]{tbl: tb, index: index, id: id, mode: mode}, osalerr.Success
	default: // LockNone
		tb.mu.Unlock()
		return Token[T]{tbl: tb, index: index, id: id, mode: LockNone}, osalerr.Success
	}
}

// Release relinquishes a token, decrementing the refcount or releasing the
// held kind lock as the token's mode dictates.
func (tb *Table[T]) Release(tok Token[T]) {
	switch tok.mode {
	case LockRefcount:
		tb.mu.Lock()
		tb.slots[tok.index].refcount--
		tb.mu.Unlock()
	case LockExclusive, LockGlobal:
		tb.mu.Unlock()
	case LockNone:
		// Lock was already released in GetById.
	}
}

// FinalizeDelete frees the slot held by an exclusive token, or reverts to
// leaving it in place. It is only valid on a LockExclusive token and
// always releases the kind lock. Per spec.md §9's resolved open question,
// it refuses with osalerr.IncorrectObjState and leaves the slot in place
// while the record's refcount is nonzero.
func (tb *Table[T]) FinalizeDelete(status osalerr.Code, tok Token[T]) osalerr.Code {
	defer tb.mu.Unlock()
	if tok.mode != LockExclusive {
		return osalerr.Error
	}
	slot := &tb.slots[tok.index]
	if status != osalerr.Success {
		return status
	}
	if slot.refcount != 0 {
		return osalerr.IncorrectObjState
	}
	if slot.hasName {
		delete(tb.names, slot.name)
	}
	*slot = record[T]{}
	tb.free = append(tb.free, tok.index)
	return osalerr.Success
}

// Refcount returns the current reference count of id's record, without
// taking a token.
func (tb *Table[T]) Refcount(id ID) (int32, osalerr.Code) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	index, code := tb.validate(id)
	if code != osalerr.Success {
		return 0, code
	}
	return tb.slots[index].refcount, osalerr.Success
}

// FindByName resolves a name to its current ID.
func (tb *Table[T]) FindByName(name string) (ID, osalerr.Code) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	index, ok := tb.names[name]
	if !ok {
		return Undefined, osalerr.NameNotFound
	}
	return tb.slots[index].active, osalerr.Success
}

// Snapshot is a point-in-time copy of one active record, returned by
// IteratorGetNext.
type Snapshot[T any] struct {
	ID      ID
	Name    string
	Creator ID
	Impl    T
}

// IteratorGetNext takes a snapshot of every active record matching filter
// (nil matches everything) under the kind lock, then releases the lock
// before returning — spec.md §4.1's guidance to avoid long-held locking
// while building reports.
func (tb *Table[T]) IteratorGetNext(filter func(T) bool) []Snapshot[T] {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	out := make([]Snapshot[T], 0, len(tb.slots))
	for i := range tb.slots {
		s := &tb.slots[i]
		if s.free() {
			continue
		}
		if filter != nil && !filter(s.impl) {
			continue
		}
		out = append(out, Snapshot[T]{ID: s.active, Name: s.name, Creator: s.creator, Impl: s.impl})
	}
	return out
}

// Len reports the number of currently-allocated records.
func (tb *Table[T]) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.slots) - len(tb.free)
}

// Cap reports the fixed table capacity.
func (tb *Table[T]) Cap() int { return len(tb.slots) }
