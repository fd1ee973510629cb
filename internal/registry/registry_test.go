package registry

import (
	"sort"
	"sync"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/nasa/osal-go/internal/osalerr"
)

type taskRec struct {
	priority int
}

func allocate(t *testing.T, tb *Table[taskRec], name string) ID {
	t.Helper()
	tok, code := tb.AllocateNew(Undefined, name)
	if code != osalerr.Success {
		t.Fatalf("AllocateNew(%q): %v", name, code)
	}
	id, code := tb.FinalizeNew(osalerr.Success, tok)
	if code != osalerr.Success {
		t.Fatalf("FinalizeNew(%q): %v", name, code)
	}
	return id
}

func TestAllocateFindDelete(t *testing.T) {
	tb := NewTable[taskRec](KindTask, 4)

	id := allocate(t, tb, "alpha")
	if id.IsUndefined() {
		t.Fatal("expected a defined id")
	}

	found, code := tb.FindByName("alpha")
	if code != osalerr.Success || found != id {
		t.Fatalf("FindByName: got (%v, %v), want (%v, success)", found, code, id)
	}

	tok, code := tb.GetById(LockExclusive, id)
	if code != osalerr.Success {
		t.Fatalf("GetById: %v", code)
	}
	if code := tb.FinalizeDelete(osalerr.Success, tok); code != osalerr.Success {
		t.Fatalf("FinalizeDelete: %v", code)
	}

	if _, code := tb.FindByName("alpha"); code != osalerr.NameNotFound {
		t.Fatalf("FindByName after delete: %v", code)
	}
	if _, code := tb.GetById(LockNone, id); code != osalerr.InvalidID {
		t.Fatalf("GetById after delete: %v, want InvalidID", code)
	}
}

func TestDuplicateNameFails(t *testing.T) {
	tb := NewTable[taskRec](KindTask, 4)
	allocate(t, tb, "dup")

	if _, code := tb.AllocateNew(Undefined, "dup"); code != osalerr.NameTaken {
		t.Fatalf("AllocateNew duplicate: %v, want NameTaken", code)
	}
}

func TestCapacityExhaustion(t *testing.T) {
	tb := NewTable[taskRec](KindTask, 2)
	allocate(t, tb, "one")
	allocate(t, tb, "two")

	if _, code := tb.AllocateNew(Undefined, "three"); code != osalerr.NoFreeIDs {
		t.Fatalf("AllocateNew over capacity: %v, want NoFreeIDs", code)
	}

	// Deleting one frees a slot for reuse.
	id, _ := tb.FindByName("one")
	tok, _ := tb.GetById(LockExclusive, id)
	if code := tb.FinalizeDelete(osalerr.Success, tok); code != osalerr.Success {
		t.Fatalf("FinalizeDelete: %v", code)
	}
	if _, code := tb.AllocateNew(Undefined, "three"); code != osalerr.Success {
		t.Fatalf("AllocateNew after free: %v", code)
	}
}

func TestGenerationDefeatsStaleID(t *testing.T) {
	tb := NewTable[taskRec](KindTask, 1)
	id1 := allocate(t, tb, "")

	tok, _ := tb.GetById(LockExclusive, id1)
	if code := tb.FinalizeDelete(osalerr.Success, tok); code != osalerr.Success {
		t.Fatalf("FinalizeDelete: %v", code)
	}

	id2 := allocate(t, tb, "")
	if id1 == id2 {
		t.Fatalf("expected distinct IDs across reuse, got %v twice", id1)
	}
	if _, code := tb.GetById(LockNone, id1); code != osalerr.InvalidID {
		t.Fatalf("stale id lookup: %v, want InvalidID", code)
	}
	if _, code := tb.GetById(LockNone, id2); code != osalerr.Success {
		t.Fatalf("fresh id lookup failed: %v", code)
	}
}

func TestRefcountBlocksDelete(t *testing.T) {
	tb := NewTable[taskRec](KindTask, 1)
	id := allocate(t, tb, "held")

	ref, code := tb.GetById(LockRefcount, id)
	if code != osalerr.Success {
		t.Fatalf("GetById refcount: %v", code)
	}

	tok, code := tb.GetById(LockExclusive, id)
	if code != osalerr.Success {
		t.Fatalf("GetById exclusive: %v", code)
	}
	if code := tb.FinalizeDelete(osalerr.Success, tok); code != osalerr.IncorrectObjState {
		t.Fatalf("FinalizeDelete while referenced: %v, want IncorrectObjState", code)
	}

	tb.Release(ref)
	tok2, _ := tb.GetById(LockExclusive, id)
	if code := tb.FinalizeDelete(osalerr.Success, tok2); code != osalerr.Success {
		t.Fatalf("FinalizeDelete after release: %v", code)
	}
}

func TestConcurrentRefcountAcquireRelease(t *testing.T) {
	tb := NewTable[taskRec](KindTask, 4)
	id := allocate(t, tb, "shared")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, code := tb.GetById(LockRefcount, id)
			if code != osalerr.Success {
				t.Errorf("GetById: %v", code)
				return
			}
			tb.Release(tok)
		}()
	}
	wg.Wait()

	if n, _ := tb.Refcount(id); n != 0 {
		t.Fatalf("refcount after concurrent acquire/release: %d, want 0", n)
	}
}

func TestIteratorSnapshot(t *testing.T) {
	tb := NewTable[taskRec](KindTask, 4)
	allocate(t, tb, "a")
	allocate(t, tb, "b")

	snaps := tb.IteratorGetNext(nil)
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })

	type shape struct {
		Name    string
		Creator ID
		Impl    taskRec
	}
	got := make([]shape, len(snaps))
	for i, s := range snaps {
		got[i] = shape{Name: s.Name, Creator: s.Creator, Impl: s.Impl}
	}
	want := []shape{
		{Name: "a", Creator: Undefined, Impl: taskRec{}},
		{Name: "b", Creator: Undefined, Impl: taskRec{}},
	}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Fatalf("IteratorGetNext snapshot mismatch (-want +got):\n%s", diff)
	}
}
