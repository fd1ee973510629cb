// Package mqueue implements the reference shared-memory message queue
// emulation of spec.md §4.4, used on hosts lacking a native POSIX message
// queue facility.
//
// The data model (a mutex/condvar-guarded header plus a bounded,
// priority-ordered list of message slots) is grounded on
// original_source/src/os/posixmacos/src/posix-macos-addons/mqueue, the
// macOS from-scratch POSIX mqueue shim spec.md §1 names as the reference
// subsystem. Where the original links slots via byte-offset next_index
// fields inside a single mmap'd region (because its mutex/condvar must be
// PROCESS_SHARED across independent processes), this package follows
// spec.md §9's explicit alternative: an in-process sync.Mutex/sync.Cond
// pair, which "must preserve wakeup semantics" — it does, including the
// spurious-wakeup guard and the stable priority-ordered splice. The backing
// file under os.TempDir() is still created and unlinked exactly as spec.md
// §6 describes ("Persisted state... live under /tmp/<name>... unlinked on
// explicit unlink"), and its permission bits still carry the creation
// handshake described in spec.md §4.4, so the externally observable
// lifecycle matches even though the cross-process synchronization itself
// does not reach into the kernel's shared-memory primitives (not reachable
// from Go without cgo). This trade-off is recorded in DESIGN.md.
package mqueue

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nasa/osal-go/internal/osalerr"
	"github.com/nasa/osal-go/internal/ostime"
)

// MaxOpenTries and OpenPollInterval are the creation handshake's retry
// budget, surfaced as named constants instead of hardcoded the way
// original_source/.../mq_open.c's MAX_TRIES was.
const (
	MaxOpenTries     = 100
	OpenPollInterval = time.Second
)

// NotifySub is the single mq_notify subscriber a queue may hold at a time,
// per spec.md §4.4 and the supplemented single-subscriber semantics in
// SPEC_FULL.md §4.
type NotifySub struct {
	PID    int
	Event  int32
	Signal func(pid int, event int32)
}

type message struct {
	priority int32
	payload  []byte
}

// Queue is one emulated message queue.
type Queue struct {
	name     string
	maxDepth int
	maxSize  int

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	msgs     []message
	waiters  int
	notify   *NotifySub
	closed   bool

	file *os.File
}

var (
	registryMu sync.Mutex
	openQueues = map[string]*Queue{}
)

// clampSize applies spec.md §6's DEBUG_PERMISSIVE_MODE truncation: when
// permissive is set, an over-large depth is silently clamped to
// depthCeiling and a non-positive depth or size is raised to 1, instead of
// failing QUEUE_INVALID_SIZE, per the behavior recovered from
// original_source/.../osapi-queue.c. maxSize has no upper ceiling here.
func clampSize(maxDepth, maxSize, depthCeiling int, permissive bool) (int, int, osalerr.Code) {
	if maxDepth <= 0 || maxSize <= 0 || maxDepth > depthCeiling {
		if !permissive {
			return 0, 0, osalerr.QueueInvalidSize
		}
		if maxDepth <= 0 {
			maxDepth = 1
		}
		if maxDepth > depthCeiling {
			maxDepth = depthCeiling
		}
		if maxSize <= 0 {
			maxSize = 1
		}
	}
	return maxDepth, maxSize, osalerr.Success
}

// Open creates or attaches to a named emulated queue. create selects
// creation (and performs the permission-bit handshake other openers poll
// for) versus attachment to an existing queue.
func Open(name string, maxDepth, maxSize, depthCeiling int, permissive, create bool) (*Queue, osalerr.Code) {
	return openWithParams(name, maxDepth, maxSize, depthCeiling, permissive, create, MaxOpenTries, OpenPollInterval)
}

func openWithParams(name string, maxDepth, maxSize, depthCeiling int, permissive, create bool, maxTries int, pollInterval time.Duration) (*Queue, osalerr.Code) {
	maxDepth, maxSize, code := clampSize(maxDepth, maxSize, depthCeiling, permissive)
	if code != osalerr.Success {
		return nil, code
	}

	registryMu.Lock()
	if q, ok := openQueues[name]; ok {
		registryMu.Unlock()
		if create {
			return nil, osalerr.NameTaken
		}
		return q, osalerr.Success
	}
	if !create {
		registryMu.Unlock()
		path := filepath.Join(os.TempDir(), name)
		for try := 0; try < maxTries; try++ {
			registryMu.Lock()
			q, ok := openQueues[name]
			registryMu.Unlock()
			if ok && readyBitCleared(path) {
				return q, osalerr.Success
			}
			time.Sleep(pollInterval)
		}
		return nil, osalerr.TimeoutCode
	}

	path := filepath.Join(os.TempDir(), name)
	// Creation handshake: the file is created with the execute bit set
	// (not ready), then cleared once the header is initialized, per
	// spec.md §4.4.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o700)
	if err != nil {
		registryMu.Unlock()
		return nil, osalerr.Error
	}

	q := &Queue{name: name, maxDepth: maxDepth, maxSize: maxSize, file: f}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	openQueues[name] = q
	registryMu.Unlock()

	_ = f.Chmod(0o600) // clear execute bit: ready
	return q, osalerr.Success
}

// waitWithDeadline blocks on cond (whose Wait releases and reacquires
// cond.L, an already-held *sync.Mutex) until woken or deadline passes. It
// always returns with cond.L held, per sync.Cond's contract. The caller's
// loop re-checks its predicate afterward, which is what defeats spurious
// wakeups per spec.md's invariant.
func waitWithDeadline(cond *sync.Cond, deadline time.Time) {
	d := time.Until(deadline)
	if d <= 0 {
		return
	}
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}

// Send enqueues payload at the given priority, per spec.md §4.4.
func (q *Queue) Send(payload []byte, priority int32, timeout ostime.Timeout) osalerr.Code {
	if len(payload) > q.maxSize {
		return osalerr.QueueInvalidSize
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return osalerr.IncorrectObjState
	}

	if len(q.msgs) == 0 && q.notify != nil && q.waiters == 0 {
		sub := q.notify
		q.notify = nil
		if sub.Signal != nil {
			sub.Signal(sub.PID, sub.Event)
		}
	}

	deadline, forever := timeout.Deadline(time.Now())
	for len(q.msgs) >= q.maxDepth {
		if timeout == ostime.Check {
			return osalerr.QueueFull
		}
		if !forever && ostime.Expired(time.Now(), deadline) {
			return osalerr.QueueTimeout
		}
		if forever {
			q.notFull.Wait()
		} else {
			waitWithDeadline(q.notFull, deadline)
		}
	}

	cp := append([]byte(nil), payload...)
	insertIdx := len(q.msgs)
	for i, m := range q.msgs {
		if m.priority < priority {
			insertIdx = i
			break
		}
	}
	q.msgs = append(q.msgs, message{})
	copy(q.msgs[insertIdx+1:], q.msgs[insertIdx:])
	q.msgs[insertIdx] = message{priority: priority, payload: cp}

	if len(q.msgs) == 1 {
		q.notEmpty.Broadcast()
	}
	return osalerr.Success
}

// Receive dequeues the highest-priority, oldest-enqueued message, per
// spec.md §4.4.
func (q *Queue) Receive(timeout ostime.Timeout) ([]byte, int32, osalerr.Code) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, 0, osalerr.IncorrectObjState
	}

	deadline, forever := timeout.Deadline(time.Now())
	q.waiters++
	defer func() { q.waiters-- }()

	for len(q.msgs) == 0 {
		if timeout == ostime.Check {
			return nil, 0, osalerr.QueueEmpty
		}
		if !forever && ostime.Expired(time.Now(), deadline) {
			return nil, 0, osalerr.QueueTimeout
		}
		if forever {
			q.notEmpty.Wait()
		} else {
			waitWithDeadline(q.notEmpty, deadline)
		}
	}

	wasFull := len(q.msgs) >= q.maxDepth
	m := q.msgs[0]
	q.msgs = q.msgs[1:]
	if wasFull {
		q.notFull.Broadcast()
	}
	return m.payload, m.priority, osalerr.Success
}

// Notify registers the single mq_notify subscriber, failing if one is
// already registered (the supplemented EBUSY-like behavior from
// SPEC_FULL.md §4).
func (q *Queue) Notify(sub NotifySub) osalerr.Code {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.notify != nil {
		return osalerr.IncorrectObjState
	}
	q.notify = &sub
	return osalerr.Success
}

// NotifyCancel clears any registered subscriber.
func (q *Queue) NotifyCancel() osalerr.Code {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notify = nil
	return osalerr.Success
}

// Stats reports curmsgs/free_slots, per spec.md §8's invariant
// curmsgs + free_slots = max_depth, surfaced as a first-class read per
// SPEC_FULL.md §4.
type Stats struct {
	CurMsgs   int
	FreeSlots int
	MaxDepth  int
	MaxSize   int
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		CurMsgs:   len(q.msgs),
		FreeSlots: q.maxDepth - len(q.msgs),
		MaxDepth:  q.maxDepth,
		MaxSize:   q.maxSize,
	}
}

// refs reports whether this queue currently has outstanding waiters,
// consulted by Close/delete per the resolved open question in spec.md §9.
func (q *Queue) refs() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiters
}

// Close detaches from the queue. If unlink is true it also removes the
// backing file and the in-process registry entry, refusing to do so while
// any receiver is blocked in Receive (spec.md §9's resolved notify/close
// race).
func (q *Queue) Close(unlink bool) osalerr.Code {
	if unlink && q.refs() > 0 {
		return osalerr.IncorrectObjState
	}

	q.mu.Lock()
	q.closed = true
	if q.file != nil {
		_ = q.file.Close()
	}
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()

	if unlink {
		registryMu.Lock()
		delete(openQueues, q.name)
		registryMu.Unlock()
		_ = os.Remove(filepath.Join(os.TempDir(), q.name))
	}
	return osalerr.Success
}
