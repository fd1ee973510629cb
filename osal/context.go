// Package osal is the top-level facade spec.md describes: a single
// Context aggregating the object registry, virtual filesystem, volume
// manager, message queues, counting semaphores, console, directory
// iteration, and the timed-receive adapter behind one API, the way a
// caller of the real OSAL links one library and calls OS_API functions
// without knowing how each subsystem is internally wired.
//
// Grounded on the teacher's top-level fuse.Server (hanwen-go-fuse/fuse),
// which likewise owns one instance per concern (a FileSystemConnector, a
// RawFileSystem, a Logger) and exposes operations as methods on a single
// struct rather than free functions over globals.
package osal

import (
	"context"

	"github.com/nasa/osal-go/internal/console"
	"github.com/nasa/osal-go/internal/countsem"
	"github.com/nasa/osal-go/internal/dir"
	"github.com/nasa/osal-go/internal/fsvol"
	"github.com/nasa/osal-go/internal/mqueue"
	"github.com/nasa/osal-go/internal/osalerr"
	"github.com/nasa/osal-go/internal/osconfig"
	"github.com/nasa/osal-go/internal/oslog"
	"github.com/nasa/osal-go/internal/ostime"
	"github.com/nasa/osal-go/internal/registry"
	"github.com/nasa/osal-go/internal/timedrecv"
	"github.com/nasa/osal-go/internal/vfs"
)

// Context is one OSAL instance: its own tables, its own mount table, its
// own console. Tests and multi-instance hosts each get an isolated
// Context rather than sharing process-wide globals.
type Context struct {
	cfg osconfig.Config
	log *oslog.Logger

	queues   *registry.Table[*mqueue.Queue]
	sems     *registry.Table[*countsem.Sem]
	consoles *registry.Table[*console.Ring]

	Mounts *vfs.Table
	Vols   *fsvol.Manager
	Dirs   *dir.Manager
}

// New constructs a Context from cfg, validating it first.
func New(cfg osconfig.Config, log *oslog.Logger) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = oslog.Default
	}

	mounts := vfs.NewTable(cfg.MaxPathLen, cfg.MaxFileName)
	var shim fsvol.HostShim = fsvol.PosixShim{}

	return &Context{
		cfg:      cfg,
		log:      log,
		queues:   registry.NewTable[*mqueue.Queue](registry.KindQueue, cfg.MaxQueues),
		sems:     registry.NewTable[*countsem.Sem](registry.KindCountSem, cfg.MaxCountSemaphores),
		consoles: registry.NewTable[*console.Ring](registry.KindConsole, cfg.MaxConsoles),
		Mounts:   mounts,
		Vols:     fsvol.New(cfg.MaxFileSystems, mounts, shim, cfg.FSVolNameLen, cfg.MaxPathLen),
		Dirs:     dir.New(cfg.MaxOpenDirs),
	}, nil
}

// LoadManifest applies every fixed mount in a manifest loaded via
// osconfig.LoadManifest, per spec.md §4.2's boot-time fixed mount table.
func (c *Context) LoadManifest(m osconfig.Manifest) osalerr.Code {
	for _, fm := range m.FixedMounts {
		if code := c.Mounts.AddFixedMap(fm.Physical, fm.Virtual); code != osalerr.Success {
			return code
		}
	}
	return osalerr.Success
}

// QueueCreate creates a new named message queue, per spec.md §4.4. It does
// not attach to an existing queue: a name already open fails NameTaken.
func (c *Context) QueueCreate(name string, depth, size int) (registry.ID, osalerr.Code) {
	if code := osalerr.CheckName(name, c.cfg.MaxAPIName); code != osalerr.Success {
		return registry.Undefined, code
	}
	q, code := mqueue.Open(name, depth, size, c.cfg.QueueMaxDepth, c.cfg.DebugPermissiveMode, true)
	if code != osalerr.Success {
		return registry.Undefined, code
	}
	return c.registerQueue(name, q)
}

func (c *Context) registerQueue(name string, q *mqueue.Queue) (registry.ID, osalerr.Code) {
	tok, code := c.queues.AllocateNew(registry.Undefined, name)
	if code != osalerr.Success {
		q.Close(false)
		return registry.Undefined, code
	}
	*tok.Record() = q
	return c.queues.FinalizeNew(osalerr.Success, tok)
}

// QueueSend sends to a queue by ID.
func (c *Context) QueueSend(id registry.ID, payload []byte, priority int32, timeout ostime.Timeout) osalerr.Code {
	tok, code := c.queues.GetById(registry.LockRefcount, id)
	if code != osalerr.Success {
		return code
	}
	defer c.queues.Release(tok)
	return (*tok.Record()).Send(payload, priority, timeout)
}

// QueueReceive receives from a queue by ID.
func (c *Context) QueueReceive(id registry.ID, timeout ostime.Timeout) ([]byte, int32, osalerr.Code) {
	tok, code := c.queues.GetById(registry.LockRefcount, id)
	if code != osalerr.Success {
		return nil, 0, code
	}
	defer c.queues.Release(tok)
	return (*tok.Record()).Receive(timeout)
}

// QueueDelete closes and deregisters a queue. It fails with
// osalerr.IncorrectObjState while any task still holds a reference, the
// same rule internal/registry enforces for every other kind.
func (c *Context) QueueDelete(id registry.ID, unlink bool) osalerr.Code {
	tok, code := c.queues.GetById(registry.LockExclusive, id)
	if code != osalerr.Success {
		return code
	}
	if code := (*tok.Record()).Close(unlink); code != osalerr.Success {
		c.queues.Release(tok)
		return code
	}
	return c.queues.FinalizeDelete(osalerr.Success, tok)
}

// SemCreate creates a counting semaphore, per spec.md §4.5.
func (c *Context) SemCreate(name string, initial uint32) (registry.ID, osalerr.Code) {
	if code := osalerr.CheckName(name, c.cfg.MaxAPIName); code != osalerr.Success {
		return registry.Undefined, code
	}
	s, code := countsem.New(initial)
	if code != osalerr.Success {
		return registry.Undefined, code
	}
	tok, code := c.sems.AllocateNew(registry.Undefined, name)
	if code != osalerr.Success {
		return registry.Undefined, code
	}
	*tok.Record() = s
	return c.sems.FinalizeNew(osalerr.Success, tok)
}

// SemGive releases a semaphore by one. Never blocks.
func (c *Context) SemGive(id registry.ID) osalerr.Code {
	tok, code := c.sems.GetById(registry.LockRefcount, id)
	if code != osalerr.Success {
		return code
	}
	defer c.sems.Release(tok)
	return (*tok.Record()).Give()
}

// SemTake blocks until the semaphore count is positive.
func (c *Context) SemTake(id registry.ID) osalerr.Code {
	tok, code := c.sems.GetById(registry.LockRefcount, id)
	if code != osalerr.Success {
		return code
	}
	defer c.sems.Release(tok)
	return (*tok.Record()).Take()
}

// SemTimedWait blocks until the semaphore count is positive or timeout
// elapses.
func (c *Context) SemTimedWait(id registry.ID, timeout ostime.Timeout) osalerr.Code {
	tok, code := c.sems.GetById(registry.LockRefcount, id)
	if code != osalerr.Success {
		return code
	}
	defer c.sems.Release(tok)
	return (*tok.Record()).TimedWait(timeout)
}

// SemDelete unblocks every waiter with osalerr.SemFailure and retires the
// semaphore's ID.
func (c *Context) SemDelete(id registry.ID) osalerr.Code {
	tok, code := c.sems.GetById(registry.LockExclusive, id)
	if code != osalerr.Success {
		return code
	}
	(*tok.Record()).Delete()
	return c.sems.FinalizeDelete(osalerr.Success, tok)
}

// ConsoleCreate registers a new console ring writing to device.
func (c *Context) ConsoleCreate(name string, capacity int, device console.Device) (registry.ID, osalerr.Code) {
	if code := osalerr.CheckName(name, c.cfg.MaxAPIName); code != osalerr.Success {
		return registry.Undefined, code
	}
	tok, code := c.consoles.AllocateNew(registry.Undefined, name)
	if code != osalerr.Success {
		return registry.Undefined, code
	}
	*tok.Record() = console.New(capacity, device)
	return c.consoles.FinalizeNew(osalerr.Success, tok)
}

// ConsoleWrite appends formatted to the named console's ring.
func (c *Context) ConsoleWrite(id registry.ID, formatted string) osalerr.Code {
	tok, code := c.consoles.GetById(registry.LockRefcount, id)
	if code != osalerr.Success {
		return code
	}
	defer c.consoles.Release(tok)
	(*tok.Record()).Printf(formatted)
	return osalerr.Success
}

// ConsoleFlush drains a console's ring to its device.
func (c *Context) ConsoleFlush(id registry.ID) osalerr.Code {
	tok, code := c.consoles.GetById(registry.LockRefcount, id)
	if code != osalerr.Success {
		return code
	}
	defer c.consoles.Release(tok)
	_, err := (*tok.Record()).Flush()
	if err != nil {
		return osalerr.Error
	}
	return osalerr.Success
}

// TimedQueueReceive layers the monotonic-deadline retry loop of
// internal/timedrecv over QueueReceive: rather than handing the queue's
// condition variable a single relative timeout, it re-derives the
// remaining wait on every retry in PollMaxWait-sized slices so a wall-clock
// jump during a long wait cannot extend or shorten the caller's budget, and
// so ctx cancellation takes effect between slices instead of only at the
// very end.
func (c *Context) TimedQueueReceive(ctx context.Context, id registry.ID, timeoutMS int64) ([]byte, int32, osalerr.Code) {
	remaining := timeoutMS
	for {
		select {
		case <-ctx.Done():
			return nil, 0, osalerr.QueueTimeout
		default:
		}

		slice := remaining
		if timedrecv.PollMaxWait.Milliseconds() < slice || remaining < 0 {
			slice = timedrecv.PollMaxWait.Milliseconds()
		}

		data, prio, code := c.QueueReceive(id, ostime.Timeout(slice))
		switch code {
		case osalerr.Success:
			return data, prio, osalerr.Success
		case osalerr.QueueTimeout, osalerr.QueueEmpty:
			if remaining >= 0 {
				remaining -= slice
				if remaining <= 0 {
					return nil, 0, osalerr.QueueTimeout
				}
			}
			continue
		default:
			return nil, 0, code
		}
	}
}

// Log exposes the Context's logger for callers building their own
// subsystems around it (e.g. cmd/osalctl).
func (c *Context) Log() *oslog.Logger { return c.log }

// Config returns the configuration this Context was built with.
func (c *Context) Config() osconfig.Config { return c.cfg }
