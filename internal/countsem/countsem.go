// Package countsem implements the counting semaphore of spec.md §4.5.
//
// It is backed by golang.org/x/sync/semaphore.Weighted — a teacher
// dependency (hanwen-go-fuse's go.mod already requires golang.org/x/sync,
// used there for errgroup-style fan-out) repurposed here for its intended
// domain use. A Weighted semaphore bounds concurrent *holders* of a
// resource; OSAL's counting semaphore instead models an unbounded counter
// that Give (never blocking, even from an interrupt handler) increments
// and Take/TimedWait decrement once positive. The adaptation: size the
// Weighted semaphore far above any real counter value, track "used" as
// size-available, and treat Give as Release(1) / Take as Acquire(ctx, 1)
// with available = size - used. Because Weighted.Release never blocks and
// Weighted.Acquire accepts a context deadline, this gives PEND/CHECK/timed
// semantics for free while keeping the give-never-blocks guarantee spec.md
// §4.5 and §5 require.
package countsem

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nasa/osal-go/internal/osalerr"
	"github.com/nasa/osal-go/internal/ostime"
)

// MaxInitialValue is the backend limit spec.md §4.5 names
// (UINT32_MAX/2), above which Create must fail.
const MaxInitialValue = math.MaxUint32 / 2

// semCapacity bounds how high a semaphore's count may climb; it must
// exceed MaxInitialValue by enough headroom that repeated Gives in normal
// use never saturate it.
const semCapacity = math.MaxInt64 / 2

// Sem is a single counting semaphore.
type Sem struct {
	w      *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc

	countMu sync.Mutex
	count   int64 // current available count, maintained alongside w for GetInfo
}

// New creates a semaphore with the given initial count.
func New(initial uint32) (*Sem, osalerr.Code) {
	if initial > MaxInitialValue {
		return nil, osalerr.InvalidSize
	}
	w := semaphore.NewWeighted(semCapacity)
	// Pre-acquire (semCapacity - initial) so that size-used == initial.
	if err := w.Acquire(context.Background(), semCapacity-int64(initial)); err != nil {
		return nil, osalerr.SemFailure
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sem{w: w, ctx: ctx, cancel: cancel, count: int64(initial)}, osalerr.Success
}

// Delete releases every blocked Take/TimedWait caller with SemFailure, per
// spec.md §4.5's "blocks until count > 0 or deletion". The caller is
// responsible for retiring the semaphore's registry ID; Delete only
// unblocks waiters.
func (s *Sem) Delete() {
	s.cancel()
}

// Give releases the semaphore by one. It never blocks, so it is safe to
// call from an interrupt or signal handler, per spec.md §4.5.
func (s *Sem) Give() osalerr.Code {
	s.w.Release(1)
	s.incr(1)
	return osalerr.Success
}

// Take blocks until the count is positive, then decrements it.
func (s *Sem) Take() osalerr.Code {
	if err := s.w.Acquire(s.ctx, 1); err != nil {
		return osalerr.SemFailure
	}
	s.incr(-1)
	return osalerr.Success
}

// TimedWait blocks until the count is positive or timeout elapses.
// ostime.Check reports SemTimeout immediately if the count is not already
// positive; ostime.Pend blocks forever.
func (s *Sem) TimedWait(timeout ostime.Timeout) osalerr.Code {
	if timeout == ostime.Check {
		if s.w.TryAcquire(1) {
			s.incr(-1)
			return osalerr.Success
		}
		return osalerr.SemTimeout
	}

	ctx := s.ctx
	var cancel context.CancelFunc
	if timeout != ostime.Pend {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
		defer cancel()
	}
	if err := s.w.Acquire(ctx, 1); err != nil {
		if s.ctx.Err() != nil {
			return osalerr.SemFailure
		}
		return osalerr.SemTimeout
	}
	s.incr(-1)
	return osalerr.Success
}

// GetInfo returns the current count.
func (s *Sem) GetInfo() uint32 {
	s.countMu.Lock()
	defer s.countMu.Unlock()
	return uint32(s.count)
}

// incr is a tiny helper keeping the reporting-only count field (read by
// GetInfo) in step with the Weighted semaphore's own internal accounting,
// which does the actual synchronization.
func (s *Sem) incr(delta int64) {
	s.countMu.Lock()
	s.count += delta
	s.countMu.Unlock()
}
