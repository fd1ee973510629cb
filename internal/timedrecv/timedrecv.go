// Package timedrecv implements the monotonic-deadline timed-receive
// adapter of spec.md §4.6: it converts a caller-supplied relative
// millisecond timeout into an absolute deadline on Go's monotonic clock
// (time.Now() already carries a monotonic reading on every supported
// platform) and polls a receive-capable source in bounded slices so that a
// backward or forward wall-clock jump during the wait cannot produce an
// over-long or premature timeout.
//
// Grounded on spec.md §4.6's algorithm directly (the retrieval pack has no
// matching adapter to imitate); the EINTR-retry loop and "steal the
// message with a zero-timeout inner receive" structure follow the
// teacher's general pattern of small retry loops around a blocking
// primitive (e.g. hanwen-go-fuse/fuse/server.go's read-retry-on-EINTR
// handling around the FUSE device read).
package timedrecv

import (
	"context"
	"errors"
	"time"

	"github.com/nasa/osal-go/internal/osalerr"
)

// ErrEINTR is returned by a Poller/Receiver to indicate the call was
// interrupted by a signal and should be retried against the same deadline,
// mirroring EINTR from the original host primitive.
var ErrEINTR = errors.New("timedrecv: interrupted, retry")

// Poller checks whether the underlying queue has data ready, blocking at
// most until ctx is done.
type Poller interface {
	Poll(ctx context.Context) error
}

// Receiver performs the non-blocking (or effectively non-blocking, given a
// zero timeout) receive once Poll reports readiness.
type Receiver[T any] interface {
	ReceiveNoWait() (T, error)
}

// PollMaxWait bounds a single poll call, matching a platform poll-limit
// the way spec.md §4.6 describes ("clamp to platform poll limit").
const PollMaxWait = 250 * time.Millisecond

// Receive runs the algorithm of spec.md §4.6 against poller/receiver with
// a relative timeout in milliseconds.
func Receive[T any](ctx context.Context, poller Poller, receiver Receiver[T], timeoutMS int64) (T, osalerr.Code) {
	var zero T
	deadline := time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)

	for {
		now := time.Now()
		if !now.Before(deadline) {
			return zero, osalerr.QueueTimeout
		}

		remaining := deadline.Sub(now)
		if remaining > PollMaxWait {
			remaining = PollMaxWait
		}

		pollCtx, cancel := context.WithTimeout(ctx, remaining)
		err := poller.Poll(pollCtx)
		cancel()

		switch {
		case err == nil:
			// Readable (or believed to be): attempt a zero-wait receive so
			// a competing reader can still steal the message first.
			v, rerr := receiver.ReceiveNoWait()
			switch {
			case rerr == nil:
				return v, osalerr.Success
			case errors.Is(rerr, ErrEINTR):
				continue
			case isAgainOrTimeout(rerr):
				continue
			default:
				return zero, osalerr.Error
			}
		case errors.Is(err, context.DeadlineExceeded):
			continue // re-check the outer deadline at the top of the loop
		case errors.Is(err, ErrEINTR):
			continue
		case errors.Is(err, context.Canceled):
			return zero, osalerr.Error
		default:
			return zero, osalerr.Error
		}
	}
}

// again is the small set of errors a ReceiveNoWait may legitimately return
// when another reader won the race or the wakeup was spurious.
type again interface {
	TemporarilyUnavailable() bool
}

func isAgainOrTimeout(err error) bool {
	var a again
	if errors.As(err, &a) {
		return a.TemporarilyUnavailable()
	}
	return errors.Is(err, ErrAgain) || errors.Is(err, ErrQueueTimeout)
}

// ErrAgain and ErrQueueTimeout let a Receiver signal EAGAIN/ETIMEDOUT
// without importing osalerr into its own package.
var (
	ErrAgain        = errors.New("timedrecv: eagain")
	ErrQueueTimeout = errors.New("timedrecv: queue timeout")
)
