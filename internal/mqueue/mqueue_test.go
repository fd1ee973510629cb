package mqueue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nasa/osal-go/internal/osalerr"
	"github.com/nasa/osal-go/internal/ostime"
	"github.com/stretchr/testify/require"
)

func uniqueName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("osal-test-%s-%d", t.Name(), time.Now().UnixNano())
}

func TestPutGetRoundTrip(t *testing.T) {
	q, code := Open(uniqueName(t), 4, 64, 512, false, true)
	require.Equal(t, osalerr.Success, code)
	defer q.Close(true)

	require.Equal(t, osalerr.Success, q.Send([]byte("hello"), 0, ostime.Check))
	data, _, code := q.Receive(ostime.Check)
	require.Equal(t, osalerr.Success, code)
	require.Equal(t, []byte("hello"), data)
}

func TestPriorityOrderingStableForTies(t *testing.T) {
	q, code := Open(uniqueName(t), 4, 8, 512, false, true)
	require.Equal(t, osalerr.Success, code)
	defer q.Close(true)

	require.Equal(t, osalerr.Success, q.Send([]byte{1}, 5, ostime.Check))
	require.Equal(t, osalerr.Success, q.Send([]byte{2}, 10, ostime.Check))
	require.Equal(t, osalerr.Success, q.Send([]byte{3}, 5, ostime.Check))

	var gotPrio []int32
	var gotPayload []byte
	for i := 0; i < 3; i++ {
		data, prio, code := q.Receive(ostime.Check)
		require.Equal(t, osalerr.Success, code)
		gotPrio = append(gotPrio, prio)
		gotPayload = append(gotPayload, data...)
	}
	require.Equal(t, []int32{10, 5, 5}, gotPrio)
	require.Equal(t, []byte{2, 1, 3}, gotPayload)
}

func TestQueueFullThenDrain(t *testing.T) {
	q, code := Open(uniqueName(t), 4, 8, 512, false, true)
	require.Equal(t, osalerr.Success, code)
	defer q.Close(true)

	for i := 0; i < 4; i++ {
		require.Equal(t, osalerr.Success, q.Send([]byte{byte(i)}, 0, ostime.Check))
	}
	require.Equal(t, osalerr.QueueFull, q.Send([]byte{9}, 0, ostime.Check))

	_, _, code = q.Receive(ostime.Check)
	require.Equal(t, osalerr.Success, code)
	require.Equal(t, osalerr.Success, q.Send([]byte{9}, 0, ostime.Check))
}

func TestReceiveEmptyCheckTimesOutImmediately(t *testing.T) {
	q, code := Open(uniqueName(t), 4, 8, 512, false, true)
	require.Equal(t, osalerr.Success, code)
	defer q.Close(true)

	_, _, code = q.Receive(ostime.Check)
	require.Equal(t, osalerr.QueueEmpty, code)
}

func TestBlockingReceiveWakesOnSend(t *testing.T) {
	q, code := Open(uniqueName(t), 4, 8, 512, false, true)
	require.Equal(t, osalerr.Success, code)
	defer q.Close(true)

	var wg sync.WaitGroup
	wg.Add(1)
	start := time.Now()
	var recvCode osalerr.Code
	go func() {
		defer wg.Done()
		_, _, recvCode = q.Receive(ostime.Timeout(1000))
	}()

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, osalerr.Success, q.Send([]byte("late"), 0, ostime.Check))
	wg.Wait()

	require.Equal(t, osalerr.Success, recvCode)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAttachToExistingQueueWithoutCreate(t *testing.T) {
	name := uniqueName(t)
	q, code := Open(name, 4, 8, 512, false, true)
	require.Equal(t, osalerr.Success, code)
	defer q.Close(true)

	attached, code := Open(name, 4, 8, 512, false, false)
	require.Equal(t, osalerr.Success, code)
	require.Same(t, q, attached)
}

func TestQueueInvalidSize(t *testing.T) {
	_, code := Open(uniqueName(t), 0, 8, 512, false, true)
	require.Equal(t, osalerr.QueueInvalidSize, code)

	_, code = Open(uniqueName(t), 513, 8, 512, false, true)
	require.Equal(t, osalerr.QueueInvalidSize, code)
}

func TestPermissiveModeClampsOversizedQueue(t *testing.T) {
	q, code := Open(uniqueName(t), 10000, 8, 512, true, true)
	require.Equal(t, osalerr.Success, code)
	defer q.Close(true)
	require.Equal(t, 512, q.Stats().MaxDepth)
}

func TestStatsInvariant(t *testing.T) {
	q, code := Open(uniqueName(t), 4, 8, 512, false, true)
	require.Equal(t, osalerr.Success, code)
	defer q.Close(true)

	q.Send([]byte{1}, 0, ostime.Check)
	q.Send([]byte{2}, 0, ostime.Check)

	st := q.Stats()
	require.Equal(t, st.MaxDepth, st.CurMsgs+st.FreeSlots)
	require.Equal(t, 2, st.CurMsgs)
}

func TestNotifySingleSubscriber(t *testing.T) {
	q, code := Open(uniqueName(t), 4, 8, 512, false, true)
	require.Equal(t, osalerr.Success, code)
	defer q.Close(true)

	var signaled bool
	require.Equal(t, osalerr.Success, q.Notify(NotifySub{PID: 1, Event: 7, Signal: func(pid int, event int32) {
		signaled = true
	}}))
	require.Equal(t, osalerr.IncorrectObjState, q.Notify(NotifySub{PID: 2}))

	require.Equal(t, osalerr.Success, q.Send([]byte("x"), 0, ostime.Check))
	require.True(t, signaled)
}

func TestConcurrentProducersConsumersPreserveMessageCount(t *testing.T) {
	q, code := Open(uniqueName(t), 16, 8, 512, false, true)
	require.Equal(t, osalerr.Success, code)
	defer q.Close(true)

	const n = 40
	var mu sync.Mutex
	seen := make(map[byte]bool)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if code := q.Send([]byte{byte(i)}, int32(i%3), ostime.Timeout(1000)); code != osalerr.Success {
				return code
			}
			return nil
		})
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			data, _, code := q.Receive(ostime.Timeout(1000))
			if code != osalerr.Success {
				return code
			}
			mu.Lock()
			seen[data[0]] = true
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, seen, n)
}

func TestCloseUnlinkRefusedWhileReceiverBlocked(t *testing.T) {
	q, code := Open(uniqueName(t), 4, 8, 512, false, true)
	require.Equal(t, osalerr.Success, code)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Receive(ostime.Timeout(300))
	}()
	time.Sleep(30 * time.Millisecond)

	require.Equal(t, osalerr.IncorrectObjState, q.Close(true))
	wg.Wait()
	require.Equal(t, osalerr.Success, q.Close(true))
}
