package osal

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nasa/osal-go/internal/osalerr"
	"github.com/nasa/osal-go/internal/osconfig"
	"github.com/nasa/osal-go/internal/ostime"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	cfg := osconfig.Default()
	cfg.MaxQueues = 4
	cfg.MaxCountSemaphores = 4
	cfg.MaxConsoles = 2
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestQueueRoundTripThroughContext(t *testing.T) {
	c := newTestContext(t)

	id, code := c.QueueCreate("ctx-queue", 8, 64)
	if code != osalerr.Success {
		t.Fatalf("QueueCreate: %v", code)
	}
	if code := c.QueueSend(id, []byte("hello"), 0, ostime.Check); code != osalerr.Success {
		t.Fatalf("QueueSend: %v", code)
	}
	data, _, code := c.QueueReceive(id, ostime.Check)
	if code != osalerr.Success {
		t.Fatalf("QueueReceive: %v", code)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want %q", data, "hello")
	}
	if code := c.QueueDelete(id, true); code != osalerr.Success {
		t.Fatalf("QueueDelete: %v", code)
	}
}

func TestSemRoundTripThroughContext(t *testing.T) {
	c := newTestContext(t)

	id, code := c.SemCreate("ctx-sem", 1)
	if code != osalerr.Success {
		t.Fatalf("SemCreate: %v", code)
	}
	if code := c.SemTake(id); code != osalerr.Success {
		t.Fatalf("SemTake: %v", code)
	}
	if code := c.SemTimedWait(id, ostime.Check); code != osalerr.SemTimeout {
		t.Fatalf("SemTimedWait on empty = %v, want SemTimeout", code)
	}
	if code := c.SemGive(id); code != osalerr.Success {
		t.Fatalf("SemGive: %v", code)
	}
	if code := c.SemDelete(id); code != osalerr.Success {
		t.Fatalf("SemDelete: %v", code)
	}
}

func TestConsoleRoundTripThroughContext(t *testing.T) {
	c := newTestContext(t)
	var buf bytes.Buffer

	id, code := c.ConsoleCreate("ctx-console", 64, &buf)
	if code != osalerr.Success {
		t.Fatalf("ConsoleCreate: %v", code)
	}
	if code := c.ConsoleWrite(id, "boot complete\n"); code != osalerr.Success {
		t.Fatalf("ConsoleWrite: %v", code)
	}
	if code := c.ConsoleFlush(id); code != osalerr.Success {
		t.Fatalf("ConsoleFlush: %v", code)
	}
	if buf.String() != "boot complete\n" {
		t.Fatalf("console output = %q", buf.String())
	}
}

func TestTimedQueueReceiveWakesOnSend(t *testing.T) {
	c := newTestContext(t)
	id, code := c.QueueCreate("ctx-timed-queue", 8, 64)
	if code != osalerr.Success {
		t.Fatalf("QueueCreate: %v", code)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		c.QueueSend(id, []byte("late"), 0, ostime.Check)
	}()

	ctx := context.Background()
	data, _, code := c.TimedQueueReceive(ctx, id, 2000)
	if code != osalerr.Success {
		t.Fatalf("TimedQueueReceive: %v", code)
	}
	if string(data) != "late" {
		t.Fatalf("got %q, want %q", data, "late")
	}
}

func TestTimedQueueReceiveTimesOut(t *testing.T) {
	c := newTestContext(t)
	id, _ := c.QueueCreate("ctx-timed-queue-empty", 8, 64)

	ctx := context.Background()
	start := time.Now()
	_, _, code := c.TimedQueueReceive(ctx, id, 100)
	if code != osalerr.QueueTimeout {
		t.Fatalf("TimedQueueReceive = %v, want QueueTimeout", code)
	}
	if time.Since(start) < 80*time.Millisecond {
		t.Fatalf("returned too early: %v", time.Since(start))
	}
}

func TestLoadManifestAppliesFixedMounts(t *testing.T) {
	c := newTestContext(t)
	m := osconfig.Manifest{FixedMounts: []osconfig.FixedMount{
		{DeviceName: "ramdev0", VolumeName: "RAM0", Physical: "/tmp", Virtual: "/ram0"},
	}}
	if code := c.LoadManifest(m); code != osalerr.Success {
		t.Fatalf("LoadManifest: %v", code)
	}
	local, code := c.Mounts.TranslatePath("/ram0/file.txt")
	if code != osalerr.Success {
		t.Fatalf("TranslatePath: %v", code)
	}
	if local != "/tmp/file.txt" {
		t.Fatalf("TranslatePath = %q, want /tmp/file.txt", local)
	}
}
