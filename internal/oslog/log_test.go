package oslog

import (
	"fmt"
	"strings"
	"testing"
)

type capturePrinter struct {
	lines []string
}

func (c *capturePrinter) Println(v ...interface{}) { c.lines = append(c.lines, fmt.Sprintln(v...)) }
func (c *capturePrinter) Printf(format string, v ...interface{}) {
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func TestLevelGating(t *testing.T) {
	p := &capturePrinter{}
	l := New(p, LevelWarn)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	if len(p.lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(p.lines), p.lines)
	}
	if !strings.Contains(p.lines[0], "WARN") || !strings.Contains(p.lines[0], "warn 3") {
		t.Fatalf("unexpected first line: %q", p.lines[0])
	}
	if !strings.Contains(p.lines[1], "ERROR") {
		t.Fatalf("unexpected second line: %q", p.lines[1])
	}
}

func TestBugcheckModes(t *testing.T) {
	p := &capturePrinter{}
	l := New(p, LevelDebug)

	l.Bugcheck(BugcheckDisable, "unreachable %d", 1)
	if len(p.lines) != 0 {
		t.Fatalf("BugcheckDisable logged: %v", p.lines)
	}

	l.Bugcheck(BugcheckPermissive, "violated invariant %d", 2)
	if len(p.lines) != 1 || !strings.Contains(p.lines[0], "BUGCHECK") {
		t.Fatalf("BugcheckPermissive: %v", p.lines)
	}
}
