// Package osconfig holds the compile-time capacity and limit options of
// spec.md §6 as a plain struct, following the shape of
// GoogleCloudPlatform-gcsfuse's cfg package (a defaults constructor plus a
// Validate step) rather than a build-tag/constant-only approach: OSAL's
// "compile-time" options are modeled as runtime configuration so a single
// binary can host several OSAL contexts (e.g. in tests) with different
// table sizes.
package osconfig

import (
	"fmt"

	"github.com/nasa/osal-go/internal/oslog"
)

// Config collects every option spec.md §6 names.
type Config struct {
	// Table capacities.
	MaxTasks           int
	MaxQueues          int
	MaxCountSemaphores int
	MaxBinSemaphores   int
	MaxMutexes         int
	MaxTimeBases       int
	MaxTimers          int
	MaxModules         int
	MaxOpenFiles       int
	MaxOpenDirs        int
	MaxFileSystems     int
	MaxConsoles        int

	// Length limits.
	MaxAPIName    int
	MaxPathLen    int
	MaxFileName   int
	FSDevNameLen  int
	FSPhysNameLen int
	FSVolNameLen  int

	// Queue ceiling.
	QueueMaxDepth int

	// Behavior flags.
	DebugPermissiveMode bool
	BugcheckMode        oslog.BugcheckMode
}

// Default returns the configuration the reference NASA build ships:
// generous but bounded table sizes, matching the original's
// osconfig-default values.
func Default() Config {
	return Config{
		MaxTasks:           64,
		MaxQueues:          64,
		MaxCountSemaphores: 64,
		MaxBinSemaphores:   64,
		MaxMutexes:         64,
		MaxTimeBases:       8,
		MaxTimers:          32,
		MaxModules:         32,
		MaxOpenFiles:       64,
		MaxOpenDirs:        16,
		MaxFileSystems:     16,
		MaxConsoles:        2,

		MaxAPIName:    64,
		MaxPathLen:    128,
		MaxFileName:   64,
		FSDevNameLen:  32,
		FSPhysNameLen: 64,
		FSVolNameLen:  32,

		QueueMaxDepth: 512,

		DebugPermissiveMode: false,
		BugcheckMode:        oslog.BugcheckPermissive,
	}
}

// Validate reports the first out-of-range option found, mirroring
// cfg.Validate's "first offending field wins" behavior in the teacher
// stack.
func (c Config) Validate() error {
	type bound struct {
		name string
		val  int
	}
	for _, b := range []bound{
		{"MaxTasks", c.MaxTasks},
		{"MaxQueues", c.MaxQueues},
		{"MaxCountSemaphores", c.MaxCountSemaphores},
		{"MaxBinSemaphores", c.MaxBinSemaphores},
		{"MaxMutexes", c.MaxMutexes},
		{"MaxTimeBases", c.MaxTimeBases},
		{"MaxTimers", c.MaxTimers},
		{"MaxModules", c.MaxModules},
		{"MaxOpenFiles", c.MaxOpenFiles},
		{"MaxOpenDirs", c.MaxOpenDirs},
		{"MaxFileSystems", c.MaxFileSystems},
		{"MaxConsoles", c.MaxConsoles},
	} {
		if b.val <= 0 {
			return fmt.Errorf("osconfig: %s must be positive, got %d", b.name, b.val)
		}
		if b.val > 1<<16 {
			return fmt.Errorf("osconfig: %s exceeds the 16-bit registry index space: %d", b.name, b.val)
		}
	}
	if c.MaxAPIName < 2 {
		return fmt.Errorf("osconfig: MaxAPIName must allow at least a 1-character name plus NUL")
	}
	if c.MaxPathLen < 2 {
		return fmt.Errorf("osconfig: MaxPathLen must allow at least a 1-character path plus NUL")
	}
	if c.MaxFileName < 2 {
		return fmt.Errorf("osconfig: MaxFileName must allow at least a 1-character name plus NUL")
	}
	if c.QueueMaxDepth <= 0 {
		return fmt.Errorf("osconfig: QueueMaxDepth must be positive, got %d", c.QueueMaxDepth)
	}
	return nil
}
