// Command osalctl boots an OSAL context from a configuration/manifest pair
// and reports on its mount table, the way a bring-up tool
// for an embedded target would before the real flight software loads.
//
// Grounded on GoogleCloudPlatform-gcsfuse's cmd/root.go for the
// cobra.Command/RunE shape and persistent-flag-plus-config-file pattern,
// adapted from gcsfuse's "mount a bucket" verb to osalctl's "probe a set of
// mounts and print a report" verb.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spf13/cobra"

	"github.com/nasa/osal-go/internal/osalerr"
	"github.com/nasa/osal-go/internal/osconfig"
	"github.com/nasa/osal-go/internal/oslog"
	"github.com/nasa/osal-go/osal"
)

var (
	manifestPath string
	bugcheck     string
	probeTimeout time.Duration
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "osalctl",
		Short: "Boot an OSAL context and report on its mounts",
		RunE:  runReport,
	}
	root.PersistentFlags().StringVar(&manifestPath, "manifest", "", "path to a YAML fixed-mount manifest")
	root.PersistentFlags().StringVar(&bugcheck, "bugcheck", "permissive", "bugcheck mode: disable, permissive, strict")
	root.PersistentFlags().DurationVar(&probeTimeout, "probe-timeout", 2*time.Second, "per-mount stat probe timeout")
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "osalctl:", err)
		os.Exit(1)
	}
}

func parseBugcheck(s string) (oslog.BugcheckMode, error) {
	switch s {
	case "disable":
		return oslog.BugcheckDisable, nil
	case "permissive":
		return oslog.BugcheckPermissive, nil
	case "strict":
		return oslog.BugcheckStrict, nil
	default:
		return 0, fmt.Errorf("unknown bugcheck mode %q", s)
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	mode, err := parseBugcheck(bugcheck)
	if err != nil {
		return err
	}

	cfg := osconfig.Default()
	cfg.BugcheckMode = mode
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := oslog.New(stdoutPrinter{}, oslog.LevelInfo)
	ctx, err := osal.New(cfg, log)
	if err != nil {
		return fmt.Errorf("booting osal context: %w", err)
	}

	if manifestPath != "" {
		manifest, err := osconfig.LoadManifest(manifestPath)
		if err != nil {
			return fmt.Errorf("loading manifest: %w", err)
		}
		if code := ctx.LoadManifest(manifest); code != osalerr.Success {
			return fmt.Errorf("applying manifest: %s", code)
		}
	}

	return printReport(cmd.Context(), ctx)
}

// printReport fans out one goroutine per mount to probe its backing path,
// bounded by probeTimeout and collected with errgroup the way a startup
// health check would verify every fixed mount is reachable before flight
// software starts using it.
func printReport(parent context.Context, ctx *osal.Context) error {
	mounts := ctx.Mounts.All()
	fmt.Printf("mount table: %d entries\n", len(mounts))

	results := make([]string, len(mounts))
	g, gctx := errgroup.WithContext(parent)
	for i, m := range mounts {
		i, m := i, m
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, probeTimeout)
			defer cancel()
			ok := probeMount(probeCtx, m.PhysicalMountpt)
			status := "ok"
			if !ok {
				status = "unreachable"
			}
			results[i] = fmt.Sprintf("  %-24s -> %-24s [%s]", m.VirtualMountpt, m.PhysicalMountpt, status)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, line := range results {
		fmt.Println(line)
	}
	return nil
}

func probeMount(ctx context.Context, physical string) bool {
	done := make(chan bool, 1)
	go func() {
		_, err := os.Stat(physical)
		done <- err == nil
	}()
	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		return false
	}
}

type stdoutPrinter struct{}

func (stdoutPrinter) Println(v ...interface{})               { fmt.Println(v...) }
func (stdoutPrinter) Printf(format string, v ...interface{}) { fmt.Printf(format, v...) }
