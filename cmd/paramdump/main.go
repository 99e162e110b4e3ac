// Command paramdump connects to the bridge, synchronizes the full parameter
// set once and prints or exports it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/config"
	"github.com/KevinKickass/ParamBridge/internal/parameters"
	"github.com/KevinKickass/ParamBridge/internal/paramsync"
	"github.com/KevinKickass/ParamBridge/internal/system"
	"github.com/pterm/pterm"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	bridgeURL := flag.String("bridge", "", "bridge websocket URL (overrides config)")
	format := flag.String("format", "table", "output: table, json, yaml or param")
	out := flag.String("out", "", "write the export to this file instead of stdout")
	search := flag.String("search", "", "only show parameters whose name contains this")
	timeout := flag.Duration("timeout", 2*time.Minute, "give up after this long")
	metadataWait := flag.Duration("metadata-wait", 10*time.Second, "how long to wait for metadata after the set is complete")
	verbose := flag.Bool("v", false, "log sync internals")
	flag.Parse()

	if err := run(*configPath, *bridgeURL, *format, *out, *search, *timeout, *metadataWait, *verbose); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(configPath, bridgeURL, format, out, search string, timeout, metadataWait time.Duration, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if bridgeURL != "" {
		cfg.Bridge.URL = bridgeURL
	}

	logger := zap.NewNop()
	if verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spinner, _ := pterm.DefaultSpinner.Start("Connecting to " + cfg.Bridge.URL)
	progress := newProgress(spinner)

	stack, err := system.NewSyncStack(cfg, progress, logger)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}

	go stack.Client.Run(ctx)
	if err := stack.Coordinator.Start(ctx); err != nil {
		spinner.Fail(err.Error())
		return err
	}
	defer stack.Coordinator.Stop()

	select {
	case <-progress.done:
	case <-ctx.Done():
		st := stack.Coordinator.Status()
		spinner.Fail(fmt.Sprintf("Gave up with %d parameters loaded", st.LoadedCount))
		return fmt.Errorf("parameter sync did not complete: %w", ctx.Err())
	}

	if !waitForMetadata(ctx, stack.Coordinator, metadataWait) {
		pterm.Warning.Println("Metadata not available, exporting raw values")
	}

	snap := stack.Coordinator.Snapshot()
	spinner.Success(fmt.Sprintf("Loaded %d parameters from %s", len(snap.Parameters), snap.Identity))

	export := parameters.Export{
		GeneratedAt: time.Now().UTC(),
		SessionID:   snap.SessionID.String(),
		Vehicle:     snap.Identity.String(),
		Complete:    snap.State == paramsync.StateComplete,
		Parameters:  filter(snap.Parameters, search),
	}
	export.Count = len(export.Parameters)

	if format == "table" {
		renderTable(export)
		return nil
	}

	f, err := parameters.ParseFormat(format)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if out != "" {
		file, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer file.Close()
		w = file
	}

	if err := export.Write(w, f); err != nil {
		return err
	}
	if out != "" {
		pterm.Success.Printf("Wrote %d parameters to %s\n", export.Count, out)
	}
	return nil
}

func waitForMetadata(ctx context.Context, c *paramsync.Coordinator, wait time.Duration) bool {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if st := c.Status(); st.MetadataReady {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}
