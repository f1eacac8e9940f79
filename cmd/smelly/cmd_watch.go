package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/report"
	"github.com/jmylchreest/smelly/pkg/scanner"
	"github.com/jmylchreest/smelly/pkg/smellignore"
	"github.com/jmylchreest/smelly/pkg/watcher"
)

var watchFlags = append(slices.Clone(configFlags), "--delay=", "--quiet", "--help", "-h")

// cmdWatch scans paths once, then rescans files as they change. Every
// rescan replaces that file's findings in the history store.
func (c *cli) cmdWatch(args []string) error {
	if wantsHelp(args) {
		fmt.Fprintf(c.stdout, `smelly watch - Rescan files as they change

Usage:
  smelly watch [paths...] [options]

Options:
  --delay=DURATION   Debounce delay before a rescan (default %s)
  --quiet            Suppress progress logging
  plus the configuration flags of "smelly scan"

Findings are recorded in the history store; query them with "smelly findings".
`, findings.DefaultWatchDelay)
		return nil
	}
	if err := validateFlags("watch", args, watchFlags...); err != nil {
		return err
	}
	quiet := hasFlag(args, "--quiet")
	a, err := c.setup(args, quiet)
	if err != nil {
		return err
	}

	delay := findings.DefaultWatchDelay
	if v := parseFlag(args, "--delay="); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return usageErrorf("--delay expects a duration such as 500ms or 2s, got %q", v)
		}
		delay = d
	}
	paths := positional(args)
	if len(paths) == 0 {
		paths = []string{"."}
	}

	ignore, err := smellignore.New(c.root)
	if err != nil {
		return fmt.Errorf("load ignore rules: %w", err)
	}
	st, err := a.openStore()
	if err != nil {
		return fmt.Errorf("open findings store: %w", err)
	}
	defer st.Close()

	var outMu sync.Mutex
	runner := scanner.NewRunner(a.scanner, st, scanner.RunnerConfig{
		ProjectRoot: c.root,
		Ignore:      ignore,
		OnReport: func(r *findings.Report) {
			if len(r.Findings) == 0 {
				return
			}
			out, err := report.Render(r, a.cfg.Format)
			if err != nil {
				return
			}
			outMu.Lock()
			defer outMu.Unlock()
			fmt.Fprint(c.stdout, out)
		},
	})
	defer runner.Stop()

	if err := runner.RunAll(paths); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	runner.WaitAll()

	w, err := watcher.New(watcher.Config{
		Paths:         paths,
		DebounceDelay: delay,
		Ignore:        ignore,
	}, runner)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if !quiet {
		fmt.Fprintf(c.stderr, "watching %d directories, press Ctrl-C to stop\n", w.Stats().DirsWatched)
	}
	<-ctx.Done()

	if err := w.Stop(); err != nil {
		return fmt.Errorf("stop watcher: %w", err)
	}
	runner.Stop()
	if !quiet {
		status := runner.Status()
		fmt.Fprintf(c.stderr, "stopped after %d scans\n", status.Completed)
	}
	return nil
}
