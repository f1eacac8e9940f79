package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/report"
	"github.com/jmylchreest/smelly/pkg/scanner"
	"github.com/jmylchreest/smelly/pkg/server"
	"github.com/jmylchreest/smelly/pkg/smellignore"
	"github.com/jmylchreest/smelly/pkg/store"
)

var scanFlags = append(slices.Clone(configFlags), "--save", "--quiet", "--server=", "--help", "-h")

func printScanUsage(w io.Writer) {
	fmt.Fprintln(w, `smelly scan - Scan Java and Kotlin sources for code smells

Usage:
  smelly scan [paths...] [options]

Directories are walked recursively, skipping paths matched by .smellignore.
Explicit file paths are always scanned. Defaults to the current directory.

Options:
  --format=FMT       text, table or json (default text)
  --config=FILE      Configuration file (default .smelly.json in the project root)
  --max-params=N     Parameter limit for too-many-parameters (default 5)
  --complexity=N     Complexity limit for complex-method (default 10)
  --rules=a,b        Only run these rule ids
  --threshold=LEVEL  Drop findings below INFO, WARN or ERROR
  --concurrency=N    Files scanned at once (default 16)
  --save             Record the findings in the history store
  --server=URL       Scan through a running "smelly serve" instead of locally
  --quiet            Suppress progress logging

Examples:
  smelly scan src/main/java
  smelly scan --format=json --rules=empty-catch Service.java
  smelly scan --save --threshold=WARN .`)
}

// cmdScan scans paths and prints one report per file.
func (c *cli) cmdScan(args []string) error {
	if wantsHelp(args) {
		printScanUsage(c.stdout)
		return nil
	}
	if err := validateFlags("scan", args, scanFlags...); err != nil {
		return err
	}
	a, err := c.setup(args, hasFlag(args, "--quiet"))
	if err != nil {
		return err
	}

	paths := positional(args)
	if len(paths) == 0 {
		paths = []string{"."}
	}
	ignore, err := smellignore.New(c.root)
	if err != nil {
		return fmt.Errorf("load ignore rules: %w", err)
	}
	files, err := scanner.Collect(paths, ignore)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(c.stderr, "no Java or Kotlin files found")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reports []*findings.Report
	if url := parseFlag(args, "--server="); url != "" {
		reports, err = scanRemote(ctx, url, files, a.cfg.SeverityThreshold, a.cfg.Concurrency)
	} else {
		reports, err = a.scanner.Scan(ctx, files)
	}
	if err != nil {
		return err
	}

	out, err := report.RenderAll(reports, a.cfg.Format)
	if err != nil {
		return err
	}
	fmt.Fprint(c.stdout, out)

	if hasFlag(args, "--save") {
		if err := a.save(reports); err != nil {
			return err
		}
		if !hasFlag(args, "--quiet") {
			fmt.Fprintf(c.stderr, "saved %d reports to %s\n", len(reports), a.storePath())
		}
	}

	if findings.AnyErrors(reports) {
		return errErrorFindings
	}
	return nil
}

// save records reports in the history store under root-relative paths.
func (a *app) save(reports []*findings.Report) error {
	st, err := a.openStore()
	if err != nil {
		return fmt.Errorf("open findings store: %w", err)
	}
	defer st.Close()
	return saveReports(st, a.root, reports)
}

func saveReports(st store.FindingsStore, root string, reports []*findings.Report) error {
	rel := make([]*findings.Report, len(reports))
	for i, r := range reports {
		path := relativeTo(root, r.Path)
		ff := make([]*findings.Finding, len(r.Findings))
		for j, f := range r.Findings {
			cp := *f
			cp.FilePath = path
			ff[j] = &cp
		}
		rel[i] = findings.NewReport(path, r.Language, ff)
	}
	return st.SaveReports(rel)
}

// scanRemote sends each file to a smelly HTTP server. The server's own
// configuration picks the rules; threshold is applied locally as well.
func scanRemote(ctx context.Context, baseURL string, files []string, threshold string, concurrency int) ([]*findings.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultRemoteTimeout)
	defer cancel()

	client := server.NewClient(baseURL)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("server %s: %w", baseURL, err)
	}

	reports := make([]*findings.Report, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range files {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				reports[i] = findings.NewReport(path, "", []*findings.Finding{{
					Rule:     findings.RuleReadFailure,
					Severity: findings.SevError,
					FilePath: path,
					Line:     1,
					Message:  fmt.Sprintf("cannot read: %v", err),
				}})
				return nil
			}
			r, err := client.Scan(gctx, server.ScanRequest{Path: path, Text: string(data)})
			if err != nil {
				return fmt.Errorf("remote scan %s: %w", path, err)
			}
			reports[i] = findings.NewReport(r.Path, r.Language, findings.FilterSeverity(r.Findings, threshold))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
