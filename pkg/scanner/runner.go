package scanner

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/smellignore"
	"github.com/jmylchreest/smelly/pkg/source"
)

var runnerLog = log.New(os.Stderr, "[smelly:runner] ", log.Ltime)

// ReplaceStore receives the fresh findings of each rescanned file.
type ReplaceStore interface {
	ReplaceFindingsForFile(filePath string, ff []*findings.Finding) error
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// ProjectRoot makes watcher paths relative for ignore matching and
	// reporting.
	ProjectRoot string
	// Ignore filters changed files. If nil, built-in defaults are used.
	Ignore *smellignore.Matcher
	// OnReport, if set, receives every completed report.
	OnReport func(*findings.Report)
}

// RunnerStatus summarises the runner's activity.
type RunnerStatus struct {
	Running      int
	Completed    int
	LastFile     string
	LastRun      time.Time
	LastDuration time.Duration
	LastError    string
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
	id     int64
}

// Runner rescans files as they change. A new change to a file cancels the
// rescan already in flight for it.
type Runner struct {
	scanner *Scanner
	store   ReplaceStore
	config  RunnerConfig

	mu       sync.Mutex
	runs     map[string]*activeRun
	status   RunnerStatus
	runIDGen int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sem limits concurrent rescans.
	sem chan struct{}
}

// NewRunner creates a runner. store may be nil when findings are only
// forwarded to OnReport.
func NewRunner(scanner *Scanner, store ReplaceStore, config RunnerConfig) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	if config.Ignore == nil {
		config.Ignore = smellignore.NewFromDefaults()
	}
	if config.ProjectRoot != "" {
		if abs, err := filepath.Abs(config.ProjectRoot); err == nil {
			config.ProjectRoot = abs
		}
	}
	return &Runner{
		scanner: scanner,
		store:   store,
		config:  config,
		runs:    make(map[string]*activeRun),
		ctx:     ctx,
		cancel:  cancel,
		sem:     make(chan struct{}, scanner.concurrency),
	}
}

// OnChanges implements the watcher's change handler.
func (r *Runner) OnChanges(files map[string]fsnotify.Op) {
	for file, op := range files {
		if !source.SupportedFile(file) {
			continue
		}
		rel := r.relative(file)
		if r.config.Ignore.ShouldIgnoreFile(rel) {
			continue
		}
		if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			if _, err := os.Stat(file); os.IsNotExist(err) {
				r.clear(rel)
				continue
			}
		}
		r.run(file, rel)
	}
}

// RunAll schedules a rescan of every file under paths. Use WaitAll to block
// until they finish.
func (r *Runner) RunAll(paths []string) error {
	files, err := Collect(paths, r.config.Ignore)
	if err != nil {
		return err
	}
	for _, f := range files {
		r.run(f, r.relative(f))
	}
	return nil
}

func (r *Runner) relative(file string) string {
	if r.config.ProjectRoot == "" {
		return file
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return file
	}
	if rel, err := filepath.Rel(r.config.ProjectRoot, abs); err == nil {
		return rel
	}
	return file
}

func (r *Runner) clear(rel string) {
	if r.store == nil {
		return
	}
	if err := r.store.ReplaceFindingsForFile(rel, nil); err != nil {
		runnerLog.Printf("%s: clear failed: %v", rel, err)
		return
	}
	runnerLog.Printf("%s: removed, findings cleared", rel)
}

func (r *Runner) run(file, rel string) {
	r.mu.Lock()
	if existing, ok := r.runs[rel]; ok {
		existing.cancel()
		r.mu.Unlock()
		<-existing.done
		r.mu.Lock()
	}

	ctx, cancel := context.WithCancel(r.ctx)
	done := make(chan struct{})
	r.runIDGen++
	runID := r.runIDGen
	r.runs[rel] = &activeRun{cancel: cancel, done: done, id: runID}
	r.status.Running++
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer close(done)
		defer r.wg.Done()
		defer cancel()
		defer func() {
			r.mu.Lock()
			if current, ok := r.runs[rel]; ok && current.id == runID {
				delete(r.runs, rel)
			}
			r.status.Running--
			r.mu.Unlock()
		}()

		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-ctx.Done():
			return
		}

		start := time.Now()
		report := r.scanner.ScanFile(file)
		report.Path = rel
		for _, f := range report.Findings {
			f.FilePath = rel
		}
		duration := time.Since(start)

		if ctx.Err() != nil {
			runnerLog.Printf("%s: cancelled", rel)
			return
		}

		var errStr string
		if r.store != nil {
			if err := r.store.ReplaceFindingsForFile(rel, report.Findings); err != nil {
				errStr = err.Error()
				runnerLog.Printf("%s: store failed: %v (keeping old findings)", rel, err)
			}
		}
		if r.config.OnReport != nil {
			r.config.OnReport(report)
		}

		r.mu.Lock()
		r.status.Completed++
		r.status.LastFile = rel
		r.status.LastRun = time.Now()
		r.status.LastDuration = duration
		r.status.LastError = errStr
		r.mu.Unlock()

		runnerLog.Printf("%s: %d findings in %v", rel, len(report.Findings), duration)
	}()
}

// Status returns a snapshot of the runner's activity.
func (r *Runner) Status() RunnerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// WaitAll blocks until all scheduled rescans have completed.
func (r *Runner) WaitAll() {
	r.wg.Wait()
}

// Stop cancels in-flight rescans and waits for them to drain.
func (r *Runner) Stop() {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(findings.DefaultRunnerStopTimeout):
		runnerLog.Printf("timeout waiting for rescans to stop")
	}
}
