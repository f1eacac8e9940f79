// Package scanner drives the rule engine over files and text blobs: it reads
// and parses each input, applies the rules, filters by severity and produces
// exactly one report per input.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/rules"
	"github.com/jmylchreest/smelly/pkg/source"
)

var scanLog = log.New(os.Stderr, "[smelly:scan] ", log.Ltime)

// Scanner applies an immutable rule engine to inputs. It is safe for
// concurrent use.
type Scanner struct {
	engine      *rules.Engine
	threshold   string
	concurrency int
	maxFileSize int64
	log         *log.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithThreshold drops findings below the given severity.
func WithThreshold(severity string) Option {
	return func(s *Scanner) { s.threshold = severity }
}

// WithConcurrency bounds the number of files scanned at once.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxFileSize sets the largest file that is read.
func WithMaxFileSize(n int64) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithLogger replaces the scanner's logger. A nil logger discards output.
func WithLogger(l *log.Logger) Option {
	return func(s *Scanner) {
		if l == nil {
			l = log.New(io.Discard, "", 0)
		}
		s.log = l
	}
}

// New creates a scanner over engine.
func New(engine *rules.Engine, opts ...Option) *Scanner {
	s := &Scanner{
		engine:      engine,
		threshold:   findings.DefaultSeverityThreshold,
		concurrency: findings.DefaultConcurrency,
		maxFileSize: findings.DefaultMaxFileSize,
		log:         scanLog,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the scanner's rule engine.
func (s *Scanner) Engine() *rules.Engine { return s.engine }

// Scan scans every path in parallel and returns one report per path, in
// input order. It fails only when ctx is cancelled; per-file problems become
// findings.
func (s *Scanner) Scan(ctx context.Context, paths []string) ([]*findings.Report, error) {
	reports := make([]*findings.Report, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = s.ScanFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	var total findings.Summary
	for _, r := range reports {
		total.Info += r.Summary.Info
		total.Warn += r.Summary.Warn
		total.Error += r.Summary.Error
	}
	s.log.Printf("scanned %d files: %d findings (%d error, %d warn, %d info)",
		len(paths), total.Total(), total.Error, total.Warn, total.Info)
	return reports, nil
}

// ScanFile reads and scans one file. Unreadable or oversized files yield a
// report holding a single read-failure finding.
func (s *Scanner) ScanFile(path string) *findings.Report {
	lang := languageFor(path, "")

	info, err := os.Stat(path)
	switch {
	case err != nil:
		return s.readFailure(path, lang, err)
	case info.IsDir():
		return s.readFailure(path, lang, errors.New("is a directory"))
	case info.Size() > s.maxFileSize:
		return s.readFailure(path, lang, fmt.Errorf("file is %d bytes, limit is %d", info.Size(), s.maxFileSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s.readFailure(path, lang, err)
	}
	return s.ScanText(path, lang, string(data))
}

// ScanText scans in-memory text. An empty lang is detected from path, and
// unknown extensions are treated as Java.
func (s *Scanner) ScanText(path, lang, text string) *findings.Report {
	lang = languageFor(path, lang)

	unit, err := source.ParseLanguage(path, lang, text)
	if err != nil {
		return s.parseFailure(path, lang, text, err)
	}

	ff := findings.FilterSeverity(s.engine.ApplyAll(unit), s.threshold)
	return findings.NewReport(path, lang, ff)
}

func languageFor(path, lang string) string {
	if lang != "" {
		return strings.ToLower(lang)
	}
	if detected := source.DetectLanguage(path); detected != "" {
		return detected
	}
	return source.LangJava
}

func (s *Scanner) parseFailure(path, lang, text string, err error) *findings.Report {
	line, msg := 1, err.Error()
	var pe *source.ParseError
	if errors.As(err, &pe) {
		line = pe.Line
		msg = fmt.Sprintf("cannot parse: %s (column %d)", pe.Msg, pe.Col)
	}
	if n := strings.Count(text, "\n") + 1; line > n {
		line = n
	}
	if line < 1 {
		line = 1
	}
	s.log.Printf("%s: parse failed: %v", path, err)
	return findings.NewReport(path, lang, []*findings.Finding{{
		Rule:     findings.RuleParseFailure,
		Severity: findings.SevError,
		FilePath: path,
		Line:     line,
		Message:  msg,
		Language: lang,
	}})
}

func (s *Scanner) readFailure(path, lang string, err error) *findings.Report {
	s.log.Printf("%s: read failed: %v", path, err)
	return findings.NewReport(path, lang, []*findings.Finding{{
		Rule:     findings.RuleReadFailure,
		Severity: findings.SevError,
		FilePath: path,
		Line:     1,
		Message:  fmt.Sprintf("cannot read: %v", err),
		Language: lang,
	}})
}
