// Package smellignore provides gitignore-style file matching for smelly.
//
// It loads patterns from a project's .smellignore file (if present), merges
// them with built-in defaults for build output and tool directories, and is
// consulted by the scanner when expanding directories and by the watcher.
//
// Pattern syntax mirrors .gitignore, with globs evaluated by doublestar:
//
//	# comment
//	*Generated.java  match files by name at any depth
//	build/           match directories by name (trailing slash)
//	**/gen/          match at any depth
//	!Keep.java       negate a previous pattern
//	/rootonly        anchored to project root (leading slash)
package smellignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileName is the per-project ignore file.
const FileName = ".smellignore"

// Matcher tests whether a path should be ignored.
type Matcher struct {
	rules []rule
}

type rule struct {
	glob     string
	negation bool
	dirOnly  bool
}

// BuiltinDefaults are patterns applied even when no .smellignore file exists.
var BuiltinDefaults = []string{
	// Version control
	".git/",
	".svn/",
	".hg/",

	// Tool state
	".smelly/",

	// JVM build output
	"build/",
	"target/",
	"out/",
	"bin/",
	".gradle/",
	".kotlin/",

	// IDE
	".idea/",
	".vscode/",

	// Foreign dependency trees
	"node_modules/",
	"vendor/",

	// Generated sources
	"**/generated/",
	"**/generated-sources/",
}

// New creates a Matcher from built-in defaults plus an optional .smellignore
// file located at <projectRoot>/.smellignore.
func New(projectRoot string) (*Matcher, error) {
	m := NewFromDefaults()
	if err := m.loadFile(filepath.Join(projectRoot, FileName)); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return m, nil
}

// NewFromDefaults creates a Matcher using only built-in defaults (no file).
func NewFromDefaults() *Matcher {
	return NewFromPatterns(BuiltinDefaults...)
}

// NewFromPatterns creates a Matcher from explicit patterns, in priority
// order.
func NewFromPatterns(patterns ...string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		m.add(p)
	}
	return m
}

// NewEmpty creates a Matcher that ignores nothing.
func NewEmpty() *Matcher {
	return &Matcher{}
}

// ShouldIgnore reports whether the given path (relative to the project root)
// should be ignored. isDir must be true when path refers to a directory.
func (m *Matcher) ShouldIgnore(path string, isDir bool) bool {
	path = strings.TrimSuffix(filepath.ToSlash(path), "/")
	path = strings.TrimPrefix(path, "./")
	if path == "" || path == "." {
		return false
	}

	// Last matching rule wins.
	ignored, matched := false, false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if ok, err := doublestar.Match(r.glob, path); err == nil && ok {
			ignored = !r.negation
			matched = true
		}
	}
	if ignored {
		return true
	}
	// An explicit negation overrides an ignored parent directory.
	if matched {
		return false
	}

	if !isDir {
		parts := strings.Split(path, "/")
		for i := 1; i < len(parts); i++ {
			if m.ShouldIgnore(strings.Join(parts[:i], "/"), true) {
				return true
			}
		}
	}
	return false
}

// ShouldIgnoreDir is a convenience for ShouldIgnore(path, true).
func (m *Matcher) ShouldIgnoreDir(path string) bool {
	return m.ShouldIgnore(path, true)
}

// ShouldIgnoreFile is a convenience for ShouldIgnore(path, false).
func (m *Matcher) ShouldIgnoreFile(path string) bool {
	return m.ShouldIgnore(path, false)
}

// WalkFunc returns a skip-check for filepath.WalkDir callbacks that converts
// paths to be relative to projectRoot before matching.
func (m *Matcher) WalkFunc(projectRoot string) func(path string, isDir bool) (skip bool, skipDir bool) {
	return func(path string, isDir bool) (bool, bool) {
		rel, err := filepath.Rel(projectRoot, path)
		if err != nil {
			rel = path
		}
		if m.ShouldIgnore(rel, isDir) {
			return true, isDir
		}
		return false, false
	}
}

func (m *Matcher) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.add(line)
	}
	return scanner.Err()
}

// add converts a gitignore-style pattern into a doublestar glob. Patterns
// without an interior slash match at any depth.
func (m *Matcher) add(pattern string) {
	r := rule{}
	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	anchored := strings.HasPrefix(pattern, "/") || strings.Contains(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")
	if pattern == "" {
		return
	}
	if !anchored && !strings.HasPrefix(pattern, "**/") {
		pattern = "**/" + pattern
	}
	r.glob = pattern
	m.rules = append(m.rules, r)
}
