package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmylchreest/smelly/pkg/config"
)

// errErrorFindings makes the CLI exit 1 without printing anything more.
var errErrorFindings = errors.New("error findings reported")

// usageError is a bad command line. It exits 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// exitCode maps a command's result to the process exit code, printing the
// error to stderr where there is one to print.
func exitCode(err error, stderr io.Writer) int {
	var ue *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errErrorFindings):
		return exitFindings
	case errors.As(err, &ue), config.IsConfigError(err):
		fmt.Fprintf(stderr, "smelly: %v\n", err)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "smelly: %v\n", err)
		return exitFindings
	}
}

// truncate shortens a string to n characters with ellipsis.
func truncate(s string, n int) string {
	if n < 4 {
		return s
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// parseFlag extracts a flag value from args (e.g., "--key=value").
func parseFlag(args []string, prefix string) string {
	for _, arg := range args {
		if strings.HasPrefix(arg, prefix) {
			return strings.TrimPrefix(arg, prefix)
		}
	}
	return ""
}

// hasFlag checks if a flag is present in args.
func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}

// wantsHelp reports whether args ask for a command's usage.
func wantsHelp(args []string) bool {
	return hasFlag(args, "--help") || hasFlag(args, "-h")
}

// intFlag parses an integer flag. It returns def when the flag is absent.
func intFlag(args []string, prefix string, def int) (int, error) {
	v := parseFlag(args, prefix)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, usageErrorf("%s expects an integer, got %q", strings.TrimSuffix(prefix, "="), v)
	}
	return n, nil
}

// positional returns the arguments that are not flags.
func positional(args []string) []string {
	var out []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			out = append(out, arg)
		}
	}
	return out
}

// validateFlags checks every flag argument against known. Entries ending in
// "=" take a value.
func validateFlags(cmd string, args []string, known ...string) error {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			continue
		}
		ok := false
		for _, k := range known {
			if arg == k || (strings.HasSuffix(k, "=") && strings.HasPrefix(arg, k)) {
				ok = true
				break
			}
		}
		if !ok {
			return usageErrorf("unknown flag: %s\n\nRun 'smelly %s --help' for usage", arg, cmd)
		}
	}
	return nil
}

// relativeTo returns path relative to root when it lies below it.
func relativeTo(root, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// findProjectRoot finds the git root directory, or falls back to cwd.
func findProjectRoot() string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err == nil {
		return strings.TrimSpace(string(output))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, ".smelly")); err == nil {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd
		}
		dir = parent
	}
}
