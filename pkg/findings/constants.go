package findings

import "time"

// Default configuration constants. These are the single source of truth,
// referenced by the rule catalog, the config defaults, the CLI help text and
// the MCP wiring.
const (
	// -------------------------------------------------------------------------
	// Rules
	// -------------------------------------------------------------------------

	// DefaultMaxParameters is the largest parameter count that
	// too-many-parameters accepts without a finding.
	DefaultMaxParameters = 5

	// DefaultComplexityThreshold is the cyclomatic complexity at which
	// complex-method reports a method.
	DefaultComplexityThreshold = 10

	// DefaultSeverityThreshold drops nothing.
	DefaultSeverityThreshold = SevInfo

	// -------------------------------------------------------------------------
	// Scanner
	// -------------------------------------------------------------------------

	// DefaultConcurrency is the maximum number of files scanned at once.
	DefaultConcurrency = 16

	// DefaultMaxFileSize is the largest file the scanner reads. Larger
	// files get a read-failure report.
	DefaultMaxFileSize int64 = 4 << 20 // 4 MiB

	// DefaultWatchDelay is the debounce delay between a file change and
	// the rescan it triggers.
	DefaultWatchDelay = 2 * time.Second

	// DefaultRunnerStopTimeout is how long Runner.Stop() waits for
	// in-flight rescans to finish before giving up.
	DefaultRunnerStopTimeout = 30 * time.Second

	// -------------------------------------------------------------------------
	// Output
	// -------------------------------------------------------------------------

	// DefaultFormat is the report format used when none is configured.
	DefaultFormat = "text"

	// -------------------------------------------------------------------------
	// Search / list defaults
	// -------------------------------------------------------------------------

	// DefaultSearchLimit is the default result count for findings
	// full-text search (store, CLI, and MCP tool).
	DefaultSearchLimit = 20

	// DefaultListLimit is the default result count for findings list
	// queries (store, CLI, and MCP tool).
	DefaultListLimit = 100
)
