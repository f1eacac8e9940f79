// Package findings defines the finding and report model shared by the rule
// engine, the scanner, the reporters and the history store.
package findings

import (
	"fmt"
	"strings"
	"time"
)

// Severity levels for findings.
const (
	SevInfo  = "INFO"
	SevWarn  = "WARN"
	SevError = "ERROR"
)

// Severities lists the levels in ascending order.
var Severities = []string{SevInfo, SevWarn, SevError}

// SeverityRank returns a numeric rank for the given severity level:
// INFO=0, WARN=1, ERROR=2. Unknown values return -1.
func SeverityRank(sev string) int {
	switch sev {
	case SevInfo:
		return 0
	case SevWarn:
		return 1
	case SevError:
		return 2
	default:
		return -1
	}
}

// ParseSeverity normalises a user-supplied severity name. It is case
// insensitive and accepts "warning" and "err" as aliases.
func ParseSeverity(s string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return SevInfo, nil
	case "WARN", "WARNING":
		return SevWarn, nil
	case "ERROR", "ERR":
		return SevError, nil
	default:
		return "", fmt.Errorf("unknown severity %q (want INFO, WARN or ERROR)", s)
	}
}

// Rule ids reserved by the engine and scanner. They never name a registered
// rule.
const (
	RuleParseFailure  = "parse-failure"
	RuleInternalError = "rule-internal-error"
	RuleReadFailure   = "read-failure"
)

// Reserved reports whether id is one of the engine's reserved rule ids.
func Reserved(id string) bool {
	return id == RuleParseFailure || id == RuleInternalError || id == RuleReadFailure
}

// Finding is one reported instance of a rule match.
type Finding struct {
	ID          string            `json:"id,omitempty"`          // ULID, set when stored
	Rule        string            `json:"rule"`                  // Rule id
	Severity    string            `json:"severity"`              // "INFO", "WARN", "ERROR"
	FilePath    string            `json:"file"`                  // Path as given to the scanner
	Line        int               `json:"line"`                  // 1-indexed
	Declaration string            `json:"declaration,omitempty"` // Enclosing declaration name
	Message     string            `json:"message"`
	Language    string            `json:"language,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"` // Rule-specific data
	Accepted    bool              `json:"accepted,omitempty"` // Acknowledged by the user
	CreatedAt   time.Time         `json:"createdAt"`          // Zero until stored
}

// Location renders "file:line", followed by " (declaration)" when known.
func (f *Finding) Location() string {
	loc := fmt.Sprintf("%s:%d", f.FilePath, f.Line)
	if f.Declaration != "" {
		loc += " (" + f.Declaration + ")"
	}
	return loc
}

// Summary counts findings per severity.
type Summary struct {
	Info  int `json:"info"`
	Warn  int `json:"warn"`
	Error int `json:"error"`
}

// Total returns the number of counted findings.
func (s Summary) Total() int { return s.Info + s.Warn + s.Error }

// Add counts one finding of the given severity.
func (s *Summary) Add(sev string) {
	switch sev {
	case SevInfo:
		s.Info++
	case SevWarn:
		s.Warn++
	case SevError:
		s.Error++
	}
}

// Report is the result of scanning one input file. Findings are kept in
// discovery order.
type Report struct {
	Path     string     `json:"path"`
	Language string     `json:"language,omitempty"`
	Findings []*Finding `json:"findings"`
	Summary  Summary    `json:"summary"`
}

// NewReport assembles a report and computes its summary.
func NewReport(path, language string, ff []*Finding) *Report {
	r := &Report{Path: path, Language: language, Findings: ff}
	if r.Findings == nil {
		r.Findings = []*Finding{}
	}
	for _, f := range r.Findings {
		r.Summary.Add(f.Severity)
	}
	return r
}

// HasErrors reports whether the report carries an ERROR finding.
func (r *Report) HasErrors() bool { return r.Summary.Error > 0 }

// AnyErrors reports whether any report carries an ERROR finding.
func AnyErrors(reports []*Report) bool {
	for _, r := range reports {
		if r.HasErrors() {
			return true
		}
	}
	return false
}

// FilterSeverity returns the findings at or above threshold, preserving
// order.
func FilterSeverity(ff []*Finding, threshold string) []*Finding {
	min := SeverityRank(threshold)
	if min <= 0 {
		return ff
	}
	out := make([]*Finding, 0, len(ff))
	for _, f := range ff {
		if SeverityRank(f.Severity) >= min {
			out = append(out, f)
		}
	}
	return out
}

// SearchOptions for filtering stored findings.
type SearchOptions struct {
	Rule            string // Filter by rule id
	Severity        string // Filter by severity
	FilePath        string // Filter by file path (substring)
	Limit           int    // Max results (0 = default)
	IncludeAccepted bool   // Include accepted findings (default: hide them)
}

// Stats holds aggregate counts of stored findings.
type Stats struct {
	Total      int            `json:"total"`
	ByRule     map[string]int `json:"byRule"`
	BySeverity map[string]int `json:"bySeverity"`
}

// SearchResult pairs a finding with its search relevance score.
type SearchResult struct {
	Finding *Finding `json:"finding"`
	Score   float64  `json:"score"`
}
