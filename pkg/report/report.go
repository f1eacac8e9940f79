// Package report renders scan reports as text, tables or JSON. Rendering is
// deterministic: the same reports always produce the same bytes.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/jmylchreest/smelly/pkg/findings"
)

// Output formats.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
)

// Formats lists the supported output formats.
var Formats = []string{FormatText, FormatTable, FormatJSON}

// ErrUnknownFormat is returned for a format outside Formats.
var ErrUnknownFormat = errors.New("unknown report format")

// Record is the flat form of a finding, in field order severity, rule,
// location, message.
type Record struct {
	Severity string `json:"severity"`
	Rule     string `json:"rule"`
	Location string `json:"location"`
	Message  string `json:"message"`
}

// Records flattens a report's findings in order.
func Records(r *findings.Report) []Record {
	out := make([]Record, len(r.Findings))
	for i, f := range r.Findings {
		out[i] = Record{
			Severity: f.Severity,
			Rule:     f.Rule,
			Location: f.Location(),
			Message:  f.Message,
		}
	}
	return out
}

// Render renders a single report. Format names are case-insensitive.
func Render(r *findings.Report, format string) (string, error) {
	if strings.ToLower(format) == FormatJSON {
		return marshal(jsonReportOf(r))
	}
	return RenderAll([]*findings.Report{r}, format)
}

// RenderAll renders reports in order. The JSON form is an array of reports.
func RenderAll(reports []*findings.Report, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return renderText(reports), nil
	case FormatTable:
		return renderTable(reports)
	case FormatJSON:
		out := make([]jsonReport, len(reports))
		for i, r := range reports {
			out[i] = jsonReportOf(r)
		}
		return marshal(out)
	default:
		return "", fmt.Errorf("%w %q (want %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
}

// Line renders one finding as "SEVERITY: rule: location: message".
func Line(f *findings.Finding) string {
	return fmt.Sprintf("%s: %s: %s: %s", f.Severity, f.Rule, f.Location(), f.Message)
}

func renderText(reports []*findings.Report) string {
	var b strings.Builder
	for _, r := range reports {
		for _, f := range r.Findings {
			b.WriteString(Line(f))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderTable(reports []*findings.Report) (string, error) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.Header("Severity", "Rule", "Location", "Message")
	for _, r := range reports {
		for _, rec := range Records(r) {
			if err := table.Append(rec.Severity, rec.Rule, rec.Location, rec.Message); err != nil {
				return "", fmt.Errorf("table row: %w", err)
			}
		}
	}
	if err := table.Render(); err != nil {
		return "", fmt.Errorf("render table: %w", err)
	}
	return buf.String(), nil
}

type jsonReport struct {
	Path     string           `json:"path"`
	Language string           `json:"language,omitempty"`
	Findings []Record         `json:"findings"`
	Summary  findings.Summary `json:"summary"`
}

func jsonReportOf(r *findings.Report) jsonReport {
	return jsonReport{
		Path:     r.Path,
		Language: r.Language,
		Findings: Records(r),
		Summary:  r.Summary,
	}
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data) + "\n", nil
}

// Totals sums the summaries of reports.
func Totals(reports []*findings.Report) findings.Summary {
	var s findings.Summary
	for _, r := range reports {
		s.Info += r.Summary.Info
		s.Warn += r.Summary.Warn
		s.Error += r.Summary.Error
	}
	return s
}
