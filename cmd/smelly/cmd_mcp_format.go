package main

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/report"
	"github.com/jmylchreest/smelly/pkg/rules"
)

// ============================================================================
// MCP result helpers
// ============================================================================

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + message},
		},
		IsError: true,
	}
}

// ============================================================================
// Findings formatting
// ============================================================================

func formatFindingLine(f *findings.Finding) string {
	line := fmt.Sprintf("- **%s** `%s` %s: %s", f.Severity, f.Rule, f.Location(), f.Message)
	if f.Accepted {
		line += " _(accepted)_"
	}
	return line + "\n"
}

// formatScanResult prefixes rendered reports with a one-line summary.
func formatScanResult(reports []*findings.Report, rendered string) string {
	total := report.Totals(reports)
	if total.Total() == 0 {
		return fmt.Sprintf("No smells found in %d files.", len(reports))
	}
	return fmt.Sprintf("%d findings in %d files (%d error, %d warn, %d info):\n\n%s",
		total.Total(), len(reports), total.Error, total.Warn, total.Info, rendered)
}

func formatStatsMarkdown(stats *findings.Stats) string {
	if stats.Total == 0 {
		return "No findings recorded. Run smell_scan with save=true, 'smelly scan --save' or 'smelly watch'."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Findings: %d\n\n## By severity\n\n", stats.Total)
	for _, sev := range []string{findings.SevError, findings.SevWarn, findings.SevInfo} {
		if n := stats.BySeverity[sev]; n > 0 {
			fmt.Fprintf(&sb, "- %s: %d\n", sev, n)
		}
	}

	sb.WriteString("\n## By rule\n\n")
	ids := make([]string, 0, len(stats.ByRule))
	for id := range stats.ByRule {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if stats.ByRule[ids[i]] != stats.ByRule[ids[j]] {
			return stats.ByRule[ids[i]] > stats.ByRule[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		fmt.Fprintf(&sb, "- %s: %d\n", id, stats.ByRule[id])
	}
	return sb.String()
}

// ============================================================================
// Rule formatting
// ============================================================================

func formatRulesMarkdown(infos []rules.Info, enabled []string) string {
	var sb strings.Builder
	sb.WriteString("# Rules\n\n")
	for _, info := range infos {
		langs := "all languages"
		if len(info.Languages) > 0 {
			langs = strings.Join(info.Languages, ", ")
		}
		fmt.Fprintf(&sb, "- **%s** (%s, %s): %s", info.ID, info.Severity, langs, info.Description)
		if !slices.Contains(enabled, info.ID) {
			sb.WriteString(" _(disabled)_")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
