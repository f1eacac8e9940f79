package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jmylchreest/smelly/pkg/findings"
)

// =============================================================================
// Findings MCP Tool Input Types
// =============================================================================

type FindingsSearchInput struct {
	Query    string `json:"query" jsonschema:"Search query over finding messages. Supports Bleve query syntax, e.g. message_prefix:swa or rule:empty-catch."`
	Rule     string `json:"rule,omitempty" jsonschema:"Filter by rule id, e.g. magic-number"`
	Severity string `json:"severity,omitempty" jsonschema:"Filter by severity: ERROR, WARN, INFO"`
	FilePath string `json:"file,omitempty" jsonschema:"Filter by file path pattern (substring match)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results (default 20)"`
}

type FindingsListInput struct {
	Rule     string `json:"rule,omitempty" jsonschema:"Filter by rule id, e.g. magic-number"`
	Severity string `json:"severity,omitempty" jsonschema:"Filter by severity: ERROR, WARN, INFO"`
	FilePath string `json:"file,omitempty" jsonschema:"Filter by file path pattern (substring match)"`
	Accepted bool   `json:"accepted,omitempty" jsonschema:"Include findings the user has accepted"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results (default 100)"`
}

type FindingsStatsInput struct{}

// =============================================================================
// Findings MCP Tool Registration
// =============================================================================

func (s *MCPServer) registerFindingsTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "findings_search",
		Description: `Search recorded code-smell findings by keyword using full-text search.

Searches finding messages. Use when looking for a specific identifier,
exception type or pattern.

**Examples:**
- "IOException" → catch blocks that swallow IOException
- "message_prefix:swa" → prefix match on message words

Filter by rule, severity (ERROR, WARN, INFO) or file path.
Findings are recorded by 'smelly scan --save', 'smelly watch' or smell_scan with save=true.`,
	}, s.handleFindingsSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "findings_list",
		Description: `List recorded code-smell findings with optional filters.

Does not require a query. Use it to browse the findings of a file or rule.
Accepted findings are hidden unless accepted=true.`,
	}, s.handleFindingsList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "findings_stats",
		Description: `Get an overview of recorded code-smell findings.

Returns the total with breakdowns by rule and severity. **Start here** when
asked about code quality, then drill down with findings_list or findings_search.`,
	}, s.handleFindingsStats)
}

// =============================================================================
// Findings MCP Tool Handlers
// =============================================================================

// toolOptions normalises the filters shared by the findings tools.
func toolOptions(rule, severity, file string, limit int) (findings.SearchOptions, error) {
	opts := findings.SearchOptions{Rule: rule, FilePath: file, Limit: limit}
	if severity != "" {
		sev, err := findings.ParseSeverity(severity)
		if err != nil {
			return opts, err
		}
		opts.Severity = sev
	}
	return opts, nil
}

func (s *MCPServer) handleFindingsSearch(_ context.Context, _ *mcp.CallToolRequest, input FindingsSearchInput) (*mcp.CallToolResult, any, error) {
	mcpLog.Printf("tool: findings_search query=%q rule=%s severity=%s", input.Query, input.Rule, input.Severity)

	if s.store == nil {
		return errorResult("findings store not available"), nil, nil
	}
	opts, err := toolOptions(input.Rule, input.Severity, input.FilePath, input.Limit)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	results, err := s.store.Search(input.Query, opts)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
	}
	if len(results) == 0 {
		return textResult("No findings found."), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d findings:\n\n", len(results))
	for _, r := range results {
		sb.WriteString(formatFindingLine(r.Finding))
	}
	return textResult(sb.String()), nil, nil
}

func (s *MCPServer) handleFindingsList(_ context.Context, _ *mcp.CallToolRequest, input FindingsListInput) (*mcp.CallToolResult, any, error) {
	mcpLog.Printf("tool: findings_list rule=%s severity=%s file=%s", input.Rule, input.Severity, input.FilePath)

	if s.store == nil {
		return errorResult("findings store not available"), nil, nil
	}
	opts, err := toolOptions(input.Rule, input.Severity, input.FilePath, input.Limit)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	opts.IncludeAccepted = input.Accepted

	results, err := s.store.List(opts)
	if err != nil {
		return errorResult(fmt.Sprintf("list failed: %v", err)), nil, nil
	}
	if len(results) == 0 {
		return textResult("No findings found."), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d findings:\n\n", len(results))
	for _, f := range results {
		sb.WriteString(formatFindingLine(f))
	}
	return textResult(sb.String()), nil, nil
}

func (s *MCPServer) handleFindingsStats(_ context.Context, _ *mcp.CallToolRequest, _ FindingsStatsInput) (*mcp.CallToolResult, any, error) {
	mcpLog.Printf("tool: findings_stats")

	if s.store == nil {
		return errorResult("findings store not available"), nil, nil
	}
	stats, err := s.store.Stats(findings.SearchOptions{})
	if err != nil {
		return errorResult(fmt.Sprintf("stats failed: %v", err)), nil, nil
	}
	return textResult(formatStatsMarkdown(stats)), nil, nil
}
