package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/report"
	"github.com/jmylchreest/smelly/pkg/rules"
	"github.com/jmylchreest/smelly/pkg/scanner"
	"github.com/jmylchreest/smelly/pkg/smellignore"
	"github.com/jmylchreest/smelly/pkg/source"
)

// =============================================================================
// Scan MCP Tool Input Types
// =============================================================================

type SmellScanInput struct {
	Paths    []string `json:"paths,omitempty" jsonschema:"Files or directories to scan, relative to the project root. Defaults to the whole project when no text is given."`
	Text     string   `json:"text,omitempty" jsonschema:"Java or Kotlin source to scan instead of files"`
	Path     string   `json:"path,omitempty" jsonschema:"Name reported for the text snippet; its extension selects the language"`
	Language string   `json:"language,omitempty" jsonschema:"Language of the text snippet: java or kotlin"`
	Format   string   `json:"format,omitempty" jsonschema:"Report format: text (default), table or json"`
	Save     bool     `json:"save,omitempty" jsonschema:"Record file findings in the history store"`
}

type SmellRulesInput struct{}

// =============================================================================
// Scan MCP Tool Registration
// =============================================================================

func (s *MCPServer) registerScanTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "smell_scan",
		Description: `Scan Java or Kotlin code for code smells.

Pass either paths (files or directories, relative to the project root) or a
text snippet. Each finding is reported as
"SEVERITY: rule: file:line (declaration): message".

**Examples:**
- paths=["src/main/java/com/acme/Billing.java"]
- text="class A { void f() { try { g(); } catch (Exception e) {} } }"

Set save=true to record file findings for findings_list and findings_search.
Use smell_rules to see what each rule detects.`,
	}, s.handleSmellScan)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "smell_rules",
		Description: `List the code-smell rules with their severity, languages and whether
they are enabled in this project's configuration.`,
	}, s.handleSmellRules)
}

// =============================================================================
// Scan MCP Tool Handlers
// =============================================================================

func (s *MCPServer) handleSmellScan(ctx context.Context, _ *mcp.CallToolRequest, input SmellScanInput) (*mcp.CallToolResult, any, error) {
	mcpLog.Printf("tool: smell_scan paths=%v text=%d bytes", input.Paths, len(input.Text))

	format := input.Format
	if format == "" {
		format = report.FormatText
	}
	if !slices.Contains(report.Formats, strings.ToLower(format)) {
		return errorResult(fmt.Sprintf("unknown format %q (want %s)", format, strings.Join(report.Formats, ", "))), nil, nil
	}

	var reports []*findings.Report
	if input.Text != "" {
		if len(input.Paths) > 0 {
			return errorResult("pass either paths or text, not both"), nil, nil
		}
		lang := strings.ToLower(input.Language)
		if lang != "" && !slices.Contains(source.Languages(), lang) {
			return errorResult(fmt.Sprintf("unsupported language %q", input.Language)), nil, nil
		}
		path := input.Path
		if path == "" {
			path = "snippet"
		}
		reports = []*findings.Report{s.app.scanner.ScanText(path, lang, input.Text)}
	} else {
		var err error
		reports, err = s.scanPaths(ctx, input.Paths)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		if len(reports) == 0 {
			return textResult("No Java or Kotlin files found."), nil, nil
		}
		if input.Save {
			if s.store == nil {
				return errorResult("findings store not available"), nil, nil
			}
			if err := s.store.SaveReports(reports); err != nil {
				return errorResult(fmt.Sprintf("save failed: %v", err)), nil, nil
			}
		}
	}

	out, err := report.RenderAll(reports, format)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return textResult(formatScanResult(reports, out)), nil, nil
}

// scanPaths scans files and directories named relative to the project root.
func (s *MCPServer) scanPaths(ctx context.Context, paths []string) ([]*findings.Report, error) {
	root := s.app.root
	if len(paths) == 0 {
		paths = []string{root}
	}
	resolved := make([]string, len(paths))
	for i, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		resolved[i] = p
	}

	ignore, err := smellignore.New(root)
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}
	files, err := scanner.Collect(resolved, ignore)
	if err != nil {
		return nil, err
	}
	reports, err := s.app.scanner.Scan(ctx, files)
	if err != nil {
		return nil, err
	}
	for _, r := range reports {
		rel := relativeTo(root, r.Path)
		r.Path = rel
		for _, f := range r.Findings {
			f.FilePath = rel
		}
	}
	return reports, nil
}

func (s *MCPServer) handleSmellRules(_ context.Context, _ *mcp.CallToolRequest, _ SmellRulesInput) (*mcp.CallToolResult, any, error) {
	mcpLog.Printf("tool: smell_rules")
	enabled := s.app.scanner.Engine().RuleIDs()
	return textResult(formatRulesMarkdown(rules.Describe(s.app.registry.Rules()), enabled)), nil, nil
}
