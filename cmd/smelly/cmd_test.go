package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/rules"
	"github.com/jmylchreest/smelly/pkg/server"
)

const emptyCatchSrc = `class A {
  void run() {
    try { go(); } catch (Exception e) { }
  }
  void go() {}
}
`

const unbalancedSrc = `class B {
  void run() {
`

type testCLI struct {
	*cli
	out *bytes.Buffer
	err *bytes.Buffer
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &testCLI{
		cli: &cli{root: t.TempDir(), stdout: out, stderr: errOut},
		out: out,
		err: errOut,
	}
}

// run executes a command and returns its exit code.
func (c *testCLI) run(cmd string, args ...string) int {
	c.out.Reset()
	return exitCode(c.runCommand(cmd, args), c.err)
}

func (c *testCLI) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(c.root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestScan_TextReport(t *testing.T) {
	c := newTestCLI(t)
	file := c.write(t, "A.java", emptyCatchSrc)

	if code := c.run("scan", file, "--quiet", "--rules=empty-catch"); code != exitOK {
		t.Fatalf("exit = %d, stderr: %s", code, c.err)
	}
	want := "WARN: empty-catch: " + file + ":3"
	if !strings.Contains(c.out.String(), want) {
		t.Fatalf("output = %q, want containing %q", c.out, want)
	}
	if strings.Count(c.out.String(), "\n") != 1 {
		t.Errorf("expected exactly one finding line, got:\n%s", c.out)
	}
}

func TestScan_JSONOneReportPerFile(t *testing.T) {
	c := newTestCLI(t)
	c.write(t, "src/A.java", emptyCatchSrc)
	c.write(t, "src/Clean.java", "class Clean {}\n")
	c.write(t, "src/notes.txt", "not source")

	if code := c.run("scan", filepath.Join(c.root, "src"), "--quiet", "--format=json"); code != exitOK {
		t.Fatalf("exit = %d, stderr: %s", code, c.err)
	}
	var reports []struct {
		Path     string              `json:"path"`
		Findings []*findings.Finding `json:"findings"`
	}
	if err := json.Unmarshal(c.out.Bytes(), &reports); err != nil {
		t.Fatalf("decode: %v\n%s", err, c.out)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	if filepath.Base(reports[0].Path) != "A.java" || filepath.Base(reports[1].Path) != "Clean.java" {
		t.Errorf("report order = %s, %s", reports[0].Path, reports[1].Path)
	}
	if len(reports[1].Findings) != 0 {
		t.Errorf("clean file findings = %+v", reports[1].Findings)
	}
}

func TestScan_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args func(c *testCLI) []string
		want int
	}{
		{"warnings only", func(c *testCLI) []string {
			return []string{c.write(t, "A.java", emptyCatchSrc)}
		}, exitOK},
		{"parse failure", func(c *testCLI) []string {
			return []string{c.write(t, "B.java", unbalancedSrc)}
		}, exitFindings},
		{"missing file", func(c *testCLI) []string {
			return []string{filepath.Join(c.root, "Missing.java")}
		}, exitFindings},
		{"threshold hides warnings", func(c *testCLI) []string {
			return []string{c.write(t, "A.java", emptyCatchSrc), "--threshold=ERROR"}
		}, exitOK},
		{"zero max params", func(c *testCLI) []string { return []string{"--max-params=0"} }, exitUsage},
		{"non-numeric max params", func(c *testCLI) []string { return []string{"--max-params=many"} }, exitUsage},
		{"unknown rule", func(c *testCLI) []string { return []string{"--rules=no-such-rule"} }, exitUsage},
		{"unknown format", func(c *testCLI) []string { return []string{"--format=xml"} }, exitUsage},
		{"unknown flag", func(c *testCLI) []string { return []string{"--bogus"} }, exitUsage},
		{"missing config file", func(c *testCLI) []string {
			return []string{"--config=" + filepath.Join(c.root, "nope.json")}
		}, exitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLI(t)
			args := append(tt.args(c), "--quiet")
			if got := c.run("scan", args...); got != tt.want {
				t.Fatalf("exit = %d, want %d\nstdout: %s\nstderr: %s", got, tt.want, c.out, c.err)
			}
		})
	}
}

func TestScan_ProjectConfig(t *testing.T) {
	c := newTestCLI(t)
	c.write(t, ".smelly.json", `{"enabledRules": ["magic-number"]}`)
	file := c.write(t, "A.java", "class A {\n  int f() { try { return 42; } catch (Exception e) { } return 0; }\n}\n")

	if code := c.run("scan", file, "--quiet"); code != exitOK {
		t.Fatalf("exit = %d, stderr: %s", code, c.err)
	}
	out := c.out.String()
	if !strings.Contains(out, "magic-number") || strings.Contains(out, "empty-catch") {
		t.Fatalf("expected only magic-number findings, got:\n%s", out)
	}
}

func TestScan_Remote(t *testing.T) {
	c := newTestCLI(t)
	file := c.write(t, "A.java", emptyCatchSrc)
	a, err := c.setup(nil, true)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	ts := httptest.NewServer(server.NewServer(a.scanner, nil, "").Handler())
	defer ts.Close()

	if code := c.run("scan", file, "--quiet", "--server="+ts.URL); code != exitOK {
		t.Fatalf("exit = %d, stderr: %s", code, c.err)
	}
	if want := "WARN: empty-catch: " + file + ":3"; !strings.Contains(c.out.String(), want) {
		t.Fatalf("output = %q, want containing %q", c.out, want)
	}

	missing := filepath.Join(c.root, "Missing.java")
	if code := c.run("scan", missing, "--quiet", "--server="+ts.URL); code != exitFindings {
		t.Fatalf("missing file exit = %d, want %d", code, exitFindings)
	}
	if !strings.Contains(c.out.String(), findings.RuleReadFailure) {
		t.Errorf("output = %q", c.out)
	}
}

func TestScan_NoFiles(t *testing.T) {
	c := newTestCLI(t)
	if code := c.run("scan", c.root, "--quiet"); code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(c.err.String(), "no Java or Kotlin files") {
		t.Errorf("stderr = %q", c.err)
	}
}

func TestScan_SaveAndQueryHistory(t *testing.T) {
	c := newTestCLI(t)
	c.write(t, "src/A.java", emptyCatchSrc)

	if code := c.run("scan", filepath.Join(c.root, "src"), "--quiet", "--save"); code != exitOK {
		t.Fatalf("scan exit = %d, stderr: %s", code, c.err)
	}

	if code := c.run("findings", "list", "--json", "--rule=empty-catch"); code != exitOK {
		t.Fatalf("list exit = %d, stderr: %s", code, c.err)
	}
	var listed []*findings.Finding
	if err := json.Unmarshal(c.out.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v\n%s", err, c.out)
	}
	if len(listed) != 1 || listed[0].FilePath != filepath.Join("src", "A.java") || listed[0].ID == "" {
		t.Fatalf("listed = %+v", listed)
	}

	if code := c.run("findings", "search", "swallows"); code != exitOK {
		t.Fatalf("search exit = %d, stderr: %s", code, c.err)
	}
	if !strings.Contains(c.out.String(), listed[0].ID) {
		t.Errorf("search output = %q, want id %s", c.out, listed[0].ID)
	}

	if code := c.run("findings", "accept", listed[0].ID); code != exitOK {
		t.Fatalf("accept exit = %d, stderr: %s", code, c.err)
	}
	if !strings.Contains(c.out.String(), "Accepted 1 findings.") {
		t.Errorf("accept output = %q", c.out)
	}

	if code := c.run("findings", "list", "--rule=empty-catch"); code != exitOK {
		t.Fatalf("list exit = %d", code)
	}
	if !strings.Contains(c.out.String(), "No findings found.") {
		t.Errorf("accepted finding still listed: %q", c.out)
	}

	// A rescan keeps the acceptance.
	if code := c.run("scan", filepath.Join(c.root, "src"), "--quiet", "--save"); code != exitOK {
		t.Fatalf("rescan exit = %d", code)
	}
	if code := c.run("findings", "list", "--rule=empty-catch", "--all"); code != exitOK {
		t.Fatalf("list --all exit = %d", code)
	}
	if !strings.Contains(c.out.String(), "[accepted]") {
		t.Errorf("acceptance lost after rescan: %q", c.out)
	}

	if code := c.run("findings", "stats", "--json", "--all"); code != exitOK {
		t.Fatalf("stats exit = %d", code)
	}
	var stats findings.Stats
	if err := json.Unmarshal(c.out.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ByRule["empty-catch"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if code := c.run("findings", "clear"); code != exitOK {
		t.Fatalf("clear exit = %d", code)
	}
	if code := c.run("findings", "stats"); code != exitOK || !strings.Contains(c.out.String(), "Total findings: 0") {
		t.Errorf("after clear: exit %d, output %q", code, c.out)
	}
}

func TestFindings_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown subcommand", []string{"prune"}},
		{"search without query", []string{"search"}},
		{"accept without target", []string{"accept"}},
		{"bad severity", []string{"list", "--severity=LOUD"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLI(t)
			if got := c.run("findings", tt.args...); got != exitUsage {
				t.Fatalf("exit = %d, want %d (stderr %s)", got, exitUsage, c.err)
			}
		})
	}
}

func TestRules_JSON(t *testing.T) {
	c := newTestCLI(t)
	if code := c.run("rules", "--json", "--max-params=7"); code != exitOK {
		t.Fatalf("exit = %d, stderr: %s", code, c.err)
	}
	var infos []rules.Info
	if err := json.Unmarshal(c.out.Bytes(), &infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := rules.Builtin(rules.DefaultOptions()).IDs()
	if len(infos) != len(want) {
		t.Fatalf("rules = %d, want %d", len(infos), len(want))
	}
	for i, info := range infos {
		if info.ID != want[i] {
			t.Errorf("rule %d = %s, want %s", i, info.ID, want[i])
		}
		if info.ID == rules.RuleTooManyParameters && !strings.Contains(info.Description, "7") {
			t.Errorf("description %q does not reflect --max-params", info.Description)
		}
	}
}

func TestRules_Table(t *testing.T) {
	c := newTestCLI(t)
	if code := c.run("rules", "--rules=empty-catch"); code != exitOK {
		t.Fatalf("exit = %d, stderr: %s", code, c.err)
	}
	out := c.out.String()
	if !strings.Contains(out, "empty-catch") || !strings.Contains(out, "unsafe-unwrap") {
		t.Fatalf("table missing rules:\n%s", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	c := newTestCLI(t)
	if got := c.run("lint"); got != exitUsage {
		t.Fatalf("exit = %d, want %d", got, exitUsage)
	}
	if got := c.run("version"); got != exitOK || !strings.Contains(c.out.String(), "smelly") {
		t.Fatalf("version: exit %d, output %q", got, c.out)
	}
}

func newTestMCP(t *testing.T) (*MCPServer, *testCLI) {
	t.Helper()
	c := newTestCLI(t)
	a, err := c.setup(nil, true)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	st, err := a.openStore()
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	s := &MCPServer{app: a, store: st}
	s.newServer()
	return s, c
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %d items", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", res.Content[0])
	}
	return tc.Text
}

func TestMCP_ScanText(t *testing.T) {
	s, _ := newTestMCP(t)
	ctx := context.Background()

	res, _, err := s.handleSmellScan(ctx, nil, SmellScanInput{
		Text:     "fun main() {\n    val name: String? = null\n    println(name!!)\n}\n",
		Language: "kotlin",
	})
	if err != nil || res.IsError {
		t.Fatalf("smell_scan: %v %+v", err, res)
	}
	if text := resultText(t, res); !strings.Contains(text, "unsafe-unwrap") {
		t.Fatalf("result = %q", text)
	}

	res, _, _ = s.handleSmellScan(ctx, nil, SmellScanInput{Text: "class A {}", Language: "cobol"})
	if !res.IsError {
		t.Fatalf("expected error for unsupported language")
	}
	res, _, _ = s.handleSmellScan(ctx, nil, SmellScanInput{Text: "class A {}", Format: "xml"})
	if !res.IsError {
		t.Fatalf("expected error for unknown format")
	}
}

func TestMCP_ScanPathsAndFindings(t *testing.T) {
	s, c := newTestMCP(t)
	c.write(t, "src/A.java", emptyCatchSrc)
	ctx := context.Background()

	res, _, err := s.handleSmellScan(ctx, nil, SmellScanInput{Paths: []string{"src"}, Save: true})
	if err != nil || res.IsError {
		t.Fatalf("smell_scan: %v %+v", err, res)
	}
	if text := resultText(t, res); !strings.Contains(text, filepath.Join("src", "A.java")+":3") {
		t.Fatalf("result = %q", text)
	}

	res, _, _ = s.handleFindingsList(ctx, nil, FindingsListInput{Rule: "empty-catch"})
	if text := resultText(t, res); !strings.Contains(text, "Found 1 findings") {
		t.Fatalf("findings_list = %q", text)
	}
	res, _, _ = s.handleFindingsSearch(ctx, nil, FindingsSearchInput{Query: "swallows"})
	if text := resultText(t, res); !strings.Contains(text, "empty-catch") {
		t.Fatalf("findings_search = %q", text)
	}
	res, _, _ = s.handleFindingsStats(ctx, nil, FindingsStatsInput{})
	if text := resultText(t, res); !strings.Contains(text, "- empty-catch: 1") {
		t.Fatalf("findings_stats = %q", text)
	}
	res, _, _ = s.handleFindingsList(ctx, nil, FindingsListInput{Severity: "LOUD"})
	if !res.IsError {
		t.Fatalf("expected error for bad severity")
	}
}

func TestMCP_NoStore(t *testing.T) {
	s, _ := newTestMCP(t)
	s.store = nil
	res, _, _ := s.handleFindingsStats(context.Background(), nil, FindingsStatsInput{})
	if !res.IsError {
		t.Fatalf("expected error without a store")
	}
}

func TestMCP_Rules(t *testing.T) {
	s, _ := newTestMCP(t)
	res, _, _ := s.handleSmellRules(context.Background(), nil, SmellRulesInput{})
	text := resultText(t, res)
	for _, id := range rules.Builtin(rules.DefaultOptions()).IDs() {
		if !strings.Contains(text, "**"+id+"**") {
			t.Errorf("rule %s missing from %q", id, text)
		}
	}
}
