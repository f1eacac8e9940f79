package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/jmylchreest/smelly/pkg/config"
	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/report"
	"github.com/jmylchreest/smelly/pkg/store"
)

var findingsFilterFlags = []string{
	"--rule=", "--severity=", "--file=", "--limit=", "--all", "--json", "--config=", "--help", "-h",
}

// cmdFindingsDispatcher routes findings subcommands.
func (c *cli) cmdFindingsDispatcher(args []string) error {
	if len(args) < 1 {
		printFindingsUsage(c.stdout)
		return nil
	}

	subcmd := args[0]
	subargs := args[1:]

	switch subcmd {
	case "list":
		return c.cmdFindingsList(subargs)
	case "search":
		return c.cmdFindingsSearch(subargs)
	case "stats":
		return c.cmdFindingsStats(subargs)
	case "accept":
		return c.cmdFindingsAccept(subargs)
	case "clear":
		return c.cmdFindingsClear(subargs)
	case "help", "-h", "--help":
		printFindingsUsage(c.stdout)
		return nil
	default:
		return usageErrorf("unknown findings subcommand: %s", subcmd)
	}
}

func printFindingsUsage(w io.Writer) {
	fmt.Fprintln(w, `smelly findings - Query the findings history

Findings are recorded by "smelly scan --save" and "smelly watch".

Usage:
  smelly findings <subcommand> [arguments]

Subcommands:
  list       List findings with optional filters
  search     Full-text search over finding messages
  stats      Show finding counts by rule and severity
  accept     Mark findings as accepted so they are hidden
  clear      Delete every stored finding

Options:
  list / stats:
    --rule=ID        Filter by rule id
    --severity=LVL   Filter by severity (INFO, WARN, ERROR)
    --file=PATH      Filter by file path (substring)
    --limit=N        Max results (list default 100)
    --all            Include accepted findings
    --json           Output as JSON

  search <query>:
    Same filters as list (search default limit 20). The query uses Bleve
    syntax, e.g. "swallows", "message_prefix:swa", "rule:empty-catch".

  accept <id>... | accept --rule=ID [--file=PATH]:
    Accepts the given ids, or every finding matching the filters.

Examples:
  smelly findings stats
  smelly findings list --rule=magic-number --file=src/billing
  smelly findings search "exception"
  smelly findings accept --rule=naming-convention --file=generated/`)
}

// openHistory opens the configured findings store.
func (c *cli) openHistory(args []string) (*store.Store, error) {
	cfg, err := config.Load(config.LoadOptions{ProjectRoot: c.root, File: parseFlag(args, "--config=")})
	if err != nil {
		return nil, err
	}
	path := cfg.StorePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.root, path)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open findings store: %w", err)
	}
	return st, nil
}

// filterOptions parses the shared filter flags.
func filterOptions(args []string, defLimit int) (findings.SearchOptions, error) {
	opts := findings.SearchOptions{
		Rule:            parseFlag(args, "--rule="),
		FilePath:        parseFlag(args, "--file="),
		IncludeAccepted: hasFlag(args, "--all"),
	}
	if sev := parseFlag(args, "--severity="); sev != "" {
		parsed, err := findings.ParseSeverity(sev)
		if err != nil {
			return opts, usageErrorf("--severity: %v", err)
		}
		opts.Severity = parsed
	}
	limit, err := intFlag(args, "--limit=", defLimit)
	if err != nil {
		return opts, err
	}
	opts.Limit = limit
	return opts, nil
}

func (c *cli) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintln(c.stdout, string(data))
	return nil
}

func (c *cli) printFinding(f *findings.Finding) {
	accepted := ""
	if f.Accepted {
		accepted = " [accepted]"
	}
	fmt.Fprintf(c.stdout, "[%s] %s%s\n", f.ID, truncate(report.Line(f), DefaultMessageWidth+40), accepted)
}

func (c *cli) cmdFindingsList(args []string) error {
	if err := validateFlags("findings list", args, findingsFilterFlags...); err != nil {
		return err
	}
	opts, err := filterOptions(args, findings.DefaultListLimit)
	if err != nil {
		return err
	}
	st, err := c.openHistory(args)
	if err != nil {
		return err
	}
	defer st.Close()

	ff, err := st.List(opts)
	if err != nil {
		return fmt.Errorf("list findings: %w", err)
	}
	if hasFlag(args, "--json") {
		if ff == nil {
			ff = []*findings.Finding{}
		}
		return c.printJSON(ff)
	}
	if len(ff) == 0 {
		fmt.Fprintln(c.stdout, "No findings found.")
		return nil
	}
	for _, f := range ff {
		c.printFinding(f)
	}
	return nil
}

func (c *cli) cmdFindingsSearch(args []string) error {
	if err := validateFlags("findings search", args, findingsFilterFlags...); err != nil {
		return err
	}
	query := positional(args)
	if len(query) != 1 {
		return usageErrorf("usage: smelly findings search <query> [options]")
	}
	opts, err := filterOptions(args, findings.DefaultSearchLimit)
	if err != nil {
		return err
	}
	st, err := c.openHistory(args)
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := st.Search(query[0], opts)
	if err != nil {
		return fmt.Errorf("search findings: %w", err)
	}
	if hasFlag(args, "--json") {
		if results == nil {
			results = []*findings.SearchResult{}
		}
		return c.printJSON(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(c.stdout, "No findings found.")
		return nil
	}
	for _, r := range results {
		c.printFinding(r.Finding)
	}
	return nil
}

func (c *cli) cmdFindingsStats(args []string) error {
	if err := validateFlags("findings stats", args, findingsFilterFlags...); err != nil {
		return err
	}
	opts, err := filterOptions(args, 0)
	if err != nil {
		return err
	}
	st, err := c.openHistory(args)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(opts)
	if err != nil {
		return fmt.Errorf("findings stats: %w", err)
	}
	if hasFlag(args, "--json") {
		return c.printJSON(stats)
	}

	fmt.Fprintf(c.stdout, "Total findings: %d\n", stats.Total)
	if stats.Total == 0 {
		return nil
	}
	fmt.Fprintln(c.stdout, "\nBy severity:")
	for _, sev := range []string{findings.SevError, findings.SevWarn, findings.SevInfo} {
		if n := stats.BySeverity[sev]; n > 0 {
			fmt.Fprintf(c.stdout, "  %-6s %d\n", sev, n)
		}
	}
	fmt.Fprintln(c.stdout, "\nBy rule:")
	ids := make([]string, 0, len(stats.ByRule))
	for id := range stats.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(c.stdout, "  %-22s %d\n", id, stats.ByRule[id])
	}
	return nil
}

func (c *cli) cmdFindingsAccept(args []string) error {
	if err := validateFlags("findings accept", args, findingsFilterFlags...); err != nil {
		return err
	}
	ids := positional(args)
	opts, err := filterOptions(args, 0)
	if err != nil {
		return err
	}
	if len(ids) == 0 && opts.Rule == "" && opts.FilePath == "" && opts.Severity == "" {
		return usageErrorf("usage: smelly findings accept <id>... | --rule=ID [--file=PATH] [--severity=LVL]")
	}
	st, err := c.openHistory(args)
	if err != nil {
		return err
	}
	defer st.Close()

	var n int
	if len(ids) > 0 {
		n, err = st.Accept(ids)
	} else {
		n, err = st.AcceptMatching(opts)
	}
	if err != nil {
		return fmt.Errorf("accept findings: %w", err)
	}
	fmt.Fprintf(c.stdout, "Accepted %d findings.\n", n)
	return nil
}

func (c *cli) cmdFindingsClear(args []string) error {
	if err := validateFlags("findings clear", args, "--config="); err != nil {
		return err
	}
	st, err := c.openHistory(args)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Clear(); err != nil {
		return fmt.Errorf("clear findings: %w", err)
	}
	fmt.Fprintln(c.stdout, "Findings cleared.")
	return nil
}
