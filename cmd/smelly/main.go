// Package main provides the CLI for smelly.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jmylchreest/smelly/internal/version"
)

// cli carries what every command needs: the project root and the output
// streams.
type cli struct {
	root   string
	stdout io.Writer
	stderr io.Writer
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(exitUsage)
	}

	c := &cli{root: findProjectRoot(), stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(exitCode(c.runCommand(os.Args[1], os.Args[2:]), os.Stderr))
}

func (c *cli) runCommand(cmd string, args []string) error {
	switch cmd {
	case "scan":
		return c.cmdScan(args)
	case "rules":
		return c.cmdRules(args)
	case "findings":
		return c.cmdFindingsDispatcher(args)
	case "watch":
		return c.cmdWatch(args)
	case "serve":
		return c.cmdServe(args)
	case "mcp":
		return c.cmdMCP(args)
	case "help", "-h", "--help":
		printUsage(c.stdout)
		return nil
	case "version", "-v", "--version":
		return c.cmdVersion(args)
	default:
		return usageErrorf("unknown command: %s\n\nRun 'smelly help' for usage", cmd)
	}
}

func (c *cli) cmdVersion(args []string) error {
	if hasFlag(args, "--json") {
		fmt.Fprintln(c.stdout, version.JSON())
		return nil
	}
	fmt.Fprintln(c.stdout, version.String())
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `smelly %s - code-smell scanner for Java and Kotlin

Usage:
  smelly <command> [arguments]

Commands:
  scan       Scan files or directories and print a report
  rules      List the rule catalog
  findings   Query the findings history (list, search, stats, accept, clear)
  watch      Rescan files as they change and record findings
  serve      Start the HTTP API
  mcp        Start the MCP server on stdio
  version    Show version information

Configuration (lowest to highest priority):
  built-in defaults, .smelly.json in the project root (or --config=FILE),
  SMELLY_* environment variables, command-line flags.

Environment:
  SMELLY_MAX_PARAMETERS         Parameter limit for too-many-parameters (default 5)
  SMELLY_COMPLEXITY_THRESHOLD   Complexity limit for complex-method (default 10)
  SMELLY_ENABLED_RULES          Comma-separated rule ids (default: all)
  SMELLY_SEVERITY_THRESHOLD     Lowest severity reported (default INFO)
  SMELLY_FORMAT                 text, table or json (default text)
  SMELLY_STORE_PATH             Findings database (default .smelly/findings.db)

Exit status:
  0 no ERROR findings, 1 ERROR findings or a failure, 2 usage or configuration error

Examples:
  smelly scan src/
  smelly scan --format=table --threshold=WARN Service.java
  smelly scan --rules=empty-catch,magic-number --save .
  smelly findings list --rule=magic-number
  smelly findings search "swallows"
  smelly watch src/ --delay=500ms
`, version.Short())
}
