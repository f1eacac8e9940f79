package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/jmylchreest/smelly/pkg/rules"
)

// cmdRules lists the catalog as configured, so --max-params and
// --complexity show up in the descriptions.
func (c *cli) cmdRules(args []string) error {
	if wantsHelp(args) {
		fmt.Fprintln(c.stdout, `smelly rules - List the rule catalog

Usage:
  smelly rules [--json] [--max-params=N] [--complexity=N] [--config=FILE]`)
		return nil
	}
	if err := validateFlags("rules", args, append([]string{"--json"}, configFlags...)...); err != nil {
		return err
	}
	a, err := c.setup(args, true)
	if err != nil {
		return err
	}
	infos := rules.Describe(a.registry.Rules())

	if hasFlag(args, "--json") {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return fmt.Errorf("encode rules: %w", err)
		}
		fmt.Fprintln(c.stdout, string(data))
		return nil
	}

	enabled := make(map[string]bool)
	for _, id := range a.scanner.Engine().RuleIDs() {
		enabled[id] = true
	}
	table := tablewriter.NewWriter(c.stdout)
	table.Header("Rule", "Severity", "Languages", "Enabled", "Description")
	for _, info := range infos {
		on := "no"
		if enabled[info.ID] {
			on = "yes"
		}
		if err := table.Append(info.ID, info.Severity, strings.Join(info.Languages, ","), on, info.Description); err != nil {
			return fmt.Errorf("table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}
