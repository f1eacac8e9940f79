package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/jmylchreest/smelly/pkg/server"
	"github.com/jmylchreest/smelly/pkg/store"
)

var serveFlags = append(slices.Clone(configFlags), "--addr=", "--no-store", "--quiet", "--help", "-h")

// cmdServe runs the HTTP API until interrupted.
func (c *cli) cmdServe(args []string) error {
	if wantsHelp(args) {
		fmt.Fprintf(c.stdout, `smelly serve - Start the HTTP API

Usage:
  smelly serve [options]

Options:
  --addr=HOST:PORT   Listen address (default %s)
  --no-store         Do not open the findings history; /api/findings answers 501
  --quiet            Suppress scanner logging
  plus the configuration flags of "smelly scan"

Endpoints:
  POST /api/scan       {"path": "...", "language": "java|kotlin", "text": "..."}
  GET  /api/rules
  GET  /api/findings   ?rule=&severity=&file=&limit=&accepted=&q=
  GET  /health
`, DefaultServeAddr)
		return nil
	}
	if err := validateFlags("serve", args, serveFlags...); err != nil {
		return err
	}
	a, err := c.setup(args, hasFlag(args, "--quiet"))
	if err != nil {
		return err
	}

	addr := parseFlag(args, "--addr=")
	if addr == "" {
		addr = DefaultServeAddr
	}

	var st store.FindingsStore
	if !hasFlag(args, "--no-store") {
		s, err := a.openStore()
		if err != nil {
			return fmt.Errorf("open findings store: %w", err)
		}
		defer s.Close()
		st = s
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.NewServer(a.scanner, st, addr).Start(ctx)
}
