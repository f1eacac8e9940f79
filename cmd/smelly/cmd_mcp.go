package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jmylchreest/smelly/internal/version"
	"github.com/jmylchreest/smelly/pkg/store"
)

// mcpLog logs to stderr (stdout is reserved for MCP JSON-RPC protocol)
var mcpLog = log.New(os.Stderr, "[smelly:mcp] ", log.Ltime)

var mcpFlags = append(slices.Clone(configFlags), "--no-store", "--help", "-h")

// MCPServer exposes the scanner and the findings history as MCP tools.
type MCPServer struct {
	app    *app
	store  store.FindingsStore
	server *mcp.Server
}

func printMCPUsage(w io.Writer) {
	fmt.Fprintln(w, `smelly mcp - Start the MCP server on stdio

Usage:
  smelly mcp [options]

Options:
  --no-store   Run without the findings history (findings_* tools report an error)
  plus the configuration flags of "smelly scan"

Tools:
  smell_scan        Scan files, directories or a code snippet
  smell_rules       List the rule catalog
  findings_list     List recorded findings
  findings_search   Full-text search over recorded findings
  findings_stats    Counts of recorded findings by rule and severity`)
}

func (c *cli) cmdMCP(args []string) error {
	if wantsHelp(args) {
		printMCPUsage(c.stdout)
		return nil
	}
	if err := validateFlags("mcp", args, mcpFlags...); err != nil {
		return err
	}
	a, err := c.setup(args, false)
	if err != nil {
		return err
	}

	s := &MCPServer{app: a}
	if !hasFlag(args, "--no-store") {
		st, err := a.openStore()
		if err != nil {
			// Another smelly process may hold the lock; scanning still works.
			mcpLog.Printf("findings store unavailable: %v", err)
		} else {
			defer st.Close()
			s.store = st
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// logMiddleware logs every tool call with its duration.
func (s *MCPServer) logMiddleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != "tools/call" {
				return next(ctx, method, req)
			}
			name := "?"
			if params, ok := req.GetParams().(*mcp.CallToolParamsRaw); ok {
				name = params.Name
			}
			start := time.Now()
			res, err := next(ctx, method, req)
			mcpLog.Printf("tool %s: %v", name, time.Since(start).Round(time.Millisecond))
			return res, err
		}
	}
}

// newServer builds the MCP server and registers all tools.
func (s *MCPServer) newServer() *mcp.Server {
	srv := mcp.NewServer(
		&mcp.Implementation{
			Name:    version.ApplicationName,
			Version: version.Short(),
		},
		nil, // Use default capabilities
	)
	s.server = srv
	srv.AddReceivingMiddleware(s.logMiddleware())

	s.registerScanTools()
	s.registerFindingsTools()
	return srv
}

// Run serves MCP over stdio until ctx is cancelled or the client leaves.
func (s *MCPServer) Run(ctx context.Context) error {
	srv := s.newServer()
	mcpLog.Printf("serving on stdio (store: %t)", s.store != nil)
	return srv.Run(ctx, &mcp.StdioTransport{})
}
