package store

import (
	"github.com/jmylchreest/smelly/pkg/findings"
)

// FindingsStore is the findings history as seen by the CLI, the HTTP API
// and the MCP tools.
type FindingsStore interface {
	Add(f *findings.Finding) error
	Get(id string) (*findings.Finding, error)
	Delete(id string) error
	List(opts findings.SearchOptions) ([]*findings.Finding, error)
	FileFindings(filePath string) ([]*findings.Finding, error)
	Search(query string, opts findings.SearchOptions) ([]*findings.SearchResult, error)
	Stats(opts findings.SearchOptions) (*findings.Stats, error)
	Accept(ids []string) (int, error)
	AcceptMatching(opts findings.SearchOptions) (int, error)
	ReplaceFindingsForFile(filePath string, ff []*findings.Finding) error
	SaveReports(reports []*findings.Report) error
	Clear() error
	Close() error
}

var _ FindingsStore = (*Store)(nil)
