package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	bolt "go.etcd.io/bbolt"

	"github.com/jmylchreest/smelly/pkg/findings"
)

const mappingHashKey = "search_mapping_hash"

// unlimitedSearch stands in for "no limit" in bleve requests.
const unlimitedSearch = 100_000

// openOrCreateSearchIndex opens the index at path, replacing it when it
// cannot be opened. created reports whether the returned index is new and
// so needs reindexing from bbolt.
func openOrCreateSearchIndex(path string) (index bleve.Index, created bool, err error) {
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		index, err = createSearchIndex(path)
		return index, true, err
	}

	index, err = bleve.Open(path)
	if err == nil {
		return index, false, nil
	}

	storeLog.Printf("search index corrupted at %s (%v), rebuilding", path, err)
	if removeErr := os.RemoveAll(path); removeErr != nil {
		return nil, false, fmt.Errorf("failed to remove corrupted search index: %w (original error: %v)", removeErr, err)
	}
	index, err = createSearchIndex(path)
	return index, true, err
}

func createSearchIndex(path string) (bleve.Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}
	return bleve.New(path, indexMapping)
}

// buildIndexMapping indexes the message and declaration as lowercased text
// (plus edge n-grams of the message for prefix queries) and keeps rule,
// severity, file and language as exact keywords for filtering.
func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer("standard_lower", map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create standard analyzer: %w", err)
	}

	err = indexMapping.AddCustomTokenFilter("edge_ngram_filter", map[string]interface{}{
		"type": edgengram.Name,
		"min":  2.0,
		"max":  15.0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create edge ngram filter: %w", err)
	}
	err = indexMapping.AddCustomAnalyzer("edge_ngram", map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, "edge_ngram_filter"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create edge ngram analyzer: %w", err)
	}

	findingMapping := bleve.NewDocumentMapping()

	messageField := bleve.NewTextFieldMapping()
	messageField.Analyzer = "standard_lower"
	messageField.Store = true
	findingMapping.AddFieldMappingsAt("message", messageField)

	prefixField := bleve.NewTextFieldMapping()
	prefixField.Analyzer = "edge_ngram"
	prefixField.Store = false
	prefixField.IncludeInAll = false
	findingMapping.AddFieldMappingsAt("message_prefix", prefixField)

	declField := bleve.NewTextFieldMapping()
	declField.Analyzer = "standard_lower"
	declField.Store = false
	findingMapping.AddFieldMappingsAt("declaration", declField)

	for _, name := range []string{"rule", "severity", "file", "language"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		findingMapping.AddFieldMappingsAt(name, f)
	}

	indexMapping.AddDocumentMapping("finding", findingMapping)
	indexMapping.DefaultMapping = findingMapping

	return indexMapping, nil
}

func findingToSearchDoc(f *findings.Finding) map[string]interface{} {
	return map[string]interface{}{
		"message":        f.Message,
		"message_prefix": f.Message,
		"declaration":    f.Declaration,
		"rule":           f.Rule,
		"severity":       f.Severity,
		"file":           f.FilePath,
		"language":       f.Language,
		"accepted":       f.Accepted,
	}
}

// ensureSearchMapping rebuilds the search index from bbolt when it was just
// created or when the stored mapping hash differs from the current mapping.
func (s *Store) ensureSearchMapping(created bool) error {
	m, err := buildIndexMapping()
	if err != nil {
		return err
	}
	hash := MappingHash(m)

	stored, err := s.GetMeta(mappingHashKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if hash == stored && !created {
		return nil
	}
	if stored != "" {
		storeLog.Printf("search mapping changed, rebuilding index")
	}

	if err := s.resetSearchIndex(); err != nil {
		return err
	}

	err = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketFindings).Cursor()
		batch := s.search.NewBatch()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var f findings.Finding
			if err := json.Unmarshal(v, &f); err != nil {
				continue
			}
			if err := batch.Index(f.ID, findingToSearchDoc(&f)); err != nil {
				return err
			}
		}
		return s.search.Batch(batch)
	})
	if err != nil {
		return err
	}

	return s.SetMeta(mappingHashKey, hash)
}

// resetSearchIndex replaces the search index with an empty one.
func (s *Store) resetSearchIndex() error {
	if s.search != nil {
		if err := s.search.Close(); err != nil {
			return fmt.Errorf("failed to close findings search index: %w", err)
		}
		s.search = nil
	}
	if err := os.RemoveAll(s.searchPath); err != nil {
		return fmt.Errorf("failed to remove findings search index: %w", err)
	}
	index, err := createSearchIndex(s.searchPath)
	if err != nil {
		return fmt.Errorf("failed to recreate findings search index: %w", err)
	}
	s.search = index
	return nil
}

// Search runs a bleve query string over stored findings, narrowed by the
// exact-match filters in opts. Results are ordered by relevance.
func (s *Store) Search(queryStr string, opts findings.SearchOptions) ([]*findings.SearchResult, error) {
	if s.search == nil {
		return nil, errSearchClosed
	}
	limit := opts.Limit
	if limit == 0 {
		limit = findings.DefaultSearchLimit
	} else if limit < 0 {
		limit = unlimitedSearch
	}

	var queries []query.Query
	if queryStr != "" {
		queries = append(queries, bleve.NewQueryStringQuery(queryStr))
	}
	for field, value := range map[string]string{
		"rule":     opts.Rule,
		"severity": opts.Severity,
	} {
		if value == "" {
			continue
		}
		q := bleve.NewTermQuery(value)
		q.SetField(field)
		queries = append(queries, q)
	}
	if opts.FilePath != "" {
		q := bleve.NewWildcardQuery("*" + opts.FilePath + "*")
		q.SetField("file")
		queries = append(queries, q)
	}

	var searchQuery query.Query
	switch len(queries) {
	case 0:
		searchQuery = bleve.NewMatchAllQuery()
	case 1:
		searchQuery = queries[0]
	default:
		searchQuery = bleve.NewConjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	result, err := s.search.Search(req)
	if err != nil {
		return nil, fmt.Errorf("findings search failed: %w", err)
	}

	var results []*findings.SearchResult
	for _, hit := range result.Hits {
		f, err := s.Get(hit.ID)
		if err != nil {
			continue
		}
		if !opts.IncludeAccepted && f.Accepted {
			continue
		}
		results = append(results, &findings.SearchResult{Finding: f, Score: hit.Score})
	}
	return results, nil
}
