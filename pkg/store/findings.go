package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/jmylchreest/smelly/pkg/findings"
)

// Add stores a finding and indexes it for search. A missing ID or
// CreatedAt is filled in.
func (s *Store) Add(f *findings.Finding) error {
	if s.search == nil {
		return errSearchClosed
	}
	stamp(f, time.Now())

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal finding: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketFindings).Put([]byte(f.ID), data)
	})
	if err != nil {
		return err
	}
	return s.search.Index(f.ID, findingToSearchDoc(f))
}

func stamp(f *findings.Finding, now time.Time) {
	if f.ID == "" {
		f.ID = ulid.Make().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
}

// Get retrieves a finding by ID.
func (s *Store) Get(id string) (*findings.Finding, error) {
	var f findings.Finding
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketFindings).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &f)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Delete removes a finding by ID.
func (s *Store) Delete(id string) error {
	if s.search == nil {
		return errSearchClosed
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketFindings)
		if b.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return err
	}
	return s.search.Delete(id)
}

// matches applies the exact-match filters of opts. FilePath matches as a
// substring.
func matches(f *findings.Finding, opts findings.SearchOptions) bool {
	if !opts.IncludeAccepted && f.Accepted {
		return false
	}
	if opts.Rule != "" && f.Rule != opts.Rule {
		return false
	}
	if opts.Severity != "" && f.Severity != opts.Severity {
		return false
	}
	if opts.FilePath != "" && !strings.Contains(f.FilePath, opts.FilePath) {
		return false
	}
	return true
}

// each calls fn for every stored finding matching opts, oldest first, until
// fn returns false.
func (s *Store) each(opts findings.SearchOptions, fn func(*findings.Finding) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketFindings).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var f findings.Finding
			if err := json.Unmarshal(v, &f); err != nil {
				continue
			}
			if !matches(&f, opts) {
				continue
			}
			if !fn(&f) {
				return nil
			}
		}
		return nil
	})
}

// List returns stored findings in the order they were stored. A zero Limit
// uses DefaultListLimit; a negative Limit lists everything.
func (s *Store) List(opts findings.SearchOptions) ([]*findings.Finding, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = findings.DefaultListLimit
	}

	var result []*findings.Finding
	err := s.each(opts, func(f *findings.Finding) bool {
		result = append(result, f)
		return limit < 0 || len(result) < limit
	})
	return result, err
}

// FileFindings returns every finding stored for exactly filePath.
func (s *Store) FileFindings(filePath string) ([]*findings.Finding, error) {
	var result []*findings.Finding
	err := s.each(findings.SearchOptions{IncludeAccepted: true}, func(f *findings.Finding) bool {
		if f.FilePath == filePath {
			result = append(result, f)
		}
		return true
	})
	return result, err
}

// Stats counts the stored findings matching opts. Limit is ignored.
func (s *Store) Stats(opts findings.SearchOptions) (*findings.Stats, error) {
	stats := &findings.Stats{
		ByRule:     make(map[string]int),
		BySeverity: make(map[string]int),
	}
	err := s.each(opts, func(f *findings.Finding) bool {
		stats.Total++
		stats.ByRule[f.Rule]++
		stats.BySeverity[f.Severity]++
		return true
	})
	return stats, err
}

// Accept marks the findings with the given IDs as accepted and returns how
// many changed. Unknown and already accepted IDs are skipped.
func (s *Store) Accept(ids []string) (int, error) {
	if s.search == nil {
		return 0, errSearchClosed
	}

	var changed []*findings.Finding
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketFindings)
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var f findings.Finding
			if err := json.Unmarshal(data, &f); err != nil {
				return fmt.Errorf("unmarshal finding %s: %w", id, err)
			}
			if f.Accepted {
				continue
			}
			f.Accepted = true
			out, err := json.Marshal(&f)
			if err != nil {
				return fmt.Errorf("marshal finding %s: %w", id, err)
			}
			if err := b.Put([]byte(id), out); err != nil {
				return err
			}
			changed = append(changed, &f)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, f := range changed {
		if err := s.search.Index(f.ID, findingToSearchDoc(f)); err != nil {
			return len(changed), err
		}
	}
	return len(changed), nil
}

// AcceptMatching accepts every stored finding matching the filters of opts.
func (s *Store) AcceptMatching(opts findings.SearchOptions) (int, error) {
	opts.IncludeAccepted = false
	var ids []string
	if err := s.each(opts, func(f *findings.Finding) bool {
		ids = append(ids, f.ID)
		return true
	}); err != nil {
		return 0, err
	}
	return s.Accept(ids)
}

// ReplaceFindingsForFile atomically swaps the stored findings of filePath
// for ff. Accepted findings that reappear with the same rule, line and
// message stay accepted. On error the old findings remain.
func (s *Store) ReplaceFindingsForFile(filePath string, ff []*findings.Finding) error {
	return s.replace(func(f *findings.Finding) bool { return f.FilePath == filePath }, ff)
}

// SaveReports replaces the stored findings of every report's file.
func (s *Store) SaveReports(reports []*findings.Report) error {
	for _, r := range reports {
		if err := s.ReplaceFindingsForFile(r.Path, r.Findings); err != nil {
			return fmt.Errorf("save %s: %w", r.Path, err)
		}
	}
	return nil
}

func acceptKey(f *findings.Finding) string {
	return fmt.Sprintf("%s\x00%d\x00%s", f.Rule, f.Line, f.Message)
}

// replace deletes the findings selected by shouldDelete and stores ff in one
// bbolt transaction, then applies the matching search index mutations.
// Stored copies are written so callers' findings are left untouched.
func (s *Store) replace(shouldDelete func(*findings.Finding) bool, ff []*findings.Finding) error {
	if s.search == nil {
		return errSearchClosed
	}
	var deleteIDs []string
	batch := s.search.NewBatch()
	now := time.Now()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketFindings)
		accepted := make(map[string]bool)

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var f findings.Finding
			if err := json.Unmarshal(v, &f); err != nil {
				continue
			}
			if shouldDelete(&f) {
				// Cursor keys are only valid for the current position.
				deleteIDs = append(deleteIDs, string(k))
				if f.Accepted {
					accepted[acceptKey(&f)] = true
				}
			}
		}
		for _, id := range deleteIDs {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}

		for _, orig := range ff {
			f := *orig
			f.ID = ""
			f.CreatedAt = time.Time{}
			stamp(&f, now)
			if accepted[acceptKey(&f)] {
				f.Accepted = true
			}
			data, err := json.Marshal(&f)
			if err != nil {
				return fmt.Errorf("marshal finding: %w", err)
			}
			if err := b.Put([]byte(f.ID), data); err != nil {
				return err
			}
			if err := batch.Index(f.ID, findingToSearchDoc(&f)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range deleteIDs {
		batch.Delete(id)
	}
	return s.search.Batch(batch)
}

// Clear removes all findings and empties the search index.
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(BucketFindings); err != nil {
			return err
		}
		_, err := tx.CreateBucket(BucketFindings)
		return err
	})
	if err != nil {
		return err
	}
	return s.resetSearchIndex()
}
