// Package console implements the console log store: it persists the
// console messages captured at a checkpoint, computes
// per-level summaries, answers filtered retrieval and cross-test search,
// and keeps a running global stats index.
package console

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/corvid-labs/smoketest/internal/oracle"
	"github.com/corvid-labs/smoketest/internal/storage"
)

// Summary is the per-level message count for one stored console log.
type Summary struct {
	Total int                             `json:"total"`
	Counts map[oracle.ConsoleLogLevel]int `json:"counts"`
}

type indexEntry struct {
	ID        string                         `json:"id"`
	TestID    string                         `json:"test_id"`
	StepID    string                         `json:"step_id,omitempty"`
	Path      string                         `json:"path"`
	URL       string                         `json:"url,omitempty"`
	StartTime time.Time                      `json:"start_time"`
	EndTime   time.Time                      `json:"end_time"`
	Counts    map[oracle.ConsoleLogLevel]int `json:"counts"`
	StoredAt  time.Time                      `json:"stored_at"`
}

// QueryIndexEntry is the public shape of an index.json record returned by
// Query.
type QueryIndexEntry indexEntry

// document is the on-disk shape of one stored console collection, matching
// spec.md §4.4: "{ url, startTime, endTime, entries[], summary }".
type document struct {
	URL       string                    `json:"url,omitempty"`
	StartTime time.Time                 `json:"start_time"`
	EndTime   time.Time                 `json:"end_time"`
	Entries   []oracle.ConsoleLogEntry  `json:"entries"`
	Summary   Summary                   `json:"summary"`
}

// QueryFilter narrows Query's results (spec.md §4.4: url, time range,
// has-errors, has-warnings, limit). An empty QueryFilter matches every
// stored collection.
type QueryFilter struct {
	URLContains string
	StartTime   time.Time
	EndTime     time.Time
	HasErrors   bool
	HasWarnings bool
	Limit       int
}

const indexFile = "index.json"
const globalStatsFile = "global_stats.json"

func levelIndexFile(level oracle.ConsoleLogLevel) string {
	return fmt.Sprintf("level_index_%s.json", level)
}

const errorIndexFile = "error_index.json"

// consoleMeta is the sidecar metadata stored next to each collection so
// RepairIndex can rebuild every index purely from on-disk content.
type consoleMeta struct {
	TestID   string    `json:"test_id"`
	StepID   string    `json:"step_id,omitempty"`
	StoredAt time.Time `json:"stored_at"`
}

// errorIndexEntry is one record in error_index.json: a collection that
// contains at least one error-level entry, with those entries inlined so a
// caller can inspect failures without retrieving the full collection. Shape
// matches spec.md §4.4's `{url, errorCount, timestamp, errors}`; TestID/
// StepID are carried alongside since a collection belongs to one checkpoint
// capture, not just one URL.
type errorIndexEntry struct {
	ID         string                   `json:"id"`
	TestID     string                   `json:"test_id"`
	StepID     string                   `json:"step_id,omitempty"`
	URL        string                   `json:"url,omitempty"`
	ErrorCount int                      `json:"error_count"`
	Timestamp  time.Time                `json:"timestamp"`
	Errors     []oracle.ConsoleLogEntry `json:"errors"`
}

// GlobalStats aggregates message counts across every console log ever
// stored in this namespace.
type GlobalStats struct {
	TotalLogs    int                             `json:"total_logs"`
	TotalEntries int                             `json:"total_entries"`
	Counts       map[oracle.ConsoleLogLevel]int  `json:"counts"`
}

// Store is the console log store.
type Store struct {
	base *storage.Base
}

// NewStore builds a console log store rooted at baseDir/console.
func NewStore(baseDir string) (*Store, error) {
	b, err := storage.NewBase(baseDir, "console")
	if err != nil {
		return nil, err
	}
	return &Store{base: b}, nil
}

// Save persists the full set of console entries captured at one checkpoint,
// tagged with the page url and the capture window, and updates the
// namespace's index and global stats. The stored document matches spec.md
// §4.4's `{ url, startTime, endTime, entries[], summary }` shape.
func (s *Store) Save(entries []oracle.ConsoleLogEntry, testID, stepID, url string, startTime, endTime time.Time) (oracle.StorageRef, error) {
	id := s.base.GenerateID("log")
	relPath := id + ".json"
	summary := summarize(entries)
	doc := document{URL: url, StartTime: startTime, EndTime: endTime, Entries: entries, Summary: summary}
	if err := s.base.WriteJSON(relPath, doc); err != nil {
		return oracle.StorageRef{}, err
	}

	storedAt := time.Now()
	if err := s.base.StoreMetadata(id, consoleMeta{TestID: testID, StepID: stepID, StoredAt: storedAt}); err != nil {
		return oracle.StorageRef{}, err
	}

	if err := s.base.WithIndexLock(func() error {
		entry := indexEntry{
			ID: id, TestID: testID, StepID: stepID, Path: relPath,
			URL: url, StartTime: startTime, EndTime: endTime,
			Counts: summary.Counts, StoredAt: storedAt,
		}
		if err := appendIndexEntry(s.base, entry); err != nil {
			return err
		}

		for level, n := range summary.Counts {
			if n == 0 {
				continue
			}
			if err := appendLevelIndexID(s.base, level, id); err != nil {
				return err
			}
		}
		if summary.Counts[oracle.LevelError] > 0 {
			errs := errorsOf(entries)
			if err := appendErrorIndexEntry(s.base, errorIndexEntry{
				ID: id, TestID: testID, StepID: stepID, URL: url,
				ErrorCount: len(errs), Timestamp: storedAt, Errors: errs,
			}); err != nil {
				return err
			}
		}

		var global GlobalStats
		if s.base.Exists(globalStatsFile) {
			if err := s.base.ReadJSON(globalStatsFile, &global); err != nil {
				return err
			}
		}
		if global.Counts == nil {
			global.Counts = map[oracle.ConsoleLogLevel]int{}
		}
		global.TotalLogs++
		global.TotalEntries += summary.Total
		for level, n := range summary.Counts {
			global.Counts[level] += n
		}
		return s.base.WriteJSON(globalStatsFile, global)
	}); err != nil {
		return oracle.StorageRef{}, err
	}

	data, _ := s.base.ReadBinary(relPath)
	return s.base.CreateRefWithHash(oracle.CategoryConsoleLog, testID, relPath, int64(len(data)), storage.Hash(data), storage.RefOptions{
		StepID: stepID,
		Tags:   map[string]string{"url": url},
	}), nil
}

// Retrieve reads back the full, unfiltered set of console entries for a ref.
func (s *Store) Retrieve(ref oracle.StorageRef) ([]oracle.ConsoleLogEntry, error) {
	var doc document
	if err := s.base.ReadJSON(ref.Path, &doc); err != nil {
		return nil, err
	}
	return doc.Entries, nil
}

// Filter narrows a console log retrieval to a set of levels and/or an
// optional message pattern.
type Filter struct {
	Levels  []oracle.ConsoleLogLevel
	Pattern *oracle.Pattern
}

// RetrieveFiltered retrieves a stored console log and applies Filter.
func (s *Store) RetrieveFiltered(ref oracle.StorageRef, f Filter) ([]oracle.ConsoleLogEntry, error) {
	entries, err := s.Retrieve(ref)
	if err != nil {
		return nil, err
	}
	return applyFilter(entries, f)
}

func applyFilter(entries []oracle.ConsoleLogEntry, f Filter) ([]oracle.ConsoleLogEntry, error) {
	var matcher func(string) bool
	if f.Pattern != nil {
		m, err := compilePattern(*f.Pattern)
		if err != nil {
			return nil, err
		}
		matcher = m
	}

	levelSet := map[oracle.ConsoleLogLevel]bool{}
	for _, l := range f.Levels {
		levelSet[l] = true
	}

	var out []oracle.ConsoleLogEntry
	for _, e := range entries {
		if len(levelSet) > 0 && !levelSet[e.Level] {
			continue
		}
		if matcher != nil && !matcher(e.Message) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// GetErrors retrieves only the error-level entries of a stored log.
func (s *Store) GetErrors(ref oracle.StorageRef) ([]oracle.ConsoleLogEntry, error) {
	return s.RetrieveFiltered(ref, Filter{Levels: []oracle.ConsoleLogLevel{oracle.LevelError}})
}

// GetWarnings retrieves only the warn-level entries of a stored log.
func (s *Store) GetWarnings(ref oracle.StorageRef) ([]oracle.ConsoleLogEntry, error) {
	return s.RetrieveFiltered(ref, Filter{Levels: []oracle.ConsoleLogLevel{oracle.LevelWarn}})
}

// QueryByLevel returns the ids of every collection in this namespace that
// contains at least one entry at level, read from that level's index file.
func (s *Store) QueryByLevel(level oracle.ConsoleLogLevel) ([]string, error) {
	file := levelIndexFile(level)
	if !s.base.Exists(file) {
		return nil, nil
	}
	var ids []string
	if err := s.base.ReadJSON(file, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Summarize computes the per-level entry count for a ref's stored log.
func (s *Store) Summarize(ref oracle.StorageRef) (Summary, error) {
	entries, err := s.Retrieve(ref)
	if err != nil {
		return Summary{}, err
	}
	return summarize(entries), nil
}

func summarize(entries []oracle.ConsoleLogEntry) Summary {
	counts := map[oracle.ConsoleLogLevel]int{}
	for _, e := range entries {
		counts[e.Level]++
	}
	return Summary{Total: len(entries), Counts: counts}
}

func errorsOf(entries []oracle.ConsoleLogEntry) []oracle.ConsoleLogEntry {
	var errs []oracle.ConsoleLogEntry
	for _, e := range entries {
		if e.Level == oracle.LevelError {
			errs = append(errs, e)
		}
	}
	return errs
}

// Search scans every console log stored for a test for entries matching
// pattern, across all checkpoints, newest-first.
func (s *Store) Search(testID string, pattern oracle.Pattern) ([]oracle.ConsoleLogEntry, error) {
	matcher, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	var idx []indexEntry
	if s.base.Exists(indexFile) {
		if err := s.base.ReadJSON(indexFile, &idx); err != nil {
			return nil, err
		}
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i].StoredAt.After(idx[j].StoredAt) })

	var matches []oracle.ConsoleLogEntry
	for _, e := range idx {
		if e.TestID != testID {
			continue
		}
		var doc document
		if err := s.base.ReadJSON(e.Path, &doc); err != nil {
			continue
		}
		for _, entry := range doc.Entries {
			if matcher(entry.Message) {
				matches = append(matches, entry)
			}
		}
	}
	return matches, nil
}

// Query returns the index entries matching f, newest-first (spec.md §4.4:
// url, time range, has-errors, has-warnings, limit — distinct from
// QueryByLevel and Search).
func (s *Store) Query(f QueryFilter) ([]QueryIndexEntry, error) {
	var idx []indexEntry
	if s.base.Exists(indexFile) {
		if err := s.base.ReadJSON(indexFile, &idx); err != nil {
			return nil, err
		}
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i].StoredAt.After(idx[j].StoredAt) })

	var out []QueryIndexEntry
	for _, e := range idx {
		if f.URLContains != "" && !strings.Contains(e.URL, f.URLContains) {
			continue
		}
		if !f.StartTime.IsZero() && e.EndTime.Before(f.StartTime) {
			continue
		}
		if !f.EndTime.IsZero() && e.StartTime.After(f.EndTime) {
			continue
		}
		if f.HasErrors && e.Counts[oracle.LevelError] == 0 {
			continue
		}
		if f.HasWarnings && e.Counts[oracle.LevelWarn] == 0 {
			continue
		}
		out = append(out, QueryIndexEntry(e))
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// GetGlobalStats returns the running aggregate counts across every console
// log stored in this namespace.
func (s *Store) GetGlobalStats() (GlobalStats, error) {
	var global GlobalStats
	if !s.base.Exists(globalStatsFile) {
		return GlobalStats{Counts: map[oracle.ConsoleLogLevel]int{}}, nil
	}
	if err := s.base.ReadJSON(globalStatsFile, &global); err != nil {
		return GlobalStats{}, err
	}
	return global, nil
}

func appendIndexEntry(b *storage.Base, entry indexEntry) error {
	var idx []indexEntry
	if b.Exists(indexFile) {
		if err := b.ReadJSON(indexFile, &idx); err != nil {
			return err
		}
	}
	idx = append(idx, entry)
	return b.WriteJSON(indexFile, idx)
}

func appendLevelIndexID(b *storage.Base, level oracle.ConsoleLogLevel, id string) error {
	file := levelIndexFile(level)
	var ids []string
	if b.Exists(file) {
		if err := b.ReadJSON(file, &ids); err != nil {
			return err
		}
	}
	ids = append(ids, id)
	return b.WriteJSON(file, ids)
}

func appendErrorIndexEntry(b *storage.Base, entry errorIndexEntry) error {
	var idx []errorIndexEntry
	if b.Exists(errorIndexFile) {
		if err := b.ReadJSON(errorIndexFile, &idx); err != nil {
			return err
		}
	}
	idx = append(idx, entry)
	return b.WriteJSON(errorIndexFile, idx)
}

// RepairIndex rebuilds index.json, every level_index_<level>.json,
// error_index.json, and global_stats.json from the stored collections and
// their "<id>.meta.json" sidecars — the collection files are the source of
// truth, every index here is a cache.
func (s *Store) RepairIndex() error {
	names, err := s.base.List()
	if err != nil {
		return err
	}

	return s.base.WithIndexLock(func() error {
		var idx []indexEntry
		levelIDs := map[oracle.ConsoleLogLevel][]string{}
		var errIdx []errorIndexEntry
		global := GlobalStats{Counts: map[oracle.ConsoleLogLevel]int{}}

		for _, name := range names {
			if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".meta.json") {
				continue
			}
			if name == indexFile || name == globalStatsFile || name == errorIndexFile {
				continue
			}
			if strings.HasPrefix(name, "level_index_") {
				continue
			}
			id := strings.TrimSuffix(name, ".json")

			var meta consoleMeta
			if err := s.base.GetMetadata(id, &meta); err != nil {
				continue
			}
			var doc document
			if err := s.base.ReadJSON(name, &doc); err != nil {
				continue
			}
			summary := summarize(doc.Entries)

			entry := indexEntry{
				ID: id, TestID: meta.TestID, StepID: meta.StepID, Path: name,
				URL: doc.URL, StartTime: doc.StartTime, EndTime: doc.EndTime,
				Counts: summary.Counts, StoredAt: meta.StoredAt,
			}
			idx = append(idx, entry)
			for level, n := range summary.Counts {
				if n == 0 {
					continue
				}
				levelIDs[level] = append(levelIDs[level], id)
				global.Counts[level] += n
			}
			if summary.Counts[oracle.LevelError] > 0 {
				errs := errorsOf(doc.Entries)
				errIdx = append(errIdx, errorIndexEntry{
					ID: id, TestID: meta.TestID, StepID: meta.StepID, URL: doc.URL,
					ErrorCount: len(errs), Timestamp: meta.StoredAt, Errors: errs,
				})
			}
			global.TotalLogs++
			global.TotalEntries += summary.Total
		}

		if err := s.base.WriteJSON(indexFile, idx); err != nil {
			return err
		}
		for _, level := range oracle.AllLevels {
			if err := s.base.WriteJSON(levelIndexFile(level), levelIDs[level]); err != nil {
				return err
			}
		}
		if err := s.base.WriteJSON(errorIndexFile, errIdx); err != nil {
			return err
		}
		return s.base.WriteJSON(globalStatsFile, global)
	})
}

func compilePattern(p oracle.Pattern) (func(string) bool, error) {
	if p.Regex {
		re, err := regexp.Compile(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid pattern regex %q: %v", oracle.ErrConfiguration, p.Value, err)
		}
		return re.MatchString, nil
	}
	needle := strings.ToLower(p.Value)
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle)
	}, nil
}
