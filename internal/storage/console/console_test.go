package console

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

func sampleEntries() []oracle.ConsoleLogEntry {
	now := time.Now()
	return []oracle.ConsoleLogEntry{
		{Timestamp: now, Level: oracle.LevelLog, Message: "app booted"},
		{Timestamp: now, Level: oracle.LevelWarn, Message: "deprecated API used"},
		{Timestamp: now, Level: oracle.LevelError, Message: "TypeError: x is not a function"},
		{Timestamp: now, Level: oracle.LevelError, Message: "failed to fetch /api/data"},
	}
}

func TestSaveAndRetrieveRoundTrips(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	ref, err := store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)

	got, err := store.Retrieve(ref)
	require.NoError(t, err)
	require.Len(t, got, 4)
}

func TestSummarizeCountsByLevel(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	ref, err := store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)

	summary, err := store.Summarize(ref)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Total)
	require.Equal(t, 2, summary.Counts[oracle.LevelError])
	require.Equal(t, 1, summary.Counts[oracle.LevelWarn])
}

func TestRetrieveFilteredByLevel(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	ref, err := store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)

	errorsOnly, err := store.RetrieveFiltered(ref, Filter{Levels: []oracle.ConsoleLogLevel{oracle.LevelError}})
	require.NoError(t, err)
	require.Len(t, errorsOnly, 2)
}

func TestRetrieveFilteredByPattern(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	ref, err := store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)

	matched, err := store.RetrieveFiltered(ref, Filter{Pattern: &oracle.Pattern{Value: "fetch"}})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Contains(t, matched[0].Message, "fetch")
}

func TestRetrieveFilteredByRegexPattern(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	ref, err := store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)

	matched, err := store.RetrieveFiltered(ref, Filter{Pattern: &oracle.Pattern{Value: "^TypeError", Regex: true}})
	require.NoError(t, err)
	require.Len(t, matched, 1)
}

func TestSearchAcrossMultipleCheckpoints(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	_, err = store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)
	_, err = store.Save([]oracle.ConsoleLogEntry{{Level: oracle.LevelError, Message: "failed to fetch /api/more"}}, "t1", "step_2", "https://example.test/more", now, now.Add(time.Second))
	require.NoError(t, err)
	_, err = store.Save(sampleEntries(), "t2", "step_1", "https://example.test/other", now, now.Add(time.Second))
	require.NoError(t, err)

	matches, err := store.Search("t1", oracle.Pattern{Value: "fetch"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestGlobalStatsAccumulate(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	_, err = store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)
	_, err = store.Save(sampleEntries(), "t2", "step_1", "https://example.test/other", now, now.Add(time.Second))
	require.NoError(t, err)

	stats, err := store.GetGlobalStats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalLogs)
	require.Equal(t, 8, stats.TotalEntries)
	require.Equal(t, 4, stats.Counts[oracle.LevelError])
}

func TestGetErrorsAndWarnings(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	ref, err := store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)

	errs, err := store.GetErrors(ref)
	require.NoError(t, err)
	require.Len(t, errs, 2)

	warnings, err := store.GetWarnings(ref)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
}

func TestQueryByLevel(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	_, err = store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)
	_, err = store.Save([]oracle.ConsoleLogEntry{{Level: oracle.LevelLog, Message: "booted"}}, "t2", "step_1", "https://example.test/booted", now, now.Add(time.Second))
	require.NoError(t, err)

	errorIDs, err := store.QueryByLevel(oracle.LevelError)
	require.NoError(t, err)
	require.Len(t, errorIDs, 1)

	logIDs, err := store.QueryByLevel(oracle.LevelLog)
	require.NoError(t, err)
	require.Len(t, logIDs, 2)
}

func TestQueryFiltersByURLAndErrors(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	_, err = store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)
	_, err = store.Save([]oracle.ConsoleLogEntry{{Level: oracle.LevelLog, Message: "booted"}}, "t2", "step_1", "https://example.test/other", now, now.Add(time.Second))
	require.NoError(t, err)

	withErrors, err := store.Query(QueryFilter{HasErrors: true})
	require.NoError(t, err)
	require.Len(t, withErrors, 1)
	require.Equal(t, "https://example.test/", withErrors[0].URL)

	byURL, err := store.Query(QueryFilter{URLContains: "other"})
	require.NoError(t, err)
	require.Len(t, byURL, 1)

	limited, err := store.Query(QueryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRepairIndexRebuildsFromMetadata(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	_, err = store.Save(sampleEntries(), "t1", "step_1", "https://example.test/", now, now.Add(time.Second))
	require.NoError(t, err)

	require.NoError(t, store.base.Delete(indexFile))
	require.NoError(t, store.base.Delete(levelIndexFile(oracle.LevelError)))
	require.NoError(t, store.base.Delete(errorIndexFile))
	require.NoError(t, store.base.Delete(globalStatsFile))

	require.NoError(t, store.RepairIndex())

	errorIDs, err := store.QueryByLevel(oracle.LevelError)
	require.NoError(t, err)
	require.Len(t, errorIDs, 1)

	stats, err := store.GetGlobalStats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalLogs)
	require.Equal(t, 4, stats.TotalEntries)

	matches, err := store.Search("t1", oracle.Pattern{Value: "fetch"})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	byURL, err := store.Query(QueryFilter{URLContains: "example.test"})
	require.NoError(t, err)
	require.Len(t, byURL, 1)
}
