package errfilter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

func sample() []oracle.ConsoleLogEntry {
	return []oracle.ConsoleLogEntry{
		{Level: oracle.LevelLog, Message: "app booted"},
		{Level: oracle.LevelWarn, Message: "deprecated widget used"},
		{Level: oracle.LevelError, Message: "Access to fetch blocked by CORS policy"},
		{Level: oracle.LevelError, Message: "net::ERR_CONNECTION_REFUSED"},
		{Level: oracle.LevelError, Message: "Uncaught TypeError: x is not a function"},
		{Level: oracle.LevelError, Message: "Failed to load resource: the server responded with a status of 404"},
		{Level: oracle.LevelError, Message: "something unrecognized happened"},
	}
}

func TestCategorizeOrdersCORSBeforeNetwork(t *testing.T) {
	require.Equal(t, CategoryCORS, Categorize("Access to fetch blocked by CORS policy"))
	require.Equal(t, CategoryNetwork, Categorize("net::ERR_CONNECTION_REFUSED"))
	require.Equal(t, CategoryScript, Categorize("Uncaught TypeError: x is not a function"))
	require.Equal(t, CategoryResource, Categorize("Failed to load resource: the server responded with a status of 404"))
	require.Equal(t, CategoryOther, Categorize("something unrecognized happened"))
}

func TestGetErrorsAndWarnings(t *testing.T) {
	entries := sample()
	require.Len(t, GetErrors(entries), 5)
	require.Len(t, GetWarnings(entries), 1)
}

func TestFilterByPattern(t *testing.T) {
	matched, err := FilterByPattern(sample(), oracle.Pattern{Value: "cors"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
}

func TestFilterAllowedPatterns(t *testing.T) {
	remaining, err := FilterAllowedPatterns(sample(), []oracle.Pattern{{Value: "cors"}, {Value: "connection_refused"}})
	require.NoError(t, err)
	for _, e := range remaining {
		require.NotContains(t, e.Message, "CORS")
	}
	require.Len(t, remaining, 5)
}

func TestFilterByPatternMatch(t *testing.T) {
	entries := sample()

	exact, err := FilterByPatternMatch(entries, entries[0].Message, MatchExact)
	require.NoError(t, err)
	require.Len(t, exact, 1)

	contains, err := FilterByPatternMatch(entries, "cors", MatchContains)
	require.NoError(t, err)
	require.Len(t, contains, 1)

	regexMatched, err := FilterByPatternMatch(entries, `(?i)cors|network`, MatchRegex)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(regexMatched), 1)

	_, err = FilterByPatternMatch(entries, "x", MatchType("bogus"))
	require.Error(t, err)
}

func TestGenerateSummary(t *testing.T) {
	summary := GenerateSummary(sample())
	require.Equal(t, 7, summary.Total)
	require.Equal(t, 5, summary.ByLevel[oracle.LevelError])
	require.Equal(t, 1, summary.ByCategory[CategoryCORS])
	require.Equal(t, 1, summary.ByCategory[CategoryNetwork])
	require.Equal(t, 1, summary.ByCategory[CategoryScript])
	require.Equal(t, 1, summary.ByCategory[CategoryResource])
	require.Equal(t, 1, summary.ByCategory[CategoryOther])
}
