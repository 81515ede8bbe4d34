package validate

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

func TestCheckpointNilConfigPasses(t *testing.T) {
	passed, results := Checkpoint(nil, nil, nil)
	require.True(t, passed)
	require.Empty(t, results)
}

func TestCheckpointCombinesDOMAndConsole(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div id="main">hi</div>`))
	require.NoError(t, err)

	cfg := &oracle.ValidationsConfig{
		DOM:     []oracle.DOMAssertion{{Exists: "#main"}, {Exists: "#missing"}},
		Console: []oracle.ConsoleAssertion{{NoErrors: true}},
	}
	console := []oracle.ConsoleLogEntry{{Level: oracle.LevelLog, Message: "fine"}}

	passed, results := Checkpoint(cfg, doc, console)
	require.False(t, passed)
	require.Len(t, results, 3)
}

func TestCheckpointMissingDOMCaptureFailsDOMAssertions(t *testing.T) {
	cfg := &oracle.ValidationsConfig{DOM: []oracle.DOMAssertion{{Exists: "#main"}}}

	passed, results := Checkpoint(cfg, nil, nil)
	require.False(t, passed)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Message, "no HTML was captured")
}
