package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleHTML = `<html><head><title>hi</title></head><body>
<div id="main" class="container">
  <p class="greeting">Hello, world!</p>
  <ul><li>one</li><li>two</li><li>three</li></ul>
</div>
</body></html>`

func TestSaveAndRetrieveRoundTrips(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	ref, err := store.Save(sampleHTML, "t1", "step_1", "https://example.test/page")
	require.NoError(t, err)

	out, err := store.Retrieve(ref)
	require.NoError(t, err)
	require.Contains(t, out, "Hello, world!")
	require.Contains(t, out, `class="container"`)
}

func TestSaveChunksAcrossMultipleFiles(t *testing.T) {
	store, err := NewStore(t.TempDir(), 4)
	require.NoError(t, err)

	ref, err := store.Save(sampleHTML, "t1", "step_1", "https://example.test/page")
	require.NoError(t, err)

	stats, err := store.GetStats(ref)
	require.NoError(t, err)
	require.Greater(t, stats.ChunkCount, 1)
	require.Greater(t, stats.NodeCount, 4)
}

func TestQueryBySelectorFindsElements(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	ref, err := store.Save(sampleHTML, "t1", "step_1", "https://example.test/page")
	require.NoError(t, err)

	results, err := store.QueryBySelector(ref, "li")
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "one", results[0].Text)

	greeting, err := store.QueryBySelector(ref, "p.greeting")
	require.NoError(t, err)
	require.Len(t, greeting, 1)
	require.True(t, strings.Contains(greeting[0].Text, "Hello"))

	none, err := store.QueryBySelector(ref, "#does-not-exist")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestQueryBySelectorReturnsAttrs(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	ref, err := store.Save(sampleHTML, "t1", "step_1", "https://example.test/page")
	require.NoError(t, err)

	results, err := store.QueryBySelector(ref, "#main")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "container", results[0].Attrs["class"])
}

func TestRetrieveChunk(t *testing.T) {
	store, err := NewStore(t.TempDir(), 4)
	require.NoError(t, err)

	ref, err := store.Save(sampleHTML, "t1", "step_1", "https://example.test/page")
	require.NoError(t, err)

	chunk, err := store.RetrieveChunk(ref, 0)
	require.NoError(t, err)
	require.NotEmpty(t, chunk.Nodes)
}

func TestQueryFiltersByURLAndTitle(t *testing.T) {
	store, err := NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = store.Save(sampleHTML, "t1", "step_1", "https://example.test/page")
	require.NoError(t, err)
	_, err = store.Save(sampleHTML, "t2", "step_1", "https://other.test/page")
	require.NoError(t, err)

	matches, err := store.Query(Filter{URLContains: "example.test"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "hi", matches[0].Title)

	matches, err = store.Query(Filter{TitleContains: "hi"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestRepairIndexRebuildsFromMetadata(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 0)
	require.NoError(t, err)

	ref, err := store.Save(sampleHTML, "t1", "step_1", "https://example.test/page")
	require.NoError(t, err)

	require.NoError(t, store.base.Delete(indexFile))

	require.NoError(t, store.RepairIndex())

	matches, err := store.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, ref.Path, matches[0].ID)
}
