// Package dom implements the DOM store: it parses captured HTML with a
// real parser (never regex), flattens the tree into a chunked,
// content-addressable representation, and answers CSS-selector queries
// against a reconstructed document.
package dom

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/corvid-labs/smoketest/internal/oracle"
	"github.com/corvid-labs/smoketest/internal/storage"
)

// SchemaVersion is stamped on every stored document so a future on-disk
// format change can be detected rather than guessed at.
const SchemaVersion = 1

const defaultChunkSize = 1000

// Node is one flattened DOM node. Only element and non-empty-text nodes
// are retained. ParentIndex indexes into the full, unchunked node slice
// for the document (-1 for the root element).
type Node struct {
	Type       string            `json:"type"` // "element" or "text"
	Tag        string            `json:"tag,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty"`
	Text       string            `json:"text,omitempty"`
	ParentIndex int              `json:"parent_index"`
}

// Chunk is one on-disk slice of a document's flattened node list.
type Chunk struct {
	Index int    `json:"index"`
	Nodes []Node `json:"nodes"`
}

// docMeta is the sidecar metadata describing a stored document.
type docMeta struct {
	TestID        string    `json:"test_id"`
	StepID        string    `json:"step_id,omitempty"`
	SchemaVersion int       `json:"schema_version"`
	URL           string    `json:"url,omitempty"`
	Title         string    `json:"title,omitempty"`
	NodeCount     int       `json:"node_count"`
	ChunkCount    int       `json:"chunk_count"`
	ChunkSize     int       `json:"chunk_size"`
	CreatedAt     time.Time `json:"created_at"`
}

// indexEntry is one record in the DOM namespace's index.json, tagged with
// the fields query(filter) searches on.
type indexEntry struct {
	ID         string    `json:"id"`
	TestID     string    `json:"test_id"`
	StepID     string    `json:"step_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	NodeCount  int       `json:"node_count"`
	ChunkCount int       `json:"chunk_count"`
	StoredAt   time.Time `json:"stored_at"`
}

const indexFile = "index.json"

// Store is the DOM store.
type Store struct {
	base      *storage.Base
	chunkSize int
}

// NewStore builds a DOM store rooted at baseDir/dom. chunkSize <= 0 uses
// the package default (1000 nodes).
func NewStore(baseDir string, chunkSize int) (*Store, error) {
	b, err := storage.NewBase(baseDir, "dom")
	if err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Store{base: b, chunkSize: chunkSize}, nil
}

// Save parses rawHTML, flattens it, writes it out in chunks, and returns
// the StorageRef for the stored document (its path names the document's
// metadata, not any single chunk). url tags the document for query(filter)
// and may be empty when the caller has none to offer.
func (s *Store) Save(rawHTML string, testID, stepID, url string) (oracle.StorageRef, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return oracle.StorageRef{}, fmt.Errorf("%w: parsing HTML: %v", oracle.ErrCapture, err)
	}

	nodes := flatten(doc)
	id := s.base.GenerateID("dom")
	docDir := id
	title := extractTitle(doc)

	chunks := chunkNodes(nodes, s.chunkSize)
	for _, c := range chunks {
		relPath := chunkPath(docDir, c.Index)
		if err := s.base.WriteJSON(relPath, c); err != nil {
			return oracle.StorageRef{}, err
		}
	}

	storedAt := time.Now()
	meta := docMeta{
		TestID:        testID,
		StepID:        stepID,
		SchemaVersion: SchemaVersion,
		URL:           url,
		Title:         title,
		NodeCount:     len(nodes),
		ChunkCount:    len(chunks),
		ChunkSize:     s.chunkSize,
		CreatedAt:     storedAt,
	}
	if err := s.base.StoreMetadata(docDir, meta); err != nil {
		return oracle.StorageRef{}, err
	}

	entry := indexEntry{
		ID: id, TestID: testID, StepID: stepID, URL: url, Title: title,
		NodeCount: len(nodes), ChunkCount: len(chunks), StoredAt: storedAt,
	}
	if err := s.base.WithIndexLock(func() error {
		return appendDocIndexEntry(s.base, entry)
	}); err != nil {
		return oracle.StorageRef{}, err
	}

	return s.base.CreateRefWithHash(oracle.CategoryHTML, testID, docDir, int64(len(rawHTML)), storage.Hash([]byte(rawHTML)), storage.RefOptions{
		StepID: stepID,
	}), nil
}

// extractTitle returns the text content of the document's first <title>
// element, or "" if it has none.
func extractTitle(doc *html.Node) string {
	var title string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}

func appendDocIndexEntry(b *storage.Base, entry indexEntry) error {
	var idx []indexEntry
	if b.Exists(indexFile) {
		if err := b.ReadJSON(indexFile, &idx); err != nil {
			return err
		}
	}
	idx = append(idx, entry)
	return b.WriteJSON(indexFile, idx)
}

// Filter narrows Query's results. An empty Filter matches every stored
// document.
type Filter struct {
	URLContains   string
	TitleContains string
}

// Query returns the index entries matching f, newest-first.
func (s *Store) Query(f Filter) ([]QueryIndexEntry, error) {
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
		if f.TitleContains != "" && !strings.Contains(e.Title, f.TitleContains) {
			continue
		}
		out = append(out, QueryIndexEntry(e))
	}
	return out, nil
}

// QueryIndexEntry is the public shape of an index.json record returned by Query.
type QueryIndexEntry indexEntry

// RepairIndex rebuilds index.json from the stored documents' metadata
// sidecars — each document directory's chunks and "<dir>.meta.json" are the
// source of truth, the index is a cache.
func (s *Store) RepairIndex() error {
	names, err := s.base.List()
	if err != nil {
		return err
	}
	return s.base.WithIndexLock(func() error {
		var idx []indexEntry
		for _, name := range names {
			if !strings.HasPrefix(name, "dom_") || strings.HasSuffix(name, ".meta.json") {
				continue
			}
			var meta docMeta
			if err := s.base.GetMetadata(name, &meta); err != nil {
				continue
			}
			idx = append(idx, indexEntry{
				ID: name, TestID: meta.TestID, StepID: meta.StepID, URL: meta.URL, Title: meta.Title,
				NodeCount: meta.NodeCount, ChunkCount: meta.ChunkCount, StoredAt: meta.CreatedAt,
			})
		}
		return s.base.WriteJSON(indexFile, idx)
	})
}

func chunkPath(docDir string, index int) string {
	return fmt.Sprintf("%s/chunk_%04d.json", docDir, index)
}

// reconstruct loads every chunk for a stored document and rebuilds the
// flattened node slice in document order.
func (s *Store) reconstruct(docDir string) ([]Node, docMeta, error) {
	var meta docMeta
	if err := s.base.GetMetadata(docDir, &meta); err != nil {
		return nil, docMeta{}, err
	}
	nodes := make([]Node, 0, meta.NodeCount)
	for i := 0; i < meta.ChunkCount; i++ {
		var c Chunk
		if err := s.base.ReadJSON(chunkPath(docDir, i), &c); err != nil {
			return nil, docMeta{}, err
		}
		nodes = append(nodes, c.Nodes...)
	}
	return nodes, meta, nil
}

// Retrieve reconstructs the stored document and serializes it back to HTML.
func (s *Store) Retrieve(ref oracle.StorageRef) (string, error) {
	nodes, _, err := s.reconstruct(ref.Path)
	if err != nil {
		return "", err
	}
	root := rebuildTree(nodes)
	var sb strings.Builder
	if err := html.Render(&sb, root); err != nil {
		return "", fmt.Errorf("%w: rendering reconstructed DOM: %v", oracle.ErrStorage, err)
	}
	return sb.String(), nil
}

// RetrieveChunk loads a single chunk of a stored document by index, without
// reconstructing the full node list.
func (s *Store) RetrieveChunk(ref oracle.StorageRef, index int) (Chunk, error) {
	var c Chunk
	if err := s.base.ReadJSON(chunkPath(ref.Path, index), &c); err != nil {
		return Chunk{}, err
	}
	return c, nil
}

// GetStats reports the node count and chunk count of a stored document,
// without paying for a full reconstruction.
type Stats struct {
	NodeCount  int    `json:"node_count"`
	ChunkCount int    `json:"chunk_count"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
}

func (s *Store) GetStats(ref oracle.StorageRef) (Stats, error) {
	var meta docMeta
	if err := s.base.GetMetadata(ref.Path, &meta); err != nil {
		return Stats{}, err
	}
	return Stats{NodeCount: meta.NodeCount, ChunkCount: meta.ChunkCount, URL: meta.URL, Title: meta.Title}, nil
}

// QueryResult is one element matched by a selector query.
type QueryResult struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Text  string            `json:"text"`
}

// QueryBySelector reconstructs the stored document and evaluates a CSS
// selector against it with goquery, the standard selector engine built on
// golang.org/x/net/html — HTML is never extracted with regular
// expressions.
func (s *Store) QueryBySelector(ref oracle.StorageRef, selector string) ([]QueryResult, error) {
	nodes, _, err := s.reconstruct(ref.Path)
	if err != nil {
		return nil, err
	}
	root := rebuildTree(nodes)

	gdoc := goquery.NewDocumentFromNode(root)
	sel := gdoc.Find(selector)

	results := make([]QueryResult, 0, sel.Length())
	sel.Each(func(_ int, n *goquery.Selection) {
		node := n.Get(0)
		attrs := map[string]string{}
		for _, a := range node.Attr {
			attrs[a.Key] = a.Val
		}
		if len(attrs) == 0 {
			attrs = nil
		}
		results = append(results, QueryResult{
			Tag:   node.Data,
			Attrs: attrs,
			Text:  strings.TrimSpace(n.Text()),
		})
	})
	return results, nil
}

// flatten walks an *html.Node tree in preorder, producing a flat Node slice
// where each entry's ParentIndex points back into the same slice. Only
// element nodes and text nodes whose content doesn't trim to empty are
// retained; a dropped node (document wrapper, comment, doctype,
// whitespace-only text) is skipped but its children are still walked and
// reparented to the nearest retained ancestor.
func flatten(root *html.Node) []Node {
	var nodes []Node
	var walk func(n *html.Node, parentIdx int)
	walk = func(n *html.Node, parentIdx int) {
		keep, entry := asNode(n)
		idx := parentIdx
		if keep {
			entry.ParentIndex = parentIdx
			idx = len(nodes)
			nodes = append(nodes, entry)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, idx)
		}
	}
	walk(root, -1)
	return nodes
}

// asNode converts one *html.Node into its stored Node form, reporting
// whether it should be retained at all.
func asNode(n *html.Node) (bool, Node) {
	switch n.Type {
	case html.ElementNode:
		entry := Node{Type: "element", Tag: n.Data}
		if len(n.Attr) > 0 {
			entry.Attrs = map[string]string{}
			for _, a := range n.Attr {
				entry.Attrs[a.Key] = a.Val
			}
		}
		return true, entry
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return false, Node{}
		}
		return true, Node{Type: "text", Text: n.Data}
	default:
		return false, Node{}
	}
}

// rebuildTree reverses flatten, rebuilding an *html.Node tree from a flat
// node slice addressed by global ParentIndex.
func rebuildTree(nodes []Node) *html.Node {
	built := make([]*html.Node, len(nodes))
	for i, n := range nodes {
		hn := &html.Node{}
		switch n.Type {
		case "element":
			hn.Type = html.ElementNode
			hn.Data = n.Tag
			for k, v := range n.Attrs {
				hn.Attr = append(hn.Attr, html.Attribute{Key: k, Val: v})
			}
		case "text":
			hn.Type = html.TextNode
			hn.Data = n.Text
		default:
			hn.Type = html.ErrorNode
		}
		built[i] = hn
	}
	var root *html.Node
	for i, n := range nodes {
		if n.ParentIndex < 0 {
			root = built[i]
			continue
		}
		built[n.ParentIndex].AppendChild(built[i])
	}
	return root
}

func chunkNodes(nodes []Node, size int) []Chunk {
	var chunks []Chunk
	for i := 0; i < len(nodes); i += size {
		end := i + size
		if end > len(nodes) {
			end = len(nodes)
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Nodes: nodes[i:end]})
	}
	if len(chunks) == 0 {
		chunks = append(chunks, Chunk{Index: 0, Nodes: nil})
	}
	return chunks
}
