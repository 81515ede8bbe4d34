// Package storage provides the shared filesystem layout, ID/hash
// generation, and JSON/binary I/O that every artifact store (screenshot,
// DOM, console, checkpoint) builds on.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

// Base is the shared foundation every store embeds. It is parameterized by
// (baseDir, namespace), giving each store its own directory
// <baseDir>/<namespace>/.
type Base struct {
	baseDir   string
	namespace string
	dir       string

	// mu serializes in-process index read-modify-write cycles.
	mu sync.Mutex
}

// NewBase creates the namespace directory and returns a ready-to-use Base.
func NewBase(baseDir, namespace string) (*Base, error) {
	dir := filepath.Join(baseDir, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating namespace directory %s: %v", oracle.ErrStorage, dir, err)
	}
	return &Base{baseDir: baseDir, namespace: namespace, dir: dir}, nil
}

// Dir returns the namespace directory, <baseDir>/<namespace>.
func (b *Base) Dir() string { return b.dir }

// GenerateID returns a new id of the form "<prefix>_<ms-since-epoch>_<base36-rand>".
func (b *Base) GenerateID(prefix string) string {
	ms := time.Now().UnixMilli()
	n, err := rand.Int(rand.Reader, big.NewInt(36*36*36*36*36*36))
	if err != nil {
		n = big.NewInt(ms % (36 * 36 * 36 * 36 * 36 * 36))
	}
	return fmt.Sprintf("%s_%d_%s", prefix, ms, n.Text(36))
}

// ItemPath returns the path for an id with the given extension (without the
// leading dot), e.g. ItemPath("ss_1_a", "png") -> <dir>/ss_1_a.png.
func (b *Base) ItemPath(id, ext string) string {
	return filepath.Join(b.dir, fmt.Sprintf("%s.%s", id, ext))
}

// Hash returns the first 16 hex characters of the SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// HashString hashes a string the same way Hash hashes bytes.
func HashString(s string) string {
	return Hash([]byte(s))
}

// WriteJSON pretty-prints v as 2-space-indented JSON and writes it to a path
// relative to the namespace directory.
func (b *Base) WriteJSON(relPath string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling %s: %v", oracle.ErrStorage, relPath, err)
	}
	return b.WriteBinary(relPath, data)
}

// ReadJSON reads and unmarshals the JSON document at relPath into v.
func (b *Base) ReadJSON(relPath string, v interface{}) error {
	data, err := b.ReadBinary(relPath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", oracle.ErrStorage, relPath, err)
	}
	return nil
}

// WriteBinary writes data to a path relative to the namespace directory,
// creating any intermediate directories.
func (b *Base) WriteBinary(relPath string, data []byte) error {
	full := filepath.Join(b.dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("%w: creating directory for %s: %v", oracle.ErrStorage, relPath, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", oracle.ErrStorage, relPath, err)
	}
	return nil
}

// ReadBinary reads the raw bytes at a path relative to the namespace
// directory.
func (b *Base) ReadBinary(relPath string) ([]byte, error) {
	full := filepath.Join(b.dir, relPath)
	data, err := os.ReadFile(full) //nolint:gosec // relPath is store-generated, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", oracle.ErrNotFound, relPath)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", oracle.ErrStorage, relPath, err)
	}
	return data, nil
}

// Exists reports whether relPath exists under the namespace directory.
func (b *Base) Exists(relPath string) bool {
	_, err := os.Stat(filepath.Join(b.dir, relPath))
	return err == nil
}

// Delete removes relPath under the namespace directory. Deleting a
// non-existent path is not an error.
func (b *Base) Delete(relPath string) error {
	if err := os.Remove(filepath.Join(b.dir, relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: deleting %s: %v", oracle.ErrStorage, relPath, err)
	}
	return nil
}

// List returns the non-dotfile entry names directly under the namespace
// directory, sorted for determinism.
func (b *Base) List() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", oracle.ErrStorage, b.dir, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if len(name) > 0 && name[0] == '.' {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// metaPath returns the sidecar metadata path for id, "<id>.meta.json".
func (b *Base) metaPath(id string) string {
	return fmt.Sprintf("%s.meta.json", id)
}

// StoreMetadata writes a sidecar "<id>.meta.json" file next to id's content.
func (b *Base) StoreMetadata(id string, meta interface{}) error {
	return b.WriteJSON(b.metaPath(id), meta)
}

// GetMetadata reads the sidecar metadata for id into meta.
func (b *Base) GetMetadata(id string, meta interface{}) error {
	return b.ReadJSON(b.metaPath(id), meta)
}

// RefOptions carries the optional fields of a StorageRef beyond what
// CreateRef's required parameters cover.
type RefOptions struct {
	StepID     string
	Compressed bool
	Tags       map[string]string
}

// CreateRef builds a StorageRef stamped with the current time, hashing the
// given path string as the ref's content identity. Stores that hash the
// artifact's bytes instead call CreateRefWithHash.
func (b *Base) CreateRef(category oracle.RefCategory, testID, path string, size int64, opts RefOptions) oracle.StorageRef {
	return b.CreateRefWithHash(category, testID, path, size, HashString(path), opts)
}

// CreateRefWithHash builds a StorageRef using an explicit content hash,
// typically computed from the artifact's bytes rather than its path.
func (b *Base) CreateRefWithHash(category oracle.RefCategory, testID, path string, size int64, hash string, opts RefOptions) oracle.StorageRef {
	return oracle.StorageRef{
		Category:   category,
		TestID:     testID,
		StepID:     opts.StepID,
		Path:       path,
		Size:       size,
		Hash:       hash,
		Timestamp:  time.Now(),
		Compressed: opts.Compressed,
		Tags:       opts.Tags,
	}
}

// WithIndexLock serializes a read-modify-write cycle against this
// namespace's index file(s), both across goroutines in this process (via an
// in-process mutex) and across processes sharing the same namespace
// directory (via an advisory github.com/gofrs/flock file lock, taken with a
// blocking Lock and released with Unlock). Index files are caches: a lock
// failure here
// is reported, not swallowed, but a failed index update never rolls back
// the content write that preceded it.
func (b *Base) WithIndexLock(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	lockPath := filepath.Join(b.dir, ".index.lock")
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("%w: acquiring index lock for %s: %v", oracle.ErrStorage, b.namespace, err)
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}
