package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry describes a cached response body.
type Entry struct {
	// URL is the request URL the body was fetched from.
	URL string `yaml:"url"`
	// ETag is the validator sent back as If-None-Match.
	ETag string `yaml:"etag,omitempty"`
	// LastModified is the validator sent back as If-Modified-Since.
	LastModified string `yaml:"last_modified,omitempty"`
	// StoredAt is when the body was committed.
	StoredAt time.Time `yaml:"stored_at"`
	// Size is the body length in bytes.
	Size int64 `yaml:"size"`
}

// Repository defines the cache operations used by the fetch client.
type Repository interface {
	Lookup(ctx context.Context, url string) (*Entry, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
	Begin(ctx context.Context, entry Entry) (*Writer, error)
}

// FileRepository stores cached bodies under a directory on disk.
type FileRepository struct {
	// dir is the cache root.
	dir string
	// mu serializes metadata commits.
	mu sync.Mutex
}

const (
	// bodySuffix is appended to the key for body files.
	bodySuffix = ".body"
	// metaSuffix is appended to the key for metadata files.
	metaSuffix = ".yaml"
	// dirPermissions is used when creating the cache root.
	dirPermissions = 0o755
	// filePermissions is used for metadata files.
	filePermissions = 0o644
)

// ErrNotFound is returned when no entry is cached for a URL.
var ErrNotFound = errors.New("cache entry not found")

// NewFileRepository creates a repository rooted at dir.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{
		dir: filepath.Clean(dir),
	}
}

// Lookup returns the metadata of the entry cached for url.
func (r *FileRepository) Lookup(_ context.Context, url string) (*Entry, error) {
	contents, err := os.ReadFile(r.metaPath(url))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read cache metadata: %w", err)
	}

	var entry Entry
	if err = yaml.Unmarshal(contents, &entry); err != nil {
		return nil, fmt.Errorf("decode cache metadata: %w", err)
	}

	if entry.URL != url {
		return nil, ErrNotFound
	}

	if _, err = os.Stat(r.bodyPath(url)); err != nil {
		return nil, ErrNotFound
	}

	return &entry, nil
}

// Open returns the cached body for url.
func (r *FileRepository) Open(_ context.Context, url string) (io.ReadCloser, error) {
	f, err := os.Open(r.bodyPath(url))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("open cached body: %w", err)
	}

	return f, nil
}

// Begin starts writing a new body for entry.URL. Nothing is visible to
// Lookup or Open until the returned Writer is committed.
func (r *FileRepository) Begin(_ context.Context, entry Entry) (*Writer, error) {
	if err := os.MkdirAll(r.dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, "partial-*")
	if err != nil {
		return nil, fmt.Errorf("create cache file: %w", err)
	}

	return &Writer{
		repo:  r,
		entry: entry,
		file:  tmp,
	}, nil
}

// commit moves a finished body into place and records its metadata.
func (r *FileRepository) commit(entry Entry, tmpPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}

	if err = os.Rename(tmpPath, r.bodyPath(entry.URL)); err != nil {
		return fmt.Errorf("store cached body: %w", err)
	}

	if err = os.WriteFile(r.metaPath(entry.URL), data, filePermissions); err != nil {
		return fmt.Errorf("write cache metadata: %w", err)
	}

	return nil
}

func (r *FileRepository) key(url string) string {
	sum := sha256.Sum256([]byte(url))

	return hex.EncodeToString(sum[:])
}

func (r *FileRepository) bodyPath(url string) string {
	return filepath.Join(r.dir, r.key(url)+bodySuffix)
}

func (r *FileRepository) metaPath(url string) string {
	return filepath.Join(r.dir, r.key(url)+metaSuffix)
}

// Writer accumulates a body for the cache.
type Writer struct {
	repo    *FileRepository
	entry   Entry
	file    *os.File
	written int64
	done    bool
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	w.written += int64(n)

	return n, err
}

// Commit publishes the body. Calling Commit or Abort again is a no-op.
func (w *Writer) Commit() error {
	if w.done {
		return nil
	}

	w.done = true

	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.file.Name())

		return fmt.Errorf("close cache file: %w", err)
	}

	w.entry.StoredAt = time.Now().UTC()
	w.entry.Size = w.written

	if err := w.repo.commit(w.entry, w.file.Name()); err != nil {
		_ = os.Remove(w.file.Name())

		return err
	}

	return nil
}

// Abort discards the partial body.
func (w *Writer) Abort() {
	if w.done {
		return
	}

	w.done = true

	_ = w.file.Close()
	_ = os.Remove(w.file.Name())
}
